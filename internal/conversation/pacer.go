package conversation

import (
	"math/rand/v2"
	"time"
)

// Default pacing bounds for assistant messages.
const (
	DefaultPacingMin    = time.Second
	DefaultPacingMax    = 2 * time.Second
	DefaultOpeningDelay = 500 * time.Millisecond
)

// Pacer decides how long the assistant "types" before a message appears.
type Pacer interface {
	Next() time.Duration
}

// RandomPacer draws delays uniformly from [Min, Max].
type RandomPacer struct {
	Min time.Duration
	Max time.Duration
}

// NewRandomPacer returns a pacer for the given bounds.
func NewRandomPacer(minDelay, maxDelay time.Duration) RandomPacer {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return RandomPacer{Min: minDelay, Max: maxDelay}
}

// Next returns a delay in [Min, Max].
func (p RandomPacer) Next() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + rand.N(p.Max-p.Min+1)
}

// FixedPacer always waits the same duration.
type FixedPacer time.Duration

// Next returns the fixed delay.
func (p FixedPacer) Next() time.Duration {
	return time.Duration(p)
}
