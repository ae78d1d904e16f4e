// Package gateway talks to the text-generation service that turns a finished
// profile prompt into a career path write-up.
package gateway

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStatus is returned when the service answers with a non-2xx status.
	ErrStatus = errors.New("generation service returned error status")
	// ErrMalformedResponse is returned when the body is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed generation response")
	// ErrEmptyPrompt is returned for a blank prompt.
	ErrEmptyPrompt = errors.New("prompt is required")
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Request is the wire request body.
type Request struct {
	Prompt string `json:"prompt"`
}

// Response is the wire response body. Exactly one field is set.
type Response struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// WithTimeout bounds every call to gen by d. A non-positive d returns gen.
func WithTimeout(gen Generator, d time.Duration) Generator {
	if d <= 0 || gen == nil {
		return gen
	}
	return GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return gen.Generate(ctx, prompt)
	})
}
