package conversation

import "github.com/ashureev/careerpath/internal/domain"

// EventType classifies controller events.
type EventType string

const (
	// EventMessage is published after a message is appended.
	EventMessage EventType = "message"
	// EventComposing toggles the "assistant is composing" indicator.
	EventComposing EventType = "composing"
	// EventSession is published when the active session or its title changes.
	EventSession EventType = "session"
	// EventDeleted is published after a session is removed.
	EventDeleted EventType = "deleted"
)

// Event describes one observable change.
type Event struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"sessionId"`
	Message   *domain.Message `json:"message,omitempty"`
	Composing bool            `json:"composing,omitempty"`
	Title     string          `json:"title,omitempty"`
	Phase     string          `json:"phase,omitempty"`
}

// Listener receives controller events. It is never called with the
// controller lock held, but it must not block for long.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

// OnEvent calls f.
func (f ListenerFunc) OnEvent(e Event) { f(e) }

// Listeners fans an event out to each listener in order.
type Listeners []Listener

// OnEvent forwards e to every listener.
func (ls Listeners) OnEvent(e Event) {
	for _, l := range ls {
		if l != nil {
			l.OnEvent(e)
		}
	}
}
