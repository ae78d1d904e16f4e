package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTitle is shown until a profile has been completed.
const DefaultSessionTitle = "New Career Path"

// Session is one named conversation.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	Profile   *Profile  `json:"userProfile,omitempty"`
}

// NewSession returns an empty session with the placeholder title.
func NewSession(now time.Time) Session {
	return Session{
		ID:        uuid.NewString(),
		Title:     DefaultSessionTitle,
		Messages:  []Message{},
		CreatedAt: now,
	}
}

// WithMessage returns a copy of s with m appended. The message slice is
// copied so earlier snapshots of s are never affected.
func (s Session) WithMessage(m Message) Session {
	msgs := make([]Message, len(s.Messages), len(s.Messages)+1)
	copy(msgs, s.Messages)
	s.Messages = append(msgs, m)
	return s
}

// CareerPathTitle is the title given to a session once its profile is done.
func CareerPathTitle(name string) string {
	return name + "'s Career Path"
}

// SessionSummary is the list view of a session.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	MessageCount int       `json:"messageCount"`
}

// Summary returns the list view of s.
func (s Session) Summary() SessionSummary {
	return SessionSummary{
		ID:           s.ID,
		Title:        s.Title,
		CreatedAt:    s.CreatedAt,
		MessageCount: len(s.Messages),
	}
}
