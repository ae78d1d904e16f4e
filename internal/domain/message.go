// Package domain contains core domain types for the career path assistant.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	// RoleBot marks assistant-authored messages.
	RoleBot Role = "bot"
	// RoleUser marks messages typed by the user.
	RoleUser Role = "user"
)

// Message is a single transcript entry. Messages are never edited once
// appended to a session.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message with a fresh id.
func NewMessage(role Role, content string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: now,
	}
}
