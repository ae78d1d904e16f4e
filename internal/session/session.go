// Package session keeps the ordered collection of conversations and mirrors
// it into a durable slot after every change.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/careerpath/internal/domain"
	"github.com/ashureev/careerpath/internal/store"
)

// DefaultSlot is the slot name the collection is stored under.
const DefaultSlot = "careerChatSessions"

var (
	// ErrSessionNotFound is returned when no session has the given id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDuplicateSession is returned when adding a session whose id is taken.
	ErrDuplicateSession = errors.New("session already exists")
)

// Store holds sessions newest first. Mutations apply in memory first; a
// failed write to the slot is returned but does not roll them back.
type Store struct {
	repo     store.Repository
	slot     string
	mu       sync.RWMutex
	sessions []domain.Session
}

// Open reads the collection from repo once and returns a Store backed by it.
// A slot that cannot be decoded is moved to CorruptSlotName and the store
// starts empty; only storage errors fail Open.
func Open(ctx context.Context, repo store.Repository, slot string) (*Store, error) {
	if slot == "" {
		slot = DefaultSlot
	}
	s := &Store{repo: repo, slot: slot}

	data, err := repo.ReadSlot(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("read session slot: %w", err)
	}
	if data != nil {
		sessions, err := DecodeCollection(data)
		if err != nil {
			if qerr := s.quarantine(ctx, data, err); qerr != nil {
				return nil, qerr
			}
		} else {
			s.sessions = sessions
		}
	}

	slog.Info("Session collection loaded", "slot", slot, "sessions", len(s.sessions))
	return s, nil
}

// CorruptSlotName is where an unreadable collection from slot is kept.
func CorruptSlotName(slot string, at time.Time) string {
	return slot + ".corrupt." + at.UTC().Format("20060102T150405.000000000Z")
}

// quarantine copies an undecodable slot aside and clears it, so the store
// starts empty without overwriting the only copy of the data.
func (s *Store) quarantine(ctx context.Context, data []byte, decodeErr error) error {
	aside := CorruptSlotName(s.slot, time.Now())
	if err := s.repo.WriteSlot(ctx, aside, data); err != nil {
		return fmt.Errorf("decode session slot: %w (keeping corrupt copy failed: %v)", decodeErr, err)
	}
	if err := s.repo.DeleteSlot(ctx, s.slot); err != nil {
		return fmt.Errorf("clear corrupt session slot: %w", err)
	}
	slog.Error("Session slot is corrupt, starting with an empty collection",
		"slot", s.slot, "kept_as", aside, "error", decodeErr)
	return nil
}

// DecodeCollection parses a serialized collection. Duplicate ids keep the
// first (newest) entry.
func DecodeCollection(data []byte) ([]domain.Session, error) {
	var raw []domain.Session
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(raw))
	sessions := make([]domain.Session, 0, len(raw))
	for _, sess := range raw {
		if seen[sess.ID] {
			slog.Warn("Dropping duplicate session in stored collection", "session_id", sess.ID)
			continue
		}
		seen[sess.ID] = true
		if sess.Messages == nil {
			sess.Messages = []domain.Message{}
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// EncodeCollection serializes sessions for the durable slot.
func EncodeCollection(sessions []domain.Session) ([]byte, error) {
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return json.Marshal(sessions)
}

// List returns summaries, newest first.
func (s *Store) List() []domain.SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Summary())
	}
	return out
}

// All returns a copy of the collection, newest first.
func (s *Store) All() []domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Session(nil), s.sessions...)
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Get returns the session with the given id.
func (s *Store) Get(id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.index(id); i >= 0 {
		return s.sessions[i], nil
	}
	return domain.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// Prepend adds sess as the newest session and persists.
func (s *Store) Prepend(ctx context.Context, sess domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index(sess.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, sess.ID)
	}
	s.sessions = append([]domain.Session{sess}, s.sessions...)
	return s.persistLocked(ctx)
}

// Update replaces the stored record that has sess.ID and persists.
func (s *Store) Update(ctx context.Context, sess domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(sess.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sess.ID)
	}
	s.sessions[i] = sess
	return s.persistLocked(ctx)
}

// Delete removes the session and persists the remainder.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.sessions = append(s.sessions[:i:i], s.sessions[i+1:]...)
	return s.persistLocked(ctx)
}

func (s *Store) index(id string) int {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked overwrites the slot with the whole collection, or removes
// the slot once the collection is empty.
func (s *Store) persistLocked(ctx context.Context) error {
	if len(s.sessions) == 0 {
		if err := s.repo.DeleteSlot(ctx, s.slot); err != nil {
			return fmt.Errorf("clear session slot: %w", err)
		}
		return nil
	}

	data, err := EncodeCollection(s.sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	if err := s.repo.WriteSlot(ctx, s.slot, data); err != nil {
		return fmt.Errorf("write session slot: %w", err)
	}
	return nil
}
