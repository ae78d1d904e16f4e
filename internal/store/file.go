package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps each slot in its own JSON file inside a directory.
// Writes go to a temp file that is renamed over the target.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFile creates a file-backed repository rooted at dir.
func NewFile(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create slot directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// ReadSlot returns the slot contents, or nil if the file does not exist.
func (s *FileStore) ReadSlot(_ context.Context, name string) ([]byte, error) {
	if name == "" {
		return nil, ErrSlotNameRequired
	}
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read slot file: %w", err)
	}
	return data, nil
}

// WriteSlot atomically replaces the slot file.
func (s *FileStore) WriteSlot(_ context.Context, name string, data []byte) error {
	if name == "" {
		return ErrSlotNameRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp slot file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write slot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close slot file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace slot file: %w", err)
	}
	return nil
}

// DeleteSlot removes the slot file.
func (s *FileStore) DeleteSlot(_ context.Context, name string) error {
	if name == "" {
		return ErrSlotNameRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove slot file: %w", err)
	}
	return nil
}

// Ping checks that the slot directory is still there.
func (s *FileStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat slot directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("slot path is not a directory: %s", s.dir)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
