// Package store provides the durable slot that holds the serialized session
// collection.
package store

import (
	"context"
	"errors"
)

// ErrSlotNameRequired is returned when a slot operation is given no name.
var ErrSlotNameRequired = errors.New("slot name is required")

// Repository persists named byte slots. A slot is written whole and read
// whole; readers never observe a partial write.
type Repository interface {
	// ReadSlot returns the slot contents, or nil if the slot does not exist.
	ReadSlot(ctx context.Context, name string) ([]byte, error)

	// WriteSlot replaces the slot contents.
	WriteSlot(ctx context.Context, name string, data []byte) error

	// DeleteSlot removes the slot. Deleting a missing slot is not an error.
	DeleteSlot(ctx context.Context, name string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// Open returns the repository for the named backend.
func Open(backend, dbPath, filePath string) (Repository, error) {
	switch backend {
	case "", "sqlite":
		return NewSQLite(dbPath)
	case "file":
		return NewFile(filePath)
	default:
		return nil, errors.New("unknown storage backend: " + backend)
	}
}
