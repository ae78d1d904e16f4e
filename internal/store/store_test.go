package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Repository {
	t.Helper()
	dir := t.TempDir()

	sqlite, err := NewSQLite(filepath.Join(dir, "db", "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	file, err := NewFile(filepath.Join(dir, "slots"))
	require.NoError(t, err)

	return map[string]Repository{"sqlite": sqlite, "file": file}
}

func TestSlotLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.Ping(ctx))

			got, err := repo.ReadSlot(ctx, "careerChatSessions")
			require.NoError(t, err)
			assert.Nil(t, got)

			require.NoError(t, repo.WriteSlot(ctx, "careerChatSessions", []byte(`[{"id":"1"}]`)))
			require.NoError(t, repo.WriteSlot(ctx, "careerChatSessions", []byte(`[{"id":"2"}]`)))

			got, err = repo.ReadSlot(ctx, "careerChatSessions")
			require.NoError(t, err)
			assert.Equal(t, `[{"id":"2"}]`, string(got))

			require.NoError(t, repo.DeleteSlot(ctx, "careerChatSessions"))
			require.NoError(t, repo.DeleteSlot(ctx, "careerChatSessions"))

			got, err = repo.ReadSlot(ctx, "careerChatSessions")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestSlotNameRequired(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.ReadSlot(ctx, "")
			assert.ErrorIs(t, err, ErrSlotNameRequired)
			assert.ErrorIs(t, repo.WriteSlot(ctx, "", nil), ErrSlotNameRequired)
			assert.ErrorIs(t, repo.DeleteSlot(ctx, ""), ErrSlotNameRequired)
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("redis", "", "")
	assert.Error(t, err)
}

func TestWithBusyRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := withBusyRetry(ctx, "op", func() error {
		calls++
		if calls < 2 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = withBusyRetry(ctx, "op", func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	require.Error(t, err)
	assert.Equal(t, busyMaxRetries, calls)

	calls = 0
	plain := errors.New("disk full")
	err = withBusyRetry(ctx, "op", func() error {
		calls++
		return plain
	})
	assert.ErrorIs(t, err, plain)
	assert.Equal(t, 1, calls)
}

func TestIsSQLiteConflictError(t *testing.T) {
	assert.False(t, IsSQLiteConflictError(nil))
	assert.True(t, IsSQLiteConflictError(errors.New("SQLITE_BUSY: busy")))
	assert.True(t, IsSQLiteConflictError(errors.New("database is locked")))
	assert.False(t, IsSQLiteConflictError(errors.New("no such table")))
}
