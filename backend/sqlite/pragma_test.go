package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_SqliteBackend_PragmaSettings(t *testing.T) {
	t.Run("In-memory database has memory journal mode", func(t *testing.T) {
		backend := NewInMemoryBackend()
		defer backend.Close()

		// WAL mode is not supported for in-memory databases
		var journalMode string
		err := backend.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
		require.NoError(t, err)
		require.Equal(t, "memory", journalMode, "journal_mode should be 'memory' for in-memory databases")
	})

	t.Run("File backend has WAL mode", func(t *testing.T) {
		backend := NewSqliteBackend(filepath.Join(t.TempDir(), "test_pragma.db"))
		defer backend.Close()

		var journalMode string
		err := backend.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
		require.NoError(t, err)
		require.Equal(t, "wal", journalMode, "journal_mode should be set to WAL for file backend")
	})

	t.Run("In-memory backends are isolated", func(t *testing.T) {
		a := NewInMemoryBackend()
		defer a.Close()

		b := NewInMemoryBackend()
		defer b.Close()

		_, err := a.db.Exec("INSERT INTO `user_roles` (user_id, role_id) VALUES (1, 1)")
		require.NoError(t, err)

		var count int
		require.NoError(t, b.db.QueryRow("SELECT COUNT(*) FROM `user_roles`").Scan(&count))
		require.Equal(t, 0, count)
	})
}
