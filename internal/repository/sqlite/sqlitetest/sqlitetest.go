// Package sqlitetest opens throwaway, fully migrated mirror databases for tests.
package sqlitetest

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/creamcroissant/panelmirror/internal/migrations"
	"github.com/creamcroissant/panelmirror/internal/repository/sqlite"
)

// Open returns a migrated database in t's temp dir and a Store over it.
func Open(t testing.TB) (*sql.DB, *sqlite.Store) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)&_txlock=immediate",
		filepath.Join(t.TempDir(), "mirror.db"))
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Ping())
	require.NoError(t, migrations.Up(db))
	return db, sqlite.NewStore(db)
}
