package testutil

import (
	"database/sql"
	"embed"
	"io/fs"
	"sort"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

//go:embed migrations/*.sql
var testMigrationsFS embed.FS

// NewTestDB creates an in-memory SQLite database with every migration
// applied in filename order, matching the schema the server runs against.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on&_journal_mode=WAL")
	require.NoError(t, err)

	names, err := fs.Glob(testMigrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	sort.Strings(names)
	require.NotEmpty(t, names, "no embedded migrations found")

	for _, name := range names {
		ddl, err := testMigrationsFS.ReadFile(name)
		require.NoError(t, err, "failed to read migration %s", name)
		_, err = db.Exec(string(ddl))
		require.NoError(t, err, "failed to apply migration %s", name)
	}

	return db
}

// MustClose closes a resource and fails the test on error.
func MustClose(t *testing.T, closer interface{ Close() error }) {
	t.Helper()
	require.NoError(t, closer.Close())
}
