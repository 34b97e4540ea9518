package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestDB creates a SQLite file with a small known schema and returns its
// path. The transactions table uses AUTOINCREMENT so the engine maintains
// its internal sqlite_sequence table alongside the user tables.
func newTestDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()

	stmts := []string{
		`CREATE TABLE stocks (
			id INTEGER PRIMARY KEY,
			symbol TEXT NOT NULL,
			price REAL DEFAULT 0
		)`,
		`CREATE TABLE transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stock_id INTEGER NOT NULL,
			qty INTEGER
		)`,
		`INSERT INTO stocks (id, symbol, price) VALUES (1, 'AAPL', 190.5)`,
		`INSERT INTO stocks (id, symbol, price) VALUES (2, 'MSFT', 410.0)`,
		`INSERT INTO stocks (id, symbol, price) VALUES (3, 'GOOG', 175.25)`,
		`INSERT INTO stocks (id, symbol, price) VALUES (4, 'AMZN', 185.0)`,
		`INSERT INTO stocks (id, symbol, price) VALUES (5, 'TSLA', 250.75)`,
		`INSERT INTO transactions (stock_id, qty) VALUES (1, 10)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "statement: %s", stmt)
	}
	return path
}
