package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/causewaydb/causeway/internal/core/domain"
	_ "modernc.org/sqlite"
)

// connSource hands out one database handle per request. Implemented by
// Manager; tests substitute their own.
type connSource interface {
	Acquire(ctx context.Context) (*sql.DB, func(), error)
}

// Manager opens a fresh read-only handle for every request. Handles are
// never shared or reused across requests; no transaction spans tool calls.
type Manager struct {
	dsn string
}

func NewManager(dbPath string) *Manager {
	return &Manager{dsn: readOnlyDSN(dbPath)}
}

// readOnlyDSN pins mode=ro unless the caller already set a mode.
func readOnlyDSN(path string) string {
	if !strings.Contains(path, "?") {
		return path + "?mode=ro"
	}
	if !strings.Contains(path, "mode=") {
		return path + "&mode=ro"
	}
	return path
}

// Acquire opens the database file and verifies it is a readable SQLite
// database, not merely an existing path. The release func closes the handle
// and must be deferred by the caller on every exit path.
func (m *Manager) Acquire(ctx context.Context) (*sql.DB, func(), error) {
	db, err := sql.Open("sqlite", m.dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid database source", domain.ErrConnection)
	}
	db.SetMaxOpenConns(1)

	release := func() { _ = db.Close() }

	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		release()
		return nil, nil, fmt.Errorf("%w: database file is missing or not readable", domain.ErrConnection)
	}

	// Reading schema_version forces the driver through the file header, so
	// a corrupt or non-database file fails here instead of on the first
	// user query.
	var schemaVersion int
	if err := db.QueryRowContext(ctx, "PRAGMA schema_version").Scan(&schemaVersion); err != nil {
		release()
		return nil, nil, fmt.Errorf("%w: file is not a valid SQLite database", domain.ErrConnection)
	}

	return db, release, nil
}
