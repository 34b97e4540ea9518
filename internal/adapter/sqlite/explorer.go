package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/causewaydb/causeway/internal/core/domain"
	"github.com/causewaydb/causeway/internal/core/port"
)

// queryListTables has no ORDER BY: sqlite_master rows come back in
// declaration order, which is the order callers see. The sqlite_% prefix
// is reserved for engine-internal tables (sqlite_sequence and friends).
const queryListTables = `
	SELECT name FROM sqlite_master
	WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`

// Explorer reads table and column metadata from the sqlite_master catalog.
type Explorer struct {
	conns connSource
}

func NewExplorer(conns connSource) *Explorer {
	return &Explorer{conns: conns}
}

func (e *Explorer) ListTables(ctx context.Context) ([]string, error) {
	db, release, err := e.conns.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return listTables(ctx, db)
}

func listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, queryListTables)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrQueryExecution, sanitizeMessage(err))
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating table names: %w", err)
	}
	return names, nil
}

// DescribeTable validates the identifier before anything touches the
// database: PRAGMA arguments cannot be parameter-bound, so the name itself
// is an injection surface.
func (e *Explorer) DescribeTable(ctx context.Context, name string) (*port.TableDescriptor, error) {
	if err := domain.ValidateIdentifier(name); err != nil {
		return nil, err
	}

	db, release, err := e.conns.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	names, err := listTables(ctx, db)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(names, name) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTable, name)
	}

	// Safe to embed: the name passed ValidateIdentifier and exists in the
	// catalog. Quoting guards against reserved words.
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(name)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrQueryExecution, sanitizeMessage(err))
	}
	defer rows.Close()

	desc := &port.TableDescriptor{Name: name}
	for rows.Next() {
		// table_info columns: cid, name, type, notnull, dflt_value, pk
		var cid, notNull, pk int
		var colName, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column metadata: %w", err)
		}

		col := port.ColumnDescriptor{
			Name:         colName,
			DeclaredType: colType,
			Nullable:     notNull == 0,
			IsPrimaryKey: pk > 0,
		}
		if dflt.Valid {
			col.DefaultValue = &dflt.String
		}
		desc.Columns = append(desc.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating column metadata: %w", err)
	}
	return desc, nil
}

// quoteIdent quotes a SQL identifier to prevent injection.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
