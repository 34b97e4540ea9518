package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/causewaydb/causeway/internal/core/port"
)

// collectRows materializes at most limit rows into maps keyed by column
// name, then probes one row further to learn whether the limit truncated
// the result.
func collectRows(rows *sql.Rows, limit int) (*port.QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading column names: %w", err)
	}

	result := &port.QueryResult{Rows: []map[string]any{}}
	for len(result.Rows) < limit && rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, name := range cols {
			row[name] = normalizeValue(vals[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if len(result.Rows) == limit && rows.Next() {
		result.Truncated = true
	}
	return result, nil
}

// normalizeValue keeps results within the scalar set the wire format
// supports: nil, int64, float64, string, []byte. Byte slices are copied
// because the driver may reuse its buffer between rows.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return append([]byte(nil), b...)
	}
	return v
}
