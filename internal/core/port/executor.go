package port

import "context"

// QueryRequest is a single validated read request. Params bind positionally
// through the driver; they are never interpolated into SQL. RowLimit of zero
// means "apply the configured default".
type QueryRequest struct {
	SQL      string
	Params   []any
	RowLimit int
}

// QueryResult holds the materialized rows. Every row carries the same column
// set as every other row in the result. Truncated reports whether the row
// limit cut the result short.
type QueryResult struct {
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated"`
}

// QueryExecutor runs a validated read-only statement with bounded resource
// consumption.
type QueryExecutor interface {
	Execute(ctx context.Context, req QueryRequest) (*QueryResult, error)
}
