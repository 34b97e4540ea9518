package port

import "context"

// AuditEntry represents a single auditable query event.
type AuditEntry struct {
	ID           string
	Tool         string
	SQL          string
	RowsReturned int
	Truncated    bool
	DurationMS   int64
	Err          error
}

// QueryAuditor records query audit events.
type QueryAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
