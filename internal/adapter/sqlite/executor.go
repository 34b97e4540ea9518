package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/causewaydb/causeway/internal/core/domain"
	"github.com/causewaydb/causeway/internal/core/port"
)

// Executor runs validated statements against a per-request connection with a
// row ceiling and a statement timeout.
type Executor struct {
	conns        connSource
	defaultLimit int
	maxLimit     int
	queryTimeout time.Duration
}

func NewExecutor(conns connSource, defaultLimit, maxLimit int, queryTimeout time.Duration) *Executor {
	return &Executor{
		conns:        conns,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		queryTimeout: queryTimeout,
	}
}

func (e *Executor) Execute(ctx context.Context, req port.QueryRequest) (*port.QueryResult, error) {
	limit, err := e.resolveLimit(req.RowLimit)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	db, release, err := e.conns.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	// Params bind positionally through the driver. This is the only path by
	// which user-supplied values reach the engine.
	rows, err := db.QueryContext(ctx, req.SQL, req.Params...)
	if err != nil {
		return nil, normalizeError(ctx, err)
	}
	defer rows.Close()

	result, err := collectRows(rows, limit)
	if err != nil {
		return nil, normalizeError(ctx, err)
	}
	return result, nil
}

// resolveLimit maps the requested row limit onto the configured bounds:
// zero means "use the default", negatives are rejected, and anything above
// the ceiling is clamped rather than rejected.
func (e *Executor) resolveLimit(requested int) (int, error) {
	switch {
	case requested == 0:
		return e.defaultLimit, nil
	case requested < 0:
		return 0, fmt.Errorf("%w: got %d", domain.ErrInvalidRowLimit, requested)
	case requested > e.maxLimit:
		return e.maxLimit, nil
	}
	return requested, nil
}

// normalizeError maps engine failures onto the error taxonomy. Context
// expiry becomes a timeout; everything else keeps the driver's one-line
// message, which names tables and syntax positions but not paths or traces.
func normalizeError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: statement exceeded the configured timeout", domain.ErrQueryTimeout)
	}
	return fmt.Errorf("%w: %s", domain.ErrQueryExecution, sanitizeMessage(err))
}

// sanitizeMessage keeps the first line of the driver message and drops the
// rest, so wrapped dumps and traces never reach the caller.
func sanitizeMessage(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}
