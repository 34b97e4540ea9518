package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/causewaydb/causeway/internal/audit"
	"github.com/causewaydb/causeway/internal/core/domain"
	"github.com/causewaydb/causeway/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- mock QueryExecutor ---

type mockExecutor struct {
	executeCalled bool
	lastReq       port.QueryRequest
	result        *port.QueryResult
	err           error
}

func (m *mockExecutor) Execute(_ context.Context, req port.QueryRequest) (*port.QueryResult, error) {
	m.executeCalled = true
	m.lastReq = req
	return m.result, m.err
}

func newService(exec *mockExecutor) *QueryService {
	return NewQueryService(domain.NewQueryValidator(), exec, audit.NoopAuditor{}, testLogger(), nil, nil)
}

// --- tests ---

func TestQueryService_ValidSelect(t *testing.T) {
	exec := &mockExecutor{
		result: &port.QueryResult{Rows: []map[string]any{{"id": int64(1), "name": "alice"}}},
	}
	svc := newService(exec)

	result, err := svc.Execute(context.Background(), port.QueryRequest{SQL: "SELECT id, name FROM users"})
	require.NoError(t, err)
	assert.True(t, exec.executeCalled)
	assert.Equal(t, "SELECT id, name FROM users", exec.lastReq.SQL)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "alice", result.Rows[0]["name"])
}

func TestQueryService_PassesParamsAndLimit(t *testing.T) {
	exec := &mockExecutor{result: &port.QueryResult{}}
	svc := newService(exec)

	_, err := svc.Execute(context.Background(), port.QueryRequest{
		SQL:      "SELECT * FROM users WHERE id = ?",
		Params:   []any{int64(7)},
		RowLimit: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(7)}, exec.lastReq.Params)
	assert.Equal(t, 50, exec.lastReq.RowLimit)
}

func TestQueryService_RejectsMutations(t *testing.T) {
	for _, sql := range []string{
		"INSERT INTO users (name) VALUES ('bob')",
		"UPDATE users SET name = 'x'",
		"DELETE FROM users WHERE id = 1",
		"DROP TABLE users",
		"PRAGMA journal_mode = DELETE",
	} {
		exec := &mockExecutor{}
		svc := newService(exec)

		_, err := svc.Execute(context.Background(), port.QueryRequest{SQL: sql})
		require.Error(t, err, "query: %s", sql)
		assert.ErrorIs(t, err, domain.ErrNonReadOnly)
		assert.False(t, exec.executeCalled, "executor must not run for rejected queries")
	}
}

func TestQueryService_RejectsStacking(t *testing.T) {
	exec := &mockExecutor{}
	svc := newService(exec)

	_, err := svc.Execute(context.Background(), port.QueryRequest{SQL: "SELECT 1; DROP TABLE users"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMultiStatement)
	assert.False(t, exec.executeCalled)
}

func TestQueryService_ExecutorError(t *testing.T) {
	exec := &mockExecutor{err: fmt.Errorf("%w: no such table: users", domain.ErrQueryExecution)}
	svc := newService(exec)

	_, err := svc.Execute(context.Background(), port.QueryRequest{SQL: "SELECT 1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQueryExecution)
	assert.Contains(t, err.Error(), "no such table")
}

func TestQueryService_EmptyQuery(t *testing.T) {
	exec := &mockExecutor{}
	svc := newService(exec)

	_, err := svc.Execute(context.Background(), port.QueryRequest{SQL: "   "})
	require.Error(t, err)
	assert.False(t, exec.executeCalled)
}

// --- recording auditor ---

type recordingAuditor struct {
	entries []port.AuditEntry
}

func (r *recordingAuditor) Record(_ context.Context, entry port.AuditEntry) {
	r.entries = append(r.entries, entry)
}

func (r *recordingAuditor) Close() error { return nil }

func TestQueryService_AuditsExecution(t *testing.T) {
	exec := &mockExecutor{
		result: &port.QueryResult{Rows: []map[string]any{{"n": int64(1)}}, Truncated: true},
	}
	auditor := &recordingAuditor{}
	svc := NewQueryService(domain.NewQueryValidator(), exec, auditor, testLogger(), nil, nil)

	ctx := WithToolName(context.Background(), "read_query")
	_, err := svc.Execute(ctx, port.QueryRequest{SQL: "SELECT 1"})
	require.NoError(t, err)

	require.Len(t, auditor.entries, 1)
	entry := auditor.entries[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "read_query", entry.Tool)
	assert.Equal(t, "SELECT 1", entry.SQL)
	assert.Equal(t, 1, entry.RowsReturned)
	assert.True(t, entry.Truncated)
	assert.NoError(t, entry.Err)
}

func TestQueryService_NoAuditForRejectedQueries(t *testing.T) {
	auditor := &recordingAuditor{}
	svc := NewQueryService(domain.NewQueryValidator(), &mockExecutor{}, auditor, testLogger(), nil, nil)

	_, err := svc.Execute(context.Background(), port.QueryRequest{SQL: "DROP TABLE users"})
	require.Error(t, err)
	assert.Empty(t, auditor.entries, "rejected queries never reach the execution audit trail")
}
