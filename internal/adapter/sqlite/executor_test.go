package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/causewaydb/causeway/internal/core/domain"
	"github.com/causewaydb/causeway/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockConns serves a pre-built handle, for wiring sqlmock into the executor.
type mockConns struct {
	db *sql.DB
}

func (m mockConns) Acquire(context.Context) (*sql.DB, func(), error) {
	return m.db, func() {}, nil
}

func newExecutor(t *testing.T) *Executor {
	t.Helper()
	return NewExecutor(NewManager(newTestDB(t)), 1000, 5000, 5*time.Second)
}

func TestExecutor_SelectAll(t *testing.T) {
	exec := newExecutor(t)

	result, err := exec.Execute(context.Background(), port.QueryRequest{
		SQL: "SELECT id, symbol, price FROM stocks",
	})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 5)
	assert.False(t, result.Truncated)
	assert.Equal(t, "AAPL", result.Rows[0]["symbol"])
	assert.Equal(t, int64(1), result.Rows[0]["id"])
	assert.Equal(t, 190.5, result.Rows[0]["price"])
}

func TestExecutor_PositionalParams(t *testing.T) {
	exec := newExecutor(t)

	result, err := exec.Execute(context.Background(), port.QueryRequest{
		SQL:    "SELECT symbol FROM stocks WHERE price > ? AND symbol != ?",
		Params: []any{200.0, "TSLA"},
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "MSFT", result.Rows[0]["symbol"])
}

func TestExecutor_RowLimitTruncates(t *testing.T) {
	exec := newExecutor(t)

	result, err := exec.Execute(context.Background(), port.QueryRequest{
		SQL:      "SELECT id FROM stocks ORDER BY id",
		RowLimit: 3,
	})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 3)
	assert.True(t, result.Truncated)
}

func TestExecutor_RowLimitExact(t *testing.T) {
	exec := newExecutor(t)

	result, err := exec.Execute(context.Background(), port.QueryRequest{
		SQL:      "SELECT id FROM stocks",
		RowLimit: 5,
	})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 5)
	assert.False(t, result.Truncated)
}

func TestExecutor_NegativeRowLimit(t *testing.T) {
	exec := newExecutor(t)

	_, err := exec.Execute(context.Background(), port.QueryRequest{
		SQL:      "SELECT 1",
		RowLimit: -5,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidRowLimit)
}

func TestExecutor_RowLimitClampedToMax(t *testing.T) {
	exec := NewExecutor(NewManager(newTestDB(t)), 1000, 3, 5*time.Second)

	result, err := exec.Execute(context.Background(), port.QueryRequest{
		SQL:      "SELECT id FROM stocks",
		RowLimit: 10_000_000,
	})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 3)
	assert.True(t, result.Truncated)
}

func TestExecutor_DefaultRowLimit(t *testing.T) {
	exec := NewExecutor(NewManager(newTestDB(t)), 2, 5000, 5*time.Second)

	result, err := exec.Execute(context.Background(), port.QueryRequest{
		SQL: "SELECT id FROM stocks",
	})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Truncated)
}

func TestExecutor_EngineErrorNormalized(t *testing.T) {
	exec := newExecutor(t)

	_, err := exec.Execute(context.Background(), port.QueryRequest{
		SQL: "SELECT * FROM no_such_table",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQueryExecution)
	assert.Contains(t, err.Error(), "no_such_table")
}

func TestExecutor_EmptyResult(t *testing.T) {
	exec := newExecutor(t)

	result, err := exec.Execute(context.Background(), port.QueryRequest{
		SQL: "SELECT * FROM stocks WHERE id > 1000",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.False(t, result.Truncated)
}

func TestExecutor_Idempotent(t *testing.T) {
	exec := newExecutor(t)
	req := port.QueryRequest{SQL: "SELECT id, symbol FROM stocks ORDER BY id"}

	first, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	second, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExecutor_Timeout(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT 1").
		WillDelayFor(200 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exec := NewExecutor(mockConns{db: db}, 1000, 5000, 10*time.Millisecond)
	_, err = exec.Execute(context.Background(), port.QueryRequest{SQL: "SELECT 1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQueryTimeout)
}

func TestExecutor_SanitizesMultilineDriverError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT 1").
		WillReturnError(assert.AnError)

	exec := NewExecutor(mockConns{db: db}, 1000, 5000, time.Second)
	_, err = exec.Execute(context.Background(), port.QueryRequest{SQL: "SELECT 1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQueryExecution)
	assert.NotContains(t, err.Error(), "\n")
}
