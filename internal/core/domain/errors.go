package domain

import "errors"

var (
	ErrEmptyQuery        = errors.New("empty query")
	ErrNonReadOnly       = errors.New("only SELECT statements are allowed")
	ErrMultiStatement    = errors.New("multiple statements are not allowed")
	ErrInvalidRowLimit   = errors.New("row limit must be a positive integer")
	ErrInvalidIdentifier = errors.New("invalid table identifier")
	ErrUnknownTable      = errors.New("unknown table")
	ErrConnection        = errors.New("cannot open database")
	ErrQueryExecution    = errors.New("query execution failed")
	ErrQueryTimeout      = errors.New("query timed out")
)

// Kind returns the machine-readable taxonomy name for err so callers can
// branch on the failure class without parsing message text. Wrapped errors
// resolve through errors.Is.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrMultiStatement):
		return "MultipleStatements"
	case errors.Is(err, ErrNonReadOnly), errors.Is(err, ErrEmptyQuery):
		return "NonReadOnlyStatement"
	case errors.Is(err, ErrInvalidRowLimit):
		return "InvalidRowLimit"
	case errors.Is(err, ErrInvalidIdentifier):
		return "InvalidIdentifier"
	case errors.Is(err, ErrUnknownTable):
		return "UnknownTable"
	case errors.Is(err, ErrConnection):
		return "ConnectionError"
	case errors.Is(err, ErrQueryTimeout):
		return "QueryTimeout"
	default:
		return "QueryExecutionError"
	}
}
