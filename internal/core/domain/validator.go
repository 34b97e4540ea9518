package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// mutatingVerbs are the statement verbs that can change data when smuggled
// into the top level of a WITH clause (WITH t AS (...) INSERT ...).
var mutatingVerbs = map[string]bool{
	"INSERT":  true,
	"UPDATE":  true,
	"DELETE":  true,
	"REPLACE": true,
	"MERGE":   true,
}

// QueryValidator enforces the read-only policy on untrusted SQL text. It is
// purely lexical: nothing it accepts has touched a database connection yet.
type QueryValidator struct{}

func NewQueryValidator() *QueryValidator {
	return &QueryValidator{}
}

// Validate rejects anything that is not a single read-only statement. The
// multi-statement check runs first and independently of the classification,
// so a stacked `SELECT 1; DROP TABLE x` fails on the stacking alone.
func (v *QueryValidator) Validate(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return ErrEmptyQuery
	}
	if err := v.checkSingleStatement(sql); err != nil {
		return err
	}
	return v.classify(sql)
}

// checkSingleStatement counts statements separated by semicolons outside
// quotes and comments. Trailing semicolons and segments that hold only
// whitespace or comments do not count.
func (v *QueryValidator) checkSingleStatement(sql string) error {
	nonEmpty := 0
	for _, segment := range splitStatements(sql) {
		if strings.TrimSpace(stripComments(segment)) != "" {
			nonEmpty++
		}
	}
	if nonEmpty > 1 {
		return fmt.Errorf("%w: found %d statements", ErrMultiStatement, nonEmpty)
	}
	return nil
}

// classify checks the statement's leading keyword against the read-only
// allowlist. WITH statements get a second pass over their top-level keywords
// to close the CTE-wrapped mutation bypass.
func (v *QueryValidator) classify(sql string) error {
	keyword := leadingKeyword(sql)
	switch keyword {
	case "":
		return ErrEmptyQuery
	case "SELECT":
		return nil
	case "WITH":
	default:
		return fmt.Errorf("%w: statement begins with %s", ErrNonReadOnly, keyword)
	}

	hasSelect := false
	for _, word := range topLevelWords(sql) {
		if mutatingVerbs[word] {
			return fmt.Errorf("%w: WITH clause drives %s", ErrNonReadOnly, word)
		}
		if word == "SELECT" {
			hasSelect = true
		}
	}
	if !hasSelect {
		return fmt.Errorf("%w: WITH clause does not resolve to a SELECT", ErrNonReadOnly)
	}
	return nil
}

// leadingKeyword returns the first bare word of sql, uppercased, skipping
// leading whitespace and comments.
func leadingKeyword(sql string) string {
	s := strings.TrimSpace(stripComments(sql))
	end := 0
	for end < len(s) && isWordByte(s[end]) {
		end++
	}
	return strings.ToUpper(s[:end])
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier checks that name is safe to embed in a catalog query.
// Table names cannot be parameter-bound in PRAGMA statements, so anything
// outside letters, digits, and underscores is rejected outright.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}
