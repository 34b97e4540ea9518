package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{"no semicolon", "SELECT 1", []string{"SELECT 1"}},
		{"trailing semicolon", "SELECT 1;", []string{"SELECT 1", ""}},
		{"two statements", "SELECT 1; SELECT 2", []string{"SELECT 1", " SELECT 2"}},
		{"semicolon in string", "SELECT ';'", []string{"SELECT ';'"}},
		{"semicolon in identifier", `SELECT "a;b"`, []string{`SELECT "a;b"`}},
		{"semicolon in line comment", "SELECT 1 -- x; y\n", []string{"SELECT 1 -- x; y\n"}},
		{"semicolon in block comment", "SELECT 1 /* a;b */", []string{"SELECT 1 /* a;b */"}},
		{"escaped quote then real boundary", "SELECT 'it''s'; SELECT 2", []string{"SELECT 'it''s'", " SELECT 2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitStatements(tt.sql))
		})
	}
}

func TestStripComments(t *testing.T) {
	assert.Equal(t, "SELECT 1  ", stripComments("SELECT 1 /* gone */"))
	assert.Equal(t, "SELECT '-- not a comment'", stripComments("SELECT '-- not a comment'"))
	assert.Equal(t, "SELECT 1  FROM t", stripComments("SELECT 1 /* x */FROM t"))
}

func TestTopLevelWords(t *testing.T) {
	words := topLevelWords("WITH t AS (SELECT 1 FROM x) SELECT * FROM t")
	assert.Equal(t, []string{"WITH", "T", "AS", "SELECT", "FROM", "T"}, words)

	words = topLevelWords("WITH t AS (SELECT 1) INSERT INTO x VALUES (1)")
	assert.Contains(t, words, "INSERT")
	assert.NotContains(t, words, "VALUES(1)")
}
