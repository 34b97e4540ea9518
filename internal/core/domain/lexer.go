package domain

import "strings"

// lexState identifies which lexical region of a SQL text the scanner is in.
// The states are mutually exclusive: a quote character inside a comment does
// not open a string, and a semicolon inside any non-bare state is data, not
// a statement boundary.
type lexState int

const (
	stateBare lexState = iota
	stateSingleQuote  // '...' string literal
	stateDoubleQuote  // "..." quoted identifier
	stateBacktick     // `...` quoted identifier (SQLite compatibility)
	stateBracket      // [...] quoted identifier (SQLite compatibility)
	stateLineComment  // -- to end of line
	stateBlockComment // /* ... */
)

// scanBare walks sql byte by byte and calls emit for every byte that sits
// outside all quoted and commented regions. A doubled quote character inside
// a single- or double-quoted region escapes the quote and does not close it.
func scanBare(sql string, emit func(pos int, c byte)) {
	state := stateBare
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch state {
		case stateBare:
			switch {
			case c == '\'':
				state = stateSingleQuote
			case c == '"':
				state = stateDoubleQuote
			case c == '`':
				state = stateBacktick
			case c == '[':
				state = stateBracket
			case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
				state = stateLineComment
				i++
			case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
				state = stateBlockComment
				i++
			default:
				emit(i, c)
			}
		case stateSingleQuote:
			if c == '\'' {
				if i+1 < len(sql) && sql[i+1] == '\'' {
					i++
				} else {
					state = stateBare
				}
			}
		case stateDoubleQuote:
			if c == '"' {
				if i+1 < len(sql) && sql[i+1] == '"' {
					i++
				} else {
					state = stateBare
				}
			}
		case stateBacktick:
			if c == '`' {
				state = stateBare
			}
		case stateBracket:
			if c == ']' {
				state = stateBare
			}
		case stateLineComment:
			if c == '\n' {
				state = stateBare
			}
		case stateBlockComment:
			if c == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				state = stateBare
				i++
			}
		}
	}
}

// splitStatements cuts sql at every semicolon found outside quotes and
// comments. The semicolons themselves are dropped. A bare semicolon always
// resets the scanner to the bare state, so each segment can be rescanned
// independently.
func splitStatements(sql string) []string {
	var cuts []int
	scanBare(sql, func(pos int, c byte) {
		if c == ';' {
			cuts = append(cuts, pos)
		}
	})

	segments := make([]string, 0, len(cuts)+1)
	start := 0
	for _, cut := range cuts {
		segments = append(segments, sql[start:cut])
		start = cut + 1
	}
	return append(segments, sql[start:])
}

// stripComments replaces comment regions with a single space while keeping
// quoted regions (and their contents) intact.
func stripComments(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))
	state := stateBare
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch state {
		case stateBare:
			switch {
			case c == '\'':
				state = stateSingleQuote
			case c == '"':
				state = stateDoubleQuote
			case c == '`':
				state = stateBacktick
			case c == '[':
				state = stateBracket
			case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
				state = stateLineComment
				i++
				continue
			case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
				state = stateBlockComment
				i++
				continue
			}
			b.WriteByte(c)
		case stateSingleQuote:
			if c == '\'' {
				if i+1 < len(sql) && sql[i+1] == '\'' {
					b.WriteString("''")
					i++
					continue
				}
				state = stateBare
			}
			b.WriteByte(c)
		case stateDoubleQuote:
			if c == '"' {
				if i+1 < len(sql) && sql[i+1] == '"' {
					b.WriteString(`""`)
					i++
					continue
				}
				state = stateBare
			}
			b.WriteByte(c)
		case stateBacktick:
			if c == '`' {
				state = stateBare
			}
			b.WriteByte(c)
		case stateBracket:
			if c == ']' {
				state = stateBare
			}
			b.WriteByte(c)
		case stateLineComment:
			if c == '\n' {
				state = stateBare
				b.WriteByte(' ')
			}
		case stateBlockComment:
			if c == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				state = stateBare
				b.WriteByte(' ')
				i++
			}
		}
	}
	return b.String()
}

// topLevelWords returns the uppercased keywords of sql that appear at
// parenthesis depth zero, outside quotes and comments. For a WITH statement
// the CTE bodies live inside parentheses, so the statement's driving verb
// is always among these words.
func topLevelWords(sql string) []string {
	var words []string
	var current []byte
	depth := 0

	flush := func() {
		if len(current) > 0 {
			words = append(words, strings.ToUpper(string(current)))
			current = current[:0]
		}
	}

	scanBare(sql, func(_ int, c byte) {
		switch {
		case c == '(':
			flush()
			depth++
		case c == ')':
			flush()
			if depth > 0 {
				depth--
			}
		case depth > 0:
			// inside a CTE body or subquery
		case isWordByte(c):
			current = append(current, c)
		default:
			flush()
		}
	})
	flush()
	return words
}

func isWordByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
