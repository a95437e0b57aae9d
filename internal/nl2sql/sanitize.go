package nl2sql

import "strings"

// SanitizeStatement reduces a raw model response to a single SQL statement:
// markdown fences are stripped, SQL comments are removed, and everything
// past the first top-level statement terminator is discarded. The scanner
// is quote- and comment-aware, not a byte search, so terminators inside
// string literals or quoted identifiers survive. It is still a heuristic,
// not a parser: a side effect the model writes into the one kept statement
// is not detected here.
func SanitizeStatement(raw string) string {
	s := stripFences(raw)
	var b strings.Builder

	var closing byte
	i := 0
	for i < len(s) {
		c := s[i]

		if closing != 0 {
			b.WriteByte(c)
			if c == closing {
				// Doubled closers are escapes, not terminators.
				if i+1 < len(s) && s[i+1] == closing {
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				closing = 0
			}
			i++
			continue
		}

		switch {
		case c == '\'' || c == '"' || c == '`':
			closing = c
			b.WriteByte(c)
			i++
		case c == '[':
			closing = ']'
			b.WriteByte(c)
			i++
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			i = skipLineComment(s, i)
			b.WriteByte(' ')
		case c == '#':
			i = skipLineComment(s, i)
			b.WriteByte(' ')
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			i = skipBlockComment(s, i)
			b.WriteByte(' ')
		case c == ';':
			return strings.TrimSpace(b.String())
		default:
			b.WriteByte(c)
			i++
		}
	}
	return strings.TrimSpace(b.String())
}

func skipLineComment(s string, i int) int {
	for i < len(s) && s[i] != '\n' {
		i++
	}
	return i
}

func skipBlockComment(s string, i int) int {
	i += 2
	for i+1 < len(s) {
		if s[i] == '*' && s[i+1] == '/' {
			return i + 2
		}
		i++
	}
	return len(s)
}

func stripFences(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
