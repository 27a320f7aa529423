package security

import (
	"errors"
	"strings"
)

var (
	ErrReadOnly        = errors.New("database is open read-only")
	ErrMultipleQueries = errors.New("multi-statement queries are not allowed")
	ErrEmptyQuery      = errors.New("query is empty")
)

// readStatements are the leading keywords of statements that cannot write.
var readStatements = []string{"SELECT", "WITH", "EXPLAIN", "VALUES", "PRAGMA"}

// writeKeywords may not appear anywhere in a read-only statement. A WITH
// clause can front an INSERT, UPDATE or DELETE. REPLACE is left out since
// replace() is a scalar function; databases opened read-only still refuse
// the write.
var writeKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"ATTACH", "DETACH", "VACUUM", "REINDEX", "ANALYZE",
}

// CheckReadOnly rejects statements that could modify the database:
//  1. Only one statement; a trailing semicolon is allowed.
//  2. It starts with SELECT, WITH, EXPLAIN, VALUES or PRAGMA.
//  3. PRAGMA may only read: no assignment, and the call form only for
//     pragmas whose argument names what to look up.
//  4. No write keyword outside string literals.
func CheckReadOnly(query string) error {
	q := strings.ToUpper(stripLiterals(stripComments(query)))
	q = strings.TrimSpace(q)
	q = strings.TrimRight(q, "; \t\r\n")
	if q == "" {
		return ErrEmptyQuery
	}

	// Rule 1
	if strings.Contains(q, ";") {
		return ErrMultipleQueries
	}

	// Rule 2
	first := leadingKeyword(q)
	allowed := false
	for _, kw := range readStatements {
		if first == kw {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrReadOnly
	}

	// Rule 3
	if first == "PRAGMA" && !readOnlyPragma(q) {
		return ErrReadOnly
	}

	// Rule 4
	for _, word := range writeKeywords {
		if containsWord(q, word) {
			return ErrReadOnly
		}
	}
	return nil
}

// lookupPragmas take an argument in the call form without changing anything.
var lookupPragmas = map[string]bool{
	"TABLE_INFO": true, "TABLE_XINFO": true, "TABLE_LIST": true,
	"INDEX_LIST": true, "INDEX_INFO": true, "INDEX_XINFO": true,
	"FOREIGN_KEY_LIST": true, "FOREIGN_KEY_CHECK": true,
	"INTEGRITY_CHECK": true, "QUICK_CHECK": true,
}

// readOnlyPragma reports whether an uppercased PRAGMA statement only reads.
// "PRAGMA journal_mode(DELETE)" sets the value just like "= DELETE" does.
func readOnlyPragma(q string) bool {
	if strings.Contains(q, "=") {
		return false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(q, "PRAGMA"))
	name, args := splitPragma(rest)
	if dot := strings.LastIndexByte(name, '.'); dot != -1 {
		name = name[dot+1:]
	}
	name = strings.Trim(name, "\"`[]")
	if strings.HasPrefix(strings.TrimSpace(args), "(") {
		return lookupPragmas[name]
	}
	return true
}

// splitPragma cuts "schema.name(args)" into the qualified name and the rest.
func splitPragma(s string) (name, rest string) {
	end := strings.IndexFunc(s, func(r rune) bool {
		return r == '(' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if end == -1 {
		return s, ""
	}
	return s[:end], s[end:]
}

func leadingKeyword(q string) string {
	end := strings.IndexFunc(q, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z')
	})
	if end == -1 {
		return q
	}
	return q[:end]
}

// stripComments blanks out -- and /* */ comments.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
		case s[i] == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end == -1 {
				i = len(s)
			} else {
				i += end + 3
			}
			b.WriteByte(' ')
		case s[i] == '\'':
			// Copy the literal so comment markers inside it survive.
			j := i + 1
			for j < len(s) {
				if s[j] == '\'' {
					if j+1 < len(s) && s[j+1] == '\'' {
						j += 2
						continue
					}
					break
				}
				j++
			}
			if j >= len(s) {
				j = len(s) - 1
			}
			b.WriteString(s[i : j+1])
			i = j
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// stripLiterals replaces the contents of single-quoted literals with
// nothing, keeping the quotes. A doubled quote is an escape, not the end.
func stripLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	in := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !in {
			b.WriteByte(c)
			if c == '\'' {
				in = true
			}
			continue
		}
		if c == '\'' {
			if i+1 < len(s) && s[i+1] == '\'' {
				i++
				continue
			}
			in = false
			b.WriteByte(c)
		}
	}
	return b.String()
}

// containsWord checks if the word exists in s as a standalone word.
// It assumes s is already uppercase.
func containsWord(s, word string) bool {
	if !strings.Contains(s, word) {
		return false
	}

	// Match "DELETE" but not "IS_DELETED".
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i == -1 {
			return false
		}
		start := idx + i
		end := start + len(word)

		isStartValid := start == 0 || isBoundary(s[start-1])
		isEndValid := end == len(s) || isBoundary(s[end])
		if isStartValid && isEndValid {
			return true
		}

		idx = start + 1
	}
}

func isBoundary(b byte) bool {
	// Standard SQL delimiters
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' ||
		b == '(' || b == ')' || b == ',' || b == '=' ||
		b == '<' || b == '>' || b == '`' || b == '.' ||
		b == '"' || b == '[' || b == ']' || b == ';'
}
