package schemaengine

import (
	"strings"

	"github.com/allisson/backydb/internal/errors"
)

// SplitStatementsPostgres breaks sql into individual statements for the
// PostgresAdapter. It cannot reuse SplitStatements (§4.4's generic
// splitter), which hands text to the TiDB parser's MySQL dialect: this
// adapter's own Extract emits double-quoted identifiers
// (postgres_adapter.go's `CREATE TABLE %q`/`CREATE VIEW %q`) and
// `$$`-dollar-quoted function/trigger bodies from
// pg_get_functiondef/pg_get_triggerdef, neither of which the MySQL grammar
// accepts. This is a lexical scanner, not a full parser: it tracks quoting
// state just well enough to find the semicolons that actually terminate a
// statement, leaving ones inside a string, a quoted identifier, a dollar-
// quoted body, or a comment alone.
func SplitStatementsPostgres(sql string) ([]string, error) {
	var (
		stmts      []string
		cur        strings.Builder
		runes      = []rune(sql)
		n          = len(runes)
		inSingle   bool
		inDouble   bool
		inDollar   bool   // inside a dollar-quoted body (tag may legitimately be "")
		dollarTag  string // the opening tag's text, valid only while inDollar
		inLineCmt  bool
		inBlockCmt bool
	)

	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < n; i++ {
		r := runes[i]

		if inLineCmt {
			cur.WriteRune(r)
			if r == '\n' {
				inLineCmt = false
			}
			continue
		}
		if inBlockCmt {
			cur.WriteRune(r)
			if r == '/' && i > 0 && runes[i-1] == '*' {
				inBlockCmt = false
			}
			continue
		}
		if inDollar {
			cur.WriteRune(r)
			if r == '$' {
				if tag, ok := matchDollarTag(runes, i); ok && tag == dollarTag {
					cur.WriteString(string(runes[i+1 : i+1+len(tag)+1]))
					i += len(tag) + 1
					inDollar = false
				}
			}
			continue
		}
		if inSingle {
			cur.WriteRune(r)
			if r == '\'' {
				if i+1 < n && runes[i+1] == '\'' {
					cur.WriteRune(runes[i+1])
					i++
					continue
				}
				inSingle = false
			}
			continue
		}
		if inDouble {
			cur.WriteRune(r)
			if r == '"' {
				if i+1 < n && runes[i+1] == '"' {
					cur.WriteRune(runes[i+1])
					i++
					continue
				}
				inDouble = false
			}
			continue
		}

		switch {
		case r == '-' && i+1 < n && runes[i+1] == '-':
			inLineCmt = true
			cur.WriteRune(r)
		case r == '/' && i+1 < n && runes[i+1] == '*':
			inBlockCmt = true
			cur.WriteRune(r)
		case r == '\'':
			inSingle = true
			cur.WriteRune(r)
		case r == '"':
			inDouble = true
			cur.WriteRune(r)
		case r == '$':
			if tag, ok := matchDollarTag(runes, i); ok {
				inDollar = true
				dollarTag = tag
				cur.WriteString(string(runes[i : i+len(tag)+2]))
				i += len(tag) + 1
				continue
			}
			cur.WriteRune(r)
		case r == ';':
			flush()
		default:
			cur.WriteRune(r)
		}
	}

	if inSingle || inDouble || inDollar {
		return nil, errors.Wrap(ErrSyntaxError, "schemaengine: unterminated quoted string or dollar-quoted body")
	}

	flush()
	return stmts, nil
}

// matchDollarTag checks whether runes[pos:] begins a dollar-quote opening
// tag: `$`, an optional identifier (letters, digits, underscore), then `$`.
// It returns the tag text (without the surrounding `$`s) and whether a
// match was found.
func matchDollarTag(runes []rune, pos int) (string, bool) {
	if runes[pos] != '$' {
		return "", false
	}
	j := pos + 1
	for j < len(runes) && isTagRune(runes[j]) {
		j++
	}
	if j >= len(runes) || runes[j] != '$' {
		return "", false
	}
	return string(runes[pos+1 : j]), true
}

func isTagRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
