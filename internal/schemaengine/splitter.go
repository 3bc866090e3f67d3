package schemaengine

import (
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	// dialect registers MySQL syntax features into the parser; imported
	// for its init side effect only.
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"github.com/allisson/backydb/internal/errors"
)

// SplitStatements breaks sql into individual statements, tolerant of the
// vendor-specific `DELIMITER` directive MySQL dumps use to let
// CREATE PROCEDURE/FUNCTION/TRIGGER/EVENT bodies contain semicolons
// (§4.4: "must tolerate vendor-specific delimiter changes"). It first
// normalizes away DELIMITER blocks into the statement's natural form,
// then hands the result to the real SQL parser so block bodies are never
// split on an internal semicolon.
func SplitStatements(sql string) ([]string, error) {
	normalized, err := normalizeDelimiters(sql)
	if err != nil {
		return nil, err
	}

	p := parser.New()
	stmtNodes, warns, err := p.Parse(normalized, "", "")
	if err != nil {
		return nil, errors.Wrap(ErrSyntaxError, err.Error())
	}
	for _, w := range warns {
		_ = w // parser warnings are non-fatal; surfaced via logging by the caller.
	}

	out := make([]string, 0, len(stmtNodes))
	for _, stmt := range stmtNodes {
		out = append(out, stmt.Text())
	}
	return out, nil
}

// normalizeDelimiters rewrites `DELIMITER <tok> ... <tok>` blocks, as
// emitted by mysqldump-style tooling, back into ordinary
// semicolon-terminated statements the standard parser accepts. It is a
// textual pre-pass: CREATE PROCEDURE/FUNCTION/TRIGGER/EVENT bodies keep
// their internal semicolons intact because the custom delimiter, not a
// semicolon, is what terminates the statement in the source text.
func normalizeDelimiters(sql string) (string, error) {
	const defaultDelim = ";"
	delim := defaultDelim

	var out strings.Builder
	lines := strings.Split(sql, "\n")

	var stmt strings.Builder
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToUpper(trimmed), "DELIMITER ") {
			delim = strings.TrimSpace(trimmed[len("DELIMITER "):])
			continue
		}

		stmt.WriteString(line)
		stmt.WriteString("\n")

		body := stmt.String()
		if delim != defaultDelim && strings.HasSuffix(strings.TrimRight(body, "\n \t"), delim) {
			trimmedBody := strings.TrimRight(body, "\n \t")
			trimmedBody = strings.TrimSuffix(trimmedBody, delim)
			out.WriteString(trimmedBody)
			out.WriteString(";\n")
			stmt.Reset()
		} else if delim == defaultDelim {
			out.WriteString(stmt.String())
			stmt.Reset()
		}
	}
	if stmt.Len() > 0 {
		out.WriteString(stmt.String())
	}

	return out.String(), nil
}
