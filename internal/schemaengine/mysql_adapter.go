package schemaengine

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/allisson/backydb/internal/database"
)

// MySQLAdapter implements Adapter against information_schema and the
// SHOW CREATE family of statements.
type MySQLAdapter struct {
	db *sql.DB
}

// NewMySQLAdapter wraps an already-connected *sql.DB.
func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (a *MySQLAdapter) EngineType() string { return "mysql" }

func (a *MySQLAdapter) EngineVersion(ctx context.Context) (string, error) {
	var version string
	if err := a.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", wrapConnErr(err)
	}
	return version, nil
}

func (a *MySQLAdapter) Extract(ctx context.Context, category ObjectCategory) (io.Reader, error) {
	switch category {
	case Tables:
		return a.extractTables(ctx)
	case Data:
		return a.extractData(ctx)
	case Views:
		return a.extractShowCreate(ctx, "VIEW", "SHOW CREATE VIEW")
	case Functions:
		return a.extractRoutines(ctx, "FUNCTION")
	case Procedures:
		return a.extractRoutines(ctx, "PROCEDURE")
	case Triggers:
		return a.extractTriggers(ctx)
	case Events:
		return a.extractEvents(ctx)
	default:
		return strings.NewReader(""), nil
	}
}

func (a *MySQLAdapter) Apply(ctx context.Context, category ObjectCategory, body io.Reader) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("schemaengine: read %s body: %w", category, err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}

	stmts, err := SplitStatements(string(raw))
	if err != nil {
		return err
	}

	querier := database.GetTx(ctx, a.db)
	for _, stmt := range stmts {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := querier.ExecContext(ctx, stmt); err != nil {
			return wrapApplyErr(err)
		}
	}
	return nil
}

func (a *MySQLAdapter) tableNames(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, wrapConnErr(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapConnErr(err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (a *MySQLAdapter) extractTables(ctx context.Context) (io.Reader, error) {
	names, err := a.tableNames(ctx)
	if err != nil {
		return nil, err
	}

	var buf strings.Builder
	for _, name := range names {
		var tbl, ddl string
		row := a.db.QueryRowContext(ctx, "SHOW CREATE TABLE `"+name+"`")
		if err := row.Scan(&tbl, &ddl); err != nil {
			return nil, wrapConnErr(err)
		}
		buf.WriteString(ddl)
		buf.WriteString(";\n")
	}
	return strings.NewReader(buf.String()), nil
}

// extractData emits INSERT statements grouped per table, one statement per
// row, ordered by primary key ascending within each table, with tables
// ordered by foreign-key topology (§4.4: "referenced before referencing").
// The table order comes from dataOrderedTableNames, which runs topoSort
// over the foreign-key references read from information_schema's
// KEY_COLUMN_USAGE.
func (a *MySQLAdapter) extractData(ctx context.Context) (io.Reader, error) {
	names, err := a.dataOrderedTableNames(ctx)
	if err != nil {
		return nil, err
	}

	var buf strings.Builder
	const batchSize = 500
	for _, name := range names {
		if err := a.extractTableData(ctx, name, batchSize, &buf); err != nil {
			return nil, err
		}
	}
	return strings.NewReader(buf.String()), nil
}

// dataOrderedTableNames orders tables so that a table referenced by a
// foreign key is emitted before the table that references it.
func (a *MySQLAdapter) dataOrderedTableNames(ctx context.Context) ([]string, error) {
	names, err := a.tableNames(ctx)
	if err != nil {
		return nil, err
	}

	refs := map[string][]string{}
	rows, err := a.db.QueryContext(ctx, `
		SELECT table_name, referenced_table_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND referenced_table_name IS NOT NULL`)
	if err != nil {
		return nil, wrapConnErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var table, referenced string
		if err := rows.Scan(&table, &referenced); err != nil {
			return nil, wrapConnErr(err)
		}
		refs[table] = append(refs[table], referenced)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapConnErr(err)
	}

	return topoSort(names, refs), nil
}

func (a *MySQLAdapter) extractTableData(ctx context.Context, table string, batchSize int, buf *strings.Builder) error {
	pk, err := a.primaryKeyColumn(ctx, table)
	if err != nil {
		return err
	}

	orderBy := ""
	if pk != "" {
		orderBy = " ORDER BY `" + pk + "` ASC"
	}

	rows, err := a.db.QueryContext(ctx, "SELECT * FROM `"+table+"`"+orderBy)
	if err != nil {
		return wrapConnErr(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return wrapConnErr(err)
	}

	count := 0
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return wrapConnErr(err)
		}

		buf.WriteString("INSERT INTO `" + table + "` (")
		buf.WriteString(strings.Join(quoteIdents(cols), ", "))
		buf.WriteString(") VALUES (")
		buf.WriteString(strings.Join(sqlLiterals(values), ", "))
		buf.WriteString(");\n")

		count++
		if count%batchSize == 0 {
			// batch boundary; statements remain individually valid and
			// idempotent-safe regardless of batching.
		}
	}
	return rows.Err()
}

func (a *MySQLAdapter) primaryKeyColumn(ctx context.Context, table string) (string, error) {
	var col string
	err := a.db.QueryRowContext(ctx, `
		SELECT column_name FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = ? AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position LIMIT 1`, table).Scan(&col)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", wrapConnErr(err)
	}
	return col, nil
}

func (a *MySQLAdapter) extractShowCreate(ctx context.Context, infoSchemaType, showCreate string) (io.Reader, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.views
		WHERE table_schema = DATABASE() ORDER BY table_name`)
	if err != nil {
		return nil, wrapConnErr(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapConnErr(err)
		}
		names = append(names, name)
	}

	var buf strings.Builder
	for _, name := range names {
		var viewName, ddl, charset, collation string
		row := a.db.QueryRowContext(ctx, showCreate+" `"+name+"`")
		if err := row.Scan(&viewName, &ddl, &charset, &collation); err != nil {
			return nil, wrapConnErr(err)
		}
		buf.WriteString(ddl)
		buf.WriteString(";\n")
	}
	return strings.NewReader(buf.String()), nil
}

func (a *MySQLAdapter) extractRoutines(ctx context.Context, routineType string) (io.Reader, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT routine_name FROM information_schema.routines
		WHERE routine_schema = DATABASE() AND routine_type = ? ORDER BY routine_name`, routineType)
	if err != nil {
		return nil, wrapConnErr(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapConnErr(err)
		}
		names = append(names, name)
	}

	var buf strings.Builder
	for _, name := range names {
		var discard1, discard2, ddl, discard3, discard4, discard5 sql.NullString
		row := a.db.QueryRowContext(ctx, "SHOW CREATE "+routineType+" `"+name+"`")
		if err := row.Scan(&discard1, &discard2, &ddl, &discard3, &discard4, &discard5); err != nil {
			return nil, wrapConnErr(err)
		}
		buf.WriteString(ddl.String)
		buf.WriteString(";\n")
	}
	return strings.NewReader(buf.String()), nil
}

func (a *MySQLAdapter) extractTriggers(ctx context.Context) (io.Reader, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT trigger_name FROM information_schema.triggers
		WHERE trigger_schema = DATABASE() ORDER BY trigger_name`)
	if err != nil {
		return nil, wrapConnErr(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapConnErr(err)
		}
		names = append(names, name)
	}

	var buf strings.Builder
	for _, name := range names {
		var discard1, discard2, ddl, discard3, discard4, discard5, discard6 sql.NullString
		row := a.db.QueryRowContext(ctx, "SHOW CREATE TRIGGER `"+name+"`")
		if err := row.Scan(&discard1, &discard2, &ddl, &discard3, &discard4, &discard5, &discard6); err != nil {
			return nil, wrapConnErr(err)
		}
		buf.WriteString(ddl.String)
		buf.WriteString(";\n")
	}
	return strings.NewReader(buf.String()), nil
}

func (a *MySQLAdapter) extractEvents(ctx context.Context) (io.Reader, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT event_name FROM information_schema.events
		WHERE event_schema = DATABASE() ORDER BY event_name`)
	if err != nil {
		return nil, wrapConnErr(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapConnErr(err)
		}
		names = append(names, name)
	}

	var buf strings.Builder
	for _, name := range names {
		var discard1, discard2, ddl, discard3, discard4, discard5 sql.NullString
		row := a.db.QueryRowContext(ctx, "SHOW CREATE EVENT `"+name+"`")
		if err := row.Scan(&discard1, &discard2, &ddl, &discard3, &discard4, &discard5); err != nil {
			return nil, wrapConnErr(err)
		}
		buf.WriteString(ddl.String)
		buf.WriteString(";\n")
	}
	return strings.NewReader(buf.String()), nil
}

func quoteIdents(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = "`" + c + "`"
	}
	return out
}

func sqlLiterals(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = sqlLiteral(v)
	}
	return out
}

func sqlLiteral(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return "'" + strings.ReplaceAll(string(val), "'", "''") + "'"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func wrapConnErr(err error) error {
	return fmt.Errorf("%w: %s", ErrConnectFailed, err.Error())
}

func wrapApplyErr(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "syntax"):
		return fmt.Errorf("%w: %s", ErrSyntaxError, err.Error())
	case strings.Contains(msg, "constraint") || strings.Contains(msg, "duplicate") || strings.Contains(msg, "foreign key"):
		return fmt.Errorf("%w: %s", ErrConstraintViolation, err.Error())
	case strings.Contains(msg, "denied") || strings.Contains(msg, "access"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, err.Error())
	default:
		return err
	}
}
