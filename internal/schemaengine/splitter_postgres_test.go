package schemaengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatementsPostgres_SimpleStatements(t *testing.T) {
	sql := `CREATE TABLE "departments" (id INT);` + "\n" + `INSERT INTO "departments" VALUES (1);`
	stmts, err := SplitStatementsPostgres(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
}

func TestSplitStatementsPostgres_DoubleQuotedIdentifierSemicolonIgnored(t *testing.T) {
	sql := `CREATE TABLE "weird;name" (id INT);`
	stmts, err := SplitStatementsPostgres(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], `"weird;name"`)
}

func TestSplitStatementsPostgres_DollarQuotedFunctionBodyPreservesSemicolons(t *testing.T) {
	sql := `CREATE FUNCTION f() RETURNS int AS $$
BEGIN
  SELECT 1;
  SELECT 2;
  RETURN 1;
END;
$$ LANGUAGE plpgsql;
CREATE TABLE t (id INT);`
	stmts, err := SplitStatementsPostgres(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "BEGIN")
	assert.Contains(t, stmts[1], "CREATE TABLE")
}

func TestSplitStatementsPostgres_NamedDollarQuoteTag(t *testing.T) {
	sql := `CREATE FUNCTION f() RETURNS trigger AS $body$
BEGIN
  IF NEW.id IS NULL THEN
    RETURN NULL;
  END IF;
  RETURN NEW;
END;
$body$ LANGUAGE plpgsql;`
	stmts, err := SplitStatementsPostgres(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
}

func TestSplitStatementsPostgres_LineCommentSemicolonIgnored(t *testing.T) {
	sql := "CREATE TABLE t (id INT); -- don't split this; comment\nINSERT INTO t VALUES (1);"
	stmts, err := SplitStatementsPostgres(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
}

func TestSplitStatementsPostgres_SingleQuoteEscapedSemicolonIgnored(t *testing.T) {
	sql := `INSERT INTO t (note) VALUES ('a;b''c');`
	stmts, err := SplitStatementsPostgres(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
}

func TestSplitStatementsPostgres_UnterminatedDollarQuoteFails(t *testing.T) {
	sql := `CREATE FUNCTION f() AS $$ BEGIN SELECT 1;`
	_, err := SplitStatementsPostgres(sql)
	assert.ErrorIs(t, err, ErrSyntaxError)
}

func TestSplitStatementsPostgres_UnterminatedSingleQuoteFails(t *testing.T) {
	_, err := SplitStatementsPostgres(`INSERT INTO t VALUES ('unterminated);`)
	assert.ErrorIs(t, err, ErrSyntaxError)
}
