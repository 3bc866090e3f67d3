package schemaengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements_SimpleStatements(t *testing.T) {
	sql := "CREATE TABLE t (id INT);\nINSERT INTO t VALUES (1);"
	stmts, err := SplitStatements(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
}

func TestSplitStatements_DelimiterBlockPreservesBodySemicolons(t *testing.T) {
	sql := "DELIMITER $$\n" +
		"CREATE PROCEDURE proc1()\nBEGIN\n  SELECT 1;\n  SELECT 2;\nEND$$\n" +
		"DELIMITER ;\n" +
		"CREATE TABLE t (id INT);"

	stmts, err := SplitStatements(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
}

func TestSplitStatements_SyntaxErrorReturnsSentinel(t *testing.T) {
	_, err := SplitStatements("CREATE TALBE garbage not sql (((")
	assert.ErrorIs(t, err, ErrSyntaxError)
}
