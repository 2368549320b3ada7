package zfmt_test

import (
	"testing"

	"github.com/brimdata/edgeql/compiler/parser"
	"github.com/brimdata/edgeql/zfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatIdempotent(t *testing.T) {
	queries := []string{
		"SELECT User.name FILTER User.age > 18 ORDER BY User.name DESC",
		"WITH MODULE foo SELECT Bar { baz }",
		"INSERT User { name := 'x' }",
		"UPDATE User FILTER User.name = 'a' SET { age := 3 }",
		"DELETE User LIMIT 2",
		"FOR x IN {1, 2} UNION x + 1",
		"GROUP User BY User.age",
		"SELECT <str>User.age ++ 'y' IF User.age > 1 ELSE 'n'",
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			stmt, err := parser.ParseStatement(q)
			require.NoError(t, err)
			once := zfmt.AST(stmt)
			again, err := parser.ParseStatement(once)
			require.NoError(t, err, once)
			assert.Equal(t, once, zfmt.AST(again))
		})
	}
}

func TestStatements(t *testing.T) {
	stmts, err := parser.ParseBlock("1; 2")
	require.NoError(t, err)
	assert.Equal(t, "1;\n2", zfmt.Statements(stmts))
}

func TestQuoteString(t *testing.T) {
	assert.Equal(t, `'it\'s\n'`, zfmt.QuoteString("it's\n"))
	assert.Equal(t, `'a\\b'`, zfmt.QuoteString(`a\b`))
}
