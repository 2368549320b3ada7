package parser

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/brimdata/edgeql/compiler/ast"
	zqe "github.com/brimdata/edgeql/errors"
	"github.com/brimdata/edgeql/zfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stripLoc returns the JSON encoding of n without source locations so
// that trees parsed from differently formatted text compare equal.
func stripLoc(t *testing.T, n interface{}) string {
	t.Helper()
	b, err := json.Marshal(n)
	require.NoError(t, err)
	var v interface{}
	require.NoError(t, json.Unmarshal(b, &v))
	var strip func(interface{})
	strip = func(v interface{}) {
		switch v := v.(type) {
		case map[string]interface{}:
			delete(v, "loc")
			for _, child := range v {
				strip(child)
			}
		case []interface{}:
			for _, child := range v {
				strip(child)
			}
		}
	}
	strip(v)
	b, err = json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func testRoundTrip(t *testing.T, src string) {
	t.Helper()
	stmt, err := ParseStatement(src)
	require.NoError(t, err, "parsing %q", src)
	text := zfmt.AST(stmt)
	again, err := ParseStatement(text)
	require.NoError(t, err, "reparsing %q (from %q)", text, src)
	assert.JSONEq(t, stripLoc(t, stmt), stripLoc(t, again), "text %q", text)
	// Canonical text is a fixed point.
	assert.Equal(t, text, zfmt.AST(again))
}

func TestRoundTrip(t *testing.T) {
	queries := []string{
		"SELECT 1",
		"1 + 2",
		"SELECT User { name, friends: { name } FILTER .name = 'x' ORDER BY .name DESC LIMIT 3 }",
		"WITH MODULE test, u := (SELECT User FILTER .active) SELECT u.name",
		"WITH t AS MODULE test SELECT t::Foo",
		"SELECT (1, 2).0",
		"SELECT t.0.1",
		"SELECT -1 + 2 * 3 ^ -2",
		"SELECT -(1)",
		"SELECT -User.age",
		"SELECT a ?? b ?? c",
		"SELECT x IF y ELSE z IF w ELSE v",
		"SELECT User IS (Admin | Guest | Bot)",
		"SELECT User IS NOT Admin",
		"SELECT x NOT IN {1, 2} AND y NOT LIKE 'a%'",
		"SELECT <str>User.age ++ 'x'",
		"SELECT <array<str>>[1, 2]",
		"SELECT count(User) OVER (PARTITION BY .a ORDER BY .b)",
		"SELECT std::len('abc', x := 1)",
		"SELECT [1, 2, 3][0:2]",
		"SELECT 'abc'[1]",
		"SELECT [1][:1]",
		`SELECT 'a\(x + 1)b\(y)'`,
		`SELECT b'\x00ab'`,
		`SELECT 'it\'s\n'`,
		"SELECT $name + $0",
		"INSERT User { name := 'x', friends += (SELECT User FILTER .name = 'y') } UNLESS CONFLICT ON .name ELSE (SELECT User)",
		"INSERT User",
		"UPDATE User FILTER .name = 'x' SET { age := 1, tags -= 'a' }",
		"DELETE User FILTER .age > 10 ORDER BY .age LIMIT 1",
		"FOR x IN {1, 2} UNION (INSERT Foo { n := x })",
		"GROUP u := User USING k := .name BY k",
		"FOR GROUP User BY .name INTO g GROUPING gi UNION count(g) FILTER true ORDER BY .x",
		"SELECT User { *, [IS Admin].level, @note, <friends }",
		"SELECT User { [IS Admin]** }",
		"SELECT User { friends*3 }",
		"SELECT User.<friends[IS User].name",
		"SELECT (a := 1, b := 'x')",
		"SELECT ()",
		"SELECT (1,)",
		"SELECT User { friends: { name } ORDER BY .name THEN .age ASC EMPTY LAST }",
		"SELECT __subject__.name",
		"SELECT .name",
		"SELECT EXISTS User.name AND NOT DISTINCT x",
		"SELECT 1n + 1.5n + 1.5e3",
		"SELECT x @@ 'foo'",
		"SELECT (SELECT User FILTER .a = 1).name",
		"SELECT (<Foo>x) { a }",
		"SELECT `select` { `required`, `order` }",
		"SELECT User.select",
		"SELECT required := 1 OFFSET 2",
		"CREATE MODULE foo",
		"DROP MODULE foo",
		"CREATE ABSTRACT TYPE default::Named EXTENDING Base, Other { required property name -> str; multi link friends -> User; }",
		"CREATE TYPE A",
		"ALTER TYPE A RENAME TO B",
		"DROP TYPE test::A",
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			testRoundTrip(t, q)
		})
	}
}

func TestImplicitSelect(t *testing.T) {
	stmt, err := ParseStatement("User.name")
	require.NoError(t, err)
	sel, ok := stmt.(*ast.SelectQuery)
	require.True(t, ok)
	assert.True(t, sel.Implicit)
	path, ok := sel.Result.(*ast.Path)
	require.True(t, ok)
	require.Len(t, path.Steps, 2)
	assert.Equal(t, "name", path.Steps[1].(*ast.Ptr).Name)
}

func TestNegativeLiteral(t *testing.T) {
	e, err := ParseExpr("-9223372036854775808")
	require.NoError(t, err)
	c, ok := e.(*ast.IntegerConstant)
	require.True(t, ok)
	assert.True(t, c.IsNegative)
	assert.Equal(t, "-9223372036854775808", c.Text())
	assert.Equal(t, 0, c.Pos())

	e, err = ParseExpr("-x")
	require.NoError(t, err)
	assert.IsType(t, &ast.UnaryOp{}, e)
}

func TestSubqueryRoot(t *testing.T) {
	e, err := ParseExpr("(SELECT X FILTER X.a = 1).a")
	require.NoError(t, err)
	path, ok := e.(*ast.Path)
	require.True(t, ok)
	require.Len(t, path.Steps, 2)
	root, ok := path.Steps[0].(*ast.ExprRoot)
	require.True(t, ok)
	assert.IsType(t, &ast.SelectQuery{}, root.Expr)
}

func TestParseBlock(t *testing.T) {
	stmts, err := ParseBlock("SELECT 1; ; CREATE MODULE m; SELECT User;")
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	assert.IsType(t, &ast.CreateModule{}, stmts[1])
	text := zfmt.Statements(stmts)
	again, err := ParseBlock(text)
	require.NoError(t, err)
	assert.JSONEq(t, stripLoc(t, stmts), stripLoc(t, again))
}

func TestInterpolationFragments(t *testing.T) {
	e, err := ParseExpr(`'a\(1)b\(2)c'`)
	require.NoError(t, err)
	si, ok := e.(*ast.StringInterpolation)
	require.True(t, ok)
	require.Len(t, si.Fragments, 3)
	assert.Equal(t, "a", si.Fragments[0].Text)
	assert.Equal(t, "b", si.Fragments[1].Text)
	assert.Equal(t, "c", si.Fragments[2].Text)
	assert.Nil(t, si.Fragments[2].Expr)
}

func parseError(t *testing.T, src string) (*zqe.Error, *Error) {
	t.Helper()
	_, err := ParseStatement(src)
	require.Error(t, err, "parsing %q", src)
	var zerr *zqe.Error
	require.True(t, errors.As(err, &zerr), "%T is not a *zqe.Error", err)
	var perr *Error
	errors.As(err, &perr)
	return zerr, perr
}

func TestInsertErrors(t *testing.T) {
	zerr, perr := parseError(t, "INSERT 5")
	assert.Equal(t, zqe.Syntax, zerr.Kind)
	require.NotNil(t, perr)
	assert.Equal(t, "INSERT only works with object types, not arbitrary expressions", perr.Msg)
	assert.Equal(t, insertHint, zqe.HintOf(zerr))
	assert.Equal(t, zqe.Span{Pos: 7, End: 8}, zerr.Span)

	_, perr = parseError(t, "INSERT Foo { a := 1 } UNION Bar")
	require.NotNil(t, perr)
	assert.Equal(t, "INSERT only works with object types, not arbitrary expressions", perr.Msg)

	_, perr = parseError(t, "INSERT Foo IF x ELSE Bar")
	require.NotNil(t, perr)
	assert.Equal(t, "INSERT only works with object types, not conditional expressions", perr.Msg)

	_, perr = parseError(t, "INSERT Foo.bar")
	require.NotNil(t, perr)
	assert.Contains(t, perr.Msg, "arbitrary expressions")
}

func TestSyntaxErrors(t *testing.T) {
	cases := []struct {
		src  string
		kind zqe.Kind
		msg  string
	}{
		{"SELECT User { name { x } }", zqe.Syntax, "Missing ':' before '{' in a sub-shape"},
		{"SELECT f(a := 1, a := 2)", zqe.Domain, "duplicate named argument `a`"},
		{"SELECT f(a := 1, 2)", zqe.Domain, "positional argument after named argument"},
		{"SELECT 1 = 2 = 3", zqe.Syntax, "operator is not associative"},
		{"SELECT 'abc", zqe.Syntax, "unterminated string"},
		{"SELECT 1 +", zqe.Syntax, "Unexpected end of line"},
		{"SELECT 1abc", zqe.Syntax, "invalid numeric literal"},
		{"SELECT $", zqe.Syntax, "bare $ is not allowed"},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			zerr, perr := parseError(t, c.src)
			assert.Equal(t, c.kind, zerr.Kind)
			require.NotNil(t, perr)
			assert.Contains(t, perr.Msg, c.msg)
		})
	}
}

func TestDepthLimit(t *testing.T) {
	src := strings.Repeat("(", 600) + "1" + strings.Repeat(")", 600)
	_, err := ParseStatement(src)
	require.Error(t, err)
	assert.True(t, zqe.IsRecursionLimit(err))

	_, err = ParseStatement("((((1))))", WithDepthLimit(3))
	assert.True(t, zqe.IsRecursionLimit(err))

	_, err = ParseStatement("((((1))))", WithDepthLimit(64))
	assert.NoError(t, err)
}

func TestErrorRendering(t *testing.T) {
	_, err := ParseStatement("SELECT 1 +\n  ) foo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2, column 3")
	assert.Contains(t, err.Error(), "^ ===")

	_, err = ParseStatement("INSERT 5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "\nhint: ")
}

func TestTokenize(t *testing.T) {
	kinds := func(src string) []tokenKind {
		toks, err := tokenize(src)
		require.NoError(t, err)
		var out []tokenKind
		for _, tok := range toks {
			out = append(out, tok.kind)
		}
		return out
	}
	assert.Equal(t, []tokenKind{tokIdent, tokOp, tokInt, tokOp, tokInt, tokEOF}, kinds("t.0.1"))
	assert.Equal(t, []tokenKind{tokFloat, tokEOF}, kinds("1.5"))
	assert.Equal(t, []tokenKind{tokFloat, tokEOF}, kinds(".5"))
	assert.Equal(t, []tokenKind{tokBigint, tokDecimal, tokEOF}, kinds("1n 1.5n"))
	assert.Equal(t, []tokenKind{tokKeyword, tokIdent, tokEOF}, kinds("select `select`"))
	assert.Equal(t, []tokenKind{tokStrInterpStart, tokIdent, tokStrInterpEnd, tokEOF}, kinds(`'a\(b)c'`))
	assert.Equal(t, []tokenKind{tokStrInterpStart, tokOp, tokIdent, tokOp, tokStrInterpEnd, tokEOF}, kinds(`'\((b))'`))

	toks, err := tokenize("$a$it's$a$ r'\\d' $x")
	require.NoError(t, err)
	assert.Equal(t, "it's", toks[0].value)
	assert.Equal(t, `\d`, toks[1].value)
	assert.Equal(t, tokParam, toks[2].kind)
	assert.Equal(t, "x", toks[2].value)

	toks, err = tokenize("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", toks[0].value)

	toks, err = tokenize("n\u0903x")
	require.NoError(t, err)
	assert.Equal(t, tokIdent, toks[0].kind)
	assert.Equal(t, "n\u0903x", toks[0].value)

	toks, err = tokenize("# comment\nSELECT")
	require.NoError(t, err)
	assert.Equal(t, tokKeyword, toks[0].kind)
}

func TestInvalidUTF8String(t *testing.T) {
	for _, src := range []string{"SELECT 'a\xffb'", "SELECT r'a\xffb'", "SELECT $$a\xffb$$"} {
		_, err := tokenize(src)
		require.Error(t, err, src)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Contains(t, e.Msg, "invalid UTF-8")
	}
	_, err := tokenize("SELECT 'a\xffb'")
	assert.Equal(t, 9, err.(*Error).Pos)

	toks, err := tokenize("'caf\u00e9'")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", toks[0].value)
}
