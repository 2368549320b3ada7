package normalize_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/brimdata/edgeql/compiler/ast"
	"github.com/brimdata/edgeql/compiler/normalize"
	"github.com/brimdata/edgeql/compiler/parser"
	zqe "github.com/brimdata/edgeql/errors"
	"github.com/brimdata/edgeql/schema"
	"github.com/brimdata/edgeql/schema/mock"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
modules:
  - name: default
    types:
      - name: User
        pointers:
          - {name: name, target: str}
          - {name: age, target: int64}
          - {name: friends, target: User, multi: true}
    functions:
      - {name: len, params: [str], returns: int64}
  - name: foo
    types:
      - name: Bar
        pointers:
          - {name: baz, target: str}
    functions:
      - {name: quux, returns: str}
`

func load(t *testing.T) *schema.Snapshot {
	t.Helper()
	s, err := schema.Load(strings.NewReader(testSchema))
	require.NoError(t, err)
	return s
}

func parse(t *testing.T, src string) ast.Statement {
	t.Helper()
	stmt, err := parser.ParseStatement(src)
	require.NoError(t, err)
	return stmt
}

func normalized(t *testing.T, src string, aliases schema.ModuleAliases) ast.Statement {
	t.Helper()
	stmt := parse(t, src)
	require.NoError(t, normalize.Normalize(stmt, load(t), aliases))
	return stmt
}

// roots returns the ObjectRef roots of every path in n.
func roots(n ast.Node) []*ast.ObjectRef {
	var refs []*ast.ObjectRef
	ast.Inspect(n, func(n ast.Node) bool {
		if p, ok := n.(*ast.Path); ok {
			if ref, ok := p.Root().(*ast.ObjectRef); ok {
				refs = append(refs, ref)
			}
		}
		return true
	})
	return refs
}

func funcRefs(n ast.Node) []*ast.FuncRef {
	var refs []*ast.FuncRef
	ast.Inspect(n, func(n ast.Node) bool {
		if f, ok := n.(*ast.FuncRef); ok {
			refs = append(refs, f)
		}
		return true
	})
	return refs
}

func TestPathRoots(t *testing.T) {
	stmt := normalized(t, "SELECT User.name FILTER User.age > 18 ORDER BY User.name", nil)
	refs := roots(stmt)
	require.Len(t, refs, 3)
	for _, ref := range refs {
		assert.Equal(t, "User", ref.Name)
		assert.Equal(t, "default", ref.Module)
	}
}

func TestModuleDecl(t *testing.T) {
	stmt := normalized(t, "WITH MODULE foo SELECT Bar", nil)
	q := stmt.(*ast.SelectQuery)
	assert.Len(t, q.Aliases, 0)
	refs := roots(q)
	require.Len(t, refs, 1)
	assert.Equal(t, "foo", refs[0].Module)

	stmt = normalized(t, "WITH f AS MODULE foo SELECT f::Bar", nil)
	refs = roots(stmt)
	require.Len(t, refs, 1)
	assert.Equal(t, "foo", refs[0].Module)
}

func TestLocalShadowing(t *testing.T) {
	stmt := normalized(t, "WITH User := (SELECT foo::Bar) SELECT User", nil)
	q := stmt.(*ast.SelectQuery)
	require.Len(t, q.Aliases, 1)
	refs := roots(q.Result)
	require.Len(t, refs, 1)
	assert.Equal(t, "", refs[0].Module)

	// The alias expression itself sees only earlier siblings.
	stmt = normalized(t, "WITH a := User, User := a SELECT User", nil)
	q = stmt.(*ast.SelectQuery)
	require.Len(t, q.Aliases, 2)
	first := roots(q.Aliases[0])
	require.Len(t, first, 1)
	assert.Equal(t, "default", first[0].Module)
	assert.Equal(t, "", roots(q.Result)[0].Module)
}

func TestLocalnamesArgument(t *testing.T) {
	stmt := parse(t, "SELECT User")
	require.NoError(t, normalize.Normalize(stmt, load(t), nil, "User"))
	assert.Equal(t, "", roots(stmt)[0].Module)
}

func TestIteratorAndResultAliases(t *testing.T) {
	stmt := normalized(t, "FOR User IN {1, 2} UNION (SELECT User)", nil)
	q := stmt.(*ast.ForQuery)
	assert.Equal(t, "", roots(q.Result)[0].Module)

	stmt = normalized(t, "GROUP u := User USING n := u.name BY n", nil)
	g := stmt.(*ast.GroupQuery)
	assert.Equal(t, "default", roots(g.Subject)[0].Module)
	for _, ref := range roots(g.Using[0]) {
		assert.Equal(t, "", ref.Module)
	}
}

func TestUnresolved(t *testing.T) {
	stmt := normalized(t, "SELECT Nope", schema.ModuleAliases{"": "foo"})
	assert.Equal(t, "foo", roots(stmt)[0].Module)

	stmt = normalized(t, "SELECT x::Nope", schema.ModuleAliases{"x": "foo"})
	assert.Equal(t, "foo", roots(stmt)[0].Module)

	stmt = normalized(t, "SELECT x::Nope", nil)
	assert.Equal(t, "x", roots(stmt)[0].Module)
}

func TestTypeNames(t *testing.T) {
	stmt := normalized(t, "SELECT <array<str> >{}", nil)
	var names []*ast.ObjectRef
	ast.Inspect(stmt, func(n ast.Node) bool {
		if tn, ok := n.(*ast.TypeName); ok {
			names = append(names, tn.Maintype)
		}
		return true
	})
	require.Len(t, names, 2)
	assert.Equal(t, "array", names[0].Name)
	assert.Equal(t, "", names[0].Module)
	assert.Equal(t, "str", names[1].Name)
	assert.Equal(t, "std", names[1].Module)
}

func TestFunctions(t *testing.T) {
	stmt := normalized(t, "SELECT count(User)", nil)
	fns := funcRefs(stmt)
	require.Len(t, fns, 1)
	assert.Equal(t, "std", fns[0].Module)
	assert.Equal(t, []string{"std"}, fns[0].Candidates)

	// A function in the default module masks the std one.
	stmt = normalized(t, "SELECT len(User.name)", nil)
	fns = funcRefs(stmt)
	require.Len(t, fns, 1)
	assert.Equal(t, "default", fns[0].Module)
	assert.Equal(t, []string{"default", "std"}, fns[0].Candidates)

	stmt = normalized(t, "SELECT f::nope()", schema.ModuleAliases{"f": "foo"})
	fns = funcRefs(stmt)
	assert.Equal(t, "foo", fns[0].Module)
	assert.Nil(t, fns[0].Candidates)

	stmt = normalized(t, "WITH MODULE foo SELECT quux()", nil)
	assert.Equal(t, "foo", funcRefs(stmt)[0].Module)
}

func TestIdempotent(t *testing.T) {
	for _, src := range []string{
		"SELECT User.name FILTER User.age > 18 ORDER BY User.name",
		"WITH MODULE foo SELECT Bar { baz }",
		"WITH u := User SELECT u { name, friends: { name } FILTER .age > len(u.name) }",
		"SELECT len(User.name)",
		"INSERT User { name := 'x', friends := (SELECT User FILTER .name = 'y') }",
		"UPDATE User FILTER .name = 'x' SET { age := 1 }",
		"DELETE User FILTER .age < <int64>$min",
		"GROUP u := User USING n := u.name BY n",
		"SELECT Nope",
	} {
		stmt := normalized(t, src, schema.ModuleAliases{"": "default"})
		once, err := json.Marshal(stmt)
		require.NoError(t, err)
		require.NoError(t, normalize.Normalize(stmt, load(t), schema.ModuleAliases{"": "default"}))
		twice, err := json.Marshal(stmt)
		require.NoError(t, err)
		assert.JSONEq(t, string(once), string(twice), "%s", src)
	}
}

func TestDDL(t *testing.T) {
	stmt := parse(t, "CREATE TYPE User { name: str }")
	err := normalize.Normalize(stmt, load(t), nil)
	require.Error(t, err)
	assert.True(t, zqe.IsInternal(err))
	assert.False(t, zqe.IsUserError(err))
	assert.Contains(t, err.Error(), "cannot normalize DDL node")
}

func TestLookupCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	user, err := load(t).Get("default::User", nil, schema.ClassAny)
	require.NoError(t, err)

	aliases := schema.ModuleAliases{"": "default"}
	m := mock.NewMockLookup(ctrl)
	gomock.InOrder(
		m.EXPECT().GetFunctions("count", aliases).Return(nil, zqe.E(zqe.NotFound, "no count")),
		m.EXPECT().Get("User", aliases, schema.ClassAny).Return(user, nil),
	)
	stmt := parse(t, "WITH x := 1 SELECT count(User) FILTER x = 1")
	require.NoError(t, normalize.Normalize(stmt, m, aliases))
	assert.Equal(t, "default", roots(stmt)[0].Module)
	assert.Equal(t, "", funcRefs(stmt)[0].Module)

	// Lookup failures other than NotFound abort normalization.
	m.EXPECT().Get("User", aliases, schema.ClassAny).Return(nil, zqe.E(zqe.Internal, "broken"))
	err = normalize.Normalize(parse(t, "SELECT User"), m, aliases)
	assert.True(t, zqe.IsInternal(err))
}
