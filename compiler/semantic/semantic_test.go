package semantic_test

import (
	"context"
	"strings"
	"testing"

	"github.com/brimdata/edgeql/compiler/ir"
	"github.com/brimdata/edgeql/compiler/normalize"
	"github.com/brimdata/edgeql/compiler/optimizer"
	"github.com/brimdata/edgeql/compiler/parser"
	"github.com/brimdata/edgeql/compiler/semantic"
	zqe "github.com/brimdata/edgeql/errors"
	"github.com/brimdata/edgeql/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
modules:
  - name: default
    types:
      - name: User
        pointers:
          - {name: name, target: str, searchable: true}
          - {name: age, target: int64}
          - {name: manager, target: User}
          - name: friends
            target: User
            multi: true
            properties:
              - {name: since, target: datetime}
      - name: Log
        pointers:
          - {name: msg, target: str}
      - name: Node
        pointers:
          - {name: a, target: int64}
          - {name: next, target: Node, loading: eager}
  - name: foo
    types:
      - name: Bar
        pointers:
          - {name: baz, target: str}
`

func load(t *testing.T) *schema.Snapshot {
	t.Helper()
	s, err := schema.Load(strings.NewReader(testSchema))
	require.NoError(t, err)
	return s
}

func compile(t *testing.T, src string) (*ir.GraphExpr, error) {
	t.Helper()
	snap := load(t)
	stmt, err := parser.ParseStatement(src)
	require.NoError(t, err, "parsing %q", src)
	require.NoError(t, normalize.Normalize(stmt, snap, nil), "normalizing %q", src)
	return semantic.Analyze(context.Background(), stmt, snap, semantic.Options{})
}

func mustCompile(t *testing.T, src string) *ir.GraphExpr {
	t.Helper()
	g, err := compile(t, src)
	require.NoError(t, err, "compiling %q", src)
	return g
}

func arefs(n ir.Node) []*ir.AtomicRefSimple {
	var out []*ir.AtomicRefSimple
	for _, n := range ir.Find(n, func(n ir.Node) bool {
		_, ok := n.(*ir.AtomicRefSimple)
		return ok
	}) {
		out = append(out, n.(*ir.AtomicRefSimple))
	}
	return out
}

func recordDepth(e ir.Expr) int {
	rec, ok := e.(*ir.Record)
	if !ok {
		return 0
	}
	depth := 0
	for _, el := range rec.Elements {
		if d := recordDepth(el); d > depth {
			depth = d
		}
	}
	return depth + 1
}

func TestSharedSetAcrossClauses(t *testing.T) {
	g := mustCompile(t, "SELECT User.name FILTER User.age > 18 ORDER BY User.name")
	require.NotNil(t, g.Generator)
	require.Len(t, g.Selector, 1)
	require.Len(t, g.Sorter, 1)

	sets := make(map[*ir.EntitySet]bool)
	names := make(map[string]bool)
	for _, ref := range arefs(g) {
		sets[ref.Ref.Resolve()] = true
		names[ref.Name] = true
	}
	assert.True(t, names["name"])
	assert.True(t, names["age"])
	assert.Len(t, sets, 1)
	for set := range sets {
		assert.Equal(t, "default::User", set.Concept.SchemaName().String())
	}
}

func TestPartialPathsContinueResult(t *testing.T) {
	g := mustCompile(t, "SELECT User FILTER .age > 18 ORDER BY .name")
	rec, ok := g.Selector[0].Expr.(*ir.Record)
	require.True(t, ok, "selector is %T", g.Selector[0].Expr)
	sets := make(map[*ir.EntitySet]bool)
	for _, ref := range arefs(g) {
		sets[ref.Ref.Resolve()] = true
	}
	assert.Len(t, sets, 1)
	assert.NotEmpty(t, rec.Elements)
}

func TestImplicitRecord(t *testing.T) {
	g := mustCompile(t, "SELECT User")
	rec, ok := g.Selector[0].Expr.(*ir.Record)
	require.True(t, ok, "selector is %T", g.Selector[0].Expr)
	var names []string
	for _, el := range rec.Elements {
		if ref, ok := el.(*ir.AtomicRefSimple); ok {
			names = append(names, ref.Name)
		}
	}
	assert.Contains(t, names, schema.IDPointer)
	assert.Contains(t, names, "name")
	assert.Contains(t, names, "age")
	// Lazy links are not fetched.
	assert.NotContains(t, names, "manager")
	assert.Equal(t, 1, recordDepth(rec))
}

func TestRecursionGuard(t *testing.T) {
	g := mustCompile(t, "SELECT Node")
	rec, ok := g.Selector[0].Expr.(*ir.Record)
	require.True(t, ok, "selector is %T", g.Selector[0].Expr)
	assert.Equal(t, 3, recordDepth(rec))

	g = mustCompile(t, "SELECT (SELECT Node FILTER Node.a = 1).a")
	for _, sub := range optimizer.Graphs(g) {
		for _, sel := range sub.Selector {
			assert.LessOrEqual(t, recordDepth(sel.Expr), 3)
		}
	}
}

func TestShape(t *testing.T) {
	g := mustCompile(t, "SELECT User { name, friends: { name } ORDER BY .name LIMIT 2 }")
	rec, ok := g.Selector[0].Expr.(*ir.Record)
	require.True(t, ok, "selector is %T", g.Selector[0].Expr)
	var friends *ir.SubgraphRef
	for _, el := range rec.Elements {
		if ref, ok := el.(*ir.SubgraphRef); ok && ref.Name == "friends" {
			friends = ref
		}
	}
	require.NotNil(t, friends)
	require.NotNil(t, friends.Ref)
	assert.NotNil(t, friends.Ref.AggregateResult)
	assert.Len(t, friends.Ref.Sorter, 1)
	assert.NotNil(t, friends.Ref.Limit)
}

func TestShapeErrors(t *testing.T) {
	_, err := compile(t, "SELECT User { nam }")
	require.Error(t, err)
	assert.True(t, zqe.IsReference(err))
	assert.Contains(t, err.Error(), "does not resolve to any known path")

	_, err = compile(t, "SELECT User { name += 'x' }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only valid in UPDATE")
}

func TestUnknownPointer(t *testing.T) {
	_, err := compile(t, "SELECT User.nam")
	require.Error(t, err)
	assert.True(t, zqe.IsReference(err))
	assert.Contains(t, err.Error(), "does not resolve to any known path")
	assert.Contains(t, zqe.HintOf(err), "name")
}

func TestLinkPropertyOutsideLink(t *testing.T) {
	_, err := compile(t, "SELECT User.name@since")
	require.Error(t, err)
	assert.True(t, zqe.IsReference(err))
}

func TestSearchRequiresSearchable(t *testing.T) {
	_, err := compile(t, "SELECT Log FILTER Log @@ 'x'")
	require.Error(t, err)
	assert.True(t, zqe.IsDomain(err))
	assert.Contains(t, err.Error(), "default::Log has no searchable properties")
	assert.Equal(t, `Configure search for "default::Log"`, zqe.HintOf(err))

	_, err = compile(t, "SELECT User FILTER User @@ 'x'")
	assert.NoError(t, err)
}

func TestGroupByReference(t *testing.T) {
	_, err := compile(t, "FOR GROUP User USING n := User.name BY n INTO g UNION User.age")
	require.Error(t, err)
	assert.True(t, zqe.IsReference(err))
	assert.Contains(t, err.Error(), "must appear in the GROUP BY expression or used in an aggregate function")

	g := mustCompile(t, "FOR GROUP User USING n := User.name BY n INTO g UNION count(g)")
	assert.Len(t, g.Grouper, 1)
	assert.NotNil(t, g.Generator)
}

func TestGroup(t *testing.T) {
	g := mustCompile(t, "GROUP User BY .name")
	require.Len(t, g.Grouper, 1)
	require.Len(t, g.Selector, 2)
	assert.Equal(t, "name", g.Selector[0].Name)
	assert.Equal(t, "elements", g.Selector[1].Name)
	assert.True(t, ir.Aggregated(g.Selector[1].Expr))
}

func TestSubqueryColumns(t *testing.T) {
	_, err := compile(t, "SELECT (GROUP User BY .name)")
	require.Error(t, err)
	assert.True(t, zqe.IsDomain(err))
	assert.Contains(t, err.Error(), "subquery must return only one column")
}

func TestWithBlock(t *testing.T) {
	g := mustCompile(t, "WITH u := (SELECT User FILTER .age > 1) SELECT u.name")
	require.Len(t, g.CGEs, 1)
	assert.Equal(t, "u", g.CGEs[0].Alias)

	g = mustCompile(t, "WITH n := User.name SELECT n")
	assert.Empty(t, g.CGEs)
	require.Len(t, g.Selector, 1)
}

func TestModuleAliasDecl(t *testing.T) {
	g := mustCompile(t, "WITH MODULE foo SELECT Bar")
	rec, ok := g.Selector[0].Expr.(*ir.Record)
	require.True(t, ok, "selector is %T", g.Selector[0].Expr)
	assert.Equal(t, "foo::Bar", rec.Concept.SchemaName().String())
}

func TestSetOp(t *testing.T) {
	g := mustCompile(t, "SELECT User.name UNION Log.msg")
	assert.Equal(t, "UNION", g.SetOp)
	assert.Len(t, g.SetOpArgs, 2)
}

func TestInsert(t *testing.T) {
	g := mustCompile(t, "INSERT User { name := 'x', age := 3 }")
	assert.Equal(t, "INSERT", g.OpType)
	assert.NotNil(t, g.OpTarget)
	assert.Len(t, g.OpValues, 2)
	require.Len(t, g.OpSelector, 1)
	require.Len(t, g.ResultTypes, 1)
	assert.Equal(t, g.OpSelector[0].Name, g.ResultTypes[0].Name)
}

func TestUpdateDelete(t *testing.T) {
	g := mustCompile(t, "UPDATE User FILTER .name = 'x' SET { age := .age + 1 }")
	assert.Equal(t, "UPDATE", g.OpType)
	assert.NotNil(t, g.Generator)
	require.Len(t, g.OpValues, 1)
	assert.Equal(t, ":=", g.OpValues[0].Op)

	g = mustCompile(t, "DELETE User FILTER .age > 10 ORDER BY .age LIMIT 1")
	assert.Equal(t, "DELETE", g.OpType)
	assert.NotNil(t, g.Generator)
	assert.Len(t, g.Sorter, 1)
	assert.NotNil(t, g.Limit)
}

func TestFor(t *testing.T) {
	g := mustCompile(t, "FOR u IN User UNION u.name")
	assert.NotNil(t, g.Generator)
	require.Len(t, g.Selector, 1)
}

func TestAnalyzeExprAnchors(t *testing.T) {
	snap := load(t)
	o, err := snap.Get("User", nil, schema.ClassObjectType)
	require.NoError(t, err)
	e, err := parser.ParseExpr("__subject__.name")
	require.NoError(t, err)
	require.NoError(t, normalize.Normalize(e, snap, nil, "__subject__"))
	out, err := semantic.AnalyzeExpr(context.Background(), e, snap, semantic.Options{
		Anchors: map[string]any{"__subject__": o},
	})
	require.NoError(t, err)
	ref, ok := out.(*ir.AtomicRefSimple)
	require.True(t, ok, "result is %T", out)
	assert.Equal(t, "name", ref.Name)
	assert.Equal(t, "__subject__", ref.Ref.Resolve().Anchor)
}

func TestCanceled(t *testing.T) {
	snap := load(t)
	stmt, err := parser.ParseStatement("SELECT User")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = semantic.Analyze(ctx, stmt, snap, semantic.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDepthLimit(t *testing.T) {
	snap := load(t)
	stmt, err := parser.ParseStatement("SELECT ((((1 + 1) + 1) + 1) + 1)")
	require.NoError(t, err)
	_, err = semantic.Analyze(context.Background(), stmt, snap, semantic.Options{DepthLimit: 2})
	require.Error(t, err)
	assert.True(t, zqe.IsRecursionLimit(err))
}
