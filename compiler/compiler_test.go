package compiler_test

import (
	"context"
	"strings"
	"testing"

	"github.com/brimdata/edgeql/compiler"
	"github.com/brimdata/edgeql/compiler/ast"
	"github.com/brimdata/edgeql/compiler/ir"
	zqe "github.com/brimdata/edgeql/errors"
	"github.com/brimdata/edgeql/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
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
      - name: Log
        pointers:
          - {name: msg, target: str}
  - name: foo
    types:
      - name: Bar
        pointers:
          - {name: baz, target: str}
`

func snapshot(t *testing.T) *schema.Snapshot {
	t.Helper()
	s, err := schema.Load(strings.NewReader(testSchema))
	require.NoError(t, err)
	return s
}

// userSets collects the distinct User sets that atomic references point
// at.  Children does not follow Ref edges, so the sets are reached through
// the references.
func userSets(g *ir.GraphExpr) map[*ir.EntitySet]bool {
	sets := map[*ir.EntitySet]bool{}
	for _, n := range ir.Find(g, func(n ir.Node) bool {
		_, ok := n.(*ir.AtomicRefSimple)
		return ok
	}) {
		ref := n.(*ir.AtomicRefSimple).Ref
		if ref == nil {
			continue
		}
		if set := ref.Resolve(); set.Concept.SchemaName().String() == "default::User" {
			sets[set] = true
		}
	}
	return sets
}

func TestCompileMergesClauses(t *testing.T) {
	g, err := compiler.CompileToIR(context.Background(), "SELECT User.name FILTER User.age > 18 ORDER BY User.name", snapshot(t))
	require.NoError(t, err)
	sets := userSets(g)
	require.Len(t, sets, 1)
	for set := range sets {
		for _, loc := range []ir.Location{ir.Generator, ir.Selector, ir.Sorter} {
			assert.True(t, set.Users.Has(loc), "set missing user %s", loc)
		}
	}
	require.Len(t, g.ResultTypes, 1)
	assert.Equal(t, "name", g.ResultTypes[0].Name)
}

func TestParseModuleAliases(t *testing.T) {
	snap := snapshot(t)
	stmt, err := compiler.Parse("SELECT Bar", schema.ModuleAliases{"": "foo"})
	require.NoError(t, err)
	q := stmt.(*ast.SelectQuery)
	require.Len(t, q.Aliases, 1)

	require.NoError(t, compiler.Normalize(stmt, snap, nil))
	assert.Len(t, q.Aliases, 0)
	root := q.Result.(*ast.Path).Steps[0].(*ast.ObjectRef)
	assert.Equal(t, "foo", root.Module)
	assert.Equal(t, "Bar", root.Name)
}

func TestInsertNonPath(t *testing.T) {
	_, err := compiler.CompileToIR(context.Background(), "INSERT 5", snapshot(t))
	require.Error(t, err)
	assert.True(t, zqe.IsSyntax(err))
	assert.Contains(t, err.Error(), "INSERT only works with object types")
	assert.Contains(t, zqe.HintOf(err), "parentheses")
}

func TestAggregateMix(t *testing.T) {
	_, err := compiler.CompileToIR(context.Background(), "SELECT User FILTER count(User.friends) = User.age", snapshot(t))
	require.Error(t, err)
	assert.True(t, zqe.IsTree(err))
	assert.Contains(t, err.Error(), "invalid expression mix of aggregates and non-aggregates")
}

func TestCompileFragment(t *testing.T) {
	snap := snapshot(t)
	user, err := snap.Get("User", nil, schema.ClassObjectType)
	require.NoError(t, err)
	anchors := map[string]any{"__subject__": user}

	e, err := compiler.CompileFragmentToIR(context.Background(), "__subject__.name", snap, compiler.WithAnchors(anchors))
	require.NoError(t, err)
	ref, ok := e.(*ir.AtomicRefSimple)
	require.True(t, ok, "got %T", e)
	assert.Equal(t, "name", ref.Name)

	e, err = compiler.CompileFragmentToIR(context.Background(), "(SELECT Log.msg)", snap)
	require.NoError(t, err)
	assert.IsType(t, &ir.GraphExpr{}, e)
}

func TestCompileAll(t *testing.T) {
	snap := snapshot(t)
	graphs, err := compiler.CompileAll(context.Background(), "SELECT User.name; SELECT Log.msg; SELECT foo::Bar.baz", snap)
	require.NoError(t, err)
	require.Len(t, graphs, 3)
	names := []string{"name", "msg", "baz"}
	for k, g := range graphs {
		require.NotNil(t, g)
		require.Len(t, g.ResultTypes, 1)
		assert.Equal(t, names[k], g.ResultTypes[0].Name)
	}

	_, err = compiler.CompileAll(context.Background(), "SELECT User.nam; SELECT Log.msg; SELECT Log.mgs", snap)
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "statement 1")
	assert.Contains(t, errs[1].Error(), "statement 3")
	assert.True(t, zqe.IsReference(errs[0]))
}

func TestCompileLogsID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	_, err := compiler.CompileToIR(context.Background(), "SELECT User", snapshot(t), compiler.WithLogger(zap.New(core)))
	require.NoError(t, err)
	entries := logs.FilterMessage("compiled statement").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "SelectQuery", fields["kind"])
	assert.NotEmpty(t, fields["compile_id"])
}

func TestCompileCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := compiler.CompileToIR(ctx, "SELECT User", snapshot(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDepthLimit(t *testing.T) {
	_, err := compiler.CompileToIR(context.Background(), "SELECT ((((1 + 1) + 1) + 1) + 1)", snapshot(t), compiler.WithDepthLimit(2))
	require.Error(t, err)
	assert.True(t, zqe.IsRecursionLimit(err))
}
