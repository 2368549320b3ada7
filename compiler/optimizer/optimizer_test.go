package optimizer_test

import (
	"context"
	"strings"
	"testing"

	"github.com/brimdata/edgeql/compiler/ir"
	"github.com/brimdata/edgeql/compiler/optimizer"
	zqe "github.com/brimdata/edgeql/errors"
	"github.com/brimdata/edgeql/schema"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSchema = `
modules:
  - name: default
    types:
      - name: User
        pointers:
          - {name: name, target: str}
          - {name: age, target: int64}
          - {name: manager, target: User}
          - {name: friends, target: User, multi: true}
`

func user(t *testing.T) *schema.ObjectType {
	t.Helper()
	s, err := schema.Load(strings.NewReader(testSchema))
	require.NoError(t, err)
	o, err := s.Get("User", nil, schema.ClassObjectType)
	require.NoError(t, err)
	return o.(*schema.ObjectType)
}

// follow adds an optional link from src along ptr and returns it.
func follow(src *ir.EntitySet, ptr *schema.Pointer, loc ir.Location) *ir.EntityLink {
	target := ir.NewEntitySet(ptr.Target, loc)
	target.ID = src.ID.Extend(ptr, schema.Outbound, ptr.Target)
	link := &ir.EntityLink{Source: src, Target: target, Ptr: ptr, Direction: schema.Outbound}
	if loc != "" {
		link.Users.Add(loc)
	}
	target.Rlink = link
	src.Disjunction.Paths.Add(link)
	return link
}

func attr(set *ir.EntitySet, ptr *schema.Pointer) *ir.AtomicRefSimple {
	ref := &ir.AtomicRefSimple{Ref: set, Name: ptr.Name, Ptr: ptr, ID: set.ID.Extend(ptr, schema.Outbound, ptr.Target)}
	set.Atomrefs.Add(ref)
	return ref
}

func TestPromoteWeakPaths(t *testing.T) {
	u := user(t)

	set := ir.NewEntitySet(u, ir.Generator)
	link := follow(set, u.Pointer("manager"), ir.Generator)
	optimizer.PromoteWeakPaths(set)
	assert.True(t, set.Conjunction.Paths.Has(link))
	assert.Equal(t, 0, set.Disjunction.Paths.Len())

	fixed := ir.NewEntitySet(u, ir.Generator)
	follow(fixed, u.Pointer("manager"), ir.Generator)
	fixed.Disjunction.Fixed = true
	optimizer.PromoteWeakPaths(fixed)
	assert.Equal(t, 0, fixed.Conjunction.Paths.Len())
	assert.Equal(t, 1, fixed.Disjunction.Paths.Len())

	two := ir.NewEntitySet(u, ir.Generator)
	follow(two, u.Pointer("manager"), ir.Generator)
	follow(two, u.Pointer("friends"), ir.Generator)
	optimizer.PromoteWeakPaths(two)
	assert.Equal(t, 0, two.Conjunction.Paths.Len())
	assert.Equal(t, 2, two.Disjunction.Paths.Len())
}

func TestPromoteNested(t *testing.T) {
	u := user(t)
	root := ir.NewEntitySet(u, ir.Generator)
	outer := follow(root, u.Pointer("manager"), ir.Generator)
	inner := follow(outer.Target, u.Pointer("manager"), ir.Generator)
	optimizer.PromoteWeakPaths(root)
	assert.True(t, root.Conjunction.Paths.Has(outer))
	assert.True(t, outer.Target.Conjunction.Paths.Has(inner))
}

func TestReorderAggregates(t *testing.T) {
	u := user(t)
	set := ir.NewEntitySet(u, ir.Generator)
	age := attr(set, u.Pointer("age"))
	count := &ir.FunctionCall{Name: schema.NewName(schema.StdModule, "count"), Args: []ir.Expr{set}, Aggregates: true}

	e := &ir.BinOp{Left: &ir.BinOp{Left: age, Op: ">", Right: &ir.Constant{Value: int64(1)}}, Op: "AND", Right: count}
	out, err := optimizer.ReorderAggregates(e)
	require.NoError(t, err)
	and := out.(*ir.BinOp)
	assert.Same(t, count, and.Left)
	assert.False(t, and.Aggregates)

	cmp := &ir.BinOp{Left: count, Op: ">", Right: &ir.Constant{Value: int64(3)}}
	out, err = optimizer.ReorderAggregates(cmp)
	require.NoError(t, err)
	assert.True(t, ir.Aggregated(out))

	mix := &ir.BinOp{Left: count, Op: "=", Right: age}
	_, err = optimizer.ReorderAggregates(mix)
	require.Error(t, err)
	assert.True(t, zqe.IsTree(err))
	assert.Contains(t, err.Error(), "invalid expression mix of aggregates and non-aggregates")
}

func TestApplyFixups(t *testing.T) {
	u := user(t)
	set := ir.NewEntitySet(u, ir.Generator)
	selected := follow(set, u.Pointer("manager"), ir.Selector)
	filtered := follow(set, u.Pointer("friends"), ir.Generator)
	set.Conjunction.Paths.Add(selected, filtered)
	set.Disjunction = &ir.Disjunction{}
	g := &ir.GraphExpr{ID: ksuid.New(), Generator: set}

	optimizer.ApplyFixups(g)
	assert.True(t, set.Conjunction.Paths.Has(filtered))
	assert.False(t, set.Conjunction.Paths.Has(selected))
	assert.True(t, set.Disjunction.Paths.Has(selected))
}

func TestLinkSubqueries(t *testing.T) {
	u := user(t)
	outer := ir.NewEntitySet(u, ir.Generator)
	inner := ir.NewEntitySet(u, ir.Selector)
	sub := &ir.GraphExpr{ID: ksuid.New(), Selector: []*ir.SelectorExpr{{Expr: inner}}}
	g := &ir.GraphExpr{
		ID:        ksuid.New(),
		Generator: outer,
		Selector:  []*ir.SelectorExpr{{Expr: &ir.SubgraphRef{Ref: sub, Name: "0"}}},
	}
	g.Subgraphs.Add(sub)

	optimizer.LinkSubqueries(g)
	assert.Same(t, outer, inner.Reference)
	assert.Nil(t, outer.Reference)
}

func TestGraphs(t *testing.T) {
	u := user(t)
	leaf := &ir.GraphExpr{ID: ksuid.New(), Selector: []*ir.SelectorExpr{{Expr: ir.NewEntitySet(u, ir.Selector)}}}
	mid := &ir.GraphExpr{ID: ksuid.New(), Selector: []*ir.SelectorExpr{{Expr: &ir.SubgraphRef{Ref: leaf, Name: "0"}}}}
	top := &ir.GraphExpr{ID: ksuid.New(), CGEs: []*ir.CommonGraphExpr{{Expr: mid, Alias: "m"}}}
	graphs := optimizer.Graphs(top)
	require.Len(t, graphs, 3)
	assert.Same(t, top, graphs[0])
	assert.Same(t, mid, graphs[1])
	assert.Same(t, leaf, graphs[2])
}

func TestOptimize(t *testing.T) {
	u := user(t)
	set := ir.NewEntitySet(u, ir.Generator)
	count := &ir.FunctionCall{Name: schema.NewName(schema.StdModule, "count"), Args: []ir.Expr{set}, Aggregates: true}
	age := attr(set, u.Pointer("age"))
	g := &ir.GraphExpr{
		ID:        ksuid.New(),
		Generator: &ir.BinOp{Left: age, Op: "AND", Right: count},
		Selector:  []*ir.SelectorExpr{{Expr: set}},
	}
	o := optimizer.New(context.Background(), g, zaptest.NewLogger(t))
	require.NoError(t, o.Optimize())
	assert.Same(t, count, g.Generator.(*ir.BinOp).Left)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := optimizer.New(ctx, g, nil).Optimize()
	assert.ErrorIs(t, err, context.Canceled)
}
