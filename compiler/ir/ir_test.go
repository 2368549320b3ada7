package ir_test

import (
	"strings"
	"testing"

	"github.com/brimdata/edgeql/compiler/ir"
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
          - {name: name, target: str}
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

// follow adds a link from src along ptr and returns the target set.
func follow(src *ir.EntitySet, ptr *schema.Pointer) *ir.EntitySet {
	target := ir.NewEntitySet(ptr.Target, ir.Generator)
	target.ID = src.ID.Extend(ptr, schema.Outbound, ptr.Target)
	link := &ir.EntityLink{Source: src, Target: target, Ptr: ptr, Direction: schema.Outbound}
	target.Rlink = link
	src.Disjunction.Paths.Add(link)
	return target
}

func TestLinearPath(t *testing.T) {
	u := user(t)
	friends := u.Pointer("friends")
	root := ir.NewLinearPath(u)
	p := root.Extend(friends, schema.Outbound, u)
	q := root.Extend(friends, schema.Outbound, u)
	assert.True(t, p.Equal(q))
	assert.False(t, p.Equal(root))
	assert.True(t, p.HasPrefix(root))
	assert.False(t, root.HasPrefix(p))
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, 1, root.Len())
	assert.Equal(t, "default::User[>friends]default::User", p.String())
	assert.Equal(t, "default::User[>default::User.friends]default::User", p.Key())

	w := p.WithWildcardTail()
	assert.Nil(t, w.Tail())
	assert.False(t, w.Equal(p))
	assert.Equal(t, "default::User[>friends]%", w.String())
	// The original is untouched.
	assert.Equal(t, u, p.Tail())
	assert.True(t, root.WithWildcardTail().IsZero())
}

func TestSet(t *testing.T) {
	var s ir.Set[string]
	assert.True(t, s.Add("b", "a"))
	assert.False(t, s.Add("a"))
	s.Add("c")
	assert.Equal(t, []string{"b", "a", "c"}, s.Items())
	s.Remove("a")
	assert.Equal(t, []string{"b", "c"}, s.Items())
	assert.True(t, s.Has("c"))
	assert.False(t, s.Has("a"))
	assert.Equal(t, "b", s.First())
	assert.True(t, s.Equal(ir.NewSet("c", "b")))
	assert.Equal(t, []string{"b"}, s.Minus(ir.NewSet("c")).Items())
	assert.Equal(t, []string{"b", "c", "d"}, s.Union(ir.NewSet("d", "b")).Items())
	c := s.Clone()
	c.Add("z")
	assert.Equal(t, 2, s.Len())
}

func TestExtractPaths(t *testing.T) {
	u := user(t)
	users := ir.NewEntitySet(u, ir.Generator)
	friends := follow(users, u.Pointer("friends"))
	name := &ir.AtomicRefSimple{Ref: friends, Name: "name", Ptr: u.Pointer("name")}

	assert.Equal(t, ir.Path(friends), ir.ExtractPaths(name, ir.ExtractOpts{}))
	assert.Equal(t, ir.Path(name), ir.ExtractPaths(name, ir.ExtractOpts{KeepRefs: true}))
	assert.Equal(t, ir.Path(users), ir.ExtractPaths(name, ir.ExtractOpts{Reverse: true}))

	all := ir.ExtractPaths(name, ir.ExtractOpts{Reverse: true, AllFragments: true})
	require.IsType(t, &ir.Disjunction{}, all)
	assert.Equal(t, []ir.Path{friends, users}, all.(*ir.Disjunction).Paths.Items())

	other := ir.NewEntitySet(u, ir.Generator)
	cmp := &ir.BinOp{Left: name, Op: "=", Right: &ir.Constant{Value: "x"}}
	assert.Equal(t, ir.Path(friends), ir.ExtractPaths(cmp, ir.ExtractOpts{}))

	and := ir.ExtractPaths(&ir.BinOp{Left: cmp, Op: "AND", Right: other}, ir.ExtractOpts{})
	require.IsType(t, &ir.Conjunction{}, and)
	assert.Equal(t, []ir.Path{friends, other}, and.(*ir.Conjunction).Paths.Items())

	or := ir.ExtractPaths(&ir.BinOp{Left: cmp, Op: "OR", Right: other}, ir.ExtractOpts{})
	require.IsType(t, &ir.Disjunction{}, or)

	assert.Nil(t, ir.ExtractPaths(&ir.Constant{Value: 1}, ir.ExtractOpts{}))
	assert.Nil(t, ir.ExtractPaths(&ir.SubgraphRef{Ref: &ir.GraphExpr{}}, ir.ExtractOpts{}))
}

func TestFlatten(t *testing.T) {
	u := user(t)
	a := ir.NewEntitySet(u, "")
	b := ir.NewEntitySet(u, "")
	c := ir.NewEntitySet(u, "")
	d := ir.NewDisjunction(a, ir.NewDisjunction(b, ir.NewConjunction(c)))
	ir.Flatten(d, false)
	require.Equal(t, 3, d.Paths.Len())
	assert.Equal(t, ir.Path(a), d.Paths.Items()[0])
	assert.Equal(t, ir.Path(b), d.Paths.Items()[1])
	assert.IsType(t, &ir.Conjunction{}, d.Paths.Items()[2])
}

func TestCopyPath(t *testing.T) {
	u := user(t)
	users := ir.NewEntitySet(u, ir.Generator)
	friends := follow(users, u.Pointer("friends"))
	cp := ir.CopyPath(friends, true).(*ir.EntitySet)
	assert.NotSame(t, friends, cp)
	assert.True(t, cp.ID.Equal(friends.ID))
	assert.Same(t, friends, cp.Origin)
	require.NotNil(t, cp.Rlink)
	parent := cp.Rlink.Source
	assert.NotSame(t, users, parent)
	assert.Same(t, users, parent.Origin)
	assert.Equal(t, []ir.Path{cp.Rlink}, parent.Disjunction.Paths.Items())
	assert.Same(t, users, ir.RootSet(friends))
	assert.Same(t, parent, ir.RootSet(cp))
}

func TestCanonicalize(t *testing.T) {
	u := user(t)
	a := ir.NewEntitySet(u, ir.Selector)
	b := ir.NewEntitySet(u, ir.Generator)
	ref := &ir.AtomicRefSimple{Ref: b, Name: "name"}
	b.Atomrefs.Add(ref)
	a.Joins.Add(b)
	b.MergeInto(a)
	assert.Same(t, a, b.Resolve())
	g := &ir.GraphExpr{
		Generator: &ir.BinOp{Left: ref, Op: "=", Right: &ir.Constant{Value: "x"}},
		Selector:  []*ir.SelectorExpr{{Expr: b, Name: "u"}},
	}
	ir.Canonicalize(g)
	assert.Same(t, a, g.Selector[0].Expr)
	assert.Same(t, a, ref.Ref)
	// A set never joins itself.
	assert.Equal(t, 0, a.Joins.Len())
}

func TestDump(t *testing.T) {
	u := user(t)
	users := ir.NewEntitySet(u, ir.Selector)
	name := &ir.AtomicRefSimple{Ref: users, Name: "name", Ptr: u.Pointer("name")}
	users.Atomrefs.Add(name)
	g := &ir.GraphExpr{
		Selector: []*ir.SelectorExpr{{Expr: name, Name: "name"}},
		Sorter:   []*ir.SortExpr{{Expr: name, Direction: "ASC"}},
		Limit:    &ir.Constant{Value: 10},
	}
	expected := `select
  selector:
    name: s1.name
  sort: s1.name ASC
  limit: 10
s1: default::User id=default::User users=selector
  atomrefs: name
`
	assert.Equal(t, expected, ir.Dump(g))
	assert.Equal(t, `(s1.name = "x")`, ir.DumpExpr(&ir.BinOp{Left: name, Op: "=", Right: &ir.Constant{Value: "x"}}))
}
