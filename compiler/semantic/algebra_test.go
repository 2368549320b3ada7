package semantic

import (
	"context"
	"strings"
	"testing"

	"github.com/brimdata/edgeql/compiler/ir"
	"github.com/brimdata/edgeql/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const algebraSchema = `
modules:
  - name: default
    types:
      - name: User
        pointers:
          - {name: name, target: str}
          - {name: manager, target: User}
          - {name: logs, target: Log, multi: true}
      - name: Log
        pointers:
          - {name: msg, target: str}
`

func testAnalyzer(t *testing.T) (*analyzer, *schema.ObjectType, *schema.ObjectType) {
	t.Helper()
	snap, err := schema.Load(strings.NewReader(algebraSchema))
	require.NoError(t, err)
	get := func(name string) *schema.ObjectType {
		o, err := snap.Get(name, nil, schema.ClassObjectType)
		require.NoError(t, err)
		return o.(*schema.ObjectType)
	}
	return newAnalyzer(context.Background(), snap, Options{}), get("User"), get("Log")
}

func TestWeakOps(t *testing.T) {
	a, _, _ := testAnalyzer(t)
	gen := a.merger(ir.Generator)
	assert.False(t, gen.isWeakOp("AND"))
	assert.False(t, gen.isWeakOp("="))
	assert.True(t, gen.isWeakOp("OR"))
	assert.True(t, gen.isWeakOp("IN"))
	// Outside the generator every operator is weak.
	assert.True(t, a.merger(ir.Selector).isWeakOp("AND"))
}

// follow adds a link along ptr out of root the way path steps do: the
// link starts out as an optional link of root.
func follow(root *ir.EntitySet, ptr *schema.Pointer) (*ir.EntitySet, *ir.EntityLink) {
	link := &ir.EntityLink{Source: root, Ptr: ptr, Direction: schema.Outbound}
	link.Users.Add(ir.Generator)
	target := ir.NewEntitySet(ptr.Target, ir.Generator)
	target.ID = root.ID.Extend(ptr, schema.Outbound, ptr.Target)
	target.Rlink = link
	link.Target = target
	root.Disjunction.Paths.Add(link)
	return target, link
}

func TestMergeBinopPaths(t *testing.T) {
	a, user, _ := testAnalyzer(t)
	m := a.merger(ir.Generator)

	// User.manager AND User.logs: both links are required of one User set.
	rootA, rootB := ir.NewEntitySet(user, ir.Generator), ir.NewEntitySet(user, ir.Generator)
	manager, managerLink := follow(rootA, user.Pointer("manager"))
	logs, logsLink := follow(rootB, user.Pointer("logs"))
	m.mergePaths(&ir.BinOp{Left: manager, Op: "AND", Right: logs})
	require.Nil(t, a.err)
	root := rootB.Resolve()
	assert.Same(t, rootA, root)
	assert.True(t, root.Conjunction.Paths.Has(managerLink))
	assert.True(t, root.Conjunction.Paths.Has(logsLink))
	assert.Equal(t, 0, root.Disjunction.Paths.Len())

	// User.manager OR User.logs: both links stay optional and the
	// disjunction is fixed so that it is never promoted.
	rootA, rootB = ir.NewEntitySet(user, ir.Generator), ir.NewEntitySet(user, ir.Generator)
	manager, managerLink = follow(rootA, user.Pointer("manager"))
	logs, logsLink = follow(rootB, user.Pointer("logs"))
	m.mergePaths(&ir.BinOp{Left: manager, Op: "OR", Right: logs})
	require.Nil(t, a.err)
	root = rootB.Resolve()
	assert.Same(t, rootA, root)
	assert.True(t, root.Disjunction.Paths.Has(managerLink))
	assert.True(t, root.Disjunction.Paths.Has(logsLink))
	assert.True(t, root.Disjunction.Fixed)
	assert.Equal(t, 0, root.Conjunction.Paths.Len())
}

func TestAddLinksKeepsMergedTarget(t *testing.T) {
	a, user, _ := testAnalyzer(t)
	m := a.merger(ir.Selector)

	rootA, rootB := ir.NewEntitySet(user, ir.Selector), ir.NewEntitySet(user, ir.Selector)
	targetA, linkA := follow(rootA, user.Pointer("manager"))
	targetB, linkB := follow(rootB, user.Pointer("manager"))
	merged := m.addSets(linkA, linkB, mergeMode{})
	require.Nil(t, a.err)
	assert.Same(t, targetA, merged)
	assert.Same(t, linkA, linkB.Resolve())
	assert.Same(t, targetA, targetB.Resolve())
	assert.Same(t, targetA, linkA.Target.Resolve())
	assert.Same(t, targetA, linkB.Resolve().Target.Resolve())
}

func TestCombineUnrelatedSets(t *testing.T) {
	a, user, log := testAnalyzer(t)
	m := a.merger(ir.Generator)

	u, l := ir.NewEntitySet(user, ir.Generator), ir.NewEntitySet(log, ir.Generator)
	both := m.intersectPaths(u, l, mergeMode{})
	require.IsType(t, &ir.Conjunction{}, both)
	assert.Equal(t, 2, both.(*ir.Conjunction).Paths.Len())

	u, l = ir.NewEntitySet(user, ir.Generator), ir.NewEntitySet(log, ir.Generator)
	either := m.addPaths(u, l, mergeMode{})
	require.IsType(t, &ir.Disjunction{}, either)
	assert.Equal(t, 2, either.(*ir.Disjunction).Paths.Len())
	assert.Nil(t, a.err)
}

func TestUnifyIdempotent(t *testing.T) {
	a, user, _ := testAnalyzer(t)
	m := a.merger(ir.Selector)

	set := ir.NewEntitySet(user, ir.Selector)
	assert.Same(t, set, m.unifyPaths([]ir.Node{set, set}, true, true, mergeMode{}))
	assert.Same(t, set, m.unifyPaths([]ir.Node{set, set}, false, true, mergeMode{}))

	// A second set at the same position merges into the first.
	other := ir.NewEntitySet(user, ir.Generator)
	p := m.unifyPaths([]ir.Node{set, other}, true, true, mergeMode{})
	assert.Same(t, set, p)
	assert.Same(t, set, other.Resolve())
	assert.True(t, set.Users.Has(ir.Generator))
	assert.Nil(t, a.err)
}

func TestJoinSymmetry(t *testing.T) {
	a, user, log := testAnalyzer(t)
	s := scope{location: ir.Generator}

	u1, l1 := ir.NewEntitySet(user, ir.Generator), ir.NewEntitySet(log, ir.Generator)
	_, err := a.processBinop(s, u1, l1, "=")
	require.NoError(t, err)

	u2, l2 := ir.NewEntitySet(user, ir.Generator), ir.NewEntitySet(log, ir.Generator)
	_, err = a.processBinop(s, l2, u2, "=")
	require.NoError(t, err)

	for _, pair := range [][2]*ir.EntitySet{{u1, l1}, {u2, l2}} {
		u, l := pair[0], pair[1]
		assert.True(t, u.Joins.Has(l))
		assert.True(t, l.Joins.Has(u))
		assert.True(t, u.Backrefs.Has(l))
		assert.True(t, l.Backrefs.Has(u))
		assert.Equal(t, 1, u.Joins.Len())
		assert.Equal(t, 1, l.Joins.Len())
	}
}

func TestGenAlias(t *testing.T) {
	a, _, _ := testAnalyzer(t)
	assert.Equal(t, "name", a.genAlias("name"))
	assert.Equal(t, "name2", a.genAlias("name"))
	assert.Equal(t, "a", a.genAlias(""))
	assert.Equal(t, "a2", a.genAlias(""))
}
