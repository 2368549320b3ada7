package schema_test

import (
	"strings"
	"testing"

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
      - name: Named
        abstract: true
        pointers:
          - {name: name, target: str, required: true, searchable: true}
      - name: User
        extends: [Named]
        pointers:
          - {name: age, target: int64}
          - name: friends
            target: User
            multi: true
            properties:
              - {name: since, target: datetime}
          - {name: manager, target: User}
      - name: Issue
        extends: [Named]
        pointers:
          - {name: owner, target: User, loading: eager}
          - {name: watchers, target: User, multi: true}
          - {name: body, target: str}
  - name: foo
    types:
      - name: Bar
        pointers:
          - {name: baz, target: str}
`

func load(t *testing.T, src string) *schema.Snapshot {
	t.Helper()
	s, err := schema.Load(strings.NewReader(src))
	require.NoError(t, err)
	return s
}

func TestGet(t *testing.T) {
	s := load(t, testSchema)

	o, err := s.Get("User", schema.ModuleAliases{"": "default"}, schema.ClassObjectType)
	require.NoError(t, err)
	assert.Equal(t, "default::User", o.SchemaName().String())

	o, err = s.Get("default::User", nil, schema.ClassAny)
	require.NoError(t, err)
	assert.Equal(t, "default::User", o.SchemaName().String())

	o, err = s.Get("f::Bar", schema.ModuleAliases{"f": "foo"}, schema.ClassType)
	require.NoError(t, err)
	assert.Equal(t, "foo::Bar", o.SchemaName().String())

	// Bare names fall back to std.
	o, err = s.Get("str", schema.ModuleAliases{"": "default"}, schema.ClassScalarType)
	require.NoError(t, err)
	assert.Equal(t, "std::str", o.SchemaName().String())

	// Qualified names do not.
	_, err = s.Get("default::str", nil, schema.ClassAny)
	assert.True(t, zqe.IsNotFound(err))

	// Bare names default to the default module.
	o, err = s.Get("User", nil, schema.ClassAny)
	require.NoError(t, err)
	assert.Equal(t, "default::User", o.SchemaName().String())

	_, err = s.Get("User", schema.ModuleAliases{"": "foo"}, schema.ClassAny)
	assert.True(t, zqe.IsNotFound(err))

	_, err = s.Get("User", schema.ModuleAliases{"": "default"}, schema.ClassScalarType)
	assert.True(t, zqe.IsNotFound(err))
}

func TestNotFoundHint(t *testing.T) {
	s := load(t, testSchema)
	_, err := s.Get("Usr", schema.ModuleAliases{"": "default"}, schema.ClassAny)
	require.Error(t, err)
	assert.Equal(t, "reference to a non-existent schema item: Usr", err.(*zqe.Error).Message())
	assert.Equal(t, `did you mean "User"?`, zqe.HintOf(err))

	_, err = s.GetFunctions("cont", nil)
	require.Error(t, err)
	assert.Equal(t, `did you mean "count"?`, zqe.HintOf(err))
}

func TestGetFunctions(t *testing.T) {
	s := load(t, testSchema)
	fns, err := s.GetFunctions("count", schema.ModuleAliases{"": "default"})
	require.NoError(t, err)
	require.Len(t, fns, 1)
	assert.True(t, fns[0].Aggregate)
	assert.Equal(t, "std::count", fns[0].Name.String())

	fns, err = s.GetFunctions("search::rank", nil)
	require.NoError(t, err)
	require.Len(t, fns, 1)
	assert.False(t, fns[0].Aggregate)
}

func TestFunctionsSorted(t *testing.T) {
	s := load(t, testSchema)
	fns := s.Functions()
	require.NotEmpty(t, fns)
	for k := 1; k < len(fns); k++ {
		assert.LessOrEqual(t, fns[k-1].Name.String(), fns[k].Name.String())
	}
}

func TestPointers(t *testing.T) {
	s := load(t, testSchema)
	o, err := s.Get("default::User", nil, schema.ClassObjectType)
	require.NoError(t, err)
	user := o.(*schema.ObjectType)

	var names []string
	for _, p := range user.Pointers() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"id", "name", "age", "friends", "manager"}, names)

	name := user.Pointer("name")
	require.NotNil(t, name)
	assert.Equal(t, "default::Named", name.Source.SchemaName().String())
	assert.True(t, name.Eager)
	assert.True(t, name.Singular(schema.Outbound))
	assert.Equal(t, []*schema.Pointer{name}, user.SearchableLinks())

	friends := user.Pointer("friends")
	require.NotNil(t, friends)
	assert.False(t, friends.Eager)
	assert.False(t, friends.Singular(schema.Outbound))
	assert.True(t, friends.HasUserDefinedProperties())
	assert.True(t, friends.Property("target").IsEndpoint())
	assert.False(t, friends.Property("since").IsEndpoint())

	owner := user.ResolvePointer("owner", schema.Inbound, nil, false)
	require.NotNil(t, owner)
	assert.Equal(t, "default::Issue", owner.FarEndpoint(schema.Inbound).SchemaName().String())
	assert.False(t, owner.Singular(schema.Inbound))

	assert.Nil(t, user.ResolvePointer("body", schema.Outbound, nil, false))
	named := user.Bases[0]
	assert.NotNil(t, named.ResolvePointer("body", schema.Outbound, nil, true))
}

func TestMRO(t *testing.T) {
	s := load(t, `
modules:
  - name: m
    types:
      - {name: A}
      - {name: B, extends: [A]}
      - {name: C, extends: [A]}
      - {name: D, extends: [B, C]}
`)
	o, err := s.Get("m::D", nil, schema.ClassObjectType)
	require.NoError(t, err)
	var mro []string
	for _, t := range o.(*schema.ObjectType).MRO() {
		mro = append(mro, t.Name.String())
	}
	assert.Equal(t, []string{"m::D", "m::B", "m::C", "m::A", "std::Object"}, mro)

	a, err := s.Get("m::A", nil, schema.ClassObjectType)
	require.NoError(t, err)
	assert.True(t, o.(schema.Type).IsSubclass(a.(schema.Type)))
	assert.False(t, a.(schema.Type).IsSubclass(o.(schema.Type)))
	assert.Len(t, a.(*schema.ObjectType).Children(), 3)
}

func TestInconsistentMRO(t *testing.T) {
	_, err := schema.Load(strings.NewReader(`
modules:
  - name: m
    types:
      - {name: A}
      - {name: B, extends: [A]}
      - {name: C, extends: [A, B]}
`))
	require.Error(t, err)
	assert.True(t, zqe.IsTree(err))
	assert.Contains(t, err.Error(), "could not find consistent MRO for m::C")
}

func TestBuildErrors(t *testing.T) {
	_, err := schema.Load(strings.NewReader(`
modules:
  - name: m
    types:
      - name: A
        pointers:
          - {name: x, target: Nope}
          - {name: y, target: str, loading: sometimes}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `pointer m::A.x has unknown target "Nope"`)
	assert.Contains(t, err.Error(), `unknown loading "sometimes"`)

	_, err = schema.Load(strings.NewReader("modules:\n  - name: m\n    bogus: 1\n"))
	assert.Error(t, err)
}

func TestSuggest(t *testing.T) {
	assert.Equal(t, `did you mean "name"?`, schema.Suggest("nme", []string{"name", "age", "friends"}))
	assert.Equal(t, "", schema.Suggest("zzzzzz", []string{"name", "age"}))
	assert.Equal(t, `did you mean "age" or "name"?`, schema.Suggest("ame", []string{"name", "age"}))
}

func TestCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := load(t, testSchema)
	user, err := s.Get("default::User", nil, schema.ClassAny)
	require.NoError(t, err)

	m := mock.NewMockLookup(ctrl)
	aliases := schema.ModuleAliases{"": "default"}
	m.EXPECT().Get("User", aliases, schema.ClassObjectType).Return(user, nil).Times(1)
	m.EXPECT().GetFunctions("count", aliases).Return(nil, zqe.E(zqe.NotFound, "nope")).Times(1)

	c, err := schema.NewCached(m, 16)
	require.NoError(t, err)
	for k := 0; k < 3; k++ {
		o, err := c.Get("User", aliases, schema.ClassObjectType)
		require.NoError(t, err)
		assert.Same(t, user, o)
		_, err = c.GetFunctions("count", aliases)
		assert.True(t, zqe.IsNotFound(err))
	}
}

func TestModuleAliases(t *testing.T) {
	m := schema.ModuleAliases{"": "default", "f": "foo"}
	assert.Equal(t, "foo", m.Resolve("f"))
	assert.Equal(t, "bar", m.Resolve("bar"))
	mod, ok := m.Default()
	assert.True(t, ok)
	assert.Equal(t, "default", mod)
	n := m.With("", "other")
	assert.Equal(t, "default", m[""])
	assert.Equal(t, "other", n[""])
	assert.Equal(t, "=default;f=foo;", m.Key())
	assert.Equal(t, schema.Name{Module: "a::b", Name: "c"}, schema.ParseName("a::b::c"))
}
