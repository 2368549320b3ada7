package unpack_test

import (
	"testing"

	"github.com/brimdata/edgeql/pkg/unpack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Expr interface {
	Which() string
}

type Loc struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

type BinaryExpr struct {
	Kind string `json:"kind" unpack:""`
	Op   string `json:"op"`
	LHS  Expr   `json:"lhs"`
	RHS  Expr   `json:"rhs"`
	Loc  `json:"loc"`
}

type UnaryExpr struct {
	Kind    string `json:"kind" unpack:""`
	Op      string `json:"op"`
	Operand Expr   `json:"operand"`
}

type List struct {
	Kind  string `json:"kind" unpack:""`
	Exprs []Expr `json:"exprs"`
}

type Terminal struct {
	Kind string `json:"kind" unpack:""`
	Body string `json:"body"`
}

type Pair struct {
	A Expr `json:"a"`
	B Expr `json:"b"`
}

type Embedded struct {
	Kind string `json:"kind" unpack:""`
	Root Pair   `json:"root"`
	Ptr  *Pair  `json:"ptr"`
}

func (*Terminal) Which() string   { return "Terminal" }
func (*BinaryExpr) Which() string { return "BinaryExpr" }
func (*UnaryExpr) Which() string  { return "UnaryExpr" }
func (*List) Which() string       { return "List" }
func (*Embedded) Which() string   { return "Embedded" }

func unpackExpr(t *testing.T, r *unpack.Reflector, s string) Expr {
	var e Expr
	require.NoError(t, r.Unmarshal([]byte(s), &e))
	return e
}

func TestUnpackBinaryExpr(t *testing.T) {
	const binaryExprJSON = `
{
	"kind": "BinaryExpr",
	"op": "+",
	"lhs": { "kind": "Terminal", "body": "foo" },
	"rhs": { "kind": "Terminal", "body": "bar" },
	"loc": { "first": 0, "last": 7 }
}`
	r := unpack.New(BinaryExpr{}, UnaryExpr{}, Terminal{}, List{})
	expected := &BinaryExpr{
		Kind: "BinaryExpr",
		Op:   "+",
		LHS:  &Terminal{Kind: "Terminal", Body: "foo"},
		RHS:  &Terminal{Kind: "Terminal", Body: "bar"},
		Loc:  Loc{First: 0, Last: 7},
	}
	assert.Equal(t, expected, unpackExpr(t, r, binaryExprJSON))
}

func TestUnpackWithAs(t *testing.T) {
	const withAsJSON = `
{
	"kind": "WithAs",
	"lhs": { "kind": "Terminal", "body": "foo" },
	"rhs": null
}`
	r := unpack.New(Terminal{}).AddAs(BinaryExpr{}, "WithAs")
	expected := &BinaryExpr{
		Kind: "WithAs",
		LHS:  &Terminal{Kind: "Terminal", Body: "foo"},
	}
	assert.Equal(t, expected, unpackExpr(t, r, withAsJSON))
}

func TestUnpackNested(t *testing.T) {
	const nestedJSON = `
{
	"kind": "BinaryExpr",
	"op": "AND",
	"lhs": {
		"kind": "UnaryExpr",
		"op": "NOT",
		"operand": { "kind": "Terminal", "body": "foo" }
	},
	"rhs": {
		"kind": "List",
		"exprs": [ { "kind": "Terminal", "body": "bar" }, { "kind": "Terminal", "body": "baz" } ]
	}
}`
	r := unpack.New(BinaryExpr{}, UnaryExpr{}, Terminal{}, List{})
	expected := &BinaryExpr{
		Kind: "BinaryExpr",
		Op:   "AND",
		LHS: &UnaryExpr{
			Kind:    "UnaryExpr",
			Op:      "NOT",
			Operand: &Terminal{Kind: "Terminal", Body: "foo"},
		},
		RHS: &List{
			Kind: "List",
			Exprs: []Expr{
				&Terminal{Kind: "Terminal", Body: "bar"},
				&Terminal{Kind: "Terminal", Body: "baz"},
			},
		},
	}
	assert.Equal(t, expected, unpackExpr(t, r, nestedJSON))
}

func TestUnpackEmbedded(t *testing.T) {
	const embeddedJSON = `
{
	"kind": "Embedded",
	"root": {
		"a": { "kind": "Terminal", "body": "a" },
		"b": { "kind": "Terminal", "body": "b" }
	},
	"ptr": {
		"a": { "kind": "Terminal", "body": "c" },
		"b": { "kind": "Terminal", "body": "d" }
	}
}`
	r := unpack.New(Terminal{}, Embedded{})
	expected := &Embedded{
		Kind: "Embedded",
		Root: Pair{
			A: &Terminal{Kind: "Terminal", Body: "a"},
			B: &Terminal{Kind: "Terminal", Body: "b"},
		},
		Ptr: &Pair{
			A: &Terminal{Kind: "Terminal", Body: "c"},
			B: &Terminal{Kind: "Terminal", Body: "d"},
		},
	}
	assert.Equal(t, expected, unpackExpr(t, r, embeddedJSON))
}

func TestUnpackErrors(t *testing.T) {
	r := unpack.New(Terminal{})
	var e Expr
	err := r.Unmarshal([]byte(`{"kind": "Nope"}`), &e)
	assert.ErrorContains(t, err, `no type registered for kind "Nope"`)
	err = r.Unmarshal([]byte(`{"body": "x"}`), &e)
	assert.ErrorContains(t, err, "no discriminator")
	assert.ErrorIs(t, r.Unmarshal([]byte(`{}`), e), unpack.ErrNotPtr)
}

func TestUnpackBadTemplate(t *testing.T) {
	type noTag struct {
		Kind string `json:"kind"`
	}
	assert.Panics(t, func() { unpack.New(noTag{}) })
}
