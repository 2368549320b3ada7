// Package ast declares the types used to represent syntax trees for EdgeQL
// queries.
package ast

// This module is derived from the GO AST design pattern in
// https://golang.org/pkg/go/ast/
//
// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

type Node interface {
	Pos() int // Position of first character belonging to the node.
	End() int // Position of first character immediately after the node.
}

// Statement is the interface implemented by all top-level statement nodes.
type Statement interface {
	Node
	StatementAST()
}

// Query is a statement that may appear nested inside an expression.
type Query interface {
	Statement
	Expr
	WithBlock() *[]Alias
}

type Expr interface {
	Node
	ExprAST()
}

// Step is one element of a Path.
type Step interface {
	Node
	StepAST()
}

// Alias is an element of a WITH block.
type Alias interface {
	Node
	AliasAST()
}

// DDL is the interface implemented by schema definition statements.
type DDL interface {
	Statement
	DDLAST()
}

// Constant is the interface implemented by literal values.
type Constant interface {
	Expr
	ConstantAST()
}

// Loc is the source span of a node.  Last is the position immediately
// after the node.
type Loc struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

func NewLoc(first, last int) Loc { return Loc{First: first, Last: last} }

func (l Loc) Pos() int { return l.First }
func (l Loc) End() int { return l.Last }

// ----------------------------------------------------------------------------
// Aliases

// ModuleAliasDecl is "MODULE m" or "a AS MODULE m".  An empty Alias
// denotes the default module.
type ModuleAliasDecl struct {
	Kind   string `json:"kind" unpack:""`
	Alias  string `json:"alias"`
	Module string `json:"module"`
	Loc    `json:"loc"`
}

// AliasedExpr is "a := expr" in a WITH block, a USING clause, or a
// FOR iterator.
type AliasedExpr struct {
	Kind  string `json:"kind" unpack:""`
	Alias string `json:"alias"`
	Expr  Expr   `json:"expr"`
	Loc   `json:"loc"`
}

func (*ModuleAliasDecl) AliasAST() {}
func (*AliasedExpr) AliasAST()     {}

// ----------------------------------------------------------------------------
// Statements

type SelectQuery struct {
	Kind        string      `json:"kind" unpack:""`
	Aliases     []Alias     `json:"aliases"`
	Result      Expr        `json:"result"`
	ResultAlias string      `json:"result_alias"`
	Where       Expr        `json:"where"`
	OrderBy     []*SortExpr `json:"orderby"`
	Offset      Expr        `json:"offset"`
	Limit       Expr        `json:"limit"`
	// Implicit is set when the parser wrapped a bare expression.
	Implicit bool `json:"implicit"`
	Loc      `json:"loc"`
}

type InsertQuery struct {
	Kind           string          `json:"kind" unpack:""`
	Aliases        []Alias         `json:"aliases"`
	Subject        *Path           `json:"subject"`
	Shape          []*ShapeElement `json:"shape"`
	UnlessConflict *UnlessConflict `json:"unless_conflict"`
	Loc            `json:"loc"`
}

type UnlessConflict struct {
	Kind string `json:"kind" unpack:""`
	On   Expr   `json:"on"`
	Else Expr   `json:"else"`
	Loc  `json:"loc"`
}

type UpdateQuery struct {
	Kind    string          `json:"kind" unpack:""`
	Aliases []Alias         `json:"aliases"`
	Subject Expr            `json:"subject"`
	Where   Expr            `json:"where"`
	Shape   []*ShapeElement `json:"shape"`
	Loc     `json:"loc"`
}

type DeleteQuery struct {
	Kind    string      `json:"kind" unpack:""`
	Aliases []Alias     `json:"aliases"`
	Subject Expr        `json:"subject"`
	Where   Expr        `json:"where"`
	OrderBy []*SortExpr `json:"orderby"`
	Offset  Expr        `json:"offset"`
	Limit   Expr        `json:"limit"`
	Loc     `json:"loc"`
}

type ForQuery struct {
	Kind          string  `json:"kind" unpack:""`
	Aliases       []Alias `json:"aliases"`
	IteratorAlias string  `json:"iterator_alias"`
	Iterator      Expr    `json:"iterator"`
	Result        Expr    `json:"result"`
	Loc           `json:"loc"`
}

type GroupQuery struct {
	Kind         string         `json:"kind" unpack:""`
	Aliases      []Alias        `json:"aliases"`
	Subject      Expr           `json:"subject"`
	SubjectAlias string         `json:"subject_alias"`
	Using        []*AliasedExpr `json:"using"`
	By           []Expr         `json:"by"`
	Loc          `json:"loc"`
}

// InternalGroupQuery is the desugared
// "FOR GROUP ... USING ... BY ... INTO g UNION result" form.
type InternalGroupQuery struct {
	Kind          string         `json:"kind" unpack:""`
	Aliases       []Alias        `json:"aliases"`
	Subject       Expr           `json:"subject"`
	SubjectAlias  string         `json:"subject_alias"`
	Using         []*AliasedExpr `json:"using"`
	By            []Expr         `json:"by"`
	GroupAlias    string         `json:"group_alias"`
	GroupingAlias string         `json:"grouping_alias"`
	Result        Expr           `json:"result"`
	Where         Expr           `json:"where"`
	OrderBy       []*SortExpr    `json:"orderby"`
	Loc           `json:"loc"`
}

func (*SelectQuery) StatementAST()        {}
func (*InsertQuery) StatementAST()        {}
func (*UpdateQuery) StatementAST()        {}
func (*DeleteQuery) StatementAST()        {}
func (*ForQuery) StatementAST()           {}
func (*GroupQuery) StatementAST()         {}
func (*InternalGroupQuery) StatementAST() {}

func (*SelectQuery) ExprAST()        {}
func (*InsertQuery) ExprAST()        {}
func (*UpdateQuery) ExprAST()        {}
func (*DeleteQuery) ExprAST()        {}
func (*ForQuery) ExprAST()           {}
func (*GroupQuery) ExprAST()         {}
func (*InternalGroupQuery) ExprAST() {}

func (q *SelectQuery) WithBlock() *[]Alias        { return &q.Aliases }
func (q *InsertQuery) WithBlock() *[]Alias        { return &q.Aliases }
func (q *UpdateQuery) WithBlock() *[]Alias        { return &q.Aliases }
func (q *DeleteQuery) WithBlock() *[]Alias        { return &q.Aliases }
func (q *ForQuery) WithBlock() *[]Alias           { return &q.Aliases }
func (q *GroupQuery) WithBlock() *[]Alias         { return &q.Aliases }
func (q *InternalGroupQuery) WithBlock() *[]Alias { return &q.Aliases }

// ----------------------------------------------------------------------------
// DDL

type CreateModule struct {
	Kind string `json:"kind" unpack:""`
	Name string `json:"name"`
	Loc  `json:"loc"`
}

type DropModule struct {
	Kind string `json:"kind" unpack:""`
	Name string `json:"name"`
	Loc  `json:"loc"`
}

type CreateObjectType struct {
	Kind     string           `json:"kind" unpack:""`
	Name     *ObjectRef       `json:"name"`
	Abstract bool             `json:"abstract"`
	Bases    []*ObjectRef     `json:"bases"`
	Pointers []*CreatePointer `json:"pointers"`
	Loc      `json:"loc"`
}

// CreatePointer is a pointer declaration inside CREATE TYPE.
// PtrKind is "link" or "property".
type CreatePointer struct {
	Kind     string    `json:"kind" unpack:""`
	Name     string    `json:"name"`
	PtrKind  string    `json:"ptr_kind"`
	Target   *TypeName `json:"target"`
	Required bool      `json:"required"`
	Multi    bool      `json:"multi"`
	Loc      `json:"loc"`
}

type AlterObjectType struct {
	Kind    string     `json:"kind" unpack:""`
	Name    *ObjectRef `json:"name"`
	NewName *ObjectRef `json:"new_name"`
	Loc     `json:"loc"`
}

type DropObjectType struct {
	Kind string     `json:"kind" unpack:""`
	Name *ObjectRef `json:"name"`
	Loc  `json:"loc"`
}

func (*CreateModule) StatementAST()     {}
func (*DropModule) StatementAST()       {}
func (*CreateObjectType) StatementAST() {}
func (*AlterObjectType) StatementAST()  {}
func (*DropObjectType) StatementAST()   {}

func (*CreateModule) DDLAST()     {}
func (*DropModule) DDLAST()       {}
func (*CreateObjectType) DDLAST() {}
func (*AlterObjectType) DDLAST()  {}
func (*DropObjectType) DDLAST()   {}

// ----------------------------------------------------------------------------
// Paths

// A Path is a sequence of steps.  The first step of a non-partial path is
// an ObjectRef, a SpecialAnchor, or an ExprRoot.  A partial path (".name")
// is relative to the enclosing shape or filter subject.
type Path struct {
	Kind    string `json:"kind" unpack:""`
	Steps   []Step `json:"steps"`
	Partial bool   `json:"partial"`
	Loc     `json:"loc"`
}

// ObjectRef names a schema object, optionally qualified by Module.
type ObjectRef struct {
	Kind   string `json:"kind" unpack:""`
	Name   string `json:"name"`
	Module string `json:"module"`
	Loc    `json:"loc"`
}

const (
	Outbound = ">"
	Inbound  = "<"
)

// Ptr is a link or property traversal.  Type is "property" for a link
// property step ("@name").
type Ptr struct {
	Kind      string `json:"kind" unpack:""`
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Type      string `json:"type"`
	Loc       `json:"loc"`
}

type TypeIntersection struct {
	Kind string    `json:"kind" unpack:""`
	Type *TypeName `json:"type"`
	Loc  `json:"loc"`
}

// Splat is "*" (depth 1) or "**" (depth 2) in a shape.
type Splat struct {
	Kind         string            `json:"kind" unpack:""`
	Depth        int               `json:"depth"`
	Type         *TypeName         `json:"type"`
	Intersection *TypeIntersection `json:"intersection"`
	Loc          `json:"loc"`
}

// SpecialAnchor is one of __subject__, __source__, or __type__ used as a
// path root.
type SpecialAnchor struct {
	Kind string `json:"kind" unpack:""`
	Name string `json:"name"`
	Loc  `json:"loc"`
}

// ExprRoot is a parenthesized expression used as a path root.
type ExprRoot struct {
	Kind string `json:"kind" unpack:""`
	Expr Expr   `json:"expr"`
	Loc  `json:"loc"`
}

func (*ObjectRef) StepAST()        {}
func (*Ptr) StepAST()              {}
func (*TypeIntersection) StepAST() {}
func (*Splat) StepAST()            {}
func (*SpecialAnchor) StepAST()    {}
func (*ExprRoot) StepAST()         {}

// Root returns the first step of a non-partial path.
func (p *Path) Root() Step {
	if p.Partial || len(p.Steps) == 0 {
		return nil
	}
	return p.Steps[0]
}

// ----------------------------------------------------------------------------
// Shapes

type Shape struct {
	Kind     string          `json:"kind" unpack:""`
	Expr     Expr            `json:"expr"`
	Elements []*ShapeElement `json:"elements"`
	Loc      `json:"loc"`
}

const (
	Assign   = ":="
	Append   = "+="
	Subtract = "-="
)

type ShapeElement struct {
	Kind        string          `json:"kind" unpack:""`
	Expr        *Path           `json:"expr"`
	Elements    []*ShapeElement `json:"elements"`
	Compexpr    Expr            `json:"compexpr"`
	Operation   string          `json:"operation"`
	Required    bool            `json:"required"`
	Cardinality string          `json:"cardinality"`
	Where       Expr            `json:"where"`
	OrderBy     []*SortExpr     `json:"orderby"`
	Offset      Expr            `json:"offset"`
	Limit       Expr            `json:"limit"`
	Recurse     bool            `json:"recurse"`
	// RecurseLimit is the depth of "*N"; nil with Recurse set means
	// unbounded recursion.
	RecurseLimit Expr `json:"recurse_limit"`
	Loc          `json:"loc"`
}

const (
	SortAsc    = "ASC"
	SortDesc   = "DESC"
	NonesFirst = "first"
	NonesLast  = "last"
)

type SortExpr struct {
	Kind      string `json:"kind" unpack:""`
	Path      Expr   `json:"path"`
	Direction string `json:"direction"`
	Nones     string `json:"nones"`
	Loc       `json:"loc"`
}

// ----------------------------------------------------------------------------
// Expressions

type BinOp struct {
	Kind  string `json:"kind" unpack:""`
	Op    string `json:"op"`
	Left  Expr   `json:"left"`
	Right Expr   `json:"right"`
	Loc   `json:"loc"`
}

type UnaryOp struct {
	Kind    string `json:"kind" unpack:""`
	Op      string `json:"op"`
	Operand Expr   `json:"operand"`
	Loc     `json:"loc"`
}

// FuncRef names the target of a function call.  The normalizer fills in
// Module and records every module with a matching function in Candidates.
type FuncRef struct {
	Kind       string   `json:"kind" unpack:""`
	Name       string   `json:"name"`
	Module     string   `json:"module"`
	Candidates []string `json:"candidates"`
	Loc        `json:"loc"`
}

type Kwarg struct {
	Kind string `json:"kind" unpack:""`
	Name string `json:"name"`
	Expr Expr   `json:"expr"`
	Loc  `json:"loc"`
}

// Window is an "OVER (PARTITION BY ... ORDER BY ...)" clause.
type Window struct {
	Kind        string      `json:"kind" unpack:""`
	PartitionBy []Expr      `json:"partition_by"`
	OrderBy     []*SortExpr `json:"orderby"`
	Loc         `json:"loc"`
}

type FunctionCall struct {
	Kind   string   `json:"kind" unpack:""`
	Func   *FuncRef `json:"func"`
	Args   []Expr   `json:"args"`
	Kwargs []*Kwarg `json:"kwargs"`
	Window *Window  `json:"window"`
	Loc    `json:"loc"`
}

type TypeName struct {
	Kind     string      `json:"kind" unpack:""`
	Maintype *ObjectRef  `json:"maintype"`
	Subtypes []*TypeName `json:"subtypes"`
	Loc      `json:"loc"`
}

// TypeOp is a type union "A | B" on the right of IS.
type TypeOp struct {
	Kind  string `json:"kind" unpack:""`
	Op    string `json:"op"`
	Left  Expr   `json:"left"`
	Right Expr   `json:"right"`
	Loc   `json:"loc"`
}

type TypeCast struct {
	Kind string    `json:"kind" unpack:""`
	Type *TypeName `json:"type"`
	Expr Expr      `json:"expr"`
	Loc  `json:"loc"`
}

// IfElse is "IfExpr IF Condition ELSE ElseExpr".
type IfElse struct {
	Kind      string `json:"kind" unpack:""`
	IfExpr    Expr   `json:"if_expr"`
	Condition Expr   `json:"condition"`
	ElseExpr  Expr   `json:"else_expr"`
	Loc       `json:"loc"`
}

type Tuple struct {
	Kind     string `json:"kind" unpack:""`
	Elements []Expr `json:"elements"`
	Loc      `json:"loc"`
}

type TupleElement struct {
	Kind string `json:"kind" unpack:""`
	Name string `json:"name"`
	Val  Expr   `json:"val"`
	Loc  `json:"loc"`
}

type NamedTuple struct {
	Kind     string          `json:"kind" unpack:""`
	Elements []*TupleElement `json:"elements"`
	Loc      `json:"loc"`
}

type Array struct {
	Kind     string `json:"kind" unpack:""`
	Elements []Expr `json:"elements"`
	Loc      `json:"loc"`
}

type Set struct {
	Kind     string `json:"kind" unpack:""`
	Elements []Expr `json:"elements"`
	Loc      `json:"loc"`
}

// Parameter is "$name" or the positional "$0".
type Parameter struct {
	Kind string `json:"kind" unpack:""`
	Name string `json:"name"`
	Loc  `json:"loc"`
}

type Index struct {
	Kind  string `json:"kind" unpack:""`
	Index Expr   `json:"index"`
	Loc   `json:"loc"`
}

type Slice struct {
	Kind  string `json:"kind" unpack:""`
	Start Expr   `json:"start"`
	Stop  Expr   `json:"stop"`
	Loc   `json:"loc"`
}

// Indirection is "arg[i]" or "arg[i:j]".  Index is an *Index or a *Slice.
type Indirection struct {
	Kind  string `json:"kind" unpack:""`
	Arg   Expr   `json:"arg"`
	Index Expr   `json:"index"`
	Loc   `json:"loc"`
}

type InterpolationFragment struct {
	Kind string `json:"kind" unpack:""`
	Text string `json:"text"`
	Expr Expr   `json:"expr"`
	Loc  `json:"loc"`
}

// StringInterpolation is 'a\(x)b'.  The last fragment has a nil Expr.
type StringInterpolation struct {
	Kind      string                   `json:"kind" unpack:""`
	Fragments []*InterpolationFragment `json:"fragments"`
	Loc       `json:"loc"`
}

func (*Path) ExprAST()                {}
func (*Shape) ExprAST()               {}
func (*BinOp) ExprAST()               {}
func (*UnaryOp) ExprAST()             {}
func (*FunctionCall) ExprAST()        {}
func (*TypeName) ExprAST()            {}
func (*TypeOp) ExprAST()              {}
func (*TypeCast) ExprAST()            {}
func (*IfElse) ExprAST()              {}
func (*Tuple) ExprAST()               {}
func (*NamedTuple) ExprAST()          {}
func (*Array) ExprAST()               {}
func (*Set) ExprAST()                 {}
func (*Parameter) ExprAST()           {}
func (*Index) ExprAST()               {}
func (*Slice) ExprAST()               {}
func (*Indirection) ExprAST()         {}
func (*StringInterpolation) ExprAST() {}

// ----------------------------------------------------------------------------
// Constants

// Numeric constants keep their source text.  A unary minus applied
// directly to a numeric literal sets IsNegative instead of producing a
// UnaryOp.
type IntegerConstant struct {
	Kind       string `json:"kind" unpack:""`
	Value      string `json:"value"`
	IsNegative bool   `json:"is_negative"`
	Loc        `json:"loc"`
}

type FloatConstant struct {
	Kind       string `json:"kind" unpack:""`
	Value      string `json:"value"`
	IsNegative bool   `json:"is_negative"`
	Loc        `json:"loc"`
}

type BigintConstant struct {
	Kind       string `json:"kind" unpack:""`
	Value      string `json:"value"`
	IsNegative bool   `json:"is_negative"`
	Loc        `json:"loc"`
}

type DecimalConstant struct {
	Kind       string `json:"kind" unpack:""`
	Value      string `json:"value"`
	IsNegative bool   `json:"is_negative"`
	Loc        `json:"loc"`
}

type StringConstant struct {
	Kind  string `json:"kind" unpack:""`
	Value string `json:"value"`
	Loc   `json:"loc"`
}

type BytesConstant struct {
	Kind  string `json:"kind" unpack:""`
	Value string `json:"value"`
	Loc   `json:"loc"`
}

type BooleanConstant struct {
	Kind  string `json:"kind" unpack:""`
	Value bool   `json:"value"`
	Loc   `json:"loc"`
}

func (*IntegerConstant) ExprAST() {}
func (*FloatConstant) ExprAST()   {}
func (*BigintConstant) ExprAST()  {}
func (*DecimalConstant) ExprAST() {}
func (*StringConstant) ExprAST()  {}
func (*BytesConstant) ExprAST()   {}
func (*BooleanConstant) ExprAST() {}

func (*IntegerConstant) ConstantAST() {}
func (*FloatConstant) ConstantAST()   {}
func (*BigintConstant) ConstantAST()  {}
func (*DecimalConstant) ConstantAST() {}
func (*StringConstant) ConstantAST()  {}
func (*BytesConstant) ConstantAST()   {}
func (*BooleanConstant) ConstantAST() {}

// Text returns the signed source text of a numeric constant.
func (c *IntegerConstant) Text() string { return signed(c.Value, c.IsNegative) }
func (c *FloatConstant) Text() string   { return signed(c.Value, c.IsNegative) }
func (c *BigintConstant) Text() string  { return signed(c.Value, c.IsNegative) }
func (c *DecimalConstant) Text() string { return signed(c.Value, c.IsNegative) }

func signed(s string, neg bool) string {
	if neg {
		return "-" + s
	}
	return s
}
