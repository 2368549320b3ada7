package ast

import "fmt"

// A Visitor's Visit method is invoked for each node encountered by Walk.
// If the result visitor w is not nil, Walk visits each of the children
// of node with the visitor w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(node Node) (w Visitor)
}

// Walk traverses an AST in depth-first order.
func Walk(v Visitor, node Node) {
	if v = v.Visit(node); v == nil {
		return
	}
	for _, child := range Children(node) {
		Walk(v, child)
	}
	v.Visit(nil)
}

type inspector func(Node) bool

func (f inspector) Visit(node Node) Visitor {
	if f(node) {
		return f
	}
	return nil
}

// Inspect traverses an AST in depth-first order calling f(node) for each
// node.  If f returns true, Inspect invokes f recursively for each of the
// non-nil children of node, followed by a call of f(nil).
func Inspect(node Node, f func(Node) bool) {
	Walk(inspector(f), node)
}

// Children returns the non-nil child nodes of n in source order.
func Children(n Node) []Node {
	var c children
	switch n := n.(type) {
	case nil:
	case *ModuleAliasDecl, *ObjectRef, *Ptr, *SpecialAnchor, *Parameter,
		*IntegerConstant, *FloatConstant, *BigintConstant, *DecimalConstant,
		*StringConstant, *BytesConstant, *BooleanConstant,
		*CreateModule, *DropModule:
	case *AliasedExpr:
		c.expr(n.Expr)
	case *SelectQuery:
		c.aliases(n.Aliases)
		c.expr(n.Result)
		c.expr(n.Where)
		c.sorts(n.OrderBy)
		c.expr(n.Offset)
		c.expr(n.Limit)
	case *InsertQuery:
		c.aliases(n.Aliases)
		if n.Subject != nil {
			c.add(n.Subject)
		}
		c.elems(n.Shape)
		if n.UnlessConflict != nil {
			c.add(n.UnlessConflict)
		}
	case *UnlessConflict:
		c.expr(n.On)
		c.expr(n.Else)
	case *UpdateQuery:
		c.aliases(n.Aliases)
		c.expr(n.Subject)
		c.expr(n.Where)
		c.elems(n.Shape)
	case *DeleteQuery:
		c.aliases(n.Aliases)
		c.expr(n.Subject)
		c.expr(n.Where)
		c.sorts(n.OrderBy)
		c.expr(n.Offset)
		c.expr(n.Limit)
	case *ForQuery:
		c.aliases(n.Aliases)
		c.expr(n.Iterator)
		c.expr(n.Result)
	case *GroupQuery:
		c.aliases(n.Aliases)
		c.expr(n.Subject)
		for _, u := range n.Using {
			c.add(u)
		}
		c.exprs(n.By)
	case *InternalGroupQuery:
		c.aliases(n.Aliases)
		c.expr(n.Subject)
		for _, u := range n.Using {
			c.add(u)
		}
		c.exprs(n.By)
		c.expr(n.Result)
		c.expr(n.Where)
		c.sorts(n.OrderBy)
	case *CreateObjectType:
		c.ref(n.Name)
		for _, b := range n.Bases {
			c.add(b)
		}
		for _, p := range n.Pointers {
			c.add(p)
		}
	case *CreatePointer:
		c.typ(n.Target)
	case *AlterObjectType:
		c.ref(n.Name)
		c.ref(n.NewName)
	case *DropObjectType:
		c.ref(n.Name)
	case *Path:
		for _, s := range n.Steps {
			c.add(s)
		}
	case *TypeIntersection:
		c.typ(n.Type)
	case *Splat:
		c.typ(n.Type)
		if n.Intersection != nil {
			c.add(n.Intersection)
		}
	case *ExprRoot:
		c.expr(n.Expr)
	case *Shape:
		c.expr(n.Expr)
		c.elems(n.Elements)
	case *ShapeElement:
		if n.Expr != nil {
			c.add(n.Expr)
		}
		c.elems(n.Elements)
		c.expr(n.Compexpr)
		c.expr(n.Where)
		c.sorts(n.OrderBy)
		c.expr(n.Offset)
		c.expr(n.Limit)
		c.expr(n.RecurseLimit)
	case *SortExpr:
		c.expr(n.Path)
	case *BinOp:
		c.expr(n.Left)
		c.expr(n.Right)
	case *UnaryOp:
		c.expr(n.Operand)
	case *FunctionCall:
		if n.Func != nil {
			c.add(n.Func)
		}
		c.exprs(n.Args)
		for _, kw := range n.Kwargs {
			c.add(kw)
		}
		if n.Window != nil {
			c.add(n.Window)
		}
	case *FuncRef:
	case *Kwarg:
		c.expr(n.Expr)
	case *Window:
		c.exprs(n.PartitionBy)
		c.sorts(n.OrderBy)
	case *TypeName:
		c.ref(n.Maintype)
		for _, s := range n.Subtypes {
			c.add(s)
		}
	case *TypeOp:
		c.expr(n.Left)
		c.expr(n.Right)
	case *TypeCast:
		c.typ(n.Type)
		c.expr(n.Expr)
	case *IfElse:
		c.expr(n.IfExpr)
		c.expr(n.Condition)
		c.expr(n.ElseExpr)
	case *Tuple:
		c.exprs(n.Elements)
	case *NamedTuple:
		for _, e := range n.Elements {
			c.add(e)
		}
	case *TupleElement:
		c.expr(n.Val)
	case *Array:
		c.exprs(n.Elements)
	case *Set:
		c.exprs(n.Elements)
	case *Index:
		c.expr(n.Index)
	case *Slice:
		c.expr(n.Start)
		c.expr(n.Stop)
	case *Indirection:
		c.expr(n.Arg)
		c.expr(n.Index)
	case *StringInterpolation:
		for _, f := range n.Fragments {
			c.add(f)
		}
	case *InterpolationFragment:
		c.expr(n.Expr)
	default:
		panic(fmt.Sprintf("ast.Children: unknown node type %T", n))
	}
	return c
}

type children []Node

func (c *children) add(n Node) { *c = append(*c, n) }

func (c *children) expr(e Expr) {
	if e != nil {
		c.add(e)
	}
}

func (c *children) exprs(exprs []Expr) {
	for _, e := range exprs {
		c.expr(e)
	}
}

func (c *children) ref(r *ObjectRef) {
	if r != nil {
		c.add(r)
	}
}

func (c *children) typ(t *TypeName) {
	if t != nil {
		c.add(t)
	}
}

func (c *children) aliases(aliases []Alias) {
	for _, a := range aliases {
		c.add(a)
	}
}

func (c *children) elems(elems []*ShapeElement) {
	for _, e := range elems {
		c.add(e)
	}
}

func (c *children) sorts(sorts []*SortExpr) {
	for _, s := range sorts {
		c.add(s)
	}
}
