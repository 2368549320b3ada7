package semantic

import (
	"github.com/brimdata/edgeql/compiler/ast"
	"github.com/brimdata/edgeql/compiler/ir"
	zqe "github.com/brimdata/edgeql/errors"
	"github.com/brimdata/edgeql/schema"
)

func (a *analyzer) semExpr(s scope, e ast.Expr) (ir.Expr, error) {
	s.depth++
	if s.depth > a.depthLimit {
		return nil, zqe.E(zqe.RecursionLimit, span(e), "recursion limit exceeded")
	}
	switch e := e.(type) {
	case nil:
		return nil, zqe.E(zqe.Internal, "semantic analysis: illegal null value encountered in AST")
	case ast.Query:
		return a.semSubquery(s, e)
	case ast.Constant:
		return a.semConstant(e)
	case *ast.Parameter:
		typ := a.argTypes[e.Name]
		a.args[e.Name] = typ
		return &ir.Constant{Param: e.Name, Type: typ}, nil
	case *ast.Path:
		return a.semPathExpr(s, e)
	case *ast.Shape:
		return a.semShape(s, e)
	case *ast.BinOp:
		return a.semBinOp(s, e)
	case *ast.UnaryOp:
		return a.semUnaryOp(s, e)
	case *ast.FunctionCall:
		return a.semCall(s, e)
	case *ast.TypeCast:
		inner, err := a.semExpr(s, e.Expr)
		if err != nil {
			return nil, err
		}
		typ, err := a.semTypeName(s, e.Type)
		if err != nil {
			return nil, err
		}
		if c, ok := inner.(*ir.Constant); ok {
			return &ir.Constant{Expr: &ir.TypeCast{Expr: c, Type: typ}, Type: typ.Type}, nil
		}
		return &ir.TypeCast{Expr: inner, Type: typ}, nil
	case *ast.TypeName:
		typ, err := a.semTypeName(s, e)
		if err != nil {
			return nil, err
		}
		return &ir.Constant{Value: []schema.Type{typ.Type}, Type: typ.Type, List: true}, nil
	case *ast.TypeOp:
		return a.semTypeRefExpr(s, e)
	case *ast.IfElse:
		return a.semIfElse(s, e)
	case *ast.Tuple:
		elems, err := a.semExprs(s, e.Elements)
		if err != nil {
			return nil, err
		}
		return a.processSequence(&ir.Sequence{Elements: elems}), nil
	case *ast.NamedTuple:
		seq := &ir.Sequence{}
		for _, el := range e.Elements {
			x, err := a.semExpr(s, el.Val)
			if err != nil {
				return nil, err
			}
			seq.Elements = append(seq.Elements, x)
			seq.Names = append(seq.Names, el.Name)
		}
		return a.processSequence(seq), nil
	case *ast.Array:
		elems, err := a.semExprs(s, e.Elements)
		if err != nil {
			return nil, err
		}
		return a.processSequence(&ir.Sequence{Elements: elems, IsArray: true}), nil
	case *ast.Set:
		if len(e.Elements) == 0 {
			return &ir.Constant{}, nil
		}
		if len(e.Elements) == 1 {
			return a.semExpr(s, e.Elements[0])
		}
		elems, err := a.semExprs(s, e.Elements)
		if err != nil {
			return nil, err
		}
		return a.processSequence(&ir.Sequence{Elements: elems}), nil
	case *ast.Indirection:
		return a.semIndirection(s, e)
	case *ast.StringInterpolation:
		return a.semExpr(s, interpolate(e))
	}
	return nil, zqe.E(zqe.Internal, span(e), "semantic transform: invalid expression type %T", e)
}

func (a *analyzer) semExprs(s scope, exprs []ast.Expr) ([]ir.Expr, error) {
	out := make([]ir.Expr, 0, len(exprs))
	for _, e := range exprs {
		x, err := a.semExpr(s, e)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

// semPathExpr compiles a path used as a value.  Outside of the clauses
// that produce rows, an object path stands for a record of the object.
func (a *analyzer) semPathExpr(s scope, p *ast.Path) (ir.Expr, error) {
	e, err := a.semPath(s, p)
	if err != nil {
		return nil, err
	}
	if s.groupPrefixes != nil && !s.inAggregate && (s.location == ir.Sorter || s.location == ir.Selector) {
		if err := checkGrouped(s, e, p); err != nil {
			return nil, err
		}
	}
	if (!isRowLocation(s.location) && !s.inFuncCall) || s.inAggregate {
		if set, ok := e.(*ir.EntitySet); ok && isObject(set.Concept) {
			return a.entityRefToRecord(s, set, nil, nil, true)
		}
	}
	return e, nil
}

func isRowLocation(loc ir.Location) bool {
	switch loc {
	case ir.Generator, ir.Selector, ir.OpValues:
		return true
	}
	return false
}

func isObject(t schema.Type) bool {
	_, ok := t.(*schema.ObjectType)
	return ok
}

// checkGrouped fails unless every path e refers to is one the query groups
// by.
func checkGrouped(s scope, e ir.Expr, p ast.Node) error {
	paths := ir.ExtractPaths(e, ir.ExtractOpts{KeepRefs: true})
	if paths == nil {
		return nil
	}
	members := []ir.Path{paths}
	if c, ok := paths.(ir.PathCombination); ok {
		members = c.Members().Items()
	}
	for _, m := range members {
		if mref, ok := m.(*ir.MetaRef); ok {
			m = mref.Ref
		}
		key, id := pathKey(m)
		if key == "" || s.grouped(key) {
			continue
		}
		return zqe.E(zqe.Reference, span(p), "node reference %q must appear in the GROUP BY expression or used in an aggregate function", id)
	}
	return nil
}

// pathKey returns the key of the position a path denotes, as used for
// group prefixes, and its printable form.
func pathKey(p ir.Path) (string, string) {
	switch p := p.(type) {
	case *ir.EntitySet:
		p = p.Resolve()
		if p.Anchor != "" {
			return p.Anchor, p.Anchor
		}
		return p.ID.Key(), p.ID.String()
	case *ir.AtomicRefSimple:
		if p.ID.IsZero() {
			return pathKey(p.Ref)
		}
		return p.ID.Key(), p.ID.String()
	case *ir.LinkPropRefSimple:
		return p.ID.Key(), p.ID.String()
	case *ir.AtomicRefExpr:
		if ref := p.Ref(); ref != nil {
			return pathKey(ref)
		}
	}
	return "", ""
}

// extractPrefixes adds the keys of the paths e is built from to out.
func extractPrefixes(e ir.Node, out map[string]struct{}) {
	switch e := e.(type) {
	case *ir.EntitySet:
		for set := e.Resolve(); set != nil; {
			key, _ := pathKey(set)
			out[key] = struct{}{}
			if set.Rlink == nil {
				break
			}
			set = set.Rlink.Resolve().Source.Resolve()
		}
	case *ir.AtomicRefSimple:
		key, _ := pathKey(e)
		out[key] = struct{}{}
		extractPrefixes(e.Ref, out)
	case *ir.LinkPropRefSimple:
		key, _ := pathKey(e)
		out[key] = struct{}{}
	case *ir.BinOp:
		extractPrefixes(e.Left, out)
		extractPrefixes(e.Right, out)
	case *ir.InlineFilter:
		extractPrefixes(e.Ref, out)
		extractPrefixes(e.Expr, out)
	case *ir.AtomicRefExpr:
		extractPrefixes(e.Expr, out)
	case *ir.FunctionCall:
		for _, arg := range e.Args {
			extractPrefixes(arg, out)
		}
	case *ir.Sequence:
		for _, el := range e.Elements {
			extractPrefixes(el, out)
		}
	case ir.PathCombination:
		for _, p := range e.Members().Items() {
			extractPrefixes(p, out)
		}
	}
}

// semSubquery compiles a query nested in an expression and returns a
// reference to its only column.
func (a *analyzer) semSubquery(s scope, q ast.Query) (ir.Expr, error) {
	g, ok := s.subgraphs[q]
	if !ok {
		var err error
		if g, err = a.semQuery(s, q); err != nil {
			return nil, err
		}
		if len(g.Selector) > 1 {
			return nil, zqe.E(zqe.Domain, span(q), "subquery must return only one column")
		}
		g.Referrers = append(g.Referrers, s.location)
		if s.subgraphs != nil {
			s.subgraphs[q] = g
		}
		s.graph.Subgraphs.Add(g)
	}
	name := columnName(g)
	g.AttrRefs.Add(name)
	return &ir.SubgraphRef{Ref: g, Name: name}, nil
}

func columnName(g *ir.GraphExpr) string {
	if len(g.Selector) == 0 {
		return ""
	}
	if sel := g.Selector[0]; sel.Name != "" {
		return sel.Name
	}
	return g.Selector[0].Autoname
}

func (a *analyzer) semBinOp(s scope, e *ast.BinOp) (ir.Expr, error) {
	switch e.Op {
	case "UNION", "EXCEPT", "INTERSECT":
		return a.semSubquery(s, &ast.SelectQuery{Kind: "SelectQuery", Result: e, Implicit: true, Loc: ast.NewLoc(e.Pos(), e.End())})
	case "??":
		return a.semCall(s, &ast.FunctionCall{
			Kind: "FunctionCall",
			Func: &ast.FuncRef{Kind: "FuncRef", Name: "coalesce", Module: schema.StdModule},
			Args: []ast.Expr{e.Left, e.Right},
			Loc:  ast.NewLoc(e.Pos(), e.End()),
		})
	case "IS", "IS NOT":
		left, err := a.semExpr(s, e.Left)
		if err != nil {
			return nil, err
		}
		if rec, ok := left.(*ir.Record); ok && len(rec.Elements) > 0 {
			if ref, ok := rec.Elements[0].(*ir.AtomicRefSimple); ok {
				left = ref.Ref.Resolve()
			}
		}
		right, err := a.semTypeRefExpr(s, e.Right)
		if err != nil {
			return nil, err
		}
		return a.processBinop(s, left, right, e.Op)
	}
	left, err := a.semExpr(s, e.Left)
	if err != nil {
		return nil, err
	}
	right, err := a.semExpr(s, e.Right)
	if err != nil {
		return nil, err
	}
	out, err := a.processBinop(s, left, right, e.Op)
	if err != nil {
		return nil, err
	}
	if b, ok := out.(*ir.BinOp); ok && s.weak == weakOff && ir.IsWeakOp(e.Op) {
		b.Strong = true
	}
	return out, nil
}

func (a *analyzer) semUnaryOp(s scope, e *ast.UnaryOp) (ir.Expr, error) {
	switch e.Op {
	case "EXISTS":
		sub := s
		if sub.weak == weakUnset {
			sub.weak = weakOn
		}
		operand, err := a.semExpr(sub, e.Operand)
		if err != nil {
			return nil, err
		}
		return a.semExists(s, operand), nil
	case "NOT":
		sub := s
		if u, ok := e.Operand.(*ast.UnaryOp); ok && u.Op == "EXISTS" {
			sub.weak = weakOff
		}
		operand, err := a.semExpr(sub, e.Operand)
		if err != nil {
			return nil, err
		}
		return a.processUnaryop(operand, e.Op), nil
	}
	operand, err := a.semExpr(s, e.Operand)
	if err != nil {
		return nil, err
	}
	return a.processUnaryop(operand, e.Op), nil
}

// semExists compiles EXISTS over an already compiled operand.  An object
// path becomes a subquery over the ids of its objects.
func (a *analyzer) semExists(s scope, operand ir.Expr) ir.Expr {
	switch e := operand.(type) {
	case *ir.EntitySet:
		if !isObject(e.Concept) {
			break
		}
		ref := idRef(e)
		e.Atomrefs.Add(ref)
		g := a.newGraph()
		g.Selector = []*ir.SelectorExpr{{Expr: ref, Name: schema.IDPointer}}
		g.Generator = &ir.UnaryOp{Op: "NOT", Expr: &ir.NoneTest{Expr: ref}}
		g.Referrers = append(g.Referrers, ir.Exists)
		s.graph.Subgraphs.Add(g)
		return &ir.ExistPred{Expr: &ir.SubgraphRef{Ref: g, Name: schema.IDPointer}}
	case ir.Ref:
		return &ir.UnaryOp{Op: "NOT", Expr: &ir.NoneTest{Expr: e}}
	case *ir.SubgraphRef:
		e.Ref.Referrers = append(e.Ref.Referrers, ir.Exists)
	}
	return &ir.ExistPred{Expr: operand}
}

func (a *analyzer) semIfElse(s scope, e *ast.IfElse) (ir.Expr, error) {
	cond, err := a.semExpr(s, e.Condition)
	if err != nil {
		return nil, err
	}
	then, err := a.semExpr(s, e.IfExpr)
	if err != nil {
		return nil, err
	}
	els, err := a.semExpr(s, e.ElseExpr)
	if err != nil {
		return nil, err
	}
	out := &ir.IfElse{Condition: cond, Then: then, Else: els}
	if isConst(cond) && isConst(then) && isConst(els) {
		return &ir.Constant{Expr: out, Type: inferType(a, then)}, nil
	}
	return out, nil
}

func (a *analyzer) semIndirection(s scope, e *ast.Indirection) (ir.Expr, error) {
	switch index := e.Index.(type) {
	case *ast.Index:
		return a.semCall(s, stdCall("getitem", e, e.Arg, index.Index))
	case *ast.Slice:
		start, stop := index.Start, index.Stop
		call := stdCall("getslice", e, e.Arg)
		for _, bound := range []ast.Expr{start, stop} {
			if bound == nil {
				bound = &ast.Set{Kind: "Set", Loc: ast.NewLoc(e.Pos(), e.End())}
			}
			call.Args = append(call.Args, bound)
		}
		return a.semCall(s, call)
	}
	return nil, zqe.E(zqe.Internal, span(e), "invalid indirection %T", e.Index)
}

func stdCall(name string, at ast.Node, args ...ast.Expr) *ast.FunctionCall {
	return &ast.FunctionCall{
		Kind: "FunctionCall",
		Func: &ast.FuncRef{Kind: "FuncRef", Name: name, Module: schema.StdModule},
		Args: args,
		Loc:  ast.NewLoc(at.Pos(), at.End()),
	}
}

// interpolate rewrites a string interpolation as a concatenation of its
// text and its expressions converted to strings.
func interpolate(e *ast.StringInterpolation) ast.Expr {
	var out ast.Expr
	add := func(x ast.Expr) {
		if out == nil {
			out = x
			return
		}
		out = &ast.BinOp{Kind: "BinOp", Op: "++", Left: out, Right: x, Loc: ast.NewLoc(e.Pos(), e.End())}
	}
	for _, f := range e.Fragments {
		if f.Text != "" {
			add(&ast.StringConstant{Kind: "StringConstant", Value: f.Text, Loc: f.Loc})
		}
		if f.Expr != nil {
			add(stdCall("to_str", f, f.Expr))
		}
	}
	if out == nil {
		return &ast.StringConstant{Kind: "StringConstant", Loc: ast.NewLoc(e.Pos(), e.End())}
	}
	return out
}

func isConst(e ir.Expr) bool {
	_, ok := e.(*ir.Constant)
	return ok
}

// semTypeRefExpr compiles the right side of IS: a type or a list of types.
func (a *analyzer) semTypeRefExpr(s scope, e ast.Expr) (ir.Expr, error) {
	switch e := e.(type) {
	case *ast.TypeName:
		return a.semTypeName(s, e)
	case *ast.TypeOp:
		left, err := a.semTypeRefExpr(s, e.Left)
		if err != nil {
			return nil, err
		}
		right, err := a.semTypeRefExpr(s, e.Right)
		if err != nil {
			return nil, err
		}
		seq := &ir.Sequence{IsArray: true}
		for _, x := range []ir.Expr{left, right} {
			if nested, ok := x.(*ir.Sequence); ok {
				seq.Elements = append(seq.Elements, nested.Elements...)
			} else {
				seq.Elements = append(seq.Elements, x)
			}
		}
		return seq, nil
	case *ast.Path:
		if len(e.Steps) == 1 && !e.Partial {
			if ref, ok := e.Steps[0].(*ast.ObjectRef); ok {
				return a.semTypeName(s, &ast.TypeName{Kind: "TypeName", Maintype: ref, Loc: ref.Loc})
			}
		}
	case *ast.Tuple:
		seq := &ir.Sequence{IsArray: true}
		for _, el := range e.Elements {
			x, err := a.semTypeRefExpr(s, el)
			if err != nil {
				return nil, err
			}
			seq.Elements = append(seq.Elements, x)
		}
		return seq, nil
	}
	return nil, zqe.E(zqe.Syntax, span(e), "expecting a type reference")
}

// pseudoTypes are type constructors that never name a schema object.
var pseudoTypes = map[string]bool{"array": true, "tuple": true, "range": true, "multirange": true}

func (a *analyzer) semTypeName(s scope, tn *ast.TypeName) (*ir.TypeRef, error) {
	if tn == nil || tn.Maintype == nil {
		return nil, zqe.E(zqe.Internal, "missing type name")
	}
	var subtypes []*ir.TypeRef
	for _, sub := range tn.Subtypes {
		t, err := a.semTypeName(s, sub)
		if err != nil {
			return nil, err
		}
		subtypes = append(subtypes, t)
	}
	main := tn.Maintype
	if main.Module == "" && pseudoTypes[main.Name] {
		return &ir.TypeRef{Name: main.Name, Subtypes: subtypes}, nil
	}
	name := qualified(main.Module, main.Name)
	obj, err := a.lookup.Get(name, s.aliases, schema.ClassType)
	if err != nil {
		return nil, zqe.E(zqe.Reference, span(tn), zqe.Hint(zqe.HintOf(err)), "reference to a non-existent type: %s", name)
	}
	return &ir.TypeRef{Type: obj.(schema.Type), Subtypes: subtypes}, nil
}
