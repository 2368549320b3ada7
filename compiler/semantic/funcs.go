package semantic

import (
	"strconv"

	"github.com/brimdata/edgeql/compiler/ast"
	"github.com/brimdata/edgeql/compiler/ir"
	zqe "github.com/brimdata/edgeql/errors"
	"github.com/brimdata/edgeql/schema"
	"github.com/shopspring/decimal"
)

func (a *analyzer) semCall(s scope, call *ast.FunctionCall) (ir.Expr, error) {
	name := qualified(call.Func.Module, call.Func.Name)
	fns, err := a.lookup.GetFunctions(name, s.aliases)
	if err != nil {
		return nil, zqe.E(zqe.Reference, span(call.Func), zqe.Hint(zqe.HintOf(err)), "reference to a non-existent function: %s", name)
	}
	fn := pickOverload(fns, len(call.Args))
	sub := s
	sub.inFuncCall = true
	if fn.Aggregate && call.Window == nil {
		sub.inAggregate = true
	}
	args, err := a.semExprs(sub, call.Args)
	if err != nil {
		return nil, err
	}
	out := &ir.FunctionCall{
		Name:       fn.Name,
		Func:       fn,
		Args:       args,
		Aggregates: fn.Aggregate && call.Window == nil,
		Candidates: call.Func.Candidates,
	}
	for _, kw := range call.Kwargs {
		e, err := a.semExpr(sub, kw.Expr)
		if err != nil {
			return nil, err
		}
		out.Kwargs = append(out.Kwargs, &ir.Kwarg{Name: kw.Name, Expr: e})
	}
	if w := call.Window; w != nil {
		if out.AggSort, err = a.semSortExprs(sub, w.OrderBy); err != nil {
			return nil, err
		}
		if out.Partition, err = a.semExprs(sub, w.PartitionBy); err != nil {
			return nil, err
		}
		out.Window = true
	} else if fn.Window {
		out.Window = true
	}
	return a.processFunctionCall(out)
}

// pickOverload returns the function taking nargs arguments, or the first
// one when none does.
func pickOverload(fns []*schema.Function, nargs int) *schema.Function {
	for _, fn := range fns {
		if len(fn.Params) == nargs {
			return fn
		}
	}
	return fns[0]
}

func (a *analyzer) processFunctionCall(call *ir.FunctionCall) (ir.Expr, error) {
	if call.Name.Module == schema.SearchModule && (call.Name.Name == "rank" || call.Name.Name == "headline") {
		if err := a.searchVector(call); err != nil {
			return nil, err
		}
		return call, nil
	}
	if len(call.Args) == 0 || call.Aggregates || call.Window {
		return call, nil
	}
	for _, arg := range call.Args {
		if !isConst(arg) {
			return call, nil
		}
	}
	typ := inferType(a, call)
	return &ir.Constant{Expr: call, Type: typ}, nil
}

// searchVector replaces the object argument of a search function with the
// searchable properties of the object.
func (a *analyzer) searchVector(call *ir.FunctionCall) error {
	if len(call.Args) == 0 {
		return zqe.E(zqe.Invalid, "%s takes an object argument", call.Name)
	}
	if _, ok := call.Args[0].(*ir.Sequence); ok {
		return nil
	}
	var refs ir.Set[*ir.EntitySet]
	for _, arg := range call.Args {
		if set, ok := arg.(*ir.EntitySet); ok {
			refs.Add(set.Resolve())
			continue
		}
		for _, n := range ir.Find(arg, func(n ir.Node) bool { return ir.IsSet(n) }) {
			if set, ok := n.(*ir.EntitySet); ok {
				refs.Add(set.Resolve())
			}
		}
	}
	if refs.Len() != 1 {
		return zqe.E(zqe.Invalid, "%s expects exactly one object argument", call.Name)
	}
	ref := refs.First()
	obj, ok := ref.Concept.(*schema.ObjectType)
	if !ok {
		return searchError(ref.Concept)
	}
	var cols []ir.Expr
	for _, ptr := range obj.SearchableLinks() {
		aref := &ir.AtomicRefSimple{
			Ref:  ref,
			Name: ptr.Name,
			Ptr:  ptr,
			ID:   ref.ID.Extend(ptr, schema.Outbound, ptr.Target),
		}
		ref.Atomrefs.Add(aref)
		cols = append(cols, aref)
	}
	if len(cols) == 0 {
		return searchError(ref.Concept)
	}
	args := []ir.Expr{&ir.Sequence{Elements: cols}}
	if len(call.Args) > 1 {
		args = append(args, call.Args[1])
	}
	call.Args = args
	return nil
}

// processSequence folds a sequence of constants into a constant and a
// sequence of attributes of one set (or link) into a reference expression
// of that set.
func (a *analyzer) processSequence(seq *ir.Sequence) ir.Expr {
	var arefs, prefs *refIndex
	var elems []ir.Expr
	constant := true
	var constType schema.Type
	mixed := false
	for _, elem := range seq.Elements {
		p, isPath := elem.(ir.Path)
		d, isDisjunction := elem.(*ir.Disjunction)
		switch {
		case isPath && (ir.IsAtomicRef(p) || ir.IsLinkPropRef(p) || isDisjunction):
			members := []ir.Path{p}
			if isDisjunction {
				if d.Paths.Len() != 1 {
					return seq
				}
				members = d.Paths.Items()
			}
			if index := indexRefs(members, false); index != nil {
				arefs = mergeIndex(arefs, index)
			} else if index := indexRefs(members, true); index != nil {
				prefs = mergeIndex(prefs, index)
			} else {
				return seq
			}
			if arefs != nil && prefs != nil {
				return seq
			}
			elems = append(elems, members[0])
			constant = false
		case constant && isConst(elem):
			c := elem.(*ir.Constant)
			if c.Param != "" {
				continue
			}
			if constType == nil {
				constType = c.Type
			} else if constType != c.Type {
				mixed = true
			}
		default:
			return seq
		}
	}
	if constant {
		out := &ir.Constant{Expr: seq}
		if !mixed {
			out.Type = constType
		}
		return out
	}
	index := arefs
	wrap := func(e ir.Expr) ir.Expr { return ir.NewAtomicRefExpr(e) }
	switch {
	case arefs.len() == 1:
	case prefs.len() == 1:
		index = prefs
		wrap = func(e ir.Expr) ir.Expr { return ir.NewLinkPropRefExpr(e) }
	default:
		return seq
	}
	first, _ := index.get(index.keys[0])
	if owner := refOwner(first); owner != nil {
		for _, elem := range elems {
			rebase(elem, refOwner(elem.(ir.Path)), owner)
		}
	}
	return wrap(&ir.Sequence{Elements: elems, Names: seq.Names, IsArray: seq.IsArray})
}

func mergeIndex(dst, src *refIndex) *refIndex {
	if dst == nil {
		return src
	}
	for _, key := range src.keys {
		if _, ok := dst.refs[key]; !ok {
			dst.keys = append(dst.keys, key)
		}
		dst.refs[key] = src.refs[key]
	}
	return dst
}

func (a *analyzer) processUnaryop(e ir.Expr, op string) ir.Expr {
	unary := &ir.UnaryOp{Op: op, Expr: e}
	switch e := e.(type) {
	case *ir.AtomicRefSimple, *ir.AtomicRefExpr:
		return ir.NewAtomicRefExpr(unary)
	case *ir.LinkPropRefSimple, *ir.LinkPropRefExpr:
		return ir.NewLinkPropRefExpr(unary)
	case *ir.Constant:
		return a.foldUnary(e, unary)
	}
	paths := ir.ExtractPaths(e, ir.ExtractOpts{KeepRefs: true})
	if paths == nil {
		return unary
	}
	members := multipath(paths)
	if index := indexRefs(members, false); index.len() == 1 {
		return ir.NewAtomicRefExpr(unary)
	}
	if index := indexRefs(members, true); index.len() == 1 {
		return ir.NewLinkPropRefExpr(unary)
	}
	return unary
}

func (a *analyzer) semConstant(c ast.Constant) (ir.Expr, error) {
	switch c := c.(type) {
	case *ast.IntegerConstant:
		v, err := strconv.ParseInt(c.Text(), 10, 64)
		if err != nil {
			return nil, zqe.E(zqe.Invalid, span(c), "integer literal %s is out of range", c.Text())
		}
		return &ir.Constant{Value: v, Type: a.stdType("int64")}, nil
	case *ast.FloatConstant:
		v, err := strconv.ParseFloat(c.Text(), 64)
		if err != nil {
			return nil, zqe.E(zqe.Invalid, span(c), "invalid float literal %s", c.Text())
		}
		return &ir.Constant{Value: v, Type: a.stdType("float64")}, nil
	case *ast.BigintConstant:
		v, err := decimal.NewFromString(c.Text())
		if err != nil {
			return nil, zqe.E(zqe.Invalid, span(c), "invalid bigint literal %s", c.Text())
		}
		return &ir.Constant{Value: v, Type: a.stdType("bigint")}, nil
	case *ast.DecimalConstant:
		v, err := decimal.NewFromString(c.Text())
		if err != nil {
			return nil, zqe.E(zqe.Invalid, span(c), "invalid decimal literal %s", c.Text())
		}
		return &ir.Constant{Value: v, Type: a.stdType("decimal")}, nil
	case *ast.StringConstant:
		return &ir.Constant{Value: c.Value, Type: a.stdType("str")}, nil
	case *ast.BytesConstant:
		return &ir.Constant{Value: []byte(c.Value), Type: a.stdType("bytes")}, nil
	case *ast.BooleanConstant:
		return &ir.Constant{Value: c.Value, Type: a.stdType("bool")}, nil
	}
	return nil, zqe.E(zqe.Internal, span(c), "unknown constant type %T", c)
}
