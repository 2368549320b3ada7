package semantic

import (
	"github.com/brimdata/edgeql/compiler/ir"
)

// mergePaths unifies the paths an expression refers to.  Filters over a
// single set in the generator are folded into the set; elsewhere they are
// left in the expression.  The result replaces e.
func (m *merger) mergePaths(e ir.Expr) ir.Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *ir.AtomicRefExpr:
		if ref := e.Ref(); ref != nil && e.Inline && m.loc == ir.Generator {
			return m.inlineFilter(ref, e.Expr)
		}
		m.mergePaths(e.Expr)
		return e
	case *ir.MetaRefExpr:
		if ref := e.Ref(); ref != nil && e.Inline && m.loc == ir.Generator {
			return m.inlineFilter(ref, e.Expr)
		}
		m.mergePaths(e.Expr)
		return e
	case *ir.LinkPropRefExpr:
		link := e.Ref()
		if link == nil || !e.Inline || m.loc != ir.Generator {
			m.mergePaths(e.Expr)
			return e
		}
		for _, n := range ir.Find(e.Expr, isLinkPropRefSimple) {
			if pref := n.(*ir.LinkPropRefSimple); pref.Ref.Resolve() == link {
				link.Proprefs.Add(pref)
			}
		}
		link.Propfilter = extendBinop(link.Propfilter, "AND", e.Expr)
		if link.Target != nil {
			m.mergePaths(link.Target)
		} else if link.Source != nil {
			m.mergePaths(link.Source)
		}
		return &ir.InlinePropFilter{Ref: link, Expr: link.Propfilter}
	case *ir.BinOp:
		left := m.mergePaths(e.Left)
		right := m.mergePaths(e.Right)
		weak := m.isWeakOp(e.Op) && !e.Strong
		l, r := operandPath(left), operandPath(right)
		var paths ir.PathSet
		for _, p := range []ir.Path{l, r} {
			if p != nil {
				paths.Add(p)
			}
		}
		var c ir.PathCombination
		if weak {
			c = &ir.Disjunction{Paths: paths}
		} else {
			c = &ir.Conjunction{Paths: paths}
		}
		var mode mergeMode
		if m.loc != ir.Generator || weak {
			mode = mergeMode{filters: true, op: e.Op}
		}
		m.flattenAndUnify(c, false, mode)
		if l != nil && l == r {
			return l
		}
		return &ir.BinOp{Left: left, Op: e.Op, Right: right, Aggregates: e.Aggregates, Strong: e.Strong}
	case *ir.UnaryOp:
		e.Expr = m.mergePaths(e.Expr)
		return e
	case *ir.ExistPred:
		e.Expr = m.mergePaths(e.Expr)
		return e
	case *ir.TypeCast:
		e.Expr = m.mergePaths(e.Expr)
		return e
	case *ir.NoneTest:
		e.Expr = m.mergePaths(e.Expr)
		return e
	case ir.PathCombination:
		return m.flattenAndUnify(e, true, mergeMode{})
	case *ir.MetaRef:
		e.Ref.Resolve().Metarefs.Add(e)
		return e
	case *ir.AtomicRefSimple:
		e.Ref.Resolve().Atomrefs.Add(e)
		return e
	case *ir.LinkPropRefSimple:
		e.Ref.Resolve().Proprefs.Add(e)
		return e
	case *ir.EntitySet:
		if e = e.Resolve(); e.Rlink != nil && e.Rlink.Resolve().Source != nil {
			m.mergePaths(e.Rlink.Resolve().Source)
		}
		return e
	case *ir.EntityLink:
		if e = e.Resolve(); e.Source != nil {
			m.mergePaths(e.Source)
		}
		return e
	case *ir.FunctionCall:
		args := make([]ir.Expr, 0, len(e.Args))
		for _, arg := range e.Args {
			args = append(args, m.mergePaths(arg))
		}
		nodes := exprsToNodes(args)
		for _, s := range e.AggSort {
			s.Expr = m.mergePaths(s.Expr)
			nodes = append(nodes, s.Expr)
		}
		if e.AggFilter != nil {
			e.AggFilter = m.mergePaths(e.AggFilter)
			nodes = append(nodes, e.AggFilter)
		}
		for k, p := range e.Partition {
			e.Partition[k] = m.mergePaths(p)
			nodes = append(nodes, e.Partition[k])
		}
		if len(args) > 1 || len(e.AggSort) > 0 || e.AggFilter != nil || len(e.Partition) > 0 {
			c := &ir.Conjunction{}
			for _, n := range nodes {
				if p := ir.ExtractPaths(n, ir.ExtractOpts{Reverse: true}); p != nil {
					c.Paths.Add(p)
				}
			}
			m.flattenAndUnify(c, false, mergeMode{})
		}
		out := *e
		out.Args = args
		return &out
	case *ir.Sequence:
		elems := m.mergeElements(e.Elements)
		out := *e
		out.Elements = elems
		return &out
	case *ir.Record:
		elems := m.mergeElements(e.Elements)
		out := *e
		out.Elements = elems
		return &out
	case *ir.IfElse:
		cond := m.mergePaths(e.Condition)
		then := m.mergePaths(e.Then)
		els := m.mergePaths(e.Else)
		m.unifyPaths([]ir.Node{then, cond, els}, true, true, mergeMode{})
		return &ir.IfElse{Condition: cond, Then: then, Else: els}
	case *ir.GraphExpr, *ir.SubgraphRef, *ir.TypeRef, *ir.Constant, *ir.InlineFilter, *ir.InlinePropFilter:
		return e
	}
	m.a.failf("unexpected node %T in path merge", e)
	return e
}

func (m *merger) inlineFilter(ref *ir.EntitySet, e ir.Expr) ir.Expr {
	ref.Filter = extendBinop(ref.Filter, "AND", e)
	m.mergePaths(ref)
	for _, n := range ir.Find(e, isAtomicRefSimple) {
		m.mergePaths(n.(*ir.AtomicRefSimple))
	}
	return &ir.InlineFilter{Ref: ref, Expr: ref.Filter}
}

func (m *merger) mergeElements(elems []ir.Expr) []ir.Expr {
	out := make([]ir.Expr, 0, len(elems))
	for _, e := range elems {
		out = append(out, m.mergePaths(e))
	}
	m.unifyPaths(exprsToNodes(out), true, true, mergeMode{})
	return out
}

// operandPath is the path a binary operand contributes to the unification
// of the operands.
func operandPath(e ir.Expr) ir.Path {
	switch e := e.(type) {
	case *ir.InlineFilter:
		return e.Ref.Resolve()
	case *ir.AtomicRefSimple:
		return e.Ref.Resolve()
	case ir.Path:
		return resolve(e)
	case nil:
		return nil
	}
	return ir.ExtractPaths(e, ir.ExtractOpts{Reverse: true})
}

// flattenAndUnify flattens c and merges the paths in it that denote the
// same graph position.  With deep set, each member is merged first.
func (m *merger) flattenAndUnify(c ir.PathCombination, deep bool, mode mergeMode) ir.PathCombination {
	ir.Flatten(c, false)
	if deep {
		var paths ir.PathSet
		for _, p := range c.Members().Items() {
			switch merged := m.mergePaths(p).(type) {
			case ir.Path:
				paths.Add(merged)
			default:
				if x := ir.ExtractPaths(merged, ir.ExtractOpts{}); x != nil {
					paths.Add(x)
				}
			}
		}
		*c.Members() = paths
	}
	_, disjunction := c.(*ir.Disjunction)
	m.unifyPaths(pathNodes(*c.Members()), disjunction, true, mode)
	return c
}

// unifyAll merges the expressions of a clause list (the selector and
// sorter of a query, say) as one disjunction.
func (m *merger) unifyAll(exprs []ir.Expr, deep bool, mode mergeMode) {
	var nodes []ir.Node
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if deep {
			e = m.mergePaths(e)
		}
		if d, ok := e.(*ir.Disjunction); ok {
			for _, p := range d.Paths.Items() {
				nodes = append(nodes, p)
			}
			continue
		}
		nodes = append(nodes, e)
	}
	m.unifyPaths(nodes, true, true, mode)
}

// unifyPaths folds the paths of nodes together with addPaths (for a
// disjunction) or intersectPaths.  Merges happen in place; the returned
// path is the combination built along the way.
func (m *merger) unifyPaths(nodes []ir.Node, disjunction, reverse bool, mode mergeMode) ir.Path {
	opts := ir.ExtractOpts{Reverse: reverse}
	var result ir.Path
	k := 0
	for ; k < len(nodes) && result == nil; k++ {
		result = ir.ExtractPaths(nodes[k], opts)
	}
	for ; k < len(nodes); k++ {
		p := ir.ExtractPaths(nodes[k], opts)
		if p == nil || resolve(p) == resolve(result) {
			continue
		}
		if disjunction {
			result = m.addPaths(result, p, mode)
		} else {
			result = m.intersectPaths(result, p, mode)
		}
	}
	return result
}

func exprsToNodes(exprs []ir.Expr) []ir.Node {
	out := make([]ir.Node, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func isAtomicRefSimple(n ir.Node) bool {
	_, ok := n.(*ir.AtomicRefSimple)
	return ok
}

func isLinkPropRefSimple(n ir.Node) bool {
	_, ok := n.(*ir.LinkPropRefSimple)
	return ok
}
