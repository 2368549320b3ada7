package semantic

import (
	"github.com/brimdata/edgeql/compiler/ir"
	zqe "github.com/brimdata/edgeql/errors"
	"github.com/brimdata/edgeql/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// processBinop combines two compiled operands.  Comparisons of attributes
// of a single set with constants or with each other fold into a filter
// of that set; comparisons of object sets become joins on their ids.  The
// rules are written for a path on the left, so when the operands do not
// fit they are tried again swapped, and the error of the second try is
// the one returned.  An error other than a mismatch of the operand
// patterns is returned at once.
func (a *analyzer) processBinop(s scope, left, right ir.Expr, op string) (ir.Expr, error) {
	out, err := a.binop(s, left, right, op, false)
	if err == nil {
		return out, nil
	}
	if !zqe.IsTree(err) {
		return nil, err
	}
	a.logger.Debug("retrying binary operator with swapped operands", zap.String("op", op), zap.Error(err))
	return a.binop(s, right, left, op, true)
}

var extractRefs = ir.ExtractOpts{KeepRefs: true, SubgraphRefs: true}

func (a *analyzer) binop(s scope, left, right ir.Expr, op string, reversed bool) (ir.Expr, error) {
	newBinop := func(l, r ir.Expr, uninlined bool) ir.Expr {
		if uninlined && op != "AND" && op != "OR" {
			uninline(l)
			uninline(r)
		}
		if reversed {
			l, r = r, l
		}
		return &ir.BinOp{Left: l, Op: op, Right: r}
	}
	leftPaths := ir.ExtractPaths(left, extractRefs)
	if leftPaths != nil {
		members := multipath(leftPaths)
		arefs := indexRefs(members, false)
		prefs := indexRefs(members, true)
		switch {
		case ir.AggregatedDeep(left) || ir.AggregatedDeep(right):
			return newBinop(left, right, true), nil
		case arefs == nil && prefs == nil:
			out, err := a.objectBinop(left, right, members, op, reversed, newBinop)
			if err != nil || out != nil {
				return out, err
			}
			return newBinop(left, right, true), nil
		}
		rightPaths := ir.ExtractPaths(right, extractRefs)
		if isConstantExpr(right) {
			wrap, index := refWrapper(arefs, prefs)
			if _, ok := left.(ir.Path); ok {
				var paths []ir.Path
				for _, ref := range members {
					paths = append(paths, wrap(newBinop(unwrapRef(ref), right, false)))
				}
				return pathFromSet(paths), nil
			}
			if index.len() == 1 {
				b := newBinop(left, right, false)
				uninline(b)
				return wrap(a.merger(s.location).mergePaths(b)), nil
			}
			return newBinop(left, right, true), nil
		}
		if rightPaths != nil {
			if out := a.refBinop(s, left, right, members, multipath(rightPaths), arefs, prefs, newBinop); out != nil {
				return out, nil
			}
			return newBinop(left, right, true), nil
		}
		if b, ok := right.(*ir.BinOp); ok && b.Op == op && arefs != nil {
			if _, ok := left.(ir.Path); ok {
				return foldAssociative(left, b, arefs, op, reversed, newBinop), nil
			}
		}
	} else {
		switch l := left.(type) {
		case *ir.Constant:
			if r, ok := right.(*ir.Constant); ok {
				if reversed {
					l, r = r, l
				}
				return a.foldConstants(l, r, op), nil
			}
		case *ir.BinOp, *ir.UnaryOp, *ir.TypeCast, *ir.FunctionCall, *ir.ExistPred, *ir.NoneTest, *ir.IfElse, *ir.Sequence, *ir.Record:
			return newBinop(left, right, true), nil
		}
	}
	return nil, zqe.E(zqe.Tree, "unexpected binop operands: %T, %T", left, right)
}

// objectBinop handles operators over object paths: joins, type checks,
// id filters and full text search.  It returns nil when none applies.
func (a *analyzer) objectBinop(left, right ir.Expr, members []ir.Path, op string, reversed bool, newBinop func(l, r ir.Expr, uninlined bool) ir.Expr) (ir.Expr, error) {
	sets := entitySets(members)
	switch {
	case isJoin(left, right, op):
		rsets := entitySets(multipath(right.(ir.Path)))
		if sets == nil || rsets == nil {
			return nil, nil
		}
		for _, l := range sets {
			for _, r := range rsets {
				l.Joins.Add(r)
				r.Backrefs.Add(l)
				r.Joins.Add(l)
				l.Backrefs.Add(r)
			}
		}
		return newBinop(idRefs(sets), idRefs(rsets), false), nil
	case !reversed && (op == "IS" || op == "IS NOT") && sets != nil:
		var paths []ir.Path
		for _, set := range sets {
			expr := &ir.BinOp{Left: &ir.MetaRef{Ref: set, Name: schema.IDPointer}, Op: op, Right: right}
			paths = append(paths, &ir.MetaRefExpr{Expr: expr, Inline: true})
		}
		return pathFromSet(paths), nil
	case isConceptPath(left) && isConstIDFilter(right, op, reversed):
		c := right.(*ir.Constant)
		membership := op
		if reversed {
			membership = "="
			if op == "NOT IN" {
				membership = "!="
			}
		}
		filter, err := a.idConstant(c)
		if err != nil {
			return nil, err
		}
		var paths []ir.Path
		for _, set := range sets {
			expr := &ir.BinOp{Left: idRef(set), Op: membership, Right: filter}
			paths = append(paths, ir.NewAtomicRefExpr(expr))
		}
		return pathFromSet(paths), nil
	case op == "@@" && sets != nil && len(sets) == len(members):
		var paths []ir.Path
		for _, set := range sets {
			if obj, ok := set.Concept.(*schema.ObjectType); !ok || len(obj.SearchableLinks()) == 0 {
				return nil, searchError(set.Concept)
			}
			paths = append(paths, ir.NewAtomicRefExpr(newBinop(set, right, false)))
		}
		return pathFromSet(paths), nil
	}
	return nil, nil
}

// refBinop folds an operator over attribute references of the same set
// (or link properties of the same link) on both sides into a filter.
func (a *analyzer) refBinop(s scope, left, right ir.Expr, members, rmembers []ir.Path, arefs, prefs *refIndex, newBinop func(l, r ir.Expr, uninlined bool) ir.Expr) ir.Expr {
	rarefs := indexRefs(rmembers, false)
	rprefs := indexRefs(rmembers, true)
	var lindex, rindex *refIndex
	var wrap func(ir.Expr) ir.Path
	switch {
	case prefs != nil && rprefs != nil:
		lindex, rindex = prefs, rprefs
		wrap = func(e ir.Expr) ir.Path { return ir.NewLinkPropRefExpr(e) }
	case arefs != nil && rarefs != nil:
		lindex, rindex = arefs, rarefs
		wrap = func(e ir.Expr) ir.Path { return ir.NewAtomicRefExpr(e) }
	default:
		return nil
	}
	_, lpath := left.(ir.Path)
	_, rpath := right.(ir.Path)
	if lpath && rpath {
		var paths []ir.Path
		for _, ref := range members {
			rexpr, ok := rindex.get(refKey(ref))
			if !ok {
				continue
			}
			if owner := refOwner(ref); owner != nil {
				rebase(rexpr, refOwner(rexpr), owner)
			}
			paths = append(paths, wrap(newBinop(unwrapRef(ref), unwrapRef(rexpr), false)))
		}
		if len(paths) == 0 {
			return newBinop(left, right, true)
		}
		return pathFromSet(paths)
	}
	if lindex.len() == 1 && rindex.len() == 1 && lindex.keys[0] == rindex.keys[0] {
		newref, _ := lindex.get(lindex.keys[0])
		if owner := refOwner(newref); owner != nil {
			for _, p := range rmembers {
				rebase(right, refOwner(p), owner)
			}
		}
		b := newBinop(left, right, false)
		return wrap(a.merger(s.location).mergePaths(b))
	}
	return nil
}

// foldAssociative folds one operand of "ref op (x op y)" into the filter
// the left side already is, using the associativity of op.
func foldAssociative(left ir.Expr, right *ir.BinOp, arefs *refIndex, op string, reversed bool, newBinop func(l, r ir.Expr, uninlined bool) ir.Expr) ir.Expr {
	for _, operand := range []ir.Expr{right.Left, right.Right} {
		p, ok := operand.(ir.Path)
		if !ok || !ir.IsAtomicRef(p) {
			continue
		}
		ref, ok := arefs.get(refKey(p))
		if !ok {
			continue
		}
		rexpr, ok := ref.(*ir.AtomicRefExpr)
		if !ok {
			continue
		}
		if reversed {
			rexpr.Expr = &ir.BinOp{Left: operand, Op: op, Right: rexpr.Expr}
		} else {
			rexpr.Expr = extendBinop(rexpr.Expr, op, operand)
		}
		other := right.Left
		if operand == right.Left {
			other = right.Right
		}
		return newBinop(left, other, false)
	}
	return newBinop(left, right, true)
}

// idConstant returns c as a filter on object ids.  A constant typed as an
// object type stands for the id of an object of that type.
func (a *analyzer) idConstant(c *ir.Constant) (*ir.Constant, error) {
	if !isObject(c.Type) {
		return c, nil
	}
	out := *c
	out.Type = a.stdType("uuid")
	if v, ok := c.Value.(string); ok {
		if _, err := uuid.Parse(v); err != nil {
			return nil, zqe.E(zqe.Invalid, "invalid object id %q", v)
		}
	}
	return &out, nil
}

func searchError(t schema.Type) error {
	name := t.SchemaName().String()
	return zqe.E(zqe.Domain, zqe.Hint("Configure search for \""+name+"\""), "%s has no searchable properties", name)
}

// refIndex maps the set (or link) a reference belongs to onto the
// reference, in insertion order.
type refIndex struct {
	keys []any
	refs map[any]ir.Path
}

func (r *refIndex) len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

func (r *refIndex) get(key any) (ir.Path, bool) {
	if r == nil || key == nil {
		return nil, false
	}
	p, ok := r.refs[key]
	return p, ok
}

// indexRefs indexes members when every one is an attribute reference (or
// a link property reference, with props set).  It returns nil otherwise.
func indexRefs(members []ir.Path, props bool) *refIndex {
	if len(members) == 0 {
		return nil
	}
	index := &refIndex{refs: make(map[any]ir.Path)}
	for _, p := range members {
		if props != ir.IsLinkPropRef(p) || (!props && !ir.IsAtomicRef(p)) {
			return nil
		}
		key := refKey(p)
		if key == nil {
			return nil
		}
		if _, ok := index.refs[key]; !ok {
			index.keys = append(index.keys, key)
		}
		index.refs[key] = p
	}
	return index
}

// refKey identifies what a reference refers to: the path of its set for
// an attribute, the link itself for a link property.
func refKey(p ir.Path) any {
	switch p := p.(type) {
	case *ir.AtomicRefSimple, *ir.AtomicRefExpr, *ir.MetaRef, *ir.MetaRefExpr:
		if set := refOwner(p); set != nil {
			return set.ID.Key()
		}
	case *ir.LinkPropRefSimple:
		return p.Ref.Resolve()
	case *ir.LinkPropRefExpr:
		if link := p.Ref(); link != nil {
			return link
		}
	}
	return nil
}

// refOwner is the set whose attributes p refers to.
func refOwner(p ir.Path) *ir.EntitySet {
	switch p := p.(type) {
	case *ir.AtomicRefSimple:
		return p.Ref.Resolve()
	case *ir.AtomicRefExpr:
		return p.Ref()
	case *ir.MetaRef:
		return p.Ref.Resolve()
	case *ir.MetaRefExpr:
		return p.Ref()
	}
	return nil
}

func refWrapper(arefs, prefs *refIndex) (func(ir.Expr) ir.Path, *refIndex) {
	if prefs != nil {
		return func(e ir.Expr) ir.Path { return ir.NewLinkPropRefExpr(e) }, prefs
	}
	return func(e ir.Expr) ir.Path { return ir.NewAtomicRefExpr(e) }, arefs
}

// unwrapRef returns the expression of a reference expression, so that
// folding does not nest reference expressions.
func unwrapRef(p ir.Path) ir.Expr {
	switch p := p.(type) {
	case *ir.AtomicRefExpr:
		return p.Expr
	case *ir.LinkPropRefExpr:
		return p.Expr
	}
	return p
}

// rebase points the attribute references under e that belong to from at
// to instead.
func rebase(e ir.Node, from, to *ir.EntitySet) {
	if from == nil || from == to {
		return
	}
	ir.Inspect(e, func(n ir.Node) bool {
		switch n := n.(type) {
		case *ir.AtomicRefSimple:
			if n.Ref.Resolve() == from {
				n.Ref = to
			}
		case *ir.MetaRef:
			if n.Ref.Resolve() == from {
				n.Ref = to
			}
		case *ir.SubgraphRef:
			return false
		}
		return true
	})
}

// uninline marks the reference expressions under e as no longer
// foldable into a filter.
func uninline(e ir.Node) {
	ir.Inspect(e, func(n ir.Node) bool {
		switch n := n.(type) {
		case *ir.AtomicRefExpr:
			n.Inline = false
		case *ir.LinkPropRefExpr:
			n.Inline = false
		case *ir.MetaRefExpr:
			n.Inline = false
		case *ir.SubgraphRef:
			return false
		}
		return true
	})
}

func multipath(p ir.Path) []ir.Path {
	if c, ok := p.(ir.PathCombination); ok {
		return c.Members().Items()
	}
	return []ir.Path{p}
}

func pathFromSet(paths []ir.Path) ir.Path {
	if len(paths) == 1 {
		return paths[0]
	}
	return ir.NewDisjunction(paths...)
}

// entitySets returns members as entity sets, or nil if any is not one.
func entitySets(members []ir.Path) []*ir.EntitySet {
	var out []*ir.EntitySet
	for _, p := range members {
		set, ok := p.(*ir.EntitySet)
		if !ok {
			return nil
		}
		out = append(out, set.Resolve())
	}
	return out
}

func isJoin(left, right ir.Expr, op string) bool {
	_, lpath := left.(ir.Path)
	_, rpath := right.(ir.Path)
	return lpath && rpath && (op == "=" || op == "!=")
}

func isConceptPath(e ir.Expr) bool {
	switch e := e.(type) {
	case ir.PathCombination:
		for _, p := range e.Members().Items() {
			if !isConceptPath(p) {
				return false
			}
		}
		return e.Members().Len() > 0
	case *ir.EntitySet:
		return isObject(e.Concept)
	}
	return false
}

func isConstIDFilter(right ir.Expr, op string, reversed bool) bool {
	if _, ok := right.(*ir.Constant); !ok {
		return false
	}
	return op == "IN" || op == "NOT IN" || (!reversed && (op == "=" || op == "!="))
}

// isConstantExpr reports whether e refers to no path at all.
func isConstantExpr(e ir.Expr) bool {
	if _, ok := e.(ir.Path); ok {
		return false
	}
	return len(ir.Find(e, func(n ir.Node) bool {
		_, ok := n.(ir.Path)
		return ok
	})) == 0
}

// idRef returns a reference to the id of the objects of set.
func idRef(set *ir.EntitySet) *ir.AtomicRefSimple {
	set = set.Resolve()
	ptr := idPointer(set.Concept)
	ref := &ir.AtomicRefSimple{Ref: set, Name: schema.IDPointer, Ptr: ptr}
	if ptr != nil {
		ref.ID = set.ID.Extend(ptr, schema.Outbound, ptr.Target)
	}
	return ref
}

func idRefs(sets []*ir.EntitySet) ir.Expr {
	if len(sets) == 1 {
		return idRef(sets[0])
	}
	d := &ir.Disjunction{}
	for _, set := range sets {
		d.Paths.Add(idRef(set))
	}
	return d
}
