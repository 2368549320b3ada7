package semantic

import (
	"github.com/brimdata/edgeql/compiler/ir"
	zqe "github.com/brimdata/edgeql/errors"
	"github.com/brimdata/edgeql/schema"
)

// entityRefToRecord lowers the objects of set to a record of their
// attributes.  Without pathspec the record holds the id and the eager
// pointers of the type.  Singular pointers become attribute references;
// multi pointers become subqueries aggregating their targets.
//
// visited holds the types being expanded by the enclosing records.  A
// type reached again is expanded once more with recursion off, which
// keeps only its attributes, unless a spec asks for it explicitly.
func (a *analyzer) entityRefToRecord(s scope, set *ir.EntitySet, pathspec []*ir.PtrPathSpec, visited map[schema.Type]bool, recurse bool) (ir.Expr, error) {
	rec, err := a.record(s, set, pathspec, visited, recurse, true)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return set, nil
	}
	return rec, nil
}

func (a *analyzer) record(s scope, set *ir.EntitySet, pathspec []*ir.PtrPathSpec, visited map[schema.Type]bool, recurse, implicit bool) (*ir.Record, error) {
	ref := set.Resolve()
	obj, ok := ref.Concept.(*schema.ObjectType)
	if !ok {
		return nil, nil
	}
	rec := &ir.Record{Concept: obj, Rlink: ref.Rlink}
	seen := make(map[schema.Type]bool, len(visited)+1)
	for t := range visited {
		seen[t] = true
	}
	seen[obj] = true
	var specs []*ir.PtrPathSpec
	if implicit {
		if id := obj.Pointer(schema.IDPointer); id != nil {
			specs = append(specs, &ir.PtrPathSpec{Ptr: id, Direction: schema.Outbound, Target: id.Target, Name: id.Name})
		}
	}
	if pathspec == nil {
		specs = mergePathSpecs(specs, eagerSpecs(obj, 1))
	} else {
		specs = mergePathSpecs(specs, pathspec)
	}
	for _, spec := range specs {
		switch {
		case spec.TypeIndirection:
			rec.Elements = append(rec.Elements, typeRecord(ref, obj, spec))
		case spec.Ptr == nil, spec.Ptr.IsLinkProperty():
		default:
			el, err := a.recordElement(s, ref, spec, seen, visited, recurse)
			if err != nil {
				return nil, err
			}
			if el != nil {
				rec.Elements = append(rec.Elements, el)
			}
		}
	}
	return rec, nil
}

// typeRecord is the record of the type attributes spec asks for.
func typeRecord(ref *ir.EntitySet, obj *schema.ObjectType, spec *ir.PtrPathSpec) *ir.Record {
	rec := &ir.Record{Concept: obj}
	var names []string
	for _, sub := range spec.PathSpec {
		names = append(names, sub.Name)
	}
	if len(names) == 0 {
		names = []string{schema.IDPointer}
	}
	for _, name := range names {
		mref := &ir.MetaRef{Ref: ref, Name: name}
		ref.Metarefs.Add(mref)
		rec.Elements = append(rec.Elements, mref)
	}
	return rec
}

func (a *analyzer) recordElement(s scope, ref *ir.EntitySet, spec *ir.PtrPathSpec, seen, visited map[schema.Type]bool, recurse bool) (ir.Expr, error) {
	ptr := spec.Ptr
	dir := spec.Direction
	if dir == "" {
		dir = schema.Outbound
	}
	target := spec.Target
	if target == nil {
		target = ptr.FarEndpoint(dir)
	}
	singular := ptr.Singular(dir)
	id := ref.ID.Extend(ptr, dir, target)

	lref := ref
	if !singular || spec.Recurse != nil {
		lref = ir.CopyPath(ref, true).(*ir.EntitySet)
		lref.Reference = ref
	}
	if spec.Recurse != nil {
		lref.Rlink = nil
	}
	ensureCombinations(lref)
	targetSet := ir.NewEntitySet(target, s.location)
	targetSet.ID = id
	link := &ir.EntityLink{Source: lref, Target: targetSet, Ptr: ptr, Direction: dir, Explicit: spec.Explicit}
	link.Users.Add(ir.Selector)
	targetSet.Rlink = link

	if spec.Compexpr != nil {
		if sub, ok := spec.Compexpr.(*ir.SubgraphRef); ok {
			out := *sub
			out.Rlink = link
			return &out, nil
		}
		g := a.newGraph()
		g.Selector = []*ir.SelectorExpr{{Expr: spec.Compexpr, Name: ptr.Name}}
		return &ir.SubgraphRef{Ref: g, Name: ptr.Name, Rlink: link, ForceInline: true}, nil
	}

	sortSource := targetSet
	if spec.Recurse != nil {
		sortSource = lref
	}
	sorter, err := rebaseSorter(spec.Sorter, sortSource, link)
	if err != nil {
		return nil, err
	}

	var el ir.Expr
	var newstep ir.Expr = targetSet
	if !isObject(target) {
		if singular {
			aref := &ir.AtomicRefSimple{Ref: lref, Name: ptr.Name, Ptr: ptr, ID: id, Rlink: link}
			aref.Users = link.Users.Clone()
			link.AtomRef = aref
			lref.Atomrefs.Add(aref)
			newstep = aref
		} else {
			pref := &ir.LinkPropRefSimple{Ref: link, Name: schema.TargetPointer, Ptr: ptr.Property(schema.TargetPointer), ID: id}
			link.Proprefs.Add(pref)
			lref.Disjunction.Paths.Add(link)
			newstep = pref
		}
		el = newstep
	} else if recurse {
		memo := seen
		var next bool
		switch {
		case spec.Recurse != nil:
			memo = map[schema.Type]bool{}
			next = true
		case spec.Explicit:
			next = true
		default:
			next = !visited[target]
		}
		sub, err := a.record(s, targetSet, spec.PathSpec, memo, next, true)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			el = sub
		}
	}

	var props []ir.Expr
	if ptr.HasUserDefinedProperties() {
		for _, sub := range spec.PathSpec {
			if sub.Ptr == nil || !sub.Ptr.IsLinkProperty() || sub.Ptr.IsEndpoint() {
				continue
			}
			prop := ptr.Property(sub.Ptr.Name)
			if prop == nil {
				continue
			}
			pref := &ir.LinkPropRefSimple{Ref: link, Name: prop.Name, Ptr: prop, ID: id}
			link.Proprefs.Add(pref)
			props = append(props, pref)
		}
	}
	if len(props) > 0 {
		r, ok := el.(*ir.Record)
		if !ok {
			tgt := &ir.LinkPropRefSimple{Ref: link, Name: schema.TargetPointer, Ptr: ptr.Property(schema.TargetPointer), ID: id}
			link.Proprefs.Add(tgt)
			r = &ir.Record{Elements: []ir.Expr{tgt}, Concept: target, Rlink: link}
		}
		r.Elements = append(r.Elements, props...)
		el = r
	}
	if (isObject(target) && el != nil) || len(props) > 0 {
		lref.Conjunction.Paths.Add(link)
	}

	if el == nil || (singular && spec.Recurse == nil) {
		return el, nil
	}
	var generator ir.Expr = ir.NewConjunction(targetSet)
	if spec.Generator != nil {
		if p, ok := spec.Generator.(ir.Path); ok {
			generator = ir.NewConjunction(targetSet, p)
		} else {
			generator = &ir.BinOp{Left: generator, Op: "AND", Right: spec.Generator}
		}
		generator = a.merger(ir.Generator).mergePaths(generator)
	}
	g := a.newGraph()
	g.Generator = generator
	g.AggregateResult = &ir.FunctionCall{
		Name:       schema.NewName(schema.StdModule, "array_agg"),
		Aggregates: true,
		Args:       []ir.Expr{targetSet.Resolve()},
	}
	g.Sorter = sorter
	g.Offset = spec.Offset
	g.Limit = spec.Limit
	if spec.Recurse != nil {
		g.RecurseLink = link
		g.RecurseDepth = spec.Recurse
	}
	g.Selector = []*ir.SelectorExpr{{Expr: el, Name: ptr.Name}}
	return &ir.SubgraphRef{Ref: g, Name: ptr.Name, Rlink: link}, nil
}

// rebaseSorter moves the sort keys of a shape element onto the set the
// element's subquery iterates over.
func rebaseSorter(sorter []*ir.SortExpr, src *ir.EntitySet, link *ir.EntityLink) ([]*ir.SortExpr, error) {
	var out []*ir.SortExpr
	for _, sort := range sorter {
		var e ir.Expr
		switch key := sort.Expr.(type) {
		case *ir.AtomicRefSimple:
			if key.Ptr == nil {
				e = sort.Expr
				break
			}
			aref := &ir.AtomicRefSimple{
				Ref:  src,
				Name: key.Name,
				Ptr:  key.Ptr,
				ID:   src.ID.Extend(key.Ptr, schema.Outbound, key.Ptr.Target),
			}
			aref.Users = key.Users.Clone()
			if key.Rlink != nil {
				l := key.Rlink.Resolve()
				aref.Rlink = &ir.EntityLink{Source: src, Ptr: l.Ptr, Direction: l.Direction, Users: l.Users.Clone(), AtomRef: aref}
			}
			src.Atomrefs.Add(aref)
			e = aref
		case *ir.LinkPropRefSimple:
			if key.Ref.Resolve().Ptr.Name != link.Ptr.Name {
				return nil, zqe.E(zqe.Invalid, "cannot sort by a property of link other than %s", link.Ptr.Name)
			}
			pref := &ir.LinkPropRefSimple{Ref: link, Name: key.Name, Ptr: key.Ptr, ID: key.ID}
			link.Proprefs.Add(pref)
			e = pref
		default:
			e = sort.Expr
		}
		out = append(out, &ir.SortExpr{Expr: e, Direction: sort.Direction, Nones: sort.Nones})
	}
	return out, nil
}
