package semantic

import (
	"fmt"

	"github.com/brimdata/edgeql/compiler/ast"
	"github.com/brimdata/edgeql/compiler/ir"
	zqe "github.com/brimdata/edgeql/errors"
	"github.com/brimdata/edgeql/schema"
)

// semPath compiles a path into the chain of sets and links it walks.  The
// result is the tip of the chain: a set, an attribute reference, a link
// property reference, or a reference into a subquery.
func (a *analyzer) semPath(s scope, p *ast.Path) (ir.Expr, error) {
	steps := p.Steps
	if p.Partial {
		if s.subject == nil {
			return nil, zqe.E(zqe.Reference, span(p), "partial path has no subject to refer to")
		}
		steps = append(append([]ast.Step{}, s.subject.Steps...), p.Steps...)
	}
	if len(steps) == 0 {
		return nil, zqe.E(zqe.Internal, span(p), "empty path")
	}
	tip, err := a.pathRoot(s, steps[0])
	if err != nil {
		return nil, err
	}
	var typeref *ir.EntitySet
	for k := 1; k < len(steps); k++ {
		switch step := steps[k].(type) {
		case *ast.Ptr:
			if typeref != nil {
				mref := &ir.MetaRef{Ref: typeref, Name: step.Name}
				typeref.Metarefs.Add(mref)
				tip, typeref = mref, nil
				continue
			}
			if step.Type == "property" {
				if tip, err = a.semLinkProp(tip, step); err != nil {
					return nil, err
				}
				continue
			}
			switch t := tip.(type) {
			case *ir.GraphExpr:
				t.AttrRefs.Add(step.Name)
				tip = &ir.SubgraphRef{Ref: t, Name: step.Name}
			case *ir.SubgraphRef:
				t.Ref.AttrRefs.Add(step.Name)
				tip = &ir.SubgraphRef{Ref: t.Ref, Name: step.Name}
			case *ir.EntityLink, *ir.LinkPropRefSimple:
				if tip, err = a.semLinkProp(tip, step); err != nil {
					return nil, err
				}
			case *ir.EntitySet:
				if step.Name == "__type__" && step.Direction != ast.Inbound {
					typeref = t.Resolve()
					continue
				}
				var far schema.Type
				if k+1 < len(steps) {
					if ti, ok := steps[k+1].(*ast.TypeIntersection); ok {
						if far, err = a.semType(s, ti.Type); err != nil {
							return nil, err
						}
					}
				}
				if tip, err = a.semPtrStep(s, t.Resolve(), step, far); err != nil {
					return nil, err
				}
			default:
				return nil, zqe.E(zqe.Reference, span(step), "invalid path step %q", step.Name)
			}
		case *ast.TypeIntersection:
			set, ok := tip.(*ir.EntitySet)
			if !ok {
				return nil, zqe.E(zqe.Reference, span(step), "type intersection applies to object paths only")
			}
			if err := a.narrow(s, set.Resolve(), step); err != nil {
				return nil, err
			}
		case *ast.Splat:
			return nil, zqe.E(zqe.Syntax, span(step), "splat is only allowed in shapes")
		default:
			return nil, zqe.E(zqe.Syntax, span(step), "unexpected path step")
		}
	}
	if typeref != nil {
		mref := &ir.MetaRef{Ref: typeref, Name: schema.IDPointer}
		typeref.Metarefs.Add(mref)
		tip = mref
	}
	if link, ok := tip.(*ir.EntityLink); ok && link.Source != nil {
		tip = danglingLink(link)
	}
	if g, ok := tip.(*ir.GraphExpr); ok {
		name := columnName(g)
		g.AttrRefs.Add(name)
		return &ir.SubgraphRef{Ref: g, Name: name}, nil
	}
	e, ok := tip.(ir.Expr)
	if !ok {
		return nil, zqe.E(zqe.Internal, span(p), "path resolves to %T", tip)
	}
	return e, nil
}

// pathRoot resolves the first step of a path.  Names bound by anchors, WITH
// aliases and FOR iterators shadow schema names.
func (a *analyzer) pathRoot(s scope, step ast.Step) (ir.Node, error) {
	switch step := step.(type) {
	case *ast.ObjectRef:
		if step.Module == "" {
			if n, ok := s.anchors[step.Name]; ok {
				return fromBinding(s, n), nil
			}
		}
		if e, ok := s.pathvars[qualified(step.Module, step.Name)]; ok {
			return fromBinding(s, e), nil
		}
		if step.Module == "" {
			if g, ok := s.cges[step.Name]; ok {
				return g, nil
			}
			if src := s.linkSource; src != nil {
				if obj, ok := src.Concept.(*schema.ObjectType); ok && obj.Pointer(step.Name) != nil {
					ptr := &ast.Ptr{Kind: "Ptr", Name: step.Name, Direction: ast.Outbound, Loc: step.Loc}
					return a.semPtrStep(s, src.Resolve(), ptr, nil)
				}
			}
		}
		typ, err := a.semType(s, &ast.TypeName{Kind: "TypeName", Maintype: step, Loc: step.Loc})
		if err != nil {
			return nil, err
		}
		return ir.NewEntitySet(typ, s.location), nil
	case *ast.SpecialAnchor:
		if n, ok := s.anchors[step.Name]; ok {
			return fromBinding(s, n), nil
		}
		return nil, zqe.E(zqe.Reference, span(step), "%s is not defined in this context", step.Name)
	case *ast.ExprRoot:
		switch e := step.Expr.(type) {
		case ast.Query:
			ref, err := a.semSubquery(s, e)
			if err != nil {
				return nil, err
			}
			return ref.(*ir.SubgraphRef).Ref, nil
		case *ast.Path:
			p, err := a.semPath(s, e)
			if err != nil {
				return nil, err
			}
			return p, nil
		}
		e, err := a.semExpr(s, step.Expr)
		if err != nil {
			return nil, err
		}
		if rec, ok := e.(*ir.Record); ok && len(rec.Elements) > 0 {
			if ref, ok := rec.Elements[0].(*ir.AtomicRefSimple); ok {
				return ref.Ref.Resolve(), nil
			}
		}
		return e, nil
	}
	return nil, zqe.E(zqe.Syntax, span(step), "invalid path root")
}

// fromBinding returns the node a bound name stands for.  Paths are
// copied so that each use of the name is a fresh chain that the path
// algebra can merge with the others.
func fromBinding(s scope, n ir.Node) ir.Node {
	switch n := n.(type) {
	case *ir.EntitySet, *ir.EntityLink, *ir.AtomicRefSimple:
		c := ir.CopyPath(n.(ir.Path), true)
		ir.AddUser(c, s.location)
		return c
	}
	return n
}

// semType resolves a type name to a schema type.
func (a *analyzer) semType(s scope, tn *ast.TypeName) (schema.Type, error) {
	ref, err := a.semTypeName(s, tn)
	if err != nil {
		return nil, err
	}
	if ref.Type == nil {
		return nil, zqe.E(zqe.Reference, span(tn), "%s is not a schema type", ref.Name)
	}
	return ref.Type, nil
}

func (a *analyzer) narrow(s scope, set *ir.EntitySet, step *ast.TypeIntersection) error {
	typ, err := a.semType(s, step.Type)
	if err != nil {
		return err
	}
	if typ == set.Concept {
		return nil
	}
	if !typ.IsSubclass(set.Concept) && !set.Concept.IsSubclass(typ) {
		return zqe.E(zqe.Reference, span(step), "%s is not related to %s", typ.SchemaName(), set.Concept.SchemaName())
	}
	set.Concept = typ
	if set.Rlink == nil {
		set.ID = ir.NewLinearPath(typ)
	} else if link := set.Rlink.Resolve(); link.Source != nil {
		set.ID = link.Source.Resolve().ID.Extend(link.Ptr, link.Direction, typ)
	}
	return nil
}

// semPtrStep follows the pointer of step out of src.  Links to objects
// and links to several values are optional links of src; a singular
// property becomes an attribute of src.
func (a *analyzer) semPtrStep(s scope, src *ir.EntitySet, step *ast.Ptr, far schema.Type) (ir.Node, error) {
	dir := step.Direction
	if dir == "" {
		dir = schema.Outbound
	}
	obj, ok := src.Concept.(*schema.ObjectType)
	if !ok {
		return nil, zqe.E(zqe.Reference, span(step), "[%s].[%s%s] does not resolve to any known path", src.Concept.SchemaName(), dir, step.Name)
	}
	ptr := obj.ResolvePointer(step.Name, dir, far, true)
	if ptr == nil {
		return nil, ptrError(obj, step, dir, far)
	}
	target := ptr.FarEndpoint(dir)
	if far != nil {
		target = far
	}
	ensureCombinations(src)
	link := &ir.EntityLink{Source: src, Ptr: ptr, Direction: dir}
	link.Users.Add(s.location)
	set := ir.NewEntitySet(target, s.location)
	set.ID = src.ID.Extend(ptr, dir, target)
	set.Rlink = link
	link.Target = set
	if isObject(target) || !ptr.Singular(dir) {
		src.Disjunction.Paths.Add(link)
		src.Disjunction.Fixed = s.weak == weakOn
	}
	if isObject(target) {
		return set, nil
	}
	if !ptr.Singular(dir) {
		pref := &ir.LinkPropRefSimple{Ref: link, Name: schema.TargetPointer, Ptr: ptr.Property(schema.TargetPointer), ID: set.ID}
		link.Proprefs.Add(pref)
		return pref, nil
	}
	aref := &ir.AtomicRefSimple{Ref: src, Name: ptr.Name, Ptr: ptr, ID: set.ID, Rlink: link}
	aref.Users.Add(s.location)
	src.Atomrefs.Add(aref)
	link.AtomRef = aref
	return aref, nil
}

func ptrError(obj *schema.ObjectType, step *ast.Ptr, dir string, far schema.Type) error {
	var farName string
	if far != nil {
		farName = fmt.Sprintf("(%s)", far.SchemaName())
	}
	var names []string
	for _, p := range obj.Pointers() {
		names = append(names, p.Name)
	}
	return zqe.E(zqe.Reference, span(step), zqe.Hint(schema.Suggest(step.Name, names)),
		"[%s].[%s%s%s] does not resolve to any known path", obj.Name, dir, step.Name, farName)
}

// semLinkProp resolves "@name" against the link that led to tip.
func (a *analyzer) semLinkProp(tip ir.Node, step *ast.Ptr) (ir.Node, error) {
	var link *ir.EntityLink
	var id ir.LinearPath
	switch t := tip.(type) {
	case *ir.LinkPropRefSimple:
		if t.Ptr != nil && !t.Ptr.IsEndpoint() {
			if step.Name != schema.SourcePointer {
				return nil, zqe.E(zqe.Reference, span(step), "invalid reference: %s.%s", t.Name, step.Name)
			}
			return t.Ref.Resolve().Target, nil
		}
		link, id = t.Ref.Resolve(), t.ID
	case *ir.EntityLink:
		link = t.Resolve()
		id = ir.NewLinearPath(nil).Extend(link.Ptr, schema.Outbound, nil)
	case *ir.EntitySet:
		link, id = t.Resolve().Rlink.Resolve(), t.ID
	case *ir.AtomicRefSimple:
		link, id = t.Rlink.Resolve(), t.ID
	}
	if link == nil || link.Ptr == nil {
		return nil, zqe.E(zqe.Reference, span(step), "invalid reference to link property")
	}
	prop := link.Ptr.Property(step.Name)
	if prop == nil {
		var names []string
		for _, p := range link.Ptr.Properties {
			names = append(names, p.Name)
		}
		return nil, zqe.E(zqe.Reference, span(step), zqe.Hint(schema.Suggest(step.Name, names)),
			"[%s].[@%s] does not resolve to any known path", link.Ptr.SchemaName(), step.Name)
	}
	pref := &ir.LinkPropRefSimple{Ref: link, Name: prop.Name, Ptr: prop, ID: id}
	link.Proprefs.Add(pref)
	return pref, nil
}

// danglingLink completes a path ending at a link (an anchored link, say)
// with a reference to the link target.
func danglingLink(link *ir.EntityLink) *ir.LinkPropRefSimple {
	ptr := link.Ptr
	id := link.Source.Resolve().ID.Extend(ptr, schema.Outbound, ptr.Target)
	pref := &ir.LinkPropRefSimple{Ref: link, Name: schema.TargetPointer, Ptr: ptr.Property(schema.TargetPointer), ID: id}
	link.Proprefs.Add(pref)
	return pref
}

func ensureCombinations(set *ir.EntitySet) {
	if set.Conjunction == nil {
		set.Conjunction = &ir.Conjunction{}
	}
	if set.Disjunction == nil {
		set.Disjunction = &ir.Disjunction{}
	}
}
