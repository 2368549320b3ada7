package semantic

import (
	"github.com/brimdata/edgeql/compiler/ast"
	"github.com/brimdata/edgeql/compiler/ir"
	zqe "github.com/brimdata/edgeql/errors"
	"github.com/brimdata/edgeql/schema"
)

// semShape compiles "expr { elements }" into a record of the objects expr
// denotes.
func (a *analyzer) semShape(s scope, sh *ast.Shape) (ir.Expr, error) {
	set, subject, err := a.shapeSubject(s, sh.Expr)
	if err != nil {
		return nil, err
	}
	var rlink *schema.Pointer
	if set.Rlink != nil {
		rlink = set.Rlink.Resolve().Ptr
	}
	specs, err := a.semPathSpec(s, set.Concept, rlink, subject, sh.Elements)
	if err != nil {
		return nil, err
	}
	return a.entityRefToRecord(s, set, specs, nil, true)
}

// shapeSubject compiles the expression a shape applies to and returns the
// set it denotes along with the path partial paths in the shape extend.
func (a *analyzer) shapeSubject(s scope, e ast.Expr) (*ir.EntitySet, *ast.Path, error) {
	var x ir.Expr
	var err error
	subject, _ := e.(*ast.Path)
	if subject != nil {
		if subject.Partial && s.subject != nil {
			subject = &ast.Path{
				Kind:  "Path",
				Steps: append(append([]ast.Step{}, s.subject.Steps...), subject.Steps...),
				Loc:   subject.Loc,
			}
		}
		x, err = a.semPath(s, subject)
	} else {
		x, err = a.semExpr(s, e)
	}
	if err != nil {
		return nil, nil, err
	}
	x = a.merger(s.location).mergePaths(x)
	if d, ok := x.(ir.PathCombination); ok && d.Members().Len() == 1 {
		x = d.Members().First()
	}
	switch x := x.(type) {
	case *ir.EntitySet:
		if isObject(x.Resolve().Concept) {
			return x.Resolve(), subject, nil
		}
	case *ir.Record:
		if len(x.Elements) > 0 {
			if ref, ok := x.Elements[0].(*ir.AtomicRefSimple); ok {
				return ref.Ref.Resolve(), subject, nil
			}
		}
	}
	return nil, nil, zqe.E(zqe.Invalid, span(e), "shapes can only be applied to object types")
}

// semPathSpec compiles shape elements against the type src.  rlink is the
// link that reached src; "@name" elements refer to its properties.
func (a *analyzer) semPathSpec(s scope, src schema.Type, rlink *schema.Pointer, subject *ast.Path, elems []*ast.ShapeElement) ([]*ir.PtrPathSpec, error) {
	var out []*ir.PtrPathSpec
	for _, el := range elems {
		if len(el.Expr.Steps) == 0 {
			return nil, zqe.E(zqe.Syntax, span(el), "empty shape element")
		}
		if splat, ok := el.Expr.Steps[0].(*ast.Splat); ok {
			specs, err := a.splat(s, src, splat)
			if err != nil {
				return nil, err
			}
			out = mergePathSpecs(out, specs)
			continue
		}
		spec, err := a.semShapeElement(s, src, rlink, subject, el)
		if err != nil {
			return nil, err
		}
		out = mergePathSpecs(out, []*ir.PtrPathSpec{spec})
	}
	normalizeRecursion(out)
	return out, nil
}

func (a *analyzer) semShapeElement(s scope, src schema.Type, rlink *schema.Pointer, subject *ast.Path, el *ast.ShapeElement) (*ir.PtrPathSpec, error) {
	steps := el.Expr.Steps
	source := src
	var far schema.Type
	var ptrStep *ast.Ptr
	for k, step := range steps {
		switch step := step.(type) {
		case *ast.TypeIntersection:
			typ, err := a.semType(s, step.Type)
			if err != nil {
				return nil, err
			}
			if k == 0 {
				source = typ
			} else {
				far = typ
			}
		case *ast.Ptr:
			ptrStep = step
		default:
			return nil, zqe.E(zqe.Syntax, span(step), "unexpected shape element")
		}
	}
	if ptrStep == nil {
		return nil, zqe.E(zqe.Syntax, span(el), "shape element has no pointer")
	}
	if ptrStep.Name == "__type__" && ptrStep.Type != "property" {
		spec := &ir.PtrPathSpec{Name: "__type__", TypeIndirection: true, Explicit: true}
		for _, sub := range el.Elements {
			ptr, ok := lastPtr(sub.Expr)
			if !ok {
				return nil, zqe.E(zqe.Syntax, span(sub), "invalid reference to a type attribute")
			}
			spec.PathSpec = append(spec.PathSpec, &ir.PtrPathSpec{Name: ptr.Name, Explicit: true})
		}
		return spec, nil
	}
	dir := ptrStep.Direction
	if dir == "" {
		dir = schema.Outbound
	}
	elemSubject := extendSubject(subject, steps)
	sub := s
	sub.subject = elemSubject
	spec := &ir.PtrPathSpec{Direction: dir, Name: ptrStep.Name, Explicit: true}
	switch {
	case el.Compexpr != nil:
		if el.Operation != "" && el.Operation != ast.Assign {
			return nil, zqe.E(zqe.Invalid, span(el), "%s is only valid in UPDATE", el.Operation)
		}
		csub := s.at(ir.Selector)
		csub.subject = subject
		e, err := a.semExpr(csub, el.Compexpr)
		if err != nil {
			return nil, err
		}
		spec.Compexpr = e
		spec.Target = inferType(a, e)
		spec.Ptr = &schema.Pointer{
			Name:       ptrStep.Name,
			Kind:       schema.Property,
			Source:     source,
			Target:     spec.Target,
			Mapping:    schema.ManyToOne,
			Computable: true,
		}
		if isObject(spec.Target) {
			spec.Ptr.Kind = schema.Link
		}
		if el.Cardinality == "multi" {
			spec.Ptr.Mapping = schema.ManyToMany
		}
		spec.Ptr.Required = el.Required
	case ptrStep.Type == "property":
		if rlink == nil {
			return nil, zqe.E(zqe.Reference, span(ptrStep), "link properties are not available at this point in path")
		}
		prop := rlink.Property(ptrStep.Name)
		if prop == nil {
			var names []string
			for _, p := range rlink.Properties {
				names = append(names, p.Name)
			}
			return nil, zqe.E(zqe.Reference, span(ptrStep), zqe.Hint(schema.Suggest(ptrStep.Name, names)),
				"[%s].[@%s] does not resolve to any known path", rlink.SchemaName(), ptrStep.Name)
		}
		spec.Ptr, spec.Target = prop, prop.Target
	default:
		obj, ok := source.(*schema.ObjectType)
		if !ok {
			return nil, zqe.E(zqe.Reference, span(ptrStep), "[%s].[%s%s] does not resolve to any known path", source.SchemaName(), dir, ptrStep.Name)
		}
		ptr := obj.ResolvePointer(ptrStep.Name, dir, far, true)
		if ptr == nil {
			return nil, ptrError(obj, ptrStep, dir, far)
		}
		spec.Ptr = ptr
		spec.Target = ptr.FarEndpoint(dir)
		if far != nil {
			spec.Target = far
		}
	}
	if el.Recurse {
		if el.RecurseLimit != nil {
			c, err := a.semExpr(s, el.RecurseLimit)
			if err != nil {
				return nil, err
			}
			spec.Recurse = c
		} else {
			spec.Recurse = a.unboundedRecursion()
		}
	}
	var err error
	if el.Where != nil {
		if spec.Generator, err = a.semExpr(sub.at(ir.Generator), el.Where); err != nil {
			return nil, err
		}
	}
	if len(el.OrderBy) > 0 {
		if spec.Sorter, err = a.semSortExprs(sub.at(ir.Sorter), el.OrderBy); err != nil {
			return nil, err
		}
	}
	if el.Offset != nil {
		if spec.Offset, err = a.semExpr(s, el.Offset); err != nil {
			return nil, err
		}
	}
	if el.Limit != nil {
		if spec.Limit, err = a.semExpr(s, el.Limit); err != nil {
			return nil, err
		}
	}
	if len(el.Elements) > 0 {
		if spec.PathSpec, err = a.semPathSpec(s, spec.Target, spec.Ptr, elemSubject, el.Elements); err != nil {
			return nil, err
		}
	}
	return spec, nil
}

// unboundedRecursion is the recursion depth of "*" without a limit.
func (a *analyzer) unboundedRecursion() ir.Expr {
	return &ir.Constant{Value: int64(-1), Type: a.stdType("int64")}
}

func lastPtr(p *ast.Path) (*ast.Ptr, bool) {
	if p == nil || len(p.Steps) == 0 {
		return nil, false
	}
	ptr, ok := p.Steps[len(p.Steps)-1].(*ast.Ptr)
	return ptr, ok
}

// extendSubject returns the path partial paths inside a shape element
// continue: the subject of the shape followed by the element's pointer.
func extendSubject(subject *ast.Path, steps []ast.Step) *ast.Path {
	if subject == nil {
		return nil
	}
	out := &ast.Path{Kind: "Path", Loc: subject.Loc}
	out.Steps = append(out.Steps, subject.Steps...)
	for _, step := range steps {
		if _, ok := step.(*ast.TypeIntersection); ok && len(out.Steps) == len(subject.Steps) {
			continue
		}
		out.Steps = append(out.Steps, step)
	}
	return out
}

// splat expands "*" to the eager pointers of src and "**" to those and
// the eager pointers of their object targets.
func (a *analyzer) splat(s scope, src schema.Type, splat *ast.Splat) ([]*ir.PtrPathSpec, error) {
	if splat.Type != nil || splat.Intersection != nil {
		tn := splat.Type
		if tn == nil {
			tn = splat.Intersection.Type
		}
		typ, err := a.semType(s, tn)
		if err != nil {
			return nil, err
		}
		src = typ
	}
	obj, ok := src.(*schema.ObjectType)
	if !ok {
		return nil, zqe.E(zqe.Invalid, span(splat), "splat requires an object type")
	}
	return eagerSpecs(obj, splat.Depth), nil
}

func eagerSpecs(obj *schema.ObjectType, depth int) []*ir.PtrPathSpec {
	var out []*ir.PtrPathSpec
	for _, ptr := range obj.Pointers() {
		if !ptr.Eager && ptr.Name != schema.IDPointer {
			continue
		}
		spec := &ir.PtrPathSpec{Ptr: ptr, Direction: schema.Outbound, Target: ptr.Target, Name: ptr.Name}
		if target, ok := ptr.Target.(*schema.ObjectType); ok && depth > 1 {
			spec.PathSpec = eagerSpecs(target, depth-1)
		}
		out = append(out, spec)
	}
	return out
}

// mergePathSpecs combines two lists of pointer specs.  Specs of the same
// pointer and direction are merged, with the later one's clauses taking
// precedence and their nested specs merged.
func mergePathSpecs(left, right []*ir.PtrPathSpec) []*ir.PtrPathSpec {
	if len(left) == 0 {
		return right
	}
	out := append([]*ir.PtrPathSpec{}, left...)
	for _, r := range right {
		merged := false
		for k, l := range out {
			if l.TypeIndirection != r.TypeIndirection || l.Name != r.Name || l.Direction != r.Direction {
				continue
			}
			spec := *r
			spec.PathSpec = mergePathSpecs(l.PathSpec, r.PathSpec)
			if !r.Explicit && l.Explicit {
				spec = *l
				spec.PathSpec = mergePathSpecs(l.PathSpec, r.PathSpec)
			}
			out[k] = &spec
			merged = true
			break
		}
		if !merged {
			out = append(out, r)
		}
	}
	return out
}

// normalizeRecursion pushes a recursive spec one level down so that the
// recursion starts at the pointer target rather than at the source.
func normalizeRecursion(specs []*ir.PtrPathSpec) {
	for _, spec := range specs {
		if spec.Recurse == nil {
			continue
		}
		if spec.PathSpec == nil {
			if obj, ok := spec.Target.(*schema.ObjectType); ok {
				spec.PathSpec = eagerSpecs(obj, 1)
			}
		}
		rec := *spec
		rec.PathSpec = append([]*ir.PtrPathSpec{}, spec.PathSpec...)
		replaced := false
		for k, sub := range spec.PathSpec {
			if sub.Name == spec.Name && sub.Direction == spec.Direction {
				spec.PathSpec[k] = &rec
				replaced = true
				break
			}
		}
		if !replaced {
			spec.PathSpec = append(spec.PathSpec, &rec)
		}
		spec.Recurse = nil
		spec.Sorter = nil
	}
}
