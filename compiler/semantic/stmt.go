package semantic

import (
	"strings"

	"github.com/brimdata/edgeql/compiler/ast"
	"github.com/brimdata/edgeql/compiler/ir"
	"github.com/brimdata/edgeql/compiler/optimizer"
	zqe "github.com/brimdata/edgeql/errors"
	"github.com/brimdata/edgeql/schema"
)

// semQuery compiles a query into a new graph.  The graph sees the names
// bound in s; names it binds itself are visible only inside it.
func (a *analyzer) semQuery(s scope, q ast.Query) (*ir.GraphExpr, error) {
	if err := a.ctx.Err(); err != nil {
		return nil, err
	}
	g := a.newGraph()
	sub, err := a.semWith(s.enter(g), g, *q.WithBlock())
	if err != nil {
		return nil, err
	}
	switch q := q.(type) {
	case *ast.SelectQuery:
		err = a.semSelect(sub, g, q)
	case *ast.InsertQuery:
		err = a.semInsert(sub, g, q)
	case *ast.UpdateQuery:
		err = a.semUpdate(sub, g, q)
	case *ast.DeleteQuery:
		err = a.semDelete(sub, g, q)
	case *ast.ForQuery:
		err = a.semFor(sub, g, q)
	case *ast.GroupQuery:
		err = a.semGroup(sub, g, q)
	case *ast.InternalGroupQuery:
		err = a.semInternalGroup(sub, g, q)
	default:
		err = zqe.E(zqe.Internal, span(q), "unexpected query type %T", q)
	}
	if err != nil {
		return nil, err
	}
	g.ResultTypes = a.resultTypes(g)
	return g, nil
}

// semWith binds the declarations of a WITH block in order.  A query
// becomes a common graph expression; any other expression is a path
// variable copied at each use.
func (a *analyzer) semWith(s scope, g *ir.GraphExpr, aliases []ast.Alias) (scope, error) {
	for _, decl := range aliases {
		switch decl := decl.(type) {
		case *ast.ModuleAliasDecl:
			s = s.withModule(decl.Alias, decl.Module)
		case *ast.AliasedExpr:
			if q, ok := decl.Expr.(ast.Query); ok {
				cge, err := a.semQuery(s, q)
				if err != nil {
					return s, err
				}
				g.CGEs = append(g.CGEs, &ir.CommonGraphExpr{Expr: cge, Alias: decl.Alias})
				s = s.withCGE(decl.Alias, cge)
				continue
			}
			e, err := a.semBinding(s, decl.Alias, decl.Expr)
			if err != nil {
				return s, err
			}
			s = s.withPathvar(decl.Alias, e)
		default:
			return s, zqe.E(zqe.Internal, span(decl), "unexpected alias declaration %T", decl)
		}
	}
	return s, nil
}

// semBinding compiles the expression bound to a local name.  Paths are
// tagged with the name so that uses of it merge with each other and not
// with unrelated paths to the same position.
func (a *analyzer) semBinding(s scope, name string, e ast.Expr) (ir.Expr, error) {
	var x ir.Expr
	var err error
	if p, ok := e.(*ast.Path); ok {
		x, err = a.semPath(s, p)
	} else {
		x, err = a.semExpr(s.at(ir.Generator), e)
	}
	if err != nil {
		return nil, err
	}
	switch x := x.(type) {
	case *ir.EntitySet:
		x.Resolve().Pathvar = name
	case *ir.EntityLink:
		x.Resolve().Pathvar = name
	case *ir.AtomicRefSimple:
		if x.Rlink != nil {
			x.Rlink.Resolve().Pathvar = name
		}
	}
	return x, nil
}

func (a *analyzer) semSelect(s scope, g *ir.GraphExpr, q *ast.SelectQuery) error {
	if b, ok := q.Result.(*ast.BinOp); ok && isSetOp(b.Op) {
		if err := a.semSetOp(s, g, b); err != nil {
			return err
		}
		return a.semSlice(s, g, q.OrderBy, q.Offset, q.Limit)
	}
	// Partial paths in the clauses continue the result path.
	clauses := s
	if p := subjectOf(q.Result); p != nil {
		clauses = s.withSubject(p)
	}
	var err error
	if g.Generator, err = a.semWhere(clauses, q.Where); err != nil {
		return err
	}
	if a.hasAggregate(s, q.Result) || a.hasAggregate(s, sortPaths(q.OrderBy)...) {
		s.groupPrefixes = map[string]struct{}{}
		clauses.groupPrefixes = s.groupPrefixes
	}
	sel, err := a.semSelectTarget(s, q.Result, q.ResultAlias)
	if err != nil {
		return err
	}
	g.Selector = []*ir.SelectorExpr{sel}
	if g.Generator == nil && isNodeSelector(q.Result) {
		augment(sel.Expr)
	}
	if err := a.semSlice(clauses, g, q.OrderBy, q.Offset, q.Limit); err != nil {
		return err
	}
	a.unifyTop(g, nil)
	return nil
}

func isSetOp(op string) bool {
	switch op {
	case "UNION", "EXCEPT", "INTERSECT":
		return true
	}
	return false
}

// semSetOp compiles "left OP right" as a graph combining the graphs of
// its operands.
func (a *analyzer) semSetOp(s scope, g *ir.GraphExpr, b *ast.BinOp) error {
	g.SetOp = b.Op
	for _, arg := range []ast.Expr{b.Left, b.Right} {
		q, ok := arg.(ast.Query)
		if !ok {
			q = &ast.SelectQuery{Kind: "SelectQuery", Result: arg, Implicit: true, Loc: ast.NewLoc(arg.Pos(), arg.End())}
		}
		sub, err := a.semQuery(s, q)
		if err != nil {
			return err
		}
		g.SetOpArgs = append(g.SetOpArgs, sub)
	}
	return nil
}

// semSlice compiles ORDER BY, OFFSET, and LIMIT.
func (a *analyzer) semSlice(s scope, g *ir.GraphExpr, orderby []*ast.SortExpr, offset, limit ast.Expr) error {
	var err error
	if g.Sorter, err = a.semSortExprs(s, orderby); err != nil {
		return err
	}
	if offset != nil {
		if g.Offset, err = a.semExpr(s.at(ir.Top), offset); err != nil {
			return err
		}
	}
	if limit != nil {
		if g.Limit, err = a.semExpr(s.at(ir.Top), limit); err != nil {
			return err
		}
	}
	return nil
}

// semWhere compiles a filter.  Its paths are merged as a generator, and a
// set reaching through a single optional link is made to require it.
func (a *analyzer) semWhere(s scope, where ast.Expr) (ir.Expr, error) {
	if where == nil {
		return nil, nil
	}
	e, err := a.semExpr(s.at(ir.Generator), where)
	if err != nil {
		return nil, err
	}
	e = a.merger(ir.Generator).mergePaths(e)
	optimizer.PromoteWeakPaths(e)
	return e, nil
}

func (a *analyzer) semSelectTarget(s scope, e ast.Expr, alias string) (*ir.SelectorExpr, error) {
	sub := s.at(ir.Selector)
	x, err := a.semExpr(sub, e)
	if err != nil {
		return nil, err
	}
	x = a.merger(ir.Selector).mergePaths(x)
	path := x
	if d, ok := x.(*ir.Disjunction); ok && d.Paths.Len() == 1 {
		path = d.Paths.First()
	}
	if set, ok := path.(*ir.EntitySet); ok && isObject(set.Resolve().Concept) {
		if x, err = a.entityRefToRecord(sub, set.Resolve(), nil, nil, true); err != nil {
			return nil, err
		}
	}
	return &ir.SelectorExpr{Expr: x, Name: alias, Autoname: a.genAlias(autonameHint(e))}, nil
}

// autonameHint derives a column name from the expression it names.
func autonameHint(e ast.Expr) string {
	if sh, ok := e.(*ast.Shape); ok {
		e = sh.Expr
	}
	p, ok := e.(*ast.Path)
	if !ok || len(p.Steps) == 0 {
		return ""
	}
	switch step := p.Steps[len(p.Steps)-1].(type) {
	case *ast.Ptr:
		return step.Name
	case *ast.ObjectRef:
		return strings.ToLower(step.Name)
	}
	return ""
}

func subjectOf(e ast.Expr) *ast.Path {
	switch e := e.(type) {
	case *ast.Path:
		if !e.Partial {
			return e
		}
	case *ast.Shape:
		return subjectOf(e.Expr)
	}
	return nil
}

// isNodeSelector reports whether a query result with no filter selects
// the objects of a path, in which case its paths also generate the rows.
func isNodeSelector(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Path:
		return true
	case *ast.Shape:
		_, ok := e.Expr.(*ast.Path)
		return ok
	}
	return false
}

// augment tags the paths of a node selector as generator paths.
func augment(e ir.Expr) {
	mark := func(set *ir.EntitySet) {
		set = set.Resolve()
		set.Users.Add(ir.Generator)
		optimizer.PromoteWeakPaths(set)
	}
	ir.Inspect(e, func(n ir.Node) bool {
		switch n := n.(type) {
		case *ir.Record:
			if n.Rlink != nil {
				link := n.Rlink.Resolve()
				link.Users.Add(ir.Generator)
				if link.Source != nil {
					mark(link.Source)
				}
			}
			for _, el := range n.Elements {
				if ref, ok := el.(*ir.AtomicRefSimple); ok && ref.Ref != nil {
					mark(ref.Ref)
					break
				}
			}
			return false
		case *ir.EntitySet:
			mark(n)
		case *ir.EntityLink:
			n.Resolve().Users.Add(ir.Generator)
		case *ir.AtomicRefSimple:
			n.Users.Add(ir.Generator)
		case *ir.SubgraphRef:
			return false
		}
		return true
	})
}

// hasAggregate reports whether an aggregate function is called in any of
// nodes outside of a nested query.
func (a *analyzer) hasAggregate(s scope, nodes ...ast.Node) bool {
	var found bool
	for _, n := range nodes {
		if n == nil || found {
			continue
		}
		ast.Inspect(n, func(n ast.Node) bool {
			if found {
				return false
			}
			switch n := n.(type) {
			case ast.Query:
				return false
			case *ast.FunctionCall:
				if n.Window != nil {
					return true
				}
				fns, err := a.lookup.GetFunctions(qualified(n.Func.Module, n.Func.Name), s.aliases)
				if err != nil {
					return true
				}
				for _, fn := range fns {
					if fn.Aggregate {
						found = true
						return false
					}
				}
			}
			return true
		})
	}
	return found
}

func sortPaths(sorts []*ast.SortExpr) []ast.Node {
	var out []ast.Node
	for _, sort := range sorts {
		out = append(out, sort.Path)
	}
	return out
}

func (a *analyzer) semSortExprs(s scope, sorts []*ast.SortExpr) ([]*ir.SortExpr, error) {
	var out []*ir.SortExpr
	sub := s.at(ir.Sorter)
	m := a.merger(ir.Sorter)
	for _, sort := range sorts {
		e, err := a.semExpr(sub, sort.Path)
		if err != nil {
			return nil, err
		}
		e = m.mergePaths(e)
		if c, ok := e.(ir.PathCombination); ok && c.Members().Len() == 1 {
			e = c.Members().First()
		}
		out = append(out, &ir.SortExpr{Expr: e, Direction: sort.Direction, Nones: sort.Nones})
	}
	return out, nil
}

// unifyTop merges the paths of the clauses of g.  The selector, sorter,
// and grouper are merged as one union first; the generator then joins
// the union.
func (a *analyzer) unifyTop(g *ir.GraphExpr, extra []ir.Expr) {
	var exprs []ir.Expr
	for _, sel := range g.OpSelector {
		exprs = append(exprs, sel.Expr)
	}
	for _, sel := range g.Selector {
		exprs = append(exprs, sel.Expr)
	}
	for _, sort := range g.Sorter {
		exprs = append(exprs, sort.Expr)
	}
	exprs = append(exprs, g.Grouper...)
	exprs = append(exprs, extra...)
	m := a.merger(ir.Top)
	m.unifyAll(exprs, true, mergeAll)
	if g.Generator != nil {
		m.unifyAll(append([]ir.Expr{g.Generator}, exprs...), true, mergeAll)
	}
}

// ----------------------------------------------------------------------------
// DML

// semTarget compiles the subject of a DML statement.
func (a *analyzer) semTarget(s scope, e ast.Expr) (ir.Path, *ast.Path, error) {
	p, ok := e.(*ast.Path)
	if !ok {
		if sh, isShape := e.(*ast.Shape); isShape {
			p, ok = sh.Expr.(*ast.Path)
		}
	}
	if !ok {
		return nil, nil, zqe.E(zqe.Invalid, span(e), "the subject of a data modification must be a path")
	}
	x, err := a.semPath(s.at(ir.Generator), p)
	if err != nil {
		return nil, nil, err
	}
	x = a.merger(ir.Generator).mergePaths(x)
	if d, ok := x.(ir.PathCombination); ok && d.Members().Len() == 1 {
		x = d.Members().First()
	}
	path, ok := x.(ir.Path)
	if !ok {
		return nil, nil, zqe.E(zqe.Invalid, span(e), "the subject of a data modification must be a path")
	}
	optimizer.PromoteWeakPaths(path)
	return path, p, nil
}

func (a *analyzer) objectTarget(s scope, e ast.Expr, op string) (*ir.EntitySet, *ast.Path, error) {
	tgt, subject, err := a.semTarget(s, e)
	if err != nil {
		return nil, nil, err
	}
	set, ok := tgt.(*ir.EntitySet)
	if !ok || !isObject(set.Resolve().Concept) {
		return nil, nil, zqe.E(zqe.Invalid, span(e), "%s only works with object types", op)
	}
	return set.Resolve(), subject, nil
}

// opSelector is the record of the objects a DML statement returns.
func (a *analyzer) opSelector(s scope, tgt *ir.EntitySet) ([]*ir.SelectorExpr, error) {
	rec, err := a.entityRefToRecord(s.at(ir.OpTargetShaper), tgt, nil, nil, true)
	if err != nil {
		return nil, err
	}
	return []*ir.SelectorExpr{{Expr: rec, Name: a.genAlias("o")}}, nil
}

func (a *analyzer) selectID(g *ir.GraphExpr, tgt *ir.EntitySet) {
	ref := idRef(tgt)
	tgt.Atomrefs.Add(ref)
	g.Selector = []*ir.SelectorExpr{{Expr: ref, Autoname: schema.IDPointer}}
}

func (a *analyzer) semInsert(s scope, g *ir.GraphExpr, q *ast.InsertQuery) error {
	g.OpType = "INSERT"
	tgt, subject, err := a.objectTarget(s, q.Subject, "INSERT")
	if err != nil {
		return err
	}
	g.OpTarget = tgt
	a.selectID(g, tgt)
	if g.OpSelector, err = a.opSelector(s, tgt); err != nil {
		return err
	}
	if g.OpValues, err = a.semOpValues(s, tgt, subject, q.Shape, false); err != nil {
		return err
	}
	if c := q.UnlessConflict; c != nil {
		sub := s.at(ir.Generator).withSubject(subject)
		if c.On != nil {
			if g.OnConflict, err = a.semExpr(sub, c.On); err != nil {
				return err
			}
		}
		if c.Else != nil {
			if g.ConflictElse, err = a.semExpr(s.at(ir.Selector), c.Else); err != nil {
				return err
			}
		}
	}
	a.unifyTop(g, []ir.Expr{tgt})
	return nil
}

func (a *analyzer) semUpdate(s scope, g *ir.GraphExpr, q *ast.UpdateQuery) error {
	g.OpType = "UPDATE"
	tgt, subject, err := a.objectTarget(s, q.Subject, "UPDATE")
	if err != nil {
		return err
	}
	g.OpTarget = tgt
	a.selectID(g, tgt)
	if g.Generator, err = a.semWhere(s.withSubject(subject), q.Where); err != nil {
		return err
	}
	if g.OpSelector, err = a.opSelector(s, tgt); err != nil {
		return err
	}
	if g.OpValues, err = a.semOpValues(s, tgt, subject, q.Shape, true); err != nil {
		return err
	}
	a.unifyTop(g, []ir.Expr{tgt})
	return nil
}

// semOpValues compiles the shape of an INSERT or UPDATE into the values
// assigned to the pointers of tgt.  In an UPDATE, bare names in a value
// refer to the pointers of the object being updated.
func (a *analyzer) semOpValues(s scope, tgt *ir.EntitySet, subject *ast.Path, elems []*ast.ShapeElement, update bool) ([]*ir.UpdateExpr, error) {
	var out []*ir.UpdateExpr
	sub := s.at(ir.OpValues).withSubject(subject)
	if update {
		sub.linkSource = tgt
	}
	for _, el := range elems {
		if el.Compexpr == nil {
			return nil, zqe.E(zqe.Invalid, span(el), "missing value for %s", elementName(el))
		}
		if !update && el.Operation != ast.Assign {
			return nil, zqe.E(zqe.Invalid, span(el), "%s is only valid in UPDATE", el.Operation)
		}
		ptr, far, err := a.opPointer(s, el)
		if err != nil {
			return nil, err
		}
		target, err := a.semPtrStep(sub, tgt, ptr, far)
		if err != nil {
			return nil, err
		}
		value, err := a.semExpr(sub, el.Compexpr)
		if err != nil {
			return nil, err
		}
		if !isConst(value) {
			value = a.merger(ir.OpValues).mergePaths(value)
			a.merger(ir.OpValues).unifyPaths([]ir.Node{value, tgt}, false, true, mergeAll)
		}
		out = append(out, &ir.UpdateExpr{Expr: target.(ir.Expr), Value: value, Op: el.Operation})
	}
	return out, nil
}

func (a *analyzer) opPointer(s scope, el *ast.ShapeElement) (*ast.Ptr, schema.Type, error) {
	var ptr *ast.Ptr
	var far schema.Type
	for _, step := range el.Expr.Steps {
		switch step := step.(type) {
		case *ast.Ptr:
			ptr = step
		case *ast.TypeIntersection:
			if ptr == nil {
				continue
			}
			typ, err := a.semType(s, step.Type)
			if err != nil {
				return nil, nil, err
			}
			far = typ
		default:
			return nil, nil, zqe.E(zqe.Syntax, span(step), "unexpected element in a data modification shape")
		}
	}
	if ptr == nil || ptr.Type == "property" {
		return nil, nil, zqe.E(zqe.Invalid, span(el), "invalid target in a data modification shape")
	}
	return ptr, far, nil
}

func elementName(el *ast.ShapeElement) string {
	if ptr, ok := lastPtr(el.Expr); ok {
		return ptr.Name
	}
	return "shape element"
}

func (a *analyzer) semDelete(s scope, g *ir.GraphExpr, q *ast.DeleteQuery) error {
	g.OpType = "DELETE"
	tgt, subject, err := a.semTarget(s, q.Subject)
	if err != nil {
		return err
	}
	g.OpTarget = tgt
	switch tgt := tgt.(type) {
	case *ir.LinkPropRefSimple:
		if tgt.Name != schema.TargetPointer {
			return zqe.E(zqe.Invalid, span(q.Subject), "cannot delete link property %s", tgt.Name)
		}
		link := tgt.Ref.Resolve()
		ref := &ir.LinkPropRefSimple{Ref: link, Name: schema.LinkIDPointer, Ptr: link.Ptr.Property(schema.LinkIDPointer), ID: tgt.ID}
		link.Proprefs.Add(ref)
		g.Selector = []*ir.SelectorExpr{{Expr: ref}}
	case *ir.AtomicRefSimple:
		a.selectID(g, tgt.Ref.Resolve())
	case *ir.EntitySet:
		if !isObject(tgt.Resolve().Concept) {
			return zqe.E(zqe.Invalid, span(q.Subject), "DELETE only works with object types")
		}
		a.selectID(g, tgt.Resolve())
		if g.OpSelector, err = a.opSelector(s, tgt.Resolve()); err != nil {
			return err
		}
	default:
		return zqe.E(zqe.Invalid, span(q.Subject), "invalid DELETE target")
	}
	if g.Generator, err = a.semWhere(s.withSubject(subject), q.Where); err != nil {
		return err
	}
	if err := a.semSlice(s.withSubject(subject), g, q.OrderBy, q.Offset, q.Limit); err != nil {
		return err
	}
	a.unifyTop(g, []ir.Expr{tgt})
	return nil
}

// ----------------------------------------------------------------------------
// Iteration and grouping

// semFor compiles "FOR x IN iterator UNION result".  The iterator
// generates the rows; the result is computed once per row.
func (a *analyzer) semFor(s scope, g *ir.GraphExpr, q *ast.ForQuery) error {
	it, err := a.semBinding(s, q.IteratorAlias, q.Iterator)
	if err != nil {
		return err
	}
	if p, ok := it.(ir.Path); ok {
		ir.AddUser(p, ir.Generator)
		optimizer.PromoteWeakPaths(p)
	}
	g.Generator = it
	sub := s.withPathvar(q.IteratorAlias, it)
	sel, err := a.semSelectTarget(sub, q.Result, "")
	if err != nil {
		return err
	}
	g.Selector = []*ir.SelectorExpr{sel}
	a.unifyTop(g, nil)
	return nil
}

// semGroup compiles "GROUP subj USING ... BY ...".  The result has a
// column per grouping key and an "elements" column aggregating the
// objects of each group.
func (a *analyzer) semGroup(s scope, g *ir.GraphExpr, q *ast.GroupQuery) error {
	subject, sub, err := a.semGroupSubject(s, g, q.Subject, q.SubjectAlias, q.Using, q.By)
	if err != nil {
		return err
	}
	sel := sub.at(ir.Selector)
	for k, by := range g.Grouper {
		name := groupKeyName(q.By[k])
		g.Selector = append(g.Selector, &ir.SelectorExpr{Expr: by, Name: name, Autoname: a.genAlias(name)})
	}
	var elements ir.Expr = subject
	if set, ok := subject.(*ir.EntitySet); ok && isObject(set.Resolve().Concept) {
		if elements, err = a.entityRefToRecord(sel, set.Resolve(), nil, nil, true); err != nil {
			return err
		}
	}
	agg := &ir.FunctionCall{
		Name:       schema.NewName(schema.StdModule, "array_agg"),
		Args:       []ir.Expr{elements},
		Aggregates: true,
	}
	g.Selector = append(g.Selector, &ir.SelectorExpr{Expr: agg, Name: "elements", Autoname: a.genAlias("elements")})
	a.unifyTop(g, nil)
	return nil
}

func groupKeyName(e ast.Expr) string {
	if name := autonameHint(e); name != "" {
		return name
	}
	return "key"
}

// semInternalGroup compiles
// "FOR GROUP subj USING ... BY ... INTO g UNION result".  Outside of
// aggregates, result may only refer to the paths it is grouped by.
func (a *analyzer) semInternalGroup(s scope, g *ir.GraphExpr, q *ast.InternalGroupQuery) error {
	subject, sub, err := a.semGroupSubject(s, g, q.Subject, q.SubjectAlias, q.Using, q.By)
	if err != nil {
		return err
	}
	if q.GroupAlias != "" {
		sub = sub.withPathvar(q.GroupAlias, subject)
	}
	if q.GroupingAlias != "" {
		var names []ir.Expr
		for _, u := range q.Using {
			names = append(names, &ir.Constant{Value: u.Alias, Type: a.stdType("str")})
		}
		sub = sub.withPathvar(q.GroupingAlias, a.processSequence(&ir.Sequence{Elements: names}))
	}
	if q.Where != nil {
		where, err := a.semWhere(sub, q.Where)
		if err != nil {
			return err
		}
		g.Generator = extendBinop(g.Generator, "AND", where)
	}
	sel, err := a.semSelectTarget(sub, q.Result, "")
	if err != nil {
		return err
	}
	g.Selector = []*ir.SelectorExpr{sel}
	if g.Sorter, err = a.semSortExprs(sub, q.OrderBy); err != nil {
		return err
	}
	a.unifyTop(g, nil)
	return nil
}

// semGroupSubject compiles the subject, USING aliases, and BY keys of a
// grouping statement.  The returned scope binds the aliases and checks
// paths against the keys.
func (a *analyzer) semGroupSubject(s scope, g *ir.GraphExpr, subjectExpr ast.Expr, alias string, using []*ast.AliasedExpr, by []ast.Expr) (ir.Expr, scope, error) {
	var subjectPath *ast.Path
	switch e := subjectExpr.(type) {
	case *ast.Path:
		subjectPath = e
	case *ast.Shape:
		subjectPath, _ = e.Expr.(*ast.Path)
	}
	subject, err := a.semBinding(s.at(ir.Generator), alias, subjectExpr)
	if err != nil {
		return nil, s, err
	}
	if p, ok := subject.(ir.Path); ok {
		ir.AddUser(p, ir.Generator)
		optimizer.PromoteWeakPaths(p)
	}
	g.Generator = subject
	sub := s.withSubject(subjectPath)
	if alias != "" {
		sub = sub.withPathvar(alias, subject)
	}
	for _, u := range using {
		e, err := a.semBinding(sub.at(ir.Grouper), u.Alias, u.Expr)
		if err != nil {
			return nil, s, err
		}
		sub = sub.withPathvar(u.Alias, e)
	}
	grouper := sub.at(ir.Grouper)
	m := a.merger(ir.Grouper)
	for _, key := range by {
		e, err := a.semExpr(grouper, key)
		if err != nil {
			return nil, s, err
		}
		g.Grouper = append(g.Grouper, m.mergePaths(e))
	}
	prefixes := make(map[string]struct{})
	for _, e := range g.Grouper {
		extractPrefixes(e, prefixes)
	}
	sub.groupPrefixes = prefixes
	return subject, sub, nil
}
