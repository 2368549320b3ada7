package ir

// Canonicalize replaces every reference to a merged set or link under g
// with the node it was merged into and removes the duplicates this creates
// in member sets.  Subqueries are canonicalized too.
func Canonicalize(g *GraphExpr) {
	c := canonicalizer{seen: make(map[Node]struct{})}
	c.node(g)
}

type canonicalizer struct {
	seen map[Node]struct{}
}

func (c *canonicalizer) expr(e Expr) Expr {
	switch n := e.(type) {
	case nil:
		return nil
	case *EntitySet:
		if n == nil {
			return nil
		}
		r := n.Resolve()
		c.node(r)
		return r
	case *EntityLink:
		if n == nil {
			return nil
		}
		r := n.Resolve()
		c.node(r)
		return r
	}
	c.node(e)
	return e
}

func (c *canonicalizer) path(p Path) Path {
	if p == nil {
		return nil
	}
	return c.expr(p).(Path)
}

func (c *canonicalizer) exprs(list []Expr) {
	for k, e := range list {
		list[k] = c.expr(e)
	}
}

func (c *canonicalizer) paths(s *PathSet) {
	var out PathSet
	for _, p := range s.Items() {
		out.Add(c.path(p))
	}
	*s = out
}

func (c *canonicalizer) set(e *EntitySet) *EntitySet {
	if e == nil {
		return nil
	}
	e = e.Resolve()
	c.node(e)
	return e
}

func (c *canonicalizer) link(l *EntityLink) *EntityLink {
	if l == nil {
		return nil
	}
	l = l.Resolve()
	c.node(l)
	return l
}

func (c *canonicalizer) sets(s *Set[*EntitySet], self *EntitySet) {
	var out Set[*EntitySet]
	for _, e := range s.Items() {
		if e = c.set(e); e != self {
			out.Add(e)
		}
	}
	*s = out
}

func (c *canonicalizer) sorts(list []*SortExpr) {
	for _, s := range list {
		c.node(s)
	}
}

func (c *canonicalizer) node(n Node) {
	if n == nil || isNilNode(n) {
		return
	}
	if _, ok := c.seen[n]; ok {
		return
	}
	c.seen[n] = struct{}{}
	switch n := n.(type) {
	case *EntitySet:
		if n.Conjunction == nil {
			n.Conjunction = &Conjunction{}
		}
		if n.Disjunction == nil {
			n.Disjunction = &Disjunction{}
		}
		c.paths(&n.Conjunction.Paths)
		c.paths(&n.Disjunction.Paths)
		n.Rlink = c.link(n.Rlink)
		n.Filter = c.expr(n.Filter)
		for _, a := range n.Atomrefs.Items() {
			c.node(a)
		}
		for _, m := range n.Metarefs.Items() {
			c.node(m)
		}
		c.sets(&n.Joins, n)
		c.sets(&n.Backrefs, n)
		n.Reference = c.set(n.Reference)
		if n.Reference == n {
			n.Reference = nil
		}
		n.Origin = c.set(n.Origin)
	case *EntityLink:
		n.Source = c.set(n.Source)
		n.Target = c.set(n.Target)
		if n.AtomRef != nil {
			c.node(n.AtomRef)
		}
		for _, p := range n.Proprefs.Items() {
			c.node(p)
		}
		n.Propfilter = c.expr(n.Propfilter)
	case *Conjunction:
		c.paths(&n.Paths)
	case *Disjunction:
		c.paths(&n.Paths)
	case *AtomicRefSimple:
		n.Ref = c.set(n.Ref)
		n.Rlink = c.link(n.Rlink)
	case *AtomicRefExpr:
		n.Expr = c.expr(n.Expr)
	case *InlineFilter:
		n.Ref = c.set(n.Ref)
		n.Expr = c.expr(n.Expr)
	case *LinkPropRefSimple:
		n.Ref = c.link(n.Ref)
	case *LinkPropRefExpr:
		n.Expr = c.expr(n.Expr)
	case *InlinePropFilter:
		n.Ref = c.link(n.Ref)
		n.Expr = c.expr(n.Expr)
	case *MetaRef:
		n.Ref = c.set(n.Ref)
	case *MetaRefExpr:
		n.Expr = c.expr(n.Expr)
	case *Constant:
		n.Expr = c.expr(n.Expr)
	case *BinOp:
		n.Left = c.expr(n.Left)
		n.Right = c.expr(n.Right)
	case *UnaryOp:
		n.Expr = c.expr(n.Expr)
	case *NoneTest:
		n.Expr = c.expr(n.Expr)
	case *ExistPred:
		n.Expr = c.expr(n.Expr)
	case *TypeCast:
		n.Expr = c.expr(n.Expr)
	case *Kwarg:
		n.Expr = c.expr(n.Expr)
	case *FunctionCall:
		c.exprs(n.Args)
		for _, k := range n.Kwargs {
			c.node(k)
		}
		c.sorts(n.AggSort)
		n.AggFilter = c.expr(n.AggFilter)
		c.exprs(n.Partition)
	case *Sequence:
		c.exprs(n.Elements)
	case *Record:
		c.exprs(n.Elements)
		n.Rlink = c.link(n.Rlink)
	case *IfElse:
		n.Condition = c.expr(n.Condition)
		n.Then = c.expr(n.Then)
		n.Else = c.expr(n.Else)
	case *SubgraphRef:
		c.node(n.Ref)
		n.Rlink = c.link(n.Rlink)
	case *SelectorExpr:
		n.Expr = c.expr(n.Expr)
	case *SortExpr:
		n.Expr = c.expr(n.Expr)
	case *UpdateExpr:
		n.Expr = c.expr(n.Expr)
		n.Value = c.expr(n.Value)
	case *CommonGraphExpr:
		c.node(n.Expr)
	case *GraphExpr:
		for _, cge := range n.CGEs {
			c.node(cge)
		}
		n.Generator = c.expr(n.Generator)
		for _, s := range n.Selector {
			c.node(s)
		}
		c.sorts(n.Sorter)
		c.exprs(n.Grouper)
		n.Offset = c.expr(n.Offset)
		n.Limit = c.expr(n.Limit)
		n.OpTarget = c.path(n.OpTarget)
		for _, s := range n.OpSelector {
			c.node(s)
		}
		for _, v := range n.OpValues {
			c.node(v)
		}
		n.OnConflict = c.expr(n.OnConflict)
		n.ConflictElse = c.expr(n.ConflictElse)
		n.AggregateResult = c.expr(n.AggregateResult)
		n.RecurseLink = c.link(n.RecurseLink)
		n.RecurseDepth = c.expr(n.RecurseDepth)
		for _, a := range n.SetOpArgs {
			c.node(a)
		}
		for _, s := range n.Subgraphs.Items() {
			c.node(s)
		}
	}
}
