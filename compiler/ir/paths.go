package ir

// ExtractOpts controls ExtractPaths.
type ExtractOpts struct {
	// Reverse walks each entity set back through its rlinks to the
	// root of its path.
	Reverse bool
	// KeepRefs returns attribute references as they are instead of
	// the entity set or link they refer to.
	KeepRefs bool
	// SubgraphRefs returns subquery references as they are instead of
	// the paths of the subquery.
	SubgraphRefs bool
	// RecurseSubqueries is the number of subquery levels to descend.
	RecurseSubqueries int
	// AllFragments includes every set on the reversed chain and the
	// arguments of set operations.
	AllFragments bool
}

// ExtractPaths returns the paths an expression depends on, combined the way
// the expression combines them: OR and the elements of sequences and
// records give a Disjunction, other operators and function arguments a
// Conjunction.  It returns nil when e references no path.
func ExtractPaths(e Node, opts ExtractOpts) Path {
	switch e := e.(type) {
	case nil:
		return nil
	case *GraphExpr:
		if e == nil || opts.RecurseSubqueries <= 0 {
			return nil
		}
		sub := opts
		sub.RecurseSubqueries--
		var paths PathSet
		add := func(n Node) {
			if p := ExtractPaths(n, sub); p != nil {
				paths.Add(p)
			}
		}
		if e.Generator != nil {
			add(e.Generator)
		}
		for _, s := range e.Selector {
			add(s)
		}
		for _, g := range e.Grouper {
			add(g)
		}
		for _, s := range e.Sorter {
			add(s)
		}
		if opts.AllFragments {
			for _, a := range e.SetOpArgs {
				add(a)
			}
		}
		return combine(paths, false)
	case *SubgraphRef:
		if opts.SubgraphRefs && opts.RecurseSubqueries <= 0 {
			return e
		}
		return ExtractPaths(e.Ref, opts)
	case *SelectorExpr:
		return ExtractPaths(e.Expr, opts)
	case *SortExpr:
		return ExtractPaths(e.Expr, opts)
	case *EntitySet:
		return extractSet(e.Resolve(), opts)
	case *AtomicRefSimple:
		if opts.KeepRefs && !opts.Reverse {
			return e
		}
		return extractSet(e.Ref.Resolve(), opts)
	case *AtomicRefExpr:
		if opts.KeepRefs && !opts.Reverse {
			return e
		}
		return extractSet(e.Ref(), opts)
	case *InlineFilter:
		if opts.KeepRefs && !opts.Reverse {
			return e
		}
		return extractSet(e.Ref.Resolve(), opts)
	case *MetaRef:
		if opts.KeepRefs && !opts.Reverse {
			return e
		}
		return extractSet(e.Ref.Resolve(), opts)
	case *MetaRefExpr:
		if opts.KeepRefs && !opts.Reverse {
			return e
		}
		return extractSet(e.Ref(), opts)
	case *LinkPropRefSimple:
		if opts.KeepRefs && !opts.Reverse {
			return e
		}
		return linkPath(e.Ref)
	case *LinkPropRefExpr:
		if opts.KeepRefs && !opts.Reverse {
			return e
		}
		return linkPath(e.Ref())
	case *InlinePropFilter:
		if opts.KeepRefs && !opts.Reverse {
			return e
		}
		return linkPath(e.Ref)
	case *EntityLink:
		return linkPath(e)
	case *Conjunction:
		return extractMembers(e.Paths, false, opts)
	case *Disjunction:
		return extractMembers(e.Paths, true, opts)
	case *BinOp:
		return extractAll(e.Op == "OR", opts, e.Left, e.Right)
	case *UnaryOp:
		return ExtractPaths(e.Expr, opts)
	case *ExistPred:
		return ExtractPaths(e.Expr, opts)
	case *TypeCast:
		return ExtractPaths(e.Expr, opts)
	case *NoneTest:
		return ExtractPaths(e.Expr, opts)
	case *FunctionCall:
		var nodes []Node
		for _, a := range e.Args {
			nodes = append(nodes, a)
		}
		for _, s := range e.AggSort {
			nodes = append(nodes, s)
		}
		for _, p := range e.Partition {
			nodes = append(nodes, p)
		}
		if e.AggFilter != nil {
			nodes = append(nodes, e.AggFilter)
		}
		return extractAll(false, opts, nodes...)
	case *Sequence:
		return extractAll(true, opts, exprNodes(e.Elements)...)
	case *Record:
		return extractAll(true, opts, exprNodes(e.Elements)...)
	case *IfElse:
		return extractAll(true, opts, e.Then, e.Condition, e.Else)
	case *Constant, *TypeRef:
		return nil
	}
	return nil
}

func linkPath(l *EntityLink) Path {
	if l = l.Resolve(); l != nil {
		return l
	}
	return nil
}

func exprNodes(exprs []Expr) []Node {
	out := make([]Node, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, e)
	}
	return out
}

func extractSet(e *EntitySet, opts ExtractOpts) Path {
	if e == nil {
		return nil
	}
	if !opts.Reverse {
		return e
	}
	chain := []Path{e}
	for e.Rlink != nil && e.Rlink.Resolve().Source != nil {
		e = e.Rlink.Resolve().Source.Resolve()
		chain = append(chain, e)
	}
	if len(chain) == 1 || !opts.AllFragments {
		return e
	}
	return NewDisjunction(chain...)
}

func extractMembers(members PathSet, disjunction bool, opts ExtractOpts) Path {
	var paths PathSet
	for _, p := range members.Items() {
		if x := ExtractPaths(p, opts); x != nil {
			paths.Add(x)
		}
	}
	return combine(paths, !disjunction)
}

func extractAll(disjunction bool, opts ExtractOpts, nodes ...Node) Path {
	var paths PathSet
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if p := ExtractPaths(n, opts); p != nil {
			paths.Add(p)
		}
	}
	return combine(paths, !disjunction)
}

func combine(paths PathSet, conjunction bool) Path {
	switch paths.Len() {
	case 0:
		return nil
	case 1:
		return paths.First()
	}
	if conjunction {
		return &Conjunction{Paths: paths}
	}
	return Flatten(&Disjunction{Paths: paths}, false)
}

// Flatten hoists the members of nested combinations of the same kind as c
// into c, which is modified and returned.  With recursive set, nested
// combinations are flattened first.
func Flatten(c PathCombination, recursive bool) PathCombination {
	var out PathSet
	for _, p := range c.Members().Items() {
		nested, ok := p.(PathCombination)
		if !ok || !sameKind(c, nested) {
			out.Add(p)
			if ok && recursive {
				Flatten(nested, true)
			}
			continue
		}
		if recursive {
			Flatten(nested, true)
		}
		out.Update(*nested.Members())
	}
	*c.Members() = out
	return c
}

func sameKind(a, b PathCombination) bool {
	switch a.(type) {
	case *Conjunction:
		_, ok := b.(*Conjunction)
		return ok
	case *Disjunction:
		_, ok := b.(*Disjunction)
		return ok
	}
	return false
}

// CopyPath returns a copy of the chain of sets and links leading to p.  The
// copy shares no sets or links with the original; each copied ancestor
// holds only the link leading back down the copy.  With connectToOrigin
// set, each copied set records the set it was copied from in Origin.
func CopyPath(p Path, connectToOrigin bool) Path {
	var result Path
	var current *EntitySet
	var rlink *EntityLink
	switch p := p.(type) {
	case *EntitySet:
		p = p.Resolve()
		set := copySet(p, connectToOrigin)
		result, current, rlink = set, set, p.Rlink.Resolve()
	case *AtomicRefSimple:
		ref := *p
		ref.Users = p.Users.Clone()
		result, rlink = &ref, p.Rlink.Resolve()
		if p.Ref != nil {
			set := CopyPath(p.Ref, connectToOrigin).(*EntitySet)
			ref.Ref = set
			ref.Rlink = nil
			return &ref
		}
	case *LinkPropRefSimple:
		ref := *p
		return &ref
	case *EntityLink:
		rlink = p.Resolve()
	default:
		return p
	}
	for rlink != nil {
		link := &EntityLink{
			Ptr:        rlink.Ptr,
			Direction:  rlink.Direction,
			Propfilter: rlink.Propfilter,
			Users:      rlink.Users.Clone(),
			Anchor:     rlink.Anchor,
			Pathvar:    rlink.Pathvar,
		}
		if result == nil {
			result = link
		}
		parentPath := rlink.Source.Resolve()
		if parentPath == nil {
			break
		}
		parent := copySet(parentPath, connectToOrigin)
		parent.Disjunction = &Disjunction{Paths: NewSet[Path](link), Fixed: parentPath.Disjunction.Fixed}
		link.Source = parent
		if current != nil {
			current.Rlink = link
			link.Target = current
		}
		rlink = parentPath.Rlink.Resolve()
		current = parent
	}
	return result
}

func copySet(p *EntitySet, connectToOrigin bool) *EntitySet {
	set := &EntitySet{
		ID:          p.ID,
		Concept:     p.Concept,
		Users:       p.Users.Clone(),
		Joins:       p.Joins.Clone(),
		Backrefs:    p.Backrefs.Clone(),
		Pathvar:     p.Pathvar,
		Anchor:      p.Anchor,
		Conjunction: &Conjunction{},
		Disjunction: &Disjunction{},
	}
	if connectToOrigin {
		set.Origin = p
		if p.Origin != nil {
			set.Origin = p.Origin
		}
	}
	return set
}

// RootSet returns the set at the start of the path leading to e.
func RootSet(e *EntitySet) *EntitySet {
	e = e.Resolve()
	for e.Rlink != nil && e.Rlink.Resolve().Source != nil {
		e = e.Rlink.Resolve().Source.Resolve()
	}
	return e
}

// AddUser tags every set, link and reference under e with loc.
func AddUser(e Node, loc Location) {
	Inspect(e, func(n Node) bool {
		switch n := n.(type) {
		case *EntitySet:
			n.Resolve().Users.Add(loc)
		case *EntityLink:
			n.Resolve().Users.Add(loc)
		case *AtomicRefSimple:
			n.Users.Add(loc)
		case *SubgraphRef:
			return false
		}
		return true
	})
}

// IsWeakOp reports whether op combines the paths of its operands as
// optional alternatives inside a filter.
func IsWeakOp(op string) bool {
	switch op {
	case "OR", "IN", "NOT IN":
		return true
	}
	return false
}
