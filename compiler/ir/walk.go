package ir

// Children returns the nodes directly below n.  Only downward edges are
// followed: the source of a link, the rlink of a set and the set a
// reference points at are not children, so the tree formed by Children
// is acyclic apart from sharing.
func Children(n Node) []Node {
	var out []Node
	add := func(nodes ...Node) {
		for _, c := range nodes {
			if c != nil && !isNilNode(c) {
				out = append(out, c)
			}
		}
	}
	switch n := n.(type) {
	case *EntitySet:
		if n.Conjunction != nil {
			add(n.Conjunction)
		}
		if n.Disjunction != nil {
			add(n.Disjunction)
		}
		add(n.Filter)
	case *EntityLink:
		if n.Target != nil {
			add(n.Target)
		}
		add(n.Propfilter)
	case *Conjunction:
		for _, p := range n.Paths.Items() {
			add(p)
		}
	case *Disjunction:
		for _, p := range n.Paths.Items() {
			add(p)
		}
	case *AtomicRefExpr:
		add(n.Expr)
	case *InlineFilter:
		add(n.Expr)
	case *LinkPropRefExpr:
		add(n.Expr)
	case *InlinePropFilter:
		add(n.Expr)
	case *MetaRefExpr:
		add(n.Expr)
	case *Constant:
		add(n.Expr)
	case *BinOp:
		add(n.Left, n.Right)
	case *UnaryOp:
		add(n.Expr)
	case *NoneTest:
		add(n.Expr)
	case *ExistPred:
		add(n.Expr)
	case *TypeCast:
		add(n.Expr)
	case *Kwarg:
		add(n.Expr)
	case *FunctionCall:
		for _, a := range n.Args {
			add(a)
		}
		for _, k := range n.Kwargs {
			add(k)
		}
		for _, s := range n.AggSort {
			add(s)
		}
		add(n.AggFilter)
		for _, p := range n.Partition {
			add(p)
		}
	case *Sequence:
		for _, e := range n.Elements {
			add(e)
		}
	case *Record:
		for _, e := range n.Elements {
			add(e)
		}
	case *IfElse:
		add(n.Condition, n.Then, n.Else)
	case *SelectorExpr:
		add(n.Expr)
	case *SortExpr:
		add(n.Expr)
	case *UpdateExpr:
		add(n.Expr, n.Value)
	case *CommonGraphExpr:
		if n.Expr != nil {
			add(n.Expr)
		}
	case *PtrPathSpec:
		add(n.Compexpr, n.Recurse, n.Generator, n.Offset, n.Limit)
		for _, s := range n.Sorter {
			add(s)
		}
		for _, s := range n.PathSpec {
			add(s)
		}
	case *GraphExpr:
		for _, c := range n.CGEs {
			add(c)
		}
		add(n.Generator)
		for _, s := range n.Selector {
			add(s)
		}
		for _, s := range n.Sorter {
			add(s)
		}
		for _, g := range n.Grouper {
			add(g)
		}
		add(n.Offset, n.Limit, n.OpTarget)
		for _, s := range n.OpSelector {
			add(s)
		}
		for _, v := range n.OpValues {
			add(v)
		}
		add(n.OnConflict, n.ConflictElse, n.AggregateResult, n.RecurseDepth)
		for _, a := range n.SetOpArgs {
			add(a)
		}
	}
	return out
}

// isNilNode catches typed nil pointers stored in an interface.
func isNilNode(n Node) bool {
	switch n := n.(type) {
	case *EntitySet:
		return n == nil
	case *EntityLink:
		return n == nil
	case *GraphExpr:
		return n == nil
	case *Conjunction:
		return n == nil
	case *Disjunction:
		return n == nil
	case *Constant:
		return n == nil
	case *TypeRef:
		return n == nil
	}
	return false
}

// Inspect calls f for n and, when f returns true, for each node below n in
// depth-first order.  A node reachable along several edges is visited once.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || isNilNode(n) {
		return
	}
	seen := make(map[Node]struct{})
	var visit func(Node)
	visit = func(n Node) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		if !f(n) {
			return
		}
		for _, c := range Children(n) {
			visit(c)
		}
	}
	visit(n)
}

// Find returns the nodes below and including n for which pred is true.
// The search does not descend into subqueries referenced by SubgraphRef.
func Find(n Node, pred func(Node) bool) []Node {
	var out []Node
	Inspect(n, func(n Node) bool {
		if pred(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}
