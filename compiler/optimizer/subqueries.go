package optimizer

import "github.com/brimdata/edgeql/compiler/ir"

// LinkSubqueries correlates subqueries with the query enclosing them.  A
// set in a subquery reached along the same path as a set of the
// enclosing query gets that set as its Reference.
func LinkSubqueries(g *ir.GraphExpr) {
	for _, g := range Graphs(g) {
		linkSubqueries(g)
	}
}

func linkSubqueries(g *ir.GraphExpr) {
	outer := make(map[string][]*ir.EntitySet)
	own := make(map[*ir.EntitySet]bool)
	for _, set := range pathSets(ir.ExtractPaths(g, ir.ExtractOpts{Reverse: true, AllFragments: true, RecurseSubqueries: 1})) {
		key := set.ID.Key()
		outer[key] = append(outer[key], set)
		own[set] = true
	}
	if len(outer) == 0 {
		return
	}
	for _, set := range pathSets(ir.ExtractPaths(g, ir.ExtractOpts{Reverse: true, AllFragments: true, RecurseSubqueries: 2})) {
		if own[set] || set.Reference != nil {
			continue
		}
		if sets, ok := outer[set.ID.Key()]; ok {
			set.Reference = sets[0]
		}
	}
}

// pathSets returns the entity sets in p, in order.
func pathSets(p ir.Path) []*ir.EntitySet {
	var out []*ir.EntitySet
	seen := make(map[*ir.EntitySet]bool)
	var visit func(ir.Path)
	visit = func(p ir.Path) {
		switch p := p.(type) {
		case *ir.EntitySet:
			if p = p.Resolve(); !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		case *ir.EntityLink:
			if p = p.Resolve(); p.Target != nil {
				visit(p.Target)
			}
			if p.Source != nil {
				visit(p.Source)
			}
		case ir.PathCombination:
			for _, m := range p.Members().Items() {
				visit(m)
			}
		}
	}
	if p != nil {
		visit(p)
	}
	return out
}
