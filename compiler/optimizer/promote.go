package optimizer

import "github.com/brimdata/edgeql/compiler/ir"

// PromoteWeakPaths turns the optional links of the sets under e into
// required ones where a set has exactly one optional link and nothing
// marked it as optional on purpose.  It is applied to the paths a query
// draws its rows from: a path there that reaches through one link only
// yields rows when the link exists.
func PromoteWeakPaths(e ir.Node) {
	p := ir.ExtractPaths(e, ir.ExtractOpts{Reverse: true})
	if p == nil {
		return
	}
	ps := &promoter{seen: make(map[ir.Path]bool)}
	if c, ok := p.(ir.PathCombination); ok {
		for _, m := range c.Members().Items() {
			ps.promote(m)
		}
		return
	}
	ps.promote(p)
}

type promoter struct {
	seen map[ir.Path]bool
}

func (ps *promoter) promote(p ir.Path) {
	switch p := p.(type) {
	case *ir.EntitySet:
		if p = p.Resolve(); ps.seen[p] {
			return
		}
		ps.seen[p] = true
		if p.Conjunction == nil {
			p.Conjunction = &ir.Conjunction{}
		}
		if p.Disjunction == nil {
			p.Disjunction = &ir.Disjunction{}
		}
		if p.Disjunction.Paths.Len() == 1 && p.Conjunction.Paths.Len() == 0 && !p.Disjunction.Fixed {
			p.Conjunction = &ir.Conjunction{Paths: p.Disjunction.Paths.Clone()}
			p.Disjunction = &ir.Disjunction{}
		}
		for _, sub := range p.Conjunction.Paths.Items() {
			ps.promote(sub)
		}
		for _, sub := range p.Disjunction.Paths.Items() {
			ps.promote(sub)
		}
	case *ir.EntityLink:
		if p = p.Resolve(); ps.seen[p] {
			return
		}
		ps.seen[p] = true
		if p.Target != nil {
			ps.promote(p.Target)
		}
	case ir.PathCombination:
		for _, sub := range p.Members().Items() {
			ps.promote(sub)
		}
	}
}
