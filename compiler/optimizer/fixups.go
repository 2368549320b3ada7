package optimizer

import "github.com/brimdata/edgeql/compiler/ir"

// ApplyFixups moves required links that no generator uses into the
// optional links of their set.  Only the generator decides which rows a
// query produces, so a link the selector alone asks for must not drop
// rows.
func ApplyFixups(g *ir.GraphExpr) {
	eachSet(g, func(set *ir.EntitySet) {
		if set.Conjunction == nil || set.Conjunction.Paths.Len() == 0 {
			return
		}
		if set.Disjunction == nil {
			set.Disjunction = &ir.Disjunction{}
		}
		for _, p := range set.Conjunction.Paths.Items() {
			if !generatorUser(p) {
				set.Conjunction.Paths.Remove(p)
				set.Disjunction.Paths.Add(p)
			}
		}
	})
}

func generatorUser(p ir.Path) bool {
	switch p := p.(type) {
	case *ir.EntitySet:
		return p.Resolve().Users.Has(ir.Generator)
	case *ir.EntityLink:
		p = p.Resolve()
		if p.Users.Has(ir.Generator) {
			return true
		}
		return p.Target != nil && p.Target.Resolve().Users.Has(ir.Generator)
	}
	return true
}
