// Package optimizer holds the passes run over a query graph once the
// semantic pass has built it: hoisting of aggregates in filters,
// correlation of subqueries with the enclosing query, and the final
// placement of links as required or optional joins.
package optimizer

import (
	"context"

	"github.com/brimdata/edgeql/compiler/ir"
	"go.uber.org/zap"
)

type Optimizer struct {
	ctx    context.Context
	entry  *ir.GraphExpr
	logger *zap.Logger
}

func New(ctx context.Context, entry *ir.GraphExpr, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		ctx:    ctx,
		entry:  entry,
		logger: logger,
	}
}

func (o *Optimizer) Entry() *ir.GraphExpr {
	return o.entry
}

// Optimize runs every pass over the entry graph and the graphs nested in
// it.  Reordering aggregates fails when an expression mixes aggregates
// and plain values in a way no reordering can fix.
func (o *Optimizer) Optimize() error {
	ir.Canonicalize(o.entry)
	graphs := Graphs(o.entry)
	for _, g := range graphs {
		if err := o.ctx.Err(); err != nil {
			return err
		}
		gen, err := ReorderAggregates(g.Generator)
		if err != nil {
			return err
		}
		g.Generator = gen
	}
	LinkSubqueries(o.entry)
	ApplyFixups(o.entry)
	o.logger.Debug("optimized graph", zap.Stringer("id", o.entry.ID), zap.Int("graphs", len(graphs)))
	return nil
}

// Graphs returns g and every graph nested in it, outermost first.
func Graphs(g *ir.GraphExpr) []*ir.GraphExpr {
	var out []*ir.GraphExpr
	seen := make(map[*ir.GraphExpr]bool)
	queue := []*ir.GraphExpr{g}
	for len(queue) > 0 {
		g := queue[0]
		queue = queue[1:]
		if g == nil || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
		for _, cge := range g.CGEs {
			queue = append(queue, cge.Expr)
		}
		queue = append(queue, g.SetOpArgs...)
		queue = append(queue, g.Subgraphs.Items()...)
		ir.Inspect(g, func(n ir.Node) bool {
			if ref, ok := n.(*ir.SubgraphRef); ok {
				queue = append(queue, ref.Ref)
			}
			return true
		})
	}
	return out
}

// eachSet calls fn once for every entity set reachable from root,
// including sets reached only through references and rlinks.
func eachSet(root ir.Node, fn func(*ir.EntitySet)) {
	w := &setWalker{fn: fn, sets: make(map[*ir.EntitySet]bool), graphs: make(map[*ir.GraphExpr]bool)}
	w.walk(root)
}

type setWalker struct {
	fn     func(*ir.EntitySet)
	sets   map[*ir.EntitySet]bool
	graphs map[*ir.GraphExpr]bool
}

func (w *setWalker) walk(n ir.Node) {
	ir.Inspect(n, func(n ir.Node) bool {
		switch n := n.(type) {
		case *ir.EntitySet:
			n = n.Resolve()
			if w.sets[n] {
				return false
			}
			w.sets[n] = true
			w.fn(n)
			if n.Rlink != nil && n.Rlink.Resolve().Source != nil {
				w.walk(n.Rlink.Resolve().Source)
			}
		case *ir.EntityLink:
			if src := n.Resolve().Source; src != nil {
				w.walk(src)
			}
		case *ir.AtomicRefSimple:
			w.walk(n.Ref)
		case *ir.MetaRef:
			w.walk(n.Ref)
		case *ir.InlineFilter:
			w.walk(n.Ref)
		case *ir.LinkPropRefSimple:
			w.walk(n.Ref)
		case *ir.InlinePropFilter:
			w.walk(n.Ref)
		case *ir.SubgraphRef:
			w.walk(n.Ref)
			return false
		case *ir.GraphExpr:
			if w.graphs[n] {
				return false
			}
			w.graphs[n] = true
			for _, sub := range n.Subgraphs.Items() {
				w.walk(sub)
			}
		}
		return true
	})
}
