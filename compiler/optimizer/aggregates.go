package optimizer

import (
	"github.com/brimdata/edgeql/compiler/ir"
	zqe "github.com/brimdata/edgeql/errors"
)

var errAggregateMix = zqe.E(zqe.Tree, "invalid expression mix of aggregates and non-aggregates")

// ReorderAggregates marks the expressions under e that are computed from
// aggregates and moves aggregate operands of AND to the left, so that a
// filter splits into a part evaluated per row and a part evaluated per
// group.
func ReorderAggregates(e ir.Expr) (ir.Expr, error) {
	if e == nil || ir.Aggregated(e) {
		return e, nil
	}
	switch e := e.(type) {
	case *ir.FunctionCall:
		sawAggregate := false
		for k, arg := range e.Args {
			arg, err := ReorderAggregates(arg)
			if err != nil {
				return nil, err
			}
			e.Args[k] = arg
			switch {
			case ir.Aggregated(arg):
				sawAggregate = true
			case sawAggregate && !isConstant(arg):
				return nil, errAggregateMix
			}
		}
		if sawAggregate {
			e.Aggregates = true
		}
	case *ir.BinOp:
		left, err := ReorderAggregates(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := ReorderAggregates(e.Right)
		if err != nil {
			return nil, err
		}
		e.Left, e.Right = left, right
		lagg, ragg := ir.Aggregated(left), ir.Aggregated(right)
		switch {
		case lagg && (ragg || isConstant(right)), ragg && isConstant(left):
			e.Aggregates = true
		case ragg && e.Op == "AND":
			e.Left, e.Right = right, left
		case lagg && e.Op == "AND":
		case lagg || ragg:
			return nil, errAggregateMix
		}
	case *ir.UnaryOp:
		inner, err := ReorderAggregates(e.Expr)
		if err != nil {
			return nil, err
		}
		e.Expr = inner
	case *ir.ExistPred:
		inner, err := ReorderAggregates(e.Expr)
		if err != nil {
			return nil, err
		}
		e.Expr = inner
	case *ir.NoneTest:
		inner, err := ReorderAggregates(e.Expr)
		if err != nil {
			return nil, err
		}
		e.Expr = inner
	case *ir.TypeCast:
		inner, err := ReorderAggregates(e.Expr)
		if err != nil {
			return nil, err
		}
		e.Expr = inner
	case ir.PathCombination:
		for _, p := range e.Members().Items() {
			if _, err := ReorderAggregates(p); err != nil {
				return nil, err
			}
		}
	case *ir.Sequence:
		if err := reorderList(e.Elements); err != nil {
			return nil, err
		}
	case *ir.Record:
		if err := reorderList(e.Elements); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func reorderList(exprs []ir.Expr) error {
	for k, x := range exprs {
		x, err := ReorderAggregates(x)
		if err != nil {
			return err
		}
		exprs[k] = x
	}
	return nil
}

func isConstant(e ir.Expr) bool {
	_, ok := e.(*ir.Constant)
	return ok
}
