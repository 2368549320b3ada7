package semantic

import (
	"strconv"

	"github.com/brimdata/edgeql/compiler/ir"
	"github.com/brimdata/edgeql/schema"
	"github.com/shopspring/decimal"
)

var comparisons = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"LIKE": true, "ILIKE": true, "NOT LIKE": true, "NOT ILIKE": true,
	"IN": true, "NOT IN": true, "IS": true, "IS NOT": true,
	"AND": true, "OR": true, "@@": true,
}

// inferType returns the type of the values e produces, or nil when it
// cannot be told.
func inferType(a *analyzer, e ir.Expr) schema.Type {
	switch e := e.(type) {
	case *ir.EntitySet:
		return e.Resolve().Concept
	case *ir.AtomicRefSimple:
		if e.Ptr != nil {
			return e.Ptr.Target
		}
	case *ir.LinkPropRefSimple:
		if e.Ptr != nil {
			return e.Ptr.Target
		}
	case *ir.MetaRef:
		if e.Name == schema.IDPointer {
			return a.stdType("uuid")
		}
		return a.stdType("str")
	case *ir.AtomicRefExpr:
		if e.Ptr != nil && e.Ptr.Target != nil {
			return e.Ptr.Target
		}
		return inferType(a, e.Expr)
	case *ir.LinkPropRefExpr:
		return inferType(a, e.Expr)
	case *ir.MetaRefExpr:
		return inferType(a, e.Expr)
	case *ir.InlineFilter:
		return a.stdType("bool")
	case *ir.InlinePropFilter:
		return a.stdType("bool")
	case *ir.Constant:
		if e.Type != nil {
			return e.Type
		}
		if e.Expr != nil {
			return inferType(a, e.Expr)
		}
	case *ir.BinOp:
		return a.binopType(e.Op, inferType(a, e.Left), inferType(a, e.Right))
	case *ir.UnaryOp:
		if e.Op == "NOT" {
			return a.stdType("bool")
		}
		return inferType(a, e.Expr)
	case *ir.ExistPred, *ir.NoneTest:
		return a.stdType("bool")
	case *ir.TypeCast:
		if e.Type != nil {
			return e.Type.Type
		}
	case *ir.FunctionCall:
		if e.Func != nil && e.Func.Returns != nil {
			return e.Func.Returns
		}
		if len(e.Args) > 0 {
			return inferType(a, e.Args[0])
		}
	case *ir.SubgraphRef:
		for _, sel := range e.Ref.Selector {
			if sel.Name == e.Name || sel.Autoname == e.Name {
				return inferType(a, sel.Expr)
			}
		}
	case *ir.Record:
		return e.Concept
	case *ir.IfElse:
		return inferType(a, e.Then)
	case ir.PathCombination:
		if e.Members().Len() == 1 {
			return inferType(a, e.Members().First())
		}
	case *ir.EntityLink:
		if e.Target != nil {
			return e.Target.Resolve().Concept
		}
		if e.Ptr != nil {
			return e.Ptr.FarEndpoint(e.Direction)
		}
	}
	return nil
}

// binopType applies the result type rules of binary operators: boolean
// for comparisons, the wider numeric type for arithmetic, and the left
// type otherwise.
func (a *analyzer) binopType(op string, left, right schema.Type) schema.Type {
	if comparisons[op] {
		return a.stdType("bool")
	}
	if left == right {
		if op == "/" && a.isInt(left) {
			return a.stdType("float64")
		}
		return left
	}
	if op == "++" || left == nil || right == nil {
		return left
	}
	for _, name := range []string{"decimal", "float64"} {
		if t := a.stdType(name); t != nil && (left == t || right == t) {
			return t
		}
	}
	if a.isInt(left) && a.isInt(right) {
		if op == "/" {
			return a.stdType("float64")
		}
		if t := a.stdType("bigint"); left == t || right == t {
			return t
		}
		return a.stdType("int64")
	}
	return left
}

func (a *analyzer) isInt(t schema.Type) bool {
	anyint := a.stdType("anyint")
	return t != nil && anyint != nil && t.IsSubclass(anyint)
}

// foldConstants combines two constants.  Literal values are computed
// where the operator and types allow it; otherwise the result keeps the
// operation as its expression.
func (a *analyzer) foldConstants(l, r *ir.Constant, op string) *ir.Constant {
	out := &ir.Constant{
		Expr: &ir.BinOp{Left: l, Op: op, Right: r},
		Type: a.binopType(op, inferType(a, l), inferType(a, r)),
	}
	if l.Param != "" || r.Param != "" || l.Expr != nil || r.Expr != nil {
		return out
	}
	if v, ok := foldValues(l.Value, r.Value, op); ok {
		out.Value = v
		out.Expr = nil
	}
	return out
}

func foldValues(l, r any, op string) (any, bool) {
	switch l := l.(type) {
	case int64:
		switch r := r.(type) {
		case int64:
			return foldInts(l, r, op)
		case float64:
			return foldFloats(float64(l), r, op)
		case decimal.Decimal:
			return foldDecimals(decimal.NewFromInt(l), r, op)
		}
	case float64:
		switch r := r.(type) {
		case int64:
			return foldFloats(l, float64(r), op)
		case float64:
			return foldFloats(l, r, op)
		}
	case decimal.Decimal:
		switch r := r.(type) {
		case int64:
			return foldDecimals(l, decimal.NewFromInt(r), op)
		case decimal.Decimal:
			return foldDecimals(l, r, op)
		}
	case string:
		switch r := r.(type) {
		case string:
			switch op {
			case "++":
				return l + r, true
			case "=":
				return l == r, true
			case "!=":
				return l != r, true
			}
		}
	case bool:
		if r, ok := r.(bool); ok {
			switch op {
			case "AND":
				return l && r, true
			case "OR":
				return l || r, true
			case "=":
				return l == r, true
			case "!=":
				return l != r, true
			}
		}
	}
	return nil, false
}

func foldInts(l, r int64, op string) (any, bool) {
	switch op {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		return l * r, true
	case "/":
		if r == 0 {
			return nil, false
		}
		return float64(l) / float64(r), true
	case "//":
		if r == 0 {
			return nil, false
		}
		return l / r, true
	case "%":
		if r == 0 {
			return nil, false
		}
		return l % r, true
	}
	return compare(cmpInt(l, r), op)
}

func foldFloats(l, r float64, op string) (any, bool) {
	switch op {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		return l * r, true
	case "/":
		if r == 0 {
			return nil, false
		}
		return l / r, true
	}
	c := 0
	if l < r {
		c = -1
	} else if l > r {
		c = 1
	}
	return compare(c, op)
}

func foldDecimals(l, r decimal.Decimal, op string) (any, bool) {
	switch op {
	case "+":
		return l.Add(r), true
	case "-":
		return l.Sub(r), true
	case "*":
		return l.Mul(r), true
	case "/":
		if r.IsZero() {
			return nil, false
		}
		return l.Div(r), true
	}
	return compare(l.Cmp(r), op)
}

func cmpInt(l, r int64) int {
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	}
	return 0
}

func compare(c int, op string) (any, bool) {
	switch op {
	case "=":
		return c == 0, true
	case "!=":
		return c != 0, true
	case "<":
		return c < 0, true
	case "<=":
		return c <= 0, true
	case ">":
		return c > 0, true
	case ">=":
		return c >= 0, true
	}
	return nil, false
}

func (a *analyzer) foldUnary(c *ir.Constant, unary *ir.UnaryOp) *ir.Constant {
	out := &ir.Constant{Expr: unary, Type: c.Type}
	if unary.Op == "NOT" {
		out.Type = a.stdType("bool")
	}
	if c.Param != "" || c.Expr != nil {
		return out
	}
	switch v := c.Value.(type) {
	case bool:
		if unary.Op == "NOT" {
			out.Value, out.Expr = !v, nil
		}
	case int64:
		switch unary.Op {
		case "-":
			out.Value, out.Expr = -v, nil
		case "+":
			out.Value, out.Expr = v, nil
		}
	case float64:
		if unary.Op == "-" {
			out.Value, out.Expr = -v, nil
		}
	case decimal.Decimal:
		if unary.Op == "-" {
			out.Value, out.Expr = v.Neg(), nil
		}
	}
	return out
}

// resultTypes describes the columns of g.  A column is a "constant", a
// "path" when it is a direct reference to stored data, or an
// "expression".
func (a *analyzer) resultTypes(g *ir.GraphExpr) []ir.ResultType {
	selector := g.Selector
	if g.OpType != "" && len(g.OpSelector) > 0 {
		selector = g.OpSelector
	}
	var out []ir.ResultType
	for k, sel := range selector {
		name := sel.Name
		if name == "" {
			name = sel.Autoname
		}
		if name == "" {
			name = strconv.Itoa(k)
		}
		out = append(out, ir.ResultType{Name: name, Type: inferType(a, sel.Expr), Kind: exprKind(sel.Expr)})
	}
	return out
}

func exprKind(e ir.Expr) string {
	switch e := e.(type) {
	case *ir.Constant:
		return "constant"
	case ir.PathCombination:
		for _, p := range e.Members().Items() {
			if !isDataPath(p) {
				return "expression"
			}
		}
		return "path"
	}
	if isDataPath(e) {
		return "path"
	}
	return "expression"
}

func isDataPath(e ir.Expr) bool {
	switch e := e.(type) {
	case *ir.EntitySet, *ir.AtomicRefSimple, *ir.LinkPropRefSimple, *ir.Record:
		return true
	case *ir.AtomicRefExpr:
		return e.Ptr != nil
	}
	return false
}
