package zfmt

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/brimdata/edgeql/compiler/ast"
)

// AST renders n as EdgeQL source text that parses back to an equivalent
// tree.
func AST(n ast.Node) string {
	c := &canon{formatter: formatter{tab: 2}}
	c.node(n)
	c.flush()
	return c.String()
}

// Statements renders a block of statements separated by semicolons.
func Statements(stmts []ast.Statement) string {
	c := &canon{formatter: formatter{tab: 2}}
	for k, s := range stmts {
		if k > 0 {
			c.write(";")
			c.ret()
		}
		c.stmt(s)
	}
	c.flush()
	return c.String()
}

type canon struct {
	formatter
}

func (c *canon) node(n ast.Node) {
	switch n := n.(type) {
	case ast.Statement:
		c.stmt(n)
	case ast.Expr:
		c.expr(n)
	case *ast.ShapeElement:
		c.shapeElement(n)
	case *ast.SortExpr:
		c.sort(n)
	case ast.Alias:
		c.alias(n)
	case ast.Step:
		c.step(n, 0, false)
	default:
		c.write("/* unknown node %T */", n)
	}
}

func (c *canon) stmt(s ast.Statement) {
	switch s := s.(type) {
	case *ast.SelectQuery:
		if s.Implicit && len(s.Aliases) == 0 {
			c.expr(s.Result)
			return
		}
		c.query(s)
	case ast.Query:
		c.query(s)
	case *ast.CreateModule:
		c.write("CREATE MODULE %s", moduleName(s.Name))
	case *ast.DropModule:
		c.write("DROP MODULE %s", moduleName(s.Name))
	case *ast.CreateObjectType:
		c.write("CREATE ")
		if s.Abstract {
			c.write("ABSTRACT ")
		}
		c.write("TYPE %s", objectRef(s.Name))
		if len(s.Bases) > 0 {
			c.write(" EXTENDING ")
			c.list(len(s.Bases), ", ", func(k int) {
				c.write(objectRef(s.Bases[k]))
			})
		}
		if len(s.Pointers) > 0 {
			c.open(" {")
			for _, p := range s.Pointers {
				c.ret()
				c.createPointer(p)
				c.write(";")
			}
			c.close()
			c.ret()
			c.write("}")
		}
	case *ast.AlterObjectType:
		c.write("ALTER TYPE %s RENAME TO %s", objectRef(s.Name), objectRef(s.NewName))
	case *ast.DropObjectType:
		c.write("DROP TYPE %s", objectRef(s.Name))
	default:
		c.write("/* unknown statement %T */", s)
	}
}

func (c *canon) createPointer(p *ast.CreatePointer) {
	if p.Required {
		c.write("required ")
	}
	if p.Multi {
		c.write("multi ")
	}
	if p.PtrKind != "" {
		c.write("%s ", p.PtrKind)
	}
	c.write("%s -> ", ident(p.Name))
	c.typeName(p.Target)
}

func (c *canon) with(aliases []ast.Alias) {
	if len(aliases) == 0 {
		return
	}
	c.write("WITH ")
	c.list(len(aliases), ", ", func(k int) {
		c.alias(aliases[k])
	})
	c.space()
}

func (c *canon) alias(a ast.Alias) {
	switch a := a.(type) {
	case *ast.ModuleAliasDecl:
		if a.Alias != "" {
			c.write("%s AS ", ident(a.Alias))
		}
		c.write("MODULE %s", moduleName(a.Module))
	case *ast.AliasedExpr:
		c.write("%s := ", ident(a.Alias))
		c.expr(a.Expr)
	}
}

func (c *canon) query(q ast.Query) {
	c.with(*q.WithBlock())
	switch q := q.(type) {
	case *ast.SelectQuery:
		c.write("SELECT ")
		if q.ResultAlias != "" {
			c.write("%s := ", ident(q.ResultAlias))
		}
		c.expr(q.Result)
		c.filter(q.Where)
		c.orderBy(q.OrderBy)
		c.offsetLimit(q.Offset, q.Limit)
	case *ast.InsertQuery:
		c.write("INSERT ")
		c.path(q.Subject)
		if len(q.Shape) > 0 {
			c.space()
			c.shape(q.Shape)
		}
		if uc := q.UnlessConflict; uc != nil {
			c.write(" UNLESS CONFLICT")
			if uc.On != nil {
				c.write(" ON ")
				c.expr(uc.On)
			}
			if uc.Else != nil {
				c.write(" ELSE ")
				c.expr(uc.Else)
			}
		}
	case *ast.UpdateQuery:
		c.write("UPDATE ")
		c.expr(q.Subject)
		c.filter(q.Where)
		c.write(" SET ")
		c.shape(q.Shape)
	case *ast.DeleteQuery:
		c.write("DELETE ")
		c.expr(q.Subject)
		c.filter(q.Where)
		c.orderBy(q.OrderBy)
		c.offsetLimit(q.Offset, q.Limit)
	case *ast.ForQuery:
		c.write("FOR %s IN ", ident(q.IteratorAlias))
		c.operand(q.Iterator)
		c.write(" UNION ")
		c.expr(q.Result)
	case *ast.GroupQuery:
		c.groupHead(q.Subject, q.SubjectAlias, q.Using, q.By)
	case *ast.InternalGroupQuery:
		c.write("FOR ")
		c.groupHead(q.Subject, q.SubjectAlias, q.Using, q.By)
		c.write(" INTO %s", ident(q.GroupAlias))
		if q.GroupingAlias != "" {
			c.write(" GROUPING %s", ident(q.GroupingAlias))
		}
		c.write(" UNION ")
		c.expr(q.Result)
		c.filter(q.Where)
		c.orderBy(q.OrderBy)
	}
}

func (c *canon) groupHead(subject ast.Expr, alias string, using []*ast.AliasedExpr, by []ast.Expr) {
	c.write("GROUP ")
	if alias != "" {
		c.write("%s := ", ident(alias))
	}
	c.expr(subject)
	if len(using) > 0 {
		c.write(" USING ")
		c.list(len(using), ", ", func(k int) {
			c.alias(using[k])
		})
	}
	c.write(" BY ")
	c.exprs(by)
}

func (c *canon) filter(e ast.Expr) {
	if e != nil {
		c.write(" FILTER ")
		c.expr(e)
	}
}

func (c *canon) orderBy(sorts []*ast.SortExpr) {
	if len(sorts) == 0 {
		return
	}
	c.write(" ORDER BY ")
	c.list(len(sorts), " THEN ", func(k int) {
		c.sort(sorts[k])
	})
}

func (c *canon) sort(s *ast.SortExpr) {
	c.expr(s.Path)
	if s.Direction != "" {
		c.write(" %s", s.Direction)
	}
	switch s.Nones {
	case ast.NonesFirst:
		c.write(" EMPTY FIRST")
	case ast.NonesLast:
		c.write(" EMPTY LAST")
	}
}

func (c *canon) offsetLimit(offset, limit ast.Expr) {
	if offset != nil {
		c.write(" OFFSET ")
		c.expr(offset)
	}
	if limit != nil {
		c.write(" LIMIT ")
		c.expr(limit)
	}
}

func (c *canon) exprs(exprs []ast.Expr) {
	c.list(len(exprs), ", ", func(k int) {
		c.expr(exprs[k])
	})
}

// expr writes e without enclosing parentheses, except that a nested query
// is always parenthesized.
func (c *canon) expr(e ast.Expr) {
	switch e := e.(type) {
	case nil:
	case ast.Query:
		c.write("(")
		if s, ok := e.(*ast.SelectQuery); ok && s.Implicit && len(s.Aliases) == 0 {
			c.expr(s.Result)
		} else {
			c.query(e)
		}
		c.write(")")
	case *ast.Path:
		c.path(e)
	case *ast.Shape:
		c.operand(e.Expr)
		c.space()
		c.shape(e.Elements)
	case *ast.BinOp:
		c.operand(e.Left)
		c.write(" %s ", e.Op)
		if e.Op == "IS" || e.Op == "IS NOT" {
			c.typeExpr(e.Right)
		} else {
			c.operand(e.Right)
		}
	case *ast.UnaryOp:
		switch e.Op {
		case "+", "-":
			c.write(e.Op)
			if e.Op == "-" && isNumeric(e.Operand) {
				c.write("(")
				c.expr(e.Operand)
				c.write(")")
			} else {
				c.operand(e.Operand)
			}
		default:
			c.write("%s ", e.Op)
			c.operand(e.Operand)
		}
	case *ast.IfElse:
		c.operand(e.IfExpr)
		c.write(" IF ")
		c.operand(e.Condition)
		c.write(" ELSE ")
		c.operand(e.ElseExpr)
	case *ast.TypeCast:
		c.write("<")
		c.typeName(e.Type)
		c.write(">")
		c.operand(e.Expr)
	case *ast.TypeName:
		c.typeName(e)
	case *ast.TypeOp:
		c.typeExpr(e)
	case *ast.FunctionCall:
		c.call(e)
	case *ast.Tuple:
		c.write("(")
		c.exprs(e.Elements)
		if len(e.Elements) == 1 {
			c.write(",")
		}
		c.write(")")
	case *ast.NamedTuple:
		c.write("(")
		c.list(len(e.Elements), ", ", func(k int) {
			el := e.Elements[k]
			c.write("%s := ", ident(el.Name))
			c.expr(el.Val)
		})
		c.write(")")
	case *ast.Array:
		c.write("[")
		c.exprs(e.Elements)
		c.write("]")
	case *ast.Set:
		c.write("{")
		c.exprs(e.Elements)
		c.write("}")
	case *ast.Parameter:
		c.write("$%s", e.Name)
	case *ast.Indirection:
		c.operand(e.Arg)
		c.write("[")
		switch index := e.Index.(type) {
		case *ast.Index:
			c.expr(index.Index)
		case *ast.Slice:
			c.expr(index.Start)
			c.write(":")
			c.expr(index.Stop)
		}
		c.write("]")
	case *ast.StringInterpolation:
		c.write("'")
		for _, f := range e.Fragments {
			c.write(escapeString(f.Text))
			if f.Expr != nil {
				c.write(`\(`)
				c.expr(f.Expr)
				c.write(")")
			}
		}
		c.write("'")
	case *ast.IntegerConstant:
		c.write(e.Text())
	case *ast.FloatConstant:
		c.write(e.Text())
	case *ast.BigintConstant:
		c.write(e.Text() + "n")
	case *ast.DecimalConstant:
		c.write(e.Text() + "n")
	case *ast.StringConstant:
		c.write(QuoteString(e.Value))
	case *ast.BytesConstant:
		c.write(quoteBytes(e.Value))
	case *ast.BooleanConstant:
		if e.Value {
			c.write("true")
		} else {
			c.write("false")
		}
	default:
		c.write("/* unknown expression %T */", e)
	}
}

// operand writes e in a position that binds tighter than any operator.
func (c *canon) operand(e ast.Expr) {
	if _, ok := e.(ast.Query); ok || atomic(e) {
		c.expr(e)
		return
	}
	c.write("(")
	c.expr(e)
	c.write(")")
}

func atomic(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Path, *ast.FunctionCall, *ast.Parameter, *ast.Tuple,
		*ast.NamedTuple, *ast.Array, *ast.Set, *ast.Indirection,
		*ast.StringInterpolation, *ast.StringConstant, *ast.BytesConstant,
		*ast.BooleanConstant:
		return true
	case *ast.IntegerConstant:
		return !e.IsNegative
	case *ast.FloatConstant:
		return !e.IsNegative
	case *ast.BigintConstant:
		return !e.IsNegative
	case *ast.DecimalConstant:
		return !e.IsNegative
	}
	return false
}

func isNumeric(e ast.Expr) bool {
	switch e.(type) {
	case *ast.IntegerConstant, *ast.FloatConstant, *ast.BigintConstant, *ast.DecimalConstant:
		return true
	}
	return false
}

func (c *canon) call(call *ast.FunctionCall) {
	c.write(qualified(call.Func.Module, call.Func.Name))
	c.write("(")
	c.exprs(call.Args)
	for k, kw := range call.Kwargs {
		if k > 0 || len(call.Args) > 0 {
			c.write(", ")
		}
		c.write("%s := ", ident(kw.Name))
		c.expr(kw.Expr)
	}
	c.write(")")
	if w := call.Window; w != nil {
		c.write(" OVER (")
		if len(w.PartitionBy) > 0 {
			c.write("PARTITION BY ")
			c.exprs(w.PartitionBy)
			if len(w.OrderBy) > 0 {
				c.space()
			}
		}
		if len(w.OrderBy) > 0 {
			c.write("ORDER BY ")
			c.list(len(w.OrderBy), " THEN ", func(k int) {
				c.sort(w.OrderBy[k])
			})
		}
		c.write(")")
	}
}

func (c *canon) typeName(t *ast.TypeName) {
	if t == nil {
		return
	}
	c.write(objectRef(t.Maintype))
	if len(t.Subtypes) > 0 {
		c.write("<")
		c.list(len(t.Subtypes), ", ", func(k int) {
			c.typeName(t.Subtypes[k])
		})
		c.write(">")
	}
}

func (c *canon) typeExpr(e ast.Expr) {
	switch e := e.(type) {
	case *ast.TypeName:
		c.typeName(e)
	case *ast.TypeOp:
		c.write("(")
		c.typeUnion(e)
		c.write(")")
	default:
		c.operand(e)
	}
}

// typeUnion writes a left-nested union without redundant parentheses.
func (c *canon) typeUnion(t *ast.TypeOp) {
	if left, ok := t.Left.(*ast.TypeOp); ok {
		c.typeUnion(left)
	} else {
		c.typeExpr(t.Left)
	}
	c.write(" %s ", t.Op)
	c.typeExpr(t.Right)
}

func (c *canon) path(p *ast.Path) {
	for k, s := range p.Steps {
		c.step(s, k, p.Partial)
	}
}

func (c *canon) step(s ast.Step, k int, partial bool) {
	switch s := s.(type) {
	case *ast.ObjectRef:
		c.write(objectRef(s))
	case *ast.SpecialAnchor:
		c.write(s.Name)
	case *ast.ExprRoot:
		if _, ok := s.Expr.(ast.Query); ok {
			c.expr(s.Expr)
		} else {
			c.write("(")
			c.expr(s.Expr)
			c.write(")")
		}
	case *ast.Ptr:
		switch {
		case s.Type == "property":
			c.write("@")
		case s.Direction == ast.Inbound:
			c.write(".<")
		default:
			c.write(".")
		}
		// A leading ".0" would lex as a float.
		if isAllDigits(s.Name) && !(partial && k == 0) {
			c.write(s.Name)
		} else {
			c.write(ptrName(s.Name))
		}
	case *ast.TypeIntersection:
		c.write("[IS ")
		c.typeName(s.Type)
		c.write("]")
	case *ast.Splat:
		if s.Intersection != nil {
			c.step(s.Intersection, k, partial)
		}
		c.write(strings.Repeat("*", s.Depth))
	}
}

func (c *canon) shape(elems []*ast.ShapeElement) {
	if len(elems) == 0 {
		c.write("{}")
		return
	}
	c.write("{ ")
	c.list(len(elems), ", ", func(k int) {
		c.shapeElement(elems[k])
	})
	c.write(" }")
}

func (c *canon) shapeElement(el *ast.ShapeElement) {
	if el.Required {
		c.write("required ")
	}
	if el.Cardinality != "" {
		c.write("%s ", el.Cardinality)
	}
	c.shapePath(el.Expr)
	if el.Recurse {
		c.write("*")
		if el.RecurseLimit != nil {
			c.expr(el.RecurseLimit)
		}
	}
	switch {
	case el.Compexpr != nil:
		c.write(" %s ", el.Operation)
		c.expr(el.Compexpr)
	case el.Elements != nil:
		c.write(": ")
		c.shape(el.Elements)
	}
	c.filter(el.Where)
	c.orderBy(el.OrderBy)
	c.offsetLimit(el.Offset, el.Limit)
}

func (c *canon) shapePath(p *ast.Path) {
	if p == nil {
		return
	}
	for k, s := range p.Steps {
		switch s := s.(type) {
		case *ast.Ptr:
			if k > 0 {
				c.write(".")
			}
			switch {
			case s.Type == "property":
				c.write("@")
			case s.Direction == ast.Inbound:
				c.write("<")
			}
			c.write(ident(s.Name))
		default:
			c.step(s, k, false)
		}
	}
}

// unreserved words lex as identifiers but have meaning in some positions,
// so they are quoted wherever a bare name could be mistaken for one.
var unreserved = map[string]bool{
	"ABSTRACT": true, "AS": true, "ASC": true, "CONFLICT": true,
	"DESC": true, "EMPTY": true, "EXTENDING": true, "FIRST": true,
	"GROUPING": true, "INTO": true, "LAST": true, "LINK": true,
	"MULTI": true, "ON": true, "OVER": true, "PARTITION": true,
	"PROPERTY": true, "RENAME": true, "REQUIRED": true, "SET": true,
	"SINGLE": true, "THEN": true, "TO": true, "TYPE": true,
	"UNLESS": true, "USING": true,
}

var reserved = map[string]bool{
	"ALTER": true, "AND": true, "BY": true, "CREATE": true, "DELETE": true,
	"DISTINCT": true, "DROP": true, "ELSE": true, "EXCEPT": true,
	"EXISTS": true, "FALSE": true, "FILTER": true, "FOR": true,
	"GROUP": true, "IF": true, "ILIKE": true, "IN": true, "INSERT": true,
	"INTERSECT": true, "IS": true, "LIKE": true, "LIMIT": true,
	"MODULE": true, "NOT": true, "OFFSET": true, "OR": true, "ORDER": true,
	"SELECT": true, "TRUE": true, "UNION": true, "UPDATE": true,
	"WITH": true,
}

func isIdent(s string) bool {
	for k, r := range s {
		if r == utf8.RuneError {
			return false
		}
		if r == '_' || unicode.IsLetter(r) || (k > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return s != ""
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func quoteIdent(s string) string {
	return "`" + s + "`"
}

// ident quotes s unless it is a plain identifier that is not a keyword.
func ident(s string) string {
	upper := strings.ToUpper(s)
	if !isIdent(s) || reserved[upper] || unreserved[upper] {
		return quoteIdent(s)
	}
	return s
}

// ptrName quotes s for use after a path dot, where unreserved words are
// unambiguous.
func ptrName(s string) string {
	if !isIdent(s) || reserved[strings.ToUpper(s)] {
		return quoteIdent(s)
	}
	return s
}

func moduleName(m string) string {
	parts := strings.Split(m, "::")
	for k, p := range parts {
		parts[k] = ident(p)
	}
	return strings.Join(parts, "::")
}

func qualified(module, name string) string {
	if module == "" {
		return ident(name)
	}
	return moduleName(module) + "::" + ident(name)
}

func objectRef(r *ast.ObjectRef) string {
	if r == nil {
		return ""
	}
	return qualified(r.Module, r.Name)
}

// QuoteString returns s as a single-quoted EdgeQL string literal.
func QuoteString(s string) string {
	return "'" + escapeString(s) + "'"
}

func escapeString(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func quoteBytes(s string) string {
	var b strings.Builder
	b.WriteString("b'")
	for k := 0; k < len(s); k++ {
		switch c := s[k]; {
		case c == '\\':
			b.WriteString(`\\`)
		case c == '\'':
			b.WriteString(`\'`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, `\x%02x`, c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
