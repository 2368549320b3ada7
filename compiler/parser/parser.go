package parser

import (
	"fmt"
	"strings"

	"github.com/brimdata/edgeql/compiler/ast"
	"golang.org/x/exp/slices"
)

// DefaultDepthLimit bounds the nesting of expressions and shapes.
const DefaultDepthLimit = 512

// errDepth is returned when nesting exceeds the parser's depth limit.
type errDepth struct {
	pos int
}

func (e *errDepth) Error() string { return "recursion limit exceeded" }

type parser struct {
	toks  []token
	cur   int
	depth int
	limit int
}

func newParser(src string, limit int) (*parser, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultDepthLimit
	}
	return &parser{toks: toks, limit: limit}, nil
}

func (p *parser) tok() token { return p.toks[p.cur] }

func (p *parser) peek(k int) token {
	if p.cur+k >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.cur+k]
}

func (p *parser) next() token {
	t := p.toks[p.cur]
	if t.kind != tokEOF {
		p.cur++
	}
	return t
}

// last returns the most recently consumed token.
func (p *parser) last() token {
	if p.cur == 0 {
		return p.toks[0]
	}
	return p.toks[p.cur-1]
}

func (p *parser) isOp(op string) bool {
	t := p.tok()
	return t.kind == tokOp && t.text == op
}

func (p *parser) isKw(kw string) bool {
	t := p.tok()
	return t.kind == tokKeyword && t.value == kw
}

// isWord matches an unreserved keyword, which lexes as an identifier.
func (p *parser) isWord(w string) bool {
	return isWordTok(p.tok(), w)
}

func isWordTok(t token, w string) bool {
	return t.kind == tokIdent && !strings.HasPrefix(t.text, "`") && strings.EqualFold(t.text, w)
}

func (p *parser) acceptOp(op string) bool {
	if p.isOp(op) {
		p.next()
		return true
	}
	return false
}

func (p *parser) acceptKw(kw string) bool {
	if p.isKw(kw) {
		p.next()
		return true
	}
	return false
}

func (p *parser) acceptWord(w string) bool {
	if p.isWord(w) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectOp(op string) (token, error) {
	if !p.isOp(op) {
		return token{}, p.unexpected(fmt.Sprintf("'%s'", op))
	}
	return p.next(), nil
}

func (p *parser) expectKw(kw string) (token, error) {
	if !p.isKw(kw) {
		return token{}, p.unexpected(kw)
	}
	return p.next(), nil
}

func (p *parser) expectWord(w string) error {
	if !p.acceptWord(w) {
		return p.unexpected(strings.ToUpper(w))
	}
	return nil
}

func (p *parser) errorAt(pos, end int, format string, args ...interface{}) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...), Pos: pos, End: end}
}

func (p *parser) unexpected(expected string) error {
	t := p.tok()
	msg := fmt.Sprintf("Unexpected %s", t)
	if t.kind == tokEOF {
		msg = "Unexpected end of line"
	}
	if expected != "" {
		msg += ", expected " + expected
	}
	return p.errorAt(t.pos, -1, "%s", msg)
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > p.limit {
		return &errDepth{pos: p.tok().pos}
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) ident() (token, error) {
	t := p.tok()
	if t.kind != tokIdent {
		return token{}, p.unexpected("identifier")
	}
	return p.next(), nil
}

// ----------------------------------------------------------------------------
// Statements

func (p *parser) parseBlock() ([]ast.Statement, error) {
	var stmts []ast.Statement
	for {
		for p.acceptOp(";") {
		}
		if p.tok().kind == tokEOF {
			return stmts, nil
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		if p.tok().kind == tokEOF {
			return stmts, nil
		}
		if _, err := p.expectOp(";"); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseSingle() (ast.Statement, error) {
	for p.acceptOp(";") {
	}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	for p.acceptOp(";") {
	}
	if p.tok().kind != tokEOF {
		return nil, p.unexpected("end of statement")
	}
	return stmt, nil
}

func (p *parser) parseStatement() (ast.Statement, error) {
	switch {
	case p.isKw("CREATE"):
		return p.parseCreate()
	case p.isKw("ALTER"):
		return p.parseAlter()
	case p.isKw("DROP"):
		return p.parseDrop()
	}
	e, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	if q, ok := e.(ast.Query); ok {
		return q, nil
	}
	return &ast.SelectQuery{
		Kind:     "SelectQuery",
		Result:   e,
		Implicit: true,
		Loc:      ast.NewLoc(e.Pos(), e.End()),
	}, nil
}

func (p *parser) parseFragment() (ast.Expr, error) {
	e, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	for p.acceptOp(";") {
	}
	if p.tok().kind != tokEOF {
		return nil, p.unexpected("end of expression")
	}
	return e, nil
}

func (p *parser) isQueryStart() bool {
	t := p.tok()
	if t.kind != tokKeyword {
		return false
	}
	switch t.value {
	case "WITH", "SELECT", "INSERT", "UPDATE", "DELETE", "FOR", "GROUP":
		return true
	}
	return false
}

func (p *parser) parseQuery() (ast.Query, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	start := p.tok().pos
	var aliases []ast.Alias
	if p.acceptKw("WITH") {
		var err error
		aliases, err = p.parseAliases()
		if err != nil {
			return nil, err
		}
	}
	var q ast.Query
	var err error
	switch {
	case p.isKw("SELECT"):
		q, err = p.parseSelect()
	case p.isKw("INSERT"):
		q, err = p.parseInsert()
	case p.isKw("UPDATE"):
		q, err = p.parseUpdate()
	case p.isKw("DELETE"):
		q, err = p.parseDelete()
	case p.isKw("FOR"):
		q, err = p.parseFor()
	case p.isKw("GROUP"):
		q, err = p.parseGroup()
	default:
		return nil, p.unexpected("SELECT, INSERT, UPDATE, DELETE, FOR or GROUP")
	}
	if err != nil {
		return nil, err
	}
	if aliases != nil {
		*q.WithBlock() = append(aliases, *q.WithBlock()...)
	}
	setFirst(q, start)
	return q, nil
}

// setFirst extends the span of q back to include its WITH block.
func setFirst(q ast.Query, first int) {
	switch q := q.(type) {
	case *ast.SelectQuery:
		q.First = first
	case *ast.InsertQuery:
		q.First = first
	case *ast.UpdateQuery:
		q.First = first
	case *ast.DeleteQuery:
		q.First = first
	case *ast.ForQuery:
		q.First = first
	case *ast.GroupQuery:
		q.First = first
	case *ast.InternalGroupQuery:
		q.First = first
	}
}

func (p *parser) parseAliases() ([]ast.Alias, error) {
	var aliases []ast.Alias
	for {
		a, err := p.parseAlias()
		if err != nil {
			return nil, err
		}
		aliases = append(aliases, a)
		if !p.acceptOp(",") {
			return aliases, nil
		}
		if p.isQueryStart() && !p.isKw("WITH") {
			// Trailing comma.
			return aliases, nil
		}
	}
}

func (p *parser) parseAlias() (ast.Alias, error) {
	start := p.tok().pos
	if p.acceptKw("MODULE") {
		mod, err := p.parseModuleName()
		if err != nil {
			return nil, err
		}
		return &ast.ModuleAliasDecl{Kind: "ModuleAliasDecl", Module: mod, Loc: ast.NewLoc(start, p.last().end)}, nil
	}
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if p.acceptWord("AS") {
		if _, err := p.expectKw("MODULE"); err != nil {
			return nil, err
		}
		mod, err := p.parseModuleName()
		if err != nil {
			return nil, err
		}
		return &ast.ModuleAliasDecl{Kind: "ModuleAliasDecl", Alias: name.value, Module: mod, Loc: ast.NewLoc(start, p.last().end)}, nil
	}
	if _, err := p.expectOp(":="); err != nil {
		return nil, err
	}
	e, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	return &ast.AliasedExpr{Kind: "AliasedExpr", Alias: name.value, Expr: e, Loc: ast.NewLoc(start, e.End())}, nil
}

func (p *parser) parseModuleName() (string, error) {
	name, err := p.ident()
	if err != nil {
		return "", err
	}
	parts := []string{name.value}
	for p.isOp("::") && p.peek(1).kind == tokIdent {
		p.next()
		parts = append(parts, p.next().value)
	}
	return strings.Join(parts, "::"), nil
}

// optionalAlias parses "name :=" if present.
func (p *parser) optionalAlias() string {
	if p.tok().kind == tokIdent && p.peek(1).kind == tokOp && p.peek(1).text == ":=" {
		name := p.next().value
		p.next()
		return name
	}
	return ""
}

func (p *parser) parseSelect() (ast.Query, error) {
	start := p.next().pos
	q := &ast.SelectQuery{Kind: "SelectQuery"}
	q.ResultAlias = p.optionalAlias()
	var err error
	if q.Result, err = p.parseExpr(precLowest); err != nil {
		return nil, err
	}
	if q.Where, err = p.parseFilter(); err != nil {
		return nil, err
	}
	if q.OrderBy, err = p.parseOrderBy(); err != nil {
		return nil, err
	}
	if q.Offset, q.Limit, err = p.parseOffsetLimit(); err != nil {
		return nil, err
	}
	q.Loc = ast.NewLoc(start, p.last().end)
	return q, nil
}

func (p *parser) parseFilter() (ast.Expr, error) {
	if !p.acceptKw("FILTER") {
		return nil, nil
	}
	return p.parseExpr(precLowest)
}

func (p *parser) parseOrderBy() ([]*ast.SortExpr, error) {
	if !p.isKw("ORDER") {
		return nil, nil
	}
	p.next()
	if _, err := p.expectKw("BY"); err != nil {
		return nil, err
	}
	var sorts []*ast.SortExpr
	for {
		e, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		s := &ast.SortExpr{Kind: "SortExpr", Path: e}
		switch {
		case p.acceptWord("ASC"):
			s.Direction = ast.SortAsc
		case p.acceptWord("DESC"):
			s.Direction = ast.SortDesc
		}
		if p.acceptWord("EMPTY") {
			switch {
			case p.acceptWord("FIRST"):
				s.Nones = ast.NonesFirst
			case p.acceptWord("LAST"):
				s.Nones = ast.NonesLast
			default:
				return nil, p.unexpected("FIRST or LAST")
			}
		}
		s.Loc = ast.NewLoc(e.Pos(), p.last().end)
		sorts = append(sorts, s)
		if !p.acceptWord("THEN") {
			return sorts, nil
		}
	}
}

func (p *parser) parseOffsetLimit() (ast.Expr, ast.Expr, error) {
	var offset, limit ast.Expr
	var err error
	if p.acceptKw("OFFSET") {
		if offset, err = p.parseExpr(precLowest); err != nil {
			return nil, nil, err
		}
	}
	if p.acceptKw("LIMIT") {
		if limit, err = p.parseExpr(precLowest); err != nil {
			return nil, nil, err
		}
	}
	return offset, limit, nil
}

const insertHint = "INSERT takes the name of an object type followed by an optional shape; " +
	"wrap any surrounding expression in parentheses, e.g. (INSERT User { name := 'x' }) UNION Other"

func (p *parser) parseInsert() (ast.Query, error) {
	start := p.next().pos
	e, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	q := &ast.InsertQuery{Kind: "InsertQuery"}
	subject := e
	if shape, ok := e.(*ast.Shape); ok {
		subject = shape.Expr
		q.Shape = shape.Elements
	}
	switch s := subject.(type) {
	case *ast.Path:
		if s.Partial || len(s.Steps) != 1 {
			return nil, p.insertError(s, "arbitrary expressions", insertHint)
		}
		if _, ok := s.Steps[0].(*ast.ObjectRef); !ok {
			return nil, p.insertError(s, "arbitrary expressions", insertHint)
		}
		q.Subject = s
	case *ast.IfElse:
		return nil, p.insertError(s, "conditional expressions",
			"wrap the INSERT in parentheses to use it in a conditional, e.g. (INSERT User) IF cond ELSE (SELECT User)")
	default:
		return nil, p.insertError(s, "arbitrary expressions", insertHint)
	}
	if p.acceptWord("UNLESS") {
		ucStart := p.last().pos
		if err := p.expectWord("CONFLICT"); err != nil {
			return nil, err
		}
		uc := &ast.UnlessConflict{Kind: "UnlessConflict"}
		if p.acceptWord("ON") {
			if uc.On, err = p.parseExpr(precLowest); err != nil {
				return nil, err
			}
		}
		if p.acceptKw("ELSE") {
			if uc.Else, err = p.parseExpr(precLowest); err != nil {
				return nil, err
			}
		}
		uc.Loc = ast.NewLoc(ucStart, p.last().end)
		q.UnlessConflict = uc
	}
	q.Loc = ast.NewLoc(start, p.last().end)
	return q, nil
}

func (p *parser) insertError(n ast.Node, what, hint string) error {
	err := p.errorAt(n.Pos(), n.End(), "INSERT only works with object types, not %s", what)
	err.Hint = hint
	return err
}

func (p *parser) parseUpdate() (ast.Query, error) {
	start := p.next().pos
	q := &ast.UpdateQuery{Kind: "UpdateQuery"}
	var err error
	if q.Subject, err = p.parseExpr(precLowest); err != nil {
		return nil, err
	}
	if q.Where, err = p.parseFilter(); err != nil {
		return nil, err
	}
	if err := p.expectWord("SET"); err != nil {
		return nil, err
	}
	if q.Shape, err = p.parseShape(); err != nil {
		return nil, err
	}
	q.Loc = ast.NewLoc(start, p.last().end)
	return q, nil
}

func (p *parser) parseDelete() (ast.Query, error) {
	start := p.next().pos
	q := &ast.DeleteQuery{Kind: "DeleteQuery"}
	var err error
	if q.Subject, err = p.parseExpr(precLowest); err != nil {
		return nil, err
	}
	if q.Where, err = p.parseFilter(); err != nil {
		return nil, err
	}
	if q.OrderBy, err = p.parseOrderBy(); err != nil {
		return nil, err
	}
	if q.Offset, q.Limit, err = p.parseOffsetLimit(); err != nil {
		return nil, err
	}
	q.Loc = ast.NewLoc(start, p.last().end)
	return q, nil
}

func (p *parser) parseFor() (ast.Query, error) {
	start := p.next().pos
	if p.isKw("GROUP") {
		return p.parseInternalGroup(start)
	}
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKw("IN"); err != nil {
		return nil, err
	}
	iter, err := p.parseExpr(precIf)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKw("UNION"); err != nil {
		return nil, err
	}
	result, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	return &ast.ForQuery{
		Kind:          "ForQuery",
		IteratorAlias: name.value,
		Iterator:      iter,
		Result:        result,
		Loc:           ast.NewLoc(start, result.End()),
	}, nil
}

// parseGroupHead parses "GROUP [alias :=] subject [USING ...] BY ...".
func (p *parser) parseGroupHead() (ast.Expr, string, []*ast.AliasedExpr, []ast.Expr, error) {
	if _, err := p.expectKw("GROUP"); err != nil {
		return nil, "", nil, nil, err
	}
	alias := p.optionalAlias()
	subject, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, "", nil, nil, err
	}
	var using []*ast.AliasedExpr
	if p.acceptWord("USING") {
		for {
			a, err := p.parseAlias()
			if err != nil {
				return nil, "", nil, nil, err
			}
			ae, ok := a.(*ast.AliasedExpr)
			if !ok {
				return nil, "", nil, nil, p.errorAt(a.Pos(), a.End(), "USING clause requires an aliased expression")
			}
			using = append(using, ae)
			if !p.acceptOp(",") {
				break
			}
		}
	}
	if _, err := p.expectKw("BY"); err != nil {
		return nil, "", nil, nil, err
	}
	var by []ast.Expr
	for {
		e, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, "", nil, nil, err
		}
		by = append(by, e)
		if !p.acceptOp(",") {
			break
		}
	}
	return subject, alias, using, by, nil
}

func (p *parser) parseGroup() (ast.Query, error) {
	start := p.tok().pos
	subject, alias, using, by, err := p.parseGroupHead()
	if err != nil {
		return nil, err
	}
	return &ast.GroupQuery{
		Kind:         "GroupQuery",
		Subject:      subject,
		SubjectAlias: alias,
		Using:        using,
		By:           by,
		Loc:          ast.NewLoc(start, p.last().end),
	}, nil
}

func (p *parser) parseInternalGroup(start int) (ast.Query, error) {
	subject, alias, using, by, err := p.parseGroupHead()
	if err != nil {
		return nil, err
	}
	q := &ast.InternalGroupQuery{
		Kind:         "InternalGroupQuery",
		Subject:      subject,
		SubjectAlias: alias,
		Using:        using,
		By:           by,
	}
	if err := p.expectWord("INTO"); err != nil {
		return nil, err
	}
	g, err := p.ident()
	if err != nil {
		return nil, err
	}
	q.GroupAlias = g.value
	if p.acceptWord("GROUPING") {
		gi, err := p.ident()
		if err != nil {
			return nil, err
		}
		q.GroupingAlias = gi.value
	}
	if _, err := p.expectKw("UNION"); err != nil {
		return nil, err
	}
	if q.Result, err = p.parseExpr(precLowest); err != nil {
		return nil, err
	}
	if q.Where, err = p.parseFilter(); err != nil {
		return nil, err
	}
	if q.OrderBy, err = p.parseOrderBy(); err != nil {
		return nil, err
	}
	q.Loc = ast.NewLoc(start, p.last().end)
	return q, nil
}

// ----------------------------------------------------------------------------
// Expressions

func (p *parser) parseExpr(minPrec int) (ast.Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	lastPrec := -1
	for {
		op, info, n, ok := p.peekBinary()
		if !ok || info.prec < minPrec {
			return left, nil
		}
		if info.assoc == assocNone && info.prec == lastPrec {
			return nil, p.errorAt(p.tok().pos, -1, "Unexpected %s, operator is not associative", p.tok())
		}
		for k := 0; k < n; k++ {
			p.next()
		}
		switch op {
		case "IF":
			cond, err := p.parseExpr(precOr)
			if err != nil {
				return nil, err
			}
			if _, err := p.expectKw("ELSE"); err != nil {
				return nil, err
			}
			els, err := p.parseExpr(info.rightPrec())
			if err != nil {
				return nil, err
			}
			left = &ast.IfElse{
				Kind:      "IfElse",
				IfExpr:    left,
				Condition: cond,
				ElseExpr:  els,
				Loc:       ast.NewLoc(left.Pos(), els.End()),
			}
		case "IS", "IS NOT":
			typ, err := p.parseTypeExpr()
			if err != nil {
				return nil, err
			}
			left = &ast.BinOp{Kind: "BinOp", Op: op, Left: left, Right: typ, Loc: ast.NewLoc(left.Pos(), typ.End())}
		default:
			right, err := p.parseExpr(info.rightPrec())
			if err != nil {
				return nil, err
			}
			left = &ast.BinOp{Kind: "BinOp", Op: op, Left: left, Right: right, Loc: ast.NewLoc(left.Pos(), right.End())}
		}
		lastPrec = info.prec
	}
}

func (p *parser) parseUnary() (ast.Expr, error) {
	t := p.tok()
	var op string
	switch {
	case t.kind == tokOp && (t.text == "+" || t.text == "-"):
		op = t.text
	case t.kind == tokKeyword && (t.value == "NOT" || t.value == "EXISTS" || t.value == "DISTINCT"):
		op = t.value
	case t.kind == tokOp && t.text == "<":
		return p.parseTypeCast()
	default:
		return p.parsePostfix()
	}
	p.next()
	litPos, literal := p.tok().pos, isNumberTok(p.tok())
	operand, err := p.parseExpr(unaryOps[op])
	if err != nil {
		return nil, err
	}
	if op == "-" && literal {
		// Fold the sign into the literal so range checks see the
		// negative value.
		if negate(operand, litPos, t.pos) {
			return operand, nil
		}
	}
	return &ast.UnaryOp{Kind: "UnaryOp", Op: op, Operand: operand, Loc: ast.NewLoc(t.pos, operand.End())}, nil
}

func isNumberTok(t token) bool {
	switch t.kind {
	case tokInt, tokFloat, tokBigint, tokDecimal:
		return true
	}
	return false
}

// negate folds a leading minus at minusPos into the numeric literal
// beginning at litPos.  It reports false if operand is not that literal.
func negate(operand ast.Expr, litPos, minusPos int) bool {
	if operand.Pos() != litPos {
		return false
	}
	switch c := operand.(type) {
	case *ast.IntegerConstant:
		c.IsNegative, c.First = true, minusPos
	case *ast.FloatConstant:
		c.IsNegative, c.First = true, minusPos
	case *ast.BigintConstant:
		c.IsNegative, c.First = true, minusPos
	case *ast.DecimalConstant:
		c.IsNegative, c.First = true, minusPos
	default:
		return false
	}
	return true
}

func (p *parser) parseTypeCast() (ast.Expr, error) {
	start := p.next().pos
	typ, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(">"); err != nil {
		return nil, err
	}
	e, err := p.parseExpr(precCast)
	if err != nil {
		return nil, err
	}
	return &ast.TypeCast{Kind: "TypeCast", Type: typ, Expr: e, Loc: ast.NewLoc(start, e.End())}, nil
}

func (p *parser) parsePostfix() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp(".") || p.isOp(".<") || p.isOp("@"):
			step, err := p.parsePtrStep()
			if err != nil {
				return nil, err
			}
			e = appendStep(e, step)
		case p.isOp("[") && p.peek(1).kind == tokKeyword && p.peek(1).value == "IS":
			step, err := p.parseTypeIntersection()
			if err != nil {
				return nil, err
			}
			e = appendStep(e, step)
		case p.isOp("["):
			if e, err = p.parseIndirection(e); err != nil {
				return nil, err
			}
		case p.isOp("{") && shapeable(e):
			start := e.Pos()
			elems, err := p.parseShape()
			if err != nil {
				return nil, err
			}
			e = &ast.Shape{Kind: "Shape", Expr: e, Elements: elems, Loc: ast.NewLoc(start, p.last().end)}
		default:
			return e, nil
		}
	}
}

func shapeable(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Path, ast.Query, *ast.TypeCast:
		return true
	}
	return false
}

// appendStep extends a path with step.  Any other expression becomes the
// root of a new path.
func appendStep(e ast.Expr, step ast.Step) ast.Expr {
	if path, ok := e.(*ast.Path); ok {
		path.Steps = append(path.Steps, step)
		path.Last = step.End()
		return path
	}
	root := &ast.ExprRoot{Kind: "ExprRoot", Expr: e, Loc: ast.NewLoc(e.Pos(), e.End())}
	return &ast.Path{
		Kind:  "Path",
		Steps: []ast.Step{root, step},
		Loc:   ast.NewLoc(e.Pos(), step.End()),
	}
}

func (p *parser) parsePtrStep() (*ast.Ptr, error) {
	t := p.next()
	ptr := &ast.Ptr{Kind: "Ptr", Direction: ast.Outbound}
	switch t.text {
	case ".<":
		ptr.Direction = ast.Inbound
	case "@":
		ptr.Type = "property"
	}
	name := p.tok()
	switch {
	case name.kind == tokIdent, name.kind == tokInt && t.text == ".":
		ptr.Name = p.next().value
	case name.kind == tokKeyword && t.text != "@":
		// Reserved words are valid pointer names after a dot.
		ptr.Name = strings.ToLower(p.next().value)
	default:
		return nil, p.unexpected("pointer name")
	}
	ptr.Loc = ast.NewLoc(t.pos, p.last().end)
	return ptr, nil
}

func (p *parser) parseTypeIntersection() (*ast.TypeIntersection, error) {
	start := p.next().pos
	p.next() // IS
	typ, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return &ast.TypeIntersection{Kind: "TypeIntersection", Type: typ, Loc: ast.NewLoc(start, p.last().end)}, nil
}

func (p *parser) parseIndirection(arg ast.Expr) (ast.Expr, error) {
	start := p.next().pos
	var index ast.Expr
	var lo, hi ast.Expr
	var err error
	if !p.isOp(":") {
		if lo, err = p.parseExpr(precLowest); err != nil {
			return nil, err
		}
	}
	if p.acceptOp(":") {
		if !p.isOp("]") {
			if hi, err = p.parseExpr(precLowest); err != nil {
				return nil, err
			}
		}
		index = &ast.Slice{Kind: "Slice", Start: lo, Stop: hi, Loc: ast.NewLoc(start, p.tok().end)}
	} else {
		index = &ast.Index{Kind: "Index", Index: lo, Loc: ast.NewLoc(start, p.tok().end)}
	}
	if _, err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return &ast.Indirection{Kind: "Indirection", Arg: arg, Index: index, Loc: ast.NewLoc(arg.Pos(), p.last().end)}, nil
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	t := p.tok()
	switch t.kind {
	case tokInt:
		p.next()
		return &ast.IntegerConstant{Kind: "IntegerConstant", Value: t.value, Loc: ast.NewLoc(t.pos, t.end)}, nil
	case tokFloat:
		p.next()
		return &ast.FloatConstant{Kind: "FloatConstant", Value: t.value, Loc: ast.NewLoc(t.pos, t.end)}, nil
	case tokBigint:
		p.next()
		return &ast.BigintConstant{Kind: "BigintConstant", Value: t.value, Loc: ast.NewLoc(t.pos, t.end)}, nil
	case tokDecimal:
		p.next()
		return &ast.DecimalConstant{Kind: "DecimalConstant", Value: t.value, Loc: ast.NewLoc(t.pos, t.end)}, nil
	case tokString:
		p.next()
		return &ast.StringConstant{Kind: "StringConstant", Value: t.value, Loc: ast.NewLoc(t.pos, t.end)}, nil
	case tokBytes:
		p.next()
		return &ast.BytesConstant{Kind: "BytesConstant", Value: t.value, Loc: ast.NewLoc(t.pos, t.end)}, nil
	case tokParam:
		p.next()
		return &ast.Parameter{Kind: "Parameter", Name: t.value, Loc: ast.NewLoc(t.pos, t.end)}, nil
	case tokStrInterpStart:
		return p.parseInterpolation()
	case tokIdent:
		return p.parseNameExpr()
	case tokKeyword:
		switch t.value {
		case "TRUE", "FALSE":
			p.next()
			return &ast.BooleanConstant{Kind: "BooleanConstant", Value: t.value == "TRUE", Loc: ast.NewLoc(t.pos, t.end)}, nil
		}
		if p.isQueryStart() {
			return p.parseQuery()
		}
	case tokOp:
		switch t.text {
		case "(":
			return p.parseParen()
		case "[":
			return p.parseArray()
		case "{":
			return p.parseSet()
		case ".", ".<", "@":
			step, err := p.parsePtrStep()
			if err != nil {
				return nil, err
			}
			return &ast.Path{Kind: "Path", Steps: []ast.Step{step}, Partial: true, Loc: ast.NewLoc(step.Pos(), step.End())}, nil
		}
	}
	return nil, p.unexpected("")
}

var specialAnchors = []string{"__subject__", "__source__", "__type__", "__new__", "__old__"}

func (p *parser) parseNameExpr() (ast.Expr, error) {
	t := p.next()
	ref := &ast.ObjectRef{Kind: "ObjectRef", Name: t.value, Loc: ast.NewLoc(t.pos, t.end)}
	if p.isOp("::") {
		p.next()
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		ref.Module = t.value
		ref.Name = name.value
		ref.Last = name.end
		for p.isOp("::") && p.peek(1).kind == tokIdent {
			// Nested module names such as std::math::abs.
			p.next()
			next := p.next()
			ref.Module += "::" + ref.Name
			ref.Name = next.value
			ref.Last = next.end
		}
	}
	if p.isOp("(") {
		return p.parseCall(ref)
	}
	if ref.Module == "" && slices.Contains(specialAnchors, t.value) {
		anchor := &ast.SpecialAnchor{Kind: "SpecialAnchor", Name: t.value, Loc: ref.Loc}
		return &ast.Path{Kind: "Path", Steps: []ast.Step{anchor}, Loc: ref.Loc}, nil
	}
	return &ast.Path{Kind: "Path", Steps: []ast.Step{ref}, Loc: ref.Loc}, nil
}

func (p *parser) parseCall(ref *ast.ObjectRef) (ast.Expr, error) {
	p.next()
	call := &ast.FunctionCall{
		Kind: "FunctionCall",
		Func: &ast.FuncRef{Kind: "FuncRef", Name: ref.Name, Module: ref.Module, Loc: ref.Loc},
	}
	seen := make(map[string]bool)
	for !p.isOp(")") {
		if p.tok().kind == tokIdent && p.peek(1).kind == tokOp && p.peek(1).text == ":=" {
			name := p.next()
			p.next()
			e, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			if seen[name.value] {
				return nil, &Error{Msg: fmt.Sprintf("duplicate named argument `%s`", name.value), Pos: name.pos, End: name.end, domain: true}
			}
			seen[name.value] = true
			call.Kwargs = append(call.Kwargs, &ast.Kwarg{Kind: "Kwarg", Name: name.value, Expr: e, Loc: ast.NewLoc(name.pos, e.End())})
		} else {
			e, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			if len(call.Kwargs) > 0 {
				return nil, &Error{Msg: "positional argument after named argument", Pos: e.Pos(), End: e.End(), domain: true}
			}
			call.Args = append(call.Args, e)
		}
		if !p.acceptOp(",") {
			break
		}
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	if p.acceptWord("OVER") {
		w, err := p.parseWindow()
		if err != nil {
			return nil, err
		}
		call.Window = w
	}
	call.Loc = ast.NewLoc(ref.Pos(), p.last().end)
	return call, nil
}

func (p *parser) parseWindow() (*ast.Window, error) {
	start, err := p.expectOp("(")
	if err != nil {
		return nil, err
	}
	w := &ast.Window{Kind: "Window"}
	if p.acceptWord("PARTITION") {
		if _, err := p.expectKw("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			w.PartitionBy = append(w.PartitionBy, e)
			if !p.acceptOp(",") {
				break
			}
		}
	}
	if w.OrderBy, err = p.parseOrderBy(); err != nil {
		return nil, err
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	w.Loc = ast.NewLoc(start.pos, p.last().end)
	return w, nil
}

func (p *parser) parseParen() (ast.Expr, error) {
	start := p.next().pos
	if p.isOp(")") {
		p.next()
		return &ast.Tuple{Kind: "Tuple", Loc: ast.NewLoc(start, p.last().end)}, nil
	}
	if p.tok().kind == tokIdent && p.peek(1).kind == tokOp && p.peek(1).text == ":=" {
		return p.parseNamedTuple(start)
	}
	e, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	if p.acceptOp(")") {
		return e, nil
	}
	if _, err := p.expectOp(","); err != nil {
		return nil, err
	}
	elems := []ast.Expr{e}
	for !p.isOp(")") {
		e, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if !p.acceptOp(",") {
			break
		}
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return &ast.Tuple{Kind: "Tuple", Elements: elems, Loc: ast.NewLoc(start, p.last().end)}, nil
}

func (p *parser) parseNamedTuple(start int) (ast.Expr, error) {
	var elems []*ast.TupleElement
	for !p.isOp(")") {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp(":="); err != nil {
			return nil, err
		}
		val, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		elems = append(elems, &ast.TupleElement{Kind: "TupleElement", Name: name.value, Val: val, Loc: ast.NewLoc(name.pos, val.End())})
		if !p.acceptOp(",") {
			break
		}
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return &ast.NamedTuple{Kind: "NamedTuple", Elements: elems, Loc: ast.NewLoc(start, p.last().end)}, nil
}

func (p *parser) parseExprList(close string) ([]ast.Expr, error) {
	var elems []ast.Expr
	for !p.isOp(close) {
		e, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if !p.acceptOp(",") {
			break
		}
	}
	if _, err := p.expectOp(close); err != nil {
		return nil, err
	}
	return elems, nil
}

func (p *parser) parseArray() (ast.Expr, error) {
	start := p.next().pos
	elems, err := p.parseExprList("]")
	if err != nil {
		return nil, err
	}
	return &ast.Array{Kind: "Array", Elements: elems, Loc: ast.NewLoc(start, p.last().end)}, nil
}

func (p *parser) parseSet() (ast.Expr, error) {
	start := p.next().pos
	elems, err := p.parseExprList("}")
	if err != nil {
		return nil, err
	}
	return &ast.Set{Kind: "Set", Elements: elems, Loc: ast.NewLoc(start, p.last().end)}, nil
}

// parseInterpolation builds the fragment list right-recursively, so the
// fragments come out last-first and are reversed before use.
func (p *parser) parseInterpolation() (ast.Expr, error) {
	start := p.tok().pos
	frags, err := p.parseFragments()
	if err != nil {
		return nil, err
	}
	slices.Reverse(frags)
	return &ast.StringInterpolation{Kind: "StringInterpolation", Fragments: frags, Loc: ast.NewLoc(start, p.last().end)}, nil
}

func (p *parser) parseFragments() ([]*ast.InterpolationFragment, error) {
	t := p.next()
	frag := &ast.InterpolationFragment{Kind: "InterpolationFragment", Text: t.value, Loc: ast.NewLoc(t.pos, t.end)}
	if t.kind == tokStrInterpEnd {
		return []*ast.InterpolationFragment{frag}, nil
	}
	e, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	frag.Expr = e
	frag.Last = e.End()
	if k := p.tok().kind; k != tokStrInterpCont && k != tokStrInterpEnd {
		return nil, p.unexpected("')' closing the string interpolation")
	}
	rest, err := p.parseFragments()
	if err != nil {
		return nil, err
	}
	return append(rest, frag), nil
}

// ----------------------------------------------------------------------------
// Types

func (p *parser) parseTypeName() (*ast.TypeName, error) {
	t, err := p.ident()
	if err != nil {
		return nil, err
	}
	ref := &ast.ObjectRef{Kind: "ObjectRef", Name: t.value, Loc: ast.NewLoc(t.pos, t.end)}
	if p.isOp("::") {
		p.next()
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		ref.Module = t.value
		ref.Name = name.value
		ref.Last = name.end
	}
	typ := &ast.TypeName{Kind: "TypeName", Maintype: ref, Loc: ref.Loc}
	if p.isOp("<") {
		p.next()
		for {
			sub, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			typ.Subtypes = append(typ.Subtypes, sub)
			if !p.acceptOp(",") {
				break
			}
		}
		if _, err := p.expectOp(">"); err != nil {
			return nil, err
		}
		typ.Last = p.last().end
	}
	return typ, nil
}

// parseTypeExpr parses the right side of IS: a type name or a
// parenthesized union of type names.
func (p *parser) parseTypeExpr() (ast.Expr, error) {
	if !p.isOp("(") {
		return p.parseTypeName()
	}
	p.next()
	left, err := p.parseTypeExpr()
	if err != nil {
		return nil, err
	}
	for p.acceptOp("|") {
		right, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		left = &ast.TypeOp{Kind: "TypeOp", Op: "|", Left: left, Right: right, Loc: ast.NewLoc(left.Pos(), right.End())}
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return left, nil
}

// ----------------------------------------------------------------------------
// Shapes

func (p *parser) parseShape() ([]*ast.ShapeElement, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	if _, err := p.expectOp("{"); err != nil {
		return nil, err
	}
	var elems []*ast.ShapeElement
	for !p.isOp("}") {
		el, err := p.parseShapeElement()
		if err != nil {
			return nil, err
		}
		elems = append(elems, el)
		if !p.acceptOp(",") {
			break
		}
	}
	if _, err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return elems, nil
}

func (p *parser) parseShapeElement() (*ast.ShapeElement, error) {
	start := p.tok().pos
	el := &ast.ShapeElement{Kind: "ShapeElement"}
	if p.acceptWord("REQUIRED") {
		el.Required = true
	}
	switch {
	case p.acceptWord("SINGLE"):
		el.Cardinality = "single"
	case p.acceptWord("MULTI"):
		el.Cardinality = "multi"
	}
	path, err := p.parseShapePath()
	if err != nil {
		return nil, err
	}
	el.Expr = path
	if p.acceptOp("*") {
		el.Recurse = true
		if isNumberTok(p.tok()) {
			t := p.next()
			el.RecurseLimit = &ast.IntegerConstant{Kind: "IntegerConstant", Value: t.value, Loc: ast.NewLoc(t.pos, t.end)}
		}
	}
	switch {
	case p.isOp(":="), p.isOp("+="), p.isOp("-="):
		el.Operation = p.next().text
		if el.Compexpr, err = p.parseExpr(precLowest); err != nil {
			return nil, err
		}
	case p.isOp(":"):
		p.next()
		if el.Elements, err = p.parseShape(); err != nil {
			return nil, err
		}
	case p.isOp("{"):
		return nil, p.errorAt(p.tok().pos, -1, "Missing ':' before '{' in a sub-shape")
	}
	if el.Where, err = p.parseFilter(); err != nil {
		return nil, err
	}
	if el.OrderBy, err = p.parseOrderBy(); err != nil {
		return nil, err
	}
	if el.Offset, el.Limit, err = p.parseOffsetLimit(); err != nil {
		return nil, err
	}
	el.Loc = ast.NewLoc(start, p.last().end)
	return el, nil
}

// parseShapePath parses the pointer reference of a shape element: a name,
// "@prop", "<backlink", "[IS T].name", or a splat.
func (p *parser) parseShapePath() (*ast.Path, error) {
	start := p.tok().pos
	path := &ast.Path{Kind: "Path"}
	if p.isOp("[") && p.peek(1).kind == tokKeyword && p.peek(1).value == "IS" {
		ti, err := p.parseTypeIntersection()
		if err != nil {
			return nil, err
		}
		path.Steps = append(path.Steps, ti)
		if p.isOp("*") || p.isOp("**") {
			splat := p.splat(ti)
			path.Steps = []ast.Step{splat}
			path.Loc = ast.NewLoc(start, p.last().end)
			return path, nil
		}
		if _, err := p.expectOp("."); err != nil {
			return nil, err
		}
	}
	if len(path.Steps) == 0 && (p.isOp("*") || p.isOp("**")) {
		path.Steps = append(path.Steps, p.splat(nil))
		path.Loc = ast.NewLoc(start, p.last().end)
		return path, nil
	}
	ptr := &ast.Ptr{Kind: "Ptr", Direction: ast.Outbound}
	switch {
	case p.acceptOp("@"):
		ptr.Type = "property"
	case p.acceptOp("<"):
		ptr.Direction = ast.Inbound
	}
	name := p.tok()
	switch name.kind {
	case tokIdent:
		ptr.Name = p.next().value
	case tokKeyword:
		ptr.Name = strings.ToLower(p.next().value)
	default:
		return nil, p.unexpected("pointer name")
	}
	ptr.Loc = ast.NewLoc(start, p.last().end)
	path.Steps = append(path.Steps, ptr)
	for p.isOp("[") && p.peek(1).kind == tokKeyword && p.peek(1).value == "IS" {
		ti, err := p.parseTypeIntersection()
		if err != nil {
			return nil, err
		}
		path.Steps = append(path.Steps, ti)
	}
	path.Loc = ast.NewLoc(start, p.last().end)
	return path, nil
}

func (p *parser) splat(ti *ast.TypeIntersection) *ast.Splat {
	t := p.next()
	s := &ast.Splat{Kind: "Splat", Depth: 1, Intersection: ti, Loc: ast.NewLoc(t.pos, t.end)}
	if t.text == "**" {
		s.Depth = 2
	}
	if ti != nil {
		s.First = ti.Pos()
	}
	return s
}

// ----------------------------------------------------------------------------
// DDL

func (p *parser) parseObjectName() (*ast.ObjectRef, error) {
	t, err := p.ident()
	if err != nil {
		return nil, err
	}
	ref := &ast.ObjectRef{Kind: "ObjectRef", Name: t.value, Loc: ast.NewLoc(t.pos, t.end)}
	if p.acceptOp("::") {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		ref.Module = t.value
		ref.Name = name.value
		ref.Last = name.end
	}
	return ref, nil
}

func (p *parser) parseCreate() (ast.Statement, error) {
	start := p.next().pos
	if p.acceptKw("MODULE") {
		name, err := p.parseModuleName()
		if err != nil {
			return nil, err
		}
		return &ast.CreateModule{Kind: "CreateModule", Name: name, Loc: ast.NewLoc(start, p.last().end)}, nil
	}
	q := &ast.CreateObjectType{Kind: "CreateObjectType"}
	if p.acceptWord("ABSTRACT") {
		q.Abstract = true
	}
	if err := p.expectWord("TYPE"); err != nil {
		return nil, err
	}
	var err error
	if q.Name, err = p.parseObjectName(); err != nil {
		return nil, err
	}
	if p.acceptWord("EXTENDING") {
		for {
			base, err := p.parseObjectName()
			if err != nil {
				return nil, err
			}
			q.Bases = append(q.Bases, base)
			if !p.acceptOp(",") {
				break
			}
		}
	}
	if p.acceptOp("{") {
		for !p.isOp("}") {
			ptr, err := p.parseCreatePointer()
			if err != nil {
				return nil, err
			}
			q.Pointers = append(q.Pointers, ptr)
			if !p.acceptOp(";") {
				break
			}
		}
		if _, err := p.expectOp("}"); err != nil {
			return nil, err
		}
	}
	q.Loc = ast.NewLoc(start, p.last().end)
	return q, nil
}

func (p *parser) parseCreatePointer() (*ast.CreatePointer, error) {
	start := p.tok().pos
	ptr := &ast.CreatePointer{Kind: "CreatePointer"}
	if p.acceptWord("REQUIRED") {
		ptr.Required = true
	}
	switch {
	case p.acceptWord("MULTI"):
		ptr.Multi = true
	case p.acceptWord("SINGLE"):
	}
	switch {
	case p.acceptWord("LINK"):
		ptr.PtrKind = "link"
	case p.acceptWord("PROPERTY"):
		ptr.PtrKind = "property"
	}
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	ptr.Name = name.value
	if !p.acceptOp("->") {
		if _, err := p.expectOp(":"); err != nil {
			return nil, err
		}
	}
	if ptr.Target, err = p.parseTypeName(); err != nil {
		return nil, err
	}
	ptr.Loc = ast.NewLoc(start, p.last().end)
	return ptr, nil
}

func (p *parser) parseAlter() (ast.Statement, error) {
	start := p.next().pos
	if err := p.expectWord("TYPE"); err != nil {
		return nil, err
	}
	name, err := p.parseObjectName()
	if err != nil {
		return nil, err
	}
	if err := p.expectWord("RENAME"); err != nil {
		return nil, err
	}
	if err := p.expectWord("TO"); err != nil {
		return nil, err
	}
	newName, err := p.parseObjectName()
	if err != nil {
		return nil, err
	}
	return &ast.AlterObjectType{Kind: "AlterObjectType", Name: name, NewName: newName, Loc: ast.NewLoc(start, p.last().end)}, nil
}

func (p *parser) parseDrop() (ast.Statement, error) {
	start := p.next().pos
	if p.acceptKw("MODULE") {
		name, err := p.parseModuleName()
		if err != nil {
			return nil, err
		}
		return &ast.DropModule{Kind: "DropModule", Name: name, Loc: ast.NewLoc(start, p.last().end)}, nil
	}
	if err := p.expectWord("TYPE"); err != nil {
		return nil, err
	}
	name, err := p.parseObjectName()
	if err != nil {
		return nil, err
	}
	return &ast.DropObjectType{Kind: "DropObjectType", Name: name, Loc: ast.NewLoc(start, p.last().end)}, nil
}
