package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brimdata/edgeql/compiler/ast"
	zqe "github.com/brimdata/edgeql/errors"
)

// Option configures a parse.
type Option func(*parser)

// WithDepthLimit bounds the nesting depth of expressions, queries, and
// shapes.  Exceeding it fails with a RecursionLimit error.
func WithDepthLimit(n int) Option {
	return func(p *parser) {
		if n > 0 {
			p.limit = n
		}
	}
}

func run[T any](src string, opts []Option, f func(*parser) (T, error)) (T, error) {
	var zero T
	p, err := newParser(src, DefaultDepthLimit)
	if err != nil {
		return zero, convertError(err, src, DefaultDepthLimit)
	}
	for _, opt := range opts {
		opt(p)
	}
	out, err := f(p)
	if err != nil {
		return zero, convertError(err, src, p.limit)
	}
	return out, nil
}

// ParseStatement parses a single statement.  A bare expression is wrapped
// in an implicit SelectQuery.
func ParseStatement(src string, opts ...Option) (ast.Statement, error) {
	return run(src, opts, (*parser).parseSingle)
}

// ParseBlock parses a sequence of statements separated by semicolons.
func ParseBlock(src string, opts ...Option) ([]ast.Statement, error) {
	return run(src, opts, (*parser).parseBlock)
}

// ParseExpr parses a single expression with no statement wrapper.
func ParseExpr(src string, opts ...Option) (ast.Expr, error) {
	return run(src, opts, (*parser).parseFragment)
}

func convertError(err error, src string, limit int) error {
	var perr *Error
	if errors.As(err, &perr) {
		perr.sset = NewSourceSet("", src)
		kind := zqe.Syntax
		if perr.domain {
			kind = zqe.Domain
		}
		return zqe.E(kind, zqe.Span{Pos: perr.Pos, End: perr.End}, zqe.Hint(perr.Hint), perr)
	}
	var derr *errDepth
	if errors.As(err, &derr) {
		return zqe.E(zqe.RecursionLimit, zqe.Span{Pos: derr.pos, End: -1}, "query nesting exceeds %d levels", limit)
	}
	return err
}

// ErrorList is a list of Errors.
type ErrorList []*Error

// Append appends an Error to e.
func (e *ErrorList) Append(msg string, pos, end int) {
	*e = append(*e, &Error{Msg: msg, Pos: pos, End: end})
}

// Error concatenates the errors in e with a newline between each.
func (e ErrorList) Error() string {
	var b strings.Builder
	for i, err := range e {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

// SetSourceSet sets the SourceSet for every Error in e.
func (e ErrorList) SetSourceSet(sset *SourceSet) {
	for i := range e {
		e[i].sset = sset
	}
}

// Error is a parse error at an offset into the query text.  End is -1
// for an error at a single point.
type Error struct {
	Msg  string
	Hint string
	Pos  int
	End  int
	sset *SourceSet
	// domain marks well-formed syntax that is semantically invalid,
	// such as duplicate named arguments.
	domain bool
}

func (e *Error) Message() string { return e.Msg }

func (e *Error) Error() string {
	if e.sset == nil {
		return e.Msg
	}
	var b strings.Builder
	b.WriteString(e.Msg)
	if e.Pos >= 0 {
		src := e.sset.SourceOf(e.Pos)
		_, start := src.Position(e.Pos)
		_, end := src.Position(e.End)
		if src.filename != "" {
			fmt.Fprintf(&b, " in %s", src.filename)
		}
		line := src.LineOfPos(e.sset, e.Pos)
		fmt.Fprintf(&b, " at line %d, column %d:\n%s\n", start.Line, start.Column, line)
		if end.IsValid() && end.Line == start.Line {
			formatSpanError(&b, line, start, end)
		} else {
			formatPointError(&b, start)
		}
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, "\nhint: %s", e.Hint)
	}
	return b.String()
}

func formatSpanError(b *strings.Builder, line string, start, end Position) {
	col := start.Column - 1
	b.WriteString(strings.Repeat(" ", col))
	n := end.Column - 1 - col
	if n <= 0 || col+n > len(line) {
		n = len(line) - col
	}
	if n <= 0 {
		n = 1
	}
	b.WriteString(strings.Repeat("~", n))
}

func formatPointError(b *strings.Builder, start Position) {
	col := start.Column - 1
	for k := 0; k < col; k++ {
		if k >= col-4 && k != col-1 {
			b.WriteByte('=')
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteString("^ ===")
}
