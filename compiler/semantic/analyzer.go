// Package semantic translates a normalized EdgeQL syntax tree into the
// path-algebra IR.  Every path in a query becomes a chain of entity sets
// and links; paths that denote the same graph position are then merged,
// with the clause a path appears in deciding whether the merge is a hard
// join or an optional one.
package semantic

import (
	"context"
	"strconv"

	"github.com/brimdata/edgeql/compiler/ast"
	"github.com/brimdata/edgeql/compiler/ir"
	zqe "github.com/brimdata/edgeql/errors"
	"github.com/brimdata/edgeql/schema"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// DefaultDepthLimit bounds the nesting of expressions.
const DefaultDepthLimit = 1000

type Options struct {
	// Anchors binds names to schema objects (*schema.ObjectType,
	// *schema.Pointer) or to IR nodes.
	Anchors       map[string]any
	ArgTypes      map[string]schema.Type
	ModuleAliases schema.ModuleAliases
	// Location is the clause AnalyzeExpr compiles its expression in.
	// It defaults to the generator.
	Location   ir.Location
	Logger     *zap.Logger
	DepthLimit int
}

// Analyze compiles a statement into a query graph.  The graph is
// canonical: every reference to a merged set points at the surviving set.
func Analyze(ctx context.Context, stmt ast.Statement, lookup schema.Lookup, opts Options) (*ir.GraphExpr, error) {
	a := newAnalyzer(ctx, lookup, opts)
	s, err := a.rootScope(opts)
	if err != nil {
		return nil, err
	}
	q, ok := stmt.(ast.Query)
	if !ok {
		return nil, zqe.E(zqe.Internal, span(stmt), "cannot compile statement of type %T", stmt)
	}
	g, err := a.semQuery(s, q)
	if err != nil {
		return nil, err
	}
	if a.err != nil {
		return nil, a.err
	}
	g.ArgTypes = a.args
	ir.Canonicalize(g)
	a.logger.Debug("analyzed statement", zap.Stringer("id", g.ID), zap.Int("subqueries", g.Subgraphs.Len()))
	return g, nil
}

// AnalyzeExpr compiles an expression outside of any statement.  A query
// is compiled to a graph and returned as is.
func AnalyzeExpr(ctx context.Context, e ast.Expr, lookup schema.Lookup, opts Options) (ir.Expr, error) {
	a := newAnalyzer(ctx, lookup, opts)
	s, err := a.rootScope(opts)
	if err != nil {
		return nil, err
	}
	s.location = opts.Location
	if s.location == "" {
		s.location = ir.Generator
	}
	if q, ok := e.(ast.Query); ok {
		g, err := a.semQuery(s, q)
		if err != nil {
			return nil, err
		}
		if a.err != nil {
			return nil, a.err
		}
		ir.Canonicalize(g)
		return g, nil
	}
	out, err := a.semExpr(s, e)
	if err != nil {
		return nil, err
	}
	if a.err != nil {
		return nil, a.err
	}
	ir.Canonicalize(s.graph)
	return canonicalExpr(out), nil
}

type analyzer struct {
	ctx        context.Context
	lookup     schema.Lookup
	logger     *zap.Logger
	argTypes   map[string]schema.Type
	args       map[string]schema.Type
	aliases    map[string]int
	std        map[string]schema.Type
	depthLimit int
	// err is the first failure of the path algebra, which has no error
	// returns of its own.
	err error
}

func newAnalyzer(ctx context.Context, lookup schema.Lookup, opts Options) *analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := opts.DepthLimit
	if limit <= 0 {
		limit = DefaultDepthLimit
	}
	return &analyzer{
		ctx:        ctx,
		lookup:     lookup,
		logger:     logger,
		argTypes:   opts.ArgTypes,
		args:       make(map[string]schema.Type),
		aliases:    make(map[string]int),
		std:        make(map[string]schema.Type),
		depthLimit: limit,
	}
}

func (a *analyzer) rootScope(opts Options) (scope, error) {
	anchors := make(map[string]ir.Node, len(opts.Anchors))
	for name, v := range opts.Anchors {
		n, err := a.anchor(name, v)
		if err != nil {
			return scope{}, err
		}
		anchors[name] = n
	}
	s := scope{
		aliases: opts.ModuleAliases.Copy(),
		anchors: anchors,
	}
	return s.enter(a.newGraph()), nil
}

// anchor converts an anchor binding into the node a path starting at the
// anchor continues from.
func (a *analyzer) anchor(name string, v any) (ir.Node, error) {
	switch v := v.(type) {
	case *schema.ObjectType:
		set := ir.NewEntitySet(v, "")
		set.Anchor = name
		return set, nil
	case *schema.Pointer:
		if v.IsLinkProperty() {
			owner := v.Source.(*schema.Pointer)
			link := a.anchorLink(owner, name)
			pref := &ir.LinkPropRefSimple{Ref: link, Name: v.Name, Ptr: v}
			link.Proprefs.Add(pref)
			return pref, nil
		}
		return a.anchorLink(v, name), nil
	case ir.Node:
		return v, nil
	}
	return nil, zqe.E(zqe.Internal, "anchor %q is bound to an unsupported value of type %T", name, v)
}

func (a *analyzer) anchorLink(ptr *schema.Pointer, name string) *ir.EntityLink {
	link := &ir.EntityLink{Ptr: ptr, Direction: schema.Outbound, Anchor: name}
	if src, ok := ptr.Source.(schema.Type); ok {
		source := ir.NewEntitySet(src, "")
		source.Disjunction.Paths.Add(link)
		link.Source = source
	}
	return link
}

func (a *analyzer) newGraph() *ir.GraphExpr {
	return &ir.GraphExpr{ID: ksuid.New()}
}

// genAlias returns a fresh name built from hint: hint itself first, then
// hint2, hint3, and so on.
func (a *analyzer) genAlias(hint string) string {
	if hint == "" {
		hint = "a"
	}
	a.aliases[hint]++
	if n := a.aliases[hint]; n > 1 {
		return hint + strconv.Itoa(n)
	}
	return hint
}

func (a *analyzer) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

func (a *analyzer) failf(format string, args ...interface{}) {
	a.fail(zqe.E(append([]interface{}{zqe.Tree, format}, args...)...))
}

// stdType returns the std scalar type called name, or nil.
func (a *analyzer) stdType(name string) schema.Type {
	if t, ok := a.std[name]; ok {
		return t
	}
	var t schema.Type
	if o, err := a.lookup.Get(schema.StdModule+"::"+name, nil, schema.ClassType); err == nil {
		t, _ = o.(schema.Type)
	}
	a.std[name] = t
	return t
}

func span(n ast.Node) zqe.Span {
	if n == nil {
		return zqe.NoSpan
	}
	return zqe.Span{Pos: n.Pos(), End: n.End()}
}

func qualified(module, name string) string {
	if module == "" {
		return name
	}
	return module + "::" + name
}

func canonicalExpr(e ir.Expr) ir.Expr {
	switch e := e.(type) {
	case *ir.EntitySet:
		return e.Resolve()
	case *ir.EntityLink:
		return e.Resolve()
	}
	return e
}
