// Package compiler is the entry point for turning EdgeQL text into the
// path-algebra IR.  A compile parses the source, normalizes names against
// a schema, runs the semantic transform, and then optimizes the graph.
package compiler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brimdata/edgeql/compiler/ast"
	"github.com/brimdata/edgeql/compiler/ir"
	"github.com/brimdata/edgeql/compiler/normalize"
	"github.com/brimdata/edgeql/compiler/optimizer"
	"github.com/brimdata/edgeql/compiler/parser"
	"github.com/brimdata/edgeql/compiler/semantic"
	"github.com/brimdata/edgeql/schema"
	"github.com/segmentio/ksuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// ParseFragment parses a bare expression.
func ParseFragment(src string) (ast.Expr, error) {
	return parser.ParseExpr(src)
}

// Parse parses a single statement.  The module aliases are added to the
// front of the statement's WITH block so that a later Normalize resolves
// names through them.
func Parse(src string, aliases schema.ModuleAliases) (ast.Statement, error) {
	stmt, err := parser.ParseStatement(src)
	if err != nil {
		return nil, err
	}
	injectAliases(stmt, aliases)
	return stmt, nil
}

func injectAliases(stmt ast.Statement, aliases schema.ModuleAliases) {
	q, ok := stmt.(ast.Query)
	if !ok || len(aliases) == 0 {
		return
	}
	keys := maps.Keys(aliases)
	slices.Sort(keys)
	decls := make([]ast.Alias, 0, len(keys))
	for _, alias := range keys {
		decls = append(decls, &ast.ModuleAliasDecl{
			Kind:   "ModuleAliasDecl",
			Alias:  alias,
			Module: aliases[alias],
			Loc:    ast.NewLoc(q.Pos(), q.Pos()),
		})
	}
	with := q.WithBlock()
	*with = append(decls, *with...)
}

// ParseBlock parses a sequence of statements separated by semicolons.
func ParseBlock(src string) ([]ast.Statement, error) {
	return parser.ParseBlock(src)
}

// Normalize qualifies the names in n in place.  Names in localnames are
// bound by the caller and left alone.
func Normalize(n ast.Node, s schema.Lookup, aliases schema.ModuleAliases, localnames ...string) error {
	return normalize.Normalize(n, s, aliases, localnames...)
}

// CompileToIR compiles a single statement to an optimized query graph.
func CompileToIR(ctx context.Context, src string, s schema.Lookup, opts ...Option) (*ir.GraphExpr, error) {
	c := newConfig(opts)
	stmt, err := parser.ParseStatement(src, parser.WithDepthLimit(c.depthLimit))
	if err != nil {
		c.metrics.observe("unknown", time.Now(), err)
		return nil, err
	}
	return compileStatement(ctx, stmt, s, c)
}

// CompileFragmentToIR compiles a bare expression.  A query expression
// compiles to an optimized *ir.GraphExpr.
func CompileFragmentToIR(ctx context.Context, src string, s schema.Lookup, opts ...Option) (ir.Expr, error) {
	c := newConfig(opts)
	start := time.Now()
	id := ksuid.New()
	logger := c.logger.With(zap.Stringer("compile_id", id))
	e, err := parser.ParseExpr(src, parser.WithDepthLimit(c.depthLimit))
	if err == nil {
		err = normalize.Normalize(e, s, c.aliases, c.localnames()...)
	}
	var out ir.Expr
	if err == nil {
		out, err = semantic.AnalyzeExpr(ctx, e, s, c.semantic(logger))
	}
	if g, ok := out.(*ir.GraphExpr); ok && err == nil {
		err = optimizer.New(ctx, g, logger).Optimize()
	}
	c.metrics.observe("Fragment", start, err)
	logger.Debug("compiled fragment", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompileAll parses a statement block and compiles its statements
// concurrently.  The graphs are returned in statement order.  Every
// failing statement contributes its error.
func CompileAll(ctx context.Context, src string, s schema.Lookup, opts ...Option) ([]*ir.GraphExpr, error) {
	c := newConfig(opts)
	stmts, err := parser.ParseBlock(src, parser.WithDepthLimit(c.depthLimit))
	if err != nil {
		return nil, err
	}
	graphs := make([]*ir.GraphExpr, len(stmts))
	errs := make([]error, len(stmts))
	group, ctx := errgroup.WithContext(ctx)
	for k, stmt := range stmts {
		k, stmt := k, stmt
		group.Go(func() error {
			g, err := compileStatement(ctx, stmt, s, c)
			if err != nil {
				errs[k] = fmt.Errorf("statement %d: %w", k+1, err)
				return nil
			}
			graphs[k] = g
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}
	return graphs, nil
}

func compileStatement(ctx context.Context, stmt ast.Statement, s schema.Lookup, c *config) (*ir.GraphExpr, error) {
	start := time.Now()
	kind := statementKind(stmt)
	id := ksuid.New()
	logger := c.logger.With(zap.Stringer("compile_id", id), zap.String("kind", kind))
	g, err := compile(ctx, stmt, s, c, logger)
	c.metrics.observe(kind, start, err)
	logger.Debug("compiled statement", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	return g, err
}

func compile(ctx context.Context, stmt ast.Statement, s schema.Lookup, c *config, logger *zap.Logger) (*ir.GraphExpr, error) {
	if err := normalize.Normalize(stmt, s, c.aliases, c.localnames()...); err != nil {
		return nil, err
	}
	g, err := semantic.Analyze(ctx, stmt, s, c.semantic(logger))
	if err != nil {
		return nil, err
	}
	if err := optimizer.New(ctx, g, logger).Optimize(); err != nil {
		return nil, err
	}
	return g, nil
}

func statementKind(stmt ast.Statement) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", stmt), "*ast.")
}
