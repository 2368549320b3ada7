package compiler

import (
	"github.com/brimdata/edgeql/compiler/ir"
	"github.com/brimdata/edgeql/compiler/semantic"
	"github.com/brimdata/edgeql/schema"
	"go.uber.org/zap"
)

// Option configures a compile.
type Option func(*config)

type config struct {
	anchors    map[string]any
	argTypes   map[string]schema.Type
	aliases    schema.ModuleAliases
	location   ir.Location
	logger     *zap.Logger
	depthLimit int
	metrics    *Metrics
}

func newConfig(opts []Option) *config {
	c := &config{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithAnchors binds names usable as path roots.  Values are schema
// objects (*schema.ObjectType, *schema.Pointer) or IR nodes.
func WithAnchors(anchors map[string]any) Option {
	return func(c *config) { c.anchors = anchors }
}

// WithArgTypes gives the types of query parameters by name or position.
func WithArgTypes(types map[string]schema.Type) Option {
	return func(c *config) { c.argTypes = types }
}

// WithModuleAliases sets the module aliases in effect.  The empty key
// names the default module.
func WithModuleAliases(aliases schema.ModuleAliases) Option {
	return func(c *config) { c.aliases = aliases }
}

// WithLocation sets the clause a fragment is compiled in.
func WithLocation(loc ir.Location) Option {
	return func(c *config) { c.location = loc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDepthLimit bounds the nesting depth accepted by the parser and the
// transformer.
func WithDepthLimit(n int) Option {
	return func(c *config) { c.depthLimit = n }
}

func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

func (c *config) localnames() []string {
	names := make([]string, 0, len(c.anchors))
	for name := range c.anchors {
		names = append(names, name)
	}
	return names
}

func (c *config) semantic(logger *zap.Logger) semantic.Options {
	return semantic.Options{
		Anchors:       c.anchors,
		ArgTypes:      c.argTypes,
		ModuleAliases: c.aliases,
		Location:      c.location,
		Logger:        logger,
		DepthLimit:    c.depthLimit,
	}
}
