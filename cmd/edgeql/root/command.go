package root

import (
	"context"
	"flag"

	"github.com/brimdata/edgeql/cli"
	"github.com/brimdata/edgeql/cli/logflags"
	"github.com/brimdata/edgeql/cli/schemaflags"
	"github.com/brimdata/edgeql/pkg/charm"
	"go.uber.org/zap"
)

var Edgeql = &charm.Spec{
	Name:  "edgeql",
	Usage: "edgeql <command> [options] [query]",
	Short: "inspect the stages of the EdgeQL compiler",
	Long: `
edgeql parses, formats, normalizes, and compiles EdgeQL queries.  Each
command prints the output of one compiler stage, which makes it a tool for
development and test as much as for understanding how a query is planned.

Commands that resolve names need a schema, given as a YAML file with
-schema.  Bare names resolve first in the module given by -module.`,
	New: New,
}

type Command struct {
	cli.Flags
	LogFlags    logflags.Flags
	SchemaFlags schemaflags.Flags
	Logger      *zap.Logger
}

func New(parent charm.Command, f *flag.FlagSet) (charm.Command, error) {
	c := &Command{}
	c.Flags.SetFlags(f)
	c.LogFlags.SetFlags(f)
	c.SchemaFlags.SetFlags(f)
	return c, nil
}

// Init opens the logger and loads the schema before initializing the
// command's own flags in all.
func (c *Command) Init(all ...cli.Initializer) (context.Context, func(), error) {
	logger, err := c.LogFlags.Open()
	if err != nil {
		return nil, nil, err
	}
	c.Logger = logger
	ctx, cleanup, err := c.Flags.Init(append([]cli.Initializer{&c.SchemaFlags}, all...)...)
	if err != nil {
		return nil, nil, err
	}
	return ctx, func() {
		cleanup()
		c.Logger.Sync()
	}, nil
}

func (c *Command) Run(args []string) error {
	if len(args) == 0 {
		return charm.NeedHelp
	}
	return charm.ErrNoRun
}
