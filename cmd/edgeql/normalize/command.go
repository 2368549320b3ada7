package normalize

import (
	"flag"
	"os"

	"github.com/brimdata/edgeql/cli"
	"github.com/brimdata/edgeql/cli/outputflags"
	"github.com/brimdata/edgeql/cmd/edgeql/root"
	"github.com/brimdata/edgeql/compiler"
	"github.com/brimdata/edgeql/pkg/charm"
	"github.com/brimdata/edgeql/zfmt"
)

var Cmd = &charm.Spec{
	Name:  "normalize",
	Usage: "normalize [options] query",
	Short: "print a query with every name qualified by its module",
	Long: `
The normalize command parses a block of statements, qualifies each schema
name with the module it resolves to, and prints the result as EdgeQL text
or, with -f json, as a syntax tree.`,
	New: New,
}

type Command struct {
	*root.Command
	output   outputflags.Flags
	includes cli.Includes
}

func New(parent charm.Command, f *flag.FlagSet) (charm.Command, error) {
	c := &Command{Command: parent.(*root.Command)}
	c.output.SetFlags(f)
	f.Var(&c.includes, "I", "source file containing query text (may be repeated)")
	return c, nil
}

func (c *Command) Run(args []string) error {
	_, cleanup, err := c.Init(&c.output)
	if err != nil {
		return err
	}
	defer cleanup()
	if len(args) == 0 && len(c.includes) == 0 {
		return charm.NeedHelp
	}
	src, err := cli.ReadQuery(c.includes, args)
	if err != nil {
		return err
	}
	lookup, err := c.SchemaFlags.Lookup()
	if err != nil {
		return err
	}
	stmts, err := compiler.ParseBlock(src)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := compiler.Normalize(stmt, lookup, c.SchemaFlags.Aliases()); err != nil {
			return err
		}
	}
	return c.output.Write(os.Stdout, stmts, func() string {
		return zfmt.Statements(stmts) + "\n"
	})
}
