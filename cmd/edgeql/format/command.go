package format

import (
	"flag"
	"fmt"

	"github.com/brimdata/edgeql/cli"
	"github.com/brimdata/edgeql/cmd/edgeql/root"
	"github.com/brimdata/edgeql/compiler"
	"github.com/brimdata/edgeql/pkg/charm"
	"github.com/brimdata/edgeql/zfmt"
)

var Cmd = &charm.Spec{
	Name:  "fmt",
	Usage: "fmt [options] query",
	Short: "print a query in canonical form",
	Long: `
The fmt command parses a block of statements and prints it back as EdgeQL
text in canonical form.`,
	New: New,
}

type Command struct {
	*root.Command
	includes cli.Includes
}

func New(parent charm.Command, f *flag.FlagSet) (charm.Command, error) {
	c := &Command{Command: parent.(*root.Command)}
	f.Var(&c.includes, "I", "source file containing query text (may be repeated)")
	return c, nil
}

func (c *Command) Run(args []string) error {
	_, cleanup, err := c.Init()
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
	stmts, err := compiler.ParseBlock(src)
	if err != nil {
		return err
	}
	fmt.Println(zfmt.Statements(stmts))
	return nil
}
