package parse

import (
	"encoding/json"
	"flag"
	"fmt"

	"github.com/brimdata/edgeql/cli"
	"github.com/brimdata/edgeql/cmd/edgeql/root"
	"github.com/brimdata/edgeql/compiler"
	"github.com/brimdata/edgeql/pkg/charm"
)

var Cmd = &charm.Spec{
	Name:  "ast",
	Usage: "ast [options] query",
	Short: "print the syntax tree of a query as JSON",
	Long: `
The ast command parses a block of semicolon-separated statements and prints
the syntax tree of each as a JSON array.  With -e, the text is parsed as a
single expression instead.`,
	New: New,
}

type Command struct {
	*root.Command
	expr     bool
	includes cli.Includes
}

func New(parent charm.Command, f *flag.FlagSet) (charm.Command, error) {
	c := &Command{Command: parent.(*root.Command)}
	f.BoolVar(&c.expr, "e", false, "parse an expression rather than statements")
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
	var v any
	if c.expr {
		v, err = compiler.ParseFragment(src)
	} else {
		v, err = compiler.ParseBlock(src)
	}
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
