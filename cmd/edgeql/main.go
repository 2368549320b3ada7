package main

import (
	"fmt"
	"os"

	"github.com/brimdata/edgeql/cmd/edgeql/compile"
	"github.com/brimdata/edgeql/cmd/edgeql/format"
	"github.com/brimdata/edgeql/cmd/edgeql/normalize"
	"github.com/brimdata/edgeql/cmd/edgeql/parse"
	"github.com/brimdata/edgeql/cmd/edgeql/root"
	"github.com/brimdata/edgeql/pkg/charm"
)

func main() {
	root.Edgeql.Add(parse.Cmd)
	root.Edgeql.Add(format.Cmd)
	root.Edgeql.Add(normalize.Cmd)
	root.Edgeql.Add(compile.Cmd)
	root.Edgeql.Add(charm.Help)
	if err := root.Edgeql.ExecRoot(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
