// Command funcdocs writes a markdown reference of the builtin functions.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/brimdata/edgeql/schema"
)

func main() {
	args := os.Args[1:]
	if len(args) < 1 {
		check(errors.New("need 1 arg for where to write markdown file"))
	}
	snap, err := schema.Build()
	check(err)
	f, err := os.Create(args[0])
	check(err)
	defer f.Close()
	all := snap.Functions()
	tableOfContents(f, all)
	for _, fn := range all {
		document(f, fn)
	}
}

func tableOfContents(w io.Writer, all []*schema.Function) {
	fmt.Fprint(w, "# Table of Contents\n\n")
	for _, f := range all {
		fmt.Fprint(w, "- ")
		link(w, f.Name.String())
		fmt.Fprint(w, "\n")
	}
	fmt.Fprintf(w, "\n")
}

func link(w io.Writer, name string) {
	lnk := strings.ToLower(name)
	lnk = strings.ReplaceAll(lnk, "::", "")
	lnk = strings.ReplaceAll(lnk, "_", "-")
	fmt.Fprintf(w, "[%s](#%s)", name, lnk)
}

func document(w io.Writer, fn *schema.Function) {
	fmt.Fprintf(w, "## %s\n\n", fn.Name)
	fmt.Fprint(w, "```\n")
	signature(w, fn)
	fmt.Fprint(w, "```\n\n")
	switch {
	case fn.Aggregate:
		fmt.Fprint(w, "Aggregate function.\n\n")
	case fn.Window:
		fmt.Fprint(w, "Window function.\n\n")
	}
}

func signature(w io.Writer, fn *schema.Function) {
	fmt.Fprintf(w, "%s(%s)", fn.Name, strings.Join(fn.Params, ", "))
	if fn.Returns != nil {
		fmt.Fprintf(w, " -> %s", fn.Returns.SchemaName())
	}
	fmt.Fprint(w, "\n")
}

func check(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
