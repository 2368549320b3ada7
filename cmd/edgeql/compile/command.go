package compile

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/brimdata/edgeql/cli"
	"github.com/brimdata/edgeql/cli/outputflags"
	"github.com/brimdata/edgeql/cmd/edgeql/root"
	"github.com/brimdata/edgeql/compiler"
	"github.com/brimdata/edgeql/compiler/ir"
	"github.com/brimdata/edgeql/pkg/charm"
	"github.com/brimdata/edgeql/pkg/repl"
	"github.com/brimdata/edgeql/pkg/terminal/color"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var Cmd = &charm.Spec{
	Name:  "ir",
	Usage: "ir [options] query",
	Short: "compile a query and print its query graph",
	Long: `
The ir command compiles each statement of a block against the schema and
prints the resulting query graphs.  Statements compile concurrently and
every failing statement is reported.

With -e, the text is compiled as a single expression.  With -repl, the
command reads queries interactively and prints the graph of each.  With
-stats, compile counts and latencies are printed to stderr on exit.`,
	New: New,
}

type Command struct {
	*root.Command
	output   outputflags.Flags
	expr     bool
	repl     bool
	history  string
	stats    bool
	includes cli.Includes

	ctx      context.Context
	registry *prometheus.Registry
	metrics  *compiler.Metrics
}

func New(parent charm.Command, f *flag.FlagSet) (charm.Command, error) {
	c := &Command{Command: parent.(*root.Command)}
	c.output.SetFlags(f)
	f.BoolVar(&c.expr, "e", false, "compile an expression rather than statements")
	f.BoolVar(&c.repl, "repl", false, "enter an interactive loop")
	f.StringVar(&c.history, "history", "", "file keeping -repl history across sessions")
	f.BoolVar(&c.stats, "stats", false, "print compiler metrics on exit")
	f.Var(&c.includes, "I", "source file containing query text (may be repeated)")
	return c, nil
}

func (c *Command) Run(args []string) error {
	ctx, cleanup, err := c.Init(&c.output)
	if err != nil {
		return err
	}
	defer cleanup()
	if c.output.JSON() {
		return errors.New("query graphs have no JSON form: use -f text")
	}
	c.ctx = ctx
	c.registry = prometheus.NewRegistry()
	c.metrics = compiler.NewMetrics(c.registry)
	if c.stats {
		defer c.printStats(os.Stderr)
	}
	if c.repl {
		return repl.Run(c, c.history)
	}
	if len(args) == 0 && len(c.includes) == 0 {
		return charm.NeedHelp
	}
	src, err := cli.ReadQuery(c.includes, args)
	if err != nil {
		return err
	}
	return c.compile(os.Stdout, src)
}

func (c *Command) compile(w io.Writer, src string) error {
	lookup, err := c.SchemaFlags.Lookup()
	if err != nil {
		return err
	}
	opts := []compiler.Option{
		compiler.WithModuleAliases(c.SchemaFlags.Aliases()),
		compiler.WithLogger(c.Logger),
		compiler.WithMetrics(c.metrics),
	}
	if c.expr {
		e, err := compiler.CompileFragmentToIR(c.ctx, src, lookup, opts...)
		if err != nil {
			return err
		}
		if g, ok := e.(*ir.GraphExpr); ok {
			_, err = io.WriteString(w, c.highlight(ir.Dump(g)))
		} else {
			_, err = fmt.Fprintln(w, ir.DumpExpr(e))
		}
		return err
	}
	graphs, err := compiler.CompileAll(c.ctx, src, lookup, opts...)
	if err != nil {
		return err
	}
	for k, g := range graphs {
		if k > 0 {
			fmt.Fprintln(w)
		}
		if _, err := io.WriteString(w, c.highlight(ir.Dump(g))); err != nil {
			return err
		}
	}
	return nil
}

// highlight colors the label that begins each line of a dump.
func (c *Command) highlight(dump string) string {
	if !color.Enabled {
		return dump
	}
	lines := strings.SplitAfter(dump, "\n")
	for k, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		if label, rest, ok := strings.Cut(trimmed, ":"); ok && !strings.Contains(label, " ") {
			lines[k] = line[:len(line)-len(trimmed)] + color.Blue.Colorize(label) + ":" + rest
		}
	}
	return strings.Join(lines, "")
}

func (c *Command) Prompt() string {
	return "edgeql> "
}

func (c *Command) Consume(line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "quit", "exit", `\q`:
		return true
	}
	if err := c.compile(os.Stdout, line); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Colorize(err.Error()))
	}
	return false
}

func (c *Command) printStats(w io.Writer) {
	families, err := c.registry.Gather()
	if err != nil {
		fmt.Fprintln(w, err)
		return
	}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			fmt.Fprintf(w, "%s%s %s\n", f.GetName(), labels(m), value(f.GetType(), m))
		}
	}
}

func labels(m *dto.Metric) string {
	var pairs []string
	for _, l := range m.GetLabel() {
		pairs = append(pairs, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
	}
	if len(pairs) == 0 {
		return ""
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

func value(t dto.MetricType, m *dto.Metric) string {
	switch t {
	case dto.MetricType_COUNTER:
		return fmt.Sprint(m.GetCounter().GetValue())
	case dto.MetricType_HISTOGRAM:
		h := m.GetHistogram()
		return fmt.Sprintf("count=%d sum=%gs", h.GetSampleCount(), h.GetSampleSum())
	}
	return "?"
}
