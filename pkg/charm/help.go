package charm

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/brimdata/edgeql/pkg/terminal"
	"github.com/brimdata/edgeql/pkg/terminal/color"
	"github.com/kr/text"
)

var Help = &Spec{
	Name:  "help",
	Usage: "help [command]",
	Short: "display help for a command",
	Long: `
For help on the top-level command just type "help".
For help on a subcommand, type "help command" where command is the name of
the command.  For help on command nested further, type "help cmd1 cmd2" and
so forth.`,
	HiddenFlags: "v",
	New: func(parent Command, f *flag.FlagSet) (Command, error) {
		c := &HelpCommand{}
		f.BoolVar(&c.vflag, "v", false, "show hidden commands and flags")
		return c, nil
	},
}

type HelpCommand struct {
	vflag bool
}

func (c *HelpCommand) Run(args []string) error {
	p, err := c.search(args)
	if err != nil {
		return err
	}
	c.help(os.Stderr, p)
	return nil
}

func (c *HelpCommand) search(args []string) (path, error) {
	parent, err := newInstance(nil, Help.Root())
	if err != nil {
		return nil, err
	}
	p := path{parent}
	for k, arg := range args {
		spec := parent.spec.lookupSub(arg)
		if spec == nil {
			return nil, fmt.Errorf("no such command: %s", strings.Join(args[:k+1], " "))
		}
		child, err := newInstance(parent.command, spec)
		if err != nil {
			return nil, err
		}
		p = append(p, child)
		parent = child
	}
	return p, nil
}

func displayHelp(p path, vflag bool) {
	c := &HelpCommand{vflag: vflag}
	c.help(os.Stderr, p)
}

func (c *HelpCommand) help(w io.Writer, p path) {
	spec := p.last().spec
	helpItem(w, "NAME", spec.Name+" - "+spec.Short)
	helpDesc(w, "USAGE", spec.Usage)
	helpList(w, "OPTIONS", buildOptions(p, c.vflag))
	if len(spec.children) > 0 {
		helpList(w, "COMMANDS", c.commands(spec))
	}
	helpDesc(w, "DESCRIPTION", spec.Long)
}

func (c *HelpCommand) commands(target *Spec) []string {
	var lines []string
	for _, cmd := range target.children {
		name := cmd.Name
		if cmd.Hidden {
			if !c.vflag {
				continue
			}
			name = "[" + name + "]"
		}
		lines = append(lines, name+" - "+cmd.Short)
	}
	return lines
}

// buildOptions lists the flags of the last command followed by those of
// its ancestors, each group headed by the command path.
func buildOptions(p path, vflag bool) []string {
	options := p.last().options(vflag)
	if len(options) == 0 {
		options = []string{"no flags for this command"}
	}
	for k := len(p) - 2; k >= 0; k-- {
		parent := p[k].options(vflag)
		if len(parent) == 0 {
			continue
		}
		options = append(options, "", "["+p[:k+1].pathname()+" flags]")
		options = append(options, parent...)
	}
	return options
}

// flagMap maps each name in the comma-separated flags to true.
func flagMap(flags string) map[string]bool {
	m := make(map[string]bool)
	for _, flag := range strings.Split(flags, ",") {
		if flag = strings.TrimSpace(flag); flag != "" {
			m[flag] = true
		}
	}
	return m
}

const tab = "    "

func formatParagraph(body, tab string, lineWidth int) string {
	var chunks []string
	for _, paragraph := range strings.Split(body, "\n\n") {
		var chunk string
		if len(paragraph) < lineWidth {
			chunk = strings.TrimRight(paragraph, " \t\n")
		} else {
			paragraph = text.Wrap(strings.TrimSpace(paragraph), lineWidth)
			chunk = strings.Join(strings.Split(paragraph, "\n"), "\n"+tab)
		}
		chunks = append(chunks, chunk)
	}
	body = strings.TrimRight(strings.Join(chunks, "\n\n"+tab), " \t\n")
	return tab + body + "\n\n"
}

func header(heading string) string {
	var s color.Stack
	return s.Push(color.Bold) + heading + s.Pop()
}

func helpItem(w io.Writer, heading, body string) {
	fmt.Fprint(w, header(heading)+"\n"+tab+body+"\n\n")
}

func helpDesc(w io.Writer, heading, body string) {
	body = tab + strings.TrimSpace(body) + "\n\n"
	lineWidth := terminal.Width() - len(tab) - 5
	if len(body) > lineWidth {
		body = formatParagraph(strings.TrimSpace(body), tab, lineWidth)
	}
	fmt.Fprint(w, header(heading)+"\n"+body)
}

func helpList(w io.Writer, heading string, lines []string) {
	fmt.Fprint(w, header(heading)+"\n"+tab+strings.Join(lines, "\n"+tab)+"\n\n")
}
