package charm

import (
	"fmt"
	"sort"
	"strings"
)

// path is the chain of command instances from the root to the command
// being run.
type path []*instance

func (p path) run(args []string) error {
	err := p.last().command.Run(args)
	if err != ErrNoRun {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("%s: a command is required (one of %s); see %q", p.pathname(), p.subCommands(), p.pathname("-h"))
	}
	return fmt.Errorf("%s: unknown command %q (one of %s)", p.pathname(), args[0], p.subCommands())
}

func (p path) last() *instance {
	return p[len(p)-1]
}

func (p path) pathname(args ...string) string {
	var b strings.Builder
	for k, inst := range p {
		if k > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(inst.spec.Name)
	}
	for _, arg := range args {
		b.WriteByte(' ')
		b.WriteString(arg)
	}
	return b.String()
}

// subCommands lists the visible children of the last command in
// alphabetical order.
func (p path) subCommands() string {
	var names []string
	for _, spec := range p.last().spec.children {
		if !spec.Hidden {
			names = append(names, spec.Name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
