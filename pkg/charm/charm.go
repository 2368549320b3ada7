// Package charm is a minimalist CLI framework inspired by cobra and urfave/cli.
package charm

import (
	"errors"
	"flag"
	"io"
)

var (
	NeedHelp = errors.New("help")
	ErrNoRun = errors.New("no run method")
)

type Constructor func(Command, *flag.FlagSet) (Command, error)

type Command interface {
	Run([]string) error
}

type Spec struct {
	Name  string
	Usage string
	Short string
	Long  string
	New   Constructor
	// Hidden hides this command from help.
	Hidden bool
	// HiddenFlags is a comma-separated list of flags left out of help.
	HiddenFlags string
	children    []*Spec
	parent      *Spec
}

func (c *Spec) Add(child *Spec) {
	c.children = append(c.children, child)
	child.parent = c
}

func (c *Spec) Root() *Spec {
	for c.parent != nil {
		c = c.parent
	}
	return c
}

func (c *Spec) lookupSub(name string) *Spec {
	for _, child := range c.children {
		if name == child.Name {
			return child
		}
	}
	return nil
}

// ExecRoot runs the command named by args.  A -h flag anywhere on the
// command line, or a command returning NeedHelp, prints help for the
// deepest command named.
func (s *Spec) ExecRoot(args []string) error {
	p, rest, err := parse(s, args)
	if err == nil {
		err = p.run(rest)
	}
	if err == NeedHelp {
		p, err := parseHelp(s, args)
		if err != nil {
			return err
		}
		displayHelp(p, false)
		return nil
	}
	return err
}

// parse instantiates each command along args, parsing each command's flags
// before looking for a sub-command.
func parse(spec *Spec, args []string) (path, []string, error) {
	var p path
	var parent Command
	for {
		inst, err := newInstance(parent, spec)
		if err != nil {
			return nil, nil, err
		}
		p = append(p, inst)
		if args, err = parseFlags(inst.flags, args); err != nil {
			return p, nil, err
		}
		if len(args) == 0 {
			return p, args, nil
		}
		child := spec.lookupSub(args[0])
		if child == nil {
			return p, args, nil
		}
		spec, parent, args = child, inst.command, args[1:]
	}
}

// parseHelp builds the command path named by args.  Each level's flags are
// parsed with its own flag set so that flag values are not mistaken for
// command names.  Parsing stops at -h or at the first bad flag.
func parseHelp(spec *Spec, args []string) (path, error) {
	var p path
	var parent Command
	for {
		inst, err := newInstance(parent, spec)
		if err != nil {
			return nil, err
		}
		p = append(p, inst)
		if args, err = parseFlags(inst.flags, args); err != nil || len(args) == 0 {
			return p, nil
		}
		child := spec.lookupSub(args[0])
		if child == nil {
			return p, nil
		}
		spec, parent, args = child, inst.command, args[1:]
	}
}

func parseFlags(flags *flag.FlagSet, args []string) ([]string, error) {
	flags.SetOutput(io.Discard)
	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, NeedHelp
		}
		return nil, err
	}
	return flags.Args(), nil
}
