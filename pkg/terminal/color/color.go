// Package color emits ANSI escape sequences for terminal output.
package color

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// Enabled turns color output on.  It is initially true when stderr is a
// terminal.
var Enabled = term.IsTerminal(int(os.Stderr.Fd()))

type Code int

const (
	Reset Code = 0
	Bold  Code = 1
	Red   Code = 31
	Green Code = 32
	Blue  Code = 34
	Gray  Code = 90
)

func (c Code) String() string {
	return fmt.Sprintf("\033[%dm", int(c))
}

// Colorize wraps s in c when color is enabled.
func (c Code) Colorize(s string) string {
	if !Enabled {
		return s
	}
	return c.String() + s + Reset.String()
}
