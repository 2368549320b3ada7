// Package outputflags selects how a command renders its results.
package outputflags

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/brimdata/edgeql/pkg/terminal"
	"github.com/brimdata/edgeql/pkg/terminal/color"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Flags struct {
	Format string
	color  bool
}

func (f *Flags) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&f.Format, "f", FormatText, "output format (text, json)")
	fs.BoolVar(&f.color, "color", terminal.IsTerminal(os.Stdout), "enable color in text output")
}

func (f *Flags) Init() error {
	switch f.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown output format: %q", f.Format)
	}
	color.Enabled = f.color
	return nil
}

func (f *Flags) JSON() bool {
	return f.Format == FormatJSON
}

// Write writes v as indented JSON or, for text output, the string
// returned by text.
func (f *Flags) Write(w io.Writer, v any, text func() string) error {
	if f.JSON() {
		b, err := json.MarshalIndent(v, "", "    ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	_, err := io.WriteString(w, text())
	return err
}
