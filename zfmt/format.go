package zfmt

import (
	"fmt"
	"strings"
)

// formatter accumulates EdgeQL text.  A line break requested with ret is
// held back until the next write so that trailing breaks never appear
// and the new line starts at the indentation in effect at that write.
type formatter struct {
	strings.Builder
	tab     int
	depth   int
	pending bool
}

// flush emits a held-back line break without indenting.
func (f *formatter) flush() {
	if f.pending {
		f.WriteByte('\n')
		f.pending = false
	}
}

// write emits args[0], formatted with args[1:] when there are any.
func (f *formatter) write(args ...interface{}) {
	if f.pending {
		f.flush()
		f.WriteString(strings.Repeat(" ", f.depth*f.tab))
	}
	switch len(args) {
	case 0:
	case 1:
		f.WriteString(args[0].(string))
	default:
		fmt.Fprintf(f, args[0].(string), args[1:]...)
	}
}

// open writes args and indents the lines that follow.
func (f *formatter) open(args ...interface{}) {
	f.write(args...)
	f.depth++
}

func (f *formatter) close() {
	f.depth--
}

func (f *formatter) ret() {
	f.pending = true
}

func (f *formatter) space() {
	f.write(" ")
}

// list calls fn for each index in [0, n) separated by sep.
func (f *formatter) list(n int, sep string, fn func(int)) {
	for k := 0; k < n; k++ {
		if k > 0 {
			f.write(sep)
		}
		fn(k)
	}
}
