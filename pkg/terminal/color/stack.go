package color

import "io"

// Stack tracks nested colors.  Ending the innermost color restores the
// one around it, or resets the terminal when none remains.
type Stack []Code

// Push records c and returns its escape sequence, or the empty string when
// color is disabled.
func (s *Stack) Push(c Code) string {
	if !Enabled {
		return ""
	}
	*s = append(*s, c)
	return c.String()
}

// Pop drops the innermost color and returns the sequence that restores
// the enclosing state.  Popping back to the same color returns nothing.
func (s *Stack) Pop() string {
	if len(*s) == 0 {
		return ""
	}
	top := (*s)[len(*s)-1]
	*s = (*s)[:len(*s)-1]
	if len(*s) == 0 {
		return Reset.String()
	}
	if next := (*s)[len(*s)-1]; next != top {
		return next.String()
	}
	return ""
}

// Start pushes code and writes its sequence to w.
func (s *Stack) Start(w io.Writer, code Code) error {
	return write(w, s.Push(code))
}

// End pops the innermost color and writes the restoring sequence to w.
func (s *Stack) End(w io.Writer) error {
	if !Enabled {
		return nil
	}
	return write(w, s.Pop())
}

func write(w io.Writer, seq string) error {
	if seq == "" {
		return nil
	}
	_, err := io.WriteString(w, seq)
	return err
}
