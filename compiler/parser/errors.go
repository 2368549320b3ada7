package parser

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// LocalizeError converts every parse error combined in errs into a
// LocalizedError.  If any error carries no position, errs is returned as
// is.
func (s *SourceSet) LocalizeError(errs error) error {
	var list LocalizedErrors
	for _, err := range multierr.Errors(errs) {
		var perr *Error
		if !errors.As(err, &perr) {
			return errs
		}
		list = append(list, newLocalizedError(s, perr))
	}
	if len(list) > 0 {
		return list
	}
	return nil
}

// LocalizedError is a parse error with nice formatting.  It includes the source code
// line containing the error.
type LocalizedError struct {
	Kind     string   `json:"kind" unpack:""`
	Filename string   `json:"filename"`
	Line     string   `json:"line"` // contains no newlines
	Open     Position `json:"open"`
	Close    Position `json:"close"`
	Msg      string   `json:"error"`
	Hint     string   `json:"hint,omitempty"`
}

func newLocalizedError(s *SourceSet, perr *Error) *LocalizedError {
	src := s.SourceOf(perr.Pos)
	filename, start := src.Position(perr.Pos)
	_, end := src.Position(perr.End)
	var line string
	if perr.Pos >= 0 {
		line = src.LineOfPos(s, perr.Pos)
	}
	return &LocalizedError{
		Kind:     "LocalizedError",
		Filename: filename,
		Open:     start,
		Close:    end,
		Line:     line,
		Msg:      perr.Msg,
		Hint:     perr.Hint,
	}
}

func (e *LocalizedError) Message() string { return e.Msg }
func (e *LocalizedError) Pos() int        { return e.Open.Pos }
func (e *LocalizedError) End() int        { return e.Close.Pos }

func (e *LocalizedError) Error() string {
	var b strings.Builder
	b.WriteString(e.Msg)
	b.WriteString(" (")
	if e.Filename != "" {
		fmt.Fprintf(&b, "%s: ", e.Filename)
	}
	if e.Open.Line >= 1 {
		fmt.Fprintf(&b, "line %d, ", e.Open.Line)
	}
	fmt.Fprintf(&b, "column %d):\n", e.Open.Column)
	b.WriteString(e.errorContext())
	if e.Hint != "" {
		fmt.Fprintf(&b, "\nhint: %s", e.Hint)
	}
	return b.String()
}

func (e *LocalizedError) errorContext() string {
	var b strings.Builder
	b.WriteString(e.Line + "\n")
	if e.Close.IsValid() && e.Close.Line == e.Open.Line {
		formatSpanError(&b, e.Line, e.Open, e.Close)
	} else {
		formatPointError(&b, e.Open)
	}
	return b.String()
}

type LocalizedErrors []*LocalizedError

func (e LocalizedErrors) Error() string {
	var b strings.Builder
	for i, err := range e {
		if i != 0 {
			b.WriteByte('\n')
		}
		b.WriteString(err.Error())
	}
	return b.String()
}
