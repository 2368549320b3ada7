// Package zqe provides a mechanism to create or wrap errors with information
// that will aid in reporting them to users and returning them to api callers.
package zqe

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
)

// A Kind represents a class of error. API layers will typically convert
// these into a domain specific error representation; for example, the CLI
// renders Syntax errors against the query text while Internal errors are
// reported as compiler bugs.
type Kind int

const (
	Other Kind = iota
	Invalid
	NotFound
	Exists
	Syntax
	Reference
	Domain
	Tree
	Internal
	RecursionLimit
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case Invalid:
		return "invalid operation"
	case NotFound:
		return "item does not exist"
	case Exists:
		return "item already exists"
	case Syntax:
		return "syntax error"
	case Reference:
		return "reference error"
	case Domain:
		return "domain error"
	case Tree:
		return "tree error"
	case Internal:
		return "internal compiler error"
	case RecursionLimit:
		return "recursion limit exceeded"
	}
	return "unknown error kind"
}

// Span locates an error in the query text as a pair of byte offsets.
// End is inclusive.  A negative Pos means the error has no location.
type Span struct {
	Pos int
	End int
}

// NoSpan is the Span of an error with no source location.
var NoSpan = Span{Pos: -1, End: -1}

// Hint is a remediation suggestion attached to an error.
type Hint string

type Error struct {
	Kind Kind
	Err  error
	Hint string
	Span Span
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}

func (e *Error) Error() string {
	b := &bytes.Buffer{}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns just the Err.Error() string, if present, or the Kind
// string description. The intent is to allow zqe users a way to avoid
// embedding the Kind description as happens with Error().
func (e *Error) Message() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Kind != Other {
		return e.Kind.String()
	}
	return "no error"
}

// HasSpan reports whether e points into the query text.
func (e *Error) HasSpan() bool {
	return e.Span.Pos >= 0
}

// Function E generates an error from any mix of:
// - a Kind
// - a Span
// - a Hint
// - an existing error
// - a string and optional formatting verbs, like fmt.Errorf (including support
//	for the `%w` verb).
//
// The string & format verbs must be last in the arguments, if present.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("no args to errors.E")
	}
	e := &Error{Span: NoSpan}

	for i, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case Span:
			e.Span = arg
		case Hint:
			e.Hint = string(arg)
		case error:
			e.Err = arg
		case string:
			e.Err = fmt.Errorf(arg, args[i+1:]...)
			return e
		default:
			_, file, line, _ := runtime.Caller(1)
			return fmt.Errorf("unknown type %T value %v in errors.E call at %v:%v", arg, arg, file, line)
		}
	}

	return e
}

// KindOf returns the Kind of the outermost *Error in err's chain or Other.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// HintOf returns the first non-empty hint in err's chain.
func HintOf(err error) string {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return ""
		}
		if e.Hint != "" {
			return e.Hint
		}
		err = e.Err
	}
	return ""
}

func IsSyntax(err error) bool         { return KindOf(err) == Syntax }
func IsReference(err error) bool      { return KindOf(err) == Reference }
func IsDomain(err error) bool         { return KindOf(err) == Domain }
func IsTree(err error) bool           { return KindOf(err) == Tree }
func IsInternal(err error) bool       { return KindOf(err) == Internal }
func IsRecursionLimit(err error) bool { return KindOf(err) == RecursionLimit }
func IsNotFound(err error) bool       { return KindOf(err) == NotFound }

// IsUserError reports whether err describes a problem with the input
// rather than a defect in the compiler.
func IsUserError(err error) bool {
	switch KindOf(err) {
	case Internal, Tree, Other:
		return false
	}
	return true
}
