package ir

import (
	"strings"

	"github.com/brimdata/edgeql/schema"
)

// PathStep is one traversal in a LinearPath.  A nil Target is a wildcard
// matching any far endpoint.
type PathStep struct {
	Ptr       *schema.Pointer
	Direction string
	Target    schema.Type
}

// LinearPath is the identity of a graph position: the root type followed
// by the (pointer, direction, target) steps taken from it.  Two IR nodes
// with equal LinearPaths denote the same set of objects and may be
// merged.  A LinearPath is a value; Extend and WithWildcardTail return
// new paths.
type LinearPath struct {
	Root  schema.Type
	Steps []PathStep
}

func NewLinearPath(root schema.Type) LinearPath {
	return LinearPath{Root: root}
}

func (p LinearPath) IsZero() bool {
	return p.Root == nil && len(p.Steps) == 0
}

func (p LinearPath) Len() int {
	return len(p.Steps) + 1
}

// Extend returns p followed by one more step.
func (p LinearPath) Extend(ptr *schema.Pointer, dir string, target schema.Type) LinearPath {
	steps := make([]PathStep, len(p.Steps), len(p.Steps)+1)
	copy(steps, p.Steps)
	return LinearPath{Root: p.Root, Steps: append(steps, PathStep{Ptr: ptr, Direction: dir, Target: target})}
}

// Tail returns the type at the end of p.
func (p LinearPath) Tail() schema.Type {
	if len(p.Steps) == 0 {
		return p.Root
	}
	return p.Steps[len(p.Steps)-1].Target
}

// WithWildcardTail returns p with the type at its end cleared.
func (p LinearPath) WithWildcardTail() LinearPath {
	if len(p.Steps) == 0 {
		return LinearPath{}
	}
	steps := make([]PathStep, len(p.Steps))
	copy(steps, p.Steps)
	steps[len(steps)-1].Target = nil
	return LinearPath{Root: p.Root, Steps: steps}
}

func (p LinearPath) Equal(o LinearPath) bool {
	if p.Root != o.Root || len(p.Steps) != len(o.Steps) {
		return false
	}
	for k, s := range p.Steps {
		if s != o.Steps[k] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether o is a prefix of p.
func (p LinearPath) HasPrefix(o LinearPath) bool {
	if p.Root != o.Root || len(o.Steps) > len(p.Steps) {
		return false
	}
	for k, s := range o.Steps {
		if s != p.Steps[k] {
			return false
		}
	}
	return true
}

// Key returns a string that is equal for equal paths within one schema
// snapshot.
func (p LinearPath) Key() string {
	var b strings.Builder
	b.WriteString(typeName(p.Root))
	for _, s := range p.Steps {
		b.WriteByte('[')
		b.WriteString(s.Direction)
		if s.Ptr != nil {
			b.WriteString(s.Ptr.SchemaName().String())
		}
		b.WriteByte(']')
		b.WriteString(typeName(s.Target))
	}
	return b.String()
}

func (p LinearPath) String() string {
	var b strings.Builder
	b.WriteString(typeName(p.Root))
	for _, s := range p.Steps {
		b.WriteByte('[')
		b.WriteString(s.Direction)
		if s.Ptr != nil {
			b.WriteString(s.Ptr.Name)
		}
		b.WriteByte(']')
		b.WriteString(typeName(s.Target))
	}
	return b.String()
}

func typeName(t schema.Type) string {
	if t == nil {
		return "%"
	}
	return t.SchemaName().String()
}
