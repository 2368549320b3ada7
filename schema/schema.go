// Package schema models the read-only view of a database schema that the
// compiler resolves names against: object types with their pointers,
// scalar types, and functions, all addressed by qualified name.
package schema

import (
	"golang.org/x/exp/slices"
)

// Class selects the kind of schema object a lookup should match.
type Class int

const (
	ClassAny Class = iota
	ClassType
	ClassObjectType
	ClassScalarType
	ClassFunction
)

func (c Class) String() string {
	switch c {
	case ClassAny:
		return "object"
	case ClassType:
		return "type"
	case ClassObjectType:
		return "object type"
	case ClassScalarType:
		return "scalar type"
	case ClassFunction:
		return "function"
	}
	return "unknown"
}

// Object is anything addressable by name in a Snapshot.
type Object interface {
	SchemaName() Name
}

// Type is an ObjectType or a ScalarType.
type Type interface {
	Object
	// IsSubclass reports whether the type is t or inherits from t.
	IsSubclass(t Type) bool
	typeNode()
}

func matches(o Object, class Class) bool {
	switch class {
	case ClassAny:
		return true
	case ClassType:
		_, ok := o.(Type)
		return ok
	case ClassObjectType:
		_, ok := o.(*ObjectType)
		return ok
	case ClassScalarType:
		_, ok := o.(*ScalarType)
		return ok
	case ClassFunction:
		_, ok := o.(*Function)
		return ok
	}
	return false
}

type ScalarType struct {
	Name Name
	Base *ScalarType
}

func (s *ScalarType) SchemaName() Name { return s.Name }
func (*ScalarType) typeNode()          {}

func (s *ScalarType) IsSubclass(t Type) bool {
	for b := s; b != nil; b = b.Base {
		if Type(b) == t {
			return true
		}
	}
	return false
}

// ObjectType is a node type in the schema graph.  Own holds the pointers
// declared on the type itself; inherited pointers are found through the
// MRO.
type ObjectType struct {
	Name     Name
	Abstract bool
	Bases    []*ObjectType
	Own      []*Pointer
	mro      []*ObjectType
	children []*ObjectType
	// backlinks are the pointers of any type that target o.
	backlinks []*Pointer
}

func (o *ObjectType) SchemaName() Name { return o.Name }
func (*ObjectType) typeNode()          {}

// MRO returns the method resolution order of o, starting with o itself.
func (o *ObjectType) MRO() []*ObjectType {
	return o.mro
}

func (o *ObjectType) IsSubclass(t Type) bool {
	other, ok := t.(*ObjectType)
	if !ok {
		return false
	}
	return slices.Contains(o.mro, other)
}

// Children returns the types that directly or indirectly extend o.
func (o *ObjectType) Children() []*ObjectType {
	return o.children
}

// Pointer returns the outbound pointer called name declared on o or
// on one of its ancestors.
func (o *ObjectType) Pointer(name string) *Pointer {
	for _, t := range o.mro {
		for _, p := range t.Own {
			if p.Name == name {
				return p
			}
		}
	}
	return nil
}

// Pointers returns every pointer visible on o.  Pointers declared closer
// to o in the MRO shadow those of the same name further up.
func (o *ObjectType) Pointers() []*Pointer {
	var out []*Pointer
	seen := make(map[string]bool)
	for k := len(o.mro) - 1; k >= 0; k-- {
		for _, p := range o.mro[k].Own {
			if !seen[p.Name] {
				seen[p.Name] = true
				out = append(out, p)
			}
		}
	}
	for k, p := range out {
		if q := o.Pointer(p.Name); q != p {
			out[k] = q
		}
	}
	return out
}

// SearchableLinks returns the pointers of o configured for text search.
func (o *ObjectType) SearchableLinks() []*Pointer {
	var out []*Pointer
	for _, p := range o.Pointers() {
		if p.Searchable {
			out = append(out, p)
		}
	}
	return out
}

// ResolvePointer finds the pointer called name leaving o in direction
// dir.  An inbound pointer is a pointer of any type whose target is o
// or an ancestor of o.  When far is not nil, only pointers whose far
// endpoint is compatible with far match.  When children is true and
// nothing matches on o, the subtypes of o are searched as well.
func (o *ObjectType) ResolvePointer(name, dir string, far Type, children bool) *Pointer {
	ptrs := o.ptrsAscending(name, dir)
	if len(ptrs) == 0 && children {
		for _, c := range o.children {
			ptrs = append(ptrs, c.ptrsAscending(name, dir)...)
			if len(ptrs) > 0 {
				break
			}
		}
	}
	if far != nil {
		var narrowed []*Pointer
		for _, p := range ptrs {
			end := p.FarEndpoint(dir)
			if end != nil && (end.IsSubclass(far) || far.IsSubclass(end)) {
				narrowed = append(narrowed, p)
			}
		}
		ptrs = narrowed
	}
	if len(ptrs) == 0 {
		return nil
	}
	return ptrs[0]
}

func (o *ObjectType) ptrsAscending(name, dir string) []*Pointer {
	if dir != Inbound {
		if p := o.Pointer(name); p != nil {
			return []*Pointer{p}
		}
		return nil
	}
	var out []*Pointer
	for _, t := range o.mro {
		for _, p := range t.backlinks {
			if p.Name == name && !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}

const (
	Outbound = ">"
	Inbound  = "<"
)

type PointerKind int

const (
	Link PointerKind = iota
	Property
)

func (k PointerKind) String() string {
	if k == Property {
		return "property"
	}
	return "link"
}

// Mapping is the cardinality of a pointer as seen from both ends.
type Mapping int

const (
	ManyToOne Mapping = iota
	OneToOne
	OneToMany
	ManyToMany
)

// Names of the implicit pointers every object type and link carries.
const (
	IDPointer     = "id"
	SourcePointer = "source"
	TargetPointer = "target"
	LinkIDPointer = "linkid"
)

// Pointer is a link or property.  Source is the *ObjectType that declares
// it, or the link *Pointer for a link property.
type Pointer struct {
	Name       string
	Kind       PointerKind
	Source     Object
	Target     Type
	Required   bool
	Mapping    Mapping
	Eager      bool
	Searchable bool
	Computable bool
	// Properties are the link properties, including the implicit
	// source and target endpoints.
	Properties []*Pointer
}

func (p *Pointer) SchemaName() Name {
	if p.Source == nil {
		return Name{Name: p.Name}
	}
	src := p.Source.SchemaName()
	return Name{Module: src.Module, Name: src.Name + "." + p.Name}
}

// Singular reports whether following p in direction dir yields at most
// one object.
func (p *Pointer) Singular(dir string) bool {
	if dir == Inbound {
		return p.Mapping == OneToOne || p.Mapping == OneToMany
	}
	return p.Mapping == OneToOne || p.Mapping == ManyToOne
}

// FarEndpoint is the type reached by following p in direction dir.
func (p *Pointer) FarEndpoint(dir string) Type {
	if dir == Inbound {
		if t, ok := p.Source.(Type); ok {
			return t
		}
		return nil
	}
	return p.Target
}

// Atomic reports whether p targets a scalar.
func (p *Pointer) Atomic() bool {
	_, ok := p.Target.(*ScalarType)
	return ok
}

// IsLinkProperty reports whether p is a property of a link.
func (p *Pointer) IsLinkProperty() bool {
	_, ok := p.Source.(*Pointer)
	return ok
}

// IsEndpoint reports whether p is the implicit source or target
// property of a link.
func (p *Pointer) IsEndpoint() bool {
	return p.IsLinkProperty() && (p.Name == SourcePointer || p.Name == TargetPointer)
}

// Property returns the link property called name.
func (p *Pointer) Property(name string) *Pointer {
	for _, prop := range p.Properties {
		if prop.Name == name {
			return prop
		}
	}
	return nil
}

// HasUserDefinedProperties reports whether p has link properties other
// than the implicit ones.
func (p *Pointer) HasUserDefinedProperties() bool {
	for _, prop := range p.Properties {
		if !prop.IsEndpoint() && prop.Name != LinkIDPointer {
			return true
		}
	}
	return false
}

// Function is a function signature.  Several functions may share a name
// within a module.
type Function struct {
	Name      Name
	Params    []string
	Returns   Type
	Aggregate bool
	Window    bool
}

func (f *Function) SchemaName() Name { return f.Name }
