//go:generate mockgen -destination=./mock/mock_lookup.go -package=mock github.com/brimdata/edgeql/schema Lookup

package schema

import (
	"sort"

	zqe "github.com/brimdata/edgeql/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Lookup resolves names against a schema.  Implementations must be safe
// for concurrent use since compilations share one Lookup.
type Lookup interface {
	// Get returns the object called name that matches class.  A bare
	// name is qualified with the default module of aliases and then
	// with std.  A module prefix is mapped through aliases first.
	// Get fails with a NotFound error when nothing matches.
	Get(name string, aliases ModuleAliases, class Class) (Object, error)
	// GetFunctions returns every function called name, resolved the
	// same way as Get.
	GetFunctions(name string, aliases ModuleAliases) ([]*Function, error)
}

// Snapshot is an immutable schema built by Build.
type Snapshot struct {
	modules   map[string]bool
	objects   map[Name]Object
	functions map[Name][]*Function
	types     []*ObjectType
}

var _ Lookup = (*Snapshot)(nil)

func (s *Snapshot) HasModule(module string) bool {
	return s.modules[module]
}

// Modules returns the module names in sorted order.
func (s *Snapshot) Modules() []string {
	mods := maps.Keys(s.modules)
	slices.Sort(mods)
	return mods
}

// Types returns the object types in definition order.
func (s *Snapshot) Types() []*ObjectType {
	return s.types
}

// Functions returns every function ordered by qualified name.
func (s *Snapshot) Functions() []*Function {
	var out []*Function
	for _, fns := range s.functions {
		out = append(out, fns...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Name.String() < out[j].Name.String()
	})
	return out
}

// resolveModule maps the module part of a name through aliases.  A bare
// name with no default alias belongs to DefaultModule.
func resolveModule(module string, aliases ModuleAliases) string {
	if m, ok := aliases[module]; ok && m != "" {
		return m
	}
	if module == "" {
		return DefaultModule
	}
	return module
}

// candidates yields the qualified names a lookup of name tries, in order.
func (s *Snapshot) candidates(name string, aliases ModuleAliases) []Name {
	n := ParseName(name)
	implicit := n.Module == ""
	module := resolveModule(n.Module, aliases)
	var out []Name
	if module != "" && s.modules[module] {
		out = append(out, Name{Module: module, Name: n.Name})
	}
	if implicit && module != StdModule {
		out = append(out, Name{Module: StdModule, Name: n.Name})
	}
	return out
}

func (s *Snapshot) Get(name string, aliases ModuleAliases, class Class) (Object, error) {
	for _, n := range s.candidates(name, aliases) {
		if class == ClassFunction {
			if fns := s.functions[n]; len(fns) > 0 {
				return fns[0], nil
			}
			continue
		}
		if o, ok := s.objects[n]; ok && matches(o, class) {
			return o, nil
		}
	}
	return nil, s.notFound("schema item", name, aliases, func(n Name) bool {
		o, ok := s.objects[n]
		return ok && matches(o, class)
	})
}

func (s *Snapshot) GetFunctions(name string, aliases ModuleAliases) ([]*Function, error) {
	for _, n := range s.candidates(name, aliases) {
		if fns := s.functions[n]; len(fns) > 0 {
			return fns, nil
		}
	}
	return nil, s.notFound("function", name, aliases, func(n Name) bool {
		return len(s.functions[n]) > 0
	})
}

func (s *Snapshot) notFound(what, name string, aliases ModuleAliases, ok func(Name) bool) error {
	n := ParseName(name)
	modules := []string{resolveModule(n.Module, aliases), StdModule}
	var names []string
	for _, o := range maps.Keys(s.objects) {
		if slices.Contains(modules, o.Module) && ok(o) {
			names = append(names, o.Name)
		}
	}
	for _, f := range maps.Keys(s.functions) {
		if slices.Contains(modules, f.Module) && ok(f) {
			names = append(names, f.Name)
		}
	}
	slices.Sort(names)
	names = slices.Compact(names)
	err := zqe.E(zqe.NotFound, "reference to a non-existent %s: %s", what, name)
	if hint := Suggest(n.Name, names); hint != "" {
		err.(*zqe.Error).Hint = hint
	}
	return err
}
