package schema

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Name is a fully or partially qualified schema name.  An empty Module
// means the name is unqualified.
type Name struct {
	Module string `json:"module"`
	Name   string `json:"name"`
}

// ParseName splits "module::name" into its parts.  Names with more than
// one "::" keep everything before the last separator as the module.
func ParseName(s string) Name {
	if k := strings.LastIndex(s, "::"); k >= 0 {
		return Name{Module: s[:k], Name: s[k+2:]}
	}
	return Name{Name: s}
}

func NewName(module, name string) Name {
	return Name{Module: module, Name: name}
}

func (n Name) String() string {
	if n.Module == "" {
		return n.Name
	}
	return n.Module + "::" + n.Name
}

func (n Name) IsQualified() bool {
	return n.Module != ""
}

// ModuleAliases maps a module alias to a module name.  The empty key is
// the default module used to qualify bare names.
type ModuleAliases map[string]string

// Default returns the default module, if any.
func (m ModuleAliases) Default() (string, bool) {
	mod, ok := m[""]
	return mod, ok
}

// Resolve maps a module alias to the module it stands for.  A module
// that is not an alias resolves to itself.
func (m ModuleAliases) Resolve(module string) string {
	if mod, ok := m[module]; ok {
		return mod
	}
	return module
}

// With returns a copy of m with alias bound to module.
func (m ModuleAliases) With(alias, module string) ModuleAliases {
	out := make(ModuleAliases, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[alias] = module
	return out
}

func (m ModuleAliases) Copy() ModuleAliases {
	if m == nil {
		return nil
	}
	out := make(ModuleAliases, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Key returns a canonical string form of m suitable for use as a map key.
func (m ModuleAliases) Key() string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(m[k])
		b.WriteByte(';')
	}
	return b.String()
}
