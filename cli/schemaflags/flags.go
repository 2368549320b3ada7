// Package schemaflags loads the schema a command compiles against.
package schemaflags

import (
	"errors"
	"flag"

	"github.com/brimdata/edgeql/schema"
)

type Flags struct {
	Path      string
	Module    string
	CacheSize int
	lookup    schema.Lookup
}

func (f *Flags) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&f.Path, "schema", "", "YAML schema definition file")
	fs.StringVar(&f.Module, "module", "", "default module for unqualified names")
	fs.IntVar(&f.CacheSize, "schema.cache", schema.DefaultCacheSize, "number of schema lookups to cache")
}

// Init loads the schema.  Without -schema, only the builtin std module
// is available.
func (f *Flags) Init() error {
	var snap *schema.Snapshot
	var err error
	if f.Path != "" {
		snap, err = schema.LoadFile(f.Path)
	} else {
		snap, err = schema.Build()
	}
	if err != nil {
		return err
	}
	f.lookup, err = schema.NewCached(snap, f.CacheSize)
	return err
}

func (f *Flags) Lookup() (schema.Lookup, error) {
	if f.lookup == nil {
		return nil, errors.New("schema not loaded")
	}
	return f.lookup, nil
}

func (f *Flags) Aliases() schema.ModuleAliases {
	if f.Module == "" {
		return nil
	}
	return schema.ModuleAliases{"": f.Module}
}
