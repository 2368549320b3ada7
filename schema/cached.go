package schema

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of lookups a Cached remembers.
const DefaultCacheSize = 4096

type objectEntry struct {
	obj Object
	err error
}

type functionEntry struct {
	fns []*Function
	err error
}

// Cached memoizes lookups against an underlying Lookup.  Failed lookups
// are cached too, so the underlying schema must not change while a
// Cached wraps it.
type Cached struct {
	lookup    Lookup
	objects   *lru.Cache[string, objectEntry]
	functions *lru.Cache[string, functionEntry]
}

var _ Lookup = (*Cached)(nil)

func NewCached(l Lookup, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	objects, err := lru.New[string, objectEntry](size)
	if err != nil {
		return nil, err
	}
	functions, err := lru.New[string, functionEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cached{
		lookup:    l,
		objects:   objects,
		functions: functions,
	}, nil
}

func cacheKey(name string, aliases ModuleAliases, class Class) string {
	return class.String() + "|" + aliases.Key() + "|" + name
}

func (c *Cached) Get(name string, aliases ModuleAliases, class Class) (Object, error) {
	key := cacheKey(name, aliases, class)
	if e, ok := c.objects.Get(key); ok {
		return e.obj, e.err
	}
	obj, err := c.lookup.Get(name, aliases, class)
	c.objects.Add(key, objectEntry{obj, err})
	return obj, err
}

func (c *Cached) GetFunctions(name string, aliases ModuleAliases) ([]*Function, error) {
	key := cacheKey(name, aliases, ClassFunction)
	if e, ok := c.functions.Get(key); ok {
		return e.fns, e.err
	}
	fns, err := c.lookup.GetFunctions(name, aliases)
	c.functions.Add(key, functionEntry{fns, err})
	return fns, err
}
