package schema

import (
	zqe "github.com/brimdata/edgeql/errors"
	"go.uber.org/multierr"
)

type builder struct {
	snap   *Snapshot
	scalar map[*ScalarType]string
	object map[*ObjectType]*TypeDef
	errs   error
}

// Build compiles module definitions into an immutable Snapshot.  The
// Builtins modules are always included.  Every object type that names no
// base extends std::Object.
func Build(modules ...*ModuleDef) (*Snapshot, error) {
	b := &builder{
		snap: &Snapshot{
			modules:   make(map[string]bool),
			objects:   make(map[Name]Object),
			functions: make(map[Name][]*Function),
		},
		scalar: make(map[*ScalarType]string),
		object: make(map[*ObjectType]*TypeDef),
	}
	all := append(append([]*ModuleDef{}, Builtins...), modules...)
	for _, m := range all {
		b.declare(m)
	}
	if b.errs != nil {
		return nil, b.errs
	}
	for _, m := range all {
		b.bases(m)
	}
	if b.errs != nil {
		return nil, b.errs
	}
	for _, t := range b.snap.types {
		if _, err := b.mro(t, nil); err != nil {
			return nil, err
		}
	}
	for _, m := range all {
		b.pointers(m)
		b.functions(m)
	}
	if b.errs != nil {
		return nil, b.errs
	}
	b.link()
	return b.snap, nil
}

func (b *builder) errorf(kind zqe.Kind, format string, args ...interface{}) {
	b.errs = multierr.Append(b.errs, zqe.E(append([]interface{}{kind, format}, args...)...))
}

func (b *builder) add(o Object) {
	name := o.SchemaName()
	if _, ok := b.snap.objects[name]; ok {
		b.errorf(zqe.Exists, "%s is already present in the schema", name)
		return
	}
	b.snap.objects[name] = o
}

func (b *builder) declare(m *ModuleDef) {
	if m.Name == "" {
		b.errorf(zqe.Invalid, "module with no name")
		return
	}
	b.snap.modules[m.Name] = true
	for _, def := range m.Scalars {
		s := &ScalarType{Name: Name{Module: m.Name, Name: def.Name}}
		b.scalar[s] = def.Extends
		b.add(s)
	}
	for k := range m.Types {
		def := &m.Types[k]
		t := &ObjectType{
			Name:     Name{Module: m.Name, Name: def.Name},
			Abstract: def.Abstract,
		}
		b.object[t] = def
		b.snap.types = append(b.snap.types, t)
		b.add(t)
	}
}

// resolve finds a type by a name written inside module.
func (b *builder) resolve(module, name string) (Type, bool) {
	o, err := b.snap.Get(name, ModuleAliases{"": module}, ClassType)
	if err != nil {
		return nil, false
	}
	return o.(Type), true
}

func (b *builder) bases(m *ModuleDef) {
	for _, def := range m.Scalars {
		if def.Extends == "" {
			continue
		}
		o := b.snap.objects[Name{Module: m.Name, Name: def.Name}]
		s, ok := o.(*ScalarType)
		if !ok {
			continue
		}
		t, ok := b.resolve(m.Name, def.Extends)
		base, isScalar := t.(*ScalarType)
		if !ok || !isScalar {
			b.errorf(zqe.Invalid, "scalar type %s extends unknown scalar %q", s.Name, def.Extends)
			continue
		}
		s.Base = base
	}
	root := Name{Module: StdModule, Name: ObjectName}
	for _, def := range m.Types {
		t, ok := b.snap.objects[Name{Module: m.Name, Name: def.Name}].(*ObjectType)
		if !ok {
			continue
		}
		for _, name := range def.Extends {
			base, ok := b.resolve(m.Name, name)
			obj, isObject := base.(*ObjectType)
			if !ok || !isObject {
				b.errorf(zqe.Invalid, "type %s extends unknown type %q", t.Name, name)
				continue
			}
			t.Bases = append(t.Bases, obj)
		}
		if len(def.Extends) == 0 && t.Name != root {
			t.Bases = []*ObjectType{b.snap.objects[root].(*ObjectType)}
		}
	}
}

// mro computes the C3 linearization of t.  The stack detects
// inheritance cycles.
func (b *builder) mro(t *ObjectType, stack []*ObjectType) ([]*ObjectType, error) {
	if t.mro != nil {
		return t.mro, nil
	}
	for _, s := range stack {
		if s == t {
			return nil, zqe.E(zqe.Tree, "%s inherits from itself", t.Name)
		}
	}
	stack = append(stack, t)
	mros := [][]*ObjectType{{t}}
	for _, base := range t.Bases {
		m, err := b.mro(base, stack)
		if err != nil {
			return nil, err
		}
		mros = append(mros, append([]*ObjectType{}, m...))
	}
	mros = append(mros, append([]*ObjectType{}, t.Bases...))
	merged, err := mergeMRO(t, mros)
	if err != nil {
		return nil, err
	}
	t.mro = merged
	return merged, nil
}

func mergeMRO(t *ObjectType, mros [][]*ObjectType) ([]*ObjectType, error) {
	var result []*ObjectType
	for {
		var nonempty [][]*ObjectType
		for _, m := range mros {
			if len(m) > 0 {
				nonempty = append(nonempty, m)
			}
		}
		if len(nonempty) == 0 {
			return result, nil
		}
		var candidate *ObjectType
		for _, m := range nonempty {
			if !inTail(m[0], nonempty) {
				candidate = m[0]
				break
			}
		}
		if candidate == nil {
			return nil, zqe.E(zqe.Tree, "could not find consistent MRO for %s", t.Name)
		}
		result = append(result, candidate)
		for k, m := range nonempty {
			if m[0] == candidate {
				nonempty[k] = m[1:]
			}
		}
		mros = nonempty
	}
}

func inTail(c *ObjectType, mros [][]*ObjectType) bool {
	for _, m := range mros {
		for _, t := range m[1:] {
			if t == c {
				return true
			}
		}
	}
	return false
}

func (b *builder) pointers(m *ModuleDef) {
	for _, def := range m.Types {
		t, ok := b.snap.objects[Name{Module: m.Name, Name: def.Name}].(*ObjectType)
		if !ok {
			continue
		}
		for _, pdef := range def.Pointers {
			if p := b.pointer(m.Name, t, pdef); p != nil {
				t.Own = append(t.Own, p)
			}
		}
	}
}

func (b *builder) pointer(module string, source Object, def PointerDef) *Pointer {
	target, ok := b.resolve(module, def.Target)
	if !ok {
		b.errorf(zqe.Invalid, "pointer %s.%s has unknown target %q", source.SchemaName(), def.Name, def.Target)
		return nil
	}
	p := &Pointer{
		Name:       def.Name,
		Source:     source,
		Target:     target,
		Required:   def.Required,
		Searchable: def.Searchable,
		Computable: def.Computable,
	}
	switch def.Kind {
	case "link":
		p.Kind = Link
	case "property":
		p.Kind = Property
	case "":
		if _, ok := target.(*ScalarType); ok {
			p.Kind = Property
		}
	default:
		b.errorf(zqe.Invalid, "pointer %s.%s has unknown kind %q", source.SchemaName(), def.Name, def.Kind)
	}
	switch {
	case def.Multi && def.Exclusive:
		p.Mapping = OneToMany
	case def.Multi:
		p.Mapping = ManyToMany
	case def.Exclusive:
		p.Mapping = OneToOne
	default:
		p.Mapping = ManyToOne
	}
	switch def.Loading {
	case "eager":
		p.Eager = true
	case "lazy":
	case "":
		p.Eager = p.Kind == Property
	default:
		b.errorf(zqe.Invalid, "pointer %s.%s has unknown loading %q", source.SchemaName(), def.Name, def.Loading)
	}
	if _, isLink := source.(*Pointer); isLink {
		if len(def.Properties) > 0 {
			b.errorf(zqe.Invalid, "link property %s cannot have properties", p.SchemaName())
		}
		return p
	}
	if srcType, ok := source.(Type); ok {
		p.Properties = append(p.Properties,
			&Pointer{Name: SourcePointer, Kind: Property, Source: p, Target: srcType, Required: true},
			&Pointer{Name: TargetPointer, Kind: Property, Source: p, Target: target, Required: true},
			&Pointer{Name: LinkIDPointer, Kind: Property, Source: p, Target: b.snap.objects[Name{Module: StdModule, Name: "uuid"}].(Type), Required: true},
		)
	}
	for _, pdef := range def.Properties {
		prop := b.pointer(module, p, pdef)
		if prop == nil {
			continue
		}
		if !prop.Atomic() {
			b.errorf(zqe.Invalid, "link property %s must target a scalar type", prop.SchemaName())
			continue
		}
		prop.Kind = Property
		p.Properties = append(p.Properties, prop)
	}
	return p
}

func (b *builder) functions(m *ModuleDef) {
	for _, def := range m.Functions {
		f := &Function{
			Name:      Name{Module: m.Name, Name: def.Name},
			Params:    def.Params,
			Aggregate: def.Aggregate,
			Window:    def.Window,
		}
		if def.Returns != "" {
			t, ok := b.resolve(m.Name, def.Returns)
			if !ok {
				b.errorf(zqe.Invalid, "function %s returns unknown type %q", f.Name, def.Returns)
				continue
			}
			f.Returns = t
		}
		b.snap.functions[f.Name] = append(b.snap.functions[f.Name], f)
	}
}

// link fills in the derived indexes: subtypes and inbound pointers.
func (b *builder) link() {
	for _, t := range b.snap.types {
		for _, anc := range t.mro[1:] {
			anc.children = append(anc.children, t)
		}
		for _, p := range t.Own {
			if target, ok := p.Target.(*ObjectType); ok {
				target.backlinks = append(target.backlinks, p)
			}
		}
	}
}
