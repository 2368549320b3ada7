package schema

// Def is the declarative form of a schema.  It is what the YAML loader
// decodes and what Build turns into a Snapshot.
type Def struct {
	Modules []*ModuleDef `yaml:"modules"`
}

type ModuleDef struct {
	Name      string        `yaml:"name"`
	Scalars   []ScalarDef   `yaml:"scalars"`
	Types     []TypeDef     `yaml:"types"`
	Functions []FunctionDef `yaml:"functions"`
}

type ScalarDef struct {
	Name    string `yaml:"name"`
	Extends string `yaml:"extends"`
}

type TypeDef struct {
	Name     string       `yaml:"name"`
	Abstract bool         `yaml:"abstract"`
	Extends  []string     `yaml:"extends"`
	Pointers []PointerDef `yaml:"pointers"`
}

// PointerDef declares a link or property.  Kind defaults to "link" for
// object targets and "property" for scalar targets.  Loading defaults to
// "eager" for properties and "lazy" for links.
type PointerDef struct {
	Name       string       `yaml:"name"`
	Kind       string       `yaml:"kind"`
	Target     string       `yaml:"target"`
	Required   bool         `yaml:"required"`
	Multi      bool         `yaml:"multi"`
	Exclusive  bool         `yaml:"exclusive"`
	Loading    string       `yaml:"loading"`
	Searchable bool         `yaml:"searchable"`
	Computable bool         `yaml:"computable"`
	Properties []PointerDef `yaml:"properties"`
}

type FunctionDef struct {
	Name      string   `yaml:"name"`
	Params    []string `yaml:"params"`
	Returns   string   `yaml:"returns"`
	Aggregate bool     `yaml:"aggregate"`
	Window    bool     `yaml:"window"`
}

const (
	// DefaultModule holds bare names when no default alias is given.
	DefaultModule = "default"
	StdModule     = "std"
	SearchModule  = "search"
	ObjectName    = "Object"
)

// Builtins are the modules every Snapshot starts with.
var Builtins = []*ModuleDef{
	{
		Name: StdModule,
		Scalars: []ScalarDef{
			{Name: "anyscalar"},
			{Name: "str", Extends: "anyscalar"},
			{Name: "bool", Extends: "anyscalar"},
			{Name: "uuid", Extends: "anyscalar"},
			{Name: "bytes", Extends: "anyscalar"},
			{Name: "json", Extends: "anyscalar"},
			{Name: "datetime", Extends: "anyscalar"},
			{Name: "anyreal", Extends: "anyscalar"},
			{Name: "anyint", Extends: "anyreal"},
			{Name: "int16", Extends: "anyint"},
			{Name: "int32", Extends: "anyint"},
			{Name: "int64", Extends: "anyint"},
			{Name: "bigint", Extends: "anyint"},
			{Name: "anyfloat", Extends: "anyreal"},
			{Name: "float32", Extends: "anyfloat"},
			{Name: "float64", Extends: "anyfloat"},
			{Name: "decimal", Extends: "anyreal"},
			{Name: "sequence", Extends: "int64"},
		},
		Types: []TypeDef{
			{
				Name:     ObjectName,
				Abstract: true,
				Pointers: []PointerDef{
					{Name: IDPointer, Target: "uuid", Required: true, Exclusive: true},
				},
			},
		},
		Functions: []FunctionDef{
			{Name: "count", Params: []string{"set"}, Returns: "int64", Aggregate: true},
			{Name: "sum", Params: []string{"set"}, Returns: "anyreal", Aggregate: true},
			{Name: "min", Params: []string{"set"}, Returns: "anyscalar", Aggregate: true},
			{Name: "max", Params: []string{"set"}, Returns: "anyscalar", Aggregate: true},
			{Name: "avg", Params: []string{"set"}, Returns: "float64", Aggregate: true},
			{Name: "array_agg", Params: []string{"set"}, Aggregate: true},
			{Name: "row_number", Returns: "int64", Window: true},
			{Name: "len", Params: []string{"val"}, Returns: "int64"},
			{Name: "lower", Params: []string{"val"}, Returns: "str"},
			{Name: "upper", Params: []string{"val"}, Returns: "str"},
			{Name: "to_str", Params: []string{"val"}, Returns: "str"},
			{Name: "getitem", Params: []string{"val", "index"}},
			{Name: "getslice", Params: []string{"val", "start", "stop"}},
			{Name: "if_else", Params: []string{"if_true", "condition", "if_false"}},
			{Name: "coalesce", Params: []string{"left", "right"}},
			{Name: "uuid_generate_v1mc", Returns: "uuid"},
		},
	},
	{
		Name: SearchModule,
		Functions: []FunctionDef{
			{Name: "rank", Params: []string{"vector", "query"}, Returns: "float64"},
			{Name: "headline", Params: []string{"vector", "query"}, Returns: "str"},
		},
	},
}
