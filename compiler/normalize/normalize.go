// Package normalize qualifies the names in an EdgeQL syntax tree against a
// schema.  Path roots, type names, and function names that resolve to a
// schema object have their module filled in.  Names bound by the query
// itself (WITH aliases, iterator variables, group aliases) are left alone.
//
// Normalization is best effort.  A name that cannot be resolved is left as
// is, or qualified with the default module when there is one, and later
// compilation stages report the problem.
package normalize

import (
	"github.com/brimdata/edgeql/compiler/ast"
	zqe "github.com/brimdata/edgeql/errors"
	"github.com/brimdata/edgeql/schema"
	"golang.org/x/exp/slices"
)

// pseudoTypes are type constructors that never name a schema object.
var pseudoTypes = []string{"array", "tuple", "range", "multirange"}

// Normalize rewrites the names in n in place.  Module declarations in WITH
// blocks are folded into the aliases used for the names that follow them
// and are then removed from the tree.  Normalizing an already normalized
// tree does not change it.
func Normalize(n ast.Node, lookup schema.Lookup, aliases schema.ModuleAliases, localnames ...string) error {
	sc := scope{aliases: aliases.Copy()}
	for _, name := range localnames {
		sc = sc.bind(name)
	}
	return (&normalizer{lookup: lookup}).node(n, sc)
}

type normalizer struct {
	lookup schema.Lookup
}

// scope is the lexical environment of a name.  Children are built with
// bind and withModule so a parent scope is never modified.
type scope struct {
	aliases    schema.ModuleAliases
	localnames map[string]struct{}
}

func (s scope) bind(name string) scope {
	m := make(map[string]struct{}, len(s.localnames)+1)
	for k := range s.localnames {
		m[k] = struct{}{}
	}
	m[name] = struct{}{}
	return scope{aliases: s.aliases, localnames: m}
}

func (s scope) withModule(alias, module string) scope {
	return scope{aliases: s.aliases.With(alias, module), localnames: s.localnames}
}

func (s scope) isLocal(name string) bool {
	_, ok := s.localnames[name]
	return ok
}

func (n *normalizer) node(node ast.Node, sc scope) error {
	switch node := node.(type) {
	case nil:
		return nil
	case ast.DDL:
		return zqe.E(zqe.Internal, zqe.Span{Pos: node.Pos(), End: node.End()}, "cannot normalize DDL node")
	case *ast.SelectQuery:
		return n.selectQuery(node, sc)
	case *ast.InsertQuery, *ast.UpdateQuery, *ast.DeleteQuery:
		q := node.(ast.Query)
		sc, err := n.withBlock(q.WithBlock(), sc)
		if err != nil {
			return err
		}
		return n.children(node, sc, q.WithBlock())
	case *ast.ForQuery:
		return n.forQuery(node, sc)
	case *ast.GroupQuery:
		return n.groupQuery(node, sc)
	case *ast.InternalGroupQuery:
		return n.internalGroupQuery(node, sc)
	case *ast.ObjectRef:
		return n.objectRef(node, sc)
	case *ast.TypeName:
		return n.typeName(node, sc)
	case *ast.FunctionCall:
		return n.functionCall(node, sc)
	default:
		return n.children(node, sc, nil)
	}
}

// children normalizes every child of node.  The aliases of a query's WITH
// block have already been handled by withBlock and are skipped.
func (n *normalizer) children(node ast.Node, sc scope, skip *[]ast.Alias) error {
	for _, child := range ast.Children(node) {
		if a, ok := child.(ast.Alias); ok && skip != nil && slices.Contains(*skip, a) {
			continue
		}
		if err := n.node(child, sc); err != nil {
			return err
		}
	}
	return nil
}

// withBlock processes a WITH block left to right.  Each expression alias is
// normalized in the scope built from the declarations before it and is
// visible only to the declarations after it.  Module declarations are
// dropped from the block once they have been applied.
func (n *normalizer) withBlock(block *[]ast.Alias, sc scope) (scope, error) {
	var kept []ast.Alias
	for _, a := range *block {
		switch a := a.(type) {
		case *ast.ModuleAliasDecl:
			sc = sc.withModule(a.Alias, a.Module)
		case *ast.AliasedExpr:
			if err := n.node(a.Expr, sc); err != nil {
				return sc, err
			}
			kept = append(kept, a)
			sc = sc.bind(a.Alias)
		default:
			return sc, zqe.E(zqe.Internal, "unknown WITH block element %T", a)
		}
	}
	*block = kept
	return sc, nil
}

func (n *normalizer) selectQuery(q *ast.SelectQuery, sc scope) error {
	sc, err := n.withBlock(&q.Aliases, sc)
	if err != nil {
		return err
	}
	if err := n.node(q.Result, sc); err != nil {
		return err
	}
	if q.ResultAlias != "" {
		sc = sc.bind(q.ResultAlias)
	}
	if err := n.node(q.Where, sc); err != nil {
		return err
	}
	if err := n.sorts(q.OrderBy, sc); err != nil {
		return err
	}
	if err := n.node(q.Offset, sc); err != nil {
		return err
	}
	return n.node(q.Limit, sc)
}

func (n *normalizer) forQuery(q *ast.ForQuery, sc scope) error {
	sc, err := n.withBlock(&q.Aliases, sc)
	if err != nil {
		return err
	}
	if err := n.node(q.Iterator, sc); err != nil {
		return err
	}
	if q.IteratorAlias != "" {
		sc = sc.bind(q.IteratorAlias)
	}
	return n.node(q.Result, sc)
}

// groupHead handles the part shared by both GROUP forms: the subject, its
// alias, and the USING aliases, which scope like a WITH block.
func (n *normalizer) groupHead(aliases *[]ast.Alias, subject ast.Expr, subjectAlias string, using []*ast.AliasedExpr, sc scope) (scope, error) {
	sc, err := n.withBlock(aliases, sc)
	if err != nil {
		return sc, err
	}
	if err := n.node(subject, sc); err != nil {
		return sc, err
	}
	if subjectAlias != "" {
		sc = sc.bind(subjectAlias)
	}
	for _, u := range using {
		if err := n.node(u.Expr, sc); err != nil {
			return sc, err
		}
		sc = sc.bind(u.Alias)
	}
	return sc, nil
}

func (n *normalizer) groupQuery(q *ast.GroupQuery, sc scope) error {
	sc, err := n.groupHead(&q.Aliases, q.Subject, q.SubjectAlias, q.Using, sc)
	if err != nil {
		return err
	}
	return n.exprs(q.By, sc)
}

func (n *normalizer) internalGroupQuery(q *ast.InternalGroupQuery, sc scope) error {
	sc, err := n.groupHead(&q.Aliases, q.Subject, q.SubjectAlias, q.Using, sc)
	if err != nil {
		return err
	}
	if err := n.exprs(q.By, sc); err != nil {
		return err
	}
	for _, name := range []string{q.GroupAlias, q.GroupingAlias} {
		if name != "" {
			sc = sc.bind(name)
		}
	}
	if err := n.node(q.Result, sc); err != nil {
		return err
	}
	if err := n.node(q.Where, sc); err != nil {
		return err
	}
	return n.sorts(q.OrderBy, sc)
}

func (n *normalizer) exprs(exprs []ast.Expr, sc scope) error {
	for _, e := range exprs {
		if err := n.node(e, sc); err != nil {
			return err
		}
	}
	return nil
}

func (n *normalizer) sorts(sorts []*ast.SortExpr, sc scope) error {
	for _, s := range sorts {
		if err := n.node(s, sc); err != nil {
			return err
		}
	}
	return nil
}

// objectRef qualifies ref with the module of the schema object it names.
// When there is no such object, a module alias still applies since ref may
// name an object that is not in the schema yet.
func (n *normalizer) objectRef(ref *ast.ObjectRef, sc scope) error {
	if sc.isLocal(ref.Name) {
		return nil
	}
	obj, err := n.lookup.Get(qualified(ref.Module, ref.Name), sc.aliases, schema.ClassAny)
	switch {
	case err == nil:
		ref.Module = obj.SchemaName().Module
	case zqe.IsNotFound(err):
		if m, ok := sc.aliases[ref.Module]; ok && m != "" {
			ref.Module = m
		}
	default:
		return err
	}
	return nil
}

func (n *normalizer) typeName(t *ast.TypeName, sc scope) error {
	if t.Maintype != nil && !slices.Contains(pseudoTypes, t.Maintype.Name) {
		if err := n.objectRef(t.Maintype, sc); err != nil {
			return err
		}
	}
	for _, sub := range t.Subtypes {
		if err := n.typeName(sub, sc); err != nil {
			return err
		}
	}
	return nil
}

// functionCall qualifies the function name with the module of the first
// matching function.  A function in another module that the choice masks
// is recorded in Candidates so the compiler can report the ambiguity with
// full type information.
func (n *normalizer) functionCall(call *ast.FunctionCall, sc scope) error {
	if f := call.Func; f != nil && !sc.isLocal(f.Name) {
		if err := n.funcRef(f, sc); err != nil {
			return err
		}
	}
	return n.children(call, sc, nil)
}

func (n *normalizer) funcRef(f *ast.FuncRef, sc scope) error {
	bare := f.Module == ""
	fns, err := n.lookup.GetFunctions(qualified(f.Module, f.Name), sc.aliases)
	if err != nil {
		if !zqe.IsNotFound(err) {
			return err
		}
		if !bare {
			// Apply the aliases anyway so a function of the same name in
			// the unaliased module is not picked up later.
			f.Module = sc.aliases.Resolve(f.Module)
		}
		return nil
	}
	module := fns[0].Name.Module
	f.Module = module
	if !bare && len(f.Candidates) > 0 {
		// Already normalized.
		return nil
	}
	f.Candidates = []string{module}
	if bare && module != schema.StdModule {
		std, err := n.lookup.GetFunctions(qualified(schema.StdModule, f.Name), nil)
		if err == nil && len(std) > 0 {
			f.Candidates = append(f.Candidates, schema.StdModule)
		}
	}
	return nil
}

func qualified(module, name string) string {
	if module == "" {
		return name
	}
	return module + "::" + name
}
