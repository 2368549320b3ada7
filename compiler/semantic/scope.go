package semantic

import (
	"github.com/brimdata/edgeql/compiler/ast"
	"github.com/brimdata/edgeql/compiler/ir"
	"github.com/brimdata/edgeql/schema"
)

// weakness records whether the paths of an expression must exist for it
// to hold.
type weakness int

const (
	weakUnset weakness = iota
	weakOn
	weakOff
)

// scope is the compilation state an expression sees.  Clauses and nested
// queries are compiled in a modified copy; a scope is never changed after
// it has been handed to a child.  The maps are replaced, not written,
// when a child binds a name.
type scope struct {
	location ir.Location
	aliases  schema.ModuleAliases
	anchors  map[string]ir.Node
	pathvars map[string]ir.Expr
	cges     map[string]*ir.GraphExpr
	// graph is the query being built.  subgraphs memoizes the subqueries
	// compiled for it by their syntax node.
	graph     *ir.GraphExpr
	subgraphs map[ast.Node]*ir.GraphExpr
	// subject is the path a partial path (".name") continues.
	subject     *ast.Path
	inAggregate bool
	inFuncCall  bool
	weak        weakness
	// groupPrefixes holds the keys of the paths a grouped query groups
	// by.  It is nil when the query is not grouped and empty when the
	// query is grouped implicitly by an aggregate.
	groupPrefixes map[string]struct{}
	// linkSource is the set a bare name in an UPDATE value is resolved
	// against.
	linkSource *ir.EntitySet
	// rlinkPtr is the link whose properties "@name" in a shape refers to.
	rlinkPtr *schema.Pointer
	depth    int
}

func (s scope) at(loc ir.Location) scope {
	s.location = loc
	return s
}

// enter returns the scope for the body of the query g.  Names and module
// aliases are inherited; everything tied to the enclosing clause is not.
func (s scope) enter(g *ir.GraphExpr) scope {
	s.graph = g
	s.subgraphs = make(map[ast.Node]*ir.GraphExpr)
	s.location = ""
	s.subject = nil
	s.inAggregate = false
	s.inFuncCall = false
	s.weak = weakUnset
	s.groupPrefixes = nil
	s.linkSource = nil
	s.rlinkPtr = nil
	return s
}

func (s scope) withModule(alias, module string) scope {
	s.aliases = s.aliases.With(alias, module)
	return s
}

func (s scope) withPathvar(name string, e ir.Expr) scope {
	m := make(map[string]ir.Expr, len(s.pathvars)+1)
	for k, v := range s.pathvars {
		m[k] = v
	}
	m[name] = e
	s.pathvars = m
	return s
}

func (s scope) withCGE(name string, g *ir.GraphExpr) scope {
	m := make(map[string]*ir.GraphExpr, len(s.cges)+1)
	for k, v := range s.cges {
		m[k] = v
	}
	m[name] = g
	s.cges = m
	return s
}

func (s scope) withSubject(p *ast.Path) scope {
	s.subject = p
	return s
}

func (s scope) grouped(key string) bool {
	_, ok := s.groupPrefixes[key]
	return ok
}
