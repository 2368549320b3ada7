// Package ir declares the intermediate representation produced by the
// semantic pass.  The IR is a graph: an EntitySet points at the link that
// reached it and the link points back at its source, so nodes are shared
// rather than owned.  Use Walk for traversal, Dump for a printable form.
package ir

import (
	"github.com/brimdata/edgeql/schema"
	"github.com/segmentio/ksuid"
)

type (
	Node interface {
		IRNode()
	}
	Expr interface {
		Node
		ExprIR()
	}
	// Path is an expression denoting a set of graph positions: entity
	// sets, links, combinations of paths, and references to the
	// attributes of a path.
	Path interface {
		Expr
		PathIR()
	}
	// Ref is a reference to an attribute of an entity set or link.
	Ref interface {
		Path
		RefIR()
	}
)

// Location is the clause of a statement an expression was compiled in.
// The location of a path decides whether combining it with other paths
// gives a hard or an optional join.
type Location string

const (
	Generator      Location = "generator"
	Selector       Location = "selector"
	Sorter         Location = "sorter"
	Grouper        Location = "grouper"
	OpValues       Location = "opvalues"
	OpTargetShaper Location = "optarget_shaper"
	Top            Location = "top"
	Exists         Location = "exists"
)

// ----------------------------------------------------------------------------
// Paths

type (
	// EntitySet is a set of objects of Concept reached by the path ID.
	// Links out of the set are held in Conjunction when every one must
	// match and in Disjunction when they are optional.
	EntitySet struct {
		ID          LinearPath
		Concept     schema.Type
		Users       Set[Location]
		Conjunction *Conjunction
		Disjunction *Disjunction
		Rlink       *EntityLink
		Filter      Expr
		Atomrefs    Set[*AtomicRefSimple]
		Metarefs    Set[*MetaRef]
		// Joins are the sets this set is compared against by identity.
		Joins    Set[*EntitySet]
		Backrefs Set[*EntitySet]
		Pathvar  string
		Anchor   string
		// Reference is the set of an enclosing query this set is
		// correlated with.
		Reference *EntitySet
		Origin    *EntitySet
		forward   *EntitySet
	}
	EntityLink struct {
		Source *EntitySet
		Target *EntitySet
		// AtomRef is the reference a singular atomic link was
		// folded into.
		AtomRef    *AtomicRefSimple
		Ptr        *schema.Pointer
		Direction  string
		Users      Set[Location]
		Proprefs   Set[*LinkPropRefSimple]
		Propfilter Expr
		Anchor     string
		Pathvar    string
		// Explicit is set when a shape element requested the link.
		Explicit bool
		forward  *EntityLink
	}
	Conjunction struct {
		Paths PathSet
	}
	Disjunction struct {
		Paths PathSet
		// Fixed prevents the disjunction from being promoted to a
		// conjunction in a generator.
		Fixed bool
	}
)

// NewEntitySet returns a set rooted at concept used in location loc.
func NewEntitySet(concept schema.Type, loc Location) *EntitySet {
	e := &EntitySet{
		ID:          NewLinearPath(concept),
		Concept:     concept,
		Conjunction: &Conjunction{},
		Disjunction: &Disjunction{},
	}
	if loc != "" {
		e.Users.Add(loc)
	}
	return e
}

func NewConjunction(paths ...Path) *Conjunction {
	return &Conjunction{Paths: NewSet(paths...)}
}

func NewDisjunction(paths ...Path) *Disjunction {
	return &Disjunction{Paths: NewSet(paths...)}
}

// Resolve returns the set e was merged into, or e itself.
func (e *EntitySet) Resolve() *EntitySet {
	for e != nil && e.forward != nil {
		e = e.forward
	}
	return e
}

// MergeInto records that e has been merged into dst.  Later Resolve
// calls on e return dst.
func (e *EntitySet) MergeInto(dst *EntitySet) {
	if dst = dst.Resolve(); dst != e {
		e.forward = dst
	}
}

func (l *EntityLink) Resolve() *EntityLink {
	for l != nil && l.forward != nil {
		l = l.forward
	}
	return l
}

func (l *EntityLink) MergeInto(dst *EntityLink) {
	if dst = dst.Resolve(); dst != l {
		l.forward = dst
	}
}

// Singular reports whether l reaches at most one target per source.
func (l *EntityLink) Singular() bool {
	return l.Ptr.Singular(l.Direction)
}

// PathCombination is a Conjunction or a Disjunction.
type PathCombination interface {
	Path
	Members() *PathSet
}

func (c *Conjunction) Members() *PathSet { return &c.Paths }
func (d *Disjunction) Members() *PathSet { return &d.Paths }

// ----------------------------------------------------------------------------
// References

type (
	// AtomicRefSimple is a scalar attribute of Ref.
	AtomicRefSimple struct {
		Ref   *EntitySet
		Name  string
		Ptr   *schema.Pointer
		ID    LinearPath
		Rlink *EntityLink
		Users Set[Location]
	}
	// AtomicRefExpr is an expression over the attributes of a single
	// entity set.  An inline AtomicRefExpr in a generator becomes a
	// filter of the set.
	AtomicRefExpr struct {
		Expr   Expr
		Inline bool
		Ptr    *schema.Pointer
	}
	// InlineFilter is a filter folded into Ref.
	InlineFilter struct {
		Ref  *EntitySet
		Expr Expr
	}
	LinkPropRefSimple struct {
		Ref  *EntityLink
		Name string
		Ptr  *schema.Pointer
		ID   LinearPath
	}
	LinkPropRefExpr struct {
		Expr   Expr
		Inline bool
	}
	InlinePropFilter struct {
		Ref  *EntityLink
		Expr Expr
	}
	// MetaRef is an attribute of the type of the objects in Ref.
	MetaRef struct {
		Ref  *EntitySet
		Name string
	}
	MetaRefExpr struct {
		Expr   Expr
		Inline bool
	}
)

func NewAtomicRefExpr(e Expr) *AtomicRefExpr {
	return &AtomicRefExpr{Expr: e, Inline: true}
}

func NewLinkPropRefExpr(e Expr) *LinkPropRefExpr {
	return &LinkPropRefExpr{Expr: e, Inline: true}
}

// Ref returns the entity set whose attributes a references.
func (a *AtomicRefExpr) Ref() *EntitySet {
	var ref *EntitySet
	Inspect(a.Expr, func(n Node) bool {
		if ref != nil {
			return false
		}
		switch n := n.(type) {
		case *AtomicRefSimple:
			ref = n.Ref.Resolve()
		case *MetaRef:
			ref = n.Ref.Resolve()
		case *SubgraphRef:
			return false
		}
		return true
	})
	return ref
}

func (m *MetaRefExpr) Ref() *EntitySet {
	return (&AtomicRefExpr{Expr: m.Expr}).Ref()
}

// Ref returns the link whose properties l references.
func (l *LinkPropRefExpr) Ref() *EntityLink {
	var ref *EntityLink
	Inspect(l.Expr, func(n Node) bool {
		if ref != nil {
			return false
		}
		switch n := n.(type) {
		case *LinkPropRefSimple:
			ref = n.Ref.Resolve()
		case *SubgraphRef:
			return false
		}
		return true
	})
	return ref
}

// ----------------------------------------------------------------------------
// Expressions

type (
	// Constant is a literal or a query parameter.  Expr is set for a
	// constant folded from an expression of constants.
	Constant struct {
		Value any
		Param string
		Expr  Expr
		Type  schema.Type
		// List is set for a constant holding a list of Type values.
		List bool
	}
	BinOp struct {
		Left       Expr
		Op         string
		Right      Expr
		Aggregates bool
		// Strong forces a conjunctive merge of the operand paths.
		Strong bool
	}
	UnaryOp struct {
		Op   string
		Expr Expr
	}
	NoneTest struct {
		Expr Expr
	}
	ExistPred struct {
		Expr Expr
	}
	TypeRef struct {
		Type     schema.Type
		Subtypes []*TypeRef
		// Name is set for a constructed type such as array<str>.
		Name string
	}
	TypeCast struct {
		Expr Expr
		Type *TypeRef
	}
	Kwarg struct {
		Name string
		Expr Expr
	}
	FunctionCall struct {
		Name       schema.Name
		Func       *schema.Function
		Args       []Expr
		Kwargs     []*Kwarg
		AggSort    []*SortExpr
		AggFilter  Expr
		Partition  []Expr
		Window     bool
		Aggregates bool
		// Candidates lists the other modules defining a function of
		// the same name.
		Candidates []string
	}
	Sequence struct {
		Elements   []Expr
		Names      []string
		IsArray    bool
		Aggregates bool
	}
	Record struct {
		Elements   []Expr
		Concept    schema.Type
		Rlink      *EntityLink
		Aggregates bool
	}
	IfElse struct {
		Condition Expr
		Then      Expr
		Else      Expr
	}
	// SubgraphRef is a reference to the result column Name of a
	// subquery.
	SubgraphRef struct {
		Ref         *GraphExpr
		Name        string
		ForceInline bool
		Rlink       *EntityLink
	}
)

// ----------------------------------------------------------------------------
// Statements

type (
	SelectorExpr struct {
		Expr     Expr
		Name     string
		Autoname string
	}
	SortExpr struct {
		Expr      Expr
		Direction string
		Nones     string
	}
	UpdateExpr struct {
		Expr  Expr
		Value Expr
		Op    string
	}
	CommonGraphExpr struct {
		Expr  *GraphExpr
		Alias string
	}
	// PtrPathSpec is an element of a shape: a pointer to fetch along
	// with the shape of its target.
	PtrPathSpec struct {
		Ptr             *schema.Pointer
		Direction       string
		Target          schema.Type
		Compexpr        Expr
		Recurse         Expr
		Generator       Expr
		Sorter          []*SortExpr
		Offset          Expr
		Limit           Expr
		PathSpec        []*PtrPathSpec
		Explicit        bool
		TypeIndirection bool
		Name            string
	}
	ResultType struct {
		Name string
		Type schema.Type
		// Kind is "path", "constant", or "expression".
		Kind string
	}
	// GraphExpr is a query.  DML statements set OpType and OpTarget.
	GraphExpr struct {
		ID        ksuid.KSUID
		Generator Expr
		Selector  []*SelectorExpr
		Sorter    []*SortExpr
		Grouper   []Expr
		Offset    Expr
		Limit     Expr
		Subgraphs Set[*GraphExpr]
		CGEs      []*CommonGraphExpr
		AttrRefs  Set[string]
		Referrers []Location
		SetOp     string
		SetOpArgs []*GraphExpr
		OpType    string
		OpTarget  Path
		// OpSelector is the shape of the objects a DML statement
		// returns.
		OpSelector      []*SelectorExpr
		OpValues        []*UpdateExpr
		OnConflict      Expr
		ConflictElse    Expr
		AggregateResult Expr
		RecurseLink     *EntityLink
		RecurseDepth    Expr
		ResultTypes     []ResultType
		ArgTypes        map[string]schema.Type
	}
)

func (*EntitySet) IRNode()         {}
func (*EntityLink) IRNode()        {}
func (*Conjunction) IRNode()       {}
func (*Disjunction) IRNode()       {}
func (*AtomicRefSimple) IRNode()   {}
func (*AtomicRefExpr) IRNode()     {}
func (*InlineFilter) IRNode()      {}
func (*LinkPropRefSimple) IRNode() {}
func (*LinkPropRefExpr) IRNode()   {}
func (*InlinePropFilter) IRNode()  {}
func (*MetaRef) IRNode()           {}
func (*MetaRefExpr) IRNode()       {}
func (*Constant) IRNode()          {}
func (*BinOp) IRNode()             {}
func (*UnaryOp) IRNode()           {}
func (*NoneTest) IRNode()          {}
func (*ExistPred) IRNode()         {}
func (*TypeRef) IRNode()           {}
func (*TypeCast) IRNode()          {}
func (*Kwarg) IRNode()             {}
func (*FunctionCall) IRNode()      {}
func (*Sequence) IRNode()          {}
func (*Record) IRNode()            {}
func (*IfElse) IRNode()            {}
func (*SubgraphRef) IRNode()       {}
func (*SelectorExpr) IRNode()      {}
func (*SortExpr) IRNode()          {}
func (*UpdateExpr) IRNode()        {}
func (*CommonGraphExpr) IRNode()   {}
func (*PtrPathSpec) IRNode()       {}
func (*GraphExpr) IRNode()         {}

func (*EntitySet) ExprIR()         {}
func (*EntityLink) ExprIR()        {}
func (*Conjunction) ExprIR()       {}
func (*Disjunction) ExprIR()       {}
func (*AtomicRefSimple) ExprIR()   {}
func (*AtomicRefExpr) ExprIR()     {}
func (*InlineFilter) ExprIR()      {}
func (*LinkPropRefSimple) ExprIR() {}
func (*LinkPropRefExpr) ExprIR()   {}
func (*InlinePropFilter) ExprIR()  {}
func (*MetaRef) ExprIR()           {}
func (*MetaRefExpr) ExprIR()       {}
func (*Constant) ExprIR()          {}
func (*BinOp) ExprIR()             {}
func (*UnaryOp) ExprIR()           {}
func (*NoneTest) ExprIR()          {}
func (*ExistPred) ExprIR()         {}
func (*TypeRef) ExprIR()           {}
func (*TypeCast) ExprIR()          {}
func (*FunctionCall) ExprIR()      {}
func (*Sequence) ExprIR()          {}
func (*Record) ExprIR()            {}
func (*IfElse) ExprIR()            {}
func (*SubgraphRef) ExprIR()       {}
func (*GraphExpr) ExprIR()         {}

func (*EntitySet) PathIR()         {}
func (*EntityLink) PathIR()        {}
func (*Conjunction) PathIR()       {}
func (*Disjunction) PathIR()       {}
func (*AtomicRefSimple) PathIR()   {}
func (*AtomicRefExpr) PathIR()     {}
func (*InlineFilter) PathIR()      {}
func (*LinkPropRefSimple) PathIR() {}
func (*LinkPropRefExpr) PathIR()   {}
func (*InlinePropFilter) PathIR()  {}
func (*MetaRef) PathIR()           {}
func (*MetaRefExpr) PathIR()       {}
func (*SubgraphRef) PathIR()       {}

func (*AtomicRefSimple) RefIR()   {}
func (*AtomicRefExpr) RefIR()     {}
func (*LinkPropRefSimple) RefIR() {}
func (*LinkPropRefExpr) RefIR()   {}
func (*MetaRef) RefIR()           {}
func (*MetaRefExpr) RefIR()       {}

// IsAtomicRef reports whether p is an AtomicRefSimple or AtomicRefExpr.
func IsAtomicRef(p Node) bool {
	switch p.(type) {
	case *AtomicRefSimple, *AtomicRefExpr:
		return true
	}
	return false
}

// IsLinkPropRef reports whether p is a LinkPropRefSimple or
// LinkPropRefExpr.
func IsLinkPropRef(p Node) bool {
	switch p.(type) {
	case *LinkPropRefSimple, *LinkPropRefExpr:
		return true
	}
	return false
}

// IsSet reports whether p is an EntitySet or an EntityLink.
func IsSet(p Node) bool {
	switch p.(type) {
	case *EntitySet, *EntityLink:
		return true
	}
	return false
}

// Aggregated reports whether e is marked as an aggregate expression.
func Aggregated(e Node) bool {
	switch e := e.(type) {
	case *BinOp:
		return e.Aggregates
	case *FunctionCall:
		return e.Aggregates
	case *Sequence:
		return e.Aggregates
	case *Record:
		return e.Aggregates
	}
	return false
}

// AggregatedDeep reports whether e or any expression under it is an
// aggregate.
func AggregatedDeep(e Node) bool {
	found := false
	Inspect(e, func(n Node) bool {
		if found {
			return false
		}
		if Aggregated(n) {
			found = true
			return false
		}
		return true
	})
	return found
}
