package ir

import (
	"fmt"
	"strings"

	"github.com/brimdata/edgeql/schema"
	"golang.org/x/exp/slices"
)

// Dump renders g as indented text.  Sets, links and subqueries are given
// labels (s1, l1, g1) in the order they are first reached, so the output
// for a given query is the same on every compile.
func Dump(g *GraphExpr) string {
	d := &dumper{labels: make(map[Node]string)}
	d.graph(g, "")
	for len(d.queue) > 0 {
		n := d.queue[0]
		d.queue = d.queue[1:]
		switch n := n.(type) {
		case *EntitySet:
			d.setDetail(n)
		case *EntityLink:
			d.linkDetail(n)
		case *GraphExpr:
			d.graph(n, d.labels[n])
		}
	}
	return d.b.String()
}

// DumpExpr renders a single expression on one line.  Sets and links
// appear as labels.
func DumpExpr(e Expr) string {
	d := &dumper{labels: make(map[Node]string)}
	return d.expr(e)
}

type dumper struct {
	b      strings.Builder
	labels map[Node]string
	queue  []Node
	nsets  int
	nlinks int
	ngraph int
}

func (d *dumper) printf(indent int, format string, args ...any) {
	d.b.WriteString(strings.Repeat("  ", indent))
	fmt.Fprintf(&d.b, format, args...)
	d.b.WriteByte('\n')
}

func (d *dumper) label(n Node) string {
	if l, ok := d.labels[n]; ok {
		return l
	}
	var l string
	switch n.(type) {
	case *EntitySet:
		d.nsets++
		l = fmt.Sprintf("s%d", d.nsets)
	case *EntityLink:
		d.nlinks++
		l = fmt.Sprintf("l%d", d.nlinks)
	case *GraphExpr:
		d.ngraph++
		l = fmt.Sprintf("g%d", d.ngraph)
	}
	d.labels[n] = l
	d.queue = append(d.queue, n)
	return l
}

func (d *dumper) graph(g *GraphExpr, label string) {
	kind := "select"
	if g.OpType != "" {
		kind = strings.ToLower(g.OpType)
	}
	if g.SetOp != "" {
		kind = strings.ToLower(g.SetOp)
	}
	if label != "" {
		d.printf(0, "%s: %s", label, kind)
	} else {
		d.printf(0, "%s", kind)
	}
	for _, cge := range g.CGEs {
		d.printf(1, "with %s := %s", cge.Alias, d.expr(cge.Expr))
	}
	if len(g.SetOpArgs) > 0 {
		var args []string
		for _, a := range g.SetOpArgs {
			args = append(args, d.label(a))
		}
		d.printf(1, "args: %s", strings.Join(args, ", "))
	}
	if g.OpTarget != nil {
		d.printf(1, "target: %s", d.expr(g.OpTarget))
	}
	for _, v := range g.OpValues {
		d.printf(1, "set %s %s %s", d.expr(v.Expr), v.Op, d.expr(v.Value))
	}
	if g.Generator != nil {
		d.printf(1, "generator: %s", d.expr(g.Generator))
	}
	if len(g.Selector) > 0 {
		d.printf(1, "selector:")
		for _, s := range g.Selector {
			d.printf(2, "%s: %s", selectorName(s), d.expr(s.Expr))
		}
	}
	if len(g.OpSelector) > 0 {
		d.printf(1, "returning:")
		for _, s := range g.OpSelector {
			d.printf(2, "%s: %s", selectorName(s), d.expr(s.Expr))
		}
	}
	if len(g.Grouper) > 0 {
		var groups []string
		for _, e := range g.Grouper {
			groups = append(groups, d.expr(e))
		}
		d.printf(1, "grouper: %s", strings.Join(groups, ", "))
	}
	for _, s := range g.Sorter {
		d.printf(1, "sort: %s", d.sort(s))
	}
	if g.Offset != nil {
		d.printf(1, "offset: %s", d.expr(g.Offset))
	}
	if g.Limit != nil {
		d.printf(1, "limit: %s", d.expr(g.Limit))
	}
	if g.OnConflict != nil {
		d.printf(1, "unless conflict on: %s", d.expr(g.OnConflict))
	}
	if g.ConflictElse != nil {
		d.printf(1, "else: %s", d.expr(g.ConflictElse))
	}
	if g.AggregateResult != nil {
		d.printf(1, "aggregate: %s", d.expr(g.AggregateResult))
	}
	if g.RecurseLink != nil {
		d.printf(1, "recurse: %s %s", d.label(g.RecurseLink), d.expr(g.RecurseDepth))
	}
}

func selectorName(s *SelectorExpr) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Autoname
}

func (d *dumper) sort(s *SortExpr) string {
	out := d.expr(s.Expr)
	if s.Direction != "" {
		out += " " + s.Direction
	}
	if s.Nones != "" {
		out += " nones " + s.Nones
	}
	return out
}

func (d *dumper) setDetail(e *EntitySet) {
	line := fmt.Sprintf("%s: %s id=%s", d.labels[e], typeName(e.Concept), e.ID)
	if users := sortedUsers(e.Users); users != "" {
		line += " users=" + users
	}
	if e.Pathvar != "" {
		line += " pathvar=" + e.Pathvar
	}
	if e.Anchor != "" {
		line += " anchor=" + e.Anchor
	}
	if e.Reference != nil {
		line += " ref=" + d.label(e.Reference.Resolve())
	}
	d.printf(0, "%s", line)
	if e.Rlink != nil {
		d.printf(1, "rlink: %s", d.label(e.Rlink.Resolve()))
	}
	if e.Conjunction != nil && e.Conjunction.Paths.Len() > 0 {
		d.printf(1, "conjunction: %s", d.members(e.Conjunction.Paths))
	}
	if e.Disjunction != nil && e.Disjunction.Paths.Len() > 0 {
		fixed := ""
		if e.Disjunction.Fixed {
			fixed = " fixed"
		}
		d.printf(1, "disjunction%s: %s", fixed, d.members(e.Disjunction.Paths))
	}
	if e.Filter != nil {
		d.printf(1, "filter: %s", d.expr(e.Filter))
	}
	if e.Atomrefs.Len() > 0 {
		var names []string
		for _, a := range e.Atomrefs.Items() {
			names = append(names, a.Name)
		}
		d.printf(1, "atomrefs: %s", strings.Join(names, ", "))
	}
	if e.Metarefs.Len() > 0 {
		var names []string
		for _, m := range e.Metarefs.Items() {
			names = append(names, m.Name)
		}
		d.printf(1, "metarefs: %s", strings.Join(names, ", "))
	}
	if e.Joins.Len() > 0 {
		d.printf(1, "joins: %s", d.setLabels(e.Joins))
	}
	if e.Backrefs.Len() > 0 {
		d.printf(1, "backrefs: %s", d.setLabels(e.Backrefs))
	}
}

func (d *dumper) linkDetail(l *EntityLink) {
	name := "?"
	if l.Ptr != nil {
		name = l.Ptr.Name
	}
	arrow := fmt.Sprintf("-[%s]->", name)
	if l.Direction == schema.Inbound {
		arrow = fmt.Sprintf("<-[%s]-", name)
	}
	src, tgt := "?", "?"
	if l.Source != nil {
		src = d.label(l.Source.Resolve())
	}
	if l.Target != nil {
		tgt = d.label(l.Target.Resolve())
	}
	line := fmt.Sprintf("%s: %s %s %s", d.labels[l], src, arrow, tgt)
	if users := sortedUsers(l.Users); users != "" {
		line += " users=" + users
	}
	d.printf(0, "%s", line)
	if l.AtomRef != nil {
		d.printf(1, "atomref: %s", d.expr(l.AtomRef))
	}
	if l.Proprefs.Len() > 0 {
		var names []string
		for _, p := range l.Proprefs.Items() {
			names = append(names, p.Name)
		}
		d.printf(1, "proprefs: %s", strings.Join(names, ", "))
	}
	if l.Propfilter != nil {
		d.printf(1, "propfilter: %s", d.expr(l.Propfilter))
	}
}

func sortedUsers(s Set[Location]) string {
	var users []string
	for _, u := range s.Items() {
		users = append(users, string(u))
	}
	slices.Sort(users)
	return strings.Join(users, ",")
}

func (d *dumper) setLabels(s Set[*EntitySet]) string {
	var out []string
	for _, e := range s.Items() {
		out = append(out, d.label(e.Resolve()))
	}
	return strings.Join(out, ", ")
}

func (d *dumper) members(s PathSet) string {
	var out []string
	for _, p := range s.Items() {
		out = append(out, d.expr(p))
	}
	return strings.Join(out, ", ")
}

func (d *dumper) exprs(list []Expr) string {
	var out []string
	for _, e := range list {
		out = append(out, d.expr(e))
	}
	return strings.Join(out, ", ")
}

func (d *dumper) expr(e Node) string {
	switch e := e.(type) {
	case nil:
		return "<nil>"
	case *EntitySet:
		return d.label(e.Resolve())
	case *EntityLink:
		return d.label(e.Resolve())
	case *Conjunction:
		return "AND{" + d.members(e.Paths) + "}"
	case *Disjunction:
		if e.Fixed {
			return "OR!{" + d.members(e.Paths) + "}"
		}
		return "OR{" + d.members(e.Paths) + "}"
	case *AtomicRefSimple:
		return d.label(e.Ref.Resolve()) + "." + e.Name
	case *MetaRef:
		return d.label(e.Ref.Resolve()) + ".__type__." + e.Name
	case *LinkPropRefSimple:
		return d.label(e.Ref.Resolve()) + "@" + e.Name
	case *AtomicRefExpr:
		return "aref(" + d.expr(e.Expr) + ")"
	case *InlineFilter:
		return "filter(" + d.label(e.Ref.Resolve()) + ", " + d.expr(e.Expr) + ")"
	case *LinkPropRefExpr:
		return "lref(" + d.expr(e.Expr) + ")"
	case *InlinePropFilter:
		return "propfilter(" + d.label(e.Ref.Resolve()) + ", " + d.expr(e.Expr) + ")"
	case *MetaRefExpr:
		return "mref(" + d.expr(e.Expr) + ")"
	case *Constant:
		switch {
		case e.Param != "":
			return "$" + e.Param
		case e.Expr != nil:
			return "const(" + d.expr(e.Expr) + ")"
		case e.Value == nil:
			return "{}"
		}
		if s, ok := e.Value.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%v", e.Value)
	case *BinOp:
		op := e.Op
		if e.Aggregates {
			op += "*"
		}
		return "(" + d.expr(e.Left) + " " + op + " " + d.expr(e.Right) + ")"
	case *UnaryOp:
		return "(" + e.Op + " " + d.expr(e.Expr) + ")"
	case *NoneTest:
		return "none?(" + d.expr(e.Expr) + ")"
	case *ExistPred:
		return "exists(" + d.expr(e.Expr) + ")"
	case *TypeRef:
		return typeRefName(e)
	case *TypeCast:
		return "<" + typeRefName(e.Type) + ">" + d.expr(e.Expr)
	case *FunctionCall:
		args := []string{}
		for _, a := range e.Args {
			args = append(args, d.expr(a))
		}
		for _, k := range e.Kwargs {
			args = append(args, k.Name+" := "+d.expr(k.Expr))
		}
		out := e.Name.String() + "(" + strings.Join(args, ", ")
		if len(e.AggSort) > 0 {
			var sorts []string
			for _, s := range e.AggSort {
				sorts = append(sorts, d.sort(s))
			}
			out += " ORDER BY " + strings.Join(sorts, ", ")
		}
		if e.AggFilter != nil {
			out += " FILTER " + d.expr(e.AggFilter)
		}
		out += ")"
		if e.Window {
			out += " OVER (" + d.exprs(e.Partition) + ")"
		}
		return out
	case *Sequence:
		if e.IsArray {
			return "[" + d.exprs(e.Elements) + "]"
		}
		return "(" + d.exprs(e.Elements) + ")"
	case *Record:
		return typeName(e.Concept) + "{" + d.exprs(e.Elements) + "}"
	case *IfElse:
		return "(" + d.expr(e.Then) + " IF " + d.expr(e.Condition) + " ELSE " + d.expr(e.Else) + ")"
	case *SubgraphRef:
		if e.Ref == nil {
			return "?." + e.Name
		}
		return d.label(e.Ref) + "." + e.Name
	case *GraphExpr:
		return d.label(e)
	}
	return fmt.Sprintf("<%T>", e)
}

func typeRefName(t *TypeRef) string {
	if t == nil {
		return "<nil>"
	}
	name := t.Name
	if t.Type != nil {
		name = t.Type.SchemaName().String()
	}
	if len(t.Subtypes) > 0 {
		var subs []string
		for _, s := range t.Subtypes {
			subs = append(subs, typeRefName(s))
		}
		name += "<" + strings.Join(subs, ", ") + ">"
	}
	return name
}
