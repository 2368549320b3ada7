package semantic

import (
	"github.com/brimdata/edgeql/compiler/ir"
	"github.com/brimdata/edgeql/pkg/boolean"
	"github.com/brimdata/edgeql/schema"
	"go.uber.org/zap"
)

// merger combines paths.  Adding two paths gives their union, where a set
// reached along the same path on both sides survives once with optional
// links; intersecting gives paths that must all hold.  Sets are merged in
// place: the set that loses a merge forwards to the survivor.
type merger struct {
	a   *analyzer
	loc ir.Location
}

// mergeMode is how filters of merged sets combine.  With filters unset,
// two sets only match when neither carries a filter.  op is the operator
// the merged paths came from; it decides between OR and AND when
// filters are combined.
type mergeMode struct {
	filters bool
	op      string
}

var mergeAll = mergeMode{filters: true}

func (a *analyzer) merger(loc ir.Location) *merger {
	return &merger{a: a, loc: loc}
}

func (m *merger) isWeakOp(op string) bool {
	return ir.IsWeakOp(op) || m.loc != ir.Generator
}

func (m *merger) mergeOp(mode mergeMode) string {
	if mode.op != "" && m.isWeakOp(mode.op) {
		return "OR"
	}
	return "AND"
}

func resolve(p ir.Path) ir.Path {
	switch p := p.(type) {
	case *ir.EntitySet:
		return p.Resolve()
	case *ir.EntityLink:
		return p.Resolve()
	}
	return p
}

// split returns the set and the link at the end of a set or link path.
func split(p ir.Path) (*ir.EntitySet, *ir.EntityLink) {
	switch p := p.(type) {
	case *ir.EntitySet:
		return p, p.Rlink.Resolve()
	case *ir.EntityLink:
		return p.Target.Resolve(), p
	}
	return nil, nil
}

func pickMerged(leftSet, rightSet *ir.EntitySet, leftLink *ir.EntityLink) ir.Path {
	switch {
	case leftSet != nil:
		return leftSet
	case rightSet != nil:
		return rightSet
	case leftLink != nil:
		return leftLink
	}
	return nil
}

func (m *merger) addPaths(left, right ir.Path, mode mergeMode) ir.Path {
	left, right = resolve(left), resolve(right)
	switch l := left.(type) {
	case *ir.EntitySet, *ir.EntityLink:
		switch r := right.(type) {
		case *ir.EntitySet, *ir.EntityLink:
			return m.addSets(left, right, mode)
		case *ir.Disjunction:
			return m.addToDisjunction(r, left, mode)
		case *ir.Conjunction:
			return m.addToConjunction(r, left, mode)
		}
	case *ir.Disjunction:
		switch r := right.(type) {
		case *ir.EntitySet, *ir.EntityLink:
			return m.addToDisjunction(l, right, mode)
		case *ir.Disjunction:
			return m.addDisjunctions(l, r, mode)
		case *ir.Conjunction:
			return addConjunctionToDisjunction(l, r)
		}
	case *ir.Conjunction:
		switch r := right.(type) {
		case *ir.EntitySet, *ir.EntityLink:
			return m.addToConjunction(l, right, mode)
		case *ir.Disjunction:
			return addConjunctionToDisjunction(r, l)
		case *ir.Conjunction:
			return addConjunctions(l, r)
		}
	}
	m.a.failf("cannot add paths %T and %T", left, right)
	return left
}

func (m *merger) addSets(left, right ir.Path, mode mergeMode) ir.Path {
	left, right = resolve(left), resolve(right)
	if left == right {
		return left
	}
	op := m.mergeOp(mode)
	if matchPrefixes(left, right, mode.filters) == nil {
		return ir.NewDisjunction(left, right)
	}
	leftSet, leftLink := split(left)
	rightSet, rightLink := split(right)
	if leftLink != nil && rightLink != nil && leftLink != rightLink {
		rightLink.MergeInto(leftLink)
		if mode.filters && rightLink.Propfilter != nil {
			leftLink.Propfilter = extendBinop(leftLink.Propfilter, op, rightLink.Propfilter)
		}
		leftLink.Proprefs.Update(rightLink.Proprefs)
		leftLink.Users.Update(rightLink.Users)
		// The right target is merged into the left one below.
		if leftLink.Target == nil {
			leftLink.Target = rightLink.Target
		}
		if leftLink.AtomRef == nil {
			leftLink.AtomRef = rightLink.AtomRef
		}
	}
	if leftSet != nil && rightSet != nil && leftSet != rightSet {
		rightSet.MergeInto(leftSet)
		if mode.filters && rightSet.Filter != nil {
			leftSet.Filter = extendBinop(leftSet.Filter, "AND", rightSet.Filter)
		}
		rdisj := rightSet.Disjunction
		if mode.filters {
			var keep ir.PathSet
			for _, p := range rdisj.Paths.Items() {
				if ir.IsSet(p) && m.intersectPaths(leftSet.Conjunction, p, mode) == ir.Path(leftSet.Conjunction) {
					continue
				}
				keep.Add(p)
			}
			rdisj = &ir.Disjunction{Paths: keep, Fixed: rdisj.Fixed}
		}
		leftSet.Disjunction = asDisjunction(m.addPaths(leftSet.Disjunction, rdisj, mode))
		if mode.filters && op == "OR" {
			leftSet.Disjunction.Fixed = true
		}
		mergeSetRefs(leftSet, rightSet)
		if mode.filters {
			leftSet.Conjunction = asConjunction(m.intersectPaths(leftSet.Conjunction, rightSet.Conjunction, mode))
			m.unifyPaths(pathNodes(leftSet.Conjunction.Paths, leftSet.Disjunction.Paths), false, false, mode)
			leftSet.Disjunction.Paths = leftSet.Disjunction.Paths.Minus(leftSet.Conjunction.Paths)
		} else {
			conj := addConjunctions(leftSet.Conjunction, rightSet.Conjunction)
			if conj.Paths.Len() > 0 {
				update(leftSet.Disjunction, conj)
			}
			leftSet.Conjunction = &ir.Conjunction{}
		}
	}
	return pickMerged(leftSet, rightSet, leftLink)
}

// mergeSetRefs moves what right knows about its references into left.
func mergeSetRefs(left, right *ir.EntitySet) {
	left.Atomrefs.Update(right.Atomrefs)
	left.Metarefs.Update(right.Metarefs)
	left.Users.Update(right.Users)
	left.Joins.Update(right.Joins)
	left.Joins.Remove(left)
	left.Joins.Remove(right)
	left.Backrefs.Update(right.Backrefs)
	left.Backrefs.Remove(left)
	left.Backrefs.Remove(right)
	if left.Origin == nil {
		left.Origin = right.Origin
	}
	if left.Pathvar == "" {
		left.Pathvar = right.Pathvar
	}
	if left.Anchor == "" {
		left.Anchor = right.Anchor
	}
	if right.Concept != nil && left.Concept != nil && right.Concept != left.Concept && right.Concept.IsSubclass(left.Concept) {
		left.Concept = right.Concept
	}
	if left.Rlink == nil {
		left.Rlink = right.Rlink
	}
}

func (m *merger) addToDisjunction(d *ir.Disjunction, p ir.Path, mode mergeMode) ir.Path {
	for _, dp := range d.Paths.Items() {
		if !ir.IsSet(dp) {
			continue
		}
		if _, ok := m.addSets(dp, p, mode).(ir.PathCombination); !ok {
			return d
		}
	}
	d.Paths.Add(p)
	return d
}

func (m *merger) addToConjunction(c *ir.Conjunction, p ir.Path, mode mergeMode) ir.Path {
	if mode.filters {
		for _, cp := range c.Paths.Items() {
			if !ir.IsSet(cp) {
				continue
			}
			if _, ok := m.addSets(cp, p, mode).(ir.PathCombination); !ok {
				return c
			}
		}
	}
	return ir.NewDisjunction(c, p)
}

func (m *merger) addDisjunctions(left, right *ir.Disjunction, mode mergeMode) ir.Path {
	result := &ir.Disjunction{Fixed: left.Fixed || right.Fixed}
	result.Paths.Update(left.Paths)
	result.Paths.Update(right.Paths)
	if result.Paths.Len() > 1 {
		m.unifyPaths(pathNodes(result.Paths), true, false, mode)
	}
	return result
}

func addConjunctionToDisjunction(d *ir.Disjunction, c *ir.Conjunction) ir.Path {
	switch {
	case d.Paths.Len() > 0 && c.Paths.Len() > 0:
		return ir.NewDisjunction(d, c)
	case d.Paths.Len() > 0:
		return d
	case c.Paths.Len() > 0:
		return ir.NewDisjunction(c)
	}
	return &ir.Disjunction{}
}

func addConjunctions(left, right *ir.Conjunction) *ir.Disjunction {
	result := &ir.Disjunction{}
	if left.Paths.Len() > 0 {
		result.Paths.Add(left)
	}
	if right.Paths.Len() > 0 {
		result.Paths.Add(right)
	}
	return result
}

func (m *merger) intersectPaths(left, right ir.Path, mode mergeMode) ir.Path {
	left, right = resolve(left), resolve(right)
	switch l := left.(type) {
	case *ir.EntitySet, *ir.EntityLink:
		switch r := right.(type) {
		case *ir.EntitySet, *ir.EntityLink:
			return m.intersectSets(left, right, mode)
		case *ir.Disjunction:
			return ir.NewConjunction(r, left)
		case *ir.Conjunction:
			return m.intersectWithConjunction(r, left, mode)
		}
	case *ir.Disjunction:
		switch r := right.(type) {
		case *ir.EntitySet, *ir.EntityLink:
			return ir.NewConjunction(l, right)
		case *ir.Disjunction:
			return m.intersectDisjunctions(l, r)
		case *ir.Conjunction:
			return intersectDisjunctionWithConjunction(l, r)
		}
	case *ir.Conjunction:
		switch r := right.(type) {
		case *ir.EntitySet, *ir.EntityLink:
			return m.intersectWithConjunction(l, right, mode)
		case *ir.Disjunction:
			return intersectDisjunctionWithConjunction(r, l)
		case *ir.Conjunction:
			return m.intersectConjunctions(l, r, mode)
		}
	}
	m.a.failf("cannot intersect paths %T and %T", left, right)
	return left
}

func (m *merger) intersectSets(left, right ir.Path, mode mergeMode) ir.Path {
	left, right = resolve(left), resolve(right)
	if left == right {
		return left
	}
	if matchPrefixes(left, right, true) == nil {
		return ir.NewConjunction(left, right)
	}
	leftSet, leftLink := split(left)
	rightSet, rightLink := split(right)
	if leftLink != nil && rightLink != nil && leftLink != rightLink {
		rightLink.MergeInto(leftLink)
		if rightLink.Propfilter != nil {
			leftLink.Propfilter = extendBinop(leftLink.Propfilter, "AND", rightLink.Propfilter)
		}
		leftLink.Proprefs.Update(rightLink.Proprefs)
		leftLink.Users.Update(rightLink.Users)
		if leftLink.Target == nil {
			leftLink.Target = rightLink.Target
		}
		if leftLink.AtomRef == nil {
			leftLink.AtomRef = rightLink.AtomRef
		}
	}
	if leftSet != nil && rightSet != nil && leftSet != rightSet {
		rightSet.MergeInto(leftSet)
		if rightSet.Filter != nil {
			leftSet.Filter = extendBinop(leftSet.Filter, "AND", rightSet.Filter)
		}
		leftSet.Conjunction = asConjunction(m.intersectPaths(leftSet.Conjunction, rightSet.Conjunction, mode))
		mergeSetRefs(leftSet, rightSet)
		disj := m.intersectPaths(leftSet.Disjunction, rightSet.Disjunction, mode)
		leftSet.Disjunction = &ir.Disjunction{}
		switch d := disj.(type) {
		case *ir.Disjunction:
			m.unifyPaths(pathNodes(leftSet.Conjunction.Paths, d.Paths), false, false, mode)
			leftSet.Disjunction = d
			if d.Paths.Len() == 1 {
				if c, ok := d.Paths.First().(*ir.Conjunction); ok {
					leftSet.Conjunction = c
					leftSet.Disjunction = &ir.Disjunction{}
				}
			}
		case ir.PathCombination:
			if d.Members().Len() > 0 {
				conj := m.intersectPaths(leftSet.Conjunction, d, mode)
				if c, ok := conj.(ir.PathCombination); ok {
					ir.Flatten(c, false)
					if c.Members().Len() == 1 {
						if only, ok := c.Members().First().(*ir.Disjunction); ok {
							leftSet.Disjunction = only
							conj = &ir.Conjunction{}
						}
					}
				}
				leftSet.Conjunction = asConjunction(conj)
			}
		}
	}
	return pickMerged(leftSet, rightSet, leftLink)
}

func (m *merger) intersectWithConjunction(c *ir.Conjunction, p ir.Path, mode mergeMode) ir.Path {
	for _, cp := range c.Paths.Items() {
		if !ir.IsSet(cp) {
			continue
		}
		if _, ok := m.intersectSets(cp, p, mode).(ir.PathCombination); !ok {
			return c
		}
	}
	result := &ir.Conjunction{}
	result.Paths.Update(c.Paths)
	result.Paths.Add(p)
	return result
}

func (m *merger) intersectConjunctions(left, right *ir.Conjunction, mode mergeMode) ir.Path {
	result := &ir.Conjunction{}
	result.Paths.Update(left.Paths)
	result.Paths.Update(right.Paths)
	ir.Flatten(result, false)
	if result.Paths.Len() > 1 {
		m.unifyPaths(pathNodes(result.Paths), false, false, mode)
	}
	return result
}

func (m *merger) intersectDisjunctions(left, right *ir.Disjunction) ir.Path {
	if left.Paths.Len() > 0 && right.Paths.Len() > 0 {
		var paths []ir.Path
		for _, l := range left.Paths.Items() {
			for _, r := range right.Paths.Items() {
				paths = append(paths, m.intersectPaths(l, r, mergeMode{}))
			}
		}
		return m.minimizeDisjunction(paths)
	}
	side := left
	if left.Paths.Len() == 0 {
		side = right
	}
	if side.Paths.Len() <= 1 && !side.Fixed {
		return &ir.Conjunction{Paths: side.Paths.Clone()}
	}
	return &ir.Disjunction{Paths: side.Paths.Clone(), Fixed: side.Fixed}
}

func intersectDisjunctionWithConjunction(d *ir.Disjunction, c *ir.Conjunction) ir.Path {
	switch {
	case d.Paths.Len() > 0 && c.Paths.Len() > 0:
		return ir.NewDisjunction(d, c)
	case c.Paths.Len() > 0:
		return c
	case d.Paths.Len() > 0:
		return ir.NewConjunction(d)
	}
	return &ir.Conjunction{}
}

// minimizeDisjunction treats each path as a product of boolean variables
// (the members of a conjunction, or the path itself) and returns the
// minimal sum of the products as a disjunction.
func (m *merger) minimizeDisjunction(paths []ir.Path) *ir.Disjunction {
	var vars []ir.Path
	index := make(map[ir.Path]int)
	variable := func(p ir.Path) int {
		p = resolve(p)
		if k, ok := index[p]; ok {
			return k
		}
		index[p] = len(vars)
		vars = append(vars, p)
		return len(vars) - 1
	}
	var terms []boolean.Term
	for _, p := range paths {
		var bits boolean.Bitset
		if c, ok := p.(*ir.Conjunction); ok {
			for _, sub := range c.Paths.Items() {
				bits = bits.With(variable(sub))
			}
		} else {
			bits = bits.With(variable(p))
		}
		terms = append(terms, boolean.Positive(bits))
	}
	minimizer := &boolean.Minimizer{Logger: m.a.logger}
	result := &ir.Disjunction{}
	for _, t := range minimizer.Minimize(len(vars), terms) {
		idx := t.Vars().Indexes()
		switch len(idx) {
		case 0:
		case 1:
			result.Paths.Add(vars[idx[0]])
		default:
			c := &ir.Conjunction{}
			for _, k := range idx {
				c.Paths.Add(vars[k])
			}
			result.Paths.Add(c)
		}
	}
	m.a.logger.Debug("minimized disjunction", zap.Int("terms", len(terms)), zap.Int("paths", result.Paths.Len()))
	return result
}

// matchPrefixes reports whether our and other denote the same graph
// position and returns the node of other that matched.  A link is
// identified by its target, or by its source and pointer when it has no
// target yet.
func matchPrefixes(our, other ir.Path, ignoreFilters bool) ir.Path {
	ourID, ourNode, ourLink := prefixOf(our)
	otherID, otherNode, otherLink := prefixOf(other)
	if (ourLink == nil) != (otherLink == nil) {
		return nil
	}
	if !ourID.IsZero() && ourID.Tail() == nil && otherID.Tail() != nil {
		otherID = otherID.WithWildcardTail()
	} else if !otherID.IsZero() && otherID.Tail() == nil && ourID.Tail() != nil {
		ourID = ourID.WithWildcardTail()
	}
	var ok bool
	switch {
	case ourNode == nil && otherNode == nil:
		ok = true
	case ourNode != nil && otherNode != nil:
		ok = ourID.Equal(otherID) && ourNode.Pathvar == otherNode.Pathvar &&
			(ignoreFilters || (ourNode.Filter == nil && otherNode.Filter == nil &&
				ourNode.Conjunction.Paths.Len() == 0 && otherNode.Conjunction.Paths.Len() == 0))
	}
	if ourLink != nil {
		ok = ok && ourLink.Ptr == otherLink.Ptr && ourLink.Direction == otherLink.Direction
	}
	if !ok {
		return nil
	}
	if otherLink != nil {
		return otherLink
	}
	if otherNode != nil {
		return otherNode
	}
	return nil
}

func prefixOf(p ir.Path) (ir.LinearPath, *ir.EntitySet, *ir.EntityLink) {
	switch p := resolve(p).(type) {
	case *ir.EntitySet:
		return p.ID, p, nil
	case *ir.EntityLink:
		if t := p.Target.Resolve(); t != nil {
			return t.ID, t, p
		}
		src := p.Source.Resolve()
		if src == nil {
			return ir.LinearPath{}, nil, p
		}
		return src.ID.Extend(p.Ptr, p.Direction, nil), src, p
	}
	return ir.LinearPath{}, nil, nil
}

// update adds p to c, hoisting the members of p when it is a combination
// of the same kind.
func update(c ir.PathCombination, p ir.Path) {
	if pc, ok := p.(ir.PathCombination); ok {
		if _, cd := c.(*ir.Disjunction); cd {
			if _, pd := pc.(*ir.Disjunction); pd {
				c.Members().Update(*pc.Members())
				return
			}
		} else if _, pcj := pc.(*ir.Conjunction); pcj {
			c.Members().Update(*pc.Members())
			return
		}
	}
	c.Members().Add(p)
}

func asConjunction(p ir.Path) *ir.Conjunction {
	switch p := p.(type) {
	case *ir.Conjunction:
		return p
	case nil:
		return &ir.Conjunction{}
	}
	return ir.NewConjunction(p)
}

func asDisjunction(p ir.Path) *ir.Disjunction {
	switch p := p.(type) {
	case *ir.Disjunction:
		return p
	case nil:
		return &ir.Disjunction{}
	case *ir.Conjunction:
		if p.Paths.Len() == 0 {
			return &ir.Disjunction{}
		}
	}
	return ir.NewDisjunction(p)
}

func pathNodes(sets ...ir.PathSet) []ir.Node {
	var out []ir.Node
	for _, s := range sets {
		for _, p := range s.Items() {
			out = append(out, p)
		}
	}
	return out
}

// extendBinop joins exprs onto e with op, skipping nil operands.
func extendBinop(e ir.Expr, op string, exprs ...ir.Expr) ir.Expr {
	for _, x := range exprs {
		if x == nil || x == e {
			continue
		}
		if e == nil {
			e = x
			continue
		}
		e = &ir.BinOp{Left: e, Op: op, Right: x}
	}
	return e
}

// idPointer returns the id pointer of the objects of t, if t is an
// object type.
func idPointer(t schema.Type) *schema.Pointer {
	if o, ok := t.(*schema.ObjectType); ok {
		return o.Pointer(schema.IDPointer)
	}
	return nil
}
