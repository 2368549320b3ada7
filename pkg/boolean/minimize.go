// Package boolean minimizes sum-of-products boolean expressions.
//
// Expressions are lists of Terms over variables numbered from zero.  The
// caller assigns the numbers; the IR builder numbers the paths of a
// disjunction in the order it first sees them so that the minimized form is
// the same on every compile.
package boolean

import (
	"math/bits"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// DefaultMaxExact is the largest number of variables for which Minimize
// computes prime implicants.  Past it, only absorption is applied.
const DefaultMaxExact = 12

// Term is a product of literals.  Mask holds the variables that appear in
// the term and Value their polarity: a variable in Mask but not in Value
// appears negated.  The empty Term is true.
type Term struct {
	Mask  Bitset
	Value Bitset
}

// Positive returns the conjunction of vars.
func Positive(vars Bitset) Term {
	return Term{Mask: vars, Value: vars}
}

// Eval reports whether t holds when exactly the variables in assign are
// true.
func (t Term) Eval(assign Bitset) bool {
	return t.Vars().Equal(assign.Intersect(t.Mask))
}

// Vars returns the variables that appear un-negated in t.
func (t Term) Vars() Bitset {
	return t.Value.Intersect(t.Mask)
}

// absorbs reports whether t implies nothing beyond o, i.e., whether every
// assignment satisfying o satisfies t.
func (t Term) absorbs(o Term) bool {
	return t.Mask.SubsetOf(o.Mask) && o.Value.Intersect(t.Mask).Equal(t.Value.Intersect(t.Mask))
}

// Eval reports whether the sum of terms holds under assign.
func Eval(terms []Term, assign Bitset) bool {
	for _, t := range terms {
		if t.Eval(assign) {
			return true
		}
	}
	return false
}

type Minimizer struct {
	Logger *zap.Logger
	// MaxExact overrides DefaultMaxExact when positive.
	MaxExact int
}

// Minimize is Minimizer.Minimize with default settings.
func Minimize(nvars int, terms []Term) []Term {
	return (&Minimizer{}).Minimize(nvars, terms)
}

// Minimize returns a sum of products equivalent to terms over variables
// 0 through nvars-1.  With few enough variables the result is built from
// prime implicants (Quine-McCluskey) and contains no redundant term.  The
// result is sorted (by Mask, then Value) so equal inputs give equal
// outputs.
func (m *Minimizer) Minimize(nvars int, terms []Term) []Term {
	limit := m.MaxExact
	if limit <= 0 {
		limit = DefaultMaxExact
	}
	var out []Term
	exact := nvars <= limit && nvars < 64
	if exact {
		out = quineMcCluskey(nvars, terms)
	} else {
		out = absorb(terms)
	}
	sortTerms(out)
	if m.Logger != nil {
		m.Logger.Debug("boolean minimize",
			zap.Int("vars", nvars),
			zap.Int("terms_in", len(terms)),
			zap.Int("terms_out", len(out)),
			zap.Bool("exact", exact))
	}
	return out
}

// absorb drops duplicate terms and terms implied by another term.
func absorb(terms []Term) []Term {
	sorted := slices.Clone(terms)
	// Shorter terms absorb longer ones, so visit them first.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Mask.Count() < sorted[j].Mask.Count()
	})
	var out []Term
	for _, t := range sorted {
		absorbed := false
		for _, o := range out {
			if o.absorbs(t) {
				absorbed = true
				break
			}
		}
		if !absorbed {
			out = append(out, t)
		}
	}
	return out
}

type implicant struct {
	value  uint64
	dashes uint64
}

func (i implicant) covers(minterm uint64) bool {
	return minterm&^i.dashes == i.value
}

func quineMcCluskey(nvars int, terms []Term) []Term {
	full := uint64(1)<<uint(nvars) - 1
	minterms := expand(full, terms)
	if len(minterms) == 0 {
		return nil
	}
	primes := primeImplicants(minterms)
	cover := selectCover(minterms, primes)
	out := make([]Term, 0, len(cover))
	for _, p := range cover {
		fixed := full &^ p.dashes
		out = append(out, Term{Mask: fromWord(fixed), Value: fromWord(p.value & fixed)})
	}
	return out
}

// expand lists the minterms covered by terms in increasing order.
func expand(full uint64, terms []Term) []uint64 {
	seen := make(map[uint64]bool)
	for _, t := range terms {
		mask := t.Mask.word() & full
		value := t.Value.word() & mask
		free := full &^ mask
		for sub := free; ; sub = (sub - 1) & free {
			seen[value|sub] = true
			if sub == 0 {
				break
			}
		}
	}
	out := make([]uint64, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

func primeImplicants(minterms []uint64) []implicant {
	current := make([]implicant, 0, len(minterms))
	for _, m := range minterms {
		current = append(current, implicant{value: m})
	}
	var primes []implicant
	for len(current) > 0 {
		used := make(map[implicant]bool)
		next := make(map[implicant]bool)
		groups := make(map[uint64][]implicant)
		for _, imp := range current {
			groups[imp.dashes] = append(groups[imp.dashes], imp)
		}
		for _, group := range groups {
			for i := 0; i < len(group); i++ {
				for j := i + 1; j < len(group); j++ {
					diff := group[i].value ^ group[j].value
					if bits.OnesCount64(diff) != 1 {
						continue
					}
					next[implicant{value: group[i].value &^ diff, dashes: group[i].dashes | diff}] = true
					used[group[i]] = true
					used[group[j]] = true
				}
			}
		}
		for _, imp := range current {
			if !used[imp] {
				primes = append(primes, imp)
			}
		}
		current = current[:0]
		for imp := range next {
			current = append(current, imp)
		}
		sortImplicants(current)
	}
	sortImplicants(primes)
	return primes
}

// selectCover picks the essential primes and then, greedily, the prime
// covering the most remaining minterms until every minterm is covered.
func selectCover(minterms []uint64, primes []implicant) []implicant {
	uncovered := make(map[uint64]bool, len(minterms))
	for _, m := range minterms {
		uncovered[m] = true
	}
	chosen := make(map[implicant]bool)
	var cover []implicant
	take := func(p implicant) {
		if chosen[p] {
			return
		}
		chosen[p] = true
		cover = append(cover, p)
		for m := range uncovered {
			if p.covers(m) {
				delete(uncovered, m)
			}
		}
	}
	for _, m := range minterms {
		var only implicant
		n := 0
		for _, p := range primes {
			if p.covers(m) {
				only = p
				n++
			}
		}
		if n == 1 {
			take(only)
		}
	}
	for len(uncovered) > 0 {
		best, bestN := -1, 0
		for k, p := range primes {
			if chosen[p] {
				continue
			}
			n := 0
			for m := range uncovered {
				if p.covers(m) {
					n++
				}
			}
			if n > bestN || (n == bestN && n > 0 && bits.OnesCount64(p.dashes) > bits.OnesCount64(primes[best].dashes)) {
				best, bestN = k, n
			}
		}
		take(primes[best])
	}
	return cover
}

func sortImplicants(imps []implicant) {
	sort.Slice(imps, func(i, j int) bool {
		if imps[i].dashes != imps[j].dashes {
			return imps[i].dashes < imps[j].dashes
		}
		return imps[i].value < imps[j].value
	})
}

func sortTerms(terms []Term) {
	sort.SliceStable(terms, func(i, j int) bool {
		if c := compare(terms[i].Mask, terms[j].Mask); c != 0 {
			return c < 0
		}
		return compare(terms[i].Value, terms[j].Value) < 0
	})
}

func compare(a, b Bitset) int {
	a, b = a.trim(), b.trim()
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for k := len(a) - 1; k >= 0; k-- {
		if a[k] != b[k] {
			if a[k] < b[k] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func fromWord(w uint64) Bitset {
	if w == 0 {
		return nil
	}
	return Bitset{w}
}
