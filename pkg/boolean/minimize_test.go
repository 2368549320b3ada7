package boolean

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBitset(t *testing.T) {
	b := NewBitset(1, 3, 70)
	assert.True(t, b.Has(70))
	assert.False(t, b.Has(2))
	assert.Equal(t, 3, b.Count())
	assert.Equal(t, []int{1, 3, 70}, b.Indexes())
	assert.Equal(t, "{1,3,70}", b.String())
	assert.True(t, NewBitset(1, 70).SubsetOf(b))
	assert.False(t, b.SubsetOf(NewBitset(1, 3)))
	assert.True(t, b.Minus(NewBitset(70)).Equal(NewBitset(1, 3)))
	assert.True(t, b.Intersect(NewBitset(3, 4)).Equal(NewBitset(3)))
	assert.True(t, NewBitset(1).Union(NewBitset(65)).Equal(NewBitset(1, 65)))
	assert.True(t, NewBitset().IsEmpty())
	assert.True(t, b.Minus(b).IsEmpty())
	// With does not modify its receiver.
	c := NewBitset(1)
	_ = c.With(2)
	assert.Equal(t, []int{1}, c.Indexes())
}

func pos(vars ...int) Term {
	return Positive(NewBitset(vars...))
}

func TestMinimizeDistributed(t *testing.T) {
	// (a|b)&(a|c) distributes to a | ac | ab | bc.
	in := []Term{pos(0), pos(0, 2), pos(1, 0), pos(1, 2)}
	expected := []Term{pos(0), pos(1, 2)}
	assert.Equal(t, expected, Minimize(3, in))
	assert.Equal(t, expected, (&Minimizer{MaxExact: 2}).Minimize(3, in))
}

func TestMinimizeCombines(t *testing.T) {
	// ab | a!b is a.
	in := []Term{
		{Mask: NewBitset(0, 1), Value: NewBitset(0, 1)},
		{Mask: NewBitset(0, 1), Value: NewBitset(0)},
	}
	assert.Equal(t, []Term{pos(0)}, Minimize(2, in))
}

func TestMinimizeTrivial(t *testing.T) {
	assert.Nil(t, Minimize(3, nil))
	out := Minimize(2, []Term{{}, pos(0)})
	require.Len(t, out, 1)
	assert.True(t, out[0].Mask.IsEmpty())
}

func TestMinimizeDeterministic(t *testing.T) {
	in := []Term{pos(0, 1), pos(2), pos(1, 3), pos(0, 3), pos(1, 2, 3)}
	want := Minimize(4, in)
	r := rand.New(rand.NewSource(1))
	for k := 0; k < 20; k++ {
		shuffled := append([]Term(nil), in...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, Minimize(4, shuffled))
	}
}

// literal is a variable, possibly negated.
type literal struct {
	v   int
	neg bool
}

// clause is a disjunction of literals, and a cnf a conjunction of clauses.
type clause []literal
type cnf []clause

func (f cnf) eval(assign Bitset) bool {
	for _, c := range f {
		ok := false
		for _, l := range c {
			if assign.Has(l.v) != l.neg {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// distribute multiplies out f into a sum of products, dropping products
// that contain a variable and its negation.
func (f cnf) distribute() []Term {
	terms := []Term{{}}
	for _, c := range f {
		var next []Term
		for _, t := range terms {
			for _, l := range c {
				if t.Mask.Has(l.v) {
					if t.Value.Has(l.v) == l.neg {
						continue
					}
					next = append(next, t)
					continue
				}
				n := Term{Mask: t.Mask.With(l.v), Value: t.Value}
				if !l.neg {
					n.Value = n.Value.With(l.v)
				}
				next = append(next, n)
			}
		}
		terms = next
	}
	return terms
}

func randomCNF(r *rand.Rand, nvars int, negate bool) cnf {
	var f cnf
	for k := r.Intn(4) + 1; k > 0; k-- {
		var c clause
		for j := r.Intn(3) + 1; j > 0; j-- {
			c = append(c, literal{v: r.Intn(nvars), neg: negate && r.Intn(3) == 0})
		}
		f = append(f, c)
	}
	return f
}

func assignments(nvars int) []Bitset {
	var out []Bitset
	for a := 0; a < 1<<nvars; a++ {
		var b Bitset
		for v := 0; v < nvars; v++ {
			if a&(1<<v) != 0 {
				b = b.With(v)
			}
		}
		out = append(out, b)
	}
	return out
}

func TestMinimizeTruthTable(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	exact := &Minimizer{Logger: zap.NewNop()}
	fallback := &Minimizer{MaxExact: 1}
	for k := 0; k < 500; k++ {
		nvars := r.Intn(5) + 1
		f := randomCNF(r, nvars, k%2 == 1)
		terms := f.distribute()
		for _, m := range []*Minimizer{exact, fallback} {
			out := m.Minimize(nvars, terms)
			for _, a := range assignments(nvars) {
				require.Equal(t, f.eval(a), Eval(out, a), "cnf %v assignment %s", f, a)
			}
		}
	}
}

func TestMinimizeNoRedundantPrimes(t *testing.T) {
	// Monotone sums minimize to their minimal terms.
	r := rand.New(rand.NewSource(7))
	for k := 0; k < 200; k++ {
		nvars := r.Intn(5) + 1
		out := Minimize(nvars, randomCNF(r, nvars, false).distribute())
		for i, a := range out {
			assert.True(t, a.Mask.Equal(a.Value), "monotone term %v", a)
			for j, b := range out {
				if i != j {
					assert.False(t, a.absorbs(b), "%v absorbs %v", a, b)
				}
			}
		}
	}
}
