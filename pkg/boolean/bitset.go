package boolean

import (
	"math/bits"
	"strconv"
	"strings"
)

// Bitset is a set of small non-negative integers.  A Bitset is never
// modified in place: every operation that changes it returns a new value.
// Trailing zero words are trimmed so that Equal sets have equal lengths.
type Bitset []uint64

func NewBitset(indexes ...int) Bitset {
	var b Bitset
	for _, i := range indexes {
		b = b.With(i)
	}
	return b
}

func (b Bitset) Has(i int) bool {
	w := i / 64
	return w < len(b) && b[w]&(1<<(uint(i)%64)) != 0
}

// With returns a copy of b with i added.
func (b Bitset) With(i int) Bitset {
	w := i / 64
	n := len(b)
	if w >= n {
		n = w + 1
	}
	out := make(Bitset, n)
	copy(out, b)
	out[w] |= 1 << (uint(i) % 64)
	return out
}

func (b Bitset) Union(o Bitset) Bitset {
	if len(b) < len(o) {
		b, o = o, b
	}
	out := make(Bitset, len(b))
	copy(out, b)
	for k, w := range o {
		out[k] |= w
	}
	return out
}

func (b Bitset) Intersect(o Bitset) Bitset {
	n := len(b)
	if len(o) < n {
		n = len(o)
	}
	out := make(Bitset, n)
	for k := 0; k < n; k++ {
		out[k] = b[k] & o[k]
	}
	return out.trim()
}

// Minus returns the elements of b that are not in o.
func (b Bitset) Minus(o Bitset) Bitset {
	out := make(Bitset, len(b))
	copy(out, b)
	for k := 0; k < len(out) && k < len(o); k++ {
		out[k] &^= o[k]
	}
	return out.trim()
}

func (b Bitset) SubsetOf(o Bitset) bool {
	for k, w := range b {
		var ow uint64
		if k < len(o) {
			ow = o[k]
		}
		if w&^ow != 0 {
			return false
		}
	}
	return true
}

func (b Bitset) Equal(o Bitset) bool {
	b, o = b.trim(), o.trim()
	if len(b) != len(o) {
		return false
	}
	for k := range b {
		if b[k] != o[k] {
			return false
		}
	}
	return true
}

func (b Bitset) IsEmpty() bool {
	return len(b.trim()) == 0
}

func (b Bitset) Count() int {
	var n int
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

// Indexes returns the elements of b in increasing order.
func (b Bitset) Indexes() []int {
	var out []int
	for k, w := range b {
		for w != 0 {
			i := bits.TrailingZeros64(w)
			out = append(out, k*64+i)
			w &= w - 1
		}
	}
	return out
}

func (b Bitset) String() string {
	var s strings.Builder
	s.WriteByte('{')
	for k, i := range b.Indexes() {
		if k > 0 {
			s.WriteByte(',')
		}
		s.WriteString(strconv.Itoa(i))
	}
	s.WriteByte('}')
	return s.String()
}

func (b Bitset) trim() Bitset {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return b[:n]
}

// word returns the low 64 elements of b.
func (b Bitset) word() uint64 {
	if len(b) == 0 {
		return 0
	}
	return b[0]
}
