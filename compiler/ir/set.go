package ir

// Set is a set that remembers insertion order.  Iteration over a Set is
// therefore deterministic, which keeps the IR built from it identical
// across compiles of the same query.  The zero Set is empty and ready to
// use.  A Set must not be copied after first use; use Clone.
type Set[T comparable] struct {
	items []T
	index map[T]int
}

func NewSet[T comparable](items ...T) Set[T] {
	var s Set[T]
	s.Add(items...)
	return s
}

// Add inserts the items not already in s and reports whether any were
// inserted.
func (s *Set[T]) Add(items ...T) bool {
	added := false
	for _, x := range items {
		if s.index == nil {
			s.index = make(map[T]int)
		}
		if _, ok := s.index[x]; ok {
			continue
		}
		s.index[x] = len(s.items)
		s.items = append(s.items, x)
		added = true
	}
	return added
}

// Update adds the items of o to s in o's order.
func (s *Set[T]) Update(o Set[T]) {
	s.Add(o.items...)
}

func (s *Set[T]) Remove(x T) {
	k, ok := s.index[x]
	if !ok {
		return
	}
	delete(s.index, x)
	s.items = append(s.items[:k:k], s.items[k+1:]...)
	for j := k; j < len(s.items); j++ {
		s.index[s.items[j]] = j
	}
}

func (s Set[T]) Has(x T) bool {
	_, ok := s.index[x]
	return ok
}

func (s Set[T]) Len() int {
	return len(s.items)
}

// Items returns the elements of s in insertion order.  The caller may
// not modify the result.
func (s Set[T]) Items() []T {
	return s.items
}

// First returns the earliest inserted element.
func (s Set[T]) First() T {
	var zero T
	if len(s.items) == 0 {
		return zero
	}
	return s.items[0]
}

func (s Set[T]) Clone() Set[T] {
	return NewSet(s.items...)
}

// Equal reports whether s and o hold the same elements in any order.
func (s Set[T]) Equal(o Set[T]) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, x := range s.items {
		if !o.Has(x) {
			return false
		}
	}
	return true
}

// Minus returns the elements of s not in o.
func (s Set[T]) Minus(o Set[T]) Set[T] {
	var out Set[T]
	for _, x := range s.items {
		if !o.Has(x) {
			out.Add(x)
		}
	}
	return out
}

// Union returns a new set with the elements of s followed by those of o.
func (s Set[T]) Union(o Set[T]) Set[T] {
	out := s.Clone()
	out.Update(o)
	return out
}

// PathSet is the member set of a Conjunction or Disjunction.
type PathSet = Set[Path]
