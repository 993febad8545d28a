// Package sortedset implements a mutable ordered Set on top of vector.
// Elements are kept sorted by the traits' Compare and located by binary
// search.
package sortedset // import "jsouthworth.net/go/pooled/sortedset"

import (
	"fmt"
	"iter"
	"strings"

	"jsouthworth.net/go/pooled"
	"jsouthworth.net/go/pooled/traits"
	"jsouthworth.net/go/pooled/vector"
)

// Set is a mutable ordered set implementation.
type Set[E any] struct {
	elems  *vector.Vector[E]
	traits traits.Traits[E]
}

// New returns an empty set ordered by t, or by traits.Default when t is
// nil. The options configure the backing vector.
func New[E any](t traits.Traits[E], opts ...vector.Option[E]) (*Set[E], error) {
	if t == nil {
		t = traits.Default[E]()
	}
	v, err := vector.New(append(opts, vector.WithTraits(t))...)
	if err != nil {
		return nil, err
	}
	return &Set[E]{elems: v, traits: t}, nil
}

// From returns a set of the supplied elements ordered by t.
func From[E any](t traits.Traits[E], elems ...E) (*Set[E], error) {
	s, err := New(t)
	if err != nil {
		return nil, err
	}
	for _, elem := range elems {
		if _, err := s.Add(elem); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add adds an element to the set and reports whether it was absent.
func (s *Set[E]) Add(elem E) (bool, error) {
	i, found := s.elems.Search(elem)
	if found {
		return false, nil
	}
	if err := s.elems.InsertAt(i, elem, 1); err != nil {
		return false, err
	}
	return true, nil
}

// Contains returns true if the element is in the set, false otherwise.
func (s *Set[E]) Contains(elem E) bool {
	_, found := s.elems.Search(elem)
	return found
}

// Find will return the stored element equal to elem and whether it
// exists in the set.
func (s *Set[E]) Find(elem E) (E, bool) {
	i, found := s.elems.Search(elem)
	if !found {
		var zero E
		return zero, false
	}
	return s.elems.At(i), true
}

// Delete removes an element from the set and reports whether it was
// present.
func (s *Set[E]) Delete(elem E) bool {
	i, found := s.elems.Search(elem)
	if !found {
		return false
	}
	return s.elems.RemoveAt(i, 1) == nil
}

// Min returns the smallest element.
func (s *Set[E]) Min() (E, bool) {
	if s.elems.IsEmpty() {
		var zero E
		return zero, false
	}
	return s.elems.At(0), true
}

// Max returns the largest element.
func (s *Set[E]) Max() (E, bool) {
	if s.elems.IsEmpty() {
		var zero E
		return zero, false
	}
	return s.elems.At(s.elems.Len() - 1), true
}

// Len returns the number of elements in the set.
func (s *Set[E]) Len() int {
	return s.elems.Len()
}

// All iterates over the elements in ascending order.
func (s *Set[E]) All() iter.Seq[E] {
	return s.elems.Values()
}

// Validate checks the backing vector and that its elements are
// strictly ascending.
func (s *Set[E]) Validate() error {
	if err := s.elems.Validate(); err != nil {
		return err
	}
	data := s.elems.Data()
	for i := 1; i < len(data); i++ {
		if s.traits.Compare(data[i-1], data[i]) >= 0 {
			return fmt.Errorf("%w: %v at %d does not follow %v",
				pooled.ErrInvalidArgument, data[i], i, data[i-1])
		}
	}
	return nil
}

// String returns a string serialization of the set.
func (s *Set[E]) String() string {
	var b strings.Builder
	fmt.Fprint(&b, "{ ")
	for elem := range s.All() {
		fmt.Fprintf(&b, "%v ", elem)
	}
	fmt.Fprint(&b, "}")
	return b.String()
}
