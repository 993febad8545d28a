// Package hashset implements a mutable Set datastructure on top of hashmap
package hashset // import "jsouthworth.net/go/pooled/hashset"

import (
	"fmt"
	"iter"
	"strings"

	"jsouthworth.net/go/pooled/hashmap"
)

// Set is a mutable unordered set implementation.
type Set[E any] struct {
	backingMap *hashmap.Map[E, struct{}]
}

// New returns an empty set. The options configure the backing map.
func New[E any](opts ...hashmap.Option) (*Set[E], error) {
	m, err := hashmap.New[E, struct{}](opts...)
	if err != nil {
		return nil, err
	}
	return &Set[E]{backingMap: m}, nil
}

// From returns a set containing the supplied elements.
func From[E any](elems ...E) (*Set[E], error) {
	s, err := New[E]()
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
	if s.backingMap.Contains(elem) {
		return false, nil
	}
	if _, err := s.backingMap.Set(elem, struct{}{}); err != nil {
		return false, err
	}
	return true, nil
}

// Contains returns true if the element is in the set, false otherwise.
func (s *Set[E]) Contains(elem E) bool {
	return s.backingMap.Contains(elem)
}

// Delete removes an element from the set and reports whether it was
// present.
func (s *Set[E]) Delete(elem E) bool {
	return s.backingMap.Delete(elem)
}

// Len returns the number of elements in the set.
func (s *Set[E]) Len() int {
	return s.backingMap.Len()
}

// All iterates over the elements of the set.
func (s *Set[E]) All() iter.Seq[E] {
	return s.backingMap.Keys()
}

// Validate checks the structure of the backing map.
func (s *Set[E]) Validate() error {
	return s.backingMap.Validate()
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
