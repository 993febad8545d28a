// Package stack implements a mutable stack on top of vector.
package stack // import "jsouthworth.net/go/pooled/stack"

import (
	"fmt"
	"iter"
	"strings"

	"jsouthworth.net/go/pooled"
	"jsouthworth.net/go/pooled/vector"
)

var errEmptyStack = fmt.Errorf("%w: empty stack", pooled.ErrInvalidArgument)

// Stack is a mutable stack. The top of the stack is the last element of
// the backing vector.
type Stack[E any] struct {
	backingVector *vector.Vector[E]
}

// New returns an empty stack. The options configure the backing vector.
func New[E any](opts ...vector.Option[E]) (*Stack[E], error) {
	v, err := vector.New(opts...)
	if err != nil {
		return nil, err
	}
	return &Stack[E]{backingVector: v}, nil
}

// From returns a stack with elems pushed in order, so the last one is on
// top.
func From[E any](elems ...E) *Stack[E] {
	return &Stack[E]{backingVector: vector.From(elems...)}
}

// Push places elem on top of the stack.
func (s *Stack[E]) Push(elem E) error {
	_, err := s.backingVector.Add(elem)
	return err
}

// Top returns the element on top of the stack.
func (s *Stack[E]) Top() (E, error) {
	n := s.backingVector.Len()
	if n == 0 {
		var zero E
		return zero, errEmptyStack
	}
	return s.backingVector.At(n - 1), nil
}

// Pop removes and returns the element on top of the stack.
func (s *Stack[E]) Pop() (E, error) {
	top, err := s.Top()
	if err != nil {
		return top, err
	}
	if err := s.backingVector.RemoveAt(s.backingVector.Len()-1, 1); err != nil {
		return top, err
	}
	return top, nil
}

// Len returns the number of elements on the stack.
func (s *Stack[E]) Len() int {
	return s.backingVector.Len()
}

// All iterates from the top of the stack to the bottom.
func (s *Stack[E]) All() iter.Seq[E] {
	return func(yield func(E) bool) {
		data := s.backingVector.Data()
		for i := len(data) - 1; i >= 0; i-- {
			if !yield(data[i]) {
				return
			}
		}
	}
}

// String returns a representation of the stack, top first.
func (s *Stack[E]) String() string {
	var b strings.Builder
	fmt.Fprint(&b, "[ ")
	for elem := range s.All() {
		fmt.Fprintf(&b, "%v ", elem)
	}
	fmt.Fprint(&b, "]")
	return b.String()
}
