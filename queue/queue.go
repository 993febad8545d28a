// Package queue implements a mutable FIFO queue on top of list.
package queue // import "jsouthworth.net/go/pooled/queue"

import (
	"fmt"
	"iter"

	"jsouthworth.net/go/pooled"
	"jsouthworth.net/go/pooled/list"
)

var errEmptyQueue = fmt.Errorf("%w: empty queue", pooled.ErrInvalidArgument)

// Queue represents a mutable queue structure. Elements are pushed at
// the tail of a pooled list and popped from its head.
type Queue[E any] struct {
	elems *list.List[E]
}

// New returns an empty queue. The options configure the backing list.
func New[E any](opts ...list.Option[E]) (*Queue[E], error) {
	l, err := list.New(opts...)
	if err != nil {
		return nil, err
	}
	return &Queue[E]{elems: l}, nil
}

// From returns a queue populated with elems.
func From[E any](elems ...E) *Queue[E] {
	return &Queue[E]{elems: list.From(elems...)}
}

// Push adds elem to the end of the queue.
func (q *Queue[E]) Push(elem E) error {
	_, err := q.elems.AddTail(elem)
	return err
}

// Pop removes and returns the first element of the queue.
func (q *Queue[E]) Pop() (E, error) {
	if q.elems.IsEmpty() {
		var zero E
		return zero, errEmptyQueue
	}
	return q.elems.RemoveHead()
}

// First returns the first element of the queue.
func (q *Queue[E]) First() (E, error) {
	if q.elems.IsEmpty() {
		var zero E
		return zero, errEmptyQueue
	}
	return q.elems.Head()
}

// Len returns the number of elements currently in the queue.
func (q *Queue[E]) Len() int {
	return q.elems.Len()
}

// All iterates over the queue from first to last.
func (q *Queue[E]) All() iter.Seq[E] {
	return q.elems.Values()
}

func (q *Queue[E]) String() string {
	return q.elems.String()
}
