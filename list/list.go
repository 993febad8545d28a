// Package list implements a doubly linked list whose nodes are carved
// out of pooled blocks.
package list // import "jsouthworth.net/go/pooled/list"

import (
	"bytes"
	"fmt"
	"iter"

	"github.com/bits-and-blooms/bitset"

	"jsouthworth.net/go/pooled"
	"jsouthworth.net/go/pooled/internal/assert"
	"jsouthworth.net/go/pooled/internal/plex"
	"jsouthworth.net/go/pooled/traits"
)

// DefaultBlockSize is the number of nodes provisioned at a time.
const DefaultBlockSize = 10

var errEmptyList = fmt.Errorf("%w: empty list", pooled.ErrInvalidArgument)

// Position identifies a node of a List. The zero Position refers to no
// node. A Position stays valid until its node is removed; using it
// afterwards fails with pooled.ErrInvalidArgument.
type Position struct {
	h plex.Handle
}

// IsNil reports whether p refers to no node.
func (p Position) IsNil() bool {
	return p.h.IsNil()
}

func (p Position) String() string {
	return p.h.String()
}

type node[E any] struct {
	value      E
	prev, next plex.Handle
}

type options[E any] struct {
	blockSize int
	traits    traits.Traits[E]
	limit     int
}

// Option configures a List.
type Option[E any] func(*options[E])

// WithBlockSize sets how many nodes are provisioned at a time.
func WithBlockSize[E any](n int) Option[E] {
	return func(o *options[E]) {
		o.blockSize = n
	}
}

// WithTraits sets the element traits used by Find. The default is
// traits.Default.
func WithTraits[E any](t traits.Traits[E]) Option[E] {
	return func(o *options[E]) {
		o.traits = t
	}
}

// WithLimit bounds the number of node slots the list may provision.
func WithLimit[E any](n int) Option[E] {
	return func(o *options[E]) {
		o.limit = n
	}
}

// List is a mutable doubly linked list. The zero value is an empty list
// with the default block size and traits.
type List[E any] struct {
	nodes      *plex.Pool[node[E]]
	head, tail plex.Handle
	traits     traits.Traits[E]
	blockSize  int
	limit      int
}

// New returns an empty list configured by opts.
func New[E any](opts ...Option[E]) (*List[E], error) {
	o := options[E]{blockSize: DefaultBlockSize}
	for _, opt := range opts {
		opt(&o)
	}
	nodes, err := plex.New[node[E]](o.blockSize, plex.WithLimit(o.limit))
	if err != nil {
		return nil, err
	}
	return &List[E]{
		nodes:     nodes,
		traits:    o.traits,
		blockSize: o.blockSize,
		limit:     o.limit,
	}, nil
}

// From returns a list holding elems in order.
func From[E any](elems ...E) *List[E] {
	l := &List[E]{}
	for _, e := range elems {
		if _, err := l.AddTail(e); err != nil {
			panic(err)
		}
	}
	return l
}

func (l *List[E]) pool() *plex.Pool[node[E]] {
	if l.nodes == nil {
		if l.blockSize == 0 {
			l.blockSize = DefaultBlockSize
		}
		nodes, err := plex.New[node[E]](l.blockSize, plex.WithLimit(l.limit))
		assert.That(err == nil, "pool for a valid block size: %v", err)
		l.nodes = nodes
	}
	return l.nodes
}

func (l *List[E]) tr() traits.Traits[E] {
	if l.traits == nil {
		l.traits = traits.Default[E]()
	}
	return l.traits
}

func (l *List[E]) node(h plex.Handle) *node[E] {
	return l.nodes.Get(h)
}

// lookup resolves p to its node, failing for nil or stale positions.
func (l *List[E]) lookup(p Position) (*node[E], error) {
	if p.IsNil() {
		return nil, fmt.Errorf("%w: nil position", pooled.ErrInvalidArgument)
	}
	if l.nodes == nil {
		return nil, fmt.Errorf("%w: stale position %v", pooled.ErrInvalidArgument, p)
	}
	n, ok := l.nodes.Lookup(p.h)
	if !ok {
		return nil, fmt.Errorf("%w: stale position %v", pooled.ErrInvalidArgument, p)
	}
	return n, nil
}

func (l *List[E]) newNode(v E, prev, next plex.Handle) (plex.Handle, error) {
	h, n, err := l.pool().Alloc()
	if err != nil {
		return plex.Nil, err
	}
	n.value = v
	n.prev = prev
	n.next = next
	return h, nil
}

// freeNode returns h to the pool and releases every block once the last
// node is gone.
func (l *List[E]) freeNode(h plex.Handle) {
	l.nodes.Free(h)
	if l.nodes.Len() == 0 {
		l.nodes.Release()
		l.head, l.tail = plex.Nil, plex.Nil
	}
}

// Len returns the number of elements.
func (l *List[E]) Len() int {
	if l == nil || l.nodes == nil {
		return 0
	}
	return l.nodes.Len()
}

// IsEmpty reports whether the list has no elements.
func (l *List[E]) IsEmpty() bool {
	return l.Len() == 0
}

// Blocks returns the number of node blocks currently held.
func (l *List[E]) Blocks() int {
	if l.nodes == nil {
		return 0
	}
	return l.nodes.Blocks()
}

// Head returns the first element.
func (l *List[E]) Head() (E, error) {
	if l.IsEmpty() {
		var zero E
		return zero, errEmptyList
	}
	return l.node(l.head).value, nil
}

// Tail returns the last element.
func (l *List[E]) Tail() (E, error) {
	if l.IsEmpty() {
		var zero E
		return zero, errEmptyList
	}
	return l.node(l.tail).value, nil
}

// HeadPosition returns the position of the first element, nil when the
// list is empty.
func (l *List[E]) HeadPosition() Position {
	return Position{l.head}
}

// TailPosition returns the position of the last element, nil when the
// list is empty.
func (l *List[E]) TailPosition() Position {
	return Position{l.tail}
}

// Next returns the position following p, nil at the end of the list or
// when p is not valid.
func (l *List[E]) Next(p Position) Position {
	n, err := l.lookup(p)
	if err != nil {
		return Position{}
	}
	return Position{n.next}
}

// Prev returns the position preceding p, nil at the start of the list or
// when p is not valid.
func (l *List[E]) Prev(p Position) Position {
	n, err := l.lookup(p)
	if err != nil {
		return Position{}
	}
	return Position{n.prev}
}

func (l *List[E]) linkHead(v E) (Position, error) {
	h, err := l.newNode(v, plex.Nil, l.head)
	if err != nil {
		return Position{}, err
	}
	if l.head.IsNil() {
		l.tail = h
	} else {
		l.node(l.head).prev = h
	}
	l.head = h
	return Position{h}, nil
}

func (l *List[E]) linkTail(v E) (Position, error) {
	h, err := l.newNode(v, l.tail, plex.Nil)
	if err != nil {
		return Position{}, err
	}
	if l.tail.IsNil() {
		l.head = h
	} else {
		l.node(l.tail).next = h
	}
	l.tail = h
	return Position{h}, nil
}

// AddHead inserts v before the first element.
func (l *List[E]) AddHead(v E) (Position, error) {
	return l.linkHead(v)
}

// AddTail inserts v after the last element.
func (l *List[E]) AddTail(v E) (Position, error) {
	return l.linkTail(v)
}

// AddHeadZero inserts the zero value before the first element.
func (l *List[E]) AddHeadZero() (Position, error) {
	var zero E
	return l.linkHead(zero)
}

// AddTailZero inserts the zero value after the last element.
func (l *List[E]) AddTailZero() (Position, error) {
	var zero E
	return l.linkTail(zero)
}

// AddHeadList inserts a copy of other in front of the list, keeping
// other's order. If a node cannot be allocated the nodes added so far
// are removed again.
func (l *List[E]) AddHeadList(other *List[E]) error {
	if other == nil {
		return fmt.Errorf("%w: nil list", pooled.ErrInvalidArgument)
	}
	var added []Position
	p := other.TailPosition()
	for i, n := 0, other.Len(); i < n; i++ {
		v, _ := other.At(p)
		pos, err := l.AddHead(v)
		if err != nil {
			l.unwind(added)
			return err
		}
		added = append(added, pos)
		p = other.Prev(p)
	}
	return nil
}

// AddTailList appends a copy of other, keeping its order. If a node
// cannot be allocated the nodes added so far are removed again.
func (l *List[E]) AddTailList(other *List[E]) error {
	if other == nil {
		return fmt.Errorf("%w: nil list", pooled.ErrInvalidArgument)
	}
	var added []Position
	p := other.HeadPosition()
	for i, n := 0, other.Len(); i < n; i++ {
		v, _ := other.At(p)
		pos, err := l.AddTail(v)
		if err != nil {
			l.unwind(added)
			return err
		}
		added = append(added, pos)
		p = other.Next(p)
	}
	return nil
}

func (l *List[E]) unwind(added []Position) {
	for i := len(added) - 1; i >= 0; i-- {
		err := l.RemoveAt(added[i])
		assert.That(err == nil, "unwinding %v: %v", added[i], err)
	}
}

// RemoveHead removes and returns the first element.
func (l *List[E]) RemoveHead() (E, error) {
	if l.IsEmpty() {
		var zero E
		return zero, errEmptyList
	}
	h := l.head
	n := l.node(h)
	v := n.value
	l.head = n.next
	if l.head.IsNil() {
		l.tail = plex.Nil
	} else {
		l.node(l.head).prev = plex.Nil
	}
	l.freeNode(h)
	return v, nil
}

// RemoveTail removes and returns the last element.
func (l *List[E]) RemoveTail() (E, error) {
	if l.IsEmpty() {
		var zero E
		return zero, errEmptyList
	}
	h := l.tail
	n := l.node(h)
	v := n.value
	l.tail = n.prev
	if l.tail.IsNil() {
		l.head = plex.Nil
	} else {
		l.node(l.tail).next = plex.Nil
	}
	l.freeNode(h)
	return v, nil
}

// InsertBefore inserts v in front of p. A nil p inserts at the head.
func (l *List[E]) InsertBefore(p Position, v E) (Position, error) {
	if p.IsNil() {
		return l.AddHead(v)
	}
	if _, err := l.lookup(p); err != nil {
		return Position{}, err
	}
	// Allocating may grow the pool, so the node is looked up again.
	h, err := l.newNode(v, l.node(p.h).prev, p.h)
	if err != nil {
		return Position{}, err
	}
	old := l.node(p.h)
	if old.prev.IsNil() {
		assert.That(p.h == l.head, "node without prev is not the head")
		l.head = h
	} else {
		l.node(old.prev).next = h
	}
	old.prev = h
	return Position{h}, nil
}

// InsertAfter inserts v behind p. A nil p inserts at the tail.
func (l *List[E]) InsertAfter(p Position, v E) (Position, error) {
	if p.IsNil() {
		return l.AddTail(v)
	}
	if _, err := l.lookup(p); err != nil {
		return Position{}, err
	}
	h, err := l.newNode(v, p.h, l.node(p.h).next)
	if err != nil {
		return Position{}, err
	}
	old := l.node(p.h)
	if old.next.IsNil() {
		assert.That(p.h == l.tail, "node without next is not the tail")
		l.tail = h
	} else {
		l.node(old.next).prev = h
	}
	old.next = h
	return Position{h}, nil
}

// RemoveAt removes the element at p.
func (l *List[E]) RemoveAt(p Position) error {
	n, err := l.lookup(p)
	if err != nil {
		return err
	}
	if p.h == l.head {
		l.head = n.next
	} else {
		l.node(n.prev).next = n.next
	}
	if p.h == l.tail {
		l.tail = n.prev
	} else {
		l.node(n.next).prev = n.prev
	}
	l.freeNode(p.h)
	return nil
}

// At returns the element at p.
func (l *List[E]) At(p Position) (E, error) {
	n, err := l.lookup(p)
	if err != nil {
		var zero E
		return zero, err
	}
	return n.value, nil
}

// SetAt replaces the element at p.
func (l *List[E]) SetAt(p Position, v E) error {
	n, err := l.lookup(p)
	if err != nil {
		return err
	}
	n.value = v
	return nil
}

// Find returns the position of the first element equal to v, nil if
// there is none.
func (l *List[E]) Find(v E) Position {
	p, _ := l.FindAfter(v, Position{})
	return p
}

// FindAfter returns the position of the first element equal to v that
// follows after. A nil after searches from the head.
func (l *List[E]) FindAfter(v E, after Position) (Position, error) {
	h := l.head
	if !after.IsNil() {
		n, err := l.lookup(after)
		if err != nil {
			return Position{}, err
		}
		h = n.next
	}
	eq := l.tr().Equal
	for !h.IsNil() {
		n := l.node(h)
		if eq(n.value, v) {
			return Position{h}, nil
		}
		h = n.next
	}
	return Position{}, nil
}

// FindIndex returns the position of the i-th element, nil when i is out
// of range.
func (l *List[E]) FindIndex(i int) Position {
	if i < 0 || i >= l.Len() {
		return Position{}
	}
	h := l.head
	for ; i > 0; i-- {
		h = l.node(h).next
	}
	return Position{h}
}

// MoveToHead relinks the node at p to the front of the list.
func (l *List[E]) MoveToHead(p Position) error {
	n, err := l.lookup(p)
	if err != nil {
		return err
	}
	if p.h == l.head {
		return nil
	}
	if n.next.IsNil() {
		l.tail = n.prev
	} else {
		l.node(n.next).prev = n.prev
	}
	l.node(n.prev).next = n.next
	l.node(l.head).prev = p.h
	n.next = l.head
	n.prev = plex.Nil
	l.head = p.h
	return nil
}

// MoveToTail relinks the node at p to the back of the list.
func (l *List[E]) MoveToTail(p Position) error {
	n, err := l.lookup(p)
	if err != nil {
		return err
	}
	if p.h == l.tail {
		return nil
	}
	if n.prev.IsNil() {
		l.head = n.next
	} else {
		l.node(n.prev).next = n.next
	}
	l.node(n.next).prev = n.prev
	l.node(l.tail).next = p.h
	n.prev = l.tail
	n.next = plex.Nil
	l.tail = p.h
	return nil
}

// Swap exchanges the places of the nodes at p1 and p2 by relinking
// them. Both positions remain valid and keep referring to their
// elements.
func (l *List[E]) Swap(p1, p2 Position) error {
	n1, err := l.lookup(p1)
	if err != nil {
		return err
	}
	n2, err := l.lookup(p2)
	if err != nil {
		return err
	}
	h1, h2 := p1.h, p2.h
	if h1 == h2 {
		return nil
	}
	if n2.next == h1 {
		h1, h2 = h2, h1
		n1, n2 = n2, n1
	}
	if n1.next == h2 {
		l.swapAdjacent(h1, n1, h2, n2)
		return nil
	}

	n1.prev, n2.prev = n2.prev, n1.prev
	n1.next, n2.next = n2.next, n1.next
	l.relink(h1, n1)
	l.relink(h2, n2)
	return nil
}

// swapAdjacent swaps h1 and its successor h2.
func (l *List[E]) swapAdjacent(h1 plex.Handle, n1 *node[E], h2 plex.Handle, n2 *node[E]) {
	n2.prev = n1.prev
	if n1.prev.IsNil() {
		l.head = h2
	} else {
		l.node(n1.prev).next = h2
	}
	n1.next = n2.next
	if n2.next.IsNil() {
		l.tail = h1
	} else {
		l.node(n2.next).prev = h1
	}
	n2.next = h1
	n1.prev = h2
}

// relink points the neighbours of h, or the head and tail, back at h.
func (l *List[E]) relink(h plex.Handle, n *node[E]) {
	if n.next.IsNil() {
		l.tail = h
	} else {
		l.node(n.next).prev = h
	}
	if n.prev.IsNil() {
		l.head = h
	} else {
		l.node(n.prev).next = h
	}
}

// RemoveAll removes every element and releases the node blocks.
func (l *List[E]) RemoveAll() {
	if l.nodes == nil {
		return
	}
	for h := l.head; !h.IsNil(); {
		next := l.node(h).next
		l.nodes.Free(h)
		h = next
	}
	l.nodes.Release()
	l.head, l.tail = plex.Nil, plex.Nil
}

// All iterates over the positions and elements from head to tail. The
// element being visited may be removed during iteration.
func (l *List[E]) All() iter.Seq2[Position, E] {
	return func(yield func(Position, E) bool) {
		for h := l.head; !h.IsNil(); {
			n := l.node(h)
			next := n.next
			if !yield(Position{h}, n.value) {
				return
			}
			h = next
		}
	}
}

// Backward iterates over the positions and elements from tail to head.
func (l *List[E]) Backward() iter.Seq2[Position, E] {
	return func(yield func(Position, E) bool) {
		for h := l.tail; !h.IsNil(); {
			n := l.node(h)
			prev := n.prev
			if !yield(Position{h}, n.value) {
				return
			}
			h = prev
		}
	}
}

// Values iterates over the elements from head to tail.
func (l *List[E]) Values() iter.Seq[E] {
	return func(yield func(E) bool) {
		for _, v := range l.All() {
			if !yield(v) {
				return
			}
		}
	}
}

// Validate walks the list in both directions and checks that the links
// are reciprocal, that each walk visits every node exactly once, and
// that the head and tail agree with the length.
func (l *List[E]) Validate() error {
	n := l.Len()
	if n == 0 {
		if !l.head.IsNil() || !l.tail.IsNil() {
			return fmt.Errorf("%w: empty list with head %v and tail %v",
				pooled.ErrInvalidArgument, l.head, l.tail)
		}
		return nil
	}
	if l.head.IsNil() || l.tail.IsNil() {
		return fmt.Errorf("%w: %d elements with head %v and tail %v",
			pooled.ErrInvalidArgument, n, l.head, l.tail)
	}
	walk := func(start, end plex.Handle, forward bool) error {
		seen := bitset.New(uint(l.nodes.Cap()))
		count := 0
		prev := plex.Nil
		for h := start; !h.IsNil(); {
			nd, ok := l.nodes.Lookup(h)
			if !ok {
				return fmt.Errorf("%w: link to freed node %v",
					pooled.ErrInvalidArgument, h)
			}
			idx := uint(l.nodes.Index(h))
			if seen.Test(idx) {
				return fmt.Errorf("%w: cycle at node %v",
					pooled.ErrInvalidArgument, h)
			}
			seen.Set(idx)
			back, next := nd.prev, nd.next
			if !forward {
				back, next = next, back
			}
			if back != prev {
				return fmt.Errorf("%w: node %v links back to %v, expected %v",
					pooled.ErrInvalidArgument, h, back, prev)
			}
			count++
			prev = h
			h = next
		}
		if count != n {
			return fmt.Errorf("%w: walk visited %d of %d nodes",
				pooled.ErrInvalidArgument, count, n)
		}
		if prev != end {
			return fmt.Errorf("%w: walk ended at %v instead of %v",
				pooled.ErrInvalidArgument, prev, end)
		}
		return nil
	}
	if err := walk(l.head, l.tail, true); err != nil {
		return err
	}
	return walk(l.tail, l.head, false)
}

// String renders the list like a slice.
func (l *List[E]) String() string {
	buf := new(bytes.Buffer)
	fmt.Fprint(buf, "(")
	first := true
	for v := range l.Values() {
		if !first {
			fmt.Fprint(buf, " ")
		}
		first = false
		fmt.Fprint(buf, v)
	}
	fmt.Fprint(buf, ")")
	return buf.String()
}
