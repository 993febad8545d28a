// Package vector implements a growable array with an adaptive growth
// policy.
package vector // import "jsouthworth.net/go/pooled/vector"

import (
	"bytes"
	"fmt"
	"iter"
	"slices"
	"unsafe"

	"jsouthworth.net/go/pooled"
	"jsouthworth.net/go/pooled/internal/assert"
	"jsouthworth.net/go/pooled/internal/checked"
	"jsouthworth.net/go/pooled/traits"
)

const (
	minGrowBy = 4
	maxGrowBy = 1024
)

func errOutOfBounds(i, n int) error {
	return fmt.Errorf("%w: index %d out of bounds [0, %d)",
		pooled.ErrInvalidArgument, i, n)
}

type options[E any] struct {
	growBy int
	traits traits.Traits[E]
	ctor   func() (E, error)
	maxCap int
}

// Option configures a Vector.
type Option[E any] func(*options[E])

// WithGrowBy fixes the number of slots added each time the buffer
// grows. Zero selects the adaptive increment of len/8 clamped to
// [4, 1024].
func WithGrowBy[E any](n int) Option[E] {
	return func(o *options[E]) {
		o.growBy = n
	}
}

// WithTraits sets the element traits. The default is traits.Default.
func WithTraits[E any](t traits.Traits[E]) Option[E] {
	return func(o *options[E]) {
		o.traits = t
	}
}

// WithConstructor sets the function used to initialize elements that
// the vector creates on its own, for instance when SetLen extends it.
// A constructor error aborts the operation and the vector is left as it
// was. Without a constructor new elements are the zero value.
func WithConstructor[E any](fn func() (E, error)) Option[E] {
	return func(o *options[E]) {
		o.ctor = fn
	}
}

// WithMaxCapacity bounds the capacity of the vector. Growth past it
// fails with pooled.ErrOutOfMemory. Zero means unbounded.
func WithMaxCapacity[E any](n int) Option[E] {
	return func(o *options[E]) {
		o.maxCap = n
	}
}

// Vector is a mutable growable array. The zero value is an empty vector
// using the default traits.
type Vector[E any] struct {
	// data has len equal to the vector length and cap equal to its
	// capacity. It is nil whenever the capacity is zero.
	data   []E
	growBy int
	traits traits.Traits[E]
	ctor   func() (E, error)
	maxCap int
}

// New returns an empty vector configured by opts.
func New[E any](opts ...Option[E]) (*Vector[E], error) {
	var o options[E]
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case o.growBy < 0:
		return nil, fmt.Errorf("%w: negative grow increment %d",
			pooled.ErrInvalidArgument, o.growBy)
	case o.maxCap < 0:
		return nil, fmt.Errorf("%w: negative maximum capacity %d",
			pooled.ErrInvalidArgument, o.maxCap)
	}
	return &Vector[E]{
		growBy: o.growBy,
		traits: o.traits,
		ctor:   o.ctor,
		maxCap: o.maxCap,
	}, nil
}

// From returns a vector holding a copy of elems.
func From[E any](elems ...E) *Vector[E] {
	v := &Vector[E]{}
	if len(elems) > 0 {
		v.data = make([]E, len(elems))
		v.tr().Copy(v.data, elems)
	}
	return v
}

func (v *Vector[E]) tr() traits.Traits[E] {
	if v.traits == nil {
		v.traits = traits.Default[E]()
	}
	return v.traits
}

// Len returns the number of elements.
func (v *Vector[E]) Len() int {
	if v == nil {
		return 0
	}
	return len(v.data)
}

// Cap returns the number of elements the vector can hold before its
// buffer must grow.
func (v *Vector[E]) Cap() int {
	if v == nil {
		return 0
	}
	return cap(v.data)
}

// IsEmpty reports whether the vector has no elements.
func (v *Vector[E]) IsEmpty() bool {
	return v.Len() == 0
}

// GrowBy returns the configured grow increment, zero when adaptive.
func (v *Vector[E]) GrowBy() int {
	return v.growBy
}

func (v *Vector[E]) growIncrement() int {
	if v.growBy > 0 {
		return v.growBy
	}
	return min(max(len(v.data)/8, minGrowBy), maxGrowBy)
}

// reserve makes room for at least required elements without changing
// the length. Existing elements are relocated into the new buffer.
func (v *Vector[E]) reserve(required int) error {
	if required <= cap(v.data) {
		return nil
	}
	newCap, err := checked.Add(cap(v.data), v.growIncrement())
	if err != nil {
		return err
	}
	newCap = max(newCap, required)
	if v.maxCap > 0 && newCap > v.maxCap {
		if required > v.maxCap {
			return fmt.Errorf("%w: capacity %d exceeds the maximum of %d",
				pooled.ErrOutOfMemory, required, v.maxCap)
		}
		newCap = v.maxCap
	}
	var zero E
	if _, err := checked.Size(newCap, int(unsafe.Sizeof(zero)), 0); err != nil {
		return err
	}
	assert.That(newCap >= required && newCap > cap(v.data),
		"capacity %d cannot hold %d", newCap, required)
	buf := make([]E, len(v.data), newCap)
	v.tr().Relocate(buf, v.data)
	v.data = buf
	return nil
}

// construct initializes dst with the constructor, or clears it when the
// vector has none. On error the already constructed prefix is cleared.
func (v *Vector[E]) construct(dst []E) error {
	if v.ctor == nil {
		clear(dst)
		return nil
	}
	for i := range dst {
		e, err := v.ctor()
		if err != nil {
			clear(dst[:i])
			return fmt.Errorf("%w: constructing element: %w",
				pooled.ErrOutOfMemory, err)
		}
		dst[i] = e
	}
	return nil
}

// SetLen resizes the vector to n elements. New elements are constructed
// and removed ones are cleared. A length of zero releases the buffer.
// growBy replaces the grow increment unless it is -1. A failed call
// keeps the previous increment.
func (v *Vector[E]) SetLen(n, growBy int) error {
	switch {
	case n < 0:
		return fmt.Errorf("%w: negative length %d", pooled.ErrInvalidArgument, n)
	case growBy < -1:
		return fmt.Errorf("%w: grow increment %d", pooled.ErrInvalidArgument, growBy)
	}
	prev := v.growBy
	if growBy != -1 {
		v.growBy = growBy
	}
	old := len(v.data)
	switch {
	case n == 0:
		clear(v.data)
		v.data = nil
	case n <= old:
		clear(v.data[n:old])
		v.data = v.data[:n]
	default:
		err := v.reserve(n)
		if err == nil {
			err = v.construct(v.data[old:n])
		}
		if err != nil {
			v.growBy = prev
			return err
		}
		v.data = v.data[:n]
	}
	return nil
}

// At returns the element at i. It panics if i is out of bounds.
func (v *Vector[E]) At(i int) E {
	if i < 0 || i >= v.Len() {
		panic(errOutOfBounds(i, v.Len()))
	}
	return v.data[i]
}

// Get returns the element at i.
func (v *Vector[E]) Get(i int) (E, error) {
	if i < 0 || i >= v.Len() {
		var zero E
		return zero, errOutOfBounds(i, v.Len())
	}
	return v.data[i], nil
}

// Set replaces the element at i.
func (v *Vector[E]) Set(i int, val E) error {
	if i < 0 || i >= v.Len() {
		return errOutOfBounds(i, v.Len())
	}
	v.data[i] = val
	return nil
}

// SetGrow replaces the element at i, extending the vector first when i
// is past the end.
func (v *Vector[E]) SetGrow(i int, val E) error {
	if i < 0 {
		return errOutOfBounds(i, v.Len())
	}
	if i >= len(v.data) {
		n, err := checked.Add(i, 1)
		if err != nil {
			return err
		}
		if err := v.SetLen(n, -1); err != nil {
			return err
		}
	}
	v.data[i] = val
	return nil
}

// Add appends val and returns its index.
func (v *Vector[E]) Add(val E) (int, error) {
	i := len(v.data)
	n, err := checked.Add(i, 1)
	if err != nil {
		return 0, err
	}
	if err := v.reserve(n); err != nil {
		return 0, err
	}
	v.data = v.data[:n]
	v.tr().Copy(v.data[i:], []E{val})
	return i, nil
}

// AddZero appends a constructed element and returns its index.
func (v *Vector[E]) AddZero() (int, error) {
	i := len(v.data)
	n, err := checked.Add(i, 1)
	if err != nil {
		return 0, err
	}
	if err := v.SetLen(n, -1); err != nil {
		return 0, err
	}
	return i, nil
}

// Append copies the elements of other onto the end of v and returns the
// index of the first copied element.
func (v *Vector[E]) Append(other *Vector[E]) (int, error) {
	old := len(v.data)
	m := other.Len()
	n, err := checked.Add(old, m)
	if err != nil {
		return 0, err
	}
	if err := v.reserve(n); err != nil {
		return 0, err
	}
	src := other.Data()
	if other == v {
		src = v.data[:old]
	}
	v.data = v.data[:n]
	v.tr().Copy(v.data[old:], src)
	return old, nil
}

// Copy replaces the contents of v with a copy of other.
func (v *Vector[E]) Copy(other *Vector[E]) error {
	if other == v {
		return nil
	}
	m := other.Len()
	if m == 0 {
		return v.SetLen(0, -1)
	}
	if err := v.reserve(m); err != nil {
		return err
	}
	if m < len(v.data) {
		clear(v.data[m:])
	}
	v.data = v.data[:m]
	v.tr().Copy(v.data, other.data)
	return nil
}

// openGap makes count uninitialized slots at i, relocating the tail up.
// Slots past the old end up to i are constructed.
func (v *Vector[E]) openGap(i, count int) error {
	switch {
	case i < 0:
		return errOutOfBounds(i, v.Len())
	case count <= 0:
		return fmt.Errorf("%w: insert count %d must be positive",
			pooled.ErrInvalidArgument, count)
	}
	end, err := checked.Add(i, count)
	if err != nil {
		return err
	}
	old := len(v.data)
	if i >= old {
		return v.SetLen(end, -1)
	}
	n, err := checked.Add(old, count)
	if err != nil {
		return err
	}
	if err := v.reserve(n); err != nil {
		return err
	}
	v.data = v.data[:n]
	v.tr().Relocate(v.data[end:], v.data[i:old])
	return nil
}

// InsertAt inserts count copies of val at index i, shifting later
// elements up. An index past the end extends the vector and constructs
// the elements between the old end and i.
func (v *Vector[E]) InsertAt(i int, val E, count int) error {
	if err := v.openGap(i, count); err != nil {
		return err
	}
	one := []E{val}
	for j := i; j < i+count; j++ {
		v.tr().Copy(v.data[j:j+1], one)
	}
	return nil
}

// InsertVectorAt inserts a copy of the elements of other at index i.
func (v *Vector[E]) InsertVectorAt(i int, other *Vector[E]) error {
	if other == nil {
		return fmt.Errorf("%w: nil vector", pooled.ErrInvalidArgument)
	}
	m := other.Len()
	if m == 0 {
		return nil
	}
	src := other.data
	if other == v {
		src = slices.Clone(v.data)
	}
	if err := v.openGap(i, m); err != nil {
		return err
	}
	v.tr().Copy(v.data[i:i+m], src)
	return nil
}

// RemoveAt removes count elements starting at i, shifting later elements
// down.
func (v *Vector[E]) RemoveAt(i, count int) error {
	n := len(v.data)
	if i < 0 || count < 0 {
		return fmt.Errorf("%w: range [%d, %d+%d)",
			pooled.ErrInvalidArgument, i, i, count)
	}
	end, err := checked.Add(i, count)
	if err != nil || end > n {
		return fmt.Errorf("%w: range [%d, %d+%d) out of bounds [0, %d)",
			pooled.ErrInvalidArgument, i, i, count, n)
	}
	if count == 0 {
		return nil
	}
	clear(v.data[i:end])
	v.tr().Relocate(v.data[i:], v.data[end:])
	clear(v.data[n-count:])
	v.data = v.data[:n-count]
	return nil
}

// RemoveAll removes every element and releases the buffer.
func (v *Vector[E]) RemoveAll() {
	clear(v.data)
	v.data = nil
}

// ShrinkToFit reduces the capacity to the length.
func (v *Vector[E]) ShrinkToFit() {
	n := len(v.data)
	if n == cap(v.data) {
		return
	}
	if n == 0 {
		v.data = nil
		return
	}
	buf := make([]E, n)
	v.tr().Relocate(buf, v.data)
	v.data = buf
}

// Data returns the elements as a slice sharing the vector's buffer. It
// is invalidated by any call that changes the capacity.
func (v *Vector[E]) Data() []E {
	if v == nil {
		return nil
	}
	return v.data
}

// All iterates over the index and value of each element in order.
func (v *Vector[E]) All() iter.Seq2[int, E] {
	return func(yield func(int, E) bool) {
		for i := 0; i < v.Len(); i++ {
			if !yield(i, v.data[i]) {
				return
			}
		}
	}
}

// Values iterates over the elements in order.
func (v *Vector[E]) Values() iter.Seq[E] {
	return func(yield func(E) bool) {
		for i := 0; i < v.Len(); i++ {
			if !yield(v.data[i]) {
				return
			}
		}
	}
}

// Sort sorts the elements using the traits' Compare.
func (v *Vector[E]) Sort() {
	slices.SortStableFunc(v.data, v.tr().Compare)
}

// Search finds val in a sorted vector, returning its index or the index
// where it would be inserted.
func (v *Vector[E]) Search(val E) (int, bool) {
	return slices.BinarySearchFunc(v.data, val, v.tr().Compare)
}

// Equal reports whether both vectors hold equal elements in the same
// order.
func (v *Vector[E]) Equal(other *Vector[E]) bool {
	if v.Len() != other.Len() {
		return false
	}
	eq := v.tr().Equal
	for i := range v.data {
		if !eq(v.data[i], other.data[i]) {
			return false
		}
	}
	return true
}

// Validate checks the structural invariants of the vector.
func (v *Vector[E]) Validate() error {
	switch {
	case len(v.data) > cap(v.data):
		return fmt.Errorf("%w: length %d exceeds capacity %d",
			pooled.ErrInvalidArgument, len(v.data), cap(v.data))
	case cap(v.data) == 0 && v.data != nil:
		return fmt.Errorf("%w: zero capacity with a buffer",
			pooled.ErrInvalidArgument)
	case v.growBy < 0:
		return fmt.Errorf("%w: negative grow increment %d",
			pooled.ErrInvalidArgument, v.growBy)
	case v.maxCap > 0 && cap(v.data) > v.maxCap:
		return fmt.Errorf("%w: capacity %d exceeds the maximum of %d",
			pooled.ErrInvalidArgument, cap(v.data), v.maxCap)
	}
	return nil
}

// String renders the vector like a slice.
func (v *Vector[E]) String() string {
	buf := new(bytes.Buffer)
	fmt.Fprint(buf, "[")
	for i, e := range v.All() {
		if i > 0 {
			fmt.Fprint(buf, " ")
		}
		fmt.Fprint(buf, e)
	}
	fmt.Fprint(buf, "]")
	return buf.String()
}
