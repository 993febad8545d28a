// Package traits describes how the containers hash, compare, copy and
// relocate the elements they store.
//
// A container never inspects its elements directly. It asks a Traits
// value, so element types with unusual identity or ownership rules can
// supply their own behaviour while ordinary types get sensible defaults.
package traits // import "jsouthworth.net/go/pooled/traits"

import (
	"bytes"
	"cmp"
	"fmt"
	"hash/maphash"
	"math"
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"jsouthworth.net/go/pooled"
)

// Traits is the per element type policy used by the containers.
//
// Implementations must keep Hash consistent with Equal: two elements that
// are Equal must have the same Hash.
type Traits[T any] interface {
	Hash(v T) uint64
	Equal(a, b T) bool
	// Compare returns -1, 0 or 1.
	Compare(a, b T) int
	// Copy copies min(len(dst), len(src)) elements from src to dst.
	Copy(dst, src []T)
	// Relocate moves min(len(dst), len(src)) elements from src to dst.
	// The two ranges may overlap. The source elements are left for the
	// caller to clear.
	Relocate(dst, src []T)
}

// Equaler is implemented by elements that define their own equality.
type Equaler interface {
	Equal(v interface{}) bool
}

// Hasher is implemented by elements that define their own hash. Types
// implementing Equaler should implement Hasher as well.
type Hasher interface {
	Hash() uint64
}

// Comparer is implemented by elements that define their own ordering.
// Compare returns a negative number, zero or a positive number.
type Comparer interface {
	Compare(v interface{}) int
}

var seed = maphash.MakeSeed()

// Base provides the bulk Copy and Relocate used by every Traits
// implementation in this package. Go values may always be moved bit for
// bit, so both are the builtin copy, which handles overlap.
type Base[T any] struct{}

func (Base[T]) Copy(dst, src []T) {
	copy(dst, src)
}

func (Base[T]) Relocate(dst, src []T) {
	copy(dst, src)
}

// Default returns traits that discover behaviour at run time. Elements
// implementing Equaler, Hasher or Comparer are asked first. Otherwise
// integers hash to themselves, floats to their bits, strings and byte
// slices through xxhash, and any other comparable value through
// hash/maphash. Compare panics for values that have no ordering.
func Default[T any]() Traits[T] {
	return dynamic[T]{}
}

type dynamic[T any] struct {
	Base[T]
}

func (dynamic[T]) Hash(v T) uint64 {
	return hashAny(any(v))
}

func (dynamic[T]) Equal(a, b T) bool {
	return equalAny(any(a), any(b))
}

func (dynamic[T]) Compare(a, b T) int {
	return compareAny(any(a), any(b))
}

func hashAny(v interface{}) uint64 {
	switch x := v.(type) {
	case Hasher:
		return x.Hash()
	case int:
		return uint64(x)
	case int8:
		return uint64(x)
	case int16:
		return uint64(x)
	case int32:
		return uint64(x)
	case int64:
		return uint64(x)
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	case uintptr:
		return uint64(x)
	case float32:
		return floatBits(float64(x))
	case float64:
		return floatBits(x)
	case string:
		return xxhash.Sum64String(x)
	case []byte:
		return xxhash.Sum64(x)
	default:
		return maphash.Comparable(seed, v)
	}
}

// floatBits folds -0 onto +0 so that equal floats hash alike.
func floatBits(f float64) uint64 {
	if f == 0 {
		return 0
	}
	return math.Float64bits(f)
}

func equalAny(a, b interface{}) bool {
	switch x := a.(type) {
	case Equaler:
		return x.Equal(b)
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	default:
		return a == b
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func compareAny(a, b interface{}) int {
	switch x := a.(type) {
	case Comparer:
		return sign(x.Compare(b))
	case int:
		if y, ok := b.(int); ok {
			return cmp.Compare(x, y)
		}
	case int8:
		if y, ok := b.(int8); ok {
			return cmp.Compare(x, y)
		}
	case int16:
		if y, ok := b.(int16); ok {
			return cmp.Compare(x, y)
		}
	case int32:
		if y, ok := b.(int32); ok {
			return cmp.Compare(x, y)
		}
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
	case uint:
		if y, ok := b.(uint); ok {
			return cmp.Compare(x, y)
		}
	case uint8:
		if y, ok := b.(uint8); ok {
			return cmp.Compare(x, y)
		}
	case uint16:
		if y, ok := b.(uint16); ok {
			return cmp.Compare(x, y)
		}
	case uint32:
		if y, ok := b.(uint32); ok {
			return cmp.Compare(x, y)
		}
	case uint64:
		if y, ok := b.(uint64); ok {
			return cmp.Compare(x, y)
		}
	case uintptr:
		if y, ok := b.(uintptr); ok {
			return cmp.Compare(x, y)
		}
	case float32:
		if y, ok := b.(float32); ok {
			return cmp.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return cmp.Compare(x, y)
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y)
		}
	}
	panic(fmt.Errorf("%w: cannot order %T and %T",
		pooled.ErrInvalidArgument, a, b))
}

// Ordered returns static traits for the builtin ordered types.
func Ordered[T cmp.Ordered]() Traits[T] {
	return ordered[T]{}
}

type ordered[T cmp.Ordered] struct {
	Base[T]
}

func (ordered[T]) Hash(v T) uint64 {
	return maphash.Comparable(seed, v)
}

func (ordered[T]) Equal(a, b T) bool {
	return a == b
}

func (ordered[T]) Compare(a, b T) int {
	return cmp.Compare(a, b)
}

// Comparable returns traits for any comparable type using == and
// hash/maphash. Compare defers to Comparer or to the ordering of the
// underlying builtin type and panics otherwise.
func Comparable[T comparable]() Traits[T] {
	return equality[T]{}
}

type equality[T comparable] struct {
	Base[T]
}

func (equality[T]) Hash(v T) uint64 {
	return maphash.Comparable(seed, v)
}

func (equality[T]) Equal(a, b T) bool {
	return a == b
}

func (equality[T]) Compare(a, b T) int {
	return compareAny(any(a), any(b))
}

// Bytes returns traits for byte slices compared by content.
func Bytes() Traits[[]byte] {
	return byteSlices{}
}

type byteSlices struct {
	Base[[]byte]
}

func (byteSlices) Hash(v []byte) uint64 {
	return xxhash.Sum64(v)
}

func (byteSlices) Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}

func (byteSlices) Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Funcs builds Traits from individual functions. Any nil field falls
// back to Default.
//
// When MoveFunc is set Relocate moves one element at a time through it,
// walking in the direction that keeps overlapping ranges intact. Use it
// for element types that must observe their own relocation.
type Funcs[T any] struct {
	HashFunc    func(v T) uint64
	EqualFunc   func(a, b T) bool
	CompareFunc func(a, b T) int
	CopyFunc    func(dst, src *T)
	MoveFunc    func(dst, src *T)
}

func (f Funcs[T]) Hash(v T) uint64 {
	if f.HashFunc != nil {
		return f.HashFunc(v)
	}
	return hashAny(any(v))
}

func (f Funcs[T]) Equal(a, b T) bool {
	if f.EqualFunc != nil {
		return f.EqualFunc(a, b)
	}
	return equalAny(any(a), any(b))
}

func (f Funcs[T]) Compare(a, b T) int {
	if f.CompareFunc != nil {
		return sign(f.CompareFunc(a, b))
	}
	return compareAny(any(a), any(b))
}

func (f Funcs[T]) Copy(dst, src []T) {
	if f.CopyFunc == nil {
		copy(dst, src)
		return
	}
	each(dst, src, f.CopyFunc)
}

func (f Funcs[T]) Relocate(dst, src []T) {
	if f.MoveFunc == nil {
		copy(dst, src)
		return
	}
	each(dst, src, f.MoveFunc)
}

// each applies fn pairwise, back to front when dst starts above src so an
// overlapping source is read before it is overwritten.
func each[T any](dst, src []T, fn func(dst, src *T)) {
	n := min(len(dst), len(src))
	if n == 0 {
		return
	}
	d := uintptr(unsafe.Pointer(&dst[0]))
	s := uintptr(unsafe.Pointer(&src[0]))
	if d == s {
		return
	}
	if d > s {
		for i := n - 1; i >= 0; i-- {
			fn(&dst[i], &src[i])
		}
		return
	}
	for i := 0; i < n; i++ {
		fn(&dst[i], &src[i])
	}
}
