// Package checked implements overflow safe integer arithmetic used to
// validate size computations before anything is allocated.
package checked

import (
	"fmt"
	"math"
	"unsafe"

	"golang.org/x/exp/constraints"

	"jsouthworth.net/go/pooled"
)

// MaxAlloc is the largest byte size Size accepts. Larger requests are
// beyond what the runtime will allocate.
const MaxAlloc = min(1<<47, math.MaxInt)

var (
	// ErrOverflow is returned when a result does not fit in its type.
	ErrOverflow = fmt.Errorf("%w: integer overflow", pooled.ErrOutOfMemory)

	// ErrTooLarge is returned by Size for blocks larger than MaxAlloc.
	ErrTooLarge = fmt.Errorf("%w: allocation exceeds %d bytes",
		pooled.ErrOutOfMemory, MaxAlloc)
)

func signed[T constraints.Integer]() bool {
	var zero T
	return zero-1 < zero
}

// Max returns the largest value representable by T.
func Max[T constraints.Integer]() T {
	bits := unsafe.Sizeof(T(0)) * 8
	if signed[T]() {
		return T(uint64(1)<<(bits-1) - 1)
	}
	var zero T
	return ^zero
}

// Min returns the smallest value representable by T.
func Min[T constraints.Integer]() T {
	if signed[T]() {
		return -Max[T]() - 1
	}
	return 0
}

// Add returns a+b or ErrOverflow if the sum is not representable.
func Add[T constraints.Integer](a, b T) (T, error) {
	switch {
	case b > 0 && Max[T]()-b < a:
		return 0, ErrOverflow
	case b < 0 && Min[T]()-b > a:
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Mul returns a*b or ErrOverflow if the product is not representable.
func Mul[T constraints.Integer](a, b T) (T, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if !signed[T]() {
		if Max[T]()/a < b {
			return 0, ErrOverflow
		}
		return a * b, nil
	}
	hi, lo := Max[T](), Min[T]()
	switch {
	case a > 0 && b > 0:
		if hi/a < b {
			return 0, ErrOverflow
		}
	case a < 0 && b < 0:
		if a < hi/b {
			return 0, ErrOverflow
		}
	case a > 0:
		if lo/a > b {
			return 0, ErrOverflow
		}
	default:
		if lo/b > a {
			return 0, ErrOverflow
		}
	}
	return a * b, nil
}

// Size returns n*elem+header as an int, the byte size of a block of n
// elements of size elem preceded by a header of size header. Sizes above
// MaxAlloc fail with ErrTooLarge.
func Size(n, elem, header int) (int, error) {
	if n < 0 || elem < 0 || header < 0 {
		return 0, fmt.Errorf("%w: negative size", pooled.ErrInvalidArgument)
	}
	bytes, err := Mul(n, elem)
	if err != nil {
		return 0, err
	}
	if bytes, err = Add(bytes, header); err != nil {
		return 0, err
	}
	if bytes > MaxAlloc {
		return 0, ErrTooLarge
	}
	return bytes, nil
}
