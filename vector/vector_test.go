package vector

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"jsouthworth.net/go/pooled"
	"jsouthworth.net/go/pooled/traits"
)

func BenchmarkSliceAppend(b *testing.B) {
	b.ReportAllocs()
	v := []int{}
	for i := 0; i < b.N; i++ {
		v = append(v, i)
	}
}

func BenchmarkVectorAdd(b *testing.B) {
	b.ReportAllocs()
	v, _ := New(WithTraits(traits.Ordered[int]()))
	for i := 0; i < b.N; i++ {
		v.Add(i)
	}
}

func BenchmarkVectorAt(b *testing.B) {
	b.ReportAllocs()
	v := From(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	for i := 0; i < b.N; i++ {
		v.At(i % v.Len())
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(WithGrowBy[int](-2))
	require.ErrorIs(t, err, pooled.ErrInvalidArgument)
	_, err = New(WithMaxCapacity[int](-1))
	require.ErrorIs(t, err, pooled.ErrInvalidArgument)
}

func TestGrowthFromEmpty(t *testing.T) {
	v, err := New[int]()
	require.NoError(t, err)
	require.Nil(t, v.Data())
	var caps []int
	for i := 0; i < 9; i++ {
		idx, err := v.Add(i)
		require.NoError(t, err)
		require.Equal(t, i, idx)
		caps = append(caps, v.Cap())
	}
	require.Equal(t, []int{4, 4, 4, 4, 8, 8, 8, 8, 12}, caps)
	require.GreaterOrEqual(t, v.Cap(), 9)
	for i := 0; i < 9; i++ {
		require.Equal(t, i, v.At(i))
	}
	require.NoError(t, v.Validate())
}

func TestGrowthIncrementClamps(t *testing.T) {
	v, _ := New[byte]()
	require.NoError(t, v.SetLen(100, -1))
	require.Equal(t, 100, v.Cap(), "a large request is taken as is")
	_, err := v.Add(1)
	require.NoError(t, err)
	require.Equal(t, 112, v.Cap(), "100/8 = 12")

	big, _ := New[byte]()
	require.NoError(t, big.SetLen(20000, -1))
	_, err = big.Add(1)
	require.NoError(t, err)
	require.Equal(t, 20000+1024, big.Cap())

	fixed, _ := New(WithGrowBy[int](10))
	_, err = fixed.Add(1)
	require.NoError(t, err)
	require.Equal(t, 10, fixed.Cap())
	require.NoError(t, fixed.SetLen(fixed.Len(), 0))
	require.Equal(t, 0, fixed.GrowBy())
}

func TestSetLen(t *testing.T) {
	v := From("a", "b", "c")
	require.NoError(t, v.SetLen(5, -1))
	require.Equal(t, []string{"a", "b", "c", "", ""}, v.Data())
	require.NoError(t, v.SetLen(2, -1))
	require.Equal(t, []string{"a", "b"}, v.Data())
	require.Equal(t, "", v.Data()[:3][2], "removed slots are cleared")
	require.NoError(t, v.SetLen(0, -1))
	require.Equal(t, 0, v.Cap())
	require.Nil(t, v.Data())
	require.ErrorIs(t, v.SetLen(-1, -1), pooled.ErrInvalidArgument)
}

func TestBounds(t *testing.T) {
	v := From(1, 2, 3)
	_, err := v.Get(3)
	require.ErrorIs(t, err, pooled.ErrInvalidArgument)
	_, err = v.Get(-1)
	require.ErrorIs(t, err, pooled.ErrInvalidArgument)
	require.ErrorIs(t, v.Set(5, 1), pooled.ErrInvalidArgument)
	require.Panics(t, func() { v.At(3) })
}

func TestSetGrow(t *testing.T) {
	v := From(1)
	require.NoError(t, v.SetGrow(3, 9))
	require.Equal(t, []int{1, 0, 0, 9}, v.Data())
	require.NoError(t, v.SetGrow(0, 7))
	require.Equal(t, 7, v.At(0))
}

func TestAppendAndCopy(t *testing.T) {
	v := From(1, 2)
	idx, err := v.Append(From(3, 4))
	require.NoError(t, err)
	require.Equal(t, 2, idx)
	require.Equal(t, []int{1, 2, 3, 4}, v.Data())

	_, err = v.Append(v)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4, 1, 2, 3, 4}, v.Data())

	require.NoError(t, v.Copy(From(9)))
	require.Equal(t, []int{9}, v.Data())
	require.NoError(t, v.Copy(&Vector[int]{}))
	require.True(t, v.IsEmpty())
}

func TestInsertAt(t *testing.T) {
	v := From(1, 2, 3)
	require.NoError(t, v.InsertAt(1, 7, 2))
	require.Equal(t, []int{1, 7, 7, 2, 3}, v.Data())
	require.NoError(t, v.InsertAt(7, 5, 1))
	require.Equal(t, []int{1, 7, 7, 2, 3, 0, 0, 5}, v.Data())
	require.ErrorIs(t, v.InsertAt(0, 1, 0), pooled.ErrInvalidArgument)
	require.ErrorIs(t, v.InsertAt(-1, 1, 1), pooled.ErrInvalidArgument)

	w := From(1, 2)
	require.NoError(t, w.InsertVectorAt(1, From(8, 9)))
	require.Equal(t, []int{1, 8, 9, 2}, w.Data())
	require.NoError(t, w.InsertVectorAt(0, w))
	require.Equal(t, []int{1, 8, 9, 2, 1, 8, 9, 2}, w.Data())
	require.ErrorIs(t, w.InsertVectorAt(0, nil), pooled.ErrInvalidArgument)
}

func TestRemoveAt(t *testing.T) {
	v := From(0, 1, 2, 3, 4, 5)
	require.NoError(t, v.RemoveAt(1, 2))
	require.Equal(t, []int{0, 3, 4, 5}, v.Data())
	require.Equal(t, []int{0, 0}, v.Data()[4:6], "vacated slots are cleared")
	require.NoError(t, v.RemoveAt(3, 0))
	require.ErrorIs(t, v.RemoveAt(3, 2), pooled.ErrInvalidArgument)
	require.ErrorIs(t, v.RemoveAt(1, int(^uint(0)>>1)), pooled.ErrInvalidArgument)
	require.ErrorIs(t, v.RemoveAt(-1, 1), pooled.ErrInvalidArgument)
	require.Equal(t, []int{0, 3, 4, 5}, v.Data())
	v.RemoveAll()
	require.Equal(t, 0, v.Cap())
}

func TestShrinkToFit(t *testing.T) {
	v := From(1, 2, 3)
	_, _ = v.Add(4)
	require.Equal(t, 7, v.Cap())
	v.ShrinkToFit()
	require.Equal(t, 4, v.Cap())
	before := &v.Data()[0]
	v.ShrinkToFit()
	require.Same(t, before, &v.Data()[0], "shrinking a full vector must not reallocate")
	require.NoError(t, v.RemoveAt(0, 4))
	v.ShrinkToFit()
	require.Nil(t, v.Data())
	require.NoError(t, v.Validate())
}

func TestMaxCapacity(t *testing.T) {
	v, err := New(WithMaxCapacity[int](6))
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := v.Add(i)
		require.NoError(t, err)
	}
	require.Equal(t, 6, v.Cap(), "growth is trimmed to the maximum")
	_, err = v.Add(6)
	require.True(t, errors.Is(err, pooled.ErrOutOfMemory))
	require.Equal(t, 6, v.Len())
	require.ErrorIs(t, v.InsertAt(2, 1, 1), pooled.ErrOutOfMemory)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5}, v.Data())
}

func TestHugeLengthIsOutOfMemory(t *testing.T) {
	v := From(1, 2, 3)
	err := v.SetLen(1<<50, -1)
	require.ErrorIs(t, err, pooled.ErrOutOfMemory)
	require.Equal(t, []int{1, 2, 3}, v.Data())
	require.ErrorIs(t, v.InsertAt(1<<50, 9, 1), pooled.ErrOutOfMemory)
	require.ErrorIs(t, v.SetGrow(1<<50, 9), pooled.ErrOutOfMemory)
	require.Equal(t, 3, v.Len())
	require.NoError(t, v.Validate())
}

func TestFailedSetLenKeepsGrowBy(t *testing.T) {
	v, err := New(WithGrowBy[int](5), WithMaxCapacity[int](8))
	require.NoError(t, err)
	require.ErrorIs(t, v.SetLen(100, 16), pooled.ErrOutOfMemory)
	require.Equal(t, 5, v.GrowBy())
	require.ErrorIs(t, v.SetLen(1<<50, 0), pooled.ErrOutOfMemory)
	require.Equal(t, 5, v.GrowBy())

	require.NoError(t, v.SetLen(2, 16))
	require.Equal(t, 16, v.GrowBy())
}

func TestConstructorFailureRollsBack(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	v, err := New(WithConstructor(func() (string, error) {
		calls++
		if calls == 3 {
			return "", boom
		}
		return "new", nil
	}))
	require.NoError(t, err)
	_, err = v.Add("a")
	require.NoError(t, err)

	err = v.SetLen(5, 7)
	require.ErrorIs(t, err, boom)
	require.Zero(t, v.GrowBy(), "the increment is only applied on success")
	require.ErrorIs(t, err, pooled.ErrOutOfMemory)
	require.Equal(t, []string{"a"}, v.Data())
	require.Equal(t, []string{"a", "", ""}, v.Data()[:3], "partially constructed slots are cleared")

	err = v.InsertAt(4, "x", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "new", "new", "new", "x"}, v.Data())
}

func TestSortSearch(t *testing.T) {
	v, _ := New(WithTraits(traits.Ordered[int]()))
	for _, x := range []int{5, 1, 4, 2, 3} {
		_, _ = v.Add(x)
	}
	v.Sort()
	require.Equal(t, []int{1, 2, 3, 4, 5}, v.Data())
	i, ok := v.Search(4)
	require.True(t, ok)
	require.Equal(t, 3, i)
	i, ok = v.Search(9)
	require.False(t, ok)
	require.Equal(t, 5, i)
}

func TestEqualAndString(t *testing.T) {
	require.True(t, From(1, 2).Equal(From(1, 2)))
	require.False(t, From(1, 2).Equal(From(2, 1)))
	require.False(t, From(1).Equal(nil))
	require.Equal(t, "[1 2 3]", From(1, 2, 3).String())
	require.Equal(t, "[]", (&Vector[int]{}).String())
}

func TestAllStopsEarly(t *testing.T) {
	var seen []int
	for i, e := range From(10, 20, 30).All() {
		if i == 2 {
			break
		}
		seen = append(seen, e)
	}
	require.Equal(t, []int{10, 20}, seen)
}

func TestVectorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("Add preserves every value across reallocation",
		prop.ForAll(
			func(xs []int) bool {
				v, _ := New[int]()
				for _, x := range xs {
					if _, err := v.Add(x); err != nil {
						return false
					}
				}
				if v.Len() != len(xs) || v.Validate() != nil {
					return false
				}
				for i, x := range xs {
					if v.At(i) != x {
						return false
					}
				}
				return true
			},
			gen.SliceOf(gen.Int()),
		))
	properties.Property("InsertAt then RemoveAt restores the vector",
		prop.ForAll(
			func(xs []int, at, count int) bool {
				v := From(xs...)
				at %= len(xs) + 1
				if err := v.InsertAt(at, -1, count); err != nil {
					return false
				}
				if err := v.RemoveAt(at, count); err != nil {
					return false
				}
				return v.Equal(From(xs...))
			},
			gen.SliceOf(gen.Int()),
			gen.IntRange(0, 64),
			gen.IntRange(1, 16),
		))
	properties.Property("ShrinkToFit keeps contents and is idempotent",
		prop.ForAll(
			func(xs []string, growBy int) bool {
				v, _ := New(WithGrowBy[string](growBy))
				for _, x := range xs {
					v.Add(x)
				}
				v.ShrinkToFit()
				c := v.Cap()
				v.ShrinkToFit()
				return c == v.Len() && v.Cap() == c && v.Equal(From(xs...))
			},
			gen.SliceOf(gen.AlphaString()),
			gen.IntRange(0, 20),
		))
	properties.TestingRun(t)
}
