package stack

import (
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"jsouthworth.net/go/pooled"
	"jsouthworth.net/go/pooled/vector"
)

func TestStackPushPop(t *testing.T) {
	s := From(1, 2, 3)
	require.NoError(t, s.Push(4))
	require.Equal(t, "[ 4 3 2 1 ]", s.String())
	for i := 4; i > 0; i-- {
		top, err := s.Top()
		require.NoError(t, err)
		require.Equal(t, i, top)
		v, err := s.Pop()
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
	_, err := s.Pop()
	require.ErrorIs(t, err, pooled.ErrInvalidArgument)
	_, err = s.Top()
	require.ErrorIs(t, err, pooled.ErrInvalidArgument)
}

func TestStackOptions(t *testing.T) {
	_, err := New(vector.WithGrowBy[int](-1))
	require.ErrorIs(t, err, pooled.ErrInvalidArgument)

	s, err := New(vector.WithMaxCapacity[int](2))
	require.NoError(t, err)
	require.NoError(t, s.Push(1))
	require.NoError(t, s.Push(2))
	require.ErrorIs(t, s.Push(3), pooled.ErrOutOfMemory)
	require.Equal(t, 2, s.Len())
}

func TestStackProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	properties.Property("elements leave in reverse order", prop.ForAll(
		func(elems []int) bool {
			s, _ := New[int]()
			for _, e := range elems {
				s.Push(e)
			}
			want := slices.Clone(elems)
			slices.Reverse(want)
			if !slices.Equal(slices.Collect(s.All()), want) {
				return false
			}
			var out []int
			for s.Len() > 0 {
				v, _ := s.Pop()
				out = append(out, v)
			}
			return slices.Equal(out, want)
		},
		gen.SliceOf(gen.Int()),
	))
	properties.TestingRun(t)
}

func BenchmarkPushPop(b *testing.B) {
	s, _ := New[int]()
	for i := 0; i < b.N; i++ {
		s.Push(i)
		if s.Len() > 32 {
			s.Pop()
		}
	}
}
