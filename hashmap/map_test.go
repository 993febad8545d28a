package hashmap

import (
	"bytes"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/commands"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"jsouthworth.net/go/pooled"
	"jsouthworth.net/go/pooled/traits"
)

func newMap[K, V any](t testing.TB, opts ...Option) *Map[K, V] {
	t.Helper()
	m, err := New[K, V](opts...)
	require.NoError(t, err)
	return m
}

func fill(t testing.TB, m *Map[int, int], keys ...int) {
	t.Helper()
	for _, k := range keys {
		_, err := m.Set(k, k*10)
		require.NoError(t, err)
	}
}

func TestPickSize(t *testing.T) {
	tests := []struct {
		n    int
		load float64
		want int
	}{
		{0, 0.75, 17},
		{-5, 0.75, 17},
		{12, 0.75, 17},
		{13, 0.75, 17},
		{39, 0.75, 53},
		{100, 0.75, 163},
		{1000, 1, 1031},
		{13316089, 1, 13316089},
		{13316090, 1, 13316090},
		{20000000, 1, 20000000},
		{1 << 40, 1, 1<<32 - 1},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d@%v", test.n, test.load), func(t *testing.T) {
			require.Equal(t, test.want, PickSize(test.n, test.load))
		})
	}
}

func TestPickSizeIsPrimeAboveTarget(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("tabled sizes cover the target", prop.ForAll(
		func(n int) bool {
			got := PickSize(n, 0.75)
			return got >= int(float64(n)/0.75) && slices.Contains(primes[:], got)
		},
		gen.IntRange(0, 9000000),
	))
	properties.TestingRun(t)
}

func TestNewValidates(t *testing.T) {
	tests := map[string][]Option{
		"bins":       {WithBins(0)},
		"optimal":    {WithLoad(0, 0, 1)},
		"lo":         {WithLoad(0.75, 0.75, 2)},
		"negativeLo": {WithLoad(0.75, -1, 2)},
		"hi":         {WithLoad(0.75, 0.25, 0.5)},
		"blockSize":  {WithBlockSize(0)},
		"limit":      {WithLimit(-1)},
		"traits":     {WithKeyTraits(traits.Ordered[string]())},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New[int, int](opts...)
			require.ErrorIs(t, err, pooled.ErrInvalidArgument)
		})
	}
}

func TestEmptyMap(t *testing.T) {
	m := newMap[string, int](t)
	require.True(t, m.IsEmpty())
	require.Equal(t, DefaultBins, m.BinCount())
	_, ok := m.Lookup("a")
	require.False(t, ok)
	require.True(t, m.StartPosition().IsNil())
	require.False(t, m.Delete("a"))
	require.Equal(t, "{ }", m.String())
	require.NoError(t, m.Validate())
	require.Zero(t, m.Stats().UsedBins)
}

func TestSetLookupDelete(t *testing.T) {
	m := newMap[string, int](t)
	p, err := m.Set("a", 1)
	require.NoError(t, err)
	q, err := m.Set("a", 2)
	require.NoError(t, err)
	require.Equal(t, p, q)
	require.Equal(t, 1, m.Len())

	v, ok := m.Lookup("a")
	require.True(t, ok)
	require.Equal(t, 2, v)
	require.True(t, m.Contains("a"))
	require.Equal(t, p, m.LookupPosition("a"))
	require.True(t, m.LookupPosition("b").IsNil())

	k, v, err := m.At(p)
	require.NoError(t, err)
	require.Equal(t, "a", k)
	require.Equal(t, 2, v)

	require.True(t, m.Delete("a"))
	require.False(t, m.Contains("a"))
	_, err = m.ValueAt(p)
	require.ErrorIs(t, err, pooled.ErrInvalidArgument)
	require.NoError(t, m.Validate())
}

func TestRef(t *testing.T) {
	m := newMap[string, []string](t)
	for _, w := range strings.Fields("the quick brown fox jumps over the lazy dog") {
		r, err := m.Ref(w[:1])
		require.NoError(t, err)
		*r = append(*r, w)
	}
	v, _ := m.Lookup("t")
	require.Equal(t, []string{"the", "the"}, v)
	v, _ = m.Lookup("q")
	require.Equal(t, []string{"quick"}, v)
	require.Equal(t, 8, m.Len())
}

func TestPositions(t *testing.T) {
	m := newMap[int, int](t)
	fill(t, m, 1, 2, 3)
	p := m.LookupPosition(2)
	require.NoError(t, m.SetValueAt(p, 99))
	k, err := m.KeyAt(p)
	require.NoError(t, err)
	require.Equal(t, 2, k)
	v, _ := m.Lookup(2)
	require.Equal(t, 99, v)

	require.NoError(t, m.RemoveAt(p))
	require.ErrorIs(t, m.RemoveAt(p), pooled.ErrInvalidArgument)
	require.ErrorIs(t, m.SetValueAt(Position{}, 1), pooled.ErrInvalidArgument)
	require.True(t, m.Next(p).IsNil())
	require.Equal(t, 2, m.Len())
	require.NoError(t, m.Validate())
}

func TestIterationOrder(t *testing.T) {
	// Integer keys hash to themselves, so 1 and 18 share bin 1 of 17.
	m := newMap[int, int](t)
	fill(t, m, 1, 2, 18, 16)
	require.Equal(t, []int{18, 1, 2, 16}, slices.Collect(m.Keys()))
	require.Equal(t, []int{180, 10, 20, 160}, slices.Collect(m.Values()))
	require.Equal(t, "{ [18 180] [1 10] [2 20] [16 160] }", m.String())

	var walked []int
	for p := m.StartPosition(); !p.IsNil(); p = m.Next(p) {
		k, _ := m.KeyAt(p)
		walked = append(walked, k)
	}
	require.Equal(t, []int{18, 1, 2, 16}, walked)

	st := m.Stats()
	require.Equal(t, 3, st.UsedBins)
	require.Equal(t, 2, st.LongestChain)
}

func TestRehashBoundary(t *testing.T) {
	m := newMap[int, int](t)
	keys := make([]int, 39)
	for i := range keys {
		keys[i] = i
	}

	fill(t, m, keys[:13]...)
	require.Equal(t, 17, m.BinCount())

	fill(t, m, keys[13:38]...)
	require.Equal(t, 17, m.BinCount())
	require.Zero(t, m.Stats().Rehashes)
	positions := make([]Position, 38)
	for i := range positions {
		positions[i] = m.LookupPosition(i)
	}

	fill(t, m, keys[38])
	require.Equal(t, 53, m.BinCount())
	require.Equal(t, 1, m.Stats().Rehashes)
	require.NoError(t, m.Validate())
	for i, p := range positions {
		k, v, err := m.At(p)
		require.NoError(t, err)
		require.Equal(t, i, k)
		require.Equal(t, i*10, v)
	}
	for _, k := range keys {
		require.True(t, m.Contains(k))
	}
}

func TestShrinkOnRemove(t *testing.T) {
	m := newMap[int, int](t)
	require.NoError(t, m.InitBins(521, false))
	for i := 0; i < 200; i++ {
		fill(t, m, i)
	}
	require.Equal(t, 521, m.BinCount())
	for i := 0; i < 70; i++ {
		require.True(t, m.Delete(i))
	}
	require.Equal(t, 521, m.BinCount())
	require.True(t, m.Delete(70))
	require.Equal(t, 211, m.BinCount())
	require.NoError(t, m.Validate())
}

func TestLowThresholdFloor(t *testing.T) {
	m := newMap[int, int](t, WithBins(53))
	fill(t, m, 1, 2, 3)
	require.True(t, m.Delete(1))
	require.Equal(t, 53, m.BinCount())
}

func TestAutoRehashLock(t *testing.T) {
	m := newMap[int, int](t)
	m.DisableAutoRehash()
	m.DisableAutoRehash()
	require.True(t, m.IsLocked())
	for i := 0; i < 100; i++ {
		fill(t, m, i)
	}
	require.Equal(t, 17, m.BinCount())
	m.EnableAutoRehash()
	require.True(t, m.IsLocked())
	m.EnableAutoRehash()
	require.False(t, m.IsLocked())

	require.NoError(t, m.Rehash(0))
	require.Equal(t, 163, m.BinCount())
	require.NoError(t, m.Rehash(163))
	require.Equal(t, 1, m.Stats().Rehashes)
	require.ErrorIs(t, m.Rehash(-1), pooled.ErrInvalidArgument)
	require.NoError(t, m.Validate())
}

func TestRemoveAll(t *testing.T) {
	m := newMap[int, int](t)
	for i := 0; i < 100; i++ {
		fill(t, m, i)
	}
	p := m.LookupPosition(5)
	m.DisableAutoRehash()
	m.RemoveAll()
	require.True(t, m.IsEmpty())
	require.Equal(t, 53, m.BinCount())
	require.True(t, m.IsLocked())
	m.EnableAutoRehash()
	_, err := m.KeyAt(p)
	require.ErrorIs(t, err, pooled.ErrInvalidArgument)

	fill(t, m, 1, 2)
	m.RemoveAll()
	require.Equal(t, 17, m.BinCount())
	require.False(t, m.IsLocked())
	require.Zero(t, m.Stats().Pool.Blocks)
	require.NoError(t, m.Validate())
}

func TestRemoveAllWithoutBins(t *testing.T) {
	m := newMap[int, int](t)
	require.NoError(t, m.InitBins(100, false))
	m.RemoveAll()
	require.Equal(t, 100, m.BinCount())
	require.NoError(t, m.Validate())
}

func TestHugeBinsAreOutOfMemory(t *testing.T) {
	m := newMap[int, int](t)
	require.ErrorIs(t, m.InitBins(1<<50, true), pooled.ErrOutOfMemory)
	require.Equal(t, 17, m.BinCount())

	fill(t, m, 1, 2, 3)
	require.ErrorIs(t, m.Rehash(1<<50), pooled.ErrOutOfMemory)
	require.Equal(t, 17, m.BinCount())
	require.Equal(t, 3, m.Len())
	require.NoError(t, m.Validate())
}

func TestFailedAutoRehash(t *testing.T) {
	defer func(n int) { maxBinBytes = n }(maxBinBytes)
	maxBinBytes = 17 * 8

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	m := newMap[int, int](t, WithLogger(log))
	for i := 0; i < 39; i++ {
		fill(t, m, i)
	}
	st := m.Stats()
	require.Equal(t, 17, st.Bins)
	require.Equal(t, 1, st.FailedRehashes)
	require.ErrorIs(t, st.RehashError, pooled.ErrOutOfMemory)
	require.Zero(t, st.Rehashes)
	require.Contains(t, buf.String(), "level=WARN")
	require.Contains(t, buf.String(), "automatic rehash failed")

	fill(t, m, 39)
	require.Equal(t, 2, m.Stats().FailedRehashes)
	require.Equal(t, 40, m.Len())
	require.NoError(t, m.Validate())
	for i := 0; i < 40; i++ {
		require.True(t, m.Contains(i))
	}

	maxBinBytes = 1 << 20
	fill(t, m, 40)
	require.Equal(t, PickSize(41, DefaultOptimalLoad), m.BinCount())
	require.Equal(t, 67, m.BinCount())
	require.Equal(t, 1, m.Stats().Rehashes)
}

func TestReleaseWhenEmpty(t *testing.T) {
	m := newMap[int, int](t, WithBlockSize(4))
	fill(t, m, 1, 2, 3, 4, 5)
	require.Equal(t, 2, m.Stats().Pool.Blocks)
	p := m.LookupPosition(3)
	for _, k := range []int{1, 2, 3, 4, 5} {
		require.True(t, m.Delete(k))
	}
	require.Zero(t, m.Stats().Pool.Blocks)
	fill(t, m, 3)
	_, err := m.KeyAt(p)
	require.ErrorIs(t, err, pooled.ErrInvalidArgument)
}

func TestInitBins(t *testing.T) {
	m := newMap[int, int](t)
	require.ErrorIs(t, m.InitBins(0, false), pooled.ErrInvalidArgument)
	require.NoError(t, m.InitBins(101, true))
	require.Equal(t, 101, m.BinCount())
	require.NoError(t, m.Validate())
	fill(t, m, 1)
	require.ErrorIs(t, m.InitBins(7, false), pooled.ErrInvalidArgument)
}

func TestSetOptimalLoad(t *testing.T) {
	m := newMap[int, int](t)
	for i := 0; i < 30; i++ {
		fill(t, m, i)
	}
	require.ErrorIs(t, m.SetOptimalLoad(1, 2, 3, true), pooled.ErrInvalidArgument)
	require.NoError(t, m.SetOptimalLoad(0.5, 0.1, 1, false))
	require.Equal(t, 17, m.BinCount())
	require.NoError(t, m.SetOptimalLoad(0.5, 0.1, 1, true))
	require.Equal(t, 67, m.BinCount())
	require.Equal(t, 0.5, m.OptimalLoad())
}

func TestLimit(t *testing.T) {
	m := newMap[int, int](t, WithBlockSize(5), WithLimit(10))
	for i := 0; i < 10; i++ {
		fill(t, m, i)
	}
	_, err := m.Set(10, 0)
	require.ErrorIs(t, err, pooled.ErrOutOfMemory)
	_, err = m.Ref(11)
	require.ErrorIs(t, err, pooled.ErrOutOfMemory)
	require.Equal(t, 10, m.Len())
	require.NoError(t, m.Validate())
}

func TestKeyTraits(t *testing.T) {
	fold := traits.Funcs[string]{
		HashFunc:  func(s string) uint64 { return uint64(len(s)) },
		EqualFunc: strings.EqualFold,
	}
	m := newMap[string, int](t, WithKeyTraits[string](fold))
	_, err := m.Set("Go", 1)
	require.NoError(t, err)
	_, err = m.Set("GO", 2)
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())
	v, ok := m.Lookup("go")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := newMap[int, int](t, WithLogger(log))
	for i := 0; i < 39; i++ {
		fill(t, m, i)
	}
	require.Contains(t, buf.String(), "msg=rehashed")
	require.Contains(t, buf.String(), "to=53")
	m.RemoveAll()
	require.Contains(t, buf.String(), "releasing entry blocks")
}

func TestMapProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	properties.Property("every key is reachable", prop.ForAll(
		func(keys []string) bool {
			m, _ := New[string, int]()
			want := make(map[string]int)
			for i, k := range keys {
				m.Set(k, i)
				want[k] = i
			}
			for k, v := range want {
				got, ok := m.Lookup(k)
				if !ok || got != v {
					return false
				}
			}
			return m.Len() == len(want) && m.Validate() == nil &&
				maps.Equal(maps.Collect(m.All()), want)
		},
		gen.SliceOf(gen.AlphaString()),
	))
	properties.Property("insert then remove restores", prop.ForAll(
		func(keys []int, extra int) bool {
			m, _ := New[int, int]()
			for _, k := range keys {
				m.Set(k, k)
			}
			if m.Contains(extra) {
				return true
			}
			before := slices.Sorted(m.Keys())
			m.Set(extra, extra)
			m.Delete(extra)
			return slices.Equal(before, slices.Sorted(m.Keys())) && m.Validate() == nil
		},
		gen.SliceOf(gen.Int()),
		gen.Int(),
	))
	properties.Property("model", commands.Prop(mapCommands))
	properties.TestingRun(t)
}

type mapState map[int]int

func mapCommand(
	name string,
	run func(*Map[int, int]) error,
	next func(mapState),
) commands.Command {
	return &commands.ProtoCommand{
		Name: name,
		RunFunc: func(sut commands.SystemUnderTest) commands.Result {
			m := sut.(*Map[int, int])
			if err := run(m); err != nil {
				return err
			}
			if err := m.Validate(); err != nil {
				return err
			}
			return maps.Collect(m.All())
		},
		NextStateFunc: func(state commands.State) commands.State {
			s := maps.Clone(state.(mapState))
			next(s)
			return s
		},
		PostConditionFunc: func(state commands.State, result commands.Result) *gopter.PropResult {
			got, ok := result.(map[int]int)
			if !ok {
				return gopter.NewPropResult(false, fmt.Sprint(result))
			}
			want := state.(mapState)
			return gopter.NewPropResult(maps.Equal(got, map[int]int(want)),
				fmt.Sprintf("got %v, want %v", got, want))
		},
	}
}

var genKey = gen.IntRange(-64, 64)

var genSet = gopter.CombineGens(genKey, gen.Int()).
	Map(func(vs []interface{}) commands.Command {
		k, v := vs[0].(int), vs[1].(int)
		return mapCommand(fmt.Sprintf("Set(%d, %d)", k, v),
			func(m *Map[int, int]) error {
				_, err := m.Set(k, v)
				return err
			},
			func(s mapState) { s[k] = v })
	})

var genDelete = genKey.Map(func(k int) commands.Command {
	return mapCommand(fmt.Sprintf("Delete(%d)", k),
		func(m *Map[int, int]) error {
			m.Delete(k)
			return nil
		},
		func(s mapState) { delete(s, k) })
})

var genRemoveAt = genKey.Map(func(k int) commands.Command {
	return mapCommand(fmt.Sprintf("RemoveAt(%d)", k),
		func(m *Map[int, int]) error {
			if p := m.LookupPosition(k); !p.IsNil() {
				return m.RemoveAt(p)
			}
			return nil
		},
		func(s mapState) { delete(s, k) })
})

var genIncrement = genKey.Map(func(k int) commands.Command {
	return mapCommand(fmt.Sprintf("Ref(%d)++", k),
		func(m *Map[int, int]) error {
			r, err := m.Ref(k)
			if err != nil {
				return err
			}
			*r++
			return nil
		},
		func(s mapState) { s[k]++ })
})

var genRehash = gen.IntRange(0, 200).Map(func(n int) commands.Command {
	return mapCommand(fmt.Sprintf("Rehash(%d)", n),
		func(m *Map[int, int]) error { return m.Rehash(n + 1) },
		func(mapState) {})
})

var removeAll = mapCommand("RemoveAll",
	func(m *Map[int, int]) error {
		m.RemoveAll()
		return nil
	},
	func(s mapState) { clear(s) })

var mapCommands = &commands.ProtoCommands{
	NewSystemUnderTestFunc: func(commands.State) commands.SystemUnderTest {
		m, err := New[int, int](WithBins(3), WithBlockSize(4))
		if err != nil {
			panic(err)
		}
		return m
	},
	InitialStateGen: gen.Const(mapState{}),
	GenCommandFunc: func(commands.State) gopter.Gen {
		return gen.Weighted([]gen.WeightedGen{
			{Weight: 8, Gen: genSet},
			{Weight: 3, Gen: genDelete},
			{Weight: 2, Gen: genRemoveAt},
			{Weight: 3, Gen: genIncrement},
			{Weight: 1, Gen: genRehash},
			{Weight: 1, Gen: gen.Const(removeAll)},
		})
	},
}

func BenchmarkSet(b *testing.B) {
	m, _ := New[int, int]()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		m.Set(i, i)
	}
}

func BenchmarkLookup(b *testing.B) {
	m, _ := New[int, int]()
	for i := 0; i < 1<<16; i++ {
		m.Set(i, i)
	}
	b.ResetTimer()
	var sum int
	for i := 0; i < b.N; i++ {
		v, _ := m.Lookup(i & (1<<16 - 1))
		sum += v
	}
}
