package workload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"jsouthworth.net/go/pooled"
	"jsouthworth.net/go/pooled/hashmap"
	"jsouthworth.net/go/pooled/list"
	"jsouthworth.net/go/pooled/vector"
)

// ErrMismatch is returned when a container disagrees with its reference
// model.
const ErrMismatch = pooled.Error("container diverged from reference model")

// Report summarizes a finished workload. Counters are summed over the
// workers, peaks are the largest seen by any worker.
type Report struct {
	Workers     int
	Ops         int
	VectorOps   int
	ListOps     int
	MapOps      int
	OutOfMemory int
	Validations int
	Rehashes    int

	PeakVectorCap   int
	PeakListBlocks  int
	PeakMapEntries  int
	PeakMapBins     int
	PeakMapBytes    int
	LongestMapChain int

	Elapsed time.Duration
}

func (r *Report) merge(o Report) {
	r.Ops += o.Ops
	r.VectorOps += o.VectorOps
	r.ListOps += o.ListOps
	r.MapOps += o.MapOps
	r.OutOfMemory += o.OutOfMemory
	r.Validations += o.Validations
	r.Rehashes += o.Rehashes
	r.PeakVectorCap = max(r.PeakVectorCap, o.PeakVectorCap)
	r.PeakListBlocks = max(r.PeakListBlocks, o.PeakListBlocks)
	r.PeakMapEntries = max(r.PeakMapEntries, o.PeakMapEntries)
	r.PeakMapBins = max(r.PeakMapBins, o.PeakMapBins)
	r.PeakMapBytes = max(r.PeakMapBytes, o.PeakMapBytes)
	r.LongestMapChain = max(r.LongestMapChain, o.LongestMapChain)
}

// Run executes cfg. Ops are split across the workers, each of which owns
// its own vector, list and map. The first failing worker cancels the
// others.
func Run(ctx context.Context, cfg Config, log *slog.Logger) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	start := time.Now()
	reports := make([]Report, cfg.Workers)
	g, ctx := errgroup.WithContext(ctx)
	for id := range cfg.Workers {
		ops := cfg.Ops / cfg.Workers
		if id < cfg.Ops%cfg.Workers {
			ops++
		}
		g.Go(func() error {
			w, err := newWorker(cfg, id, log.With("worker", id))
			if err != nil {
				return err
			}
			err = w.run(ctx, ops)
			reports[id] = w.report
			if err != nil {
				return fmt.Errorf("worker %d: %w", id, err)
			}
			return nil
		})
	}
	err := g.Wait()
	report := Report{Workers: cfg.Workers}
	for _, r := range reports {
		report.merge(r)
	}
	report.Elapsed = time.Since(start)
	log.Info("workload finished",
		"ops", report.Ops, "elapsed", report.Elapsed, "err", err)
	return report, err
}

type worker struct {
	cfg    Config
	rng    *rand.Rand
	log    *slog.Logger
	report Report

	vec    *vector.Vector[int]
	vecRef []int
	lst    *list.List[int]
	lstRef []int
	m      *hashmap.Map[int, int]
	mRef   map[int]int
}

func newWorker(cfg Config, id int, log *slog.Logger) (*worker, error) {
	vec, err := vector.New(
		vector.WithGrowBy[int](cfg.Vector.GrowBy),
		vector.WithMaxCapacity[int](cfg.Vector.MaxCapacity),
	)
	if err != nil {
		return nil, err
	}
	lst, err := list.New(
		list.WithBlockSize[int](cfg.List.BlockSize),
		list.WithLimit[int](cfg.List.Limit),
	)
	if err != nil {
		return nil, err
	}
	m, err := hashmap.New[int, int](
		hashmap.WithBins(cfg.Map.Bins),
		hashmap.WithBlockSize(cfg.Map.BlockSize),
		hashmap.WithLimit(cfg.Map.Limit),
		hashmap.WithLoad(cfg.Map.OptimalLoad, cfg.Map.LoThreshold, cfg.Map.HiThreshold),
		hashmap.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	return &worker{
		cfg:  cfg,
		rng:  rand.New(rand.NewPCG(cfg.Seed, uint64(id))),
		log:  log,
		vec:  vec,
		lst:  lst,
		m:    m,
		mRef: make(map[int]int),
	}, nil
}

func (w *worker) run(ctx context.Context, ops int) error {
	w.log.Debug("worker starting", "ops", ops)
	for i := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch n := w.rng.IntN(w.cfg.Mix.total()); {
		case n < w.cfg.Mix.Vector:
			w.report.VectorOps++
			err = w.vectorOp()
		case n < w.cfg.Mix.Vector+w.cfg.Mix.List:
			w.report.ListOps++
			err = w.listOp()
		default:
			w.report.MapOps++
			err = w.mapOp()
		}
		if err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
		w.report.Ops++
		w.observe()
		if w.cfg.ValidateEvery > 0 && (i+1)%w.cfg.ValidateEvery == 0 {
			if err := w.validate(); err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
		}
	}
	if err := w.validate(); err != nil {
		return err
	}
	w.report.Rehashes = w.m.Stats().Rehashes
	w.log.Debug("worker done", "ops", w.report.Ops, "oom", w.report.OutOfMemory)
	return nil
}

// outOfMemory absorbs allocation failures. The container must be left
// as it was, which the next comparison checks.
func (w *worker) outOfMemory(err error) error {
	if errors.Is(err, pooled.ErrOutOfMemory) {
		w.report.OutOfMemory++
		return nil
	}
	return err
}

func (w *worker) observe() {
	w.report.PeakVectorCap = max(w.report.PeakVectorCap, w.vec.Cap())
	w.report.PeakListBlocks = max(w.report.PeakListBlocks, w.lst.Blocks())
	st := w.m.Stats()
	w.report.PeakMapEntries = max(w.report.PeakMapEntries, st.Entries)
	w.report.PeakMapBins = max(w.report.PeakMapBins, st.Bins)
	w.report.PeakMapBytes = max(w.report.PeakMapBytes, st.Pool.Bytes)
}

func (w *worker) validate() error {
	w.report.Validations++
	if err := w.vec.Validate(); err != nil {
		return fmt.Errorf("vector: %w", err)
	}
	if !slices.Equal(w.vec.Data(), w.vecRef) {
		return fmt.Errorf("%w: vector %v, want %v", ErrMismatch, w.vec, w.vecRef)
	}
	if err := w.lst.Validate(); err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if got := slices.Collect(w.lst.Values()); !slices.Equal(got, w.lstRef) {
		return fmt.Errorf("%w: list %v, want %v", ErrMismatch, got, w.lstRef)
	}
	if err := w.m.Validate(); err != nil {
		return fmt.Errorf("map: %w", err)
	}
	if got := maps.Collect(w.m.All()); !maps.Equal(got, w.mRef) {
		return fmt.Errorf("%w: map has %d entries, want %d",
			ErrMismatch, len(got), len(w.mRef))
	}
	w.report.LongestMapChain = max(w.report.LongestMapChain, w.m.Stats().LongestChain)
	return nil
}

func mismatch(what string, got, want any) error {
	return fmt.Errorf("%w: %s = %v, want %v", ErrMismatch, what, got, want)
}

func (w *worker) vectorOp() error {
	n := len(w.vecRef)
	switch op := w.rng.IntN(6); {
	case op == 0 && n >= w.cfg.KeySpace:
		fallthrough
	case op == 1 && n > 0:
		i := w.rng.IntN(n)
		count := 1 + w.rng.IntN(min(4, n-i))
		if err := w.vec.RemoveAt(i, count); err != nil {
			return err
		}
		w.vecRef = slices.Delete(w.vecRef, i, i+count)
	case op == 0 || op == 1:
		v := w.rng.Int()
		if _, err := w.vec.Add(v); err != nil {
			return w.outOfMemory(err)
		}
		w.vecRef = append(w.vecRef, v)
	case op == 2:
		i, v, count := w.rng.IntN(n+2), w.rng.Int(), 1+w.rng.IntN(3)
		if err := w.vec.InsertAt(i, v, count); err != nil {
			return w.outOfMemory(err)
		}
		if i > n {
			w.vecRef = append(w.vecRef, make([]int, i-n)...)
		}
		w.vecRef = slices.Insert(w.vecRef, i, slices.Repeat([]int{v}, count)...)
	case op == 3 && n > 0:
		i := w.rng.IntN(n)
		got, err := w.vec.Get(i)
		if err != nil {
			return err
		}
		if got != w.vecRef[i] {
			return mismatch(fmt.Sprintf("vector[%d]", i), got, w.vecRef[i])
		}
	case op == 4 && n > 0:
		i, v := w.rng.IntN(n), w.rng.Int()
		if err := w.vec.Set(i, v); err != nil {
			return err
		}
		w.vecRef[i] = v
	case op == 5:
		size := w.rng.IntN(n + 1)
		if err := w.vec.SetLen(size, -1); err != nil {
			return err
		}
		w.vecRef = w.vecRef[:size]
		if w.rng.IntN(4) == 0 {
			w.vec.ShrinkToFit()
		}
	}
	return nil
}

func (w *worker) listOp() error {
	n := len(w.lstRef)
	switch op := w.rng.IntN(8); {
	case (op == 0 || op == 1) && n >= w.cfg.KeySpace:
		w.lst.RemoveAll()
		w.lstRef = nil
	case op == 0:
		v := w.rng.Int()
		if _, err := w.lst.AddHead(v); err != nil {
			return w.outOfMemory(err)
		}
		w.lstRef = slices.Insert(w.lstRef, 0, v)
	case op == 1:
		v := w.rng.Int()
		if _, err := w.lst.AddTail(v); err != nil {
			return w.outOfMemory(err)
		}
		w.lstRef = append(w.lstRef, v)
	case op == 2 && n > 0:
		got, err := w.lst.RemoveHead()
		if err != nil {
			return err
		}
		if got != w.lstRef[0] {
			return mismatch("list head", got, w.lstRef[0])
		}
		w.lstRef = w.lstRef[1:]
	case op == 3 && n > 0:
		got, err := w.lst.RemoveTail()
		if err != nil {
			return err
		}
		if got != w.lstRef[n-1] {
			return mismatch("list tail", got, w.lstRef[n-1])
		}
		w.lstRef = w.lstRef[:n-1]
	case op == 4 && n > 0:
		i, v := w.rng.IntN(n), w.rng.Int()
		if _, err := w.lst.InsertBefore(w.lst.FindIndex(i), v); err != nil {
			return w.outOfMemory(err)
		}
		w.lstRef = slices.Insert(w.lstRef, i, v)
	case op == 5 && n > 0:
		i := w.rng.IntN(n)
		if err := w.lst.RemoveAt(w.lst.FindIndex(i)); err != nil {
			return err
		}
		w.lstRef = slices.Delete(w.lstRef, i, i+1)
	case op == 6 && n > 0:
		i := w.rng.IntN(n)
		if err := w.lst.MoveToHead(w.lst.FindIndex(i)); err != nil {
			return err
		}
		v := w.lstRef[i]
		w.lstRef = slices.Insert(slices.Delete(w.lstRef, i, i+1), 0, v)
	case op == 7 && n > 0:
		i, j := w.rng.IntN(n), w.rng.IntN(n)
		if err := w.lst.Swap(w.lst.FindIndex(i), w.lst.FindIndex(j)); err != nil {
			return err
		}
		w.lstRef[i], w.lstRef[j] = w.lstRef[j], w.lstRef[i]
	}
	return nil
}

func (w *worker) mapOp() error {
	k := w.rng.IntN(w.cfg.KeySpace)
	switch op := w.rng.IntN(10); {
	case op < 4:
		v := w.rng.Int()
		if _, err := w.m.Set(k, v); err != nil {
			return w.outOfMemory(err)
		}
		w.mRef[k] = v
	case op < 6:
		_, want := w.mRef[k]
		if got := w.m.Delete(k); got != want {
			return mismatch(fmt.Sprintf("delete %d", k), got, want)
		}
		delete(w.mRef, k)
	case op < 8:
		got, ok := w.m.Lookup(k)
		want, wantOK := w.mRef[k]
		if ok != wantOK || got != want {
			return mismatch(fmt.Sprintf("lookup %d", k), got, want)
		}
	case op == 8:
		r, err := w.m.Ref(k)
		if err != nil {
			return w.outOfMemory(err)
		}
		*r++
		w.mRef[k]++
	case w.rng.IntN(64) == 0:
		w.m.RemoveAll()
		clear(w.mRef)
	}
	return nil
}
