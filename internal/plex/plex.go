// Package plex implements the slab allocator shared by the node based
// containers. A Pool hands out slots from a chain of fixed size blocks.
// Blocks are appended, never resized, and released only as a whole
// chain. Freed slots go onto a free stack and are served again before a
// new block is provisioned.
//
// Slots are addressed by Handles instead of pointers. A Handle carries
// the generation of the slot it was issued for, so a Handle kept past
// the Free of its slot, or past a Release of the pool, is detected as
// stale instead of silently aliasing a newer element.
package plex

import (
	"fmt"
	"unsafe"

	"jsouthworth.net/go/pooled"
	"jsouthworth.net/go/pooled/internal/assert"
	"jsouthworth.net/go/pooled/internal/checked"
)

// maxSlots keeps every slot index representable in a Handle.
const maxSlots = 1<<32 - 2

// Handle is a generation checked reference to a slot. The zero Handle
// refers to nothing.
type Handle struct {
	idx uint32 // slot index + 1
	gen uint32
}

// Nil is the Handle that refers to nothing.
var Nil Handle

// IsNil reports whether the handle refers to nothing.
func (h Handle) IsNil() bool {
	return h.idx == 0
}

func (h Handle) String() string {
	if h.IsNil() {
		return "nil"
	}
	return fmt.Sprintf("%d@%d", h.idx-1, h.gen)
}

type slot[T any] struct {
	value T
	gen   uint32
	live  bool
}

type options struct {
	limit int
}

// Option configures a Pool.
type Option func(*options)

// WithLimit bounds the number of slots the pool may provision. Once the
// limit is reached Alloc fails with pooled.ErrOutOfMemory. A limit of 0
// means unbounded.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

// Pool is a slab allocator of T.
type Pool[T any] struct {
	blocks    [][]slot[T]
	free      []uint32
	blockSize int
	live      int
	limit     int

	// genFloor is the generation given to slots of new blocks. It is
	// raised past every generation ever issued when the chain is
	// released.
	genFloor uint32
	maxGen   uint32
}

// New returns an empty pool provisioning blockSize slots at a time.
func New[T any](blockSize int, opts ...Option) (*Pool[T], error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: block size must be positive, got %d",
			pooled.ErrInvalidArgument, blockSize)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.limit < 0 {
		return nil, fmt.Errorf("%w: negative slot limit %d",
			pooled.ErrInvalidArgument, o.limit)
	}
	return &Pool[T]{
		blockSize: blockSize,
		limit:     o.limit,
	}, nil
}

// BlockSize returns the number of slots in each block.
func (p *Pool[T]) BlockSize() int {
	return p.blockSize
}

// Len returns the number of live slots.
func (p *Pool[T]) Len() int {
	return p.live
}

// Cap returns the number of provisioned slots.
func (p *Pool[T]) Cap() int {
	return len(p.blocks) * p.blockSize
}

// Blocks returns the length of the block chain.
func (p *Pool[T]) Blocks() int {
	return len(p.blocks)
}

func slotSize[T any]() int {
	return int(unsafe.Sizeof(slot[T]{}))
}

func headerSize[T any]() int {
	return int(unsafe.Sizeof([]slot[T]{}))
}

func (p *Pool[T]) allocateBlock() error {
	if _, err := checked.Size(p.blockSize, slotSize[T](), headerSize[T]()); err != nil {
		return err
	}
	total, err := checked.Add(p.Cap(), p.blockSize)
	if err != nil {
		return err
	}
	if uint64(total) > maxSlots {
		return fmt.Errorf("%w: %d slots exceed the addressable maximum",
			pooled.ErrOutOfMemory, total)
	}
	if p.limit > 0 && total > p.limit {
		return fmt.Errorf("%w: pool limit of %d slots reached",
			pooled.ErrOutOfMemory, p.limit)
	}

	block := make([]slot[T], p.blockSize)
	for i := range block {
		block[i].gen = p.genFloor
	}
	base := p.Cap()
	p.blocks = append(p.blocks, block)
	// Push in reverse so the lowest index of the block is served first.
	for i := p.blockSize - 1; i >= 0; i-- {
		p.free = append(p.free, uint32(base+i))
	}
	return nil
}

func (p *Pool[T]) slot(i uint32) *slot[T] {
	return &p.blocks[int(i)/p.blockSize][int(i)%p.blockSize]
}

// Alloc takes a slot from the free stack, provisioning a new block when
// the stack is empty. The returned value is the zero value of T.
func (p *Pool[T]) Alloc() (Handle, *T, error) {
	if len(p.free) == 0 {
		if err := p.allocateBlock(); err != nil {
			return Nil, nil, err
		}
	}
	i := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	s := p.slot(i)
	assert.That(!s.live, "free slot %d is live", i)
	s.live = true
	p.live++
	return Handle{idx: i + 1, gen: s.gen}, &s.value, nil
}

// Free returns the slot referenced by h to the free stack. Its value is
// reset to the zero value so the pool holds no references on behalf of
// the removed element. Freeing an invalid handle is a no-op that
// reports false.
func (p *Pool[T]) Free(h Handle) bool {
	if !p.Valid(h) {
		return false
	}
	s := p.slot(h.idx - 1)
	var zero T
	s.value = zero
	s.live = false
	s.gen++
	if s.gen > p.maxGen {
		p.maxGen = s.gen
	}
	p.free = append(p.free, h.idx-1)
	p.live--
	return true
}

// Valid reports whether h refers to a live slot of this pool.
func (p *Pool[T]) Valid(h Handle) bool {
	if h.IsNil() || int(h.idx-1) >= p.Cap() {
		return false
	}
	s := p.slot(h.idx - 1)
	return s.live && s.gen == h.gen
}

// Get returns the value stored at h without validating the handle. It
// is the fast path for handles the owning container knows are live.
func (p *Pool[T]) Get(h Handle) *T {
	return &p.slot(h.idx - 1).value
}

// Lookup returns the value stored at h if h is valid.
func (p *Pool[T]) Lookup(h Handle) (*T, bool) {
	if !p.Valid(h) {
		return nil, false
	}
	return p.Get(h), true
}

// Index returns a dense index for a valid handle, in [0, Cap()).
func (p *Pool[T]) Index(h Handle) int {
	return int(h.idx - 1)
}

// Release drops the whole block chain at once. Values are not visited;
// the owner must be done with every live element before calling it.
// Every handle issued so far becomes invalid.
func (p *Pool[T]) Release() {
	p.blocks = nil
	p.free = nil
	p.live = 0
	p.genFloor = p.maxGen + 1
	p.maxGen = p.genFloor
}

// Range calls fn for each live slot in index order until fn returns
// false.
func (p *Pool[T]) Range(fn func(Handle, *T) bool) {
	for b, block := range p.blocks {
		for i := range block {
			s := &block[i]
			if !s.live {
				continue
			}
			h := Handle{idx: uint32(b*p.blockSize+i) + 1, gen: s.gen}
			if !fn(h, &s.value) {
				return
			}
		}
	}
}

// Stats describes the memory held by a pool.
type Stats struct {
	Blocks int
	Slots  int
	Live   int
	Bytes  int
}

// Stats returns the current occupancy of the pool.
func (p *Pool[T]) Stats() Stats {
	per, err := checked.Size(p.blockSize, slotSize[T](), headerSize[T]())
	if err != nil {
		per = 0
	}
	return Stats{
		Blocks: len(p.blocks),
		Slots:  p.Cap(),
		Live:   p.live,
		Bytes:  per * len(p.blocks),
	}
}
