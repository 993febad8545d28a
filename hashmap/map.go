package hashmap // import "jsouthworth.net/go/pooled/hashmap"

import (
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"unsafe"

	"github.com/bits-and-blooms/bitset"

	"jsouthworth.net/go/pooled"
	"jsouthworth.net/go/pooled/internal/assert"
	"jsouthworth.net/go/pooled/internal/checked"
	"jsouthworth.net/go/pooled/internal/plex"
	"jsouthworth.net/go/pooled/traits"
)

// Defaults used by New.
const (
	DefaultBins        = 17
	DefaultOptimalLoad = 0.75
	DefaultLoThreshold = 0.25
	DefaultHiThreshold = 2.25
	DefaultBlockSize   = 10
)

// minLoThreshold is the smallest low rehash threshold that is honoured.
// Below it shrinking is not worth a rehash and the threshold is 0.
const minLoThreshold = 17

// Position identifies an entry of a Map. The zero Position refers to no
// entry. A Position survives rehashing and stays valid until its entry
// is removed.
type Position struct {
	h plex.Handle
}

// IsNil reports whether p refers to no entry.
func (p Position) IsNil() bool {
	return p.h.IsNil()
}

func (p Position) String() string {
	return p.h.String()
}

type node[K, V any] struct {
	key   K
	value V
	hash  uint64
	next  plex.Handle
}

type options struct {
	bins      int
	optimal   float64
	lo, hi    float64
	blockSize int
	limit     int
	keyTraits any
	logger    *slog.Logger
}

// Option configures a Map.
type Option func(*options)

// WithBins sets the initial number of bins.
func WithBins(n int) Option {
	return func(o *options) {
		o.bins = n
	}
}

// WithLoad sets the optimal load factor and the low and high load
// factors that trigger a rehash.
func WithLoad(optimal, lo, hi float64) Option {
	return func(o *options) {
		o.optimal, o.lo, o.hi = optimal, lo, hi
	}
}

// WithBlockSize sets how many entries are provisioned at a time.
func WithBlockSize(n int) Option {
	return func(o *options) {
		o.blockSize = n
	}
}

// WithLimit bounds the number of entry slots the map may provision.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

// WithKeyTraits sets the traits used to hash and compare keys. New fails
// if the key type of t does not match the map.
func WithKeyTraits[K any](t traits.Traits[K]) Option {
	return func(o *options) {
		o.keyTraits = t
	}
}

// WithLogger sets the logger receiving debug records about rehashing
// and block release, and warnings about failed automatic rehashes.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func validLoad(optimal, lo, hi float64) error {
	switch {
	case !(optimal > 0):
		return fmt.Errorf("%w: optimal load %v must be positive",
			pooled.ErrInvalidArgument, optimal)
	case !(lo >= 0 && lo < optimal):
		return fmt.Errorf("%w: low threshold %v must be in [0, %v)",
			pooled.ErrInvalidArgument, lo, optimal)
	case !(hi > optimal):
		return fmt.Errorf("%w: high threshold %v must exceed %v",
			pooled.ErrInvalidArgument, hi, optimal)
	}
	return nil
}

// Map is a mutable chained hash map. Entries live in pooled blocks and
// are chained per bin. The number of bins adapts to the number of
// entries unless automatic rehashing is disabled.
//
// An automatic rehash that cannot allocate its bins does not fail the
// insert or removal that triggered it: the map keeps its current bins,
// stays consistent, and retries on the next mutation past a threshold.
// The failure is logged at warning level and counted in Stats.
type Map[K, V any] struct {
	bins  []plex.Handle // nil until the first insert
	nbins int
	nodes *plex.Pool[node[K, V]]
	keys  traits.Traits[K]
	log   *slog.Logger

	optimal, lo, hi float64
	hiRehash        int
	loRehash        int
	locks           int
	rehashes        int
	failedRehashes  int
	rehashErr       error
}

// New returns an empty map configured by opts.
func New[K, V any](opts ...Option) (*Map[K, V], error) {
	o := options{
		bins:      DefaultBins,
		optimal:   DefaultOptimalLoad,
		lo:        DefaultLoThreshold,
		hi:        DefaultHiThreshold,
		blockSize: DefaultBlockSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.bins <= 0 {
		return nil, fmt.Errorf("%w: bin count %d must be positive",
			pooled.ErrInvalidArgument, o.bins)
	}
	if err := validLoad(o.optimal, o.lo, o.hi); err != nil {
		return nil, err
	}
	nodes, err := plex.New[node[K, V]](o.blockSize, plex.WithLimit(o.limit))
	if err != nil {
		return nil, err
	}
	keys := traits.Default[K]()
	if o.keyTraits != nil {
		t, ok := o.keyTraits.(traits.Traits[K])
		if !ok {
			return nil, fmt.Errorf("%w: key traits %T do not match key type %T",
				pooled.ErrInvalidArgument, o.keyTraits, *new(K))
		}
		keys = t
	}
	log := o.logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	m := &Map[K, V]{
		nbins:   o.bins,
		nodes:   nodes,
		keys:    keys,
		log:     log,
		optimal: o.optimal,
		lo:      o.lo,
		hi:      o.hi,
	}
	m.updateThresholds()
	return m, nil
}

func (m *Map[K, V]) updateThresholds() {
	m.hiRehash = int(m.hi * float64(m.nbins))
	m.loRehash = int(m.lo * float64(m.nbins))
	if m.loRehash < minLoThreshold {
		m.loRehash = 0
	}
}

func (m *Map[K, V]) node(h plex.Handle) *node[K, V] {
	return m.nodes.Get(h)
}

func (m *Map[K, V]) bin(hash uint64) int {
	return int(hash % uint64(m.nbins))
}

// maxBinBytes bounds the size of a bin slice.
var maxBinBytes = checked.MaxAlloc

func makeBins(n int) ([]plex.Handle, error) {
	size, err := checked.Size(n, int(unsafe.Sizeof(plex.Handle{})), 0)
	if err != nil {
		return nil, err
	}
	if size > maxBinBytes {
		return nil, fmt.Errorf("%w: %d bins", checked.ErrTooLarge, n)
	}
	return make([]plex.Handle, n), nil
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	if m == nil {
		return 0
	}
	return m.nodes.Len()
}

// IsEmpty reports whether the map has no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.Len() == 0
}

// BinCount returns the current number of bins.
func (m *Map[K, V]) BinCount() int {
	return m.nbins
}

// OptimalLoad returns the optimal load factor.
func (m *Map[K, V]) OptimalLoad() float64 {
	return m.optimal
}

// find returns the handle of the node holding k and of its predecessor
// in the chain.
func (m *Map[K, V]) find(k K, hash uint64) (h, prev plex.Handle) {
	if m.bins == nil {
		return plex.Nil, plex.Nil
	}
	for h = m.bins[m.bin(hash)]; !h.IsNil(); h = m.node(h).next {
		n := m.node(h)
		if n.hash == hash && m.keys.Equal(n.key, k) {
			return h, prev
		}
		prev = h
	}
	return plex.Nil, plex.Nil
}

// Lookup returns the value stored under k.
func (m *Map[K, V]) Lookup(k K) (V, bool) {
	h, _ := m.find(k, m.keys.Hash(k))
	if h.IsNil() {
		var zero V
		return zero, false
	}
	return m.node(h).value, true
}

// LookupPosition returns the position of k, nil if k is absent.
func (m *Map[K, V]) LookupPosition(k K) Position {
	h, _ := m.find(k, m.keys.Hash(k))
	return Position{h}
}

// Contains reports whether k is present.
func (m *Map[K, V]) Contains(k K) bool {
	return !m.LookupPosition(k).IsNil()
}

// insert adds a node for k, which must be absent, and returns it.
func (m *Map[K, V]) insert(k K, hash uint64) (plex.Handle, error) {
	if m.bins == nil {
		assert.That(m.Len() == 0, "entries without bins")
		bins, err := makeBins(m.nbins)
		if err != nil {
			return plex.Nil, err
		}
		m.bins = bins
	}
	h, n, err := m.nodes.Alloc()
	if err != nil {
		return plex.Nil, err
	}
	n.key = k
	n.hash = hash
	b := m.bin(hash)
	n.next = m.bins[b]
	m.bins[b] = h
	if m.Len() > m.hiRehash && !m.IsLocked() {
		m.autoRehash()
	}
	return h, nil
}

func (m *Map[K, V]) autoRehash() {
	if err := m.Rehash(PickSize(m.Len(), m.optimal)); err != nil {
		m.failedRehashes++
		m.rehashErr = err
		m.log.Warn("automatic rehash failed",
			"entries", m.Len(), "bins", m.nbins, "err", err)
	}
}

// Set stores v under k and returns the position of the entry.
func (m *Map[K, V]) Set(k K, v V) (Position, error) {
	hash := m.keys.Hash(k)
	h, _ := m.find(k, hash)
	if h.IsNil() {
		var err error
		h, err = m.insert(k, hash)
		if err != nil {
			return Position{}, err
		}
	}
	m.node(h).value = v
	return Position{h}, nil
}

// Ref returns a pointer to the value stored under k, inserting the zero
// value first if k is absent. The pointer is valid until the entry is
// removed.
func (m *Map[K, V]) Ref(k K) (*V, error) {
	hash := m.keys.Hash(k)
	h, _ := m.find(k, hash)
	if h.IsNil() {
		var err error
		h, err = m.insert(k, hash)
		if err != nil {
			return nil, err
		}
	}
	return &m.node(h).value, nil
}

func (m *Map[K, V]) lookup(p Position) (*node[K, V], error) {
	if p.IsNil() {
		return nil, fmt.Errorf("%w: nil position", pooled.ErrInvalidArgument)
	}
	n, ok := m.nodes.Lookup(p.h)
	if !ok {
		return nil, fmt.Errorf("%w: stale position %v", pooled.ErrInvalidArgument, p)
	}
	return n, nil
}

// SetValueAt replaces the value of the entry at p.
func (m *Map[K, V]) SetValueAt(p Position, v V) error {
	n, err := m.lookup(p)
	if err != nil {
		return err
	}
	n.value = v
	return nil
}

// At returns the key and value of the entry at p.
func (m *Map[K, V]) At(p Position) (K, V, error) {
	n, err := m.lookup(p)
	if err != nil {
		var (
			k K
			v V
		)
		return k, v, err
	}
	return n.key, n.value, nil
}

// KeyAt returns the key of the entry at p.
func (m *Map[K, V]) KeyAt(p Position) (K, error) {
	k, _, err := m.At(p)
	return k, err
}

// ValueAt returns the value of the entry at p.
func (m *Map[K, V]) ValueAt(p Position) (V, error) {
	_, v, err := m.At(p)
	return v, err
}

// unlink removes h, whose chain predecessor is prev, and frees it.
func (m *Map[K, V]) unlink(h, prev plex.Handle) {
	n := m.node(h)
	if prev.IsNil() {
		b := m.bin(n.hash)
		assert.That(m.bins[b] == h, "node %v is not the head of bin %d", h, b)
		m.bins[b] = n.next
	} else {
		m.node(prev).next = n.next
	}
	m.freeNode(h)
}

func (m *Map[K, V]) freeNode(h plex.Handle) {
	m.nodes.Free(h)
	if m.Len() < m.loRehash && !m.IsLocked() {
		m.autoRehash()
	}
	if m.Len() == 0 {
		m.releaseBlocks()
	}
}

func (m *Map[K, V]) releaseBlocks() {
	if m.nodes.Blocks() == 0 {
		return
	}
	m.log.Debug("releasing entry blocks", "blocks", m.nodes.Blocks())
	m.nodes.Release()
}

// Delete removes k and reports whether it was present.
func (m *Map[K, V]) Delete(k K) bool {
	h, prev := m.find(k, m.keys.Hash(k))
	if h.IsNil() {
		return false
	}
	m.unlink(h, prev)
	return true
}

// RemoveAt removes the entry at p.
func (m *Map[K, V]) RemoveAt(p Position) error {
	n, err := m.lookup(p)
	if err != nil {
		return err
	}
	prev := plex.Nil
	for h := m.bins[m.bin(n.hash)]; h != p.h; h = m.node(h).next {
		assert.That(!h.IsNil(), "position %v is not in its bin", p)
		prev = h
	}
	m.unlink(p.h, prev)
	return nil
}

// RemoveAll removes every entry and releases the bins and blocks. If bins
// were allocated and automatic rehashing is not disabled, the bin count
// is reset to the size picked for an empty map.
func (m *Map[K, V]) RemoveAll() {
	resize := !m.IsLocked() && m.bins != nil
	m.DisableAutoRehash()
	for _, head := range m.bins {
		for h := head; !h.IsNil(); {
			next := m.node(h).next
			m.nodes.Free(h)
			h = next
		}
	}
	m.bins = nil
	if resize {
		m.nbins = PickSize(0, m.optimal)
		m.updateThresholds()
	}
	m.releaseBlocks()
	m.EnableAutoRehash()
}

// DisableAutoRehash suspends rehashing on insert and remove. Calls nest
// and must be balanced by EnableAutoRehash.
func (m *Map[K, V]) DisableAutoRehash() {
	m.locks++
}

// EnableAutoRehash undoes one DisableAutoRehash.
func (m *Map[K, V]) EnableAutoRehash() {
	assert.That(m.locks > 0, "unbalanced EnableAutoRehash")
	if m.locks > 0 {
		m.locks--
	}
}

// IsLocked reports whether automatic rehashing is disabled.
func (m *Map[K, V]) IsLocked() bool {
	return m.locks != 0
}

// InitBins sets the number of bins of an empty map, allocating them
// immediately when allocNow is set.
func (m *Map[K, V]) InitBins(n int, allocNow bool) error {
	switch {
	case n <= 0:
		return fmt.Errorf("%w: bin count %d must be positive",
			pooled.ErrInvalidArgument, n)
	case m.Len() != 0:
		return fmt.Errorf("%w: bins of a map with %d entries",
			pooled.ErrInvalidArgument, m.Len())
	}
	var bins []plex.Handle
	if allocNow {
		var err error
		if bins, err = makeBins(n); err != nil {
			return err
		}
	}
	m.bins = bins
	m.nbins = n
	m.updateThresholds()
	return nil
}

// Rehash redistributes the entries over n bins. A count of 0 picks the
// size for the current number of entries. Entries are relinked in place
// so positions stay valid.
func (m *Map[K, V]) Rehash(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: bin count %d", pooled.ErrInvalidArgument, n)
	}
	if n == 0 {
		n = PickSize(m.Len(), m.optimal)
	}
	if n == m.nbins {
		return nil
	}
	if m.bins == nil {
		m.nbins = n
		m.updateThresholds()
		return nil
	}
	bins, err := makeBins(n)
	if err != nil {
		return err
	}
	old := m.nbins
	for _, head := range m.bins {
		for h := head; !h.IsNil(); {
			nd := m.node(h)
			next := nd.next
			b := int(nd.hash % uint64(n))
			nd.next = bins[b]
			bins[b] = h
			h = next
		}
	}
	m.bins = bins
	m.nbins = n
	m.updateThresholds()
	m.rehashes++
	m.log.Debug("rehashed", "entries", m.Len(), "from", old, "to", n)
	return nil
}

// SetOptimalLoad changes the load factors. When rehashNow is set and the
// entry count is outside the new thresholds the map is rehashed.
func (m *Map[K, V]) SetOptimalLoad(optimal, lo, hi float64, rehashNow bool) error {
	if err := validLoad(optimal, lo, hi); err != nil {
		return err
	}
	m.optimal, m.lo, m.hi = optimal, lo, hi
	m.updateThresholds()
	if rehashNow && (m.Len() > m.hiRehash || m.Len() < m.loRehash) {
		return m.Rehash(PickSize(m.Len(), m.optimal))
	}
	return nil
}

// firstFrom returns the head of the first non-empty bin at or after b.
func (m *Map[K, V]) firstFrom(b int) plex.Handle {
	for ; b < len(m.bins); b++ {
		if !m.bins[b].IsNil() {
			return m.bins[b]
		}
	}
	return plex.Nil
}

func (m *Map[K, V]) after(h plex.Handle) plex.Handle {
	n := m.node(h)
	if !n.next.IsNil() {
		return n.next
	}
	return m.firstFrom(m.bin(n.hash) + 1)
}

// StartPosition returns the first position in iteration order, nil for
// an empty map. Entries are visited by ascending bin, then along each
// chain.
func (m *Map[K, V]) StartPosition() Position {
	if m.IsEmpty() {
		return Position{}
	}
	return Position{m.firstFrom(0)}
}

// Next returns the position following p, nil at the end or when p is
// not valid.
func (m *Map[K, V]) Next(p Position) Position {
	if _, err := m.lookup(p); err != nil {
		return Position{}
	}
	return Position{m.after(p.h)}
}

// All iterates over the entries in position order. The entry being
// visited may be updated with SetValueAt.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for h := m.firstFrom(0); !h.IsNil(); h = m.after(h) {
			n := m.node(h)
			if !yield(n.key, n.value) {
				return
			}
		}
	}
}

// Keys iterates over the keys in position order.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Values iterates over the values in position order.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range m.All() {
			if !yield(v) {
				return
			}
		}
	}
}

// Stats describes the shape of a map.
type Stats struct {
	Entries      int
	Bins         int
	UsedBins     int
	LongestChain int
	Load         float64
	Rehashes     int
	// FailedRehashes counts automatic rehashes that could not allocate
	// their bins. RehashError is the most recent such failure.
	FailedRehashes int
	RehashError    error
	Pool           plex.Stats
}

// Stats returns the current shape of the map.
func (m *Map[K, V]) Stats() Stats {
	st := Stats{
		Entries:        m.Len(),
		Bins:           m.nbins,
		Load:           float64(m.Len()) / float64(m.nbins),
		Rehashes:       m.rehashes,
		FailedRehashes: m.failedRehashes,
		RehashError:    m.rehashErr,
		Pool:           m.nodes.Stats(),
	}
	for _, head := range m.bins {
		if head.IsNil() {
			continue
		}
		st.UsedBins++
		chain := 0
		for h := head; !h.IsNil(); h = m.node(h).next {
			chain++
		}
		st.LongestChain = max(st.LongestChain, chain)
	}
	return st
}

// Validate checks that every entry is reachable from the bin its hash
// selects exactly once, that chains are acyclic and that the entry
// count matches.
func (m *Map[K, V]) Validate() error {
	if m.nbins <= 0 {
		return fmt.Errorf("%w: bin count %d", pooled.ErrInvalidArgument, m.nbins)
	}
	if m.bins == nil {
		if m.Len() != 0 {
			return fmt.Errorf("%w: %d entries without bins",
				pooled.ErrInvalidArgument, m.Len())
		}
		return nil
	}
	if len(m.bins) != m.nbins {
		return fmt.Errorf("%w: %d bins allocated, %d expected",
			pooled.ErrInvalidArgument, len(m.bins), m.nbins)
	}
	seen := bitset.New(uint(m.nodes.Cap()))
	count := 0
	for b, head := range m.bins {
		for h := head; !h.IsNil(); {
			n, ok := m.nodes.Lookup(h)
			if !ok {
				return fmt.Errorf("%w: bin %d links freed entry %v",
					pooled.ErrInvalidArgument, b, h)
			}
			idx := uint(m.nodes.Index(h))
			if seen.Test(idx) {
				return fmt.Errorf("%w: entry %v reached twice",
					pooled.ErrInvalidArgument, h)
			}
			seen.Set(idx)
			if m.bin(n.hash) != b {
				return fmt.Errorf("%w: entry %v with hash %#x in bin %d",
					pooled.ErrInvalidArgument, h, n.hash, b)
			}
			if hash := m.keys.Hash(n.key); hash != n.hash {
				return fmt.Errorf("%w: entry %v hash changed from %#x to %#x",
					pooled.ErrInvalidArgument, h, n.hash, hash)
			}
			count++
			h = n.next
		}
	}
	if count != m.Len() {
		return fmt.Errorf("%w: %d entries reachable, %d live",
			pooled.ErrInvalidArgument, count, m.Len())
	}
	return nil
}

// String renders the map as a list of [key value] pairs.
func (m *Map[K, V]) String() string {
	var b strings.Builder
	fmt.Fprint(&b, "{ ")
	for k, v := range m.All() {
		fmt.Fprintf(&b, "[%v %v] ", k, v)
	}
	fmt.Fprint(&b, "}")
	return b.String()
}
