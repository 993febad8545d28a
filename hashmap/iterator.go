package hashmap

import "jsouthworth.net/go/pooled/internal/plex"

// Iterator provides a mutable iterator over the map. This allows
// efficient, heap allocation-less access to the contents. Iterators
// are not safe for concurrent access so they may not be shared
// between goroutines. The map must not have entries added or removed
// while an iterator is in use.
func (m *Map[K, V]) Iterator() Iterator[K, V] {
	return Iterator[K, V]{m: m, cur: m.firstFrom(0)}
}

// Iterator is a mutable cursor over the entries of a map in position
// order.
type Iterator[K, V any] struct {
	m   *Map[K, V]
	cur plex.Handle
}

// HasNext is true when there are more elements to be iterated over.
func (i *Iterator[K, V]) HasNext() bool {
	return !i.cur.IsNil()
}

// Position returns the position of the entry Next will return.
func (i *Iterator[K, V]) Position() Position {
	return Position{i.cur}
}

// Next provides the next key value pair and increments the cursor.
func (i *Iterator[K, V]) Next() (k K, v V) {
	if i.cur.IsNil() {
		panic("hashmap: Next called on exhausted iterator")
	}
	n := i.m.node(i.cur)
	i.cur = i.m.after(i.cur)
	return n.key, n.value
}
