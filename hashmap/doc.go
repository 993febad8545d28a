// Package hashmap implements a mutable chained hash map whose entries
// are provisioned from pooled blocks. Each bin holds a singly linked
// chain of entries; new entries are placed at the head of their chain.
//
// The number of bins is picked from a table of primes so that the load,
// entries per bin, stays near the optimal load factor. After an insert
// pushes the load past the high threshold, or a removal drops it below
// the low threshold, the map is rehashed. Rehashing relinks existing
// entries so positions obtained earlier remain valid. Automatic
// rehashing can be suspended with DisableAutoRehash.
//
// A note about key equality. Keys are hashed and compared with the
// traits given by WithKeyTraits. By default a key type may override
// hashing and equality by implementing Hash() uint64 and
// Equal(other interface{}) bool. Otherwise '==' will be used with all
// its restrictions.
package hashmap
