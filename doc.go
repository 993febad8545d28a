// Package pooled is the root of a set of mutable, single-owner
// containers whose nodes are pooled in slabs rather than allocated one
// at a time:
//
//	vector    a growable array with an adaptive growth policy
//	list      a doubly linked list addressed by positions
//	hashmap   a chained hash map with prime bin counts and automatic rehashing
//	hashset   a set on top of hashmap
//	queue     a FIFO on top of list
//	stack     a LIFO on top of vector
//	sortedset an ordered set kept sorted in a vector
//
// None of the containers are safe for concurrent use. Callers that share
// a container between goroutines must serialize access themselves.
//
// Every error returned by the containers wraps one of the errors defined
// in this package, so callers can test the failure class with errors.Is
// without looking at container internals.
package pooled // import "jsouthworth.net/go/pooled"
