package kernel

import "slices"

// CountedSet is a multiset keyed by K that remembers insertion order.
//
// Add increments the count of a key; Delete decrements it and only removes
// the entry once the count reaches zero. ForEach visits every distinct entry
// exactly once regardless of its count.
//
// A key that is fully removed and added again moves to the end of the
// iteration order.
type CountedSet[K comparable, V any] struct {
	entries map[K]*countedEntry[V]
	order   []K
}

type countedEntry[V any] struct {
	value V
	count int
}

// NewCountedSet creates an empty set.
func NewCountedSet[K comparable, V any]() *CountedSet[K, V] {
	return &CountedSet[K, V]{
		entries: make(map[K]*countedEntry[V]),
	}
}

// Add increments the count for key, inserting it with count 1 if absent.
// The value stored on first insertion is kept; later values are ignored.
func (s *CountedSet[K, V]) Add(key K, value V) {
	if e, ok := s.entries[key]; ok {
		e.count++
		return
	}
	s.entries[key] = &countedEntry[V]{value: value, count: 1}
	s.order = append(s.order, key)
}

// Delete decrements the count for key. It returns true only when this call
// removed the last reference. Deleting an absent key is a no-op returning false.
func (s *CountedSet[K, V]) Delete(key K) bool {
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if e.count > 1 {
		e.count--
		return false
	}
	delete(s.entries, key)
	if i := slices.Index(s.order, key); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return true
}

// Count returns the current count for key (0 if absent).
func (s *CountedSet[K, V]) Count(key K) int {
	if e, ok := s.entries[key]; ok {
		return e.count
	}
	return 0
}

// Has reports whether key is present with a positive count.
func (s *CountedSet[K, V]) Has(key K) bool {
	_, ok := s.entries[key]
	return ok
}

// Len returns the number of distinct keys.
func (s *CountedSet[K, V]) Len() int {
	return len(s.order)
}

// ForEach calls fn for every distinct entry in insertion order.
// Iteration stops at the first error, which is returned.
func (s *CountedSet[K, V]) ForEach(fn func(key K, value V) error) error {
	// Snapshot the order so fn may not disturb the walk.
	keys := slices.Clone(s.order)
	for _, k := range keys {
		e, ok := s.entries[k]
		if !ok {
			continue
		}
		if err := fn(k, e.value); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns the distinct keys in insertion order.
func (s *CountedSet[K, V]) Keys() []K {
	return slices.Clone(s.order)
}
