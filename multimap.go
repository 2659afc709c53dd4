// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sparse

import "slices"

// MultiMap is an unordered map that may hold several entries with the same
// key. Entries for one key are found most-recently-added first.
//
// A MultiMap is NOT goroutine-safe. The zero value is not usable; use
// NewMultiMap or NewMultiMapFunc.
type MultiMap[K any, V any] struct {
	set        Set[Pair[K, V], K]
	valueEqual func(a, b V) bool
}

// NewMultiMap constructs a multimap with comparable keys and values.
func NewMultiMap[K comparable, V comparable](options ...Option) *MultiMap[K, V] {
	return NewMultiMapFunc[K, V](DefaultKeyFuncs[K]{}, func(a, b V) bool { return a == b }, options...)
}

// NewMultiMapFunc constructs a multimap whose keys are described by keys and
// whose values are compared by valueEqual. The duplicate policy of keys is
// ignored: a MultiMap always allows duplicate keys.
func NewMultiMapFunc[K any, V any](
	keys KeyFuncs[K, K], valueEqual func(a, b V) bool, options ...Option,
) *MultiMap[K, V] {
	m := &MultiMap[K, V]{valueEqual: valueEqual}
	m.set.init(pairKeyFuncs[K, V]{keys: keys, duplicates: true}, makeConfig(options))
	return m
}

// Pairs exposes the underlying set of entries.
func (m *MultiMap[K, V]) Pairs() *Set[Pair[K, V], K] {
	return &m.set
}

// Len returns the number of entries, counting every entry of a repeated key.
func (m *MultiMap[K, V]) Len() int {
	return m.set.Len()
}

// Empty returns true if the multimap has no entries.
func (m *MultiMap[K, V]) Empty() bool {
	return m.set.Empty()
}

// Add adds an entry, even if an identical one is present.
func (m *MultiMap[K, V]) Add(key K, value V) *V {
	return addPair(&m.set, key, value)
}

// EmplaceFunc is like Add but lets init construct the value in place.
func (m *MultiMap[K, V]) EmplaceFunc(key K, init func(v *V)) *V {
	return emplacePair(&m.set, key, init)
}

// AddUnique adds an entry unless one with the same key and an equal value is
// already present, in which case a pointer to the existing value is
// returned. Entries with the same key but different values are kept.
func (m *MultiMap[K, V]) AddUnique(key K, value V) *V {
	if p := m.FindPair(key, value); p != nil {
		return p
	}
	return m.Add(key, value)
}

// Find returns a pointer to the most recently added value for key, or nil.
func (m *MultiMap[K, V]) Find(key K) *V {
	return findValue(&m.set, key)
}

// FindPair returns a pointer to the value of an entry with key and a value
// equal to value, or nil.
func (m *MultiMap[K, V]) FindPair(key K, value V) *V {
	for it := m.set.KeyIter(key); it.Next(); {
		if p := &it.Value().Value; m.valueEqual(*p, value) {
			return p
		}
	}
	return nil
}

// Contains returns true if at least one entry has key.
func (m *MultiMap[K, V]) Contains(key K) bool {
	return m.set.Contains(key)
}

// Count returns the number of entries with key.
func (m *MultiMap[K, V]) Count(key K) int {
	n := 0
	for it := m.set.KeyIter(key); it.Next(); {
		n++
	}
	return n
}

// MultiFind returns the values for key. Without maintainOrder they are in
// chain order, most recently added first; with it they are reversed into
// the order the entries were added (as long as no compaction or sort has
// happened in between).
func (m *MultiMap[K, V]) MultiFind(key K, maintainOrder bool) []V {
	var values []V
	for it := m.set.KeyIter(key); it.Next(); {
		values = append(values, it.Value().Value)
	}
	if maintainOrder {
		slices.Reverse(values)
	}
	return values
}

// MultiFindPointer is like MultiFind but returns pointers into the
// multimap's storage, which are invalidated by the next insert.
func (m *MultiMap[K, V]) MultiFindPointer(key K, maintainOrder bool) []*V {
	var values []*V
	for it := m.set.KeyIter(key); it.Next(); {
		values = append(values, &it.Value().Value)
	}
	if maintainOrder {
		slices.Reverse(values)
	}
	return values
}

// Remove removes every entry with key and returns how many were removed.
func (m *MultiMap[K, V]) Remove(key K) int {
	return m.set.RemoveKey(key)
}

// RemovePair removes every entry with key and a value equal to value.
func (m *MultiMap[K, V]) RemovePair(key K, value V) int {
	return m.removeMatching(key, value, false)
}

// RemoveSingle removes the most recently added entry with key and a value
// equal to value. It returns the number of entries removed (0 or 1).
func (m *MultiMap[K, V]) RemoveSingle(key K, value V) int {
	return m.removeMatching(key, value, true)
}

func (m *MultiMap[K, V]) removeMatching(key K, value V, single bool) int {
	removed := 0
	for it := m.set.KeyIter(key); it.Next(); {
		if m.valueEqual(it.Value().Value, value) {
			it.RemoveCurrent()
			removed++
			if single {
				break
			}
		}
	}
	return removed
}

// Keys returns each distinct key once, in the order of first occurrence.
func (m *MultiMap[K, V]) Keys() []K {
	keys := m.set.keyFuncs.(pairKeyFuncs[K, V]).keys
	unique := NewSetFunc[K, K](FuncKeyFuncs[K, K]{
		Key:     func(k *K) K { return *k },
		Equal:   keys.Matches,
		HashKey: keys.Hash,
	}, WithCapacityPolicy(m.set.elements.storage.policy))
	unique.Reserve(m.Len())
	m.set.All(func(_ SetElementID, p *Pair[K, V]) bool {
		unique.Add(p.Key)
		return true
	})
	return unique.Values()
}

// Values returns every value in iteration order.
func (m *MultiMap[K, V]) Values() []V {
	return pairValues(&m.set)
}

// All calls yield sequentially for each entry. If yield returns false,
// iteration stops.
func (m *MultiMap[K, V]) All(yield func(key K, value V) bool) {
	allPairs(&m.set, yield)
}

// Iter returns an iterator over all entries.
func (m *MultiMap[K, V]) Iter() *MapIterator[K, V] {
	return &MapIterator[K, V]{it: m.set.Iter()}
}

// KeyIter returns an iterator over the entries with key, most recently added
// first.
func (m *MultiMap[K, V]) KeyIter(key K) *MapKeyIterator[K, V] {
	return &MapKeyIterator[K, V]{it: m.set.KeyIter(key)}
}

// Clone returns a copy of m in which every entry has the same id.
func (m *MultiMap[K, V]) Clone() *MultiMap[K, V] {
	return &MultiMap[K, V]{set: *m.set.Clone(), valueEqual: m.valueEqual}
}

// KeySort orders the entries by key. All entry ids are invalidated.
func (m *MultiMap[K, V]) KeySort(cmp func(a, b K) int) {
	sortByKey(&m.set, cmp)
}

// ValueSort orders the entries by value. All entry ids are invalidated.
func (m *MultiMap[K, V]) ValueSort(cmp func(a, b V) int) {
	sortByValue(&m.set, cmp)
}

// Reserve makes room for n entries.
func (m *MultiMap[K, V]) Reserve(n int) {
	m.set.Reserve(n)
}

// Clear removes every entry and resizes the storage to hold slack entries.
func (m *MultiMap[K, V]) Clear(slack int) {
	m.set.Clear(slack)
}

// Reset removes every entry but keeps all storage.
func (m *MultiMap[K, V]) Reset() {
	m.set.Reset()
}

// Shrink releases unused storage.
func (m *MultiMap[K, V]) Shrink() {
	m.set.Shrink()
}

// Compact fills the holes left by removed entries.
func (m *MultiMap[K, V]) Compact() {
	m.set.Compact()
}

// CompactStable fills the holes left by removed entries, preserving order.
func (m *MultiMap[K, V]) CompactStable() {
	m.set.CompactStable()
}

// Relax shrinks the bucket array to fit.
func (m *MultiMap[K, V]) Relax() {
	m.set.Relax()
}

// MapKeyIterator walks the entries of a MultiMap with one key.
type MapKeyIterator[K any, V any] struct {
	it *SetKeyIterator[Pair[K, V], K]
}

// Next advances to the next entry with the key.
func (it *MapKeyIterator[K, V]) Next() bool {
	return it.it.Next()
}

// ID returns the id of the current entry.
func (it *MapKeyIterator[K, V]) ID() SetElementID {
	return it.it.ID()
}

// Key returns the key of the current entry.
func (it *MapKeyIterator[K, V]) Key() K {
	return it.it.Value().Key
}

// Value returns a pointer to the value of the current entry.
func (it *MapKeyIterator[K, V]) Value() *V {
	return &it.it.Value().Value
}

// RemoveCurrent removes the current entry.
func (it *MapKeyIterator[K, V]) RemoveCurrent() {
	it.it.RemoveCurrent()
}
