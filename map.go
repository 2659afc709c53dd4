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

import "fmt"

// Pair holds a key and value. Map and MultiMap store their entries as a
// Set of Pairs.
type Pair[K any, V any] struct {
	Key   K
	Value V
}

// pairKeyFuncs projects the key out of a Pair and delegates everything else
// to the key capability. The duplicate policy belongs to the map type, not
// to the key capability.
type pairKeyFuncs[K any, V any] struct {
	keys       KeyFuncs[K, K]
	duplicates bool
}

func (kf pairKeyFuncs[K, V]) GetKey(p *Pair[K, V]) K {
	return p.Key
}

func (kf pairKeyFuncs[K, V]) Matches(a, b K) bool {
	return kf.keys.Matches(a, b)
}

func (kf pairKeyFuncs[K, V]) Hash(key K) uint64 {
	return kf.keys.Hash(key)
}

func (kf pairKeyFuncs[K, V]) AllowDuplicates() bool {
	return kf.duplicates
}

// The functions below are shared by Map and MultiMap, which differ only in
// their duplicate policy.

// emplacePair builds the key and value directly in a freshly allocated slot
// and returns a pointer to the stored value.
func emplacePair[K, V any](s *Set[Pair[K, V], K], key K, init func(v *V)) *V {
	id, _ := s.EmplaceFunc(func(p *Pair[K, V]) {
		p.Key = key
		init(&p.Value)
	})
	return &s.element(id).value.Value
}

func addPair[K, V any](s *Set[Pair[K, V], K], key K, value V) *V {
	return emplacePair(s, key, func(v *V) { *v = value })
}

func findValue[K, V any](s *Set[Pair[K, V], K], key K) *V {
	p := s.Find(key)
	if p == nil {
		return nil
	}
	return &p.Value
}

func pairKeys[K, V any](s *Set[Pair[K, V], K]) []K {
	keys := make([]K, 0, s.Len())
	s.All(func(_ SetElementID, p *Pair[K, V]) bool {
		keys = append(keys, p.Key)
		return true
	})
	return keys
}

func pairValues[K, V any](s *Set[Pair[K, V], K]) []V {
	values := make([]V, 0, s.Len())
	s.All(func(_ SetElementID, p *Pair[K, V]) bool {
		values = append(values, p.Value)
		return true
	})
	return values
}

func allPairs[K, V any](s *Set[Pair[K, V], K], yield func(key K, value V) bool) {
	s.All(func(_ SetElementID, p *Pair[K, V]) bool {
		return yield(p.Key, p.Value)
	})
}

func sortByKey[K, V any](s *Set[Pair[K, V], K], cmp func(a, b K) int) {
	s.Sort(func(a, b Pair[K, V]) int { return cmp(a.Key, b.Key) })
}

func sortByValue[K, V any](s *Set[Pair[K, V], K], cmp func(a, b V) int) {
	s.Sort(func(a, b Pair[K, V]) int { return cmp(a.Value, b.Value) })
}

// Map is an unordered map from keys to values that never holds two entries
// with matching keys. Entries live in a Set, so an entry keeps its identity
// when its value is replaced, and across unrelated inserts and removes.
//
// A Map is NOT goroutine-safe. The zero value is not usable; use NewMap or
// NewMapFunc.
type Map[K any, V any] struct {
	set Set[Pair[K, V], K]
}

// NewMap constructs a map with comparable keys using DefaultKeyFuncs.
func NewMap[K comparable, V any](options ...Option) *Map[K, V] {
	return NewMapFunc[K, V](DefaultKeyFuncs[K]{}, options...)
}

// NewMapFunc constructs a map whose keys are described by keys. It panics
// if keys allows duplicates; use a MultiMap for that.
func NewMapFunc[K any, V any](keys KeyFuncs[K, K], options ...Option) *Map[K, V] {
	if keys.AllowDuplicates() {
		panic("sparse: Map key funcs must not allow duplicate keys")
	}
	m := &Map[K, V]{}
	m.set.init(pairKeyFuncs[K, V]{keys: keys}, makeConfig(options))
	return m
}

// Pairs exposes the underlying set of entries.
func (m *Map[K, V]) Pairs() *Set[Pair[K, V], K] {
	return &m.set
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.set.Len()
}

// Empty returns true if the map has no entries.
func (m *Map[K, V]) Empty() bool {
	return m.set.Empty()
}

// Add sets the value for key. If key is already present its value is
// replaced and the entry keeps its id. The returned pointer is invalidated
// by the next insert.
func (m *Map[K, V]) Add(key K, value V) *V {
	return addPair(&m.set, key, value)
}

// EmplaceFunc is like Add but lets init construct the value directly in the
// map's storage.
func (m *Map[K, V]) EmplaceFunc(key K, init func(v *V)) *V {
	return emplacePair(&m.set, key, init)
}

// Find returns a pointer to the value for key, or nil.
func (m *Map[K, V]) Find(key K) *V {
	return findValue(&m.set, key)
}

// Get retrieves the value for key, returning ok=false if key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if p := m.Find(key); p != nil {
		return *p, true
	}
	return value, false
}

// FindRef returns the value for key, or the zero value if key is not
// present.
func (m *Map[K, V]) FindRef(key K) V {
	v, _ := m.Get(key)
	return v
}

// FindChecked returns a pointer to the value for key. It panics if key is
// not present; use Find or Contains when absence is expected.
func (m *Map[K, V]) FindChecked(key K) *V {
	p := m.Find(key)
	if p == nil {
		panic(fmt.Sprintf("sparse: key %v not found", key))
	}
	return p
}

// FindOrAdd returns a pointer to the value for key, adding a zero value if
// key is not present.
func (m *Map[K, V]) FindOrAdd(key K) *V {
	return m.FindOrAddFunc(key, func(*V) {})
}

// FindOrAddFunc returns a pointer to the value for key, adding a value built
// by init if key is not present.
func (m *Map[K, V]) FindOrAddFunc(key K, init func(v *V)) *V {
	hash := m.set.keyFuncs.Hash(key)
	if id := m.set.FindIDByHash(hash, key); id.IsValid() {
		return &m.set.element(id).value.Value
	}
	return emplacePair(&m.set, key, init)
}

// Contains returns true if key is present.
func (m *Map[K, V]) Contains(key K) bool {
	return m.set.Contains(key)
}

// Remove removes the entry for key, returning the number of entries removed
// (0 or 1).
func (m *Map[K, V]) Remove(key K) int {
	return m.set.RemoveKey(key)
}

// RemoveAndCopyValue removes the entry for key and returns its value.
func (m *Map[K, V]) RemoveAndCopyValue(key K) (value V, ok bool) {
	id := m.set.FindID(key)
	if !id.IsValid() {
		return value, false
	}
	value = m.set.element(id).value.Value
	m.set.Remove(id)
	return value, true
}

// FindAndRemoveChecked removes the entry for key and returns its value. It
// panics if key is not present.
func (m *Map[K, V]) FindAndRemoveChecked(key K) V {
	v, ok := m.RemoveAndCopyValue(key)
	if !ok {
		panic(fmt.Sprintf("sparse: key %v not found", key))
	}
	return v
}

// FindKey returns the key of the first entry, in iteration order, whose
// value satisfies pred.
func (m *Map[K, V]) FindKey(pred func(v *V) bool) (key K, ok bool) {
	m.set.All(func(_ SetElementID, p *Pair[K, V]) bool {
		if pred(&p.Value) {
			key, ok = p.Key, true
			return false
		}
		return true
	})
	return key, ok
}

// Keys returns the keys in iteration order.
func (m *Map[K, V]) Keys() []K {
	return pairKeys(&m.set)
}

// Values returns the values in iteration order.
func (m *Map[K, V]) Values() []V {
	return pairValues(&m.set)
}

// All calls yield sequentially for each key and value present in the map.
// If yield returns false, iteration stops. The map must not be mutated
// during iteration; use Iter to remove entries while iterating.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	allPairs(&m.set, yield)
}

// Iter returns an iterator over the entries.
func (m *Map[K, V]) Iter() *MapIterator[K, V] {
	return &MapIterator[K, V]{it: m.set.Iter()}
}

// Append adds every entry of other, replacing the values of keys present in
// both.
func (m *Map[K, V]) Append(other *Map[K, V]) {
	m.set.Reserve(m.Len() + other.Len())
	other.All(func(k K, v V) bool {
		m.Add(k, v)
		return true
	})
}

// Clone returns a copy of m in which every entry has the same id.
func (m *Map[K, V]) Clone() *Map[K, V] {
	return &Map[K, V]{set: *m.set.Clone()}
}

// Equal returns true if m and other hold the same keys with values that are
// equal according to eq, regardless of order.
func (m *Map[K, V]) Equal(other *Map[K, V], eq func(a, b V) bool) bool {
	if m.Len() != other.Len() {
		return false
	}
	equal := true
	m.All(func(k K, v V) bool {
		p := other.Find(k)
		equal = p != nil && eq(v, *p)
		return equal
	})
	return equal
}

// KeySort orders the entries by key. All entry ids are invalidated.
func (m *Map[K, V]) KeySort(cmp func(a, b K) int) {
	sortByKey(&m.set, cmp)
}

// ValueSort orders the entries by value. All entry ids are invalidated.
func (m *Map[K, V]) ValueSort(cmp func(a, b V) int) {
	sortByValue(&m.set, cmp)
}

// Reserve makes room for n entries.
func (m *Map[K, V]) Reserve(n int) {
	m.set.Reserve(n)
}

// Clear removes every entry and resizes the storage to hold slack entries.
func (m *Map[K, V]) Clear(slack int) {
	m.set.Clear(slack)
}

// Reset removes every entry but keeps all storage.
func (m *Map[K, V]) Reset() {
	m.set.Reset()
}

// Shrink releases unused storage.
func (m *Map[K, V]) Shrink() {
	m.set.Shrink()
}

// Compact fills the holes left by removed entries.
func (m *Map[K, V]) Compact() {
	m.set.Compact()
}

// CompactStable fills the holes left by removed entries, preserving order.
func (m *Map[K, V]) CompactStable() {
	m.set.CompactStable()
}

// Relax shrinks the bucket array to fit.
func (m *Map[K, V]) Relax() {
	m.set.Relax()
}

// MapIterator walks the entries of a Map or MultiMap in storage order.
// RemoveCurrent is the only mutation permitted while iterating.
type MapIterator[K any, V any] struct {
	it *SetIterator[Pair[K, V], K]
}

// Next advances to the next entry, returning false when there are no more.
func (it *MapIterator[K, V]) Next() bool {
	return it.it.Next()
}

// ID returns the id of the current entry.
func (it *MapIterator[K, V]) ID() SetElementID {
	return it.it.ID()
}

// Key returns the key of the current entry.
func (it *MapIterator[K, V]) Key() K {
	return it.it.Value().Key
}

// Value returns a pointer to the value of the current entry.
func (it *MapIterator[K, V]) Value() *V {
	return &it.it.Value().Value
}

// RemoveCurrent removes the current entry.
func (it *MapIterator[K, V]) RemoveCurrent() {
	it.it.RemoveCurrent()
}
