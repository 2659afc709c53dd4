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

// Package sparse implements associative containers whose elements have
// stable identities: a Set, and the Map and MultiMap built on top of it.
//
// # Sparse arrays
//
// All element storage lives in a SparseArray, a slot allocator over a
// contiguous buffer. A slot is either live or free. Free slots are threaded
// into a doubly linked free list through the slots' own storage, so
// allocating and freeing are O(1) and never move other elements. The most
// recently freed slot is the first to be reused. Because nothing moves, the
// index of an element is a stable identity: it stays valid until that
// element is removed, or the array is cleared, compacted or sorted.
//
// # Sets
//
// A Set is an open hash table (separate chaining) layered on a SparseArray.
// The bucket array holds the id of the first element in each chain, and
// each element carries the id of the next element in its chain:
//
//	 buckets (size 4)          elements (SparseArray)
//	+---+                     +----------------------------+
//	| 0 | --> 3 ------------> | 3: "c"  next=0  bucket=0   |
//	+---+                     | 0: "a"  next=-  bucket=0   |
//	| 1 | --> -               | 1: free                    |
//	+---+                     | 2: "b"  next=-  bucket=2   |
//	| 2 | --> 2               +----------------------------+
//	+---+
//	| 3 | --> -
//	+---+
//
// New elements are linked at the head of their chain, so a chain lists
// elements most-recently-added first. The number of buckets is always zero
// (nothing has been inserted yet) or a power of two, and is derived from the
// element count by a monotone sizing function. When an insert pushes the
// count past the point where more buckets are wanted, the bucket array is
// reallocated and every chain is rebuilt from the live slots (a rehash).
// Removing an element unlinks it from its chain and frees its slot; it never
// triggers a rehash.
//
// A Set is generic over a KeyFuncs capability which extracts the key from an
// element, compares and hashes keys, and says whether duplicate keys are
// allowed. Set[T, T] with DefaultKeyFuncs is a plain set. Map and MultiMap
// are Set[Pair[K, V], K] with a capability that projects the pair's key.
//
// # Identities
//
// Add returns a SetElementID. An id is a weak reference: it does not keep
// the element alive, and once the element is removed the slot (and thus the
// id) may be handed to an unrelated element. Compact, CompactStable, Sort and
// Clear invalidate all ids.
//
// None of the containers in this package are goroutine-safe.
package sparse

import (
	"fmt"
	"math/bits"
	"strings"
	"unsafe"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// Sets with fewer elements than this use a single bucket.
	minHashedElements = 4
	// avgElementsPerBucket and baseBuckets shape the sizing function.
	avgElementsPerBucket = 2
	baseBuckets          = 8
)

// hashBucketCount returns the number of buckets wanted for n elements. It is
// monotone in n and always a power of two.
func hashBucketCount(n int) int {
	if n < minHashedElements {
		return 1
	}
	x := n/avgElementsPerBucket + baseBuckets
	return 1 << bits.Len(uint(x-1))
}

// SetElementID identifies an element of a Set. The zero value is the invalid
// id.
type SetElementID struct {
	// v is the sparse array index plus one.
	v int
}

// InvalidSetElementID is the id that refers to no element.
var InvalidSetElementID = SetElementID{}

// SetElementIDFromIndex returns the id of the element at a sparse array
// index. A negative index yields InvalidSetElementID.
func SetElementIDFromIndex(index int) SetElementID {
	if index < 0 {
		return InvalidSetElementID
	}
	return SetElementID{index + 1}
}

// IsValid returns true if id refers to an element. It says nothing about
// whether that element is still present.
func (id SetElementID) IsValid() bool {
	return id.v != 0
}

// Index returns the sparse array index of id, or -1 for the invalid id.
func (id SetElementID) Index() int {
	return id.v - 1
}

func (id SetElementID) String() string {
	if !id.IsValid() {
		return "-"
	}
	return fmt.Sprint(id.Index())
}

// setElement is what a Set stores in each slot of its SparseArray.
type setElement[T any] struct {
	value T
	// hashNextID is the next element in the same bucket chain.
	hashNextID SetElementID
	// hashIndex is the bucket this element is linked into.
	hashIndex int
}

// Set is an unordered collection of elements of type T, keyed by K through a
// KeyFuncs capability. Elements are stored in a SparseArray, so the id
// returned by Add stays valid across unrelated inserts and removes.
//
// A Set is NOT goroutine-safe. The zero value is not usable; use NewSet or
// NewSetFunc.
type Set[T any, K any] struct {
	keyFuncs KeyFuncs[T, K]
	elements SparseArray[setElement[T]]
	// buckets holds the head of each chain. len(buckets) is 0 until the
	// first element is hashed, and a power of two afterwards.
	buckets []SetElementID
	logger  *zap.Logger
}

// NewSet constructs a set of comparable elements using DefaultKeyFuncs.
func NewSet[T comparable](options ...Option) *Set[T, T] {
	return NewSetFunc[T, T](DefaultKeyFuncs[T]{}, options...)
}

// NewSetFunc constructs a set whose keys are described by keyFuncs.
func NewSetFunc[T any, K any](keyFuncs KeyFuncs[T, K], options ...Option) *Set[T, K] {
	s := &Set[T, K]{}
	s.init(keyFuncs, makeConfig(options))
	return s
}

func (s *Set[T, K]) init(keyFuncs KeyFuncs[T, K], c config) {
	c.resolve()
	s.keyFuncs = keyFuncs
	s.logger = c.logger
	initialCapacity := c.initialCapacity
	c.initialCapacity = 0
	s.elements.init(c)
	if initialCapacity > 0 {
		s.Reserve(initialCapacity)
	}
}

// config returns the options s was built with, for building sets like it.
func (s *Set[T, K]) config() config {
	return config{policy: s.elements.storage.policy, logger: s.logger}
}

// KeyFuncs returns the capability s was constructed with.
func (s *Set[T, K]) KeyFuncs() KeyFuncs[T, K] {
	return s.keyFuncs
}

// Len returns the number of elements in the set.
func (s *Set[T, K]) Len() int {
	return s.elements.Len()
}

// Empty returns true if the set has no elements.
func (s *Set[T, K]) Empty() bool {
	return s.elements.Len() == 0
}

// MaxIndex returns one past the highest sparse array index in use.
func (s *Set[T, K]) MaxIndex() int {
	return s.elements.MaxIndex()
}

// HashSize returns the number of buckets.
func (s *Set[T, K]) HashSize() int {
	return len(s.buckets)
}

// AllocatedSize returns the number of bytes held by the set.
func (s *Set[T, K]) AllocatedSize() uintptr {
	return s.elements.AllocatedSize() + uintptr(cap(s.buckets))*unsafe.Sizeof(SetElementID{})
}

// element returns the element for id without checking that it is allocated.
func (s *Set[T, K]) element(id SetElementID) *setElement[T] {
	return &s.elements.storage.at(id.Index()).value
}

func (s *Set[T, K]) bucket(hash uint64) *SetElementID {
	return &s.buckets[hash&uint64(len(s.buckets)-1)]
}

// Add inserts v. If duplicates are disallowed and an element with the same
// key exists, v replaces that element in place and the existing id is
// returned with isDuplicate set.
func (s *Set[T, K]) Add(v T) (id SetElementID, isDuplicate bool) {
	index, e := s.elements.AddUninitialized()
	e.value = v
	return s.place(index, e)
}

// EmplaceFunc is like Add but lets init construct the element directly in
// its slot.
func (s *Set[T, K]) EmplaceFunc(init func(v *T)) (id SetElementID, isDuplicate bool) {
	index, e := s.elements.AddUninitialized()
	init(&e.value)
	return s.place(index, e)
}

// place finishes an insert of the freshly allocated, unlinked element at
// index.
func (s *Set[T, K]) place(index int, e *setElement[T]) (SetElementID, bool) {
	id := SetElementIDFromIndex(index)
	key := s.keyFuncs.GetKey(&e.value)
	hash := s.keyFuncs.Hash(key)

	// With a single element the new one is alone and cannot have a match.
	if !s.keyFuncs.AllowDuplicates() && s.elements.Len() != 1 {
		if existing := s.findIDByHash(hash, key); existing.IsValid() {
			// Keep the existing slot, and thus its id, and discard the new
			// one. The old value is overwritten first, then the new slot is
			// zeroed and freed so nothing outlives the copy.
			s.element(existing).value = e.value
			s.elements.RemoveAt(index, 1)
			s.checkInvariants()
			return existing, true
		}
	}

	if !s.ConditionalRehash(s.elements.Len(), false) {
		// The rehash links every element including this one.
		s.link(id, e, hash)
	}
	s.checkInvariants()
	return id, false
}

func (s *Set[T, K]) link(id SetElementID, e *setElement[T], hash uint64) {
	e.hashIndex = int(hash & uint64(len(s.buckets)-1))
	e.hashNextID = s.buckets[e.hashIndex]
	s.buckets[e.hashIndex] = id
}

// Append adds every value, reserving room for all of them first.
func (s *Set[T, K]) Append(values ...T) {
	s.Reserve(s.Len() + len(values))
	for _, v := range values {
		s.Add(v)
	}
}

// FindID returns the id of the first element whose key matches key, or
// InvalidSetElementID.
func (s *Set[T, K]) FindID(key K) SetElementID {
	if s.elements.Len() == 0 {
		return InvalidSetElementID
	}
	return s.findIDByHash(s.keyFuncs.Hash(key), key)
}

// FindIDByHash is like FindID for callers that have already hashed key.
// hash must equal KeyFuncs().Hash(key).
func (s *Set[T, K]) FindIDByHash(hash uint64, key K) SetElementID {
	if s.elements.Len() == 0 {
		return InvalidSetElementID
	}
	return s.findIDByHash(hash, key)
}

func (s *Set[T, K]) findIDByHash(hash uint64, key K) SetElementID {
	if len(s.buckets) == 0 {
		return InvalidSetElementID
	}
	for id := *s.bucket(hash); id.IsValid(); {
		e := s.element(id)
		if s.keyFuncs.Matches(s.keyFuncs.GetKey(&e.value), key) {
			return id
		}
		id = e.hashNextID
	}
	return InvalidSetElementID
}

// Find returns a pointer to the first element matching key, or nil. The
// pointer is invalidated by the next insert.
func (s *Set[T, K]) Find(key K) *T {
	id := s.FindID(key)
	if !id.IsValid() {
		return nil
	}
	return &s.element(id).value
}

// Contains returns true if an element matching key is present.
func (s *Set[T, K]) Contains(key K) bool {
	return s.FindID(key).IsValid()
}

// IsValidID returns true if id refers to a present element.
func (s *Set[T, K]) IsValidID(id SetElementID) bool {
	return id.IsValid() && s.elements.IsAllocated(id.Index())
}

// Get returns a pointer to the element identified by id. It panics if id
// does not refer to a present element.
func (s *Set[T, K]) Get(id SetElementID) *T {
	return &s.elements.Get(id.Index()).value
}

// Remove removes the element identified by id. It panics if id does not
// refer to a present element.
func (s *Set[T, K]) Remove(id SetElementID) {
	s.elements.checkAllocated(id.Index())
	e := s.element(id)
	if len(s.buckets) > 0 {
		for next := &s.buckets[e.hashIndex]; next.IsValid(); next = &s.element(*next).hashNextID {
			if *next == id {
				*next = e.hashNextID
				break
			}
		}
	}
	s.elements.RemoveAt(id.Index(), 1)
	s.checkInvariants()
}

// RemoveKey removes the elements matching key and returns how many were
// removed: all of them if duplicates are allowed, otherwise at most one.
// Chains are relinked as the walk proceeds; the set is never rehashed.
func (s *Set[T, K]) RemoveKey(key K) int {
	if s.elements.Len() == 0 || len(s.buckets) == 0 {
		return 0
	}
	allowDuplicates := s.keyFuncs.AllowDuplicates()
	removed := 0
	next := s.bucket(s.keyFuncs.Hash(key))
	for next.IsValid() {
		index := next.Index()
		e := s.element(*next)
		if !s.keyFuncs.Matches(s.keyFuncs.GetKey(&e.value), key) {
			next = &e.hashNextID
			continue
		}
		*next = e.hashNextID
		s.elements.RemoveAt(index, 1)
		removed++
		if !allowDuplicates {
			break
		}
	}
	s.checkInvariants()
	return removed
}

// shouldRehash reports whether n elements want a bucket array of a
// different size than the current one.
func (s *Set[T, K]) shouldRehash(n, desired int, allowShrink bool) bool {
	size := len(s.buckets)
	return (n > 0 && (size == 0 || size < desired)) || (size > desired && allowShrink)
}

// ConditionalRehash resizes the bucket array and rehashes if n elements want
// more buckets than there are, or fewer and allowShrink is set. It returns
// true if a rehash happened. Calling it again with the same n does nothing.
func (s *Set[T, K]) ConditionalRehash(n int, allowShrink bool) bool {
	desired := hashBucketCount(n)
	if !s.shouldRehash(n, desired, allowShrink) {
		return false
	}
	s.resize(desired)
	return true
}

// Relax shrinks the bucket array to fit the current element count.
func (s *Set[T, K]) Relax() {
	s.ConditionalRehash(s.elements.Len(), true)
}

// Rehash rebuilds every chain from the live elements. A set that has
// elements but no bucket array gets one sized for its element count.
func (s *Set[T, K]) Rehash() {
	size := len(s.buckets)
	if size == 0 {
		if s.elements.Len() == 0 {
			return
		}
		s.resize(hashBucketCount(s.elements.Len()))
		return
	}
	s.rehash()
}

func (s *Set[T, K]) resize(size int) {
	oldSize := len(s.buckets)
	if size != oldSize {
		s.buckets = make([]SetElementID, size)
	}
	if ce := s.logger.Check(zapcore.DebugLevel, "set resize"); ce != nil {
		ce.Write(zap.Int("len", s.elements.Len()), zap.Int("old-buckets", oldSize), zap.Int("new-buckets", size))
	}
	s.rehash()
}

func (s *Set[T, K]) rehash() {
	size := len(s.buckets)
	if size&(size-1) != 0 {
		panic(fmt.Sprintf("hash size %d is not a power of two", size))
	}
	clear(s.buckets)
	mask := uint64(size - 1)
	s.elements.All(func(index int, e *setElement[T]) bool {
		hash := s.keyFuncs.Hash(s.keyFuncs.GetKey(&e.value))
		e.hashIndex = int(hash & mask)
		e.hashNextID = s.buckets[e.hashIndex]
		s.buckets[e.hashIndex] = SetElementIDFromIndex(index)
		return true
	})
}

// Reserve makes room for n elements without further reallocation of either
// the element storage or the bucket array.
func (s *Set[T, K]) Reserve(n int) {
	if n <= s.elements.Len() {
		return
	}
	s.elements.Reserve(n)
	if desired := hashBucketCount(n); len(s.buckets) < desired {
		s.resize(desired)
	}
}

// Clear removes every element and resizes the storage to hold slack
// elements. All ids are invalidated.
func (s *Set[T, K]) Clear(slack int) {
	desired := hashBucketCount(slack)
	rehash := s.shouldRehash(slack, desired, true)
	if !rehash {
		clear(s.buckets)
	}
	s.elements.Clear(slack)
	if rehash {
		s.resize(desired)
	}
	s.checkInvariants()
}

// Reset removes every element but keeps all storage.
func (s *Set[T, K]) Reset() {
	clear(s.buckets)
	s.elements.Reset()
}

// Shrink releases storage past the highest live element and shrinks the
// bucket array to fit. Ids are preserved.
func (s *Set[T, K]) Shrink() {
	s.elements.Shrink()
	s.Relax()
}

// Compact moves elements to fill every hole in the storage, invalidating the
// ids of the moved elements.
func (s *Set[T, K]) Compact() {
	if s.elements.Compact() {
		s.buckets = nil
		s.ConditionalRehash(s.elements.Len(), false)
	}
}

// CompactStable is like Compact but preserves the iteration order.
func (s *Set[T, K]) CompactStable() {
	if s.elements.CompactStable() {
		s.buckets = nil
		s.ConditionalRehash(s.elements.Len(), false)
	}
}

// Sort orders the elements by cmp, so that iteration visits them in sorted
// order. All ids are invalidated.
func (s *Set[T, K]) Sort(cmp func(a, b T) int) {
	s.elements.Sort(func(x, y setElement[T]) int { return cmp(x.value, y.value) })
	s.Rehash()
}

// StableSort is like Sort but keeps equal elements in their prior order.
func (s *Set[T, K]) StableSort(cmp func(a, b T) int) {
	s.elements.StableSort(func(x, y setElement[T]) int { return cmp(x.value, y.value) })
	s.Rehash()
}

// All calls yield sequentially for each element, in sparse array index
// order. If yield returns false, iteration stops. The set must not be
// mutated during iteration; use Iter to remove while iterating.
func (s *Set[T, K]) All(yield func(id SetElementID, v *T) bool) {
	s.elements.All(func(index int, e *setElement[T]) bool {
		return yield(SetElementIDFromIndex(index), &e.value)
	})
}

// Values returns a copy of the elements in iteration order.
func (s *Set[T, K]) Values() []T {
	values := make([]T, 0, s.Len())
	s.All(func(_ SetElementID, v *T) bool {
		values = append(values, *v)
		return true
	})
	return values
}

// Clone returns a copy of s in which every element has the same id.
func (s *Set[T, K]) Clone() *Set[T, K] {
	c := &Set[T, K]{
		keyFuncs: s.keyFuncs,
		elements: *s.elements.Clone(),
		logger:   s.logger,
	}
	if s.buckets != nil {
		c.buckets = append([]SetElementID(nil), s.buckets...)
	}
	return c
}

// newLike returns an empty set with the same capability and options as s.
func (s *Set[T, K]) newLike() *Set[T, K] {
	r := &Set[T, K]{}
	r.init(s.keyFuncs, s.config())
	return r
}

// Intersect returns a new set of the elements of s whose keys are also in
// other.
func (s *Set[T, K]) Intersect(other *Set[T, K]) *Set[T, K] {
	result := s.newLike()
	result.Reserve(min(s.Len(), other.Len()))
	s.All(func(_ SetElementID, v *T) bool {
		if other.Contains(s.keyFuncs.GetKey(v)) {
			result.Add(*v)
		}
		return true
	})
	return result
}

// Union returns a new set holding the elements of both s and other. When
// duplicates are disallowed, elements of other replace matching elements of
// s.
func (s *Set[T, K]) Union(other *Set[T, K]) *Set[T, K] {
	result := s.newLike()
	result.Reserve(s.Len() + other.Len())
	for _, src := range []*Set[T, K]{s, other} {
		src.All(func(_ SetElementID, v *T) bool {
			result.Add(*v)
			return true
		})
	}
	return result
}

// Difference returns a new set of the elements of s whose keys are not in
// other.
func (s *Set[T, K]) Difference(other *Set[T, K]) *Set[T, K] {
	result := s.newLike()
	result.Reserve(s.Len())
	s.All(func(_ SetElementID, v *T) bool {
		if !other.Contains(s.keyFuncs.GetKey(v)) {
			result.Add(*v)
		}
		return true
	})
	return result
}

// Includes returns true if every key of other is present in s.
func (s *Set[T, K]) Includes(other *Set[T, K]) bool {
	// A multiset other may repeat a key s holds once.
	if !s.keyFuncs.AllowDuplicates() && other.Len() > s.Len() {
		return false
	}
	included := true
	other.All(func(_ SetElementID, v *T) bool {
		included = s.Contains(other.keyFuncs.GetKey(v))
		return included
	})
	return included
}

// SetIterator walks the elements of a Set in index order. RemoveCurrent is
// the only mutation permitted while iterating.
type SetIterator[T any, K any] struct {
	s  *Set[T, K]
	it SparseArrayIterator[setElement[T]]
}

// Iter returns an iterator positioned before the first element.
func (s *Set[T, K]) Iter() *SetIterator[T, K] {
	return &SetIterator[T, K]{s: s, it: SparseArrayIterator[setElement[T]]{a: &s.elements, index: noIndex}}
}

// Next advances to the next element, returning false when there are no
// more.
func (it *SetIterator[T, K]) Next() bool {
	return it.it.Next()
}

// ID returns the id of the current element.
func (it *SetIterator[T, K]) ID() SetElementID {
	return SetElementIDFromIndex(it.it.Index())
}

// Value returns a pointer to the current element.
func (it *SetIterator[T, K]) Value() *T {
	return &it.it.Value().value
}

// RemoveCurrent removes the current element from the set.
func (it *SetIterator[T, K]) RemoveCurrent() {
	it.s.Remove(it.ID())
}

// SetKeyIterator walks the elements of a Set matching one key, in chain
// order (most recently added first). RemoveCurrent is the only mutation
// permitted while iterating.
type SetKeyIterator[T any, K any] struct {
	s       *Set[T, K]
	key     K
	hash    uint64
	current SetElementID
	next    SetElementID
	started bool
}

// KeyIter returns an iterator over the elements matching key.
func (s *Set[T, K]) KeyIter(key K) *SetKeyIterator[T, K] {
	return &SetKeyIterator[T, K]{s: s, key: key, hash: s.keyFuncs.Hash(key)}
}

// Next advances to the next matching element.
func (it *SetKeyIterator[T, K]) Next() bool {
	s := it.s
	id := it.next
	if !it.started {
		it.started = true
		id = InvalidSetElementID
		if len(s.buckets) > 0 && s.elements.Len() > 0 {
			id = *s.bucket(it.hash)
		}
	}
	for id.IsValid() {
		e := s.element(id)
		if s.keyFuncs.Matches(s.keyFuncs.GetKey(&e.value), it.key) {
			it.current = id
			// Remember the successor now so RemoveCurrent cannot lose it.
			it.next = e.hashNextID
			return true
		}
		id = e.hashNextID
	}
	it.current, it.next = InvalidSetElementID, InvalidSetElementID
	return false
}

// ID returns the id of the current element.
func (it *SetKeyIterator[T, K]) ID() SetElementID {
	return it.current
}

// Value returns a pointer to the current element.
func (it *SetKeyIterator[T, K]) Value() *T {
	return it.s.Get(it.current)
}

// RemoveCurrent removes the current element from the set.
func (it *SetKeyIterator[T, K]) RemoveCurrent() {
	it.s.Remove(it.current)
}

func (s *Set[T, K]) checkInvariants() {
	if invariants {
		s.assertInvariants()
	}
}

// assertInvariants panics unless every live element is reachable from
// exactly the bucket its hash selects, and nothing else is.
func (s *Set[T, K]) assertInvariants() {
	s.elements.assertInvariants()
	size := len(s.buckets)
	if size&(size-1) != 0 {
		panic(fmt.Sprintf("invariant failed: hash size %d is not a power of two", size))
	}
	if size == 0 {
		if s.elements.Len() > 0 {
			panic(fmt.Sprintf("invariant failed: %d elements but no buckets\n%s", s.elements.Len(), s.debugString()))
		}
		return
	}
	mask := uint64(size - 1)
	seen := 0
	for b := range s.buckets {
		for id := s.buckets[b]; id.IsValid(); id = s.element(id).hashNextID {
			if !s.elements.IsAllocated(id.Index()) {
				panic(fmt.Sprintf("invariant failed: bucket %d links free id %s\n%s", b, id, s.debugString()))
			}
			e := s.element(id)
			if e.hashIndex != b {
				panic(fmt.Sprintf("invariant failed: id %s in bucket %d records bucket %d\n%s", id, b, e.hashIndex, s.debugString()))
			}
			if h := s.keyFuncs.Hash(s.keyFuncs.GetKey(&e.value)); int(h&mask) != b {
				panic(fmt.Sprintf("invariant failed: id %s hashes to bucket %d, found in %d\n%s", id, h&mask, b, s.debugString()))
			}
			seen++
			if seen > s.elements.Len() {
				panic(fmt.Sprintf("invariant failed: chains hold more than %d elements\n%s", s.elements.Len(), s.debugString()))
			}
		}
	}
	if seen != s.elements.Len() {
		panic(fmt.Sprintf("invariant failed: found %d linked elements, but len is %d\n%s", seen, s.elements.Len(), s.debugString()))
	}
}

func (s *Set[T, K]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "len=%d  buckets=%d\n", s.elements.Len(), len(s.buckets))
	for b, head := range s.buckets {
		fmt.Fprintf(&buf, "  bucket %4d:", b)
		for id, n := head, 0; id.IsValid() && n <= s.elements.MaxIndex(); id, n = s.element(id).hashNextID, n+1 {
			fmt.Fprintf(&buf, " %s", id)
		}
		buf.WriteString("\n")
	}
	buf.WriteString(s.elements.debugString())
	return buf.String()
}
