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

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const noIndex = -1

// sparseSlot is either a live element or a link in the free list. Which one
// is recorded in SparseArray.allocated. A free slot has a zero value so that
// nothing it used to reference is kept alive.
type sparseSlot[T any] struct {
	value    T
	prevFree int
	nextFree int
}

// SparseArray is a slot allocator with stable indices. Adding an element
// reuses the most recently freed slot (LIFO) or appends a new one; removing
// an element pushes its slot onto the free list without moving anything
// else. An index returned by Add stays valid until the element is removed,
// or the array is cleared, compacted or sorted.
//
//	 storage:  [ A | free | C | free | E ]
//	 flags:       1    0     1    0    1
//	 free list: firstFree=3 -> 1 -> none
//
// The zero value is an empty array ready to use. A SparseArray is NOT
// goroutine-safe.
type SparseArray[T any] struct {
	storage indexedStorage[sparseSlot[T]]
	// allocated has bit i set iff slot i holds a live element.
	allocated bitset.BitSet
	// firstFree is the head of the free list, or noIndex.
	firstFree int
	// numFree is the length of the free list.
	numFree int
	logger  *zap.Logger
	// initialized distinguishes a zero value array (firstFree == 0 but no
	// free list) from a configured one.
	initialized bool
}

// NewSparseArray constructs an empty SparseArray.
func NewSparseArray[T any](options ...Option) *SparseArray[T] {
	a := &SparseArray[T]{}
	a.init(makeConfig(options))
	return a
}

func (a *SparseArray[T]) init(c config) {
	c.resolve()
	*a = SparseArray[T]{
		storage:     indexedStorage[sparseSlot[T]]{policy: c.policy},
		firstFree:   noIndex,
		logger:      c.logger,
		initialized: true,
	}
	if c.initialCapacity > 0 {
		a.Reserve(c.initialCapacity)
	}
}

func (a *SparseArray[T]) lazyInit() {
	if !a.initialized {
		a.init(config{})
	}
}

// Len returns the number of live elements.
func (a *SparseArray[T]) Len() int {
	return a.storage.len() - a.numFree
}

// MaxIndex returns one past the highest index that has storage. Every index
// in [0,MaxIndex) is either allocated or free.
func (a *SparseArray[T]) MaxIndex() int {
	return a.storage.len()
}

// Cap returns the number of slots the backing storage can hold without
// reallocating.
func (a *SparseArray[T]) Cap() int {
	return a.storage.cap()
}

// Empty returns true if the array holds no live elements.
func (a *SparseArray[T]) Empty() bool {
	return a.Len() == 0
}

// IsValidIndex returns true if index has storage, regardless of whether it
// is allocated.
func (a *SparseArray[T]) IsValidIndex(index int) bool {
	return index >= 0 && index < a.storage.len()
}

// IsAllocated returns true if index holds a live element.
func (a *SparseArray[T]) IsAllocated(index int) bool {
	return a.IsValidIndex(index) && a.allocated.Test(uint(index))
}

// Get returns a pointer to the element at index. It panics if index is not
// allocated. The pointer is invalidated by any operation that grows or
// compacts the array.
func (a *SparseArray[T]) Get(index int) *T {
	a.checkAllocated(index)
	return &a.storage.at(index).value
}

func (a *SparseArray[T]) checkAllocated(index int) {
	if !a.IsValidIndex(index) {
		panic(fmt.Sprintf("sparse array index %d out of bounds [0,%d)", index, a.storage.len()))
	}
	if !a.allocated.Test(uint(index)) {
		panic(fmt.Sprintf("sparse array index %d is not allocated", index))
	}
}

// AddUninitialized allocates a slot and returns its index along with a
// pointer to its zeroed value. The most recently freed slot is reused if
// there is one.
func (a *SparseArray[T]) AddUninitialized() (int, *T) {
	a.lazyInit()
	var index int
	if a.numFree > 0 {
		index = a.firstFree
		a.firstFree = a.storage.at(index).nextFree
		a.numFree--
		if a.numFree > 0 {
			a.storage.at(a.firstFree).prevFree = noIndex
		}
	} else {
		index = a.storage.addZeroed(1)
	}
	slot := a.storage.at(index)
	*slot = sparseSlot[T]{}
	a.allocated.Set(uint(index))
	return index, &slot.value
}

// Add allocates a slot holding v and returns its index.
func (a *SparseArray[T]) Add(v T) int {
	index, p := a.AddUninitialized()
	*p = v
	a.checkInvariants()
	return index
}

// EmplaceFunc allocates a slot and lets init construct the element in place.
func (a *SparseArray[T]) EmplaceFunc(init func(v *T)) int {
	index, p := a.AddUninitialized()
	init(p)
	a.checkInvariants()
	return index
}

// InsertUninitialized allocates the specific slot index, growing the array
// with free slots if index is beyond the end. It panics if index is already
// allocated.
func (a *SparseArray[T]) InsertUninitialized(index int) *T {
	a.lazyInit()
	if index < 0 {
		panic(fmt.Sprintf("sparse array index %d is negative", index))
	}
	if n := a.storage.len(); index >= n {
		// Every new slot, including index itself, goes onto the free list
		// first so that the unlink below is the only allocation path. They
		// are pushed in descending order so later adds fill them ascending.
		a.storage.addZeroed(index + 1 - n)
		for i := index; i >= n; i-- {
			a.pushFree(i)
		}
	}
	if a.allocated.Test(uint(index)) {
		panic(fmt.Sprintf("sparse array index %d is already allocated", index))
	}
	a.unlinkFree(index)
	slot := a.storage.at(index)
	*slot = sparseSlot[T]{}
	a.allocated.Set(uint(index))
	return &slot.value
}

// Insert stores v at index, which must not be allocated.
func (a *SparseArray[T]) Insert(index int, v T) {
	*a.InsertUninitialized(index) = v
	a.checkInvariants()
}

// RemoveAt frees count slots starting at index, zeroing their values. Each
// slot must be allocated.
func (a *SparseArray[T]) RemoveAt(index, count int) {
	for i := index; i < index+count; i++ {
		a.checkAllocated(i)
		a.storage.at(i).value = *new(T)
	}
	a.RemoveAtUninitialized(index, count)
}

// RemoveAtUninitialized frees count slots starting at index without touching
// their values. It is meant for callers that have already moved the values
// out; a value left behind stays reachable until the slot is reused.
func (a *SparseArray[T]) RemoveAtUninitialized(index, count int) {
	for ; count > 0; count-- {
		a.checkAllocated(index)
		a.pushFree(index)
		a.allocated.Clear(uint(index))
		index++
	}
	a.checkInvariants()
}

// pushFree puts index at the head of the free list.
func (a *SparseArray[T]) pushFree(index int) {
	slot := a.storage.at(index)
	if a.numFree > 0 {
		a.storage.at(a.firstFree).prevFree = index
		slot.nextFree = a.firstFree
	} else {
		slot.nextFree = noIndex
	}
	slot.prevFree = noIndex
	a.firstFree = index
	a.numFree++
}

// unlinkFree removes index from anywhere in the free list.
func (a *SparseArray[T]) unlinkFree(index int) {
	slot := a.storage.at(index)
	if slot.prevFree != noIndex {
		a.storage.at(slot.prevFree).nextFree = slot.nextFree
	} else {
		a.firstFree = slot.nextFree
	}
	if slot.nextFree != noIndex {
		a.storage.at(slot.nextFree).prevFree = slot.prevFree
	}
	a.numFree--
	if a.numFree == 0 {
		a.firstFree = noIndex
	}
}

// Clear removes every element and resizes the backing storage to hold
// exactly slack slots.
func (a *SparseArray[T]) Clear(slack int) {
	a.lazyInit()
	a.storage.reset(slack)
	a.allocated.ClearAll()
	a.firstFree = noIndex
	a.numFree = 0
	a.checkInvariants()
}

// Reset removes every element but keeps the backing storage.
func (a *SparseArray[T]) Reset() {
	a.lazyInit()
	a.storage.truncate(0)
	a.allocated.ClearAll()
	a.firstFree = noIndex
	a.numFree = 0
}

// Reserve ensures the array has storage for n slots. New slots are added to
// the free list so that subsequent adds fill them in ascending order.
func (a *SparseArray[T]) Reserve(n int) {
	a.lazyInit()
	old := a.storage.len()
	if n <= old {
		return
	}
	a.storage.reserve(n)
	a.storage.addZeroed(n - old)
	for i := n - 1; i >= old; i-- {
		a.pushFree(i)
	}
	a.checkInvariants()
}

// Shrink releases the storage past the highest allocated index and lets the
// capacity policy trim the remaining slack. Indices are preserved.
func (a *SparseArray[T]) Shrink() {
	a.lazyInit()
	maxAllocated := noIndex
	for i := a.storage.len() - 1; i >= 0; i-- {
		if a.allocated.Test(uint(i)) {
			maxAllocated = i
			break
		}
	}
	cut := maxAllocated + 1
	if cut < a.storage.len() {
		// The free list threads through the slots being dropped; unlink
		// them before the storage they live in goes away.
		for i := a.firstFree; i != noIndex; {
			next := a.storage.at(i).nextFree
			if i >= cut {
				a.unlinkFree(i)
			}
			i = next
		}
		a.truncate(cut)
	}
	oldCap := a.storage.cap()
	a.storage.shrink()
	if ce := a.logger.Check(zapcore.DebugLevel, "sparse array shrink"); ce != nil {
		ce.Write(zap.Int("len", a.Len()), zap.Int("max-index", a.storage.len()),
			zap.Int("old-cap", oldCap), zap.Int("new-cap", a.storage.cap()))
	}
	a.checkInvariants()
}

// truncate drops storage and allocation flags at [n,MaxIndex). The caller is
// responsible for the free list.
func (a *SparseArray[T]) truncate(n int) {
	for i := n; i < a.storage.len(); i++ {
		a.allocated.Clear(uint(i))
	}
	a.storage.truncate(n)
}

// Compact moves the elements at the highest indices into the lowest holes
// until the array is dense. It returns true if any element moved, in which
// case the indices of the moved elements have changed.
func (a *SparseArray[T]) Compact() bool {
	a.lazyInit()
	if a.numFree == 0 {
		return false
	}
	moved := 0
	end := a.storage.len()
	target := end - a.numFree
	for free := a.firstFree; free != noIndex; {
		next := a.storage.at(free).nextFree
		if free < target {
			// Every hole below target is matched by a live element at or
			// above it.
			end--
			for !a.allocated.Test(uint(end)) {
				end--
			}
			dst, src := a.storage.at(free), a.storage.at(end)
			dst.value = src.value
			dst.prevFree, dst.nextFree = 0, 0
			a.allocated.Set(uint(free))
			moved++
		}
		free = next
	}
	a.truncate(target)
	a.firstFree = noIndex
	a.numFree = 0
	if ce := a.logger.Check(zapcore.DebugLevel, "sparse array compact"); ce != nil {
		ce.Write(zap.Int("len", a.Len()), zap.Int("moved", moved))
	}
	a.checkInvariants()
	return moved > 0
}

// CompactStable is like Compact but preserves the relative order of the
// elements, at the cost of copying all of them. It returns true if any
// element moved.
func (a *SparseArray[T]) CompactStable() bool {
	a.lazyInit()
	if a.numFree == 0 {
		return false
	}
	n := a.Len()
	compacted := indexedStorage[sparseSlot[T]]{policy: a.storage.policy}
	compacted.reserve(n)
	a.All(func(_ int, v *T) bool {
		i := compacted.addZeroed(1)
		compacted.at(i).value = *v
		return true
	})
	a.storage = compacted
	a.allocated.ClearAll()
	for i := 0; i < n; i++ {
		a.allocated.Set(uint(i))
	}
	a.firstFree = noIndex
	a.numFree = 0
	if ce := a.logger.Check(zapcore.DebugLevel, "sparse array compact stable"); ce != nil {
		ce.Write(zap.Int("len", n))
	}
	a.checkInvariants()
	return true
}

// Sort compacts the array and sorts the elements by cmp. Indices are
// reassigned 0..Len()-1 in sorted order.
func (a *SparseArray[T]) Sort(cmp func(x, y T) int) {
	if a.Len() == 0 {
		return
	}
	a.Compact()
	slices.SortFunc(a.storage.data, func(x, y sparseSlot[T]) int {
		return cmp(x.value, y.value)
	})
}

// StableSort is like Sort but keeps equal elements in their relative order.
func (a *SparseArray[T]) StableSort(cmp func(x, y T) int) {
	if a.Len() == 0 {
		return
	}
	a.CompactStable()
	slices.SortStableFunc(a.storage.data, func(x, y sparseSlot[T]) int {
		return cmp(x.value, y.value)
	})
}

// All calls yield sequentially for each live element in index order. If
// yield returns false, iteration stops. The array must not be mutated during
// iteration; use Iter for removal while iterating.
func (a *SparseArray[T]) All(yield func(index int, v *T) bool) {
	n := uint(a.storage.len())
	for i, ok := a.allocated.NextSet(0); ok && i < n; i, ok = a.allocated.NextSet(i + 1) {
		if !yield(int(i), &a.storage.at(int(i)).value) {
			return
		}
	}
}

// Values returns a copy of the live elements in index order.
func (a *SparseArray[T]) Values() []T {
	values := make([]T, 0, a.Len())
	a.All(func(_ int, v *T) bool {
		values = append(values, *v)
		return true
	})
	return values
}

// Clone returns a copy of the array with the same indices and free list.
// Elements are copied by assignment.
func (a *SparseArray[T]) Clone() *SparseArray[T] {
	a.lazyInit()
	c := &SparseArray[T]{
		storage:     indexedStorage[sparseSlot[T]]{policy: a.storage.policy},
		allocated:   *a.allocated.Clone(),
		firstFree:   a.firstFree,
		numFree:     a.numFree,
		logger:      a.logger,
		initialized: true,
	}
	c.storage.reserve(a.storage.len())
	c.storage.addZeroed(a.storage.len())
	copy(c.storage.data, a.storage.data)
	return c
}

// AllocatedSize returns the number of bytes held by the backing storage and
// the allocation flags.
func (a *SparseArray[T]) AllocatedSize() uintptr {
	return a.storage.allocatedSize() + uintptr(a.allocated.BinaryStorageSize())
}

// SparseArrayIterator walks the live elements of a SparseArray in index
// order. RemoveCurrent is the only mutation permitted while iterating.
type SparseArrayIterator[T any] struct {
	a       *SparseArray[T]
	index   int
	started bool
}

// Iter returns an iterator positioned before the first element.
func (a *SparseArray[T]) Iter() *SparseArrayIterator[T] {
	return &SparseArrayIterator[T]{a: a, index: noIndex}
}

// Next advances to the next live element, returning false when there are no
// more.
func (it *SparseArrayIterator[T]) Next() bool {
	start := uint(0)
	if it.started {
		start = uint(it.index + 1)
	}
	it.started = true
	i, ok := it.a.allocated.NextSet(start)
	if !ok || int(i) >= it.a.storage.len() {
		it.index = it.a.storage.len()
		return false
	}
	it.index = int(i)
	return true
}

// Index returns the index of the current element.
func (it *SparseArrayIterator[T]) Index() int {
	return it.index
}

// Value returns a pointer to the current element.
func (it *SparseArrayIterator[T]) Value() *T {
	return it.a.Get(it.index)
}

// RemoveCurrent frees the current element. Iteration continues with the next
// higher index.
func (it *SparseArrayIterator[T]) RemoveCurrent() {
	it.a.RemoveAt(it.index, 1)
}

func (a *SparseArray[T]) checkInvariants() {
	if invariants {
		a.assertInvariants()
	}
}

// assertInvariants panics if the free list and the allocation flags disagree.
func (a *SparseArray[T]) assertInvariants() {
	a.lazyInit()
	n := a.storage.len()
	onFreeList := make([]bool, n)
	count := 0
	prev := noIndex
	for i := a.firstFree; i != noIndex; i = a.storage.at(i).nextFree {
		if i < 0 || i >= n {
			panic(fmt.Sprintf("invariant failed: free index %d out of bounds [0,%d)\n%s", i, n, a.debugString()))
		}
		if onFreeList[i] {
			panic(fmt.Sprintf("invariant failed: free list cycles at %d\n%s", i, a.debugString()))
		}
		if a.allocated.Test(uint(i)) {
			panic(fmt.Sprintf("invariant failed: index %d is allocated and free\n%s", i, a.debugString()))
		}
		if p := a.storage.at(i).prevFree; p != prev {
			panic(fmt.Sprintf("invariant failed: free index %d has prev %d, expected %d\n%s", i, p, prev, a.debugString()))
		}
		onFreeList[i] = true
		prev = i
		count++
	}
	if count != a.numFree {
		panic(fmt.Sprintf("invariant failed: found %d free slots, but free count is %d\n%s", count, a.numFree, a.debugString()))
	}
	for i := 0; i < n; i++ {
		if !onFreeList[i] && !a.allocated.Test(uint(i)) {
			panic(fmt.Sprintf("invariant failed: index %d is neither allocated nor free\n%s", i, a.debugString()))
		}
	}
	if c := int(a.allocated.Count()); c != a.Len() {
		panic(fmt.Sprintf("invariant failed: %d allocation flags set, but len is %d\n%s", c, a.Len(), a.debugString()))
	}
}

func (a *SparseArray[T]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "len=%d  max-index=%d  first-free=%d  num-free=%d\n",
		a.Len(), a.storage.len(), a.firstFree, a.numFree)
	for i := 0; i < a.storage.len(); i++ {
		s := a.storage.at(i)
		if a.allocated.Test(uint(i)) {
			fmt.Fprintf(&buf, "  %4d: %v\n", i, s.value)
		} else {
			fmt.Fprintf(&buf, "  %4d: free [prev=%d next=%d]\n", i, s.prevFree, s.nextFree)
		}
	}
	return buf.String()
}
