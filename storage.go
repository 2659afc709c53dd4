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
	"unsafe"
)

// indexedStorage is a contiguous growable buffer whose capacity is decided
// by a CapacityPolicy rather than by append's builtin growth. len(data) is
// the number of elements and cap(data) the capacity.
type indexedStorage[T any] struct {
	data   []T
	policy CapacityPolicy
}

func (s *indexedStorage[T]) elemSize() uintptr {
	var t T
	return unsafe.Sizeof(t)
}

func (s *indexedStorage[T]) len() int {
	return len(s.data)
}

func (s *indexedStorage[T]) cap() int {
	return cap(s.data)
}

// at returns a pointer to the element at index i. The pointer is invalidated
// by the next reallocation.
func (s *indexedStorage[T]) at(i int) *T {
	if uint(i) >= uint(len(s.data)) {
		panic(fmt.Sprintf("index %d out of bounds [0,%d)", i, len(s.data)))
	}
	return &s.data[i]
}

// realloc moves the elements into a buffer with exactly newCap capacity.
func (s *indexedStorage[T]) realloc(newCap int) {
	if newCap == cap(s.data) {
		return
	}
	if newCap < len(s.data) {
		panic(fmt.Sprintf("realloc to %d would drop %d elements", newCap, len(s.data)-newCap))
	}
	if newCap == 0 {
		s.data = nil
		return
	}
	data := make([]T, len(s.data), newCap)
	copy(data, s.data)
	s.data = data
}

// addZeroed appends n zeroed elements and returns the index of the first.
func (s *indexedStorage[T]) addZeroed(n int) int {
	index := len(s.data)
	if required := index + n; required > cap(s.data) {
		s.realloc(s.policy.Grow(required, cap(s.data), s.elemSize()))
	}
	s.data = s.data[:index+n]
	return index
}

// truncate drops the elements at [n,len), zeroing them so the GC does not
// retain anything they referenced. Capacity is unchanged.
func (s *indexedStorage[T]) truncate(n int) {
	clear(s.data[n:])
	s.data = s.data[:n]
}

func (s *indexedStorage[T]) reserve(n int) {
	if n > cap(s.data) {
		s.realloc(s.policy.Reserve(n, cap(s.data), s.elemSize()))
	}
}

// reset removes all elements and resizes the buffer to exactly slack
// capacity.
func (s *indexedStorage[T]) reset(slack int) {
	s.truncate(0)
	if slack != cap(s.data) {
		s.data = nil
		if slack > 0 {
			s.data = make([]T, 0, slack)
		}
	}
}

func (s *indexedStorage[T]) shrink() {
	s.realloc(s.policy.Shrink(len(s.data), cap(s.data), s.elemSize()))
}

func (s *indexedStorage[T]) allocatedSize() uintptr {
	return uintptr(cap(s.data)) * s.elemSize()
}
