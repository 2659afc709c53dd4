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

// CapacityPolicy decides how much backing storage a container allocates. All
// methods take the current capacity and return the capacity to switch to.
// Returning capacity unchanged means "do not reallocate".
//
// Implementations must return a value >= requested from Reserve and Grow, and
// must be non-decreasing across sequences of pure growth so that n inserts
// cause O(log n) reallocations.
type CapacityPolicy interface {
	// Reserve is called when the caller has announced it needs room for at
	// least requested elements.
	Reserve(requested, capacity int, elemSize uintptr) int
	// Grow is called when a single insert needs requested > capacity.
	Grow(requested, capacity int, elemSize uintptr) int
	// Shrink is called when the container holds count elements and would
	// like to release slack.
	Shrink(count, capacity int, elemSize uintptr) int
}

const (
	minGrowCapacity   = 4
	shrinkSlackBytes  = 16 << 10
	shrinkSlackLength = 64
)

// DefaultCapacityPolicy grows geometrically (by roughly 3/8 plus a constant)
// and only shrinks once the slack is large enough that alternating
// inserts and removes near the boundary do not thrash.
type DefaultCapacityPolicy struct{}

var _ CapacityPolicy = DefaultCapacityPolicy{}

// Reserve implements CapacityPolicy.
func (DefaultCapacityPolicy) Reserve(requested, capacity int, elemSize uintptr) int {
	if requested <= capacity {
		return capacity
	}
	return requested
}

// Grow implements CapacityPolicy.
func (DefaultCapacityPolicy) Grow(requested, capacity int, elemSize uintptr) int {
	if requested <= capacity {
		return capacity
	}
	if capacity == 0 && requested <= minGrowCapacity {
		return minGrowCapacity
	}
	n := requested + 3*requested/8 + 16
	if n < requested {
		// Overflow.
		return requested
	}
	return n
}

// Shrink implements CapacityPolicy.
func (DefaultCapacityPolicy) Shrink(count, capacity int, elemSize uintptr) int {
	if count >= capacity {
		return capacity
	}
	slack := capacity - count
	if (count < capacity/3 || uintptr(slack)*elemSize >= shrinkSlackBytes) &&
		(slack > shrinkSlackLength || count == 0) {
		return count
	}
	return capacity
}
