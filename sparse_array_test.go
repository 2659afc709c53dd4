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
	"cmp"
	"math/rand"
	"os"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"
)

// toBuiltinMap returns the live elements keyed by index. Useful for testing.
func (a *SparseArray[T]) toBuiltinMap() map[int]T {
	r := make(map[int]T)
	a.All(func(i int, v *T) bool {
		r[i] = *v
		return true
	})
	return r
}

func TestSparseArrayBasic(t *testing.T) {
	a := NewSparseArray[int]()
	require.True(t, a.Empty())
	require.EqualValues(t, 0, a.MaxIndex())

	for i := 0; i < 4; i++ {
		require.EqualValues(t, i, a.Add(i*10))
	}
	require.EqualValues(t, 4, a.Len())
	require.EqualValues(t, 20, *a.Get(2))

	a.RemoveAt(1, 1)
	require.EqualValues(t, 3, a.Len())
	require.EqualValues(t, 4, a.MaxIndex())
	require.False(t, a.IsAllocated(1))
	require.True(t, a.IsValidIndex(1))
	require.Panics(t, func() { a.Get(1) })
	require.Panics(t, func() { a.RemoveAt(1, 1) })
	require.Panics(t, func() { a.Get(4) })

	// The slot just freed is reused first.
	index, p := a.AddUninitialized()
	require.EqualValues(t, 1, index)
	require.EqualValues(t, 0, *p)
	*p = 99
	require.Equal(t, map[int]int{0: 0, 1: 99, 2: 20, 3: 30}, a.toBuiltinMap())
	a.assertInvariants()
}

func TestSparseArrayZeroValue(t *testing.T) {
	var a SparseArray[string]
	require.EqualValues(t, 0, a.Len())
	a.assertInvariants()
	require.EqualValues(t, 0, a.Add("a"))
	require.EqualValues(t, 1, a.Add("b"))
	a.RemoveAt(0, 1)
	require.EqualValues(t, 0, a.Add("c"))
	require.Equal(t, []string{"c", "b"}, a.Values())
	a.assertInvariants()
}

func TestSparseArrayEmplace(t *testing.T) {
	type point struct{ x, y int }
	a := NewSparseArray[point]()
	index := a.EmplaceFunc(func(p *point) {
		require.Equal(t, point{}, *p)
		p.x, p.y = 1, 2
	})
	require.Equal(t, point{1, 2}, *a.Get(index))
}

func TestSparseArrayRemoveClearsValue(t *testing.T) {
	a := NewSparseArray[*int]()
	v := new(int)
	index := a.Add(v)
	a.Add(new(int))
	a.RemoveAt(index, 1)
	// Nothing the freed slot held is reachable any more.
	require.Nil(t, a.storage.at(index).value)

	// A slot freed without clearing is still handed out zeroed.
	a.Insert(index, v)
	a.RemoveAtUninitialized(index, 1)
	_, p := a.AddUninitialized()
	require.Nil(t, *p)
}

func TestSparseArrayInsert(t *testing.T) {
	a := NewSparseArray[int]()
	a.Insert(5, 50)
	require.EqualValues(t, 1, a.Len())
	require.EqualValues(t, 6, a.MaxIndex())
	require.Panics(t, func() { a.Insert(5, 51) })
	require.Panics(t, func() { a.Insert(-1, 0) })
	a.Insert(2, 20)
	require.Equal(t, map[int]int{2: 20, 5: 50}, a.toBuiltinMap())
	a.assertInvariants()

	// The remaining padding is allocated in ascending order.
	var got []int
	for i := 0; i < 4; i++ {
		got = append(got, a.Add(0))
	}
	require.Equal(t, []int{0, 1, 3, 4}, got)
	a.assertInvariants()
}

func TestSparseArrayReserve(t *testing.T) {
	a := NewSparseArray[int](WithInitialCapacity(8))
	require.EqualValues(t, 8, a.Cap())
	require.EqualValues(t, 8, a.MaxIndex())
	require.EqualValues(t, 0, a.Len())
	for i := 0; i < 8; i++ {
		require.EqualValues(t, i, a.Add(i))
	}
	require.EqualValues(t, 8, a.Cap())
	a.Reserve(4)
	require.EqualValues(t, 8, a.Cap())
	a.assertInvariants()
}

func TestSparseArrayClear(t *testing.T) {
	a := NewSparseArray[int]()
	for i := 0; i < 100; i++ {
		a.Add(i)
	}
	a.RemoveAt(10, 5)

	capacity := a.Cap()
	a.Reset()
	require.EqualValues(t, 0, a.Len())
	require.EqualValues(t, 0, a.MaxIndex())
	require.EqualValues(t, capacity, a.Cap())
	a.assertInvariants()

	for i := 0; i < 10; i++ {
		a.Add(i)
	}
	a.Clear(16)
	require.EqualValues(t, 0, a.Len())
	require.EqualValues(t, 16, a.Cap())
	a.All(func(int, *int) bool {
		require.Fail(t, "should not iterate")
		return true
	})
	require.EqualValues(t, 0, a.Add(1))
	a.assertInvariants()

	a.Clear(0)
	require.EqualValues(t, 0, a.Cap())
}

func TestSparseArrayCompact(t *testing.T) {
	testCases := []struct {
		n      int
		remove []int
	}{
		{10, nil},
		{10, []int{0}},
		{10, []int{9}},
		{10, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{10, []int{1, 3, 5, 7}},
		{100, []int{99, 0, 50, 49, 51, 2}},
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			a := NewSparseArray[int]()
			b := NewSparseArray[int]()
			for i := 0; i < c.n; i++ {
				a.Add(i)
				b.Add(i)
			}
			for _, i := range c.remove {
				a.RemoveAt(i, 1)
				b.RemoveAt(i, 1)
			}
			before := a.Values()

			// Only holes below the final length are filled by moves.
			wantMoved := false
			for _, i := range c.remove {
				if i < c.n-len(c.remove) {
					wantMoved = true
				}
			}
			require.Equal(t, wantMoved, a.Compact())
			require.EqualValues(t, c.n-len(c.remove), a.Len())
			require.EqualValues(t, a.Len(), a.MaxIndex())
			require.ElementsMatch(t, before, a.Values())
			a.assertInvariants()

			require.Equal(t, len(c.remove) > 0, b.CompactStable())
			require.EqualValues(t, b.Len(), b.MaxIndex())
			require.Equal(t, before, b.Values())
			b.assertInvariants()
		})
	}
}

func TestSparseArraySort(t *testing.T) {
	a := NewSparseArray[int]()
	for _, v := range []int{5, 3, 9, 1, 7, 3} {
		a.Add(v)
	}
	a.RemoveAt(2, 1)
	a.Sort(cmp.Compare[int])
	require.Equal(t, []int{1, 3, 3, 5, 7}, a.Values())
	require.EqualValues(t, 5, a.MaxIndex())
	a.assertInvariants()

	type kv struct{ k, v int }
	b := NewSparseArray[kv]()
	for i, k := range []int{2, 1, 2, 1, 2} {
		b.Add(kv{k, i})
	}
	b.RemoveAt(0, 1)
	b.StableSort(func(x, y kv) int { return cmp.Compare(x.k, y.k) })
	require.Equal(t, []kv{{1, 1}, {1, 3}, {2, 2}, {2, 4}}, b.Values())
	b.assertInvariants()
}

func TestSparseArrayShrink(t *testing.T) {
	a := NewSparseArray[int]()
	for i := 0; i < 1000; i++ {
		a.Add(i)
	}
	a.RemoveAt(10, 1)
	a.RemoveAt(20, 980)
	a.Shrink()
	require.EqualValues(t, 19, a.Len())
	require.EqualValues(t, 20, a.MaxIndex())
	require.EqualValues(t, 20, a.Cap())
	a.assertInvariants()

	// The interior hole survives and is reused.
	require.EqualValues(t, 10, a.Add(10))
	require.EqualValues(t, 20, a.Add(20))

	a.RemoveAt(0, a.MaxIndex())
	a.Shrink()
	require.EqualValues(t, 0, a.MaxIndex())
	require.EqualValues(t, 0, a.Cap())
	a.assertInvariants()
}

func TestSparseArrayIterRemove(t *testing.T) {
	a := NewSparseArray[int]()
	for i := 0; i < 100; i++ {
		a.Add(i)
	}
	var seen []int
	for it := a.Iter(); it.Next(); {
		seen = append(seen, it.Index())
		if *it.Value()%2 == 0 {
			it.RemoveCurrent()
		}
	}
	require.Len(t, seen, 100)
	require.EqualValues(t, 50, a.Len())
	a.All(func(i int, v *int) bool {
		require.EqualValues(t, 1, *v%2)
		return true
	})
	a.assertInvariants()
}

func TestSparseArrayClone(t *testing.T) {
	a := NewSparseArray[int]()
	for i := 0; i < 10; i++ {
		a.Add(i)
	}
	a.RemoveAt(3, 1)
	a.RemoveAt(7, 1)
	c := a.Clone()
	require.Equal(t, a.toBuiltinMap(), c.toBuiltinMap())
	c.assertInvariants()

	// The free list is cloned too, so both allocate the same indices.
	require.Equal(t, a.Add(100), c.Add(200))
	require.EqualValues(t, 100, *a.Get(7))
	require.EqualValues(t, 200, *c.Get(7))
}

func TestSparseArrayFreeList(t *testing.T) {
	// Remove a random subset, then add the same number of new elements. No
	// index may ever be handed out while it is still live.
	a := NewSparseArray[int]()
	live := roaring.New()
	for i := 0; i < 1000; i++ {
		require.True(t, live.CheckedAdd(uint32(a.Add(i))))
	}
	for round := 0; round < 20; round++ {
		victims := rand.Perm(a.MaxIndex())[:rand.Intn(a.Len()/2+1)]
		removed := 0
		for _, i := range victims {
			if !live.Contains(uint32(i)) {
				continue
			}
			a.RemoveAt(i, 1)
			require.True(t, live.CheckedRemove(uint32(i)))
			removed++
		}
		maxIndex := a.MaxIndex()
		for i := 0; i < removed; i++ {
			index := a.Add(round)
			require.True(t, live.CheckedAdd(uint32(index)), "index %d allocated twice", index)
		}
		// Refilling exactly the freed slots never grows the array.
		require.EqualValues(t, maxIndex, a.MaxIndex())
		require.EqualValues(t, live.GetCardinality(), a.Len())
		a.assertInvariants()
	}
}

func TestSparseArrayRandom(t *testing.T) {
	a := NewSparseArray[int]()
	e := make(map[int]int)
	for i := 0; i < 10000; i++ {
		switch r := rand.Float64(); {
		case r < 0.5: // 50% adds
			v := rand.Int()
			index := a.Add(v)
			_, exists := e[index]
			require.False(t, exists)
			e[index] = v
		case r < 0.55: // 5% inserts
			index := rand.Intn(a.MaxIndex() + 10)
			if _, exists := e[index]; !exists {
				v := rand.Int()
				a.Insert(index, v)
				e[index] = v
			}
		case r < 0.85: // 30% removes
			for index := range e {
				a.RemoveAt(index, 1)
				delete(e, index)
				break
			}
		case r < 0.99: // 14% lookups
			for index, v := range e {
				require.EqualValues(t, v, *a.Get(index))
				break
			}
		default: // 1% compact or shrink
			if rand.Intn(2) == 0 {
				a.Compact()
			} else {
				a.Shrink()
			}
			e = a.toBuiltinMap()
		}
		require.EqualValues(t, len(e), a.Len())
	}
	require.Equal(t, e, a.toBuiltinMap())
	a.assertInvariants()
}

func TestSparseArrayLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := NewSparseArray[int](WithLogger(zap.New(core)))
	for i := 0; i < 10; i++ {
		a.Add(i)
	}
	a.RemoveAt(0, 3)
	a.Compact()

	entries := logs.FilterMessage("sparse array compact").All()
	require.Len(t, entries, 1)
	require.EqualValues(t, 7, entries[0].ContextMap()["len"])
	require.EqualValues(t, 3, entries[0].ContextMap()["moved"])

	// Nothing moves, so nothing is logged.
	require.False(t, a.Compact())
	require.Equal(t, 1, logs.FilterMessage("sparse array compact").Len())
}

type sparseArrayScenario struct {
	Name string            `yaml:"name"`
	Ops  []sparseArrayStep `yaml:"ops"`
}

type sparseArrayStep struct {
	Op       string   `yaml:"op"`
	Value    string   `yaml:"value"`
	Index    int      `yaml:"index"`
	Count    int      `yaml:"count"`
	Want     *int     `yaml:"want"`
	Len      *int     `yaml:"len"`
	MaxIndex *int     `yaml:"max-index"`
	Values   []string `yaml:"values"`
}

func TestSparseArrayScenarios(t *testing.T) {
	data, err := os.ReadFile("testdata/sparse_array_scenarios.yaml")
	require.NoError(t, err)
	var scenarios []sparseArrayScenario
	require.NoError(t, yaml.Unmarshal(data, &scenarios))
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			a := NewSparseArray[string]()
			for i, step := range s.Ops {
				switch step.Op {
				case "add":
					index := a.Add(step.Value)
					if step.Want != nil {
						require.EqualValues(t, *step.Want, index, "step %d", i)
					}
				case "insert":
					a.Insert(step.Index, step.Value)
				case "remove":
					a.RemoveAt(step.Index, max(step.Count, 1))
				case "compact":
					a.Compact()
				case "compact-stable":
					a.CompactStable()
				case "shrink":
					a.Shrink()
				case "check":
					if step.Len != nil {
						require.EqualValues(t, *step.Len, a.Len(), "step %d", i)
					}
					if step.MaxIndex != nil {
						require.EqualValues(t, *step.MaxIndex, a.MaxIndex(), "step %d", i)
					}
					if step.Values != nil {
						require.Equal(t, step.Values, a.Values(), "step %d", i)
					}
				default:
					t.Fatalf("step %d: unknown op %q", i, step.Op)
				}
				a.assertInvariants()
			}
		})
	}
}
