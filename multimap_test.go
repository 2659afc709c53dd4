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
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMultiMapDuplicateKeys(t *testing.T) {
	m := NewMultiMap[string, int]()
	m.Add("k", 1)
	m.Add("k", 2)
	require.EqualValues(t, 2, m.Len())
	require.EqualValues(t, 2, m.Count("k"))
	require.Equal(t, []int{2, 1}, m.MultiFind("k", false))
	require.Equal(t, []int{1, 2}, m.MultiFind("k", true))
	require.EqualValues(t, 2, *m.Find("k"))
	require.Nil(t, m.MultiFind("x", true))
	m.set.assertInvariants()
}

func TestMultiMapIgnoresKeyDuplicatePolicy(t *testing.T) {
	m := NewMultiMapFunc[string, int](DefaultKeyFuncs[string]{}, func(a, b int) bool { return a == b })
	m.Add("k", 1)
	m.Add("k", 1)
	require.EqualValues(t, 2, m.Count("k"))
}

func TestMultiMapAddUnique(t *testing.T) {
	m := NewMultiMap[string, int]()
	p := m.AddUnique("k", 1)
	require.EqualValues(t, 1, *p)
	m.AddUnique("k", 2)
	*m.AddUnique("k", 1) = 1
	require.EqualValues(t, 2, m.Len())
	require.NotNil(t, m.FindPair("k", 2))
	require.Nil(t, m.FindPair("k", 3))
	require.Nil(t, m.FindPair("j", 1))
}

func TestMultiMapRemove(t *testing.T) {
	testCases := []struct {
		remove   func(m *MultiMap[string, int]) int
		removed  int
		expected []int
	}{
		{func(m *MultiMap[string, int]) int { return m.Remove("k") }, 5, nil},
		{func(m *MultiMap[string, int]) int { return m.Remove("j") }, 0, []int{1, 2, 1, 3, 1}},
		{func(m *MultiMap[string, int]) int { return m.RemovePair("k", 1) }, 3, []int{2, 3}},
		{func(m *MultiMap[string, int]) int { return m.RemovePair("k", 4) }, 0, []int{1, 2, 1, 3, 1}},
		// Only the most recently added match goes.
		{func(m *MultiMap[string, int]) int { return m.RemoveSingle("k", 1) }, 1, []int{1, 2, 1, 3}},
		{func(m *MultiMap[string, int]) int { return m.RemoveSingle("k", 2) }, 1, []int{1, 1, 3, 1}},
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			m := NewMultiMap[string, int]()
			for _, v := range []int{1, 2, 1, 3, 1} {
				m.Add("k", v)
			}
			m.Add("other", 9)
			require.EqualValues(t, c.removed, c.remove(m))
			require.Equal(t, c.expected, m.MultiFind("k", true))
			require.Equal(t, []int{9}, m.MultiFind("other", true))
			m.set.assertInvariants()
		})
	}
}

func TestMultiMapKeys(t *testing.T) {
	m := NewMultiMap[string, int]()
	for i, k := range strings.Fields("b a b c a b") {
		m.Add(k, i)
	}
	require.Equal(t, []string{"b", "a", "c"}, m.Keys())
	require.Equal(t, []int{0, 1, 2, 3, 4, 5}, m.Values())
	require.True(t, m.Contains("c"))
	require.False(t, m.Contains("d"))
	require.EqualValues(t, 0, m.Count("d"))
}

func TestMultiMapKeyIter(t *testing.T) {
	m := NewMultiMap[int, int]()
	for i := 0; i < 100; i++ {
		m.Add(i%4, i)
	}
	var seen []int
	for it := m.KeyIter(1); it.Next(); {
		require.EqualValues(t, 1, it.Key())
		require.Equal(t, m.set.Get(it.ID()).Value, *it.Value())
		seen = append(seen, *it.Value())
		if *it.Value()%2 == 1 && *it.Value() > 50 {
			it.RemoveCurrent()
		}
	}
	require.Len(t, seen, 25)
	require.True(t, slices.IsSortedFunc(seen, func(a, b int) int { return cmp.Compare(b, a) }))
	require.EqualValues(t, 13, m.Count(1))
	require.EqualValues(t, 88, m.Len())
	for _, v := range m.MultiFind(1, true) {
		require.LessOrEqual(t, v, 50)
	}
	m.set.assertInvariants()
}

func TestMultiMapMultiFindPointer(t *testing.T) {
	m := NewMultiMap[string, int]()
	m.Add("k", 1)
	m.Add("k", 2)
	for _, p := range m.MultiFindPointer("k", false) {
		*p *= 10
	}
	require.Equal(t, []int{10, 20}, m.MultiFind("k", true))
}

func TestMultiMapRandom(t *testing.T) {
	test := func(t *testing.T, m *MultiMap[int, int]) {
		e := make(map[int][]int)
		count := 0
		for i := 0; i < 5000; i++ {
			k := rand.Intn(50)
			switch r := rand.Float64(); {
			case r < 0.6:
				v := rand.Intn(10)
				m.Add(k, v)
				e[k] = append(e[k], v)
				count++
			case r < 0.75:
				n := m.Remove(k)
				require.EqualValues(t, len(e[k]), n)
				count -= n
				delete(e, k)
			case r < 0.9:
				v := rand.Intn(10)
				i := len(e[k]) - 1
				for i >= 0 && e[k][i] != v {
					i--
				}
				if i >= 0 {
					require.EqualValues(t, 1, m.RemoveSingle(k, v))
					e[k] = slices.Delete(e[k], i, i+1)
					count--
				} else {
					require.EqualValues(t, 0, m.RemoveSingle(k, v))
				}
			default:
				require.EqualValues(t, len(e[k]), m.Count(k))
			}
			require.EqualValues(t, count, m.Len())
		}
		// Free-list reuse scrambles storage order, so compare as multisets.
		for k, vs := range e {
			got := m.MultiFind(k, false)
			slices.Sort(got)
			want := slices.Clone(vs)
			slices.Sort(want)
			if len(want) == 0 {
				want = nil
			}
			require.Equal(t, want, got)
		}
		m.set.assertInvariants()
	}

	t.Run("normal", func(t *testing.T) {
		test(t, NewMultiMap[int, int]())
	})

	t.Run("degenerate", func(t *testing.T) {
		for _, v := range []uint64{0, ^uint64(0)} {
			t.Run(fmt.Sprintf("%016x", v), func(t *testing.T) {
				test(t, NewMultiMapFunc[int, int](degenerateKeyFuncs(v), func(a, b int) bool { return a == b }))
			})
		}
	})
}

func TestMultiMapSortClone(t *testing.T) {
	m := NewMultiMap[string, int]()
	m.Add("b", 2)
	m.Add("a", 3)
	m.Add("b", 1)
	m.Add("a", 0)

	c := m.Clone()
	c.Add("c", 5)
	require.EqualValues(t, 4, m.Len())
	require.EqualValues(t, 5, c.Len())

	m.ValueSort(cmp.Compare[int])
	require.Equal(t, []int{0, 1, 2, 3}, m.Values())
	m.KeySort(cmp.Compare[string])
	require.Equal(t, []string{"a", "b"}, m.Keys())
	require.ElementsMatch(t, []int{0, 3}, m.MultiFind("a", false))
	m.set.assertInvariants()

	m.Clear(0)
	require.True(t, m.Empty())
	require.False(t, c.Empty())
}
