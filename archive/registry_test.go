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

package archive

import (
	"bytes"
	"slices"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRegistryRefCount(t *testing.T) {
	r := NewRegistry()
	v := CustomVersion{Key: uuid.New(), Version: 2, Name: "map"}

	r1, err := r.Register(v)
	require.NoError(t, err)
	r2, err := r.Register(v)
	require.NoError(t, err)

	got, ok := r.Lookup(v.Key)
	require.True(t, ok)
	require.Equal(t, v, got)

	r1.Release()
	// Releasing twice drops only one reference.
	r1.Release()
	_, ok = r.Lookup(v.Key)
	require.True(t, ok)

	r2.Release()
	_, ok = r.Lookup(v.Key)
	require.False(t, ok)
	require.Empty(t, r.Versions())

	// Once gone, the key can come back at another version.
	r3, err := r.Register(CustomVersion{Key: v.Key, Version: 3})
	require.NoError(t, err)
	defer r3.Release()
	got, _ = r.Lookup(v.Key)
	require.EqualValues(t, 3, got.Version)
}

func TestRegistryConflicts(t *testing.T) {
	r := NewRegistry()
	key := uuid.New()
	_, err := r.Register(CustomVersion{Key: key, Version: 1, Name: "set"})
	require.NoError(t, err)

	_, err = r.Register(CustomVersion{Key: key, Version: 2, Name: "set"})
	require.ErrorContains(t, err, "already registered at version 1, not 2")

	_, err = r.Register(CustomVersion{Key: uuid.Nil, Version: 1})
	require.ErrorContains(t, err, "must not be nil")
}

func TestRegistryVersionsSorted(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 20; i++ {
		_, err := r.Register(CustomVersion{Key: uuid.New(), Version: int32(i)})
		require.NoError(t, err)
	}
	versions := r.Versions()
	require.Len(t, versions, 20)
	require.True(t, slices.IsSortedFunc(versions, func(a, b CustomVersion) int {
		return bytes.Compare(a.Key[:], b.Key[:])
	}))
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()
	v := CustomVersion{Key: uuid.New(), Version: 1}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg, err := r.Register(v)
				if err != nil {
					panic(err)
				}
				reg.Release()
			}
		}()
	}
	wg.Wait()
	_, ok := r.Lookup(v.Key)
	require.False(t, ok)
}

func TestDefaultRegistry(t *testing.T) {
	require.Same(t, DefaultRegistry(), DefaultRegistry())

	v := CustomVersion{Key: uuid.New(), Version: 9, Name: "default"}
	reg, err := DefaultRegistry().Register(v)
	require.NoError(t, err)
	defer reg.Release()

	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	rd, err := NewReader(&buf)
	require.NoError(t, err)
	got, ok := rd.CustomVersion(v.Key)
	require.True(t, ok)
	require.EqualValues(t, 9, got)
}
