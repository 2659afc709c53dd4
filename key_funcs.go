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
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
)

// KeyFuncs describes how a Set finds the key of an element of type T, how
// keys are compared and hashed, and whether several elements may share a
// key. Matches and Hash must agree: keys that match must hash equally.
type KeyFuncs[T any, K any] interface {
	GetKey(element *T) K
	Matches(a, b K) bool
	Hash(key K) uint64
	AllowDuplicates() bool
}

// defaultSeed is process-wide so that equal keys hash equally in every Set.
var defaultSeed = maphash.MakeSeed()

// DefaultKeyFuncs uses the element itself as the key, compares with == and
// hashes with the same function family as the builtin map. Strings are
// hashed with xxhash. The zero value disallows duplicates.
type DefaultKeyFuncs[K comparable] struct {
	// HashFunc overrides the hash function when non-nil.
	HashFunc func(key K) uint64
	// Duplicates allows several equal elements to be stored.
	Duplicates bool
}

var _ KeyFuncs[int, int] = DefaultKeyFuncs[int]{}

// GetKey implements KeyFuncs.
func (DefaultKeyFuncs[K]) GetKey(element *K) K {
	return *element
}

// Matches implements KeyFuncs.
func (DefaultKeyFuncs[K]) Matches(a, b K) bool {
	return a == b
}

// Hash implements KeyFuncs.
func (kf DefaultKeyFuncs[K]) Hash(key K) uint64 {
	if kf.HashFunc != nil {
		return kf.HashFunc(key)
	}
	return hashComparable(key)
}

// AllowDuplicates implements KeyFuncs.
func (kf DefaultKeyFuncs[K]) AllowDuplicates() bool {
	return kf.Duplicates
}

func hashComparable[K comparable](key K) uint64 {
	switch k := any(key).(type) {
	case string:
		return xxhash.Sum64String(k)
	default:
		return maphash.Comparable(defaultSeed, key)
	}
}

// HashString hashes s the way DefaultKeyFuncs hashes string keys. It is
// useful for KeyFuncs whose key is a string field of the element.
func HashString(s string) uint64 {
	return xxhash.Sum64String(s)
}

// HashBytes hashes b the same way HashString hashes string(b).
func HashBytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// FuncKeyFuncs adapts plain functions to KeyFuncs.
type FuncKeyFuncs[T any, K any] struct {
	Key        func(element *T) K
	Equal      func(a, b K) bool
	HashKey    func(key K) uint64
	Duplicates bool
}

// GetKey implements KeyFuncs.
func (kf FuncKeyFuncs[T, K]) GetKey(element *T) K {
	return kf.Key(element)
}

// Matches implements KeyFuncs.
func (kf FuncKeyFuncs[T, K]) Matches(a, b K) bool {
	return kf.Equal(a, b)
}

// Hash implements KeyFuncs.
func (kf FuncKeyFuncs[T, K]) Hash(key K) uint64 {
	return kf.HashKey(key)
}

// AllowDuplicates implements KeyFuncs.
func (kf FuncKeyFuncs[T, K]) AllowDuplicates() bool {
	return kf.Duplicates
}
