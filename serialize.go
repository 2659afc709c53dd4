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
	"github.com/cockroachdb/sparse/archive"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// maxLoadPrealloc caps how many slots Load reserves up front. A corrupt
// count then fails on a short read rather than on a huge allocation.
const maxLoadPrealloc = 1 << 16

// Save writes the number of live elements followed by each element, in index
// order, using put. Free slots are not written, so the loaded array is
// dense.
func (a *SparseArray[T]) Save(w *archive.Writer, put func(w *archive.Writer, v *T)) error {
	w.WriteUvarint(uint64(a.Len()))
	a.All(func(_ int, v *T) bool {
		put(w, v)
		return w.Err() == nil
	})
	return w.Err()
}

// Load replaces the contents of a with elements read by get. Elements are
// stored densely from index 0 in the order they were saved.
func (a *SparseArray[T]) Load(r *archive.Reader, get func(r *archive.Reader, v *T)) error {
	n := r.ReadUvarint()
	if err := r.Err(); err != nil {
		return err
	}
	a.Clear(int(min(n, maxLoadPrealloc)))
	for i := uint64(0); i < n; i++ {
		index, v := a.AddUninitialized()
		get(r, v)
		if err := r.Err(); err != nil {
			a.RemoveAt(index, 1)
			return errors.Wrapf(err, "loading element %d of %d", i, n)
		}
	}
	if ce := a.logger.Check(zapcore.DebugLevel, "sparse array load"); ce != nil {
		ce.Write(zap.Uint64("len", n))
	}
	return nil
}

// Save writes the elements of s in index order. The bucket array is not
// written; Load rebuilds it.
func (s *Set[T, K]) Save(w *archive.Writer, put func(w *archive.Writer, v *T)) error {
	w.WriteUvarint(uint64(s.Len()))
	s.All(func(_ SetElementID, v *T) bool {
		put(w, v)
		return w.Err() == nil
	})
	return w.Err()
}

// Load replaces the contents of s with elements read by get. The elements
// are appended without hashing and the set is rehashed once at the end.
// Duplicate keys in the input are not detected.
func (s *Set[T, K]) Load(r *archive.Reader, get func(r *archive.Reader, v *T)) error {
	n := r.ReadUvarint()
	if err := r.Err(); err != nil {
		return err
	}
	s.Clear(int(min(n, maxLoadPrealloc)))
	var err error
	for i := uint64(0); i < n; i++ {
		index, e := s.elements.AddUninitialized()
		get(r, &e.value)
		if err = r.Err(); err != nil {
			// Drop the partly decoded element.
			s.elements.RemoveAt(index, 1)
			err = errors.Wrapf(err, "loading element %d of %d", i, n)
			break
		}
	}
	// Whatever was loaded must be linked for the set to stay consistent.
	if !s.ConditionalRehash(s.elements.Len(), false) {
		s.Rehash()
	}
	s.checkInvariants()
	return err
}

// Save writes the entries of m in iteration order.
func (m *Map[K, V]) Save(w *archive.Writer, put func(w *archive.Writer, p *Pair[K, V])) error {
	return m.set.Save(w, put)
}

// Load replaces the contents of m with entries read by get.
func (m *Map[K, V]) Load(r *archive.Reader, get func(r *archive.Reader, p *Pair[K, V])) error {
	return m.set.Load(r, get)
}

// Save writes the entries of m in iteration order.
func (m *MultiMap[K, V]) Save(w *archive.Writer, put func(w *archive.Writer, p *Pair[K, V])) error {
	return m.set.Save(w, put)
}

// Load replaces the contents of m with entries read by get.
func (m *MultiMap[K, V]) Load(r *archive.Reader, get func(r *archive.Reader, p *Pair[K, V])) error {
	return m.set.Load(r, get)
}
