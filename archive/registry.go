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

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// CustomVersion is the version of one component's serialized format. Every
// Writer records the versions registered with its Registry in the archive
// header, so a Reader can tell which format each component was written in.
type CustomVersion struct {
	Key     uuid.UUID
	Version int32
	Name    string
}

// Registry holds the custom versions known to the process. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*registryEntry
}

type registryEntry struct {
	version CustomVersion
	refs    int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]*registryEntry)}
}

var defaultRegistry struct {
	once sync.Once
	r    *Registry
}

// DefaultRegistry returns the process-wide registry, creating it on first
// use. Writers that are not given a registry use it.
func DefaultRegistry() *Registry {
	defaultRegistry.once.Do(func() {
		defaultRegistry.r = NewRegistry()
	})
	return defaultRegistry.r
}

// Registration is a claim on a registered custom version. The version stays
// registered until every Registration for its key has been released.
type Registration struct {
	r    *Registry
	key  uuid.UUID
	once sync.Once
}

// Register adds v to the registry, or takes another reference to it if the
// same key is already registered with the same version. Registering a key
// with a different version is an error.
func (r *Registry) Register(v CustomVersion) (*Registration, error) {
	if v.Key == uuid.Nil {
		return nil, errors.New("archive: custom version key must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[v.Key]; ok {
		if e.version.Version != v.Version {
			return nil, errors.Errorf("archive: custom version %s (%s) already registered at version %d, not %d",
				v.Key, e.version.Name, e.version.Version, v.Version)
		}
		e.refs++
	} else {
		r.entries[v.Key] = &registryEntry{version: v, refs: 1}
	}
	return &Registration{r: r, key: v.Key}, nil
}

// Release drops the claim. Releasing twice has no further effect.
func (reg *Registration) Release() {
	reg.once.Do(func() {
		r := reg.r
		r.mu.Lock()
		defer r.mu.Unlock()
		e, ok := r.entries[reg.key]
		if !ok {
			return
		}
		if e.refs--; e.refs == 0 {
			delete(r.entries, reg.key)
		}
	})
}

// Lookup returns the registered version for key.
func (r *Registry) Lookup(key uuid.UUID) (CustomVersion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return CustomVersion{}, false
	}
	return e.version, true
}

// Versions returns every registered version ordered by key.
func (r *Registry) Versions() []CustomVersion {
	r.mu.Lock()
	versions := make([]CustomVersion, 0, len(r.entries))
	for _, e := range r.entries {
		versions = append(versions, e.version)
	}
	r.mu.Unlock()
	sortVersions(versions)
	return versions
}

func sortVersions(versions []CustomVersion) {
	slices.SortFunc(versions, func(a, b CustomVersion) int {
		return bytes.Compare(a.Key[:], b.Key[:])
	})
}
