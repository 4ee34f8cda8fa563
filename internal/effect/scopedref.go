/*
Copyright 2021 The Crossplane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package effect

import "sync"

// ScopedRef provides linearizable read-modify-write on a local value
// within a single process (§4.1.d). It backs the converger's per-group
// single-flight lock set: a set of in-flight group ids that a caller can
// try to insert into without blocking.
type ScopedRef[T any] struct {
	mu  sync.Mutex
	val T
}

// NewScopedRef returns a ScopedRef initialized to v.
func NewScopedRef[T any](v T) *ScopedRef[T] {
	return &ScopedRef[T]{val: v}
}

// Modify atomically replaces the held value with f(current) and returns
// whatever f returns alongside it.
func (r *ScopedRef[T]) Modify(f func(T) (T, any)) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, ret := f(r.val)
	r.val = next
	return ret
}

// Get returns a snapshot of the current value.
func (r *ScopedRef[T]) Get() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.val
}

// InFlightSet is a process-local set of keys currently being processed,
// with non-blocking try-insert semantics: TryAcquire never waits for a
// key to become free, it simply reports whether the caller now owns it.
// This is the concrete mechanism behind §4.5.3's single-flight guarantee
// and §8's Single-flight property.
type InFlightSet struct {
	ref *ScopedRef[map[string]struct{}]
}

// NewInFlightSet returns an empty InFlightSet.
func NewInFlightSet() *InFlightSet {
	return &InFlightSet{ref: NewScopedRef(map[string]struct{}{})}
}

// TryAcquire attempts to mark key in-flight. It returns true if the caller
// now owns key (no concurrent convergence for it was running), or false if
// another caller already owns it — the false case is the "already
// converging" no-op outcome of §4.5.3, not an error.
func (s *InFlightSet) TryAcquire(key string) bool {
	acquired := s.ref.Modify(func(m map[string]struct{}) (map[string]struct{}, any) {
		if _, present := m[key]; present {
			return m, false
		}
		next := make(map[string]struct{}, len(m)+1)
		for k := range m {
			next[k] = struct{}{}
		}
		next[key] = struct{}{}
		return next, true
	})
	return acquired.(bool)
}

// Release removes key from the in-flight set, allowing a future
// convergence for it to proceed.
func (s *InFlightSet) Release(key string) {
	s.ref.Modify(func(m map[string]struct{}) (map[string]struct{}, any) {
		if _, present := m[key]; !present {
			return m, nil
		}
		next := make(map[string]struct{}, len(m))
		for k := range m {
			if k != key {
				next[k] = struct{}{}
			}
		}
		return next, nil
	})
}
