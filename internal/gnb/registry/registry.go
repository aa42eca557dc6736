// Package registry is the keyed context store owned by a single task. It is
// not synchronized; only the owning task's dispatch loop may touch it.
package registry

import (
	"cmp"
	"maps"
	"slices"
)

type Registry[K cmp.Ordered, V any] struct {
	entries map[K]V
}

func New[K cmp.Ordered, V any]() *Registry[K, V] {
	return &Registry[K, V]{entries: make(map[K]V)}
}

// Insert stores v under k, replacing any previous entry.
func (r *Registry[K, V]) Insert(k K, v V) {
	r.entries[k] = v
}

func (r *Registry[K, V]) Find(k K) (V, bool) {
	v, ok := r.entries[k]
	return v, ok
}

// Remove deletes k and reports whether it was present.
func (r *Registry[K, V]) Remove(k K) bool {
	if _, ok := r.entries[k]; !ok {
		return false
	}
	delete(r.entries, k)
	return true
}

func (r *Registry[K, V]) Len() int {
	return len(r.entries)
}

// Keys returns the keys in ascending order.
func (r *Registry[K, V]) Keys() []K {
	return slices.Sorted(maps.Keys(r.entries))
}

// ForEach visits entries in ascending key order. fn must not insert or
// remove entries.
func (r *Registry[K, V]) ForEach(fn func(K, V)) {
	for _, k := range r.Keys() {
		fn(k, r.entries[k])
	}
}

// All reports whether pred holds for every entry. An empty registry
// yields false.
func (r *Registry[K, V]) All(pred func(V) bool) bool {
	if len(r.entries) == 0 {
		return false
	}
	for _, v := range r.entries {
		if !pred(v) {
			return false
		}
	}
	return true
}
