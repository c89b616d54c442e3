// Package selection tracks which rows of a collection the operator has picked.
package selection

import (
	"cmp"
	"slices"
	"sync"

	"github.com/mamadbah2/staffops/internal/collection"
)

// Model is a set of selected ids. It is safe for concurrent use.
type Model[K cmp.Ordered] struct {
	mu       sync.Mutex
	selected map[K]struct{}
}

// New returns an empty selection.
func New[K cmp.Ordered]() *Model[K] {
	return &Model[K]{selected: make(map[K]struct{})}
}

// Bind keeps the selection a subset of store's items: every change to the
// store drops selected ids that are no longer present.
func Bind[K cmp.Ordered, T any](m *Model[K], store *collection.Store[K, T]) {
	store.Subscribe(func(items []T) {
		ids := make([]K, len(items))
		for i, item := range items {
			ids[i] = store.IDOf(item)
		}
		m.Retain(ids)
	})
}

// Toggle flips the membership of id and reports whether it is now selected.
func (m *Model[K]) Toggle(id K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.selected[id]; ok {
		delete(m.selected, id)
		return false
	}
	m.selected[id] = struct{}{}
	return true
}

// SelectAll selects every id in all, unless all of them are already selected,
// in which case the selection is cleared.
func (m *Model[K]) SelectAll(all []K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	full := make(map[K]struct{}, len(all))
	for _, id := range all {
		full[id] = struct{}{}
	}

	if sameSet(m.selected, full) {
		clear(m.selected)
		return
	}
	m.selected = full
}

// Clear empties the selection.
func (m *Model[K]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.selected)
}

// Retain drops every selected id that is not in ids.
func (m *Model[K]) Retain(ids []K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keep := make(map[K]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	for id := range m.selected {
		if _, ok := keep[id]; !ok {
			delete(m.selected, id)
		}
	}
}

// Has reports whether id is selected.
func (m *Model[K]) Has(id K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.selected[id]
	return ok
}

// Len returns the number of selected ids.
func (m *Model[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.selected)
}

// IDs returns the selected ids in ascending order.
func (m *Model[K]) IDs() []K {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]K, 0, len(m.selected))
	for id := range m.selected {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Selected filters items down to the selected ones, keeping their order.
func Selected[K cmp.Ordered, T any](m *Model[K], items []T, idOf func(T) K) []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]T, 0, len(m.selected))
	for _, item := range items {
		if _, ok := m.selected[idOf(item)]; ok {
			out = append(out, item)
		}
	}
	return out
}

// Sum adds up project over the selected items.
func Sum[K cmp.Ordered, T any](m *Model[K], items []T, idOf func(T) K, project func(T) float64) float64 {
	var total float64
	for _, item := range Selected(m, items, idOf) {
		total += project(item)
	}
	return total
}

func sameSet[K comparable](a, b map[K]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range b {
		if _, ok := a[id]; !ok {
			return false
		}
	}
	return true
}
