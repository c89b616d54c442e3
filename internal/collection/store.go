// Package collection keeps the client-side copy of one backend listing.
package collection

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/mamadbah2/staffops/pkg/clients/backend"
)

// Loader fetches the current items of a collection from the backend.
type Loader[T any] func(ctx context.Context) ([]T, error)

// Listener is notified with the current items after every change.
type Listener[T any] func(items []T)

// State is a point-in-time copy of a store.
type State[T any] struct {
	Items        []T    `json:"items"`
	Loading      bool   `json:"loading"`
	ErrorMessage string `json:"error,omitempty"`
}

// Store holds "a list of entities fetched from one endpoint". Fetches are
// numbered; a completion older than the newest applied one is dropped so a
// slow response can never overwrite fresher data.
type Store[K comparable, T any] struct {
	name     string
	load     Loader[T]
	idOf     func(T) K
	fallback string
	logger   *zap.Logger

	// notifyMu is taken before mu is released so listeners observe changes
	// in the order they were made.
	notifyMu sync.Mutex

	mu        sync.Mutex
	items     []T
	errMsg    string
	issued    uint64
	applied   uint64
	listeners []Listener[T]
}

// Options tweaks a Store.
type Options struct {
	// FallbackError is shown when a failed fetch carries no message.
	FallbackError string
	Logger        *zap.Logger
}

// New builds an empty store. It starts out loading, matching a view that
// fetches as soon as it is mounted.
func New[K comparable, T any](name string, load Loader[T], idOf func(T) K, opts Options) *Store[K, T] {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := opts.FallbackError
	if fallback == "" {
		fallback = "Failed to fetch " + name
	}
	return &Store[K, T]{
		name:     name,
		load:     load,
		idOf:     idOf,
		fallback: fallback,
		logger:   logger,
		items:    []T{},
	}
}

// Fetch loads the collection and applies the result unless a newer fetch has
// already been applied. The returned error is the load error, if any, even
// when the result was discarded.
func (s *Store[K, T]) Fetch(ctx context.Context) error {
	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.mu.Unlock()

	items, err := s.load(ctx)

	s.mu.Lock()
	if seq <= s.applied {
		s.mu.Unlock()
		s.logger.Debug("discarding stale fetch", zap.String("collection", s.name), zap.Uint64("seq", seq))
		return err
	}
	s.applied = seq

	if err != nil {
		s.errMsg = backend.Message(err, s.fallback)
		s.mu.Unlock()
		s.logger.Warn("fetch failed", zap.String("collection", s.name), zap.Error(err))
		return err
	}

	if items == nil {
		items = []T{}
	}
	s.items = items
	s.errMsg = ""
	snapshot, listeners := s.notifyLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()

	s.logger.Debug("fetch applied", zap.String("collection", s.name), zap.Int("items", len(items)))
	s.notify(listeners, snapshot)
	return nil
}

// Remove drops the item with id, reporting whether it was present.
func (s *Store[K, T]) Remove(id K) bool {
	s.mu.Lock()
	idx := slices.IndexFunc(s.items, func(item T) bool { return s.idOf(item) == id })
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.items = slices.Delete(slices.Clone(s.items), idx, idx+1)
	snapshot, listeners := s.notifyLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()

	s.notify(listeners, snapshot)
	return true
}

// Subscribe registers fn to run after every change to the items. Listeners are
// called in change order with a copy of the items and must not call back into
// the store.
func (s *Store[K, T]) Subscribe(fn Listener[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns a copy of the current state.
func (s *Store[K, T]) Snapshot() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State[T]{
		Items:        slices.Clone(s.items),
		Loading:      s.loadingLocked(),
		ErrorMessage: s.errMsg,
	}
}

// Items returns a copy of the current items in server order.
func (s *Store[K, T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// IDs returns the ids of the current items in server order.
func (s *Store[K, T]) IDs() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idsLocked(s.items)
}

// Get looks up an item by id.
func (s *Store[K, T]) Get(id K) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if s.idOf(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Len returns the number of items.
func (s *Store[K, T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Loading reports whether the newest fetch is still outstanding.
func (s *Store[K, T]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingLocked()
}

// ErrorMessage returns the message of the last applied failed fetch.
func (s *Store[K, T]) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// IDOf exposes the store's identity function.
func (s *Store[K, T]) IDOf(item T) K {
	return s.idOf(item)
}

// A store that has never fetched counts as loading.
func (s *Store[K, T]) loadingLocked() bool {
	return s.issued == 0 || s.applied < s.issued
}

func (s *Store[K, T]) idsLocked(items []T) []K {
	ids := make([]K, len(items))
	for i, item := range items {
		ids[i] = s.idOf(item)
	}
	return ids
}

func (s *Store[K, T]) notifyLocked() ([]T, []Listener[T]) {
	if len(s.listeners) == 0 {
		return nil, nil
	}
	return slices.Clone(s.items), slices.Clone(s.listeners)
}

func (s *Store[K, T]) notify(listeners []Listener[T], items []T) {
	defer s.notifyMu.Unlock()
	for _, fn := range listeners {
		fn(items)
	}
}
