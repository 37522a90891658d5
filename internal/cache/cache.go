// Package cache is the durable resolution cache: product description to
// resolved catalog reference. Persisted backends carry resolutions across
// runs so operators are not asked to re-resolve the same product; skip
// markers are never persisted here (they stay run-scoped in the engine so a
// deferred product is re-offered on the next run).
//
// Saves happen as soon as the operator answers, not at run commit. The
// cache is deliberately outside the run's all-or-nothing output
// transaction: an aborted run keeps the answers already given, so the
// retry does not re-ask them, while output artifacts and the input source
// stay untouched.
package cache

import (
	"fmt"
	"sync"
	"time"
)

// Entry is one cached resolution.
type Entry struct {
	SKU       string `json:"sku"`
	Hits      int64  `json:"hits"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Store abstracts the cache backend.
type Store interface {
	Lookup(desc string) (Entry, bool, error)
	Save(desc string, e Entry) error
	Range(fn func(desc string, e Entry) error) error
	Close() error
}

// NowUnix returns current time in epoch seconds. Split for testability.
var NowUnix = func() int64 { return time.Now().UTC().Unix() }

// MemoryStore is a thread-safe map store with no persistence; resolutions
// last for one run only.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Entry)}
}

func (s *MemoryStore) Lookup(desc string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[desc]
	return e, ok, nil
}

func (s *MemoryStore) Save(desc string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.UpdatedAt == 0 {
		e.UpdatedAt = NowUnix()
	}
	s.data[desc] = e
	return nil
}

func (s *MemoryStore) Range(fn func(desc string, e Entry) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.data {
		if err := fn(k, v); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
