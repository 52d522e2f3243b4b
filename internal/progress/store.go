// Package progress records a 0..100 completion percentage per batch so a
// client can poll while the batch request is still running.
package progress

import (
	"sync"
)

// Memory selects the in-process backend in Open.
const Memory = "memory"

// Store holds one percentage per batch. Writes for the same batch are
// serialized and never lower the stored value; unknown batches read as 0.
type Store interface {
	Set(batchID string, percent int) error
	Get(batchID string) (int, error)
	Delete(batchID string) error
	Close() error
}

// Open returns the SQLite store at path, or a MemoryStore when path is
// Memory or empty.
func Open(path string) (Store, error) {
	if path == "" || path == Memory {
		return NewMemoryStore(), nil
	}
	return OpenSQLite(path)
}

func clamp(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// keyedMutex hands out one mutex per batch ID.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) lock(id string) func() {
	v, _ := k.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (k *keyedMutex) forget(id string) { k.locks.Delete(id) }

// MemoryStore keeps progress in a map for the lifetime of the process.
type MemoryStore struct {
	keys keyedMutex
	mu   sync.RWMutex
	m    map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]int)}
}

func (s *MemoryStore) Set(batchID string, percent int) error {
	unlock := s.keys.lock(batchID)
	defer unlock()

	percent = clamp(percent)
	s.mu.Lock()
	if cur, ok := s.m[batchID]; !ok || percent >= cur {
		s.m[batchID] = percent
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(batchID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[batchID], nil
}

func (s *MemoryStore) Delete(batchID string) error {
	unlock := s.keys.lock(batchID)
	s.mu.Lock()
	delete(s.m, batchID)
	s.mu.Unlock()
	unlock()
	s.keys.forget(batchID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
