package history

import (
	"context"
	"sync"
)

// defaultMemCapacity bounds the in-memory ring so long-running processes do
// not grow without limit.
const defaultMemCapacity = 1024

// MemStore is an in-memory [Store] holding the most recent records in a
// bounded ring. Safe for concurrent use.
type MemStore struct {
	mu       sync.RWMutex
	records  []Record
	capacity int
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty store keeping at most capacity records;
// capacity <= 0 selects the default of 1024.
func NewMemStore(capacity int) *MemStore {
	if capacity <= 0 {
		capacity = defaultMemCapacity
	}
	return &MemStore{capacity: capacity}
}

// SaveSession implements [Store.SaveSession]. When the ring is full the
// oldest record is evicted.
func (s *MemStore) SaveSession(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if len(s.records) > s.capacity {
		s.records = s.records[len(s.records)-s.capacity:]
	}
	return nil
}

// RecentSessions implements [Store.RecentSessions].
func (s *MemStore) RecentSessions(_ context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Record, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}
