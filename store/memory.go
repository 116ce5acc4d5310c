package store

import (
	"context"
	"sync"

	"golang.org/x/exp/maps"
)

// MemoryStore keeps analytics counts in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]int)}
}

func (s *MemoryStore) Load(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCounts(s.data), nil
}

func (s *MemoryStore) Add(_ context.Context, counts map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	addCounts(s.data, counts)
	return nil
}

func (s *MemoryStore) Take(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	taken := s.data
	s.data = make(map[string]int)
	return taken, nil
}

func copyCounts(counts map[string]int) map[string]int {
	c := make(map[string]int, len(counts))
	maps.Copy(c, counts)
	return c
}

// addCounts adds the positive entries of delta to dst.
func addCounts(dst, delta map[string]int) {
	for feature, n := range delta {
		if n > 0 {
			dst[feature] += n
		}
	}
}
