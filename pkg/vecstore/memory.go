package vecstore

import (
	"sort"
	"sync"
)

// Memory is an in-memory Index implementation using brute-force cosine
// distance. It is exact, intended for testing and small collections
// (< a few thousand vectors).
//
// It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// Compile-time interface check.
var _ Index = (*Memory)(nil)

// NewMemory creates a new in-memory vector index.
func NewMemory() *Memory {
	return &Memory{
		vectors: make(map[string][]float32),
	}
}

func (m *Memory) Insert(id string, vector []float32) error {
	cp := make([]float32, len(vector))
	copy(cp, vector)
	m.mu.Lock()
	m.vectors[id] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Search(query []float32, topK int) ([]Match, error) {
	return m.SearchFilter(query, topK, nil)
}

func (m *Memory) SearchFilter(query []float32, topK int, allow func(id string) bool) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.vectors) == 0 || topK <= 0 {
		return nil, nil
	}

	results := make([]Match, 0, len(m.vectors))
	for id, vec := range m.vectors {
		if allow != nil && !allow(id) {
			continue
		}
		results = append(results, Match{ID: id, Distance: CosineDistance(query, vec)})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	delete(m.vectors, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

func (m *Memory) Close() error {
	return nil
}
