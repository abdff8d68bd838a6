package sessions

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests and demo mode.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Summary
}

// Compile-time check.
var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Summary)}
}

func (m *MemoryStore) Save(_ context.Context, s *Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	// Cursors carry UTC nanoseconds.
	cp.StartedAt = cp.StartedAt.UTC()
	cp.EndedAt = cp.EndedAt.UTC()
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, limit int, opts ...ListOption) ([]*Summary, error) {
	o := applyListOpts(opts)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Summary
	for _, s := range m.sessions {
		if o.cursor != nil && !before(s, o.cursor) {
			continue
		}
		cp := *s
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].EndedAt.Equal(result[j].EndedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].EndedAt.After(result[j].EndedAt)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
