package resolution

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps state in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

// Get returns the state of key
func (m *MemoryStore) Get(_ context.Context, key Key) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[key.String()]
	return s, ok, nil
}

// Put stores a state, replacing any previous one for the same key
func (m *MemoryStore) Put(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.Key.String()] = state
	return nil
}

// List returns every state ordered by key
func (m *MemoryStore) List(_ context.Context) ([]State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]State, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out, nil
}
