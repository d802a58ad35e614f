package tierstate

import (
	"context"
	"sync"
)

// MemoryPersistence keeps tier selections in process memory. It is meant for
// development and tests; selections vanish on restart.
type MemoryPersistence struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{values: make(map[string]string)}
}

func (m *MemoryPersistence) LoadTier(_ context.Context, sessionID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[sessionID]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryPersistence) SaveTier(_ context.Context, sessionID, tier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[sessionID] = tier
	return nil
}
