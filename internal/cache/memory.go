package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Store used when no Valkey address is configured.
type Memory struct {
	mu      sync.Mutex
	items   map[string]memoryEntry
	maxSize int
	now     func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemory creates a Memory store holding at most maxSize entries. When full, expired
// entries are dropped first and then an arbitrary one.
func NewMemory(maxSize int) *Memory {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Memory{
		items:   make(map[string]memoryEntry),
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.items, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if _, exists := m.items[key]; !exists && len(m.items) >= m.maxSize {
		m.evict(now)
	}
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	m.items[key] = entry
	return nil
}

func (m *Memory) evict(now time.Time) {
	for key, entry := range m.items {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(m.items, key)
		}
	}
	if len(m.items) < m.maxSize {
		return
	}
	for key := range m.items {
		delete(m.items, key)
		return
	}
}
