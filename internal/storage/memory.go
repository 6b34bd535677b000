package storage

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process store with a byte quota, the analogue of a
// browser's localStorage. Size is accounted as len(key)+len(value).
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
	size  int64
	quota int64
}

// NewMemory creates a Memory store. A quota <= 0 disables the limit.
func NewMemory(quota int64) *Memory {
	return &Memory{
		items: make(map[string]string),
		quota: quota,
	}
}

// Get returns the value stored under key.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.items[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key, failing with ErrQuotaExceeded when it does not fit.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newSize := m.size + int64(len(key)+len(value))
	if old, ok := m.items[key]; ok {
		newSize -= int64(len(key) + len(old))
	}
	if m.quota > 0 && newSize > m.quota {
		return ErrQuotaExceeded
	}

	m.items[key] = value
	m.size = newSize
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.items[key]; ok {
		m.size -= int64(len(key) + len(old))
		delete(m.items, key)
	}
	return nil
}

// Keys returns the keys starting with prefix in lexical order.
func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	m.mu.RUnlock()

	keys = filterPrefix(keys, prefix)
	sort.Strings(keys)
	return keys, nil
}

// Size returns the bytes currently accounted against the quota.
func (m *Memory) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}
