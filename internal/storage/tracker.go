package storage

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Tracker remembers the keys written to a backend that cannot enumerate its own keys.
type Tracker struct {
	trackedKeys sync.Map
	logger      *zap.Logger
}

// NewTracker creates a new Tracker instance.
func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// Add adds a key to the tracker.
func (t *Tracker) Add(key string) {
	t.trackedKeys.Store(key, struct{}{})
}

// Remove removes a key from the tracker.
func (t *Tracker) Remove(key string) {
	t.trackedKeys.Delete(key)
}

// Reset forgets every tracked key.
func (t *Tracker) Reset() {
	t.trackedKeys.Range(func(k, _ any) bool {
		t.trackedKeys.Delete(k)
		return true
	})
}

// Range calls f for each tracked key starting with prefix until f returns false.
func (t *Tracker) Range(prefix string, f func(key string) bool) {
	t.trackedKeys.Range(func(k, _ any) bool {
		strKey, ok := k.(string)
		if !ok {
			t.logger.Warn("Invalid key type in Tracker", zap.Any("key", k))
			return true
		}
		if !strings.HasPrefix(strKey, prefix) {
			return true
		}
		return f(strKey)
	})
}
