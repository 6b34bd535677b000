package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"

	"goflare.io/pokedex/internal/config"
	"goflare.io/pokedex/internal/storage"
)

// BloomFilter answers "definitely not stored" for keys under the cache prefix.
// Until the first successful rebuild it admits every key.
type BloomFilter struct {
	settings config.BloomFilterConfig
	backend  storage.Backend
	prefix   string
	logger   *zap.Logger

	rebuildMu sync.Mutex

	mutex      sync.RWMutex
	filter     *bloom.BloomFilter
	ready      bool
	rebuilding bool
	// pending holds keys added while a rebuild lists the backend.
	pending []string
}

// NewBloomFilter creates a filter over the keys of backend starting with prefix.
func NewBloomFilter(settings config.BloomFilterConfig, backend storage.Backend, prefix string, logger *zap.Logger) *BloomFilter {
	return &BloomFilter{
		settings: settings,
		backend:  backend,
		prefix:   prefix,
		logger:   logger,
		filter:   bloom.NewWithEstimates(settings.ExpectedItems, settings.FalsePositiveRate),
	}
}

// Add adds a key to the bloom filter.
func (bf *BloomFilter) Add(key string) {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()
	bf.filter.Add([]byte(key))
	if bf.rebuilding {
		bf.pending = append(bf.pending, key)
	}
}

// Test checks if a key might be stored.
func (bf *BloomFilter) Test(key string) bool {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()
	if !bf.ready {
		return true
	}
	return bf.filter.Test([]byte(key))
}

// Reset empties the filter, keeping it authoritative.
func (bf *BloomFilter) Reset() {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()
	bf.filter.ClearAll()
	bf.pending = nil
}

// Rebuild reconstructs the filter from the keys currently in the backend.
// Keys added while the backend is listed are carried into the new filter.
func (bf *BloomFilter) Rebuild(ctx context.Context) error {
	bf.rebuildMu.Lock()
	defer bf.rebuildMu.Unlock()

	bf.mutex.Lock()
	bf.rebuilding = true
	bf.pending = nil
	bf.mutex.Unlock()

	keys, err := bf.backend.Keys(ctx, bf.prefix)
	if err != nil {
		bf.mutex.Lock()
		bf.rebuilding = false
		bf.pending = nil
		bf.mutex.Unlock()
		return fmt.Errorf("failed to list keys for bloom filter: %w", err)
	}

	expected := bf.settings.ExpectedItems
	if n := uint(len(keys)) * 2; n > expected {
		expected = n
	}
	newFilter := bloom.NewWithEstimates(expected, bf.settings.FalsePositiveRate)
	for _, key := range keys {
		newFilter.Add([]byte(key))
	}

	bf.mutex.Lock()
	defer bf.mutex.Unlock()
	for _, key := range bf.pending {
		newFilter.Add([]byte(key))
	}
	bf.filter = newFilter
	bf.ready = true
	bf.rebuilding = false
	bf.pending = nil

	bf.logger.Debug("Bloom filter rebuilt", zap.Int("keys", len(keys)))
	return nil
}

// PeriodicRebuild periodically rebuilds the bloom filter.
func (bf *BloomFilter) PeriodicRebuild(ctx context.Context) {
	if bf.settings.RebuildInterval <= 0 {
		return
	}
	ticker := time.NewTicker(bf.settings.RebuildInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := bf.Rebuild(ctx); err != nil {
				bf.logger.Error("Failed to rebuild bloom filter", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
