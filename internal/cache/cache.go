// Package cache implements the versioned, TTL-bound persistent cache.
//
// Entries are stored as an envelope {data, timestamp, version} under a fixed
// key prefix. A lookup treats stale, foreign-version, corrupt or unreadable
// entries as absent; storage faults are logged and never returned.
package cache

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goflare.io/pokedex/internal/config"
	"goflare.io/pokedex/internal/models"
	"goflare.io/pokedex/internal/storage"
	"goflare.io/pokedex/pkg/serialization"
)

// availabilityProbe is the key suffix written by IsAvailable.
const availabilityProbe = "test"

// Stats is an approximate summary of the cache namespace.
type Stats struct {
	Count      int   `json:"count"`
	TotalBytes int64 `json:"total_bytes"`
}

// Cache is safe for concurrent use as long as its backend is.
type Cache struct {
	backend storage.Backend
	prefix  string
	version string
	ttl     time.Duration

	encoder func(io.Writer) serialization.Encoder
	decoder func(io.Reader) serialization.Decoder

	bloomFilter *BloomFilter
	metrics     *models.Metrics
	tracer      trace.Tracer
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a Cache over backend. A nil backend yields a cache whose
// operations all no-op. When the bloom filter is enabled it is built from
// the keys already in the backend.
func New(ctx context.Context, cfg *config.Config, backend storage.Backend) *Cache {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Cache{
		backend: backend,
		prefix:  cfg.Cache.Prefix,
		version: cfg.Cache.Version,
		ttl:     cfg.Cache.TTL,
		encoder: cfg.Serialization.Encoder,
		decoder: cfg.Serialization.Decoder,
		metrics: models.NewMetrics(),
		tracer:  otel.Tracer("cache"),
		logger:  logger,
		now:     time.Now,
	}
	if c.encoder == nil || c.decoder == nil {
		c.encoder, c.decoder = serialization.JsonEncoder, serialization.JsonDecoder
	}

	if backend != nil && cfg.Cache.BloomFilterSettings.Enabled {
		c.bloomFilter = NewBloomFilter(cfg.Cache.BloomFilterSettings, backend, c.prefix, logger)
		if err := c.bloomFilter.Rebuild(ctx); err != nil {
			logger.Warn("Bloom filter unavailable, all lookups reach the backend", zap.Error(err))
		}
	}

	return c
}

// Run keeps the bloom filter in step with the backend until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	if c.bloomFilter == nil {
		return
	}
	c.bloomFilter.PeriodicRebuild(ctx)
}

// Metrics returns the live counters of c.
func (c *Cache) Metrics() *models.Metrics {
	return c.metrics
}

// Get decodes the value stored under key into value and reports whether it
// was found and valid.
func (c *Cache) Get(ctx context.Context, key string, value any) bool {
	ctx, span := c.tracer.Start(ctx, "Cache.Get", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	entry, ok := c.lookup(ctx, key)
	if !ok {
		c.metrics.Misses.Inc()
		span.SetAttributes(attribute.Bool("hit", false))
		return false
	}

	if err := serialization.Unmarshal(c.decoder, entry.Data, value); err != nil {
		c.logger.Warn("Failed to decode cached value", zap.String("key", key), zap.Error(err))
		c.metrics.Faults.Inc()
		c.metrics.Misses.Inc()
		span.SetAttributes(attribute.Bool("hit", false))
		return false
	}

	c.metrics.Hits.Inc()
	span.SetAttributes(attribute.Bool("hit", true))
	return true
}

// Set stores value under key. When the backend is full the namespace is
// purged and the write retried once.
func (c *Cache) Set(ctx context.Context, key string, value any) Result {
	ctx, span := c.tracer.Start(ctx, "Cache.Set", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	result := c.set(ctx, key, value)
	span.SetAttributes(attribute.String("status", result.Status.String()))
	switch result.Status {
	case Stored:
		c.metrics.Stores.Inc()
	case Degraded:
		c.metrics.Degraded.Inc()
	case Faulted:
		c.metrics.Faults.Inc()
	}
	return result
}

func (c *Cache) set(ctx context.Context, key string, value any) Result {
	if c.backend == nil {
		return Result{Status: Degraded}
	}

	fullKey := c.prefix + key
	raw, err := c.encode(value)
	if err != nil {
		c.logger.Error("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return Result{Status: Faulted, Err: err}
	}

	err = c.backend.Set(ctx, fullKey, raw)
	if err == nil {
		c.added(fullKey)
		return Result{Status: Stored}
	}
	if !errors.Is(err, storage.ErrQuotaExceeded) {
		c.logger.Error("Cache write error", zap.String("key", key), zap.Error(err))
		return Result{Status: Faulted, Err: err}
	}

	c.logger.Warn("Storage quota exceeded, clearing cache entries", zap.String("key", key))
	c.Clear(ctx)

	raw, err = c.encode(value)
	if err != nil {
		return Result{Status: Faulted, Err: err}
	}
	if err := c.backend.Set(ctx, fullKey, raw); err != nil {
		c.logger.Error("Failed to cache after clearing", zap.String("key", key), zap.Error(err))
		return Result{Status: Degraded, Err: err}
	}
	c.added(fullKey)
	return Result{Status: Stored}
}

// Clear removes every entry under the cache prefix. Keys outside the prefix
// are untouched.
func (c *Cache) Clear(ctx context.Context) Result {
	ctx, span := c.tracer.Start(ctx, "Cache.Clear")
	defer span.End()

	if c.backend == nil {
		return Result{Status: Degraded}
	}

	keys, err := c.backend.Keys(ctx, c.prefix)
	if err != nil {
		c.logger.Error("Cache clear error", zap.Error(err))
		return Result{Status: Faulted, Err: err}
	}

	var firstErr error
	for _, k := range keys {
		if err := c.backend.Remove(ctx, k); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.bloomFilter != nil {
		c.bloomFilter.Reset()
	}

	span.SetAttributes(attribute.Int("removed", len(keys)))
	if firstErr != nil {
		c.logger.Error("Cache clear error", zap.Error(firstErr))
		return Result{Status: Faulted, Err: firstErr}
	}
	return Result{Status: Stored}
}

// Stats counts the entries under the prefix and sums their stored sizes.
func (c *Cache) Stats(ctx context.Context) Stats {
	if c.backend == nil {
		return Stats{}
	}

	keys, err := c.backend.Keys(ctx, c.prefix)
	if err != nil {
		c.logger.Error("Cache stats error", zap.Error(err))
		return Stats{}
	}

	stats := Stats{Count: len(keys)}
	for _, k := range keys {
		if raw, err := c.backend.Get(ctx, k); err == nil {
			stats.TotalBytes += int64(len(raw))
		}
	}
	return stats
}

// IsAvailable reports whether a trial write and delete succeed.
func (c *Cache) IsAvailable(ctx context.Context) bool {
	if c.backend == nil {
		return false
	}

	probe := c.prefix + availabilityProbe
	if err := c.backend.Set(ctx, probe, availabilityProbe); err != nil {
		return false
	}
	return c.backend.Remove(ctx, probe) == nil
}

// AgeHours returns how many hours ago key was stored, regardless of validity.
func (c *Cache) AgeHours(ctx context.Context, key string) (float64, bool) {
	if c.backend == nil {
		return 0, false
	}

	entry, ok := c.read(ctx, c.prefix+key)
	if !ok {
		return 0, false
	}
	return entry.Age(c.now()).Hours(), true
}

// IsWarmed reports whether keyPrefix+"1" through keyPrefix+n all hold valid entries.
func (c *Cache) IsWarmed(ctx context.Context, keyPrefix string, n int) bool {
	if c.backend == nil || n < 1 {
		return false
	}

	for i := 1; i <= n; i++ {
		if _, ok := c.lookup(ctx, keyPrefix+strconv.Itoa(i)); !ok {
			return false
		}
	}
	return true
}

// lookup returns the valid entry for key, evicting it when stale.
func (c *Cache) lookup(ctx context.Context, key string) (*models.Entry, bool) {
	if c.backend == nil {
		return nil, false
	}

	fullKey := c.prefix + key
	if c.bloomFilter != nil && !c.bloomFilter.Test(fullKey) {
		c.logger.Debug("Bloom filter negative for key", zap.String("key", key))
		return nil, false
	}

	entry, ok := c.read(ctx, fullKey)
	if !ok {
		return nil, false
	}

	if !entry.IsValid(c.now(), c.version, c.ttl) {
		if err := c.backend.Remove(ctx, fullKey); err != nil {
			c.logger.Warn("Failed to remove stale cache entry", zap.String("key", key), zap.Error(err))
		} else {
			c.metrics.Evictions.Inc()
		}
		return nil, false
	}
	return entry, true
}

// read fetches and decodes the envelope at fullKey without checking validity.
func (c *Cache) read(ctx context.Context, fullKey string) (*models.Entry, bool) {
	raw, err := c.backend.Get(ctx, fullKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Error("Cache read error", zap.String("key", fullKey), zap.Error(err))
			c.metrics.Faults.Inc()
		}
		return nil, false
	}

	var entry models.Entry
	if err := serialization.Unmarshal(c.decoder, []byte(raw), &entry); err != nil {
		c.logger.Warn("Corrupt cache entry", zap.String("key", fullKey), zap.Error(err))
		c.metrics.Faults.Inc()
		return nil, false
	}
	return &entry, true
}

func (c *Cache) encode(value any) (string, error) {
	data, err := serialization.Marshal(c.encoder, value)
	if err != nil {
		return "", err
	}
	raw, err := serialization.Marshal(c.encoder, models.NewEntry(data, c.now(), c.version))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (c *Cache) added(fullKey string) {
	if c.bloomFilter != nil {
		c.bloomFilter.Add(fullKey)
	}
}
