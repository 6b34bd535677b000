package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// Ristretto is a bounded in-process store. Each value costs its byte length;
// a value the admission policy refuses to keep is reported as ErrQuotaExceeded.
type Ristretto struct {
	cache   *ristretto.Cache
	tracker *Tracker
	logger  *zap.Logger
}

// NewRistretto creates a Ristretto store holding at most maxCost bytes.
func NewRistretto(maxCost int64, logger *zap.Logger) (*Ristretto, error) {
	if maxCost <= 0 {
		return nil, fmt.Errorf("ristretto max cost must be positive, got %d", maxCost)
	}

	// ~10 counters per expected item, assuming items of about 100 bytes.
	numCounters := max(maxCost/100*10, 1000)

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        numCounters,
		MaxCost:            maxCost,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Ristretto cache: %w", err)
	}

	return &Ristretto{
		cache:   c,
		tracker: NewTracker(logger),
		logger:  logger,
	}, nil
}

// Get returns the value stored under key.
func (s *Ristretto) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value, found := s.cache.Get(key)
	if !found {
		s.tracker.Remove(key)
		return "", ErrNotFound
	}

	str, ok := value.(string)
	if !ok {
		s.logger.Error("Invalid cache entry type", zap.String("key", key))
		return "", ErrNotFound
	}
	return str, nil
}

// Set stores value under key. Writes are made visible before Set returns.
func (s *Ristretto) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cost := int64(len(key) + len(value))
	if !s.cache.Set(key, value, cost) {
		s.logger.Warn("Ristretto Set dropped", zap.String("key", key))
		return ErrQuotaExceeded
	}
	s.cache.Wait()

	if _, found := s.cache.Get(key); !found {
		return ErrQuotaExceeded
	}
	s.tracker.Add(key)
	return nil
}

// Remove deletes key.
func (s *Ristretto) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cache.Del(key)
	s.cache.Wait()
	s.tracker.Remove(key)
	return nil
}

// Keys returns the live tracked keys starting with prefix.
func (s *Ristretto) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	s.tracker.Range(prefix, func(key string) bool {
		if ctx.Err() != nil {
			return false
		}
		if _, found := s.cache.Get(key); found {
			keys = append(keys, key)
		} else {
			s.tracker.Remove(key)
		}
		return true
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the cache.
func (s *Ristretto) Close() error {
	s.cache.Close()
	s.tracker.Reset()
	return nil
}
