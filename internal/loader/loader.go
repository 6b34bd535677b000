// Package loader implements cache-first data access: serve from the cache,
// otherwise load once, store, and return.
package loader

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"goflare.io/pokedex/internal/cache"
)

// Store is the subset of *cache.Cache the loader needs.
type Store interface {
	Get(ctx context.Context, key string, value any) bool
	Set(ctx context.Context, key string, value any) cache.Result
}

// Loader coalesces concurrent misses for the same key into one load.
type Loader struct {
	store  Store
	sf     singleflight.Group
	logger *zap.Logger
}

// New creates a Loader backed by store.
func New(store Store, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{store: store, logger: logger}
}

// Get returns the cached value for key, or calls load, caches its result and
// returns it. Errors from load are returned unchanged and never cached.
// Callers sharing a load receive the same value and error. The shared load
// is detached from caller cancellation; a cancelled caller stops waiting and
// gets its own ctx.Err().
func Get[T any](ctx context.Context, l *Loader, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var cached T
	if l.store.Get(ctx, key, &cached) {
		return cached, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := l.sf.DoChan(key, func() (any, error) {
		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if r := l.store.Set(loadCtx, key, value); !r.OK() {
			l.logger.Debug("Loaded value not cached",
				zap.String("key", key),
				zap.Stringer("status", r.Status),
				zap.Error(r.Err))
		}
		return value, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	if res.Err != nil {
		return zero, res.Err
	}
	if res.Shared {
		l.logger.Debug("Coalesced concurrent load", zap.String("key", key))
	}

	value, ok := res.Val.(T)
	if !ok {
		return zero, fmt.Errorf("loader: key %q holds %T, not %T", key, res.Val, zero)
	}
	return value, nil
}
