// Package ratelimit implements a fixed-window request limiter keyed by an
// opaque client identifier.
package ratelimit

import (
	"context"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"goflare.io/pokedex/internal/config"
)

// Rule is the budget applied to one identifier.
type Rule struct {
	MaxRequests int
	Window      time.Duration
}

// Decision is the outcome of a single Check.
type Decision struct {
	Admitted  bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the wait until the window resets, rounded up to whole seconds.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(wait.Seconds())) * time.Second
}

// Headers renders the decision as X-RateLimit-* headers. Rejected decisions
// also carry Retry-After relative to now.
func (d Decision) Headers(now time.Time) map[string]string {
	h := map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(d.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(d.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(d.ResetAt.UnixMilli(), 10),
	}
	if !d.Admitted {
		h["Retry-After"] = strconv.FormatInt(int64(d.RetryAfter(now)/time.Second), 10)
	}
	return h
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter tracks a counter per identifier. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry

	sweepInterval time.Duration
	maxEntries    int
	evictCount    int

	logger *zap.Logger
	now    func() time.Time
}

// New creates a Limiter using the maintenance settings of cfg.
func New(cfg config.RateLimitConfig, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		entries:       make(map[string]*entry),
		sweepInterval: cfg.SweepInterval,
		maxEntries:    cfg.MaxEntries,
		evictCount:    cfg.EvictCount,
		logger:        logger,
		now:           time.Now,
	}
}

// Check counts a request from identifier against rule.
func (l *Limiter) Check(identifier string, rule Rule) Decision {
	now := l.now()

	if rule.MaxRequests < 1 {
		return Decision{Limit: max(rule.MaxRequests, 0), ResetAt: now.Add(rule.Window)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[identifier]
	if !ok || !now.Before(e.resetAt) {
		e = &entry{count: 1, resetAt: now.Add(rule.Window)}
		l.entries[identifier] = e
		if !ok {
			l.enforceCeiling(identifier)
		}
		return Decision{
			Admitted:  true,
			Limit:     rule.MaxRequests,
			Remaining: rule.MaxRequests - 1,
			ResetAt:   e.resetAt,
		}
	}

	if e.count >= rule.MaxRequests {
		return Decision{
			Limit:   rule.MaxRequests,
			ResetAt: e.resetAt,
		}
	}

	e.count++
	return Decision{
		Admitted:  true,
		Limit:     rule.MaxRequests,
		Remaining: rule.MaxRequests - e.count,
		ResetAt:   e.resetAt,
	}
}

// Len returns the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Sweep removes every entry whose window has ended.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, e := range l.entries {
		if !e.resetAt.After(now) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired entries on a fixed interval until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	if l.sweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("Swept expired rate limit entries", zap.Int("removed", n))
			}
		}
	}
}

// enforceCeiling evicts the entries closest to reset once the registry
// outgrows maxEntries. The identifier just inserted is kept. Caller holds mu.
func (l *Limiter) enforceCeiling(keep string) {
	if l.maxEntries <= 0 || len(l.entries) <= l.maxEntries {
		return
	}

	type candidate struct {
		id      string
		resetAt time.Time
	}
	candidates := make([]candidate, 0, len(l.entries))
	for id, e := range l.entries {
		if id != keep {
			candidates = append(candidates, candidate{id: id, resetAt: e.resetAt})
		}
	}
	slices.SortFunc(candidates, func(a, b candidate) int {
		return a.resetAt.Compare(b.resetAt)
	})

	n := min(l.evictCount, len(candidates))
	for _, c := range candidates[:n] {
		delete(l.entries, c.id)
	}
	l.logger.Warn("Rate limit registry over capacity, evicted entries",
		zap.Int("evicted", n),
		zap.Int("remaining", len(l.entries)))
}
