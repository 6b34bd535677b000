// Package download mirrors PokeAPI resources into a static data directory.
package download

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"goflare.io/pokedex/internal/config"
	"goflare.io/pokedex/internal/fetch"
	"goflare.io/pokedex/internal/pokeapi"
	"goflare.io/pokedex/internal/static"
)

// Failure records one resource that could not be downloaded.
type Failure struct {
	Kind static.Kind
	ID   int
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %d: %v", f.Kind, f.ID, f.Err)
}

// Report summarizes a download run.
type Report struct {
	Saved    map[static.Kind]int
	Failures []Failure
	Elapsed  time.Duration
}

// Downloader writes the list, per-id files and combined files of every kind.
type Downloader struct {
	fetch     *fetch.Client
	baseURL   string
	dir       string
	batchSize int
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// New creates a Downloader saving into dir. Requests are paced at
// cfg.RequestsPerSecond and issued cfg.BatchSize at a time.
func New(cfg config.PokeAPIConfig, f *fetch.Client, dir string, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	batch := cfg.BatchSize
	if batch < 1 {
		batch = 20
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Downloader{
		fetch:     f,
		baseURL:   cfg.BaseURL,
		dir:       dir,
		batchSize: batch,
		limiter:   rate.NewLimiter(limit, batch),
		logger:    logger,
	}
}

// Run downloads the first count Pokémon with their species and encounters.
// Individual resource failures are collected in the report; only a failed
// list request, a write error or ctx cancellation aborts the run.
func (d *Downloader) Run(ctx context.Context, count int) (*Report, error) {
	start := time.Now()
	report := &Report{Saved: make(map[static.Kind]int)}

	var list pokeapi.ListResponse
	if err := d.get(ctx, fmt.Sprintf("/pokemon?limit=%d&offset=0", count), &list); err != nil {
		return nil, fmt.Errorf("failed to download pokemon list: %w", err)
	}
	if err := static.Save(d.dir, static.ListFile, list); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(list.Results))
	for _, r := range list.Results {
		if id := pokeapi.IDFromURL(r.URL); id > 0 {
			ids = append(ids, id)
		}
	}
	d.logger.Info("Downloading static data", zap.Int("count", len(ids)), zap.String("dir", d.dir))

	kinds := []struct {
		kind static.Kind
		path func(id int) string
	}{
		{static.KindPokemon, func(id int) string { return fmt.Sprintf("/pokemon/%d", id) }},
		{static.KindSpecies, func(id int) string { return fmt.Sprintf("/pokemon-species/%d", id) }},
		{static.KindLocations, func(id int) string { return fmt.Sprintf("/pokemon/%d/encounters", id) }},
	}
	for _, k := range kinds {
		items, failures, err := d.downloadKind(ctx, k.kind, ids, k.path)
		if err != nil {
			return nil, err
		}
		report.Failures = append(report.Failures, failures...)
		report.Saved[k.kind] = len(items)

		if err := d.saveCombined(k.kind, ids, items); err != nil {
			return nil, err
		}
	}

	report.Elapsed = time.Since(start)
	d.logger.Info("Static data downloaded",
		zap.Any("saved", report.Saved),
		zap.Int("failures", len(report.Failures)),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

func (d *Downloader) downloadKind(ctx context.Context, kind static.Kind, ids []int, path func(int) string) (map[int]json.RawMessage, []Failure, error) {
	var (
		mu       sync.Mutex
		items    = make(map[int]json.RawMessage, len(ids))
		failures []Failure
	)

	for start := 0; start < len(ids); start += d.batchSize {
		end := min(start+d.batchSize, len(ids))

		g, gctx := errgroup.WithContext(ctx)
		for _, id := range ids[start:end] {
			g.Go(func() error {
				var raw json.RawMessage
				if err := d.get(gctx, path(id), &raw); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					d.logger.Warn("Download failed",
						zap.String("kind", string(kind)),
						zap.Int("id", id),
						zap.Error(err))
					mu.Lock()
					failures = append(failures, Failure{Kind: kind, ID: id, Err: err})
					mu.Unlock()
					return nil
				}
				if err := static.Save(d.dir, static.FileName(kind, id), raw); err != nil {
					return err
				}
				mu.Lock()
				items[id] = raw
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
		d.logger.Debug("Batch complete",
			zap.String("kind", string(kind)),
			zap.Int("done", end),
			zap.Int("total", len(ids)))
	}
	return items, failures, nil
}

// saveCombined writes locations as an object keyed by id and every other kind as an array in id order.
func (d *Downloader) saveCombined(kind static.Kind, ids []int, items map[int]json.RawMessage) error {
	if kind == static.KindLocations {
		byID := make(map[string]json.RawMessage, len(items))
		for id, raw := range items {
			byID[strconv.Itoa(id)] = raw
		}
		return static.Save(d.dir, static.CombinedName(kind), byID)
	}

	all := make([]json.RawMessage, 0, len(items))
	for _, id := range ids {
		if raw, ok := items[id]; ok {
			all = append(all, raw)
		}
	}
	return static.Save(d.dir, static.CombinedName(kind), all)
}

func (d *Downloader) get(ctx context.Context, path string, v any) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return d.fetch.GetJSON(ctx, d.baseURL+path, v)
}
