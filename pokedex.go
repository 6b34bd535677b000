// Package pokedex wires the Pokédex data core: a persistent cache in front
// of the PokeAPI, a rate-limited text-to-speech endpoint, and the HTTP API
// serving both.
package pokedex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goflare.io/pokedex/internal/cache"
	"goflare.io/pokedex/internal/config"
	"goflare.io/pokedex/internal/fetch"
	"goflare.io/pokedex/internal/pokeapi"
	"goflare.io/pokedex/internal/ratelimit"
	"goflare.io/pokedex/internal/server"
	"goflare.io/pokedex/internal/static"
	"goflare.io/pokedex/internal/storage"
	"goflare.io/pokedex/internal/tts"
)

// Pokedex 定義主要結構體
type Pokedex struct {
	cfg     *config.Config
	backend storage.Backend
	cache   *cache.Cache
	limiter *ratelimit.Limiter
	fetch   *fetch.Client
	api     *pokeapi.Client
	speech  *tts.Client
	server  *server.Server
	logger  *zap.Logger
}

// New 初始化 Pokedex，接受多個配置選項
func New(ctx context.Context, opts ...Option) (*Pokedex, error) {
	cfg, err := config.NewConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}
	logger := cfg.Logger

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache backend: %w", err)
	}

	c := cache.New(ctx, cfg, backend)
	f := fetch.New(cfg.Fetch, nil, logger)
	api := pokeapi.New(cfg.PokeAPI, f, static.Open(cfg.PokeAPI.StaticDir, logger), c, logger)
	speech := tts.New(cfg.TTS, f, logger)
	limiter := ratelimit.New(cfg.RateLimit, logger)

	p := &Pokedex{
		cfg:     cfg,
		backend: backend,
		cache:   c,
		limiter: limiter,
		fetch:   f,
		api:     api,
		speech:  speech,
		logger:  logger,
	}
	p.server = server.New(cfg, server.Deps{
		Pokemon: api,
		Speech:  speech,
		Limiter: limiter,
		Cache:   c,
	})

	logger.Info("Pokedex initialized",
		zap.String("backend", cfg.Cache.Backend),
		zap.Bool("static_data", cfg.PokeAPI.StaticDir != ""),
		zap.Bool("tts", speech.Configured()))
	return p, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	c := cfg.Cache
	switch c.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendMemory, "":
		return storage.NewMemory(c.MemoryQuota), nil
	case config.BackendRistretto:
		return storage.NewRistretto(c.RistrettoMaxCost, cfg.Logger)
	case config.BackendFile:
		dir := c.FileDir
		if dir == "" {
			base, err := os.UserCacheDir()
			if err != nil {
				return nil, fmt.Errorf("failed to locate cache directory: %w", err)
			}
			dir = filepath.Join(base, "pokedex")
		}
		return storage.NewFile(dir, c.FileCapacity, c.CompressionLevel)
	case config.BackendRedis:
		return storage.DialRedis(ctx, &redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
	case config.BackendTiered:
		local, err := storage.NewRistretto(c.RistrettoMaxCost, cfg.Logger)
		if err != nil {
			return nil, err
		}
		remote, err := storage.DialRedis(ctx, &redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		if err != nil {
			_ = local.Close()
			return nil, err
		}
		return storage.NewTiered(local, remote, cfg.Logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
}

// Cache returns the persistent cache.
func (p *Pokedex) Cache() *cache.Cache { return p.cache }

// API returns the cache-first PokeAPI client.
func (p *Pokedex) API() *pokeapi.Client { return p.api }

// Speech returns the text-to-speech client.
func (p *Pokedex) Speech() *tts.Client { return p.speech }

// Limiter returns the rate limiter guarding speech synthesis.
func (p *Pokedex) Limiter() *ratelimit.Limiter { return p.limiter }

// Fetch returns the retrying HTTP client.
func (p *Pokedex) Fetch() *fetch.Client { return p.fetch }

// Config returns the effective configuration.
func (p *Pokedex) Config() *config.Config { return p.cfg }

// Handler returns the HTTP API.
func (p *Pokedex) Handler() http.Handler { return p.server.Handler() }

// Run drives the background maintenance until ctx is done: bloom filter
// rebuilds, rate limiter sweeps, and a one-off species warmup.
func (p *Pokedex) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.cache.Run(ctx)
		return nil
	})
	g.Go(func() error {
		p.limiter.Run(ctx)
		return nil
	})
	g.Go(func() error {
		if err := p.api.WarmSpecies(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Warn("Species warmup incomplete", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}

// Serve runs the HTTP API and the background maintenance until ctx is done.
func (p *Pokedex) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(ctx) })
	g.Go(func() error {
		defer cancel()
		return p.server.ListenAndServe(ctx)
	})
	return g.Wait()
}

// Close 關閉 Pokedex，釋放資源
func (p *Pokedex) Close() error {
	if p.backend == nil {
		return nil
	}
	if err := storage.Close(p.backend); err != nil {
		return fmt.Errorf("failed to close cache backend: %w", err)
	}
	return nil
}
