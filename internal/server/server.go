// Package server exposes the Pokédex data and speech endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"goflare.io/pokedex/internal/cache"
	"goflare.io/pokedex/internal/config"
	"goflare.io/pokedex/internal/models"
	"goflare.io/pokedex/internal/pokeapi"
	"goflare.io/pokedex/internal/ratelimit"
	"goflare.io/pokedex/internal/utils"
)

const shutdownTimeout = 10 * time.Second

// PokemonSource is implemented by *pokeapi.Client.
type PokemonSource interface {
	Generation(ctx context.Context, n int) ([]pokeapi.Pokemon, error)
	Pokemon(ctx context.Context, id int) (pokeapi.Pokemon, error)
	Species(ctx context.Context, id int) (pokeapi.Species, error)
	Locations(ctx context.Context, id int) ([]pokeapi.LocationArea, error)
}

// Synthesizer is implemented by *tts.Client.
type Synthesizer interface {
	Configured() bool
	Validate(text string) error
	Synthesize(ctx context.Context, text string) ([]byte, error)
	MaxTextLength() int
}

// CacheInspector is implemented by *cache.Cache.
type CacheInspector interface {
	Stats(ctx context.Context) cache.Stats
	IsAvailable(ctx context.Context) bool
	IsWarmed(ctx context.Context, keyPrefix string, n int) bool
	Metrics() *models.Metrics
}

// Deps are the components served by the HTTP API.
type Deps struct {
	Pokemon PokemonSource
	Speech  Synthesizer
	Limiter *ratelimit.Limiter
	Cache   CacheInspector
}

type Server struct {
	cfg        config.ServerConfig
	trusted    []netip.Prefix
	generation int
	ttsRule    ratelimit.Rule
	deps       Deps
	logger     *zap.Logger
	now        func() time.Time
	handler    http.Handler
}

// New creates a Server and builds its routes.
func New(cfg *config.Config, deps Deps) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	trusted, err := utils.ParsePrefixes(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("Ignoring trusted proxies", zap.Error(err))
		trusted = nil
	}

	s := &Server{
		cfg:        cfg.Server,
		trusted:    trusted,
		generation: cfg.PokeAPI.SpeciesCount,
		ttsRule: ratelimit.Rule{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
		},
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tts", s.handleTTS)
	mux.HandleFunc("GET /api/pokemon", s.handleGeneration)
	mux.HandleFunc("GET /api/pokemon/{id}", s.handlePokemon)
	mux.HandleFunc("GET /api/pokemon/{id}/species", s.handleSpecies)
	mux.HandleFunc("GET /api/pokemon/{id}/locations", s.handleLocations)
	mux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)

	s.handler = Chain(mux,
		Recover(logger),
		RequestLogger(logger, s.clientAddress),
		SecurityHeaders(cfg.Server.Production),
		CORS(),
	)
	return s
}

// clientAddress identifies the caller of r for rate limiting and logs.
func (s *Server) clientAddress(r *http.Request) string {
	return utils.ClientAddress(r, s.trusted)
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
