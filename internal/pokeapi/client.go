// Package pokeapi reads Pokémon data cache-first, from the static dataset
// when one is configured and from the PokeAPI otherwise.
package pokeapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"goflare.io/pokedex/internal/cache"
	"goflare.io/pokedex/internal/config"
	"goflare.io/pokedex/internal/fetch"
	"goflare.io/pokedex/internal/loader"
	"goflare.io/pokedex/internal/static"
)

var (
	// ErrNotFound is returned when no source knows the requested resource.
	ErrNotFound = errors.New("pokemon not found")
	// ErrFetchFailed hides upstream failure details from callers.
	ErrFetchFailed = errors.New("failed to fetch Pokemon data")
	// ErrInvalidPage is returned for a negative limit or offset.
	ErrInvalidPage = errors.New("limit and offset must not be negative")
)

const placeholderFlavorText = "Pokédex data for this Pokémon is currently unavailable."

// Client is safe for concurrent use.
type Client struct {
	cfg    config.PokeAPIConfig
	fetch  *fetch.Client
	static *static.Source
	cache  *cache.Cache
	loader *loader.Loader
	logger *zap.Logger
}

// New creates a Client. src may be nil when no static dataset is available.
func New(cfg config.PokeAPIConfig, f *fetch.Client, src *static.Source, c *cache.Cache, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		fetch:  f,
		static: src,
		cache:  c,
		loader: loader.New(c, logger),
		logger: logger,
	}
}

// List returns one page of the Pokémon list.
func (c *Client) List(ctx context.Context, limit, offset int) ([]NamedResource, error) {
	if limit < 0 || offset < 0 {
		return nil, ErrInvalidPage
	}
	key := fmt.Sprintf("pokemon_list_%d_%d", limit, offset)
	return loader.Get(ctx, c.loader, key, func(ctx context.Context) ([]NamedResource, error) {
		if c.static != nil {
			var list ListResponse
			err := c.static.List(&list)
			if err == nil && offset+limit <= len(list.Results) {
				return list.Results[offset : offset+limit], nil
			}
			c.logStaticMiss("list", key, err)
		}

		var list ListResponse
		path := fmt.Sprintf("/pokemon?limit=%d&offset=%d", limit, offset)
		if err := c.getJSON(ctx, path, &list); err != nil {
			return nil, err
		}
		return list.Results, nil
	})
}

// Pokemon returns the details of one Pokémon.
func (c *Client) Pokemon(ctx context.Context, id int) (Pokemon, error) {
	return loader.Get(ctx, c.loader, "pokemon_"+strconv.Itoa(id), func(ctx context.Context) (Pokemon, error) {
		var p Pokemon
		if c.loadStatic(static.KindPokemon, id, &p) {
			return p, nil
		}
		err := c.getJSON(ctx, "/pokemon/"+strconv.Itoa(id), &p)
		return p, err
	})
}

// Species returns the species entry of one Pokémon. When the static dataset
// has a species file but lacks this id, a placeholder is returned.
func (c *Client) Species(ctx context.Context, id int) (Species, error) {
	return loader.Get(ctx, c.loader, "species_"+strconv.Itoa(id), func(ctx context.Context) (Species, error) {
		var s Species
		if c.loadStatic(static.KindSpecies, id, &s) {
			return s, nil
		}
		if c.static != nil && c.static.Has(static.KindSpecies) {
			c.logger.Warn("Species missing from static data, using placeholder", zap.Int("id", id))
			return c.placeholderSpecies(id), nil
		}
		err := c.getJSON(ctx, "/pokemon-species/"+strconv.Itoa(id), &s)
		return s, err
	})
}

// Locations returns the encounter locations of one Pokémon.
func (c *Client) Locations(ctx context.Context, id int) ([]LocationArea, error) {
	return loader.Get(ctx, c.loader, "locations_"+strconv.Itoa(id), func(ctx context.Context) ([]LocationArea, error) {
		var areas []LocationArea
		if c.loadStatic(static.KindLocations, id, &areas) {
			return areas, nil
		}
		if err := c.getJSON(ctx, "/pokemon/"+strconv.Itoa(id)+"/encounters", &areas); err != nil {
			return nil, err
		}
		return areas, nil
	})
}

// Generation returns the details of the first n Pokémon in list order.
func (c *Client) Generation(ctx context.Context, n int) ([]Pokemon, error) {
	list, err := c.List(ctx, n, 0)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(list))
	for _, item := range list {
		if id := IDFromURL(item.URL); id > 0 {
			ids = append(ids, id)
		}
	}
	return FetchInBatches(ctx, ids, c.cfg.BatchSize, c.Pokemon)
}

// WarmSpecies loads every species of the configured generation into the
// cache unless all of them are already cached.
func (c *Client) WarmSpecies(ctx context.Context) error {
	if c.cache.IsWarmed(ctx, "species_", c.cfg.SpeciesCount) {
		c.logger.Debug("Species cache already warm", zap.Int("count", c.cfg.SpeciesCount))
		return nil
	}

	if _, err := FetchInBatches(ctx, Range(c.cfg.SpeciesCount), c.cfg.BatchSize, c.Species); err != nil {
		c.logger.Warn("Failed to prefetch species data", zap.Error(err))
		return err
	}
	c.logger.Info("Cached all species data", zap.Int("count", c.cfg.SpeciesCount))
	return nil
}

func (c *Client) loadStatic(kind static.Kind, id int, v any) bool {
	if c.static == nil {
		return false
	}
	err := c.static.Load(kind, strconv.Itoa(id), v)
	if err == nil {
		return true
	}
	c.logStaticMiss(string(kind), strconv.Itoa(id), err)
	return false
}

func (c *Client) logStaticMiss(kind, ref string, err error) {
	if err == nil || errors.Is(err, static.ErrNotFound) {
		c.logger.Debug("Not in static data, fetching from network",
			zap.String("kind", kind),
			zap.String("ref", ref))
		return
	}
	c.logger.Warn("Failed to read static data, fetching from network",
		zap.String("kind", kind),
		zap.String("ref", ref),
		zap.Error(err))
}

func (c *Client) placeholderSpecies(id int) Species {
	name := "unknown"
	var p Pokemon
	if err := c.static.Load(static.KindPokemon, strconv.Itoa(id), &p); err == nil && p.Name != "" {
		name = p.Name
	}
	return Species{
		ID:   id,
		Name: name,
		FlavorTextEntries: []FlavorTextEntry{{
			FlavorText: placeholderFlavorText,
			Language:   NamedResource{Name: "en"},
			Version:    NamedResource{Name: "red"},
		}},
	}
}

// getJSON fetches path from the API. Failures are logged in detail and
// reported as ErrNotFound or ErrFetchFailed.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	err := c.fetch.GetJSON(ctx, c.cfg.BaseURL+path, v)
	if err == nil {
		return nil
	}

	var statusErr *fetch.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		c.logger.Info("PokeAPI resource not found", zap.String("path", path))
		return ErrNotFound
	}
	c.logger.Error("Failed to fetch from PokeAPI", zap.String("path", path), zap.Error(err))
	return ErrFetchFailed
}
