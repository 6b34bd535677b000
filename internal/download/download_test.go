package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"goflare.io/pokedex/internal/config"
	"goflare.io/pokedex/internal/fetch"
	"goflare.io/pokedex/internal/pokeapi"
	"goflare.io/pokedex/internal/static"
)

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /pokemon", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count":3,"results":[`+
			`{"name":"bulbasaur","url":"https://pokeapi.co/api/v2/pokemon/1/"},`+
			`{"name":"ivysaur","url":"https://pokeapi.co/api/v2/pokemon/2/"},`+
			`{"name":"venusaur","url":"https://pokeapi.co/api/v2/pokemon/3/"}]}`)
	})
	mux.HandleFunc("GET /pokemon/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		fmt.Fprintf(w, `{"id":%s,"name":"mon-%s"}`, id, id)
	})
	mux.HandleFunc("GET /pokemon/{id}/encounters", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"location_area":{"name":"route-1","url":""}}]`)
	})
	mux.HandleFunc("GET /pokemon-species/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "2" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"id":%s,"name":"mon-%s"}`, r.PathValue("id"), r.PathValue("id"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newDownloader(t *testing.T, srv *httptest.Server, dir string) *Downloader {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg, err := config.NewConfig(config.WithLogger(logger))
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	cfg.PokeAPI.BaseURL = srv.URL
	cfg.PokeAPI.BatchSize = 2
	cfg.PokeAPI.RequestsPerSecond = 0
	cfg.Fetch.EnableBreaker = false
	return New(cfg.PokeAPI, fetch.New(cfg.Fetch, srv.Client(), logger), dir, logger)
}

func TestRunWritesDataset(t *testing.T) {
	srv := newUpstream(t)
	dir := t.TempDir()

	report, err := newDownloader(t, srv, dir).Run(context.Background(), 3)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := report.Saved[static.KindPokemon]; got != 3 {
		t.Errorf("saved pokemon = %d, want 3", got)
	}
	if got := report.Saved[static.KindSpecies]; got != 2 {
		t.Errorf("saved species = %d, want 2", got)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("failures = %v, want one", report.Failures)
	}
	f := report.Failures[0]
	var statusErr *fetch.StatusError
	if f.Kind != static.KindSpecies || f.ID != 2 || !errors.As(f.Err, &statusErr) {
		t.Errorf("unexpected failure %v", f)
	}

	// The dataset must be readable by the static source.
	src := static.Open(dir, zaptest.NewLogger(t))
	var list pokeapi.ListResponse
	if err := src.List(&list); err != nil || len(list.Results) != 3 {
		t.Fatalf("list = %+v, %v", list, err)
	}
	var p pokeapi.Pokemon
	if err := src.Load(static.KindPokemon, "3", &p); err != nil || p.Name != "mon-3" {
		t.Errorf("pokemon 3 = %+v, %v", p, err)
	}
	if _, err := os.Stat(filepath.Join(dir, static.FileName(static.KindSpecies, 2))); !os.IsNotExist(err) {
		t.Errorf("failed species must not be written, stat err = %v", err)
	}
}

func TestRunCombinedFiles(t *testing.T) {
	srv := newUpstream(t)
	dir := t.TempDir()

	if _, err := newDownloader(t, srv, dir).Run(context.Background(), 3); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, static.CombinedName(static.KindPokemon)))
	if err != nil {
		t.Fatalf("read combined pokemon: %v", err)
	}
	var all []pokeapi.Pokemon
	if err := json.Unmarshal(data, &all); err != nil {
		t.Fatalf("decode combined pokemon: %v", err)
	}
	for i, p := range all {
		if p.ID != i+1 {
			t.Errorf("combined[%d].ID = %d, want %d", i, p.ID, i+1)
		}
	}

	data, err = os.ReadFile(filepath.Join(dir, static.CombinedName(static.KindLocations)))
	if err != nil {
		t.Fatalf("read combined locations: %v", err)
	}
	var byID map[string][]pokeapi.LocationArea
	if err := json.Unmarshal(data, &byID); err != nil {
		t.Fatalf("decode combined locations: %v", err)
	}
	if len(byID) != 3 || len(byID["2"]) != 1 {
		t.Errorf("unexpected locations %v", byID)
	}
}

func TestRunListFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := newDownloader(t, srv, t.TempDir()).Run(context.Background(), 3)
	var statusErr *fetch.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("got %v, want 404 status error", err)
	}
}

func TestRunCancelled(t *testing.T) {
	srv := newUpstream(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newDownloader(t, srv, t.TempDir()).Run(ctx, 3); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
