package static

import (
	"errors"
	"testing"
	"testing/fstest"

	"go.uber.org/zap/zaptest"
)

type species struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"pokemon-list.json":  {Data: []byte(`{"count":2,"results":[{"name":"bulbasaur","url":"https://pokeapi.co/api/v2/pokemon/1/"}]}`)},
		"species-1.json":     {Data: []byte(`{"id":1,"name":"bulbasaur"}`)},
		"all-species.json":   {Data: []byte(`[{"id":1,"name":"bulbasaur"},{"id":2,"name":"ivysaur"}]`)},
		"locations-1.json":   {Data: []byte(`[{"location_area":{"name":"pallet-town-area"}}]`)},
		"all-locations.json": {Data: []byte(`{"1":[],"4":[{"location_area":{"name":"route-3-area"}}]}`)},
	}
}

func TestLoadPrefersPerIDFile(t *testing.T) {
	s := New(testFS(), zaptest.NewLogger(t))

	var got species
	if err := s.Load(KindSpecies, "1", &got); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Name != "bulbasaur" {
		t.Errorf("got %+v", got)
	}
}

func TestLoadFallsBackToCombinedFile(t *testing.T) {
	s := New(testFS(), zaptest.NewLogger(t))

	tests := []struct {
		ref  string
		want string
	}{
		{"2", "ivysaur"},
		{"ivysaur", "ivysaur"},
		{"IVYSAUR", "ivysaur"},
	}
	for _, tt := range tests {
		var got species
		if err := s.Load(KindSpecies, tt.ref, &got); err != nil {
			t.Fatalf("Load(%q) failed: %v", tt.ref, err)
		}
		if got.Name != tt.want {
			t.Errorf("Load(%q) = %+v", tt.ref, got)
		}
	}
}

func TestLoadLocationsByKey(t *testing.T) {
	s := New(testFS(), zaptest.NewLogger(t))

	var got []struct {
		LocationArea struct {
			Name string `json:"name"`
		} `json:"location_area"`
	}
	if err := s.Load(KindLocations, "4", &got); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 1 || got[0].LocationArea.Name != "route-3-area" {
		t.Errorf("got %+v", got)
	}
}

func TestLoadNotFound(t *testing.T) {
	s := New(testFS(), zaptest.NewLogger(t))

	var got species
	if err := s.Load(KindSpecies, "151", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("species 151: err = %v, want ErrNotFound", err)
	}
	if err := s.Load(KindPokemon, "1", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("pokemon without files: err = %v, want ErrNotFound", err)
	}
}

func TestHas(t *testing.T) {
	s := New(testFS(), nil)
	if !s.Has(KindSpecies) || s.Has(KindPokemon) {
		t.Error("Has does not reflect the combined files")
	}
}

func TestList(t *testing.T) {
	s := New(testFS(), nil)

	var got struct {
		Count   int `json:"count"`
		Results []struct {
			Name string `json:"name"`
		} `json:"results"`
	}
	if err := s.List(&got); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if got.Count != 2 || got.Results[0].Name != "bulbasaur" {
		t.Errorf("got %+v", got)
	}
}

func TestSaveThenOpen(t *testing.T) {
	dir := t.TempDir()

	if err := Save(dir, FileName(KindSpecies, 7), species{ID: 7, Name: "squirtle"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var got species
	if err := Open(dir, nil).Load(KindSpecies, "7", &got); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Name != "squirtle" {
		t.Errorf("got %+v", got)
	}

	if Open("", nil) != nil {
		t.Error("empty dir must yield no source")
	}
}
