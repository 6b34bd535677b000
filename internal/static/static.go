// Package static reads and writes the pre-downloaded PokeAPI dataset.
//
// Layout of the data directory:
//
//	pokemon-list.json       list response
//	pokemon-{id}.json       one Pokémon
//	all-pokemon.json        array of every Pokémon
//	species-{id}.json       one species
//	all-species.json        array of every species
//	locations-{id}.json     encounters of one Pokémon
//	all-locations.json      object of encounters keyed by id
package static

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Kind names a resource type of the dataset.
type Kind string

const (
	KindPokemon   Kind = "pokemon"
	KindSpecies   Kind = "species"
	KindLocations Kind = "locations"
)

// ListFile is the name of the list response file.
const ListFile = "pokemon-list.json"

// ErrNotFound is returned when neither the per-id file nor the combined file holds the resource.
var ErrNotFound = errors.New("static: resource not found")

// FileName returns the per-id file name of kind.
func FileName(kind Kind, id int) string {
	return fmt.Sprintf("%s-%d.json", kind, id)
}

// CombinedName returns the combined file name of kind.
func CombinedName(kind Kind) string {
	return fmt.Sprintf("all-%s.json", kind)
}

// Source reads the dataset from a file system.
type Source struct {
	fsys   fs.FS
	logger *zap.Logger
}

// New creates a Source reading from fsys.
func New(fsys fs.FS, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{fsys: fsys, logger: logger}
}

// Open creates a Source over dir. An empty dir yields nil, meaning no static data.
func Open(dir string, logger *zap.Logger) *Source {
	if dir == "" {
		return nil
	}
	return New(os.DirFS(dir), logger)
}

// List decodes the list response into v.
func (s *Source) List(v any) error {
	return s.decodeFile(ListFile, v)
}

// Has reports whether the combined file of kind exists.
func (s *Source) Has(kind Kind) bool {
	_, err := fs.Stat(s.fsys, CombinedName(kind))
	return err == nil
}

// Load decodes the resource of kind identified by ref (an id or a name) into v.
// The per-id file is tried first, then the combined file.
func (s *Source) Load(kind Kind, ref string, v any) error {
	if id, err := strconv.Atoi(ref); err == nil {
		err := s.decodeFile(FileName(kind, id), v)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	raw, err := s.scanCombined(kind, ref)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s %s from %s: %w", kind, ref, CombinedName(kind), err)
	}
	s.logger.Debug("Served from combined static file",
		zap.String("kind", string(kind)),
		zap.String("ref", ref))
	return nil
}

// scanCombined finds ref in the combined file of kind. Locations are keyed by
// id; the other kinds are arrays matched on id or name.
func (s *Source) scanCombined(kind Kind, ref string) (json.RawMessage, error) {
	data, err := s.readFile(CombinedName(kind))
	if err != nil {
		return nil, err
	}

	if kind == KindLocations {
		var byID map[string]json.RawMessage
		if err := json.Unmarshal(data, &byID); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", CombinedName(kind), err)
		}
		if raw, ok := byID[ref]; ok {
			return raw, nil
		}
		return nil, ErrNotFound
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", CombinedName(kind), err)
	}
	for _, raw := range items {
		var probe struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}
		if strconv.Itoa(probe.ID) == ref || strings.EqualFold(probe.Name, ref) {
			return raw, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Source) decodeFile(name string, v any) error {
	data, err := s.readFile(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

func (s *Source) readFile(name string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// Save writes v as indented JSON to dir/name, replacing any existing file.
func Save(dir, name string, v any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
