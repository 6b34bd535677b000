package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"goflare.io/pokedex/internal/models"
	"goflare.io/pokedex/internal/pokeapi"
	"goflare.io/pokedex/internal/tts"
)

const (
	maxTTSBodyBytes = 64 << 10

	msgNotFound    = "Pokemon not found"
	msgUnavailable = "Unable to load Pokemon data. Please try again in a moment."
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	decision := s.deps.Limiter.Check(s.clientAddress(r), s.ttsRule)
	for k, v := range decision.Headers(s.now()) {
		w.Header().Set(k, v)
	}
	if !decision.Admitted {
		writeJSONError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		return
	}

	if !s.deps.Speech.Configured() {
		writeJSONError(w, http.StatusInternalServerError, "ElevenLabs API key not configured")
		return
	}

	var body struct {
		Text any `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTTSBodyBytes)).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	text, ok := body.Text.(string)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "Text is required")
		return
	}

	switch err := s.deps.Speech.Validate(text); {
	case errors.Is(err, tts.ErrEmptyText):
		writeJSONError(w, http.StatusBadRequest, "Text is required")
		return
	case errors.Is(err, tts.ErrTextTooLong):
		writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("Text too long. Maximum %d characters allowed.", s.deps.Speech.MaxTextLength()))
		return
	case err != nil:
		writeJSONError(w, http.StatusBadRequest, "Invalid text")
		return
	}

	audio, err := s.deps.Speech.Synthesize(r.Context(), text)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "Failed to generate speech")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

func (s *Server) handleGeneration(w http.ResponseWriter, r *http.Request) {
	mons, err := s.deps.Pokemon.Generation(r.Context(), s.generation)
	if err != nil {
		s.logger.Error("Failed to load Pokemon data", zap.Error(err))
		writeJSONError(w, http.StatusServiceUnavailable, msgUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pokemon": mons})
}

func (s *Server) handlePokemon(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	p, err := s.deps.Pokemon.Pokemon(r.Context(), id)
	s.respond(w, p, err)
}

func (s *Server) handleSpecies(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	sp, err := s.deps.Pokemon.Species(r.Context(), id)
	s.respond(w, sp, err)
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	areas, err := s.deps.Pokemon.Locations(r.Context(), id)
	if areas == nil && err == nil {
		areas = []pokeapi.LocationArea{}
	}
	s.respond(w, areas, err)
}

type cacheStatsResponse struct {
	Count         int                    `json:"count"`
	TotalBytes    int64                  `json:"total_bytes"`
	Available     bool                   `json:"available"`
	SpeciesWarmed bool                   `json:"species_warmed"`
	Metrics       models.MetricsSnapshot `json:"metrics"`
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := s.deps.Cache.Stats(ctx)
	writeJSON(w, http.StatusOK, cacheStatsResponse{
		Count:         stats.Count,
		TotalBytes:    stats.TotalBytes,
		Available:     s.deps.Cache.IsAvailable(ctx),
		SpeciesWarmed: s.deps.Cache.IsWarmed(ctx, "species_", s.generation),
		Metrics:       s.deps.Cache.Metrics().Snapshot(),
	})
}

// pathID parses the {id} segment, answering 404 when it is not a positive integer.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 1 {
		writeJSONError(w, http.StatusNotFound, msgNotFound)
		return 0, false
	}
	return id, true
}

func (s *Server) respond(w http.ResponseWriter, payload any, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, payload)
	case errors.Is(err, pokeapi.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, msgNotFound)
	default:
		writeJSONError(w, http.StatusServiceUnavailable, msgUnavailable)
	}
}
