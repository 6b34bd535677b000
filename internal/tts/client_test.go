package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"goflare.io/pokedex/internal/config"
	"goflare.io/pokedex/internal/fetch"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, apiKey string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg, err := config.NewConfig(config.WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	cfg.TTS.APIKey = apiKey
	cfg.TTS.BaseURL = srv.URL
	cfg.TTS.VoiceID = "voice-1"
	cfg.Fetch.EnableBreaker = false
	return New(cfg.TTS, fetch.New(cfg.Fetch, srv.Client(), cfg.Logger), cfg.Logger)
}

func TestSynthesize(t *testing.T) {
	var got synthesisRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/text-to-speech/voice-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "secret" || r.Header.Get("Accept") != "audio/mpeg" {
			t.Errorf("unexpected headers %v", r.Header)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3audio"))
	}, "secret")

	audio, err := c.Synthesize(context.Background(), "Bulbasaur, the seed Pokémon.")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(audio) != "ID3audio" {
		t.Errorf("audio = %q", audio)
	}
	if got.ModelID != "eleven_turbo_v2_5" || got.VoiceSettings.Stability != 0.5 || got.VoiceSettings.SimilarityBoost != 0.75 {
		t.Errorf("request = %+v", got)
	}
}

func TestSynthesizeWithoutKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	}, "")

	if _, err := c.Synthesize(context.Background(), "hi"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestValidate(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {}, "secret")

	if err := c.Validate(""); !errors.Is(err, ErrEmptyText) {
		t.Errorf("empty: %v", err)
	}
	if err := c.Validate(strings.Repeat("é", 5000)); err != nil {
		t.Errorf("5000 characters rejected: %v", err)
	}
	if err := c.Validate(strings.Repeat("a", 5001)); !errors.Is(err, ErrTextTooLong) {
		t.Errorf("5001 characters: %v", err)
	}
}

func TestSynthesizeUpstreamErrorIsGeneric(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exhausted for key secret", http.StatusUnauthorized)
	}, "secret")

	_, err := c.Synthesize(context.Background(), "hi")
	if !errors.Is(err, ErrSynthesisFailed) {
		t.Fatalf("err = %v, want ErrSynthesisFailed", err)
	}
	if strings.Contains(err.Error(), "secret") || strings.Contains(err.Error(), "quota") {
		t.Errorf("error leaks upstream detail: %v", err)
	}
}
