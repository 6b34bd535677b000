package config

import (
	"errors"
	"testing"
	"time"

	"goflare.io/pokedex/internal/retrier"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}

	if cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("cache ttl = %v, want 24h", cfg.Cache.TTL)
	}
	if cfg.Cache.Prefix != "pokedex_cache_" || cfg.Cache.Version != "v1" {
		t.Errorf("unexpected cache namespace %q/%q", cfg.Cache.Prefix, cfg.Cache.Version)
	}
	if cfg.Fetch.MaxRetries != 3 || cfg.Fetch.BaseDelay != time.Second {
		t.Errorf("unexpected fetch defaults %d/%v", cfg.Fetch.MaxRetries, cfg.Fetch.BaseDelay)
	}
	if cfg.RateLimit.MaxRequests != 10 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("unexpected rate limit defaults %d/%v", cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	}
	if cfg.Logger == nil {
		t.Error("logger must default to a no-op logger")
	}
}

func TestNewConfigOptions(t *testing.T) {
	cfg, err := NewConfig(
		WithCacheTTL(time.Hour),
		WithCacheVersion("v2"),
		WithRateLimit(5, time.Second),
		WithRetries(4, 10*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	if cfg.Cache.TTL != time.Hour || cfg.Cache.Version != "v2" {
		t.Errorf("cache options not applied: %v %q", cfg.Cache.TTL, cfg.Cache.Version)
	}
	if cfg.RateLimit.MaxRequests != 5 || cfg.RateLimit.Window != time.Second {
		t.Errorf("rate limit options not applied")
	}
	if cfg.Fetch.MaxRetries != 4 || cfg.Fetch.BaseDelay != 10*time.Millisecond {
		t.Errorf("retry options not applied")
	}
}

func TestNewConfigRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want error
	}{
		{"zero ttl", WithCacheTTL(0), ErrInvalidTTL},
		{"zero retries", WithRetries(0, time.Second), ErrInvalidMaxRetries},
		{"sub-millisecond delay", WithRetries(3, 500*time.Microsecond), retrier.ErrInvalidBaseDelay},
		{"zero rate", WithRateLimit(0, time.Second), ErrInvalidRateLimit},
		{"bad proxy", WithTrustedProxies("10.0.0.0/8", "not-an-ip"), ErrInvalidProxy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.opt)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "secret")
	t.Setenv("ELEVENLABS_VOICE_ID", "voice-1")
	t.Setenv("POKEDEX_STATIC_DIR", "/srv/data")
	t.Setenv("POKEDEX_REDIS_ADDR", "redis:6379")

	cfg, err := NewConfig(FromEnv())
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	if cfg.TTS.APIKey != "secret" || cfg.TTS.VoiceID != "voice-1" {
		t.Errorf("tts env not loaded: %+v", cfg.TTS)
	}
	if cfg.PokeAPI.StaticDir != "/srv/data" {
		t.Errorf("static dir = %q", cfg.PokeAPI.StaticDir)
	}
	if cfg.PokeAPI.BaseURL != "https://pokeapi.co/api/v2" {
		t.Errorf("unset variable overwrote base url: %q", cfg.PokeAPI.BaseURL)
	}
	if cfg.Cache.RedisAddr != "redis:6379" {
		t.Errorf("redis addr = %q", cfg.Cache.RedisAddr)
	}
}

func TestValidateRejectsSubMillisecondBaseDelay(t *testing.T) {
	cfg, err := NewConfig()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Fetch.BaseDelay = 0
	if err := cfg.Validate(); !errors.Is(err, retrier.ErrInvalidBaseDelay) {
		t.Errorf("Validate = %v, want ErrInvalidBaseDelay", err)
	}
}
