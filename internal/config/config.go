package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/pokedex/internal/retrier"
	"goflare.io/pokedex/internal/utils"
	"goflare.io/pokedex/pkg/serialization"
)

// Backend kinds accepted by CacheConfig.Backend.
const (
	BackendNone      = "none"
	BackendMemory    = "memory"
	BackendRistretto = "ristretto"
	BackendFile      = "file"
	BackendRedis     = "redis"
	BackendTiered    = "tiered"
)

// Config is the configuration shared by every pokedex component.
type Config struct {
	Cache         CacheConfig
	Fetch         FetchConfig
	RateLimit     RateLimitConfig
	PokeAPI       PokeAPIConfig
	TTS           TTSConfig
	Server        ServerConfig
	Serialization SerializationConfig
	Logger        *zap.Logger
}

// CacheConfig configures the persistent cache and its storage backend.
type CacheConfig struct {
	Prefix  string
	Version string
	TTL     time.Duration

	Backend          string
	MemoryQuota      int64
	RistrettoMaxCost int64
	FileDir          string
	FileCapacity     int64
	CompressionLevel int
	RedisAddr        string `env:"POKEDEX_REDIS_ADDR"`
	RedisPassword    string `env:"POKEDEX_REDIS_PASSWORD"`
	RedisDB          int    `env:"POKEDEX_REDIS_DB"`

	BloomFilterSettings BloomFilterConfig
}

// BloomFilterConfig configures the negative-lookup filter in front of the backend.
type BloomFilterConfig struct {
	Enabled           bool
	ExpectedItems     uint
	FalsePositiveRate float64
	RebuildInterval   time.Duration
}

// FetchConfig configures resilient fetch.
type FetchConfig struct {
	MaxRetries     int
	BaseDelay      time.Duration
	Multiplier     float64
	Timeout        time.Duration
	UserAgent      string
	EnableBreaker  bool
	CircuitBreaker gobreaker.Settings
}

// RateLimitConfig configures the fixed-window limiter.
type RateLimitConfig struct {
	MaxRequests   int
	Window        time.Duration
	SweepInterval time.Duration
	MaxEntries    int
	EvictCount    int
}

// PokeAPIConfig configures the PokeAPI client and static data source.
type PokeAPIConfig struct {
	BaseURL           string `env:"POKEDEX_API_URL"`
	StaticDir         string `env:"POKEDEX_STATIC_DIR"`
	SpeciesCount      int
	BatchSize         int
	RequestsPerSecond float64
}

// TTSConfig configures the ElevenLabs client. Credentials come from the environment.
type TTSConfig struct {
	APIKey          string `env:"ELEVENLABS_API_KEY"`
	VoiceID         string `env:"ELEVENLABS_VOICE_ID" envDefault:"duIivFCQWvNj2G0O7aV2"`
	BaseURL         string `env:"ELEVENLABS_API_URL" envDefault:"https://api.elevenlabs.io/v1"`
	ModelID         string
	Stability       float64
	SimilarityBoost float64
	MaxTextLength   int
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr       string `env:"POKEDEX_ADDR"`
	Production bool   `env:"POKEDEX_PRODUCTION"`

	// TrustedProxies are the peers whose X-Forwarded-For header is honored.
	TrustedProxies []string `env:"POKEDEX_TRUSTED_PROXIES" envSeparator:","`
}

// SerializationConfig 序列化相關配置
type SerializationConfig struct {
	Type    string
	Encoder func(io.Writer) serialization.Encoder
	Decoder func(io.Reader) serialization.Decoder
}

// Option 函數類型
type Option func(*Config) error

var (
	ErrInvalidTTL        = errors.New("cache ttl must be positive")
	ErrInvalidMaxRetries = errors.New("max retries must be at least 1")
	ErrInvalidRateLimit  = errors.New("rate limit must allow at least 1 request per window")
	ErrInvalidProxy      = errors.New("invalid trusted proxy")
)

// NewConfig creates a Config with defaults, then applies options in order.
func NewConfig(options ...Option) (*Config, error) {
	cfg := &Config{
		Cache: CacheConfig{
			Prefix:           "pokedex_cache_",
			Version:          "v1",
			TTL:              24 * time.Hour,
			Backend:          BackendMemory,
			MemoryQuota:      5 * 1024 * 1024, // 5MB
			RistrettoMaxCost: 64 * 1024 * 1024,
			FileCapacity:     256 * 1024 * 1024,
			CompressionLevel: 3,
			RedisAddr:        "localhost:6379",
			BloomFilterSettings: BloomFilterConfig{
				Enabled:           true,
				ExpectedItems:     1000,
				FalsePositiveRate: 0.01,
				RebuildInterval:   1 * time.Hour,
			},
		},
		Fetch: FetchConfig{
			MaxRetries:    3,
			BaseDelay:     time.Second,
			Multiplier:    2,
			Timeout:       30 * time.Second,
			UserAgent:     "pokedex/1.0",
			EnableBreaker: true,
			CircuitBreaker: gobreaker.Settings{
				Name:        "FetchCircuitBreaker",
				MaxRequests: 3,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures > 5
				},
			},
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   10,
			Window:        time.Minute,
			SweepInterval: 5 * time.Minute,
			MaxEntries:    10000,
			EvictCount:    5000,
		},
		PokeAPI: PokeAPIConfig{
			BaseURL:           "https://pokeapi.co/api/v2",
			SpeciesCount:      151,
			BatchSize:         20,
			RequestsPerSecond: 10,
		},
		TTS: TTSConfig{
			VoiceID:         "duIivFCQWvNj2G0O7aV2",
			BaseURL:         "https://api.elevenlabs.io/v1",
			ModelID:         "eleven_turbo_v2_5",
			Stability:       0.5,
			SimilarityBoost: 0.75,
			MaxTextLength:   5000,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Serialization: SerializationConfig{
			Type:    serialization.JSONType,
			Encoder: serialization.JsonEncoder,
			Decoder: serialization.JsonDecoder,
		},
		Logger: zap.NewNop(),
	}

	// 應用所有選項
	for _, option := range options {
		if err := option(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the invariants the components rely on.
func (c *Config) Validate() error {
	if c.Cache.TTL <= 0 {
		return ErrInvalidTTL
	}
	if c.Fetch.MaxRetries < 1 {
		return ErrInvalidMaxRetries
	}
	if c.Fetch.BaseDelay < time.Millisecond {
		return retrier.ErrInvalidBaseDelay
	}
	if c.RateLimit.MaxRequests < 1 || c.RateLimit.Window <= 0 {
		return ErrInvalidRateLimit
	}
	if _, err := utils.ParsePrefixes(c.Server.TrustedProxies); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProxy, err)
	}
	return nil
}

// WithLogger 設置自定義 Logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger != nil {
			c.Logger = logger
		}
		return nil
	}
}

// WithCacheTTL sets how long a stored entry stays valid.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Config) error {
		if ttl <= 0 {
			return ErrInvalidTTL
		}
		c.Cache.TTL = ttl
		return nil
	}
}

// WithCacheVersion sets the entry format tag; entries written under another tag are discarded.
func WithCacheVersion(version string) Option {
	return func(c *Config) error {
		if version == "" {
			return errors.New("cache version must not be empty")
		}
		c.Cache.Version = version
		return nil
	}
}

// WithRateLimit sets the per-identifier budget of the TTS endpoint.
func WithRateLimit(maxRequests int, window time.Duration) Option {
	return func(c *Config) error {
		if maxRequests < 1 || window <= 0 {
			return ErrInvalidRateLimit
		}
		c.RateLimit.MaxRequests = maxRequests
		c.RateLimit.Window = window
		return nil
	}
}

// WithRetries sets the default retry ceiling and base delay of resilient fetch.
func WithRetries(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Config) error {
		if maxRetries < 1 {
			return ErrInvalidMaxRetries
		}
		if baseDelay < time.Millisecond {
			return retrier.ErrInvalidBaseDelay
		}
		c.Fetch.MaxRetries = maxRetries
		c.Fetch.BaseDelay = baseDelay
		return nil
	}
}

// WithTrustedProxies sets the proxies allowed to report the client address
// through X-Forwarded-For, as CIDR prefixes or single addresses.
func WithTrustedProxies(proxies ...string) Option {
	return func(c *Config) error {
		if _, err := utils.ParsePrefixes(proxies); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidProxy, err)
		}
		c.Server.TrustedProxies = proxies
		return nil
	}
}
