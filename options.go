package pokedex

import (
	"time"

	"go.uber.org/zap"

	"goflare.io/pokedex/internal/config"
	"goflare.io/pokedex/pkg/serialization"
)

// Option 定義初始化 Pokedex 的選項
type Option = config.Option

// WithLogger 設置自定義的日誌記錄器
func WithLogger(logger *zap.Logger) Option {
	return config.WithLogger(logger)
}

// WithCacheTTL sets how long cached responses stay valid.
func WithCacheTTL(ttl time.Duration) Option {
	return config.WithCacheTTL(ttl)
}

// WithCacheVersion sets the entry format tag. Bumping it discards older entries.
func WithCacheVersion(version string) Option {
	return config.WithCacheVersion(version)
}

// WithRateLimit sets the per-client budget of the speech endpoint.
func WithRateLimit(maxRequests int, window time.Duration) Option {
	return config.WithRateLimit(maxRequests, window)
}

// WithRetries sets the attempt ceiling and base backoff of outgoing requests.
func WithRetries(maxRetries int, baseDelay time.Duration) Option {
	return config.WithRetries(maxRetries, baseDelay)
}

// FromEnv reads credentials and locations from the environment.
func FromEnv() Option {
	return config.FromEnv()
}

// WithMemoryStore keeps the cache in process memory, bounded by quota bytes.
func WithMemoryStore(quota int64) Option {
	return func(cfg *config.Config) error {
		cfg.Cache.Backend = config.BackendMemory
		cfg.Cache.MemoryQuota = quota
		return nil
	}
}

// WithRistrettoStore keeps the cache in a ristretto cache of maxCost bytes.
func WithRistrettoStore(maxCost int64) Option {
	return func(cfg *config.Config) error {
		if maxCost <= 0 {
			return ErrInvalidCapacity
		}
		cfg.Cache.Backend = config.BackendRistretto
		cfg.Cache.RistrettoMaxCost = maxCost
		return nil
	}
}

// WithFileStore persists the cache under dir, bounded by capacity bytes.
func WithFileStore(dir string, capacity int64) Option {
	return func(cfg *config.Config) error {
		cfg.Cache.Backend = config.BackendFile
		cfg.Cache.FileDir = dir
		cfg.Cache.FileCapacity = capacity
		return nil
	}
}

// WithRedis persists the cache in Redis.
func WithRedis(addr, password string, db int) Option {
	return func(cfg *config.Config) error {
		cfg.Cache.Backend = config.BackendRedis
		cfg.Cache.RedisAddr = addr
		cfg.Cache.RedisPassword = password
		cfg.Cache.RedisDB = db
		return nil
	}
}

// WithTieredStore keeps a ristretto cache of localMaxCost bytes in front of Redis.
func WithTieredStore(localMaxCost int64, addr, password string, db int) Option {
	return func(cfg *config.Config) error {
		if localMaxCost <= 0 {
			return ErrInvalidCapacity
		}
		cfg.Cache.Backend = config.BackendTiered
		cfg.Cache.RistrettoMaxCost = localMaxCost
		cfg.Cache.RedisAddr = addr
		cfg.Cache.RedisPassword = password
		cfg.Cache.RedisDB = db
		return nil
	}
}

// WithoutStore disables caching; every lookup misses.
func WithoutStore() Option {
	return func(cfg *config.Config) error {
		cfg.Cache.Backend = config.BackendNone
		return nil
	}
}

// WithBloomFilter toggles the negative-lookup filter in front of the store.
func WithBloomFilter(enabled bool) Option {
	return func(cfg *config.Config) error {
		cfg.Cache.BloomFilterSettings.Enabled = enabled
		return nil
	}
}

// WithStaticDir serves Pokémon data from a downloaded dataset before the network.
func WithStaticDir(dir string) Option {
	return func(cfg *config.Config) error {
		cfg.PokeAPI.StaticDir = dir
		return nil
	}
}

// WithAPIBaseURL points the client at another PokeAPI deployment.
func WithAPIBaseURL(url string) Option {
	return func(cfg *config.Config) error {
		cfg.PokeAPI.BaseURL = url
		return nil
	}
}

// WithTTSCredentials sets the ElevenLabs API key and voice.
func WithTTSCredentials(apiKey, voiceID string) Option {
	return func(cfg *config.Config) error {
		cfg.TTS.APIKey = apiKey
		if voiceID != "" {
			cfg.TTS.VoiceID = voiceID
		}
		return nil
	}
}

// WithTTSBaseURL points the speech client at another ElevenLabs endpoint.
func WithTTSBaseURL(url string) Option {
	return func(cfg *config.Config) error {
		cfg.TTS.BaseURL = url
		return nil
	}
}

// WithAddr sets the listen address of the HTTP API.
func WithAddr(addr string) Option {
	return func(cfg *config.Config) error {
		cfg.Server.Addr = addr
		return nil
	}
}

// WithTrustedProxies lists the reverse proxies whose X-Forwarded-For header
// identifies the client. Without it the peer address is used.
func WithTrustedProxies(proxies ...string) Option {
	return config.WithTrustedProxies(proxies...)
}

// WithProduction enables production-only behavior such as HSTS.
func WithProduction(production bool) Option {
	return func(cfg *config.Config) error {
		cfg.Server.Production = production
		return nil
	}
}

// WithCircuitBreaker toggles the circuit breaker around outgoing requests.
func WithCircuitBreaker(enabled bool) Option {
	return func(cfg *config.Config) error {
		cfg.Fetch.EnableBreaker = enabled
		return nil
	}
}

// WithSerialization 設置序列化方式
func WithSerialization(serializer string) Option {
	return func(cfg *config.Config) error {
		enc, dec, err := serialization.Lookup(serializer)
		if err != nil {
			return err
		}
		cfg.Serialization = config.SerializationConfig{
			Type:    serializer,
			Encoder: enc,
			Decoder: dec,
		}
		return nil
	}
}
