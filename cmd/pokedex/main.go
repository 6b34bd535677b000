// Command pokedex serves the Pokédex API and manages its data.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"goflare.io/pokedex"
	"goflare.io/pokedex/internal/config"
)

type app struct {
	v          *viper.Viper
	configFile string
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:          "pokedex",
		Short:        "Pokédex API server and data tools",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default ./pokedex.yaml)")
	flags.Bool("debug", false, "enable development logging")
	flags.String("backend", config.BackendFile, "cache backend: none, memory, ristretto, file, redis or tiered")
	flags.String("cache-dir", "", "directory of the file backend (default user cache dir)")
	flags.String("redis-addr", "", "address of the redis backend (default localhost:6379)")
	flags.String("static-dir", "", "directory of the downloaded dataset")
	flags.String("api-url", "", "PokeAPI base URL")

	bind := map[string]string{
		"debug":            "debug",
		"cache.backend":    "backend",
		"cache.dir":        "cache-dir",
		"cache.redis.addr": "redis-addr",
		"static_dir":       "static-dir",
		"api_url":          "api-url",
	}
	for key, flag := range bind {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}
	a.v.SetDefault("cache.ttl", "24h")

	root.AddCommand(newServeCmd(a), newDownloadCmd(a), newCacheCmd(a))
	return root
}

// init loads the config file and builds the logger.
func (a *app) init() error {
	if a.configFile != "" {
		a.v.SetConfigFile(a.configFile)
	} else {
		a.v.SetConfigName("pokedex")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			a.v.AddConfigPath(filepath.Join(dir, "pokedex"))
		}
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var err error
	if a.v.GetBool("debug") {
		a.logger, err = zap.NewDevelopment()
	} else {
		a.logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("Loaded config", zap.String("file", used))
	}
	return nil
}

// options translates flags and config file values into Pokedex options.
// Environment variables are applied first so explicit settings win.
func (a *app) options() []pokedex.Option {
	v := a.v
	opts := []pokedex.Option{
		pokedex.FromEnv(),
		pokedex.WithLogger(a.logger),
		pokedex.WithCacheTTL(v.GetDuration("cache.ttl")),
	}

	switch backend := v.GetString("cache.backend"); backend {
	case config.BackendNone:
		opts = append(opts, pokedex.WithoutStore())
	case config.BackendMemory:
		opts = append(opts, pokedex.WithMemoryStore(5*1024*1024))
	case config.BackendRistretto:
		opts = append(opts, pokedex.WithRistrettoStore(64*1024*1024))
	case config.BackendFile:
		opts = append(opts, pokedex.WithFileStore(v.GetString("cache.dir"), 256*1024*1024))
	case config.BackendRedis:
		opts = append(opts, a.withRedisSettings(pokedex.WithRedis))
	case config.BackendTiered:
		opts = append(opts, a.withRedisSettings(func(addr, password string, db int) pokedex.Option {
			return pokedex.WithTieredStore(64*1024*1024, addr, password, db)
		}))
	default:
		opts = append(opts, func(*config.Config) error {
			return fmt.Errorf("%w: %q", pokedex.ErrUnknownBackend, backend)
		})
	}

	if dir := v.GetString("static_dir"); dir != "" {
		opts = append(opts, pokedex.WithStaticDir(dir))
	}
	if url := v.GetString("api_url"); url != "" {
		opts = append(opts, pokedex.WithAPIBaseURL(url))
	}
	if v.IsSet("serialization") {
		opts = append(opts, pokedex.WithSerialization(v.GetString("serialization")))
	}
	return opts
}

// withRedisSettings passes the redis settings already in the config (defaults
// and POKEDEX_REDIS_* variables) to next, replaced by any value set through a
// flag or the config file.
func (a *app) withRedisSettings(next func(addr, password string, db int) pokedex.Option) pokedex.Option {
	return func(cfg *config.Config) error {
		addr, password, db := cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB
		if a.v.IsSet("cache.redis.addr") {
			addr = a.v.GetString("cache.redis.addr")
		}
		if a.v.IsSet("cache.redis.password") {
			password = a.v.GetString("cache.redis.password")
		}
		if a.v.IsSet("cache.redis.db") {
			db = a.v.GetInt("cache.redis.db")
		}
		return next(addr, password, db)(cfg)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
