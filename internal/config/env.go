package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// LoadEnv overlays environment variables onto c. Unset variables keep the
// values already present, except where an envDefault is declared.
func LoadEnv(c *Config) error {
	if err := env.Parse(&c.TTS); err != nil {
		return fmt.Errorf("failed to parse tts environment: %w", err)
	}
	if err := env.Parse(&c.PokeAPI); err != nil {
		return fmt.Errorf("failed to parse pokeapi environment: %w", err)
	}
	if err := env.Parse(&c.Cache); err != nil {
		return fmt.Errorf("failed to parse cache environment: %w", err)
	}
	if err := env.Parse(&c.Server); err != nil {
		return fmt.Errorf("failed to parse server environment: %w", err)
	}
	return nil
}

// FromEnv is an Option applying LoadEnv.
func FromEnv() Option {
	return LoadEnv
}
