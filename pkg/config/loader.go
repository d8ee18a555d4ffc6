// Package config loads typed application configuration from environment
// variables, with optional .env file support for local development.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from the given .env files into the
// process environment. With no arguments it loads ./.env; a missing
// default file is not an error, a missing explicit file is.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		if err := godotenv.Load(); err != nil {
			return nil // default .env is optional
		}
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrEnvFileNotLoaded, err)
	}
	return nil
}

// Load parses the process environment into a fresh T using `env` struct
// tags for variable names, defaults, and required markers.
func Load[T any]() (T, error) {
	var cfg T
	if err := env.Parse(&cfg); err != nil {
		var zero T
		return zero, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// MustLoad works like Load but panics on failure. Intended for boot-time
// configuration without which the process cannot run.
func MustLoad[T any]() T {
	cfg, err := Load[T]()
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return cfg
}
