// Package config fills configuration structs from environment variables
// using `env` struct tags.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
)

// Validator is implemented by configuration structs that check their own
// invariants once parsed.
type Validator interface {
	Validate() error
}

// Option adjusts how Load reads the environment.
type Option func(*env.Options)

// WithOverrides layers values over the process environment, as command line
// flags do. Empty values are skipped so an unset flag keeps the env value.
func WithOverrides(overrides map[string]string) Option {
	return func(o *env.Options) {
		if o.Environment == nil {
			o.Environment = environ()
		}
		for k, v := range overrides {
			if v != "" {
				o.Environment[k] = v
			}
		}
	}
}

// Load parses environment variables into cfg and, when cfg implements
// Validator, validates it.
//
// Example:
//
//	type Config struct {
//	    Port       int    `env:"BFF_HTTP_PORT" envDefault:"8088"`
//	    StateStore string `env:"STATE_STORE" envDefault:"memory"`
//	}
func Load(cfg any, opts ...Option) error {
	var o env.Options
	for _, opt := range opts {
		opt(&o)
	}
	if err := env.ParseWithOptions(cfg, o); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}
	return nil
}

func environ() map[string]string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
