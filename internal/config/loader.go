package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, an optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if TATAMI_CONFIG is set
//  3. env (prefix TATAMI_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("TATAMI_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: TATAMI_ADDR, TATAMI_PERSIST_QUEUE_SIZE, ...
	// Keys are lowercased with underscores preserved to match the koanf tags.
	envProvider := env.Provider("TATAMI_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "tatami_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.PersistQueueSize < 1:
		return fmt.Errorf("%w: persist_queue_size must be positive", ErrInvalidConfig)
	case c.PersistWorkers < 1:
		return fmt.Errorf("%w: persist_workers must be positive", ErrInvalidConfig)
	case c.SnapshotIntervalSeconds < 1:
		return fmt.Errorf("%w: snapshot_interval_seconds must be positive", ErrInvalidConfig)
	case c.MaxHistoryLimit < 1:
		return fmt.Errorf("%w: max_history_limit must be positive", ErrInvalidConfig)
	case c.DefaultMaxExtraRounds < 0:
		return fmt.Errorf("%w: default_max_extra_rounds must not be negative", ErrInvalidConfig)
	case len(c.ScoreValues) == 0:
		return fmt.Errorf("%w: score_values must not be empty", ErrInvalidConfig)
	}
	for _, v := range c.ScoreValues {
		if v < 1 {
			return fmt.Errorf("%w: score_values must be positive", ErrInvalidConfig)
		}
	}
	return nil
}
