// Package config defines service configuration structures and loading.
//
// Conventions:
// - Defaults come from New; Load layers an optional YAML file and env vars.
// - External errors are wrapped with this package's sentinel kinds.
package config

import "runtime"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8090".
	Addr string `koanf:"addr"`

	// RedisURL selects the Redis persistence gateway when set, e.g.
	// "redis://localhost:6379". Empty keeps the in-memory gateway.
	RedisURL string `koanf:"redis_url"`

	// PersistQueueSize bounds the in-memory persistence operation queue.
	PersistQueueSize int `koanf:"persist_queue_size"`

	// PersistWorkers sets the number of persistence workers.
	PersistWorkers int `koanf:"persist_workers"`

	// SnapshotIntervalSeconds controls the periodic scoreboard snapshot
	// flush used for recovery.
	SnapshotIntervalSeconds int `koanf:"snapshot_interval_seconds"`

	// MaxHistoryLimit caps event-history page sizes on the read API.
	MaxHistoryLimit int `koanf:"max_history_limit"`

	// DefaultAllowExtraRound applies when an admitted match does not
	// specify whether tie-breaker rounds are permitted.
	DefaultAllowExtraRound bool `koanf:"default_allow_extra_round"`

	// DefaultMaxExtraRounds caps tie-breaker rounds per match.
	DefaultMaxExtraRounds int `koanf:"default_max_extra_rounds"`

	// DefaultTieBreakRule names the criterion surfaced when a match ends
	// tied after all allowed rounds. The engine never applies it.
	DefaultTieBreakRule string `koanf:"default_tie_break_rule"`

	// ScoreValues lists the vote values assessors may cast.
	ScoreValues []int `koanf:"score_values"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":8090",
		RedisURL:                "",
		PersistQueueSize:        10_000,
		PersistWorkers:          runtime.NumCPU(),
		SnapshotIntervalSeconds: 5,
		MaxHistoryLimit:         500,
		DefaultAllowExtraRound:  true,
		DefaultMaxExtraRounds:   1,
		DefaultTieBreakRule:     "weigh_in_weight",
		ScoreValues:             []int{1, 2},
	}
}
