// Package config provides environment-driven configuration for corpusgraph.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL Secret
	DBMaxConns  int
	LogLevel    string
	Collection  string

	// Subgraph extraction.
	SubgraphStrategy string
	SubgraphDepth    int
	WalkTrials       int
	KeepFraction     float64
	RandomSeed       uint64

	// Weighting and ranking.
	Weighting         string
	RankMaxIterations int

	// Clustering.
	SeparationPasses   int
	SeparationDepth    int
	SeparationStrategy string
	SimilarityWalks    int
	SimilarityDecay    float64
	ClusterLinkage     string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        Secret(envOrDefault("DATABASE_URL", "")),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		Collection:         envOrDefault("COLLECTION", "default"),
		SubgraphStrategy:   envOrDefault("SUBGRAPH_STRATEGY", "bfs"),
		Weighting:          envOrDefault("WEIGHTING", "lg"),
		SeparationStrategy: envOrDefault("SEPARATION_STRATEGY", "bfs"),
		ClusterLinkage:     envOrDefault("CLUSTER_LINKAGE", ""),
	}

	ints := []struct {
		key      string
		def      string
		dst      *int
		min, max int
	}{
		{"DB_MAX_CONNS", "8", &cfg.DBMaxConns, 1, 200},
		{"SUBGRAPH_DEPTH", "2", &cfg.SubgraphDepth, 0, 64},
		{"WALK_TRIALS", "100", &cfg.WalkTrials, 0, 1_000_000},
		{"RANK_MAX_ITERATIONS", "20", &cfg.RankMaxIterations, 1, 10_000},
		{"SEPARATION_PASSES", "0", &cfg.SeparationPasses, 0, 100},
		{"SEPARATION_DEPTH", "2", &cfg.SeparationDepth, 0, 64},
		{"SIMILARITY_WALKS", "200", &cfg.SimilarityWalks, 0, 1_000_000},
	}

	for _, it := range ints {
		n, err := strconv.Atoi(envOrDefault(it.key, it.def))
		if err != nil || n < it.min || n > it.max {
			return nil, fmt.Errorf("%s must be an integer between %d and %d", it.key, it.min, it.max)
		}

		*it.dst = n
	}

	keep, err := strconv.ParseFloat(envOrDefault("KEEP_ONLY_TOP_EDGES", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("KEEP_ONLY_TOP_EDGES must be a number: %w", err)
	}
	cfg.KeepFraction = keep

	decay, err := strconv.ParseFloat(envOrDefault("SIMILARITY_DECAY", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("SIMILARITY_DECAY must be a number: %w", err)
	}
	cfg.SimilarityDecay = decay

	seed, err := strconv.ParseUint(envOrDefault("RANDOM_SEED", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("RANDOM_SEED must be an unsigned integer: %w", err)
	}
	cfg.RandomSeed = seed

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
