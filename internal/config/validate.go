package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/persistorai/corpusgraph/internal/models"
	"github.com/persistorai/corpusgraph/internal/subgraph"
	"github.com/persistorai/corpusgraph/internal/weighting"
)

func (c *Config) validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateLogging(); err != nil {
		return err
	}

	return c.ValidateEngine()
}

func (c *Config) validateDatabase() error {
	if c.DatabaseURL.Value() == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	dbURL, err := url.Parse(c.DatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	if dbURL.Scheme != "postgres" && dbURL.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL scheme must be postgres:// or postgresql://")
	}

	if dbURL.Hostname() == "" {
		return fmt.Errorf("DATABASE_URL must include a host")
	}

	dbHost := dbURL.Hostname()
	if dbHost != "localhost" && dbHost != "127.0.0.1" && dbHost != "::1" {
		if dbURL.Query().Get("sslmode") == "disable" {
			return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", dbHost)
		}
	}

	if strings.TrimSpace(c.Collection) == "" {
		return fmt.Errorf("COLLECTION must not be empty")
	}

	return nil
}

func (c *Config) validateLogging() error {
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
		return nil
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got %q", c.LogLevel)
	}
}

// ValidateEngine checks the extraction, weighting and clustering parameters.
// Errors wrap models.ErrInvalidConfig. Call it again after overriding fields
// from flags.
func (c *Config) ValidateEngine() error {
	switch c.SubgraphStrategy {
	case subgraph.NameNone, subgraph.NameBFS, subgraph.NameRandomWalk, subgraph.NamePruned:
	default:
		return models.InvalidConfigf("SUBGRAPH_STRATEGY must be none, bfs, randomwalk or pruned, got %q", c.SubgraphStrategy)
	}

	if !(c.KeepFraction > 0 && c.KeepFraction <= 1) {
		return models.InvalidConfigf("KEEP_ONLY_TOP_EDGES must be in (0, 1], got %v", c.KeepFraction)
	}

	switch c.Weighting {
	case weighting.NameLocal, weighting.NameGlobal, weighting.NameComposed:
	default:
		return models.InvalidConfigf("WEIGHTING must be local, global or lg, got %q", c.Weighting)
	}

	switch c.SeparationStrategy {
	case "bfs", "walk":
	default:
		return models.InvalidConfigf("SEPARATION_STRATEGY must be bfs or walk, got %q", c.SeparationStrategy)
	}

	if !(c.SimilarityDecay > 0 && c.SimilarityDecay <= 1) {
		return models.InvalidConfigf("SIMILARITY_DECAY must be in (0, 1], got %v", c.SimilarityDecay)
	}

	switch c.ClusterLinkage {
	case "", "single", "complete", "average":
	default:
		return models.InvalidConfigf("CLUSTER_LINKAGE must be single, complete or average, got %q", c.ClusterLinkage)
	}

	return nil
}
