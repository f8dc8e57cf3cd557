package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/persistorai/corpusgraph/internal/config"
	"github.com/persistorai/corpusgraph/internal/dbpool"
	"github.com/persistorai/corpusgraph/internal/store"
)

// Build-time variables set via ldflags.
var (
	commit    = ""
	buildDate = ""
)

var (
	cfg    *config.Config
	logger = logrus.New()

	flagDBURL       string
	flagCollection  string
	flagLogLevel    string
	flagFmt         string
	flagMetricsFile string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("corpusgraph version %s (commit: %s, built: %s)", config.Version, commit, buildDate)
	}
	return fmt.Sprintf("corpusgraph version %s", config.Version)
}

type configFile struct {
	// Flat format
	DatabaseURL string `yaml:"database_url"`
	Collection  string `yaml:"collection"`
	LogLevel    string `yaml:"log_level"`
	// Profile format
	Profiles      map[string]configProfile `yaml:"profiles"`
	ActiveProfile string                   `yaml:"active_profile"`
}

type configProfile struct {
	DatabaseURL string `yaml:"database_url"`
	Collection  string `yaml:"collection"`
	LogLevel    string `yaml:"log_level"`
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "corpusgraph",
		Short:   "corpusgraph: graph-based retrieval and clustering over a document corpus",
		Version: versionString(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return writeMetrics()
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagDBURL, "database-url", "", "PostgreSQL URL (env: DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagCollection, "collection", "", "Collection name (env: COLLECTION)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (env: LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table|quiet")
	rootCmd.PersistentFlags().StringVar(&flagMetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newIndexCmd())
	rootCmd.AddCommand(newUnindexCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newClusterCmd())
	rootCmd.AddCommand(newMetaCmd())

	return rootCmd
}

// loadConfig resolves flags, environment and the config file into cfg and
// configures the logger.
func loadConfig() error {
	resolveConfig()

	c, err := config.Load()
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg = c

	return nil
}

// resolveConfig publishes the connection settings to the environment that
// config.Load reads. A flag takes precedence, then env, then config file.
func resolveConfig() {
	settings := []struct{ env, flag string }{
		{"DATABASE_URL", flagDBURL},
		{"COLLECTION", flagCollection},
		{"LOG_LEVEL", flagLogLevel},
	}

	for _, s := range settings {
		if s.flag != "" {
			os.Setenv(s.env, s.flag) //nolint:errcheck // only fails on invalid keys
		}
	}

	file := readConfigFile()
	fromFile := map[string]string{
		"DATABASE_URL": file.DatabaseURL,
		"COLLECTION":   file.Collection,
		"LOG_LEVEL":    file.LogLevel,
	}

	for env, v := range fromFile {
		if v != "" && os.Getenv(env) == "" {
			os.Setenv(env, v) //nolint:errcheck // only fails on invalid keys
		}
	}
}

// readConfigFile returns the active profile of ~/.corpusgraph/config.yaml,
// falling back to its flat fields. A missing or unreadable file yields zero
// values.
func readConfigFile() configProfile {
	home, err := os.UserHomeDir()
	if err != nil {
		return configProfile{}
	}
	data, err := os.ReadFile(filepath.Join(home, ".corpusgraph", "config.yaml"))
	if err != nil {
		return configProfile{}
	}
	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return configProfile{}
	}

	resolved := configProfile{DatabaseURL: cf.DatabaseURL, Collection: cf.Collection, LogLevel: cf.LogLevel}
	if cf.Profiles != nil {
		profileName := cf.ActiveProfile
		if profileName == "" {
			profileName = "default"
		}
		if p, ok := cf.Profiles[profileName]; ok {
			if p.DatabaseURL != "" {
				resolved.DatabaseURL = p.DatabaseURL
			}
			if p.Collection != "" {
				resolved.Collection = p.Collection
			}
			if p.LogLevel != "" {
				resolved.LogLevel = p.LogLevel
			}
		}
	}

	return resolved
}

// connect opens a pool of at most maxConns connections and checks that the
// database answers queries.
func connect(ctx context.Context, maxConns int) (*dbpool.Pool, error) {
	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), int32(maxConns)) //nolint:gosec // bounded by config validation.
	if err != nil {
		return nil, err
	}

	if err := pool.HealthCheck(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// openStore connects to the database and opens the configured collection.
// The returned func closes the pool.
func openStore(ctx context.Context, create bool) (*store.PGStore, func(), error) {
	pool, err := connect(ctx, cfg.DBMaxConns)
	if err != nil {
		return nil, nil, err
	}

	s, err := store.OpenCollection(ctx, store.Base{Pool: pool, Log: logger}, cfg.Collection, create)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("opening collection %q: %w", cfg.Collection, err)
	}

	return s, pool.Close, nil
}

func writeMetrics() error {
	if flagMetricsFile == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(flagMetricsFile, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}

	return nil
}
