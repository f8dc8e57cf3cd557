package config

// Version is the corpusgraph binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/corpusgraph/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
