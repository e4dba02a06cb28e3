// Package config loads agent configuration from the environment.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/agentcontract/internal/blob"
	"github.com/roach88/agentcontract/internal/catalog"
	"github.com/roach88/agentcontract/internal/logging"
)

// Prefix is prepended to every variable name.
const Prefix = "AGENTCONTRACT_"

// Config holds the engine's process-level settings.
type Config struct {
	// Catalog is the path of the schema catalog; empty selects the
	// built-in catalog.
	Catalog string `env:"CATALOG"`

	// ClockSkew is how far ahead of the validator clock an envelope may be
	// stamped. Zero or negative disables the check.
	ClockSkew time.Duration `env:"CLOCK_SKEW" envDefault:"5m"`

	// AuditDB is the SQLite audit log path; empty disables the log.
	AuditDB string `env:"AUDIT_DB"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	BlobRegion   string `env:"BLOB_REGION"   envDefault:"us-east-1"`
	BlobEndpoint string `env:"BLOB_ENDPOINT"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return parse(nil)
}

// LoadFrom reads the configuration from vars instead of the process
// environment. Keys include the prefix.
func LoadFrom(vars map[string]string) (Config, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	return parse(vars)
}

func parse(vars map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Prefix: Prefix}
	if vars != nil {
		opts.Environment = vars
	} else {
		opts.Environment = env.ToMap(os.Environ())
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env cannot check by type alone.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%sLOG_LEVEL: %w", Prefix, err)
	}
	switch c.LogFormat {
	case logging.FormatJSON, logging.FormatText:
	default:
		return fmt.Errorf("%sLOG_FORMAT: invalid format %q (must be %s or %s)", Prefix, c.LogFormat, logging.FormatJSON, logging.FormatText)
	}
	return nil
}

// LoggingOptions maps the log settings onto logging.Options.
func (c Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.LogLevel, Format: c.LogFormat}
}

// LoadCatalog loads the configured catalog, or the built-in one when no
// path is set.
func (c Config) LoadCatalog() (*catalog.Catalog, error) {
	if c.Catalog == "" {
		return catalog.Default()
	}
	return catalog.Load(c.Catalog)
}

// BlobResolver builds a resolver for the s3 and https schemes using the
// configured region and endpoint.
func (c Config) BlobResolver(ctx context.Context) (*blob.Mux, error) {
	s3r, err := blob.NewS3Resolver(ctx, c.BlobRegion, c.BlobEndpoint)
	if err != nil {
		return nil, fmt.Errorf("s3 resolver: %w", err)
	}
	httpr := blob.NewHTTPResolver(nil)

	mux := blob.NewMux()
	mux.Handle("s3", s3r)
	mux.Handle("https", httpr)
	mux.Handle("http", httpr)
	return mux, nil
}
