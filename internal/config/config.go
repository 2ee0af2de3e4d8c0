package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	DatabaseURL string

	ListenAddr string

	// Env selects logger behavior: "production" (default) emits JSON,
	// "development" emits console output with stacktraces on warnings.
	Env string

	// IngestScheme is the Authorization scheme collectors must send,
	// compared case-sensitively. Tokens arrive as "<scheme> <token>".
	IngestScheme string

	// SessionSecret signs and verifies dashboard credentials. Required
	// for the authenticated read/config endpoints; ingestion works
	// without it.
	SessionSecret string

	// SchemaFile optionally points at a YAML schema policy that
	// replaces the built-in event families. Watched for changes.
	SchemaFile string

	// RequestTimeout bounds storage work done on behalf of a single
	// request.
	RequestTimeout time.Duration

	// RetentionDays deletes events older than this many days. Zero
	// disables the sweeper; events are then kept forever.
	RetentionDays int

	// BootstrapTenant seeds a tenant row at startup so a fresh
	// deployment can ingest without a dashboard round-trip. Empty
	// disables seeding. BootstrapToken optionally fixes its token.
	BootstrapTenant string
	BootstrapToken  string
}

// Load reads configuration from environment variables and applies
func Load() *Config {
	cfg := &Config{
		DatabaseURL:     os.Getenv("NILE_DATABASE_URL"),
		ListenAddr:      getenv("NILE_LISTEN_ADDR", ":8088"),
		Env:             getenv("NILE_ENV", "production"),
		IngestScheme:    getenv("NILE_INGEST_SCHEME", "Splunk"),
		SessionSecret:   os.Getenv("NILE_SESSION_SECRET"),
		SchemaFile:      os.Getenv("NILE_SCHEMA_FILE"),
		RequestTimeout:  10 * time.Second,
		RetentionDays:   0,
		BootstrapTenant: os.Getenv("NILE_BOOTSTRAP_TENANT"),
		BootstrapToken:  os.Getenv("NILE_BOOTSTRAP_TOKEN"),
	}

	if v := os.Getenv("NILE_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RequestTimeout = d
		}
	}

	if v := os.Getenv("NILE_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.RetentionDays = days
		}
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
