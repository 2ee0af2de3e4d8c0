package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/todd-reagan/nile-collector/internal/config"
)

// Connect opens a GORM database connection using NILE_DATABASE_URL (PostgreSQL URL).
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return nil, errors.New("NILE_DATABASE_URL is required (PostgreSQL URL)")
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil, errors.New("NILE_DATABASE_URL must be a postgres:// or postgresql:// URL")
	}

	// PrepareStmt: true prevents the GORM postgres migrator from forcing simple protocol
	// for "SELECT * FROM table LIMIT 1", which would otherwise trigger "insufficient arguments".
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{PrepareStmt: true})
	if err != nil {
		return nil, err
	}

	// Auto-migrate the core tables.
	if err := db.AutoMigrate(&TenantConfig{}, &Event{}, &EventRollup{}); err != nil {
		return nil, err
	}

	return db, nil
}

// EnsureBootstrapTenant seeds the configured tenant row, and optionally a
// fixed ingestion token, so a fresh deployment can ingest without a
// dashboard round-trip. An existing row or token is left as-is.
func EnsureBootstrapTenant(g *gorm.DB, cfg *config.Config) error {
	if cfg.BootstrapTenant == "" {
		return nil
	}

	tenants := NewTenantStore(g)
	ctx := context.Background()

	row, err := tenants.Ensure(ctx, cfg.BootstrapTenant)
	if err != nil {
		return err
	}
	if cfg.BootstrapToken == "" || row.IngestionToken != nil {
		return nil
	}

	// The token write goes through the same conditional-update path as
	// rotation, so the unique index arbitrates here too.
	return tenants.SetToken(ctx, cfg.BootstrapTenant, cfg.BootstrapToken)
}
