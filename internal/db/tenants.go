package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tokenAttempts bounds how many candidate tokens a single rotation tries
// before giving up with ErrTokenExhausted.
const tokenAttempts = 10

// TenantStore reads and writes tenant configuration rows.
type TenantStore struct {
	g *gorm.DB

	// claimToken performs the single conditional token write; tests
	// substitute it to drive the rotation protocol.
	claimToken func(ctx context.Context, tenantID, token string) (rowsAffected int64, err error)
}

func NewTenantStore(g *gorm.DB) *TenantStore {
	s := &TenantStore{g: g}
	s.claimToken = s.claimTokenDB
	return s
}

// ResolveIngestionToken maps an ingestion token to its owning tenant id.
// Unknown tokens return ErrNotFound. A token matching more than one row
// returns ErrTokenAmbiguous rather than picking one arbitrarily.
func (s *TenantStore) ResolveIngestionToken(ctx context.Context, token string) (string, error) {
	var rows []TenantConfig
	if err := s.g.WithContext(ctx).
		Select("tenant_id").
		Where("ingestion_token = ?", token).
		Limit(2).
		Find(&rows).Error; err != nil {
		return "", fmt.Errorf("resolve ingestion token: %w", err)
	}
	switch len(rows) {
	case 0:
		return "", ErrNotFound
	case 1:
		return rows[0].TenantID, nil
	default:
		return "", ErrTokenAmbiguous
	}
}

// Ensure returns the tenant's config row, creating the default row on the
// tenant's first arrival. Creation is insert-if-absent on the primary key,
// so concurrent first requests are safe.
func (s *TenantStore) Ensure(ctx context.Context, tenantID string) (*TenantConfig, error) {
	row := TenantConfig{TenantID: tenantID}
	if err := s.g.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error; err != nil {
		return nil, fmt.Errorf("ensure tenant %s: %w", tenantID, err)
	}
	return s.Get(ctx, tenantID)
}

// Get returns the tenant's config row, or ErrTenantMissing.
func (s *TenantStore) Get(ctx context.Context, tenantID string) (*TenantConfig, error) {
	var cfg TenantConfig
	if err := s.g.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantMissing
		}
		return nil, fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	return &cfg, nil
}

// UpdateSettings sets the two ingest behavior flags. The token is never
// touched from here.
func (s *TenantStore) UpdateSettings(ctx context.Context, tenantID string, allowUnvalidated, summaryMode bool) (*TenantConfig, error) {
	res := s.g.WithContext(ctx).
		Model(&TenantConfig{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"allow_unvalidated": allowUnvalidated,
			"summary_mode":      summaryMode,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update tenant %s: %w", tenantID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrTenantMissing
	}
	return s.Get(ctx, tenantID)
}

// claimTokenDB writes one token candidate through a conditional update.
// The unique index on the token column arbitrates collisions, so there is
// no window between checking a candidate and claiming it.
func (s *TenantStore) claimTokenDB(ctx context.Context, tenantID, token string) (int64, error) {
	res := s.g.WithContext(ctx).
		Model(&TenantConfig{}).
		Where("tenant_id = ?", tenantID).
		Update("ingestion_token", token)
	return res.RowsAffected, res.Error
}

// RotateToken replaces the tenant's ingestion token with a fresh random
// candidate. A unique violation means another tenant holds the candidate;
// the next attempt tries a new one, up to tokenAttempts. The old token
// stops resolving the moment the update commits.
func (s *TenantStore) RotateToken(ctx context.Context, tenantID string) (string, error) {
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		candidate := uuid.NewString()
		rows, err := s.claimToken(ctx, tenantID, candidate)
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return "", fmt.Errorf("rotate token for %s: %w", tenantID, err)
		}
		if rows == 0 {
			return "", ErrTenantMissing
		}
		return candidate, nil
	}
	return "", ErrTokenExhausted
}

// SetToken claims a specific token for the tenant, used by bootstrap
// seeding. ErrDuplicateToken means another tenant already holds it.
func (s *TenantStore) SetToken(ctx context.Context, tenantID, token string) error {
	rows, err := s.claimToken(ctx, tenantID, token)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return fmt.Errorf("set token for %s: %w", tenantID, err)
	}
	if rows == 0 {
		return ErrTenantMissing
	}
	return nil
}
