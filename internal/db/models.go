package db

import (
	"time"

	"gorm.io/datatypes"
)

// TenantConfig holds one tenant's collector settings. The ingestion token
// lives here under a unique index, which is the global uniqueness guard:
// rotation claims a candidate by writing it and letting the index reject
// collisions.
type TenantConfig struct {
	TenantID string `gorm:"primaryKey;size:64"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// IngestionToken is nil until first generated. NULLs do not collide in
	// the unique index, so any number of tenants can be tokenless.
	IngestionToken *string `gorm:"uniqueIndex;size:255"`

	// AllowUnvalidated skips schema validation on ingest. JSON
	// well-formedness is still enforced.
	AllowUnvalidated bool `gorm:"default:false"`

	// SummaryMode persists the reduced summary projection instead of the
	// full payload.
	SummaryMode bool `gorm:"default:false"`
}

// Event represents a single collected event as stored in PostgreSQL.
// Events are write-once; nothing mutates or deletes them through the API.
type Event struct {
	ID uint `gorm:"primaryKey"`

	// CreatedAt is the storage write time, distinct from the event's own
	// Timestamp.
	CreatedAt time.Time

	TenantID  string `gorm:"index:idx_events_tenant_ts,priority:1;uniqueIndex:idx_events_tenant_event,priority:1;size:64;not null"`
	Timestamp int64  `gorm:"index:idx_events_tenant_ts,priority:2;not null"` // event time, epoch seconds

	// EventID is the event's UUID, unique within its tenant. A tenant
	// replaying an id gets the insert dropped; a different tenant reusing
	// the same id is a distinct record.
	EventID string `gorm:"uniqueIndex:idx_events_tenant_event,priority:2;size:36;not null"`

	EventType string `gorm:"index;size:128"`

	// EventData holds the serialized payload exactly as normalization
	// produced it: the original body bytes, or the summary projection.
	EventData datatypes.JSON `gorm:"type:json"`
}

// EventRollup stores pre-aggregated hourly event counts per
// (tenant, event type) for fast stats queries. Filled by the rollup worker.
type EventRollup struct {
	ID uint `gorm:"primaryKey"`

	TenantID    string    `gorm:"uniqueIndex:idx_event_rollup_unique,priority:1;size:64;not null"`
	BucketStart time.Time `gorm:"uniqueIndex:idx_event_rollup_unique,priority:2;not null"` // start of the hour (UTC)
	EventType   string    `gorm:"uniqueIndex:idx_event_rollup_unique,priority:3;size:128;not null"`

	Count int64 `gorm:"not null"`
}
