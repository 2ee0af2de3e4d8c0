package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventStore reads and writes collected events.
type EventStore struct {
	g *gorm.DB
}

func NewEventStore(g *gorm.DB) *EventStore {
	return &EventStore{g: g}
}

// Insert persists one event. A tenant replaying an event id is an
// idempotent duplicate: the insert is skipped and duplicate reports true,
// so at-least-once senders converge without errors. Dedup is scoped to the
// tenant; two tenants may hold the same event id.
func (s *EventStore) Insert(ctx context.Context, e *Event) (duplicate bool, err error) {
	res := s.g.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(e)
	if res.Error != nil {
		return false, fmt.Errorf("insert event %s: %w", e.EventID, res.Error)
	}
	return res.RowsAffected == 0, nil
}

// ListFilter bounds an event listing. Times are inclusive epoch seconds.
type ListFilter struct {
	TenantID  string
	StartTime int64
	EndTime   int64
	EventType string
	Limit     int
}

// List returns the tenant's events inside the filter window, oldest first.
func (s *EventStore) List(ctx context.Context, f ListFilter) ([]Event, error) {
	q := s.g.WithContext(ctx).
		Where("tenant_id = ?", f.TenantID).
		Where("timestamp BETWEEN ? AND ?", f.StartTime, f.EndTime)
	if f.EventType != "" {
		q = q.Where("event_type = ?", f.EventType)
	}
	var events []Event
	if err := q.Order("timestamp ASC").Limit(f.Limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events for %s: %w", f.TenantID, err)
	}
	return events, nil
}

// GetByID returns one of the tenant's events by its event id. A foreign
// tenant's event and a nonexistent one are the same ErrNotFound.
func (s *EventStore) GetByID(ctx context.Context, tenantID, eventID string) (*Event, error) {
	var e Event
	if err := s.g.WithContext(ctx).
		Where("tenant_id = ? AND event_id = ?", tenantID, eventID).
		First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load event %s: %w", eventID, err)
	}
	return &e, nil
}
