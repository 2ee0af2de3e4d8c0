package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runRollupOnce aggregates events for the given hour (bucketStart to
// bucketStart+1h) into EventRollup rows. Call with bucketStart truncated
// to the hour, UTC. Buckets are keyed on the event timestamp, not the
// storage write time.
func runRollupOnce(g *gorm.DB, bucketStart time.Time) error {
	bucketEnd := bucketStart.Add(time.Hour)

	type countRow struct {
		TenantID  string
		EventType string
		Count     int64
	}
	var counts []countRow
	if err := g.Model(&Event{}).
		Where("timestamp >= ? AND timestamp < ?", bucketStart.Unix(), bucketEnd.Unix()).
		Select("tenant_id, event_type, count(*) as count").
		Group("tenant_id, event_type").
		Find(&counts).Error; err != nil {
		return err
	}

	for _, c := range counts {
		row := EventRollup{
			TenantID:    c.TenantID,
			BucketStart: bucketStart,
			EventType:   c.EventType,
			Count:       c.Count,
		}
		var existing EventRollup
		err := g.Where("tenant_id = ? AND bucket_start = ? AND event_type = ?",
			c.TenantID, bucketStart, c.EventType).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			err = g.Create(&row).Error
		} else if err == nil {
			err = g.Model(&existing).Updates(map[string]interface{}{"count": c.Count}).Error
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// completedBuckets returns the start times of the n most recently completed
// hour buckets before now, oldest first, in UTC. The hour containing now is
// still open and is never included.
func completedBuckets(now time.Time, n int) []time.Time {
	top := now.UTC().Truncate(time.Hour)
	buckets := make([]time.Time, 0, n)
	for i := n; i >= 1; i-- {
		buckets = append(buckets, top.Add(-time.Duration(i)*time.Hour))
	}
	return buckets
}

// StartRollupWorker recomputes the trailing 24 completed hours at startup,
// then the previous hour every hour. Buckets are in UTC.
func StartRollupWorker(g *gorm.DB, log *zap.Logger) {
	go func() {
		for _, bucketStart := range completedBuckets(time.Now(), 24) {
			if err := runRollupOnce(g, bucketStart); err != nil {
				log.Error("rollup failed", zap.Time("bucket", bucketStart), zap.Error(err))
			}
		}

		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for t := range ticker.C {
			bucketStart := completedBuckets(t, 1)[0]
			if err := runRollupOnce(g, bucketStart); err != nil {
				log.Error("rollup failed", zap.Time("bucket", bucketStart), zap.Error(err))
			}
		}
	}()
}

// ListRollups returns the tenant's hourly rollups starting at since,
// ordered by bucket then event type.
func (s *EventStore) ListRollups(ctx context.Context, tenantID string, since time.Time) ([]EventRollup, error) {
	var rows []EventRollup
	if err := s.g.WithContext(ctx).
		Where("tenant_id = ? AND bucket_start >= ?", tenantID, since).
		Order("bucket_start, event_type").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list rollups for %s: %w", tenantID, err)
	}
	return rows, nil
}
