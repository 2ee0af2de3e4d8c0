package db

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runRetentionOnce performs a single pass of retention cleanup, deleting
// events written more than the retention window ago. The cutoff uses the
// storage write time, not the event's own timestamp.
func runRetentionOnce(g *gorm.DB, days int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	res := g.Where("created_at < ?", cutoff).Delete(&Event{})
	return res.RowsAffected, res.Error
}

// StartRetentionWorker launches a background goroutine that runs the
// retention cleanup once at startup and then once per day. A non-positive
// retention disables the worker entirely; events are then kept forever.
func StartRetentionWorker(g *gorm.DB, days int, log *zap.Logger) {
	if days <= 0 {
		return
	}
	go func() {
		if n, err := runRetentionOnce(g, days); err != nil {
			log.Error("retention cleanup failed", zap.Error(err))
		} else if n > 0 {
			log.Info("retention cleanup", zap.Int64("deleted", n))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			if n, err := runRetentionOnce(g, days); err != nil {
				log.Error("retention cleanup failed", zap.Error(err))
			} else if n > 0 {
				log.Info("retention cleanup", zap.Int64("deleted", n))
			}
		}
	}()
}
