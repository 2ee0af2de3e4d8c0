package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/todd-reagan/nile-collector/internal/config"
	"github.com/todd-reagan/nile-collector/internal/http/response"
)

const (
	defaultStatsHours = 24
	maxStatsHours     = 720
)

// Stats returns the tenant's hourly event counts from the rollup table,
// oldest bucket first. The window is capped at 30 days.
func Stats(events EventStore, cfg *config.Config, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		tenantID, ok := MustTenant(ctx)
		if !ok {
			return
		}

		hours := defaultStatsHours
		if s := string(ctx.QueryArgs().Peek("hours")); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				if n > maxStatsHours {
					n = maxStatsHours
				}
				hours = n
			}
		}
		since := time.Now().UTC().Truncate(time.Hour).Add(-time.Duration(hours) * time.Hour)

		dbctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()

		rows, err := events.ListRollups(dbctx, tenantID, since)
		if err != nil {
			log.Error("stats query failed", zap.String("tenant", tenantID), zap.Error(err))
			response.Error(ctx, response.KindStorage, "failed to query stats")
			return
		}

		buckets := make([]map[string]any, 0, len(rows))
		for _, r := range rows {
			buckets = append(buckets, map[string]any{
				"bucket":     r.BucketStart.UTC().Format(time.RFC3339),
				"event_type": r.EventType,
				"count":      r.Count,
			})
		}
		response.JSON(ctx, fasthttp.StatusOK, map[string]any{"buckets": buckets, "hours": hours})
	}
}
