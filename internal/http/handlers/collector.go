package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/todd-reagan/nile-collector/internal/config"
	dbpkg "github.com/todd-reagan/nile-collector/internal/db"
	"github.com/todd-reagan/nile-collector/internal/http/response"
	"github.com/todd-reagan/nile-collector/internal/schema"
)

// IngestHandler accepts one event per request: load the tenant's policy
// flags, validate and normalize the body, persist, acknowledge. Every
// failure maps to exactly one error kind.
func IngestHandler(tenants TenantStore, events EventStore, policy PolicySource, cfg *config.Config, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		tenantID, ok := MustTenant(ctx)
		if !ok {
			return
		}

		dbctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()

		tc, err := tenants.Get(dbctx, tenantID)
		if err != nil {
			if errors.Is(err, dbpkg.ErrTenantMissing) {
				// The token resolved, so the row must exist.
				log.Error("tenant config missing after token resolution", zap.String("tenant", tenantID))
				response.Error(ctx, response.KindInternal, "tenant configuration missing")
				return
			}
			log.Error("tenant config load failed", zap.String("tenant", tenantID), zap.Error(err))
			response.Error(ctx, response.KindStorage, "tenant configuration unavailable")
			return
		}

		ev, err := policy().Normalize(ctx.PostBody(), tc.AllowUnvalidated, tc.SummaryMode, time.Now())
		if err != nil {
			var verr *schema.ValidationError
			if errors.As(err, &verr) {
				ingestRejected.WithLabelValues(tenantID, verr.Reason).Inc()
				response.Error(ctx, response.KindValidation, verr.Error())
				return
			}
			log.Error("event normalization failed", zap.String("tenant", tenantID), zap.Error(err))
			response.Error(ctx, response.KindInternal, "event normalization failed")
			return
		}

		record := &dbpkg.Event{
			TenantID:  tenantID,
			Timestamp: ev.Timestamp,
			EventID:   ev.ID,
			EventType: ev.Type,
			EventData: datatypes.JSON(ev.Data),
		}

		start := time.Now()
		duplicate, err := events.Insert(dbctx, record)
		if err != nil {
			ingestRejected.WithLabelValues(tenantID, "storage").Inc()
			log.Error("event insert failed",
				zap.String("tenant", tenantID),
				zap.String("event_id", ev.ID),
				zap.Error(err))
			response.Error(ctx, response.KindStorage, "event could not be stored")
			return
		}
		storeDuration.Observe(time.Since(start).Seconds())

		if duplicate {
			log.Debug("duplicate event id, insert skipped",
				zap.String("tenant", tenantID),
				zap.String("event_id", ev.ID))
		}
		eventsIngested.WithLabelValues(tenantID, ev.Type).Inc()

		response.JSON(ctx, fasthttp.StatusOK, map[string]any{"text": "Success", "code": 0})
	}
}

// CollectorHealth reports collector liveness. No authentication: the
// response carries nothing tenant-specific.
func CollectorHealth() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		response.JSON(ctx, fasthttp.StatusOK, map[string]any{"text": "Collector is healthy", "code": 0})
	}
}
