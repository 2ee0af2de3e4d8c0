package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/todd-reagan/nile-collector/internal/config"
	dbpkg "github.com/todd-reagan/nile-collector/internal/db"
	"github.com/todd-reagan/nile-collector/internal/http/response"
)

const (
	defaultListLimit  = 50
	maxListLimit      = 1000
	defaultListWindow = 24 * time.Hour
)

// parseListFilter reads limit, start_time, end_time and event_type from
// the query string. Defaults to the trailing 24 hours and 50 events.
// Bounds are inclusive epoch seconds; unparseable values fall back to
// the defaults.
func parseListFilter(ctx *fasthttp.RequestCtx, tenantID string, now time.Time) dbpkg.ListFilter {
	f := dbpkg.ListFilter{
		TenantID:  tenantID,
		StartTime: now.Add(-defaultListWindow).Unix(),
		EndTime:   now.Unix(),
		EventType: string(ctx.QueryArgs().Peek("event_type")),
		Limit:     defaultListLimit,
	}
	if s := string(ctx.QueryArgs().Peek("limit")); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			if n > maxListLimit {
				n = maxListLimit
			}
			f.Limit = n
		}
	}
	if s := string(ctx.QueryArgs().Peek("start_time")); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			f.StartTime = v
		}
	}
	if s := string(ctx.QueryArgs().Peek("end_time")); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			f.EndTime = v
		}
	}
	return f
}

// eventJSON renders one stored event for API responses, decoding the
// payload column back into a JSON value.
func eventJSON(e *dbpkg.Event) map[string]any {
	var data any
	if len(e.EventData) > 0 {
		if err := json.Unmarshal(e.EventData, &data); err != nil {
			data = string(e.EventData)
		}
	}
	return map[string]any{
		"tenant_id":  e.TenantID,
		"timestamp":  e.Timestamp,
		"event_id":   e.EventID,
		"event_type": e.EventType,
		"event_data": data,
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ListEvents returns the tenant's events inside the requested window,
// oldest first.
func ListEvents(events EventStore, cfg *config.Config, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		tenantID, ok := MustTenant(ctx)
		if !ok {
			return
		}

		f := parseListFilter(ctx, tenantID, time.Now())

		dbctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()

		rows, err := events.List(dbctx, f)
		if err != nil {
			log.Error("event list failed", zap.String("tenant", tenantID), zap.Error(err))
			response.Error(ctx, response.KindStorage, "failed to query events")
			return
		}

		out := make([]map[string]any, 0, len(rows))
		for i := range rows {
			out = append(out, eventJSON(&rows[i]))
		}
		response.JSON(ctx, fasthttp.StatusOK, map[string]any{"events": out, "count": len(out)})
	}
}

// EventDetail returns one of the tenant's events by event id. Another
// tenant's event reads as not found, same as a nonexistent one.
func EventDetail(events EventStore, cfg *config.Config, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		tenantID, ok := MustTenant(ctx)
		if !ok {
			return
		}

		eventID, _ := ctx.UserValue("event_id").(string)
		if eventID == "" {
			response.Error(ctx, response.KindValidation, "event_id required")
			return
		}

		dbctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()

		e, err := events.GetByID(dbctx, tenantID, eventID)
		if err != nil {
			if errors.Is(err, dbpkg.ErrNotFound) {
				response.Error(ctx, response.KindNotFound, "event not found")
				return
			}
			log.Error("event load failed",
				zap.String("tenant", tenantID),
				zap.String("event_id", eventID),
				zap.Error(err))
			response.Error(ctx, response.KindStorage, "failed to load event")
			return
		}

		response.JSON(ctx, fasthttp.StatusOK, eventJSON(e))
	}
}
