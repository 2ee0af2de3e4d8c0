package handlers

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"

	dbpkg "github.com/todd-reagan/nile-collector/internal/db"
	httpctx "github.com/todd-reagan/nile-collector/internal/http/ctx"
	"github.com/todd-reagan/nile-collector/internal/http/response"
	"github.com/todd-reagan/nile-collector/internal/schema"
)

// TenantStore is the tenant configuration surface the handlers consume.
type TenantStore interface {
	Get(ctx context.Context, tenantID string) (*dbpkg.TenantConfig, error)
	UpdateSettings(ctx context.Context, tenantID string, allowUnvalidated, summaryMode bool) (*dbpkg.TenantConfig, error)
	RotateToken(ctx context.Context, tenantID string) (string, error)
}

// EventStore is the event storage surface the handlers consume.
type EventStore interface {
	Insert(ctx context.Context, e *dbpkg.Event) (duplicate bool, err error)
	List(ctx context.Context, f dbpkg.ListFilter) ([]dbpkg.Event, error)
	GetByID(ctx context.Context, tenantID, eventID string) (*dbpkg.Event, error)
	ListRollups(ctx context.Context, tenantID string, since time.Time) ([]dbpkg.EventRollup, error)
}

// PolicySource yields the current schema policy.
type PolicySource func() *schema.Policy

// MustTenant returns the authenticated tenant id from context, or writes
// the authentication failure and returns ("", false).
func MustTenant(ctx *fasthttp.RequestCtx) (string, bool) {
	id, ok := httpctx.TenantIDFromCtx(ctx)
	if !ok || id == "" {
		response.Error(ctx, response.KindAuthentication, "unauthorized")
		return "", false
	}
	return id, true
}
