package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/todd-reagan/nile-collector/internal/config"
	dbpkg "github.com/todd-reagan/nile-collector/internal/db"
	httpctx "github.com/todd-reagan/nile-collector/internal/http/ctx"
	"github.com/todd-reagan/nile-collector/internal/http/response"
)

// tenantConfigJSON renders a tenant config row. The ingestion token is
// included when set; it is the live credential and its owner may read it.
func tenantConfigJSON(tc *dbpkg.TenantConfig) map[string]any {
	out := map[string]any{
		"tenant_id":         tc.TenantID,
		"allow_unvalidated": tc.AllowUnvalidated,
		"summary_mode":      tc.SummaryMode,
		"created_at":        tc.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":        tc.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if tc.IngestionToken != nil {
		out["ingestion_token"] = *tc.IngestionToken
	}
	return out
}

// GetConfig returns the tenant's collector settings. The identity
// middleware already loaded the row into the request context.
func GetConfig() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustTenant(ctx); !ok {
			return
		}
		tc, ok := httpctx.TenantConfigFromCtx(ctx)
		if !ok {
			response.Error(ctx, response.KindInternal, "tenant configuration missing")
			return
		}
		response.JSON(ctx, fasthttp.StatusOK, tenantConfigJSON(tc))
	}
}

type updateConfigRequest struct {
	AllowUnvalidated *bool `json:"allow_unvalidated"`
	SummaryMode      *bool `json:"summary_mode"`
}

// UpdateConfig sets the two ingest behavior flags. Only these fields are
// writable here; the token has its own endpoint.
func UpdateConfig(tenants TenantStore, cfg *config.Config, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		tenantID, ok := MustTenant(ctx)
		if !ok {
			return
		}

		var req updateConfigRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			response.Error(ctx, response.KindValidation, "invalid JSON body")
			return
		}
		if req.AllowUnvalidated == nil || req.SummaryMode == nil {
			response.Error(ctx, response.KindValidation, "allow_unvalidated and summary_mode are required")
			return
		}

		dbctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()

		tc, err := tenants.UpdateSettings(dbctx, tenantID, *req.AllowUnvalidated, *req.SummaryMode)
		if err != nil {
			if errors.Is(err, dbpkg.ErrTenantMissing) {
				log.Error("tenant config missing on update", zap.String("tenant", tenantID))
				response.Error(ctx, response.KindInternal, "tenant configuration missing")
				return
			}
			log.Error("tenant config update failed", zap.String("tenant", tenantID), zap.Error(err))
			response.Error(ctx, response.KindStorage, "failed to update configuration")
			return
		}

		response.JSON(ctx, fasthttp.StatusOK, tenantConfigJSON(tc))
	}
}

// RegenerateToken issues a fresh ingestion token. The store claims each
// candidate through the uniqueness index; running out of attempts is a
// conflict the caller may retry.
func RegenerateToken(tenants TenantStore, cfg *config.Config, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		tenantID, ok := MustTenant(ctx)
		if !ok {
			return
		}

		dbctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()

		token, err := tenants.RotateToken(dbctx, tenantID)
		if err != nil {
			switch {
			case errors.Is(err, dbpkg.ErrTokenExhausted):
				log.Warn("token rotation ran out of attempts", zap.String("tenant", tenantID))
				response.Error(ctx, response.KindConflict, "could not allocate a unique token, try again")
			case errors.Is(err, dbpkg.ErrTenantMissing):
				log.Error("tenant config missing on token rotation", zap.String("tenant", tenantID))
				response.Error(ctx, response.KindInternal, "tenant configuration missing")
			default:
				log.Error("token rotation failed", zap.String("tenant", tenantID), zap.Error(err))
				response.Error(ctx, response.KindStorage, "failed to rotate token")
			}
			return
		}

		response.JSON(ctx, fasthttp.StatusOK, map[string]string{"ingestion_token": token})
	}
}
