package middleware

import (
	"bytes"
	"context"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/todd-reagan/nile-collector/internal/config"
	dbpkg "github.com/todd-reagan/nile-collector/internal/db"
	httpctx "github.com/todd-reagan/nile-collector/internal/http/ctx"
	"github.com/todd-reagan/nile-collector/internal/http/response"
	"github.com/todd-reagan/nile-collector/internal/identity"
)

// TenantEnsurer creates-or-loads tenant config rows.
type TenantEnsurer interface {
	Ensure(ctx context.Context, tenantID string) (*dbpkg.TenantConfig, error)
}

// IdentityAuth validates dashboard bearer credentials and pins the
// verified tenant on the request. The tenant's config row is created on
// its first authenticated arrival.
func IdentityAuth(verifier identity.Verifier, tenants TenantEnsurer, cfg *config.Config, log *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			auth := ctx.Request.Header.Peek("Authorization")
			if len(auth) == 0 {
				response.Error(ctx, response.KindAuthentication, "missing Authorization header")
				return
			}

			const prefix = "Bearer "
			if !bytes.HasPrefix(auth, []byte(prefix)) {
				response.Error(ctx, response.KindAuthentication, "invalid Authorization header")
				return
			}

			credential := strings.TrimSpace(string(auth[len(prefix):]))
			if credential == "" {
				response.Error(ctx, response.KindAuthentication, "empty credential")
				return
			}

			tenantID, err := verifier.Verify(ctx, credential)
			if err != nil {
				// Fail closed: any verification failure reads as a bad
				// credential, whatever its cause.
				response.Error(ctx, response.KindAuthentication, "invalid credential")
				return
			}

			dbctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()

			tc, err := tenants.Ensure(dbctx, tenantID)
			if err != nil {
				log.Error("tenant config ensure failed", zap.String("tenant", tenantID), zap.Error(err))
				response.Error(ctx, response.KindStorage, "tenant configuration unavailable")
				return
			}

			httpctx.SetTenantID(ctx, tenantID)
			httpctx.SetTenantConfig(ctx, tc)
			next(ctx)
		}
	}
}
