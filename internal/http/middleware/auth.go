package middleware

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/todd-reagan/nile-collector/internal/config"
	dbpkg "github.com/todd-reagan/nile-collector/internal/db"
	httpctx "github.com/todd-reagan/nile-collector/internal/http/ctx"
	"github.com/todd-reagan/nile-collector/internal/http/response"
)

// TokenResolver maps ingestion tokens to tenant ids.
type TokenResolver interface {
	ResolveIngestionToken(ctx context.Context, token string) (string, error)
}

// TokenAuth validates ingestion tokens against tenant configs. The
// Authorization header must be "<scheme> <token>" with the scheme matched
// case-sensitively. Missing header, wrong scheme, and unknown token all
// produce the same failure.
func TokenAuth(resolver TokenResolver, cfg *config.Config, log *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	prefix := []byte(cfg.IngestScheme + " ")
	lowerPrefix := strings.ToLower(cfg.IngestScheme) + " "
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			auth := ctx.Request.Header.Peek("Authorization")
			if len(auth) == 0 {
				response.Error(ctx, response.KindAuthentication, "missing Authorization header")
				return
			}
			if !bytes.HasPrefix(auth, prefix) {
				response.Error(ctx, response.KindAuthentication, "invalid authorization scheme")
				return
			}

			token := strings.TrimSpace(string(auth[len(prefix):]))
			// Some senders double up the scheme; strip one extra copy.
			if strings.HasPrefix(strings.ToLower(token), lowerPrefix) {
				token = strings.TrimSpace(token[len(lowerPrefix):])
			}
			if token == "" {
				response.Error(ctx, response.KindAuthentication, "empty ingestion token")
				return
			}

			dbctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()

			tenantID, err := resolver.ResolveIngestionToken(dbctx, token)
			if err != nil {
				switch {
				case errors.Is(err, dbpkg.ErrNotFound):
					response.Error(ctx, response.KindAuthentication, "invalid ingestion token")
				case errors.Is(err, dbpkg.ErrTokenAmbiguous):
					log.Error("ingestion token resolved to multiple tenants", zap.Error(err))
					response.Error(ctx, response.KindInternal, "token resolution failed")
				default:
					log.Error("ingestion token resolution failed", zap.Error(err))
					response.Error(ctx, response.KindStorage, "token resolution unavailable")
				}
				return
			}

			httpctx.SetTenantID(ctx, tenantID)
			next(ctx)
		}
	}
}
