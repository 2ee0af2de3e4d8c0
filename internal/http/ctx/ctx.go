package ctx

import (
	"github.com/valyala/fasthttp"

	dbpkg "github.com/todd-reagan/nile-collector/internal/db"
)

const (
	TenantIDKey     = "tenantID"
	TenantConfigKey = "tenantConfig"
)

func SetTenantID(ctx *fasthttp.RequestCtx, tenantID string) {
	ctx.SetUserValue(TenantIDKey, tenantID)
}

func TenantIDFromCtx(ctx *fasthttp.RequestCtx) (string, bool) {
	v := ctx.UserValue(TenantIDKey)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func SetTenantConfig(ctx *fasthttp.RequestCtx, cfg *dbpkg.TenantConfig) {
	ctx.SetUserValue(TenantConfigKey, cfg)
}

func TenantConfigFromCtx(ctx *fasthttp.RequestCtx) (*dbpkg.TenantConfig, bool) {
	v := ctx.UserValue(TenantConfigKey)
	if v == nil {
		return nil, false
	}
	c, ok := v.(*dbpkg.TenantConfig)
	return c, ok
}
