package handlers

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/todd-reagan/nile-collector/internal/config"
	dbpkg "github.com/todd-reagan/nile-collector/internal/db"
	httpctx "github.com/todd-reagan/nile-collector/internal/http/ctx"
	"github.com/todd-reagan/nile-collector/internal/schema"
)

func TestMain(m *testing.M) {
	InitPrometheusMetrics()
	os.Exit(m.Run())
}

type mockTenantStore struct {
	mock.Mock
}

func (m *mockTenantStore) Get(ctx context.Context, tenantID string) (*dbpkg.TenantConfig, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dbpkg.TenantConfig), args.Error(1)
}

func (m *mockTenantStore) UpdateSettings(ctx context.Context, tenantID string, allowUnvalidated, summaryMode bool) (*dbpkg.TenantConfig, error) {
	args := m.Called(ctx, tenantID, allowUnvalidated, summaryMode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dbpkg.TenantConfig), args.Error(1)
}

func (m *mockTenantStore) RotateToken(ctx context.Context, tenantID string) (string, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Error(1)
}

type mockEventStore struct {
	mock.Mock
}

func (m *mockEventStore) Insert(ctx context.Context, e *dbpkg.Event) (bool, error) {
	args := m.Called(ctx, e)
	return args.Bool(0), args.Error(1)
}

func (m *mockEventStore) List(ctx context.Context, f dbpkg.ListFilter) ([]dbpkg.Event, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dbpkg.Event), args.Error(1)
}

func (m *mockEventStore) GetByID(ctx context.Context, tenantID, eventID string) (*dbpkg.Event, error) {
	args := m.Called(ctx, tenantID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dbpkg.Event), args.Error(1)
}

func (m *mockEventStore) ListRollups(ctx context.Context, tenantID string, since time.Time) ([]dbpkg.EventRollup, error) {
	args := m.Called(ctx, tenantID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dbpkg.EventRollup), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{IngestScheme: "Splunk", RequestTimeout: time.Second}
}

func defaultPolicy() PolicySource {
	p := schema.Default()
	return func() *schema.Policy { return p }
}

// authedCtx builds a request context carrying an authenticated tenant, the
// way the auth middleware leaves it.
func authedCtx(method, uri string, body []byte, tenantID string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if body != nil {
		req.SetBody(body)
	}
	ctx := new(fasthttp.RequestCtx)
	ctx.Init(&req, nil, nil)
	if tenantID != "" {
		httpctx.SetTenantID(ctx, tenantID)
	}
	return ctx
}

func decodeBody(t *testing.T, ctx *fasthttp.RequestCtx) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &m))
	return m
}
