package handlers

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	dbpkg "github.com/todd-reagan/nile-collector/internal/db"
)

func TestStatsDefaultWindow(t *testing.T) {
	var since time.Time
	events := new(mockEventStore)
	events.On("ListRollups", mock.Anything, "acme", mock.Anything).Run(func(args mock.Arguments) {
		since = args.Get(2).(time.Time)
	}).Return([]dbpkg.EventRollup{
		{TenantID: "acme", BucketStart: time.Unix(1714557600, 0).UTC(), EventType: "nile_alerts", Count: 7},
	}, nil)

	handler := Stats(events, testConfig(), zap.NewNop())
	ctx := authedCtx(fasthttp.MethodGet, "/stats", nil, "acme")
	handler(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	assert.Zero(t, since.Minute())
	assert.Zero(t, since.Second())
	age := time.Since(since)
	assert.GreaterOrEqual(t, age, 24*time.Hour)
	assert.Less(t, age, 25*time.Hour+time.Minute)

	body := decodeBody(t, ctx)
	assert.Equal(t, float64(24), body["hours"])

	buckets := body["buckets"].([]any)
	require.Len(t, buckets, 1)
	bucket := buckets[0].(map[string]any)
	assert.Equal(t, "nile_alerts", bucket["event_type"])
	assert.Equal(t, float64(7), bucket["count"])
	assert.True(t, strings.HasSuffix(bucket["bucket"].(string), "Z"))
}

func TestStatsCapsHours(t *testing.T) {
	var since time.Time
	events := new(mockEventStore)
	events.On("ListRollups", mock.Anything, "acme", mock.Anything).Run(func(args mock.Arguments) {
		since = args.Get(2).(time.Time)
	}).Return([]dbpkg.EventRollup{}, nil)

	handler := Stats(events, testConfig(), zap.NewNop())
	ctx := authedCtx(fasthttp.MethodGet, "/stats?hours=9999", nil, "acme")
	handler(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, float64(720), decodeBody(t, ctx)["hours"])

	age := time.Since(since)
	assert.GreaterOrEqual(t, age, 720*time.Hour)
	assert.Less(t, age, 721*time.Hour+time.Minute)
}

func TestStatsIgnoresBadHours(t *testing.T) {
	events := new(mockEventStore)
	events.On("ListRollups", mock.Anything, "acme", mock.Anything).Return([]dbpkg.EventRollup{}, nil)

	handler := Stats(events, testConfig(), zap.NewNop())
	ctx := authedCtx(fasthttp.MethodGet, "/stats?hours=-3", nil, "acme")
	handler(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, float64(24), decodeBody(t, ctx)["hours"])
}

func TestStatsStorageError(t *testing.T) {
	events := new(mockEventStore)
	events.On("ListRollups", mock.Anything, "acme", mock.Anything).Return(nil, assert.AnError)

	handler := Stats(events, testConfig(), zap.NewNop())
	ctx := authedCtx(fasthttp.MethodGet, "/stats", nil, "acme")
	handler(ctx)

	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
	assert.Equal(t, "storage_error", decodeBody(t, ctx)["kind"])
}
