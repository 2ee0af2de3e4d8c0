package handlers

import (
	"bytes"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"

	"github.com/todd-reagan/nile-collector/internal/http/response"
)

var (
	eventsIngested *prometheus.CounterVec
	ingestRejected *prometheus.CounterVec
	storeDuration  prometheus.Histogram
)

func InitPrometheusMetrics() {
	eventsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nile",
			Name:      "events_ingested_total",
			Help:      "Total number of events accepted and stored.",
		},
		[]string{"tenant", "event_type"},
	)
	ingestRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nile",
			Name:      "events_rejected_total",
			Help:      "Total number of events rejected before storage.",
		},
		[]string{"tenant", "reason"},
	)
	storeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "nile",
			Name:      "event_store_duration_seconds",
			Help:      "Histogram of event persistence durations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
	prometheus.MustRegister(eventsIngested, ingestRejected, storeDuration)
}

// TenantMetricsHandler serves the Prometheus exposition restricted to the
// calling tenant. Families without a tenant label pass through whole;
// labeled families keep only the caller's series.
func TenantMetricsHandler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		tenantID, ok := MustTenant(ctx)
		if !ok {
			return
		}

		metricFamilies, err := prometheus.DefaultGatherer.Gather()
		if err != nil {
			response.Error(ctx, response.KindInternal, "failed to gather metrics")
			return
		}

		filtered := make([]*dto.MetricFamily, 0, len(metricFamilies))
		for _, mf := range metricFamilies {
			hasTenantLabel := false
			for _, m := range mf.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetName() == "tenant" {
						hasTenantLabel = true
						break
					}
				}
				if hasTenantLabel {
					break
				}
			}

			if !hasTenantLabel {
				filtered = append(filtered, mf)
				continue
			}

			var kept []*dto.Metric
			for _, m := range mf.GetMetric() {
				include := false
				for _, l := range m.GetLabel() {
					if l.GetName() == "tenant" && l.GetValue() == tenantID {
						include = true
						break
					}
				}
				if include {
					kept = append(kept, m)
				}
			}

			if len(kept) == 0 {
				continue
			}

			filtered = append(filtered, &dto.MetricFamily{
				Name:   mf.Name,
				Help:   mf.Help,
				Type:   mf.Type,
				Metric: kept,
			})
		}

		var buf bytes.Buffer
		encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
		for _, mf := range filtered {
			if err := encoder.Encode(mf); err != nil {
				response.Error(ctx, response.KindInternal, "failed to encode metrics")
				return
			}
		}

		ctx.SetContentType(string(expfmt.FmtText))
		ctx.Response.Header.Set("Cache-Control", "no-store")
		ctx.SetBody(buf.Bytes())
	}
}
