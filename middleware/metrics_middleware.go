package middleware

import (
	"context"
	"strconv"
	"time"

	"luci-rpc/transport"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors updated by MetricsMiddleware.
type Metrics struct {
	Requests *prometheus.CounterVec
	Calls    prometheus.Counter
	Duration prometheus.Histogram
}

// NewMetrics creates and registers the request collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luci_rpc",
			Name:      "requests_total",
			Help:      "ubus HTTP requests by response class.",
		}, []string{"code"}),
		Calls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "luci_rpc",
			Name:      "envelopes_total",
			Help:      "Envelopes sent, counting each call in a batch.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "luci_rpc",
			Name:      "request_duration_seconds",
			Help:      "Round trip time of ubus HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.Requests, m.Calls, m.Duration)
	return m
}

// MetricsMiddleware records request counts and latency.
func MetricsMiddleware(m *Metrics) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			m.Duration.Observe(time.Since(start).Seconds())
			m.Calls.Add(float64(req.Calls))

			code := "error"
			if err == nil {
				code = strconv.Itoa(resp.Status/100) + "xx"
			}
			m.Requests.WithLabelValues(code).Inc()
			return resp, err
		}
	}
}
