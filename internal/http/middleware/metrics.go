// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. Labels are
// method, the registered route pattern (raw path when nothing matched) and
// status, which keeps cardinality bounded: vendor and item ids only ever
// appear as :id.
//
// Long-lived routes (the live event stream) are counted but kept out of the
// latency and size histograms, and tracked by their own open-streams gauge.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// Status is left out to keep the histogram small.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests, excluding open streams.",
		},
	)

	// Buckets run up to workbook-sized exports.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				200, 1 << 10, 5 << 10, 25 << 10, 100 << 10,
				500 << 10, 1 << 20, 5 << 20, 10 << 20, 25 << 20,
			},
		},
		[]string{"method", "path"},
	)

	streamsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledger_event_streams_open",
			Help: "Live event streams currently connected, by route.",
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, streamsOpen)
}

// Metrics instruments every request. Route patterns listed in streams are
// treated as long-lived: they move ledger_event_streams_open instead of the
// in-flight gauge and are not observed by the histograms.
func Metrics(streams ...string) gin.HandlerFunc {
	long := make(map[string]struct{}, len(streams))
	for _, s := range streams {
		long[s] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		_, isStream := long[path]

		if isStream {
			g := streamsOpen.WithLabelValues(path)
			g.Inc()
			defer g.Dec()
		} else {
			httpInflight.Inc()
			defer httpInflight.Dec()
		}

		c.Next()

		method := c.Request.Method
		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		if isStream {
			return
		}
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
