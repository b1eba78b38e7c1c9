package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersAndPathFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/inventory/:id", func(c *gin.Context) { c.String(http.StatusOK, "hello") })
	r.GET("/statusonly", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/inventory/:id", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404"))

	for _, p := range []string{"/inventory/inventory_1", "/inventory/inventory_2", "/does-not-exist", "/statusonly"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/inventory/:id", "200")); got != baseOK+2 {
		t.Fatalf("route counter = %v; want %v (ids must collapse into the pattern)", got, baseOK+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404")); got != base404+1 {
		t.Fatalf("counter 404 fallback = %v; want %v", got, base404+1)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}

func TestMetrics_StreamGauge(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics("/events"))

	var during, inflightDuring float64
	r.GET("/events", func(c *gin.Context) {
		during = testutil.ToFloat64(streamsOpen.WithLabelValues("/events"))
		inflightDuring = testutil.ToFloat64(httpInflight)
		c.Status(http.StatusOK)
	})

	base := testutil.ToFloat64(streamsOpen.WithLabelValues("/events"))
	baseCount := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/events", "200"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/events", nil))

	if during != base+1 {
		t.Fatalf("open streams during request = %v; want %v", during, base+1)
	}
	if inflightDuring != 0 {
		t.Fatalf("streams must not count as in-flight, got %v", inflightDuring)
	}
	if after := testutil.ToFloat64(streamsOpen.WithLabelValues("/events")); after != base {
		t.Fatalf("open streams after = %v; want %v", after, base)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/events", "200")); got != baseCount+1 {
		t.Fatalf("stream requests still counted: got %v want %v", got, baseCount+1)
	}
}
