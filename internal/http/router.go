// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// authentication, CORS, compression, security headers, idempotency, and rate
// limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/vendor-ledger/internal/config"
	"github.com/tbourn/vendor-ledger/internal/http/handlers"
	"github.com/tbourn/vendor-ledger/internal/http/middleware"
	"github.com/tbourn/vendor-ledger/internal/repo"
)

// defaultBodyLimit caps request bodies on every route except the import.
const defaultBodyLimit = 1 << 20

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), authentication,
// idempotency and rate limiting, compression, CORS and security headers,
// health and metrics endpoints, and then mounts the versioned API under
// cfg.APIBasePath: the auth entry points are public, everything else requires
// a bearer token.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter (larger cap for the import route)
//  6. Metrics
//  7. Authenticate: resolve the bearer token so later steps key by user
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. gzip (not for /metrics, the event stream, or xlsx downloads)
//  11. CORS and Security headers
func RegisterRoutes(r *gin.Engine, cfg config.Config, deps handlers.Deps) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // project-specific sensitive header example
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	api := cfg.APIBasePath
	if api == "/" {
		api = ""
	}

	// 5) Body size limits
	r.Use(limitBodyByRoute(defaultBodyLimit, map[string]int64{
		api + "/import": cfg.ImportMaxBytes,
	}))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics(api + "/events"))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Bearer token → identity (does not reject)
	r.Use(middleware.Authenticate(deps.Auth))

	// 8) Idempotency validation (before rate limiting)
	var lookup middleware.IdempotencyLookup
	if db := deps.DB; db != nil {
		lookup = func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return rec != nil, err
		}
	}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, lookup))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).
		Exempt("/health", "/metrics", api+"/events")
	r.Use(rl.Handler())

	// 10) Response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/metrics", api + "/events", api + "/export"}),
	))

	// 11) CORS posture (safe defaults: allow all if none configured)
	exposed := []string{"X-Request-ID", "Content-Length", "ETag", "Content-Disposition", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    exposed,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    exposed,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStorePaths: []string{api + "/auth"},
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(deps)

	g := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Identity (public)
		g.POST("/auth/signin", h.SignIn)
		g.POST("/auth/signup", h.SignUp)
		g.POST("/auth/federated", h.FederatedSignIn)
		g.POST("/auth/password-reset", h.RequestPasswordReset)
		g.POST("/auth/password-reset/confirm", h.ConfirmPasswordReset)
	}

	p := g.Group("", middleware.RequireAuth())
	{
		p.POST("/auth/signout", h.SignOut)
		p.GET("/auth/session", h.Session)

		// Inventory
		p.GET("/inventory", h.ListInventory)
		p.POST("/inventory", h.AddInventoryItem)
		p.PUT("/inventory/:id", h.RenameInventoryItem)
		p.DELETE("/inventory/:id", h.RemoveInventoryItem)

		// Vendors
		p.GET("/vendors/lifetime", h.ListLifetimeVendors)
		p.POST("/vendors/lifetime", h.SaveLifetimeVendor)
		p.POST("/vendors/lifetime/top-items", h.EditTopItems)
		p.DELETE("/vendors/lifetime/:id", h.DeleteLifetimeVendor)
		p.GET("/vendors/daily", h.ListDailyVendors)
		p.POST("/vendors/daily", h.SaveDailyVendor)
		p.DELETE("/vendors/daily/:id", h.DeleteDailyVendor)
		p.GET("/stats", h.Stats)

		// Spreadsheet bridge
		p.GET("/export", h.Export)
		p.POST("/import", h.Import)

		// Live snapshots
		p.GET("/events", h.Events)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return limitBodyByRoute(maxBytes, nil)
}

// limitBodyByRoute is limitBody with per-route caps keyed by the matched
// route pattern; unmatched routes get def.
func limitBodyByRoute(def int64, byRoute map[string]int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		n := def
		if v, ok := byRoute[c.FullPath()]; ok && v > 0 {
			n = v
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
