// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/fingermelody/ai-generation-codebuddy/internal/config"
	"github.com/fingermelody/ai-generation-codebuddy/internal/http/handlers"
	"github.com/fingermelody/ai-generation-codebuddy/internal/http/middleware"
	"github.com/fingermelody/ai-generation-codebuddy/internal/providers/generation"
	"github.com/fingermelody/ai-generation-codebuddy/internal/providers/payment"
	"github.com/fingermelody/ai-generation-codebuddy/internal/repo"
	"github.com/fingermelody/ai-generation-codebuddy/internal/secrets"
	"github.com/fingermelody/ai-generation-codebuddy/internal/services"
	"github.com/fingermelody/ai-generation-codebuddy/internal/worker"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and wires the service graph. It returns the generation service so
// the caller can hook it to the worker pool's failure callback and run the
// startup requeue of abandoned tasks.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, box *secrets.Box, pool *worker.Pool, cfg config.Config) *services.GenerationService {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
			exists, err := repo.OrderKeyExists(ctx, db, userID, key, now)
			if err != nil {
				return false, nil
			}
			return exists, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps
		// tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist.
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
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS).
	// NoStore matters here: order-status responses carry one-shot download
	// URLs that must never be served from an intermediary cache.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
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

	// Dependency injection: services ← repo/db/providers/pool
	modelSvc := services.NewModelRegistry(db, box)
	genSvc := services.NewGenerationService(
		db,
		modelSvc,
		generation.NewRegistry(cfg.Provider.Latency),
		pool,
	)
	orderSvc := services.NewPaymentService(
		db,
		payment.NewRegistry(),
		cfg.Payment.OrderTTL,
		cfg.Payment.PermissionTTL,
		cfg.Payment.MaxDownloads,
		cfg.Payment.IdempotencyTTL,
		cfg.Payment.CallbackSecrets,
	)
	statsSvc := services.NewStatsService(db)
	h := handlers.New(genSvc, orderSvc, modelSvc, statsSvc)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Generation
		api.POST("/generations/text2img", h.TextToImage)
		api.POST("/generations/img2model3d", h.ImageToModel3D)
		api.GET("/tasks/:id/progress", h.TaskProgress)

		// Orders and payments
		api.POST("/orders", h.CreateOrder)
		api.GET("/orders", h.ListOrders)
		api.GET("/orders/:id", h.OrderStatus)
		api.POST("/payments/:method/callback", h.PaymentCallback)

		// Model catalog
		api.GET("/models", h.ListModels)

		// Admin
		admin := api.Group("/admin")
		admin.GET("/models", h.AdminListModels)
		admin.POST("/models", h.AdminCreateModel)
		admin.PUT("/models/:id", h.AdminUpdateModel)
		admin.PATCH("/models/:id/status", h.AdminToggleModelStatus)
		admin.DELETE("/models/:id", h.AdminDeleteModel)
		admin.GET("/stats", h.AdminStats)
	}

	return genSvc
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader. Requests over the cap error on body read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
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
