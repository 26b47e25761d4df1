// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, sessions, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic router setup; all infrastructure injected
//   - Identity only from the session; OTP endpoints behind a stricter limiter
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/config"
	"github.com/tbourn/go-zerohunger-backend/internal/events"
	"github.com/tbourn/go-zerohunger-backend/internal/http/handlers"
	"github.com/tbourn/go-zerohunger-backend/internal/http/middleware"
	"github.com/tbourn/go-zerohunger-backend/internal/repo"
	"github.com/tbourn/go-zerohunger-backend/internal/services"
	"github.com/tbourn/go-zerohunger-backend/internal/storage"
)

// multipartSlack is added to MaxUploadBytes for the form fields and part
// headers that travel with the image.
const multipartSlack = 64 << 10

// Infra carries the pluggable backends chosen at startup. Nil members fall
// back to the database session store, no image storage, and no event
// publishing.
type Infra struct {
	Sessions  services.SessionStore
	Images    storage.ImageStore
	Publisher events.Publisher

	// UploadDir is served at /uploads when images are stored locally.
	UploadDir string
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), CORS and security
// headers, health and metrics endpoints, and then mounts the versioned API
// under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger (or Logger): structured logs with secrets scrubbed
//  4. Recovery: capture panics after logger
//  5. Body size limiter (JSON and multipart caps)
//  6. Metrics
//  7. CORS, security headers, gzip
//
// Per group:
//   - public:        rate limiter keyed by client IP
//   - authenticated: RequireSession → Idempotency validator → rate limiter
//     (keyed by user, bypassed on replay)
//   - OTP routes:    an additional, stricter limiter
func RegisterRoutes(r *gin.Engine, db *gorm.DB, infra Infra, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging, redacted unless explicitly disabled
	if cfg.LogRedact {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{middleware.HeaderIdempotencyKey},
		}))
	} else {
		r.Use(middleware.Logger())
	}

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Body size limits
	r.Use(limitBody(cfg.MaxBodyBytes, cfg.MaxUploadBytes+multipartSlack))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "ETag", "Location", middleware.HeaderIdempotencyReplayed, "Retry-After"},
		// Bearer tokens travel in a header, never in cookies.
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		corsCfg.AllowAllOrigins = true
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
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Images are already compressed; metrics scrapers handle their own encoding.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/uploads"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", healthHandler(db))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if infra.UploadDir != "" {
		r.Static("/uploads", infra.UploadDir)
	}

	// Dependency injection: services ← repo/db/infra
	st := repo.Store{}
	pub := infra.Publisher
	if pub == nil {
		pub = events.Nop{}
	}
	sessions := infra.Sessions
	if sessions == nil {
		sessions = services.NewGormSessionStore(db)
	}
	identity := services.NewIdentityService(db, st, sessions, cfg.BcryptCost, cfg.SessionTTL)
	h := handlers.New(handlers.Deps{
		Identity: identity,
		Listings: &services.ListingService{
			DB: db, Listings: st, Events: st, Images: infra.Images, Publisher: pub,
			MaxPageSize: 100,
		},
		Requests: &services.RequestService{
			DB: db, Listings: st, Requests: st, Events: st, Publisher: pub,
		},
		Deliveries: &services.DeliveryService{
			DB: db, Requests: st, Assignments: st, Events: st, Publisher: pub,
		},
		Dashboards: &services.DashboardService{
			DB: db, Listings: st, Requests: st, Assignments: st,
			RecentLimit:  cfg.DashboardRecentLimit,
			PendingLimit: cfg.DashboardPendingLimit,
		},
		DB:             db,
		IdempotencyTTL: cfg.IdempotencyTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	// Token-bucket rate limiters: per user (or IP), and a stricter one for OTPs
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	otp := middleware.NewRateLimiter(cfg.OTPRateRPS, cfg.OTPRateBurst, middleware.KeyByUserOrIP()).Named("otp")

	idem := middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return rec != nil, err
		},
	)

	api := groupWithPrefix(r, cfg.APIBasePath) // e.g. "/api/v1"

	public := api.Group("", rl.Handler())
	{
		public.POST("/auth/register", middleware.NoStore(), h.Register)
		public.POST("/auth/login", middleware.NoStore(), h.Login)

		public.GET("/categories", h.Categories)
		public.GET("/listings", h.BrowseListings)
		public.GET("/listings/locations", h.ListingLocations)
		public.GET("/listings/:id", h.GetListing)
	}

	authed := api.Group("", middleware.RequireSession(identity), idem, rl.Handler())
	{
		// Account
		authed.POST("/auth/logout", middleware.NoStore(), h.Logout)
		authed.GET("/me", middleware.NoStore(), h.Me)
		authed.PUT("/me/role", middleware.NoStore(), h.SwitchRole)

		// Receiver
		authed.POST("/listings/:id/requests", h.SubmitRequest)
		authed.GET("/receiver/requests", middleware.NoStore(), h.ReceiverRequests)
		authed.GET("/receiver/dashboard", middleware.NoStore(), h.ReceiverDashboard)

		// Provider
		authed.GET("/provider/listings", h.ProviderListings)
		authed.POST("/provider/listings", h.CreateListing)
		authed.GET("/provider/listings/:id", h.ProviderListing)
		authed.POST("/provider/listings/:id/complete", h.CompleteListing)
		authed.GET("/provider/requests", middleware.NoStore(), h.ProviderRequests)
		authed.GET("/provider/dashboard", middleware.NoStore(), h.ProviderDashboard)

		// Delivery
		authed.GET("/delivery/requests", h.PickupRequests)
		authed.GET("/delivery/locations", h.DeliveryLocations)
		authed.POST("/delivery/requests/:id/accept", h.AcceptRequest)
		authed.GET("/delivery/assignments", h.Assignments)
		authed.GET("/delivery/assignments/:id", h.Assignment)
		authed.POST("/delivery/assignments/:id/pickup", otp.Handler(), h.Pickup)
		authed.POST("/delivery/assignments/:id/deliver", otp.Handler(), h.Deliver)
		authed.GET("/delivery/dashboard", h.DeliveryDashboard)
	}
}

// healthHandler reports liveness plus a database ping.
func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			middleware.LoggerFrom(c).Error().Err(err).Msg("health: database unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// limitBody returns a Gin middleware that caps the request body size using
// http.MaxBytesReader: multipart requests get multipartMax, everything else
// jsonMax. Requests exceeding the cap will cause downstream body reads to
// error.
func limitBody(jsonMax, multipartMax int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := jsonMax
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			limit = multipartMax
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
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
