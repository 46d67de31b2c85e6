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
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/noivosapp/go-wedding-backend/internal/config"
	"github.com/noivosapp/go-wedding-backend/internal/crypto"
	"github.com/noivosapp/go-wedding-backend/internal/domain"
	"github.com/noivosapp/go-wedding-backend/internal/gateway"
	"github.com/noivosapp/go-wedding-backend/internal/http/handlers"
	"github.com/noivosapp/go-wedding-backend/internal/http/middleware"
	"github.com/noivosapp/go-wedding-backend/internal/notify"
	"github.com/noivosapp/go-wedding-backend/internal/reconcile"
	"github.com/noivosapp/go-wedding-backend/internal/repo"
	"github.com/noivosapp/go-wedding-backend/internal/services"
)

// giftRepoShim adapts the repository free functions to the services.GiftRepo
// interface expected by the GiftService. This keeps services decoupled from
// the concrete repo package while reusing existing functions.
type giftRepoShim struct{}

// CreateGift proxies repo.CreateGift.
func (giftRepoShim) CreateGift(ctx context.Context, db *gorm.DB, title, description string, targetAmount float64, quotaTotal int) (*domain.Gift, error) {
	return repo.CreateGift(ctx, db, title, description, targetAmount, quotaTotal)
}

// GetGift proxies repo.GetGift.
func (giftRepoShim) GetGift(ctx context.Context, db *gorm.DB, id string) (*domain.Gift, error) {
	return repo.GetGift(ctx, db, id)
}

// ListGifts proxies repo.ListGifts.
func (giftRepoShim) ListGifts(ctx context.Context, db *gorm.DB, includeHidden bool) ([]domain.Gift, error) {
	return repo.ListGifts(ctx, db, includeHidden)
}

// SetGiftStatus proxies repo.SetGiftStatus.
func (giftRepoShim) SetGiftStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	return repo.SetGiftStatus(ctx, db, id, status)
}

// GiftsStats proxies repo.GiftsStats (ETag support).
func (giftRepoShim) GiftsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return repo.GiftsStats(ctx, db)
}

// ListApprovedContributions proxies repo.ListApprovedContributions.
func (giftRepoShim) ListApprovedContributions(ctx context.Context, db *gorm.DB, giftID string) ([]domain.Contribution, error) {
	return repo.ListApprovedContributions(ctx, db, giftID)
}

// contribRepoShim adapts the repository free functions to the
// services.ContributionRepo interface expected by the ContributionService.
type contribRepoShim struct{}

// CreateContribution proxies repo.CreateContribution.
func (contribRepoShim) CreateContribution(ctx context.Context, db *gorm.DB, in repo.NewContribution) (*domain.Contribution, error) {
	return repo.CreateContribution(ctx, db, in)
}

// GetContribution proxies repo.GetContribution.
func (contribRepoShim) GetContribution(ctx context.Context, db *gorm.DB, id string) (*domain.Contribution, error) {
	return repo.GetContribution(ctx, db, id)
}

// SetGatewayPayment proxies repo.SetGatewayPayment.
func (contribRepoShim) SetGatewayPayment(ctx context.Context, db *gorm.DB, id, gatewayPaymentID, rawResponse string) error {
	return repo.SetGatewayPayment(ctx, db, id, gatewayPaymentID, rawResponse)
}

// GetGift proxies repo.GetGift.
func (contribRepoShim) GetGift(ctx context.Context, db *gorm.DB, id string) (*domain.Gift, error) {
	return repo.GetGift(ctx, db, id)
}

// ListApprovedContributions proxies repo.ListApprovedContributions.
func (contribRepoShim) ListApprovedContributions(ctx context.Context, db *gorm.DB, giftID string) ([]domain.Contribution, error) {
	return repo.ListApprovedContributions(ctx, db, giftID)
}

// reconcileStoreShim adapts the repository free functions to the
// reconcile.Store interface expected by the Reconciler.
type reconcileStoreShim struct{}

// GetContributionByGatewayID proxies repo.GetContributionByGatewayID.
func (reconcileStoreShim) GetContributionByGatewayID(ctx context.Context, db *gorm.DB, gatewayPaymentID string) (*domain.Contribution, error) {
	return repo.GetContributionByGatewayID(ctx, db, gatewayPaymentID)
}

// GetContribution proxies repo.GetContribution.
func (reconcileStoreShim) GetContribution(ctx context.Context, db *gorm.DB, id string) (*domain.Contribution, error) {
	return repo.GetContribution(ctx, db, id)
}

// UpdateContributionStatus proxies repo.UpdateContributionStatus.
func (reconcileStoreShim) UpdateContributionStatus(ctx context.Context, db *gorm.DB, id, status, rawResponse string) error {
	return repo.UpdateContributionStatus(ctx, db, id, status, rawResponse)
}

// GetGift proxies repo.GetGift.
func (reconcileStoreShim) GetGift(ctx context.Context, db *gorm.DB, id string) (*domain.Gift, error) {
	return repo.GetGift(ctx, db, id)
}

// ListApprovedContributions proxies repo.ListApprovedContributions.
func (reconcileStoreShim) ListApprovedContributions(ctx context.Context, db *gorm.DB, giftID string) ([]domain.Contribution, error) {
	return repo.ListApprovedContributions(ctx, db, giftID)
}

// SetGiftStatus proxies repo.SetGiftStatus.
func (reconcileStoreShim) SetGiftStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	return repo.SetGiftStatus(ctx, db, id, status)
}

// RecordWebhookEvent proxies repo.RecordWebhookEvent.
func (reconcileStoreShim) RecordWebhookEvent(ctx context.Context, db *gorm.DB, paymentID, requestID, topic, payload string, signatureValid bool) (*domain.WebhookEvent, error) {
	return repo.RecordWebhookEvent(ctx, db, paymentID, requestID, topic, payload, signatureValid)
}

// MarkWebhookProcessed proxies repo.MarkWebhookProcessed.
func (reconcileStoreShim) MarkWebhookProcessed(ctx context.Context, db *gorm.DB, id string) error {
	return repo.MarkWebhookProcessed(ctx, db, id)
}

// gatewayFetcher resolves a gateway client per call so a credential rotated
// in the event configuration takes effect without a restart. A resolve
// failure (no credential) surfaces as a fetch error, which the reconciler
// degrades to the webhook payload or the local status.
type gatewayFetcher struct {
	resolve func(ctx context.Context) (*gateway.Client, error)
}

// GetPayment implements reconcile.PaymentFetcher.
func (f gatewayFetcher) GetPayment(ctx context.Context, paymentID string) (*gateway.Payment, error) {
	c, err := f.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return c.GetPayment(ctx, paymentID)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health, metrics and webhook endpoints,
// and then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Response compression
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// Field encryption for stored credentials and tax ids. Config guarantees
	// a non-empty secret, so a failure here is a programming error.
	cipher, err := crypto.New(cfg.AppSecretKey)
	if err != nil {
		panic(err)
	}

	// resolveClient builds a gateway client from the credential current at
	// call time: the stored event configuration wins, the environment token
	// is the fallback. Returns gateway.ErrNotConfigured when neither exists.
	resolveClient := func(ctx context.Context) (*gateway.Client, error) {
		token := cfg.Gateway.AccessToken
		if ec, err := repo.GetEventConfig(ctx, db); err == nil && ec.AccessToken != "" {
			if plain, decErr := cipher.DecryptLoose(ec.AccessToken); decErr == nil && plain != "" {
				token = plain
			}
		}
		return gateway.NewClient(gateway.Config{
			AccessToken:     token,
			BaseURL:         cfg.Gateway.BaseURL,
			NotificationURL: cfg.NotificationURL(),
			Timeout:         cfg.Gateway.Timeout,
			PixExpiry:       cfg.Gateway.PixExpiry,
		})
	}

	// webhookSecret resolves the signature secret the same way, so secret
	// rotation applies to the next delivery.
	webhookSecret := func(ctx context.Context) (string, error) {
		if ec, err := repo.GetEventConfig(ctx, db); err == nil && ec.WebhookSecret != "" {
			if plain, decErr := cipher.DecryptLoose(ec.WebhookSecret); decErr == nil && plain != "" {
				return plain, nil
			}
		}
		return cfg.Gateway.WebhookSecret, nil
	}

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			handlers.HeaderAdminToken,
			"x-signature",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Gzip responses (JSON payloads compress well)
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, key string, now time.Time) (bool, error) {
			return repo.HasIdempotencyKey(ctx, db, key, now)
		},
	))

	// 9) Token-bucket rate limiter per IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", handlers.HeaderAdminToken, middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
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
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", handlers.HeaderAdminToken, middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
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

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: reconciler + services ← repo/db/gateway
	var provider notify.Provider = notify.NoOpProvider{}
	if cfg.SMTP.Host != "" {
		provider = notify.NewSMTP(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	dispatcher := notify.NewDispatcher(provider, cfg.SMTP.InternalAlertTo)

	reconciler := &reconcile.Reconciler{
		DB:       db,
		Store:    reconcileStoreShim{},
		Gateway:  gatewayFetcher{resolve: resolveClient},
		Notifier: dispatcher,
		Secret:   webhookSecret,
	}

	giftSvc := services.NewGiftService(db, giftRepoShim{})
	contribSvc := services.NewContributionService(db, contribRepoShim{}, cipher,
		func(ctx context.Context) (services.PaymentCreator, error) {
			c, err := resolveClient(ctx)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		reconciler,
	)

	h := handlers.New(giftSvc, contribSvc, reconciler, db, cfg.IdempotencyTTL, cfg.AdminToken)

	// Gateway webhook endpoints live outside the versioned API base; the
	// callback URL registered on every payment points here.
	r.GET("/webhooks/payments", h.VerifyWebhook)
	r.POST("/webhooks/payments", h.ReceiveWebhook)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Gifts
		api.GET("/gifts", h.ListGifts)
		api.GET("/gifts/:id", h.GetGift)
		api.POST("/gifts", h.CreateGift)
		api.PUT("/gifts/:id/status", h.UpdateGiftStatus)
		api.GET("/gifts/:id/contributions", h.ListGiftContributions)

		// Contributions
		api.POST("/contributions", h.CreateContribution)
		api.GET("/contributions/:id/status", h.GetContributionStatus)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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
