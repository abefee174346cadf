package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/RENDAROBOTIC/rds-website/pkg/errors"
	"github.com/RENDAROBOTIC/rds-website/pkg/health"
	"github.com/RENDAROBOTIC/rds-website/pkg/httputil"
	"github.com/RENDAROBOTIC/rds-website/pkg/middleware"
)

// RouterConfig holds the cross-cutting router settings.
type RouterConfig struct {
	ServiceName       string
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string
	// SearchCacheMaxAge is the Cache-Control max-age for search responses, in seconds.
	SearchCacheMaxAge int
	CheckoutRateLimit middleware.RateLimitConfig
	// RequestTimeout bounds each /api request. Zero means defaultRequestTimeout.
	RequestTimeout    time.Duration
}

const defaultRequestTimeout = 30 * time.Second

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Checkout *CheckoutHandler
	Webhook  *WebhookHandler
	Search   *SearchHandler
	System   *SystemHandler
	Health   *health.Handler
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(h Handlers, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteError(w, req, apperrors.NotFound("route", req.URL.Path), logger)
	})

	// Health check endpoints
	r.Get("/health/live", h.Health.LivenessHandler())
	r.Get("/health/ready", h.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	// Search page
	r.With(middleware.CacheControl(cfg.SearchCacheMaxAge), chimw.Compress(5)).Get("/search", h.Search.Page)

	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))

		r.Get("/config", h.System.Config)
		r.Get("/test", h.System.Test)
		r.Get("/health", h.System.Health)

		r.With(middleware.CacheControl(cfg.SearchCacheMaxAge)).Get("/search", h.Search.Search)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.With(
				middleware.RateLimit(cfg.CheckoutRateLimit, logger),
				middleware.ContentTypeJSON,
			).Post("/create-checkout-session", h.Checkout.CreateCheckoutSession)
			r.Post("/webhook", h.Webhook.Receive)
		})
	})

	return r
}
