package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RENDAROBOTIC/rds-website/internal/catalog"
	"github.com/RENDAROBOTIC/rds-website/internal/config"
	"github.com/RENDAROBOTIC/rds-website/internal/domain"
	"github.com/RENDAROBOTIC/rds-website/internal/event"
	handler "github.com/RENDAROBOTIC/rds-website/internal/handler/http"
	"github.com/RENDAROBOTIC/rds-website/internal/provider"
	"github.com/RENDAROBOTIC/rds-website/internal/provider/mock"
	"github.com/RENDAROBOTIC/rds-website/internal/provider/stripe"
	"github.com/RENDAROBOTIC/rds-website/internal/repository"
	"github.com/RENDAROBOTIC/rds-website/internal/repository/memory"
	redisrepo "github.com/RENDAROBOTIC/rds-website/internal/repository/redis"
	"github.com/RENDAROBOTIC/rds-website/internal/service"
	"github.com/RENDAROBOTIC/rds-website/pkg/database"
	"github.com/RENDAROBOTIC/rds-website/pkg/health"
	"github.com/RENDAROBOTIC/rds-website/pkg/httpclient"
	pkgkafka "github.com/RENDAROBOTIC/rds-website/pkg/kafka"
	"github.com/RENDAROBOTIC/rds-website/pkg/middleware"
	"github.com/RENDAROBOTIC/rds-website/pkg/tracing"
)

// Version is reported to the tracing backend. Overridden at build time.
var Version = "0.1.0"

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.TracingConfig(Version))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}

	products, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		a.closeDeps()
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	logger.Info("catalog loaded",
		slog.String("path", cfg.CatalogPath),
		slog.Int("products", products.Len()),
	)

	taxes, err := domain.NewTaxTable(cfg.DefaultProvince)
	if err != nil {
		a.closeDeps()
		return nil, fmt.Errorf("build tax table: %w", err)
	}

	paymentProvider := a.newProvider()
	breaker := service.NewProviderBreaker(cfg.BreakerConfig(), logger)
	logger.Info("payment provider initialized",
		slog.String("provider", paymentProvider.Name()),
		slog.Bool("stripe_configured", cfg.StripeConfigured()),
		slog.Duration("timeout", cfg.ProviderTimeout),
	)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("payment_provider", func(context.Context) error {
		if cfg.PaymentProvider == config.ProviderStripe && !cfg.StripeConfigured() {
			return errors.New("STRIPE_SECRET_KEY is not set")
		}
		return nil
	})

	// Processed-event store: Redis when configured so replicas share it.
	var claims repository.ProcessedEventRepository
	if rc := cfg.RedisConfig(); rc.Enabled() {
		client, err := database.NewRedisClient(ctx, rc)
		if err != nil {
			a.closeDeps()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		claims = redisrepo.NewProcessedEventRepository(client, cfg.WebhookDedupTTL)
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		logger.Info("connected to Redis", slog.String("addr", rc.Addr()), slog.Int("db", rc.DB))
	} else {
		claims = memory.NewProcessedEventRepository(cfg.WebhookDedupTTL)
		logger.Info("using in-memory webhook event store")
	}

	var fulfiller service.Fulfiller
	if cfg.KafkaEnabled() {
		producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.producer = producer
		fulfiller = event.NewProducer(producer, cfg.FulfillmentTopic, logger)
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
		logger.Info("kafka producer initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("topic", cfg.FulfillmentTopic),
		)
	} else {
		fulfiller = service.NewLogFulfiller(logger)
	}

	if cfg.StripeWebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET is not set; webhook signatures will not be verified")
	}

	checkoutService := service.NewCheckoutService(paymentProvider, breaker, taxes, service.CheckoutConfig{
		Currency:         cfg.Currency,
		Domain:           cfg.Domain,
		AllowedCountries: cfg.ShippingAllowedCountries,
		ShippingRateID:   cfg.StripeShippingRateID,
	}, logger)
	webhookService := service.NewWebhookService(service.WebhookConfig{
		Secret:    cfg.StripeWebhookSecret,
		Tolerance: cfg.WebhookTolerance,
	}, claims, fulfiller, logger)
	searchService := service.NewSearchService(products, logger)

	searchHandler, err := handler.NewSearchHandler(searchService, logger)
	if err != nil {
		a.closeDeps()
		return nil, fmt.Errorf("build search handler: %w", err)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment

	router := handler.NewRouter(handler.Handlers{
		Checkout: handler.NewCheckoutHandler(checkoutService, logger),
		Webhook:  handler.NewWebhookHandler(webhookService, logger),
		Search:   searchHandler,
		System:   handler.NewSystemHandler(cfg.StripePublishableKey, cfg.StripeConfigured()),
		Health:   healthHandler,
	}, handler.RouterConfig{
		ServiceName:       cfg.ServiceName,
		CORS:              cors,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		SearchCacheMaxAge: cfg.SearchCacheMaxAge,
		CheckoutRateLimit: cfg.CheckoutRateLimit(),
		RequestTimeout:    cfg.RequestTimeout(),
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) newProvider() provider.Provider {
	if a.cfg.PaymentProvider == config.ProviderMock {
		return mock.New("")
	}
	client := httpclient.New(httpclient.Config{
		Timeout:         a.cfg.ProviderTimeout,
		MaxConnsPerHost: httpclient.DefaultConfig().MaxConnsPerHost,
	})
	return stripe.New(stripe.Config{
		SecretKey:  a.cfg.StripeSecretKey,
		APIURL:     a.cfg.StripeAPIURL,
		HTTPClient: client,
	}, a.logger)
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Addr returns the address the HTTP server listens on.
func (a *App) Addr() string {
	return a.httpServer.Addr
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.closeDeps())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: HTTP server, tracer,
// Kafka producer, Redis client.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.closeDeps(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeDeps releases everything but the HTTP server. Safe to call twice.
func (a *App) closeDeps() error {
	var errs []error

	// Flush spans after the HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}

	return errors.Join(errs...)
}
