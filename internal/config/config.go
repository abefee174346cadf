package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/RENDAROBOTIC/rds-website/internal/domain"
	pkgconfig "github.com/RENDAROBOTIC/rds-website/pkg/config"
	"github.com/RENDAROBOTIC/rds-website/pkg/database"
	"github.com/RENDAROBOTIC/rds-website/pkg/httpclient"
	"github.com/RENDAROBOTIC/rds-website/pkg/middleware"
	"github.com/RENDAROBOTIC/rds-website/pkg/tracing"
)

// Payment provider names.
const (
	ProviderStripe = "stripe"
	ProviderMock   = "mock"
)

// Config holds all configuration for the storefront service.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"storefront"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	Port            int           `env:"PORT" envDefault:"4242"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Payment provider
	PaymentProvider string        `env:"PAYMENT_PROVIDER" envDefault:"stripe"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"20s"`

	// Stripe
	StripeSecretKey      string `env:"STRIPE_SECRET_KEY"`
	StripePublishableKey string `env:"STRIPE_PUBLISHABLE_KEY"`
	StripeWebhookSecret  string `env:"STRIPE_WEBHOOK_SECRET"`
	StripeShippingRateID string `env:"STRIPE_SHIPPING_RATE_ID"`
	StripeAPIURL         string `env:"STRIPE_API_URL"`

	// Checkout
	Domain                   string   `env:"DOMAIN"`
	Currency                 string   `env:"CURRENCY" envDefault:"cad"`
	DefaultProvince          string   `env:"DEFAULT_PROVINCE" envDefault:"BC"`
	ShippingAllowedCountries []string `env:"SHIPPING_ALLOWED_COUNTRIES" envDefault:"US,CA" envSeparator:","`

	// Webhook
	WebhookTolerance time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"300s"`
	WebhookDedupTTL  time.Duration `env:"WEBHOOK_DEDUP_TTL" envDefault:"72h"`

	// Per-client limit on session creation. 0 RPS disables it.
	CheckoutRateLimitRPS   float64 `env:"CHECKOUT_RATE_LIMIT_RPS" envDefault:"2"`
	CheckoutRateLimitBurst int     `env:"CHECKOUT_RATE_LIMIT_BURST" envDefault:"10"`
	TrustProxyHeaders      bool    `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// Catalog
	CatalogPath       string `env:"CATALOG_PATH"`
	SearchCacheMaxAge int    `env:"SEARCH_CACHE_MAX_AGE" envDefault:"60"`

	// Redis (empty host disables the shared event dedupe store)
	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka (no brokers disables the fulfillment publisher)
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	FulfillmentTopic string   `env:"FULFILLMENT_TOPIC" envDefault:"storefront.checkout.completed"`

	// Circuit breaker settings for the payment provider
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELInsecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from a .env file, when present, and the environment.
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with explicit dotenv files.
func LoadFrom(dotenvFiles ...string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, dotenvFiles...); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.PaymentProvider = strings.ToLower(strings.TrimSpace(c.PaymentProvider))
	c.Currency = strings.ToLower(strings.TrimSpace(c.Currency))
	c.DefaultProvince = domain.NormalizeProvince(c.DefaultProvince)
	c.Domain = strings.TrimRight(strings.TrimSpace(c.Domain), "/")

	countries := make([]string, 0, len(c.ShippingAllowedCountries))
	for _, cc := range c.ShippingAllowedCountries {
		if cc = strings.ToUpper(strings.TrimSpace(cc)); cc != "" {
			countries = append(countries, cc)
		}
	}
	c.ShippingAllowedCountries = countries
}

// validate rejects settings the service cannot run with.
func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	switch c.PaymentProvider {
	case ProviderStripe, ProviderMock:
	default:
		return fmt.Errorf("PAYMENT_PROVIDER must be %q or %q, got %q", ProviderStripe, ProviderMock, c.PaymentProvider)
	}
	if _, ok := domain.LookupTaxRate(c.DefaultProvince); !ok {
		return fmt.Errorf("DEFAULT_PROVINCE %q is not a supported province (one of %s)",
			c.DefaultProvince, strings.Join(domain.Provinces(), ", "))
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CURRENCY must be a 3-letter ISO code, got %q", c.Currency)
	}
	for _, cc := range c.ShippingAllowedCountries {
		if len(cc) != 2 {
			return fmt.Errorf("SHIPPING_ALLOWED_COUNTRIES: %q is not a two-letter country code", cc)
		}
	}
	if c.Domain != "" {
		u, err := url.ParseRequestURI(c.Domain)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid DOMAIN %q: must be an absolute http(s) URL", c.Domain)
		}
	}
	if c.StripeAPIURL != "" {
		if _, err := url.ParseRequestURI(c.StripeAPIURL); err != nil {
			return fmt.Errorf("invalid STRIPE_API_URL %q: %w", c.StripeAPIURL, err)
		}
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", c.ProviderTimeout)
	}
	if c.WebhookTolerance <= 0 {
		return fmt.Errorf("WEBHOOK_TOLERANCE must be positive, got %s", c.WebhookTolerance)
	}
	if c.WebhookDedupTTL <= 0 {
		return fmt.Errorf("WEBHOOK_DEDUP_TTL must be positive, got %s", c.WebhookDedupTTL)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %f", c.CBFailureRatio)
	}
	if c.CheckoutRateLimitRPS < 0 {
		return fmt.Errorf("CHECKOUT_RATE_LIMIT_RPS must not be negative, got %f", c.CheckoutRateLimitRPS)
	}
	if c.CheckoutRateLimitRPS > 0 && c.CheckoutRateLimitBurst < 1 {
		return fmt.Errorf("CHECKOUT_RATE_LIMIT_BURST must be at least 1, got %d", c.CheckoutRateLimitBurst)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// StripeConfigured reports whether a Stripe secret key is set.
func (c *Config) StripeConfigured() bool {
	return c.StripeSecretKey != ""
}

// KafkaEnabled reports whether fulfillment events are published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// RedisConfig returns the Redis connection settings.
func (c *Config) RedisConfig() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// BreakerConfig returns the payment provider circuit breaker settings.
func (c *Config) BreakerConfig() httpclient.CircuitBreakerConfig {
	cb := httpclient.DefaultCircuitBreakerConfig(c.PaymentProvider)
	cb.MaxRequests = c.CBMaxRequests
	cb.Interval = time.Duration(c.CBInterval) * time.Second
	cb.Timeout = time.Duration(c.CBTimeout) * time.Second
	cb.FailureRatio = c.CBFailureRatio
	cb.MinRequests = c.CBMinRequests
	return cb
}

// RequestTimeout bounds a single /api request. It leaves room for a full
// provider call plus the work around it.
func (c *Config) RequestTimeout() time.Duration {
	return c.ProviderTimeout + 10*time.Second
}

// CheckoutRateLimit returns the per-client limit on session creation.
func (c *Config) CheckoutRateLimit() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		RPS:            c.CheckoutRateLimitRPS,
		Burst:          c.CheckoutRateLimitBurst,
		TrustForwarded: c.TrustProxyHeaders,
	}
}

// TracingConfig returns the OpenTelemetry settings.
func (c *Config) TracingConfig(version string) tracing.Config {
	tc := tracing.DefaultConfig(c.ServiceName)
	tc.ServiceVersion = version
	tc.Environment = c.Environment
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.Insecure = c.OTELInsecure
	tc.SampleRate = c.OTELSampleRate
	tc.Enabled = c.OTELEnabled
	return tc
}
