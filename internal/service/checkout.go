package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/RENDAROBOTIC/rds-website/internal/domain"
	"github.com/RENDAROBOTIC/rds-website/internal/provider"
	apperrors "github.com/RENDAROBOTIC/rds-website/pkg/errors"
	"github.com/RENDAROBOTIC/rds-website/pkg/httpclient"
	"github.com/RENDAROBOTIC/rds-website/pkg/tracing"
	"github.com/RENDAROBOTIC/rds-website/pkg/validator"
)

const (
	successPath = "/checkout/success.html?session_id={CHECKOUT_SESSION_ID}"
	cancelPath  = "/checkout/cancelled.html"
)

// ProviderBreaker guards calls to the payment provider.
type ProviderBreaker = httpclient.Breaker[*provider.SessionResult]

// NewProviderBreaker returns a breaker that only counts provider outages as
// failures. A rejected request means the provider is up, and requests the
// caller abandoned say nothing about the provider.
func NewProviderBreaker(cfg httpclient.CircuitBreakerConfig, logger *slog.Logger) *ProviderBreaker {
	return httpclient.NewBreaker[*provider.SessionResult](cfg, logger, func(err error) bool {
		return err == nil || provider.IsRejected(err)
	})
}

// CheckoutConfig holds the session settings shared by every request.
type CheckoutConfig struct {
	Currency string
	// Domain is the redirect base URL. Empty means https://<request host>.
	Domain           string
	AllowedCountries []string
	ShippingRateID   string
}

// CheckoutService prices carts and opens hosted checkout sessions.
type CheckoutService struct {
	provider provider.Provider
	breaker  *ProviderBreaker
	taxes    *domain.TaxTable
	cfg      CheckoutConfig
	logger   *slog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	p provider.Provider,
	breaker *ProviderBreaker,
	taxes *domain.TaxTable,
	cfg CheckoutConfig,
	logger *slog.Logger,
) *CheckoutService {
	if cfg.Currency == "" {
		cfg.Currency = domain.DefaultCurrency
	}
	return &CheckoutService{
		provider: p,
		breaker:  breaker,
		taxes:    taxes,
		cfg:      cfg,
		logger:   logger,
	}
}

// CreateSessionInput is the cart posted by the storefront.
type CreateSessionInput struct {
	LineItems []domain.CartLineItem `json:"lineItems" validate:"max=99,dive"`
	Province  string                `json:"province" validate:"max=16"`

	// Host is the request host, used when no redirect domain is configured.
	Host string `json:"-"`
	// IdempotencyKey is forwarded to the provider when set.
	IdempotencyKey string `json:"-" validate:"max=255"`
}

// CreateSession validates the cart, adds sales tax for the province and asks
// the provider for a hosted checkout session. Unknown provinces are taxed at
// the default province's rate.
func (s *CheckoutService) CreateSession(ctx context.Context, input *CreateSessionInput) (*domain.CheckoutSession, error) {
	if input == nil || len(input.LineItems) == 0 {
		checkoutSessionsTotal.WithLabelValues(s.taxes.Default().Province, resultInvalid).Inc()
		return nil, apperrors.InvalidCart("No items in cart")
	}

	rate, matched := s.taxes.Resolve(input.Province)
	if !matched && strings.TrimSpace(input.Province) != "" {
		s.logger.DebugContext(ctx, "unknown province, using default tax rate",
			slog.String("requested", input.Province),
			slog.String("province", rate.Province),
		)
	}

	if err := validator.Validate(input); err != nil {
		checkoutSessionsTotal.WithLabelValues(rate.Province, resultInvalid).Inc()
		return nil, err
	}

	base, err := s.redirectBase(input.Host)
	if err != nil {
		checkoutSessionsTotal.WithLabelValues(rate.Province, resultInvalid).Inc()
		return nil, err
	}

	quote := domain.NewQuote(input.LineItems, rate, s.cfg.Currency)
	req := &provider.SessionInput{
		Items:            quote.Items,
		SuccessURL:       base + successPath,
		CancelURL:        base + cancelPath,
		AllowedCountries: s.cfg.AllowedCountries,
		ShippingRateID:   s.cfg.ShippingRateID,
		IdempotencyKey:   input.IdempotencyKey,
		Metadata:         map[string]string{"province": quote.Province},
	}

	res, err := s.createAtProvider(ctx, req)
	if err != nil {
		result := resultFailed
		switch {
		case ctx.Err() != nil:
			result = resultAborted
		case provider.IsRejected(err):
			result = resultRejected
		}
		checkoutSessionsTotal.WithLabelValues(quote.Province, result).Inc()
		return nil, toPaymentProviderError(err)
	}

	checkoutSessionsTotal.WithLabelValues(quote.Province, resultCreated).Inc()
	taxCollectedTotal.WithLabelValues(quote.Province).Add(float64(quote.Tax))

	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("session_id", res.ID),
		slog.String("provider", s.provider.Name()),
		slog.String("province", quote.Province),
		slog.Int64("subtotal", quote.Subtotal),
		slog.Int64("tax", quote.Tax),
		slog.Int("line_items", len(quote.Items)),
	)

	return &domain.CheckoutSession{
		ID:         res.ID,
		URL:        res.URL,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		Province:   quote.Province,
		Subtotal:   quote.Subtotal,
		Tax:        quote.Tax,
		Total:      quote.Total(),
	}, nil
}

func (s *CheckoutService) createAtProvider(ctx context.Context, req *provider.SessionInput) (res *provider.SessionResult, err error) {
	ctx, span := tracing.Start(ctx, "provider.CreateCheckoutSession",
		attribute.String("payment.provider", s.provider.Name()),
		attribute.Int("checkout.line_items", len(req.Items)),
	)
	defer func() { tracing.End(span, err) }()

	if s.breaker == nil {
		return s.provider.CreateCheckoutSession(ctx, req)
	}
	return s.breaker.Execute(ctx, func(ctx context.Context) (*provider.SessionResult, error) {
		return s.provider.CreateCheckoutSession(ctx, req)
	})
}

func (s *CheckoutService) redirectBase(host string) (string, error) {
	if s.cfg.Domain != "" {
		return strings.TrimRight(s.cfg.Domain, "/"), nil
	}
	if host == "" {
		return "", apperrors.InvalidInput("request host is required to build redirect URLs")
	}
	return "https://" + host, nil
}

// toPaymentProviderError surfaces the provider's message to the customer.
func toPaymentProviderError(err error) error {
	var pErr *provider.Error
	switch {
	case httpclient.IsOpen(err):
		return apperrors.PaymentProvider("Payment provider is temporarily unavailable, please try again shortly", err)
	case errors.Is(err, context.Canceled):
		return apperrors.PaymentProvider("Checkout request was cancelled", err)
	case errors.As(err, &pErr):
		return apperrors.PaymentProvider(pErr.Message, err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.PaymentProvider("Payment provider timed out", err)
	default:
		return apperrors.PaymentProvider(fmt.Sprintf("Payment provider error: %v", err), err)
	}
}
