package stripe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	gostripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/RENDAROBOTIC/rds-website/internal/provider"
)

// Config holds the Stripe connection settings.
type Config struct {
	SecretKey string
	// APIURL overrides the Stripe API base URL (tests, stripe-mock).
	APIURL     string
	HTTPClient *http.Client
}

// Provider creates Stripe Checkout sessions.
type Provider struct {
	sessions session.Client
	logger   *slog.Logger
}

// New builds a provider on its own backend so the process-global stripe.Key
// is never touched. The SDK never retries.
func New(cfg Config, logger *slog.Logger) *Provider {
	backendCfg := &gostripe.BackendConfig{
		HTTPClient:        cfg.HTTPClient,
		LeveledLogger:     &leveledLogger{logger: logger},
		MaxNetworkRetries: gostripe.Int64(0),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = gostripe.String(cfg.APIURL)
	}

	return &Provider{
		sessions: session.Client{
			B:   gostripe.GetBackendWithConfig(gostripe.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		logger: logger,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stripe"
}

// CreateCheckoutSession opens a hosted Checkout session in payment mode.
func (p *Provider) CreateCheckoutSession(ctx context.Context, input *provider.SessionInput) (*provider.SessionResult, error) {
	params := sessionParams(input)
	params.Context = ctx

	s, err := p.sessions.New(params)
	if err != nil {
		return nil, toProviderError(err)
	}

	p.logger.DebugContext(ctx, "stripe checkout session created",
		slog.String("session_id", s.ID),
	)

	return &provider.SessionResult{ID: s.ID, URL: s.URL}, nil
}

func sessionParams(input *provider.SessionInput) *gostripe.CheckoutSessionParams {
	lineItems := make([]*gostripe.CheckoutSessionLineItemParams, 0, len(input.Items))
	for _, it := range input.Items {
		productData := &gostripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: gostripe.String(it.Name),
		}
		// Stripe refuses empty strings.
		if it.Description != "" {
			productData.Description = gostripe.String(it.Description)
		}
		lineItems = append(lineItems, &gostripe.CheckoutSessionLineItemParams{
			PriceData: &gostripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    gostripe.String(it.Currency),
				UnitAmount:  gostripe.Int64(it.UnitAmount),
				ProductData: productData,
			},
			Quantity: gostripe.Int64(it.Quantity),
		})
	}

	params := &gostripe.CheckoutSessionParams{
		Mode:               gostripe.String(string(gostripe.CheckoutSessionModePayment)),
		LineItems:          lineItems,
		PaymentMethodTypes: gostripe.StringSlice([]string{"card"}),
		SuccessURL:         gostripe.String(input.SuccessURL),
		CancelURL:          gostripe.String(input.CancelURL),
		AutomaticTax: &gostripe.CheckoutSessionAutomaticTaxParams{
			Enabled: gostripe.Bool(false),
		},
	}

	if len(input.AllowedCountries) > 0 {
		params.ShippingAddressCollection = &gostripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: gostripe.StringSlice(input.AllowedCountries),
		}
	}
	if input.ShippingRateID != "" {
		params.ShippingOptions = []*gostripe.CheckoutSessionShippingOptionParams{
			{ShippingRate: gostripe.String(input.ShippingRateID)},
		}
	}
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}
	for k, v := range input.Metadata {
		params.AddMetadata(k, v)
	}

	return params
}

// toProviderError keeps Stripe's own message; it is what the customer sees.
func toProviderError(err error) error {
	var stripeErr *gostripe.Error
	if errors.As(err, &stripeErr) {
		msg := stripeErr.Msg
		if msg == "" {
			msg = fmt.Sprintf("stripe request failed with status %d", stripeErr.HTTPStatusCode)
		}
		return &provider.Error{
			Message:  msg,
			Rejected: rejected(stripeErr.HTTPStatusCode),
			Err:      err,
		}
	}
	return &provider.Error{Message: err.Error(), Err: err}
}

// rejected is true for client errors other than auth and rate limiting,
// which say something about the integration rather than the request.
func rejected(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return false
	}
	return status >= 400 && status < 500
}

// leveledLogger routes SDK logs into slog.
type leveledLogger struct {
	logger *slog.Logger
}

func (l *leveledLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), slog.String("component", "stripe"))
}

func (l *leveledLogger) Infof(format string, v ...any) {
	// The SDK logs every request at info; that is request-log noise here.
	l.logger.Debug(fmt.Sprintf(format, v...), slog.String("component", "stripe"))
}

func (l *leveledLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...), slog.String("component", "stripe"))
}

func (l *leveledLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), slog.String("component", "stripe"))
}
