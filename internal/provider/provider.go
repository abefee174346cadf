package provider

import (
	"context"
	"errors"

	"github.com/RENDAROBOTIC/rds-website/internal/domain"
)

// SessionInput holds everything needed to open a hosted checkout session.
type SessionInput struct {
	Items            []domain.PurchasableItem
	SuccessURL       string
	CancelURL        string
	AllowedCountries []string
	ShippingRateID   string
	IdempotencyKey   string
	Metadata         map[string]string
}

// SessionResult is the provider's answer to a session request.
type SessionResult struct {
	ID  string
	URL string
}

// Provider defines the interface for hosted-checkout payment providers.
type Provider interface {
	// Name returns the provider name (e.g., "mock", "stripe").
	Name() string

	// CreateCheckoutSession opens a one-time payment session for the items.
	CreateCheckoutSession(ctx context.Context, input *SessionInput) (*SessionResult, error)
}

// Error is returned by providers for any failed call. Message is safe to
// show to the customer.
type Error struct {
	Message string
	// Rejected is set when the provider answered and refused the request,
	// as opposed to being unreachable or failing internally.
	Rejected bool
	Err      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRejected reports whether err is a provider refusal of a well-delivered
// request. Such calls prove the provider is healthy.
func IsRejected(err error) bool {
	var pErr *Error
	return errors.As(err, &pErr) && pErr.Rejected
}
