package mock

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/RENDAROBOTIC/rds-website/internal/provider"
)

// Provider is a mock checkout provider for development and testing.
// Every request with at least one item gets a fresh session.
type Provider struct {
	baseURL string
}

// New creates a mock provider whose session URLs live under baseURL.
func New(baseURL string) *Provider {
	if baseURL == "" {
		baseURL = "https://checkout.mock.local"
	}
	return &Provider{baseURL: baseURL}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mock"
}

// CreateCheckoutSession returns a generated session.
func (p *Provider) CreateCheckoutSession(ctx context.Context, input *provider.SessionInput) (*provider.SessionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &provider.Error{Message: "request cancelled", Err: err}
	}
	if input == nil || len(input.Items) == 0 {
		return nil, &provider.Error{
			Message:  "line_items must contain at least one item",
			Rejected: true,
			Err:      errors.New("empty session"),
		}
	}

	id := "cs_mock_" + uuid.New().String()
	return &provider.SessionResult{
		ID:  id,
		URL: p.baseURL + "/pay/" + id,
	}, nil
}
