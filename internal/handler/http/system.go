package http

import (
	"net/http"
	"time"

	"github.com/RENDAROBOTIC/rds-website/pkg/httputil"
)

// isoMillis matches the browser's Date.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z"

// SystemHandler serves the storefront's bootstrap and status endpoints.
type SystemHandler struct {
	publishableKey   string
	stripeConfigured bool
	now              func() time.Time
}

// NewSystemHandler creates a new system handler.
func NewSystemHandler(publishableKey string, stripeConfigured bool) *SystemHandler {
	return &SystemHandler{
		publishableKey:   publishableKey,
		stripeConfigured: stripeConfigured,
		now:              time.Now,
	}
}

// ConfigResponse is returned by GET /api/config.
type ConfigResponse struct {
	PublishableKey string `json:"publishableKey"`
}

// StatusResponse is returned by GET /api/health.
type StatusResponse struct {
	Status           string `json:"status"`
	Timestamp        string `json:"timestamp"`
	StripeConfigured bool   `json:"stripe_configured"`
}

// PingResponse is returned by GET /api/test.
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Config handles GET /api/config
func (h *SystemHandler) Config(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, ConfigResponse{PublishableKey: h.publishableKey})
}

// Test handles GET /api/test
func (h *SystemHandler) Test(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, PingResponse{
		Message:   "Server is working!",
		Timestamp: h.timestamp(),
	})
}

// Health handles GET /api/health
func (h *SystemHandler) Health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:           "ok",
		Timestamp:        h.timestamp(),
		StripeConfigured: h.stripeConfigured,
	})
}

func (h *SystemHandler) timestamp() string {
	return h.now().UTC().Format(isoMillis)
}
