package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/RENDAROBOTIC/rds-website/internal/service"
	"github.com/RENDAROBOTIC/rds-website/pkg/httputil"
)

const (
	maxWebhookBodyBytes = 64 << 10
	signatureHeader     = "Stripe-Signature"
)

// WebhookHandler receives payment provider webhooks.
type WebhookHandler struct {
	service *service.WebhookService
	logger  *slog.Logger
}

// NewWebhookHandler creates a new webhook HTTP handler.
func NewWebhookHandler(svc *service.WebhookService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: svc,
		logger:  logger,
	}
}

// WebhookResponse acknowledges a delivery.
type WebhookResponse struct {
	Received bool `json:"received"`
}

// Receive handles POST /api/webhook. The body is read raw; the signature
// covers its exact bytes.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		status, msg := http.StatusBadRequest, "Webhook Error: could not read body"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status, msg = http.StatusRequestEntityTooLarge, "Webhook Error: payload too large"
		}
		httputil.WriteJSON(w, status, httputil.ErrorBody{Error: msg, Code: "INVALID_INPUT"})
		return
	}

	if _, err := h.service.Handle(r.Context(), payload, r.Header.Get(signatureHeader)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, WebhookResponse{Received: true})
}
