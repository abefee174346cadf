package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/RENDAROBOTIC/rds-website/internal/service"
	"github.com/RENDAROBOTIC/rds-website/pkg/httputil"
	"github.com/RENDAROBOTIC/rds-website/pkg/validator"
)

const (
	maxCheckoutBodyBytes = 1 << 20
	idempotencyKeyHeader = "Idempotency-Key"
)

// CheckoutHandler handles HTTP requests for checkout endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// CreateCheckoutSessionResponse keeps the storefront's {sessionId} contract.
type CreateCheckoutSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url,omitempty"`
}

// CreateCheckoutSession handles POST /api/create-checkout-session
func (h *CheckoutHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCheckoutBodyBytes)

	var req service.CreateSessionInput
	// An empty body is an empty cart, not malformed JSON.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.ErrorBody{
				Error: "request body too large",
				Code:  "PAYLOAD_TOO_LARGE",
			})
			return
		}
		httputil.WriteValidationError(w, r, errors.New("invalid request body"))
		return
	}

	req.Host = r.Host
	req.IdempotencyKey = r.Header.Get(idempotencyKeyHeader)

	session, err := h.service.CreateSession(r.Context(), &req)
	if err != nil {
		var valErr *validator.ValidationError
		if errors.As(err, &valErr) {
			httputil.WriteValidationError(w, r, err)
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, CreateCheckoutSessionResponse{
		SessionID: session.ID,
		URL:       session.URL,
	})
}
