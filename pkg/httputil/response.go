package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/RENDAROBOTIC/rds-website/pkg/errors"
	"github.com/RENDAROBOTIC/rds-website/pkg/logger"
	"github.com/RENDAROBOTIC/rds-website/pkg/validator"
)

// ErrorBody is the JSON body written for every failed request. The storefront
// scripts read the human-readable message from the top-level "error" key.
type ErrorBody struct {
	Error     string            `json:"error"`
	Code      string            `json:"code,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorBody derived from err. AppErrors keep their code,
// message and status; anything else becomes an opaque 500. Server errors are
// logged with the request-scoped logger when the RequestLogger middleware is
// mounted, otherwise with fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	status := apperrors.HTTPStatus(err)

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, apperrors.ErrInvalidInput):
		appErr = apperrors.InvalidInput(err.Error())
	default:
		appErr = apperrors.Internal(err)
	}

	body := ErrorBody{
		Code:      appErr.Code,
		Error:     appErr.Message,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("code", body.Code),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, body)
}

// WriteValidationError writes a 400 with per-field messages when err is a
// validator.ValidationError, or the plain error text otherwise.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, ErrorBody{
			Error:     valErr.Error(),
			Code:      "VALIDATION_ERROR",
			Fields:    valErr.Fields(),
			RequestID: requestID,
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, ErrorBody{
		Error:     err.Error(),
		Code:      "INVALID_INPUT",
		RequestID: requestID,
	})
}
