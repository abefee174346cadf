package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. AppErrors wrap one of these so callers can match with errors.Is.
var (
	ErrNotFound              = errors.New("resource not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidCart           = errors.New("invalid cart")
	ErrPaymentProvider       = errors.New("payment provider error")
	ErrSignatureVerification = errors.New("signature verification failed")
	ErrInternal              = errors.New("internal error")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// InvalidCart creates a 400 error for a cart that cannot be checked out.
func InvalidCart(message string) *AppError {
	return &AppError{
		Code:    "INVALID_CART",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidCart,
	}
}

// PaymentProvider creates a 500 error carrying the provider's own message.
// cause is kept for logging and errors.Is matching; it is never shown to clients.
func PaymentProvider(message string, cause error) *AppError {
	err := ErrPaymentProvider
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrPaymentProvider, cause)
	}
	return &AppError{
		Code:    "PAYMENT_PROVIDER_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// SignatureVerification creates a 400 error for a webhook that failed verification.
func SignatureVerification(cause error) *AppError {
	msg := ErrSignatureVerification.Error()
	err := ErrSignatureVerification
	if cause != nil {
		msg = cause.Error()
		err = fmt.Errorf("%w: %w", ErrSignatureVerification, cause)
	}
	return &AppError{
		Code:    "SIGNATURE_VERIFICATION_FAILED",
		Message: "Webhook Error: " + msg,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

// Internal creates an opaque 500 error. err is kept for logging only.
func Internal(err error) *AppError {
	wrapped := ErrInternal
	if err != nil {
		wrapped = fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     wrapped,
	}
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidCart),
		errors.Is(err, ErrSignatureVerification):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
