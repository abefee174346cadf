package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/RENDAROBOTIC/rds-website/pkg/httputil"
	"github.com/RENDAROBOTIC/rds-website/pkg/logger"
)

// Recovery recovers from panics and returns a 500 error instead of crashing.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				l.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)

				httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorBody{
					Error:     "an internal error occurred",
					Code:      "INTERNAL_ERROR",
					RequestID: logger.CorrelationIDFromContext(r.Context()),
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
