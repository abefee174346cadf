package middleware

import (
	"mime"
	"net/http"

	"github.com/RENDAROBOTIC/rds-website/pkg/httputil"
)

// ContentTypeJSON rejects bodies declared as anything other than JSON.
// A missing Content-Type is accepted.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if ct := r.Header.Get("Content-Type"); ct != "" {
				mediaType, _, err := mime.ParseMediaType(ct)
				if err != nil || mediaType != "application/json" {
					httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.ErrorBody{
						Error: "Content-Type must be application/json",
						Code:  "UNSUPPORTED_MEDIA_TYPE",
					})
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
