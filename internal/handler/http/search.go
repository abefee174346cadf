package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/RENDAROBOTIC/rds-website/internal/service"
	"github.com/RENDAROBOTIC/rds-website/pkg/httputil"
)

//go:embed templates/search.html
var templateFS embed.FS

// SearchHandler serves catalog search as JSON and as an HTML page.
type SearchHandler struct {
	service *service.SearchService
	page    *template.Template
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *service.SearchService, logger *slog.Logger) (*SearchHandler, error) {
	page, err := template.ParseFS(templateFS, "templates/search.html")
	if err != nil {
		return nil, fmt.Errorf("parse search template: %w", err)
	}
	return &SearchHandler{
		service: svc,
		page:    page,
		logger:  logger,
	}, nil
}

// Search handles GET /api/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	res := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	httputil.WriteJSON(w, http.StatusOK, res)
}

// Page handles GET /search
func (h *SearchHandler) Page(w http.ResponseWriter, r *http.Request) {
	res := h.service.Search(r.Context(), r.URL.Query().Get("q"))

	var buf bytes.Buffer
	if err := h.page.Execute(&buf, res); err != nil {
		httputil.WriteError(w, r, fmt.Errorf("render search page: %w", err), h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
