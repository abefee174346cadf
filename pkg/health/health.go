package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/RENDAROBOTIC/rds-website/pkg/httputil"
)

// Checker is a function that checks the health of a dependency.
type Checker func(ctx context.Context) error

// Status represents the health status of a component.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Response is the JSON response returned by the health endpoints.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the result of a single health check.
type CheckResult struct {
	Status   Status `json:"status"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
}

type registration struct {
	check    Checker
	critical bool
}

// Handler provides HTTP health check endpoints.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]registration
	timeout  time.Duration
}

// NewHandler creates a new health check handler.
func NewHandler() *Handler {
	return &Handler{
		checkers: make(map[string]registration),
		timeout:  5 * time.Second,
	}
}

// RegisterCritical adds a checker whose failure makes the service unready (503).
func (h *Handler) RegisterCritical(name string, checker Checker) {
	h.add(name, checker, true)
}

// RegisterNonCritical adds a checker whose failure only degrades readiness.
// Optional integrations (event dedupe, fulfillment bus) register here.
func (h *Handler) RegisterNonCritical(name string, checker Checker) {
	h.add(name, checker, false)
}

func (h *Handler) add(name string, checker Checker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = registration{check: checker, critical: critical}
}

// LivenessHandler returns a simple liveness check (always 200 if the process is running).
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, Response{
			Status:    StatusUp,
			Timestamp: time.Now().UTC(),
		})
	}
}

// ReadinessHandler runs every registered checker concurrently and reports
// 503 when a critical one fails, 200 "degraded" when only non-critical ones do.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check(r.Context())

		status := http.StatusOK
		if resp.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}

// Check runs all checkers and aggregates their results.
func (h *Handler) Check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mu.RLock()
	regs := make(map[string]registration, len(h.checkers))
	for k, v := range h.checkers {
		regs[k] = v
	}
	h.mu.RUnlock()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(regs))
	)
	for name, reg := range regs {
		wg.Add(1)
		go func(name string, reg registration) {
			defer wg.Done()
			res := CheckResult{Status: StatusUp, Critical: reg.critical}
			if err := reg.check(ctx); err != nil {
				res.Status = StatusDown
				res.Error = err.Error()
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
		}(name, reg)
	}
	wg.Wait()

	overall := StatusUp
	for _, res := range checks {
		if res.Status != StatusDown {
			continue
		}
		if res.Critical {
			overall = StatusDown
			break
		}
		overall = StatusDegraded
	}

	return Response{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}
}
