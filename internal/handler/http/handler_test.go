package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	gostripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/RENDAROBOTIC/rds-website/internal/catalog"
	"github.com/RENDAROBOTIC/rds-website/internal/domain"
	"github.com/RENDAROBOTIC/rds-website/internal/provider"
	"github.com/RENDAROBOTIC/rds-website/internal/service"
	"github.com/RENDAROBOTIC/rds-website/pkg/health"
	"github.com/RENDAROBOTIC/rds-website/pkg/httputil"
	"github.com/RENDAROBOTIC/rds-website/pkg/middleware"
)

const testWebhookSecret = "whsec_handler_test"

// --- Mocks ---

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string {
	return "mock"
}

func (m *mockProvider) CreateCheckoutSession(ctx context.Context, input *provider.SessionInput) (*provider.SessionResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.SessionResult), args.Error(1)
}

type mockFulfiller struct {
	mock.Mock
}

func (m *mockFulfiller) Fulfill(ctx context.Context, c *domain.CompletedCheckout) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

// --- Test Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testDeps struct {
	provider       *mockProvider
	fulfiller      *mockFulfiller
	webhookSecret  string
	rateLimit      middleware.RateLimitConfig
	requestTimeout time.Duration
}

func newTestRouter(t *testing.T, deps testDeps) http.Handler {
	t.Helper()
	logger := testLogger()

	if deps.provider == nil {
		deps.provider = &mockProvider{}
	}
	if deps.fulfiller == nil {
		deps.fulfiller = &mockFulfiller{}
	}

	taxes, err := domain.NewTaxTable(domain.DefaultProvince)
	require.NoError(t, err)
	checkoutSvc := service.NewCheckoutService(deps.provider, nil, taxes, service.CheckoutConfig{
		Currency:         "cad",
		AllowedCountries: []string{"US", "CA"},
	}, logger)

	webhookSvc := service.NewWebhookService(service.WebhookConfig{Secret: deps.webhookSecret}, nil, deps.fulfiller, logger)

	cat, err := catalog.Default()
	require.NoError(t, err)
	searchHandler, err := NewSearchHandler(service.NewSearchService(cat, logger), logger)
	require.NoError(t, err)

	system := NewSystemHandler("pk_test_123", true)
	system.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 123e6, time.UTC) }

	return NewRouter(Handlers{
		Checkout: NewCheckoutHandler(checkoutSvc, logger),
		Webhook:  NewWebhookHandler(webhookSvc, logger),
		Search:   searchHandler,
		System:   system,
		Health:   health.NewHandler(),
	}, RouterConfig{
		ServiceName:       "storefront-test",
		CORS:              middleware.DefaultCORSConfig(),
		SearchCacheMaxAge: 60,
		CheckoutRateLimit: deps.rateLimit,
		RequestTimeout:    deps.requestTimeout,
	}, logger)
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorBody {
	t.Helper()
	var body httputil.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// --- Checkout ---

func TestCreateCheckoutSession_Success(t *testing.T) {
	prov := &mockProvider{}
	var got *provider.SessionInput
	prov.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(*provider.SessionInput) }).
		Return(&provider.SessionResult{ID: "cs_test_ok", URL: "https://pay.example/cs_test_ok"}, nil).
		Once()

	router := newTestRouter(t, testDeps{provider: prov})

	req := postJSON("/api/create-checkout-session",
		`{"lineItems":[{"name":"Ruler","amount":1000,"quantity":2}],"province":"ON"}`)
	req.Host = "rds.example"
	req.Header.Set("Idempotency-Key", "cart-7")
	rec := do(t, router, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var resp CreateCheckoutSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cs_test_ok", resp.SessionID)
	assert.Equal(t, "https://pay.example/cs_test_ok", resp.URL)

	require.NotNil(t, got)
	require.Len(t, got.Items, 2)
	assert.Equal(t, int64(260), got.Items[1].UnitAmount)
	assert.Equal(t, "https://rds.example/checkout/cancelled.html", got.CancelURL)
	assert.Equal(t, "cart-7", got.IdempotencyKey)
	prov.AssertExpectations(t)
}

func TestCreateCheckoutSession_RequestTimeoutReachesProvider(t *testing.T) {
	for name, tc := range map[string]struct {
		configured time.Duration
		want       time.Duration
	}{
		"configured": {configured: 45 * time.Second, want: 45 * time.Second},
		"default":    {want: defaultRequestTimeout},
	} {
		t.Run(name, func(t *testing.T) {
			prov := &mockProvider{}
			var deadline time.Time
			var hasDeadline bool
			prov.On("CreateCheckoutSession", mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) {
					deadline, hasDeadline = args.Get(0).(context.Context).Deadline()
				}).
				Return(&provider.SessionResult{ID: "cs_deadline"}, nil).
				Once()

			router := newTestRouter(t, testDeps{provider: prov, requestTimeout: tc.configured})

			start := time.Now()
			rec := do(t, router, postJSON("/api/create-checkout-session",
				`{"lineItems":[{"name":"Ruler","amount":1000,"quantity":1}]}`))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			require.True(t, hasDeadline)
			assert.WithinDuration(t, start.Add(tc.want), deadline, 5*time.Second)
		})
	}
}

func TestCreateCheckoutSession_EmptyCart(t *testing.T) {
	for name, body := range map[string]string{
		"empty array":  `{"lineItems":[]}`,
		"missing key":  `{"province":"ON"}`,
		"empty body":   ``,
		"null payload": `null`,
	} {
		t.Run(name, func(t *testing.T) {
			prov := &mockProvider{}
			router := newTestRouter(t, testDeps{provider: prov})

			rec := do(t, router, postJSON("/api/create-checkout-session", body))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			errBody := decodeError(t, rec)
			assert.Equal(t, "No items in cart", errBody.Error)
			assert.Equal(t, "INVALID_CART", errBody.Code)
			assert.NotEmpty(t, errBody.RequestID)
			prov.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateCheckoutSession_RateLimited(t *testing.T) {
	prov := &mockProvider{}
	prov.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Return(&provider.SessionResult{ID: "cs_test_rl"}, nil)
	router := newTestRouter(t, testDeps{
		provider:  prov,
		rateLimit: middleware.RateLimitConfig{RPS: 0.001, Burst: 2},
	})

	body := `{"lineItems":[{"name":"Ruler","amount":1000,"quantity":1}]}`
	for i := 0; i < 2; i++ {
		rec := do(t, router, postJSON("/api/create-checkout-session", body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := do(t, router, postJSON("/api/create-checkout-session", body))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, rec).Code)
	prov.AssertNumberOfCalls(t, "CreateCheckoutSession", 2)

	// Other endpoints are not limited.
	rec = do(t, router, httptest.NewRequest(http.MethodGet, "/api/test", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateCheckoutSession_MalformedJSON(t *testing.T) {
	router := newTestRouter(t, testDeps{})
	rec := do(t, router, postJSON("/api/create-checkout-session", `{"lineItems":[`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestCreateCheckoutSession_ValidationError(t *testing.T) {
	prov := &mockProvider{}
	router := newTestRouter(t, testDeps{provider: prov})

	rec := do(t, router, postJSON("/api/create-checkout-session",
		`{"lineItems":[{"name":"","amount":-5,"quantity":1}]}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Contains(t, body.Fields, "lineItems[0].name")
	assert.Contains(t, body.Fields, "lineItems[0].amount")
	prov.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestCreateCheckoutSession_WrongContentType(t *testing.T) {
	router := newTestRouter(t, testDeps{})
	req := httptest.NewRequest(http.MethodPost, "/api/create-checkout-session", strings.NewReader(`lineItems=1`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := do(t, router, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestCreateCheckoutSession_BodyTooLarge(t *testing.T) {
	router := newTestRouter(t, testDeps{})
	big := `{"lineItems":[{"name":"` + strings.Repeat("x", maxCheckoutBodyBytes) + `"}]}`

	rec := do(t, router, postJSON("/api/create-checkout-session", big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCreateCheckoutSession_ProviderError(t *testing.T) {
	prov := &mockProvider{}
	prov.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Return(nil, &provider.Error{Message: "Invalid API Key provided"})

	router := newTestRouter(t, testDeps{provider: prov})
	rec := do(t, router, postJSON("/api/create-checkout-session",
		`{"lineItems":[{"name":"A","amount":100,"quantity":1}]}`))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "Invalid API Key provided", body.Error)
	assert.Equal(t, "PAYMENT_PROVIDER_ERROR", body.Code)
}

// --- Webhook ---

func signedEvent(t *testing.T, secret, id, eventType string) ([]byte, string) {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{
		"id": %q,
		"object": "event",
		"api_version": %q,
		"created": 1700000000,
		"type": %q,
		"data": {"object": {"id": "cs_test_wh", "object": "checkout.session", "amount_total": 1130, "currency": "cad"}}
	}`, id, gostripe.APIVersion, eventType))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func webhookRequest(body []byte, header string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	return req
}

func TestWebhook_Verified(t *testing.T) {
	f := &mockFulfiller{}
	f.On("Fulfill", mock.Anything, mock.MatchedBy(func(c *domain.CompletedCheckout) bool {
		return c.SessionID == "cs_test_wh" && c.AmountTotal == 1130
	})).Return(nil).Once()

	router := newTestRouter(t, testDeps{fulfiller: f, webhookSecret: testWebhookSecret})
	body, header := signedEvent(t, testWebhookSecret, "evt_wh_1", "checkout.session.completed")

	rec := do(t, router, webhookRequest(body, header))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	f.AssertExpectations(t)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	f := &mockFulfiller{}
	router := newTestRouter(t, testDeps{fulfiller: f, webhookSecret: testWebhookSecret})
	body, header := signedEvent(t, "whsec_wrong", "evt_wh_2", "checkout.session.completed")

	rec := do(t, router, webhookRequest(body, header))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decodeError(t, rec)
	assert.True(t, strings.HasPrefix(errBody.Error, "Webhook Error: "), errBody.Error)
	f.AssertNotCalled(t, "Fulfill", mock.Anything, mock.Anything)
}

func TestWebhook_MissingSignature(t *testing.T) {
	router := newTestRouter(t, testDeps{webhookSecret: testWebhookSecret})
	rec := do(t, router, webhookRequest([]byte(`{"id":"evt_x"}`), ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_NoSecretConfigured(t *testing.T) {
	f := &mockFulfiller{}
	router := newTestRouter(t, testDeps{fulfiller: f})

	rec := do(t, router, webhookRequest([]byte(`{"anything":true}`), ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	f.AssertNotCalled(t, "Fulfill", mock.Anything, mock.Anything)
}

func TestWebhook_PayloadTooLarge(t *testing.T) {
	router := newTestRouter(t, testDeps{webhookSecret: testWebhookSecret})
	rec := do(t, router, webhookRequest(bytes.Repeat([]byte("a"), maxWebhookBodyBytes+1), "t=1,v1=abc"))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

// --- System ---

func TestSystemEndpoints(t *testing.T) {
	router := newTestRouter(t, testDeps{})

	tests := []struct {
		path string
		want string
	}{
		{"/api/config", `{"publishableKey":"pk_test_123"}`},
		{"/api/test", `{"message":"Server is working!","timestamp":"2024-05-06T07:08:09.123Z"}`},
		{"/api/health", `{"status":"ok","timestamp":"2024-05-06T07:08:09.123Z","stripe_configured":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, router, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

// --- Search ---

func TestSearchAPI(t *testing.T) {
	router := newTestRouter(t, testDeps{})
	rec := do(t, router, httptest.NewRequest(http.MethodGet, "/api/search?q=ruler", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))

	var res domain.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "ruler", res.Query)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, `Found 2 results for "ruler":`, res.Message)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "../products/kearing_kpr6006_s.html", res.Results[0].URL)
}

func TestSearchAPI_NoQuery(t *testing.T) {
	router := newTestRouter(t, testDeps{})
	rec := do(t, router, httptest.NewRequest(http.MethodGet, "/api/search", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"query": "",
		"message": "No search term provided. Try searching for products like \"scissors\", \"rulers\", or \"buckles\".",
		"count": 0,
		"results": []
	}`, rec.Body.String())
}

func TestSearchPage(t *testing.T) {
	router := newTestRouter(t, testDeps{})
	rec := do(t, router, httptest.NewRequest(http.MethodGet, "/search?q=buckle", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "Found 1 result for &#34;buckle&#34;:")
	assert.Contains(t, body, `<a href="../products/black_metal_bull_buckle.html" class="search-result-item">`)
	assert.Contains(t, body, "<h3>Black Bull Buckle</h3>")
	assert.Contains(t, body, `<p class="category">Notions ✚ Trims</p>`)
}

func TestSearchPage_EscapesQuery(t *testing.T) {
	router := newTestRouter(t, testDeps{})
	rec := do(t, router, httptest.NewRequest(http.MethodGet, "/search?q=%3Cscript%3Ealert(1)%3C%2Fscript%3E", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "<ul>")
}

// --- Router ---

func TestRouter_HealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, testDeps{})

	rec := do(t, router, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestRouter_UnknownRouteIsJSON404(t *testing.T) {
	router := newTestRouter(t, testDeps{})

	rec := do(t, router, httptest.NewRequest(http.MethodGet, "/api/orders", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body httputil.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Equal(t, "route /api/orders not found", body.Error)
}

func TestRouter_CorrelationIDEchoed(t *testing.T) {
	router := newTestRouter(t, testDeps{})
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set(middleware.CorrelationIDHeader, "corr-abc")

	rec := do(t, router, req)
	assert.Equal(t, "corr-abc", rec.Header().Get(middleware.CorrelationIDHeader))
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, testDeps{})
	req := httptest.NewRequest(http.MethodOptions, "/api/create-checkout-session", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := do(t, router, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_PprofNotMountedByDefault(t *testing.T) {
	router := newTestRouter(t, testDeps{})
	rec := do(t, router, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
