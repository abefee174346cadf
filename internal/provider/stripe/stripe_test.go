package stripe

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RENDAROBOTIC/rds-website/internal/domain"
	"github.com/RENDAROBOTIC/rds-website/internal/provider"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStripe records the last form posted to /v1/checkout/sessions.
type fakeStripe struct {
	mu      sync.Mutex
	form    url.Values
	headers http.Header
	calls   int
	status  int
	body    string
}

func (f *fakeStripe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout/sessions" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_ = r.ParseForm()
	f.form = r.PostForm
	f.headers = r.Header.Clone()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_, _ = io.WriteString(w, f.body)
}

func newServer(t *testing.T, status int, body string) (*fakeStripe, *Provider) {
	t.Helper()
	fake := &fakeStripe{status: status, body: body}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	p := New(Config{
		SecretKey:  "sk_test_123",
		APIURL:     srv.URL,
		HTTPClient: srv.Client(),
	}, newTestLogger())
	return fake, p
}

func sampleInput() *provider.SessionInput {
	return &provider.SessionInput{
		Items: []domain.PurchasableItem{
			{Currency: "cad", Name: "Shears", Description: "Fabric shears", UnitAmount: 4350, Quantity: 2},
			{Currency: "cad", Name: "ON Tax (13.0%)", Description: "Sales Tax", UnitAmount: 1131, Quantity: 1},
		},
		SuccessURL:       "https://shop.example/checkout/success.html?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:        "https://shop.example/checkout/cancelled.html",
		AllowedCountries: []string{"US", "CA"},
		ShippingRateID:   "shr_123",
		IdempotencyKey:   "idem-1",
		Metadata:         map[string]string{"province": "ON"},
	}
}

func TestProvider_Name(t *testing.T) {
	assert.Equal(t, "stripe", New(Config{SecretKey: "sk"}, newTestLogger()).Name())
}

func TestCreateCheckoutSession_Success(t *testing.T) {
	fake, p := newServer(t, http.StatusOK,
		`{"id":"cs_test_123","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_123"}`)

	res, err := p.CreateCheckoutSession(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_123", res.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", res.URL)

	f := fake.form
	assert.Equal(t, "payment", f.Get("mode"))
	assert.Equal(t, "card", f.Get("payment_method_types[0]"))
	assert.Equal(t, "https://shop.example/checkout/success.html?session_id={CHECKOUT_SESSION_ID}", f.Get("success_url"))
	assert.Equal(t, "https://shop.example/checkout/cancelled.html", f.Get("cancel_url"))
	assert.Equal(t, "false", f.Get("automatic_tax[enabled]"))
	assert.Equal(t, "US", f.Get("shipping_address_collection[allowed_countries][0]"))
	assert.Equal(t, "CA", f.Get("shipping_address_collection[allowed_countries][1]"))
	assert.Equal(t, "shr_123", f.Get("shipping_options[0][shipping_rate]"))
	assert.Equal(t, "ON", f.Get("metadata[province]"))

	assert.Equal(t, "cad", f.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "4350", f.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "Shears", f.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "Fabric shears", f.Get("line_items[0][price_data][product_data][description]"))
	assert.Equal(t, "2", f.Get("line_items[0][quantity]"))
	assert.Equal(t, "ON Tax (13.0%)", f.Get("line_items[1][price_data][product_data][name]"))
	assert.Equal(t, "1131", f.Get("line_items[1][price_data][unit_amount]"))
	assert.Equal(t, "1", f.Get("line_items[1][quantity]"))

	assert.Equal(t, "idem-1", fake.headers.Get("Idempotency-Key"))
	assert.Equal(t, "Bearer sk_test_123", fake.headers.Get("Authorization"))
}

func TestCreateCheckoutSession_OptionalFieldsOmitted(t *testing.T) {
	fake, p := newServer(t, http.StatusOK, `{"id":"cs_test_1","object":"checkout.session"}`)

	in := sampleInput()
	in.Items[0].Description = ""
	in.ShippingRateID = ""
	in.AllowedCountries = nil
	in.IdempotencyKey = ""

	_, err := p.CreateCheckoutSession(context.Background(), in)
	require.NoError(t, err)

	_, hasDesc := fake.form["line_items[0][price_data][product_data][description]"]
	assert.False(t, hasDesc)
	_, hasShipping := fake.form["shipping_options[0][shipping_rate]"]
	assert.False(t, hasShipping)
	_, hasCountries := fake.form["shipping_address_collection[allowed_countries][0]"]
	assert.False(t, hasCountries)
	assert.Empty(t, fake.headers.Get("Idempotency-Key"))
}

func TestCreateCheckoutSession_InvalidRequest(t *testing.T) {
	fake, p := newServer(t, http.StatusBadRequest,
		`{"error":{"message":"Invalid currency: xyz","type":"invalid_request_error"}}`)

	_, err := p.CreateCheckoutSession(context.Background(), sampleInput())
	require.Error(t, err)

	var pErr *provider.Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "Invalid currency: xyz", pErr.Message)
	assert.True(t, pErr.Rejected)
	assert.Equal(t, 1, fake.calls)
}

func TestCreateCheckoutSession_ServerErrorNotRetried(t *testing.T) {
	fake, p := newServer(t, http.StatusInternalServerError,
		`{"error":{"message":"Something went wrong","type":"api_error"}}`)

	_, err := p.CreateCheckoutSession(context.Background(), sampleInput())
	require.Error(t, err)

	var pErr *provider.Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "Something went wrong", pErr.Message)
	assert.False(t, pErr.Rejected)
	assert.Equal(t, 1, fake.calls)
}

func TestCreateCheckoutSession_AuthErrorNotRejected(t *testing.T) {
	_, p := newServer(t, http.StatusUnauthorized,
		`{"error":{"message":"Invalid API Key provided","type":"invalid_request_error"}}`)

	_, err := p.CreateCheckoutSession(context.Background(), sampleInput())
	require.Error(t, err)
	assert.False(t, provider.IsRejected(err))
}

func TestRejected(t *testing.T) {
	assert.True(t, rejected(http.StatusBadRequest))
	assert.True(t, rejected(http.StatusPaymentRequired))
	assert.False(t, rejected(http.StatusUnauthorized))
	assert.False(t, rejected(http.StatusTooManyRequests))
	assert.False(t, rejected(http.StatusBadGateway))
	assert.False(t, rejected(0))
}
