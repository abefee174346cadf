package domain

import "time"

// DefaultCurrency is the ISO currency every session is created in.
const DefaultCurrency = "cad"

// CheckoutSession is a hosted payment session created at the provider.
type CheckoutSession struct {
	ID         string `json:"id"`
	URL        string `json:"url,omitempty"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
	Province   string `json:"province"`
	Subtotal   int64  `json:"subtotal"`
	Tax        int64  `json:"tax"`
	Total      int64  `json:"total"`
}

// CompletedCheckout is what fulfillment learns from a completed session.
type CompletedCheckout struct {
	EventID       string    `json:"event_id"`
	SessionID     string    `json:"session_id"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	AmountTotal   int64     `json:"amount_total"`
	Currency      string    `json:"currency,omitempty"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	Province      string    `json:"province,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Product is a catalog entry shown in search results.
type Product struct {
	Name     string `json:"name" yaml:"name"`
	Price    string `json:"price" yaml:"price"`
	URL      string `json:"url" yaml:"url"`
	Category string `json:"category" yaml:"category"`
}
