package domain

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// TaxItemDescription describes the synthetic tax line on every checkout.
const TaxItemDescription = "Sales Tax"

// MinorUnits is an amount in the currency's smallest unit (cents). Fractional
// JSON numbers are rounded half-up, so a storefront script that computed
// 1299.5 still produces a whole amount.
type MinorUnits int64

// UnmarshalJSON accepts any JSON number.
func (m *MinorUnits) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number: %w", err)
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return fmt.Errorf("amount must be a number: %w", err)
	}
	d = d.Round(0)
	if d.Abs().GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return fmt.Errorf("amount %s out of range", n.String())
	}
	*m = MinorUnits(d.IntPart())
	return nil
}

// CartLineItem is one entry of the cart posted by the storefront.
type CartLineItem struct {
	Name        string     `json:"name" validate:"required,max=250"`
	Description string     `json:"description,omitempty" validate:"max=500"`
	Amount      MinorUnits `json:"amount" validate:"gte=0,lte=99999999"`
	Quantity    int64      `json:"quantity" validate:"gte=1,lte=10000"`
}

// Total returns Amount times Quantity.
func (i CartLineItem) Total() int64 {
	return int64(i.Amount) * i.Quantity
}

// Subtotal sums every line's total.
func Subtotal(items []CartLineItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.Total()
	}
	return sum
}

// PurchasableItem is a line item ready to be sent to the payment provider.
type PurchasableItem struct {
	Currency    string `json:"currency"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UnitAmount  int64  `json:"unit_amount"`
	Quantity    int64  `json:"quantity"`
}

// Quote is the priced cart: every item plus tax, in one currency.
type Quote struct {
	Province string
	Rate     TaxRate
	Subtotal int64
	Tax      int64
	Items    []PurchasableItem
}

// Total is subtotal plus tax.
func (q Quote) Total() int64 {
	return q.Subtotal + q.Tax
}

// NewQuote prices items under rate. Cart items keep their order and values;
// a tax line is appended only when the tax is positive.
func NewQuote(items []CartLineItem, rate TaxRate, currency string) Quote {
	subtotal := Subtotal(items)
	tax := rate.TaxOn(subtotal)

	out := make([]PurchasableItem, 0, len(items)+1)
	for _, it := range items {
		out = append(out, PurchasableItem{
			Currency:    currency,
			Name:        it.Name,
			Description: it.Description,
			UnitAmount:  int64(it.Amount),
			Quantity:    it.Quantity,
		})
	}

	if tax > 0 {
		out = append(out, PurchasableItem{
			Currency:    currency,
			Name:        rate.Label(),
			Description: TaxItemDescription,
			UnitAmount:  tax,
			Quantity:    1,
		})
	}

	return Quote{
		Province: rate.Province,
		Rate:     rate,
		Subtotal: subtotal,
		Tax:      tax,
		Items:    out,
	}
}
