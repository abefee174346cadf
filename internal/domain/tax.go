package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultProvince is used when a cart names no province or an unknown one.
const DefaultProvince = "BC"

// TaxRate is the sales tax applied in one Canadian province. Components
// that do not apply are zero; Total is what gets charged.
type TaxRate struct {
	Province string
	GST      decimal.Decimal
	PST      decimal.Decimal
	HST      decimal.Decimal
	Total    decimal.Decimal
}

func gstPST(province, gst, pst string) TaxRate {
	g, p := decimal.RequireFromString(gst), decimal.RequireFromString(pst)
	return TaxRate{Province: province, GST: g, PST: p, Total: g.Add(p)}
}

func hst(province, rate string) TaxRate {
	h := decimal.RequireFromString(rate)
	return TaxRate{Province: province, HST: h, Total: h}
}

var taxRates = map[string]TaxRate{
	"BC": gstPST("BC", "0.05", "0.07"),
	"AB": gstPST("AB", "0.05", "0"),
	"ON": hst("ON", "0.13"),
	"QC": gstPST("QC", "0.05", "0.09975"),
	"SK": gstPST("SK", "0.05", "0.06"),
	"MB": gstPST("MB", "0.05", "0.07"),
	"NB": hst("NB", "0.15"),
	"NS": hst("NS", "0.15"),
	"PE": hst("PE", "0.15"),
	"NL": hst("NL", "0.15"),
}

// NormalizeProvince trims and upper-cases a province code.
func NormalizeProvince(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// LookupTaxRate returns the rate for a province code, ignoring case.
func LookupTaxRate(code string) (TaxRate, bool) {
	r, ok := taxRates[NormalizeProvince(code)]
	return r, ok
}

// Provinces lists the supported province codes in alphabetical order.
func Provinces() []string {
	codes := make([]string, 0, len(taxRates))
	for code := range taxRates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// TaxTable resolves province codes to rates with a fallback province.
type TaxTable struct {
	fallback TaxRate
}

// NewTaxTable builds a table that falls back to defaultProvince.
func NewTaxTable(defaultProvince string) (*TaxTable, error) {
	r, ok := LookupTaxRate(defaultProvince)
	if !ok {
		return nil, fmt.Errorf("unknown default province %q", defaultProvince)
	}
	return &TaxTable{fallback: r}, nil
}

// Resolve returns the rate for province. Empty or unknown codes resolve to
// the default province and report matched=false; that is not an error.
func (t *TaxTable) Resolve(province string) (rate TaxRate, matched bool) {
	if r, ok := LookupTaxRate(province); ok {
		return r, true
	}
	return t.fallback, false
}

// Default returns the fallback rate.
func (t *TaxTable) Default() TaxRate {
	return t.fallback
}

// TaxOn returns the tax on subtotal in minor units, rounded half-up.
func (r TaxRate) TaxOn(subtotal int64) int64 {
	return decimal.NewFromInt(subtotal).Mul(r.Total).Round(0).IntPart()
}

// Percent formats the total rate as a percentage with one decimal, e.g. "13.0".
func (r TaxRate) Percent() string {
	return r.Total.Shift(2).StringFixed(1)
}

// Label is the customer-facing name of the tax line, e.g. "ON Tax (13.0%)".
func (r TaxRate) Label() string {
	return fmt.Sprintf("%s Tax (%s%%)", r.Province, r.Percent())
}
