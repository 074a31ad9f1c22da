// Package core provides money handling and invoice total computation.
//
// All currency arithmetic uses decimal values so that sums of many line
// items never accumulate binary floating point error.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// TaxRate is the fixed sales tax applied to every invoice subtotal.
var TaxRate = decimal.RequireFromString("0.08")

// currencyPlaces is the number of decimal places kept for tax amounts.
const currencyPlaces = 2

// ItemPlaces is the precision kept for line item quantities and rates, so a
// line amount never needs more than twice as many places.
const ItemPlaces = 4

var ErrInvalidAmount = errors.New("invalid amount")

// Totals holds the derived amounts of an invoice.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Amount is quantity times rate for a single line.
func (it InvoiceItem) Amount() decimal.Decimal {
	return it.Quantity.Mul(it.Rate)
}

// ComputeTotals derives subtotal, tax and total from items.
//
// Tax is rounded half away from zero to two places. Negative quantities or
// rates are not rejected; the result stays arithmetically consistent.
//
// Example:
//
//	[{qty 2, rate 4500}, {qty 1, rate 3000}] -> 12000, 960, 12960
func ComputeTotals(items []InvoiceItem) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Amount())
	}
	tax := subtotal.Mul(TaxRate).Round(currencyPlaces)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// ParseAmount converts a user supplied amount to a decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rejects negative values. Zero is allowed since a fresh line item starts
// with a zero rate.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount with two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(currencyPlaces)
}
