// Package pricing computes order totals. Values are kept at full precision
// and rounded only when displayed or sent to a collaborator.
package pricing

import (
	"restaurant-ordering/models"

	"github.com/shopspring/decimal"
)

// Rates are the restaurant's pricing parameters.
type Rates struct {
	TaxRate             decimal.Decimal `json:"tax_rate" yaml:"taxRate"`
	DeliveryFee         decimal.Decimal `json:"delivery_fee" yaml:"deliveryFee"`
	FreeDeliveryMinimum decimal.Decimal `json:"free_delivery_minimum" yaml:"freeDeliveryMinimum"`
	Currency            string          `json:"currency" yaml:"currency"`
}

// DefaultRates mirrors the defaults of the web client: 8% tax, no delivery
// fee and free delivery from 25.00.
func DefaultRates() Rates {
	return Rates{
		TaxRate:             decimal.RequireFromString("0.08"),
		DeliveryFee:         decimal.Zero,
		FreeDeliveryMinimum: decimal.RequireFromString("25.00"),
		Currency:            "eur",
	}
}

// Subtotal returns the sum of unit price times quantity over lines.
func Subtotal(lines []models.CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineTotal())
	}
	return sum
}

// DeliveryFeeFor applies the free delivery threshold. A zero minimum disables it.
func (r Rates) DeliveryFeeFor(subtotal decimal.Decimal) decimal.Decimal {
	if r.FreeDeliveryMinimum.IsPositive() && subtotal.GreaterThanOrEqual(r.FreeDeliveryMinimum) {
		return decimal.Zero
	}
	return r.DeliveryFee
}

// Quote computes subtotal, tax, delivery fee and total in that order.
func Quote(lines []models.CartLine, r Rates) models.Totals {
	subtotal := Subtotal(lines)
	tax := subtotal.Mul(r.TaxRate)
	fee := r.DeliveryFeeFor(subtotal)
	return models.Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: fee,
		Total:       subtotal.Add(tax).Add(fee),
	}
}

// Format renders an amount with two decimals.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// MinorUnits converts an amount to cents after rounding to two places.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}
