package pricing

import (
	"testing"

	"restaurant-ordering/models"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestQuote(t *testing.T) {
	tests := []struct {
		name      string
		lines     []models.CartLine
		rates     Rates
		wantSub   string
		wantTax   string
		wantFee   string
		wantTotal string
	}{
		{
			name:      "Single line with flat fee",
			lines:     []models.CartLine{{ItemID: "A", UnitPrice: d("10.00"), Quantity: 2}},
			rates:     Rates{TaxRate: d("0.08"), DeliveryFee: d("3.00")},
			wantSub:   "20.00",
			wantTax:   "1.60",
			wantFee:   "3.00",
			wantTotal: "24.60",
		},
		{
			name:      "Free delivery above minimum",
			lines:     []models.CartLine{{ItemID: "A", UnitPrice: d("12.50"), Quantity: 2}},
			rates:     Rates{TaxRate: d("0.08"), DeliveryFee: d("3.00"), FreeDeliveryMinimum: d("25.00")},
			wantSub:   "25.00",
			wantTax:   "2.00",
			wantFee:   "0.00",
			wantTotal: "27.00",
		},
		{
			name:      "Below minimum pays the fee",
			lines:     []models.CartLine{{ItemID: "A", UnitPrice: d("24.99"), Quantity: 1}},
			rates:     Rates{TaxRate: d("0.08"), DeliveryFee: d("3.00"), FreeDeliveryMinimum: d("25.00")},
			wantSub:   "24.99",
			wantTax:   "2.00",
			wantFee:   "3.00",
			wantTotal: "29.99",
		},
		{
			name:      "Empty cart",
			lines:     nil,
			rates:     Rates{TaxRate: d("0.08")},
			wantSub:   "0.00",
			wantTax:   "0.00",
			wantFee:   "0.00",
			wantTotal: "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Quote(tt.lines, tt.rates)
			assert.Equal(t, tt.wantSub, Format(got.Subtotal))
			assert.Equal(t, tt.wantTax, Format(got.Tax))
			assert.Equal(t, tt.wantFee, Format(got.DeliveryFee))
			assert.Equal(t, tt.wantTotal, Format(got.Total))
		})
	}
}

func TestQuoteKeepsFullPrecision(t *testing.T) {
	lines := []models.CartLine{
		{ItemID: "A", UnitPrice: d("0.333"), Quantity: 3},
		{ItemID: "B", UnitPrice: d("1.115"), Quantity: 1},
	}
	got := Quote(lines, Rates{TaxRate: d("0.1")})
	assert.True(t, got.Subtotal.Equal(d("2.114")))
	assert.True(t, got.Tax.Equal(d("0.2114")))
	assert.Equal(t, "2.33", Format(got.Total))
	assert.Equal(t, int64(233), MinorUnits(got.Total))
}

func TestDefaultRates(t *testing.T) {
	r := DefaultRates()
	assert.Equal(t, "0.08", r.TaxRate.String())
	assert.True(t, r.DeliveryFee.IsZero())
	assert.Equal(t, "25.00", Format(r.FreeDeliveryMinimum))
}

func TestTotalIsSumOfParts(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	rates := Rates{TaxRate: d("0.08"), DeliveryFee: d("3.00"), FreeDeliveryMinimum: d("25.00")}

	properties.Property("total equals subtotal plus tax plus fee", prop.ForAll(
		func(cents []int, qty []int) bool {
			var lines []models.CartLine
			for i := 0; i < len(cents) && i < len(qty); i++ {
				lines = append(lines, models.CartLine{
					ItemID:    string(rune('A' + i%26)),
					UnitPrice: decimal.New(int64(cents[i]), -2),
					Quantity:  qty[i],
				})
			}
			got := Quote(lines, rates)
			r := got.Rounded()
			sum := r.Subtotal.Add(r.Tax).Add(r.DeliveryFee)
			if sum.Sub(r.Total).Abs().GreaterThan(d("0.01")) {
				return false
			}
			if !got.Tax.Equal(got.Subtotal.Mul(rates.TaxRate)) {
				return false
			}
			return got.DeliveryFee.Equal(rates.DeliveryFeeFor(got.Subtotal))
		},
		gen.SliceOf(gen.IntRange(0, 5000)),
		gen.SliceOf(gen.IntRange(1, 20)),
	))

	properties.TestingRun(t)
}
