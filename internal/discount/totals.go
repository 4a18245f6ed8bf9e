package discount

import (
	"github.com/shopspring/decimal"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

// DefaultVATRate is applied to the local total when the backend has not priced the order yet.
const DefaultVATRate = 0.21

// Subtotal is Σ price_unit × quantity over every line, transport included.
func Subtotal(items []domain.CartItem) float64 {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(lineAmount(item))
	}
	return total.InexactFloat64()
}

// Totals is the running cart total before and after live discounts.
type Totals struct {
	Subtotal   float64
	Discounted float64
}

// CartTotals prices every line against rules using the current subtotal.
func CartTotals(items []domain.CartItem, rules domain.DiscountRules) Totals {
	subtotal := Subtotal(items)
	discounted := decimal.Zero
	for _, item := range items {
		res := Apply(item, rules, subtotal)
		discounted = discounted.Add(decimal.NewFromFloat(res.FinalPrice).Mul(decimal.NewFromInt(int64(quantity(item)))))
	}
	return Totals{Subtotal: subtotal, Discounted: discounted.InexactFloat64()}
}

// FrozenLineTotal prices a line with the discounts already stored on it.
func FrozenLineTotal(item domain.CartItem) float64 {
	return frozenLine(item).InexactFloat64()
}

// FrozenTotal is the sum of FrozenLineTotal over items.
func FrozenTotal(items []domain.CartItem) float64 {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(frozenLine(item))
	}
	return total.InexactFloat64()
}

// WithVAT returns base plus DefaultVATRate.
func WithVAT(base float64) float64 {
	return decimal.NewFromFloat(base).Mul(one.Add(decimal.NewFromFloat(DefaultVATRate))).Round(2).InexactFloat64()
}

func frozenLine(item domain.CartItem) decimal.Decimal {
	amount := lineAmount(item)
	if item.IsTransport() {
		return amount
	}
	return amount.Mul(composeFactor(item.Discount1, item.Discount2, item.Discount3))
}

func lineAmount(item domain.CartItem) decimal.Decimal {
	return decimal.NewFromFloat(item.PriceUnit).Mul(decimal.NewFromInt(int64(quantity(item))))
}

func quantity(item domain.CartItem) int {
	if item.Quantity < 1 {
		return 1
	}
	return item.Quantity
}
