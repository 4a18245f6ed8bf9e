// Package discount prices cart lines against the payment-term discount rules.
// Everything here is pure: no I/O, no shared state.
package discount

import (
	"github.com/shopspring/decimal"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

// OfferEpsilon is the tolerance below list price that marks a backend offer price.
const OfferEpsilon = 0.01

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Result is the outcome of pricing one line.
type Result struct {
	FinalPrice   float64
	EffectivePct float64
	Discount1    float64
	Discount2    float64
}

// IsOffer reports whether the backend already priced item below its list price.
func IsOffer(item domain.CartItem) bool {
	return item.ListPrice > 0 && item.PriceUnit < item.ListPrice-OfferEpsilon
}

// EffectivePrice applies rule to item. The minimum purchase is checked against
// the whole cart subtotal, not the line amount. Offer lines never take the first
// discount and keep the second only on the cash term. The transport line is
// never discounted.
func EffectivePrice(item domain.CartItem, rule *domain.DiscountRule, subtotal float64) Result {
	unchanged := Result{FinalPrice: item.PriceUnit}
	if rule == nil || item.IsTransport() {
		return unchanged
	}
	if subtotal < rule.MinPurchaseAmount {
		return unchanged
	}

	d1, d2 := rule.Discount1Pct, rule.Discount2Pct
	if IsOffer(item) {
		d1 = 0
		if item.PaymentTermID != domain.CashPaymentTermID {
			d2 = 0
		}
	}

	factor := composeFactor(d1, d2, 0)
	return Result{
		FinalPrice:   decimal.NewFromFloat(item.PriceUnit).Mul(factor).InexactFloat64(),
		EffectivePct: one.Sub(factor).Mul(hundred).InexactFloat64(),
		Discount1:    d1,
		Discount2:    d2,
	}
}

// Apply prices item against the rule of its own payment term.
func Apply(item domain.CartItem, rules domain.DiscountRules, subtotal float64) Result {
	return EffectivePrice(item, rules.Lookup(item.PaymentTermID), subtotal)
}

// composeFactor multiplies the discount tiers: (1-d1)(1-d2)(1-d3).
func composeFactor(pcts ...float64) decimal.Decimal {
	factor := one
	for _, pct := range pcts {
		factor = factor.Mul(one.Sub(decimal.NewFromFloat(pct).Div(hundred)))
	}
	return factor
}
