package discount

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

func TestEffectivePrice_ExampleScenario(t *testing.T) {
	items := []domain.CartItem{
		{ProductID: 10, Quantity: 3, PriceUnit: 100, PaymentTermID: 21},
		{ProductID: 11, Quantity: 1, PriceUnit: 50, PaymentTermID: 1},
	}
	rule := &domain.DiscountRule{PaymentTermID: 21, Discount1Pct: 5, Discount2Pct: 0, MinPurchaseAmount: 200}

	subtotal := Subtotal(items)
	assert.InDelta(t, 350.0, subtotal, 1e-9)

	res := EffectivePrice(items[0], rule, subtotal)
	assert.InDelta(t, 95.0, res.FinalPrice, 1e-9)
	assert.InDelta(t, 5.0, res.EffectivePct, 1e-9)
	assert.Equal(t, 5.0, res.Discount1)
}

func TestEffectivePrice_NoRule(t *testing.T) {
	item := domain.CartItem{ProductID: 1, PriceUnit: 42, Quantity: 1, PaymentTermID: 7}
	res := EffectivePrice(item, nil, 10000)
	assert.Equal(t, Result{FinalPrice: 42}, res)
}

func TestEffectivePrice_BelowMinimumPurchase(t *testing.T) {
	item := domain.CartItem{ProductID: 1, PriceUnit: 100, Quantity: 5, PaymentTermID: 21}
	rule := &domain.DiscountRule{Discount1Pct: 30, Discount2Pct: 15, MinPurchaseAmount: 1000}

	for _, subtotal := range []float64{0, 500, 999.99} {
		res := EffectivePrice(item, rule, subtotal)
		assert.Zero(t, res.EffectivePct, "subtotal %v", subtotal)
		assert.Equal(t, 100.0, res.FinalPrice)
	}

	res := EffectivePrice(item, rule, 1000)
	assert.Greater(t, res.EffectivePct, 0.0)
}

func TestEffectivePrice_Multiplicative(t *testing.T) {
	item := domain.CartItem{ProductID: 1, PriceUnit: 100, Quantity: 1, PaymentTermID: 3}
	rule := &domain.DiscountRule{Discount1Pct: 10, Discount2Pct: 10}

	res := EffectivePrice(item, rule, 100)
	assert.InDelta(t, 19.0, res.EffectivePct, 1e-9)
	assert.InDelta(t, 81.0, res.FinalPrice, 1e-9)
}

func TestEffectivePrice_OfferOnNonCashTerm(t *testing.T) {
	item := domain.CartItem{ProductID: 1, PriceUnit: 80, ListPrice: 100, Quantity: 1, PaymentTermID: 21}
	rule := &domain.DiscountRule{Discount1Pct: 12, Discount2Pct: 8}

	res := EffectivePrice(item, rule, 5000)
	assert.Zero(t, res.Discount1)
	assert.Zero(t, res.Discount2)
	assert.Zero(t, res.EffectivePct)
	assert.Equal(t, 80.0, res.FinalPrice)
}

func TestEffectivePrice_OfferOnCashTermKeepsSecondDiscount(t *testing.T) {
	item := domain.CartItem{ProductID: 1, PriceUnit: 80, ListPrice: 100, Quantity: 1, PaymentTermID: domain.CashPaymentTermID}
	rule := &domain.DiscountRule{Discount1Pct: 10, Discount2Pct: 5}

	res := EffectivePrice(item, rule, 5000)
	assert.Zero(t, res.Discount1)
	assert.Equal(t, 5.0, res.Discount2)
	assert.InDelta(t, 76.0, res.FinalPrice, 1e-9)
}

func TestIsOffer(t *testing.T) {
	assert.True(t, IsOffer(domain.CartItem{PriceUnit: 99.98, ListPrice: 100}))
	assert.False(t, IsOffer(domain.CartItem{PriceUnit: 99.995, ListPrice: 100}), "within epsilon")
	assert.False(t, IsOffer(domain.CartItem{PriceUnit: 10, ListPrice: 0}), "no list price")
}

func TestEffectivePrice_TransportNeverDiscounted(t *testing.T) {
	item := domain.NewTransportItem("", 30)
	rule := &domain.DiscountRule{Discount1Pct: 10}
	res := EffectivePrice(item, rule, 100000)
	assert.Equal(t, 30.0, res.FinalPrice)
	assert.Zero(t, res.EffectivePct)
}

func TestCartTotals(t *testing.T) {
	items := []domain.CartItem{
		{ProductID: 10, Quantity: 3, PriceUnit: 100, PaymentTermID: 21},
		{ProductID: 11, Quantity: 1, PriceUnit: 50, PaymentTermID: 1},
	}
	rules := domain.DiscountRules{21: {PaymentTermID: 21, Discount1Pct: 5, MinPurchaseAmount: 200}}

	totals := CartTotals(items, rules)
	assert.InDelta(t, 350.0, totals.Subtotal, 1e-9)
	assert.InDelta(t, 335.0, totals.Discounted, 1e-9)
}

func TestFrozenTotal(t *testing.T) {
	items := []domain.CartItem{
		{ProductID: 10, Quantity: 2, PriceUnit: 100, Discount1: 10, Discount2: 10, Discount3: 0},
		{ProductID: 12, Quantity: 1, PriceUnit: 200, Discount3: 50},
		domain.NewTransportItem("", 15),
	}
	assert.InDelta(t, 162.0, FrozenLineTotal(items[0]), 1e-9)
	assert.InDelta(t, 162.0+100.0+15.0, FrozenTotal(items), 1e-9)
	assert.InDelta(t, 121.0, WithVAT(100), 1e-9)
}
