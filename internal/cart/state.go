package cart

import (
	"github.com/SalBom/app-sb-sub000/internal/discount"
	"github.com/SalBom/app-sb-sub000/internal/domain"
)

// State is an immutable snapshot of the cart. Version increases by one on
// every successful dispatch.
type State struct {
	items   []domain.CartItem
	Version uint64
}

// Items returns a copy of the lines in insertion order.
func (s State) Items() []domain.CartItem {
	return clone(s.items)
}

func (s State) Len() int {
	return len(s.items)
}

// ProductCount counts lines excluding transport.
func (s State) ProductCount() int {
	n := 0
	for _, item := range s.items {
		if !item.IsTransport() {
			n++
		}
	}
	return n
}

func (s State) IsEmpty() bool {
	return s.ProductCount() == 0
}

// Subtotal is Σ price_unit × quantity, recomputed on every call.
func Subtotal(s State) float64 {
	return discount.Subtotal(s.items)
}

// MaxPaymentTerm is the highest payment term among non-transport lines.
// ok is false when there are no such lines.
func MaxPaymentTerm(s State) (termID int64, ok bool) {
	for _, item := range s.items {
		if item.IsTransport() {
			continue
		}
		if !ok || item.PaymentTermID > termID {
			termID = item.PaymentTermID
			ok = true
		}
	}
	return termID, ok
}

// Quantity returns the quantity of productID, or 0 when it is not in the cart.
func Quantity(s State, productID int64) int {
	if i := indexOf(s.items, productID); i >= 0 {
		return s.items[i].Quantity
	}
	return 0
}

func Item(s State, productID int64) (domain.CartItem, bool) {
	if i := indexOf(s.items, productID); i >= 0 {
		return s.items[i], true
	}
	return domain.CartItem{}, false
}

func Transport(s State) (domain.CartItem, bool) {
	return Item(s, domain.TransportProductID)
}

// Totals prices the cart against the live discount rules.
func Totals(s State, rules domain.DiscountRules) discount.Totals {
	return discount.CartTotals(s.items, rules)
}
