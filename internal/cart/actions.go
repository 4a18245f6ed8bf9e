package cart

import (
	"errors"
	"fmt"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

var (
	ErrItemNotFound    = errors.New("cart item not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidDiscount = errors.New("discount must be between 0 and 100")
	ErrInvalidPrice    = errors.New("price must not be negative")
)

// Action is a command accepted by Store.Dispatch. apply never mutates its input.
type Action interface {
	apply(items []domain.CartItem) ([]domain.CartItem, error)
	Name() string
}

// AddItem inserts a product or bumps the quantity of its existing line by one.
// The transport product is routed to AddOrUpdateTransport.
type AddItem struct {
	Product domain.Product
}

func (a AddItem) Name() string { return "add_item" }

func (a AddItem) apply(items []domain.CartItem) ([]domain.CartItem, error) {
	if a.Product.ProductID == domain.TransportProductID {
		return AddOrUpdateTransport{Label: a.Product.Name, Price: a.Product.PriceUnit}.apply(items)
	}
	if a.Product.PriceUnit < 0 {
		return nil, ErrInvalidPrice
	}
	out := clone(items)
	if i := indexOf(out, a.Product.ProductID); i >= 0 {
		out[i].Quantity++
		return out, nil
	}
	return append(out, a.Product.ToCartItem()), nil
}

type UpdateQuantity struct {
	ProductID int64
	Quantity  int
}

func (a UpdateQuantity) Name() string { return "update_quantity" }

func (a UpdateQuantity) apply(items []domain.CartItem) ([]domain.CartItem, error) {
	if a.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	out := clone(items)
	i := indexOf(out, a.ProductID)
	if i < 0 {
		return nil, fmt.Errorf("product %d: %w", a.ProductID, ErrItemNotFound)
	}
	if out[i].IsTransport() {
		if a.Quantity != 1 {
			return nil, fmt.Errorf("transport line: %w", ErrInvalidQuantity)
		}
		return out, nil
	}
	out[i].Quantity = a.Quantity
	return out, nil
}

type UpdateItemPaymentTerm struct {
	ProductID int64
	TermID    int64
}

func (a UpdateItemPaymentTerm) Name() string { return "update_item_payment_term" }

func (a UpdateItemPaymentTerm) apply(items []domain.CartItem) ([]domain.CartItem, error) {
	out := clone(items)
	i := indexOf(out, a.ProductID)
	if i < 0 {
		return nil, fmt.Errorf("product %d: %w", a.ProductID, ErrItemNotFound)
	}
	out[i].PaymentTermID = a.TermID
	return out, nil
}

type UpdateDiscount struct {
	ProductID int64
	Discount1 float64
	Discount2 float64
}

func (a UpdateDiscount) Name() string { return "update_discount" }

func (a UpdateDiscount) apply(items []domain.CartItem) ([]domain.CartItem, error) {
	if !validPct(a.Discount1) || !validPct(a.Discount2) {
		return nil, ErrInvalidDiscount
	}
	out := clone(items)
	i := indexOf(out, a.ProductID)
	if i < 0 {
		return nil, fmt.Errorf("product %d: %w", a.ProductID, ErrItemNotFound)
	}
	out[i].Discount1 = a.Discount1
	out[i].Discount2 = a.Discount2
	return out, nil
}

// LineDiscount is the pair of tiers frozen onto a line.
type LineDiscount struct {
	Discount1 float64
	Discount2 float64
}

// ApplyDiscounts writes discounts for many lines in a single mutation. Lines
// missing from Discounts are reset to zero; ids not in the cart are ignored.
type ApplyDiscounts struct {
	Discounts map[int64]LineDiscount
}

func (a ApplyDiscounts) Name() string { return "apply_discounts" }

func (a ApplyDiscounts) apply(items []domain.CartItem) ([]domain.CartItem, error) {
	out := clone(items)
	for i := range out {
		if out[i].IsTransport() {
			continue
		}
		d := a.Discounts[out[i].ProductID]
		if !validPct(d.Discount1) || !validPct(d.Discount2) {
			return nil, fmt.Errorf("product %d: %w", out[i].ProductID, ErrInvalidDiscount)
		}
		out[i].Discount1 = d.Discount1
		out[i].Discount2 = d.Discount2
	}
	return out, nil
}

// EditLine overrides price and discount tiers of one line. Nil fields are left as they are.
type EditLine struct {
	ProductID int64
	PriceUnit *float64
	Discount1 *float64
	Discount2 *float64
	Discount3 *float64
}

func (a EditLine) Name() string { return "edit_line" }

func (a EditLine) apply(items []domain.CartItem) ([]domain.CartItem, error) {
	if a.PriceUnit != nil && *a.PriceUnit < 0 {
		return nil, ErrInvalidPrice
	}
	for _, pct := range []*float64{a.Discount1, a.Discount2, a.Discount3} {
		if pct != nil && !validPct(*pct) {
			return nil, ErrInvalidDiscount
		}
	}
	out := clone(items)
	i := indexOf(out, a.ProductID)
	if i < 0 {
		return nil, fmt.Errorf("product %d: %w", a.ProductID, ErrItemNotFound)
	}
	if a.PriceUnit != nil {
		out[i].PriceUnit = *a.PriceUnit
	}
	if a.Discount1 != nil {
		out[i].Discount1 = *a.Discount1
	}
	if a.Discount2 != nil {
		out[i].Discount2 = *a.Discount2
	}
	if a.Discount3 != nil {
		out[i].Discount3 = *a.Discount3
	}
	return out, nil
}

type RemoveItem struct {
	ProductID int64
}

func (a RemoveItem) Name() string { return "remove_item" }

func (a RemoveItem) apply(items []domain.CartItem) ([]domain.CartItem, error) {
	i := indexOf(items, a.ProductID)
	if i < 0 {
		return nil, fmt.Errorf("product %d: %w", a.ProductID, ErrItemNotFound)
	}
	out := make([]domain.CartItem, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...), nil
}

type Clear struct{}

func (Clear) Name() string { return "clear" }

func (Clear) apply([]domain.CartItem) ([]domain.CartItem, error) {
	return []domain.CartItem{}, nil
}

// ReplaceAll swaps the whole item list, as done when hydrating from the backend.
// Quantities below 1 are raised to 1 and duplicate product ids are merged.
type ReplaceAll struct {
	Items []domain.CartItem
}

func (a ReplaceAll) Name() string { return "replace_all" }

func (a ReplaceAll) apply([]domain.CartItem) ([]domain.CartItem, error) {
	out := make([]domain.CartItem, 0, len(a.Items))
	for _, item := range a.Items {
		if item.Quantity < 1 || item.IsTransport() {
			item.Quantity = 1
		}
		if item.PaymentTermID == 0 {
			item.PaymentTermID = domain.DefaultPaymentTermID
		}
		if i := indexOf(out, item.ProductID); i >= 0 {
			if !item.IsTransport() {
				out[i].Quantity += item.Quantity
			} else {
				out[i] = item
			}
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// AddOrUpdateTransport inserts the transport line or replaces its label and price in place.
type AddOrUpdateTransport struct {
	Label string
	Price float64
}

func (a AddOrUpdateTransport) Name() string { return "add_or_update_transport" }

func (a AddOrUpdateTransport) apply(items []domain.CartItem) ([]domain.CartItem, error) {
	if a.Price < 0 {
		return nil, ErrInvalidPrice
	}
	line := domain.NewTransportItem(a.Label, a.Price)
	out := clone(items)
	if i := indexOf(out, domain.TransportProductID); i >= 0 {
		out[i] = line
		return out, nil
	}
	return append(out, line), nil
}

// RemoveTransport drops the transport line; it is a no-op when there is none.
type RemoveTransport struct{}

func (RemoveTransport) Name() string { return "remove_transport" }

func (RemoveTransport) apply(items []domain.CartItem) ([]domain.CartItem, error) {
	if indexOf(items, domain.TransportProductID) < 0 {
		return clone(items), nil
	}
	return RemoveItem{ProductID: domain.TransportProductID}.apply(items)
}

func clone(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out
}

func indexOf(items []domain.CartItem, productID int64) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func validPct(p float64) bool {
	return p >= 0 && p <= 100
}
