package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/SalBom/app-sb-sub000/internal/cart"
	"github.com/SalBom/app-sb-sub000/internal/discount"
	"github.com/SalBom/app-sb-sub000/internal/domain"
	"github.com/SalBom/app-sb-sub000/internal/stock"
)

// ProductLine is one cart line as shown on the products step.
type ProductLine struct {
	Item      domain.CartItem
	Price     discount.Result
	LineTotal float64
	Stock     domain.StockState
	Blocking  bool
}

// ProductsView is the products step: lines, live-discounted totals and stock flags.
type ProductsView struct {
	Lines         []ProductLine
	Subtotal      float64
	Discounted    float64
	PaymentTermID int64
	PaymentTerm   string
	HasTerm       bool
	Blocking      []int64
	StockChecked  bool
}

func buildProductsView(items []domain.CartItem, rules domain.DiscountRules, report *stock.Report) ProductsView {
	totals := discount.CartTotals(items, rules)
	view := ProductsView{
		Lines:      make([]ProductLine, 0, len(items)),
		Subtotal:   totals.Subtotal,
		Discounted: totals.Discounted,
	}
	for _, item := range items {
		res := discount.Apply(item, rules, totals.Subtotal)
		line := ProductLine{
			Item:      item,
			Price:     res,
			LineTotal: decimal.NewFromFloat(res.FinalPrice).Mul(decimal.NewFromInt(int64(max(item.Quantity, 1)))).InexactFloat64(),
			Stock:     domain.StockGreen,
		}
		if report != nil && !item.IsTransport() {
			line.Stock = report.State(item.ProductID)
			line.Blocking = line.Stock.Blocks()
		}
		view.Lines = append(view.Lines, line)
	}
	if report != nil {
		view.Blocking = report.Blocking()
		view.StockChecked = true
	}
	return view
}

// freezeDiscounts computes the tiers each line keeps for the rest of checkout.
func freezeDiscounts(items []domain.CartItem, rules domain.DiscountRules) map[int64]cart.LineDiscount {
	subtotal := discount.Subtotal(items)
	out := make(map[int64]cart.LineDiscount, len(items))
	for _, item := range items {
		if item.IsTransport() {
			continue
		}
		res := discount.Apply(item, rules, subtotal)
		out[item.ProductID] = cart.LineDiscount{Discount1: res.Discount1, Discount2: res.Discount2}
	}
	return out
}

// Totals of the confirmation step. FromBackend is true when the figures are
// the ones the backend priced for the draft order.
type Totals struct {
	Base        float64
	Taxes       float64
	Total       float64
	Currency    string
	FromBackend bool
}

func confirmationTotals(items []domain.CartItem, draft domain.DraftOrder, draftCurrent bool) Totals {
	if draftCurrent && draft.Total > 0 {
		base := draft.Base
		return Totals{
			Base:        base,
			Taxes:       decimal.NewFromFloat(draft.Total).Sub(decimal.NewFromFloat(base)).Round(2).InexactFloat64(),
			Total:       draft.Total,
			Currency:    draft.Currency,
			FromBackend: true,
		}
	}
	base := decimal.NewFromFloat(discount.FrozenTotal(items)).Round(2)
	total := discount.WithVAT(base.InexactFloat64())
	return Totals{
		Base:     base.InexactFloat64(),
		Taxes:    decimal.NewFromFloat(total).Sub(base).Round(2).InexactFloat64(),
		Total:    total,
		Currency: draft.Currency,
	}
}

// ConfirmationView is the frozen summary shown before the terminal commit.
type ConfirmationView struct {
	Client       domain.Client
	Delivery     domain.DeliveryMethod
	Address      *domain.Address
	Items        []domain.CartItem
	Transport    *domain.CartItem
	Note         string
	Draft        domain.DraftOrder
	Totals       Totals
	PaymentTerm  string
	ExchangeRate float64
	CanEditLines bool
}

// Result is what the success step displays.
type Result struct {
	OrderID       int64
	OrderNumber   string
	Total         float64
	Currency      string
	TransactionID string
}
