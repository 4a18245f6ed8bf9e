package domain

const (
	// TransportProductID is the synthetic cart line carrying the shipping fee.
	TransportProductID int64 = 4011

	TransportDefaultCode  = "TRANSPORTE"
	TransportDefaultLabel = "ENVÍO A DOMICILIO"
	PickupTransportLabel  = "RETIRO EN CC"

	// CashPaymentTermID is the only term whose second discount stacks with offer prices.
	CashPaymentTermID int64 = 1
	// DefaultPaymentTermID is assigned to lines added without a term.
	DefaultPaymentTermID = CashPaymentTermID
)

// CartItem is a single cart line. Field names follow the backend cart payload.
type CartItem struct {
	ProductID     int64   `json:"product_id"`
	Name          string  `json:"name"`
	PriceUnit     float64 `json:"price_unit"`
	ListPrice     float64 `json:"list_price"`
	Quantity      int     `json:"product_uom_qty"`
	PaymentTermID int64   `json:"payment_term_id"`
	Discount1     float64 `json:"discount1"`
	Discount2     float64 `json:"discount2"`
	Discount3     float64 `json:"discount3,omitempty"`
	DefaultCode   string  `json:"default_code"`
}

func (i CartItem) IsTransport() bool {
	return i.ProductID == TransportProductID
}

// Product is what the catalog hands to the cart when the user taps "add".
// Zero Quantity and PaymentTermID fall back to 1 and the cash term.
type Product struct {
	ProductID     int64
	Name          string
	PriceUnit     float64
	ListPrice     float64
	DefaultCode   string
	Quantity      int
	PaymentTermID int64
}

// ToCartItem builds a fresh line for p with defaults applied.
func (p Product) ToCartItem() CartItem {
	qty := p.Quantity
	if qty < 1 {
		qty = 1
	}
	term := p.PaymentTermID
	if term == 0 {
		term = DefaultPaymentTermID
	}
	return CartItem{
		ProductID:     p.ProductID,
		Name:          p.Name,
		PriceUnit:     p.PriceUnit,
		ListPrice:     p.ListPrice,
		Quantity:      qty,
		PaymentTermID: term,
		DefaultCode:   p.DefaultCode,
	}
}

// NewTransportItem returns the synthetic shipping line.
func NewTransportItem(label string, price float64) CartItem {
	if label == "" {
		label = TransportDefaultLabel
	}
	return CartItem{
		ProductID:     TransportProductID,
		Name:          label,
		PriceUnit:     price,
		ListPrice:     price,
		Quantity:      1,
		PaymentTermID: CashPaymentTermID,
		DefaultCode:   TransportDefaultCode,
	}
}

type PaymentTerm struct {
	ID   int64  `json:"id"`
	Name string `json:"nombre"`
}

// DiscountRule holds the tiered discounts attached to one payment term.
type DiscountRule struct {
	PaymentTermID     int64
	Discount1Pct      float64
	Discount2Pct      float64
	MinPurchaseAmount float64
	EligibleForOffer  bool
}

// DiscountRules is keyed by payment term id.
type DiscountRules map[int64]DiscountRule

// Lookup returns the rule for termID, or nil when the term has none.
func (r DiscountRules) Lookup(termID int64) *DiscountRule {
	rule, ok := r[termID]
	if !ok {
		return nil
	}
	return &rule
}

type StockState string

const (
	StockRed    StockState = "red"
	StockOrange StockState = "orange"
	StockGreen  StockState = "green"
)

// Blocks reports whether a line in this state must be removed before checkout continues.
func (s StockState) Blocks() bool {
	return s == StockRed
}
