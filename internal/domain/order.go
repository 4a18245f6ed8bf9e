package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// PickupCarrierID is the carrier the backend books for branch pickup.
const PickupCarrierID int64 = 926

type DeliveryMethod string

const (
	DeliveryHome   DeliveryMethod = "domicilio"
	DeliveryPickup DeliveryMethod = "sucursal"
)

func (m DeliveryMethod) Valid() bool {
	return m == DeliveryHome || m == DeliveryPickup
}

// Client is the account an order is placed for: the user or one of its managed sub-accounts.
type Client struct {
	ID     int64
	Name   string
	VAT    string
	Street string
	City   string
	State  string
	Zip    string
	IsSelf bool
}

// Address is a delivery address. ID is numeric for backend records and
// "partner" for the fallback built from the client itself.
type Address struct {
	ID     string
	Name   string
	Street string
	City   string
	State  string
	Zip    string
	Source string
}

// PartnerID returns the backend id of the address when it has one.
func (a Address) PartnerID() (int64, bool) {
	id, err := strconv.ParseInt(a.ID, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Profile is the logged-in user as seen by the backend.
type Profile struct {
	PartnerID int64
	Name      string
	Role      string
}

// TaxGroup is one line of the backend tax breakdown.
type TaxGroup struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// DraftOrder is the backend's view of the order being built by the wizard.
type DraftOrder struct {
	OrderID     int64
	OrderNumber string
	Currency    string
	Base        float64
	Total       float64
	TaxGroups   []TaxGroup
	TaxTotals   json.RawMessage
}

// DraftOrderHandle identifies the draft order retained across wizard steps.
// The zero value means no draft exists yet.
type DraftOrderHandle struct {
	orderID int64
}

func NewDraftOrderHandle(orderID int64) DraftOrderHandle {
	return DraftOrderHandle{orderID: orderID}
}

func (h DraftOrderHandle) Present() bool {
	return h.orderID != 0
}

func (h DraftOrderHandle) OrderID() int64 {
	return h.orderID
}

// OrderLine is one entry of the order commit payload.
type OrderLine struct {
	ProductID     int64   `json:"product_id"`
	Qty           int     `json:"qty"`
	ProductUomQty int     `json:"product_uom_qty"`
	PriceUnit     float64 `json:"price_unit"`
	PaymentTermID int64   `json:"payment_term_id"`
	Discount1     float64 `json:"discount1"`
	Discount2     float64 `json:"discount2"`
	Discount3     float64 `json:"discount3,omitempty"`
	Name          string  `json:"name,omitempty"`
}

// OrderRequest is the body of POST /crear-pedido.
type OrderRequest struct {
	ClientCUIT        string      `json:"cliente_cuit"`
	Items             []OrderLine `json:"items"`
	PartnerShippingID *int64      `json:"partner_shipping_id,omitempty"`
	CarrierID         *int64      `json:"carrier_id,omitempty"`
	PaymentTermID     int64       `json:"payment_term_id"`
	Notes             string      `json:"observaciones,omitempty"`
	CreatedByName     string      `json:"created_by_name,omitempty"`
	TransactionID     string      `json:"transaction_id"`
	OrderIDToUpdate   *int64      `json:"order_id_to_update,omitempty"`
}

// OrderConfirmed is emitted once the terminal commit succeeds.
type OrderConfirmed struct {
	OrderID       int64     `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	ClientCUIT    string    `json:"cuit"`
	Total         float64   `json:"total"`
	Currency      string    `json:"currency"`
	TransactionID string    `json:"transaction_id"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}
