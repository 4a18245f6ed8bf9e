package checkout

import (
	"github.com/SalBom/app-sb-sub000/internal/domain"
)

// OrderInput is everything a commit to /crear-pedido is built from. It holds
// only immutable hand-offs from earlier steps.
type OrderInput struct {
	UserCUIT      string
	Client        domain.Client
	Delivery      domain.DeliveryMethod
	Address       *domain.Address
	Items         []domain.CartItem
	PaymentTermID int64
	Notes         string
	CreatedByName string
	Draft         domain.DraftOrderHandle
}

// BuildOrderRequest maps input to the commit payload. Whether the backend
// creates or updates an order depends only on input.Draft: a present handle
// is sent back as order_id_to_update. TransactionID is left for the submitter.
func BuildOrderRequest(in OrderInput) domain.OrderRequest {
	req := domain.OrderRequest{
		ClientCUIT:    in.Client.VAT,
		Items:         orderLines(in.Items, in.Delivery),
		PaymentTermID: in.PaymentTermID,
		Notes:         in.Notes,
		CreatedByName: in.CreatedByName,
	}
	if req.ClientCUIT == "" {
		req.ClientCUIT = in.UserCUIT
	}

	switch in.Delivery {
	case domain.DeliveryPickup:
		carrier := domain.PickupCarrierID
		req.CarrierID = &carrier
	case domain.DeliveryHome:
		if in.Address != nil {
			if id, ok := in.Address.PartnerID(); ok {
				req.PartnerShippingID = &id
			}
		}
	}

	if in.Draft.Present() {
		id := in.Draft.OrderID()
		req.OrderIDToUpdate = &id
	}
	return req
}

func orderLines(items []domain.CartItem, delivery domain.DeliveryMethod) []domain.OrderLine {
	lines := make([]domain.OrderLine, 0, len(items))
	for _, item := range items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		line := domain.OrderLine{
			ProductID:     item.ProductID,
			Qty:           qty,
			ProductUomQty: qty,
			PriceUnit:     item.PriceUnit,
			PaymentTermID: item.PaymentTermID,
			Discount1:     item.Discount1,
			Discount2:     item.Discount2,
			Discount3:     item.Discount3,
		}
		if item.IsTransport() {
			line.Qty, line.ProductUomQty = 1, 1
			line.Discount1, line.Discount2, line.Discount3 = 0, 0, 0
			line.Name = item.Name
			if delivery == domain.DeliveryPickup {
				line.Name = domain.PickupTransportLabel
			}
		}
		lines = append(lines, line)
	}
	return lines
}
