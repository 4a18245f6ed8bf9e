package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

func draftInput() OrderInput {
	return OrderInput{
		UserCUIT: "20123456789",
		Client:   domain.Client{ID: 501, Name: "Ferretería Sur", VAT: "30711111111"},
		Delivery: domain.DeliveryHome,
		Address:  &domain.Address{ID: "901"},
		Items: []domain.CartItem{
			{ProductID: 10, PriceUnit: 100, Quantity: 3, PaymentTermID: 21, Discount1: 5},
			domain.NewTransportItem("", 1500),
		},
		PaymentTermID: 21,
	}
}

func TestBuildOrderRequest_FirstCommitCreates(t *testing.T) {
	req := BuildOrderRequest(draftInput())

	assert.Equal(t, "30711111111", req.ClientCUIT)
	assert.Nil(t, req.OrderIDToUpdate)
	assert.Nil(t, req.CarrierID)
	require.NotNil(t, req.PartnerShippingID)
	assert.Equal(t, int64(901), *req.PartnerShippingID)
	assert.Equal(t, int64(21), req.PaymentTermID)
	assert.Empty(t, req.TransactionID)

	require.Len(t, req.Items, 2)
	assert.Equal(t, 3, req.Items[0].Qty)
	assert.Equal(t, 3, req.Items[0].ProductUomQty)
	assert.Equal(t, 5.0, req.Items[0].Discount1)
}

func TestBuildOrderRequest_DraftHandleUpdates(t *testing.T) {
	in := draftInput()
	in.Draft = domain.NewDraftOrderHandle(42)

	req := BuildOrderRequest(in)

	require.NotNil(t, req.OrderIDToUpdate)
	assert.Equal(t, int64(42), *req.OrderIDToUpdate)
}

func TestBuildOrderRequest_SelfClientFallsBackToUserCUIT(t *testing.T) {
	in := draftInput()
	in.Client = domain.Client{ID: 500, Name: "YO: JUAN PÉREZ", IsSelf: true}

	req := BuildOrderRequest(in)

	assert.Equal(t, "20123456789", req.ClientCUIT)
}

func TestBuildOrderRequest_Pickup(t *testing.T) {
	in := draftInput()
	in.Delivery = domain.DeliveryPickup

	req := BuildOrderRequest(in)

	require.NotNil(t, req.CarrierID)
	assert.Equal(t, domain.PickupCarrierID, *req.CarrierID)
	assert.Nil(t, req.PartnerShippingID)
	assert.Equal(t, domain.PickupTransportLabel, req.Items[1].Name)
}

func TestBuildOrderRequest_TransportLineNeverDiscounted(t *testing.T) {
	in := draftInput()
	in.Items[1].Discount1 = 10
	in.Items[1].Quantity = 4

	req := BuildOrderRequest(in)

	transport := req.Items[1]
	assert.Equal(t, domain.TransportProductID, transport.ProductID)
	assert.Equal(t, 1, transport.Qty)
	assert.Zero(t, transport.Discount1)
	assert.Zero(t, transport.Discount2)
	assert.Equal(t, domain.TransportDefaultLabel, transport.Name)
}

func TestBuildOrderRequest_NonNumericAddressIsNotSent(t *testing.T) {
	in := draftInput()
	in.Address = &domain.Address{ID: FallbackAddressID}

	req := BuildOrderRequest(in)

	assert.Nil(t, req.PartnerShippingID)
}
