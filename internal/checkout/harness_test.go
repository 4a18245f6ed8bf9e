package checkout

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SalBom/app-sb-sub000/internal/backend"
	"github.com/SalBom/app-sb-sub000/internal/cart"
	"github.com/SalBom/app-sb-sub000/internal/catalog"
	"github.com/SalBom/app-sb-sub000/internal/domain"
	"github.com/SalBom/app-sb-sub000/internal/fakebackend"
	"github.com/SalBom/app-sb-sub000/internal/stock"
)

const (
	timeoutShort = 2 * time.Second
	tick         = 5 * time.Millisecond
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderConfirmed
}

func (p *recordingPublisher) PublishOrderConfirmed(_ context.Context, event domain.OrderConfirmed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []domain.OrderConfirmed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OrderConfirmed(nil), p.events...)
}

type harness struct {
	backend *fakebackend.Store
	client  *backend.Client
	cart    *cart.Store
	events  *recordingPublisher
	wizard  *Wizard
}

// newHarness wires a wizard to a seeded fake backend served over HTTP.
func newHarness(t *testing.T) *harness {
	t.Helper()

	fb := fakebackend.NewStore()
	fakebackend.Seed(fb)
	srv := httptest.NewServer(fakebackend.NewRouter(fb, nil))
	t.Cleanup(srv.Close)

	client := backend.NewClient(srv.URL)
	store := cart.NewStore(nil, nil)
	events := &recordingPublisher{}
	w := NewWizard(fakebackend.DemoCUIT, Deps{
		Cart:      store,
		Catalog:   catalog.New(client, nil),
		Gate:      stock.NewGate(client, 4, nil),
		Directory: client,
		Orders:    client,
		Events:    events,
	})
	t.Cleanup(w.Close)

	return &harness{backend: fb, client: client, cart: store, events: events, wizard: w}
}

func (h *harness) add(t *testing.T, productID int64, qty int, term int64) {
	t.Helper()
	rec, ok := h.backend.Product(productID)
	require.True(t, ok, "product %d not seeded", productID)
	require.NoError(t, h.cart.AddItem(domain.Product{
		ProductID:     rec.ID,
		Name:          rec.Name,
		PriceUnit:     rec.PriceUnit,
		ListPrice:     rec.ListPrice,
		DefaultCode:   rec.DefaultCode,
		Quantity:      qty,
		PaymentTermID: term,
	}))
}

// toConfirmation drives the wizard through the first commit with the default selections.
func (h *harness) toConfirmation(t *testing.T) domain.DraftOrder {
	t.Helper()
	ctx := context.Background()
	_, err := h.wizard.EnterProducts(ctx)
	require.NoError(t, err)
	require.NoError(t, h.wizard.AdvanceFromProducts(ctx))
	order, err := h.wizard.AdvanceFromShipping(ctx)
	require.NoError(t, err)
	return order
}
