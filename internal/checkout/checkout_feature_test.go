package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/cucumber/godog"

	"github.com/SalBom/app-sb-sub000/internal/backend"
	"github.com/SalBom/app-sb-sub000/internal/cart"
	"github.com/SalBom/app-sb-sub000/internal/catalog"
	"github.com/SalBom/app-sb-sub000/internal/domain"
	"github.com/SalBom/app-sb-sub000/internal/fakebackend"
	"github.com/SalBom/app-sb-sub000/internal/stock"
)

type checkoutTestContext struct {
	srv     *httptest.Server
	backend *fakebackend.Store
	cart    *cart.Store
	wizard  *Wizard
	draft   domain.DraftOrder
	err     error
}

func (c *checkoutTestContext) reset() {
	c.close()
	c.backend = nil
	c.cart = nil
	c.wizard = nil
	c.draft = domain.DraftOrder{}
	c.err = nil
}

func (c *checkoutTestContext) close() {
	if c.wizard != nil {
		c.wizard.Close()
	}
	if c.srv != nil {
		c.srv.Close()
		c.srv = nil
	}
}

func (c *checkoutTestContext) theDemoBackend() error {
	c.backend = fakebackend.NewStore()
	fakebackend.Seed(c.backend)
	c.srv = httptest.NewServer(fakebackend.NewRouter(c.backend, nil))

	client := backend.NewClient(c.srv.URL)
	c.cart = cart.NewStore(nil, nil)
	c.wizard = NewWizard(fakebackend.DemoCUIT, Deps{
		Cart:      c.cart,
		Catalog:   catalog.New(client, nil),
		Gate:      stock.NewGate(client, 4, nil),
		Directory: client,
		Orders:    client,
	})
	return nil
}

func (c *checkoutTestContext) theCartHoldsUnitsOfProductOnPaymentTerm(qty int, productID, term int64) error {
	rec, ok := c.backend.Product(productID)
	if !ok {
		return fmt.Errorf("product %d is not in the catalog", productID)
	}
	return c.cart.AddItem(domain.Product{
		ProductID:     rec.ID,
		Name:          rec.Name,
		PriceUnit:     rec.PriceUnit,
		ListPrice:     rec.ListPrice,
		DefaultCode:   rec.DefaultCode,
		Quantity:      qty,
		PaymentTermID: term,
	})
}

func (c *checkoutTestContext) theCartAlsoHoldsUnitOfProduct(qty int, productID int64) error {
	return c.theCartHoldsUnitsOfProductOnPaymentTerm(qty, productID, domain.CashPaymentTermID)
}

func (c *checkoutTestContext) theCartHasATransportLineOf(price float64) error {
	return c.cart.AddOrUpdateTransport("", price)
}

func (c *checkoutTestContext) iAdvanceToShippingData() error {
	ctx := context.Background()
	if _, err := c.wizard.EnterProducts(ctx); err != nil {
		return err
	}
	return c.wizard.AdvanceFromProducts(ctx)
}

func (c *checkoutTestContext) iTryToAdvanceToShippingData() error {
	c.err = c.iAdvanceToShippingData()
	return nil
}

func (c *checkoutTestContext) iCommitTheShippingData() error {
	draft, err := c.wizard.AdvanceFromShipping(context.Background())
	if err != nil {
		return err
	}
	c.draft = draft
	return nil
}

func (c *checkoutTestContext) iGoBackOneStep() error {
	return c.wizard.Back()
}

func (c *checkoutTestContext) iSelectClient(id int64) error {
	_, err := c.wizard.SelectClient(context.Background(), id)
	return err
}

func (c *checkoutTestContext) iChooseDelivery(method string) error {
	return c.wizard.SelectDelivery(domain.DeliveryMethod(method))
}

func (c *checkoutTestContext) iConfirmTheOrder() error {
	_, err := c.wizard.Confirm(context.Background())
	return err
}

func (c *checkoutTestContext) iTryToConfirmTheOrder() error {
	_, c.err = c.wizard.Confirm(context.Background())
	return nil
}

func (c *checkoutTestContext) theBackendRejectsTheNextOrder() error {
	c.backend.FailNextOrders(1)
	return nil
}

func (c *checkoutTestContext) theWizardIsOnStep(step string) error {
	if got := c.wizard.Step(); got != domain.WizardStep(step) {
		return fmt.Errorf("expected step %s, got %s", step, got)
	}
	return nil
}

func (c *checkoutTestContext) theBackendHoldsOrders(n int) error {
	if got := c.backend.OrderCount(); got != n {
		return fmt.Errorf("expected %d orders, got %d", n, got)
	}
	return nil
}

func (c *checkoutTestContext) theBackendCreatedOrderAndUpdatedTimes(created, updated int) error {
	stats := c.backend.Stats()
	if stats.Created != created || stats.Updated != updated {
		return fmt.Errorf("expected %d created and %d updated, got %+v", created, updated, stats)
	}
	return nil
}

func (c *checkoutTestContext) theCartIsEmpty() error {
	if !c.cart.State().IsEmpty() {
		return fmt.Errorf("cart still holds %d lines", c.cart.State().Len())
	}
	return nil
}

func (c *checkoutTestContext) theStepFails() error {
	if c.err == nil {
		return errors.New("expected an error")
	}
	return nil
}

func (c *checkoutTestContext) theStepFailsWithAStockErrorForProduct(productID int64) error {
	var blocked *StockBlockedError
	if !errors.As(c.err, &blocked) {
		return fmt.Errorf("expected a stock error, got %v", c.err)
	}
	for _, id := range blocked.ProductIDs {
		if id == productID {
			return nil
		}
	}
	return fmt.Errorf("product %d not among blocking products %v", productID, blocked.ProductIDs)
}

func (c *checkoutTestContext) storedDraft() (fakebackend.Order, error) {
	order, ok := c.backend.Order(c.draft.OrderID)
	if !ok {
		return fakebackend.Order{}, fmt.Errorf("order %d not found", c.draft.OrderID)
	}
	return order, nil
}

func (c *checkoutTestContext) theDraftOrderHasCarrier(carrier int64) error {
	order, err := c.storedDraft()
	if err != nil {
		return err
	}
	if order.CarrierID == nil || *order.CarrierID != carrier {
		return fmt.Errorf("expected carrier %d, got %v", carrier, order.CarrierID)
	}
	return nil
}

func (c *checkoutTestContext) theDraftOrderTransportLineIsNamed(name string) error {
	order, err := c.storedDraft()
	if err != nil {
		return err
	}
	for _, line := range order.Lines {
		if line.ProductID == domain.TransportProductID {
			if line.Name != name {
				return fmt.Errorf("expected transport line %q, got %q", name, line.Name)
			}
			return nil
		}
	}
	return errors.New("order has no transport line")
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &checkoutTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		tc.close()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^the demo backend$`, tc.theDemoBackend)
	ctx.Step(`^the cart holds (\d+) units of product (\d+) on payment term (\d+)$`, tc.theCartHoldsUnitsOfProductOnPaymentTerm)
	ctx.Step(`^the cart also holds (\d+) units? of product (\d+)$`, tc.theCartAlsoHoldsUnitOfProduct)
	ctx.Step(`^the cart has a transport line of (\d+)$`, tc.theCartHasATransportLineOf)
	ctx.Step(`^the backend rejects the next order$`, tc.theBackendRejectsTheNextOrder)

	// When steps
	ctx.Step(`^I advance to shipping data$`, tc.iAdvanceToShippingData)
	ctx.Step(`^I try to advance to shipping data$`, tc.iTryToAdvanceToShippingData)
	ctx.Step(`^I commit the shipping data$`, tc.iCommitTheShippingData)
	ctx.Step(`^I go back one step$`, tc.iGoBackOneStep)
	ctx.Step(`^I select client (\d+)$`, tc.iSelectClient)
	ctx.Step(`^I choose delivery "([^"]*)"$`, tc.iChooseDelivery)
	ctx.Step(`^I confirm the order$`, tc.iConfirmTheOrder)
	ctx.Step(`^I try to confirm the order$`, tc.iTryToConfirmTheOrder)

	// Then steps
	ctx.Step(`^the wizard is on step "([^"]*)"$`, tc.theWizardIsOnStep)
	ctx.Step(`^the backend holds (\d+) orders?$`, tc.theBackendHoldsOrders)
	ctx.Step(`^the backend created (\d+) orders? and updated (\d+) times$`, tc.theBackendCreatedOrderAndUpdatedTimes)
	ctx.Step(`^the cart is empty$`, tc.theCartIsEmpty)
	ctx.Step(`^the step fails$`, tc.theStepFails)
	ctx.Step(`^the step fails with a stock error for product (\d+)$`, tc.theStepFailsWithAStockErrorForProduct)
	ctx.Step(`^the draft order has carrier (\d+)$`, tc.theDraftOrderHasCarrier)
	ctx.Step(`^the draft order transport line is named "([^"]*)"$`, tc.theDraftOrderTransportLineIsNamed)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
