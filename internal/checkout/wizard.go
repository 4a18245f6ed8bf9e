// Package checkout drives the three-step checkout wizard and the terminal
// order commit.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SalBom/app-sb-sub000/internal/cart"
	"github.com/SalBom/app-sb-sub000/internal/catalog"
	"github.com/SalBom/app-sb-sub000/internal/domain"
	"github.com/SalBom/app-sb-sub000/internal/stock"
)

const (
	// DefaultExchangeRate is shown when /tipo-cambio is unavailable.
	DefaultExchangeRate = 1290.0

	FallbackAddressID   = "partner"
	FallbackAddressName = "DIRECCIÓN PRINCIPAL"

	selfClientPrefix = "YO: "
	publishTimeout   = 5 * time.Second
)

// Roles allowed to override prices and discounts on the confirmation step.
var lineEditorRoles = []string{"Admin", "Vendedor Black"}

// Directory resolves who the order is for and where it goes.
type Directory interface {
	UserProfile(ctx context.Context, cuit string) (domain.Profile, error)
	Clients(ctx context.Context, cuit string) ([]domain.Client, error)
	Addresses(ctx context.Context, clientID int64) ([]domain.Address, error)
	ExchangeRate(ctx context.Context) (float64, error)
}

// EventPublisher is notified after a successful terminal commit.
type EventPublisher interface {
	PublishOrderConfirmed(ctx context.Context, event domain.OrderConfirmed) error
}

type Deps struct {
	Cart      *cart.Store
	Catalog   *catalog.Catalog
	Gate      *stock.Gate
	Directory Directory
	Orders    OrderCreator
	Events    EventPublisher // optional
	Logger    *zap.Logger
}

// ShippingOptions is what the shipping step offers.
type ShippingOptions struct {
	Clients         []domain.Client
	SelectedClient  *domain.Client
	Addresses       []domain.Address
	SelectedAddress *domain.Address
	Delivery        domain.DeliveryMethod
	ExchangeRate    float64
}

// Wizard threads one draft order through Products -> ShippingData ->
// Confirmation -> Success. Its methods are safe for concurrent use; no lock
// is held across a network call.
type Wizard struct {
	cuit      string
	cart      *cart.Store
	catalog   *catalog.Catalog
	gate      *stock.Gate
	directory Directory
	orders    OrderCreator
	events    EventPublisher
	submitter *Submitter
	logger    *zap.Logger
	newTxID   func() string

	committing  atomic.Bool
	unsubscribe func()
	publishing  sync.WaitGroup

	mu           sync.Mutex
	step         domain.WizardStep
	draft        domain.DraftOrderHandle
	draftOrder   domain.DraftOrder
	draftCurrent bool
	rules        domain.DiscountRules
	report       *stock.Report
	stockStale   bool

	profile         *domain.Profile
	clients         []domain.Client
	selectedClient  *domain.Client
	addresses       []domain.Address
	selectedAddress *domain.Address
	delivery        domain.DeliveryMethod
	exchangeRate    float64
	note            string
	result          *Result
}

func NewWizard(cuit string, deps Deps) *Wizard {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Wizard{
		cuit:         cuit,
		cart:         deps.Cart,
		catalog:      deps.Catalog,
		gate:         deps.Gate,
		directory:    deps.Directory,
		orders:       deps.Orders,
		events:       deps.Events,
		submitter:    NewSubmitter(deps.Orders, logger),
		logger:       logger,
		newTxID:      uuid.NewString,
		step:         domain.StepProducts,
		delivery:     domain.DeliveryHome,
		exchangeRate: DefaultExchangeRate,
		stockStale:   true,
	}
	w.unsubscribe = deps.Cart.Subscribe(w.onCartChange)
	return w
}

// onCartChange invalidates the stock report when the set of products no
// longer matches the one it was built for, and marks the backend-priced totals
// as outdated.
func (w *Wizard) onCartChange(state cart.State, _ cart.Action) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.report == nil || !w.report.Covers(state.Items()) {
		w.stockStale = true
	}
	w.draftCurrent = false
}

func (w *Wizard) Step() domain.WizardStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Draft returns the retained draft order handle; the zero handle means none yet.
func (w *Wizard) Draft() domain.DraftOrderHandle {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

func (w *Wizard) SubmissionStatus() domain.SubmissionStatus {
	return w.submitter.Status()
}

// Result returns the success payload once the wizard reached Success.
func (w *Wizard) Result() (Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.result == nil {
		return Result{}, false
	}
	return *w.result, true
}

// EnterProducts (re)enters the products step: it refreshes the discount rules
// and fetches fresh stock flags for every line.
func (w *Wizard) EnterProducts(ctx context.Context) (ProductsView, error) {
	if step := w.Step(); step != domain.StepProducts {
		return ProductsView{}, illegal(step, domain.StepProducts)
	}

	rules, err := w.catalog.RefreshRules(ctx)
	if err != nil {
		w.logger.Warn("discount rules unavailable, prices shown without discounts", zap.Error(err))
		rules = nil
	}
	w.mu.Lock()
	if rules != nil {
		w.rules = rules
	}
	w.mu.Unlock()

	if err := w.refreshStock(ctx); err != nil {
		return ProductsView{}, err
	}
	return w.ProductsSummary(), nil
}

// ProductsSummary renders the cart with live discounts and the last stock report.
func (w *Wizard) ProductsSummary() ProductsView {
	items := w.cart.State().Items()

	w.mu.Lock()
	rules := w.rules
	var report *stock.Report
	if w.report != nil && !w.stockStale {
		report = w.report
	}
	w.mu.Unlock()

	view := buildProductsView(items, rules, report)
	if term, ok := cart.MaxPaymentTerm(w.cart.State()); ok {
		view.PaymentTermID = term
		view.HasTerm = true
		if name, err := w.catalog.TermName(context.Background(), term); err == nil {
			view.PaymentTerm = name
		}
	}
	return view
}

func (w *Wizard) refreshStock(ctx context.Context) error {
	state := w.cart.State()
	report, err := w.gate.Check(ctx, state.Items())
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.report = &report
	w.stockStale = !report.Covers(w.cart.State().Items())
	w.mu.Unlock()
	return nil
}

// AdvanceFromProducts validates the cart, applies the stock gate and freezes
// each line's discounts before moving to ShippingData.
func (w *Wizard) AdvanceFromProducts(ctx context.Context) error {
	if step := w.Step(); step != domain.StepProducts {
		return illegal(step, domain.StepShippingData)
	}

	state := w.cart.State()
	if state.IsEmpty() {
		return &ValidationError{Field: "items", Message: "el carrito está vacío"}
	}
	for _, item := range state.Items() {
		if !item.IsTransport() && item.PriceUnit <= 0 {
			return &ValidationError{Field: "price_unit", Message: fmt.Sprintf("el producto %d no tiene precio", item.ProductID)}
		}
	}

	w.mu.Lock()
	stale := w.stockStale || w.report == nil || !w.report.Covers(state.Items())
	w.mu.Unlock()
	if stale {
		if err := w.refreshStock(ctx); err != nil {
			return err
		}
	}

	w.mu.Lock()
	blocking := w.report.Blocking()
	rules := w.rules
	w.mu.Unlock()
	if len(blocking) > 0 {
		return &StockBlockedError{ProductIDs: blocking}
	}

	if rules == nil {
		loaded, err := w.catalog.Rules(ctx)
		if err != nil {
			w.logger.Warn("discount rules unavailable, freezing without discounts", zap.Error(err))
		}
		rules = loaded
	}
	if _, err := w.cart.Dispatch(cart.ApplyDiscounts{Discounts: freezeDiscounts(state.Items(), rules)}); err != nil {
		return fmt.Errorf("failed to freeze discounts: %w", err)
	}

	if err := w.transition(domain.StepProducts, domain.StepShippingData); err != nil {
		return err
	}

	w.mu.Lock()
	selected := w.selectedClient != nil
	w.mu.Unlock()
	if !selected {
		if _, err := w.LoadShippingOptions(ctx); err != nil {
			w.logger.Warn("shipping options unavailable", zap.Error(err))
		}
	}
	return nil
}

// LoadShippingOptions fetches the user, their managed clients and the
// exchange rate, preselecting the first client and its first address.
func (w *Wizard) LoadShippingOptions(ctx context.Context) (ShippingOptions, error) {
	var clients []domain.Client
	var profile *domain.Profile

	if p, err := w.directory.UserProfile(ctx, w.cuit); err != nil {
		w.logger.Debug("user profile unavailable", zap.Error(err))
	} else {
		profile = &p
	}

	managed, err := w.directory.Clients(ctx, w.cuit)
	if err != nil {
		w.logger.Debug("clients unavailable", zap.Error(err))
	}
	if profile != nil {
		clients = append(clients, domain.Client{
			ID:     profile.PartnerID,
			Name:   strings.ToUpper(selfClientPrefix + profile.Name),
			VAT:    w.cuit,
			IsSelf: true,
		})
	}
	for _, c := range managed {
		if profile != nil && c.ID == profile.PartnerID {
			continue
		}
		clients = append(clients, c)
	}

	rate, rateErr := w.directory.ExchangeRate(ctx)
	if rateErr != nil || rate <= 0 {
		rate = DefaultExchangeRate
	}

	w.mu.Lock()
	w.profile = profile
	w.clients = clients
	w.exchangeRate = rate
	needsSelection := w.selectedClient == nil && len(clients) > 0
	w.mu.Unlock()

	if len(clients) == 0 {
		return w.shippingOptions(), ErrNoClients
	}
	if needsSelection {
		if _, err := w.SelectClient(ctx, clients[0].ID); err != nil {
			return w.shippingOptions(), err
		}
	}
	return w.shippingOptions(), nil
}

func (w *Wizard) shippingOptions() ShippingOptions {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ShippingOptions{
		Clients:         append([]domain.Client(nil), w.clients...),
		SelectedClient:  copyPtr(w.selectedClient),
		Addresses:       append([]domain.Address(nil), w.addresses...),
		SelectedAddress: copyPtr(w.selectedAddress),
		Delivery:        w.delivery,
		ExchangeRate:    w.exchangeRate,
	}
}

// SearchClients filters the loaded clients by name substring or VAT prefix, case-insensitively.
func (w *Wizard) SearchClients(query string) []domain.Client {
	q := strings.ToLower(strings.TrimSpace(query))
	w.mu.Lock()
	defer w.mu.Unlock()
	if q == "" {
		return append([]domain.Client(nil), w.clients...)
	}
	var out []domain.Client
	for _, c := range w.clients {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.HasPrefix(strings.ToLower(c.VAT), q) {
			out = append(out, c)
		}
	}
	return out
}

// SelectClient picks the client the order is for and loads its delivery
// addresses. When the backend has none to offer, a single fallback address
// built from the client record is used.
func (w *Wizard) SelectClient(ctx context.Context, clientID int64) ([]domain.Address, error) {
	w.mu.Lock()
	if w.committing.Load() {
		w.mu.Unlock()
		return nil, ErrSubmissionInProgress
	}
	if w.step != domain.StepShippingData {
		step := w.step
		w.mu.Unlock()
		return nil, illegal(step, domain.StepShippingData)
	}
	var client *domain.Client
	for i := range w.clients {
		if w.clients[i].ID == clientID {
			c := w.clients[i]
			client = &c
			break
		}
	}
	w.mu.Unlock()
	if client == nil {
		return nil, &ValidationError{Field: "client", Message: fmt.Sprintf("cliente %d no disponible", clientID)}
	}

	addresses, err := w.directory.Addresses(ctx, client.ID)
	if err != nil || len(addresses) == 0 {
		if err != nil {
			w.logger.Debug("addresses unavailable, using client address", zap.Int64("client_id", client.ID), zap.Error(err))
		}
		addresses = []domain.Address{fallbackAddress(*client)}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committing.Load() {
		return nil, ErrSubmissionInProgress
	}
	w.selectedClient = client
	w.addresses = addresses
	first := addresses[0]
	w.selectedAddress = &first
	w.draftCurrent = false
	return append([]domain.Address(nil), addresses...), nil
}

func fallbackAddress(c domain.Client) domain.Address {
	return domain.Address{
		ID:     FallbackAddressID,
		Name:   FallbackAddressName,
		Street: c.Street,
		City:   c.City,
		State:  c.State,
		Zip:    c.Zip,
		Source: "partner",
	}
}

func (w *Wizard) SelectDelivery(method domain.DeliveryMethod) error {
	if !method.Valid() {
		return &ValidationError{Field: "delivery", Message: fmt.Sprintf("método de envío %q desconocido", method)}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committing.Load() {
		return ErrSubmissionInProgress
	}
	if w.step != domain.StepShippingData {
		return illegal(w.step, domain.StepShippingData)
	}
	w.delivery = method
	w.draftCurrent = false
	return nil
}

func (w *Wizard) SelectAddress(addressID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committing.Load() {
		return ErrSubmissionInProgress
	}
	if w.step != domain.StepShippingData {
		return illegal(w.step, domain.StepShippingData)
	}
	for i := range w.addresses {
		if w.addresses[i].ID == addressID {
			a := w.addresses[i]
			w.selectedAddress = &a
			w.draftCurrent = false
			return nil
		}
	}
	return &ValidationError{Field: "address", Message: fmt.Sprintf("dirección %s no disponible", addressID)}
}

// AdvanceFromShipping performs the first network commit. Without a draft the
// backend creates one and its id is retained; with a draft the same id is sent
// back so the backend updates it. Concurrent calls are rejected, and while the
// commit is in flight the shipping selections and the step are frozen. The
// returned id is kept even if the step moved meanwhile, so a later commit
// never creates a second order.
func (w *Wizard) AdvanceFromShipping(ctx context.Context) (domain.DraftOrder, error) {
	if !w.committing.CompareAndSwap(false, true) {
		return domain.DraftOrder{}, ErrSubmissionInProgress
	}
	defer w.committing.Store(false)

	in, err := w.orderInput(domain.StepShippingData)
	if err != nil {
		return domain.DraftOrder{}, err
	}
	req := BuildOrderRequest(in)
	req.TransactionID = w.newTxID()

	order, err := w.orders.CreateOrder(ctx, req)
	if err != nil {
		w.logger.Warn("draft order commit failed", zap.Error(err))
		return domain.DraftOrder{}, fmt.Errorf("draft order commit failed: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.draft.Present() {
		w.draft = domain.NewDraftOrderHandle(order.OrderID)
		w.logger.Info("draft order created", zap.Int64("order_id", order.OrderID))
	} else if w.draft.OrderID() != order.OrderID {
		w.logger.Warn("backend answered with a different order id, keeping the draft",
			zap.Int64("draft_id", w.draft.OrderID()),
			zap.Int64("returned_id", order.OrderID))
	}
	if w.step != domain.StepShippingData {
		return domain.DraftOrder{}, illegal(w.step, domain.StepConfirmation)
	}
	w.draftOrder = order
	w.draftCurrent = true
	w.step = domain.StepConfirmation
	return order, nil
}

// orderInput snapshots the hand-offs of the current step and validates them.
func (w *Wizard) orderInput(expected domain.WizardStep) (OrderInput, error) {
	state := w.cart.State()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != expected {
		return OrderInput{}, illegal(w.step, nextStep(expected))
	}
	if w.selectedClient == nil {
		return OrderInput{}, &ValidationError{Field: "client", Message: "seleccioná un cliente"}
	}
	if !w.delivery.Valid() {
		return OrderInput{}, &ValidationError{Field: "delivery", Message: "seleccioná un método de envío"}
	}
	if w.delivery == domain.DeliveryHome && w.selectedAddress == nil {
		return OrderInput{}, &ValidationError{Field: "address", Message: "seleccioná una dirección de entrega"}
	}
	term, ok := cart.MaxPaymentTerm(state)
	if !ok {
		return OrderInput{}, &ValidationError{Field: "items", Message: "el carrito está vacío"}
	}

	in := OrderInput{
		UserCUIT:      w.cuit,
		Client:        *w.selectedClient,
		Delivery:      w.delivery,
		Items:         state.Items(),
		PaymentTermID: term,
		Draft:         w.draft,
	}
	if w.delivery == domain.DeliveryHome {
		in.Address = copyPtr(w.selectedAddress)
	}
	if expected == domain.StepConfirmation {
		in.Notes = w.note
		if w.profile != nil {
			in.CreatedByName = w.profile.Name
		}
	}
	return in, nil
}

func nextStep(s domain.WizardStep) domain.WizardStep {
	switch s {
	case domain.StepProducts:
		return domain.StepShippingData
	case domain.StepShippingData:
		return domain.StepConfirmation
	default:
		return domain.StepSuccess
	}
}

func (w *Wizard) SetNote(note string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != domain.StepConfirmation {
		return illegal(w.step, domain.StepConfirmation)
	}
	w.note = strings.TrimSpace(note)
	return nil
}

// LineEdit overrides a confirmation line. Nil fields are kept.
type LineEdit struct {
	PriceUnit *float64
	Discount1 *float64
	Discount2 *float64
	Discount3 *float64
}

// EditLine lets privileged roles override a line's price and discounts.
func (w *Wizard) EditLine(productID int64, edit LineEdit) error {
	w.mu.Lock()
	step := w.step
	allowed := w.profile != nil && canEditLines(w.profile.Role)
	w.mu.Unlock()

	if step != domain.StepConfirmation {
		return illegal(step, domain.StepConfirmation)
	}
	if !allowed {
		return ErrEditNotAllowed
	}
	if w.submitter.Status() == domain.SubmissionSubmitting {
		return ErrSubmissionInProgress
	}
	_, err := w.cart.Dispatch(cart.EditLine{
		ProductID: productID,
		PriceUnit: edit.PriceUnit,
		Discount1: edit.Discount1,
		Discount2: edit.Discount2,
		Discount3: edit.Discount3,
	})
	return err
}

func canEditLines(role string) bool {
	for _, r := range lineEditorRoles {
		if strings.EqualFold(strings.TrimSpace(role), r) {
			return true
		}
	}
	return false
}

// ConfirmationView renders the frozen summary. Totals come from the backend
// draft unless the cart changed after it was priced.
func (w *Wizard) ConfirmationView() (ConfirmationView, error) {
	items := w.cart.State().Items()
	term, _ := cart.MaxPaymentTerm(w.cart.State())

	w.mu.Lock()
	if w.step != domain.StepConfirmation {
		step := w.step
		w.mu.Unlock()
		return ConfirmationView{}, illegal(step, domain.StepConfirmation)
	}
	view := ConfirmationView{
		Delivery:     w.delivery,
		Items:        items,
		Note:         w.note,
		Draft:        w.draftOrder,
		Totals:       confirmationTotals(items, w.draftOrder, w.draftCurrent),
		ExchangeRate: w.exchangeRate,
		CanEditLines: w.profile != nil && canEditLines(w.profile.Role),
	}
	if w.selectedClient != nil {
		view.Client = *w.selectedClient
	}
	if w.delivery == domain.DeliveryHome {
		view.Address = copyPtr(w.selectedAddress)
	}
	w.mu.Unlock()

	for i := range items {
		if items[i].IsTransport() {
			t := items[i]
			if view.Delivery == domain.DeliveryPickup {
				t.Name = domain.PickupTransportLabel
			}
			view.Transport = &t
		}
	}
	if name, err := w.catalog.TermName(context.Background(), term); err == nil {
		view.PaymentTerm = name
	}
	return view, nil
}

// Confirm performs the terminal commit through the submission guard. On
// success the cart is cleared, the draft handle is discarded and the wizard
// reaches Success. On failure it stays in Confirmation.
func (w *Wizard) Confirm(ctx context.Context) (Result, error) {
	if w.submitter.Status() == domain.SubmissionSucceeded {
		return Result{}, ErrAlreadySubmitted
	}
	in, err := w.orderInput(domain.StepConfirmation)
	if err != nil {
		return Result{}, err
	}

	sub, err := w.submitter.Submit(ctx, BuildOrderRequest(in))
	if err != nil {
		return Result{}, err
	}

	result := Result{
		OrderID:       sub.Order.OrderID,
		OrderNumber:   sub.Order.OrderNumber,
		Total:         sub.Order.Total,
		Currency:      sub.Order.Currency,
		TransactionID: sub.TransactionID,
	}

	w.mu.Lock()
	w.step = domain.StepSuccess
	w.result = &result
	w.draft = domain.DraftOrderHandle{}
	w.draftOrder = domain.DraftOrder{}
	w.mu.Unlock()

	w.cart.Clear()
	w.publish(in.Client.VAT, in.UserCUIT, result)
	return result, nil
}

func (w *Wizard) publish(clientVAT, userCUIT string, result Result) {
	if w.events == nil {
		return
	}
	cuit := clientVAT
	if cuit == "" {
		cuit = userCUIT
	}
	event := domain.OrderConfirmed{
		OrderID:       result.OrderID,
		OrderNumber:   result.OrderNumber,
		ClientCUIT:    cuit,
		Total:         result.Total,
		Currency:      result.Currency,
		TransactionID: result.TransactionID,
		ConfirmedAt:   time.Now().UTC(),
	}

	w.publishing.Add(1)
	go func() {
		defer w.publishing.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := w.events.PublishOrderConfirmed(ctx, event); err != nil {
			w.logger.Warn("order confirmed event not published", zap.Int64("order_id", event.OrderID), zap.Error(err))
		}
	}()
}

// Back moves one step backwards. The draft handle survives.
func (w *Wizard) Back() error {
	if w.submitter.Status() == domain.SubmissionSubmitting {
		return ErrSubmissionInProgress
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committing.Load() {
		return ErrSubmissionInProgress
	}
	var to domain.WizardStep
	switch w.step {
	case domain.StepConfirmation:
		to = domain.StepShippingData
	case domain.StepShippingData:
		to = domain.StepProducts
	default:
		return illegal(w.step, domain.StepProducts)
	}
	if !domain.CanTransitionTo(w.step, to) {
		return illegal(w.step, to)
	}
	w.logger.Debug("wizard step back", zap.Stringer("from", w.step), zap.Stringer("to", to))
	w.step = to
	if to == domain.StepProducts {
		w.stockStale = true
	}
	return nil
}

// Abandon discards the draft handle and every selection and returns to
// Products. The cart itself is kept. It also starts a new session after Success.
func (w *Wizard) Abandon() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committing.Load() || !w.submitter.Reset() {
		return ErrSubmissionInProgress
	}
	w.step = domain.StepProducts
	w.draft = domain.DraftOrderHandle{}
	w.draftOrder = domain.DraftOrder{}
	w.draftCurrent = false
	w.selectedClient = nil
	w.selectedAddress = nil
	w.addresses = nil
	w.delivery = domain.DeliveryHome
	w.note = ""
	w.result = nil
	w.stockStale = true
	return nil
}

// Close detaches from the cart and waits for pending event publications.
func (w *Wizard) Close() {
	if w.unsubscribe != nil {
		w.unsubscribe()
	}
	w.publishing.Wait()
}

func (w *Wizard) transition(from, to domain.WizardStep) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != from || !domain.CanTransitionTo(from, to) {
		return illegal(w.step, to)
	}
	w.logger.Debug("wizard step", zap.Stringer("from", from), zap.Stringer("to", to))
	w.step = to
	return nil
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
