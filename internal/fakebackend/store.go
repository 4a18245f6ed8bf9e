// Package fakebackend is an in-memory storefront backend speaking the same
// REST contract as production. It backs local runs and end-to-end tests.
package fakebackend

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SalBom/app-sb-sub000/internal/discount"
	"github.com/SalBom/app-sb-sub000/internal/domain"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrMissingCUIT     = errors.New("missing cliente_cuit")
	ErrEmptyOrder      = errors.New("order has no items")
	ErrInjectedFailure = errors.New("injected order failure")
)

// ProductRecord is a catalog product with its stock flag.
type ProductRecord struct {
	ID          int64
	Name        string
	DefaultCode string
	PriceUnit   float64
	ListPrice   float64
	StockState  domain.StockState
}

// Order is a stored order with every field the last commit sent.
type Order struct {
	ID                int64
	Number            string
	CUIT              string
	Lines             []domain.OrderLine
	PartnerShippingID *int64
	CarrierID         *int64
	PaymentTermID     int64
	Notes             string
	CreatedByName     string
	TransactionIDs    []string
	Base              float64
	Total             float64
	Updates           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderStats counts how /crear-pedido calls were resolved.
type OrderStats struct {
	Created      int
	Updated      int
	Deduplicated int
	Rejected     int
}

// Store holds all backend state behind one mutex.
type Store struct {
	mu sync.RWMutex

	terms     []domain.PaymentTerm
	rules     map[int64]domain.DiscountRule
	products  map[int64]ProductRecord
	carts     map[string][]domain.CartItem
	profiles  map[string]domain.Profile
	clients   map[string][]domain.Client
	addresses map[int64][]domain.Address
	rate      float64

	orders        map[int64]*Order
	byTransaction map[string]int64
	nextOrderID   int64
	stats         OrderStats

	failOrders  int
	orderDelay  time.Duration
	failAddress bool
	cartSaves   int
}

func NewStore() *Store {
	return &Store{
		rules:         make(map[int64]domain.DiscountRule),
		products:      make(map[int64]ProductRecord),
		carts:         make(map[string][]domain.CartItem),
		profiles:      make(map[string]domain.Profile),
		clients:       make(map[string][]domain.Client),
		addresses:     make(map[int64][]domain.Address),
		orders:        make(map[int64]*Order),
		byTransaction: make(map[string]int64),
		nextOrderID:   1,
	}
}

func (s *Store) SetTerms(terms ...domain.PaymentTerm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terms = append([]domain.PaymentTerm(nil), terms...)
}

func (s *Store) SetRule(rule domain.DiscountRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.PaymentTermID] = rule
}

func (s *Store) PutProduct(p ProductRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.StockState == "" {
		p.StockState = domain.StockGreen
	}
	s.products[p.ID] = p
}

// SetStockState changes the flag of an existing product.
func (s *Store) SetStockState(productID int64, state domain.StockState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[productID]
	p.ID = productID
	p.StockState = state
	s.products[productID] = p
}

func (s *Store) SetProfile(cuit string, profile domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[cuit] = profile
}

func (s *Store) SetClients(cuit string, clients ...domain.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[cuit] = append([]domain.Client(nil), clients...)
}

func (s *Store) SetAddresses(clientID int64, addresses ...domain.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[clientID] = append([]domain.Address(nil), addresses...)
}

func (s *Store) SetExchangeRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = rate
}

func (s *Store) SetCart(cuit string, items []domain.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cuit] = append([]domain.CartItem(nil), items...)
}

// FailNextOrders makes the next n order commits answer with a server error.
func (s *Store) FailNextOrders(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOrders = n
}

// SetOrderDelay holds every order commit for d before answering.
func (s *Store) SetOrderDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderDelay = d
}

// FailAddresses makes the address endpoint answer with a server error.
func (s *Store) FailAddresses(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAddress = fail
}

func (s *Store) Terms() []domain.PaymentTerm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.PaymentTerm(nil), s.terms...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Rules() map[int64]domain.DiscountRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]domain.DiscountRule, len(s.rules))
	for k, v := range s.rules {
		out[k] = v
	}
	return out
}

func (s *Store) Product(id int64) (ProductRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *Store) Cart(cuit string) []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CartItem(nil), s.carts[cuit]...)
}

func (s *Store) saveCart(cuit string, items []domain.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cuit] = append([]domain.CartItem(nil), items...)
	s.cartSaves++
}

// CartSaves counts /cart/save calls received.
func (s *Store) CartSaves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cartSaves
}

func (s *Store) Profile(cuit string) (domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[cuit]
	return p, ok
}

func (s *Store) Clients(cuit string) []domain.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Client(nil), s.clients[cuit]...)
}

func (s *Store) Addresses(clientID int64) ([]domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failAddress {
		return nil, errors.New("addresses unavailable")
	}
	return append([]domain.Address(nil), s.addresses[clientID]...), nil
}

func (s *Store) ExchangeRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rate
}

func (s *Store) Stats() OrderStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// OrderCount is the number of distinct orders ever created.
func (s *Store) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *Store) Order(id int64) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, false
	}
	cp := *o
	cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
	cp.TransactionIDs = append([]string(nil), o.TransactionIDs...)
	return cp, true
}

func (s *Store) delay() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderDelay
}

// CommitOrder resolves one /crear-pedido call. A transaction id seen before
// returns the order it produced without touching it. Otherwise a request with
// OrderIDToUpdate mutates that order and one without it creates a new order.
func (s *Store) CommitOrder(req domain.OrderRequest) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.TransactionID != "" {
		if id, seen := s.byTransaction[req.TransactionID]; seen {
			s.stats.Deduplicated++
			return *s.orders[id], nil
		}
	}
	if s.failOrders > 0 {
		s.failOrders--
		s.stats.Rejected++
		return Order{}, ErrInjectedFailure
	}
	if req.ClientCUIT == "" {
		s.stats.Rejected++
		return Order{}, ErrMissingCUIT
	}
	if len(req.Items) == 0 {
		s.stats.Rejected++
		return Order{}, ErrEmptyOrder
	}

	now := time.Now().UTC()
	var order *Order
	if req.OrderIDToUpdate != nil {
		existing, ok := s.orders[*req.OrderIDToUpdate]
		if !ok {
			s.stats.Rejected++
			return Order{}, fmt.Errorf("order %d: %w", *req.OrderIDToUpdate, ErrOrderNotFound)
		}
		order = existing
		order.Updates++
		s.stats.Updated++
	} else {
		id := s.nextOrderID
		s.nextOrderID++
		order = &Order{ID: id, Number: fmt.Sprintf("S%05d", id), CreatedAt: now}
		s.orders[id] = order
		s.stats.Created++
	}

	order.CUIT = req.ClientCUIT
	order.Lines = append([]domain.OrderLine(nil), req.Items...)
	order.PartnerShippingID = req.PartnerShippingID
	order.CarrierID = req.CarrierID
	order.PaymentTermID = req.PaymentTermID
	order.Notes = req.Notes
	order.CreatedByName = req.CreatedByName
	order.Base = orderBase(req.Items)
	order.Total = discount.WithVAT(order.Base)
	order.UpdatedAt = now
	if req.TransactionID != "" {
		order.TransactionIDs = append(order.TransactionIDs, req.TransactionID)
		s.byTransaction[req.TransactionID] = order.ID
	}
	return *order, nil
}

func orderBase(lines []domain.OrderLine) float64 {
	items := make([]domain.CartItem, 0, len(lines))
	for _, l := range lines {
		qty := l.ProductUomQty
		if qty == 0 {
			qty = l.Qty
		}
		items = append(items, domain.CartItem{
			ProductID: l.ProductID,
			PriceUnit: l.PriceUnit,
			Quantity:  qty,
			Discount1: l.Discount1,
			Discount2: l.Discount2,
			Discount3: l.Discount3,
		})
	}
	return discount.FrozenTotal(items)
}
