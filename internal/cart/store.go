// Package cart is the authoritative in-memory cart: a state container mutated
// only through Dispatch, with background synchronisation to the backend.
package cart

import (
	"sync"

	"go.uber.org/zap"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

// Enqueuer accepts a snapshot for best-effort background persistence.
type Enqueuer interface {
	Enqueue(State) bool
}

type Listener func(State, Action)

type Store struct {
	mu    sync.Mutex
	state State

	subMu     sync.RWMutex
	listeners map[int]Listener
	nextSub   int

	syncer Enqueuer
	logger *zap.Logger
}

// NewStore returns an empty store. syncer may be nil when nothing should be persisted.
func NewStore(syncer Enqueuer, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		state:     State{items: []domain.CartItem{}},
		listeners: make(map[int]Listener),
		syncer:    syncer,
		logger:    logger,
	}
}

// Dispatch applies action synchronously and returns the new state. On error
// the state is left untouched. A successful mutation queues a background sync
// and notifies subscribers.
func (s *Store) Dispatch(action Action) (State, error) {
	return s.dispatch(action, true)
}

// restore replaces the items with a copy the backend already holds. Subscribers
// are notified but nothing is synced back.
func (s *Store) restore(items []domain.CartItem) State {
	state, _ := s.dispatch(ReplaceAll{Items: items}, false)
	return state
}

func (s *Store) dispatch(action Action, persist bool) (State, error) {
	s.mu.Lock()
	items, err := action.apply(s.state.items)
	if err != nil {
		current := s.state
		s.mu.Unlock()
		s.logger.Debug("cart action rejected", zap.String("action", action.Name()), zap.Error(err))
		return current, err
	}
	next := State{items: items, Version: s.state.Version + 1}
	s.state = next
	// Enqueue never blocks; doing it under the lock keeps the queue in version order.
	if persist && s.syncer != nil {
		s.syncer.Enqueue(next)
	}
	s.mu.Unlock()

	s.notify(next, action)
	return next, nil
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every successful dispatch and returns its cancel func.
// Listeners run on the dispatching goroutine and must not block.
func (s *Store) Subscribe(fn Listener) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.listeners, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(state State, action Action) {
	s.subMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range listeners {
		fn(state, action)
	}
}

func (s *Store) AddItem(p domain.Product) error {
	_, err := s.Dispatch(AddItem{Product: p})
	return err
}

func (s *Store) UpdateQuantity(productID int64, qty int) error {
	_, err := s.Dispatch(UpdateQuantity{ProductID: productID, Quantity: qty})
	return err
}

func (s *Store) UpdateItemPaymentTerm(productID, termID int64) error {
	_, err := s.Dispatch(UpdateItemPaymentTerm{ProductID: productID, TermID: termID})
	return err
}

func (s *Store) UpdateDiscount(productID int64, d1, d2 float64) error {
	_, err := s.Dispatch(UpdateDiscount{ProductID: productID, Discount1: d1, Discount2: d2})
	return err
}

func (s *Store) RemoveItem(productID int64) error {
	_, err := s.Dispatch(RemoveItem{ProductID: productID})
	return err
}

func (s *Store) Clear() {
	_, _ = s.Dispatch(Clear{})
}

func (s *Store) ReplaceAll(items []domain.CartItem) {
	_, _ = s.Dispatch(ReplaceAll{Items: items})
}

func (s *Store) AddOrUpdateTransport(label string, price float64) error {
	_, err := s.Dispatch(AddOrUpdateTransport{Label: label, Price: price})
	return err
}

func (s *Store) RemoveTransport() {
	_, _ = s.Dispatch(RemoveTransport{})
}
