package cart

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

type recordingEnqueuer struct {
	mu     sync.Mutex
	states []State
}

func (r *recordingEnqueuer) Enqueue(s State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
	return true
}

func (r *recordingEnqueuer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func TestAddItem_IncrementsExistingLine(t *testing.T) {
	store := NewStore(nil, nil)

	require.NoError(t, store.AddItem(domain.Product{ProductID: 10, PriceUnit: 100, Quantity: 3, PaymentTermID: 21}))
	require.NoError(t, store.AddItem(domain.Product{ProductID: 10, PriceUnit: 100}))

	state := store.State()
	assert.Equal(t, 1, state.Len())
	assert.Equal(t, 4, Quantity(state, 10))
}

func TestAddItem_TransportReplacedInPlace(t *testing.T) {
	store := NewStore(nil, nil)

	require.NoError(t, store.AddItem(domain.Product{ProductID: 10, PriceUnit: 100}))
	require.NoError(t, store.AddOrUpdateTransport("", 20))
	require.NoError(t, store.AddItem(domain.Product{ProductID: domain.TransportProductID, Name: "FLETE", PriceUnit: 35}))

	state := store.State()
	assert.Equal(t, 2, state.Len())
	transport, ok := Transport(state)
	require.True(t, ok)
	assert.Equal(t, 1, transport.Quantity)
	assert.Equal(t, 35.0, transport.PriceUnit)
	assert.Equal(t, "FLETE", transport.Name)
	assert.Equal(t, 1, state.ProductCount())
}

func TestUpdateQuantity(t *testing.T) {
	store := NewStore(nil, nil)
	require.NoError(t, store.AddItem(domain.Product{ProductID: 10, PriceUnit: 100}))
	require.NoError(t, store.AddOrUpdateTransport("", 20))

	require.NoError(t, store.UpdateQuantity(10, 7))
	assert.Equal(t, 7, Quantity(store.State(), 10))

	assert.ErrorIs(t, store.UpdateQuantity(10, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, store.UpdateQuantity(99, 2), ErrItemNotFound)
	assert.ErrorIs(t, store.UpdateQuantity(domain.TransportProductID, 2), ErrInvalidQuantity)
	assert.Equal(t, 7, Quantity(store.State(), 10), "failed actions leave state untouched")
}

func TestMaxPaymentTerm_ExcludesTransport(t *testing.T) {
	store := NewStore(nil, nil)

	_, ok := MaxPaymentTerm(store.State())
	assert.False(t, ok)

	require.NoError(t, store.AddOrUpdateTransport("", 10))
	_, ok = MaxPaymentTerm(store.State())
	assert.False(t, ok, "transport alone has no term")

	require.NoError(t, store.AddItem(domain.Product{ProductID: 10, PriceUnit: 100, Quantity: 3, PaymentTermID: 21}))
	require.NoError(t, store.AddItem(domain.Product{ProductID: 11, PriceUnit: 50, PaymentTermID: 1}))
	term, ok := MaxPaymentTerm(store.State())
	require.True(t, ok)
	assert.Equal(t, int64(21), term)
	assert.InDelta(t, 360.0, Subtotal(store.State()), 1e-9)

	require.NoError(t, store.RemoveItem(10))
	term, _ = MaxPaymentTerm(store.State())
	assert.Equal(t, int64(1), term)

	store.Clear()
	_, ok = MaxPaymentTerm(store.State())
	assert.False(t, ok)
}

func TestMaxPaymentTerm_MatchesMaxOverRandomCarts(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		store := NewStore(nil, nil)
		var want int64
		n := rng.Intn(6)
		for i := 0; i < n; i++ {
			term := int64(rng.Intn(40) + 1)
			require.NoError(t, store.AddItem(domain.Product{ProductID: int64(i + 1), PriceUnit: 1, PaymentTermID: term}))
			if term > want {
				want = term
			}
		}
		if rng.Intn(2) == 0 {
			require.NoError(t, store.AddOrUpdateTransport("", 5))
		}

		got, ok := MaxPaymentTerm(store.State())
		assert.Equal(t, n > 0, ok)
		assert.Equal(t, want, got)
	}
}

func TestUpdateItemPaymentTermAndDiscount(t *testing.T) {
	store := NewStore(nil, nil)
	require.NoError(t, store.AddItem(domain.Product{ProductID: 10, PriceUnit: 100}))

	require.NoError(t, store.UpdateItemPaymentTerm(10, 30))
	require.NoError(t, store.UpdateDiscount(10, 5, 2))
	assert.ErrorIs(t, store.UpdateDiscount(10, 120, 0), ErrInvalidDiscount)

	item, ok := Item(store.State(), 10)
	require.True(t, ok)
	assert.Equal(t, int64(30), item.PaymentTermID)
	assert.Equal(t, 5.0, item.Discount1)
	assert.Equal(t, 2.0, item.Discount2)
}

func TestApplyDiscounts_ResetsMissingLines(t *testing.T) {
	store := NewStore(nil, nil)
	require.NoError(t, store.AddItem(domain.Product{ProductID: 10, PriceUnit: 100}))
	require.NoError(t, store.AddItem(domain.Product{ProductID: 11, PriceUnit: 50}))
	require.NoError(t, store.UpdateDiscount(11, 9, 9))

	_, err := store.Dispatch(ApplyDiscounts{Discounts: map[int64]LineDiscount{10: {Discount1: 5}}})
	require.NoError(t, err)

	first, _ := Item(store.State(), 10)
	second, _ := Item(store.State(), 11)
	assert.Equal(t, 5.0, first.Discount1)
	assert.Zero(t, second.Discount1)
	assert.Zero(t, second.Discount2)
}

func TestEditLine_PartialOverride(t *testing.T) {
	store := NewStore(nil, nil)
	require.NoError(t, store.AddItem(domain.Product{ProductID: 10, PriceUnit: 100}))
	require.NoError(t, store.UpdateDiscount(10, 5, 0))

	price, d3 := 90.0, 10.0
	_, err := store.Dispatch(EditLine{ProductID: 10, PriceUnit: &price, Discount3: &d3})
	require.NoError(t, err)

	item, _ := Item(store.State(), 10)
	assert.Equal(t, 90.0, item.PriceUnit)
	assert.Equal(t, 5.0, item.Discount1, "untouched tier kept")
	assert.Equal(t, 10.0, item.Discount3)

	neg := -1.0
	_, err = store.Dispatch(EditLine{ProductID: 10, PriceUnit: &neg})
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestReplaceAll_NormalisesLines(t *testing.T) {
	store := NewStore(nil, nil)
	store.ReplaceAll([]domain.CartItem{
		{ProductID: 10, Quantity: 0, PriceUnit: 100},
		{ProductID: 10, Quantity: 2, PriceUnit: 100},
		{ProductID: domain.TransportProductID, Quantity: 4, PriceUnit: 20},
	})

	state := store.State()
	assert.Equal(t, 2, state.Len())
	assert.Equal(t, 3, Quantity(state, 10))
	assert.Equal(t, 1, Quantity(state, domain.TransportProductID))
	item, _ := Item(state, 10)
	assert.Equal(t, domain.DefaultPaymentTermID, item.PaymentTermID)
}

func TestRemoveTransport_NoopWhenAbsent(t *testing.T) {
	store := NewStore(nil, nil)
	require.NoError(t, store.AddItem(domain.Product{ProductID: 10}))
	store.RemoveTransport()
	assert.Equal(t, 1, store.State().Len())

	require.NoError(t, store.AddOrUpdateTransport("", 5))
	store.RemoveTransport()
	_, ok := Transport(store.State())
	assert.False(t, ok)
}

func TestDispatch_SyncsAndNotifiesOnlyOnSuccess(t *testing.T) {
	enq := &recordingEnqueuer{}
	store := NewStore(enq, nil)

	var seen []string
	unsubscribe := store.Subscribe(func(s State, a Action) {
		seen = append(seen, a.Name())
	})

	require.NoError(t, store.AddItem(domain.Product{ProductID: 10}))
	assert.Error(t, store.RemoveItem(99))
	require.NoError(t, store.UpdateQuantity(10, 2))
	store.ReplaceAll(nil)

	assert.Equal(t, 3, enq.count())
	assert.Equal(t, []string{"add_item", "update_quantity", "replace_all"}, seen)
	assert.Equal(t, uint64(3), store.State().Version)

	unsubscribe()
	store.Clear()
	assert.Len(t, seen, 3)
}

func TestState_ItemsReturnsCopy(t *testing.T) {
	store := NewStore(nil, nil)
	require.NoError(t, store.AddItem(domain.Product{ProductID: 10, PriceUnit: 100}))

	items := store.State().Items()
	items[0].PriceUnit = 1

	item, _ := Item(store.State(), 10)
	assert.Equal(t, 100.0, item.PriceUnit)
}

func TestDispatch_ConcurrentMutationsAreSerialised(t *testing.T) {
	store := NewStore(nil, nil)
	require.NoError(t, store.AddItem(domain.Product{ProductID: 10}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.AddItem(domain.Product{ProductID: 10}))
		}()
	}
	wg.Wait()

	assert.Equal(t, 51, Quantity(store.State(), 10))
	assert.Equal(t, uint64(51), store.State().Version)
}
