package order_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pharmkart/order-core/internal/cart"
	"github.com/pharmkart/order-core/internal/catalog"
	"github.com/pharmkart/order-core/internal/checkout"
	"github.com/pharmkart/order-core/internal/order"
	"github.com/pharmkart/order-core/internal/store"
)

type fixture struct {
	mem    *store.MemoryStore
	carts  *cart.Service
	calc   *checkout.Calculator
	orders *order.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemoryStore()
	mem.SeedItems([]catalog.Item{
		{ID: 1, Name: "Aspirin 75mg", Price: decimal.NewFromFloat(4.99), Stock: 10},
		{ID: 2, Name: "Cetirizine 10mg", Price: decimal.NewFromFloat(3.25), Stock: 5},
	})
	return &fixture{
		mem:    mem,
		carts:  cart.NewService(mem, mem, nil, zap.NewNop()),
		calc:   checkout.NewCalculator(mem),
		orders: order.NewService(mem, nil, zap.NewNop()),
	}
}

// placeOrder fills a cart and finalizes it, returning the placed order.
func (f *fixture) placeOrder(t *testing.T, userID string) *order.Order {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.carts.AddItem(ctx, userID, 1, 2))
	require.NoError(t, f.carts.AddItem(ctx, userID, 2, 1))

	total, err := f.calc.InitiateCheckout(ctx, userID)
	require.NoError(t, err)

	placed, _, err := f.orders.Complete(ctx, userID, total)
	require.NoError(t, err)
	return placed
}

func TestComplete_FinalizesCartIntoOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	placed := f.placeOrder(t, "user-1")

	assert.Equal(t, order.StatusCompleted, placed.Status)
	// 2*4.99 + 1*3.25
	assert.True(t, decimal.NewFromFloat(13.23).Equal(placed.TotalAmount), "got %s", placed.TotalAmount)

	// The cart is retired and reads as empty.
	items, err := f.carts.ListItems(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = f.mem.GetActiveCart(ctx, "user-1")
	assert.ErrorIs(t, err, cart.ErrNoActiveCart)
}

func TestComplete_ConsumesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.placeOrder(t, "user-1")

	aspirin, err := f.mem.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, aspirin.Stock)

	cetirizine, err := f.mem.GetItem(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, cetirizine.Stock)
}

func TestComplete_NoActiveCart(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.orders.Complete(context.Background(), "user-1", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, cart.ErrNoActiveCart)
}

func TestComplete_EmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.carts.AddItem(ctx, "user-1", 1, 1))
	require.NoError(t, f.carts.RemoveItem(ctx, "user-1", 1))

	_, _, err := f.orders.Complete(ctx, "user-1", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, cart.ErrEmptyCart)
}

func TestComplete_InsufficientStockAtFinalization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.carts.AddItem(ctx, "user-1", 1, 5))

	// Stock drains between admission and finalization.
	f.mem.SeedItems([]catalog.Item{{ID: 1, Name: "Aspirin 75mg", Price: decimal.NewFromFloat(4.99), Stock: 2}})

	_, _, err := f.orders.Complete(ctx, "user-1", decimal.NewFromInt(25))
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)

	// The cart survives a failed finalization.
	items, err := f.carts.ListItems(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestComplete_ConcurrentFinalizationPlacesOneOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.carts.AddItem(ctx, "user-1", 1, 2))
	total, err := f.calc.InitiateCheckout(ctx, "user-1")
	require.NoError(t, err)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = f.orders.Complete(ctx, "user-1", total)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, cart.ErrNoActiveCart)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one finalization may win")

	// Stock was decremented once, not per attempt.
	aspirin, err := f.mem.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, aspirin.Stock)
}

func TestComplete_PriceSnapshotSurvivesCatalogChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.carts.AddItem(ctx, "user-1", 1, 2))

	// Reprice the catalog after the item was captured into the cart.
	f.mem.SeedItems([]catalog.Item{{ID: 1, Name: "Aspirin 75mg", Price: decimal.NewFromFloat(99.99), Stock: 10}})

	total, err := f.calc.InitiateCheckout(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(9.98).Equal(total), "got %s", total)

	placed, _, err := f.orders.Complete(ctx, "user-1", total)
	require.NoError(t, err)

	history, err := f.orders.History(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Len(t, history[0].Lines, 1)
	assert.Equal(t, placed.ID, history[0].OrderID)
	assert.True(t, decimal.NewFromFloat(4.99).Equal(history[0].Lines[0].UnitPrice))
}

func TestCancel_RestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	placed := f.placeOrder(t, "user-1")
	require.NoError(t, f.orders.Cancel(ctx, placed.ID, "user-1"))

	aspirin, err := f.mem.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, aspirin.Stock)

	history, err := f.orders.History(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, order.StatusCancelled, history[0].Status)
}

func TestCancel_SecondCancelFailsWithoutDoubleRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	placed := f.placeOrder(t, "user-1")
	require.NoError(t, f.orders.Cancel(ctx, placed.ID, "user-1"))

	err := f.orders.Cancel(ctx, placed.ID, "user-1")
	assert.ErrorIs(t, err, order.ErrAlreadyCancelled)

	aspirin, err := f.mem.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, aspirin.Stock, "stock must be restored exactly once")
}

func TestCancel_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	err := f.orders.Cancel(context.Background(), "no-such-order", "user-1")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestCancel_ForeignOrderReadsAsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	placed := f.placeOrder(t, "user-1")

	err := f.orders.Cancel(ctx, placed.ID, "user-2")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	// The owner's order is untouched.
	got, err := f.mem.GetOrder(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, got.Status)
}

func TestHistory_NewestFirstScopedToUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.placeOrder(t, "user-1")
	f.placeOrder(t, "user-2")
	second := f.placeOrder(t, "user-1")

	history, err := f.orders.History(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].OrderID)
	assert.Equal(t, first.ID, history[1].OrderID)
	for _, view := range history {
		require.Len(t, view.Lines, 2)
	}
}

func TestHistory_EmptyForNewUser(t *testing.T) {
	f := newFixture(t)

	history, err := f.orders.History(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestComplete_EmitsOutboxEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	placed := f.placeOrder(t, "user-1")

	events, err := f.mem.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, order.EventOrderCompleted, events[0].EventType)
	assert.Equal(t, placed.ID, events[0].AggregateID)

	require.NoError(t, f.orders.Cancel(ctx, placed.ID, "user-1"))

	events, err = f.mem.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, order.EventOrderCancelled, events[1].EventType)
}
