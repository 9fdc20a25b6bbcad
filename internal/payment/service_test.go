package payment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pharmkart/order-core/internal/cart"
	"github.com/pharmkart/order-core/internal/catalog"
	"github.com/pharmkart/order-core/internal/checkout"
	"github.com/pharmkart/order-core/internal/order"
	"github.com/pharmkart/order-core/internal/payment"
	"github.com/pharmkart/order-core/internal/store"
)

type fixture struct {
	mem      *store.MemoryStore
	carts    *cart.Service
	calc     *checkout.Calculator
	orders   *order.Service
	gateway  *payment.StubGateway
	payments *payment.Service
}

func newFixture(t *testing.T, decide payment.Decider) *fixture {
	t.Helper()
	mem := store.NewMemoryStore()
	mem.SeedItems([]catalog.Item{
		{ID: 1, Name: "Aspirin 75mg", Price: decimal.NewFromFloat(4.99), Stock: 10},
	})
	orders := order.NewService(mem, nil, zap.NewNop())
	gateway := payment.NewStubGateway(decide)
	return &fixture{
		mem:      mem,
		carts:    cart.NewService(mem, mem, nil, zap.NewNop()),
		calc:     checkout.NewCalculator(mem),
		orders:   orders,
		gateway:  gateway,
		payments: payment.NewService(mem, gateway, orders, zap.NewNop()),
	}
}

func (f *fixture) fillCart(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.carts.AddItem(ctx, userID, 1, 2))
	total, err := f.calc.InitiateCheckout(ctx, userID)
	require.NoError(t, err)
	return total
}

func TestProcessPayment_ApprovedChargeFinalizesOrder(t *testing.T) {
	f := newFixture(t, payment.Approve)
	ctx := context.Background()

	total := f.fillCart(t, "user-1")

	orderID, err := f.payments.ProcessPayment(ctx, "user-1", "card", total)
	require.NoError(t, err)
	require.NotEmpty(t, orderID)

	placed, err := f.mem.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, placed.Status)
	assert.True(t, total.Equal(placed.TotalAmount))

	items, err := f.carts.ListItems(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestProcessPayment_DeclineLeavesCartIntact(t *testing.T) {
	f := newFixture(t, payment.Decline("insufficient funds"))
	ctx := context.Background()

	total := f.fillCart(t, "user-1")

	_, err := f.payments.ProcessPayment(ctx, "user-1", "card", total)
	assert.ErrorIs(t, err, payment.ErrGatewayDeclined)
	assert.Contains(t, err.Error(), "insufficient funds")

	// No order was placed and the cart can be retried as-is.
	history, err := f.orders.History(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, history)

	items, err := f.carts.ListItems(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestProcessPayment_RetryAfterDeclineSucceeds(t *testing.T) {
	decide := payment.Decline("card declined")
	f := newFixture(t, func() (payment.ChargeStatus, string) { return decide() })
	ctx := context.Background()

	total := f.fillCart(t, "user-1")

	_, err := f.payments.ProcessPayment(ctx, "user-1", "card", total)
	require.ErrorIs(t, err, payment.ErrGatewayDeclined)

	decide = func() (payment.ChargeStatus, string) { return payment.Approve() }
	orderID, err := f.payments.ProcessPayment(ctx, "user-1", "card", total)
	require.NoError(t, err)
	assert.NotEmpty(t, orderID)
}

func TestProcessPayment_InvalidAmount(t *testing.T) {
	f := newFixture(t, payment.Approve)

	_, err := f.payments.ProcessPayment(context.Background(), "user-1", "card", decimal.Zero)
	assert.ErrorIs(t, err, payment.ErrInvalidAmount)

	_, err = f.payments.ProcessPayment(context.Background(), "user-1", "card", decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, payment.ErrInvalidAmount)
}

// errorGateway fails every call at the transport level.
type errorGateway struct{}

func (errorGateway) Charge(context.Context, string, decimal.Decimal) (*payment.ChargeResult, error) {
	return nil, errors.New("connection reset")
}

func (errorGateway) GetStatus(context.Context, string) (*payment.RefStatus, error) {
	return nil, errors.New("connection reset")
}

func TestProcessPayment_TransportErrorMarksPaymentFailed(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.SeedItems([]catalog.Item{{ID: 1, Name: "Aspirin 75mg", Price: decimal.NewFromFloat(4.99), Stock: 10}})
	carts := cart.NewService(mem, mem, nil, zap.NewNop())
	orders := order.NewService(mem, nil, zap.NewNop())
	payments := payment.NewService(mem, errorGateway{}, orders, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, carts.AddItem(ctx, "user-1", 1, 1))

	_, err := payments.ProcessPayment(ctx, "user-1", "card", decimal.NewFromFloat(4.99))
	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)

	items, err := carts.ListItems(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, items, 1, "cart survives a gateway failure")
}

func TestVerifyAndFinalize_UsesGatewayReportedAmount(t *testing.T) {
	f := newFixture(t, payment.Approve)
	ctx := context.Background()

	f.fillCart(t, "user-1")

	// The gateway settled a different amount than the cart suggests; the
	// gateway's number wins.
	ref := f.gateway.Issue(payment.ChargeSucceeded, decimal.NewFromFloat(42.00))

	orderID, err := f.payments.VerifyAndFinalize(ctx, "user-1", ref)
	require.NoError(t, err)

	placed, err := f.mem.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(42.00).Equal(placed.TotalAmount))

	p, err := f.mem.FindByGatewayRef(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, p.Status)
	assert.Equal(t, "gateway", p.Method)
}

func TestVerifyAndFinalize_ReplayedRefIsRejected(t *testing.T) {
	f := newFixture(t, payment.Approve)
	ctx := context.Background()

	f.fillCart(t, "user-1")
	ref := f.gateway.Issue(payment.ChargeSucceeded, decimal.NewFromFloat(9.98))

	_, err := f.payments.VerifyAndFinalize(ctx, "user-1", ref)
	require.NoError(t, err)

	// A duplicate confirmation callback must not place a second order.
	f.fillCart(t, "user-1")
	_, err = f.payments.VerifyAndFinalize(ctx, "user-1", ref)
	assert.ErrorIs(t, err, payment.ErrAlreadyProcessed)

	history, err := f.orders.History(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestVerifyAndFinalize_NotSucceededAtGateway(t *testing.T) {
	f := newFixture(t, payment.Approve)
	ctx := context.Background()

	f.fillCart(t, "user-1")
	ref := f.gateway.Issue(payment.ChargeDeclined, decimal.NewFromFloat(9.98))

	_, err := f.payments.VerifyAndFinalize(ctx, "user-1", ref)
	assert.ErrorIs(t, err, payment.ErrPaymentNotSucceeded)
}

func TestVerifyAndFinalize_MissingRef(t *testing.T) {
	f := newFixture(t, payment.Approve)

	_, err := f.payments.VerifyAndFinalize(context.Background(), "user-1", "")
	assert.Error(t, err)
}

func TestBreakerGateway_OpensAfterConsecutiveFailures(t *testing.T) {
	breaker := payment.NewBreakerGateway(errorGateway{})
	ctx := context.Background()
	amount := decimal.NewFromInt(10)

	for i := 0; i < 6; i++ {
		_, err := breaker.Charge(ctx, "card", amount)
		require.Error(t, err)
		assert.NotErrorIs(t, err, payment.ErrGatewayUnavailable, "breaker should still be closed on call %d", i+1)
	}

	_, err := breaker.Charge(ctx, "card", amount)
	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable, "breaker should be open after six consecutive failures")
}

func TestBreakerGateway_DeclinesDoNotTrip(t *testing.T) {
	breaker := payment.NewBreakerGateway(payment.NewStubGateway(payment.Decline("card declined")))
	ctx := context.Background()
	amount := decimal.NewFromInt(10)

	for i := 0; i < 20; i++ {
		result, err := breaker.Charge(ctx, "card", amount)
		require.NoError(t, err)
		assert.Equal(t, payment.ChargeDeclined, result.Status)
	}
}
