package order

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository performs the cross-entity transitions that must be atomic:
// cart-to-order migration and cancellation with stock restore. Each method
// is a single transaction against the store.
type Repository interface {
	// CompleteOrder creates a completed order from the user's active cart:
	// every line item is re-parented from the cart to the order, item stock
	// is decremented per line, and the cart goes inactive. Exactly one of
	// two concurrent calls for the same cart succeeds; the loser observes
	// cart.ErrNoActiveCart. Fails with cart.ErrEmptyCart on an empty cart
	// and catalog.ErrInsufficientStock if stock ran out since admission.
	CompleteOrder(ctx context.Context, userID string, total decimal.Decimal) (*Order, error)

	// Cancel flips a completed order to cancelled and restores each item's
	// stock by the line quantity, atomically. A cancelled order fails with
	// ErrAlreadyCancelled; stock is never restored twice.
	Cancel(ctx context.Context, orderID string) (*Order, error)

	// GetOrder returns the order with the given id, or ErrOrderNotFound.
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// ListByUser returns the user's orders, any status, newest first, each
	// expanded with line items.
	ListByUser(ctx context.Context, userID string) ([]View, error)
}
