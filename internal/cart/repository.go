package cart

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNoActiveCart     = errors.New("no active cart")
	ErrEmptyCart        = errors.New("cart is empty, nothing to checkout")
	ErrLineItemNotFound = errors.New("item not found in cart")
)

type Repository interface {
	// GetActiveCart returns the user's active cart, or ErrNoActiveCart.
	GetActiveCart(ctx context.Context, userID string) (*Cart, error)

	// GetOrCreateActiveCart returns the user's active cart, creating one if
	// none exists. Creation is race-safe: two concurrent calls for the same
	// user observe the same cart.
	GetOrCreateActiveCart(ctx context.Context, userID string) (*Cart, error)

	// UpsertLineItem adds a line item to the cart at the given unit price,
	// or merges the quantity into an existing line for the same item.
	UpsertLineItem(ctx context.Context, cartID string, itemID int64, quantity int, price decimal.Decimal) error

	// ListLineItems returns the cart's line items joined with item display
	// metadata, ordered by insertion.
	ListLineItems(ctx context.Context, cartID string) ([]LineItemView, error)

	// RemoveLineItem deletes the cart's line item for the given item, or
	// returns ErrLineItemNotFound.
	RemoveLineItem(ctx context.Context, cartID string, itemID int64) error
}
