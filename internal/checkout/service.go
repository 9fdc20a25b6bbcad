// Package checkout computes the payable total for a user's active cart.
// It is a quote, not a commitment: nothing is locked or mutated, and the
// cart may change before payment. Finalization re-reads the cart under
// lock, so the quoted amount is advisory.
package checkout

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/pharmkart/order-core/internal/cart"
)

type Calculator struct {
	carts cart.Repository
}

func NewCalculator(carts cart.Repository) *Calculator {
	return &Calculator{carts: carts}
}

// InitiateCheckout returns the sum of quantity times captured price across
// the active cart's line items. Fails with cart.ErrNoActiveCart or
// cart.ErrEmptyCart.
func (c *Calculator) InitiateCheckout(ctx context.Context, userID string) (decimal.Decimal, error) {
	active, err := c.carts.GetActiveCart(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	items, err := c.carts.ListLineItems(ctx, active.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if len(items) == 0 {
		return decimal.Zero, cart.ErrEmptyCart
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal)
	}
	return total, nil
}
