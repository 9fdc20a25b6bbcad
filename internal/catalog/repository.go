package catalog

import (
	"context"
	"errors"
)

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Repository is a read-only view of the catalog. Stock mutations happen
// inside the order repository's transactions, never here.
type Repository interface {
	// GetItem returns the item with the given id, or ErrItemNotFound.
	GetItem(ctx context.Context, id int64) (*Item, error)

	// FindByName returns the first item whose name matches the pattern
	// (case-insensitive substring), or ErrItemNotFound.
	FindByName(ctx context.Context, pattern string) (*Item, error)
}
