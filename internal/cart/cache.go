package cart

import (
	"context"
	"errors"
)

type Cache interface {
	Get(ctx context.Context, userID string) ([]LineItemView, error)
	Set(ctx context.Context, userID string, items []LineItemView) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
