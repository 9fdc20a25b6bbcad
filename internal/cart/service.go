package cart

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pharmkart/order-core/internal/catalog"
)

var ErrInvalidQuantity = errors.New("quantity must be a positive integer")

// Service owns the single active cart per user. Stock is checked at
// admission but not reserved; it is consumed when the order is finalized.
type Service struct {
	repo    Repository
	catalog catalog.Repository
	cache   Cache // optional, nil disables caching
	sfg     singleflight.Group
	log     *zap.Logger
}

func NewService(repo Repository, cat catalog.Repository, cache Cache, log *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: cat,
		cache:   cache,
		log:     log,
	}
}

func (s *Service) AddItem(ctx context.Context, userID string, itemID int64, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	item, err := s.catalog.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Stock < quantity {
		return catalog.ErrInsufficientStock
	}

	cart, err := s.repo.GetOrCreateActiveCart(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.repo.UpsertLineItem(ctx, cart.ID, itemID, quantity, item.Price); err != nil {
		s.log.Error("add item failed", zap.String("user_id", userID), zap.Int64("item_id", itemID), zap.Error(err))
		return err
	}

	s.invalidateCache(userID)
	return nil
}

// ListItems returns the active cart's line items with display metadata.
// An absent cart reads as an empty cart.
func (s *Service) ListItems(ctx context.Context, userID string) ([]LineItemView, error) {
	// Singleflight collapses concurrent cache misses for the same user.
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		if s.cache != nil {
			items, err := s.cache.Get(ctx, userID)
			if err == nil {
				return items, nil
			}
			if !errors.Is(err, ErrCacheMiss) {
				s.log.Warn("cart cache get failed", zap.String("user_id", userID), zap.Error(err))
			}
		}

		cart, err := s.repo.GetActiveCart(ctx, userID)
		if errors.Is(err, ErrNoActiveCart) {
			return []LineItemView{}, nil
		}
		if err != nil {
			return nil, err
		}

		items, err := s.repo.ListLineItems(ctx, cart.ID)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []LineItemView{}
		}

		if s.cache != nil {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := s.cache.Set(ctx, userID, items); err != nil {
					s.log.Warn("cart cache set failed", zap.String("user_id", userID), zap.Error(err))
				}
			}()
		}

		return items, nil
	})

	if err != nil {
		return nil, err
	}
	return v.([]LineItemView), nil
}

func (s *Service) RemoveItem(ctx context.Context, userID string, itemID int64) error {
	cart, err := s.repo.GetActiveCart(ctx, userID)
	if errors.Is(err, ErrNoActiveCart) {
		return ErrLineItemNotFound
	}
	if err != nil {
		return err
	}

	if err := s.repo.RemoveLineItem(ctx, cart.ID, itemID); err != nil {
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *Service) invalidateCache(userID string) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cart cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}
