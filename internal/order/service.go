package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pharmkart/order-core/internal/cart"
)

type Service struct {
	repo  Repository
	cache cart.Cache // optional, invalidated when finalization empties the cart
	log   *zap.Logger
}

func NewService(repo Repository, cache cart.Cache, log *zap.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Complete finalizes the user's active cart into a completed order and
// returns it with a human-readable confirmation.
func (s *Service) Complete(ctx context.Context, userID string, total decimal.Decimal) (*Order, string, error) {
	order, err := s.repo.CompleteOrder(ctx, userID, total)
	if err != nil {
		return nil, "", err
	}

	s.invalidateCache(userID)
	s.log.Info("order completed",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
	)

	msg := fmt.Sprintf("Order %s placed successfully with total amount: $%s", order.ID, order.TotalAmount.StringFixed(2))
	return order, msg, nil
}

// Cancel transitions a completed order to cancelled and restores stock.
// An order owned by a different user reads as not found.
func (s *Service) Cancel(ctx context.Context, orderID, requestingUserID string) error {
	existing, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if existing.UserID != requestingUserID {
		return ErrOrderNotFound
	}

	cancelled, err := s.repo.Cancel(ctx, orderID)
	if err != nil {
		return err
	}

	s.log.Info("order cancelled",
		zap.String("order_id", cancelled.ID),
		zap.String("user_id", cancelled.UserID),
	)
	return nil
}

// History returns all of the user's orders with line-item detail.
func (s *Service) History(ctx context.Context, userID string) ([]View, error) {
	return s.repo.ListByUser(ctx, userID)
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
