package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pharmkart/order-core/internal/order"
)

var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrGatewayDeclined     = errors.New("payment declined by gateway")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrAlreadyProcessed    = errors.New("payment already processed")
	ErrPaymentNotSucceeded = errors.New("payment has not succeeded at the gateway")
)

// Finalizer turns the user's active cart into a completed order. Implemented
// by order.Service.
type Finalizer interface {
	Complete(ctx context.Context, userID string, total decimal.Decimal) (*order.Order, string, error)
}

// Service orchestrates gateway charges and order finalization. A failed
// payment never finalizes an order and leaves the cart untouched, so the
// caller may simply retry.
type Service struct {
	repo      Repository
	gateway   Gateway
	finalizer Finalizer
	log       *zap.Logger
}

func NewService(repo Repository, gateway Gateway, finalizer Finalizer, log *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		gateway:   gateway,
		finalizer: finalizer,
		log:       log,
	}
}

// ProcessPayment charges the gateway and, on success, finalizes the order.
// The client-supplied amount is recorded as the order total on this path;
// VerifyAndFinalize is the authoritative alternative.
func (s *Service) ProcessPayment(ctx context.Context, userID, method string, amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return "", ErrInvalidAmount
	}

	p := &Payment{
		ID:        uuid.New().String(),
		UserID:    userID,
		Method:    method,
		Amount:    amount,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return "", err
	}

	result, err := s.gateway.Charge(ctx, method, amount)
	if err != nil {
		s.markFailed(ctx, p.ID)
		if errors.Is(err, ErrGatewayUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if result.Status != ChargeSucceeded {
		s.markFailed(ctx, p.ID)
		s.log.Info("payment declined",
			zap.String("payment_id", p.ID),
			zap.String("user_id", userID),
			zap.String("reason", result.Reason),
		)
		if result.Reason != "" {
			return "", fmt.Errorf("%w: %s", ErrGatewayDeclined, result.Reason)
		}
		return "", ErrGatewayDeclined
	}

	if err := s.repo.MarkCompleted(ctx, p.ID, result.Ref); err != nil {
		if errors.Is(err, ErrDuplicateRef) {
			// The gateway replayed a reference we already settled; the
			// earlier confirmation owns finalization.
			return "", ErrAlreadyProcessed
		}
		return "", err
	}

	placed, _, err := s.finalizer.Complete(ctx, userID, amount)
	if err != nil {
		return "", err
	}

	s.log.Info("payment completed",
		zap.String("payment_id", p.ID),
		zap.String("order_id", placed.ID),
		zap.String("gateway_ref", result.Ref),
	)
	return placed.ID, nil
}

// VerifyAndFinalize validates a previously issued gateway reference and
// finalizes with the gateway-reported amount, so a client cannot falsify
// what was paid. A reference that already completed a payment is rejected,
// which stops duplicate confirmation callbacks from producing two orders.
func (s *Service) VerifyAndFinalize(ctx context.Context, userID, gatewayRef string) (string, error) {
	if gatewayRef == "" {
		return "", errors.New("gateway transaction reference is required")
	}

	existing, err := s.repo.FindByGatewayRef(ctx, gatewayRef)
	if err == nil && existing.Status == StatusCompleted {
		return "", ErrAlreadyProcessed
	}
	if err != nil && !errors.Is(err, ErrPaymentNotFound) {
		return "", err
	}

	status, err := s.gateway.GetStatus(ctx, gatewayRef)
	if err != nil {
		if errors.Is(err, ErrGatewayUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if status.Status != ChargeSucceeded {
		return "", ErrPaymentNotSucceeded
	}

	p := &Payment{
		ID:        uuid.New().String(),
		UserID:    userID,
		Method:    "gateway",
		Amount:    status.Amount,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return "", err
	}
	if err := s.repo.MarkCompleted(ctx, p.ID, gatewayRef); err != nil {
		if errors.Is(err, ErrDuplicateRef) {
			return "", ErrAlreadyProcessed
		}
		return "", err
	}

	placed, _, err := s.finalizer.Complete(ctx, userID, status.Amount)
	if err != nil {
		return "", err
	}

	s.log.Info("payment verified and order finalized",
		zap.String("payment_id", p.ID),
		zap.String("order_id", placed.ID),
		zap.String("gateway_ref", gatewayRef),
	)
	return placed.ID, nil
}

func (s *Service) markFailed(ctx context.Context, paymentID string) {
	if err := s.repo.MarkFailed(ctx, paymentID); err != nil {
		s.log.Error("mark payment failed", zap.String("payment_id", paymentID), zap.Error(err))
	}
}
