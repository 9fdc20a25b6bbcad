package payment

import (
	"context"
	"errors"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrDuplicateRef    = errors.New("gateway reference already recorded")
)

type Repository interface {
	// Insert persists a payment row, normally with status pending.
	Insert(ctx context.Context, p *Payment) error

	// MarkCompleted records a confirmed charge with its gateway reference.
	// A reference that is already recorded fails with ErrDuplicateRef; the
	// unique constraint is what makes double confirmation detectable.
	MarkCompleted(ctx context.Context, id, gatewayRef string) error

	// MarkFailed records a declined or unreachable-gateway outcome.
	MarkFailed(ctx context.Context, id string) error

	// FindByGatewayRef returns the payment recorded for the reference, or
	// ErrPaymentNotFound.
	FindByGatewayRef(ctx context.Context, ref string) (*Payment, error)
}
