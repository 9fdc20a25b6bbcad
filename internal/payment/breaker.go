package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// BreakerGateway wraps a Gateway with a circuit breaker. Declines are
// results, not failures, so they never trip the breaker; only transport
// errors count. An open breaker surfaces as ErrGatewayUnavailable.
type BreakerGateway struct {
	inner  Gateway
	charge *gobreaker.CircuitBreaker[*ChargeResult]
	status *gobreaker.CircuitBreaker[*RefStatus]
}

func NewBreakerGateway(inner Gateway) *BreakerGateway {
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}
	}
	return &BreakerGateway{
		inner:  inner,
		charge: gobreaker.NewCircuitBreaker[*ChargeResult](settings("payment-gateway-charge")),
		status: gobreaker.NewCircuitBreaker[*RefStatus](settings("payment-gateway-status")),
	}
}

func (b *BreakerGateway) Charge(ctx context.Context, method string, amount decimal.Decimal) (*ChargeResult, error) {
	res, err := b.charge.Execute(func() (*ChargeResult, error) {
		return b.inner.Charge(ctx, method, amount)
	})
	if err != nil {
		return nil, mapBreakerErr(err)
	}
	return res, nil
}

func (b *BreakerGateway) GetStatus(ctx context.Context, ref string) (*RefStatus, error) {
	res, err := b.status.Execute(func() (*RefStatus, error) {
		return b.inner.GetStatus(ctx, ref)
	})
	if err != nil {
		return nil, mapBreakerErr(err)
	}
	return res, nil
}

func mapBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrGatewayUnavailable
	}
	return err
}
