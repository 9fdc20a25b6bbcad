package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Payment is the durable record of a payment attempt. It is written as
// pending before the gateway call resolves and updated after; the gateway
// transaction reference is the idempotency key that gates finalization.
type Payment struct {
	ID         string
	UserID     string
	Method     string
	Amount     decimal.Decimal
	Status     Status
	GatewayRef string
	CreatedAt  time.Time
}
