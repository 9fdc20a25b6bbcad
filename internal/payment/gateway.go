package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

type ChargeStatus string

const (
	ChargeSucceeded ChargeStatus = "succeeded"
	ChargeDeclined  ChargeStatus = "declined"
)

// ChargeResult is the gateway's answer to a charge attempt. A decline is a
// result, not an error; errors mean the gateway could not be reached.
type ChargeResult struct {
	Ref    string
	Status ChargeStatus
	Reason string
}

// RefStatus is the gateway's view of a previously issued transaction
// reference. Amount is gateway-reported and authoritative.
type RefStatus struct {
	Status ChargeStatus
	Amount decimal.Decimal
}

type Gateway interface {
	Charge(ctx context.Context, method string, amount decimal.Decimal) (*ChargeResult, error)
	GetStatus(ctx context.Context, ref string) (*RefStatus, error)
}
