package payment

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Decider resolves a charge attempt to an outcome.
type Decider func() (ChargeStatus, string)

// RandomDecider approves roughly 95% of charges, the rest are declined.
func RandomDecider() (ChargeStatus, string) {
	if rand.Intn(100) < 95 {
		return ChargeSucceeded, ""
	}
	return ChargeDeclined, "card declined"
}

// Approve always succeeds. Useful for tests and local runs.
func Approve() (ChargeStatus, string) {
	return ChargeSucceeded, ""
}

// Decline always declines with the given reason.
func Decline(reason string) Decider {
	return func() (ChargeStatus, string) {
		return ChargeDeclined, reason
	}
}

// StubGateway simulates an external payment gateway. Charges are remembered
// so GetStatus can answer for previously issued references.
type StubGateway struct {
	decide Decider

	mu      sync.Mutex
	charges map[string]*RefStatus
}

func NewStubGateway(decide Decider) *StubGateway {
	if decide == nil {
		decide = RandomDecider
	}
	return &StubGateway{
		decide:  decide,
		charges: make(map[string]*RefStatus),
	}
}

func (g *StubGateway) Charge(_ context.Context, _ string, amount decimal.Decimal) (*ChargeResult, error) {
	status, reason := g.decide()
	ref := "TXN-" + uuid.New().String()

	g.mu.Lock()
	g.charges[ref] = &RefStatus{Status: status, Amount: amount}
	g.mu.Unlock()

	return &ChargeResult{Ref: ref, Status: status, Reason: reason}, nil
}

func (g *StubGateway) GetStatus(_ context.Context, ref string) (*RefStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	status, ok := g.charges[ref]
	if !ok {
		return nil, errors.New("unknown transaction reference")
	}
	return status, nil
}

// Issue records a charge as if it had been made earlier through the
// gateway's own checkout page, returning its reference. This mirrors the
// flow where the client pays first and the backend verifies after.
func (g *StubGateway) Issue(status ChargeStatus, amount decimal.Decimal) string {
	ref := "TXN-" + uuid.New().String()
	g.mu.Lock()
	g.charges[ref] = &RefStatus{Status: status, Amount: amount}
	g.mu.Unlock()
	return ref
}
