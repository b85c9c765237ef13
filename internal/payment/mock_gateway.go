package payment

import (
	"context"
	"math/rand"
	"time"

	"ticketd/internal/domain"
)

// Default simulator behavior: a flat per-attempt decline probability and
// fixed processing latencies.
const (
	DefaultSuccessRate = 0.8
	DefaultChargeDelay = 2 * time.Second
	DefaultRefundDelay = 1500 * time.Millisecond
)

// DefaultFailureReasons are the decline reasons the simulator draws from
var DefaultFailureReasons = []string{
	"Card declined",
	"Insufficient funds",
	"Payment timeout",
	"Bank declined transaction",
}

// MockGateway simulates an external payment processor with fixed latency
// and an independent per-attempt failure probability.
type MockGateway struct {
	SuccessRate    float64
	ChargeDelay    time.Duration
	RefundDelay    time.Duration
	FailureReasons []string

	// Rand overrides the outcome draw; tests use it to force success or
	// failure deterministically.
	Rand func() float64
}

// NewMockGateway creates a simulator with the default rates and delays
func NewMockGateway() *MockGateway {
	return &MockGateway{
		SuccessRate:    DefaultSuccessRate,
		ChargeDelay:    DefaultChargeDelay,
		RefundDelay:    DefaultRefundDelay,
		FailureReasons: DefaultFailureReasons,
		Rand:           rand.Float64,
	}
}

// Charge simulates a payment attempt: waits the configured latency, then
// succeeds with probability SuccessRate
func (g *MockGateway) Charge(ctx context.Context, bookingID string, amount int64) (*ChargeResult, error) {
	if err := g.wait(ctx, g.ChargeDelay); err != nil {
		return nil, err
	}

	if g.draw() >= g.SuccessRate {
		return &ChargeResult{
			Success: false,
			Reason:  g.FailureReasons[rand.Intn(len(g.FailureReasons))],
		}, nil
	}

	return &ChargeResult{
		Success:   true,
		PaymentID: domain.NewID("pay"),
	}, nil
}

// Refund simulates a refund: always succeeds after the configured latency
func (g *MockGateway) Refund(ctx context.Context, bookingID string, amount int64) (*RefundResult, error) {
	if err := g.wait(ctx, g.RefundDelay); err != nil {
		return nil, err
	}

	return &RefundResult{
		RefundID: domain.NewID("ref"),
		Amount:   amount,
	}, nil
}

func (g *MockGateway) draw() float64 {
	if g.Rand != nil {
		return g.Rand()
	}
	return rand.Float64()
}

func (g *MockGateway) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Ensure MockGateway implements Gateway
var _ Gateway = (*MockGateway)(nil)
