// Package payment defines the payment gateway contract and the simulator
// used in place of a real processor.
package payment

import "context"

// ChargeResult is the outcome of a charge attempt. Exactly one of
// PaymentID or Reason is set.
type ChargeResult struct {
	Success   bool
	PaymentID string
	Reason    string
}

// RefundResult is the outcome of a refund request
type RefundResult struct {
	RefundID string
	Amount   int64
}

// Gateway is the two-outcome payment contract the saga depends on: a
// charge either succeeds with an id or fails with a human-readable reason.
// A real processor client would implement this same interface.
type Gateway interface {
	// Charge attempts to capture the amount (minor currency units) for a
	// booking. A declined charge is a successful call with Success=false;
	// the error return is reserved for transport-level failures.
	Charge(ctx context.Context, bookingID string, amount int64) (*ChargeResult, error)

	// Refund returns the amount previously captured for a booking
	Refund(ctx context.Context, bookingID string, amount int64) (*RefundResult, error)
}
