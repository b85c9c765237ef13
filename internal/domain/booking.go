package domain

import (
	"strings"
	"time"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusValidating BookingStatus = "validating"
	BookingStatusProcessing BookingStatus = "processing"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusFailed     BookingStatus = "failed"
	BookingStatusCancelling BookingStatus = "cancelling"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusRefunded   BookingStatus = "refunded"
)

// IsValid checks if the status is a valid BookingStatus
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusValidating, BookingStatusProcessing,
		BookingStatusConfirmed, BookingStatusFailed, BookingStatusCancelling,
		BookingStatusCancelled, BookingStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of BookingStatus
func (s BookingStatus) String() string {
	return string(s)
}

// Booking represents a booking record. Created once at initiation, mutated
// in place by saga steps, retained indefinitely after reaching a terminal
// status.
type Booking struct {
	ID            string        `json:"id"`
	EventID       string        `json:"event_id"`
	EventTitle    string        `json:"event_title,omitempty"`
	SeatID        string        `json:"seat_id,omitempty"` // empty = general admission
	CustomerName  string        `json:"customer_name"`
	CustomerEmail string        `json:"customer_email"`
	Status        BookingStatus `json:"status"`
	Amount        int64         `json:"amount,omitempty"`
	PaymentID     string        `json:"payment_id,omitempty"`
	RefundID      string        `json:"refund_id,omitempty"`
	RefundAmount  int64         `json:"refund_amount,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Version       int64         `json:"version"` // bumped on every stored mutation
	HoldExpiresAt *time.Time    `json:"hold_expires_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	ConfirmedAt   *time.Time    `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
	RefundedAt    *time.Time    `json:"refunded_at,omitempty"`
}

// Validate validates the fields set at initiation
func (b *Booking) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return ErrInvalidBookingID
	}
	if strings.TrimSpace(b.EventID) == "" {
		return ErrInvalidEventID
	}
	if strings.TrimSpace(b.CustomerName) == "" {
		return ErrInvalidCustomerName
	}
	if !strings.Contains(b.CustomerEmail, "@") {
		return ErrInvalidCustomerEmail
	}
	return nil
}

// IsGeneralAdmission reports whether the booking is not tied to a seat
func (b *Booking) IsGeneralAdmission() bool {
	return b.SeatID == ""
}

// HadPayment reports whether a payment was captured for this booking
func (b *Booking) HadPayment() bool {
	return b.PaymentID != ""
}

// IsTerminal reports whether no further saga transition applies. A cancelled
// booking with a captured payment is not terminal: a refund is still owed.
func (b *Booking) IsTerminal() bool {
	switch b.Status {
	case BookingStatusConfirmed, BookingStatusFailed, BookingStatusRefunded:
		return true
	case BookingStatusCancelled:
		return !b.HadPayment()
	}
	return false
}

// CanCancel checks if the booking can be cancelled
func (b *Booking) CanCancel() bool {
	switch b.Status {
	case BookingStatusPending, BookingStatusValidating,
		BookingStatusProcessing, BookingStatusConfirmed:
		return true
	}
	return false
}

// BeginValidation moves the booking into validating. Re-applying to a
// booking already validating is a no-op so redelivered messages are safe.
func (b *Booking) BeginValidation(now time.Time) error {
	switch b.Status {
	case BookingStatusValidating:
		return nil
	case BookingStatusPending:
		b.Status = BookingStatusValidating
		b.UpdatedAt = now
		return nil
	}
	return ErrInvalidTransition
}

// BeginProcessing moves the booking into processing (payment in flight)
func (b *Booking) BeginProcessing(now time.Time) error {
	switch b.Status {
	case BookingStatusProcessing:
		return nil
	case BookingStatusValidating:
		b.Status = BookingStatusProcessing
		b.UpdatedAt = now
		return nil
	}
	return ErrInvalidTransition
}

// Confirm marks the booking as confirmed with the captured payment.
// A duplicate confirm carrying the same payment id is a no-op.
func (b *Booking) Confirm(paymentID string, amount int64, now time.Time) error {
	if b.Status == BookingStatusConfirmed {
		if b.PaymentID == paymentID {
			return nil
		}
		return ErrAlreadyConfirmed
	}
	if b.Status != BookingStatusProcessing {
		return ErrInvalidTransition
	}
	b.Status = BookingStatusConfirmed
	b.PaymentID = paymentID
	b.Amount = amount
	b.ConfirmedAt = &now
	b.UpdatedAt = now
	return nil
}

// Fail marks the booking as failed with a reason. Terminal and
// non-retryable; the customer must start a new booking.
func (b *Booking) Fail(reason string, now time.Time) error {
	switch b.Status {
	case BookingStatusFailed:
		return nil
	case BookingStatusPending, BookingStatusValidating, BookingStatusProcessing:
		b.Status = BookingStatusFailed
		b.FailureReason = reason
		b.UpdatedAt = now
		return nil
	}
	return ErrAlreadyFinal
}

// BeginCancellation moves the booking into cancelling as a synchronous
// acknowledgment before the cancellation step runs.
func (b *Booking) BeginCancellation(now time.Time) error {
	if b.Status == BookingStatusCancelling {
		return nil
	}
	if !b.CanCancel() {
		return ErrNotCancellable
	}
	b.Status = BookingStatusCancelling
	b.UpdatedAt = now
	return nil
}

// CompleteCancellation marks the booking as cancelled
func (b *Booking) CompleteCancellation(now time.Time) error {
	switch b.Status {
	case BookingStatusCancelled:
		return nil
	case BookingStatusCancelling, BookingStatusPending, BookingStatusValidating,
		BookingStatusProcessing, BookingStatusConfirmed:
		b.Status = BookingStatusCancelled
		b.CancelledAt = &now
		b.UpdatedAt = now
		return nil
	}
	return ErrInvalidTransition
}

// MarkRefunded records a completed refund for a cancelled booking
func (b *Booking) MarkRefunded(refundID string, amount int64, now time.Time) error {
	if b.Status == BookingStatusRefunded {
		return nil
	}
	if b.Status != BookingStatusCancelled {
		return ErrInvalidTransition
	}
	if !b.HadPayment() {
		return ErrRefundNotDue
	}
	b.Status = BookingStatusRefunded
	b.RefundID = refundID
	b.RefundAmount = amount
	b.RefundedAt = &now
	b.UpdatedAt = now
	return nil
}
