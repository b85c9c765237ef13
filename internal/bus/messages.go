package bus

// Topic names for the booking saga. Each topic carries exactly one payload
// shape; handlers dispatch on topic identity, never on message shape.
const (
	TopicValidateBooking     = "validate-booking"
	TopicProcessPayment      = "process-payment"
	TopicBookingConfirmed    = "booking-confirmed"
	TopicBookingFailed       = "booking-failed"
	TopicProcessCancellation = "process-cancellation"
	TopicRefundInitiated     = "refund-initiated"
)

// AllTopics returns every saga topic, in flow order
func AllTopics() []string {
	return []string{
		TopicValidateBooking,
		TopicProcessPayment,
		TopicBookingConfirmed,
		TopicBookingFailed,
		TopicProcessCancellation,
		TopicRefundInitiated,
	}
}

// ValidateBookingMessage triggers the validation step after initiation
type ValidateBookingMessage struct {
	BookingID     string `json:"booking_id"`
	EventID       string `json:"event_id"`
	SeatID        string `json:"seat_id,omitempty"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
}

// ProcessPaymentMessage triggers the payment step after validation
type ProcessPaymentMessage struct {
	BookingID     string `json:"booking_id"`
	EventID       string `json:"event_id"`
	SeatID        string `json:"seat_id,omitempty"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	Amount        int64  `json:"amount"`
}

// BookingConfirmedMessage finalizes a booking after a captured payment
type BookingConfirmedMessage struct {
	BookingID     string `json:"booking_id"`
	EventID       string `json:"event_id"`
	SeatID        string `json:"seat_id,omitempty"`
	CustomerEmail string `json:"customer_email"`
	PaymentID     string `json:"payment_id"`
	Amount        int64  `json:"amount"`
}

// BookingFailedMessage routes a business failure to the failure handler.
// The original caller already received 201 and polls for the outcome.
type BookingFailedMessage struct {
	BookingID string `json:"booking_id"`
	EventID   string `json:"event_id"`
	SeatID    string `json:"seat_id,omitempty"`
	Reason    string `json:"reason"`
}

// ProcessCancellationMessage triggers asynchronous cancellation processing
type ProcessCancellationMessage struct {
	BookingID     string `json:"booking_id"`
	EventID       string `json:"event_id"`
	SeatID        string `json:"seat_id,omitempty"`
	CustomerEmail string `json:"customer_email"`
	HadPayment    bool   `json:"had_payment"`
	Amount        int64  `json:"amount,omitempty"`
}

// RefundInitiatedMessage triggers the refund step for a cancelled booking
// that had captured a payment
type RefundInitiatedMessage struct {
	BookingID     string `json:"booking_id"`
	EventID       string `json:"event_id"`
	CustomerEmail string `json:"customer_email"`
	Amount        int64  `json:"amount"`
}
