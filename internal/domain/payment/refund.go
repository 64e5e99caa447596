package payment

import "time"

// RefundRequiredEvent hands a paid intent that could not become an order to the manual refund queue.
type RefundRequiredEvent struct {
	IntentID   string
	CustomerID string
	Amount     int64
	Currency   string
	Reason     string
	OccurredAt time.Time
}

func (RefundRequiredEvent) EventName() string { return "payment.refund_required" }
func (e RefundRequiredEvent) AggregateID() string { return e.IntentID }
