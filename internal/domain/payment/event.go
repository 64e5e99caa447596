package payment

import (
	"errors"
	"time"
)

var (
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	ErrUnsupportedEvent = errors.New("payment: unsupported event type")
	ErrMalformedEvent   = errors.New("payment: malformed event")
)

type EventType string

const (
	EventSucceeded      EventType = "payment_intent.succeeded"
	EventFailed         EventType = "payment_intent.payment_failed"
	EventCanceled       EventType = "payment_intent.canceled"
	EventDisputeCreated EventType = "charge.dispute.created"
)

// Event is a verified provider notification about one payment intent.
type Event struct {
	ID         string
	Type       EventType
	IntentID   string
	Amount     int64
	OccurredAt time.Time
}

// Verifier authenticates a raw webhook body against its signature header.
type Verifier interface {
	Verify(payload []byte, signatureHeader string) (Event, error)
}
