package order

import (
	"fmt"
	"time"
)

// EventKind is the closed vocabulary tracking consumers match on.
type EventKind string

const (
	KindConfirmed       EventKind = "confirmed"
	KindPaymentFailed   EventKind = "payment_failed"
	KindPaymentCanceled EventKind = "payment_canceled"
	KindDisputeCreated  EventKind = "dispute_created"
	KindPreparing       EventKind = "preparing"
	KindOutForDelivery  EventKind = "out_for_delivery"
	KindDelivered       EventKind = "delivered"
	KindCancelled       EventKind = "cancelled"
)

// KindForStatus maps an operator target status to the event that records it.
func KindForStatus(s Status) (EventKind, bool) {
	switch s {
	case StatusPreparing:
		return KindPreparing, true
	case StatusOutForDelivery:
		return KindOutForDelivery, true
	case StatusDelivered:
		return KindDelivered, true
	case StatusCancelled:
		return KindCancelled, true
	}
	return "", false
}

// Event is an append-only log entry. (OrderID, Kind, Cause) is unique, so replaying
// the same trigger never records twice.
type Event struct {
	ID         string
	OrderID    string
	Kind       EventKind
	Cause      string
	Metadata   map[string]string
	OccurredAt time.Time
}

// Transition is the planned effect of appending one event.
type Transition struct {
	Event       Event
	FromStatus  Status
	ToStatus    Status
	FromPayment PaymentStatus
	ToPayment   PaymentStatus
	// ReleaseStock returns the order's units to on-hand; ConsumeStock drops them from the ledger.
	ReleaseStock bool
	ConsumeStock bool
}

func (t Transition) ChangesStatus() bool {
	return t.FromStatus != t.ToStatus || t.FromPayment != t.ToPayment
}

// Plan computes what appending an event of kind would do, without mutating o.
func (o *Order) Plan(ev Event) (Transition, error) {
	ev.OrderID = o.ID
	st, err := stateFor(o.Status)
	if err != nil {
		return Transition{}, err
	}
	next, pay, err := step(st, o.PaymentStatus, ev.Kind)
	if err != nil {
		return Transition{}, fmt.Errorf("%w: %s on %s order", err, ev.Kind, o.Status)
	}
	to := next.Status()
	return Transition{
		Event:        ev,
		FromStatus:   o.Status,
		ToStatus:     to,
		FromPayment:  o.PaymentStatus,
		ToPayment:    pay,
		ReleaseStock: to == StatusCancelled && o.Status != StatusCancelled,
		ConsumeStock: to == StatusDelivered && o.Status != StatusDelivered,
	}, nil
}

// Apply moves the cached status to the transition's target.
func (o *Order) Apply(t Transition) {
	o.Status = t.ToStatus
	o.PaymentStatus = t.ToPayment
	o.UpdatedAt = t.Event.OccurredAt
}

func step(st OrderState, pay PaymentStatus, kind EventKind) (OrderState, PaymentStatus, error) {
	switch kind {
	case KindPreparing:
		next, err := st.OnPreparing()
		return next, pay, err
	case KindOutForDelivery:
		next, err := st.OnOutForDelivery()
		return next, pay, err
	case KindDelivered:
		next, err := st.OnDelivered()
		return next, pay, err
	case KindCancelled:
		next, err := st.OnCancelled()
		return next, pay, err
	case KindPaymentFailed, KindPaymentCanceled:
		if pay == PaymentPaid {
			return nil, pay, ErrPaymentConflict
		}
		next, err := st.OnCancelled()
		return next, PaymentFailed, err
	case KindDisputeCreated:
		return st, pay, nil
	default:
		return nil, pay, ErrInvalidStateTransition
	}
}

// Fold derives status and payment status from the event log. The stored status
// columns are a cache of this result.
func Fold(events []Event) (Status, PaymentStatus, error) {
	if len(events) == 0 || events[0].Kind != KindConfirmed {
		return "", "", fmt.Errorf("%w: log must start with %s", ErrInvalidStateTransition, KindConfirmed)
	}
	var st OrderState = confirmedState{}
	pay := PaymentPaid
	for _, ev := range events[1:] {
		next, p, err := step(st, pay, ev.Kind)
		if err != nil {
			return "", "", fmt.Errorf("fold %s: %w", ev.Kind, err)
		}
		st, pay = next, p
	}
	return st.Status(), pay, nil
}
