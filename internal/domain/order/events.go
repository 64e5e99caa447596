package order

import "time"

// ConfirmedEvent is published once per order, after materialization commits.
type ConfirmedEvent struct {
	OrderID         string
	Number          string
	CustomerID      string
	PaymentIntentID string
	Total           int64
	Currency        string
	OccurredAt      time.Time
}

func (ConfirmedEvent) EventName() string { return "order.confirmed" }
func (e ConfirmedEvent) AggregateID() string { return e.OrderID }

func NewConfirmedEvent(o *Order) ConfirmedEvent {
	return ConfirmedEvent{
		OrderID:         o.ID,
		Number:          o.Number,
		CustomerID:      o.CustomerID,
		PaymentIntentID: o.PaymentIntentID,
		Total:           o.Total,
		Currency:        o.Currency,
		OccurredAt:      time.Now().UTC(),
	}
}

// StatusChangedEvent is published after every appended timeline event.
type StatusChangedEvent struct {
	OrderID       string
	Kind          EventKind
	Status        Status
	PaymentStatus PaymentStatus
	OccurredAt    time.Time
}

func (StatusChangedEvent) EventName() string { return "order.status_changed" }
func (e StatusChangedEvent) AggregateID() string { return e.OrderID }

func NewStatusChangedEvent(o *Order, kind EventKind) StatusChangedEvent {
	return StatusChangedEvent{
		OrderID:       o.ID,
		Kind:          kind,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		OccurredAt:    time.Now().UTC(),
	}
}
