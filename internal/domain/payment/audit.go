package payment

import (
	"context"
	"time"
)

type AuditKind string

const (
	AuditProviderEvent  AuditKind = "provider_event"
	AuditRefundRequired AuditKind = "refund_required"
	AuditAnomaly        AuditKind = "anomaly"
)

// AuditEntry records something that happened to a payment intent, whether or not an
// order exists for it.
type AuditEntry struct {
	ID        string
	IntentID  string
	EventID   string
	Kind      AuditKind
	OrderID   string
	Detail    string
	CreatedAt time.Time
}

// DedupeKey makes redelivered events land on the same row.
func (e AuditEntry) DedupeKey() string {
	ref := e.EventID
	if ref == "" {
		ref = e.IntentID
	}
	return string(e.Kind) + ":" + ref
}

type AuditLog interface {
	// Record is idempotent on DedupeKey. inserted is false when the key was already present.
	Record(ctx context.Context, e AuditEntry) (inserted bool, err error)
	ListByIntent(ctx context.Context, intentID string) ([]AuditEntry, error)
}

// Inbox remembers provider events that were fully applied.
type Inbox interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string, t EventType) error
}
