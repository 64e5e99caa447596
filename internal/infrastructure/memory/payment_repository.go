package memory

import (
	"context"

	"github.com/ThierryFotabong/feeya/internal/domain/payment"
)

// PaymentRepository is the audit log and webhook inbox.
type PaymentRepository struct{ s *Store }

func NewPaymentRepository(s *Store) *PaymentRepository {
	return &PaymentRepository{s: s}
}

var (
	_ payment.AuditLog = (*PaymentRepository)(nil)
	_ payment.Inbox    = (*PaymentRepository)(nil)
)

func (r *PaymentRepository) Record(ctx context.Context, e payment.AuditEntry) (bool, error) {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := e.DedupeKey()
	if _, dup := r.s.auditKeys[key]; dup {
		return false, nil
	}
	r.s.auditKeys[key] = struct{}{}
	r.s.audit = append(r.s.audit, e)
	return true, nil
}

func (r *PaymentRepository) ListByIntent(ctx context.Context, intentID string) ([]payment.AuditEntry, error) {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []payment.AuditEntry
	for _, e := range r.s.audit {
		if e.IntentID == intentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *PaymentRepository) Processed(ctx context.Context, eventID string) (bool, error) {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, ok := r.s.inbox[eventID]
	return ok, nil
}

func (r *PaymentRepository) MarkProcessed(ctx context.Context, eventID string, t payment.EventType) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.inbox[eventID] = t
	return nil
}
