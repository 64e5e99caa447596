package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ThierryFotabong/feeya/internal/domain/payment"
)

// PaymentRepository holds the payment audit trail and the processed-webhook inbox.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

var (
	_ payment.AuditLog = (*PaymentRepository)(nil)
	_ payment.Inbox    = (*PaymentRepository)(nil)
)

func (r *PaymentRepository) Record(ctx context.Context, e payment.AuditEntry) (bool, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	row := auditRow{
		ID:        e.ID,
		DedupeKey: e.DedupeKey(),
		IntentID:  e.IntentID,
		EventID:   e.EventID,
		Kind:      string(e.Kind),
		OrderID:   e.OrderID,
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt,
	}
	err := r.db.WithContext(ctx).Create(&row).Error
	switch {
	case err == nil:
		return true, nil
	case isDuplicate(err):
		return false, nil
	default:
		return false, err
	}
}

func (r *PaymentRepository) ListByIntent(ctx context.Context, intentID string) ([]payment.AuditEntry, error) {
	var rows []auditRow
	if err := r.db.WithContext(ctx).
		Where("intent_id = ?", intentID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]payment.AuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *PaymentRepository) Processed(ctx context.Context, eventID string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&inboxRow{}).Where("event_id = ?", eventID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PaymentRepository) MarkProcessed(ctx context.Context, eventID string, t payment.EventType) error {
	row := inboxRow{EventID: eventID, Type: string(t), ProcessedAt: time.Now().UTC()}
	err := r.db.WithContext(ctx).Create(&row).Error
	switch {
	case err == nil:
		return nil
	case isDuplicate(err):
		return nil
	default:
		return err
	}
}
