package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ThierryFotabong/feeya/internal/domain/checkout"
)

type CheckoutRepository struct {
	db *gorm.DB
}

func NewCheckoutRepository(db *gorm.DB) *CheckoutRepository {
	return &CheckoutRepository{db: db}
}

var _ checkout.Repository = (*CheckoutRepository)(nil)

func (r *CheckoutRepository) Save(ctx context.Context, s *checkout.Snapshot) error {
	row, err := newSnapshotRow(s)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

func (r *CheckoutRepository) Get(ctx context.Context, intentID string) (*checkout.Snapshot, error) {
	var row snapshotRow
	if err := r.db.WithContext(ctx).Where("intent_id = ?", intentID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, checkout.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain()
}
