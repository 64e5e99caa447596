package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ThierryFotabong/feeya/internal/domain/basket"
)

type BasketRepository struct {
	db *gorm.DB
}

func NewBasketRepository(db *gorm.DB) *BasketRepository {
	return &BasketRepository{db: db}
}

var _ basket.Repository = (*BasketRepository)(nil)

func (r *BasketRepository) FindByOwner(ctx context.Context, owner basket.Owner) (*basket.Basket, error) {
	return r.find(ctx, "owner_key = ?", owner.Key())
}

func (r *BasketRepository) Get(ctx context.Context, id string) (*basket.Basket, error) {
	return r.find(ctx, "id = ?", id)
}

func (r *BasketRepository) find(ctx context.Context, query string, arg any) (*basket.Basket, error) {
	var row basketRow
	if err := r.db.WithContext(ctx).Where(query, arg).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, basket.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain()
}

func (r *BasketRepository) Save(ctx context.Context, b *basket.Basket) error {
	row, err := newBasketRow(b)
	if err != nil {
		return err
	}
	db := r.db.WithContext(ctx)

	if b.Version == 0 {
		row.Version = 1
		if err := db.Create(&row).Error; err != nil {
			if isDuplicate(err) {
				return basket.ErrConflict
			}
			return err
		}
		b.Version = 1
		return nil
	}

	res := db.Model(&basketRow{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(map[string]any{
			"lines":      row.Lines,
			"subtotal":   row.Subtotal,
			"version":    b.Version + 1,
			"updated_at": row.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.Model(&basketRow{}).Where("id = ?", b.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return basket.ErrNotFound
		}
		return basket.ErrConflict
	}
	b.Version++
	return nil
}
