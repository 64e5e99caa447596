package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ThierryFotabong/feeya/internal/domain/address"
)

type AddressRepository struct {
	db *gorm.DB
}

func NewAddressRepository(db *gorm.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

var _ address.Repository = (*AddressRepository)(nil)

func (r *AddressRepository) Save(ctx context.Context, a *address.Address) error {
	row := addressRow{
		ID:         a.ID,
		CustomerID: a.CustomerID,
		Line1:      a.Line1,
		City:       a.City,
		PostalCode: a.PostalCode,
		Formatted:  a.Formatted,
		Lat:        a.Lat,
		Lng:        a.Lng,
		Verified:   a.Verified,
		CreatedAt:  a.CreatedAt,
	}
	return r.db.WithContext(ctx).Save(&row).Error
}

func (r *AddressRepository) Get(ctx context.Context, id string) (*address.Address, error) {
	var row addressRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, address.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}
