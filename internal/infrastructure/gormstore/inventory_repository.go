package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ThierryFotabong/feeya/internal/domain/inventory"
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

var _ inventory.Repository = (*InventoryRepository)(nil)

func (r *InventoryRepository) Get(ctx context.Context, productID string) (*inventory.Product, error) {
	return getProduct(r.db.WithContext(ctx), productID)
}

func (r *InventoryRepository) Reserve(ctx context.Context, productID string, quantity int) error {
	return reserve(r.db.WithContext(ctx), productID, quantity)
}

func (r *InventoryRepository) Release(ctx context.Context, productID string, quantity int) error {
	return release(r.db.WithContext(ctx), productID, quantity)
}

func (r *InventoryRepository) Restock(ctx context.Context, productID string, quantity int) (*inventory.Product, error) {
	if quantity <= 0 {
		return nil, inventory.ErrInvalidQuantity
	}
	var out *inventory.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&productRow{}).
			Where("id = ?", productID).
			Updates(map[string]any{
				"on_hand":    gorm.Expr("on_hand + ?", quantity),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return inventory.ErrNotFound
		}
		p, err := getProduct(tx, productID)
		out = p
		return err
	})
	return out, err
}

func (r *InventoryRepository) SetAvailability(ctx context.Context, productID string, available bool) (*inventory.Product, error) {
	var out *inventory.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := getProduct(tx.Clauses(clause.Locking{Strength: "UPDATE"}), productID)
		if err != nil {
			return err
		}
		p.Available = available
		p.UpdatedAt = time.Now().UTC()
		if err := tx.Model(&productRow{}).
			Where("id = ?", productID).
			Updates(map[string]any{"available": available, "updated_at": p.UpdatedAt}).Error; err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func (r *InventoryRepository) Upsert(ctx context.Context, p *inventory.Product) (*inventory.Product, error) {
	row := productRow{
		ID:        p.ID,
		Name:      p.Name,
		Size:      p.Size,
		UnitPrice: p.UnitPrice,
		Available: p.Available,
		OnHand:    p.OnHand,
		Reserved:  p.Reserved,
		UpdatedAt: time.Now().UTC(),
	}
	var out *inventory.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Counters belong to the ledger; only descriptive columns are overwritten.
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "size", "unit_price", "available", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return err
		}
		got, err := getProduct(tx, p.ID)
		out = got
		return err
	})
	return out, err
}

func getProduct(db *gorm.DB, productID string) (*inventory.Product, error) {
	var row productRow
	if err := db.Where("id = ?", productID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// reserve is the conditional check-and-move; on-hand never goes below zero.
func reserve(db *gorm.DB, productID string, qty int) error {
	if qty <= 0 {
		return inventory.ErrInvalidQuantity
	}
	res := db.Model(&productRow{}).
		Where("id = ? AND on_hand >= ?", productID, qty).
		Updates(map[string]any{
			"on_hand":    gorm.Expr("on_hand - ?", qty),
			"reserved":   gorm.Expr("reserved + ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	p, err := getProduct(db, productID)
	if err != nil {
		return err
	}
	return &inventory.InsufficientStockError{ProductID: productID, Requested: qty, Available: p.OnHand}
}

func release(db *gorm.DB, productID string, qty int) error {
	return moveReserved(db, productID, qty, true)
}

func consume(db *gorm.DB, productID string, qty int) error {
	return moveReserved(db, productID, qty, false)
}

func moveReserved(db *gorm.DB, productID string, qty int, toOnHand bool) error {
	if qty <= 0 {
		return inventory.ErrInvalidQuantity
	}
	updates := map[string]any{
		"reserved":   gorm.Expr("reserved - ?", qty),
		"updated_at": time.Now().UTC(),
	}
	if toOnHand {
		updates["on_hand"] = gorm.Expr("on_hand + ?", qty)
	}
	res := db.Model(&productRow{}).
		Where("id = ? AND reserved >= ?", productID, qty).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := getProduct(db, productID); err != nil {
		return err
	}
	return inventory.ErrOverRelease
}
