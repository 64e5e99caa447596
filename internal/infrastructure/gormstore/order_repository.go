package gormstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ThierryFotabong/feeya/internal/domain/basket"
	"github.com/ThierryFotabong/feeya/internal/domain/inventory"
	"github.com/ThierryFotabong/feeya/internal/domain/order"
)

const (
	keyOrderIntent = "uk_orders_intent"
	keyOrderNumber = "uk_orders_number"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

var _ order.Repository = (*OrderRepository)(nil)

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.find(r.db.WithContext(ctx), "id = ?", id)
}

func (r *OrderRepository) FindByPaymentIntent(ctx context.Context, intentID string) (*order.Order, error) {
	return r.find(r.db.WithContext(ctx), "payment_intent_id = ?", intentID)
}

func (r *OrderRepository) find(db *gorm.DB, query string, arg any) (*order.Order, error) {
	var row orderRow
	err := db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where(query, arg).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *OrderRepository) Events(ctx context.Context, orderID string) ([]order.Event, error) {
	db := r.db.WithContext(ctx)
	var n int64
	if err := db.Model(&orderRow{}).Where("id = ?", orderID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, order.ErrNotFound
	}

	var rows []orderEventRow
	if err := db.Where("order_id = ?", orderID).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]order.Event, 0, len(rows))
	for _, row := range rows {
		ev, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *OrderRepository) Materialize(ctx context.Context, m order.Materialization) error {
	orow := newOrderRow(m.Order)
	erow, err := newEventRow(m.Order.ID, m.Event)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The unique intent key is what lets concurrent confirm and webhook paths race safely.
		if err := tx.Omit(clause.Associations).Create(&orow).Error; err != nil {
			if key, dup := duplicateKey(err); dup {
				if key == keyOrderNumber {
					return order.ErrDuplicateNumber
				}
				return order.ErrDuplicate
			}
			return err
		}
		if len(orow.Items) > 0 {
			if err := tx.Create(&orow.Items).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(&erow).Error; err != nil {
			return err
		}

		if m.BasketID != "" {
			if err := clearBasket(tx, m.BasketID, m.BasketVersion); err != nil {
				return err
			}
		}

		for _, a := range sortedAdjustments(m.Reserve) {
			if err := reserve(tx, a.ProductID, a.Quantity); err != nil {
				return err
			}
		}
		for _, a := range sortedAdjustments(m.Release) {
			if err := release(tx, a.ProductID, a.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

func clearBasket(tx *gorm.DB, id string, version int) error {
	res := tx.Model(&basketRow{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]any{
			"lines":      "[]",
			"subtotal":   0,
			"version":    version + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var n int64
	if err := tx.Model(&basketRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return basket.ErrConflict
}

func (r *OrderRepository) Append(ctx context.Context, o *order.Order, t order.Transition) error {
	erow, err := newEventRow(o.ID, t.Event)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := r.find(tx.Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", o.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(&erow).Error; err != nil {
			if isDuplicate(err) {
				return order.ErrDuplicateEvent
			}
			return err
		}
		if cur.Status != t.FromStatus || cur.PaymentStatus != t.FromPayment {
			return order.ErrConflict
		}

		if err := tx.Model(&orderRow{}).
			Where("id = ? AND status = ? AND payment_status = ?", o.ID, t.FromStatus, t.FromPayment).
			Updates(map[string]any{
				"status":         string(t.ToStatus),
				"payment_status": string(t.ToPayment),
				"updated_at":     t.Event.OccurredAt,
			}).Error; err != nil {
			return err
		}

		if !t.ReleaseStock && !t.ConsumeStock {
			return nil
		}
		for _, a := range sortedAdjustments(cur.Stock()) {
			move := consume
			if t.ReleaseStock {
				move = release
			}
			if err := move(tx, a.ProductID, a.Quantity); err != nil {
				return fmt.Errorf("adjust stock for %s: %w", a.ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	o.Apply(t)
	return nil
}

// sortedAdjustments orders row updates by product id so concurrent transactions lock in the same order.
func sortedAdjustments(in []inventory.Adjustment) []inventory.Adjustment {
	out := append([]inventory.Adjustment(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
