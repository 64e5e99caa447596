package order

import (
	"context"
	"errors"
	"time"

	domorder "github.com/ThierryFotabong/feeya/internal/domain/order"
)

// NumberGenerator hands out customer-facing order numbers. Uniqueness is enforced by
// the store; a collision is retried with a fresh number.
type NumberGenerator interface {
	NewNumber(at time.Time) string
}

var ErrCacheMiss = errors.New("order: status not cached")

// StatusView is the polling projection of an order.
type StatusView struct {
	OrderID       string                 `json:"orderId"`
	Number        string                 `json:"number"`
	CustomerID    string                 `json:"customerId"`
	Status        domorder.Status        `json:"status"`
	PaymentStatus domorder.PaymentStatus `json:"paymentStatus"`
	ETABand       string                 `json:"etaBand"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

func ViewOf(o *domorder.Order) StatusView {
	return StatusView{
		OrderID:       o.ID,
		Number:        o.Number,
		CustomerID:    o.CustomerID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		ETABand:       o.ETABand,
		UpdatedAt:     o.UpdatedAt,
	}
}

// StatusCache serves status polls without touching the order store.
type StatusCache interface {
	Put(ctx context.Context, v StatusView) error
	// Get fails with ErrCacheMiss when nothing is cached.
	Get(ctx context.Context, orderID string) (StatusView, error)
}
