package order

import (
	"context"

	"github.com/ThierryFotabong/feeya/internal/domain/inventory"
)

// Materialization is everything that must commit together when a paid intent becomes an order.
type Materialization struct {
	Order *Order
	Event Event
	// Reserve and Release reconcile the basket's holdings with the order's lines.
	Reserve []inventory.Adjustment
	Release []inventory.Adjustment
	// BasketID is emptied if its stored version still equals BasketVersion. Empty ID skips it.
	BasketID      string
	BasketVersion int
}

type Repository interface {
	Get(ctx context.Context, id string) (*Order, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*Order, error)
	Events(ctx context.Context, orderID string) ([]Event, error)
	// Materialize fails with ErrDuplicate when the payment intent already has an order,
	// with *inventory.InsufficientStockError when a reservation cannot be made and with
	// basket.ErrConflict when the basket moved. Nothing is written on failure.
	Materialize(ctx context.Context, m Materialization) error
	// Append records t.Event and moves the cached status, conditional on the stored
	// status still matching t.From*. Stock is released or consumed for o.Items as flagged.
	Append(ctx context.Context, o *Order, t Transition) error
}
