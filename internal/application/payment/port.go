package payment

import (
	"context"
	"errors"

	domorder "github.com/ThierryFotabong/feeya/internal/domain/order"
)

var ErrEventInFlight = errors.New("payment: event is being processed by another delivery")

// EventLock serializes concurrent deliveries of the same provider event across instances.
type EventLock interface {
	TryLock(ctx context.Context, eventID string) (bool, error)
	Unlock(ctx context.Context, eventID string) error
}

type Materializer interface {
	Execute(ctx context.Context, intentID string) (*domorder.Order, error)
}

type Lifecycle interface {
	Apply(ctx context.Context, orderID string, kind domorder.EventKind, cause string, meta map[string]string) (*domorder.Order, error)
}

// OrderFinder resolves the order a payment intent produced, if any.
type OrderFinder interface {
	FindByPaymentIntent(ctx context.Context, intentID string) (*domorder.Order, error)
}
