package order

import (
	"context"
	"fmt"

	"github.com/ThierryFotabong/feeya/internal/application"
	domorder "github.com/ThierryFotabong/feeya/internal/domain/order"
	domoutbox "github.com/ThierryFotabong/feeya/internal/domain/outbox"
	"github.com/ThierryFotabong/feeya/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const workerService = "order-worker"

// Worker keeps the status cache in step with committed order events.
type Worker struct {
	repo       domorder.Repository
	subscriber domoutbox.Subscriber
	cache      StatusCache
	in         *application.Instrument
}

func NewWorker(
	repo domorder.Repository,
	subscriber domoutbox.Subscriber,
	cache StatusCache,
	tel observability.Observability,
) *Worker {
	return &Worker{
		repo:       repo,
		subscriber: subscriber,
		cache:      cache,
		in:         application.NewInstrument(workerService, tel),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.repo == nil || w.cache == nil {
		return
	}
	w.subscriber.Subscribe(domorder.ConfirmedEvent{}.EventName(), w.handleConfirmed)
	w.subscriber.Subscribe(domorder.StatusChangedEvent{}.EventName(), w.handleStatusChanged)
}

func (w *Worker) handleConfirmed(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.ConfirmedEvent)
	if !ok {
		return nil
	}
	return w.refresh(ctx, "order.worker.confirmed", "OrderConfirmed", evt.OrderID)
}

func (w *Worker) handleStatusChanged(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.StatusChangedEvent)
	if !ok {
		return nil
	}
	return w.refresh(ctx, "order.worker.status_changed", "OrderStatusChanged", evt.OrderID)
}

// refresh reloads the order rather than trusting the event payload, so a late delivery
// never overwrites a newer status.
func (w *Worker) refresh(ctx context.Context, useCase, span, orderID string) (err error) {
	ctx, run := w.in.Start(ctx, useCase, span, attribute.String("order.id", orderID))
	defer func() { run.End(err) }()

	o, err := w.repo.Get(ctx, orderID)
	if err != nil {
		run.Fail("ORDER_LOAD_FAILED")
		return fmt.Errorf("worker: load order: %w", err)
	}
	if err := w.cache.Put(ctx, ViewOf(o)); err != nil {
		run.Fail("CACHE_WRITE_FAILED")
		return fmt.Errorf("worker: cache status: %w", err)
	}
	run.With(
		observability.F("order_id", o.ID),
		observability.F("order_status", string(o.Status)),
	)
	return nil
}
