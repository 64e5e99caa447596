package inventory

import (
	"context"
	"fmt"

	"github.com/ThierryFotabong/feeya/internal/application"
	dominv "github.com/ThierryFotabong/feeya/internal/domain/inventory"
	domoutbox "github.com/ThierryFotabong/feeya/internal/domain/outbox"
	"github.com/ThierryFotabong/feeya/internal/observability"
	"github.com/ThierryFotabong/feeya/internal/pkg/money"

	"go.opentelemetry.io/otel/attribute"
)

const workerService = "inventory-worker"

// Document is what the external search index stores per product.
type Document struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      string `json:"size,omitempty"`
	Price     string `json:"price"`
	Available bool   `json:"available"`
	InStock   bool   `json:"inStock"`
}

// SearchIndex receives product documents; querying it is outside this service.
type SearchIndex interface {
	Index(ctx context.Context, doc Document) error
}

// Worker pushes catalog changes to the search index.
type Worker struct {
	subscriber domoutbox.Subscriber
	index      SearchIndex
	in         *application.Instrument
}

func NewWorker(subscriber domoutbox.Subscriber, index SearchIndex, tel observability.Observability) *Worker {
	return &Worker{
		subscriber: subscriber,
		index:      index,
		in:         application.NewInstrument(workerService, tel),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.index == nil {
		return
	}
	w.subscriber.Subscribe(dominv.ProductChangedEvent{}.EventName(), w.handleProductChanged)
}

func (w *Worker) handleProductChanged(ctx context.Context, e domoutbox.Event) (err error) {
	const useCase = "inventory.worker.product_changed"
	evt, ok := e.(dominv.ProductChangedEvent)
	if !ok {
		return nil
	}

	ctx, run := w.in.Start(ctx, useCase, "ProductChanged",
		attribute.String("event", e.EventName()),
		attribute.String("inventory.product_id", evt.ProductID),
	)
	defer func() { run.End(err) }()

	doc := Document{
		ID:        evt.ProductID,
		Name:      evt.Name,
		Size:      evt.Size,
		Price:     money.Format(evt.UnitPrice),
		Available: evt.Available,
		InStock:   evt.InStock,
	}
	if err := w.index.Index(ctx, doc); err != nil {
		run.Fail("INDEX_FAILED")
		return fmt.Errorf("worker: index product %s: %w", evt.ProductID, err)
	}
	return nil
}
