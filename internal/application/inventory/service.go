package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ThierryFotabong/feeya/internal/application"
	dominv "github.com/ThierryFotabong/feeya/internal/domain/inventory"
	domoutbox "github.com/ThierryFotabong/feeya/internal/domain/outbox"
	"github.com/ThierryFotabong/feeya/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	inventoryService       = "inventory-service"
	useCaseRestock         = "inventory.restock"
	useCaseSetAvailability = "inventory.set_availability"
	useCaseUpsert          = "inventory.upsert"
)

// Service holds the operator-side stock operations. Reservations go through the ledger
// directly from the basket and order flows.
type Service struct {
	repo      dominv.Repository
	publisher domoutbox.Publisher
	in        *application.Instrument
}

func NewService(repo dominv.Repository, publisher domoutbox.Publisher, tel observability.Observability) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		in:        application.NewInstrument(inventoryService, tel),
	}
}

func (s *Service) Restock(ctx context.Context, productID string, quantity int) (_ *dominv.Product, err error) {
	ctx, run := s.in.Start(ctx, useCaseRestock, "Restock",
		attribute.String("inventory.product_id", productID),
		attribute.Int("inventory.quantity", quantity),
	)
	defer func() { run.End(err) }()

	if productID == "" {
		run.Fail("PRODUCT_ID_REQUIRED")
		return nil, application.NewValidation("product id is required")
	}
	if quantity <= 0 {
		run.Fail("QUANTITY_INVALID")
		return nil, fmt.Errorf("%w: %w", application.ErrValidation, dominv.ErrInvalidQuantity)
	}

	p, err := s.repo.Restock(ctx, productID, quantity)
	if err != nil {
		s.fail(run, err)
		return nil, err
	}
	s.changed(ctx, run, p)
	return p, nil
}

func (s *Service) SetAvailability(ctx context.Context, productID string, available bool) (_ *dominv.Product, err error) {
	ctx, run := s.in.Start(ctx, useCaseSetAvailability, "SetAvailability",
		attribute.String("inventory.product_id", productID),
		attribute.Bool("inventory.available", available),
	)
	defer func() { run.End(err) }()

	if productID == "" {
		run.Fail("PRODUCT_ID_REQUIRED")
		return nil, application.NewValidation("product id is required")
	}
	p, err := s.repo.SetAvailability(ctx, productID, available)
	if err != nil {
		s.fail(run, err)
		return nil, err
	}
	s.changed(ctx, run, p)
	return p, nil
}

type UpsertInput struct {
	ID        string
	Name      string
	Size      string
	UnitPrice int64
	Available bool
}

// Upsert creates a catalog row with empty stock, or edits the descriptive fields of an
// existing one.
func (s *Service) Upsert(ctx context.Context, cmd UpsertInput) (_ *dominv.Product, err error) {
	ctx, run := s.in.Start(ctx, useCaseUpsert, "UpsertProduct",
		attribute.String("inventory.product_id", cmd.ID),
	)
	defer func() { run.End(err) }()

	switch {
	case cmd.ID == "":
		run.Fail("PRODUCT_ID_REQUIRED")
		return nil, application.NewValidation("product id is required")
	case strings.TrimSpace(cmd.Name) == "":
		run.Fail("NAME_REQUIRED")
		return nil, application.NewValidation("name is required")
	case cmd.UnitPrice <= 0:
		run.Fail("PRICE_INVALID")
		return nil, application.NewValidation("unit price must be positive")
	}

	p, err := s.repo.Upsert(ctx, &dominv.Product{
		ID:        cmd.ID,
		Name:      strings.TrimSpace(cmd.Name),
		Size:      cmd.Size,
		UnitPrice: cmd.UnitPrice,
		Available: cmd.Available,
	})
	if err != nil {
		s.fail(run, err)
		return nil, err
	}
	s.changed(ctx, run, p)
	return p, nil
}

func (s *Service) fail(run *application.Run, err error) {
	if errors.Is(err, dominv.ErrNotFound) {
		run.Fail("PRODUCT_NOT_FOUND")
		return
	}
	run.Fail("REPO_WRITE_FAILED")
}

func (s *Service) changed(ctx context.Context, run *application.Run, p *dominv.Product) {
	run.With(
		observability.F("product_id", p.ID),
		observability.F("on_hand", p.OnHand),
		observability.F("reserved", p.Reserved),
	)
	if err := s.in.Publish(ctx, s.publisher, dominv.NewProductChangedEvent(p)); err != nil {
		run.Status = "EVENT_PUBLISH_FAILED"
		run.Logger().Warn("event_publish_failed",
			observability.F("event", dominv.ProductChangedEvent{}.EventName()),
			observability.F("product_id", p.ID),
			observability.Err(err),
		)
	}
}
