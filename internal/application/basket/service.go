package basket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThierryFotabong/feeya/internal/application"
	dombasket "github.com/ThierryFotabong/feeya/internal/domain/basket"
	dominv "github.com/ThierryFotabong/feeya/internal/domain/inventory"
	"github.com/ThierryFotabong/feeya/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	basketService      = "basket-service"
	useCaseAddLine     = "basket.add_line"
	useCaseSetQuantity = "basket.set_quantity"
	useCaseRemoveLine  = "basket.remove_line"
	useCaseSnapshot    = "basket.snapshot"

	saveAttempts = 3
)

// Service mutates baskets while keeping the stock ledger in step with every line.
type Service struct {
	baskets dombasket.Repository
	catalog dominv.Catalog
	ledger  dominv.Ledger
	ids     application.IDGenerator
	maxQty  int
	now     func() time.Time
	in      *application.Instrument
}

func NewService(
	baskets dombasket.Repository,
	catalog dominv.Catalog,
	ledger dominv.Ledger,
	ids application.IDGenerator,
	maxLineQty int,
	tel observability.Observability,
) *Service {
	if maxLineQty <= 0 {
		maxLineQty = dombasket.DefaultMaxLineQuantity
	}
	return &Service{
		baskets: baskets,
		catalog: catalog,
		ledger:  ledger,
		ids:     ids,
		maxQty:  maxLineQty,
		now:     func() time.Time { return time.Now().UTC() },
		in:      application.NewInstrument(basketService, tel),
	}
}

type AddLineInput struct {
	Owner     dombasket.Owner
	ProductID string
	Quantity  int
}

type SetLineQuantityInput struct {
	Owner    dombasket.Owner
	LineID   string
	Quantity int
}

type RemoveLineInput struct {
	Owner  dombasket.Owner
	LineID string
}

// delta is the ledger movement one mutation needs.
type delta struct {
	productID string
	qty       int
}

func (s *Service) AddLine(ctx context.Context, cmd AddLineInput) (_ *dombasket.Basket, err error) {
	ctx, run := s.in.Start(ctx, useCaseAddLine, "AddLine",
		attribute.String("basket.product_id", cmd.ProductID),
	)
	defer func() { run.End(err) }()

	if err := cmd.Owner.Validate(); err != nil {
		run.Fail("OWNER_INVALID")
		return nil, fmt.Errorf("%w: %w", application.ErrValidation, err)
	}
	if cmd.ProductID == "" {
		run.Fail("PRODUCT_ID_REQUIRED")
		return nil, application.NewValidation("product id is required")
	}
	if cmd.Quantity < 1 || cmd.Quantity > s.maxQty {
		run.Fail("QUANTITY_INVALID")
		return nil, fmt.Errorf("%w: %w", application.ErrValidation, dombasket.ErrInvalidQuantity)
	}

	product, err := s.catalog.Get(ctx, cmd.ProductID)
	if err != nil {
		if errors.Is(err, dominv.ErrNotFound) {
			run.Fail("PRODUCT_NOT_FOUND")
		} else {
			run.Fail("CATALOG_LOOKUP_FAILED")
		}
		return nil, err
	}
	if !product.Available {
		run.Fail("PRODUCT_UNAVAILABLE")
		return nil, dominv.ErrUnavailable
	}

	return s.mutate(ctx, run, cmd.Owner, true, func(b *dombasket.Basket) (delta, error) {
		if i, ok := b.ProductIndex(product.ID); ok {
			next := b.Lines[i].Quantity + cmd.Quantity
			if next > s.maxQty {
				return delta{}, fmt.Errorf("%w: %w", application.ErrValidation, dombasket.ErrInvalidQuantity)
			}
			b.Lines[i].Quantity = next
		} else {
			b.Lines = append(b.Lines, dombasket.Line{
				ID:        s.ids.NewID(),
				ProductID: product.ID,
				Name:      product.Name,
				Size:      product.Size,
				Quantity:  cmd.Quantity,
				UnitPrice: product.UnitPrice,
			})
		}
		return delta{productID: product.ID, qty: cmd.Quantity}, nil
	})
}

// SetLineQuantity sets an absolute quantity; zero removes the line.
func (s *Service) SetLineQuantity(ctx context.Context, cmd SetLineQuantityInput) (_ *dombasket.Basket, err error) {
	ctx, run := s.in.Start(ctx, useCaseSetQuantity, "SetLineQuantity",
		attribute.String("basket.line_id", cmd.LineID),
	)
	defer func() { run.End(err) }()

	if err := cmd.Owner.Validate(); err != nil {
		run.Fail("OWNER_INVALID")
		return nil, fmt.Errorf("%w: %w", application.ErrValidation, err)
	}
	if cmd.Quantity < 0 || cmd.Quantity > s.maxQty {
		run.Fail("QUANTITY_INVALID")
		return nil, fmt.Errorf("%w: %w", application.ErrValidation, dombasket.ErrInvalidQuantity)
	}

	return s.mutate(ctx, run, cmd.Owner, false, func(b *dombasket.Basket) (delta, error) {
		i, ok := b.LineIndex(cmd.LineID)
		if !ok {
			return delta{}, dombasket.ErrLineNotFound
		}
		line := b.Lines[i]
		if cmd.Quantity == 0 {
			b.RemoveAt(i)
		} else {
			b.Lines[i].Quantity = cmd.Quantity
		}
		return delta{productID: line.ProductID, qty: cmd.Quantity - line.Quantity}, nil
	})
}

func (s *Service) RemoveLine(ctx context.Context, cmd RemoveLineInput) (_ *dombasket.Basket, err error) {
	ctx, run := s.in.Start(ctx, useCaseRemoveLine, "RemoveLine",
		attribute.String("basket.line_id", cmd.LineID),
	)
	defer func() { run.End(err) }()

	if err := cmd.Owner.Validate(); err != nil {
		run.Fail("OWNER_INVALID")
		return nil, fmt.Errorf("%w: %w", application.ErrValidation, err)
	}

	return s.mutate(ctx, run, cmd.Owner, false, func(b *dombasket.Basket) (delta, error) {
		i, ok := b.LineIndex(cmd.LineID)
		if !ok {
			return delta{}, dombasket.ErrLineNotFound
		}
		line := b.Lines[i]
		b.RemoveAt(i)
		return delta{productID: line.ProductID, qty: -line.Quantity}, nil
	})
}

// Snapshot returns the owner's lines and subtotal. An owner without a basket gets an empty one.
func (s *Service) Snapshot(ctx context.Context, owner dombasket.Owner) (_ dombasket.Snapshot, err error) {
	ctx, run := s.in.Start(ctx, useCaseSnapshot, "Snapshot")
	defer func() { run.End(err) }()

	if err := owner.Validate(); err != nil {
		run.Fail("OWNER_INVALID")
		return dombasket.Snapshot{}, fmt.Errorf("%w: %w", application.ErrValidation, err)
	}
	b, err := s.baskets.FindByOwner(ctx, owner)
	if errors.Is(err, dombasket.ErrNotFound) {
		run.Status = "EMPTY"
		return dombasket.Snapshot{}, nil
	}
	if err != nil {
		run.Fail("BASKET_LOAD_FAILED")
		return dombasket.Snapshot{}, err
	}
	return b.Snapshot(), nil
}

// mutate loads the basket, applies fn to a copy, moves the ledger by the resulting delta
// and saves. A lost version race undoes the ledger move and starts over.
func (s *Service) mutate(
	ctx context.Context,
	run *application.Run,
	owner dombasket.Owner,
	create bool,
	fn func(b *dombasket.Basket) (delta, error),
) (*dombasket.Basket, error) {
	for attempt := 1; ; attempt++ {
		cur, err := s.baskets.FindByOwner(ctx, owner)
		switch {
		case errors.Is(err, dombasket.ErrNotFound) && create:
			cur = dombasket.New(s.ids.NewID(), owner, s.now())
		case errors.Is(err, dombasket.ErrNotFound):
			run.Fail("BASKET_NOT_FOUND")
			return nil, err
		case err != nil:
			run.Fail("BASKET_LOAD_FAILED")
			return nil, err
		}

		next := cur.Clone()
		d, err := fn(next)
		if err != nil {
			switch {
			case errors.Is(err, dombasket.ErrLineNotFound):
				run.Fail("LINE_NOT_FOUND")
			case errors.Is(err, application.ErrValidation):
				run.Fail("QUANTITY_INVALID")
			default:
				run.Fail("MUTATION_REJECTED")
			}
			return nil, err
		}
		if d.qty == 0 {
			run.Status = "UNCHANGED"
			return cur, nil
		}

		if err := s.move(ctx, run, d); err != nil {
			return nil, err
		}

		next.Recompute(s.now())
		saveErr := s.baskets.Save(ctx, next)
		if saveErr == nil {
			run.With(
				observability.F("basket_id", next.ID),
				observability.F("basket_version", next.Version),
				observability.F("delta", d.qty),
			)
			return next, nil
		}

		s.compensate(ctx, run, d)
		if errors.Is(saveErr, dombasket.ErrConflict) && attempt < saveAttempts {
			run.Event("basket.version_conflict", "basket.id", cur.ID)
			continue
		}
		if errors.Is(saveErr, dombasket.ErrConflict) {
			run.Fail("BASKET_CONFLICT")
		} else {
			run.Fail("BASKET_SAVE_FAILED")
		}
		return nil, saveErr
	}
}

func (s *Service) move(ctx context.Context, run *application.Run, d delta) error {
	if d.qty > 0 {
		if err := s.ledger.Reserve(ctx, d.productID, d.qty); err != nil {
			if errors.Is(err, dominv.ErrInsufficientStock) {
				run.Fail("INSUFFICIENT_STOCK")
			} else {
				run.Fail("LEDGER_RESERVE_FAILED")
			}
			return err
		}
		return nil
	}
	err := s.ledger.Release(ctx, d.productID, -d.qty)
	if errors.Is(err, dominv.ErrOverRelease) {
		// The ledger already holds fewer units than the line; lowering the line is still right.
		run.Logger().Warn("ledger_over_release",
			observability.F("product_id", d.productID),
			observability.F("quantity", -d.qty),
		)
		return nil
	}
	if err != nil {
		run.Fail("LEDGER_RELEASE_FAILED")
	}
	return err
}

func (s *Service) compensate(ctx context.Context, run *application.Run, d delta) {
	var err error
	if d.qty > 0 {
		err = s.ledger.Release(ctx, d.productID, d.qty)
	} else {
		err = s.ledger.Reserve(ctx, d.productID, -d.qty)
	}
	if err != nil {
		run.Logger().Error("ledger_compensation_failed",
			observability.F("product_id", d.productID),
			observability.F("delta", d.qty),
			observability.Err(err),
		)
	}
}
