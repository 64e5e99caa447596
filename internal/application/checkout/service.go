package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ThierryFotabong/feeya/internal/application"
	domaddress "github.com/ThierryFotabong/feeya/internal/domain/address"
	dombasket "github.com/ThierryFotabong/feeya/internal/domain/basket"
	domcheckout "github.com/ThierryFotabong/feeya/internal/domain/checkout"
	"github.com/ThierryFotabong/feeya/internal/domain/delivery"
	dominv "github.com/ThierryFotabong/feeya/internal/domain/inventory"
	domorder "github.com/ThierryFotabong/feeya/internal/domain/order"
	"github.com/ThierryFotabong/feeya/internal/domain/payment"
	"github.com/ThierryFotabong/feeya/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	checkoutService     = "checkout-service"
	useCaseCreateIntent = "checkout.create_intent"
	useCaseIntentStatus = "checkout.intent_status"
	useCaseConfirm      = "checkout.confirm"
	providerPeer        = "payment_provider"
)

// Intent states reported to the confirmation screen.
const (
	StatePending       = "pending"
	StateProcessing    = "processing"
	StateOrderCreated  = "order_created"
	StateRefundPending = "refund_pending"
	StateFailed        = "failed"
)

type Quoter interface {
	Quote(postalCode string, subtotal int64, at time.Time) (delivery.Quote, error)
}

// Materializer turns a succeeded intent into its order.
type Materializer interface {
	Execute(ctx context.Context, intentID string) (*domorder.Order, error)
}

type Deps struct {
	Baskets      dombasket.Repository
	Catalog      dominv.Catalog
	Addresses    domaddress.Repository
	Pricer       Quoter
	Provider     payment.Provider
	Snapshots    domcheckout.Repository
	Orders       domorder.Repository
	Audit        payment.AuditLog
	Materializer Materializer
}

type Service struct {
	Deps
	currency string
	now      func() time.Time
	in       *application.Instrument
}

func NewService(deps Deps, currency string, tel observability.Observability) *Service {
	return &Service{
		Deps:     deps,
		currency: currency,
		now:      func() time.Time { return time.Now().UTC() },
		in:       application.NewInstrument(checkoutService, tel),
	}
}

type CreateIntentInput struct {
	CustomerID          string
	AddressID           string
	SubstitutionAllowed bool
}

type IntentResult struct {
	IntentID     string
	ClientSecret string
	Currency     string
	Quote        delivery.Quote
}

// CreateIntent validates the basket against stock and zone, opens a provider intent for the
// quoted total and stores the snapshot the order will later be built from.
func (s *Service) CreateIntent(ctx context.Context, cmd CreateIntentInput) (_ *IntentResult, err error) {
	ctx, run := s.in.Start(ctx, useCaseCreateIntent, "CreateIntent",
		attribute.String("checkout.customer_id", cmd.CustomerID),
	)
	defer func() { run.End(err) }()

	if cmd.CustomerID == "" {
		run.Fail("CUSTOMER_ID_REQUIRED")
		return nil, application.NewValidation("customer id is required")
	}
	if cmd.AddressID == "" {
		run.Fail("ADDRESS_ID_REQUIRED")
		return nil, application.NewValidation("address id is required")
	}

	b, err := s.Baskets.FindByOwner(ctx, dombasket.Owner{CustomerID: cmd.CustomerID})
	if errors.Is(err, dombasket.ErrNotFound) || (err == nil && b.IsEmpty()) {
		run.Fail("BASKET_EMPTY")
		return nil, dombasket.ErrEmpty
	}
	if err != nil {
		run.Fail("BASKET_LOAD_FAILED")
		return nil, err
	}

	addr, err := s.Addresses.Get(ctx, cmd.AddressID)
	if err != nil {
		run.Fail("ADDRESS_LOOKUP_FAILED")
		return nil, err
	}
	if addr.CustomerID != cmd.CustomerID {
		run.Fail("ADDRESS_NOT_OWNED")
		return nil, domaddress.ErrNotOwned
	}

	if err := s.checkLines(ctx, b); err != nil {
		var lpe *LineProblemsError
		if errors.As(err, &lpe) {
			run.Fail("LINES_REJECTED")
			run.With(observability.F("problems", len(lpe.Problems)))
		} else {
			run.Fail("CATALOG_LOOKUP_FAILED")
		}
		return nil, err
	}

	quote, err := s.Pricer.Quote(addr.PostalCode, b.Subtotal, s.now())
	if err != nil {
		if errors.Is(err, delivery.ErrZoneNotServed) {
			run.Fail("ZONE_NOT_SERVED")
		} else {
			run.Fail("QUOTE_FAILED")
		}
		return nil, err
	}

	meta := payment.Metadata{
		BasketID:            b.ID,
		CustomerID:          cmd.CustomerID,
		AddressID:           addr.ID,
		SubstitutionAllowed: cmd.SubstitutionAllowed,
	}
	start := time.Now()
	intent, err := s.Provider.CreateIntent(ctx, payment.CreateIntentRequest{
		Amount:         quote.Total,
		Currency:       s.currency,
		Metadata:       meta,
		IdempotencyKey: b.ID + ":" + strconv.Itoa(b.Version) + ":" + strconv.FormatInt(quote.Total, 10),
	})
	s.in.External(providerPeer, "create_intent", start, err)
	if err != nil {
		run.Fail("PROVIDER_CREATE_FAILED")
		return nil, fmt.Errorf("%w: create intent: %w", payment.ErrProvider, err)
	}
	run.Span().SetAttributes(attribute.String("payment.intent_id", intent.ID))

	snap := &domcheckout.Snapshot{
		IntentID:            intent.ID,
		BasketID:            b.ID,
		BasketVersion:       b.Version,
		CustomerID:          cmd.CustomerID,
		AddressID:           addr.ID,
		PostalCode:          delivery.NormalizePostalCode(addr.PostalCode),
		SubstitutionAllowed: cmd.SubstitutionAllowed,
		Lines:               append([]dombasket.Line(nil), b.Lines...),
		Subtotal:            quote.Subtotal,
		DeliveryFee:         quote.Fee,
		Total:               quote.Total,
		Currency:            s.currency,
		Zone:                quote.Zone,
		ETABand:             quote.ETABand,
		CreatedAt:           s.now(),
	}
	if err := s.Snapshots.Save(ctx, snap); err != nil {
		run.Fail("SNAPSHOT_SAVE_FAILED")
		return nil, fmt.Errorf("checkout: save snapshot: %w", err)
	}

	run.With(
		observability.F("intent_id", intent.ID),
		observability.F("basket_id", b.ID),
		observability.F("total", quote.Total),
	)
	return &IntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Currency:     s.currency,
		Quote:        quote,
	}, nil
}

// checkLines reports every line whose product vanished, went off sale, or is no longer
// backed by the ledger.
func (s *Service) checkLines(ctx context.Context, b *dombasket.Basket) error {
	var problems []LineProblem
	for _, l := range b.Lines {
		p, err := s.Catalog.Get(ctx, l.ProductID)
		switch {
		case errors.Is(err, dominv.ErrNotFound):
			problems = append(problems, LineProblem{LineID: l.ID, ProductID: l.ProductID, Reason: ReasonNotFound})
			continue
		case err != nil:
			return err
		}
		if !p.Available {
			problems = append(problems, LineProblem{LineID: l.ID, ProductID: l.ProductID, Reason: ReasonUnavailable})
			continue
		}
		// Basket units are held in Reserved; less than the line means the hold was
		// written off or released behind the basket.
		if p.Reserved < l.Quantity {
			problems = append(problems, LineProblem{
				LineID:    l.ID,
				ProductID: l.ProductID,
				Reason:    ReasonInsufficientStock,
				Available: p.Capacity(),
			})
		}
	}
	if len(problems) > 0 {
		return &LineProblemsError{Problems: problems}
	}
	return nil
}

type IntentStatusResult struct {
	IntentID    string
	State       string
	OrderID     string
	OrderNumber string
}

// IntentStatus tells the confirmation screen where a payment stands.
func (s *Service) IntentStatus(ctx context.Context, customerID, intentID string) (_ *IntentStatusResult, err error) {
	ctx, run := s.in.Start(ctx, useCaseIntentStatus, "IntentStatus",
		attribute.String("payment.intent_id", intentID),
	)
	defer func() { run.End(err) }()

	if err := s.authorize(ctx, run, customerID, intentID); err != nil {
		return nil, err
	}
	res := &IntentStatusResult{IntentID: intentID}

	o, err := s.Orders.FindByPaymentIntent(ctx, intentID)
	switch {
	case err == nil:
		res.State, res.OrderID, res.OrderNumber = StateOrderCreated, o.ID, o.Number
		run.Status = res.State
		return res, nil
	case !errors.Is(err, domorder.ErrNotFound):
		run.Fail("ORDER_LOOKUP_FAILED")
		return nil, err
	}

	entries, err := s.Audit.ListByIntent(ctx, intentID)
	if err != nil {
		run.Fail("AUDIT_LOOKUP_FAILED")
		return nil, err
	}
	for _, e := range entries {
		if e.Kind == payment.AuditRefundRequired {
			res.State = StateRefundPending
			run.Status = res.State
			return res, nil
		}
	}

	start := time.Now()
	intent, err := s.Provider.RetrieveIntent(ctx, intentID)
	s.in.External(providerPeer, "retrieve_intent", start, err)
	if err != nil {
		run.Fail("PROVIDER_RETRIEVE_FAILED")
		return nil, err
	}
	switch intent.Status {
	case payment.StatusSucceeded:
		res.State = StateProcessing
	case payment.StatusCanceled:
		res.State = StateFailed
	default:
		res.State = StatePending
	}
	run.Status = res.State
	return res, nil
}

// Confirm is the synchronous completion signal from the client after the provider
// reports success. It races the webhook and both converge on one order.
func (s *Service) Confirm(ctx context.Context, customerID, intentID string) (_ *domorder.Order, err error) {
	ctx, run := s.in.Start(ctx, useCaseConfirm, "Confirm",
		attribute.String("payment.intent_id", intentID),
	)
	defer func() { run.End(err) }()

	if err := s.authorize(ctx, run, customerID, intentID); err != nil {
		return nil, err
	}
	o, err := s.Materializer.Execute(ctx, intentID)
	if err != nil {
		run.Fail("MATERIALIZE_FAILED")
		return nil, err
	}
	run.With(observability.F("order_id", o.ID))
	return o, nil
}

func (s *Service) authorize(ctx context.Context, run *application.Run, customerID, intentID string) error {
	if intentID == "" {
		run.Fail("INTENT_ID_REQUIRED")
		return application.NewValidation("intent id is required")
	}
	var owner string
	snap, err := s.Snapshots.Get(ctx, intentID)
	switch {
	case err == nil:
		owner = snap.CustomerID
	case errors.Is(err, domcheckout.ErrNotFound):
		// A paid intent can lose its snapshot; the provider metadata still names the buyer.
		start := time.Now()
		intent, ierr := s.Provider.RetrieveIntent(ctx, intentID)
		s.in.External(providerPeer, "retrieve_intent", start, ierr)
		if errors.Is(ierr, payment.ErrIntentNotFound) {
			run.Fail("INTENT_NOT_FOUND")
			return err
		}
		if ierr != nil {
			run.Fail("PROVIDER_RETRIEVE_FAILED")
			return ierr
		}
		if intent.Metadata.CustomerID == "" {
			run.Fail("INTENT_NOT_FOUND")
			return err
		}
		owner = intent.Metadata.CustomerID
	default:
		run.Fail("SNAPSHOT_LOOKUP_FAILED")
		return err
	}
	if owner != customerID {
		run.Fail("INTENT_NOT_OWNED")
		return ErrNotOwned
	}
	return nil
}
