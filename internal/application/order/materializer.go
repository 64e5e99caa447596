package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ThierryFotabong/feeya/internal/application"
	dombasket "github.com/ThierryFotabong/feeya/internal/domain/basket"
	domcheckout "github.com/ThierryFotabong/feeya/internal/domain/checkout"
	dominv "github.com/ThierryFotabong/feeya/internal/domain/inventory"
	domorder "github.com/ThierryFotabong/feeya/internal/domain/order"
	domoutbox "github.com/ThierryFotabong/feeya/internal/domain/outbox"
	"github.com/ThierryFotabong/feeya/internal/domain/payment"
	"github.com/ThierryFotabong/feeya/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	orderService       = "order-service"
	useCaseMaterialize = "order.materialize"
	providerPeer       = "payment_provider"
	materializeTries   = 3
)

var (
	ErrPaymentNotSucceeded          = errors.New("order: payment not succeeded yet")
	ErrSnapshotMissing              = errors.New("order: checkout snapshot missing")
	ErrAmountMismatch               = errors.New("order: paid amount differs from quoted total")
	ErrStockUnavailableAfterPayment = errors.New("order: stock unavailable after payment")
	// ErrRefundRequired is terminal: the intent was paid, will never get an order and
	// is waiting on a manual refund.
	ErrRefundRequired = errors.New("order: refund required for paid intent")
)

// StockUnavailableError means the customer paid but the order could not be filled.
// A refund_required audit entry exists for IntentID when it is returned.
type StockUnavailableError struct {
	IntentID string
	Cause    error
}

func (e *StockUnavailableError) Error() string {
	return fmt.Sprintf("order: stock unavailable after payment for %s: %v", e.IntentID, e.Cause)
}

func (e *StockUnavailableError) Unwrap() error { return e.Cause }

func (e *StockUnavailableError) Is(target error) bool {
	return target == ErrStockUnavailableAfterPayment || target == ErrRefundRequired
}

type MaterializerDeps struct {
	Orders    domorder.Repository
	Provider  payment.Provider
	Snapshots domcheckout.Repository
	Baskets   dombasket.Repository
	Catalog   dominv.Catalog
	Audit     payment.AuditLog
	Publisher domoutbox.Publisher
	IDs       application.IDGenerator
	Numbers   NumberGenerator
}

// Materializer converts a succeeded payment intent into exactly one order, no matter
// how many completion signals arrive or in which order.
type Materializer struct {
	MaterializerDeps
	now       func() time.Time
	in        *application.Instrument
	anomalies observability.Counter // payment_anomalies_total{kind}
}

func NewMaterializer(deps MaterializerDeps, tel observability.Observability) *Materializer {
	in := application.NewInstrument(orderService, tel)
	return &Materializer{
		MaterializerDeps: deps,
		now:              func() time.Time { return time.Now().UTC() },
		in:               in,
		anomalies:        in.Counter(observability.MPaymentAnomalies),
	}
}

// Execute returns the order for intentID, creating it if this is the first signal.
func (m *Materializer) Execute(ctx context.Context, intentID string) (_ *domorder.Order, err error) {
	ctx, run := m.in.Start(ctx, useCaseMaterialize, "Materialize",
		attribute.String("payment.intent_id", intentID),
	)
	defer func() { run.End(err) }()

	if intentID == "" {
		run.Fail("INTENT_ID_REQUIRED")
		return nil, application.NewValidation("payment intent id is required")
	}

	if o, found, err := m.lookup(ctx, intentID); err != nil {
		run.Fail("ORDER_LOOKUP_FAILED")
		return nil, err
	} else if found {
		run.Status = "ALREADY_MATERIALIZED"
		run.With(observability.F("order_id", o.ID))
		return o, nil
	}

	if pending, err := m.refundPending(ctx, intentID); err != nil {
		run.Fail("AUDIT_LOOKUP_FAILED")
		return nil, err
	} else if pending != nil {
		run.Status = "REFUND_ALREADY_REQUIRED"
		return nil, fmt.Errorf("%w: %s: %s", ErrRefundRequired, intentID, pending.Detail)
	}

	start := time.Now()
	intent, err := m.Provider.RetrieveIntent(ctx, intentID)
	m.in.External(providerPeer, "retrieve_intent", start, err)
	if err != nil {
		run.Fail("PROVIDER_RETRIEVE_FAILED")
		return nil, err
	}
	if intent.Status != payment.StatusSucceeded {
		run.Fail("PAYMENT_NOT_SUCCEEDED")
		return nil, fmt.Errorf("%w: intent %s is %s", ErrPaymentNotSucceeded, intentID, intent.Status)
	}

	snap, err := m.Snapshots.Get(ctx, intentID)
	if errors.Is(err, domcheckout.ErrNotFound) {
		run.Fail("SNAPSHOT_MISSING")
		m.anomaly(ctx, run, intentID, "snapshot_missing",
			fmt.Sprintf("succeeded intent for basket %s has no checkout snapshot", intent.Metadata.BasketID))
		cause := fmt.Errorf("%w: %s", ErrSnapshotMissing, intentID)
		m.refund(ctx, run, intent, intent.Metadata.CustomerID, cause)
		return nil, fmt.Errorf("%w: %w", ErrRefundRequired, cause)
	}
	if err != nil {
		run.Fail("SNAPSHOT_LOOKUP_FAILED")
		return nil, err
	}
	if intent.Amount != snap.Total {
		run.Fail("AMOUNT_MISMATCH")
		m.anomaly(ctx, run, intentID, "amount_mismatch",
			fmt.Sprintf("intent amount %d, snapshot total %d", intent.Amount, snap.Total))
		cause := fmt.Errorf("%w: intent %d, snapshot %d", ErrAmountMismatch, intent.Amount, snap.Total)
		m.refund(ctx, run, intent, snap.CustomerID, cause)
		return nil, fmt.Errorf("%w: %w", ErrRefundRequired, cause)
	}

	if err := m.checkSellable(ctx, snap); err != nil {
		if errors.Is(err, dominv.ErrUnavailable) || errors.Is(err, dominv.ErrNotFound) {
			run.Fail("STOCK_UNAVAILABLE_AFTER_PAYMENT")
			m.refund(ctx, run, intent, snap.CustomerID, err)
			return nil, &StockUnavailableError{IntentID: intent.ID, Cause: err}
		}
		run.Fail("CATALOG_LOOKUP_FAILED")
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		mat, err := m.plan(ctx, snap)
		if err != nil {
			run.Fail("PLAN_FAILED")
			return nil, err
		}

		err = m.Orders.Materialize(ctx, mat)
		switch {
		case err == nil:
			o := mat.Order
			run.Span().SetAttributes(attribute.String("order.id", o.ID))
			run.With(
				observability.F("order_id", o.ID),
				observability.F("order_number", o.Number),
				observability.F("attempts", attempt),
			)
			if perr := m.in.Publish(ctx, m.Publisher, domorder.NewConfirmedEvent(o)); perr != nil {
				run.Status = "EVENT_PUBLISH_FAILED"
				run.Logger().Warn("event_publish_failed",
					observability.F("event", domorder.ConfirmedEvent{}.EventName()),
					observability.F("order_id", o.ID),
					observability.Err(perr),
				)
			}
			return o.Clone(), nil

		case errors.Is(err, domorder.ErrDuplicate):
			o, found, lerr := m.lookup(ctx, intentID)
			if lerr != nil || !found {
				run.Fail("DUPLICATE_LOOKUP_FAILED")
				return nil, fmt.Errorf("order: reload after duplicate: %w", errors.Join(err, lerr))
			}
			run.Status = "CONCURRENT_MATERIALIZATION"
			run.Event("order.duplicate_swallowed", "order.id", o.ID)
			return o, nil

		case errors.Is(err, dominv.ErrInsufficientStock):
			run.Fail("STOCK_UNAVAILABLE_AFTER_PAYMENT")
			m.refund(ctx, run, intent, snap.CustomerID, err)
			return nil, &StockUnavailableError{IntentID: intent.ID, Cause: err}

		case (errors.Is(err, dombasket.ErrConflict) || errors.Is(err, domorder.ErrDuplicateNumber)) && attempt < materializeTries:
			run.Event("order.materialize_retry", "reason", err.Error())
			continue

		default:
			run.Fail("MATERIALIZE_FAILED")
			return nil, fmt.Errorf("order: materialize %s: %w", intentID, err)
		}
	}
}

func (m *Materializer) lookup(ctx context.Context, intentID string) (*domorder.Order, bool, error) {
	o, err := m.Orders.FindByPaymentIntent(ctx, intentID)
	switch {
	case err == nil:
		return o, true, nil
	case errors.Is(err, domorder.ErrNotFound):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

func (m *Materializer) checkSellable(ctx context.Context, snap *domcheckout.Snapshot) error {
	for _, l := range snap.Lines {
		p, err := m.Catalog.Get(ctx, l.ProductID)
		if err != nil {
			return fmt.Errorf("%s: %w", l.ProductID, err)
		}
		if !p.Available {
			return fmt.Errorf("%s: %w", l.ProductID, dominv.ErrUnavailable)
		}
	}
	return nil
}

// plan builds the order from the snapshot and works out how the basket's reservations
// must move so the order ends up holding exactly its own units.
func (m *Materializer) plan(ctx context.Context, snap *domcheckout.Snapshot) (domorder.Materialization, error) {
	held := map[string]int{}
	var basketID string
	var version int
	if snap.BasketID != "" {
		b, err := m.Baskets.Get(ctx, snap.BasketID)
		switch {
		case err == nil:
			held, basketID, version = b.Quantities(), b.ID, b.Version
		case !errors.Is(err, dombasket.ErrNotFound):
			return domorder.Materialization{}, fmt.Errorf("order: load basket: %w", err)
		}
	}
	reserve, release := reconcile(snap.Quantities(), held)

	now := m.now()
	items := make([]domorder.Item, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		items = append(items, domorder.Item{
			ID:        m.IDs.NewID(),
			ProductID: l.ProductID,
			Name:      l.Name,
			Size:      l.Size,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	o, err := domorder.NewPaid(domorder.Order{
		ID:                  m.IDs.NewID(),
		Number:              m.Numbers.NewNumber(now),
		CustomerID:          snap.CustomerID,
		AddressID:           snap.AddressID,
		PaymentIntentID:     snap.IntentID,
		Subtotal:            snap.Subtotal,
		DeliveryFee:         snap.DeliveryFee,
		Total:               snap.Total,
		Currency:            snap.Currency,
		ETABand:             snap.ETABand,
		SubstitutionAllowed: snap.SubstitutionAllowed,
		Items:               items,
	}, now)
	if err != nil {
		return domorder.Materialization{}, err
	}

	return domorder.Materialization{
		Order: o,
		Event: domorder.Event{
			ID:         m.IDs.NewID(),
			OrderID:    o.ID,
			Kind:       domorder.KindConfirmed,
			Cause:      snap.IntentID,
			Metadata:   map[string]string{"number": o.Number},
			OccurredAt: now,
		},
		Reserve:       reserve,
		Release:       release,
		BasketID:      basketID,
		BasketVersion: version,
	}, nil
}

// reconcile diffs what the order needs against what the basket holds.
func reconcile(want, held map[string]int) (reserve, release []dominv.Adjustment) {
	ids := make([]string, 0, len(want)+len(held))
	seen := make(map[string]struct{}, len(want)+len(held))
	for _, set := range []map[string]int{want, held} {
		for id := range set {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		switch d := want[id] - held[id]; {
		case d > 0:
			reserve = append(reserve, dominv.Adjustment{ProductID: id, Quantity: d})
		case d < 0:
			release = append(release, dominv.Adjustment{ProductID: id, Quantity: -d})
		}
	}
	return reserve, release
}

// refundPending returns the refund_required entry for intentID, if one was written.
func (m *Materializer) refundPending(ctx context.Context, intentID string) (*payment.AuditEntry, error) {
	entries, err := m.Audit.ListByIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("order: read audit: %w", err)
	}
	for i := range entries {
		if entries[i].Kind == payment.AuditRefundRequired {
			return &entries[i], nil
		}
	}
	return nil, nil
}

// refund marks the intent as owed back to the customer. Only the call that writes the
// refund_required entry publishes the trigger.
func (m *Materializer) refund(ctx context.Context, run *application.Run, intent *payment.Intent, customerID string, cause error) {
	inserted, err := m.Audit.Record(ctx, payment.AuditEntry{
		ID:        m.IDs.NewID(),
		IntentID:  intent.ID,
		Kind:      payment.AuditRefundRequired,
		Detail:    cause.Error(),
		CreatedAt: m.now(),
	})
	if err != nil {
		run.Logger().Error("refund_audit_failed",
			observability.F("intent_id", intent.ID),
			observability.Err(err),
		)
	} else if !inserted {
		run.Event("order.refund_already_required", "payment.intent_id", intent.ID)
		return
	}
	run.Logger().Error("refund_required",
		observability.F("intent_id", intent.ID),
		observability.F("customer_id", customerID),
		observability.F("amount", intent.Amount),
		observability.F("reason", cause.Error()),
	)
	evt := payment.RefundRequiredEvent{
		IntentID:   intent.ID,
		CustomerID: customerID,
		Amount:     intent.Amount,
		Currency:   intent.Currency,
		Reason:     cause.Error(),
		OccurredAt: m.now(),
	}
	if err := m.in.Publish(ctx, m.Publisher, evt); err != nil {
		run.Logger().Warn("event_publish_failed",
			observability.F("event", evt.EventName()),
			observability.Err(err),
		)
	}
}

func (m *Materializer) anomaly(ctx context.Context, run *application.Run, intentID, kind, detail string) {
	m.anomalies.Add(1, observability.L("kind", kind))
	run.Logger().Error("payment_anomaly",
		observability.F("intent_id", intentID),
		observability.F("kind", kind),
		observability.F("detail", detail),
	)
	_, err := m.Audit.Record(ctx, payment.AuditEntry{
		ID:        m.IDs.NewID(),
		IntentID:  intentID,
		Kind:      payment.AuditAnomaly,
		Detail:    kind + ": " + detail,
		CreatedAt: m.now(),
	})
	if err != nil {
		run.Logger().Error("anomaly_audit_failed", observability.Err(err))
	}
}
