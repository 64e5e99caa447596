package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThierryFotabong/feeya/internal/application"
	domorder "github.com/ThierryFotabong/feeya/internal/domain/order"
	domoutbox "github.com/ThierryFotabong/feeya/internal/domain/outbox"
	"github.com/ThierryFotabong/feeya/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseAdvance    = "order.advance"
	useCaseApplyEvent = "order.apply_event"
	useCaseTrack      = "order.track"
	useCaseStatus     = "order.status"

	appendTries = 2
)

// Lifecycle appends timeline events and moves the cached status with them.
type Lifecycle struct {
	orders    domorder.Repository
	publisher domoutbox.Publisher
	cache     StatusCache
	ids       application.IDGenerator
	now       func() time.Time
	in        *application.Instrument
	drift     observability.Counter // order_status_drift_total{field}
}

// NewLifecycle wires the lifecycle. cache may be nil, in which case status reads go to the store.
func NewLifecycle(
	orders domorder.Repository,
	publisher domoutbox.Publisher,
	cache StatusCache,
	ids application.IDGenerator,
	tel observability.Observability,
) *Lifecycle {
	in := application.NewInstrument(orderService, tel)
	return &Lifecycle{
		orders:    orders,
		publisher: publisher,
		cache:     cache,
		ids:       ids,
		now:       func() time.Time { return time.Now().UTC() },
		in:        in,
		drift:     in.Counter(observability.MOrderStatusDrift),
	}
}

type AdvanceInput struct {
	OrderID string
	Target  domorder.Status
	Actor   string
}

// Advance is the operator signal that moves an order through fulfilment.
func (l *Lifecycle) Advance(ctx context.Context, cmd AdvanceInput) (_ *domorder.Order, err error) {
	ctx, run := l.in.Start(ctx, useCaseAdvance, "Advance",
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.target", string(cmd.Target)),
	)
	defer func() { run.End(err) }()

	if cmd.OrderID == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, application.NewValidation("order id is required")
	}
	if cmd.Actor == "" {
		run.Fail("ACTOR_REQUIRED")
		return nil, application.NewValidation("actor is required")
	}
	kind, ok := domorder.KindForStatus(cmd.Target)
	if !ok {
		run.Fail("TARGET_INVALID")
		return nil, application.NewValidation(fmt.Sprintf("cannot move an order to %q", cmd.Target))
	}

	o, err := l.append(ctx, run, cmd.OrderID, kind, "operator:"+cmd.Actor, map[string]string{"actor": cmd.Actor})
	if err != nil {
		return nil, err
	}
	run.With(observability.F("status", string(o.Status)))
	return o, nil
}

// Apply records a system event such as a provider payment failure. cause makes it idempotent.
func (l *Lifecycle) Apply(ctx context.Context, orderID string, kind domorder.EventKind, cause string, meta map[string]string) (_ *domorder.Order, err error) {
	ctx, run := l.in.Start(ctx, useCaseApplyEvent, "ApplyEvent",
		attribute.String("order.id", orderID),
		attribute.String("order.event_kind", string(kind)),
	)
	defer func() { run.End(err) }()

	if orderID == "" || cause == "" {
		run.Fail("EVENT_INVALID")
		return nil, application.NewValidation("order id and cause are required")
	}
	return l.append(ctx, run, orderID, kind, cause, meta)
}

func (l *Lifecycle) append(ctx context.Context, run *application.Run, orderID string, kind domorder.EventKind, cause string, meta map[string]string) (*domorder.Order, error) {
	for attempt := 1; ; attempt++ {
		o, err := l.orders.Get(ctx, orderID)
		if err != nil {
			if errors.Is(err, domorder.ErrNotFound) {
				run.Fail("ORDER_NOT_FOUND")
			} else {
				run.Fail("ORDER_LOAD_FAILED")
			}
			return nil, err
		}

		t, err := o.Plan(domorder.Event{
			ID:         l.ids.NewID(),
			Kind:       kind,
			Cause:      cause,
			Metadata:   meta,
			OccurredAt: l.now(),
		})
		if err != nil {
			// A replay of an already applied event is judged against the new status and
			// would look illegal; the log tells the two apart.
			if dup, derr := l.recorded(ctx, orderID, kind, cause); derr == nil && dup {
				run.Status = "ALREADY_APPLIED"
				return o, nil
			}
			switch {
			case errors.Is(err, domorder.ErrPaymentConflict):
				run.Fail("PAYMENT_CONFLICT")
			default:
				run.Fail("INVALID_TRANSITION")
			}
			return nil, err
		}

		err = l.orders.Append(ctx, o, t)
		switch {
		case err == nil:
			l.published(ctx, run, o, kind)
			return o, nil
		case errors.Is(err, domorder.ErrDuplicateEvent):
			run.Status = "ALREADY_APPLIED"
			return l.orders.Get(ctx, orderID)
		case errors.Is(err, domorder.ErrConflict) && attempt < appendTries:
			run.Event("order.status_conflict", "order.id", orderID)
			continue
		case errors.Is(err, domorder.ErrConflict):
			run.Fail("STATUS_CONFLICT")
			return nil, err
		default:
			run.Fail("APPEND_FAILED")
			return nil, fmt.Errorf("order: append %s: %w", kind, err)
		}
	}
}

func (l *Lifecycle) recorded(ctx context.Context, orderID string, kind domorder.EventKind, cause string) (bool, error) {
	events, err := l.orders.Events(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, ev := range events {
		if ev.Kind == kind && ev.Cause == cause {
			return true, nil
		}
	}
	return false, nil
}

func (l *Lifecycle) published(ctx context.Context, run *application.Run, o *domorder.Order, kind domorder.EventKind) {
	run.Span().SetAttributes(attribute.String("order.status", string(o.Status)))
	if err := l.in.Publish(ctx, l.publisher, domorder.NewStatusChangedEvent(o, kind)); err != nil {
		run.Status = "EVENT_PUBLISH_FAILED"
		run.Logger().Warn("event_publish_failed",
			observability.F("event", domorder.StatusChangedEvent{}.EventName()),
			observability.F("order_id", o.ID),
			observability.Err(err),
		)
	}
}

type Tracking struct {
	Order  *domorder.Order
	Events []domorder.Event
}

// Track returns an order and its timeline to the customer who placed it.
func (l *Lifecycle) Track(ctx context.Context, customerID, orderID string) (_ *Tracking, err error) {
	ctx, run := l.in.Start(ctx, useCaseTrack, "Track", attribute.String("order.id", orderID))
	defer func() { run.End(err) }()

	o, err := l.orders.Get(ctx, orderID)
	if err != nil {
		run.Fail("ORDER_LOAD_FAILED")
		return nil, err
	}
	if o.CustomerID != customerID {
		run.Fail("ORDER_NOT_OWNED")
		return nil, domorder.ErrNotFound
	}
	events, err := l.orders.Events(ctx, orderID)
	if err != nil {
		run.Fail("EVENTS_LOAD_FAILED")
		return nil, err
	}
	l.settle(run, o, events)
	return &Tracking{Order: o, Events: events}, nil
}

// settle replaces o's cached status with the one folded from its log when they differ.
func (l *Lifecycle) settle(run *application.Run, o *domorder.Order, events []domorder.Event) {
	st, pay, err := domorder.Fold(events)
	if err != nil {
		run.Logger().Error("order_log_unfoldable",
			observability.F("order_id", o.ID),
			observability.Err(err),
		)
		return
	}
	if st == o.Status && pay == o.PaymentStatus {
		return
	}
	if st != o.Status {
		l.drift.Add(1, observability.L("field", "status"))
	}
	if pay != o.PaymentStatus {
		l.drift.Add(1, observability.L("field", "payment_status"))
	}
	run.Logger().Warn("order_status_drift",
		observability.F("order_id", o.ID),
		observability.F("cached_status", string(o.Status)),
		observability.F("folded_status", string(st)),
		observability.F("cached_payment_status", string(o.PaymentStatus)),
		observability.F("folded_payment_status", string(pay)),
	)
	o.Status, o.PaymentStatus = st, pay
}

// Status serves polling from the cache and fills it on a miss.
func (l *Lifecycle) Status(ctx context.Context, customerID, orderID string) (_ StatusView, err error) {
	ctx, run := l.in.Start(ctx, useCaseStatus, "Status", attribute.String("order.id", orderID))
	defer func() { run.End(err) }()

	if l.cache != nil {
		v, cerr := l.cache.Get(ctx, orderID)
		switch {
		case cerr == nil:
			if v.CustomerID != customerID {
				run.Fail("ORDER_NOT_OWNED")
				return StatusView{}, domorder.ErrNotFound
			}
			run.Status = "CACHE_HIT"
			return v, nil
		case !errors.Is(cerr, ErrCacheMiss):
			run.Logger().Warn("status_cache_read_failed", observability.Err(cerr))
		}
	}

	o, err := l.orders.Get(ctx, orderID)
	if err != nil {
		run.Fail("ORDER_LOAD_FAILED")
		return StatusView{}, err
	}
	if o.CustomerID != customerID {
		run.Fail("ORDER_NOT_OWNED")
		return StatusView{}, domorder.ErrNotFound
	}
	events, err := l.orders.Events(ctx, orderID)
	if err != nil {
		run.Fail("EVENTS_LOAD_FAILED")
		return StatusView{}, err
	}
	l.settle(run, o, events)
	v := ViewOf(o)
	if l.cache != nil {
		if perr := l.cache.Put(ctx, v); perr != nil {
			run.Logger().Warn("status_cache_write_failed", observability.Err(perr))
		}
	}
	return v, nil
}
