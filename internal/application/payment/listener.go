package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThierryFotabong/feeya/internal/application"
	apporder "github.com/ThierryFotabong/feeya/internal/application/order"
	domorder "github.com/ThierryFotabong/feeya/internal/domain/order"
	dompay "github.com/ThierryFotabong/feeya/internal/domain/payment"
	"github.com/ThierryFotabong/feeya/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	listenerService    = "payment-listener"
	useCaseHandleEvent = "payment.handle_event"
)

// Outcome says what handling a provider event amounted to.
type Outcome string

const (
	OutcomeProcessed     Outcome = "processed"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeRefundPending Outcome = "refund_pending"
	OutcomeAnomaly       Outcome = "anomaly"
	OutcomeAudited       Outcome = "audited"
	OutcomeIgnored       Outcome = "ignored"
)

type ListenerDeps struct {
	Inbox        dompay.Inbox
	Audit        dompay.AuditLog
	Orders       OrderFinder
	Materializer Materializer
	Lifecycle    Lifecycle
	// Lock is optional; the inbox alone already makes handling idempotent.
	Lock EventLock
	IDs  application.IDGenerator
}

// Listener applies verified provider events. Each event id is handled to completion at
// most once; a failed attempt is left unmarked so the provider's redelivery retries it.
type Listener struct {
	ListenerDeps
	now       func() time.Time
	in        *application.Instrument
	anomalies observability.Counter // payment_anomalies_total{kind}
	webhooks  observability.Counter // payment_webhook_events_total{type,outcome}
}

func NewListener(deps ListenerDeps, tel observability.Observability) *Listener {
	in := application.NewInstrument(listenerService, tel)
	return &Listener{
		ListenerDeps: deps,
		now:          func() time.Time { return time.Now().UTC() },
		in:           in,
		anomalies:    in.Counter(observability.MPaymentAnomalies),
		webhooks:     in.Counter(observability.MWebhookEvents),
	}
}

func (l *Listener) Execute(ctx context.Context, ev dompay.Event) (outcome Outcome, err error) {
	ctx, run := l.in.Start(ctx, useCaseHandleEvent, "HandlePaymentEvent",
		attribute.String("payment.event_id", ev.ID),
		attribute.String("payment.event_type", string(ev.Type)),
		attribute.String("payment.intent_id", ev.IntentID),
	)
	defer func() {
		o := string(outcome)
		if err != nil {
			o = "error"
		}
		l.webhooks.Add(1,
			observability.L("type", string(ev.Type)),
			observability.L("outcome", o),
		)
		run.With(observability.F("event_outcome", o))
		run.End(err)
	}()

	if ev.ID == "" {
		run.Fail("EVENT_MALFORMED")
		return "", fmt.Errorf("%w: event id is required", dompay.ErrMalformedEvent)
	}
	if handled(ev.Type) && ev.IntentID == "" {
		run.Fail("EVENT_MALFORMED")
		return "", fmt.Errorf("%w: %s without intent id", dompay.ErrMalformedEvent, ev.Type)
	}

	done, err := l.Inbox.Processed(ctx, ev.ID)
	if err != nil {
		run.Fail("INBOX_READ_FAILED")
		return "", err
	}
	if done {
		run.Status = "ALREADY_PROCESSED"
		return OutcomeDuplicate, nil
	}

	if l.Lock != nil {
		ok, err := l.Lock.TryLock(ctx, ev.ID)
		if err != nil {
			run.Fail("LOCK_FAILED")
			return "", err
		}
		if !ok {
			run.Fail("EVENT_IN_FLIGHT")
			return "", ErrEventInFlight
		}
		defer func() {
			if uerr := l.Lock.Unlock(context.WithoutCancel(ctx), ev.ID); uerr != nil {
				run.Logger().Warn("event_unlock_failed", observability.Err(uerr))
			}
		}()
	}

	if _, err := l.Audit.Record(ctx, dompay.AuditEntry{
		ID:        l.IDs.NewID(),
		IntentID:  ev.IntentID,
		EventID:   ev.ID,
		Kind:      dompay.AuditProviderEvent,
		Detail:    string(ev.Type),
		CreatedAt: l.now(),
	}); err != nil {
		run.Fail("AUDIT_FAILED")
		return "", err
	}

	switch ev.Type {
	case dompay.EventSucceeded:
		outcome, err = l.succeeded(ctx, run, ev)
	case dompay.EventFailed:
		outcome, err = l.failed(ctx, run, ev, domorder.KindPaymentFailed)
	case dompay.EventCanceled:
		outcome, err = l.failed(ctx, run, ev, domorder.KindPaymentCanceled)
	case dompay.EventDisputeCreated:
		outcome, err = l.disputed(ctx, run, ev)
	default:
		run.Status = "UNSUPPORTED_EVENT"
		outcome = OutcomeIgnored
	}
	if err != nil {
		return "", err
	}

	if err := l.Inbox.MarkProcessed(ctx, ev.ID, ev.Type); err != nil {
		run.Fail("INBOX_WRITE_FAILED")
		return "", err
	}
	return outcome, nil
}

// handled lists the event types that act on an intent.
func handled(t dompay.EventType) bool {
	switch t {
	case dompay.EventSucceeded, dompay.EventFailed, dompay.EventCanceled, dompay.EventDisputeCreated:
		return true
	}
	return false
}

func (l *Listener) succeeded(ctx context.Context, run *application.Run, ev dompay.Event) (Outcome, error) {
	o, err := l.Materializer.Execute(ctx, ev.IntentID)
	switch {
	case err == nil:
		run.With(observability.F("order_id", o.ID))
		return OutcomeProcessed, nil
	case errors.Is(err, apporder.ErrAmountMismatch), errors.Is(err, apporder.ErrSnapshotMissing):
		// Audited as an anomaly and queued for refund; redelivery cannot change the outcome.
		run.Status = "ANOMALY"
		return OutcomeAnomaly, nil
	case errors.Is(err, apporder.ErrRefundRequired):
		run.Status = "REFUND_PENDING"
		return OutcomeRefundPending, nil
	case errors.Is(err, apporder.ErrPaymentNotSucceeded):
		run.Fail("PAYMENT_NOT_SUCCEEDED")
		return "", err
	default:
		run.Fail("MATERIALIZE_FAILED")
		return "", err
	}
}

func (l *Listener) failed(ctx context.Context, run *application.Run, ev dompay.Event, kind domorder.EventKind) (Outcome, error) {
	o, err := l.Orders.FindByPaymentIntent(ctx, ev.IntentID)
	if errors.Is(err, domorder.ErrNotFound) {
		run.Status = "NO_ORDER"
		return OutcomeAudited, nil
	}
	if err != nil {
		run.Fail("ORDER_LOOKUP_FAILED")
		return "", err
	}

	if o.PaymentStatus == domorder.PaymentPaid {
		return l.anomaly(ctx, run, ev, o, "failure_after_paid")
	}

	_, err = l.Lifecycle.Apply(ctx, o.ID, kind, ev.ID, map[string]string{"intent": ev.IntentID})
	if errors.Is(err, domorder.ErrPaymentConflict) {
		// The order was paid between the lookup and the append.
		return l.anomaly(ctx, run, ev, o, "failure_after_paid")
	}
	if err != nil {
		run.Fail("ORDER_CANCEL_FAILED")
		return "", err
	}
	run.With(observability.F("order_id", o.ID))
	return OutcomeProcessed, nil
}

func (l *Listener) disputed(ctx context.Context, run *application.Run, ev dompay.Event) (Outcome, error) {
	o, err := l.Orders.FindByPaymentIntent(ctx, ev.IntentID)
	if errors.Is(err, domorder.ErrNotFound) {
		run.Status = "NO_ORDER"
		return OutcomeAudited, nil
	}
	if err != nil {
		run.Fail("ORDER_LOOKUP_FAILED")
		return "", err
	}
	if _, err := l.Lifecycle.Apply(ctx, o.ID, domorder.KindDisputeCreated, ev.ID, map[string]string{"intent": ev.IntentID}); err != nil {
		run.Fail("DISPUTE_APPEND_FAILED")
		return "", err
	}
	run.With(observability.F("order_id", o.ID))
	return OutcomeProcessed, nil
}

// anomaly flags a paid order that the provider now reports as failed. Nothing is
// cancelled automatically; an operator has to look.
func (l *Listener) anomaly(ctx context.Context, run *application.Run, ev dompay.Event, o *domorder.Order, kind string) (Outcome, error) {
	run.Status = "ANOMALY"
	l.anomalies.Add(1, observability.L("kind", kind))
	run.Logger().Error("payment_anomaly",
		observability.F("kind", kind),
		observability.F("event_id", ev.ID),
		observability.F("event_type", string(ev.Type)),
		observability.F("intent_id", ev.IntentID),
		observability.F("order_id", o.ID),
	)
	if _, err := l.Audit.Record(ctx, dompay.AuditEntry{
		ID:        l.IDs.NewID(),
		IntentID:  ev.IntentID,
		EventID:   ev.ID,
		Kind:      dompay.AuditAnomaly,
		OrderID:   o.ID,
		Detail:    kind + ": " + string(ev.Type) + " on " + string(o.PaymentStatus) + " order",
		CreatedAt: l.now(),
	}); err != nil {
		run.Fail("AUDIT_FAILED")
		return "", err
	}
	return OutcomeAnomaly, nil
}
