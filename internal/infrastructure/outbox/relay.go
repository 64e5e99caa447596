package outbox

import (
	"context"
	"time"

	domoutbox "github.com/ThierryFotabong/feeya/internal/domain/outbox"
	"github.com/ThierryFotabong/feeya/internal/observability"
	"github.com/ThierryFotabong/feeya/internal/observability/logctx"
)

const relayPeer = "broker"

// Relay forwards selected events to an external sink, routed by event name.
type Relay struct {
	sink  domoutbox.Sink
	names []string
	log   observability.Logger

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewRelay(sink domoutbox.Sink, tel observability.Observability, names ...string) *Relay {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &Relay{
		sink:         sink,
		names:        names,
		log:          tel.Logger().With(observability.F("component", "outbox_relay")),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

// Attach subscribes the relay to every configured event name on sub.
func (r *Relay) Attach(sub domoutbox.Subscriber) {
	if r.sink == nil || sub == nil {
		return
	}
	for _, name := range r.names {
		sub.Subscribe(name, r.forward)
	}
}

func (r *Relay) forward(ctx context.Context, e domoutbox.Event) error {
	name := e.EventName()
	start := time.Now()
	err := r.sink.Send(ctx, name, e)

	outcome := "success"
	if err != nil {
		outcome = "error"
		logctx.FromOr(ctx, r.log).Warn("event_relay_failed",
			observability.F("event", name),
			observability.Err(err),
		)
	}
	r.extCounter.Add(1,
		observability.L("peer", relayPeer),
		observability.L("endpoint", name),
		observability.L("outcome", outcome),
	)
	r.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", relayPeer),
		observability.L("endpoint", name),
	)
	return err
}
