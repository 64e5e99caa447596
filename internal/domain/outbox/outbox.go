// Package outbox defines how committed state changes are announced in process and
// relayed to the broker.
package outbox

import "context"

type Event interface {
	EventName() string
}

// Keyed events name the aggregate they describe. Brokers carry it as the correlation id
// so consumers can group an order's or an intent's messages.
type Keyed interface {
	Event
	AggregateID() string
}

// KeyOf returns the aggregate id of e, or "" when e is not Keyed.
func KeyOf(e Event) string {
	if k, ok := e.(Keyed); ok {
		return k.AggregateID()
	}
	return ""
}

type Handler func(ctx context.Context, e Event) error

// Publisher is called only after the state an event describes has committed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// Sink delivers events outside the process, routed by routingKey.
type Sink interface {
	Send(ctx context.Context, routingKey string, e Event) error
}
