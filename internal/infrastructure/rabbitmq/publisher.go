package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	appinventory "github.com/ThierryFotabong/feeya/internal/application/inventory"
	domoutbox "github.com/ThierryFotabong/feeya/internal/domain/outbox"
)

const searchRoutingKey = "search.product.upsert"

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends domain events and search documents to a topic exchange.
type Publisher struct {
	mu       sync.Mutex
	ch       Channel
	exchange string
}

// NewPublisher declares the exchange once at startup.
func NewPublisher(ch Channel, exchange string) (*Publisher, error) {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{ch: ch, exchange: exchange}, nil
}

var (
	_ domoutbox.Sink           = (*Publisher)(nil)
	_ appinventory.SearchIndex = (*Publisher)(nil)
)

type envelope struct {
	key     string
	Event   string    `json:"event"`
	SentAt  time.Time `json:"sentAt"`
	Payload any       `json:"payload"`
}

func (p *Publisher) Send(ctx context.Context, routingKey string, e domoutbox.Event) error {
	return p.publish(ctx, routingKey, envelope{key: domoutbox.KeyOf(e), Event: e.EventName(), SentAt: time.Now().UTC(), Payload: e})
}

func (p *Publisher) Index(ctx context.Context, doc appinventory.Document) error {
	return p.publish(ctx, searchRoutingKey, envelope{key: doc.ID, Event: searchRoutingKey, SentAt: time.Now().UTC(), Payload: doc})
}

func (p *Publisher) publish(ctx context.Context, key string, env envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: env.key,
		Timestamp:     env.SentAt,
		Type:          env.Event,
		Body:          body,
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

// Dial opens a connection and a channel. Callers close the connection on shutdown.
func Dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return conn, ch, nil
}
