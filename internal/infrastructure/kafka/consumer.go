// Package kafka consumes relayed provider webhooks from a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/IBM/sarama"

	"github.com/ThierryFotabong/feeya/internal/observability"
)

// Message is the part of a Kafka record handlers need.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
}

func (m Message) Header(k string) string { return m.Headers[k] }

// HandlerFunc processes one message.
type HandlerFunc func(ctx context.Context, m Message) error

// Options tune redelivery inside a claim. Retryable decides whether a failed message
// is worth another attempt; non-retryable failures are committed and skipped.
type Options struct {
	Attempts  int
	Backoff   time.Duration
	Retryable func(error) bool
}

// Consumer consumes a topic with a single handler.
type Consumer struct {
	group  sarama.ConsumerGroup
	topics []string
	handle HandlerFunc
	opts   Options
	log    observability.Logger
}

func NewConsumer(group sarama.ConsumerGroup, topics []string, h HandlerFunc, opts Options, log observability.Logger) *Consumer {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}
	if opts.Retryable == nil {
		opts.Retryable = func(error) bool { return true }
	}
	if log == nil {
		log = observability.NopLogger()
	}
	return &Consumer{
		group:  group,
		topics: topics,
		handle: h,
		opts:   opts,
		log:    log.With(observability.F("component", "kafka_consumer")),
	}
}

// Start blocks until ctx is cancelled or the group fails.
func (c *Consumer) Start(ctx context.Context) error {
	handler := &cgHandler{c: c}
	go func() {
		for err := range c.group.Errors() {
			c.log.Warn("kafka_group_error", observability.Err(err))
		}
	}()
	for {
		if err := c.group.Consume(ctx, c.topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		// Consume returns on rebalance or cancellation.
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error { return c.group.Close() }

type cgHandler struct {
	c *Consumer
}

func (h *cgHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *cgHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *cgHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if h.c.deliver(sess.Context(), toMessage(msg)) {
			sess.MarkMessage(msg, "")
		}
	}
	return nil
}

// deliver reports whether the message's offset may be committed.
func (c *Consumer) deliver(ctx context.Context, m Message) bool {
	var err error
	for attempt := 1; attempt <= c.opts.Attempts; attempt++ {
		if err = c.handle(ctx, m); err == nil {
			return true
		}
		if !c.opts.Retryable(err) {
			c.log.Warn("kafka_message_dropped",
				observability.F("topic", m.Topic),
				observability.F("partition", m.Partition),
				observability.F("offset", m.Offset),
				observability.Err(err),
			)
			return true
		}
		if attempt == c.opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.opts.Backoff * time.Duration(attempt)):
		}
	}
	// Left unmarked so a restart or rebalance redelivers it.
	c.log.Error("kafka_message_failed",
		observability.F("topic", m.Topic),
		observability.F("partition", m.Partition),
		observability.F("offset", m.Offset),
		observability.Err(err),
	)
	return false
}

func toMessage(msg *sarama.ConsumerMessage) Message {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		if h == nil {
			continue
		}
		headers[string(h.Key)] = string(h.Value)
	}
	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
	}
}
