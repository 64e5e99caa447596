package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
)

var errPermanent = errors.New("bad signature")

func newTestConsumer(h HandlerFunc) *Consumer {
	return NewConsumer(nil, []string{"payments.webhooks"}, h, Options{
		Attempts:  3,
		Backoff:   time.Millisecond,
		Retryable: func(err error) bool { return !errors.Is(err, errPermanent) },
	}, nil)
}

func TestDeliver(t *testing.T) {
	tests := []struct {
		name      string
		failures  []error
		wantMark  bool
		wantCalls int
	}{
		{name: "success first try", wantMark: true, wantCalls: 1},
		{name: "transient then success", failures: []error{errors.New("db down")}, wantMark: true, wantCalls: 2},
		{name: "permanent is skipped", failures: []error{errPermanent}, wantMark: true, wantCalls: 1},
		{
			name:      "exhausted stays unmarked",
			failures:  []error{errors.New("x"), errors.New("x"), errors.New("x")},
			wantMark:  false,
			wantCalls: 3,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			c := newTestConsumer(func(ctx context.Context, m Message) error {
				calls++
				if calls <= len(tc.failures) {
					return tc.failures[calls-1]
				}
				return nil
			})
			got := c.deliver(context.Background(), Message{Topic: "payments.webhooks"})
			assert.Equal(t, tc.wantMark, got)
			assert.Equal(t, tc.wantCalls, calls)
		})
	}
}

func TestDeliver_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newTestConsumer(func(context.Context, Message) error {
		cancel()
		return errors.New("transient")
	})
	assert.False(t, c.deliver(ctx, Message{}))
}

func TestToMessage_CopiesHeaders(t *testing.T) {
	m := toMessage(&sarama.ConsumerMessage{
		Topic:  "payments.webhooks",
		Offset: 42,
		Value:  []byte(`{}`),
		Headers: []*sarama.RecordHeader{
			{Key: []byte("Stripe-Signature"), Value: []byte("t=1,v1=abc")},
			nil,
		},
	})
	assert.Equal(t, "t=1,v1=abc", m.Header("Stripe-Signature"))
	assert.Equal(t, int64(42), m.Offset)
}
