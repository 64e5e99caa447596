package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appinventory "github.com/ThierryFotabong/feeya/internal/application/inventory"
	domorder "github.com/ThierryFotabong/feeya/internal/domain/order"
)

type MockChannel struct{ mock.Mock }

func (m *MockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind, durable).Error(0)
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, msg).Error(0)
}

func TestPublisher_SendWrapsEvent(t *testing.T) {
	ch := &MockChannel{}
	ch.On("ExchangeDeclare", "feeya.events", "topic", true).Return(nil)
	var sent amqp.Publishing
	ch.On("PublishWithContext", "feeya.events", "order.confirmed", mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).(amqp.Publishing) }).
		Return(nil)

	p, err := NewPublisher(ch, "feeya.events")
	require.NoError(t, err)
	require.NoError(t, p.Send(context.Background(), "order.confirmed", domorder.ConfirmedEvent{OrderID: "o1", Total: 4199}))

	assert.Equal(t, uint8(amqp.Persistent), sent.DeliveryMode)
	assert.Equal(t, "order.confirmed", sent.Type)
	assert.Equal(t, "o1", sent.CorrelationId)
	var body struct {
		Event   string                  `json:"event"`
		Payload domorder.ConfirmedEvent `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(sent.Body, &body))
	assert.Equal(t, "order.confirmed", body.Event)
	assert.Equal(t, "o1", body.Payload.OrderID)
	ch.AssertExpectations(t)
}

func TestPublisher_IndexUsesSearchKey(t *testing.T) {
	ch := &MockChannel{}
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ch.On("PublishWithContext", "ex", searchRoutingKey, mock.Anything).Return(errors.New("closed"))

	p, err := NewPublisher(ch, "ex")
	require.NoError(t, err)

	err = p.Index(context.Background(), appinventory.Document{ID: "yam"})
	assert.ErrorContains(t, err, "closed")
}

func TestNewPublisher_DeclareFailure(t *testing.T) {
	ch := &MockChannel{}
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("access refused"))

	_, err := NewPublisher(ch, "ex")
	assert.ErrorContains(t, err, "declare exchange")
}
