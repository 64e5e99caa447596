package workerpresentation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apporder "github.com/ThierryFotabong/feeya/internal/application/order"
	apppayment "github.com/ThierryFotabong/feeya/internal/application/payment"
	dompay "github.com/ThierryFotabong/feeya/internal/domain/payment"
	"github.com/ThierryFotabong/feeya/internal/observability"
	"github.com/ThierryFotabong/feeya/internal/observability/logctx"
)

type MockVerifier struct{ mock.Mock }

func (m *MockVerifier) Verify(payload []byte, header string) (dompay.Event, error) {
	args := m.Called(payload, header)
	return args.Get(0).(dompay.Event), args.Error(1)
}

type MockListener struct{ mock.Mock }

func (m *MockListener) Execute(ctx context.Context, ev dompay.Event) (apppayment.Outcome, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(apppayment.Outcome), args.Error(1)
}

func TestPaymentEvents_Handle(t *testing.T) {
	ev := dompay.Event{ID: "evt_1", Type: dompay.EventSucceeded, IntentID: "pi_1"}
	v := &MockVerifier{}
	v.On("Verify", []byte("body"), "sig").Return(ev, nil)
	l := &MockListener{}
	l.On("Execute", mock.MatchedBy(func(ctx context.Context) bool {
		return logctx.From(ctx) != nil
	}), ev).Return(apppayment.OutcomeProcessed, nil)

	require.NoError(t, NewPaymentEvents(v, l, nil).Handle(context.Background(), []byte("body"), "sig"))
	l.AssertExpectations(t)
}

func TestPaymentEvents_BadSignatureIsNotRetried(t *testing.T) {
	v := &MockVerifier{}
	v.On("Verify", mock.Anything, mock.Anything).Return(dompay.Event{}, dompay.ErrInvalidSignature)
	l := &MockListener{}

	err := NewPaymentEvents(v, l, nil).Handle(context.Background(), []byte("x"), "bad")
	require.Error(t, err)
	assert.False(t, Retryable(err))
	l.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(apporder.ErrPaymentNotSucceeded))
	assert.True(t, Retryable(apppayment.ErrEventInFlight))
	assert.True(t, Retryable(errors.New("db down")))
	assert.False(t, Retryable(dompay.ErrMalformedEvent))
}

type recordingLogger struct {
	fields []string
}

func (r *recordingLogger) With(fields ...observability.Field) observability.Logger {
	for _, f := range fields {
		r.fields = append(r.fields, f.Key)
	}
	return r
}
func (r *recordingLogger) Debug(string, ...observability.Field) {}
func (r *recordingLogger) Info(string, ...observability.Field)  {}
func (r *recordingLogger) Warn(string, ...observability.Field)  {}
func (r *recordingLogger) Error(string, ...observability.Field) {}

func TestWithEventContext_FieldOrder(t *testing.T) {
	rec := &recordingLogger{}
	ctx := WithEventContext(context.Background(), rec, map[string]string{
		"source": "kafka", "event": "payment_intent.succeeded", "empty": "",
	})
	assert.Same(t, rec, logctx.From(ctx))
	assert.Equal(t, []string{"event_id", "event", "source"}, rec.fields)
}
