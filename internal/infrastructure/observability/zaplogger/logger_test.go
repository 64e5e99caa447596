package zaplogger

import (
	"errors"
	"testing"

	"github.com/ThierryFotabong/feeya/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_CarriesFixedAndScopedFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(zap.New(core), observability.F("service", "order-service"))

	l.With(observability.F("order_id", "o-1")).Warn("order_cancelled",
		observability.F("error", errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	ctx := entry.ContextMap()
	assert.Equal(t, "order_cancelled", entry.Message)
	assert.Equal(t, "order-service", ctx["service"])
	assert.Equal(t, "o-1", ctx["order_id"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestLogger_RedactsSecrets(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := New(zap.New(core))

	l.Info("intent_created",
		observability.F("client_secret", "pi_123_secret_abc"),
		observability.F("Authorization", "Bearer eyJ"),
		observability.F("stripe_signature", "t=1,v1=abc"),
		observability.F("intent_id", "pi_123"),
		observability.F("token", ""),
	)

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, redacted, ctx["client_secret"])
	assert.Equal(t, redacted, ctx["Authorization"])
	assert.Equal(t, redacted, ctx["stripe_signature"])
	assert.Equal(t, "pi_123", ctx["intent_id"])
	assert.Equal(t, "", ctx["token"])
}

func TestSensitive(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"password", true},
		{"db_password", true},
		{"Client_Secret", true},
		{"secret_key_id_hint", false},
		{"order_id", false},
		{"tokens_used", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, sensitive(tt.key))
		})
	}
}
