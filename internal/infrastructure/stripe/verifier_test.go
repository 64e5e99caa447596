package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThierryFotabong/feeya/internal/domain/payment"
)

const secret = "whsec_test"

func sign(t *testing.T, payload string, at time.Time, key string) string {
	t.Helper()
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifier_PaymentIntentSucceeded(t *testing.T) {
	body := `{"id":"evt_1","object":"event","api_version":"2020-08-27","created":1760000000,` +
		`"type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent","amount":4199,"currency":"eur","status":"succeeded"}}}`

	ev, err := NewVerifier(secret, 0).Verify([]byte(body), sign(t, body, time.Now(), secret))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, payment.EventSucceeded, ev.Type)
	assert.Equal(t, "pi_1", ev.IntentID)
	assert.Equal(t, int64(4199), ev.Amount)
	assert.Equal(t, time.Unix(1760000000, 0).UTC(), ev.OccurredAt)
}

func TestVerifier_DisputeCarriesIntent(t *testing.T) {
	body := `{"id":"evt_2","object":"event","created":1760000000,"type":"charge.dispute.created",` +
		`"data":{"object":{"id":"dp_1","object":"dispute","amount":4199,"payment_intent":"pi_9"}}}`

	ev, err := NewVerifier(secret, 0).Verify([]byte(body), sign(t, body, time.Now(), secret))
	require.NoError(t, err)
	assert.Equal(t, payment.EventDisputeCreated, ev.Type)
	assert.Equal(t, "pi_9", ev.IntentID)
}

func TestVerifier_RejectsBadSignature(t *testing.T) {
	body := `{"id":"evt_3","object":"event","type":"payment_intent.succeeded","data":{"object":{}}}`

	tests := []struct {
		name   string
		header string
	}{
		{"wrong secret", sign(t, body, time.Now(), "whsec_other")},
		{"stale timestamp", sign(t, body, time.Now().Add(-time.Hour), secret)},
		{"empty header", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewVerifier(secret, 5*time.Minute).Verify([]byte(body), tc.header)
			assert.ErrorIs(t, err, payment.ErrInvalidSignature)
		})
	}
}

func TestVerifier_UnknownTypePassesThrough(t *testing.T) {
	body := `{"id":"evt_4","object":"event","created":1760000000,"type":"customer.created","data":{"object":{"id":"cus_1"}}}`

	ev, err := NewVerifier(secret, 0).Verify([]byte(body), sign(t, body, time.Now(), secret))
	require.NoError(t, err)
	assert.Equal(t, payment.EventType("customer.created"), ev.Type)
	assert.Empty(t, ev.IntentID)
}
