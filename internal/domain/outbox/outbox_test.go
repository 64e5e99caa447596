package outbox_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dominv "github.com/ThierryFotabong/feeya/internal/domain/inventory"
	domorder "github.com/ThierryFotabong/feeya/internal/domain/order"
	"github.com/ThierryFotabong/feeya/internal/domain/outbox"
	dompay "github.com/ThierryFotabong/feeya/internal/domain/payment"
)

type bare struct{}

func (bare) EventName() string { return "bare" }

func TestKeyOf(t *testing.T) {
	tests := []struct {
		name string
		e    outbox.Event
		want string
	}{
		{"order confirmed", domorder.ConfirmedEvent{OrderID: "o1"}, "o1"},
		{"order status", domorder.StatusChangedEvent{OrderID: "o2"}, "o2"},
		{"refund", dompay.RefundRequiredEvent{IntentID: "pi_1"}, "pi_1"},
		{"product", dominv.ProductChangedEvent{ProductID: "yam"}, "yam"},
		{"unkeyed", bare{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outbox.KeyOf(tt.e))
		})
	}
}
