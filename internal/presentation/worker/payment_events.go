package workerpresentation

import (
	"context"
	"errors"
	"fmt"

	apppayment "github.com/ThierryFotabong/feeya/internal/application/payment"
	dompay "github.com/ThierryFotabong/feeya/internal/domain/payment"
	"github.com/ThierryFotabong/feeya/internal/observability"
)

// EventListener applies verified provider events.
type EventListener interface {
	Execute(ctx context.Context, ev dompay.Event) (apppayment.Outcome, error)
}

// PaymentEvents feeds relayed provider webhooks from a queue into the listener,
// through the same signature check the HTTP endpoint uses.
type PaymentEvents struct {
	verifier dompay.Verifier
	listener EventListener
	tel      observability.Observability
}

func NewPaymentEvents(verifier dompay.Verifier, listener EventListener, tel observability.Observability) *PaymentEvents {
	if tel == nil {
		tel = observability.Nop()
	}
	return &PaymentEvents{verifier: verifier, listener: listener, tel: tel}
}

// Handle returns nil once the event needs no further delivery.
func (p *PaymentEvents) Handle(ctx context.Context, payload []byte, signature string) error {
	ev, err := p.verifier.Verify(payload, signature)
	if err != nil {
		return err
	}

	ctx = WithEventContext(ctx, p.tel.Logger(), map[string]string{
		"event_id": ev.ID,
		"event":    string(ev.Type),
		"source":   "kafka",
	})

	if _, err := p.listener.Execute(ctx, ev); err != nil {
		return fmt.Errorf("handle %s: %w", ev.ID, err)
	}
	return nil
}

// Retryable reports whether redelivering the same message could succeed.
func Retryable(err error) bool {
	return !errors.Is(err, dompay.ErrInvalidSignature) && !errors.Is(err, dompay.ErrMalformedEvent)
}
