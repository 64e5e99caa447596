package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	stripego "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/ThierryFotabong/feeya/internal/domain/payment"
)

// Verifier checks the Stripe-Signature header and decodes the events the listener handles.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}
}

var _ payment.Verifier = (*Verifier)(nil)

func (v *Verifier) Verify(payload []byte, signatureHeader string) (payment.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return payment.Event{}, fmt.Errorf("%w: %w", payment.ErrInvalidSignature, err)
	}

	out := payment.Event{
		ID:         ev.ID,
		Type:       payment.EventType(ev.Type),
		OccurredAt: time.Unix(ev.Created, 0).UTC(),
	}
	if ev.Data == nil {
		return out, fmt.Errorf("%w: missing data", payment.ErrMalformedEvent)
	}

	switch out.Type {
	case payment.EventSucceeded, payment.EventFailed, payment.EventCanceled:
		var pi stripego.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return out, fmt.Errorf("%w: %w", payment.ErrMalformedEvent, err)
		}
		out.IntentID = pi.ID
		out.Amount = pi.Amount
	case payment.EventDisputeCreated:
		var d stripego.Dispute
		if err := json.Unmarshal(ev.Data.Raw, &d); err != nil {
			return out, fmt.Errorf("%w: %w", payment.ErrMalformedEvent, err)
		}
		if d.PaymentIntent != nil {
			out.IntentID = d.PaymentIntent.ID
		}
		out.Amount = d.Amount
	}
	return out, nil
}
