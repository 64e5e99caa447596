// Package stripe adapts stripe-go to the payment provider and webhook verifier ports.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripego "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/ThierryFotabong/feeya/internal/domain/payment"
)

type Provider struct {
	api *client.API
}

func NewProvider(secretKey string, backends *stripego.Backends) *Provider {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Provider{api: api}
}

var _ payment.Provider = (*Provider)(nil)

func (p *Provider) CreateIntent(ctx context.Context, req payment.CreateIntentRequest) (*payment.Intent, error) {
	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(req.Amount),
		Currency: stripego.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata.Map() {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return toIntent(pi), nil
}

func (p *Provider) RetrieveIntent(ctx context.Context, id string) (*payment.Intent, error) {
	params := &stripego.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, mapError(err)
	}
	return toIntent(pi), nil
}

func toIntent(pi *stripego.PaymentIntent) *payment.Intent {
	return &payment.Intent{
		ID:           pi.ID,
		Status:       payment.Status(pi.Status),
		Amount:       pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
		ClientSecret: pi.ClientSecret,
		Metadata:     payment.MetadataFromMap(pi.Metadata),
	}
}

func mapError(err error) error {
	var serr *stripego.Error
	if errors.As(err, &serr) {
		if serr.Code == stripego.ErrorCodeResourceMissing {
			return payment.ErrIntentNotFound
		}
		return fmt.Errorf("%w: %s (%s)", payment.ErrProvider, serr.Msg, serr.Code)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", payment.ErrProvider, err)
}
