// Package sandbox is an in-process payment provider for local runs and tests.
package sandbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThierryFotabong/feeya/internal/domain/payment"
)

type Provider struct {
	mu      sync.Mutex
	seq     int
	intents map[string]*payment.Intent
	byKey   map[string]string
}

func New() *Provider {
	return &Provider{
		intents: make(map[string]*payment.Intent),
		byKey:   make(map[string]string),
	}
}

var _ payment.Provider = (*Provider)(nil)

func (p *Provider) CreateIntent(ctx context.Context, req payment.CreateIntentRequest) (*payment.Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", payment.ErrProvider)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if req.IdempotencyKey != "" {
		if id, ok := p.byKey[req.IdempotencyKey]; ok {
			c := *p.intents[id]
			return &c, nil
		}
	}
	p.seq++
	id := fmt.Sprintf("pi_sbx_%06d", p.seq)
	in := &payment.Intent{
		ID:           id,
		Status:       payment.StatusRequiresPaymentMethod,
		Amount:       req.Amount,
		Currency:     req.Currency,
		ClientSecret: id + "_secret",
		Metadata:     req.Metadata,
	}
	p.intents[id] = in
	if req.IdempotencyKey != "" {
		p.byKey[req.IdempotencyKey] = id
	}
	c := *in
	return &c, nil
}

func (p *Provider) RetrieveIntent(ctx context.Context, id string) (*payment.Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	in, ok := p.intents[id]
	if !ok {
		return nil, payment.ErrIntentNotFound
	}
	c := *in
	return &c, nil
}

// Succeed simulates the customer completing payment.
func (p *Provider) Succeed(id string) error { return p.set(id, payment.StatusSucceeded) }

// Cancel simulates the intent being abandoned or voided.
func (p *Provider) Cancel(id string) error { return p.set(id, payment.StatusCanceled) }

// Put stores an intent as given, replacing any with the same id.
func (p *Provider) Put(in payment.Intent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := in
	p.intents[in.ID] = &c
}

func (p *Provider) set(id string, st payment.Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	in, ok := p.intents[id]
	if !ok {
		return payment.ErrIntentNotFound
	}
	in.Status = st
	return nil
}
