package memory

import (
	"context"

	"github.com/ThierryFotabong/feeya/internal/domain/basket"
	"github.com/ThierryFotabong/feeya/internal/domain/checkout"
)

type CheckoutRepository struct{ s *Store }

func NewCheckoutRepository(s *Store) *CheckoutRepository {
	return &CheckoutRepository{s: s}
}

var _ checkout.Repository = (*CheckoutRepository)(nil)

func (r *CheckoutRepository) Save(ctx context.Context, snap *checkout.Snapshot) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.snapshots[snap.IntentID] = cloneSnapshot(snap)
	return nil
}

func (r *CheckoutRepository) Get(ctx context.Context, intentID string) (*checkout.Snapshot, error) {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	snap, ok := r.s.snapshots[intentID]
	if !ok {
		return nil, checkout.ErrNotFound
	}
	return cloneSnapshot(snap), nil
}

func cloneSnapshot(s *checkout.Snapshot) *checkout.Snapshot {
	c := *s
	c.Lines = append([]basket.Line(nil), s.Lines...)
	return &c
}
