package memory

import (
	"context"

	"github.com/ThierryFotabong/feeya/internal/domain/address"
)

type AddressRepository struct{ s *Store }

func NewAddressRepository(s *Store) *AddressRepository {
	return &AddressRepository{s: s}
}

var _ address.Repository = (*AddressRepository)(nil)

func (r *AddressRepository) Save(ctx context.Context, a *address.Address) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *a
	r.s.addresses[a.ID] = &c
	return nil
}

func (r *AddressRepository) Get(ctx context.Context, id string) (*address.Address, error) {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.addresses[id]
	if !ok {
		return nil, address.ErrNotFound
	}
	c := *a
	return &c, nil
}
