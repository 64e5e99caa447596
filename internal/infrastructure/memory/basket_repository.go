package memory

import (
	"context"

	"github.com/ThierryFotabong/feeya/internal/domain/basket"
)

type BasketRepository struct{ s *Store }

func NewBasketRepository(s *Store) *BasketRepository {
	return &BasketRepository{s: s}
}

var _ basket.Repository = (*BasketRepository)(nil)

func (r *BasketRepository) FindByOwner(ctx context.Context, owner basket.Owner) (*basket.Basket, error) {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.basketByOwner[owner.Key()]
	if !ok {
		return nil, basket.ErrNotFound
	}
	return r.s.baskets[id].Clone(), nil
}

func (r *BasketRepository) Get(ctx context.Context, id string) (*basket.Basket, error) {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.baskets[id]
	if !ok {
		return nil, basket.ErrNotFound
	}
	return b.Clone(), nil
}

func (r *BasketRepository) Save(ctx context.Context, b *basket.Basket) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, exists := r.s.baskets[b.ID]
	switch {
	case b.Version == 0:
		if exists {
			return basket.ErrConflict
		}
		if _, taken := r.s.basketByOwner[b.Owner.Key()]; taken {
			return basket.ErrConflict
		}
	case !exists:
		return basket.ErrNotFound
	case cur.Version != b.Version:
		return basket.ErrConflict
	}

	b.Version++
	r.s.baskets[b.ID] = b.Clone()
	r.s.basketByOwner[b.Owner.Key()] = b.ID
	return nil
}
