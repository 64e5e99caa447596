package memory

import (
	"context"

	"github.com/ThierryFotabong/feeya/internal/domain/inventory"
)

type InventoryRepository struct{ s *Store }

func NewInventoryRepository(s *Store) *InventoryRepository {
	return &InventoryRepository{s: s}
}

var _ inventory.Repository = (*InventoryRepository)(nil)

func (r *InventoryRepository) Get(ctx context.Context, productID string) (*inventory.Product, error) {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[productID]
	if !ok {
		return nil, inventory.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (r *InventoryRepository) Reserve(ctx context.Context, productID string, quantity int) error {
	return r.mutate(ctx, productID, func(p *inventory.Product) error { return p.Reserve(quantity) })
}

func (r *InventoryRepository) Release(ctx context.Context, productID string, quantity int) error {
	return r.mutate(ctx, productID, func(p *inventory.Product) error { return p.Release(quantity) })
}

func (r *InventoryRepository) Restock(ctx context.Context, productID string, quantity int) (*inventory.Product, error) {
	if err := r.mutate(ctx, productID, func(p *inventory.Product) error { return p.Restock(quantity) }); err != nil {
		return nil, err
	}
	return r.Get(ctx, productID)
}

func (r *InventoryRepository) SetAvailability(ctx context.Context, productID string, available bool) (*inventory.Product, error) {
	err := r.mutate(ctx, productID, func(p *inventory.Product) error {
		p.Available = available
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, productID)
}

func (r *InventoryRepository) Upsert(ctx context.Context, in *inventory.Product) (*inventory.Product, error) {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[in.ID]
	if !ok {
		c := *in
		r.s.products[in.ID] = &c
		out := c
		return &out, nil
	}
	p.Name, p.Size, p.UnitPrice, p.Available = in.Name, in.Size, in.UnitPrice, in.Available
	out := *p
	return &out, nil
}

// mutate runs fn against the row under the store lock, which is the in-memory
// equivalent of a single conditional UPDATE.
func (r *InventoryRepository) mutate(ctx context.Context, productID string, fn func(p *inventory.Product) error) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[productID]
	if !ok {
		return inventory.ErrNotFound
	}
	c := *p
	if err := fn(&c); err != nil {
		return err
	}
	*p = c
	return nil
}
