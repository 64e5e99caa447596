package basket

import "context"

type Repository interface {
	FindByOwner(ctx context.Context, owner Owner) (*Basket, error)
	Get(ctx context.Context, id string) (*Basket, error)
	// Save inserts a basket whose Version is 0 and otherwise updates it only if the
	// stored version still equals b.Version. On success b.Version is incremented.
	Save(ctx context.Context, b *Basket) error
}
