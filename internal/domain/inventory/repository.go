package inventory

import (
	"context"
)

// Ledger is the authoritative stock counter. Reserve must fail with an
// *InsufficientStockError rather than ever driving on-hand below zero.
type Ledger interface {
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
}

// Catalog reads product rows for price and availability truth.
type Catalog interface {
	Get(ctx context.Context, productID string) (*Product, error)
}

// Adjustment is a signed per-product delta applied inside a larger transaction.
type Adjustment struct {
	ProductID string
	Quantity  int
}

type Repository interface {
	Ledger
	Catalog
	Restock(ctx context.Context, productID string, quantity int) (*Product, error)
	SetAvailability(ctx context.Context, productID string, available bool) (*Product, error)
	// Upsert creates or edits descriptive fields; stock counters of an existing row are kept.
	Upsert(ctx context.Context, p *Product) (*Product, error)
}
