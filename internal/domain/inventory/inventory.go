package inventory

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrOverRelease       = errors.New("inventory: release exceeds reserved units")
	ErrUnavailable       = errors.New("inventory: product not available for sale")
)

// InsufficientStockError reports how many units were actually sellable when a reservation failed.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Product is the ledger row for one sellable item. OnHand counts units free to reserve;
// Reserved counts units held by baskets and open orders.
type Product struct {
	ID        string
	Name      string
	Size      string
	UnitPrice int64
	Available bool
	OnHand    int
	Reserved  int
	UpdatedAt time.Time
}

// Reserve moves qty units from on-hand to reserved. Stores must perform the same
// check-and-move as a single conditional write.
func (p *Product) Reserve(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if p.OnHand < qty {
		return &InsufficientStockError{ProductID: p.ID, Requested: qty, Available: p.OnHand}
	}
	p.OnHand -= qty
	p.Reserved += qty
	p.touch()
	return nil
}

// Release returns qty reserved units to on-hand.
func (p *Product) Release(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if p.Reserved < qty {
		return ErrOverRelease
	}
	p.Reserved -= qty
	p.OnHand += qty
	p.touch()
	return nil
}

// Consume drops qty reserved units that left the store with a delivered order.
func (p *Product) Consume(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if p.Reserved < qty {
		return ErrOverRelease
	}
	p.Reserved -= qty
	p.touch()
	return nil
}

func (p *Product) Restock(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	p.OnHand += qty
	p.touch()
	return nil
}

// Capacity is every unit the store physically holds for this product.
func (p *Product) Capacity() int { return p.OnHand + p.Reserved }

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}
