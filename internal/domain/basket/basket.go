package basket

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("basket: not found")
	ErrLineNotFound    = errors.New("basket: line not found")
	ErrInvalidQuantity = errors.New("basket: quantity out of range")
	ErrInvalidOwner    = errors.New("basket: exactly one of customer or session is required")
	ErrConflict        = errors.New("basket: modified concurrently")
	ErrEmpty           = errors.New("basket: empty")
)

const DefaultMaxLineQuantity = 10

// Owner identifies who a basket belongs to. CustomerID and SessionID are mutually exclusive.
type Owner struct {
	CustomerID string
	SessionID  string
}

func (o Owner) Validate() error {
	if (o.CustomerID == "") == (o.SessionID == "") {
		return ErrInvalidOwner
	}
	return nil
}

// Key is the unique storage key of the owner.
func (o Owner) Key() string {
	if o.CustomerID != "" {
		return "customer:" + o.CustomerID
	}
	return "session:" + o.SessionID
}

// Line holds a unit price snapped when the product was first added.
type Line struct {
	ID        string
	ProductID string
	Name      string
	Size      string
	Quantity  int
	UnitPrice int64
}

func (l Line) Total() int64 { return int64(l.Quantity) * l.UnitPrice }

type Basket struct {
	ID        string
	Owner     Owner
	Lines     []Line
	Subtotal  int64
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(id string, owner Owner, now time.Time) *Basket {
	return &Basket{ID: id, Owner: owner, CreatedAt: now, UpdatedAt: now}
}

func (b *Basket) LineIndex(lineID string) (int, bool) {
	for i, l := range b.Lines {
		if l.ID == lineID {
			return i, true
		}
	}
	return -1, false
}

func (b *Basket) ProductIndex(productID string) (int, bool) {
	for i, l := range b.Lines {
		if l.ProductID == productID {
			return i, true
		}
	}
	return -1, false
}

// RemoveAt drops the line at i keeping the order of the rest.
func (b *Basket) RemoveAt(i int) {
	b.Lines = append(b.Lines[:i], b.Lines[i+1:]...)
}

// Recompute derives the subtotal from the lines; it is never patched incrementally.
func (b *Basket) Recompute(now time.Time) {
	var sum int64
	for _, l := range b.Lines {
		sum += l.Total()
	}
	b.Subtotal = sum
	b.UpdatedAt = now
}

func (b *Basket) IsEmpty() bool { return len(b.Lines) == 0 }

// Quantities sums line quantities per product.
func (b *Basket) Quantities() map[string]int {
	out := make(map[string]int, len(b.Lines))
	for _, l := range b.Lines {
		out[l.ProductID] += l.Quantity
	}
	return out
}

func (b *Basket) Clone() *Basket {
	if b == nil {
		return nil
	}
	c := *b
	c.Lines = append([]Line(nil), b.Lines...)
	return &c
}

type Snapshot struct {
	BasketID string
	Version  int
	Lines    []Line
	Subtotal int64
}

func (b *Basket) Snapshot() Snapshot {
	return Snapshot{
		BasketID: b.ID,
		Version:  b.Version,
		Lines:    append([]Line(nil), b.Lines...),
		Subtotal: b.Subtotal,
	}
}
