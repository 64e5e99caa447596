package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/ThierryFotabong/feeya/internal/domain/basket"
)

var ErrNotFound = errors.New("checkout: snapshot not found")

// Snapshot freezes what the customer was quoted when a payment intent was created.
// Orders are built from it, never from the live basket.
type Snapshot struct {
	IntentID            string
	BasketID            string
	BasketVersion       int
	CustomerID          string
	AddressID           string
	PostalCode          string
	SubstitutionAllowed bool
	Lines               []basket.Line
	Subtotal            int64
	DeliveryFee         int64
	Total               int64
	Currency            string
	Zone                string
	ETABand             string
	CreatedAt           time.Time
}

// Quantities sums line quantities per product.
func (s *Snapshot) Quantities() map[string]int {
	out := make(map[string]int, len(s.Lines))
	for _, l := range s.Lines {
		out[l.ProductID] += l.Quantity
	}
	return out
}

type Repository interface {
	// Save upserts by IntentID.
	Save(ctx context.Context, s *Snapshot) error
	Get(ctx context.Context, intentID string) (*Snapshot, error)
}
