package address

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("address: not found")
	ErrNotOwned = errors.New("address: belongs to another customer")
)

type Address struct {
	ID         string
	CustomerID string
	Line1      string
	City       string
	PostalCode string
	// Formatted is the geocoder's rendering, or the input as typed when unverified.
	Formatted string
	Lat       float64
	Lng       float64
	Verified  bool
	CreatedAt time.Time
}

type GeocodeResult struct {
	Valid            bool
	FormattedAddress string
	Lat              float64
	Lng              float64
}

// Geocoder is advisory only; postal code stays authoritative for delivery eligibility.
type Geocoder interface {
	Geocode(ctx context.Context, freeText string) (GeocodeResult, error)
}

type Repository interface {
	Save(ctx context.Context, a *Address) error
	Get(ctx context.Context, id string) (*Address, error)
}
