package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/ThierryFotabong/feeya/internal/domain/inventory"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrDuplicate              = errors.New("order: payment intent already materialized")
	ErrDuplicateNumber        = errors.New("order: order number already taken")
	ErrDuplicateEvent         = errors.New("order: event already recorded")
	ErrConflict               = errors.New("order: modified concurrently")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrPaymentConflict        = errors.New("order: payment failure reported for a paid order")
	ErrInvalidTotals          = errors.New("order: totals do not add up")
)

type Status string

const (
	StatusConfirmed      Status = "CONFIRMED"
	StatusPreparing      Status = "PREPARING"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
)

func (s Status) Terminal() bool { return s == StatusDelivered || s == StatusCancelled }

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Item is an immutable copy of what was sold; later catalog edits never reach it.
type Item struct {
	ID        string
	ProductID string
	Name      string
	Size      string
	Quantity  int
	UnitPrice int64
}

type Order struct {
	ID                  string
	Number              string
	CustomerID          string
	AddressID           string
	PaymentIntentID     string
	Status              Status
	PaymentStatus       PaymentStatus
	Subtotal            int64
	DeliveryFee         int64
	Total               int64
	Currency            string
	ETABand             string
	SubstitutionAllowed bool
	Items               []Item
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewPaid builds an order for a succeeded payment, checking that the money adds up.
func NewPaid(o Order, at time.Time) (*Order, error) {
	if len(o.Items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidTotals)
	}
	var sum int64
	for _, it := range o.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %s has quantity %d", ErrInvalidTotals, it.ProductID, it.Quantity)
		}
		sum += int64(it.Quantity) * it.UnitPrice
	}
	if sum != o.Subtotal || o.Subtotal+o.DeliveryFee != o.Total {
		return nil, fmt.Errorf("%w: items %d, subtotal %d, fee %d, total %d",
			ErrInvalidTotals, sum, o.Subtotal, o.DeliveryFee, o.Total)
	}
	o.Status = StatusConfirmed
	o.PaymentStatus = PaymentPaid
	o.CreatedAt = at
	o.UpdatedAt = at
	o.Items = append([]Item(nil), o.Items...)
	return &o, nil
}

// Stock lists the units the order holds per product.
func (o *Order) Stock() []inventory.Adjustment {
	qty := make(map[string]int, len(o.Items))
	var ids []string
	for _, it := range o.Items {
		if _, seen := qty[it.ProductID]; !seen {
			ids = append(ids, it.ProductID)
		}
		qty[it.ProductID] += it.Quantity
	}
	out := make([]inventory.Adjustment, 0, len(ids))
	for _, id := range ids {
		out = append(out, inventory.Adjustment{ProductID: id, Quantity: qty[id]})
	}
	return out
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	return &c
}

// FormatNumber renders the customer-facing order number.
func FormatNumber(at time.Time, suffix string) string {
	return "FY-" + at.UTC().Format("060102") + "-" + suffix
}
