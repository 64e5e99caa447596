package gormstore

import (
	"encoding/json"
	"time"

	"github.com/ThierryFotabong/feeya/internal/domain/address"
	"github.com/ThierryFotabong/feeya/internal/domain/basket"
	"github.com/ThierryFotabong/feeya/internal/domain/checkout"
	"github.com/ThierryFotabong/feeya/internal/domain/inventory"
	"github.com/ThierryFotabong/feeya/internal/domain/order"
	"github.com/ThierryFotabong/feeya/internal/domain/payment"
)

type productRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:255;not null"`
	Size      string `gorm:"size:64"`
	UnitPrice int64  `gorm:"not null"`
	Available bool   `gorm:"not null"`
	OnHand    int    `gorm:"not null;check:chk_products_on_hand,on_hand >= 0"`
	Reserved  int    `gorm:"not null;check:chk_products_reserved,reserved >= 0"`
	UpdatedAt time.Time
}

func (productRow) TableName() string { return "products" }

func (r productRow) toDomain() *inventory.Product {
	return &inventory.Product{
		ID:        r.ID,
		Name:      r.Name,
		Size:      r.Size,
		UnitPrice: r.UnitPrice,
		Available: r.Available,
		OnHand:    r.OnHand,
		Reserved:  r.Reserved,
		UpdatedAt: r.UpdatedAt,
	}
}

type basketRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	OwnerKey   string `gorm:"size:128;not null;uniqueIndex:uk_baskets_owner"`
	CustomerID string `gorm:"size:64"`
	SessionID  string `gorm:"size:128"`
	Lines      string `gorm:"type:json;not null"`
	Subtotal   int64  `gorm:"not null"`
	Version    int    `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (basketRow) TableName() string { return "baskets" }

func newBasketRow(b *basket.Basket) (basketRow, error) {
	lines, err := encodeLines(b.Lines)
	if err != nil {
		return basketRow{}, err
	}
	return basketRow{
		ID:         b.ID,
		OwnerKey:   b.Owner.Key(),
		CustomerID: b.Owner.CustomerID,
		SessionID:  b.Owner.SessionID,
		Lines:      lines,
		Subtotal:   b.Subtotal,
		Version:    b.Version,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}, nil
}

func (r basketRow) toDomain() (*basket.Basket, error) {
	lines, err := decodeLines(r.Lines)
	if err != nil {
		return nil, err
	}
	return &basket.Basket{
		ID:        r.ID,
		Owner:     basket.Owner{CustomerID: r.CustomerID, SessionID: r.SessionID},
		Lines:     lines,
		Subtotal:  r.Subtotal,
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

type snapshotRow struct {
	IntentID            string `gorm:"primaryKey;size:128"`
	BasketID            string `gorm:"size:64;not null"`
	BasketVersion       int    `gorm:"not null"`
	CustomerID          string `gorm:"size:64;not null;index"`
	AddressID           string `gorm:"size:64;not null"`
	PostalCode          string `gorm:"size:16;not null"`
	SubstitutionAllowed bool
	Lines               string `gorm:"type:json;not null"`
	Subtotal            int64  `gorm:"not null"`
	DeliveryFee         int64  `gorm:"not null"`
	Total               int64  `gorm:"not null"`
	Currency            string `gorm:"size:3;not null"`
	Zone                string `gorm:"size:64"`
	ETABand             string `gorm:"size:64"`
	CreatedAt           time.Time
}

func (snapshotRow) TableName() string { return "checkout_snapshots" }

func newSnapshotRow(s *checkout.Snapshot) (snapshotRow, error) {
	lines, err := encodeLines(s.Lines)
	if err != nil {
		return snapshotRow{}, err
	}
	return snapshotRow{
		IntentID:            s.IntentID,
		BasketID:            s.BasketID,
		BasketVersion:       s.BasketVersion,
		CustomerID:          s.CustomerID,
		AddressID:           s.AddressID,
		PostalCode:          s.PostalCode,
		SubstitutionAllowed: s.SubstitutionAllowed,
		Lines:               lines,
		Subtotal:            s.Subtotal,
		DeliveryFee:         s.DeliveryFee,
		Total:               s.Total,
		Currency:            s.Currency,
		Zone:                s.Zone,
		ETABand:             s.ETABand,
		CreatedAt:           s.CreatedAt,
	}, nil
}

func (r snapshotRow) toDomain() (*checkout.Snapshot, error) {
	lines, err := decodeLines(r.Lines)
	if err != nil {
		return nil, err
	}
	return &checkout.Snapshot{
		IntentID:            r.IntentID,
		BasketID:            r.BasketID,
		BasketVersion:       r.BasketVersion,
		CustomerID:          r.CustomerID,
		AddressID:           r.AddressID,
		PostalCode:          r.PostalCode,
		SubstitutionAllowed: r.SubstitutionAllowed,
		Lines:               lines,
		Subtotal:            r.Subtotal,
		DeliveryFee:         r.DeliveryFee,
		Total:               r.Total,
		Currency:            r.Currency,
		Zone:                r.Zone,
		ETABand:             r.ETABand,
		CreatedAt:           r.CreatedAt,
	}, nil
}

type orderRow struct {
	ID                  string `gorm:"primaryKey;size:64"`
	Number              string `gorm:"size:32;not null;uniqueIndex:uk_orders_number"`
	CustomerID          string `gorm:"size:64;not null;index"`
	AddressID           string `gorm:"size:64;not null"`
	PaymentIntentID     string `gorm:"size:128;not null;uniqueIndex:uk_orders_intent"`
	Status              string `gorm:"size:32;not null"`
	PaymentStatus       string `gorm:"size:32;not null"`
	Subtotal            int64  `gorm:"not null"`
	DeliveryFee         int64  `gorm:"not null"`
	Total               int64  `gorm:"not null"`
	Currency            string `gorm:"size:3;not null"`
	ETABand             string `gorm:"size:64"`
	SubstitutionAllowed bool
	Items               []orderItemRow `gorm:"foreignKey:OrderID"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (orderRow) TableName() string { return "orders" }

type orderItemRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	OrderID   string `gorm:"size:64;not null;index"`
	Position  int    `gorm:"not null"`
	ProductID string `gorm:"size:64;not null"`
	Name      string `gorm:"size:255;not null"`
	Size      string `gorm:"size:64"`
	Quantity  int    `gorm:"not null"`
	UnitPrice int64  `gorm:"not null"`
}

func (orderItemRow) TableName() string { return "order_items" }

func newOrderRow(o *order.Order) orderRow {
	items := make([]orderItemRow, 0, len(o.Items))
	for i, it := range o.Items {
		items = append(items, orderItemRow{
			ID:        it.ID,
			OrderID:   o.ID,
			Position:  i,
			ProductID: it.ProductID,
			Name:      it.Name,
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return orderRow{
		ID:                  o.ID,
		Number:              o.Number,
		CustomerID:          o.CustomerID,
		AddressID:           o.AddressID,
		PaymentIntentID:     o.PaymentIntentID,
		Status:              string(o.Status),
		PaymentStatus:       string(o.PaymentStatus),
		Subtotal:            o.Subtotal,
		DeliveryFee:         o.DeliveryFee,
		Total:               o.Total,
		Currency:            o.Currency,
		ETABand:             o.ETABand,
		SubstitutionAllowed: o.SubstitutionAllowed,
		Items:               items,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

func (r orderRow) toDomain() *order.Order {
	items := make([]order.Item, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, order.Item{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return &order.Order{
		ID:                  r.ID,
		Number:              r.Number,
		CustomerID:          r.CustomerID,
		AddressID:           r.AddressID,
		PaymentIntentID:     r.PaymentIntentID,
		Status:              order.Status(r.Status),
		PaymentStatus:       order.PaymentStatus(r.PaymentStatus),
		Subtotal:            r.Subtotal,
		DeliveryFee:         r.DeliveryFee,
		Total:               r.Total,
		Currency:            r.Currency,
		ETABand:             r.ETABand,
		SubstitutionAllowed: r.SubstitutionAllowed,
		Items:               items,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

type orderEventRow struct {
	Seq        uint64 `gorm:"primaryKey;autoIncrement"`
	ID         string `gorm:"size:64;not null;uniqueIndex:uk_order_events_id"`
	OrderID    string `gorm:"size:64;not null;uniqueIndex:uk_order_events_cause,priority:1"`
	Kind       string `gorm:"size:32;not null;uniqueIndex:uk_order_events_cause,priority:2"`
	Cause      string `gorm:"size:191;not null;uniqueIndex:uk_order_events_cause,priority:3"`
	Metadata   string `gorm:"type:json"`
	OccurredAt time.Time
}

func (orderEventRow) TableName() string { return "order_events" }

func newEventRow(orderID string, ev order.Event) (orderEventRow, error) {
	meta := "{}"
	if len(ev.Metadata) > 0 {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			return orderEventRow{}, err
		}
		meta = string(b)
	}
	return orderEventRow{
		ID:         ev.ID,
		OrderID:    orderID,
		Kind:       string(ev.Kind),
		Cause:      ev.Cause,
		Metadata:   meta,
		OccurredAt: ev.OccurredAt,
	}, nil
}

func (r orderEventRow) toDomain() (order.Event, error) {
	var meta map[string]string
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &meta); err != nil {
			return order.Event{}, err
		}
	}
	if len(meta) == 0 {
		meta = nil
	}
	return order.Event{
		ID:         r.ID,
		OrderID:    r.OrderID,
		Kind:       order.EventKind(r.Kind),
		Cause:      r.Cause,
		Metadata:   meta,
		OccurredAt: r.OccurredAt,
	}, nil
}

type addressRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	CustomerID string `gorm:"size:64;not null;index"`
	Line1      string `gorm:"size:255;not null"`
	City       string `gorm:"size:128;not null"`
	PostalCode string `gorm:"size:16;not null"`
	Formatted  string `gorm:"size:512"`
	Lat        float64
	Lng        float64
	Verified   bool
	CreatedAt  time.Time
}

func (addressRow) TableName() string { return "addresses" }

func (r addressRow) toDomain() *address.Address {
	return &address.Address{
		ID:         r.ID,
		CustomerID: r.CustomerID,
		Line1:      r.Line1,
		City:       r.City,
		PostalCode: r.PostalCode,
		Formatted:  r.Formatted,
		Lat:        r.Lat,
		Lng:        r.Lng,
		Verified:   r.Verified,
		CreatedAt:  r.CreatedAt,
	}
}

type auditRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	DedupeKey string `gorm:"size:191;not null;uniqueIndex:uk_payment_audit_dedupe"`
	IntentID  string `gorm:"size:128;not null;index"`
	EventID   string `gorm:"size:128"`
	Kind      string `gorm:"size:32;not null"`
	OrderID   string `gorm:"size:64"`
	Detail    string `gorm:"type:text"`
	CreatedAt time.Time
}

func (auditRow) TableName() string { return "payment_audit" }

func (r auditRow) toDomain() payment.AuditEntry {
	return payment.AuditEntry{
		ID:        r.ID,
		IntentID:  r.IntentID,
		EventID:   r.EventID,
		Kind:      payment.AuditKind(r.Kind),
		OrderID:   r.OrderID,
		Detail:    r.Detail,
		CreatedAt: r.CreatedAt,
	}
}

type inboxRow struct {
	EventID     string `gorm:"primaryKey;size:128"`
	Type        string `gorm:"size:64;not null"`
	ProcessedAt time.Time
}

func (inboxRow) TableName() string { return "webhook_inbox" }

func encodeLines(lines []basket.Line) (string, error) {
	if lines == nil {
		lines = []basket.Line{}
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeLines(s string) ([]basket.Line, error) {
	if s == "" {
		return nil, nil
	}
	var lines []basket.Line
	if err := json.Unmarshal([]byte(s), &lines); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}
	return lines, nil
}
