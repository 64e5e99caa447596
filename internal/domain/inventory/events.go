package inventory

import "time"

// ProductChangedEvent is emitted after an operator edit so the search index can be refreshed.
type ProductChangedEvent struct {
	ProductID  string
	Name       string
	Size       string
	UnitPrice  int64
	Available  bool
	InStock    bool
	OccurredAt time.Time
}

func (ProductChangedEvent) EventName() string { return "inventory.product_changed" }
func (e ProductChangedEvent) AggregateID() string { return e.ProductID }

func NewProductChangedEvent(p *Product) ProductChangedEvent {
	return ProductChangedEvent{
		ProductID:  p.ID,
		Name:       p.Name,
		Size:       p.Size,
		UnitPrice:  p.UnitPrice,
		Available:  p.Available,
		InStock:    p.OnHand > 0,
		OccurredAt: time.Now().UTC(),
	}
}
