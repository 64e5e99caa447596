package memory

import (
	"context"
	"time"

	"github.com/ThierryFotabong/feeya/internal/domain/basket"
	"github.com/ThierryFotabong/feeya/internal/domain/inventory"
	"github.com/ThierryFotabong/feeya/internal/domain/order"
)

type OrderRepository struct{ s *Store }

func NewOrderRepository(s *Store) *OrderRepository {
	return &OrderRepository{s: s}
}

var _ order.Repository = (*OrderRepository)(nil)

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) FindByPaymentIntent(ctx context.Context, intentID string) (*order.Order, error) {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.orderByIntent[intentID]
	if !ok {
		return nil, order.ErrNotFound
	}
	return r.s.orders[id].Clone(), nil
}

func (r *OrderRepository) Events(ctx context.Context, orderID string) ([]order.Event, error) {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orders[orderID]; !ok {
		return nil, order.ErrNotFound
	}
	return append([]order.Event(nil), r.s.events[orderID]...), nil
}

func (r *OrderRepository) Materialize(ctx context.Context, m order.Materialization) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o := m.Order
	if _, dup := r.s.orderByIntent[o.PaymentIntentID]; dup {
		return order.ErrDuplicate
	}
	if _, dup := r.s.orderNumbers[o.Number]; dup {
		return order.ErrDuplicateNumber
	}

	var b *basket.Basket
	if m.BasketID != "" {
		if cur, ok := r.s.baskets[m.BasketID]; ok {
			if cur.Version != m.BasketVersion {
				return basket.ErrConflict
			}
			b = cur
		}
	}

	staged, err := r.s.stage(m.Reserve, m.Release)
	if err != nil {
		return err
	}
	for _, a := range m.Reserve {
		if err := staged[a.ProductID].Reserve(a.Quantity); err != nil {
			return err
		}
	}
	for _, a := range m.Release {
		if err := staged[a.ProductID].Release(a.Quantity); err != nil {
			return err
		}
	}

	r.s.commit(staged)
	r.s.orders[o.ID] = o.Clone()
	r.s.orderByIntent[o.PaymentIntentID] = o.ID
	r.s.orderNumbers[o.Number] = o.ID
	ev := m.Event
	ev.OrderID = o.ID
	r.s.events[o.ID] = append(r.s.events[o.ID], ev)
	if b != nil {
		b.Lines = nil
		b.Recompute(time.Now().UTC())
		b.Version++
	}
	return nil
}

func (r *OrderRepository) Append(ctx context.Context, o *order.Order, t order.Transition) error {
	_ = ctx
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.orders[o.ID]
	if !ok {
		return order.ErrNotFound
	}
	for _, ev := range r.s.events[o.ID] {
		if ev.Kind == t.Event.Kind && ev.Cause == t.Event.Cause {
			return order.ErrDuplicateEvent
		}
	}
	if cur.Status != t.FromStatus || cur.PaymentStatus != t.FromPayment {
		return order.ErrConflict
	}

	var adjs []inventory.Adjustment
	if t.ReleaseStock || t.ConsumeStock {
		adjs = cur.Stock()
	}
	staged, err := r.s.stage(adjs)
	if err != nil {
		return err
	}
	for _, a := range adjs {
		p := staged[a.ProductID]
		if t.ReleaseStock {
			err = p.Release(a.Quantity)
		} else {
			err = p.Consume(a.Quantity)
		}
		if err != nil {
			return err
		}
	}

	r.s.commit(staged)
	cur.Apply(t)
	ev := t.Event
	ev.OrderID = o.ID
	r.s.events[o.ID] = append(r.s.events[o.ID], ev)
	o.Apply(t)
	return nil
}
