package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThierryFotabong/feeya/internal/domain/basket"
	"github.com/ThierryFotabong/feeya/internal/domain/inventory"
	"github.com/ThierryFotabong/feeya/internal/domain/order"
	"github.com/ThierryFotabong/feeya/internal/domain/payment"
)

func seeded(onHand int) *Store {
	s := NewStore()
	s.Seed(inventory.Product{ID: "p1", Name: "Plantain", UnitPrice: 250, Available: true, OnHand: onHand})
	return s
}

func TestInventoryRepository_ConcurrentReserveNeverOversells(t *testing.T) {
	s := seeded(5)
	repo := NewInventoryRepository(s)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, short := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Reserve(context.Background(), "p1", 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, inventory.ErrInsufficientStock) {
				short++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 15, short)
	p, err := repo.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.OnHand)
	assert.Equal(t, 5, p.Reserved)
}

func TestInventoryRepository_ReserveReportsAvailable(t *testing.T) {
	repo := NewInventoryRepository(seeded(2))

	err := repo.Reserve(context.Background(), "p1", 3)

	var ise *inventory.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 2, ise.Available)
}

func TestInventoryRepository_UpsertKeepsCounters(t *testing.T) {
	repo := NewInventoryRepository(seeded(7))

	p, err := repo.Upsert(context.Background(), &inventory.Product{ID: "p1", Name: "Green plantain", UnitPrice: 300, Available: true})
	require.NoError(t, err)
	assert.Equal(t, "Green plantain", p.Name)
	assert.Equal(t, 7, p.OnHand)
}

func TestBasketRepository_SaveIsVersioned(t *testing.T) {
	repo := NewBasketRepository(NewStore())
	ctx := context.Background()
	b := basket.New("b1", basket.Owner{CustomerID: "c1"}, time.Now())

	require.NoError(t, repo.Save(ctx, b))
	assert.Equal(t, 1, b.Version)

	stale := b.Clone()
	require.NoError(t, repo.Save(ctx, b))
	assert.ErrorIs(t, repo.Save(ctx, stale), basket.ErrConflict)

	got, err := repo.FindByOwner(ctx, basket.Owner{CustomerID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}

func paidOrder(t *testing.T, intentID, number string) *order.Order {
	t.Helper()
	o, err := order.NewPaid(order.Order{
		ID: "o-" + intentID, Number: number, CustomerID: "c1", PaymentIntentID: intentID,
		Items:    []order.Item{{ID: "i1", ProductID: "p1", Quantity: 2, UnitPrice: 250}},
		Subtotal: 500, DeliveryFee: 399, Total: 899, Currency: "eur",
	}, time.Now())
	require.NoError(t, err)
	return o
}

func TestOrderRepository_MaterializeIsAtomic(t *testing.T) {
	s := seeded(1)
	orders := NewOrderRepository(s)
	inv := NewInventoryRepository(s)
	ctx := context.Background()

	o := paidOrder(t, "pi_1", "FY-1")
	err := orders.Materialize(ctx, order.Materialization{
		Order:   o,
		Event:   order.Event{ID: "e1", Kind: order.KindConfirmed, Cause: "pi_1"},
		Reserve: []inventory.Adjustment{{ProductID: "p1", Quantity: 2}},
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	_, err = orders.FindByPaymentIntent(ctx, "pi_1")
	assert.ErrorIs(t, err, order.ErrNotFound)
	p, _ := inv.Get(ctx, "p1")
	assert.Equal(t, 1, p.OnHand)
}

func TestOrderRepository_MaterializeClearsBasketAndRejectsDuplicates(t *testing.T) {
	s := seeded(10)
	orders := NewOrderRepository(s)
	baskets := NewBasketRepository(s)
	ctx := context.Background()

	b := basket.New("b1", basket.Owner{CustomerID: "c1"}, time.Now())
	b.Lines = []basket.Line{{ID: "l1", ProductID: "p1", Quantity: 2, UnitPrice: 250}}
	require.NoError(t, baskets.Save(ctx, b))

	m := order.Materialization{
		Order:         paidOrder(t, "pi_1", "FY-1"),
		Event:         order.Event{ID: "e1", Kind: order.KindConfirmed, Cause: "pi_1"},
		BasketID:      "b1",
		BasketVersion: 1,
	}
	require.NoError(t, orders.Materialize(ctx, m))

	got, err := baskets.Get(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
	assert.Equal(t, 2, got.Version)

	assert.ErrorIs(t, orders.Materialize(ctx, m), order.ErrDuplicate)

	other := m
	other.Order = paidOrder(t, "pi_2", "FY-2")
	assert.ErrorIs(t, orders.Materialize(ctx, other), basket.ErrConflict)
}

func TestOrderRepository_AppendCancelReleasesStock(t *testing.T) {
	s := seeded(10)
	orders := NewOrderRepository(s)
	inv := NewInventoryRepository(s)
	ctx := context.Background()

	o := paidOrder(t, "pi_1", "FY-1")
	require.NoError(t, orders.Materialize(ctx, order.Materialization{
		Order:   o,
		Event:   order.Event{ID: "e1", Kind: order.KindConfirmed, Cause: "pi_1"},
		Reserve: []inventory.Adjustment{{ProductID: "p1", Quantity: 2}},
	}))

	tr, err := o.Plan(order.Event{ID: "e2", Kind: order.KindCancelled, Cause: "operator:ops"})
	require.NoError(t, err)
	require.NoError(t, orders.Append(ctx, o, tr))
	assert.Equal(t, order.StatusCancelled, o.Status)

	p, _ := inv.Get(ctx, "p1")
	assert.Equal(t, 10, p.OnHand)
	assert.Equal(t, 0, p.Reserved)

	assert.ErrorIs(t, orders.Append(ctx, o, tr), order.ErrDuplicateEvent)

	evs, err := orders.Events(ctx, o.ID)
	require.NoError(t, err)
	st, pay, err := order.Fold(evs)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, st)
	assert.Equal(t, order.PaymentPaid, pay)
}

func TestOrderRepository_AppendDetectsStaleStatus(t *testing.T) {
	s := seeded(10)
	orders := NewOrderRepository(s)
	ctx := context.Background()

	o := paidOrder(t, "pi_1", "FY-1")
	require.NoError(t, orders.Materialize(ctx, order.Materialization{
		Order: o, Event: order.Event{ID: "e1", Kind: order.KindConfirmed, Cause: "pi_1"},
	}))
	stale := o.Clone()

	tr, err := o.Plan(order.Event{ID: "e2", Kind: order.KindPreparing, Cause: "operator:a"})
	require.NoError(t, err)
	require.NoError(t, orders.Append(ctx, o, tr))

	tr2, err := stale.Plan(order.Event{ID: "e3", Kind: order.KindCancelled, Cause: "operator:b"})
	require.NoError(t, err)
	assert.ErrorIs(t, orders.Append(ctx, stale, tr2), order.ErrConflict)
}

func TestPaymentRepository_RecordReportsFirstInsert(t *testing.T) {
	repo := NewPaymentRepository(NewStore())
	ctx := context.Background()
	entry := payment.AuditEntry{ID: "a1", IntentID: "pi_1", Kind: payment.AuditRefundRequired}

	inserted, err := repo.Record(ctx, entry)
	require.NoError(t, err)
	assert.True(t, inserted)

	entry.ID = "a2"
	inserted, err = repo.Record(ctx, entry)
	require.NoError(t, err)
	assert.False(t, inserted)

	entries, err := repo.ListByIntent(ctx, "pi_1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
