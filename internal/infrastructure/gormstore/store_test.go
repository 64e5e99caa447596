package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ThierryFotabong/feeya/internal/domain/basket"
	"github.com/ThierryFotabong/feeya/internal/domain/inventory"
	"github.com/ThierryFotabong/feeya/internal/domain/order"
	"github.com/ThierryFotabong/feeya/internal/domain/payment"
)

func TestDuplicateKey(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantKey string
		wantDup bool
	}{
		{
			name:    "qualified key",
			err:     &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry 'pi_1' for key 'orders.uk_orders_intent'"},
			wantKey: keyOrderIntent,
			wantDup: true,
		},
		{
			name:    "bare key",
			err:     fmt.Errorf("insert: %w", &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry 'FY-1' for key 'uk_orders_number'"}),
			wantKey: keyOrderNumber,
			wantDup: true,
		},
		{name: "other mysql error", err: &gomysql.MySQLError{Number: 1213, Message: "Deadlock found"}},
		{name: "plain error", err: errors.New("boom")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, dup := duplicateKey(tc.err)
			assert.Equal(t, tc.wantDup, dup)
			assert.Equal(t, tc.wantKey, key)
		})
	}
}

// openTestDB connects to MYSQL_DSN and skips when it is not set.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("MYSQL_DSN not set")
	}
	db, err := Open(dsn, Options{AutoMigrate: true, MaxOpenConns: 20})
	require.NoError(t, err)
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, onHand int) string {
	t.Helper()
	id := "p-" + uuid.NewString()[:8]
	_, err := NewInventoryRepository(db).Upsert(context.Background(), &inventory.Product{
		ID: id, Name: "Plantain", Size: "1kg", UnitPrice: 350, Available: true, OnHand: onHand,
	})
	require.NoError(t, err)
	return id
}

func TestInventory_ConcurrentReserveNeverOversells(t *testing.T) {
	db := openTestDB(t)
	repo := NewInventoryRepository(db)
	id := seedProduct(t, db, 5)

	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Reserve(context.Background(), id, 1)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, inventory.ErrInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), ok.Load())
	assert.Equal(t, int32(15), short.Load())
	p, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0, p.OnHand)
	assert.Equal(t, 5, p.Reserved)
}

func TestInventory_UpsertKeepsCounters(t *testing.T) {
	db := openTestDB(t)
	repo := NewInventoryRepository(db)
	id := seedProduct(t, db, 3)
	require.NoError(t, repo.Reserve(context.Background(), id, 2))

	p, err := repo.Upsert(context.Background(), &inventory.Product{ID: id, Name: "Green plantain", UnitPrice: 399, Available: true})
	require.NoError(t, err)
	assert.Equal(t, "Green plantain", p.Name)
	assert.Equal(t, 1, p.OnHand)
	assert.Equal(t, 2, p.Reserved)
}

func TestBasket_VersionedSave(t *testing.T) {
	db := openTestDB(t)
	repo := NewBasketRepository(db)
	ctx := context.Background()

	b := basket.New(uuid.NewString(), basket.Owner{CustomerID: uuid.NewString()}, time.Now().UTC())
	require.NoError(t, repo.Save(ctx, b))
	assert.Equal(t, 1, b.Version)

	stale := b.Clone()
	b.Lines = []basket.Line{{ID: "l1", ProductID: "p1", Name: "Yam", Quantity: 2, UnitPrice: 500}}
	b.Recompute(time.Now().UTC())
	require.NoError(t, repo.Save(ctx, b))
	assert.ErrorIs(t, repo.Save(ctx, stale), basket.ErrConflict)

	got, err := repo.FindByOwner(ctx, b.Owner)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, int64(1000), got.Subtotal)
}

func newPaidOrder(t *testing.T, productID string, qty int) *order.Order {
	t.Helper()
	o, err := order.NewPaid(order.Order{
		ID:              uuid.NewString(),
		Number:          order.FormatNumber(time.Now(), uuid.NewString()[:6]),
		CustomerID:      "c1",
		AddressID:       "a1",
		PaymentIntentID: "pi_" + uuid.NewString(),
		Subtotal:        int64(qty) * 350,
		Total:           int64(qty) * 350,
		Currency:        "EUR",
		Items:           []order.Item{{ID: uuid.NewString(), ProductID: productID, Name: "Plantain", Quantity: qty, UnitPrice: 350}},
	}, time.Now().UTC().Truncate(time.Second))
	require.NoError(t, err)
	return o
}

func TestOrder_MaterializeOnceThenCancelReleases(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	orders := NewOrderRepository(db)
	inv := NewInventoryRepository(db)
	id := seedProduct(t, db, 4)

	o := newPaidOrder(t, id, 3)
	m := order.Materialization{
		Order:   o,
		Event:   order.Event{ID: uuid.NewString(), Kind: order.KindConfirmed, Cause: o.PaymentIntentID, OccurredAt: o.CreatedAt},
		Reserve: []inventory.Adjustment{{ProductID: id, Quantity: 3}},
	}
	require.NoError(t, orders.Materialize(ctx, m))

	again := *o
	again.ID = uuid.NewString()
	again.Number = order.FormatNumber(time.Now(), uuid.NewString()[:6])
	m.Order = &again
	assert.ErrorIs(t, orders.Materialize(ctx, m), order.ErrDuplicate)

	got, err := orders.FindByPaymentIntent(ctx, o.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	require.Len(t, got.Items, 1)

	p, err := inv.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, p.OnHand)
	assert.Equal(t, 3, p.Reserved)

	tr, err := got.Plan(order.Event{ID: uuid.NewString(), Kind: order.KindCancelled, Cause: "operator:ops", OccurredAt: time.Now().UTC()})
	require.NoError(t, err)
	require.NoError(t, orders.Append(ctx, got, tr))
	assert.Equal(t, order.StatusCancelled, got.Status)
	assert.ErrorIs(t, orders.Append(ctx, got, tr), order.ErrDuplicateEvent)

	p, err = inv.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, p.OnHand)
	assert.Equal(t, 0, p.Reserved)

	events, err := orders.Events(ctx, o.ID)
	require.NoError(t, err)
	st, pay, err := order.Fold(events)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, st)
	assert.Equal(t, order.PaymentPaid, pay)
}

func TestOrder_MaterializeShortStockWritesNothing(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	orders := NewOrderRepository(db)
	id := seedProduct(t, db, 1)

	o := newPaidOrder(t, id, 2)
	err := orders.Materialize(ctx, order.Materialization{
		Order:   o,
		Event:   order.Event{ID: uuid.NewString(), Kind: order.KindConfirmed, Cause: o.PaymentIntentID},
		Reserve: []inventory.Adjustment{{ProductID: id, Quantity: 2}},
	})
	var short *inventory.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 1, short.Available)

	_, err = orders.Get(ctx, o.ID)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestPayment_AuditAndInboxAreIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewPaymentRepository(db)
	intent := "pi_" + uuid.NewString()
	evID := "evt_" + uuid.NewString()

	for i := 0; i < 2; i++ {
		inserted, err := repo.Record(ctx, payment.AuditEntry{
			ID: uuid.NewString(), IntentID: intent, EventID: evID, Kind: payment.AuditProviderEvent,
		})
		require.NoError(t, err)
		assert.Equal(t, i == 0, inserted)
		require.NoError(t, repo.MarkProcessed(ctx, evID, payment.EventSucceeded))
	}

	entries, err := repo.ListByIntent(ctx, intent)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	done, err := repo.Processed(ctx, evID)
	require.NoError(t, err)
	assert.True(t, done)
}
