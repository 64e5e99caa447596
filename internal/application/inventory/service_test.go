package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThierryFotabong/feeya/internal/application"
	dominv "github.com/ThierryFotabong/feeya/internal/domain/inventory"
	domoutbox "github.com/ThierryFotabong/feeya/internal/domain/outbox"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/memory"
)

// loopback delivers published events straight to subscribed handlers.
type loopback struct {
	mu       sync.Mutex
	handlers map[string][]domoutbox.Handler
}

func (l *loopback) Subscribe(name string, h domoutbox.Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handlers == nil {
		l.handlers = map[string][]domoutbox.Handler{}
	}
	l.handlers[name] = append(l.handlers[name], h)
}

func (l *loopback) Publish(ctx context.Context, e domoutbox.Event) error {
	l.mu.Lock()
	hs := append([]domoutbox.Handler(nil), l.handlers[e.EventName()]...)
	l.mu.Unlock()
	for _, h := range hs {
		if err := h(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

type recordingIndex struct {
	docs []Document
}

func (r *recordingIndex) Index(_ context.Context, d Document) error {
	r.docs = append(r.docs, d)
	return nil
}

func newService(t *testing.T) (*Service, *recordingIndex) {
	t.Helper()
	store := memory.NewStore()
	store.Seed(dominv.Product{ID: "yam", Name: "Yam", UnitPrice: 499, Available: true, OnHand: 1, Reserved: 2})
	bus := &loopback{}
	idx := &recordingIndex{}
	NewWorker(bus, idx, nil).Start()
	return NewService(memory.NewInventoryRepository(store), bus, nil), idx
}

func TestRestock_AddsOnHandAndIndexes(t *testing.T) {
	svc, idx := newService(t)

	p, err := svc.Restock(context.Background(), "yam", 4)
	require.NoError(t, err)
	assert.Equal(t, 5, p.OnHand)
	assert.Equal(t, 2, p.Reserved)

	require.Len(t, idx.docs, 1)
	assert.Equal(t, Document{ID: "yam", Name: "Yam", Price: "4.99", Available: true, InStock: true}, idx.docs[0])
}

func TestRestock_Rejections(t *testing.T) {
	svc, idx := newService(t)
	ctx := context.Background()

	_, err := svc.Restock(ctx, "yam", 0)
	assert.ErrorIs(t, err, dominv.ErrInvalidQuantity)
	assert.ErrorIs(t, err, application.ErrValidation)

	_, err = svc.Restock(ctx, "nope", 1)
	assert.ErrorIs(t, err, dominv.ErrNotFound)
	assert.Empty(t, idx.docs)
}

func TestSetAvailability(t *testing.T) {
	svc, idx := newService(t)

	p, err := svc.SetAvailability(context.Background(), "yam", false)
	require.NoError(t, err)
	assert.False(t, p.Available)
	require.Len(t, idx.docs, 1)
	assert.False(t, idx.docs[0].Available)
}

func TestUpsert_CreatesAndEdits(t *testing.T) {
	svc, idx := newService(t)
	ctx := context.Background()

	p, err := svc.Upsert(ctx, UpsertInput{ID: "egusi", Name: " Egusi seeds ", Size: "500g", UnitPrice: 725, Available: true})
	require.NoError(t, err)
	assert.Equal(t, "Egusi seeds", p.Name)
	assert.Zero(t, p.OnHand)

	p, err = svc.Upsert(ctx, UpsertInput{ID: "yam", Name: "White yam", UnitPrice: 550, Available: true})
	require.NoError(t, err)
	assert.Equal(t, 1, p.OnHand)
	assert.Equal(t, int64(550), p.UnitPrice)
	assert.Len(t, idx.docs, 2)

	_, err = svc.Upsert(ctx, UpsertInput{ID: "x", Name: "X", UnitPrice: 0})
	assert.ErrorIs(t, err, application.ErrValidation)
}
