package outbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domoutbox "github.com/ThierryFotabong/feeya/internal/domain/outbox"
)

type pinged struct{ n int }

func (pinged) EventName() string { return "test.pinged" }

func TestBus_FansOutToEverySubscriber(t *testing.T) {
	bus := NewBus(nil, Config{})
	var calls atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		bus.Subscribe("test.pinged", func(context.Context, domoutbox.Event) error {
			calls.Add(1)
			wg.Done()
			return nil
		})
	}
	bus.Start(context.Background())

	require.NoError(t, bus.Publish(context.Background(), pinged{n: 1}))
	wg.Wait()
	assert.Equal(t, int32(2), calls.Load())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	bus.Stop(ctx)
	assert.ErrorIs(t, bus.Publish(context.Background(), pinged{}), ErrStopped)
}

func TestBus_SurvivesPanickingHandler(t *testing.T) {
	bus := NewBus(nil, Config{})
	got := make(chan int, 1)
	bus.Subscribe("test.pinged", func(context.Context, domoutbox.Event) error { panic("boom") })
	bus.Subscribe("test.pinged", func(_ context.Context, e domoutbox.Event) error {
		got <- e.(pinged).n
		return nil
	})
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	require.NoError(t, bus.Publish(context.Background(), pinged{n: 7}))
	select {
	case n := <-got:
		assert.Equal(t, 7, n)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
}

func TestBus_StopDrainsQueue(t *testing.T) {
	bus := NewBus(nil, Config{QueueSize: 16})
	var calls atomic.Int32
	bus.Subscribe("test.pinged", func(context.Context, domoutbox.Event) error {
		calls.Add(1)
		return nil
	})
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), pinged{n: i}))
	}
	bus.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	bus.Stop(ctx)
	assert.Equal(t, int32(5), calls.Load())
}

type sinkFunc func(ctx context.Context, key string, e domoutbox.Event) error

func (f sinkFunc) Send(ctx context.Context, key string, e domoutbox.Event) error { return f(ctx, key, e) }

type captureSub map[string]domoutbox.Handler

func (c captureSub) Subscribe(name string, h domoutbox.Handler) { c[name] = h }

func TestRelay_ForwardsByEventName(t *testing.T) {
	var keys []string
	sink := sinkFunc(func(_ context.Context, key string, _ domoutbox.Event) error {
		keys = append(keys, key)
		if key == "test.fail" {
			return errors.New("broker down")
		}
		return nil
	})
	sub := captureSub{}
	NewRelay(sink, nil, "test.pinged", "test.fail").Attach(sub)

	require.Len(t, sub, 2)
	require.NoError(t, sub["test.pinged"](context.Background(), pinged{}))
	assert.Error(t, sub["test.fail"](context.Background(), failing{}))
	assert.Equal(t, []string{"test.pinged", "test.fail"}, keys)
}

type failing struct{}

func (failing) EventName() string { return "test.fail" }
