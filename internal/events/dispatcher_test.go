package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishDoesNotWaitForHandlers(t *testing.T) {
	d := NewAsyncDispatcher(zap.NewNop(), 4, 1)
	defer d.Close()

	release := make(chan struct{})
	var delivered atomic.Int32
	d.Subscribe(EventApplicationStatusChanged, func(ctx context.Context, e Event) error {
		<-release
		delivered.Add(1)
		return nil
	})

	start := time.Now()
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventApplicationStatusChanged}))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, int32(0), delivered.Load())

	close(release)
	assert.Eventually(t, func() bool { return delivered.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPublishDropsWhenFull(t *testing.T) {
	d := NewAsyncDispatcher(zap.NewNop(), 1, 1)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Subscribe(EventApplicationReceived, func(ctx context.Context, e Event) error {
		started <- struct{}{}
		<-block
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventApplicationReceived}))
	<-started
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventApplicationReceived}))
	assert.ErrorIs(t, d.Publish(context.Background(), Event{Type: EventApplicationReceived}), ErrDispatcherFull)

	close(block)
	d.Close()
	assert.ErrorIs(t, d.Publish(context.Background(), Event{Type: EventApplicationReceived}), ErrDispatcherClosed)
}

func TestHandlerFailuresAreIsolated(t *testing.T) {
	d := NewAsyncDispatcher(zap.NewNop(), 8, 1)

	var mu sync.Mutex
	var seen []string
	d.Subscribe(EventApplicationReceived, func(ctx context.Context, e Event) error {
		return errors.New("mail relay down")
	})
	d.Subscribe(EventApplicationReceived, func(ctx context.Context, e Event) error {
		panic("boom")
	})
	d.Subscribe(EventApplicationReceived, func(ctx context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.ID)
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{ID: "a", Type: EventApplicationReceived}))
	require.NoError(t, d.Publish(context.Background(), Event{ID: "b", Type: EventApplicationReceived}))
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestAcceptedEventsAreDeliveredAcrossClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		d := NewAsyncDispatcher(zap.NewNop(), 1024, 2)
		var delivered atomic.Int32
		d.Subscribe(EventApplicationReceived, func(context.Context, Event) error {
			delivered.Add(1)
			return nil
		})

		var accepted atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					err := d.Publish(context.Background(), Event{Type: EventApplicationReceived})
					if err == nil {
						accepted.Add(1)
					} else {
						assert.ErrorIs(t, err, ErrDispatcherClosed)
					}
				}
			}()
		}
		d.Close()
		wg.Wait()

		assert.Equal(t, accepted.Load(), delivered.Load())
		assert.ErrorIs(t, d.Publish(context.Background(), Event{Type: EventApplicationReceived}), ErrDispatcherClosed)
	}
}
