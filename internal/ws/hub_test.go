package ws

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/models"
)

// gatedFeed delivers events the way the real subscriber does: a mutex
// is held across the callback, and unsubscribing takes the same mutex
// so it waits out any in-flight delivery.
type gatedFeed struct {
	mu      sync.Mutex
	closed  bool
	onEvent func(models.ChangeEvent)
}

func (f *gatedFeed) Subscribe(_ context.Context, _ string, onEvent func(models.ChangeEvent)) (func(), error) {
	f.mu.Lock()
	f.closed = false
	f.onEvent = onEvent
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
	}, nil
}

func (f *gatedFeed) emit(ev models.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed && f.onEvent != nil {
		f.onEvent(ev)
	}
}

// A disconnect that empties a room tears down its feed subscription
// while deliveries for that room may still be in flight. Teardown must
// not wait on the delivery gate while holding the hub lock, or both
// sides wedge and every room stalls with them.
func TestHub_LastClientLeavesDuringDelivery(t *testing.T) {
	f := &gatedFeed{}
	h := NewHub(f, zap.NewNop().Sugar())
	conv := "68b0000000000000000000aa"

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ev := models.ChangeEvent{Kind: models.EventInserted}
		for {
			select {
			case <-stop:
				return
			default:
				f.emit(ev)
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			c := &client{id: fmt.Sprintf("conn-%d", i), send: make(chan any, 1), hub: h}
			if err := h.register(conv, c); err != nil {
				return
			}
			h.unregister(conv, c.id)
		}
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("hub wedged: room teardown and event delivery are waiting on each other")
	}
	close(stop)
	wg.Wait()
}

// Shutdown tears down every room's subscription; like unregister it
// must release the hub lock before waiting out in-flight deliveries.
func TestHub_CloseDuringDelivery(t *testing.T) {
	f := &gatedFeed{}
	h := NewHub(f, zap.NewNop().Sugar())
	conv := "68b0000000000000000000ab"

	c := &client{id: "conn-0", send: make(chan any, 1), hub: h}
	require.NoError(t, h.register(conv, c))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ev := models.ChangeEvent{Kind: models.EventUpdated}
		for {
			select {
			case <-stop:
				return
			default:
				f.emit(ev)
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Close()
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("hub shutdown wedged against in-flight delivery")
	}
	close(stop)
	wg.Wait()
}
