package feed

import (
	"sync"

	"github.com/yourorg/dm-service/internal/models"
)

// gate serializes event delivery and makes Close synchronous-effective:
// after Close returns, Emit never reaches the callback again, even for
// payloads already in flight on the transport.
type gate struct {
	mu     sync.Mutex
	closed bool
	fn     func(models.ChangeEvent)
}

func newGate(fn func(models.ChangeEvent)) *gate {
	return &gate{fn: fn}
}

func (g *gate) Emit(ev models.ChangeEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.fn(ev)
}

func (g *gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
