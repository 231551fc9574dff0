package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/models"
)

// Feed opens per-conversation change subscriptions for the hub.
type Feed interface {
	Subscribe(ctx context.Context, conversationID string, onEvent func(models.ChangeEvent)) (func(), error)
}

// Hub fans the live change feed out to websocket clients, one room per
// conversation. A room holds exactly one feed subscription, opened
// when the first client joins and torn down when the last one leaves.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[string]*client
	subs  map[string]func()
	feed  Feed
	log   *zap.SugaredLogger
}

func NewHub(feed Feed, log *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms: make(map[string]map[string]*client),
		subs:  make(map[string]func()),
		feed:  feed,
		log:   log,
	}
}

func (h *Hub) register(conversationID string, c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[conversationID]; !ok {
		unsub, err := h.feed.Subscribe(context.Background(), conversationID, func(ev models.ChangeEvent) {
			h.broadcast(conversationID, ev)
		})
		if err != nil {
			return err
		}
		h.rooms[conversationID] = make(map[string]*client)
		h.subs[conversationID] = unsub
	}
	h.rooms[conversationID][c.id] = c
	return nil
}

func (h *Hub) unregister(conversationID, connID string) {
	h.mu.Lock()
	room, ok := h.rooms[conversationID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if c, ok := room[connID]; ok {
		delete(room, connID)
		close(c.send)
	}
	var unsub func()
	if len(room) == 0 {
		delete(h.rooms, conversationID)
		unsub = h.subs[conversationID]
		delete(h.subs, conversationID)
	}
	h.mu.Unlock()

	// unsubscribing waits out any in-flight delivery, and delivery
	// takes h.mu in broadcast; never hold the lock across the call
	if unsub != nil {
		unsub()
	}
}

func (h *Hub) broadcast(conversationID string, ev models.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.rooms[conversationID] {
		select {
		case c.send <- any(ev):
		default:
			h.log.Warnw("drop event for slow client", "conversation", conversationID, "conn", c.id)
		}
	}
}

func (h *Hub) Close() {
	h.mu.Lock()
	for id, room := range h.rooms {
		for _, c := range room {
			close(c.send)
		}
		delete(h.rooms, id)
	}
	unsubs := make([]func(), 0, len(h.subs))
	for id, unsub := range h.subs {
		unsubs = append(unsubs, unsub)
		delete(h.subs, id)
	}
	h.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}
