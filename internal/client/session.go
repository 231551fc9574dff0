// Package client implements the open-chat-view control flow: resolve
// the conversation, take a message snapshot, subscribe to the live
// feed, and fold both through the view reducer.
package client

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourorg/dm-service/internal/models"
	"github.com/yourorg/dm-service/internal/view"
)

// Lister takes the initial message snapshot.
type Lister interface {
	ListMessages(ctx context.Context, conversationID primitive.ObjectID) ([]*models.Message, error)
}

// Feed opens the per-conversation change subscription.
type Feed interface {
	Subscribe(ctx context.Context, conversationID string, onEvent func(models.ChangeEvent)) (func(), error)
}

// Session is one open chat view. Events arriving between subscribe and
// the snapshot read are buffered and folded after ApplyInitial, so the
// reducer always sees the snapshot first.
type Session struct {
	mu       sync.Mutex
	view     *view.View
	pending  []models.ChangeEvent
	ready    bool
	unsub    func()
	onChange func()
}

// Open subscribes first, then fetches the snapshot. If the snapshot
// read fails the subscription is torn down and the error returned.
func Open(ctx context.Context, svc Lister, feed Feed, conversationID primitive.ObjectID) (*Session, error) {
	s := &Session{view: view.New()}

	unsub, err := feed.Subscribe(ctx, conversationID.Hex(), s.handleEvent)
	if err != nil {
		return nil, err
	}
	s.unsub = unsub

	msgs, err := svc.ListMessages(ctx, conversationID)
	if err != nil {
		unsub()
		return nil, err
	}
	snapshot := make([]models.Message, len(msgs))
	for i, m := range msgs {
		snapshot[i] = *m
	}

	s.mu.Lock()
	s.view.ApplyInitial(snapshot)
	for _, ev := range s.pending {
		s.view.Apply(ev)
	}
	s.pending = nil
	s.ready = true
	s.mu.Unlock()
	return s, nil
}

// OnChange registers a callback invoked after each event that changed
// the view. Used by interactive clients to redraw.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Session) handleEvent(ev models.ChangeEvent) {
	s.mu.Lock()
	if !s.ready {
		s.pending = append(s.pending, ev)
		s.mu.Unlock()
		return
	}
	changed := s.view.Apply(ev)
	fn := s.onChange
	s.mu.Unlock()
	if changed && fn != nil {
		fn()
	}
}

// Messages returns the current folded state.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Messages()
}

// Close unsubscribes from the feed. Mutations already in flight finish
// independently; their effects are simply no longer observed.
func (s *Session) Close() {
	if s.unsub != nil {
		s.unsub()
	}
}
