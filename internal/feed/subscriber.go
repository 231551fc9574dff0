package feed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/errs"
	"github.com/yourorg/dm-service/internal/models"
)

// Subscriber opens per-conversation push channels over redis pub/sub.
type Subscriber struct {
	rdb *redis.Client
	log *zap.SugaredLogger
}

func NewSubscriber(rdb *redis.Client, log *zap.SugaredLogger) *Subscriber {
	return &Subscriber{rdb: rdb, log: log}
}

// Subscribe invokes onEvent for every change event of the conversation
// until the returned function is called. Unsubscribing is synchronous:
// once it returns, onEvent will not be invoked again.
func (s *Subscriber) Subscribe(ctx context.Context, conversationID string, onEvent func(models.ChangeEvent)) (func(), error) {
	pubsub := s.rdb.Subscribe(ctx, ChannelFor(conversationID))
	// confirm the subscription before reporting success
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errs.Unavailable(err)
	}

	g := newGate(onEvent)
	go func() {
		for msg := range pubsub.Channel() {
			var ev models.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.log.Warnw("drop malformed feed payload", "conversation", conversationID, "err", err)
				continue
			}
			g.Emit(ev)
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			g.Close()
			_ = pubsub.Close()
		})
	}
	return unsubscribe, nil
}
