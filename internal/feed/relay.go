package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/models"
)

// Relay consumes the kafka commit stream and republishes each event on
// the per-conversation redis channel that live subscribers listen on.
// A failed redis publish is logged and skipped: the feed promises
// at-least-once delivery only during an active connection and never
// backfills (subscribers re-fetch the snapshot after an outage).
type Relay struct {
	reader *kafka.Reader
	rdb    *redis.Client
	log    *zap.SugaredLogger
}

func NewRelay(brokers []string, topic, groupID string, rdb *redis.Client, log *zap.SugaredLogger) *Relay {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	return &Relay{reader: r, rdb: rdb, log: log}
}

func (r *Relay) Run(ctx context.Context) {
	for {
		m, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Errorw("kafka read", "err", err)
			time.Sleep(time.Second)
			continue
		}
		var ev models.ChangeEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			r.log.Warnw("drop malformed change event", "err", err)
			continue
		}
		channel := ChannelFor(ev.Message.ConversationID.Hex())
		if err := r.rdb.Publish(ctx, channel, m.Value).Err(); err != nil {
			r.log.Errorw("redis publish", "channel", channel, "err", err)
		}
	}
}

func (r *Relay) Close() error { return r.reader.Close() }
