package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yourorg/dm-service/internal/models"
)

// ChannelFor names the redis channel carrying a conversation's events.
func ChannelFor(conversationID string) string {
	return "conv:" + conversationID
}

// Producer appends committed ledger mutations to the kafka commit
// stream. Messages are keyed by conversation id so events for one
// message land on one partition and keep their commit order.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	})
	return &Producer{writer: w}
}

func (p *Producer) Publish(ctx context.Context, ev models.ChangeEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.Message.ConversationID.Hex()),
		Value: b,
		Time:  time.Now(),
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Producer) Close() error { return p.writer.Close() }
