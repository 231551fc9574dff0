package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/models"
)

type ConversationCreatedEvent struct {
	ConversationID string    `json:"conversation_id"`
	Participants   []string  `json:"participants"`
	CreatedAt      time.Time `json:"created_at"`
}

// Publisher announces new conversations on NATS for interested
// services. Announcements are fire-and-forget and never fail the
// directory operation.
type Publisher struct {
	nc  *nats.Conn
	log *zap.SugaredLogger
}

func NewPublisher(url string, log *zap.SugaredLogger) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, log: log}, nil
}

func (p *Publisher) ConversationCreated(conv *models.Conversation) {
	if p == nil || p.nc == nil {
		return
	}
	ev := ConversationCreatedEvent{
		ConversationID: conv.ID.Hex(),
		Participants:   conv.Participants,
		CreatedAt:      conv.CreatedAt,
	}
	b, _ := json.Marshal(ev)
	if err := p.nc.Publish("conversation.created", b); err != nil {
		p.log.Warnw("publish conversation.created", "err", err)
	}
}

func (p *Publisher) Close() {
	if p != nil && p.nc != nil {
		p.nc.Close()
	}
}
