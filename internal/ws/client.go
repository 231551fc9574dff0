package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourorg/dm-service/internal/models"
	"github.com/yourorg/dm-service/internal/service"
)

// Sender is the slice of the ledger a connected client may drive.
type Sender interface {
	Send(ctx context.Context, conversationID primitive.ObjectID, senderID, content string, files []service.File) (*models.Message, error)
}

type client struct {
	id           string
	uid          string
	conversation primitive.ObjectID
	ws           *websocket.Conn
	send         chan any
	hub          *Hub
	svc          Sender
}

type inboundFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c.conversation.Hex(), c.id)
		_ = c.ws.Close()
	}()
	c.ws.SetReadLimit(1024 * 32)
	_ = c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			// ignore invalid JSON from client, don't disconnect
			continue
		}
		if frame.Type != "send" {
			continue
		}
		// the resulting insert comes back through the feed; nothing is
		// echoed directly, so every view converges on one code path
		if _, err := c.svc.Send(context.Background(), c.conversation, c.uid, frame.Content, nil); err != nil {
			c.writeError(err)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			b, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}

// writeError reports a failed send back to the initiating connection
// through the write pump, so the caller can offer a retry.
func (c *client) writeError(err error) {
	select {
	case c.send <- map[string]string{"type": "error", "error": err.Error()}:
	default:
	}
}
