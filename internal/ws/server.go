package ws

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/auth"
	"github.com/yourorg/dm-service/internal/models"
)

// Directory checks that the caller participates in the conversation
// before the hub opens a room for them.
type Directory interface {
	Conversation(ctx context.Context, selfID string, id primitive.ObjectID) (*models.Conversation, error)
}

type Server struct {
	hub *Hub
	jv  *auth.JWTValidator
	dir Directory
	svc Sender
	log *zap.SugaredLogger
}

func NewServer(hub *Hub, jv *auth.JWTValidator, dir Directory, svc Sender, log *zap.SugaredLogger) *Server {
	return &Server{hub: hub, jv: jv, dir: dir, svc: svc, log: log}
}

// HandleWS upgrades a connection for one conversation. The token and
// conversation_id query parameters are required; a connection without
// a resolvable, participating identity is closed before registration.
func (s *Server) HandleWS() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		if token == "" {
			_ = conn.Close()
			return
		}
		uid, err := s.jv.Validate(token)
		if err != nil {
			_ = conn.Close()
			return
		}
		convID, err := primitive.ObjectIDFromHex(conn.Query("conversation_id"))
		if err != nil {
			_ = conn.Close()
			return
		}
		if _, err := s.dir.Conversation(context.Background(), uid, convID); err != nil {
			_ = conn.Close()
			return
		}

		c := &client{
			id:           uuid.NewString(),
			uid:          uid,
			conversation: convID,
			ws:           conn,
			send:         make(chan any, 256),
			hub:          s.hub,
			svc:          s.svc,
		}
		if err := s.hub.register(convID.Hex(), c); err != nil {
			s.log.Errorw("open room", "conversation", convID.Hex(), "err", err)
			_ = conn.Close()
			return
		}
		s.log.Infow("ws connected", "user", uid, "conversation", convID.Hex(), "conn", c.id)
		go c.writePump()
		c.readPump()
	}
}
