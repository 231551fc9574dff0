package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID primitive.ObjectID `bson:"conversation_id" json:"conversation_id"`
	SenderID       string             `bson:"sender_id" json:"sender_id"`
	Content        string             `bson:"content" json:"content"`
	Attachments    []string           `bson:"attachments,omitempty" json:"attachments,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      *time.Time         `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
	ReadAt         *time.Time         `bson:"read_at,omitempty" json:"read_at,omitempty"`
	DeletedAt      *time.Time         `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

func (m *Message) Deleted() bool { return m.DeletedAt != nil }

// Tombstone returns the redacted form of a soft-deleted message:
// content and attachments hidden, everything else kept so the message
// holds its position and count in the conversation.
func (m Message) Tombstone() Message {
	m.Content = ""
	m.Attachments = nil
	return m
}

// Equal reports whether two snapshots of the same message carry the
// same observable state. Used by the view reducer to short-circuit
// redelivered events.
func (m Message) Equal(o Message) bool {
	if m.ID != o.ID || m.ConversationID != o.ConversationID || m.SenderID != o.SenderID {
		return false
	}
	if m.Content != o.Content || !m.CreatedAt.Equal(o.CreatedAt) {
		return false
	}
	if len(m.Attachments) != len(o.Attachments) {
		return false
	}
	for i := range m.Attachments {
		if m.Attachments[i] != o.Attachments[i] {
			return false
		}
	}
	return timeEqual(m.UpdatedAt, o.UpdatedAt) &&
		timeEqual(m.ReadAt, o.ReadAt) &&
		timeEqual(m.DeletedAt, o.DeletedAt)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
