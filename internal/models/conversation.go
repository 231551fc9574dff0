package models

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is the single chat between an unordered pair of users.
type Conversation struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Participants []string           `bson:"participants" json:"participants"`
	PairKey      string             `bson:"pair_key" json:"-"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// PairKey normalizes an unordered participant pair into a stable key
// so that (a,b) and (b,a) resolve to the same conversation.
func PairKey(a, b string) string {
	p := []string{a, b}
	sort.Strings(p)
	return strings.Join(p, ":")
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
