package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/dm-service/internal/errs"
	"github.com/yourorg/dm-service/internal/models"
)

type Conversations interface {
	FindOrCreate(ctx context.Context, selfID, otherID string) (*models.Conversation, bool, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
	Touch(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

type mongoConversations struct {
	col *mongo.Collection
}

// NewConversations wraps the conversations collection. A unique index on
// the normalized participant pair is created best-effort: when it is in
// place the find-or-create race in concurrent opens cannot produce a
// duplicate; without it the duplicate is benign and re-read on conflict.
func NewConversations(col *mongo.Collection) Conversations {
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "pair_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return &mongoConversations{col: col}
}

func (r *mongoConversations) FindOrCreate(ctx context.Context, selfID, otherID string) (*models.Conversation, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := models.PairKey(selfID, otherID)

	var found models.Conversation
	err := r.col.FindOne(ctx, bson.M{"pair_key": key}).Decode(&found)
	if err == nil {
		return &found, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, errs.Unavailable(err)
	}

	participants := []string{selfID, otherID}
	sort.Strings(participants)
	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:           primitive.NewObjectID(),
		Participants: participants,
		PairKey:      key,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.col.InsertOne(ctx, conv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// the other side won the race; take their row
			if ferr := r.col.FindOne(ctx, bson.M{"pair_key": key}).Decode(&found); ferr == nil {
				return &found, false, nil
			}
		}
		return nil, false, errs.Unavailable(err)
	}
	return conv, true, nil
}

func (r *mongoConversations) Get(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var conv models.Conversation
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&conv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Unavailable(err)
	}
	return &conv, nil
}

func (r *mongoConversations) ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	defer cur.Close(ctx)

	out := []*models.Conversation{}
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, errs.Unavailable(err)
		}
		out = append(out, &c)
	}
	if err := cur.Err(); err != nil {
		return nil, errs.Unavailable(err)
	}
	return out, nil
}

func (r *mongoConversations) Touch(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"updated_at": at}})
	if err != nil {
		return errs.Unavailable(err)
	}
	return nil
}
