package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/dm-service/internal/errs"
	"github.com/yourorg/dm-service/internal/models"
)

type Messages interface {
	Insert(ctx context.Context, m *models.Message) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	List(ctx context.Context, conversationID primitive.ObjectID) ([]*models.Message, error)
	Edit(ctx context.Context, id primitive.ObjectID, senderID, content string, at time.Time) (*models.Message, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, senderID string, at time.Time) (*models.Message, error)
	MarkRead(ctx context.Context, conversationID primitive.ObjectID, readerID string, at time.Time) ([]*models.Message, error)
}

type mongoMessages struct {
	col *mongo.Collection
}

func NewMessages(col *mongo.Collection) Messages {
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return &mongoMessages{col: col}
}

func (r *mongoMessages) Insert(ctx context.Context, m *models.Message) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, m); err != nil {
		return errs.Unavailable(err)
	}
	return nil
}

func (r *mongoMessages) Get(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var m models.Message
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Unavailable(err)
	}
	return &m, nil
}

// List returns every message of the conversation, tombstones included,
// in ascending creation order. Same-millisecond ties fall back to _id
// order, which follows insertion order for ObjectIDs.
func (r *mongoMessages) List(ctx context.Context, conversationID primitive.ObjectID) ([]*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	defer cur.Close(ctx)

	out := []*models.Message{}
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, errs.Unavailable(err)
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, errs.Unavailable(err)
	}
	return out, nil
}

// Edit updates content only when the caller authored the message and it
// is not tombstoned. errs.ErrNotFound means the guard did not match;
// the caller distinguishes missing, foreign, and deleted.
func (r *mongoMessages) Edit(ctx context.Context, id primitive.ObjectID, senderID, content string, at time.Time) (*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "sender_id": senderID, "deleted_at": nil},
		bson.M{"$set": bson.M{"content": content, "updated_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var m models.Message
	if err := res.Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Unavailable(err)
	}
	return &m, nil
}

func (r *mongoMessages) SoftDelete(ctx context.Context, id primitive.ObjectID, senderID string, at time.Time) (*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "sender_id": senderID, "deleted_at": nil},
		bson.M{"$set": bson.M{"deleted_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var m models.Message
	if err := res.Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Unavailable(err)
	}
	return &m, nil
}

// MarkRead stamps read_at on the counterpart's unread messages,
// tombstones included, and returns the affected documents so the
// caller can feed them out as updates. The reader's own messages are
// never touched.
func (r *mongoMessages) MarkRead(ctx context.Context, conversationID primitive.ObjectID, readerID string, at time.Time) ([]*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"conversation_id": conversationID,
		"sender_id":       bson.M{"$ne": readerID},
		"read_at":         nil,
	}

	cur, err := r.col.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			cur.Close(ctx)
			return nil, errs.Unavailable(err)
		}
		ids = append(ids, doc.ID)
	}
	cur.Close(ctx)
	if err := cur.Err(); err != nil {
		return nil, errs.Unavailable(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := r.col.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "read_at": nil},
		bson.M{"$set": bson.M{"read_at": at}},
	); err != nil {
		return nil, errs.Unavailable(err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err = r.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, errs.Unavailable(err)
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, errs.Unavailable(err)
	}
	return out, nil
}
