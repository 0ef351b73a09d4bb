package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skrafl/server/internal/store"
)

type chatRepo struct {
	b *Backend
}

func (r *chatRepo) messages() *mongo.Collection { return r.b.col("chat_messages") }

func (r *chatRepo) Add(ctx context.Context, m *store.ChatMessage) (string, error) {
	ctx = r.b.sc(ctx)
	if m.ID == "" {
		m.ID = r.b.GenerateID()
	}
	_, err := r.messages().InsertOne(ctx, &chatDoc{
		ID: m.ID, Channel: m.Channel, UserID: m.UserID,
		Recipient: m.Recipient, Text: m.Text, Timestamp: m.Timestamp,
	})
	if err != nil {
		return "", store.BackendErr("insert chat message", err)
	}
	return m.ID, nil
}

func (r *chatRepo) ListNewestFirst(ctx context.Context, channel string, limit int) ([]*store.ChatMessage, error) {
	return r.list(ctx, bson.M{"channel": channel}, limit)
}

func (r *chatRepo) ListForUser(ctx context.Context, userID string, limit int) ([]*store.ChatMessage, error) {
	return r.list(ctx, bson.M{
		"channel": primitive.Regex{Pattern: "^user:"},
		"$or": bson.A{
			bson.M{"user_id": userID},
			bson.M{"recipient": userID},
		},
	}, limit)
}

func (r *chatRepo) DeleteForUser(ctx context.Context, userID string) error {
	ctx = r.b.sc(ctx)
	if _, err := r.messages().DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return store.BackendErr("delete chat messages", err)
	}
	return nil
}

func (r *chatRepo) list(ctx context.Context, filter bson.M, limit int) ([]*store.ChatMessage, error) {
	ctx = r.b.sc(ctx)
	cur, err := r.messages().Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, store.BackendErr("query chat messages", err)
	}
	defer cur.Close(ctx)

	var result []*store.ChatMessage
	for cur.Next(ctx) {
		doc := &chatDoc{}
		if err := cur.Decode(doc); err != nil {
			return nil, store.BackendErr("decode chat message", err)
		}
		result = append(result, &store.ChatMessage{
			ID: doc.ID, Channel: doc.Channel, UserID: doc.UserID,
			Recipient: doc.Recipient, Text: doc.Text,
			Timestamp: doc.Timestamp.UTC(),
		})
	}
	if err := cur.Err(); err != nil {
		return nil, store.BackendErr("iterate chat messages", err)
	}
	return result, nil
}
