package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skrafl/server/internal/store"
)

type statsRepo struct {
	b *Backend
}

func (r *statsRepo) stats() *mongo.Collection { return r.b.col("user_stats") }

func (r *statsRepo) LatestBefore(ctx context.Context, userID string, ts time.Time) (*store.UserStats, error) {
	ctx = r.b.sc(ctx)
	doc := &statsDoc{}
	err := r.stats().FindOne(ctx,
		bson.M{"user_id": userID, "timestamp": bson.M{"$lte": ts}},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}}),
	).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("find stats", err)
	}
	return doc.entity(), nil
}

func (r *statsRepo) DeleteAt(ctx context.Context, userIDs []string, ts time.Time) error {
	ctx = r.b.sc(ctx)
	_, err := r.stats().DeleteMany(ctx, bson.M{
		"timestamp": ts,
		"user_id":   bson.M{"$in": userIDs},
	})
	if err != nil {
		return store.BackendErr("delete stats at boundary", err)
	}
	return nil
}

func (r *statsRepo) PutMulti(ctx context.Context, rows []*store.UserStats) error {
	if len(rows) == 0 {
		return nil
	}
	ctx = r.b.sc(ctx)
	docs := make([]any, len(rows))
	for i, s := range rows {
		docs[i] = toStatsDoc(s)
	}
	if _, err := r.stats().InsertMany(ctx, docs); err != nil {
		return store.BackendErr("insert stats", err)
	}
	return nil
}

// LatestPerUserBefore groups snapshots by user after a descending sort, so
// $first picks each user's newest snapshot within the bound.
func (r *statsRepo) LatestPerUserBefore(ctx context.Context, ts time.Time) ([]*store.UserStats, error) {
	ctx = r.b.sc(ctx)
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"timestamp": bson.M{"$lte": ts}}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "timestamp", Value: -1},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": "$user_id",
			"doc": bson.M{"$first": "$$ROOT"},
		}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$doc"}}},
	}
	cur, err := r.stats().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, store.BackendErr("aggregate latest stats", err)
	}
	defer cur.Close(ctx)

	var result []*store.UserStats
	for cur.Next(ctx) {
		doc := &statsDoc{}
		if err := cur.Decode(doc); err != nil {
			return nil, store.BackendErr("decode stats", err)
		}
		result = append(result, doc.entity())
	}
	if err := cur.Err(); err != nil {
		return nil, store.BackendErr("iterate stats", err)
	}
	return result, nil
}

func (r *statsRepo) DeleteForUser(ctx context.Context, userID string) error {
	ctx = r.b.sc(ctx)
	if _, err := r.stats().DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return store.BackendErr("delete stats", err)
	}
	return nil
}
