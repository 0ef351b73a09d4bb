package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skrafl/server/internal/store"
)

type favoriteRepo struct {
	b *Backend
}

func (r *favoriteRepo) Add(ctx context.Context, src, dest string) error {
	ctx = r.b.sc(ctx)
	_, err := r.b.col("favorites").UpdateOne(ctx,
		bson.M{"src": src, "dest": dest},
		bson.M{"$setOnInsert": bson.M{"src": src, "dest": dest}},
		options.Update().SetUpsert(true))
	if err != nil {
		return store.BackendErr("insert favorite", err)
	}
	return nil
}

func (r *favoriteRepo) Remove(ctx context.Context, src, dest string) error {
	ctx = r.b.sc(ctx)
	_, err := r.b.col("favorites").DeleteOne(ctx, bson.M{"src": src, "dest": dest})
	if err != nil {
		return store.BackendErr("delete favorite", err)
	}
	return nil
}

func (r *favoriteRepo) ListByUser(ctx context.Context, src string) ([]string, error) {
	return r.b.collectField(ctx, "favorites", bson.M{"src": src}, "dest")
}

func (r *favoriteRepo) Has(ctx context.Context, src, dest string) (bool, error) {
	return r.b.exists(ctx, "favorites", bson.M{"src": src, "dest": dest})
}

func (r *favoriteRepo) DeleteForUser(ctx context.Context, userID string) error {
	ctx = r.b.sc(ctx)
	_, err := r.b.col("favorites").DeleteMany(ctx,
		bson.M{"$or": bson.A{bson.M{"src": userID}, bson.M{"dest": userID}}})
	if err != nil {
		return store.BackendErr("delete favorites", err)
	}
	return nil
}

type blockRepo struct {
	b *Backend
}

func (r *blockRepo) Add(ctx context.Context, blocker, blocked string) error {
	ctx = r.b.sc(ctx)
	_, err := r.b.col("blocks").UpdateOne(ctx,
		bson.M{"blocker": blocker, "blocked": blocked},
		bson.M{"$setOnInsert": bson.M{"blocker": blocker, "blocked": blocked}},
		options.Update().SetUpsert(true))
	if err != nil {
		return store.BackendErr("insert block", err)
	}
	return nil
}

func (r *blockRepo) Remove(ctx context.Context, blocker, blocked string) error {
	ctx = r.b.sc(ctx)
	_, err := r.b.col("blocks").DeleteOne(ctx,
		bson.M{"blocker": blocker, "blocked": blocked})
	if err != nil {
		return store.BackendErr("delete block", err)
	}
	return nil
}

func (r *blockRepo) ListBlockedBy(ctx context.Context, blocker string) ([]string, error) {
	return r.b.collectField(ctx, "blocks", bson.M{"blocker": blocker}, "blocked")
}

func (r *blockRepo) ListBlockersOf(ctx context.Context, blocked string) ([]string, error) {
	return r.b.collectField(ctx, "blocks", bson.M{"blocked": blocked}, "blocker")
}

func (r *blockRepo) Has(ctx context.Context, blocker, blocked string) (bool, error) {
	return r.b.exists(ctx, "blocks", bson.M{"blocker": blocker, "blocked": blocked})
}

func (r *blockRepo) DeleteForUser(ctx context.Context, userID string) error {
	ctx = r.b.sc(ctx)
	_, err := r.b.col("blocks").DeleteMany(ctx,
		bson.M{"$or": bson.A{bson.M{"blocker": userID}, bson.M{"blocked": userID}}})
	if err != nil {
		return store.BackendErr("delete blocks", err)
	}
	return nil
}

type challengeRepo struct {
	b *Backend
}

func (r *challengeRepo) challenges() *mongo.Collection { return r.b.col("challenges") }

func (r *challengeRepo) Add(ctx context.Context, c *store.Challenge) error {
	ctx = r.b.sc(ctx)
	_, err := r.challenges().InsertOne(ctx, &challengeDoc{
		Key: c.Key, Src: c.Src, Dest: c.Dest,
		Prefs: c.Prefs, Timestamp: c.Timestamp,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrConflict
		}
		return store.BackendErr("insert challenge", err)
	}
	return nil
}

func (r *challengeRepo) Find(ctx context.Context, src, dest, key string) (*store.Challenge, error) {
	ctx = r.b.sc(ctx)
	filter := bson.M{"src": src, "dest": dest}
	if key != "" {
		filter["_id"] = key
	}
	doc := &challengeDoc{}
	err := r.challenges().FindOne(ctx, filter,
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}}),
	).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("find challenge", err)
	}
	return challengeEntity(doc), nil
}

func (r *challengeRepo) Delete(ctx context.Context, key string) error {
	ctx = r.b.sc(ctx)
	if _, err := r.challenges().DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return store.BackendErr("delete challenge", err)
	}
	return nil
}

func (r *challengeRepo) ListIssued(ctx context.Context, userID string) ([]*store.Challenge, error) {
	return r.list(ctx, bson.M{"src": userID})
}

func (r *challengeRepo) ListReceived(ctx context.Context, userID string) ([]*store.Challenge, error) {
	return r.list(ctx, bson.M{"dest": userID})
}

func (r *challengeRepo) DeleteForUser(ctx context.Context, userID string) error {
	ctx = r.b.sc(ctx)
	_, err := r.challenges().DeleteMany(ctx,
		bson.M{"$or": bson.A{bson.M{"src": userID}, bson.M{"dest": userID}}})
	if err != nil {
		return store.BackendErr("delete challenges", err)
	}
	return nil
}

func (r *challengeRepo) list(ctx context.Context, filter bson.M) ([]*store.Challenge, error) {
	ctx = r.b.sc(ctx)
	cur, err := r.challenges().Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
	if err != nil {
		return nil, store.BackendErr("find challenges", err)
	}
	defer cur.Close(ctx)

	var result []*store.Challenge
	for cur.Next(ctx) {
		doc := &challengeDoc{}
		if err := cur.Decode(doc); err != nil {
			return nil, store.BackendErr("decode challenge", err)
		}
		result = append(result, challengeEntity(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, store.BackendErr("iterate challenges", err)
	}
	return result, nil
}

func challengeEntity(doc *challengeDoc) *store.Challenge {
	return &store.Challenge{
		Key: doc.Key, Src: doc.Src, Dest: doc.Dest,
		Prefs: doc.Prefs, Timestamp: doc.Timestamp.UTC(),
	}
}

// collectField projects a single string field out of matching documents.
func (b *Backend) collectField(ctx context.Context, coll string, filter bson.M, field string) ([]string, error) {
	ctx = b.sc(ctx)
	cur, err := b.col(coll).Find(ctx, filter,
		options.Find().SetProjection(bson.M{field: 1}))
	if err != nil {
		return nil, store.BackendErr("query "+coll, err)
	}
	defer cur.Close(ctx)

	var result []string
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, store.BackendErr("decode "+coll, err)
		}
		if v, ok := doc[field].(string); ok {
			result = append(result, v)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, store.BackendErr("iterate "+coll, err)
	}
	return result, nil
}

func (b *Backend) exists(ctx context.Context, coll string, filter bson.M) (bool, error) {
	ctx = b.sc(ctx)
	n, err := b.col(coll).CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, store.BackendErr("count "+coll, err)
	}
	return n > 0, nil
}
