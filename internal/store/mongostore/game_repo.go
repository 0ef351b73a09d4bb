package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skrafl/server/internal/store"
)

type gameRepo struct {
	b *Backend
}

func (r *gameRepo) games() *mongo.Collection { return r.b.col("games") }

func (r *gameRepo) Get(ctx context.Context, id string) (*store.Game, error) {
	ctx = r.b.sc(ctx)
	doc := &gameDoc{}
	err := r.games().FindOne(ctx, bson.M{"_id": id}).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("find game", err)
	}
	return doc.entity(), nil
}

func (r *gameRepo) Create(ctx context.Context, g *store.Game) error {
	ctx = r.b.sc(ctx)
	if _, err := r.games().InsertOne(ctx, toGameDoc(g)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: game %s", store.ErrConflict, g.ID)
		}
		return store.BackendErr("insert game", err)
	}
	return nil
}

func (r *gameRepo) Update(ctx context.Context, id string, up store.Updates) error {
	if len(up) == 0 {
		return nil
	}
	ctx = r.b.sc(ctx)
	res, err := r.games().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M(up)})
	if err != nil {
		return store.BackendErr("update game", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: game %s", store.ErrNotFound, id)
	}
	return nil
}

func (r *gameRepo) LiveForUser(ctx context.Context, userID string) ([]*store.Game, error) {
	ctx = r.b.sc(ctx)
	cur, err := r.games().Find(ctx, bson.M{
		"over": false,
		"$or":  playerFilter(userID),
	}, options.Find().SetSort(bson.D{{Key: "ts_last_move", Value: -1}}))
	if err != nil {
		return nil, store.BackendErr("find live games", err)
	}
	return collectGames(ctx, cur)
}

func (r *gameRepo) FinishedForUser(ctx context.Context, userID string, versus *string, limit int) ([]*store.Game, error) {
	ctx = r.b.sc(ctx)
	filter := bson.M{"over": true}
	if versus != nil {
		filter["$or"] = bson.A{
			bson.M{"player0": userID, "player1": *versus},
			bson.M{"player0": *versus, "player1": userID},
		}
	} else {
		filter["$or"] = playerFilter(userID)
	}
	cur, err := r.games().Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "ts_last_move", Value: -1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, store.BackendErr("find finished games", err)
	}
	return collectGames(ctx, cur)
}

func (r *gameRepo) FinishedBetween(ctx context.Context, from, to time.Time) ([]*store.Game, error) {
	ctx = r.b.sc(ctx)
	cur, err := r.games().Find(ctx, bson.M{
		"over":         true,
		"ts_last_move": bson.M{"$gt": from, "$lte": to},
	}, options.Find().SetSort(bson.D{{Key: "ts_last_move", Value: 1}}))
	if err != nil {
		return nil, store.BackendErr("find games in window", err)
	}
	return collectGames(ctx, cur)
}

func (r *gameRepo) NullPlayer(ctx context.Context, userID string) error {
	ctx = r.b.sc(ctx)
	if _, err := r.games().UpdateMany(ctx,
		bson.M{"player0": userID},
		bson.M{"$set": bson.M{"player0": nil}}); err != nil {
		return store.BackendErr("null player0", err)
	}
	if _, err := r.games().UpdateMany(ctx,
		bson.M{"player1": userID},
		bson.M{"$set": bson.M{"player1": nil}}); err != nil {
		return store.BackendErr("null player1", err)
	}
	return nil
}

func playerFilter(userID string) bson.A {
	return bson.A{
		bson.M{"player0": userID},
		bson.M{"player1": userID},
	}
}

func collectGames(ctx context.Context, cur *mongo.Cursor) ([]*store.Game, error) {
	defer cur.Close(ctx)
	var result []*store.Game
	for cur.Next(ctx) {
		doc := &gameDoc{}
		if err := cur.Decode(doc); err != nil {
			return nil, store.BackendErr("decode game", err)
		}
		result = append(result, doc.entity())
	}
	if err := cur.Err(); err != nil {
		return nil, store.BackendErr("iterate games", err)
	}
	return result, nil
}
