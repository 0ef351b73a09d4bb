package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skrafl/server/internal/store"
)

type eloRepo struct {
	b *Backend
}

func (r *eloRepo) Get(ctx context.Context, userID, locale string) (*store.EloRating, error) {
	ctx = r.b.sc(ctx)
	doc := &eloDoc{}
	err := r.b.col("elo_ratings").FindOne(ctx,
		bson.M{"user_id": userID, "locale": locale}).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("find rating", err)
	}
	return &store.EloRating{
		UserID: doc.UserID, Locale: doc.Locale,
		Elo: doc.Elo, HumanElo: doc.HumanElo, ManualElo: doc.ManualElo,
		Timestamp: doc.Timestamp.UTC(),
	}, nil
}

func (r *eloRepo) Put(ctx context.Context, rating *store.EloRating) error {
	ctx = r.b.sc(ctx)
	_, err := r.b.col("elo_ratings").ReplaceOne(ctx,
		bson.M{"user_id": rating.UserID, "locale": rating.Locale},
		&eloDoc{
			UserID: rating.UserID, Locale: rating.Locale,
			Elo: rating.Elo, HumanElo: rating.HumanElo,
			ManualElo: rating.ManualElo, Timestamp: rating.Timestamp,
		},
		options.Replace().SetUpsert(true))
	if err != nil {
		return store.BackendErr("upsert rating", err)
	}
	return nil
}

func (r *eloRepo) DeleteForUser(ctx context.Context, userID string) error {
	ctx = r.b.sc(ctx)
	_, err := r.b.col("elo_ratings").DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return store.BackendErr("delete ratings", err)
	}
	return nil
}

type robotRepo struct {
	b *Backend
}

func (r *robotRepo) Get(ctx context.Context, locale string, level int) (*store.RobotElo, error) {
	ctx = r.b.sc(ctx)
	doc := &robotDoc{}
	err := r.b.col("robot_elo").FindOne(ctx,
		bson.M{"locale": locale, "level": level}).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("find robot rating", err)
	}
	return &store.RobotElo{
		Locale: doc.Locale, Level: doc.Level,
		Elo: doc.Elo, Timestamp: doc.Timestamp.UTC(),
	}, nil
}

func (r *robotRepo) Put(ctx context.Context, rating *store.RobotElo) error {
	ctx = r.b.sc(ctx)
	_, err := r.b.col("robot_elo").ReplaceOne(ctx,
		bson.M{"locale": rating.Locale, "level": rating.Level},
		&robotDoc{
			Locale: rating.Locale, Level: rating.Level,
			Elo: rating.Elo, Timestamp: rating.Timestamp,
		},
		options.Replace().SetUpsert(true))
	if err != nil {
		return store.BackendErr("upsert robot rating", err)
	}
	return nil
}
