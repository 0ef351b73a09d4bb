package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skrafl/server/internal/store"
)

type userRepo struct {
	b *Backend
}

func (r *userRepo) users() *mongo.Collection { return r.b.col("users") }

func (r *userRepo) Get(ctx context.Context, id string) (*store.User, error) {
	if c := r.b.store.cache; c != nil {
		u := &store.User{}
		if c.get(ctx, userKey(id), u) {
			return u, nil
		}
	}
	ctx = r.b.sc(ctx)
	doc := &userDoc{}
	err := r.users().FindOne(ctx, bson.M{"_id": id}).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("find user", err)
	}
	u := doc.entity()
	if c := r.b.store.cache; c != nil {
		c.put(ctx, userKey(id), u, userCacheTTL)
	}
	return u, nil
}

func (r *userRepo) GetMulti(ctx context.Context, ids []string) (map[string]*store.User, error) {
	ctx = r.b.sc(ctx)
	cur, err := r.users().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, store.BackendErr("find users", err)
	}
	result := make(map[string]*store.User, len(ids))
	docs, err := collectUsers(ctx, cur)
	if err != nil {
		return nil, err
	}
	for _, u := range docs {
		result[u.ID] = u
	}
	return result, nil
}

func (r *userRepo) ByAccount(ctx context.Context, account string) (*store.User, error) {
	return r.findOne(ctx, bson.M{"account": account})
}

// ByEmail prefers the newest active, rated account; legacy accounts can
// share an email address.
func (r *userRepo) ByEmail(ctx context.Context, email string) (*store.User, error) {
	ctx = r.b.sc(ctx)
	cur, err := r.users().Find(ctx, bson.M{"email": email},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
	if err != nil {
		return nil, store.BackendErr("find user by email", err)
	}
	candidates, err := collectUsers(ctx, cur)
	if err != nil {
		return nil, err
	}
	for _, u := range candidates {
		if !u.Inactive && u.Elo > 0 {
			return u, nil
		}
	}
	if len(candidates) > 0 {
		return candidates[0], nil
	}
	return nil, nil
}

func (r *userRepo) ByNickname(ctx context.Context, nickLower string) (*store.User, error) {
	return r.findOne(ctx, bson.M{"nick_lower": nickLower})
}

func (r *userRepo) SearchPrefix(ctx context.Context, prefix, locale string, limit int) ([]*store.User, error) {
	ctx = r.b.sc(ctx)
	pattern := primitive.Regex{Pattern: "^" + escapeRegex(prefix)}
	filter := bson.M{
		"inactive": false,
		"$or": bson.A{
			bson.M{"nick_lower": pattern},
			bson.M{"full_name_lower": pattern},
		},
	}
	if locale != "" {
		filter["locale"] = locale
	}
	cur, err := r.users().Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "nick_lower", Value: 1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, store.BackendErr("search users", err)
	}
	return collectUsers(ctx, cur)
}

func (r *userRepo) BelowHumanElo(ctx context.Context, elo int, locale string, limit int) ([]*store.User, error) {
	return r.byHumanElo(ctx, bson.M{"$lt": elo}, -1, locale, limit)
}

func (r *userRepo) AtOrAboveHumanElo(ctx context.Context, elo int, locale string, limit int) ([]*store.User, error) {
	return r.byHumanElo(ctx, bson.M{"$gte": elo}, 1, locale, limit)
}

func (r *userRepo) byHumanElo(ctx context.Context, cond bson.M, dir int, locale string, limit int) ([]*store.User, error) {
	ctx = r.b.sc(ctx)
	filter := bson.M{"inactive": false, "human_elo": cond}
	if locale != "" {
		filter["locale"] = locale
	}
	cur, err := r.users().Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "human_elo", Value: dir}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, store.BackendErr("find users by elo", err)
	}
	return collectUsers(ctx, cur)
}

func (r *userRepo) Create(ctx context.Context, u *store.User) error {
	ctx = r.b.sc(ctx)
	if _, err := r.users().InsertOne(ctx, toUserDoc(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: user %s", store.ErrConflict, u.ID)
		}
		return store.BackendErr("insert user", err)
	}
	return nil
}

func (r *userRepo) Update(ctx context.Context, id string, up store.Updates) error {
	if len(up) == 0 {
		return nil
	}
	ctx = r.b.sc(ctx)
	res, err := r.users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M(up)})
	if err != nil {
		return store.BackendErr("update user", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, id)
	}
	if c := r.b.store.cache; c != nil {
		c.invalidate(ctx, userKey(id))
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	ctx = r.b.sc(ctx)
	res, err := r.users().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return store.BackendErr("delete user", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, id)
	}
	if c := r.b.store.cache; c != nil {
		c.invalidate(ctx, userKey(id))
	}
	return nil
}

func (r *userRepo) findOne(ctx context.Context, filter bson.M) (*store.User, error) {
	ctx = r.b.sc(ctx)
	doc := &userDoc{}
	err := r.users().FindOne(ctx, filter).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("find user", err)
	}
	return doc.entity(), nil
}

func collectUsers(ctx context.Context, cur *mongo.Cursor) ([]*store.User, error) {
	defer cur.Close(ctx)
	var result []*store.User
	for cur.Next(ctx) {
		doc := &userDoc{}
		if err := cur.Decode(doc); err != nil {
			return nil, store.BackendErr("decode user", err)
		}
		result = append(result, doc.entity())
	}
	if err := cur.Err(); err != nil {
		return nil, store.BackendErr("iterate users", err)
	}
	return result, nil
}

// escapeRegex quotes regex metacharacters so a user-typed prefix cannot
// change the query's meaning.
func escapeRegex(s string) string {
	const meta = `\.+*?()|[]{}^$`
	out := make([]rune, 0, len(s))
	for _, c := range s {
		for _, m := range meta {
			if c == m {
				out = append(out, '\\')
				break
			}
		}
		out = append(out, c)
	}
	return string(out)
}
