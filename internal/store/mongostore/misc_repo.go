package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skrafl/server/internal/store"
)

type zombieRepo struct {
	b *Backend
}

func (r *zombieRepo) Add(ctx context.Context, gameID, userID string) error {
	ctx = r.b.sc(ctx)
	_, err := r.b.col("zombies").UpdateOne(ctx,
		bson.M{"game_id": gameID, "user_id": userID},
		bson.M{"$setOnInsert": &zombieDoc{
			GameID: gameID, UserID: userID,
			Timestamp: nowUTC(),
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		return store.BackendErr("insert zombie", err)
	}
	return nil
}

func (r *zombieRepo) Delete(ctx context.Context, gameID, userID string) error {
	ctx = r.b.sc(ctx)
	_, err := r.b.col("zombies").DeleteOne(ctx,
		bson.M{"game_id": gameID, "user_id": userID})
	if err != nil {
		return store.BackendErr("delete zombie", err)
	}
	return nil
}

func (r *zombieRepo) ListForUser(ctx context.Context, userID string) ([]*store.Zombie, error) {
	ctx = r.b.sc(ctx)
	cur, err := r.b.col("zombies").Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
	if err != nil {
		return nil, store.BackendErr("query zombies", err)
	}
	defer cur.Close(ctx)

	var result []*store.Zombie
	for cur.Next(ctx) {
		doc := &zombieDoc{}
		if err := cur.Decode(doc); err != nil {
			return nil, store.BackendErr("decode zombie", err)
		}
		result = append(result, &store.Zombie{
			GameID: doc.GameID, UserID: doc.UserID,
			Timestamp: doc.Timestamp.UTC(),
		})
	}
	if err := cur.Err(); err != nil {
		return nil, store.BackendErr("iterate zombies", err)
	}
	return result, nil
}

func (r *zombieRepo) DeleteForUser(ctx context.Context, userID string) error {
	ctx = r.b.sc(ctx)
	if _, err := r.b.col("zombies").DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return store.BackendErr("delete zombies", err)
	}
	return nil
}

type ratingRepo struct {
	b *Backend
}

func (r *ratingRepo) ReplaceAll(ctx context.Context, rows []*store.RatingRow) error {
	ctx = r.b.sc(ctx)
	coll := r.b.col("rating_rows")
	if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
		return store.BackendErr("clear rating rows", err)
	}
	if len(rows) > 0 {
		docs := make([]any, len(rows))
		for i, row := range rows {
			docs[i] = toRatingDoc(row)
		}
		if _, err := coll.InsertMany(ctx, docs); err != nil {
			return store.BackendErr("insert rating rows", err)
		}
	}
	if c := r.b.store.cache; c != nil {
		c.invalidate(ctx,
			ratingKey(string(store.RatingAll)),
			ratingKey(string(store.RatingHuman)),
			ratingKey(string(store.RatingManual)))
	}
	return nil
}

func (r *ratingRepo) List(ctx context.Context, kind store.RatingKind) ([]*store.RatingRow, error) {
	if c := r.b.store.cache; c != nil {
		var cached []*store.RatingRow
		if c.get(ctx, ratingKey(string(kind)), &cached) {
			return cached, nil
		}
	}
	ctx = r.b.sc(ctx)
	cur, err := r.b.col("rating_rows").Find(ctx, bson.M{"kind": string(kind)},
		options.Find().SetSort(bson.D{{Key: "rank", Value: 1}}))
	if err != nil {
		return nil, store.BackendErr("query rating rows", err)
	}
	defer cur.Close(ctx)

	var result []*store.RatingRow
	for cur.Next(ctx) {
		doc := &ratingDoc{}
		if err := cur.Decode(doc); err != nil {
			return nil, store.BackendErr("decode rating row", err)
		}
		result = append(result, doc.entity())
	}
	if err := cur.Err(); err != nil {
		return nil, store.BackendErr("iterate rating rows", err)
	}
	if c := r.b.store.cache; c != nil {
		c.put(ctx, ratingKey(string(kind)), result, ratingCacheTTL)
	}
	return result, nil
}

type reportRepo struct {
	b *Backend
}

func (r *reportRepo) Add(ctx context.Context, rep *store.Report) error {
	ctx = r.b.sc(ctx)
	if rep.ID == "" {
		rep.ID = r.b.GenerateID()
	}
	_, err := r.b.col("reports").InsertOne(ctx, &reportDoc{
		ID: rep.ID, Reporter: rep.Reporter, Reported: rep.Reported,
		Code: rep.Code, Text: rep.Text, Timestamp: rep.Timestamp,
	})
	if err != nil {
		return store.BackendErr("insert report", err)
	}
	return nil
}

func (r *reportRepo) DeleteForUser(ctx context.Context, userID string) error {
	ctx = r.b.sc(ctx)
	_, err := r.b.col("reports").DeleteMany(ctx,
		bson.M{"$or": bson.A{bson.M{"reporter": userID}, bson.M{"reported": userID}}})
	if err != nil {
		return store.BackendErr("delete reports", err)
	}
	return nil
}

type promoRepo struct {
	b *Backend
}

func (r *promoRepo) Add(ctx context.Context, p *store.Promo) error {
	ctx = r.b.sc(ctx)
	if p.ID == "" {
		p.ID = r.b.GenerateID()
	}
	_, err := r.b.col("promos").InsertOne(ctx, &promoDoc{
		ID: p.ID, UserID: p.UserID, Promotion: p.Promotion,
		Timestamp: p.Timestamp,
	})
	if err != nil {
		return store.BackendErr("insert promo", err)
	}
	return nil
}

func (r *promoRepo) ListForUser(ctx context.Context, userID, promotion string) ([]*store.Promo, error) {
	ctx = r.b.sc(ctx)
	filter := bson.M{"user_id": userID}
	if promotion != "" {
		filter["promotion"] = promotion
	}
	cur, err := r.b.col("promos").Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
	if err != nil {
		return nil, store.BackendErr("query promos", err)
	}
	defer cur.Close(ctx)

	var result []*store.Promo
	for cur.Next(ctx) {
		doc := &promoDoc{}
		if err := cur.Decode(doc); err != nil {
			return nil, store.BackendErr("decode promo", err)
		}
		result = append(result, &store.Promo{
			ID: doc.ID, UserID: doc.UserID, Promotion: doc.Promotion,
			Timestamp: doc.Timestamp.UTC(),
		})
	}
	if err := cur.Err(); err != nil {
		return nil, store.BackendErr("iterate promos", err)
	}
	return result, nil
}

func (r *promoRepo) DeleteForUser(ctx context.Context, userID string) error {
	ctx = r.b.sc(ctx)
	if _, err := r.b.col("promos").DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return store.BackendErr("delete promos", err)
	}
	return nil
}

type transactionRepo struct {
	b *Backend
}

func (r *transactionRepo) Add(ctx context.Context, t *store.Transaction) error {
	ctx = r.b.sc(ctx)
	if t.ID == "" {
		t.ID = r.b.GenerateID()
	}
	_, err := r.b.col("transactions").InsertOne(ctx, &transactionDoc{
		ID: t.ID, UserID: t.UserID, Plan: t.Plan, Kind: t.Kind,
		Timestamp: t.Timestamp,
	})
	if err != nil {
		return store.BackendErr("insert transaction", err)
	}
	return nil
}

func (r *transactionRepo) DeleteForUser(ctx context.Context, userID string) error {
	ctx = r.b.sc(ctx)
	if _, err := r.b.col("transactions").DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return store.BackendErr("delete transactions", err)
	}
	return nil
}

type submissionRepo struct {
	b *Backend
}

func (r *submissionRepo) Add(ctx context.Context, s *store.Submission) error {
	ctx = r.b.sc(ctx)
	if s.ID == "" {
		s.ID = r.b.GenerateID()
	}
	_, err := r.b.col("submissions").InsertOne(ctx, &submissionDoc{
		ID: s.ID, UserID: s.UserID, Locale: s.Locale,
		Word: s.Word, Comment: s.Comment, Timestamp: s.Timestamp,
	})
	if err != nil {
		return store.BackendErr("insert submission", err)
	}
	return nil
}

func (r *submissionRepo) DeleteForUser(ctx context.Context, userID string) error {
	ctx = r.b.sc(ctx)
	if _, err := r.b.col("submissions").DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return store.BackendErr("delete submissions", err)
	}
	return nil
}

type completionRepo struct {
	b *Backend
}

func (r *completionRepo) Add(ctx context.Context, c *store.Completion) error {
	ctx = r.b.sc(ctx)
	if c.ID == "" {
		c.ID = r.b.GenerateID()
	}
	doc := &completionDoc{
		ID: c.ID, ProcType: c.ProcType, TsFrom: c.TsFrom, TsTo: c.TsTo,
		Success: c.Success, Reason: c.Reason, Timestamp: c.Timestamp,
	}
	if !c.Progress.IsZero() {
		doc.Progress = &c.Progress
	}
	if _, err := r.b.col("completions").InsertOne(ctx, doc); err != nil {
		return store.BackendErr("insert completion", err)
	}
	return nil
}

func (r *completionRepo) Latest(ctx context.Context, procType string) (*store.Completion, error) {
	ctx = r.b.sc(ctx)
	doc := &completionDoc{}
	err := r.b.col("completions").FindOne(ctx, bson.M{"proctype": procType},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}}),
	).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("find completion", err)
	}
	c := &store.Completion{
		ID: doc.ID, ProcType: doc.ProcType,
		TsFrom: doc.TsFrom.UTC(), TsTo: doc.TsTo.UTC(),
		Success: doc.Success, Reason: doc.Reason,
		Timestamp: doc.Timestamp.UTC(),
	}
	if doc.Progress != nil {
		c.Progress = doc.Progress.UTC()
	}
	return c, nil
}

type riddleRepo struct {
	b *Backend
}

func (r *riddleRepo) Get(ctx context.Context, locale, date string) (*store.Riddle, error) {
	ctx = r.b.sc(ctx)
	doc := &riddleDoc{}
	err := r.b.col("riddles").FindOne(ctx,
		bson.M{"locale": locale, "date": date}).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("find riddle", err)
	}
	return &store.Riddle{
		ID: doc.ID, Locale: doc.Locale, Date: doc.Date,
		Solution: doc.Solution,
	}, nil
}

func (r *riddleRepo) Put(ctx context.Context, rd *store.Riddle) error {
	ctx = r.b.sc(ctx)
	if rd.ID == "" {
		rd.ID = r.b.GenerateID()
	}
	_, err := r.b.col("riddles").UpdateOne(ctx,
		bson.M{"locale": rd.Locale, "date": rd.Date},
		bson.M{
			"$set":         bson.M{"solution": rd.Solution},
			"$setOnInsert": bson.M{"_id": rd.ID, "locale": rd.Locale, "date": rd.Date},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return store.BackendErr("upsert riddle", err)
	}
	return nil
}

type imageRepo struct {
	b *Backend
}

func (r *imageRepo) Put(ctx context.Context, img *store.Image) error {
	ctx = r.b.sc(ctx)
	_, err := r.b.col("images").ReplaceOne(ctx,
		bson.M{"_id": img.UserID},
		&imageDoc{
			UserID: img.UserID, MimeType: img.MimeType,
			Data: img.Data, Timestamp: img.Timestamp,
		},
		options.Replace().SetUpsert(true))
	if err != nil {
		return store.BackendErr("upsert image", err)
	}
	return nil
}

func (r *imageRepo) Get(ctx context.Context, userID string) (*store.Image, error) {
	ctx = r.b.sc(ctx)
	doc := &imageDoc{}
	err := r.b.col("images").FindOne(ctx, bson.M{"_id": userID}).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("find image", err)
	}
	return &store.Image{
		UserID: doc.UserID, MimeType: doc.MimeType,
		Data: doc.Data, Timestamp: doc.Timestamp.UTC(),
	}, nil
}

func (r *imageRepo) DeleteForUser(ctx context.Context, userID string) error {
	ctx = r.b.sc(ctx)
	if _, err := r.b.col("images").DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
		return store.BackendErr("delete image", err)
	}
	return nil
}
