package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/skrafl/server/internal/store"
)

type zombieRepo struct {
	b *Backend
}

func (r *zombieRepo) Add(ctx context.Context, gameID, userID string) error {
	_, err := r.b.tx.Exec(ctx,
		`INSERT INTO zombies (game_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, gameID, userID)
	if err != nil {
		return store.BackendErr("insert zombie", err)
	}
	return nil
}

func (r *zombieRepo) Delete(ctx context.Context, gameID, userID string) error {
	_, err := r.b.tx.Exec(ctx,
		`DELETE FROM zombies WHERE game_id = $1 AND user_id = $2`, gameID, userID)
	if err != nil {
		return store.BackendErr("delete zombie", err)
	}
	return nil
}

func (r *zombieRepo) ListForUser(ctx context.Context, userID string) ([]*store.Zombie, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT game_id, user_id, timestamp FROM zombies
		 WHERE user_id = $1 ORDER BY timestamp DESC`, userID)
	if err != nil {
		return nil, store.BackendErr("query zombies", err)
	}
	defer rows.Close()

	var result []*store.Zombie
	for rows.Next() {
		z := &store.Zombie{}
		if err := rows.Scan(&z.GameID, &z.UserID, &z.Timestamp); err != nil {
			return nil, store.BackendErr("scan zombie", err)
		}
		z.Timestamp = z.Timestamp.UTC()
		result = append(result, z)
	}
	return result, rows.Err()
}

func (r *zombieRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.b.tx.Exec(ctx,
		`DELETE FROM zombies WHERE user_id = $1`, userID)
	if err != nil {
		return store.BackendErr("delete zombies", err)
	}
	return nil
}

type reportRepo struct {
	b *Backend
}

func (r *reportRepo) Add(ctx context.Context, rep *store.Report) error {
	if rep.ID == "" {
		rep.ID = r.b.GenerateID()
	}
	_, err := r.b.tx.Exec(ctx,
		`INSERT INTO reports (id, reporter, reported, code, text, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rep.ID, rep.Reporter, rep.Reported, rep.Code, rep.Text, rep.Timestamp)
	if err != nil {
		return store.BackendErr("insert report", err)
	}
	return nil
}

func (r *reportRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.b.tx.Exec(ctx,
		`DELETE FROM reports WHERE reporter = $1 OR reported = $1`, userID)
	if err != nil {
		return store.BackendErr("delete reports", err)
	}
	return nil
}

type promoRepo struct {
	b *Backend
}

func (r *promoRepo) Add(ctx context.Context, p *store.Promo) error {
	if p.ID == "" {
		p.ID = r.b.GenerateID()
	}
	_, err := r.b.tx.Exec(ctx,
		`INSERT INTO promos (id, user_id, promotion, timestamp)
		 VALUES ($1, $2, $3, $4)`,
		p.ID, p.UserID, p.Promotion, p.Timestamp)
	if err != nil {
		return store.BackendErr("insert promo", err)
	}
	return nil
}

func (r *promoRepo) ListForUser(ctx context.Context, userID, promotion string) ([]*store.Promo, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT id, user_id, promotion, timestamp FROM promos
		 WHERE user_id = $1 AND ($2 = '' OR promotion = $2)
		 ORDER BY timestamp DESC`, userID, promotion)
	if err != nil {
		return nil, store.BackendErr("query promos", err)
	}
	defer rows.Close()

	var result []*store.Promo
	for rows.Next() {
		p := &store.Promo{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.Promotion, &p.Timestamp); err != nil {
			return nil, store.BackendErr("scan promo", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *promoRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.b.tx.Exec(ctx, `DELETE FROM promos WHERE user_id = $1`, userID)
	if err != nil {
		return store.BackendErr("delete promos", err)
	}
	return nil
}

type transactionRepo struct {
	b *Backend
}

func (r *transactionRepo) Add(ctx context.Context, t *store.Transaction) error {
	if t.ID == "" {
		t.ID = r.b.GenerateID()
	}
	_, err := r.b.tx.Exec(ctx,
		`INSERT INTO transactions (id, user_id, plan, kind, timestamp)
		 VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.UserID, t.Plan, t.Kind, t.Timestamp)
	if err != nil {
		return store.BackendErr("insert transaction", err)
	}
	return nil
}

func (r *transactionRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.b.tx.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID)
	if err != nil {
		return store.BackendErr("delete transactions", err)
	}
	return nil
}

type submissionRepo struct {
	b *Backend
}

func (r *submissionRepo) Add(ctx context.Context, s *store.Submission) error {
	if s.ID == "" {
		s.ID = r.b.GenerateID()
	}
	_, err := r.b.tx.Exec(ctx,
		`INSERT INTO submissions (id, user_id, locale, word, comment, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.UserID, s.Locale, s.Word, s.Comment, s.Timestamp)
	if err != nil {
		return store.BackendErr("insert submission", err)
	}
	return nil
}

func (r *submissionRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.b.tx.Exec(ctx, `DELETE FROM submissions WHERE user_id = $1`, userID)
	if err != nil {
		return store.BackendErr("delete submissions", err)
	}
	return nil
}

type completionRepo struct {
	b *Backend
}

func (r *completionRepo) Add(ctx context.Context, c *store.Completion) error {
	if c.ID == "" {
		c.ID = r.b.GenerateID()
	}
	var progress *time.Time
	if !c.Progress.IsZero() {
		progress = &c.Progress
	}
	_, err := r.b.tx.Exec(ctx,
		`INSERT INTO completions (id, proctype, ts_from, ts_to, success, reason, progress, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.ProcType, c.TsFrom, c.TsTo, c.Success, c.Reason, progress, c.Timestamp)
	if err != nil {
		return store.BackendErr("insert completion", err)
	}
	return nil
}

func (r *completionRepo) Latest(ctx context.Context, procType string) (*store.Completion, error) {
	c := &store.Completion{}
	var progress *time.Time
	err := r.b.tx.QueryRow(ctx,
		`SELECT id, proctype, ts_from, ts_to, success, reason, progress, timestamp
		 FROM completions WHERE proctype = $1
		 ORDER BY timestamp DESC LIMIT 1`, procType,
	).Scan(&c.ID, &c.ProcType, &c.TsFrom, &c.TsTo, &c.Success, &c.Reason,
		&progress, &c.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("query completion", err)
	}
	if progress != nil {
		c.Progress = progress.UTC()
	}
	c.TsFrom = c.TsFrom.UTC()
	c.TsTo = c.TsTo.UTC()
	c.Timestamp = c.Timestamp.UTC()
	return c, nil
}

type riddleRepo struct {
	b *Backend
}

func (r *riddleRepo) Get(ctx context.Context, loc, date string) (*store.Riddle, error) {
	rd := &store.Riddle{}
	err := r.b.tx.QueryRow(ctx,
		`SELECT id, locale, date, solution FROM riddles
		 WHERE locale = $1 AND date = $2`, loc, date,
	).Scan(&rd.ID, &rd.Locale, &rd.Date, &rd.Solution)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("query riddle", err)
	}
	return rd, nil
}

func (r *riddleRepo) Put(ctx context.Context, rd *store.Riddle) error {
	if rd.ID == "" {
		rd.ID = r.b.GenerateID()
	}
	_, err := r.b.tx.Exec(ctx,
		`INSERT INTO riddles (id, locale, date, solution)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (locale, date) DO UPDATE SET solution = EXCLUDED.solution`,
		rd.ID, rd.Locale, rd.Date, rd.Solution)
	if err != nil {
		return store.BackendErr("upsert riddle", err)
	}
	return nil
}

type imageRepo struct {
	b *Backend
}

func (r *imageRepo) Put(ctx context.Context, img *store.Image) error {
	_, err := r.b.tx.Exec(ctx,
		`INSERT INTO images (user_id, mime_type, data, timestamp)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
			mime_type = EXCLUDED.mime_type,
			data = EXCLUDED.data,
			timestamp = EXCLUDED.timestamp`,
		img.UserID, img.MimeType, img.Data, img.Timestamp)
	if err != nil {
		return store.BackendErr("upsert image", err)
	}
	return nil
}

func (r *imageRepo) Get(ctx context.Context, userID string) (*store.Image, error) {
	img := &store.Image{}
	err := r.b.tx.QueryRow(ctx,
		`SELECT user_id, mime_type, data, timestamp FROM images WHERE user_id = $1`,
		userID,
	).Scan(&img.UserID, &img.MimeType, &img.Data, &img.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("query image", err)
	}
	img.Timestamp = img.Timestamp.UTC()
	return img, nil
}

func (r *imageRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.b.tx.Exec(ctx, `DELETE FROM images WHERE user_id = $1`, userID)
	if err != nil {
		return store.BackendErr("delete image", err)
	}
	return nil
}
