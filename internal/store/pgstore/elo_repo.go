package pgstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/skrafl/server/internal/store"
)

type eloRepo struct {
	b *Backend
}

func (r *eloRepo) Get(ctx context.Context, userID, locale string) (*store.EloRating, error) {
	e := &store.EloRating{}
	err := r.b.tx.QueryRow(ctx,
		`SELECT user_id, locale, elo, human_elo, manual_elo, timestamp
		 FROM elo_ratings WHERE user_id = $1 AND locale = $2`, userID, locale,
	).Scan(&e.UserID, &e.Locale, &e.Elo, &e.HumanElo, &e.ManualElo, &e.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("query elo rating", err)
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}

func (r *eloRepo) Put(ctx context.Context, e *store.EloRating) error {
	_, err := r.b.tx.Exec(ctx,
		`INSERT INTO elo_ratings (user_id, locale, elo, human_elo, manual_elo, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, locale) DO UPDATE SET
			elo = EXCLUDED.elo,
			human_elo = EXCLUDED.human_elo,
			manual_elo = EXCLUDED.manual_elo,
			timestamp = EXCLUDED.timestamp`,
		e.UserID, e.Locale, e.Elo, e.HumanElo, e.ManualElo, e.Timestamp,
	)
	if err != nil {
		return store.BackendErr("upsert elo rating", err)
	}
	return nil
}

func (r *eloRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.b.tx.Exec(ctx,
		`DELETE FROM elo_ratings WHERE user_id = $1`, userID)
	if err != nil {
		return store.BackendErr("delete elo ratings", err)
	}
	return nil
}

type robotRepo struct {
	b *Backend
}

func (r *robotRepo) Get(ctx context.Context, locale string, level int) (*store.RobotElo, error) {
	e := &store.RobotElo{}
	err := r.b.tx.QueryRow(ctx,
		`SELECT locale, level, elo, timestamp
		 FROM robot_elo WHERE locale = $1 AND level = $2`, locale, level,
	).Scan(&e.Locale, &e.Level, &e.Elo, &e.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("query robot elo", err)
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}

func (r *robotRepo) Put(ctx context.Context, e *store.RobotElo) error {
	_, err := r.b.tx.Exec(ctx,
		`INSERT INTO robot_elo (locale, level, elo, timestamp)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (locale, level) DO UPDATE SET
			elo = EXCLUDED.elo,
			timestamp = EXCLUDED.timestamp`,
		e.Locale, e.Level, e.Elo, e.Timestamp,
	)
	if err != nil {
		return store.BackendErr("upsert robot elo", err)
	}
	return nil
}
