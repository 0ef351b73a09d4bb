package pgstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/skrafl/server/internal/store"
)

type favoriteRepo struct {
	b *Backend
}

func (r *favoriteRepo) Add(ctx context.Context, src, dest string) error {
	_, err := r.b.tx.Exec(ctx,
		`INSERT INTO favorites (src, dest) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, src, dest)
	if err != nil {
		return store.BackendErr("insert favorite", err)
	}
	return nil
}

func (r *favoriteRepo) Remove(ctx context.Context, src, dest string) error {
	_, err := r.b.tx.Exec(ctx,
		`DELETE FROM favorites WHERE src = $1 AND dest = $2`, src, dest)
	if err != nil {
		return store.BackendErr("delete favorite", err)
	}
	return nil
}

func (r *favoriteRepo) ListByUser(ctx context.Context, src string) ([]string, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT dest FROM favorites WHERE src = $1`, src)
	if err != nil {
		return nil, store.BackendErr("query favorites", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (r *favoriteRepo) Has(ctx context.Context, src, dest string) (bool, error) {
	var exists bool
	err := r.b.tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM favorites WHERE src = $1 AND dest = $2)`,
		src, dest).Scan(&exists)
	if err != nil {
		return false, store.BackendErr("query favorite", err)
	}
	return exists, nil
}

func (r *favoriteRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.b.tx.Exec(ctx,
		`DELETE FROM favorites WHERE src = $1 OR dest = $1`, userID)
	if err != nil {
		return store.BackendErr("delete favorites", err)
	}
	return nil
}

type blockRepo struct {
	b *Backend
}

func (r *blockRepo) Add(ctx context.Context, blocker, blocked string) error {
	_, err := r.b.tx.Exec(ctx,
		`INSERT INTO blocks (blocker, blocked) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, blocker, blocked)
	if err != nil {
		return store.BackendErr("insert block", err)
	}
	return nil
}

func (r *blockRepo) Remove(ctx context.Context, blocker, blocked string) error {
	_, err := r.b.tx.Exec(ctx,
		`DELETE FROM blocks WHERE blocker = $1 AND blocked = $2`, blocker, blocked)
	if err != nil {
		return store.BackendErr("delete block", err)
	}
	return nil
}

func (r *blockRepo) ListBlockedBy(ctx context.Context, blocker string) ([]string, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT blocked FROM blocks WHERE blocker = $1`, blocker)
	if err != nil {
		return nil, store.BackendErr("query blocks", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (r *blockRepo) ListBlockersOf(ctx context.Context, blocked string) ([]string, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT blocker FROM blocks WHERE blocked = $1`, blocked)
	if err != nil {
		return nil, store.BackendErr("query blockers", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (r *blockRepo) Has(ctx context.Context, blocker, blocked string) (bool, error) {
	var exists bool
	err := r.b.tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM blocks WHERE blocker = $1 AND blocked = $2)`,
		blocker, blocked).Scan(&exists)
	if err != nil {
		return false, store.BackendErr("query block", err)
	}
	return exists, nil
}

func (r *blockRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.b.tx.Exec(ctx,
		`DELETE FROM blocks WHERE blocker = $1 OR blocked = $1`, userID)
	if err != nil {
		return store.BackendErr("delete blocks", err)
	}
	return nil
}

type challengeRepo struct {
	b *Backend
}

func scanChallenge(row pgx.Row) (*store.Challenge, error) {
	c := &store.Challenge{}
	var prefsRaw []byte
	err := row.Scan(&c.Key, &c.Src, &c.Dest, &prefsRaw, &c.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("scan challenge", err)
	}
	if err := json.Unmarshal(prefsRaw, &c.Prefs); err != nil {
		return nil, store.BackendErr("decode challenge prefs", err)
	}
	c.Timestamp = c.Timestamp.UTC()
	return c, nil
}

func (r *challengeRepo) Add(ctx context.Context, c *store.Challenge) error {
	prefsRaw, err := json.Marshal(c.Prefs)
	if err != nil {
		return store.BackendErr("encode challenge prefs", err)
	}
	_, err = r.b.tx.Exec(ctx,
		`INSERT INTO challenges (key, src, dest, prefs, timestamp)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.Key, c.Src, c.Dest, prefsRaw, c.Timestamp)
	if err != nil {
		return store.BackendErr("insert challenge", err)
	}
	return nil
}

func (r *challengeRepo) Find(ctx context.Context, src, dest, key string) (*store.Challenge, error) {
	return scanChallenge(r.b.tx.QueryRow(ctx,
		`SELECT key, src, dest, prefs, timestamp FROM challenges
		 WHERE src = $1 AND dest = $2 AND ($3 = '' OR key = $3)
		 ORDER BY timestamp DESC LIMIT 1`, src, dest, key))
}

func (r *challengeRepo) Delete(ctx context.Context, key string) error {
	_, err := r.b.tx.Exec(ctx, `DELETE FROM challenges WHERE key = $1`, key)
	if err != nil {
		return store.BackendErr("delete challenge", err)
	}
	return nil
}

func (r *challengeRepo) ListIssued(ctx context.Context, userID string) ([]*store.Challenge, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT key, src, dest, prefs, timestamp FROM challenges
		 WHERE src = $1 ORDER BY timestamp DESC`, userID)
	if err != nil {
		return nil, store.BackendErr("query issued challenges", err)
	}
	defer rows.Close()
	return collectChallenges(rows)
}

func (r *challengeRepo) ListReceived(ctx context.Context, userID string) ([]*store.Challenge, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT key, src, dest, prefs, timestamp FROM challenges
		 WHERE dest = $1 ORDER BY timestamp DESC`, userID)
	if err != nil {
		return nil, store.BackendErr("query received challenges", err)
	}
	defer rows.Close()
	return collectChallenges(rows)
}

func (r *challengeRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.b.tx.Exec(ctx,
		`DELETE FROM challenges WHERE src = $1 OR dest = $1`, userID)
	if err != nil {
		return store.BackendErr("delete challenges", err)
	}
	return nil
}

func collectChallenges(rows pgx.Rows) ([]*store.Challenge, error) {
	var result []*store.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func collectIDs(rows pgx.Rows) ([]string, error) {
	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, store.BackendErr("scan id", err)
		}
		result = append(result, id)
	}
	return result, rows.Err()
}
