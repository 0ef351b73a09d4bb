package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/skrafl/server/internal/store"
)

type userRepo struct {
	b *Backend
}

const userCols = `id, COALESCE(account,''), email, nickname, nick_lower, full_name_lower,
	image, image_blob, locale, location, prefs, inactive, ready, ready_timed,
	chat_disabled, plan, elo, human_elo, manual_elo,
	highest_score, highest_score_game, best_word, best_word_score, best_word_game,
	games, timestamp, last_login`

func scanUser(row pgx.Row) (*store.User, error) {
	u := &store.User{}
	var prefsRaw []byte
	err := row.Scan(
		&u.ID, &u.Account, &u.Email, &u.Nickname, &u.NickLower, &u.FullNameLower,
		&u.Image, &u.ImageBlob, &u.Locale, &u.Location, &prefsRaw, &u.Inactive,
		&u.Ready, &u.ReadyTimed, &u.ChatDisabled, &u.Plan,
		&u.Elo, &u.HumanElo, &u.ManualElo,
		&u.HighestScore, &u.HighestScoreGameID, &u.BestWord, &u.BestWordScore, &u.BestWordGameID,
		&u.GamesPlayed, &u.Timestamp, &u.LastLogin,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("scan user", err)
	}
	if len(prefsRaw) > 0 {
		if err := json.Unmarshal(prefsRaw, &u.Prefs); err != nil {
			return nil, store.BackendErr("decode prefs", err)
		}
	}
	if u.Prefs == nil {
		u.Prefs = store.Prefs{}
	}
	return u, nil
}

func (r *userRepo) Get(ctx context.Context, id string) (*store.User, error) {
	return scanUser(r.b.tx.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepo) GetMulti(ctx context.Context, ids []string) (map[string]*store.User, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, store.BackendErr("query users", err)
	}
	defer rows.Close()

	result := make(map[string]*store.User, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result[u.ID] = u
	}
	return result, rows.Err()
}

func (r *userRepo) ByAccount(ctx context.Context, account string) (*store.User, error) {
	return scanUser(r.b.tx.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE account = $1`, account))
}

// ByEmail prefers the newest active user with a positive Elo; legacy
// accounts can share an address.
func (r *userRepo) ByEmail(ctx context.Context, email string) (*store.User, error) {
	return scanUser(r.b.tx.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE email = $1
		 ORDER BY (NOT inactive AND elo > 0) DESC, timestamp DESC
		 LIMIT 1`, strings.ToLower(email)))
}

func (r *userRepo) ByNickname(ctx context.Context, nickLower string) (*store.User, error) {
	return scanUser(r.b.tx.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE nick_lower = $1 AND NOT inactive
		 ORDER BY timestamp DESC LIMIT 1`, nickLower))
}

func (r *userRepo) SearchPrefix(ctx context.Context, prefix, locale string, limit int) ([]*store.User, error) {
	pattern := prefix + "%"
	rows, err := r.b.tx.Query(ctx,
		`SELECT `+userCols+` FROM users
		 WHERE NOT inactive
		   AND (nick_lower LIKE $1 OR full_name_lower LIKE $1)
		   AND ($2 = '' OR locale = $2)
		 ORDER BY nick_lower
		 LIMIT $3`, pattern, locale, limit)
	if err != nil {
		return nil, store.BackendErr("search users", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *userRepo) BelowHumanElo(ctx context.Context, elo int, locale string, limit int) ([]*store.User, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT `+userCols+` FROM users
		 WHERE NOT inactive AND human_elo < $1 AND ($2 = '' OR locale = $2)
		 ORDER BY human_elo DESC
		 LIMIT $3`, elo, locale, limit)
	if err != nil {
		return nil, store.BackendErr("query users below elo", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *userRepo) AtOrAboveHumanElo(ctx context.Context, elo int, locale string, limit int) ([]*store.User, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT `+userCols+` FROM users
		 WHERE NOT inactive AND human_elo >= $1 AND ($2 = '' OR locale = $2)
		 ORDER BY human_elo ASC
		 LIMIT $3`, elo, locale, limit)
	if err != nil {
		return nil, store.BackendErr("query users at or above elo", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]*store.User, error) {
	var result []*store.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *userRepo) Create(ctx context.Context, u *store.User) error {
	prefsRaw, err := json.Marshal(u.Prefs)
	if err != nil {
		return store.BackendErr("encode prefs", err)
	}
	_, err = r.b.tx.Exec(ctx,
		`INSERT INTO users (
			id, account, email, nickname, nick_lower, full_name_lower,
			image, image_blob, locale, location, prefs, inactive, ready,
			ready_timed, chat_disabled, plan, elo, human_elo, manual_elo,
			highest_score, highest_score_game, best_word, best_word_score,
			best_word_game, games, timestamp, last_login
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,
			$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27
		)`,
		u.ID, u.Account, u.Email, u.Nickname, u.NickLower, u.FullNameLower,
		u.Image, u.ImageBlob, u.Locale, u.Location, prefsRaw, u.Inactive,
		u.Ready, u.ReadyTimed, u.ChatDisabled, u.Plan,
		u.Elo, u.HumanElo, u.ManualElo,
		u.HighestScore, u.HighestScoreGameID, u.BestWord, u.BestWordScore,
		u.BestWordGameID, u.GamesPlayed, u.Timestamp, u.LastLogin,
	)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	if err != nil {
		return store.BackendErr("insert user", err)
	}
	return nil
}

func (r *userRepo) Update(ctx context.Context, id string, up store.Updates) error {
	err := r.b.applyUpdates(ctx, "users", "id", id, up)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	_, err := r.b.tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return store.BackendErr("delete user", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
