package store

import (
	"context"
	"time"
)

// Updates is a keyword update map passed to a repository's Update method.
// Keys are the snake_case field names used by both substrates; the write
// is applied atomically to the addressed entity.
type Updates map[string]any

// UserRepo is the repository for User entities. Lookup methods return
// (nil, nil) when no entity matches.
type UserRepo interface {
	Get(ctx context.Context, id string) (*User, error)
	GetMulti(ctx context.Context, ids []string) (map[string]*User, error)
	ByAccount(ctx context.Context, account string) (*User, error)
	// ByEmail picks the newest active user with elo > 0, then the newest
	// overall. Legacy accounts can share an email address.
	ByEmail(ctx context.Context, email string) (*User, error)
	ByNickname(ctx context.Context, nickLower string) (*User, error)
	// SearchPrefix matches nick_lower and full_name_lower prefixes,
	// excluding inactive users. An empty locale matches all locales.
	SearchPrefix(ctx context.Context, prefix, locale string, limit int) ([]*User, error)
	// BelowHumanElo lists active users with human Elo strictly below elo,
	// descending. AtOrAboveHumanElo lists at-or-above, ascending.
	BelowHumanElo(ctx context.Context, elo int, locale string, limit int) ([]*User, error)
	AtOrAboveHumanElo(ctx context.Context, elo int, locale string, limit int) ([]*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, id string, up Updates) error
	Delete(ctx context.Context, id string) error
}

// GameRepo is the repository for Game entities. The move list is stored
// with the game and always read together.
type GameRepo interface {
	Get(ctx context.Context, id string) (*Game, error)
	Create(ctx context.Context, g *Game) error
	Update(ctx context.Context, id string, up Updates) error
	// LiveForUser returns the user's ongoing games, newest move first.
	LiveForUser(ctx context.Context, userID string) ([]*Game, error)
	// FinishedForUser returns completed games ordered by ts_last_move
	// descending, optionally restricted to games against versus.
	FinishedForUser(ctx context.Context, userID string, versus *string, limit int) ([]*Game, error)
	// FinishedBetween returns completed games with from < ts_last_move <= to
	// in ascending ts_last_move order, for the nightly pipeline.
	FinishedBetween(ctx context.Context, from, to time.Time) ([]*Game, error)
	// NullPlayer clears every seat held by userID, robot style, so
	// scoreboards stay coherent after account deletion.
	NullPlayer(ctx context.Context, userID string) error
}

// EloRepo is the repository for per-(user, locale) ratings.
type EloRepo interface {
	Get(ctx context.Context, userID, locale string) (*EloRating, error)
	Put(ctx context.Context, r *EloRating) error
	DeleteForUser(ctx context.Context, userID string) error
}

// RobotRepo is the repository for per-(locale, level) robot ratings.
type RobotRepo interface {
	Get(ctx context.Context, locale string, level int) (*RobotElo, error)
	Put(ctx context.Context, r *RobotElo) error
}

// StatsRepo is the repository for nightly stats snapshots.
type StatsRepo interface {
	// LatestBefore returns the most recent snapshot for the user with
	// Timestamp <= ts, or (nil, nil) when none exists.
	LatestBefore(ctx context.Context, userID string, ts time.Time) (*UserStats, error)
	// DeleteAt removes any snapshots of the given users at exactly ts,
	// making nightly writes idempotent under retry.
	DeleteAt(ctx context.Context, userIDs []string, ts time.Time) error
	PutMulti(ctx context.Context, rows []*UserStats) error
	// LatestPerUserBefore returns, for every user, the newest snapshot
	// with Timestamp <= ts. Feeds the ranking rebuild.
	LatestPerUserBefore(ctx context.Context, ts time.Time) ([]*UserStats, error)
	DeleteForUser(ctx context.Context, userID string) error
}

// FavoriteRepo is the repository for favorite edges. Add and Remove are
// idempotent.
type FavoriteRepo interface {
	Add(ctx context.Context, src, dest string) error
	Remove(ctx context.Context, src, dest string) error
	ListByUser(ctx context.Context, src string) ([]string, error)
	Has(ctx context.Context, src, dest string) (bool, error)
	DeleteForUser(ctx context.Context, userID string) error // both directions
}

// BlockRepo is the repository for block edges. Directional; idempotent.
type BlockRepo interface {
	Add(ctx context.Context, blocker, blocked string) error
	Remove(ctx context.Context, blocker, blocked string) error
	ListBlockedBy(ctx context.Context, blocker string) ([]string, error)
	ListBlockersOf(ctx context.Context, blocked string) ([]string, error)
	Has(ctx context.Context, blocker, blocked string) (bool, error)
	DeleteForUser(ctx context.Context, userID string) error // both directions
}

// ChallengeRepo is the repository for matchmaking intents.
type ChallengeRepo interface {
	Add(ctx context.Context, c *Challenge) error
	// Find locates a challenge by pair and optional key. An empty key
	// matches the newest challenge between the pair.
	Find(ctx context.Context, src, dest, key string) (*Challenge, error)
	Delete(ctx context.Context, key string) error
	ListIssued(ctx context.Context, userID string) ([]*Challenge, error)
	ListReceived(ctx context.Context, userID string) ([]*Challenge, error)
	DeleteForUser(ctx context.Context, userID string) error // both directions
}

// ChatRepo is the repository for chat messages.
type ChatRepo interface {
	Add(ctx context.Context, m *ChatMessage) (string, error)
	// ListNewestFirst returns up to limit messages in the channel, newest
	// first, including read markers.
	ListNewestFirst(ctx context.Context, channel string, limit int) ([]*ChatMessage, error)
	// ListForUser returns the user's direct messages (either direction),
	// newest first, for conversation history.
	ListForUser(ctx context.Context, userID string, limit int) ([]*ChatMessage, error)
	DeleteForUser(ctx context.Context, userID string) error // where user is sender
}

// ZombieRepo is the repository for unacknowledged finished games.
type ZombieRepo interface {
	Add(ctx context.Context, gameID, userID string) error
	Delete(ctx context.Context, gameID, userID string) error
	ListForUser(ctx context.Context, userID string) ([]*Zombie, error)
	DeleteForUser(ctx context.Context, userID string) error
}

// RatingRepo is the repository for the precomputed top-100 tables.
type RatingRepo interface {
	// ReplaceAll drops the whole table and writes rows, avoiding stale
	// ranks from earlier rebuilds.
	ReplaceAll(ctx context.Context, rows []*RatingRow) error
	List(ctx context.Context, kind RatingKind) ([]*RatingRow, error)
}

// ReportRepo is the repository for conduct reports.
type ReportRepo interface {
	Add(ctx context.Context, r *Report) error
	DeleteForUser(ctx context.Context, userID string) error
}

// PromoRepo is the repository for promotion display records.
type PromoRepo interface {
	Add(ctx context.Context, p *Promo) error
	ListForUser(ctx context.Context, userID, promotion string) ([]*Promo, error)
	DeleteForUser(ctx context.Context, userID string) error
}

// TransactionRepo is the repository for plan-change records.
type TransactionRepo interface {
	Add(ctx context.Context, t *Transaction) error
	DeleteForUser(ctx context.Context, userID string) error
}

// SubmissionRepo is the repository for word submissions.
type SubmissionRepo interface {
	Add(ctx context.Context, s *Submission) error
	DeleteForUser(ctx context.Context, userID string) error
}

// CompletionRepo is the background-process completion log.
type CompletionRepo interface {
	Add(ctx context.Context, c *Completion) error
	Latest(ctx context.Context, procType string) (*Completion, error)
}

// RiddleRepo is the repository for daily riddles.
type RiddleRepo interface {
	Get(ctx context.Context, locale, date string) (*Riddle, error)
	Put(ctx context.Context, r *Riddle) error
}

// ImageRepo is the repository for profile image blobs.
type ImageRepo interface {
	Put(ctx context.Context, img *Image) error
	Get(ctx context.Context, userID string) (*Image, error)
	DeleteForUser(ctx context.Context, userID string) error
}
