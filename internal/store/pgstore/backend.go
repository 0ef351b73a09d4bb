package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/skrafl/server/internal/store"
)

// Backend is one request-scoped unit of work bound to a pgx transaction.
// Nested Transaction calls ride on pgx's savepoint support.
type Backend struct {
	tx  pgx.Tx
	log *zap.Logger
}

var _ store.Backend = (*Backend)(nil)

func (b *Backend) Users() store.UserRepo               { return &userRepo{b} }
func (b *Backend) Games() store.GameRepo               { return &gameRepo{b} }
func (b *Backend) Elo() store.EloRepo                  { return &eloRepo{b} }
func (b *Backend) Robots() store.RobotRepo             { return &robotRepo{b} }
func (b *Backend) Stats() store.StatsRepo              { return &statsRepo{b} }
func (b *Backend) Favorites() store.FavoriteRepo       { return &favoriteRepo{b} }
func (b *Backend) Blocks() store.BlockRepo             { return &blockRepo{b} }
func (b *Backend) Challenges() store.ChallengeRepo     { return &challengeRepo{b} }
func (b *Backend) Chat() store.ChatRepo                { return &chatRepo{b} }
func (b *Backend) Zombies() store.ZombieRepo           { return &zombieRepo{b} }
func (b *Backend) Ratings() store.RatingRepo           { return &ratingRepo{b} }
func (b *Backend) Reports() store.ReportRepo           { return &reportRepo{b} }
func (b *Backend) Promos() store.PromoRepo             { return &promoRepo{b} }
func (b *Backend) Transactions() store.TransactionRepo { return &transactionRepo{b} }
func (b *Backend) Submissions() store.SubmissionRepo   { return &submissionRepo{b} }
func (b *Backend) Completions() store.CompletionRepo   { return &completionRepo{b} }
func (b *Backend) Riddles() store.RiddleRepo           { return &riddleRepo{b} }
func (b *Backend) Images() store.ImageRepo             { return &imageRepo{b} }

// Transaction opens a savepoint within the request transaction. A failure
// rolls back only the savepoint.
func (b *Backend) Transaction(ctx context.Context, fn func(ctx context.Context, nested store.Backend) error) error {
	sp, err := b.tx.Begin(ctx)
	if err != nil {
		return store.BackendErr("savepoint", err)
	}
	child := &Backend{tx: sp, log: b.log}
	if err := fn(ctx, child); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			b.log.Error("savepoint rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return store.BackendErr("savepoint commit", err)
	}
	return nil
}

func (b *Backend) GenerateID() string {
	return uuid.NewString()
}

func (b *Backend) Commit(ctx context.Context) error {
	return b.tx.Commit(ctx)
}

func (b *Backend) Rollback(ctx context.Context) error {
	err := b.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// Close rolls back the transaction if neither Commit nor Rollback ran.
func (b *Backend) Close() {
	_ = b.tx.Rollback(context.Background())
}

// applyUpdates builds and executes an UPDATE statement from an Updates
// map. Keys are column names; structured values are stored as JSONB.
func (b *Backend) applyUpdates(ctx context.Context, table, idCol, id string, up store.Updates) error {
	if len(up) == 0 {
		return nil
	}
	cols := make([]string, 0, len(up))
	args := make([]any, 0, len(up)+1)
	for k, v := range up {
		enc, err := encodeValue(v)
		if err != nil {
			return fmt.Errorf("update %s.%s: %w", table, k, err)
		}
		args = append(args, enc)
		cols = append(cols, fmt.Sprintf("%s = $%d", k, len(args)))
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		table, strings.Join(cols, ", "), idCol, len(args))
	tag, err := b.tx.Exec(ctx, q, args...)
	if err != nil {
		return store.BackendErr("update "+table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s", store.ErrNotFound, table, id)
	}
	return nil
}

// encodeValue converts protocol-level values into driver-friendly ones.
func encodeValue(v any) (any, error) {
	switch t := v.(type) {
	case store.Prefs:
		return json.Marshal(t)
	case store.GamePrefs:
		return json.Marshal(t)
	case []store.Move:
		return json.Marshal(t)
	default:
		return v, nil
	}
}
