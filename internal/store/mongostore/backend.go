package mongostore

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/skrafl/server/internal/store"
)

// Backend is one request-scoped unit of work bound to a mongo session.
type Backend struct {
	store *Store
	sess  mongo.Session
	log   *zap.Logger
	inTxn bool
	done  bool
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

// sc binds ctx to the session so collection operations participate in the
// session's transaction.
func (b *Backend) sc(ctx context.Context) context.Context {
	if b.sess == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, b.sess)
}

func (b *Backend) col(name string) *mongo.Collection {
	return b.store.db.Collection(name)
}

// Transaction runs fn within the session's ongoing transaction. Mongo has
// no savepoints, so the nested scope is optimistic: an error from fn
// propagates and the SessionManager rolls back the whole session.
func (b *Backend) Transaction(ctx context.Context, fn func(ctx context.Context, nested store.Backend) error) error {
	return fn(b.sc(ctx), b)
}

func (b *Backend) GenerateID() string {
	return uuid.NewString()
}

func (b *Backend) Commit(ctx context.Context) error {
	b.done = true
	if !b.inTxn {
		return nil
	}
	return b.sess.CommitTransaction(b.sc(ctx))
}

func (b *Backend) Rollback(ctx context.Context) error {
	b.done = true
	if !b.inTxn {
		return nil
	}
	return b.sess.AbortTransaction(b.sc(ctx))
}

// Close aborts the transaction if the session was never resolved, then
// releases the server session.
func (b *Backend) Close() {
	ctx := context.Background()
	if b.inTxn && !b.done {
		if err := b.sess.AbortTransaction(b.sc(ctx)); err != nil {
			b.log.Error("session abort failed", zap.Error(err))
		}
	}
	b.sess.EndSession(ctx)
}
