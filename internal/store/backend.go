package store

import "context"

// Backend bundles the repositories plus transaction control for one
// request-scoped unit of work. Application code receives a Backend from
// the SessionManager and never manages connections directly.
type Backend interface {
	Users() UserRepo
	Games() GameRepo
	Elo() EloRepo
	Robots() RobotRepo
	Stats() StatsRepo
	Favorites() FavoriteRepo
	Blocks() BlockRepo
	Challenges() ChallengeRepo
	Chat() ChatRepo
	Zombies() ZombieRepo
	Ratings() RatingRepo
	Reports() ReportRepo
	Promos() PromoRepo
	Transactions() TransactionRepo
	Submissions() SubmissionRepo
	Completions() CompletionRepo
	Riddles() RiddleRepo
	Images() ImageRepo

	// Transaction runs fn in a nested scope. On the relational backend it
	// is a savepoint within the request transaction; on the document
	// backend it is an optimistic-concurrency scope. A failure rolls back
	// only the nested scope; the surrounding session continues unless the
	// error propagates.
	Transaction(ctx context.Context, fn func(ctx context.Context, b Backend) error) error

	// GenerateID returns a fresh opaque entity id.
	GenerateID() string

	// Commit and Rollback end the request session. The SessionManager
	// calls exactly one of them followed by Close.
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close()
}

// Factory opens request sessions against the chosen substrate and owns the
// shared resources (connection pools) behind them.
type Factory interface {
	NewSession(ctx context.Context) (Backend, error)
	Close()
}
