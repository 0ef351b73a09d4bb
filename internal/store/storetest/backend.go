// Package storetest provides an in-memory implementation of the
// persistence protocol for service tests. Semantics mirror the real
// substrates: lookups return (nil, nil) on miss, ordering rules match,
// and entities are deep-copied on the way in and out.
package storetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/skrafl/server/internal/store"
)

// Memory is both the Factory and the shared state behind the backends it
// hands out. All sessions see the same data; Commit and Rollback are
// accepted but writes apply immediately.
type Memory struct {
	mu sync.Mutex

	users       map[string]*store.User
	games       map[string]*store.Game
	elo         map[string]*store.EloRating // userID + "\x00" + locale
	robots      map[string]*store.RobotElo  // locale + "\x00" + level
	stats       []*store.UserStats
	favorites   map[string]bool // src + "\x00" + dest
	blocks      map[string]bool // blocker + "\x00" + blocked
	challenges  map[string]*store.Challenge
	chat        []*store.ChatMessage
	zombies     map[string]*store.Zombie // gameID + "\x00" + userID
	ratings     map[store.RatingKind][]*store.RatingRow
	reports     []*store.Report
	promos      []*store.Promo
	txns        []*store.Transaction
	submissions []*store.Submission
	completions []*store.Completion
	riddles     map[string]*store.Riddle // locale + "\x00" + date
	images      map[string]*store.Image

	seq int
}

var _ store.Factory = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:      make(map[string]*store.User),
		games:      make(map[string]*store.Game),
		elo:        make(map[string]*store.EloRating),
		robots:     make(map[string]*store.RobotElo),
		favorites:  make(map[string]bool),
		blocks:     make(map[string]bool),
		challenges: make(map[string]*store.Challenge),
		zombies:    make(map[string]*store.Zombie),
		ratings:    make(map[store.RatingKind][]*store.RatingRow),
		riddles:    make(map[string]*store.Riddle),
		images:     make(map[string]*store.Image),
	}
}

func (m *Memory) NewSession(ctx context.Context) (store.Backend, error) {
	return &Backend{m: m}, nil
}

func (m *Memory) Close() {}

// Backend is one session over the shared Memory.
type Backend struct {
	m *Memory
}

var _ store.Backend = (*Backend)(nil)

func (b *Backend) Users() store.UserRepo               { return &userRepo{b.m} }
func (b *Backend) Games() store.GameRepo               { return &gameRepo{b.m} }
func (b *Backend) Elo() store.EloRepo                  { return &eloRepo{b.m} }
func (b *Backend) Robots() store.RobotRepo             { return &robotRepo{b.m} }
func (b *Backend) Stats() store.StatsRepo              { return &statsRepo{b.m} }
func (b *Backend) Favorites() store.FavoriteRepo       { return &favoriteRepo{b.m} }
func (b *Backend) Blocks() store.BlockRepo             { return &blockRepo{b.m} }
func (b *Backend) Challenges() store.ChallengeRepo     { return &challengeRepo{b.m} }
func (b *Backend) Chat() store.ChatRepo                { return &chatRepo{b.m} }
func (b *Backend) Zombies() store.ZombieRepo           { return &zombieRepo{b.m} }
func (b *Backend) Ratings() store.RatingRepo           { return &ratingRepo{b.m} }
func (b *Backend) Reports() store.ReportRepo           { return &reportRepo{b.m} }
func (b *Backend) Promos() store.PromoRepo             { return &promoRepo{b.m} }
func (b *Backend) Transactions() store.TransactionRepo { return &transactionRepo{b.m} }
func (b *Backend) Submissions() store.SubmissionRepo   { return &submissionRepo{b.m} }
func (b *Backend) Completions() store.CompletionRepo   { return &completionRepo{b.m} }
func (b *Backend) Riddles() store.RiddleRepo           { return &riddleRepo{b.m} }
func (b *Backend) Images() store.ImageRepo             { return &imageRepo{b.m} }

func (b *Backend) Transaction(ctx context.Context, fn func(ctx context.Context, nested store.Backend) error) error {
	return fn(ctx, b)
}

func (b *Backend) GenerateID() string { return uuid.NewString() }

func (b *Backend) Commit(ctx context.Context) error   { return nil }
func (b *Backend) Rollback(ctx context.Context) error { return nil }
func (b *Backend) Close()                             {}

func key2(a, b string) string { return a + "\x00" + b }

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", store.ErrNotFound, kind, id)
}
