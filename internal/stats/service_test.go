package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skrafl/server/internal/store"
	"github.com/skrafl/server/internal/store/storetest"
)

func newStatsFixture(t *testing.T) (context.Context, *storetest.Memory, store.Backend, *Service) {
	t.Helper()
	mem := storetest.NewMemory()
	b, err := mem.NewSession(context.Background())
	require.NoError(t, err)
	return context.Background(), mem, b, NewService(zap.NewNop())
}

func seedStatsUser(t *testing.T, ctx context.Context, b store.Backend, id string) {
	t.Helper()
	require.NoError(t, b.Users().Create(ctx, &store.User{
		ID: id, Nickname: id, NickLower: id, Locale: "en_US",
		Elo: store.DefaultElo, HumanElo: store.DefaultElo, ManualElo: store.DefaultElo,
	}))
}

func finishedGame(t *testing.T, ctx context.Context, b store.Backend, id string, p0, p1 *string, s0, s1 int, ts time.Time) {
	t.Helper()
	require.NoError(t, b.Games().Create(ctx, &store.Game{
		ID: id, Player0: p0, Player1: p1, Locale: "en_US",
		Score0: s0, Score1: s1, Over: true,
		Timestamp: ts.Add(-time.Hour), TsLastMove: ts,
	}))
}

func TestRunStatsAggregatesAndIsIdempotent(t *testing.T) {
	ctx, _, b, svc := newStatsFixture(t)
	alice, bob := "alice", "bob"
	seedStatsUser(t, ctx, b, alice)
	seedStatsUser(t, ctx, b, bob)

	to := time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)
	from := to.Add(-24 * time.Hour)
	finishedGame(t, ctx, b, "g1", &alice, &bob, 300, 250, to.Add(-time.Hour))

	require.NoError(t, svc.RunStats(ctx, b, from, to))

	snap, err := b.Stats().LatestBefore(ctx, alice, to)
	require.NoError(t, err)
	require.NotNil(t, snap)
	// Both players are beginners: equal ratings swing by 16.
	assert.Equal(t, 1216, snap.Elo)
	assert.Equal(t, 1216, snap.HumanElo)
	assert.Equal(t, store.DefaultElo, snap.ManualElo)
	assert.Equal(t, 1, snap.Games)
	assert.Equal(t, 1, snap.HumanGames)
	assert.Equal(t, 0, snap.ManualGames)
	assert.Equal(t, 1, snap.Wins)
	assert.Equal(t, 300, snap.Score)
	assert.Equal(t, 250, snap.ScoreAgainst)
	assert.True(t, snap.Timestamp.Equal(to))

	// Denormalized user ratings follow the snapshot.
	u, err := b.Users().Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1216, u.Elo)

	// A retried run with the same window converges to the same rows.
	require.NoError(t, svc.RunStats(ctx, b, from, to))
	snap, err = b.Stats().LatestBefore(ctx, bob, to)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1184, snap.Elo)
	assert.Equal(t, 1, snap.Games)
	assert.Equal(t, 1, snap.Losses)

	done, err := b.Completions().Latest(ctx, ProcStats)
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.True(t, done.Success)
	assert.True(t, done.TsFrom.Equal(from))
	assert.True(t, done.TsTo.Equal(to))
}

func TestRunStatsSeedsFromPriorSnapshot(t *testing.T) {
	ctx, _, b, svc := newStatsFixture(t)
	alice, bob := "alice", "bob"
	seedStatsUser(t, ctx, b, alice)
	seedStatsUser(t, ctx, b, bob)

	to := time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)
	from := to.Add(-24 * time.Hour)
	require.NoError(t, b.Stats().PutMulti(ctx, []*store.UserStats{
		{UserID: alice, Timestamp: from.Add(-time.Hour), Games: 20, HumanGames: 20,
			Elo: 1400, HumanElo: 1400, ManualElo: store.DefaultElo},
		{UserID: bob, Timestamp: from.Add(-time.Hour), Games: 20, HumanGames: 20,
			Elo: 1200, HumanElo: 1200, ManualElo: store.DefaultElo},
	}))
	finishedGame(t, ctx, b, "g1", &alice, &bob, 300, 250, to.Add(-time.Hour))

	require.NoError(t, svc.RunStats(ctx, b, from, to))

	snap, err := b.Stats().LatestBefore(ctx, alice, to)
	require.NoError(t, err)
	require.NotNil(t, snap)
	// Established pair at 1400 vs 1200: the favorite gains 5.
	assert.Equal(t, 1405, snap.Elo)
	assert.Equal(t, 21, snap.Games)

	snap, err = b.Stats().LatestBefore(ctx, bob, to)
	require.NoError(t, err)
	assert.Equal(t, 1195, snap.Elo)
}

func TestRunStatsSkipsGamesThatNeverStarted(t *testing.T) {
	ctx, _, b, svc := newStatsFixture(t)
	alice, bob := "alice", "bob"
	seedStatsUser(t, ctx, b, alice)
	seedStatsUser(t, ctx, b, bob)

	to := time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)
	from := to.Add(-24 * time.Hour)
	finishedGame(t, ctx, b, "g1", &alice, &bob, 0, 0, to.Add(-time.Hour))

	require.NoError(t, svc.RunStats(ctx, b, from, to))

	snap, err := b.Stats().LatestBefore(ctx, alice, to)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRunStatsCarriesRobotRatings(t *testing.T) {
	ctx, _, b, svc := newStatsFixture(t)
	alice := "alice"
	seedStatsUser(t, ctx, b, alice)

	to := time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)
	from := to.Add(-24 * time.Hour)
	g := &store.Game{
		ID: "g1", Player0: nil, Player1: &alice, RobotLevel: 3, Locale: "en_US",
		Score0: 250, Score1: 300, Over: true,
		Timestamp: from, TsLastMove: to.Add(-time.Hour),
	}
	require.NoError(t, b.Games().Create(ctx, g))

	require.NoError(t, svc.RunStats(ctx, b, from, to))

	snap, err := b.Stats().LatestBefore(ctx, alice, to)
	require.NoError(t, err)
	require.NotNil(t, snap)
	// Robots are always established, so the beginner takes the full swing
	// while the robot's side of the delta is suppressed.
	assert.Equal(t, 1216, snap.Elo)
	assert.Equal(t, 1, snap.Games)
	// Not a human-vs-human game.
	assert.Equal(t, 0, snap.HumanGames)
	assert.Equal(t, store.DefaultElo, snap.HumanElo)

	r, err := b.Robots().Get(ctx, "en_US", 3)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, store.DefaultElo, r.Elo)
	assert.False(t, r.Timestamp.IsZero())
}

func TestRunStatsDeadlineFlushesAndReportsProgress(t *testing.T) {
	ctx, _, b, svc := newStatsFixture(t)
	alice, bob := "alice", "bob"
	seedStatsUser(t, ctx, b, alice)
	seedStatsUser(t, ctx, b, bob)

	to := time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)
	from := to.Add(-24 * time.Hour)
	finishedGame(t, ctx, b, "g1", &alice, &bob, 300, 250, to.Add(-time.Hour))

	// A deadline inside the flush margin interrupts before any game is
	// processed.
	shortCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	err := svc.RunStats(shortCtx, b, from, to)
	assert.ErrorIs(t, err, store.ErrDeadline)

	last, err := b.Completions().Latest(ctx, ProcStats)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.False(t, last.Success)
	assert.Equal(t, "deadline", last.Reason)
	assert.True(t, last.TsFrom.Equal(from))
	assert.True(t, last.TsTo.Equal(to))

	// The resumed run with the recorded window completes the aggregation.
	require.NoError(t, svc.RunStats(ctx, b, last.TsFrom, last.TsTo))
	snap, err := b.Stats().LatestBefore(ctx, alice, to)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1216, snap.Elo)
}
