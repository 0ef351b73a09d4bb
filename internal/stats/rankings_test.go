package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skrafl/server/internal/store"
)

func TestRebuildRatingsTables(t *testing.T) {
	ctx, _, b, svc := newStatsFixture(t)
	now := time.Date(2026, 8, 25, 3, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	require.NoError(t, b.Stats().PutMulti(ctx, []*store.UserStats{
		// Alice: current leader with history a day back.
		{UserID: "alice", Timestamp: now.Add(-25 * time.Hour),
			Games: 4, Elo: 1280, HumanGames: 4, HumanElo: 1270},
		{UserID: "alice", Timestamp: now.Add(-2 * time.Hour),
			Games: 5, Elo: 1300, HumanGames: 5, HumanElo: 1290},
		// Bob: rated but has never played a human.
		{UserID: "bob", Timestamp: now.Add(-2 * time.Hour),
			Games: 2, Elo: 1250},
		// Carol: a snapshot with no games does not qualify.
		{UserID: "carol", Timestamp: now.Add(-2 * time.Hour),
			Elo: 1400},
	}))

	require.NoError(t, svc.RebuildRatings(ctx, b))

	all, err := b.Ratings().List(ctx, store.RatingAll)
	require.NoError(t, err)
	require.Len(t, all, TopRanks)

	require.NotNil(t, all[0].UserID)
	assert.Equal(t, "alice", *all[0].UserID)
	assert.Equal(t, 1, all[0].Rank)
	assert.Equal(t, 1300, all[0].RatingStats.Elo)
	// Historical columns come from the snapshots nearest each moment.
	assert.Equal(t, 1280, all[0].Yesterday.Elo)
	assert.Equal(t, 1280, all[0].WeekAgo.Elo)

	require.NotNil(t, all[1].UserID)
	assert.Equal(t, "bob", *all[1].UserID)
	assert.Equal(t, store.RatingStats{}, all[1].Yesterday)

	// Unfilled ranks carry the sentinel shape.
	s := all[2]
	assert.Nil(t, s.UserID)
	assert.Equal(t, -1, s.RobotLevel)
	assert.Equal(t, -1, s.RatingStats.Games)
	assert.Equal(t, 3, s.Rank)

	// Bob never played a human, so the human table holds alice alone.
	human, err := b.Ratings().List(ctx, store.RatingHuman)
	require.NoError(t, err)
	require.Len(t, human, TopRanks)
	require.NotNil(t, human[0].UserID)
	assert.Equal(t, "alice", *human[0].UserID)
	assert.Equal(t, 1290, human[0].RatingStats.Elo)
	assert.Nil(t, human[1].UserID)

	done, err := b.Completions().Latest(ctx, ProcRatings)
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.True(t, done.Success)

	// Rebuilding replaces the tables wholesale rather than accreting rows.
	require.NoError(t, svc.RebuildRatings(ctx, b))
	all, err = b.Ratings().List(ctx, store.RatingAll)
	require.NoError(t, err)
	assert.Len(t, all, TopRanks)
}
