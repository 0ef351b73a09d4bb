package elo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skrafl/server/internal/store"
	"github.com/skrafl/server/internal/store/storetest"
)

func newFixture(t *testing.T) (context.Context, store.Backend) {
	t.Helper()
	b, err := storetest.NewMemory().NewSession(context.Background())
	require.NoError(t, err)
	return context.Background(), b
}

func seedUser(t *testing.T, ctx context.Context, b store.Backend, id string, games int) *store.User {
	t.Helper()
	u := &store.User{
		ID: id, Nickname: id, NickLower: id,
		Locale:      "is_IS",
		Elo:         store.DefaultElo,
		HumanElo:    store.DefaultElo,
		ManualElo:   store.DefaultElo,
		GamesPlayed: games,
	}
	require.NoError(t, b.Users().Create(ctx, u))
	return u
}

func TestFinalizeEstablishedPairSwingsTen(t *testing.T) {
	ctx, b := newFixture(t)
	svc := NewService(zap.NewNop())

	alice := seedUser(t, ctx, b, "alice", 50)
	bob := seedUser(t, ctx, b, "bob", 50)
	for _, id := range []string{"alice", "bob"} {
		require.NoError(t, b.Elo().Put(ctx, &store.EloRating{
			UserID: id, Locale: "is_IS",
			Elo: 1200, HumanElo: 1200, ManualElo: 1200,
		}))
	}

	g := &store.Game{
		ID: "g1", Player0: &alice.ID, Player1: &bob.ID,
		Locale: "is_IS", Score0: 250, Score1: 300, Over: true,
		Moves: []store.Move{{Coord: "H8", Tiles: "TEST", Score: 20}},
	}
	require.NoError(t, b.Games().Create(ctx, g))
	require.NoError(t, svc.Finalize(ctx, b, g, alice, bob, time.Now().UTC()))

	ra, err := b.Elo().Get(ctx, "alice", "is_IS")
	require.NoError(t, err)
	rb, err := b.Elo().Get(ctx, "bob", "is_IS")
	require.NoError(t, err)
	require.Equal(t, 1190, ra.Elo)
	require.Equal(t, 1210, rb.Elo)
	require.Equal(t, 1190, ra.HumanElo)
	require.Equal(t, 1210, rb.HumanElo)
	// Manual track untouched: the game was not manual.
	require.Equal(t, 1200, ra.ManualElo)

	// Pre-game ratings and adjustments recorded on the game.
	stored, err := b.Games().Get(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, 1200, *stored.Elo0)
	require.Equal(t, -10, *stored.Elo0Adj)
	require.Equal(t, 10, *stored.Elo1Adj)

	// Denormalized user fields follow in the primary locale.
	ua, err := b.Users().Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 1190, ua.Elo)
}

func TestFinalizeImmediateResignationDoesNotCount(t *testing.T) {
	ctx, b := newFixture(t)
	svc := NewService(zap.NewNop())

	alice := seedUser(t, ctx, b, "alice", 50)
	g := &store.Game{
		ID: "g2", Player0: nil, Player1: &alice.ID, RobotLevel: 2,
		Locale: "is_IS", Score0: 0, Score1: 14, Over: true,
		Moves: []store.Move{
			{Coord: "H8", Tiles: "HI", Score: 14},
			{Tiles: "RSGN"},
		},
	}
	require.NoError(t, b.Games().Create(ctx, g))
	require.NoError(t, svc.Finalize(ctx, b, g, nil, alice, time.Now().UTC()))

	stored, err := b.Games().Get(ctx, "g2")
	require.NoError(t, err)
	// Pre-game ratings are still recorded, with zero adjustments.
	require.Equal(t, store.DefaultElo, *stored.Elo0)
	require.Equal(t, store.DefaultElo, *stored.Elo1)
	require.Equal(t, 0, *stored.Elo0Adj)
	require.Equal(t, 0, *stored.Elo1Adj)
	// Robot games never carry the human track.
	require.Nil(t, stored.HumanElo0)

	re, err := b.Robots().Get(ctx, "is_IS", 2)
	require.NoError(t, err)
	require.Equal(t, store.DefaultElo, re.Elo)
}

func TestFinalizeSeedsFromUserFieldsInPrimaryLocale(t *testing.T) {
	ctx, b := newFixture(t)
	svc := NewService(zap.NewNop())

	alice := seedUser(t, ctx, b, "alice", 50)
	require.NoError(t, b.Users().Update(ctx, "alice", store.Updates{
		"elo": 1350, "human_elo": 1340, "manual_elo": 1330,
	}))
	alice.Elo, alice.HumanElo, alice.ManualElo = 1350, 1340, 1330
	bob := seedUser(t, ctx, b, "bob", 50)

	g := &store.Game{
		ID: "g3", Player0: &alice.ID, Player1: &bob.ID,
		Locale: "is_IS", Score0: 400, Score1: 100, Over: true,
		Moves: []store.Move{{Coord: "H8", Tiles: "WORDS", Score: 30}},
	}
	require.NoError(t, b.Games().Create(ctx, g))
	require.NoError(t, svc.Finalize(ctx, b, g, alice, bob, time.Now().UTC()))

	stored, err := b.Games().Get(ctx, "g3")
	require.NoError(t, err)
	require.Equal(t, 1350, *stored.Elo0)
	require.Equal(t, store.DefaultElo, *stored.Elo1)

	ra, err := b.Elo().Get(ctx, "alice", "is_IS")
	require.NoError(t, err)
	require.Equal(t, 1350+*stored.Elo0Adj, ra.Elo)
}
