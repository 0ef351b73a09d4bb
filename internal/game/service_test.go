package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skrafl/server/internal/elo"
	"github.com/skrafl/server/internal/locale"
	"github.com/skrafl/server/internal/store"
	"github.com/skrafl/server/internal/store/storetest"
)

type fixture struct {
	ctx   context.Context
	b     store.Backend
	svc   *Service
	alice string
	bob   string
}

func newServiceFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := locale.LoadRegistry("en_US")
	require.NoError(t, err)
	b, err := storetest.NewMemory().NewSession(context.Background())
	require.NoError(t, err)
	svc := NewService(reg, nil, nil, nil, elo.NewService(zap.NewNop()), zap.NewNop())

	ctx := context.Background()
	for _, id := range []string{"alice", "bob"} {
		require.NoError(t, b.Users().Create(ctx, &store.User{
			ID: id, Nickname: id, NickLower: id, Locale: "en_US",
			Elo: store.DefaultElo, HumanElo: store.DefaultElo, ManualElo: store.DefaultElo,
		}))
	}
	return &fixture{ctx: ctx, b: b, svc: svc, alice: "alice", bob: "bob"}
}

// seedGame creates a deterministic two-human game with known racks,
// bypassing the random seat swap in New.
func (f *fixture) seedGame(t *testing.T, rack0, rack1 string) *store.Game {
	t.Helper()
	now := time.Now().UTC()
	g := &store.Game{
		ID: "g1", Player0: &f.alice, Player1: &f.bob,
		Locale: "en_US",
		Rack0:  rack0, Rack1: rack1,
		IRack0: rack0, IRack1: rack1,
		Timestamp: now, TsLastMove: now,
	}
	require.NoError(t, f.b.Games().Create(f.ctx, g))
	return g
}

func TestApplyStaleMoveCount(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGame(t, "catsrie", "aeinrst")

	_, err := f.svc.Apply(f.ctx, f.b, "g1", &f.alice, 3, "H8", "cat")
	assert.ErrorIs(t, err, store.ErrConflict)

	// The losing writer observed no effects.
	g, err := f.b.Games().Get(f.ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, g.Moves)
}

func TestApplyOutOfTurn(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGame(t, "catsrie", "aeinrst")

	_, err := f.svc.Apply(f.ctx, f.b, "g1", &f.bob, 0, "H8", "ant")
	assert.ErrorIs(t, err, store.ErrForbidden)
}

func TestApplyPlacement(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGame(t, "catsrie", "aeinrst")

	g, err := f.svc.Apply(f.ctx, f.b, "g1", &f.alice, 0, "H8", "cat")
	require.NoError(t, err)
	assert.Equal(t, 10, g.Score0)
	assert.Equal(t, 1, g.ToMove)
	assert.Len(t, g.Moves, 1)
	assert.Equal(t, 3, g.TileCount)
	// The rack was refilled back to seven tiles.
	assert.Len(t, []rune(g.Rack0), 7)
	// The move record carries the post-move rack.
	assert.Equal(t, g.Rack0, g.Moves[0].Rack)
	assert.False(t, g.Moves[0].Timestamp.IsZero())
}

func TestApplyTileNotInRack(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGame(t, "catsrie", "aeinrst")

	_, err := f.svc.Apply(f.ctx, f.b, "g1", &f.alice, 0, "H8", "zoo")
	assert.ErrorIs(t, err, store.ErrIllegalMove)
}

func TestApplyExchange(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGame(t, "catsrie", "aeinrst")

	g, err := f.svc.Apply(f.ctx, f.b, "g1", &f.alice, 0, "", MoveExchangePrefix+"cat")
	require.NoError(t, err)
	assert.Len(t, []rune(g.Rack0), 7)
	assert.Equal(t, 0, g.Moves[0].Score)
	assert.Equal(t, 1, g.ToMove)
	assert.False(t, g.Over)
}

func TestResignFinalizesGame(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGame(t, "catsrie", "aeinrst")

	_, err := f.svc.Apply(f.ctx, f.b, "g1", &f.alice, 0, "H8", "cat")
	require.NoError(t, err)
	g, err := f.svc.Apply(f.ctx, f.b, "g1", &f.bob, 1, "", MoveResign)
	require.NoError(t, err)

	assert.True(t, g.Over)
	assert.Equal(t, 0, g.Score1)
	last := g.Moves[len(g.Moves)-1]
	assert.Equal(t, MoveOver, last.Tiles)
	// to_move stays consistent with the augmented move list.
	assert.Equal(t, len(g.Moves)%2, g.ToMove)

	// The resigner's opponent gets a zombie entry for acknowledgement.
	zs, err := f.b.Zombies().ListForUser(f.ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, zs, 1)
	assert.Equal(t, "g1", zs[0].GameID)

	// Moving on a finished game is an illegal state.
	_, err = f.svc.Apply(f.ctx, f.b, "g1", &f.alice, len(g.Moves), "8I", "tie")
	assert.ErrorIs(t, err, store.ErrIllegalState)
}

func TestSixScorelessMovesEndGame(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGame(t, "aeinrst", "aeinrst")

	var g *store.Game
	var err error
	players := []*string{&f.alice, &f.bob}
	for i := 0; i < 6; i++ {
		g, err = f.svc.Apply(f.ctx, f.b, "g1", players[i%2], i, "", MovePass)
		require.NoError(t, err)
	}
	assert.True(t, g.Over)
	// Both racks are worth 7 points and are deducted from each side.
	assert.Equal(t, -7, g.Score0)
	assert.Equal(t, -7, g.Score1)
	assert.Equal(t, len(g.Moves)%2, g.ToMove)

	// Career counters moved for both players.
	u, err := f.b.Users().Get(f.ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, 1, u.GamesPlayed)
}

func TestScorelessEndCountsRackBlankAsZero(t *testing.T) {
	f := newServiceFixture(t)
	// Alice holds a blank; her rack leave is six points, not seven, and
	// must not swallow the value of an adjacent tile.
	f.seedGame(t, "?einrst", "aeinrst")

	var g *store.Game
	var err error
	players := []*string{&f.alice, &f.bob}
	for i := 0; i < 6; i++ {
		g, err = f.svc.Apply(f.ctx, f.b, "g1", players[i%2], i, "", MovePass)
		require.NoError(t, err)
	}
	require.True(t, g.Over)
	assert.Equal(t, -6, g.Score0)
	assert.Equal(t, -7, g.Score1)
}

func TestBestWordRecordedOnFinalization(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGame(t, "catsrie", "aeinrst")

	_, err := f.svc.Apply(f.ctx, f.b, "g1", &f.alice, 0, "H8", "cat")
	require.NoError(t, err)
	_, err = f.svc.Apply(f.ctx, f.b, "g1", &f.bob, 1, "", MoveResign)
	require.NoError(t, err)

	u, err := f.b.Users().Get(f.ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, "cat", u.BestWord)
	assert.Equal(t, 10, u.BestWordScore)
	assert.Equal(t, "g1", u.BestWordGameID)
	assert.Equal(t, 10, u.HighestScore)
}

func TestLiveAndFinishedQueries(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGame(t, "catsrie", "aeinrst")

	live, err := f.svc.LiveGames(f.ctx, f.b, f.bob)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.False(t, live[0].MyTurn)
	assert.Equal(t, f.alice, *live[0].Opponent)

	_, err = f.svc.Apply(f.ctx, f.b, "g1", &f.alice, 0, "", MoveResign)
	require.NoError(t, err)

	live, err = f.svc.LiveGames(f.ctx, f.b, f.bob)
	require.NoError(t, err)
	assert.Empty(t, live)

	fin, err := f.svc.FinishedGames(f.ctx, f.b, f.bob, nil, 10)
	require.NoError(t, err)
	require.Len(t, fin, 1)
	assert.True(t, fin[0].Zombie)

	require.NoError(t, f.svc.AcknowledgeFinished(f.ctx, f.b, f.bob, "g1"))
	fin, err = f.svc.FinishedGames(f.ctx, f.b, f.bob, nil, 10)
	require.NoError(t, err)
	assert.False(t, fin[0].Zombie)
}

func TestOvertimePenaltyTable(t *testing.T) {
	assert.Equal(t, 0, overtimePenalty(0))
	assert.Equal(t, 10, overtimePenalty(30*time.Second))
	assert.Equal(t, 20, overtimePenalty(90*time.Second))
	assert.Equal(t, 100, overtimePenalty(15*time.Minute))
}

func TestOvertimeLossOnStateQuery(t *testing.T) {
	f := newServiceFixture(t)
	start := time.Now().UTC().Add(-40 * time.Minute)
	g := &store.Game{
		ID: "g1", Player0: &f.alice, Player1: &f.bob,
		Locale: "en_US",
		Rack0:  "catsrie", Rack1: "aeinrst",
		IRack0: "catsrie", IRack1: "aeinrst",
		Timestamp: start, TsLastMove: start,
		Prefs: store.GamePrefs{Duration: 25},
	}
	require.NoError(t, f.b.Games().Create(f.ctx, g))

	// 40 minutes elapsed on a 25-minute clock: seat 0 lost on time.
	loaded, err := f.svc.Load(f.ctx, f.b, "g1")
	require.NoError(t, err)
	assert.True(t, loaded.Over)
	// Loser ends one point below the opponent, floored at zero.
	assert.Equal(t, 0, loaded.Score0)
	assert.GreaterOrEqual(t, loaded.Score1, loaded.Score0)

	// Synthetic records: two TIME entries then OVER.
	n := len(loaded.Moves)
	require.GreaterOrEqual(t, n, 3)
	assert.Equal(t, MoveOver, loaded.Moves[n-1].Tiles)
	assert.Equal(t, MoveTime, loaded.Moves[n-2].Tiles)
	assert.Equal(t, MoveTime, loaded.Moves[n-3].Tiles)
}
