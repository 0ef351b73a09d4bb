package challenge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skrafl/server/internal/elo"
	"github.com/skrafl/server/internal/game"
	"github.com/skrafl/server/internal/locale"
	"github.com/skrafl/server/internal/store"
	"github.com/skrafl/server/internal/store/storetest"
)

func newChallengeFixture(t *testing.T) (context.Context, store.Backend, *Service) {
	t.Helper()
	reg, err := locale.LoadRegistry("en_US")
	require.NoError(t, err)
	b, err := storetest.NewMemory().NewSession(context.Background())
	require.NoError(t, err)
	games := game.NewService(reg, nil, nil, nil, elo.NewService(zap.NewNop()), zap.NewNop())
	svc := NewService(games, nil, zap.NewNop())

	ctx := context.Background()
	for _, id := range []string{"alice", "bob"} {
		require.NoError(t, b.Users().Create(ctx, &store.User{
			ID: id, Nickname: id, NickLower: id, Locale: "en_US",
			Elo: store.DefaultElo, HumanElo: store.DefaultElo, ManualElo: store.DefaultElo,
		}))
	}
	return ctx, b, svc
}

func TestIssueAndList(t *testing.T) {
	ctx, b, svc := newChallengeFixture(t)

	c, err := svc.Issue(ctx, b, "alice", "bob", store.GamePrefs{Duration: 25})
	require.NoError(t, err)
	assert.NotEmpty(t, c.Key)

	issued, err := svc.ListIssued(ctx, b, "alice")
	require.NoError(t, err)
	require.Len(t, issued, 1)
	assert.Equal(t, "bob", issued[0].Dest)

	received, err := svc.ListReceived(ctx, b, "bob")
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, 25, received[0].Prefs.Duration)
}

func TestIssueRefusals(t *testing.T) {
	ctx, b, svc := newChallengeFixture(t)

	_, err := svc.Issue(ctx, b, "alice", "alice", store.GamePrefs{})
	assert.ErrorIs(t, err, store.ErrIllegalState)

	_, err = svc.Issue(ctx, b, "alice", "nobody", store.GamePrefs{})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, b.Blocks().Add(ctx, "bob", "alice"))
	_, err = svc.Issue(ctx, b, "alice", "bob", store.GamePrefs{})
	assert.ErrorIs(t, err, store.ErrForbidden)
}

func TestRetractAndDecline(t *testing.T) {
	ctx, b, svc := newChallengeFixture(t)

	c, err := svc.Issue(ctx, b, "alice", "bob", store.GamePrefs{})
	require.NoError(t, err)

	require.NoError(t, svc.Retract(ctx, b, "alice", "bob", c.Key))
	assert.ErrorIs(t, svc.Retract(ctx, b, "alice", "bob", c.Key), store.ErrNotFound)

	c, err = svc.Issue(ctx, b, "alice", "bob", store.GamePrefs{})
	require.NoError(t, err)
	require.NoError(t, svc.Decline(ctx, b, "bob", "alice", c.Key))

	received, err := svc.ListReceived(ctx, b, "bob")
	require.NoError(t, err)
	assert.Empty(t, received)
}

func TestRetractNewestWithEmptyKey(t *testing.T) {
	ctx, b, svc := newChallengeFixture(t)

	_, err := svc.Issue(ctx, b, "alice", "bob", store.GamePrefs{Duration: 15})
	require.NoError(t, err)
	_, err = svc.Issue(ctx, b, "alice", "bob", store.GamePrefs{Duration: 25})
	require.NoError(t, err)

	require.NoError(t, svc.Retract(ctx, b, "alice", "bob", ""))
	issued, err := svc.ListIssued(ctx, b, "alice")
	require.NoError(t, err)
	require.Len(t, issued, 1)
	assert.Equal(t, 15, issued[0].Prefs.Duration)
}

func TestAcceptCreatesGameAndConsumesChallenge(t *testing.T) {
	ctx, b, svc := newChallengeFixture(t)

	c, err := svc.Issue(ctx, b, "alice", "bob", store.GamePrefs{Duration: 25})
	require.NoError(t, err)

	g, err := svc.Accept(ctx, b, "bob", "alice", c.Key)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "en_US", g.Locale)
	assert.Equal(t, 25, g.Prefs.Duration)
	// Both seats are occupied by the challenge parties, in either order.
	require.NotNil(t, g.Player0)
	require.NotNil(t, g.Player1)
	seats := map[string]bool{*g.Player0: true, *g.Player1: true}
	assert.Equal(t, map[string]bool{"alice": true, "bob": true}, seats)
	// Fresh racks were dealt from the bag.
	assert.Len(t, []rune(g.Rack0), 7)
	assert.Len(t, []rune(g.Rack1), 7)

	issued, err := svc.ListIssued(ctx, b, "alice")
	require.NoError(t, err)
	assert.Empty(t, issued)

	// Accepting a consumed challenge fails.
	_, err = svc.Accept(ctx, b, "bob", "alice", c.Key)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
