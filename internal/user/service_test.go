package user

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skrafl/server/internal/store"
	"github.com/skrafl/server/internal/store/storetest"
)

func newUserFixture(t *testing.T) (context.Context, store.Backend, *Service) {
	t.Helper()
	b, err := storetest.NewMemory().NewSession(context.Background())
	require.NoError(t, err)
	return context.Background(), b, NewService(zap.NewNop())
}

func TestCreateComputesDerivedFields(t *testing.T) {
	ctx, b, svc := newUserFixture(t)

	u, err := svc.Create(ctx, b, &NewAccount{
		Account:  "google:123",
		Email:    "Alice@Example.COM",
		Nickname: "Alice",
		Prefs:    store.Prefs{"full_name": "Alice Jones"},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.NickLower)
	assert.Equal(t, "alice jones", u.FullNameLower)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, store.DefaultLocale, u.Locale)
	assert.Equal(t, store.DefaultElo, u.Elo)
	assert.True(t, u.Ready)
	assert.True(t, u.Prefs.GetBool("beginner", false))

	// Duplicate external account is a conflict.
	_, err = svc.Create(ctx, b, &NewAccount{Account: "google:123", Nickname: "Other"})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestLoginCreatesThenFinds(t *testing.T) {
	ctx, b, svc := newUserFixture(t)

	u1, err := svc.Login(ctx, b, &NewAccount{Account: "g:1", Nickname: "Neo"})
	require.NoError(t, err)
	u2, err := svc.Login(ctx, b, &NewAccount{Account: "g:1", Nickname: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, u1.ID, u2.ID)
	assert.Equal(t, "Neo", u2.Nickname)
}

func TestUpdateRecomputesLookupKeys(t *testing.T) {
	ctx, b, svc := newUserFixture(t)
	u, err := svc.Create(ctx, b, &NewAccount{Account: "g:1", Nickname: "Old"})
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, b, u.ID, store.Updates{"nickname": "NewNick"}))
	got, err := b.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "newnick", got.NickLower)

	require.NoError(t, svc.Update(ctx, b, u.ID, store.Updates{
		"prefs": store.Prefs{"full_name": "Grace Hopper"},
	}))
	got, err = b.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "grace hopper", got.FullNameLower)
}

func TestSimilarEloOrdering(t *testing.T) {
	ctx, b, svc := newUserFixture(t)
	elos := []int{1100, 1150, 1190, 1210, 1250, 1300}
	for i, e := range elos {
		id := fmt.Sprintf("u%d", i)
		require.NoError(t, b.Users().Create(ctx, &store.User{
			ID: id, Nickname: id, NickLower: id, Locale: "en_US",
			HumanElo: e, Ready: true,
		}))
	}

	got, err := svc.SimilarElo(ctx, b, 1200, "en_US", 4)
	require.NoError(t, err)
	require.Len(t, got, 4)
	// Closest below, descending, then at-or-above, ascending.
	assert.Equal(t, 1190, got[0].HumanElo)
	assert.Equal(t, 1150, got[1].HumanElo)
	assert.Equal(t, 1210, got[2].HumanElo)
	assert.Equal(t, 1250, got[3].HumanElo)
}

func TestDeleteCascades(t *testing.T) {
	ctx, b, svc := newUserFixture(t)
	u, err := svc.Create(ctx, b, &NewAccount{Account: "g:u", Nickname: "Udo"})
	require.NoError(t, err)
	v, err := svc.Create(ctx, b, &NewAccount{Account: "g:v", Nickname: "Vera"})
	require.NoError(t, err)

	require.NoError(t, b.Elo().Put(ctx, &store.EloRating{UserID: u.ID, Locale: "en_US", Elo: 1234}))
	require.NoError(t, b.Favorites().Add(ctx, u.ID, v.ID))
	require.NoError(t, b.Favorites().Add(ctx, v.ID, u.ID))
	require.NoError(t, b.Blocks().Add(ctx, u.ID, v.ID))
	require.NoError(t, b.Challenges().Add(ctx, &store.Challenge{Key: "c1", Src: u.ID, Dest: v.ID}))
	require.NoError(t, b.Stats().PutMulti(ctx, []*store.UserStats{{UserID: u.ID, Games: 3}}))

	g := &store.Game{ID: "g1", Player0: &u.ID, Player1: &v.ID, Locale: "en_US", Over: true}
	require.NoError(t, b.Games().Create(ctx, g))

	require.NoError(t, svc.Delete(ctx, b, u.ID))

	gone, err := b.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	r, err := b.Elo().Get(ctx, u.ID, "en_US")
	require.NoError(t, err)
	assert.Nil(t, r)

	favs, err := b.Favorites().ListByUser(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, favs)

	ch, err := b.Challenges().ListIssued(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, ch)

	// The game survives with the deleted player's seat nulled.
	kept, err := b.Games().Get(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Nil(t, kept.Player0)
	require.NotNil(t, kept.Player1)
	assert.Equal(t, v.ID, *kept.Player1)

	// Deleting a missing user reports NotFound.
	assert.ErrorIs(t, svc.Delete(ctx, b, u.ID), store.ErrNotFound)
}

func TestPromoTracking(t *testing.T) {
	ctx, b, svc := newUserFixture(t)
	require.NoError(t, svc.RecordPromo(ctx, b, "alice", "friend"))
	require.NoError(t, svc.RecordPromo(ctx, b, "alice", "friend"))
	require.NoError(t, svc.RecordPromo(ctx, b, "alice", "newbag"))

	n, err := svc.PromoSeenCount(ctx, b, "alice", "friend")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = svc.PromoSeenCount(ctx, b, "bob", "friend")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRecordPlanChange(t *testing.T) {
	ctx, b, svc := newUserFixture(t)
	u, err := svc.Create(ctx, b, &NewAccount{Account: "g:1", Nickname: "Pat"})
	require.NoError(t, err)

	require.NoError(t, svc.RecordPlanChange(ctx, b, u.ID, "friend", "purchase"))
	got, err := b.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Plan)
	assert.Equal(t, "friend", *got.Plan)

	require.NoError(t, svc.RecordPlanChange(ctx, b, u.ID, "", "cancel"))
	got, err = b.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Plan)
}

func TestSubmitWord(t *testing.T) {
	ctx, b, svc := newUserFixture(t)
	require.NoError(t, svc.SubmitWord(ctx, b, "alice", "is_IS", " hús ", "missing"))
	assert.ErrorIs(t, svc.SubmitWord(ctx, b, "alice", "is_IS", "   ", ""), store.ErrIllegalState)
}

func TestBlockedSet(t *testing.T) {
	ctx, b, svc := newUserFixture(t)
	require.NoError(t, svc.Block(ctx, b, "a", "b"))
	require.NoError(t, svc.Block(ctx, b, "a", "c"))
	assert.ErrorIs(t, svc.Block(ctx, b, "a", "a"), store.ErrIllegalState)

	set, err := svc.BlockedSet(ctx, b, "a")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"b": true, "c": true}, set)

	require.NoError(t, svc.Unblock(ctx, b, "a", "b"))
	set, err = svc.BlockedSet(ctx, b, "a")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"c": true}, set)
}
