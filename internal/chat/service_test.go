package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skrafl/server/internal/store"
	"github.com/skrafl/server/internal/store/storetest"
)

func newChatFixture(t *testing.T) (context.Context, store.Backend, *Service) {
	t.Helper()
	b, err := storetest.NewMemory().NewSession(context.Background())
	require.NoError(t, err)
	ctx := context.Background()
	for _, id := range []string{"alice", "bob", "carol"} {
		require.NoError(t, b.Users().Create(ctx, &store.User{
			ID: id, Nickname: id, NickLower: id,
		}))
	}
	return ctx, b, NewService(nil, zap.NewNop())
}

func TestUserChannelCanonical(t *testing.T) {
	assert.Equal(t, "user:alice:bob", UserChannel("alice", "bob"))
	assert.Equal(t, "user:alice:bob", UserChannel("bob", "alice"))
}

func TestSendRejectsNonCanonicalChannel(t *testing.T) {
	ctx, b, svc := newChatFixture(t)
	_, err := svc.Send(ctx, b, "bob", "user:bob:alice", "hi")
	assert.ErrorIs(t, err, store.ErrIllegalState)
}

func TestGameChannelParticipantsOnly(t *testing.T) {
	ctx, b, svc := newChatFixture(t)
	alice, bob := "alice", "bob"
	require.NoError(t, b.Games().Create(ctx, &store.Game{
		ID: "g1", Player0: &alice, Player1: &bob, Locale: "en_US",
	}))

	_, err := svc.Send(ctx, b, "alice", "game:g1", "gl")
	require.NoError(t, err)

	_, err = svc.Send(ctx, b, "carol", "game:g1", "hello")
	assert.ErrorIs(t, err, store.ErrForbidden)
}

func TestReadMarkerFlow(t *testing.T) {
	ctx, b, svc := newChatFixture(t)
	ch := UserChannel("alice", "bob")

	_, err := svc.Send(ctx, b, "alice", ch, "hi bob")
	require.NoError(t, err)

	unread, err := svc.CheckUnread(ctx, b, ch, "bob")
	require.NoError(t, err)
	assert.True(t, unread)
	unread, err = svc.AnyUnread(ctx, b, "bob")
	require.NoError(t, err)
	assert.True(t, unread)

	// Bob acknowledges with a read marker; nothing is unread afterwards.
	require.NoError(t, svc.MarkRead(ctx, b, "bob", "alice"))
	unread, err = svc.CheckUnread(ctx, b, ch, "bob")
	require.NoError(t, err)
	assert.False(t, unread)
	unread, err = svc.AnyUnread(ctx, b, "bob")
	require.NoError(t, err)
	assert.False(t, unread)

	// Alice's own message never counts as unread for her.
	unread, err = svc.AnyUnread(ctx, b, "alice")
	require.NoError(t, err)
	assert.False(t, unread)

	// A new message from Alice flips Bob back to unread.
	_, err = svc.Send(ctx, b, "alice", ch, "still there?")
	require.NoError(t, err)
	unread, err = svc.AnyUnread(ctx, b, "bob")
	require.NoError(t, err)
	assert.True(t, unread)
}

func TestUnreadScanSkipsOtherPartysMarker(t *testing.T) {
	ctx, b, svc := newChatFixture(t)
	ch := UserChannel("alice", "bob")

	// Bob messages Alice and then posts his own read marker. His marker
	// is the newest entry, but it says nothing about what Alice has seen.
	_, err := svc.Send(ctx, b, "bob", ch, "hi alice")
	require.NoError(t, err)
	require.NoError(t, svc.MarkRead(ctx, b, "bob", "alice"))

	unread, err := svc.CheckUnread(ctx, b, ch, "alice")
	require.NoError(t, err)
	assert.True(t, unread)
	unread, err = svc.AnyUnread(ctx, b, "alice")
	require.NoError(t, err)
	assert.True(t, unread)

	// Bob's side reads as settled by his own marker.
	unread, err = svc.CheckUnread(ctx, b, ch, "bob")
	require.NoError(t, err)
	assert.False(t, unread)
}

func TestGameChannelUnread(t *testing.T) {
	ctx, b, svc := newChatFixture(t)
	alice, bob := "alice", "bob"
	require.NoError(t, b.Games().Create(ctx, &store.Game{
		ID: "g1", Player0: &alice, Player1: &bob, Locale: "en_US",
	}))
	ch := GameChannel("g1")

	// Oldest to newest: Bob "hi", Alice's marker, Bob "hello".
	_, err := svc.Send(ctx, b, "bob", ch, "hi")
	require.NoError(t, err)
	_, err = svc.Send(ctx, b, "alice", ch, "")
	require.NoError(t, err)
	_, err = svc.Send(ctx, b, "bob", ch, "hello")
	require.NoError(t, err)

	unread, err := svc.CheckUnread(ctx, b, ch, "alice")
	require.NoError(t, err)
	assert.True(t, unread)

	_, err = svc.Send(ctx, b, "alice", ch, "")
	require.NoError(t, err)
	unread, err = svc.CheckUnread(ctx, b, ch, "alice")
	require.NoError(t, err)
	assert.False(t, unread)
}

func TestHistoryCountsRealMessagesOnly(t *testing.T) {
	ctx, b, svc := newChatFixture(t)
	ch := UserChannel("alice", "bob")

	_, err := svc.Send(ctx, b, "alice", ch, "one")
	require.NoError(t, err)
	require.NoError(t, svc.MarkRead(ctx, b, "bob", "alice"))
	_, err = svc.Send(ctx, b, "alice", ch, "two")
	require.NoError(t, err)
	_, err = svc.Send(ctx, b, "bob", ch, "three")
	require.NoError(t, err)

	msgs, err := svc.History(ctx, b, "alice", ch, 2)
	require.NoError(t, err)
	real := 0
	for _, m := range msgs {
		if m.Text != "" {
			real++
		}
	}
	assert.Equal(t, 2, real)
	// Newest first.
	assert.Equal(t, "three", msgs[0].Text)
}

func TestHistoryReachesPastMarkerRuns(t *testing.T) {
	ctx, b, svc := newChatFixture(t)
	ch := UserChannel("alice", "bob")

	// One real message buried under a long run of markers.
	_, err := svc.Send(ctx, b, "alice", ch, "buried")
	require.NoError(t, err)
	for i := 0; i < 15; i++ {
		require.NoError(t, svc.MarkRead(ctx, b, "bob", "alice"))
	}

	msgs, err := svc.History(ctx, b, "alice", ch, 1)
	require.NoError(t, err)
	real := 0
	for _, m := range msgs {
		if m.Text != "" {
			real++
			assert.Equal(t, "buried", m.Text)
		}
	}
	assert.Equal(t, 1, real)
}

func TestBlockedSenderCannotMessage(t *testing.T) {
	ctx, b, svc := newChatFixture(t)
	require.NoError(t, b.Blocks().Add(ctx, "bob", "alice"))

	_, err := svc.Send(ctx, b, "alice", UserChannel("alice", "bob"), "hi")
	assert.ErrorIs(t, err, store.ErrForbidden)

	// Read markers still pass so the thread can be acknowledged.
	require.NoError(t, svc.MarkRead(ctx, b, "alice", "bob"))
}

func TestConversations(t *testing.T) {
	ctx, b, svc := newChatFixture(t)

	_, err := svc.Send(ctx, b, "alice", UserChannel("alice", "bob"), "hey")
	require.NoError(t, err)
	_, err = svc.Send(ctx, b, "carol", UserChannel("carol", "alice"), "hi alice")
	require.NoError(t, err)

	convs, err := svc.Conversations(ctx, b, "alice", 10, nil)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	// Newest thread first.
	assert.Equal(t, "carol", convs[0].Other)
	assert.True(t, convs[0].Unread)
	assert.False(t, convs[1].Unread) // alice sent the last message herself

	// Blocked counterparts are filtered out.
	convs, err = svc.Conversations(ctx, b, "alice", 10, map[string]bool{"carol": true})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "bob", convs[0].Other)
}
