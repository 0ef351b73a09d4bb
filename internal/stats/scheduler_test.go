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

func newRunnerFixture(t *testing.T, deadline time.Duration) (context.Context, *storetest.Memory, store.Backend, *Runner) {
	t.Helper()
	mem := storetest.NewMemory()
	b, err := mem.NewSession(context.Background())
	require.NoError(t, err)
	svc := NewService(zap.NewNop())
	sm := store.NewSessionManager(mem, zap.NewNop())
	return context.Background(), mem, b, NewRunner(sm, svc, deadline, zap.NewNop())
}

func TestWindowSelection(t *testing.T) {
	ctx, _, b, r := newRunnerFixture(t, time.Minute)
	now := time.Date(2026, 8, 25, 3, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	// Fresh deployment: a 24-hour window ending now.
	from, to, err := r.window(ctx)
	require.NoError(t, err)
	assert.True(t, from.Equal(now.Add(-24*time.Hour)))
	assert.True(t, to.Equal(now))

	// An interrupted run is re-invoked with its original bounds.
	f0 := now.Add(-48 * time.Hour)
	t0 := now.Add(-24 * time.Hour)
	require.NoError(t, b.Completions().Add(ctx, &store.Completion{
		ProcType: ProcStats, TsFrom: f0, TsTo: t0,
		Success: false, Reason: "deadline", Timestamp: now.Add(-time.Hour),
	}))
	from, to, err = r.window(ctx)
	require.NoError(t, err)
	assert.True(t, from.Equal(f0))
	assert.True(t, to.Equal(t0))

	// After success the window opens at the last boundary.
	require.NoError(t, b.Completions().Add(ctx, &store.Completion{
		ProcType: ProcStats, TsFrom: f0, TsTo: t0,
		Success: true, Timestamp: now.Add(-time.Minute),
	}))
	from, to, err = r.window(ctx)
	require.NoError(t, err)
	assert.True(t, from.Equal(t0))
	assert.True(t, to.Equal(now))
}

func TestRunNightlyResumesAfterDeadline(t *testing.T) {
	ctx, _, b, r := newRunnerFixture(t, time.Second)
	alice, bob := "alice", "bob"
	seedStatsUser(t, ctx, b, alice)
	seedStatsUser(t, ctx, b, bob)
	finishedGame(t, ctx, b, "g1", &alice, &bob, 300, 250, time.Now().UTC().Add(-time.Hour))

	// A one-second deadline sits inside the flush margin, so the run is
	// interrupted immediately. The tick itself still succeeds.
	require.NoError(t, r.RunNightly(ctx))

	last, err := b.Completions().Latest(ctx, ProcStats)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.False(t, last.Success)

	// No rebuild happened on the interrupted tick.
	done, err := b.Completions().Latest(ctx, ProcRatings)
	require.NoError(t, err)
	assert.Nil(t, done)

	// The next tick, with normal headroom, finishes the window and
	// rebuilds the tables.
	r.deadline = time.Hour
	require.NoError(t, r.RunNightly(ctx))

	snap, err := b.Stats().LatestBefore(ctx, alice, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1216, snap.Elo)

	done, err = b.Completions().Latest(ctx, ProcRatings)
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.True(t, done.Success)
}

func TestNextRunAt(t *testing.T) {
	now := time.Date(2026, 8, 25, 1, 30, 0, 0, time.UTC)
	next := nextRunAt(now, 3)
	assert.Equal(t, time.Date(2026, 8, 25, 3, 0, 0, 0, time.UTC), next)

	// Past today's slot: roll over to tomorrow.
	next = nextRunAt(now.Add(4*time.Hour), 3)
	assert.Equal(t, time.Date(2026, 8, 26, 3, 0, 0, 0, time.UTC), next)
}
