package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skrafl/server/internal/store"
)

func TestRiddleOfDay(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.RiddleOfDay(f.ctx, f.b, "en_US", "2026-08-25")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, f.svc.SetRiddle(f.ctx, f.b, &store.Riddle{
		Locale: "en_US", Date: "2026-08-25", Solution: "Quixotic",
	}))

	r, err := f.svc.RiddleOfDay(f.ctx, f.b, "en_US", "2026-08-25")
	require.NoError(t, err)
	// Solutions are stored normalized to the locale's lowercase alphabet.
	assert.Equal(t, "quixotic", r.Solution)

	// A solution outside the alphabet is rejected.
	err = f.svc.SetRiddle(f.ctx, f.b, &store.Riddle{
		Locale: "en_US", Date: "2026-08-26", Solution: "crème",
	})
	assert.ErrorIs(t, err, store.ErrIllegalState)
}
