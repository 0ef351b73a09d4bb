package elo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpectedSymmetry(t *testing.T) {
	assert.InDelta(t, 0.5, Expected(1200, 1200), 1e-9)
	e := Expected(1400, 1200)
	assert.InDelta(t, 1.0, e+Expected(1200, 1400), 1e-9)
	assert.Greater(t, e, 0.5)
}

func TestAdjustmentEqualRatings(t *testing.T) {
	// Established winner at equal ratings moves half of K = 20.
	assert.Equal(t, 10, Adjustment(1200, 1200, 1, true))
	assert.Equal(t, -10, Adjustment(1200, 1200, 0, true))
	assert.Equal(t, 0, Adjustment(1200, 1200, 0.5, true))

	// Beginners move with K = 32.
	assert.Equal(t, 16, Adjustment(1200, 1200, 1, false))
	assert.Equal(t, -16, Adjustment(1200, 1200, 0, false))
}

func TestDeltasEstablishedVsBeginner(t *testing.T) {
	// An established player neither gains nor loses against a beginner.
	d0, d1 := Deltas(1400, 1200, 1, 0, true, false)
	assert.Equal(t, 0, d0)
	assert.Negative(t, d1)

	d0, d1 = Deltas(1400, 1200, 0, 1, true, false)
	assert.Equal(t, 0, d0)
	assert.Positive(t, d1)
}

func TestDeltasBothEstablished(t *testing.T) {
	d0, d1 := Deltas(1200, 1200, 1, 0, true, true)
	assert.Equal(t, 10, d0)
	assert.Equal(t, -10, d1)
}

func TestScore(t *testing.T) {
	s0, s1 := Score(300, 250)
	assert.Equal(t, 1.0, s0)
	assert.Equal(t, 0.0, s1)

	s0, s1 = Score(250, 250)
	assert.Equal(t, 0.5, s0)
	assert.Equal(t, 0.5, s1)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-5))
	assert.Equal(t, 7, Clamp(7))
}
