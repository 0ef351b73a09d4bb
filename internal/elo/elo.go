// Package elo implements the rating equations and the real-time rating
// update applied at game finalization. The nightly pipeline reuses the
// same equations over its own accumulators.
package elo

import "math"

const (
	// KEstablished applies to players with more than EstablishedGames
	// lifetime human games; KBeginner to everyone else.
	KEstablished = 20
	KBeginner    = 32

	// EstablishedGames is the career threshold above which a player is
	// considered established.
	EstablishedGames = 10
)

// Expected returns the expected score of the first player against the
// second, per the standard logistic curve.
func Expected(elo, opponent int) float64 {
	q0 := math.Pow(10, float64(elo)/400)
	q1 := math.Pow(10, float64(opponent)/400)
	return q0 / (q0 + q1)
}

// Adjustment computes the rating delta for a player. score is 1 for a
// win, 0.5 for a draw, 0 for a loss.
func Adjustment(elo, opponent int, score float64, established bool) int {
	k := float64(KBeginner)
	if established {
		k = KEstablished
	}
	return int(math.Round((score - Expected(elo, opponent)) * k))
}

// Clamp keeps a rating non-negative after applying a delta.
func Clamp(elo int) int {
	if elo < 0 {
		return 0
	}
	return elo
}

// Score converts a score pair into the (S0, S1) actual-score values.
func Score(score0, score1 int) (float64, float64) {
	switch {
	case score0 > score1:
		return 1, 0
	case score0 < score1:
		return 0, 1
	default:
		return 0.5, 0.5
	}
}

// Deltas computes both players' adjustments, honoring the rule that an
// established player neither gains nor loses against a beginner.
func Deltas(elo0, elo1 int, s0, s1 float64, est0, est1 bool) (int, int) {
	d0 := Adjustment(elo0, elo1, s0, est0)
	d1 := Adjustment(elo1, elo0, s1, est1)
	if est0 && !est1 {
		d0 = 0
	}
	if est1 && !est0 {
		d1 = 0
	}
	return d0, d1
}
