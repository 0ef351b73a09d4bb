package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skrafl/server/internal/locale"
	"github.com/skrafl/server/internal/store"
)

func testLocale(t *testing.T) *locale.Locale {
	t.Helper()
	reg, err := locale.LoadRegistry("en_US")
	require.NoError(t, err)
	return reg.Get("en_US")
}

func TestParseCoord(t *testing.T) {
	row, col, horizontal, err := parseCoord("H8")
	require.NoError(t, err)
	assert.Equal(t, 7, row)
	assert.Equal(t, 7, col)
	assert.True(t, horizontal)

	row, col, horizontal, err = parseCoord("8H")
	require.NoError(t, err)
	assert.Equal(t, 7, row)
	assert.Equal(t, 7, col)
	assert.False(t, horizontal)

	_, _, _, err = parseCoord("P1")
	assert.ErrorIs(t, err, store.ErrIllegalMove)
	_, _, _, err = parseCoord("A16")
	assert.ErrorIs(t, err, store.ErrIllegalMove)
	_, _, _, err = parseCoord("")
	assert.ErrorIs(t, err, store.ErrIllegalMove)
}

func TestParseTilesBlanks(t *testing.T) {
	tiles, err := parseTiles("?ab")
	require.NoError(t, err)
	require.Len(t, tiles, 3)
	assert.True(t, tiles[0].blank)
	assert.Equal(t, 'a', tiles[0].letter)
	assert.False(t, tiles[1].blank)

	_, err = parseTiles("ab?")
	assert.ErrorIs(t, err, store.ErrIllegalMove)
}

func TestResolveFirstWordScore(t *testing.T) {
	loc := testLocale(t)
	layout := locale.Layout(loc.BoardType)
	ts := loc.Bag(false)

	b := &Board{}
	// CAT through the start square: C(3) A(1) T(1) = 5, doubled = 10.
	p, err := b.resolve("H8", "cat", layout, ts)
	require.NoError(t, err)
	assert.Equal(t, 10, p.score)
	assert.Equal(t, []string{"cat"}, p.words)
	assert.Len(t, p.newTiles, 3)
}

func TestResolveBlankScoresZero(t *testing.T) {
	loc := testLocale(t)
	layout := locale.Layout(loc.BoardType)
	ts := loc.Bag(false)

	b := &Board{}
	// Blank C: A(1) T(1) = 2, doubled on the start square = 4.
	p, err := b.resolve("H8", "?cat", layout, ts)
	require.NoError(t, err)
	assert.Equal(t, 4, p.score)
}

func TestResolveCrossWordAndExtension(t *testing.T) {
	loc := testLocale(t)
	layout := locale.Layout(loc.BoardType)
	ts := loc.Bag(false)

	b := &Board{}
	p, err := b.resolve("H8", "cat", layout, ts)
	require.NoError(t, err)
	b.apply(p)

	// Extending to CATS must include the existing tiles in the string.
	p2, err := b.resolve("H8", "cats", layout, ts)
	require.NoError(t, err)
	assert.Len(t, p2.newTiles, 1)
	assert.Contains(t, p2.words, "cats")

	// A placement that does not cover the whole word is rejected.
	_, err = b.resolve("H11", "s", layout, ts)
	assert.ErrorIs(t, err, store.ErrIllegalMove)

	// A mismatched letter on an occupied square is rejected.
	_, err = b.resolve("H8", "cot", layout, ts)
	assert.ErrorIs(t, err, store.ErrIllegalMove)
}

func TestResolveBingoBonus(t *testing.T) {
	loc := testLocale(t)
	layout := locale.Layout(loc.BoardType)
	ts := loc.Bag(false)

	b := &Board{}
	p, err := b.resolve("H8", "aaaaaaa", layout, ts)
	require.NoError(t, err)
	// 7 ones with a double letter at col 12, doubled, plus the bonus.
	assert.Equal(t, 16+BingoBonus, p.score)
}

func TestReplaySkipsSentinels(t *testing.T) {
	loc := testLocale(t)
	g := &store.Game{
		Locale: loc.Code,
		Moves: []store.Move{
			{Coord: "H8", Tiles: "cat", Score: 10},
			{Tiles: MovePass},
			{Coord: "H8", Tiles: "cats"},
			{Tiles: MoveOver},
		},
	}
	b, err := Replay(g, len(g.Moves), loc)
	require.NoError(t, err)
	assert.Equal(t, 4, b.TileCount())
	assert.Equal(t, 's', b.At(7, 10))
}
