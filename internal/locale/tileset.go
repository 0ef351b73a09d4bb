package locale

import (
	"fmt"
	"math/rand"
)

// BlankTile is the joker tile. In placement strings a blank is written
// with a '?' prefix followed by the letter it stands for.
const BlankTile = '?'

// RackSize is the number of tiles a player holds.
const RackSize = 7

// TileSet is one bag composition: per-letter point values and counts.
type TileSet struct {
	scores map[rune]int
	counts map[rune]int
	size   int
}

func newTileSet(entries []tileEntry, alpha *Alphabet) (*TileSet, error) {
	ts := &TileSet{
		scores: make(map[rune]int, len(entries)),
		counts: make(map[rune]int, len(entries)),
	}
	for _, e := range entries {
		runes := []rune(e.Letter)
		if len(runes) != 1 {
			return nil, fmt.Errorf("tile letter %q must be a single rune", e.Letter)
		}
		r := runes[0]
		if r != BlankTile && !alpha.Contains(r) {
			return nil, fmt.Errorf("tile %q not in alphabet", r)
		}
		if _, dup := ts.scores[r]; dup {
			return nil, fmt.Errorf("duplicate tile %q", r)
		}
		ts.scores[r] = e.Score
		ts.counts[r] = e.Count
		ts.size += e.Count
	}
	if ts.size == 0 {
		return nil, fmt.Errorf("empty tile set")
	}
	return ts, nil
}

// Score returns the point value of a tile. A blank scores 0 regardless of
// the letter it stands for.
func (ts *TileSet) Score(r rune) int {
	return ts.scores[r]
}

// Count returns how many copies of tile r the full bag holds.
func (ts *TileSet) Count(r rune) int {
	return ts.counts[r]
}

// BagSize returns the total number of tiles in a fresh bag.
func (ts *TileSet) BagSize() int {
	return ts.size
}

// FullBag expands the composition into a tile multiset in alphabet-
// independent deterministic order. Callers shuffle or draw randomly.
func (ts *TileSet) FullBag() []rune {
	bag := make([]rune, 0, ts.size)
	// Stable order: iterate the score map keys via counts sorted by rune.
	for _, r := range sortedRunes(ts.counts) {
		for i := 0; i < ts.counts[r]; i++ {
			bag = append(bag, r)
		}
	}
	return bag
}

// WordScore sums the tile values of a word. Blanks written as "?x" pairs
// contribute 0.
func (ts *TileSet) WordScore(tiles string) int {
	total := 0
	blank := false
	for _, r := range tiles {
		if r == BlankTile {
			blank = true
			continue
		}
		if blank {
			blank = false
			continue // letter carried by a blank, scores 0
		}
		total += ts.scores[r]
	}
	return total
}

// RackScore sums the tile values of a rack, where a blank is a
// standalone '?' worth 0. Unlike placement strings, a '?' in a rack does
// not pair with the following tile, so the value is independent of tile
// order.
func (ts *TileSet) RackScore(tiles string) int {
	total := 0
	for _, r := range tiles {
		total += ts.scores[r]
	}
	return total
}

func sortedRunes(m map[rune]int) []rune {
	out := make([]rune, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Bag is the drawable tile pool of one live game.
type Bag struct {
	tiles []rune
	rng   *rand.Rand
}

// NewBag creates a full, shuffled bag from the tile set.
func NewBag(ts *TileSet, rng *rand.Rand) *Bag {
	tiles := ts.FullBag()
	rng.Shuffle(len(tiles), func(i, j int) {
		tiles[i], tiles[j] = tiles[j], tiles[i]
	})
	return &Bag{tiles: tiles, rng: rng}
}

// RestoreBag rebuilds a bag as the full set minus the given used tiles
// (tiles on the board plus tiles in both racks), shuffled.
func RestoreBag(ts *TileSet, used []rune, rng *rand.Rand) (*Bag, error) {
	remaining := make(map[rune]int, len(used))
	for r, c := range ts.counts {
		remaining[r] = c
	}
	for _, r := range used {
		remaining[r]--
		if remaining[r] < 0 {
			return nil, fmt.Errorf("tile %q used more times than the bag holds", r)
		}
	}
	tiles := make([]rune, 0, ts.size-len(used))
	for _, r := range sortedRunes(remaining) {
		for i := 0; i < remaining[r]; i++ {
			tiles = append(tiles, r)
		}
	}
	rng.Shuffle(len(tiles), func(i, j int) {
		tiles[i], tiles[j] = tiles[j], tiles[i]
	})
	return &Bag{tiles: tiles, rng: rng}, nil
}

// Size returns the number of undrawn tiles.
func (b *Bag) Size() int {
	return len(b.tiles)
}

// Draw removes and returns up to n tiles.
func (b *Bag) Draw(n int) []rune {
	if n > len(b.tiles) {
		n = len(b.tiles)
	}
	drawn := b.tiles[len(b.tiles)-n:]
	out := make([]rune, n)
	copy(out, drawn)
	b.tiles = b.tiles[:len(b.tiles)-n]
	return out
}

// Return puts tiles back into the bag and reshuffles, for exchange moves.
func (b *Bag) Return(tiles []rune) {
	b.tiles = append(b.tiles, tiles...)
	b.rng.Shuffle(len(b.tiles), func(i, j int) {
		b.tiles[i], b.tiles[j] = b.tiles[j], b.tiles[i]
	})
}

// AllowsExchange reports whether an exchange move is legal: the bag must
// hold at least a full rack.
func (b *Bag) AllowsExchange() bool {
	return len(b.tiles) >= RackSize
}

// String renders the bag contents for diagnostics (sorted, not draw order).
func (b *Bag) String() string {
	tmp := make([]rune, len(b.tiles))
	copy(tmp, b.tiles)
	for i := 1; i < len(tmp); i++ {
		for j := i; j > 0 && tmp[j] < tmp[j-1]; j-- {
			tmp[j], tmp[j-1] = tmp[j-1], tmp[j]
		}
	}
	return string(tmp)
}
