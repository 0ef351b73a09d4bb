package game

import (
	"fmt"
	"strings"

	"github.com/skrafl/server/internal/locale"
	"github.com/skrafl/server/internal/store"
)

// BingoBonus is awarded for a placement using the full rack.
const BingoBonus = 50

// Board is the replayed placement state of one game.
type Board struct {
	cells  [locale.BoardSize][locale.BoardSize]rune // 0 = empty
	blanks [locale.BoardSize][locale.BoardSize]bool
	placed int
}

// At returns the letter on square (row, col), or 0 when empty.
func (b *Board) At(row, col int) rune {
	return b.cells[row][col]
}

// IsBlank reports whether the tile on (row, col) is a blank.
func (b *Board) IsBlank(row, col int) bool {
	return b.blanks[row][col]
}

// TileCount returns the number of tiles placed so far.
func (b *Board) TileCount() int {
	return b.placed
}

// tile is one parsed element of a placement string.
type tile struct {
	letter rune
	blank  bool
}

// parseTiles expands a placement string into tiles. A '?' prefixes the
// letter a blank stands for.
func parseTiles(s string) ([]tile, error) {
	var out []tile
	blank := false
	for _, r := range s {
		if r == locale.BlankTile {
			if blank {
				return nil, fmt.Errorf("%w: dangling blank marker", store.ErrIllegalMove)
			}
			blank = true
			continue
		}
		out = append(out, tile{letter: r, blank: blank})
		blank = false
	}
	if blank {
		return nil, fmt.Errorf("%w: dangling blank marker", store.ErrIllegalMove)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty placement", store.ErrIllegalMove)
	}
	return out, nil
}

// parseCoord interprets a board coordinate. Letter-first ("H8") plays
// horizontally, number-first ("8H") vertically. Both are 1-based with
// rows A-O top to bottom and columns 1-15 left to right.
func parseCoord(coord string) (row, col int, horizontal bool, err error) {
	if coord == "" {
		return 0, 0, false, fmt.Errorf("%w: empty coordinate", store.ErrIllegalMove)
	}
	c := strings.ToUpper(coord)
	if c[0] >= 'A' && c[0] <= 'O' {
		row = int(c[0] - 'A')
		col, err = parseColNum(c[1:])
		return row, col, true, err
	}
	// number-first: vertical
	i := 0
	for i < len(c) && c[i] >= '0' && c[i] <= '9' {
		i++
	}
	if i == 0 || i == len(c) {
		return 0, 0, false, fmt.Errorf("%w: bad coordinate %q", store.ErrIllegalMove, coord)
	}
	row, err = parseColNum(c[:i])
	if err != nil {
		return 0, 0, false, err
	}
	if c[i] < 'A' || c[i] > 'O' || i+1 != len(c) {
		return 0, 0, false, fmt.Errorf("%w: bad coordinate %q", store.ErrIllegalMove, coord)
	}
	return row, int(c[i] - 'A'), false, nil
}

func parseColNum(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, fmt.Errorf("%w: bad coordinate", store.ErrIllegalMove)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: bad coordinate %q", store.ErrIllegalMove, s)
		}
		n = n*10 + int(r-'0')
	}
	if n < 1 || n > locale.BoardSize {
		return 0, fmt.Errorf("%w: coordinate out of range", store.ErrIllegalMove)
	}
	return n - 1, nil
}

// placement is a fully resolved move: which squares get which new tiles,
// and the words formed.
type placement struct {
	row, col   int
	horizontal bool
	tiles      []tile // the whole word, covering existing squares too
	newTiles   []tile // tiles drawn from the rack
	newSquares [][2]int
	words      []string
	score      int
}

// resolve walks the word from its anchor, matching existing tiles and
// marking empty squares as new placements. Scoring uses the layout's
// premiums on new squares only.
func (b *Board) resolve(coord, tilesStr string, layout *locale.BoardLayout, ts *locale.TileSet) (*placement, error) {
	row, col, horizontal, err := parseCoord(coord)
	if err != nil {
		return nil, err
	}
	word, err := parseTiles(tilesStr)
	if err != nil {
		return nil, err
	}

	p := &placement{row: row, col: col, horizontal: horizontal, tiles: word}
	dr, dc := 0, 1
	if !horizontal {
		dr, dc = 1, 0
	}

	r, c := row, col
	mainScore := 0
	wordMult := 1
	var mainWord strings.Builder
	for _, t := range word {
		if r < 0 || r >= locale.BoardSize || c < 0 || c >= locale.BoardSize {
			return nil, fmt.Errorf("%w: word runs off the board", store.ErrIllegalMove)
		}
		mainWord.WriteRune(t.letter)
		if existing := b.cells[r][c]; existing != 0 {
			if existing != t.letter {
				return nil, fmt.Errorf("%w: square %c%d already holds %q",
					store.ErrIllegalMove, 'A'+r, c+1, existing)
			}
			if !b.blanks[r][c] {
				mainScore += ts.Score(t.letter)
			}
		} else {
			val := 0
			if !t.blank {
				val = ts.Score(t.letter) * layout.LetterMultiplier(r, c)
			}
			mainScore += val
			wordMult *= layout.WordMultiplier(r, c)
			p.newTiles = append(p.newTiles, t)
			p.newSquares = append(p.newSquares, [2]int{r, c})
			if cross, crossScore := b.crossWord(r, c, t, !horizontal, layout, ts); cross != "" {
				p.words = append(p.words, cross)
				p.score += crossScore
			}
		}
		r, c = r+dr, c+dc
	}
	if len(p.newTiles) == 0 {
		return nil, fmt.Errorf("%w: no new tiles placed", store.ErrIllegalMove)
	}
	// The placement string must cover the whole main-axis word.
	if pr, pc := row-dr, col-dc; pr >= 0 && pc >= 0 && b.cells[pr][pc] != 0 {
		return nil, fmt.Errorf("%w: placement does not start the word", store.ErrIllegalMove)
	}
	if r < locale.BoardSize && c < locale.BoardSize && b.cells[r][c] != 0 {
		return nil, fmt.Errorf("%w: placement does not end the word", store.ErrIllegalMove)
	}
	if len(word) > 1 {
		p.words = append([]string{mainWord.String()}, p.words...)
		p.score += mainScore * wordMult
	}
	if len(p.newTiles) == locale.RackSize {
		p.score += BingoBonus
	}
	return p, nil
}

// crossWord builds the perpendicular word through a newly placed tile,
// returning "" when the tile stands alone on that axis.
func (b *Board) crossWord(row, col int, t tile, horizontal bool, layout *locale.BoardLayout, ts *locale.TileSet) (string, int) {
	dr, dc := 0, 1
	if !horizontal {
		dr, dc = 1, 0
	}
	sr, sc := row, col
	for sr-dr >= 0 && sc-dc >= 0 && b.cells[sr-dr][sc-dc] != 0 {
		sr, sc = sr-dr, sc-dc
	}
	var word strings.Builder
	score := 0
	r, c := sr, sc
	n := 0
	for r < locale.BoardSize && c < locale.BoardSize {
		var letter rune
		switch {
		case r == row && c == col:
			letter = t.letter
			if !t.blank {
				score += ts.Score(t.letter) * layout.LetterMultiplier(r, c)
			}
		case b.cells[r][c] != 0:
			letter = b.cells[r][c]
			if !b.blanks[r][c] {
				score += ts.Score(letter)
			}
		default:
			r, c = locale.BoardSize, locale.BoardSize
			continue
		}
		word.WriteRune(letter)
		n++
		r, c = r+dr, c+dc
	}
	if n < 2 {
		return "", 0
	}
	return word.String(), score * layout.WordMultiplier(row, col)
}

// apply writes the placement's new tiles onto the board.
func (b *Board) apply(p *placement) {
	for i, sq := range p.newSquares {
		t := p.newTiles[i]
		b.cells[sq[0]][sq[1]] = t.letter
		b.blanks[sq[0]][sq[1]] = t.blank
		b.placed++
	}
}

// Replay rebuilds the board from the first n moves of a game. Sentinel
// and synthetic moves are skipped.
func Replay(g *store.Game, n int, loc *locale.Locale) (*Board, error) {
	layout := locale.Layout(loc.BoardType)
	ts := loc.Bag(g.Prefs.NewBag)
	b := &Board{}
	if n > len(g.Moves) {
		n = len(g.Moves)
	}
	for i := 0; i < n; i++ {
		m := g.Moves[i]
		if m.Coord == "" {
			continue
		}
		p, err := b.resolve(m.Coord, m.Tiles, layout, ts)
		if err != nil {
			return nil, fmt.Errorf("replay move %d: %w", i, err)
		}
		b.apply(p)
	}
	return b, nil
}

// isSentinel reports whether a tiles string is one of the non-placement
// markers.
func isSentinel(tiles string) bool {
	switch {
	case tiles == MovePass, tiles == MoveResign, tiles == MoveTime, tiles == MoveOver:
		return true
	case strings.HasPrefix(tiles, MoveExchangePrefix):
		return true
	}
	return false
}
