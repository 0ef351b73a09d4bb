package locale

import "fmt"

// BoardSize is the side length of the square board.
const BoardSize = 15

// Center coordinates of the start square.
const (
	CenterRow = 7
	CenterCol = 7
)

// BoardLayout holds the premium-square multipliers for one board type.
type BoardLayout struct {
	Name string
	// wordMult and letterMult are 1 for plain squares.
	wordMult   [BoardSize][BoardSize]int
	letterMult [BoardSize][BoardSize]int
}

// standardLayout is the classic premium pattern. Codes: T/D = triple and
// double word, t/d = triple and double letter, * = the start square
// (double word), space = plain.
var standardLayout = [BoardSize]string{
	"T  d   T   d  T",
	" D   t   t   D ",
	"  D   d d   D  ",
	"d  D   d   D  d",
	"    D     D    ",
	" t   t   t   t ",
	"  d   d d   d  ",
	"T  d   *   d  T",
	"  d   d d   d  ",
	" t   t   t   t ",
	"    D     D    ",
	"d  D   d   D  d",
	"  D   d d   D  ",
	" D   t   t   D ",
	"T  d   T   d  T",
}

var layouts = map[string]*BoardLayout{}

func init() {
	std, err := parseLayout("standard", standardLayout)
	if err != nil {
		panic(err)
	}
	layouts["standard"] = std
}

func parseLayout(name string, rows [BoardSize]string) (*BoardLayout, error) {
	bl := &BoardLayout{Name: name}
	for r, row := range rows {
		if len(row) != BoardSize {
			return nil, fmt.Errorf("layout %s row %d has %d squares", name, r, len(row))
		}
		for c := 0; c < BoardSize; c++ {
			bl.wordMult[r][c] = 1
			bl.letterMult[r][c] = 1
			switch row[c] {
			case 'T':
				bl.wordMult[r][c] = 3
			case 'D', '*':
				bl.wordMult[r][c] = 2
			case 't':
				bl.letterMult[r][c] = 3
			case 'd':
				bl.letterMult[r][c] = 2
			case ' ':
			default:
				return nil, fmt.Errorf("layout %s: unknown code %q", name, row[c])
			}
		}
	}
	return bl, nil
}

// Layout resolves a board type name, falling back to the standard board.
func Layout(name string) *BoardLayout {
	if bl, ok := layouts[name]; ok {
		return bl
	}
	return layouts["standard"]
}

// WordMultiplier returns the word multiplier of square (row, col).
func (bl *BoardLayout) WordMultiplier(row, col int) int {
	return bl.wordMult[row][col]
}

// LetterMultiplier returns the letter multiplier of square (row, col).
func (bl *BoardLayout) LetterMultiplier(row, col int) int {
	return bl.letterMult[row][col]
}
