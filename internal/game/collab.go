package game

import "context"

// State is the snapshot handed to the robot move generator: the board as
// letters (blanks lowercased via the Blanks mask), the robot's rack and
// the number of undrawn tiles.
type State struct {
	Board   [][]rune
	Blanks  [][]bool
	Rack    string
	BagSize int
	Locale  string
}

// MoveGenerator produces a robot move for the given state and difficulty
// level (0 = strongest). Implemented outside the core.
type MoveGenerator interface {
	GenerateMove(ctx context.Context, state *State, level int) (coord, tiles string, err error)
}

// WordValidator adjudicates words against the locale's vocabulary.
type WordValidator interface {
	IsValidWord(word, locale, vocabulary string) bool
}

// Notifier delivers fire-and-forget events to users. Errors are logged by
// the caller, never propagated.
type Notifier interface {
	Notify(ctx context.Context, userID, event string) error
}

// Notification event names.
const (
	EventMove      = "move"
	EventChallenge = "challenge"
	EventChat      = "chat"
)
