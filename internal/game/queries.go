package game

import (
	"context"
	"fmt"
	"time"

	"github.com/skrafl/server/internal/store"
)

// GameSummary is the list-view projection of a game from one user's
// perspective.
type GameSummary struct {
	ID            string
	Opponent      *string // nil for a robot opponent
	RobotLevel    int
	MyTurn        bool
	MyScore       int
	OpponentScore int
	Overtime      bool
	TileCount     int
	Manual        bool
	Duration      int
	Zombie        bool
}

// LiveGames lists the user's ongoing games, newest activity first. Games
// found to be lost on time are finalized on the way through.
func (s *Service) LiveGames(ctx context.Context, b store.Backend, userID string) ([]*GameSummary, error) {
	games, err := b.Games().LiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]*GameSummary, 0, len(games))
	for _, g := range games {
		if loser, lost := s.overtimeLoser(g, now); lost {
			if err := s.finalize(ctx, b, g, endTimeLoss, loser); err != nil {
				return nil, err
			}
			continue
		}
		out = append(out, s.summarize(g, userID, now, false))
	}
	return out, nil
}

// FinishedGames lists the user's completed games, newest first, plus the
// finished games still awaiting acknowledgement (zombies).
func (s *Service) FinishedGames(ctx context.Context, b store.Backend, userID string, versus *string, limit int) ([]*GameSummary, error) {
	games, err := b.Games().FinishedForUser(ctx, userID, versus, limit)
	if err != nil {
		return nil, err
	}
	zombies, err := b.Zombies().ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	zombieIDs := make(map[string]bool, len(zombies))
	for _, z := range zombies {
		zombieIDs[z.GameID] = true
	}
	now := s.now()
	out := make([]*GameSummary, 0, len(games))
	for _, g := range games {
		out = append(out, s.summarize(g, userID, now, zombieIDs[g.ID]))
	}
	return out, nil
}

// AcknowledgeFinished clears the zombie marker for a finished game.
func (s *Service) AcknowledgeFinished(ctx context.Context, b store.Backend, userID, gameID string) error {
	return b.Zombies().Delete(ctx, gameID, userID)
}

func (s *Service) summarize(g *store.Game, userID string, now time.Time, zombie bool) *GameSummary {
	seat := 0
	if g.Player1 != nil && *g.Player1 == userID {
		seat = 1
	}
	overtime := false
	if !g.Over && g.Prefs.Duration > 0 {
		e0, e1 := s.elapsed(g, now)
		allot := time.Duration(g.Prefs.Duration) * time.Minute
		overtime = e0 > allot || e1 > allot
	}
	return &GameSummary{
		ID:            g.ID,
		Opponent:      seatPlayer(g, flipSeat(seat)),
		RobotLevel:    g.RobotLevel,
		MyTurn:        !g.Over && g.ToMove == seat,
		MyScore:       seatScore(g, seat),
		OpponentScore: seatScore(g, flipSeat(seat)),
		Overtime:      overtime,
		TileCount:     g.TileCount,
		Manual:        g.Prefs.Manual,
		Duration:      g.Prefs.Duration,
		Zombie:        zombie,
	}
}

// StateAfterMove replays a game up to and including move n and returns
// the board snapshot for review UIs.
func (s *Service) StateAfterMove(ctx context.Context, b store.Backend, gameID string, n int) (*State, error) {
	g, err := s.Load(ctx, b, gameID)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > len(g.Moves) {
		return nil, fmt.Errorf("%w: move %d of %d", store.ErrNotFound, n, len(g.Moves))
	}
	loc := s.reg.Get(g.Locale)
	board, err := Replay(g, n, loc)
	if err != nil {
		return nil, err
	}
	rack := ""
	// The rack recorded on move n-1 is the mover's rack after that move.
	if n > 0 {
		rack = g.Moves[n-1].Rack
	}
	return &State{
		Board:  boardLetters(board),
		Blanks: boardBlanks(board),
		Rack:   rack,
		Locale: g.Locale,
	}, nil
}
