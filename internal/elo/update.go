package elo

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/skrafl/server/internal/store"
)

// Service applies provisional rating updates when a game finalizes. The
// nightly pipeline later recomputes the same games authoritatively.
type Service struct {
	log *zap.Logger
}

func NewService(log *zap.Logger) *Service {
	return &Service{log: log}
}

// Finalize records both players' pre-game ratings and adjustments on the
// game and writes the updated EloRating (or RobotElo) rows. u0 and u1 are
// nil for robot seats. Must run inside the same session that finalized
// the game.
func (s *Service) Finalize(ctx context.Context, b store.Backend, g *store.Game, u0, u1 *store.User, now time.Time) error {
	r0, err := s.loadRating(ctx, b, g, u0)
	if err != nil {
		return err
	}
	r1, err := s.loadRating(ctx, b, g, u1)
	if err != nil {
		return err
	}

	s0, s1 := Score(g.Score0, g.Score1)
	counting := gameCounts(g)

	// Establishment here keys off lifetime games played; the nightly
	// recompute judges each rating track by its own accumulated counter.
	est0 := u0 != nil && u0.GamesPlayed > EstablishedGames
	est1 := u1 != nil && u1.GamesPlayed > EstablishedGames

	var d0, d1 int
	if counting {
		d0, d1 = Deltas(r0.Elo, r1.Elo, s0, s1, est0, est1)
	}

	robotGame := u0 == nil || u1 == nil
	var hd0, hd1, md0, md1 int
	if counting && !robotGame {
		hd0, hd1 = Deltas(r0.HumanElo, r1.HumanElo, s0, s1, est0, est1)
		if g.Prefs.Manual {
			md0, md1 = Deltas(r0.ManualElo, r1.ManualElo, s0, s1, est0, est1)
		}
	}

	up := store.Updates{
		"elo0": r0.Elo, "elo1": r1.Elo,
		"elo0_adj": d0, "elo1_adj": d1,
	}
	if !robotGame {
		up["human_elo0"] = r0.HumanElo
		up["human_elo1"] = r1.HumanElo
		up["human_elo0_adj"] = hd0
		up["human_elo1_adj"] = hd1
		if g.Prefs.Manual {
			up["manual_elo0"] = r0.ManualElo
			up["manual_elo1"] = r1.ManualElo
			up["manual_elo0_adj"] = md0
			up["manual_elo1_adj"] = md1
		}
	}
	if err := b.Games().Update(ctx, g.ID, up); err != nil {
		return err
	}

	if err := s.storeRating(ctx, b, g, u0, r0, d0, hd0, md0, now); err != nil {
		return err
	}
	return s.storeRating(ctx, b, g, u1, r1, d1, hd1, md1, now)
}

// gameCounts reports whether the game moves ratings at all. Mutual
// zero-score games and first- or second-move resignations are recorded
// but do not count.
func gameCounts(g *store.Game) bool {
	if g.Score0 == 0 && g.Score1 == 0 {
		return false
	}
	for i, m := range g.Moves {
		if i > 1 {
			break
		}
		if m.Tiles == "RSGN" {
			return false
		}
	}
	return true
}

// rating is the working triple for one seat, robot or human.
type rating struct {
	Elo       int
	HumanElo  int
	ManualElo int
}

// loadRating resolves the locale-scoped pre-game rating for a seat. A
// missing row seeds from the user's denormalized fields when the user's
// primary locale matches the game, otherwise from the default.
func (s *Service) loadRating(ctx context.Context, b store.Backend, g *store.Game, u *store.User) (*rating, error) {
	if u == nil {
		re, err := b.Robots().Get(ctx, g.Locale, g.RobotLevel)
		if err != nil {
			return nil, err
		}
		if re == nil {
			return &rating{Elo: store.DefaultElo}, nil
		}
		return &rating{Elo: re.Elo}, nil
	}
	er, err := b.Elo().Get(ctx, u.ID, g.Locale)
	if err != nil {
		return nil, err
	}
	if er != nil {
		return &rating{Elo: er.Elo, HumanElo: er.HumanElo, ManualElo: er.ManualElo}, nil
	}
	if sameLanguage(u.Locale, g.Locale) && u.Elo > 0 {
		return &rating{Elo: u.Elo, HumanElo: u.HumanElo, ManualElo: u.ManualElo}, nil
	}
	return &rating{
		Elo: store.DefaultElo, HumanElo: store.DefaultElo, ManualElo: store.DefaultElo,
	}, nil
}

func (s *Service) storeRating(ctx context.Context, b store.Backend, g *store.Game, u *store.User, r *rating, d, hd, md int, now time.Time) error {
	if u == nil {
		return b.Robots().Put(ctx, &store.RobotElo{
			Locale: g.Locale, Level: g.RobotLevel,
			Elo: Clamp(r.Elo + d), Timestamp: now,
		})
	}
	updated := &store.EloRating{
		UserID: u.ID, Locale: g.Locale,
		Elo:       Clamp(r.Elo + d),
		HumanElo:  Clamp(r.HumanElo + hd),
		ManualElo: Clamp(r.ManualElo + md),
		Timestamp: now,
	}
	if err := b.Elo().Put(ctx, updated); err != nil {
		return err
	}
	// Refresh the cached view on the user when the game is in their
	// primary locale; the nightly pipeline rewrites it authoritatively.
	if sameLanguage(u.Locale, g.Locale) {
		return b.Users().Update(ctx, u.ID, store.Updates{
			"elo":        updated.Elo,
			"human_elo":  updated.HumanElo,
			"manual_elo": updated.ManualElo,
		})
	}
	return nil
}

func sameLanguage(a, b string) bool {
	if a == b {
		return true
	}
	langOf := func(code string) string {
		if i := strings.IndexByte(code, '_'); i >= 0 {
			return code[:i]
		}
		return code
	}
	return langOf(a) == langOf(b)
}
