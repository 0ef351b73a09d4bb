// Package stats implements the nightly pipeline: authoritative career
// aggregation into Stats snapshots and the top-100 ranking rebuild.
package stats

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/skrafl/server/internal/elo"
	"github.com/skrafl/server/internal/store"
)

// Completion log process types.
const (
	ProcStats   = "stats"
	ProcRatings = "ratings"
)

// deadlineMargin is how much headroom the run keeps to flush its
// accumulators before the scheduler deadline hits.
const deadlineMargin = 30 * time.Second

type Service struct {
	log *zap.Logger
	now func() time.Time
}

func NewService(log *zap.Logger) *Service {
	return &Service{log: log, now: func() time.Time { return time.Now().UTC() }}
}

// acc is the per-player working accumulator of one run, seeded from the
// newest snapshot at or before the window start.
type acc struct {
	userID string
	stats  store.UserStats
}

// robotAcc carries a robot level's rating through the run.
type robotAcc struct {
	locale string
	level  int
	elo    int
}

// RunStats aggregates every completed game with from < tsLastMove <= to
// into one Stats snapshot per touched user at timestamp to. The write is
// idempotent: snapshots at exactly to are deleted first, so a retried or
// resumed run with the same window converges to the same rows. When the
// context deadline approaches, the run flushes what it has processed,
// records the last game boundary in the completion log, and returns
// ErrDeadline.
func (s *Service) RunStats(ctx context.Context, b store.Backend, from, to time.Time) error {
	games, err := b.Games().FinishedBetween(ctx, from, to)
	if err != nil {
		return s.fail(ctx, b, ProcStats, from, to, time.Time{}, err)
	}
	s.log.Info("stats run starting",
		zap.Time("from", from), zap.Time("to", to), zap.Int("games", len(games)))

	accs := make(map[string]*acc)
	robots := make(map[string]*robotAcc)
	var lastProcessed time.Time

	for _, g := range games {
		if deadlineNear(ctx) {
			if err := s.flush(ctx, b, accs, robots, to); err != nil {
				return s.fail(ctx, b, ProcStats, from, to, lastProcessed, err)
			}
			s.logCompletion(ctx, b, &store.Completion{
				ProcType: ProcStats, TsFrom: from, TsTo: to,
				Success: false, Reason: "deadline", Progress: lastProcessed,
			})
			return fmt.Errorf("%w: stats run interrupted at %s",
				store.ErrDeadline, lastProcessed.Format(time.RFC3339))
		}
		if err := s.processGame(ctx, b, g, from, accs, robots); err != nil {
			return s.fail(ctx, b, ProcStats, from, to, lastProcessed, err)
		}
		lastProcessed = g.TsLastMove
	}

	if err := s.flush(ctx, b, accs, robots, to); err != nil {
		return s.fail(ctx, b, ProcStats, from, to, lastProcessed, err)
	}
	s.logCompletion(ctx, b, &store.Completion{
		ProcType: ProcStats, TsFrom: from, TsTo: to, Success: true,
	})
	s.log.Info("stats run complete", zap.Int("users", len(accs)))
	return nil
}

// processGame folds one finished game into both players' accumulators.
func (s *Service) processGame(ctx context.Context, b store.Backend, g *store.Game, from time.Time, accs map[string]*acc, robots map[string]*robotAcc) error {
	// Mutual zero scores mean the game never really started.
	if g.Score0 == 0 && g.Score1 == 0 {
		return nil
	}

	a0, r0, err := s.seatAcc(ctx, b, g, g.Player0, from, accs, robots)
	if err != nil {
		return err
	}
	a1, r1, err := s.seatAcc(ctx, b, g, g.Player1, from, accs, robots)
	if err != nil {
		return err
	}

	humanGame := a0 != nil && a1 != nil
	manualGame := humanGame && g.Prefs.Manual
	sc0, sc1 := g.Score0, g.Score1
	s0, s1 := elo.Score(sc0, sc1)

	elo0, est0 := seatElo(a0, r0, eloAll)
	elo1, est1 := seatElo(a1, r1, eloAll)
	d0, d1 := elo.Deltas(elo0, elo1, s0, s1, est0, est1)
	addElo(a0, r0, eloAll, d0)
	addElo(a1, r1, eloAll, d1)

	if humanGame {
		h0, hest0 := seatElo(a0, nil, eloHuman)
		h1, hest1 := seatElo(a1, nil, eloHuman)
		hd0, hd1 := elo.Deltas(h0, h1, s0, s1, hest0, hest1)
		addElo(a0, nil, eloHuman, hd0)
		addElo(a1, nil, eloHuman, hd1)
		if manualGame {
			m0, mest0 := seatElo(a0, nil, eloManual)
			m1, mest1 := seatElo(a1, nil, eloManual)
			md0, md1 := elo.Deltas(m0, m1, s0, s1, mest0, mest1)
			addElo(a0, nil, eloManual, md0)
			addElo(a1, nil, eloManual, md1)
		}
	}

	foldSeat(a0, sc0, sc1, humanGame, manualGame)
	foldSeat(a1, sc1, sc0, humanGame, manualGame)
	return nil
}

// seatAcc resolves the accumulator for a seat: a user accumulator for a
// human, a robot accumulator otherwise.
func (s *Service) seatAcc(ctx context.Context, b store.Backend, g *store.Game, player *string, from time.Time, accs map[string]*acc, robots map[string]*robotAcc) (*acc, *robotAcc, error) {
	if player == nil {
		key := fmt.Sprintf("%s/%d", g.Locale, g.RobotLevel)
		if r, ok := robots[key]; ok {
			return nil, r, nil
		}
		r := &robotAcc{locale: g.Locale, level: g.RobotLevel, elo: store.DefaultElo}
		if re, err := b.Robots().Get(ctx, g.Locale, g.RobotLevel); err != nil {
			return nil, nil, err
		} else if re != nil {
			r.elo = re.Elo
		}
		robots[key] = r
		return nil, r, nil
	}

	if a, ok := accs[*player]; ok {
		return a, nil, nil
	}
	a := &acc{userID: *player}
	prev, err := b.Stats().LatestBefore(ctx, *player, from)
	if err != nil {
		return nil, nil, err
	}
	if prev != nil {
		a.stats = *prev
	} else {
		a.stats.Elo = store.DefaultElo
		a.stats.HumanElo = store.DefaultElo
		a.stats.ManualElo = store.DefaultElo
	}
	a.stats.UserID = *player
	accs[*player] = a
	return a, nil, nil
}

// eloTrack selects one of the three parallel ratings.
type eloTrack int

const (
	eloAll eloTrack = iota
	eloHuman
	eloManual
)

// seatElo reads a track's current rating and establishment for a seat.
// Robots are always established.
func seatElo(a *acc, r *robotAcc, track eloTrack) (int, bool) {
	if a == nil {
		return r.elo, true
	}
	switch track {
	case eloHuman:
		return a.stats.HumanElo, a.stats.HumanGames > elo.EstablishedGames
	case eloManual:
		return a.stats.ManualElo, a.stats.ManualGames > elo.EstablishedGames
	default:
		return a.stats.Elo, a.stats.Games > elo.EstablishedGames
	}
}

func addElo(a *acc, r *robotAcc, track eloTrack, d int) {
	if a == nil {
		r.elo = elo.Clamp(r.elo + d)
		return
	}
	switch track {
	case eloHuman:
		a.stats.HumanElo = elo.Clamp(a.stats.HumanElo + d)
	case eloManual:
		a.stats.ManualElo = elo.Clamp(a.stats.ManualElo + d)
	default:
		a.stats.Elo = elo.Clamp(a.stats.Elo + d)
	}
}

// foldSeat adds one game's counters and scores to a human accumulator.
func foldSeat(a *acc, scored, against int, humanGame, manualGame bool) {
	if a == nil {
		return
	}
	st := &a.stats
	st.Games++
	st.Score += scored
	st.ScoreAgainst += against
	won, lost := scored > against, scored < against
	if won {
		st.Wins++
	}
	if lost {
		st.Losses++
	}
	if humanGame {
		st.HumanGames++
		st.HumanScore += scored
		st.HumanScoreAgainst += against
		if won {
			st.HumanWins++
		}
		if lost {
			st.HumanLosses++
		}
	}
	if manualGame {
		st.ManualGames++
		st.ManualScore += scored
		st.ManualScoreAgainst += against
		if won {
			st.ManualWins++
		}
		if lost {
			st.ManualLosses++
		}
	}
}

// flush writes one snapshot per touched user at the window end, replacing
// any earlier write at the same boundary, refreshes the denormalized
// rating fields on each user, and persists the robot ratings.
func (s *Service) flush(ctx context.Context, b store.Backend, accs map[string]*acc, robots map[string]*robotAcc, to time.Time) error {
	if len(accs) > 0 {
		ids := make([]string, 0, len(accs))
		rows := make([]*store.UserStats, 0, len(accs))
		for id, a := range accs {
			ids = append(ids, id)
			snap := a.stats
			snap.Timestamp = to
			rows = append(rows, &snap)
		}
		if err := b.Stats().DeleteAt(ctx, ids, to); err != nil {
			return err
		}
		if err := b.Stats().PutMulti(ctx, rows); err != nil {
			return err
		}
		for id, a := range accs {
			err := b.Users().Update(ctx, id, store.Updates{
				"elo":        a.stats.Elo,
				"human_elo":  a.stats.HumanElo,
				"manual_elo": a.stats.ManualElo,
			})
			if err != nil {
				return err
			}
		}
	}
	now := s.now()
	for _, r := range robots {
		err := b.Robots().Put(ctx, &store.RobotElo{
			Locale: r.locale, Level: r.level, Elo: r.elo, Timestamp: now,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// fail records an unsuccessful completion before propagating the error.
func (s *Service) fail(ctx context.Context, b store.Backend, proc string, from, to, progress time.Time, err error) error {
	s.logCompletion(ctx, b, &store.Completion{
		ProcType: proc, TsFrom: from, TsTo: to,
		Success: false, Reason: err.Error(), Progress: progress,
	})
	return err
}

func (s *Service) logCompletion(ctx context.Context, b store.Backend, c *store.Completion) {
	c.Timestamp = s.now()
	if err := b.Completions().Add(ctx, c); err != nil {
		s.log.Error("completion log write failed",
			zap.String("proctype", c.ProcType), zap.Error(err))
	}
}

func deadlineNear(ctx context.Context) bool {
	dl, ok := ctx.Deadline()
	if !ok {
		return false
	}
	return time.Until(dl) < deadlineMargin
}
