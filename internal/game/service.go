// Package game implements the game lifecycle: creation, move application
// with optimistic concurrency, rack and bag accounting, overtime, and
// finalization including rating updates.
package game

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skrafl/server/internal/elo"
	"github.com/skrafl/server/internal/locale"
	"github.com/skrafl/server/internal/store"
)

// Move sentinels stored in a Move's Tiles field.
const (
	MovePass           = "PASS"
	MoveResign         = "RSGN"
	MoveTime           = "TIME"
	MoveOver           = "OVER"
	MoveExchangePrefix = "EXCH "
)

const (
	// MaxOvertime is the overtime beyond which a player loses on time.
	MaxOvertime = 10 * time.Minute
	// OvertimePenalty points are deducted per started overtime minute,
	// up to OvertimeCap.
	OvertimePenalty = 10
	OvertimeCap     = 100
	// ScorelessLimit consecutive non-scoring moves end the game.
	ScorelessLimit = 6
)

// Service runs game operations. All methods operate within the caller's
// request session.
type Service struct {
	reg    *locale.Registry
	gen    MoveGenerator
	words  WordValidator
	notify Notifier
	elo    *elo.Service
	log    *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func NewService(reg *locale.Registry, gen MoveGenerator, words WordValidator, notify Notifier, eloSvc *elo.Service, log *zap.Logger) *Service {
	return &Service{
		reg:    reg,
		gen:    gen,
		words:  words,
		notify: notify,
		elo:    eloSvc,
		log:    log,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// New creates a game between p0 and p1 (nil = robot seat), randomly
// swapping seats for fair first-move selection. If the first seat to move
// is a robot, its move is generated and applied before returning.
func (s *Service) New(ctx context.Context, b store.Backend, p0, p1 *string, robotLevel int, prefs store.GamePrefs, localeCode string) (*store.Game, error) {
	loc := s.reg.Get(localeCode)

	s.mu.Lock()
	if s.rng.Intn(2) == 1 {
		p0, p1 = p1, p0
	}
	bag := locale.NewBag(loc.Bag(prefs.NewBag), s.rng)
	s.mu.Unlock()

	rack0 := string(bag.Draw(locale.RackSize))
	rack1 := string(bag.Draw(locale.RackSize))

	now := s.now()
	g := &store.Game{
		ID:         b.GenerateID(),
		Player0:    p0,
		Player1:    p1,
		Locale:     loc.Code,
		Rack0:      rack0,
		Rack1:      rack1,
		IRack0:     rack0,
		IRack1:     rack1,
		RobotLevel: robotLevel,
		Timestamp:  now,
		TsLastMove: now,
		Prefs:      prefs,
	}
	if err := b.Games().Create(ctx, g); err != nil {
		return nil, err
	}
	if p0 == nil {
		if err := s.robotTurn(ctx, b, g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Load fetches a game and finalizes it if it turns out to have been lost
// on time. State queries and move application share this path so that
// whichever one observes the loss first transitions the game.
func (s *Service) Load(ctx context.Context, b store.Backend, gameID string) (*store.Game, error) {
	g, err := b.Games().Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("%w: game %s", store.ErrNotFound, gameID)
	}
	if !g.Over {
		if loser, lost := s.overtimeLoser(g, s.now()); lost {
			if err := s.finalize(ctx, b, g, endTimeLoss, loser); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// Apply validates and appends one move on behalf of userID (nil for the
// robot seat). mcount is the client's view of len(moves); a mismatch is a
// Conflict and leaves the game untouched.
func (s *Service) Apply(ctx context.Context, b store.Backend, gameID string, userID *string, mcount int, coord, tiles string) (*store.Game, error) {
	g, err := s.Load(ctx, b, gameID)
	if err != nil {
		return nil, err
	}
	if g.Over {
		return nil, fmt.Errorf("%w: game %s is over", store.ErrIllegalState, gameID)
	}
	if mcount != len(g.Moves) {
		return nil, fmt.Errorf("%w: move count %d, game has %d", store.ErrConflict, mcount, len(g.Moves))
	}
	if !seatMatches(g, g.ToMove, userID) {
		return nil, fmt.Errorf("%w: not this player's turn", store.ErrForbidden)
	}

	switch {
	case tiles == MovePass:
		err = s.applyPass(ctx, b, g)
	case tiles == MoveResign:
		err = s.applyResign(ctx, b, g)
	case strings.HasPrefix(tiles, MoveExchangePrefix):
		err = s.applyExchange(ctx, b, g, strings.TrimPrefix(tiles, MoveExchangePrefix))
	default:
		err = s.applyPlacement(ctx, b, g, coord, tiles)
	}
	if err != nil {
		return nil, err
	}

	if !g.Over && isRobotSeat(g, g.ToMove) {
		if err := s.robotTurn(ctx, b, g); err != nil {
			return nil, err
		}
	}
	s.notifyOpponent(ctx, g, userID, EventMove)
	return g, nil
}

func (s *Service) applyPlacement(ctx context.Context, b store.Backend, g *store.Game, coord, tiles string) error {
	loc := s.reg.Get(g.Locale)
	layout := locale.Layout(loc.BoardType)
	ts := loc.Bag(g.Prefs.NewBag)

	board, err := Replay(g, len(g.Moves), loc)
	if err != nil {
		return err
	}
	p, err := board.resolve(coord, tiles, layout, ts)
	if err != nil {
		return err
	}

	rack := currentRack(g)
	newRack, err := rackRemove(rack, p.newTiles)
	if err != nil {
		return err
	}

	if !g.Prefs.Manual && s.words != nil {
		for _, w := range p.words {
			if !s.words.IsValidWord(w, loc.Code, loc.Vocabulary) {
				return fmt.Errorf("%w: %q is not a word", store.ErrIllegalMove, w)
			}
		}
	}

	bag, err := s.restoreBag(g, board, ts)
	if err != nil {
		return err
	}
	newRack += string(bag.Draw(locale.RackSize - len([]rune(newRack))))

	board.apply(p)
	s.addScore(g, g.ToMove, p.score)
	g.TileCount = board.TileCount()
	s.appendMove(g, store.Move{Coord: coord, Tiles: tiles, Score: p.score, Rack: newRack})
	setRack(g, flipSeat(g.ToMove), newRack)

	if bag.Size() == 0 && newRack == "" {
		return s.finalize(ctx, b, g, endRackEmpty, flipSeat(g.ToMove))
	}
	if p.score == 0 && scorelessRun(g) >= ScorelessLimit {
		return s.finalize(ctx, b, g, endScoreless, -1)
	}
	return s.persistMove(ctx, b, g)
}

func (s *Service) applyExchange(ctx context.Context, b store.Backend, g *store.Game, exchanged string) error {
	loc := s.reg.Get(g.Locale)
	ts := loc.Bag(g.Prefs.NewBag)
	board, err := Replay(g, len(g.Moves), loc)
	if err != nil {
		return err
	}
	bag, err := s.restoreBag(g, board, ts)
	if err != nil {
		return err
	}
	if !bag.AllowsExchange() {
		return fmt.Errorf("%w: bag too small for exchange", store.ErrIllegalMove)
	}

	out := []rune(exchanged)
	if len(out) == 0 || len(out) > locale.RackSize {
		return fmt.Errorf("%w: exchange of %d tiles", store.ErrIllegalMove, len(out))
	}
	rack := currentRack(g)
	newRack, err := rackRemoveRunes(rack, out)
	if err != nil {
		return err
	}
	drawn := bag.Draw(len(out))
	bag.Return(out)
	newRack += string(drawn)

	s.appendMove(g, store.Move{Tiles: MoveExchangePrefix + exchanged, Rack: newRack})
	setRack(g, flipSeat(g.ToMove), newRack)

	if scorelessRun(g) >= ScorelessLimit {
		return s.finalize(ctx, b, g, endScoreless, -1)
	}
	return s.persistMove(ctx, b, g)
}

func (s *Service) applyPass(ctx context.Context, b store.Backend, g *store.Game) error {
	s.appendMove(g, store.Move{Tiles: MovePass, Rack: currentRack(g)})
	if scorelessRun(g) >= ScorelessLimit {
		return s.finalize(ctx, b, g, endScoreless, -1)
	}
	return s.persistMove(ctx, b, g)
}

func (s *Service) applyResign(ctx context.Context, b store.Backend, g *store.Game) error {
	seat := g.ToMove
	delta := -seatScore(g, seat)
	s.addScore(g, seat, delta)
	s.appendMove(g, store.Move{Tiles: MoveResign, Score: delta, Rack: currentRack(g)})
	return s.finalize(ctx, b, g, endResign, seat)
}

// end causes, with the seat that triggered them where applicable.
type endCause int

const (
	endRackEmpty endCause = iota // seat emptied their rack with an empty bag
	endScoreless                 // six consecutive non-scoring moves
	endResign                    // seat resigned
	endTimeLoss                  // seat exceeded MaxOvertime
)

// finalize fixes the final scores in the mandated order: overtime
// penalties first, then rack-leave adjustments, then the synthetic TIME
// and OVER records.
func (s *Service) finalize(ctx context.Context, b store.Backend, g *store.Game, cause endCause, seat int) error {
	now := s.now()

	// (i) overtime
	var timeAdj [2]int
	overtime := false
	if g.Prefs.Duration > 0 {
		e0, e1 := s.elapsed(g, now)
		allot := time.Duration(g.Prefs.Duration) * time.Minute
		overtime = e0 > allot || e1 > allot
		timeAdj[0] = -overtimePenalty(e0 - allot)
		timeAdj[1] = -overtimePenalty(e1 - allot)
		g.Score0 += timeAdj[0]
		g.Score1 += timeAdj[1]
		if cause == endTimeLoss {
			// loser drops to one below the opponent, floor 0
			opp := seatScore(g, flipSeat(seat))
			target := opp - 1
			if target < 0 {
				target = 0
			}
			adj := target - seatScore(g, seat)
			s.addScore(g, seat, adj)
			timeAdj[seat] += adj
		}
	}

	// (ii) rack leave
	loc := s.reg.Get(g.Locale)
	ts := loc.Bag(g.Prefs.NewBag)
	switch cause {
	case endRackEmpty:
		oppRack := seatRack(g, flipSeat(seat))
		leave := ts.RackScore(oppRack)
		s.addScore(g, flipSeat(seat), -leave)
		s.addScore(g, seat, 2*leave)
	case endScoreless:
		g.Score0 -= ts.RackScore(g.Rack0)
		g.Score1 -= ts.RackScore(g.Rack1)
	}

	// (iii) synthetic records
	if overtime {
		s.appendMove(g, store.Move{Tiles: MoveTime, Score: timeAdj[0], Rack: g.Rack0})
		s.appendMove(g, store.Move{Tiles: MoveTime, Score: timeAdj[1], Rack: g.Rack1})
	}
	s.appendMove(g, store.Move{Tiles: MoveOver})
	g.Over = true

	if err := s.persistMove(ctx, b, g); err != nil {
		return err
	}
	return s.afterFinalize(ctx, b, g, seat, now)
}

// afterFinalize runs the rating update, career counters, best-word
// bookkeeping and zombie queue entries inside the finalizing session.
func (s *Service) afterFinalize(ctx context.Context, b store.Backend, g *store.Game, causeSeat int, now time.Time) error {
	var u0, u1 *store.User
	var err error
	if g.Player0 != nil {
		if u0, err = b.Users().Get(ctx, *g.Player0); err != nil {
			return err
		}
	}
	if g.Player1 != nil {
		if u1, err = b.Users().Get(ctx, *g.Player1); err != nil {
			return err
		}
	}

	if err := s.elo.Finalize(ctx, b, g, u0, u1, now); err != nil {
		return err
	}

	if err := s.recordCareer(ctx, b, g, 0, u0); err != nil {
		return err
	}
	if err := s.recordCareer(ctx, b, g, 1, u1); err != nil {
		return err
	}

	// The player who did not trigger the end gets a zombie entry so the
	// finished game is surfaced until acknowledged.
	if causeSeat >= 0 {
		if opp := otherSeat(g, causeSeat); opp != nil {
			if err := b.Zombies().Add(ctx, g.ID, *opp); err != nil {
				return err
			}
		}
	} else {
		for _, p := range []*string{g.Player0, g.Player1} {
			if p != nil {
				if err := b.Zombies().Add(ctx, g.ID, *p); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// recordCareer bumps the game counter and the denormalized best-word and
// highest-score fields when this game beat them.
func (s *Service) recordCareer(ctx context.Context, b store.Backend, g *store.Game, seat int, u *store.User) error {
	if u == nil {
		return nil
	}
	up := store.Updates{"games": u.GamesPlayed + 1}

	if score := seatScore(g, seat); score > u.HighestScore {
		up["highest_score"] = score
		up["highest_score_game"] = g.ID
	}
	bestWord, bestScore := bestWordOfSeat(g, seat)
	if bestScore > u.BestWordScore {
		up["best_word"] = bestWord
		up["best_word_score"] = bestScore
		up["best_word_game"] = g.ID
	}
	return b.Users().Update(ctx, u.ID, up)
}

// bestWordOfSeat finds the seat's highest-scoring placement move.
func bestWordOfSeat(g *store.Game, seat int) (string, int) {
	word, score := "", 0
	for i, m := range g.Moves {
		if m.Coord == "" || isSentinel(m.Tiles) {
			continue
		}
		if i%2 == seat && m.Score > score {
			word, score = m.Tiles, m.Score
		}
	}
	return word, score
}

// robotTurn generates and applies the robot's move within the same
// request.
func (s *Service) robotTurn(ctx context.Context, b store.Backend, g *store.Game) error {
	if s.gen == nil {
		return fmt.Errorf("%w: no move generator configured", store.ErrIllegalState)
	}
	loc := s.reg.Get(g.Locale)
	board, err := Replay(g, len(g.Moves), loc)
	if err != nil {
		return err
	}
	ts := loc.Bag(g.Prefs.NewBag)
	bag, err := s.restoreBag(g, board, ts)
	if err != nil {
		return err
	}
	state := &State{
		Board:   boardLetters(board),
		Blanks:  boardBlanks(board),
		Rack:    currentRack(g),
		BagSize: bag.Size(),
		Locale:  g.Locale,
	}
	coord, tiles, err := s.gen.GenerateMove(ctx, state, g.RobotLevel)
	if err != nil {
		return fmt.Errorf("robot move: %w", err)
	}
	switch {
	case tiles == MovePass:
		return s.applyPass(ctx, b, g)
	case strings.HasPrefix(tiles, MoveExchangePrefix):
		return s.applyExchange(ctx, b, g, strings.TrimPrefix(tiles, MoveExchangePrefix))
	default:
		return s.applyPlacement(ctx, b, g, coord, tiles)
	}
}

// persistMove writes the game's mutated fields in one atomic update.
func (s *Service) persistMove(ctx context.Context, b store.Backend, g *store.Game) error {
	return b.Games().Update(ctx, g.ID, store.Updates{
		"rack0":        g.Rack0,
		"rack1":        g.Rack1,
		"score0":       g.Score0,
		"score1":       g.Score1,
		"to_move":      g.ToMove,
		"over":         g.Over,
		"ts_last_move": g.TsLastMove,
		"moves":        g.Moves,
		"tile_count":   g.TileCount,
	})
}

// appendMove adds a move record and maintains the to-move and timestamp
// invariants.
func (s *Service) appendMove(g *store.Game, m store.Move) {
	m.Timestamp = s.now()
	if n := len(g.Moves); n > 0 && m.Timestamp.Before(g.Moves[n-1].Timestamp) {
		m.Timestamp = g.Moves[n-1].Timestamp
	}
	g.Moves = append(g.Moves, m)
	g.ToMove = len(g.Moves) % 2
	g.TsLastMove = m.Timestamp
}

// restoreBag rebuilds the undrawn pool: the full set minus the tiles on
// the board and in both racks.
func (s *Service) restoreBag(g *store.Game, board *Board, ts *locale.TileSet) (*locale.Bag, error) {
	var used []rune
	for r := 0; r < locale.BoardSize; r++ {
		for c := 0; c < locale.BoardSize; c++ {
			if board.cells[r][c] == 0 {
				continue
			}
			if board.blanks[r][c] {
				used = append(used, locale.BlankTile)
			} else {
				used = append(used, board.cells[r][c])
			}
		}
	}
	used = append(used, []rune(g.Rack0)...)
	used = append(used, []rune(g.Rack1)...)
	s.mu.Lock()
	defer s.mu.Unlock()
	bag, err := locale.RestoreBag(ts, used, s.rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrIllegalState, err)
	}
	return bag, nil
}

// elapsed splits the wall-clock usage between the two seats. Move i was
// made by seat i%2; the player to move is charged up to now.
func (s *Service) elapsed(g *store.Game, now time.Time) (time.Duration, time.Duration) {
	var d [2]time.Duration
	prev := g.Timestamp
	n := 0
	for _, m := range g.Moves {
		if isSentinel(m.Tiles) && m.Coord == "" && (m.Tiles == MoveTime || m.Tiles == MoveOver) {
			break
		}
		d[n%2] += m.Timestamp.Sub(prev)
		prev = m.Timestamp
		n++
	}
	if !g.Over {
		d[n%2] += now.Sub(prev)
	}
	return d[0], d[1]
}

// overtimeLoser reports which seat, if any, has exceeded MaxOvertime.
func (s *Service) overtimeLoser(g *store.Game, now time.Time) (int, bool) {
	if g.Prefs.Duration == 0 {
		return 0, false
	}
	allot := time.Duration(g.Prefs.Duration) * time.Minute
	e0, e1 := s.elapsed(g, now)
	if e0-allot > MaxOvertime {
		return 0, true
	}
	if e1-allot > MaxOvertime {
		return 1, true
	}
	return 0, false
}

// overtimePenalty converts overtime into deducted points: 10 per started
// minute, capped at 100.
func overtimePenalty(overtime time.Duration) int {
	if overtime <= 0 {
		return 0
	}
	minutes := int(math.Ceil(overtime.Minutes()))
	pen := minutes * OvertimePenalty
	if pen > OvertimeCap {
		pen = OvertimeCap
	}
	return pen
}

// scorelessRun counts the trailing consecutive non-scoring moves.
func scorelessRun(g *store.Game) int {
	run := 0
	for i := len(g.Moves) - 1; i >= 0; i-- {
		if g.Moves[i].Score != 0 {
			break
		}
		run++
	}
	return run
}

func (s *Service) notifyOpponent(ctx context.Context, g *store.Game, actor *string, event string) {
	if s.notify == nil {
		return
	}
	for _, p := range []*string{g.Player0, g.Player1} {
		if p == nil || (actor != nil && *p == *actor) {
			continue
		}
		if err := s.notify.Notify(ctx, *p, event); err != nil {
			s.log.Warn("notification failed",
				zap.String("user", *p), zap.String("event", event), zap.Error(err))
		}
	}
}

func seatMatches(g *store.Game, seat int, userID *string) bool {
	p := seatPlayer(g, seat)
	if p == nil || userID == nil {
		return p == nil && userID == nil
	}
	return *p == *userID
}

func seatPlayer(g *store.Game, seat int) *string {
	if seat == 0 {
		return g.Player0
	}
	return g.Player1
}

func isRobotSeat(g *store.Game, seat int) bool {
	return seatPlayer(g, seat) == nil
}

func otherSeat(g *store.Game, seat int) *string {
	return seatPlayer(g, flipSeat(seat))
}

func flipSeat(seat int) int { return 1 - seat }

func seatScore(g *store.Game, seat int) int {
	if seat == 0 {
		return g.Score0
	}
	return g.Score1
}

func (s *Service) addScore(g *store.Game, seat, delta int) {
	if seat == 0 {
		g.Score0 += delta
	} else {
		g.Score1 += delta
	}
}

func seatRack(g *store.Game, seat int) string {
	if seat == 0 {
		return g.Rack0
	}
	return g.Rack1
}

func setRack(g *store.Game, seat int, rack string) {
	if seat == 0 {
		g.Rack0 = rack
	} else {
		g.Rack1 = rack
	}
}

// currentRack returns the rack of the player to move.
func currentRack(g *store.Game) string {
	return seatRack(g, g.ToMove)
}

func boardLetters(b *Board) [][]rune {
	out := make([][]rune, locale.BoardSize)
	for r := range out {
		out[r] = make([]rune, locale.BoardSize)
		copy(out[r], b.cells[r][:])
	}
	return out
}

func boardBlanks(b *Board) [][]bool {
	out := make([][]bool, locale.BoardSize)
	for r := range out {
		out[r] = make([]bool, locale.BoardSize)
		copy(out[r], b.blanks[r][:])
	}
	return out
}

// rackRemove takes the placement's new tiles out of the rack, consuming
// a '?' for each blank.
func rackRemove(rack string, tiles []tile) (string, error) {
	runes := []rune(nil)
	for _, t := range tiles {
		if t.blank {
			runes = append(runes, locale.BlankTile)
		} else {
			runes = append(runes, t.letter)
		}
	}
	return rackRemoveRunes(rack, runes)
}

func rackRemoveRunes(rack string, tiles []rune) (string, error) {
	remaining := []rune(rack)
	for _, t := range tiles {
		found := false
		for i, r := range remaining {
			if r == t {
				remaining = append(remaining[:i], remaining[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			return "", fmt.Errorf("%w: tile %q not in rack", store.ErrIllegalMove, t)
		}
	}
	return string(remaining), nil
}
