package stats

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/skrafl/server/internal/store"
)

// TopRanks is the size of each precomputed ranking table.
const TopRanks = 100

// RebuildRatings recomputes the three top-100 tables from the Stats
// snapshots nearest to now, yesterday, a week ago and a month ago, and
// swaps the whole RatingRow table in one replace so no stale ranks
// survive a shrinking leaderboard.
func (s *Service) RebuildRatings(ctx context.Context, b store.Backend) error {
	now := s.now()
	moments := []time.Time{
		now,
		now.AddDate(0, 0, -1),
		now.AddDate(0, 0, -7),
		now.AddDate(0, 0, -30),
	}
	snaps := make([]map[string]*store.UserStats, len(moments))
	for i, m := range moments {
		rows, err := b.Stats().LatestPerUserBefore(ctx, m)
		if err != nil {
			return s.fail(ctx, b, ProcRatings, now, now, time.Time{}, err)
		}
		byUser := make(map[string]*store.UserStats, len(rows))
		for _, r := range rows {
			byUser[r.UserID] = r
		}
		snaps[i] = byUser
	}

	var out []*store.RatingRow
	for _, kind := range []store.RatingKind{store.RatingAll, store.RatingHuman, store.RatingManual} {
		out = append(out, buildTable(kind, snaps, now)...)
	}
	if err := b.Ratings().ReplaceAll(ctx, out); err != nil {
		return s.fail(ctx, b, ProcRatings, now, now, time.Time{}, err)
	}
	s.logCompletion(ctx, b, &store.Completion{
		ProcType: ProcRatings, TsFrom: now, TsTo: now, Success: true,
	})
	s.log.Info("rating tables rebuilt", zap.Int("rows", len(out)))
	return nil
}

// buildTable produces exactly TopRanks rows for one kind, padding with
// sentinel rows when fewer users qualify.
func buildTable(kind store.RatingKind, snaps []map[string]*store.UserStats, now time.Time) []*store.RatingRow {
	current := snaps[0]
	users := make([]*store.UserStats, 0, len(current))
	for _, st := range current {
		if cell(st, kind).Games > 0 {
			users = append(users, st)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		ei, ej := cell(users[i], kind).Elo, cell(users[j], kind).Elo
		if ei != ej {
			return ei > ej
		}
		return users[i].UserID < users[j].UserID
	})
	if len(users) > TopRanks {
		users = users[:TopRanks]
	}

	rows := make([]*store.RatingRow, 0, TopRanks)
	for i, st := range users {
		id := st.UserID
		row := &store.RatingRow{
			Kind:        kind,
			Rank:        i + 1,
			UserID:      &id,
			Timestamp:   now,
			RatingStats: cell(st, kind),
		}
		row.Yesterday = histCell(snaps[1], id, kind)
		row.WeekAgo = histCell(snaps[2], id, kind)
		row.MonthAgo = histCell(snaps[3], id, kind)
		rows = append(rows, row)
	}
	for rank := len(rows) + 1; rank <= TopRanks; rank++ {
		rows = append(rows, sentinelRow(kind, rank, now))
	}
	return rows
}

// cell projects one kind's triad out of a snapshot.
func cell(st *store.UserStats, kind store.RatingKind) store.RatingStats {
	switch kind {
	case store.RatingHuman:
		return store.RatingStats{
			Games: st.HumanGames, Elo: st.HumanElo,
			Score: st.HumanScore, ScoreAgainst: st.HumanScoreAgainst,
			Wins: st.HumanWins, Losses: st.HumanLosses,
		}
	case store.RatingManual:
		return store.RatingStats{
			Games: st.ManualGames, Elo: st.ManualElo,
			Score: st.ManualScore, ScoreAgainst: st.ManualScoreAgainst,
			Wins: st.ManualWins, Losses: st.ManualLosses,
		}
	default:
		return store.RatingStats{
			Games: st.Games, Elo: st.Elo,
			Score: st.Score, ScoreAgainst: st.ScoreAgainst,
			Wins: st.Wins, Losses: st.Losses,
		}
	}
}

func histCell(byUser map[string]*store.UserStats, userID string, kind store.RatingKind) store.RatingStats {
	if st, ok := byUser[userID]; ok {
		return cell(st, kind)
	}
	return store.RatingStats{}
}

// sentinelRow fills an unused rank: no user, robot level -1, games -1.
func sentinelRow(kind store.RatingKind, rank int, now time.Time) *store.RatingRow {
	return &store.RatingRow{
		Kind:        kind,
		Rank:        rank,
		RobotLevel:  -1,
		Timestamp:   now,
		RatingStats: store.RatingStats{Games: -1},
	}
}
