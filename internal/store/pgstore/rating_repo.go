package pgstore

import (
	"context"

	"github.com/skrafl/server/internal/store"
)

type ratingRepo struct {
	b *Backend
}

const ratingCols = `kind, rank, user_id, robot_level, timestamp,
	games, elo, score, score_against, wins, losses,
	games_yesterday, elo_yesterday, score_yesterday, score_against_yesterday,
	wins_yesterday, losses_yesterday,
	games_week_ago, elo_week_ago, score_week_ago, score_against_week_ago,
	wins_week_ago, losses_week_ago,
	games_month_ago, elo_month_ago, score_month_ago, score_against_month_ago,
	wins_month_ago, losses_month_ago`

// ReplaceAll deletes and recreates the whole ranking table so stale rows
// from earlier rebuilds cannot survive.
func (r *ratingRepo) ReplaceAll(ctx context.Context, rows []*store.RatingRow) error {
	if _, err := r.b.tx.Exec(ctx, `DELETE FROM rating_rows`); err != nil {
		return store.BackendErr("clear rating rows", err)
	}
	for _, row := range rows {
		_, err := r.b.tx.Exec(ctx,
			`INSERT INTO rating_rows (`+ratingCols+`) VALUES (
				$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,
				$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29
			)`,
			row.Kind, row.Rank, row.UserID, row.RobotLevel, row.Timestamp,
			row.Games, row.Elo, row.Score, row.ScoreAgainst, row.Wins, row.Losses,
			row.Yesterday.Games, row.Yesterday.Elo, row.Yesterday.Score,
			row.Yesterday.ScoreAgainst, row.Yesterday.Wins, row.Yesterday.Losses,
			row.WeekAgo.Games, row.WeekAgo.Elo, row.WeekAgo.Score,
			row.WeekAgo.ScoreAgainst, row.WeekAgo.Wins, row.WeekAgo.Losses,
			row.MonthAgo.Games, row.MonthAgo.Elo, row.MonthAgo.Score,
			row.MonthAgo.ScoreAgainst, row.MonthAgo.Wins, row.MonthAgo.Losses,
		)
		if err != nil {
			return store.BackendErr("insert rating row", err)
		}
	}
	return nil
}

func (r *ratingRepo) List(ctx context.Context, kind store.RatingKind) ([]*store.RatingRow, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT `+ratingCols+` FROM rating_rows WHERE kind = $1 ORDER BY rank`,
		kind)
	if err != nil {
		return nil, store.BackendErr("query rating rows", err)
	}
	defer rows.Close()

	var result []*store.RatingRow
	for rows.Next() {
		row := &store.RatingRow{}
		if err := rows.Scan(
			&row.Kind, &row.Rank, &row.UserID, &row.RobotLevel, &row.Timestamp,
			&row.Games, &row.Elo, &row.Score, &row.ScoreAgainst, &row.Wins, &row.Losses,
			&row.Yesterday.Games, &row.Yesterday.Elo, &row.Yesterday.Score,
			&row.Yesterday.ScoreAgainst, &row.Yesterday.Wins, &row.Yesterday.Losses,
			&row.WeekAgo.Games, &row.WeekAgo.Elo, &row.WeekAgo.Score,
			&row.WeekAgo.ScoreAgainst, &row.WeekAgo.Wins, &row.WeekAgo.Losses,
			&row.MonthAgo.Games, &row.MonthAgo.Elo, &row.MonthAgo.Score,
			&row.MonthAgo.ScoreAgainst, &row.MonthAgo.Wins, &row.MonthAgo.Losses,
		); err != nil {
			return nil, store.BackendErr("scan rating row", err)
		}
		row.Timestamp = row.Timestamp.UTC()
		result = append(result, row)
	}
	return result, rows.Err()
}
