package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/skrafl/server/internal/store"
)

type statsRepo struct {
	b *Backend
}

const statsCols = `user_id, robot_level, timestamp, games, human_games, manual_games,
	wins, losses, human_wins, human_losses, manual_wins, manual_losses,
	score, score_against, human_score, human_score_against,
	manual_score, manual_score_against, elo, human_elo, manual_elo`

func scanStats(row pgx.Row) (*store.UserStats, error) {
	s := &store.UserStats{}
	err := row.Scan(
		&s.UserID, &s.RobotLevel, &s.Timestamp, &s.Games, &s.HumanGames,
		&s.ManualGames, &s.Wins, &s.Losses, &s.HumanWins, &s.HumanLosses,
		&s.ManualWins, &s.ManualLosses, &s.Score, &s.ScoreAgainst,
		&s.HumanScore, &s.HumanScoreAgainst, &s.ManualScore,
		&s.ManualScoreAgainst, &s.Elo, &s.HumanElo, &s.ManualElo,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("scan stats", err)
	}
	s.Timestamp = s.Timestamp.UTC()
	return s, nil
}

func (r *statsRepo) LatestBefore(ctx context.Context, userID string, ts time.Time) (*store.UserStats, error) {
	return scanStats(r.b.tx.QueryRow(ctx,
		`SELECT `+statsCols+` FROM user_stats
		 WHERE user_id = $1 AND timestamp <= $2
		 ORDER BY timestamp DESC LIMIT 1`, userID, ts))
}

func (r *statsRepo) DeleteAt(ctx context.Context, userIDs []string, ts time.Time) error {
	_, err := r.b.tx.Exec(ctx,
		`DELETE FROM user_stats WHERE timestamp = $1 AND user_id = ANY($2)`,
		ts, userIDs)
	if err != nil {
		return store.BackendErr("delete stats at boundary", err)
	}
	return nil
}

func (r *statsRepo) PutMulti(ctx context.Context, rows []*store.UserStats) error {
	for _, s := range rows {
		_, err := r.b.tx.Exec(ctx,
			`INSERT INTO user_stats (`+statsCols+`)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
			s.UserID, s.RobotLevel, s.Timestamp, s.Games, s.HumanGames,
			s.ManualGames, s.Wins, s.Losses, s.HumanWins, s.HumanLosses,
			s.ManualWins, s.ManualLosses, s.Score, s.ScoreAgainst,
			s.HumanScore, s.HumanScoreAgainst, s.ManualScore,
			s.ManualScoreAgainst, s.Elo, s.HumanElo, s.ManualElo,
		)
		if err != nil {
			return store.BackendErr("insert stats", err)
		}
	}
	return nil
}

func (r *statsRepo) LatestPerUserBefore(ctx context.Context, ts time.Time) ([]*store.UserStats, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT DISTINCT ON (user_id) `+statsCols+`
		 FROM user_stats
		 WHERE timestamp <= $1
		 ORDER BY user_id, timestamp DESC`, ts)
	if err != nil {
		return nil, store.BackendErr("query latest stats", err)
	}
	defer rows.Close()

	var result []*store.UserStats
	for rows.Next() {
		s, err := scanStats(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *statsRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.b.tx.Exec(ctx,
		`DELETE FROM user_stats WHERE user_id = $1`, userID)
	if err != nil {
		return store.BackendErr("delete stats", err)
	}
	return nil
}
