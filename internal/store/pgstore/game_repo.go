package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/skrafl/server/internal/store"
)

type gameRepo struct {
	b *Backend
}

const gameCols = `id, player0, player1, locale, rack0, rack1, irack0, irack1,
	score0, score1, to_move, robot_level, over, timestamp, ts_last_move,
	moves, prefs, tile_count,
	elo0, elo1, elo0_adj, elo1_adj,
	human_elo0, human_elo1, human_elo0_adj, human_elo1_adj,
	manual_elo0, manual_elo1, manual_elo0_adj, manual_elo1_adj`

func scanGame(row pgx.Row) (*store.Game, error) {
	g := &store.Game{}
	var movesRaw, prefsRaw []byte
	err := row.Scan(
		&g.ID, &g.Player0, &g.Player1, &g.Locale, &g.Rack0, &g.Rack1,
		&g.IRack0, &g.IRack1, &g.Score0, &g.Score1, &g.ToMove, &g.RobotLevel,
		&g.Over, &g.Timestamp, &g.TsLastMove, &movesRaw, &prefsRaw, &g.TileCount,
		&g.Elo0, &g.Elo1, &g.Elo0Adj, &g.Elo1Adj,
		&g.HumanElo0, &g.HumanElo1, &g.HumanElo0Adj, &g.HumanElo1Adj,
		&g.ManualElo0, &g.ManualElo1, &g.ManualElo0Adj, &g.ManualElo1Adj,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.BackendErr("scan game", err)
	}
	if err := json.Unmarshal(movesRaw, &g.Moves); err != nil {
		return nil, store.BackendErr("decode moves", err)
	}
	if err := json.Unmarshal(prefsRaw, &g.Prefs); err != nil {
		return nil, store.BackendErr("decode game prefs", err)
	}
	// Timestamps round-trip as UTC-aware values.
	g.Timestamp = g.Timestamp.UTC()
	g.TsLastMove = g.TsLastMove.UTC()
	for i := range g.Moves {
		g.Moves[i].Timestamp = g.Moves[i].Timestamp.UTC()
	}
	return g, nil
}

func (r *gameRepo) Get(ctx context.Context, id string) (*store.Game, error) {
	return scanGame(r.b.tx.QueryRow(ctx,
		`SELECT `+gameCols+` FROM games WHERE id = $1`, id))
}

func (r *gameRepo) Create(ctx context.Context, g *store.Game) error {
	movesRaw, err := json.Marshal(g.Moves)
	if err != nil {
		return store.BackendErr("encode moves", err)
	}
	prefsRaw, err := json.Marshal(g.Prefs)
	if err != nil {
		return store.BackendErr("encode game prefs", err)
	}
	_, err = r.b.tx.Exec(ctx,
		`INSERT INTO games (
			id, player0, player1, locale, rack0, rack1, irack0, irack1,
			score0, score1, to_move, robot_level, over, timestamp,
			ts_last_move, moves, prefs, tile_count
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
		)`,
		g.ID, g.Player0, g.Player1, g.Locale, g.Rack0, g.Rack1,
		g.IRack0, g.IRack1, g.Score0, g.Score1, g.ToMove, g.RobotLevel,
		g.Over, g.Timestamp, g.TsLastMove, movesRaw, prefsRaw, g.TileCount,
	)
	if err != nil {
		return store.BackendErr("insert game", err)
	}
	return nil
}

func (r *gameRepo) Update(ctx context.Context, id string, up store.Updates) error {
	return r.b.applyUpdates(ctx, "games", "id", id, up)
}

func (r *gameRepo) LiveForUser(ctx context.Context, userID string) ([]*store.Game, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT `+gameCols+` FROM games
		 WHERE NOT over AND (player0 = $1 OR player1 = $1)
		 ORDER BY ts_last_move DESC`, userID)
	if err != nil {
		return nil, store.BackendErr("query live games", err)
	}
	defer rows.Close()
	return collectGames(rows)
}

func (r *gameRepo) FinishedForUser(ctx context.Context, userID string, versus *string, limit int) ([]*store.Game, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT `+gameCols+` FROM games
		 WHERE over AND (player0 = $1 OR player1 = $1)
		   AND ($2::text IS NULL OR player0 = $2 OR player1 = $2)
		 ORDER BY ts_last_move DESC
		 LIMIT $3`, userID, versus, limit)
	if err != nil {
		return nil, store.BackendErr("query finished games", err)
	}
	defer rows.Close()
	return collectGames(rows)
}

func (r *gameRepo) FinishedBetween(ctx context.Context, from, to time.Time) ([]*store.Game, error) {
	rows, err := r.b.tx.Query(ctx,
		`SELECT `+gameCols+` FROM games
		 WHERE over AND ts_last_move > $1 AND ts_last_move <= $2
		 ORDER BY ts_last_move ASC`, from, to)
	if err != nil {
		return nil, store.BackendErr("query finished games in window", err)
	}
	defer rows.Close()
	return collectGames(rows)
}

func (r *gameRepo) NullPlayer(ctx context.Context, userID string) error {
	if _, err := r.b.tx.Exec(ctx,
		`UPDATE games SET player0 = NULL WHERE player0 = $1`, userID); err != nil {
		return store.BackendErr("null player0", err)
	}
	if _, err := r.b.tx.Exec(ctx,
		`UPDATE games SET player1 = NULL WHERE player1 = $1`, userID); err != nil {
		return store.BackendErr("null player1", err)
	}
	return nil
}

func collectGames(rows pgx.Rows) ([]*store.Game, error) {
	var result []*store.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}
