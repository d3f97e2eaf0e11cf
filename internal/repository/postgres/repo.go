package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repo persists players, games and moves. All writes are best-effort
// from the caller's point of view; the bot identity is never given a
// players row or leaderboard tallies.
type Repo struct {
	DB      *sql.DB
	botName string
}

func NewRepo(db *sql.DB, botName string) *Repo {
	return &Repo{DB: db, botName: botName}
}

// LeaderboardEntry is one row of the standings.
type LeaderboardEntry struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
}

func (r *Repo) UpsertPlayer(ctx context.Context, username string) error {
	if username == r.botName {
		return nil
	}
	query := `
	INSERT INTO players (username)
	VALUES ($1)
	ON CONFLICT (username) DO NOTHING;
	`
	if _, err := r.DB.ExecContext(ctx, query, username); err != nil {
		return fmt.Errorf("failed to upsert player: %v", err)
	}
	return nil
}

func (r *Repo) CreateGame(ctx context.Context, gameID, playerX, playerO string, vsBot bool, startedAt time.Time) error {
	query := `
	INSERT INTO games (id, player_x, player_o, vs_bot, started_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO NOTHING;
	`
	if _, err := r.DB.ExecContext(ctx, query, gameID, playerX, playerO, vsBot, startedAt); err != nil {
		return fmt.Errorf("failed to create game record: %v", err)
	}
	return nil
}

func (r *Repo) RecordMove(ctx context.Context, gameID string, ply int, player string, col, row int, playedAt time.Time) error {
	query := `
	INSERT INTO moves (game_id, ply, player, col, row, played_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (game_id, ply) DO NOTHING;
	`
	if _, err := r.DB.ExecContext(ctx, query, gameID, ply, player, col, row, playedAt); err != nil {
		return fmt.Errorf("failed to record move: %v", err)
	}
	return nil
}

// RecordResult finalizes the game row and updates both players' tallies
// in one transaction. An empty winner means a draw.
func (r *Repo) RecordResult(ctx context.Context, gameID, playerX, playerO, winner, reason string, startedAt, finishedAt time.Time, totalMoves int) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	var winnerCol sql.NullString
	if winner != "" {
		winnerCol = sql.NullString{String: winner, Valid: true}
	}

	query := `
	INSERT INTO games (id, player_x, player_o, winner, reason, vs_bot, total_moves, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		winner      = EXCLUDED.winner,
		reason      = EXCLUDED.reason,
		total_moves = EXCLUDED.total_moves,
		finished_at = EXCLUDED.finished_at;
	`
	vsBot := playerX == r.botName || playerO == r.botName
	if _, err := tx.ExecContext(ctx, query, gameID, playerX, playerO, winnerCol, reason, vsBot, totalMoves, startedAt, finishedAt); err != nil {
		return fmt.Errorf("failed to upsert game result: %v", err)
	}

	for _, player := range []string{playerX, playerO} {
		if player == r.botName {
			continue
		}
		if err := r.updateTalliesTx(ctx, tx, player, winner); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

func (r *Repo) updateTalliesTx(ctx context.Context, tx *sql.Tx, player, winner string) error {
	query := `
	INSERT INTO players (username, wins, losses, draws)
	VALUES ($1,
		CASE WHEN $2 = $1 THEN 1 ELSE 0 END,
		CASE WHEN $2 <> '' AND $2 <> $1 THEN 1 ELSE 0 END,
		CASE WHEN $2 = '' THEN 1 ELSE 0 END)
	ON CONFLICT (username) DO UPDATE SET
		wins   = players.wins   + CASE WHEN $2 = $1 THEN 1 ELSE 0 END,
		losses = players.losses + CASE WHEN $2 <> '' AND $2 <> $1 THEN 1 ELSE 0 END,
		draws  = players.draws  + CASE WHEN $2 = '' THEN 1 ELSE 0 END;
	`
	if _, err := tx.ExecContext(ctx, query, player, winner); err != nil {
		return fmt.Errorf("failed to update tallies for %s: %v", player, err)
	}
	return nil
}

// Leaderboard returns the standings ordered by wins, then draws, with
// ties broken by name.
func (r *Repo) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
	SELECT username, wins, losses, draws
	FROM players
	ORDER BY wins DESC, draws DESC, username ASC
	LIMIT $1;
	`
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %v", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Wins, &e.Losses, &e.Draws); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %v", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
