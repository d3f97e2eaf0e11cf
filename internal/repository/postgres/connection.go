package postgres

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS players (
	username    TEXT PRIMARY KEY,
	wins        INT NOT NULL DEFAULT 0,
	losses      INT NOT NULL DEFAULT 0,
	draws       INT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS games (
	id          TEXT PRIMARY KEY,
	player_x    TEXT NOT NULL,
	player_o    TEXT NOT NULL,
	winner      TEXT,
	reason      TEXT NOT NULL DEFAULT 'in_progress',
	vs_bot      BOOLEAN NOT NULL DEFAULT FALSE,
	total_moves INT NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS moves (
	game_id   TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	ply       INT NOT NULL,
	player    TEXT NOT NULL,
	col       INT NOT NULL,
	row       INT NOT NULL,
	played_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (game_id, ply)
);

CREATE INDEX IF NOT EXISTS idx_games_players ON games (player_x, player_o);
`

// Open connects, applies the schema and configures the pool. The server
// treats persistence as best-effort, so callers may run without a
// database when this fails.
func Open(connStr string, maxOpenConns, maxIdleConns, connMaxLifetimeMin int) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %v", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(time.Duration(connMaxLifetimeMin) * time.Minute)

	log.Println("[DB] connected successfully")
	return db, nil
}
