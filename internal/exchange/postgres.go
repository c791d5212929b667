package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the last exchange in a single-row table so the
// index page survives restarts.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmt := `CREATE TABLE IF NOT EXISTS last_exchange (
		slot SMALLINT PRIMARY KEY CHECK (slot = 1),
		id TEXT NOT NULL,
		transcript TEXT NOT NULL,
		reply TEXT NOT NULL,
		audio_url TEXT NOT NULL,
		recording_url TEXT NOT NULL,
		outcome TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, e Exchange) error {
	e = normalize(e)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO last_exchange (slot, id, transcript, reply, audio_url, recording_url, outcome, created_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (slot) DO UPDATE SET
		   id = EXCLUDED.id,
		   transcript = EXCLUDED.transcript,
		   reply = EXCLUDED.reply,
		   audio_url = EXCLUDED.audio_url,
		   recording_url = EXCLUDED.recording_url,
		   outcome = EXCLUDED.outcome,
		   created_at = EXCLUDED.created_at`,
		e.ID,
		e.Transcript,
		e.Reply,
		e.AudioURL,
		e.RecordingURL,
		e.Outcome,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save exchange: %w", err)
	}
	return nil
}

func (s *PostgresStore) Last(ctx context.Context) (Exchange, error) {
	var e Exchange
	err := s.pool.QueryRow(ctx,
		`SELECT id, transcript, reply, audio_url, recording_url, outcome, created_at
		 FROM last_exchange WHERE slot = 1`,
	).Scan(&e.ID, &e.Transcript, &e.Reply, &e.AudioURL, &e.RecordingURL, &e.Outcome, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Exchange{}, ErrNotFound
	}
	if err != nil {
		return Exchange{}, fmt.Errorf("load exchange: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) Mode() string { return "postgres" }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
