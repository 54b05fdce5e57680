// Package postgres stores workshop sessions as JSONB snapshots in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS promptlab_sessions (
    id TEXT PRIMARY KEY,
    prompt TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    snapshot JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_promptlab_sessions_updated_at ON promptlab_sessions (updated_at DESC);
`

type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

func (c *Config) defaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = 5 * time.Minute
	}
}

type Store struct {
	pool *pgxpool.Pool
}

var _ session.Repository = (*Store)(nil)

// New connects, pings and ensures the schema exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	updated := sess.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO promptlab_sessions (id, prompt, created_at, updated_at, snapshot)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			prompt = EXCLUDED.prompt,
			updated_at = EXCLUDED.updated_at,
			snapshot = EXCLUDED.snapshot
	`, sess.ID, sess.PromptData.User, sess.CreatedAt, updated, data)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT snapshot FROM promptlab_sessions WHERE id = $1`, id)
	return scanSnapshot(row)
}

func (s *Store) Latest(ctx context.Context) (*session.Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT snapshot FROM promptlab_sessions ORDER BY updated_at DESC LIMIT 1`)
	return scanSnapshot(row)
}

func (s *Store) List(ctx context.Context) ([]session.Summary, error) {
	rows, err := s.pool.Query(ctx, `SELECT snapshot FROM promptlab_sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var summaries []session.Summary
	for rows.Next() {
		sess, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, session.SummaryOf(sess))
	}
	return summaries, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM promptlab_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanSnapshot(row pgx.Row) (*session.Session, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &sess, nil
}
