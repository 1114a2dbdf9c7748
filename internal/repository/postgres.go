package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	password_hash  TEXT NOT NULL DEFAULT '',
	is_active      BOOLEAN NOT NULL DEFAULT TRUE,
	is_verified    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	last_login     TIMESTAMPTZ,
	preferences    JSONB NOT NULL DEFAULT '{}'::jsonb,
	oauth_provider TEXT NOT NULL DEFAULT '',
	oauth_id       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS triage_jobs (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	owner_id      TEXT NOT NULL DEFAULT '',
	payload       JSONB NOT NULL,
	status        TEXT NOT NULL,
	result        JSONB,
	error_message TEXT NOT NULL DEFAULT '',
	attempts      INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_triage_jobs_owner_created ON triage_jobs (owner_id, created_at DESC);
`

// OpenPostgres connects a pool and creates the tables used by the
// repositories when they are missing.
func OpenPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply pg schema: %w", err)
	}
	return pool, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
