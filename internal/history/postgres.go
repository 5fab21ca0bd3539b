package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// timeNow is swappable in tests.
var timeNow = time.Now

// Compile-time interface check.
var _ Recorder = (*PostgresRecorder)(nil)

const ddlSpokenClips = `
CREATE TABLE IF NOT EXISTS spoken_clips (
    id          BIGSERIAL    PRIMARY KEY,
    guild_id    TEXT         NOT NULL,
    channel_id  TEXT         NOT NULL DEFAULT '',
    user_id     TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    voice       TEXT         NOT NULL DEFAULT '',
    provider    TEXT         NOT NULL DEFAULT '',
    duration_ns BIGINT       NOT NULL DEFAULT 0,
    spoken_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_spoken_clips_guild_spoken
    ON spoken_clips (guild_id, spoken_at);

CREATE INDEX IF NOT EXISTS idx_spoken_clips_user
    ON spoken_clips (user_id);
`

// PostgresRecorder is a pgx-backed Recorder. All operations share one
// connection pool and are safe for concurrent use.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder connects to the database at dsn and ensures the
// spoken_clips table exists.
func NewPostgresRecorder(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlSpokenClips); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &PostgresRecorder{pool: pool}, nil
}

// Record implements Recorder.
func (r *PostgresRecorder) Record(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO spoken_clips (guild_id, channel_id, user_id, text, voice, provider, duration_ns, spoken_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	spokenAt := e.SpokenAt
	if spokenAt.IsZero() {
		spokenAt = timeNow()
	}

	if _, err := r.pool.Exec(ctx, q,
		e.GuildID, e.ChannelID, e.UserID, e.Text, e.Voice, e.Provider, e.DurationNS, spokenAt,
	); err != nil {
		return fmt.Errorf("history: insert clip: %w", err)
	}
	return nil
}

// Ping verifies database connectivity. Used by the readiness probe.
func (r *PostgresRecorder) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close implements Recorder.
func (r *PostgresRecorder) Close() {
	r.pool.Close()
}
