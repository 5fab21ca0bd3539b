// Package history records played clips to PostgreSQL as write-only
// telemetry. Nothing is ever read back into the bot's behaviour; the table
// exists for operators who want to audit what was spoken where.
package history

import (
	"context"
	"time"
)

// Entry is one spoken clip.
type Entry struct {
	GuildID    string
	ChannelID  string
	UserID     string
	Text       string
	Voice      string
	Provider   string
	DurationNS int64
	SpokenAt   time.Time
}

// Recorder logs spoken clips. Implementations must tolerate being called
// concurrently from every guild's drain loop.
type Recorder interface {
	// Record logs one entry. Failures are the caller's to log; playback
	// never depends on the outcome.
	Record(ctx context.Context, e Entry) error

	// Close releases underlying resources.
	Close()
}

// Compile-time interface check.
var _ Recorder = NopRecorder{}

// NopRecorder discards every entry. Used when history.postgres_dsn is empty.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) error { return nil }

func (NopRecorder) Close() {}
