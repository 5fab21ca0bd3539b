package follow

import (
	"context"
	"log/slog"
)

// VoiceControl is the slice of the voice connection manager the follower
// drives. Implemented by voice.Manager; faked in tests.
type VoiceControl interface {
	// Connect joins channelID in guildID, tearing down any existing
	// connection to a different channel first.
	Connect(ctx context.Context, guildID, channelID string) error

	// Disconnect leaves voice in guildID. A no-op when not connected.
	Disconnect(guildID string) error

	// CurrentChannel returns the channel currently occupied in guildID,
	// or "" when disconnected. May be momentarily stale during a
	// transition; the next presence event reconverges.
	CurrentChannel(guildID string) string
}

// Follower ties the presence tracker and target selector to the voice
// connection manager. It is the single writer of connection transitions in
// response to presence changes.
//
// Follower is safe for concurrent use; transition races are resolved by the
// manager's per-guild lock and by convergence on later events.
type Follower struct {
	tracker *Tracker
	voice   VoiceControl
}

// NewFollower creates a Follower driving the given voice control.
func NewFollower(tracker *Tracker, voice VoiceControl) *Follower {
	return &Follower{tracker: tracker, voice: voice}
}

// Tracker returns the underlying presence tracker.
func (f *Follower) Tracker() *Tracker { return f.tracker }

// SeedGuild loads a guild's connect-time presence snapshot and immediately
// reconciles the voice connection against it.
func (f *Follower) SeedGuild(ctx context.Context, guildID string, snapshot []Presence) {
	f.tracker.Seed(guildID, snapshot)
	f.Retarget(ctx, guildID)
}

// HandleVoiceState applies one monitored-user voice-state event and
// reconciles the guild's voice connection. Callers must filter to monitored
// users before invoking it.
func (f *Follower) HandleVoiceState(ctx context.Context, p Presence) {
	f.tracker.Update(p)
	f.Retarget(ctx, p.GuildID)
}

// Retarget recomputes the target channel for a guild and moves the voice
// connection accordingly. Connect failures are logged and not retried here;
// the next presence event triggers a fresh attempt.
func (f *Follower) Retarget(ctx context.Context, guildID string) {
	current := f.voice.CurrentChannel(guildID)
	target := SelectTarget(f.tracker.PresentIn(guildID), current)

	switch {
	case target == "":
		if current != "" {
			if err := f.voice.Disconnect(guildID); err != nil {
				slog.Warn("follow: disconnect failed", "guild_id", guildID, "err", err)
			}
		}
	case target != current:
		if err := f.voice.Connect(ctx, guildID, target); err != nil {
			slog.Warn("follow: connect failed",
				"guild_id", guildID, "channel_id", target, "err", err)
		}
	}
}

// TargetChannel returns the channel the bot should currently occupy in the
// guild without performing any transition. Used by the nickname presenter.
func (f *Follower) TargetChannel(guildID string) string {
	return SelectTarget(f.tracker.PresentIn(guildID), f.voice.CurrentChannel(guildID))
}
