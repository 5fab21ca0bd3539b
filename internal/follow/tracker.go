// Package follow implements the voice-presence tracking and channel
// targeting logic that lets the bot shadow monitored users: an
// eventually-consistent per-guild presence map, a deterministic target
// channel selector, and the glue that drives voice connection transitions
// from gateway events.
package follow

import "sync"

// Presence is the tracked voice state of one monitored user in one guild.
type Presence struct {
	GuildID   string
	UserID    string
	ChannelID string
	SelfDeaf  bool
	Deaf      bool
}

// Reachable reports whether the user can hear audio played into their
// channel. Deafened users are treated as absent for targeting purposes.
func (p Presence) Reachable() bool {
	return !p.SelfDeaf && !p.Deaf
}

// key identifies a tracked entry.
type key struct {
	guildID string
	userID  string
}

// Tracker maintains the authoritative view of which monitored users are in
// which voice channel. It is seeded once per guild from the gateway's
// connect-time snapshot and updated by every voice-state event thereafter.
//
// Updates always win over snapshots: the gateway's own cache can be stale
// relative to raw events, so an entry (or deletion) produced by Update is
// never overwritten by a later Seed for the same user.
//
// Tracker is safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	entries map[key]Presence

	// touched records keys written (or deleted) by Update so that a
	// snapshot racing behind live events cannot resurrect stale state.
	touched map[key]struct{}
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[key]Presence),
		touched: make(map[key]struct{}),
	}
}

// Seed loads the connect-time snapshot for one guild. Only users currently
// in a channel are inserted, and users already touched by a live update are
// skipped — the snapshot is best-effort catch-up, not authority over newer
// data.
//
// Applying a seed consumes the guild's touched set: the guard only defends
// against events that raced ahead of this snapshot, and keeping it would
// block re-seeding after a gateway resume re-sends GuildCreate.
func (t *Tracker) Seed(guildID string, snapshot []Presence) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range snapshot {
		if p.ChannelID == "" {
			continue
		}
		k := key{guildID: guildID, userID: p.UserID}
		if _, live := t.touched[k]; live {
			continue
		}
		p.GuildID = guildID
		t.entries[k] = p
	}
	for k := range t.touched {
		if k.guildID == guildID {
			delete(t.touched, k)
		}
	}
}

// Update applies one voice-state event. The new state fully replaces any
// existing entry for the (guild, user) key; an empty channel deletes the
// entry, since "in no channel" and "absent" are the same thing.
func (t *Tracker) Update(p Presence) {
	k := key{guildID: p.GuildID, userID: p.UserID}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touched[k] = struct{}{}
	if p.ChannelID == "" {
		delete(t.entries, k)
		return
	}
	t.entries[k] = p
}

// PresentIn returns a snapshot of all tracked users in the given guild.
// The returned slice is owned by the caller.
func (t *Tracker) PresentIn(guildID string) []Presence {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Presence
	for k, p := range t.entries {
		if k.guildID == guildID {
			out = append(out, p)
		}
	}
	return out
}
