package voice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/quillback/towncrier/internal/observe"
)

// Manager owns the lifecycle of the single outbound voice connection per
// guild. All transitions for a guild are serialized under that guild's
// exclusive lock so two presence events cannot race a double-join; reads
// of the current channel bypass the transition lock and may be momentarily
// stale, which later events resolve.
//
// Manager is safe for concurrent use, and guilds transition independently.
type Manager struct {
	transport Transport
	metrics   *observe.Metrics

	mu     sync.Mutex
	guilds map[string]*guildLink
}

// guildLink is the per-guild connection slot.
type guildLink struct {
	// transMu serializes connect/disconnect transitions.
	transMu sync.Mutex

	// stateMu guards the fields below for lock-free-ish reads.
	stateMu   sync.RWMutex
	link      Link
	channelID string
}

// NewManager creates a Manager using the given transport.
func NewManager(transport Transport, metrics *observe.Metrics) *Manager {
	return &Manager{
		transport: transport,
		metrics:   metrics,
		guilds:    make(map[string]*guildLink),
	}
}

func (m *Manager) slot(guildID string) *guildLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guilds[guildID]
	if !ok {
		g = &guildLink{}
		m.guilds[guildID] = g
	}
	return g
}

// Connect joins channelID in guildID. An existing connection to a different
// channel is torn down first; teardown errors are logged and ignored so a
// dead handle can never block the move. On join failure the guild is left
// disconnected and the error is returned — the next presence event retries
// naturally.
func (m *Manager) Connect(ctx context.Context, guildID, channelID string) error {
	g := m.slot(guildID)
	g.transMu.Lock()
	defer g.transMu.Unlock()

	g.stateMu.RLock()
	old, oldChannel := g.link, g.channelID
	g.stateMu.RUnlock()

	if old != nil && oldChannel == channelID {
		return nil
	}

	if old != nil {
		if err := old.Close(); err != nil {
			slog.Warn("voice: teardown before switch failed",
				"guild_id", guildID, "channel_id", oldChannel, "err", err)
		}
		g.setState(nil, "")
		m.metrics.AddActiveLinks(ctx, -1)
	}

	link, err := m.transport.Join(ctx, guildID, channelID)
	if err != nil {
		m.metrics.CountConnect(ctx, false)
		return fmt.Errorf("voice: join guild %s channel %s: %w", guildID, channelID, err)
	}
	if err := link.Speaking(true); err != nil {
		slog.Warn("voice: initial speaking flag failed", "guild_id", guildID, "err", err)
	}

	g.setState(link, channelID)
	m.metrics.CountConnect(ctx, true)
	m.metrics.AddActiveLinks(ctx, 1)
	slog.Info("voice: connected", "guild_id", guildID, "channel_id", channelID)
	return nil
}

// Disconnect leaves voice in guildID. The handle close is best-effort and an
// explicit leave update is always sent afterwards; the guild ends up
// disconnected regardless of either outcome.
func (m *Manager) Disconnect(guildID string) error {
	g := m.slot(guildID)
	g.transMu.Lock()
	defer g.transMu.Unlock()

	g.stateMu.RLock()
	old, oldChannel := g.link, g.channelID
	g.stateMu.RUnlock()

	if old == nil {
		return nil
	}

	if err := old.Close(); err != nil {
		slog.Warn("voice: close failed", "guild_id", guildID, "err", err)
	}
	if err := m.transport.Leave(guildID); err != nil {
		slog.Warn("voice: leave update failed", "guild_id", guildID, "err", err)
	}

	g.setState(nil, "")
	ctx := context.Background()
	m.metrics.CountDisconnect(ctx)
	m.metrics.AddActiveLinks(ctx, -1)
	slog.Info("voice: disconnected", "guild_id", guildID, "channel_id", oldChannel)
	return nil
}

// CurrentChannel returns the channel currently occupied in guildID, or ""
// when disconnected. It does not take the transition lock.
func (m *Manager) CurrentChannel(guildID string) string {
	g := m.slot(guildID)
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	return g.channelID
}

// Link returns the live link for guildID, if any. Used by the delivery
// player to hand clips to the active connection.
func (m *Manager) Link(guildID string) (Link, bool) {
	g := m.slot(guildID)
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	return g.link, g.link != nil
}

// Shutdown disconnects every guild. Called once at process exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.guilds))
	for id := range m.guilds {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Disconnect(id); err != nil {
			slog.Warn("voice: shutdown disconnect failed", "guild_id", id, "err", err)
		}
	}
}

func (g *guildLink) setState(link Link, channelID string) {
	g.stateMu.Lock()
	g.link = link
	g.channelID = channelID
	g.stateMu.Unlock()
}
