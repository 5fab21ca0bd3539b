// Package voice owns the bot's outbound voice path: the per-guild
// connection manager, the per-guild FIFO delivery queue, and the
// transcode/transmit pipeline that turns synthesized clips into Opus
// frames on a live Discord voice connection.
package voice

import "context"

// Link is one live outbound voice connection. Implemented over a
// discordgo.VoiceConnection in production and faked in tests.
type Link interface {
	// ChannelID is the voice channel this link is bound to.
	ChannelID() string

	// Ready reports whether the link can accept Opus frames yet.
	Ready() bool

	// Speaking toggles the speaking indicator.
	Speaking(bool) error

	// Send transmits one encoded Opus frame, blocking until the transport
	// accepts it or ctx is done.
	Send(ctx context.Context, frame []byte) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Transport joins and leaves voice channels on behalf of the manager.
type Transport interface {
	// Join connects to channelID in guildID and returns the live link.
	Join(ctx context.Context, guildID, channelID string) (Link, error)

	// Leave sends an explicit no-channel voice state update for guildID.
	// Some servers do not consider the bot departed until this is sent,
	// even after the connection handle is closed.
	Leave(guildID string) error
}
