package voice

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Compile-time interface assertions.
var (
	_ Transport = (*SessionTransport)(nil)
	_ Link      = (*sessionLink)(nil)
)

// SessionTransport implements Transport over a live discordgo.Session.
type SessionTransport struct {
	session *discordgo.Session
}

// NewSessionTransport wraps session as a voice Transport. The session is
// owned by the bot layer and must already be open.
func NewSessionTransport(session *discordgo.Session) *SessionTransport {
	return &SessionTransport{session: session}
}

// Join implements Transport. The bot joins unmuted and deafened — it only
// transmits audio.
func (t *SessionTransport) Join(_ context.Context, guildID, channelID string) (Link, error) {
	vc, err := t.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}
	return &sessionLink{vc: vc}, nil
}

// Leave implements Transport. It sends a no-channel voice state update,
// which some servers require before they consider the bot fully departed.
func (t *SessionTransport) Leave(guildID string) error {
	if err := t.session.ChannelVoiceJoinManual(guildID, "", false, false); err != nil {
		return fmt.Errorf("discord: send voice leave: %w", err)
	}
	return nil
}

// sessionLink adapts a discordgo.VoiceConnection to the Link interface.
type sessionLink struct {
	vc *discordgo.VoiceConnection
}

func (l *sessionLink) ChannelID() string { return l.vc.ChannelID }

func (l *sessionLink) Ready() bool { return l.vc.Ready }

func (l *sessionLink) Speaking(b bool) error { return l.vc.Speaking(b) }

func (l *sessionLink) Send(ctx context.Context, frame []byte) error {
	select {
	case l.vc.OpusSend <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *sessionLink) Close() error { return l.vc.Disconnect() }
