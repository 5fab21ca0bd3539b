package discord

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/quillback/towncrier/internal/follow"
)

// maxNicknameLen is Discord's guild nickname length limit.
const maxNicknameLen = 32

// nicknameSession is the slice of the Discord API the presenter needs.
// Satisfied by *discordgo.Session; faked in tests.
type nicknameSession interface {
	GuildMemberNickname(guildID, userID, nickname string, options ...discordgo.RequestOption) error
}

// NameResolver maps a guild member to a speakable display name. Returns ""
// when the member is unknown.
type NameResolver func(guildID, userID string) string

// Presenter keeps the bot's per-guild nickname in sync with who it is
// currently reading for. The nickname is derived from the same presence
// snapshot the channel selector uses; updates are best-effort and a failed
// REST call never blocks a channel transition.
type Presenter struct {
	session  nicknameSession
	follower *follow.Follower
	resolve  NameResolver
}

// NewPresenter creates a Presenter resolving member names through resolve.
func NewPresenter(session nicknameSession, follower *follow.Follower, resolve NameResolver) *Presenter {
	return &Presenter{session: session, follower: follower, resolve: resolve}
}

// Refresh recomputes and applies the nickname for guildID. With no target
// channel the nickname is cleared back to the bot's account name.
func (p *Presenter) Refresh(guildID string) {
	nick := p.nickname(guildID)
	if err := p.session.GuildMemberNickname(guildID, "@me", nick); err != nil {
		slog.Warn("discord: nickname update failed", "guild_id", guildID, "err", err)
	}
}

// nickname derives the guild nickname from the current follow target. An
// empty string tells Discord to drop the nickname entirely.
func (p *Presenter) nickname(guildID string) string {
	target := p.follower.TargetChannel(guildID)
	if target == "" {
		return ""
	}

	var names []string
	for _, pres := range p.follower.Tracker().PresentIn(guildID) {
		if pres.ChannelID != target || !pres.Reachable() {
			continue
		}
		if n := p.resolve(guildID, pres.UserID); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return ""
	}
	// Deterministic order so repeated refreshes produce identical
	// nicknames regardless of map iteration order upstream.
	slices.Sort(names)

	nick := "Towncrier for " + strings.Join(names, ", ")
	if r := []rune(nick); len(r) > maxNicknameLen {
		nick = string(r[:maxNicknameLen-1]) + "…"
	}
	return nick
}
