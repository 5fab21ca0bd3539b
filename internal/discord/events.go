package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/quillback/towncrier/internal/describe"
	"github.com/quillback/towncrier/internal/follow"
	"github.com/quillback/towncrier/internal/history"
	"github.com/quillback/towncrier/internal/textprep"
	"github.com/quillback/towncrier/internal/voice"
	"github.com/quillback/towncrier/pkg/tts"
)

// commandPrefix marks introspection commands typed into a listened channel.
const commandPrefix = "."

// onGuildCreate seeds presence for configured guilds from the connect-time
// snapshot. Events for unconfigured guilds are ignored entirely.
func (b *Bot) onGuildCreate(_ *discordgo.Session, e *discordgo.GuildCreate) {
	if b.guildConfig(e.ID) == nil {
		return
	}

	var snapshot []follow.Presence
	for _, vs := range e.VoiceStates {
		if b.monitoredUser(vs.UserID) == nil {
			continue
		}
		snapshot = append(snapshot, follow.Presence{
			GuildID:   e.ID,
			UserID:    vs.UserID,
			ChannelID: vs.ChannelID,
			SelfDeaf:  vs.SelfDeaf,
			Deaf:      vs.Deaf,
		})
	}

	slog.Info("discord: guild ready", "guild_id", e.ID, "monitored_in_voice", len(snapshot))
	go func() {
		b.follower.SeedGuild(context.Background(), e.ID, snapshot)
		b.nicks.Refresh(e.ID)
	}()
}

// onVoiceStateUpdate feeds monitored users' voice movements to the follower.
func (b *Bot) onVoiceStateUpdate(_ *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if b.guildConfig(e.GuildID) == nil || b.monitoredUser(e.UserID) == nil {
		return
	}

	p := follow.Presence{
		GuildID:   e.GuildID,
		UserID:    e.UserID,
		ChannelID: e.ChannelID,
		SelfDeaf:  e.SelfDeaf,
		Deaf:      e.Deaf,
	}

	// Joins, moves, and leaves all funnel through the same reconciliation;
	// run off the dispatch goroutine so a slow voice handshake cannot stall
	// event intake.
	go func() {
		b.follower.HandleVoiceState(context.Background(), p)
		b.nicks.Refresh(e.GuildID)
	}()
}

// onGuildMemberUpdate recomputes the nickname when membership data shifts.
func (b *Bot) onGuildMemberUpdate(_ *discordgo.Session, e *discordgo.GuildMemberUpdate) {
	if b.guildConfig(e.GuildID) == nil {
		return
	}
	go b.nicks.Refresh(e.GuildID)
}

// onMessageCreate turns eligible messages into queued speech.
func (b *Bot) onMessageCreate(s *discordgo.Session, e *discordgo.MessageCreate) {
	if e.Author == nil || e.Author.Bot {
		return
	}
	if b.guildConfig(e.GuildID) == nil {
		return
	}

	if strings.HasPrefix(e.Content, commandPrefix) {
		b.handleCommand(e)
		return
	}

	if !b.listensOn(e.GuildID, e.ChannelID) {
		return
	}
	user := b.monitoredUser(e.Author.ID)
	if user == nil {
		return
	}

	voiceName, flavor := user.Voice, user.Flavor
	go b.speak(context.Background(), e.Message, voiceName, flavor)
}

// handleCommand dispatches dot-prefixed introspection commands.
func (b *Bot) handleCommand(e *discordgo.MessageCreate) {
	switch strings.TrimSpace(e.Content) {
	case ".listening":
		go b.replyListening(e)
	}
}

// replyListening answers the .listening command with this guild's listened
// channels and queue depth.
func (b *Bot) replyListening(e *discordgo.MessageCreate) {
	g := b.guildConfig(e.GuildID)
	if g == nil {
		return
	}

	var msg string
	if len(g.ListenChannels) == 0 {
		msg = "Listening on every channel in this server."
	} else {
		refs := make([]string, len(g.ListenChannels))
		for i, c := range g.ListenChannels {
			refs[i] = "<#" + c + ">"
		}
		msg = "Listening on " + strings.Join(refs, ", ") + "."
	}
	msg += fmt.Sprintf(" Queue depth: %d.", b.player.QueueDepth(e.GuildID))

	if _, err := b.session.ChannelMessageSend(e.ChannelID, msg); err != nil {
		slog.Warn("discord: listening reply failed", "guild_id", e.GuildID, "err", err)
	}
}

// speak runs the full text-to-clip path for one message: sanitize, extract
// style instructions, describe attachments, synthesize, enqueue. Every
// failure degrades toward speaking less rather than erroring the guild.
func (b *Bot) speak(ctx context.Context, m *discordgo.Message, voiceName, flavor string) {
	instructions, text := textprep.ExtractInstructions(m.Content)
	text = textprep.Sanitize(text, b.mentionNames(m))

	if desc := b.describeAttachments(ctx, m); desc != "" {
		if text == "" {
			text = desc
		} else {
			text += ". " + desc
		}
	}
	if text == "" {
		return
	}

	instructions = b.mergeInstructions(ctx, flavor, instructions)

	start := time.Now()
	clip, err := b.synth.Synthesize(ctx, tts.Request{
		Text:         text,
		Voice:        voiceName,
		Instructions: instructions,
	})
	if err != nil {
		slog.Warn("discord: synthesis failed",
			"guild_id", m.GuildID, "user_id", m.Author.ID, "err", err)
		return
	}
	if clip == nil {
		return
	}
	b.metrics.ObserveSynthesis(ctx, b.synth.Name(), time.Since(start))

	b.player.Submit(ctx, m.GuildID, &voice.Clip{Audio: clip.Audio, Format: clip.Format})
	b.metrics.CountMessageSpoken(ctx, m.GuildID)

	if err := b.recorder.Record(ctx, history.Entry{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		Text:      text,
		Voice:     voiceName,
		Provider:  b.synth.Name(),
		SpokenAt:  time.Now(),
	}); err != nil {
		slog.Warn("discord: history record failed", "guild_id", m.GuildID, "err", err)
	}
}

// describeAttachments returns a spoken attachment summary, or "" when there
// are no attachments, no describer, or the model call fails.
func (b *Bot) describeAttachments(ctx context.Context, m *discordgo.Message) string {
	if b.describer == nil || len(m.Attachments) == 0 {
		return ""
	}
	atts := make([]describe.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		atts = append(atts, describe.Attachment{Filename: a.Filename, ContentType: a.ContentType})
	}
	desc, err := b.describer.Attachments(ctx, atts)
	if err != nil {
		slog.Warn("discord: attachment description failed", "guild_id", m.GuildID, "err", err)
		return ""
	}
	return desc
}

// mergeInstructions combines the user's standing flavor with per-message
// instructions, through the LLM when available. Falls back to plain joining
// when no describer exists or the model call fails.
func (b *Bot) mergeInstructions(ctx context.Context, flavor, perMessage string) string {
	if b.describer != nil {
		merged, err := b.describer.Instructions(ctx, flavor, perMessage)
		if err == nil {
			return merged
		}
		slog.Warn("discord: instruction rewrite failed", "err", err)
	}

	switch {
	case flavor == "":
		return perMessage
	case perMessage == "":
		return flavor
	default:
		return flavor + "; " + perMessage
	}
}

// mentionNames builds the speakable-name lookup for a message's mentions
// from the message itself and the session state cache.
func (b *Bot) mentionNames(m *discordgo.Message) textprep.Names {
	names := textprep.Names{
		Users:    make(map[string]string),
		Roles:    make(map[string]string),
		Channels: make(map[string]string),
	}
	for _, u := range m.Mentions {
		if n := b.displayName(m.GuildID, u.ID); n != "" {
			names.Users[u.ID] = n
		} else if u.GlobalName != "" {
			names.Users[u.ID] = u.GlobalName
		} else {
			names.Users[u.ID] = u.Username
		}
	}
	if guild, err := b.session.State.Guild(m.GuildID); err == nil && guild != nil {
		for _, r := range guild.Roles {
			names.Roles[r.ID] = r.Name
		}
		for _, c := range guild.Channels {
			names.Channels[c.ID] = c.Name
		}
	}
	return names
}
