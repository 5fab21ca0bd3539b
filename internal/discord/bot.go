// Package discord provides the Discord bot layer for Towncrier. It owns
// the discordgo.Session lifecycle, filters gateway events down to monitored
// users and listened channels, and feeds the follow/voice subsystems.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/quillback/towncrier/internal/config"
	"github.com/quillback/towncrier/internal/describe"
	"github.com/quillback/towncrier/internal/follow"
	"github.com/quillback/towncrier/internal/history"
	"github.com/quillback/towncrier/internal/observe"
	"github.com/quillback/towncrier/internal/voice"
	"github.com/quillback/towncrier/pkg/tts"
)

// Options carries the collaborators a Bot needs. Config and Synth are
// required. When Voices and Player are nil the bot builds its own voice
// stack over the session; tests inject fakes instead. A nil Describer
// disables LLM augmentation and a nil Recorder defaults to a no-op.
type Options struct {
	Config    *config.Config
	Follower  *follow.Follower
	Voices    *voice.Manager
	Player    *voice.Player
	Synth     tts.Synthesizer
	Describer *describe.Describer
	Recorder  history.Recorder
	Metrics   *observe.Metrics

	// FFmpegPath overrides the decoder binary for the built-in pipeline.
	FFmpegPath string
}

// Bot owns the Discord gateway connection and drives the speak-and-follow
// behaviour from gateway events.
type Bot struct {
	session   *discordgo.Session
	follower  *follow.Follower
	voices    *voice.Manager
	player    *voice.Player
	synth     tts.Synthesizer
	describer *describe.Describer
	recorder  history.Recorder
	metrics   *observe.Metrics
	nicks     *Presenter

	// cfgMu guards cfg, which is swapped whole on hot reload.
	cfgMu sync.RWMutex
	cfg   *config.Config

	closeOnce sync.Once
}

// New creates a Bot and registers its gateway handlers. The session is not
// opened; call [Bot.Run].
func New(opts Options) (*Bot, error) {
	session, err := discordgo.New("Bot " + opts.Config.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent

	recorder := opts.Recorder
	if recorder == nil {
		recorder = history.NopRecorder{}
	}

	voices, player, follower := opts.Voices, opts.Player, opts.Follower
	if voices == nil && player == nil {
		transport := voice.NewSessionTransport(session)
		voices = voice.NewManager(transport, opts.Metrics)
		pipeline := voice.NewPipeline(opts.FFmpegPath, opts.Metrics)
		player = voice.NewPlayer(voices, pipeline, opts.Metrics)
	}
	if follower == nil {
		follower = follow.NewFollower(follow.NewTracker(), voices)
	}

	b := &Bot{
		session:   session,
		follower:  follower,
		voices:    voices,
		player:    player,
		synth:     opts.Synth,
		describer: opts.Describer,
		recorder:  recorder,
		metrics:   opts.Metrics,
		cfg:       opts.Config,
	}
	b.nicks = NewPresenter(session, follower, b.displayName)

	session.AddHandler(b.onGuildCreate)
	session.AddHandler(b.onVoiceStateUpdate)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onGuildMemberUpdate)

	return b, nil
}

// Session returns the underlying discordgo session. Used by the voice
// transport and by subsystems needing direct API access.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Run opens the gateway connection and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	slog.Info("discord: gateway connected")

	<-ctx.Done()
	return ctx.Err()
}

// Close leaves every voice channel, waits for drain loops to finish, and
// disconnects from the gateway.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		if b.voices != nil {
			b.voices.Shutdown()
		}
		if b.player != nil {
			b.player.Wait()
		}
		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("discord: close session: %w", err)
		}
		slog.Info("discord: bot closed")
	})
	return closeErr
}

// Player returns the delivery player. Used by health checks.
func (b *Bot) Player() *voice.Player {
	return b.player
}

// ApplyConfig swaps in a hot-reloaded config. Only user/guild membership
// and flavor settings take effect; provider changes require a restart.
func (b *Bot) ApplyConfig(cfg *config.Config) {
	b.cfgMu.Lock()
	b.cfg = cfg
	b.cfgMu.Unlock()
	slog.Info("discord: applied reloaded config",
		"users", len(cfg.Users), "guilds", len(cfg.Guilds))
}

// monitoredUser returns the config entry for id, or nil when unmonitored.
func (b *Bot) monitoredUser(id string) *config.UserConfig {
	b.cfgMu.RLock()
	defer b.cfgMu.RUnlock()
	return b.cfg.User(id)
}

// guildConfig returns the per-guild entry, or nil for unconfigured guilds.
func (b *Bot) guildConfig(guildID string) *config.GuildConfig {
	b.cfgMu.RLock()
	defer b.cfgMu.RUnlock()
	return b.cfg.Guild(guildID)
}

// listensOn reports whether messages in channelID of guildID are eligible
// for speech. An empty listen_channels list means every channel.
func (b *Bot) listensOn(guildID, channelID string) bool {
	g := b.guildConfig(guildID)
	if g == nil {
		return false
	}
	if len(g.ListenChannels) == 0 {
		return true
	}
	for _, c := range g.ListenChannels {
		if c == channelID {
			return true
		}
	}
	return false
}

// displayName resolves a user's speakable name from the session state cache.
func (b *Bot) displayName(guildID, userID string) string {
	m, err := b.session.State.Member(guildID, userID)
	if err != nil || m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User != nil {
		if m.User.GlobalName != "" {
			return m.User.GlobalName
		}
		return m.User.Username
	}
	return ""
}
