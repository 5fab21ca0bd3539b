package discord

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/quillback/towncrier/internal/config"
	"github.com/quillback/towncrier/internal/describe"
	"github.com/quillback/towncrier/internal/follow"
	"github.com/quillback/towncrier/internal/history"
	"github.com/quillback/towncrier/internal/voice"
	ttsmock "github.com/quillback/towncrier/pkg/tts/mock"
)

// stubLink is an always-ready voice.Link that swallows frames.
type stubLink struct{}

func (stubLink) ChannelID() string                 { return "c-voice" }
func (stubLink) Ready() bool                       { return true }
func (stubLink) Speaking(bool) error               { return nil }
func (stubLink) Send(context.Context, []byte) error { return nil }
func (stubLink) Close() error                      { return nil }

// stubLinks serves the same link for every guild.
type stubLinks struct{}

func (stubLinks) Link(string) (voice.Link, bool) { return stubLink{}, true }

// recordingClipPlayer captures the payload of every played clip.
type recordingClipPlayer struct {
	mu    sync.Mutex
	clips []string
}

func (r *recordingClipPlayer) Play(_ context.Context, _ voice.Link, clip *voice.Clip) error {
	data, _ := io.ReadAll(clip.Audio)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clips = append(r.clips, string(data))
	return nil
}

func (r *recordingClipPlayer) played() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.clips...)
}

// recordingRecorder captures history entries.
type recordingRecorder struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (r *recordingRecorder) Record(_ context.Context, e history.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingRecorder) Close() {}

func testConfig() *config.Config {
	return &config.Config{
		Discord: config.DiscordConfig{Token: "test-token"},
		Users: []config.UserConfig{
			{ID: "u1", Voice: "onyx", Flavor: "sound bored"},
		},
		Guilds: []config.GuildConfig{
			{GuildID: "g1", ListenChannels: []string{"c1", "c2"}},
			{GuildID: "g2"},
		},
		Providers: config.ProvidersConfig{TTS: config.ProviderEntry{Name: "openai"}},
	}
}

type botFixture struct {
	bot      *Bot
	synth    *ttsmock.Synthesizer
	clips    *recordingClipPlayer
	player   *voice.Player
	recorder *recordingRecorder
}

func newTestBot(t *testing.T, d *describe.Describer) *botFixture {
	t.Helper()
	cp := &recordingClipPlayer{}
	player := voice.NewPlayer(stubLinks{}, cp, nil)
	tracker := follow.NewTracker()
	follower := follow.NewFollower(tracker, &fakeVoiceControl{})
	synth := &ttsmock.Synthesizer{}
	rec := &recordingRecorder{}

	b, err := New(Options{
		Config:    testConfig(),
		Follower:  follower,
		Voices:    nil,
		Player:    player,
		Synth:     synth,
		Describer: d,
		Recorder:  rec,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &botFixture{bot: b, synth: synth, clips: cp, player: player, recorder: rec}
}

func TestBot_ListensOn(t *testing.T) {
	t.Parallel()
	fx := newTestBot(t, nil)

	cases := []struct {
		guild, channel string
		want           bool
	}{
		{"g1", "c1", true},
		{"g1", "c9", false},
		{"g2", "anything", true}, // empty listen list means every channel
		{"g9", "c1", false},      // unconfigured guild
	}
	for _, tc := range cases {
		if got := fx.bot.listensOn(tc.guild, tc.channel); got != tc.want {
			t.Errorf("listensOn(%s, %s) = %v, want %v", tc.guild, tc.channel, got, tc.want)
		}
	}
}

func TestBot_ApplyConfigSwapsUsers(t *testing.T) {
	t.Parallel()
	fx := newTestBot(t, nil)

	if fx.bot.monitoredUser("u1") == nil {
		t.Fatal("u1 should be monitored initially")
	}

	next := testConfig()
	next.Users = []config.UserConfig{{ID: "u9", Voice: "alloy"}}
	fx.bot.ApplyConfig(next)

	if fx.bot.monitoredUser("u1") != nil {
		t.Error("u1 should no longer be monitored")
	}
	if fx.bot.monitoredUser("u9") == nil {
		t.Error("u9 should be monitored after reload")
	}
}

func TestSpeak_SanitizesAndExtractsInstructions(t *testing.T) {
	t.Parallel()
	fx := newTestBot(t, nil)

	msg := &discordgo.Message{
		GuildID:   "g1",
		ChannelID: "c1",
		Author:    &discordgo.User{ID: "u1"},
		Content:   "(whisper) hello <@555> check https://example.com/x",
		Mentions:  []*discordgo.User{{ID: "555", Username: "pat"}},
	}
	fx.bot.speak(context.Background(), msg, "onyx", "")
	fx.player.Wait()

	if got := fx.synth.CallCount(); got != 1 {
		t.Fatalf("synth calls = %d, want 1", got)
	}
	req := fx.synth.Calls[0]
	if req.Text != "hello pat check" {
		t.Errorf("text = %q", req.Text)
	}
	if req.Voice != "onyx" {
		t.Errorf("voice = %q", req.Voice)
	}
	if req.Instructions != "whisper" {
		t.Errorf("instructions = %q", req.Instructions)
	}
	if got := fx.clips.played(); len(got) != 1 || got[0] != "mock audio" {
		t.Errorf("played clips = %v", got)
	}
}

func TestSpeak_FlavorJoinedWithoutDescriber(t *testing.T) {
	t.Parallel()
	fx := newTestBot(t, nil)

	msg := &discordgo.Message{
		GuildID:   "g1",
		ChannelID: "c1",
		Author:    &discordgo.User{ID: "u1"},
		Content:   "(whisper) secret plans",
	}
	fx.bot.speak(context.Background(), msg, "onyx", "sound bored")
	fx.player.Wait()

	req := fx.synth.Calls[0]
	if req.Instructions != "sound bored; whisper" {
		t.Errorf("instructions = %q", req.Instructions)
	}
}

func TestSpeak_EmptyAfterSanitizeSkipsSynthesis(t *testing.T) {
	t.Parallel()
	fx := newTestBot(t, nil)

	msg := &discordgo.Message{
		GuildID:   "g1",
		ChannelID: "c1",
		Author:    &discordgo.User{ID: "u1"},
		Content:   "https://example.com/only-a-link",
	}
	fx.bot.speak(context.Background(), msg, "onyx", "")

	if got := fx.synth.CallCount(); got != 0 {
		t.Errorf("synth calls = %d, want 0", got)
	}
}

func TestSpeak_DeclinedSynthesisEnqueuesNothing(t *testing.T) {
	t.Parallel()
	fx := newTestBot(t, nil)
	fx.synth.Decline = true

	msg := &discordgo.Message{
		GuildID:   "g1",
		ChannelID: "c1",
		Author:    &discordgo.User{ID: "u1"},
		Content:   "hello",
	}
	fx.bot.speak(context.Background(), msg, "onyx", "")
	fx.player.Wait()

	if got := fx.clips.played(); len(got) != 0 {
		t.Errorf("played clips = %v, want none", got)
	}
	if len(fx.recorder.entries) != 0 {
		t.Errorf("history entries = %v, want none", fx.recorder.entries)
	}
}

func TestSpeak_RecordsHistory(t *testing.T) {
	t.Parallel()
	fx := newTestBot(t, nil)

	msg := &discordgo.Message{
		GuildID:   "g1",
		ChannelID: "c1",
		Author:    &discordgo.User{ID: "u1"},
		Content:   "read me aloud",
	}
	fx.bot.speak(context.Background(), msg, "onyx", "")
	fx.player.Wait()

	if len(fx.recorder.entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(fx.recorder.entries))
	}
	e := fx.recorder.entries[0]
	if e.GuildID != "g1" || e.UserID != "u1" || e.Text != "read me aloud" {
		t.Errorf("entry = %+v", e)
	}
	if e.Voice != "onyx" || e.Provider != "mock" {
		t.Errorf("entry voice/provider = %q/%q", e.Voice, e.Provider)
	}
}

func TestSpeak_AttachmentDescriptionAppended(t *testing.T) {
	t.Parallel()
	d := describe.NewWithCompleter(staticCompleter("sent a picture of a cat"))
	fx := newTestBot(t, d)

	msg := &discordgo.Message{
		GuildID:   "g1",
		ChannelID: "c1",
		Author:    &discordgo.User{ID: "u1"},
		Content:   "look at this",
		Attachments: []*discordgo.MessageAttachment{
			{Filename: "cat.png", ContentType: "image/png"},
		},
	}
	fx.bot.speak(context.Background(), msg, "onyx", "")
	fx.player.Wait()

	req := fx.synth.Calls[0]
	if req.Text != "look at this. sent a picture of a cat" {
		t.Errorf("text = %q", req.Text)
	}
}

func TestSpeak_AttachmentOnlyMessage(t *testing.T) {
	t.Parallel()
	d := describe.NewWithCompleter(staticCompleter("sent a picture of a cat"))
	fx := newTestBot(t, d)

	msg := &discordgo.Message{
		GuildID:   "g1",
		ChannelID: "c1",
		Author:    &discordgo.User{ID: "u1"},
		Attachments: []*discordgo.MessageAttachment{
			{Filename: "cat.png", ContentType: "image/png"},
		},
	}
	fx.bot.speak(context.Background(), msg, "onyx", "")
	fx.player.Wait()

	req := fx.synth.Calls[0]
	if req.Text != "sent a picture of a cat" {
		t.Errorf("text = %q", req.Text)
	}
}

// staticCompleter returns the same reply for every prompt.
type staticCompleter string

func (s staticCompleter) Complete(context.Context, string, string) (string, error) {
	return string(s), nil
}
