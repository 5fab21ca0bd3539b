package follow

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeVoice records transitions and tracks the current channel per guild.
type fakeVoice struct {
	mu          sync.Mutex
	channels    map[string]string
	connects    []string // "guild/channel"
	disconnects []string
	connectErr  error
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{channels: make(map[string]string)}
}

func (v *fakeVoice) Connect(_ context.Context, guildID, channelID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.connects = append(v.connects, guildID+"/"+channelID)
	if v.connectErr != nil {
		return v.connectErr
	}
	v.channels[guildID] = channelID
	return nil
}

func (v *fakeVoice) Disconnect(guildID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disconnects = append(v.disconnects, guildID)
	delete(v.channels, guildID)
	return nil
}

func (v *fakeVoice) CurrentChannel(guildID string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.channels[guildID]
}

func TestFollower_JoinsWhenUserAppears(t *testing.T) {
	t.Parallel()

	voice := newFakeVoice()
	f := NewFollower(NewTracker(), voice)

	f.HandleVoiceState(context.Background(), Presence{GuildID: "g", UserID: "u", ChannelID: "42"})

	if got := voice.CurrentChannel("g"); got != "42" {
		t.Fatalf("current channel = %q, want 42", got)
	}
	if len(voice.connects) != 1 || voice.connects[0] != "g/42" {
		t.Errorf("connects = %v", voice.connects)
	}
}

func TestFollower_FollowsAcrossChannels(t *testing.T) {
	t.Parallel()

	voice := newFakeVoice()
	f := NewFollower(NewTracker(), voice)
	ctx := context.Background()

	f.HandleVoiceState(ctx, Presence{GuildID: "g", UserID: "u", ChannelID: "42"})
	f.HandleVoiceState(ctx, Presence{GuildID: "g", UserID: "u", ChannelID: "43"})

	if got := voice.CurrentChannel("g"); got != "43" {
		t.Fatalf("current channel = %q, want 43", got)
	}
	if len(voice.connects) != 2 {
		t.Errorf("connects = %v, want two joins", voice.connects)
	}
}

func TestFollower_LeavesWhenUserLeaves(t *testing.T) {
	t.Parallel()

	voice := newFakeVoice()
	f := NewFollower(NewTracker(), voice)
	ctx := context.Background()

	f.HandleVoiceState(ctx, Presence{GuildID: "g", UserID: "u", ChannelID: "42"})
	f.HandleVoiceState(ctx, Presence{GuildID: "g", UserID: "u"})

	if got := voice.CurrentChannel("g"); got != "" {
		t.Fatalf("current channel = %q, want disconnected", got)
	}
	if len(voice.disconnects) != 1 {
		t.Errorf("disconnects = %v, want one", voice.disconnects)
	}
}

func TestFollower_LeavesWhenUserDeafens(t *testing.T) {
	t.Parallel()

	voice := newFakeVoice()
	f := NewFollower(NewTracker(), voice)
	ctx := context.Background()

	f.HandleVoiceState(ctx, Presence{GuildID: "g", UserID: "u", ChannelID: "42"})
	f.HandleVoiceState(ctx, Presence{GuildID: "g", UserID: "u", ChannelID: "42", SelfDeaf: true})

	if got := voice.CurrentChannel("g"); got != "" {
		t.Fatalf("current channel = %q, want disconnected", got)
	}
}

func TestFollower_StaysOnTie(t *testing.T) {
	t.Parallel()

	voice := newFakeVoice()
	f := NewFollower(NewTracker(), voice)
	ctx := context.Background()

	f.HandleVoiceState(ctx, Presence{GuildID: "g", UserID: "a", ChannelID: "7"})
	f.HandleVoiceState(ctx, Presence{GuildID: "g", UserID: "b", ChannelID: "5"})

	// 5 and 7 tie at one user each; the bot is already on 7 and stays.
	if got := voice.CurrentChannel("g"); got != "7" {
		t.Fatalf("current channel = %q, want 7", got)
	}
	if len(voice.connects) != 1 {
		t.Errorf("connects = %v, want a single join", voice.connects)
	}
}

func TestFollower_ConnectFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	voice := newFakeVoice()
	voice.connectErr = errors.New("join refused")
	f := NewFollower(NewTracker(), voice)
	ctx := context.Background()

	f.HandleVoiceState(ctx, Presence{GuildID: "g", UserID: "u", ChannelID: "42"})
	if len(voice.connects) != 1 {
		t.Fatalf("connects = %v, want one attempt", voice.connects)
	}

	// The next presence event triggers a fresh attempt naturally.
	voice.connectErr = nil
	f.HandleVoiceState(ctx, Presence{GuildID: "g", UserID: "u", ChannelID: "42", SelfDeaf: false})
	if got := voice.CurrentChannel("g"); got != "42" {
		t.Fatalf("current channel = %q, want 42 after retrigger", got)
	}
}

func TestFollower_SeedGuildConnects(t *testing.T) {
	t.Parallel()

	voice := newFakeVoice()
	f := NewFollower(NewTracker(), voice)

	f.SeedGuild(context.Background(), "g", []Presence{
		{UserID: "u", ChannelID: "42"},
	})

	if got := voice.CurrentChannel("g"); got != "42" {
		t.Fatalf("current channel = %q, want 42", got)
	}
}
