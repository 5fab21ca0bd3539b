package follow

import "testing"

func TestTracker_UpdateReplaceOrDelete(t *testing.T) {
	t.Parallel()

	tr := NewTracker()

	tr.Update(Presence{GuildID: "g", UserID: "u", ChannelID: "5"})
	got := tr.PresentIn("g")
	if len(got) != 1 || got[0].ChannelID != "5" {
		t.Fatalf("PresentIn = %+v, want one entry in channel 5", got)
	}

	// A later update fully replaces the entry, flags included.
	tr.Update(Presence{GuildID: "g", UserID: "u", ChannelID: "5", SelfDeaf: true})
	got = tr.PresentIn("g")
	if len(got) != 1 || !got[0].SelfDeaf {
		t.Fatalf("flags not replaced: %+v", got)
	}

	// An empty channel deletes the entry rather than retaining it.
	tr.Update(Presence{GuildID: "g", UserID: "u"})
	if got := tr.PresentIn("g"); len(got) != 0 {
		t.Fatalf("PresentIn after leave = %+v, want empty", got)
	}
}

func TestTracker_SeedSkipsEmptyChannels(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Seed("g", []Presence{
		{UserID: "a", ChannelID: "10"},
		{UserID: "b", ChannelID: ""},
	})

	got := tr.PresentIn("g")
	if len(got) != 1 || got[0].UserID != "a" {
		t.Fatalf("PresentIn = %+v, want only user a", got)
	}
	if got[0].GuildID != "g" {
		t.Errorf("seeded entry GuildID = %q, want g", got[0].GuildID)
	}
}

func TestTracker_SeedDoesNotOverwriteLiveUpdates(t *testing.T) {
	t.Parallel()

	tr := NewTracker()

	// Live events race ahead of the snapshot: user a moved to channel 20,
	// user b left voice entirely.
	tr.Update(Presence{GuildID: "g", UserID: "a", ChannelID: "20"})
	tr.Update(Presence{GuildID: "g", UserID: "b"})

	tr.Seed("g", []Presence{
		{UserID: "a", ChannelID: "10"},
		{UserID: "b", ChannelID: "10"},
		{UserID: "c", ChannelID: "10"},
	})

	byUser := map[string]Presence{}
	for _, p := range tr.PresentIn("g") {
		byUser[p.UserID] = p
	}
	if p, ok := byUser["a"]; !ok || p.ChannelID != "20" {
		t.Errorf("user a = %+v, want channel 20 (live update preserved)", p)
	}
	if _, ok := byUser["b"]; ok {
		t.Error("user b resurrected by snapshot after a live leave")
	}
	if p, ok := byUser["c"]; !ok || p.ChannelID != "10" {
		t.Errorf("user c = %+v, want channel 10 (snapshot applied)", p)
	}
}

func TestTracker_ReseedAfterResumeSeesReturnedUsers(t *testing.T) {
	t.Parallel()

	tr := NewTracker()

	// User u leaves during a gateway disconnect; the live event tombstones
	// the entry so the first snapshot cannot resurrect it.
	tr.Update(Presence{GuildID: "g", UserID: "u"})
	tr.Seed("g", []Presence{{UserID: "u", ChannelID: "10"}})
	if got := tr.PresentIn("g"); len(got) != 0 {
		t.Fatalf("PresentIn after tombstoned seed = %+v, want empty", got)
	}

	// A resume re-sends GuildCreate with a fresh snapshot: u rejoined in
	// the meantime. Applying the first seed consumed the tombstone, so the
	// re-seed must make u visible again.
	tr.Seed("g", []Presence{{UserID: "u", ChannelID: "10"}})
	got := tr.PresentIn("g")
	if len(got) != 1 || got[0].ChannelID != "10" {
		t.Fatalf("PresentIn after re-seed = %+v, want u in channel 10", got)
	}
}

func TestTracker_SeedConsumesOnlyOwnGuildsTombstones(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Update(Presence{GuildID: "g1", UserID: "u"})
	tr.Update(Presence{GuildID: "g2", UserID: "u"})

	// Seeding g1 must not consume g2's tombstone.
	tr.Seed("g1", nil)
	tr.Seed("g2", []Presence{{UserID: "u", ChannelID: "7"}})
	if got := tr.PresentIn("g2"); len(got) != 0 {
		t.Fatalf("g2 = %+v, want tombstone still honored on first seed", got)
	}
}

func TestTracker_GuildsAreIndependent(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Update(Presence{GuildID: "g1", UserID: "u", ChannelID: "1"})
	tr.Update(Presence{GuildID: "g2", UserID: "u", ChannelID: "2"})

	if got := tr.PresentIn("g1"); len(got) != 1 || got[0].ChannelID != "1" {
		t.Errorf("g1 = %+v", got)
	}
	if got := tr.PresentIn("g2"); len(got) != 1 || got[0].ChannelID != "2" {
		t.Errorf("g2 = %+v", got)
	}
}
