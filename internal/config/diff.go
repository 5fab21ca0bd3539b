package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// UsersChanged is true if any monitored user was added, removed, or
	// had its voice or flavor edited.
	UsersChanged bool
	UserChanges  []UserDiff

	// GuildsChanged is true if the guild list or any listen-channel set
	// changed. Applying it requires re-seeding presence, so callers
	// typically log a restart hint instead.
	GuildsChanged bool
}

// UserDiff describes what changed for a single monitored user.
type UserDiff struct {
	ID            string
	VoiceChanged  bool
	FlavorChanged bool
	Added         bool
	Removed       bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oldUsers := make(map[string]*UserConfig, len(old.Users))
	for i := range old.Users {
		oldUsers[old.Users[i].ID] = &old.Users[i]
	}
	newUsers := make(map[string]*UserConfig, len(new.Users))
	for i := range new.Users {
		newUsers[new.Users[i].ID] = &new.Users[i]
	}

	for id, nu := range newUsers {
		ou, ok := oldUsers[id]
		if !ok {
			d.UserChanges = append(d.UserChanges, UserDiff{ID: id, Added: true})
			continue
		}
		ud := UserDiff{ID: id}
		ud.VoiceChanged = ou.Voice != nu.Voice
		ud.FlavorChanged = ou.Flavor != nu.Flavor
		if ud.VoiceChanged || ud.FlavorChanged {
			d.UserChanges = append(d.UserChanges, ud)
		}
	}
	for id := range oldUsers {
		if _, ok := newUsers[id]; !ok {
			d.UserChanges = append(d.UserChanges, UserDiff{ID: id, Removed: true})
		}
	}
	d.UsersChanged = len(d.UserChanges) > 0

	d.GuildsChanged = guildsDiffer(old.Guilds, new.Guilds)

	return d
}

func guildsDiffer(old, new []GuildConfig) bool {
	if len(old) != len(new) {
		return true
	}
	byID := make(map[string]*GuildConfig, len(old))
	for i := range old {
		byID[old[i].GuildID] = &old[i]
	}
	for i := range new {
		og, ok := byID[new[i].GuildID]
		if !ok {
			return true
		}
		if len(og.ListenChannels) != len(new[i].ListenChannels) {
			return true
		}
		for j := range og.ListenChannels {
			if og.ListenChannels[j] != new[i].ListenChannels[j] {
				return true
			}
		}
	}
	return false
}
