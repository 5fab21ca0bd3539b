package follow

// SelectTarget returns the voice channel the bot should occupy for a guild,
// given the tracked presence of that guild's monitored users, or "" when the
// bot should not be in voice at all.
//
// Each channel scores one point per reachable (undeafened) monitored user in
// it. Channels scoring zero are discarded — a channel full of deafened users
// is as good as empty. Among the channels sharing the top score, the current
// channel wins if it is one of them (no hopping on exact ties); otherwise the
// lowest channel ID wins, which keeps the result deterministic for tests.
//
// SelectTarget performs no I/O and reads nothing but its arguments.
func SelectTarget(present []Presence, currentChannelID string) string {
	scores := make(map[string]int)
	for _, p := range present {
		if p.ChannelID == "" || !p.Reachable() {
			continue
		}
		scores[p.ChannelID]++
	}

	top := 0
	for _, n := range scores {
		if n > top {
			top = n
		}
	}
	if top == 0 {
		return ""
	}

	best := ""
	for ch, n := range scores {
		if n != top {
			continue
		}
		if ch == currentChannelID {
			return ch
		}
		if best == "" || ch < best {
			best = ch
		}
	}
	return best
}
