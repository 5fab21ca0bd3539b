// Package textprep prepares raw Discord message content for speech
// synthesis: mention/emoji/URL stripping and extraction of leading style
// instructions.
package textprep

import (
	"regexp"
	"strings"
)

var (
	userMentionRe    = regexp.MustCompile(`<@!?(\d+)>`)
	roleMentionRe    = regexp.MustCompile(`<@&(\d+)>`)
	channelMentionRe = regexp.MustCompile(`<#(\d+)>`)
	customEmojiRe    = regexp.MustCompile(`<a?:(\w+):\d+>`)
	urlRe            = regexp.MustCompile(`https?://\S+`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// Names resolves mention IDs to speakable names. Missing entries fall back
// to a generic word rather than reading the raw snowflake aloud.
type Names struct {
	// Users maps user ID to display name.
	Users map[string]string

	// Roles maps role ID to role name.
	Roles map[string]string

	// Channels maps channel ID to channel name.
	Channels map[string]string
}

// Sanitize converts raw Discord message content into plain speakable text.
// User/role/channel mentions become names, custom emoji tags become their
// emoji name, URLs are dropped entirely, and whitespace is collapsed.
// The result may be empty; callers must not synthesize empty text.
func Sanitize(content string, names Names) string {
	s := userMentionRe.ReplaceAllStringFunc(content, func(m string) string {
		id := userMentionRe.FindStringSubmatch(m)[1]
		if n, ok := names.Users[id]; ok && n != "" {
			return n
		}
		return "someone"
	})
	s = roleMentionRe.ReplaceAllStringFunc(s, func(m string) string {
		id := roleMentionRe.FindStringSubmatch(m)[1]
		if n, ok := names.Roles[id]; ok && n != "" {
			return n
		}
		return "everyone"
	})
	s = channelMentionRe.ReplaceAllStringFunc(s, func(m string) string {
		id := channelMentionRe.FindStringSubmatch(m)[1]
		if n, ok := names.Channels[id]; ok && n != "" {
			return n
		}
		return "another channel"
	})
	s = customEmojiRe.ReplaceAllString(s, "$1")
	s = urlRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
