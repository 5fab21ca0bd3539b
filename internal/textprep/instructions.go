package textprep

import "strings"

// ExtractInstructions splits a leading parenthesized fragment off a message
// and returns it as a style instruction for the synthesizer, together with
// the remaining text.
//
//	"(whisper) it's a secret"  →  instructions "whisper", text "it's a secret"
//
// Only a fragment at the very start of the message counts, the parentheses
// must balance on the first closing one, and an empty fragment is ignored.
// Messages that are nothing but a parenthesized fragment keep their text
// unchanged — "(sigh)" is more likely an aside to be spoken than a directive.
func ExtractInstructions(text string) (instructions, remainder string) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "(") {
		return "", trimmed
	}
	end := strings.Index(trimmed, ")")
	if end < 0 {
		return "", trimmed
	}
	inst := strings.TrimSpace(trimmed[1:end])
	rest := strings.TrimSpace(trimmed[end+1:])
	if inst == "" || rest == "" {
		return "", trimmed
	}
	return inst, rest
}
