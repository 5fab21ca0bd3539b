// Package tts defines the Synthesizer interface for text-to-speech backends.
//
// A synthesizer wraps a speech synthesis service (e.g., the OpenAI speech API
// or ElevenLabs) and returns one encoded audio clip per request, together with
// the container format the clip was encoded in. The playback pipeline forwards
// that format tag to the decoder unchanged, so implementations must report it
// accurately.
//
// Implementations must be safe for concurrent use — clips for different
// guilds are synthesized in parallel.
package tts

import (
	"context"
	"io"
)

// Format identifies the container format of a synthesized clip. Exactly two
// formats exist; the decoder rejects anything else.
type Format string

const (
	// FormatMP3 is an MPEG audio stream.
	FormatMP3 Format = "mp3"

	// FormatOgg is an Ogg container (Opus or Vorbis payload).
	FormatOgg Format = "ogg"
)

// IsValid reports whether f is a recognised clip format.
func (f Format) IsValid() bool {
	return f == FormatMP3 || f == FormatOgg
}

// Request describes a single synthesis call.
type Request struct {
	// Text is the sanitized text to speak. Must be non-empty.
	Text string

	// Voice is the provider-specific voice name (e.g., "onyx").
	Voice string

	// Instructions is an optional free-text style directive ("whisper",
	// "sound excited"). Providers that cannot apply instructions ignore it.
	Instructions string
}

// Clip is a synthesized audio clip ready for transcoding. The receiver owns
// Audio and must close it exactly once.
type Clip struct {
	// Audio streams the encoded clip bytes.
	Audio io.ReadCloser

	// Format is the container format of Audio.
	Format Format
}

// Synthesizer is the abstraction over any TTS backend.
type Synthesizer interface {
	// Synthesize converts req.Text into an audio clip. A (nil, nil) return
	// means the provider declined to produce audio for this input (e.g.,
	// text reduced to nothing after provider-side filtering); callers must
	// treat that as "nothing to play", not as an error.
	Synthesize(ctx context.Context, req Request) (*Clip, error)

	// Voices returns the voice names accepted by this provider, or an error
	// if the catalogue cannot be retrieved. An empty slice with a nil error
	// means the provider cannot enumerate voices ahead of time.
	Voices(ctx context.Context) ([]string, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}
