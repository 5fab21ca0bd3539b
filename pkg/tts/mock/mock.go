// Package mock provides a hand-written tts.Synthesizer test double with
// call recording.
package mock

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/quillback/towncrier/pkg/tts"
)

// Ensure Synthesizer implements the interface.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// Synthesizer is a configurable mock implementation of tts.Synthesizer.
// The zero value returns a short MP3-tagged clip for any request.
type Synthesizer struct {
	mu sync.Mutex

	// Calls records every Synthesize request in order.
	Calls []tts.Request

	// Err, when non-nil, is returned by Synthesize.
	Err error

	// Decline, when true, makes Synthesize return (nil, nil).
	Decline bool

	// Format overrides the clip format (default FormatMP3).
	Format tts.Format

	// Audio overrides the clip payload (default "mock audio").
	Audio string

	// VoiceList is returned by Voices.
	VoiceList []string
}

// Synthesize implements tts.Synthesizer.
func (m *Synthesizer) Synthesize(_ context.Context, req tts.Request) (*tts.Clip, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	err := m.Err
	decline := m.Decline
	format := m.Format
	audio := m.Audio
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if decline {
		return nil, nil
	}
	if format == "" {
		format = tts.FormatMP3
	}
	if audio == "" {
		audio = "mock audio"
	}
	return &tts.Clip{
		Audio:  io.NopCloser(strings.NewReader(audio)),
		Format: format,
	}, nil
}

// Voices implements tts.Synthesizer.
func (m *Synthesizer) Voices(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.VoiceList...), nil
}

// Name implements tts.Synthesizer.
func (m *Synthesizer) Name() string { return "mock" }

// CallCount returns the number of Synthesize calls recorded so far.
func (m *Synthesizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
