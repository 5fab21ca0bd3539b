package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quillback/towncrier/pkg/tts"
)

// ErrAllBackendsFailed is returned when every backend in a [Failover] either
// failed or had its breaker open.
var ErrAllBackendsFailed = errors.New("all synthesis backends failed")

// backend pairs a synthesizer with its dedicated breaker.
type backend struct {
	synth   tts.Synthesizer
	breaker *Breaker
}

// Failover is a [tts.Synthesizer] that tries a primary backend first and
// falls back to secondaries in registration order. Each backend has its own
// [Breaker], so a dead primary is skipped outright until its cooldown passes.
//
// A backend declining a request (nil clip, nil error) is a decision, not a
// failure: the decline is returned as-is and no fallback is consulted.
//
// Failover is safe for concurrent use once assembled; Add must not be called
// after the first Synthesize.
type Failover struct {
	backends []backend
	cfg      BreakerConfig
}

var _ tts.Synthesizer = (*Failover)(nil)

// NewFailover creates a [Failover] with primary as the preferred backend.
// cfg seeds the breaker of every backend; the Name field is overwritten per
// backend.
func NewFailover(primary tts.Synthesizer, cfg BreakerConfig) *Failover {
	f := &Failover{cfg: cfg}
	f.Add(primary)
	return f
}

// Add appends a fallback backend. Fallbacks are tried in the order added.
func (f *Failover) Add(s tts.Synthesizer) {
	cfg := f.cfg
	cfg.Name = s.Name()
	f.backends = append(f.backends, backend{
		synth:   s,
		breaker: NewBreaker(cfg),
	})
}

// Synthesize implements [tts.Synthesizer]. It returns the first successful
// clip, skipping backends with open breakers.
func (f *Failover) Synthesize(ctx context.Context, req tts.Request) (*tts.Clip, error) {
	var lastErr error
	for _, be := range f.backends {
		var clip *tts.Clip
		err := be.breaker.Do(func() error {
			var synthErr error
			clip, synthErr = be.synth.Synthesize(ctx, req)
			return synthErr
		})
		if err == nil {
			return clip, nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("skipping synthesis backend", "backend", be.synth.Name())
		} else {
			slog.Warn("synthesis backend failed, trying next",
				"backend", be.synth.Name(), "err", err)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}

// Voices returns the voice catalogue of the primary backend. Fallbacks may
// offer different voices; configured voice names are validated against the
// primary only.
func (f *Failover) Voices(ctx context.Context) ([]string, error) {
	return f.backends[0].synth.Voices(ctx)
}

// Name identifies the chain, e.g. "openai+elevenlabs".
func (f *Failover) Name() string {
	names := make([]string, len(f.backends))
	for i, be := range f.backends {
		names[i] = be.synth.Name()
	}
	return strings.Join(names, "+")
}
