// Package resilience provides failover across speech synthesis backends.
//
// [Breaker] is a three-state circuit breaker (closed → open → half-open)
// that stops a failing backend from being hammered on every message.
// [Failover] composes a primary synthesizer with ordered fallbacks, each
// guarded by its own breaker.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is open and the
// cooldown has not yet elapsed.
var ErrOpen = errors.New("breaker open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig tunes a [Breaker]. Zero values get defaults suited to a
// synthesis backend: a handful of failures trips it, and it probes again
// after a cooldown long enough for a transient API outage to pass.
type BreakerConfig struct {
	// Name labels the breaker in log output, typically the backend name.
	Name string

	// Threshold is the number of consecutive failures that opens the
	// breaker. Default: 3.
	Threshold int

	// Cooldown is how long the breaker stays open before allowing a probe.
	// Default: 30s.
	Cooldown time.Duration

	// ProbeBudget is how many successful probes the half-open state needs
	// before closing. Default: 2.
	ProbeBudget int
}

// Breaker is a circuit breaker safe for concurrent use.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	budget    int

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
	probes   int
}

// NewBreaker creates a closed [Breaker] from cfg, applying defaults for
// zero-valued fields.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 2
	}
	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		budget:    cfg.ProbeBudget,
	}
}

// Do runs fn unless the breaker is open. In the open state it returns
// [ErrOpen] without calling fn; after the cooldown one call at a time is
// let through as a probe.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.observe(err)
	return err
}

// admit decides whether a call may proceed and advances open → half-open
// when the cooldown has elapsed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen {
		if time.Since(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.state = stateHalfOpen
		b.probes = 0
		slog.Info("breaker probing", "backend", b.name)
	}
	return nil
}

// observe records the outcome of an admitted call.
func (b *Breaker) observe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		if b.state == stateHalfOpen {
			// A failed probe reopens immediately.
			b.state = stateOpen
			b.openedAt = time.Now()
			slog.Warn("breaker reopened", "backend", b.name)
			return
		}
		b.failures++
		if b.failures >= b.threshold {
			b.state = stateOpen
			b.openedAt = time.Now()
			slog.Warn("breaker opened",
				"backend", b.name, "failures", b.failures)
		}
		return
	}

	if b.state == stateHalfOpen {
		b.probes++
		if b.probes >= b.budget {
			b.state = stateClosed
			b.failures = 0
			slog.Info("breaker closed", "backend", b.name)
		}
		return
	}
	b.failures = 0
}

// Tripped reports whether the breaker currently rejects calls. A breaker
// whose cooldown has elapsed is not tripped: the next call is a probe.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen && time.Since(b.openedAt) < b.cooldown
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
	b.probes = 0
}
