package voice

import (
	"io"
	"sync"

	"github.com/quillback/towncrier/pkg/tts"
)

// Clip is one queued unit of playback for a guild.
type Clip struct {
	// Audio streams the encoded clip. The queue owns it from enqueue
	// until the pipeline takes over; whoever holds it last closes it.
	Audio io.ReadCloser

	// Format is the clip's container format, forwarded to the decoder
	// unchanged.
	Format tts.Format
}

// queue is an unbounded per-guild FIFO of pending clips. The draining flag
// enforces the at-most-one-active-drain invariant: Enqueue reports true
// exactly when the caller must start a drain loop, and next clears the flag
// under the same lock that observed emptiness, so a racing Enqueue either
// sees draining still set or takes over cleanly.
type queue struct {
	mu       sync.Mutex
	entries  []*Clip
	draining bool
}

// enqueue appends c and reports whether the caller must start draining.
func (q *queue) enqueue(c *Clip) (startDrain bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, c)
	if !q.draining {
		q.draining = true
		return true
	}
	return false
}

// next returns the head entry without removing it, or nil when the queue is
// empty — in which case the drain loop is released and must exit.
func (q *queue) next() *Clip {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		q.draining = false
		return nil
	}
	return q.entries[0]
}

// pop removes the head entry after the pipeline has finished with it.
func (q *queue) pop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) > 0 {
		q.entries[0] = nil
		q.entries = q.entries[1:]
	}
}

// depth returns the number of pending entries.
func (q *queue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
