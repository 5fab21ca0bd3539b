package voice

import (
	"context"
	"log/slog"
	"sync"

	"github.com/quillback/towncrier/internal/observe"
)

// LinkSource yields the live link for a guild, if one exists. Implemented
// by Manager.
type LinkSource interface {
	Link(guildID string) (Link, bool)
}

// ClipPlayer runs the transcode/transmit operation for one clip on one
// link. Implemented by Pipeline; faked in tests.
type ClipPlayer interface {
	Play(ctx context.Context, link Link, clip *Clip) error
}

// Player owns one delivery queue per guild and guarantees strict FIFO
// playback with at most one active transcode/transmit operation per guild.
// Different guilds drain fully in parallel.
//
// Player is safe for concurrent use.
type Player struct {
	links    LinkSource
	pipeline ClipPlayer
	metrics  *observe.Metrics

	mu     sync.Mutex
	queues map[string]*queue

	// wg tracks running drain loops for Wait.
	wg sync.WaitGroup
}

// NewPlayer creates a Player delivering clips through pipeline onto links
// from source.
func NewPlayer(source LinkSource, pipeline ClipPlayer, metrics *observe.Metrics) *Player {
	return &Player{
		links:    source,
		pipeline: pipeline,
		metrics:  metrics,
		queues:   make(map[string]*queue),
	}
}

// Submit appends a clip to the guild's queue. When the queue transitions
// from idle to non-empty this starts the guild's drain loop; otherwise the
// already-running loop will reach the clip in FIFO order.
func (p *Player) Submit(ctx context.Context, guildID string, clip *Clip) {
	q := p.queue(guildID)
	p.metrics.AddQueueDepth(ctx, 1)
	if q.enqueue(clip) {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.drain(ctx, guildID, q)
		}()
	}
}

// QueueDepth returns the number of clips pending for a guild. Used by the
// introspection command.
func (p *Player) QueueDepth(guildID string) int {
	return p.queue(guildID).depth()
}

// Wait blocks until all drain loops have exited. Called during shutdown
// after event intake has stopped.
func (p *Player) Wait() {
	p.wg.Wait()
}

func (p *Player) queue(guildID string) *queue {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.queues[guildID]
	if !ok {
		q = &queue{}
		p.queues[guildID] = q
	}
	return q
}

// drain processes the guild's queue to empty, one clip at a time. A clip
// only plays while a voice connection exists; without one it is dropped
// rather than buffered forever. Per-clip failures are logged and never
// stall the loop.
func (p *Player) drain(ctx context.Context, guildID string, q *queue) {
	for {
		clip := q.next()
		if clip == nil {
			return
		}

		if link, ok := p.links.Link(guildID); ok {
			if err := p.pipeline.Play(ctx, link, clip); err != nil {
				slog.Warn("voice: clip playback failed", "guild_id", guildID, "err", err)
				p.metrics.CountClip(ctx, observe.ClipFailed)
			} else {
				p.metrics.CountClip(ctx, observe.ClipPlayed)
			}
		} else {
			slog.Debug("voice: no connection, dropping clip", "guild_id", guildID)
			p.metrics.CountClip(ctx, observe.ClipDropped)
		}

		clip.Audio.Close()
		q.pop()
		p.metrics.AddQueueDepth(ctx, -1)
	}
}
