package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quillback/towncrier/internal/observe"
)

const (
	// DefaultFFmpegPath is used when no decoder path is configured.
	DefaultFFmpegPath = "ffmpeg"

	// decoderExitTimeout bounds the decoder process's exit after both
	// copy directions finish. On expiry the process is killed rather
	// than allowed to hang the drain loop.
	decoderExitTimeout = 30 * time.Second
)

// Ensure Pipeline implements the ClipPlayer interface.
var _ ClipPlayer = (*Pipeline)(nil)

// Pipeline decodes one clip through an external ffmpeg process into fixed
// s16le 48 kHz stereo PCM and streams it, Opus-encoded, onto a live link.
// Clips are processed strictly one at a time per guild by the Player; the
// Pipeline itself is stateless and safe for concurrent use across guilds.
type Pipeline struct {
	ffmpegPath string
	metrics    *observe.Metrics
}

// NewPipeline creates a Pipeline invoking the decoder at ffmpegPath
// (DefaultFFmpegPath when empty).
func NewPipeline(ffmpegPath string, metrics *observe.Metrics) *Pipeline {
	if ffmpegPath == "" {
		ffmpegPath = DefaultFFmpegPath
	}
	return &Pipeline{ffmpegPath: ffmpegPath, metrics: metrics}
}

// Play runs the transcode/transmit operation for one clip to completion.
// Any failure kills the decoder process and fails only this clip; the
// caller's drain loop carries on with the next entry.
func (p *Pipeline) Play(ctx context.Context, link Link, clip *Clip) error {
	if !clip.Format.IsValid() {
		return fmt.Errorf("voice: unknown clip format %q", clip.Format)
	}

	start := time.Now()

	cmd := exec.Command(p.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-f", string(clip.Format),
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", fmt.Sprint(opusSampleRate),
		"-ac", fmt.Sprint(opusChannels),
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("voice: decoder stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("voice: decoder stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("voice: launch decoder: %w", err)
	}

	kill := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}

	// The encoder sink bounds its own handshake wait; ctx passed here also
	// governs every frame send, so it must stay alive for the whole clip.
	writer, err := NewOpusWriter(ctx, link)
	if err != nil {
		kill()
		_ = cmd.Wait()
		return fmt.Errorf("voice: encoder setup: %w", err)
	}

	// Both pipe directions must run concurrently: the decoder's output
	// buffer can fill and deadlock its input side if only one direction
	// is serviced at a time.
	g := &errgroup.Group{}
	g.Go(func() error {
		defer stdin.Close()
		if _, err := io.Copy(stdin, clip.Audio); err != nil {
			return fmt.Errorf("feed decoder: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := io.Copy(writer, stdout); err != nil {
			// Kill the decoder so the feed direction cannot stay
			// blocked on a full pipe.
			kill()
			return fmt.Errorf("drain decoder: %w", err)
		}
		return nil
	})

	copyErr := g.Wait()
	waitErr := waitWithTimeout(cmd, decoderExitTimeout)

	var flushErr error
	if copyErr == nil && waitErr == nil {
		flushErr = writer.Flush()
	}
	if err := writer.Close(); err != nil {
		flushErr = errors.Join(flushErr, err)
	}

	if err := errors.Join(copyErr, waitErr, flushErr); err != nil {
		kill()
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return fmt.Errorf("voice: transcode: %w (decoder: %s)", err, msg)
		}
		return fmt.Errorf("voice: transcode: %w", err)
	}

	p.metrics.ObserveTranscode(ctx, time.Since(start))
	return nil
}

// waitWithTimeout waits for cmd to exit, killing it if the deadline passes.
func waitWithTimeout(cmd *exec.Cmd, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("decoder exit: %w", err)
		}
		return nil
	case <-time.After(timeout):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		return errors.New("decoder did not exit in time")
	}
}
