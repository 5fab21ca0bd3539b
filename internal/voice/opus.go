package voice

import (
	"context"
	"fmt"
	"time"

	"layeh.com/gopus"
)

// Discord voice uses 48 kHz stereo Opus at 20 ms frame size. The decode
// stage is pinned to matching PCM parameters.
const (
	opusSampleRate  = 48000
	opusChannels    = 2
	opusFrameSizeMs = 20
	// opusFrameSize is the number of samples per channel per 20 ms frame.
	opusFrameSize = opusSampleRate * opusFrameSizeMs / 1000 // 960

	// opusFrameBytes is the exact PCM input size for one Opus frame:
	// 960 samples/channel × 2 channels × 2 bytes/sample.
	opusFrameBytes = opusFrameSize * opusChannels * 2

	// maxOpusPacket is the encoder's output buffer size per frame.
	maxOpusPacket = 4000

	// readyPollInterval is how often the writer polls link readiness
	// while waiting for the voice handshake to complete.
	readyPollInterval = 100 * time.Millisecond

	// handshakeTimeout bounds the readiness wait during writer
	// construction. A wedged handshake fails the clip instead of hanging
	// the guild's drain loop.
	handshakeTimeout = 10 * time.Second
)

// OpusWriter adapts a Link into an io.Writer for s16le 48 kHz stereo PCM.
// Whole 20 ms frames are encoded to Opus and sent as they accumulate;
// Flush pads and sends any trailing partial frame.
//
// OpusWriter is not safe for concurrent use; the pipeline owns it for the
// duration of one clip.
type OpusWriter struct {
	ctx  context.Context
	link Link
	enc  *gopus.Encoder
	buf  []byte
}

// NewOpusWriter constructs the encoder sink for a clip. It waits for the
// link's voice handshake to complete before returning, bounded by
// handshakeTimeout. ctx spans the whole clip: every frame send selects on
// it, so it must outlive construction.
func NewOpusWriter(ctx context.Context, link Link) (*OpusWriter, error) {
	// The handshake bound must not leak into frame sends; it ends with
	// construction.
	readyCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	for !link.Ready() {
		select {
		case <-readyCtx.Done():
			return nil, fmt.Errorf("voice: link not ready: %w", readyCtx.Err())
		case <-time.After(readyPollInterval):
		}
	}

	enc, err := gopus.NewEncoder(opusSampleRate, opusChannels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("voice: create opus encoder: %w", err)
	}

	return &OpusWriter{ctx: ctx, link: link, enc: enc}, nil
}

// Write implements io.Writer. p is interleaved s16le PCM.
func (w *OpusWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for len(w.buf) >= opusFrameBytes {
		if err := w.sendFrame(w.buf[:opusFrameBytes]); err != nil {
			return 0, err
		}
		w.buf = w.buf[opusFrameBytes:]
	}
	return len(p), nil
}

// Flush pads any trailing partial frame with silence and sends it, so clip
// endings are not truncated.
func (w *OpusWriter) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	frame := make([]byte, opusFrameBytes)
	copy(frame, w.buf)
	w.buf = w.buf[:0]
	return w.sendFrame(frame)
}

// Close clears the speaking indicator. It does not close the link, which
// outlives individual clips.
func (w *OpusWriter) Close() error {
	return w.link.Speaking(false)
}

func (w *OpusWriter) sendFrame(pcm []byte) error {
	opus, err := w.enc.Encode(bytesToInt16s(pcm), opusFrameSize, maxOpusPacket)
	if err != nil {
		return fmt.Errorf("voice: opus encode: %w", err)
	}
	if err := w.link.Send(w.ctx, opus); err != nil {
		return fmt.Errorf("voice: send frame: %w", err)
	}
	return nil
}

// bytesToInt16s converts little-endian bytes to interleaved int16 samples.
func bytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
