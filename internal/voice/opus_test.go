package voice

import (
	"context"
	"testing"
	"time"
)

func TestNewOpusWriter_TimesOutWhenLinkNeverReady(t *testing.T) {
	t.Parallel()
	link := &fakeLink{channelID: "c1", ready: false}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if _, err := NewOpusWriter(ctx, link); err == nil {
		t.Fatal("expected error for never-ready link")
	}
}

func TestNewOpusWriter_WaitsForHandshake(t *testing.T) {
	t.Parallel()
	link := &fakeLink{channelID: "c1", ready: false}

	go func() {
		time.Sleep(50 * time.Millisecond)
		link.setReady(true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	w, err := NewOpusWriter(ctx, link)
	if err != nil {
		t.Fatalf("NewOpusWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpusWriter_ChunksWholeFrames(t *testing.T) {
	t.Parallel()
	link := &fakeLink{channelID: "c1", ready: true}

	w, err := NewOpusWriter(context.Background(), link)
	if err != nil {
		t.Fatalf("NewOpusWriter: %v", err)
	}

	// Two and a half frames of silence, written in uneven slices.
	pcm := make([]byte, opusFrameBytes*2+opusFrameBytes/2)
	for len(pcm) > 0 {
		n := 1000
		if n > len(pcm) {
			n = len(pcm)
		}
		if _, err := w.Write(pcm[:n]); err != nil {
			t.Fatalf("Write: %v", err)
		}
		pcm = pcm[n:]
	}

	if got := link.frameCount(); got != 2 {
		t.Errorf("frames before flush = %d, want 2", got)
	}

	// Flush pads the trailing half frame and sends it.
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := link.frameCount(); got != 3 {
		t.Errorf("frames after flush = %d, want 3", got)
	}

	// A second flush with nothing buffered sends nothing.
	if err := w.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if got := link.frameCount(); got != 3 {
		t.Errorf("frames after empty flush = %d, want 3", got)
	}
}

func TestOpusWriter_SendsFollowCallerContext(t *testing.T) {
	t.Parallel()
	link := &fakeLink{channelID: "c1", ready: true}

	ctx, cancel := context.WithCancel(context.Background())
	w, err := NewOpusWriter(ctx, link)
	if err != nil {
		t.Fatalf("NewOpusWriter: %v", err)
	}

	// The handshake bound ends with construction; sends on the live caller
	// context must succeed no matter how long playback runs.
	frame := make([]byte, opusFrameBytes)
	if _, err := w.Write(frame); err != nil {
		t.Fatalf("Write on live context: %v", err)
	}
	if got := link.frameCount(); got != 1 {
		t.Fatalf("frames sent = %d, want 1", got)
	}

	// Cancelling the caller context stops further sends.
	cancel()
	if _, err := w.Write(frame); err == nil {
		t.Fatal("expected error writing after context cancel")
	}
}

func TestOpusWriter_CloseClearsSpeaking(t *testing.T) {
	t.Parallel()
	link := &fakeLink{channelID: "c1", ready: true}

	w, err := NewOpusWriter(context.Background(), link)
	if err != nil {
		t.Fatalf("NewOpusWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	link.mu.Lock()
	defer link.mu.Unlock()
	if len(link.speaking) != 1 || link.speaking[0] {
		t.Errorf("speaking calls = %v, want [false]", link.speaking)
	}
}

func TestBytesToInt16s(t *testing.T) {
	t.Parallel()
	in := []byte{0x01, 0x00, 0xFF, 0xFF, 0x00, 0x80}
	got := bytesToInt16s(in)
	want := []int16{1, -1, -32768}
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}
