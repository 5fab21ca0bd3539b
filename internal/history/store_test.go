package history

import (
	"context"
	"testing"
	"time"
)

func TestNopRecorder(t *testing.T) {
	t.Parallel()
	var r Recorder = NopRecorder{}
	err := r.Record(context.Background(), Entry{
		GuildID:  "g1",
		UserID:   "u1",
		Text:     "hello",
		SpokenAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	r.Close()
}

func TestNewPostgresRecorder_BadDSN(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := NewPostgresRecorder(ctx, "not a dsn"); err == nil {
		t.Fatal("expected error for malformed dsn")
	}
}
