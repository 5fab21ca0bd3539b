package config

import (
	"errors"
	"testing"

	"github.com/quillback/towncrier/pkg/tts"
	ttsmock "github.com/quillback/towncrier/pkg/tts/mock"
)

func TestRegistry_CreateTTS(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.RegisterTTS("mock", func(entry ProviderEntry) (tts.Synthesizer, error) {
		return &ttsmock.Synthesizer{}, nil
	})

	s, err := r.CreateTTS(ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateTTS: %v", err)
	}
	if s == nil {
		t.Fatal("CreateTTS returned nil synthesizer")
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	_, err := r.CreateTTS(ProviderEntry{Name: "nope"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
}
