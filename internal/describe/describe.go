// Package describe produces spoken-word augmentations for messages: short
// descriptions of attachments and style-instruction rewriting from a user's
// standing flavor prompt. All calls are best-effort; on any failure the
// caller speaks the plain message text.
package describe

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
)

// Completer abstracts one-shot LLM completion. Satisfied by the any-llm
// adapter in production and faked in tests.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Attachment is the minimal view of a message attachment needed for a
// spoken description.
type Attachment struct {
	Filename    string
	ContentType string
}

// Describer turns attachments and flavor prompts into speech-ready text.
type Describer struct {
	completer Completer
}

// New creates a Describer backed by the named LLM provider.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq", "llamacpp", "llamafile". model selects the
// specific model. opts are any-llm-go options (e.g., anyllmlib.WithAPIKey);
// without an API key option the provider reads its usual environment
// variable.
func New(providerName, model string, opts ...anyllmlib.Option) (*Describer, error) {
	if providerName == "" {
		return nil, fmt.Errorf("describe: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("describe: model must not be empty")
	}
	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("describe: create %q backend: %w", providerName, err)
	}
	return &Describer{completer: &anyllmCompleter{backend: backend, model: model}}, nil
}

// NewWithCompleter creates a Describer over an existing Completer. Used in
// tests.
func NewWithCompleter(c Completer) *Describer {
	return &Describer{completer: c}
}

const attachmentSystemPrompt = `You narrate Discord messages aloud. Given a list of file attachments, reply with one short spoken sentence describing what was sent, suitable for text-to-speech. No markdown, no quotes, no preamble.`

// Attachments returns a one-sentence spoken description of the given
// attachments, e.g. "sent a photo called sunset.jpg". Returns "" without
// error when there is nothing to describe.
func (d *Describer) Attachments(ctx context.Context, atts []Attachment) (string, error) {
	if len(atts) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Attachments:\n")
	for _, a := range atts {
		fmt.Fprintf(&b, "- %s (%s)\n", a.Filename, a.ContentType)
	}

	out, err := d.completer.Complete(ctx, attachmentSystemPrompt, b.String())
	if err != nil {
		return "", fmt.Errorf("describe: attachments: %w", err)
	}
	return strings.TrimSpace(out), nil
}

const flavorSystemPrompt = `You write voice-direction prompts for a text-to-speech engine. Merge the user's standing style and the per-message direction into one short instruction describing how the line should be delivered. Reply with the instruction only.`

// Instructions merges a user's standing flavor prompt with per-message
// style instructions into a single TTS direction. Either input may be
// empty; when both are, it returns "" without calling the model. When the
// model call fails the raw inputs are still usable by the caller.
func (d *Describer) Instructions(ctx context.Context, flavor, perMessage string) (string, error) {
	flavor = strings.TrimSpace(flavor)
	perMessage = strings.TrimSpace(perMessage)
	switch {
	case flavor == "" && perMessage == "":
		return "", nil
	case flavor == "":
		return perMessage, nil
	case perMessage == "":
		return flavor, nil
	}

	user := fmt.Sprintf("Standing style: %s\nThis message: %s", flavor, perMessage)
	out, err := d.completer.Complete(ctx, flavorSystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("describe: instructions: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// anyllmCompleter adapts an any-llm-go provider to the Completer interface.
type anyllmCompleter struct {
	backend anyllmlib.Provider
	model   string
}

func (c *anyllmCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	params := anyllmlib.CompletionParams{
		Model: c.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: system},
			{Role: anyllmlib.RoleUser, Content: user},
		},
	}
	resp, err := c.backend.Completion(ctx, params)
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return resp.Choices[0].Message.ContentString(), nil
}

// createBackend creates the underlying any-llm-go provider for the given
// provider name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}
