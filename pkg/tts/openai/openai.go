// Package openai provides a Synthesizer backed by the OpenAI speech API.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/quillback/towncrier/pkg/tts"
)

// DefaultModel is the default OpenAI speech model.
const DefaultModel = "gpt-4o-mini-tts"

// voiceNames lists the voices the speech API accepts. The API has no
// enumeration endpoint, so this is maintained by hand.
var voiceNames = []string{
	"alloy", "ash", "ballad", "coral", "echo", "fable",
	"nova", "onyx", "sage", "shimmer", "verse",
}

// Ensure Provider implements the tts.Synthesizer interface.
var _ tts.Synthesizer = (*Provider)(nil)

// Provider implements tts.Synthesizer using the OpenAI speech endpoint.
type Provider struct {
	client oai.Client
	model  string
	format tts.Format
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	format  tts.Format
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithFormat selects the clip container format. FormatMP3 (the default)
// requests "mp3"; FormatOgg requests "opus", which the API delivers in an
// Ogg container.
func WithFormat(f tts.Format) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI speech Provider.
// If model is empty, DefaultModel is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{format: tts.FormatMP3}
	for _, o := range opts {
		o(cfg)
	}
	if !cfg.format.IsValid() {
		return nil, fmt.Errorf("openai tts: unsupported clip format %q", cfg.format)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  model,
		format: cfg.format,
	}, nil
}

// Synthesize implements tts.Synthesizer. The returned clip streams the HTTP
// response body directly; the caller must close it.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Clip, error) {
	if req.Text == "" {
		return nil, nil
	}
	if req.Voice == "" {
		return nil, fmt.Errorf("openai tts: voice must not be empty")
	}

	params := oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Input:          req.Text,
		Voice:          oai.AudioSpeechNewParamsVoice(req.Voice),
		ResponseFormat: responseFormat(p.format),
	}
	if req.Instructions != "" {
		params.Instructions = oai.String(req.Instructions)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tts: synthesize: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("openai tts: synthesize: status %d: %s", resp.StatusCode, body)
	}

	return &tts.Clip{Audio: resp.Body, Format: p.format}, nil
}

// Voices implements tts.Synthesizer.
func (p *Provider) Voices(_ context.Context) ([]string, error) {
	out := make([]string, len(voiceNames))
	copy(out, voiceNames)
	return out, nil
}

// Name implements tts.Synthesizer.
func (p *Provider) Name() string { return "openai" }

// responseFormat maps a clip format to the API's response_format value.
func responseFormat(f tts.Format) oai.AudioSpeechNewParamsResponseFormat {
	if f == tts.FormatOgg {
		return oai.AudioSpeechNewParamsResponseFormatOpus
	}
	return oai.AudioSpeechNewParamsResponseFormatMP3
}
