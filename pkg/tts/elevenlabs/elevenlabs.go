// Package elevenlabs provides a Synthesizer backed by the ElevenLabs
// streaming WebSocket API. Audio arrives as base64 MP3 chunks over the
// socket and is exposed to the caller as a single streaming clip.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/coder/websocket"

	"github.com/quillback/towncrier/pkg/tts"
)

const (
	wsEndpointFmt  = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"
	voicesEndpoint = "https://api.elevenlabs.io/v1/voices"
	defaultModel   = "eleven_flash_v2_5"
	outputFormat   = "mp3_44100_128"
)

// Ensure Provider implements the tts.Synthesizer interface.
var _ tts.Synthesizer = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithHTTPClient overrides the HTTP client used for REST calls (voice listing).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Synthesizer backed by the ElevenLabs streaming API.
// Voice names in requests are resolved against the account's voice catalogue.
type Provider struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- WebSocket message types ----

// boiMessage is the initial "begin of input" handshake payload.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

// textMessage carries one text fragment; an empty Text flushes the stream.
type textMessage struct {
	Text string `json:"text"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is a message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded MP3
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// Synthesize implements tts.Synthesizer. It opens a WebSocket, sends the full
// text followed by a flush, and streams the returned MP3 chunks through an
// in-process pipe so playback can begin before synthesis completes.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Clip, error) {
	if req.Text == "" {
		return nil, nil
	}
	voiceID, err := p.resolveVoice(ctx, req.Voice)
	if err != nil {
		return nil, err
	}

	wsURL := fmt.Sprintf(wsEndpointFmt, voiceID, p.model, outputFormat)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}

	boi := boiMessage{
		Text: " ", // the API requires a non-empty first text value
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
		XiAPIKey: p.apiKey,
	}
	if err := writeJSON(ctx, conn, boi); err != nil {
		conn.Close(websocket.StatusInternalError, "handshake failed")
		return nil, fmt.Errorf("elevenlabs: send handshake: %w", err)
	}
	if err := writeJSON(ctx, conn, textMessage{Text: req.Text + " "}); err != nil {
		conn.Close(websocket.StatusInternalError, "send failed")
		return nil, fmt.Errorf("elevenlabs: send text: %w", err)
	}
	// Empty text closes the input side and flushes remaining audio.
	if err := writeJSON(ctx, conn, textMessage{}); err != nil {
		conn.Close(websocket.StatusInternalError, "flush failed")
		return nil, fmt.Errorf("elevenlabs: flush: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "done")
		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				// A normal closure after the final chunk is expected.
				pw.Close()
				return
			}
			var resp audioResponse
			if err := json.Unmarshal(msg, &resp); err != nil {
				continue
			}
			if resp.Audio != "" {
				chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
				if err != nil {
					pw.CloseWithError(fmt.Errorf("elevenlabs: decode audio chunk: %w", err))
					return
				}
				if _, err := pw.Write(chunk); err != nil {
					return
				}
			}
			if resp.IsFinal {
				pw.Close()
				return
			}
		}
	}()

	return &tts.Clip{Audio: pr, Format: tts.FormatMP3}, nil
}

// Voices implements tts.Synthesizer. It returns the display names of all
// voices on the account.
func (p *Provider) Voices(ctx context.Context) ([]string, error) {
	voices, err := p.fetchVoices(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(voices))
	for _, v := range voices {
		names = append(names, v.Name)
	}
	return names, nil
}

// Name implements tts.Synthesizer.
func (p *Provider) Name() string { return "elevenlabs" }

// ---- voice catalogue ----

// voiceEntry is one voice in the /v1/voices response.
type voiceEntry struct {
	VoiceID string `json:"voice_id"`
	Name    string `json:"name"`
}

// voicesResponse is the /v1/voices response envelope.
type voicesResponse struct {
	Voices []voiceEntry `json:"voices"`
}

// resolveVoice maps a configured voice name to its provider voice ID. Names
// that already look like IDs (no catalogue match) are passed through so that
// configs may pin IDs directly.
func (p *Provider) resolveVoice(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", errors.New("elevenlabs: voice must not be empty")
	}
	voices, err := p.fetchVoices(ctx)
	if err != nil {
		return "", err
	}
	for _, v := range voices {
		if v.Name == name || v.VoiceID == name {
			return v.VoiceID, nil
		}
	}
	return name, nil
}

func (p *Provider) fetchVoices(ctx context.Context) ([]voiceEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, voicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build voices request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("elevenlabs: list voices: status %d: %s", resp.StatusCode, body)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read voices response: %w", err)
	}
	return parseVoicesResponse(data)
}

// parseVoicesResponse parses a raw JSON byte slice matching the ElevenLabs
// /v1/voices response. Split out for testing.
func parseVoicesResponse(data []byte) ([]voiceEntry, error) {
	var vr voicesResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: parse voices response: %w", err)
	}
	return vr.Voices, nil
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}
