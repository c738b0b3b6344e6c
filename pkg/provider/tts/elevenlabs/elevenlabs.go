// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs REST text-to-speech API. It implements the tts.Provider
// interface and requests raw 16-bit PCM so that no decoder is needed.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/ordervox/pkg/audio"
	"github.com/MrWong99/ordervox/pkg/provider/tts"
)

const (
	defaultBaseURL   = "https://api.elevenlabs.io"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_16000"
	defaultTimeout   = 30 * time.Second
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the PCM output format (e.g., "pcm_16000", "pcm_24000").
// Only pcm_* formats are supported.
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithBaseURL overrides the API base URL. Used by tests and proxies.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements tts.Provider backed by the ElevenLabs REST API.
type Provider struct {
	apiKey       string
	baseURL      string
	model        string
	outputFormat string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	if _, err := sampleRateOf(p.outputFormat); err != nil {
		return nil, err
	}
	return p, nil
}

// synthesisRequest is the JSON body of POST /v1/text-to-speech/{voice_id}.
type synthesisRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id,omitempty"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// Synthesize implements [tts.Provider].
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (audio.Clip, error) {
	if voice.ID == "" {
		return audio.Clip{}, errors.New("elevenlabs: voice.ID must not be empty")
	}
	if strings.TrimSpace(text) == "" {
		return audio.Clip{}, errors.New("elevenlabs: text must not be empty")
	}

	body, err := buildRequestBody(text, p.model, voice)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("elevenlabs: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(voice.ID), bytes.NewReader(body))
	if err != nil {
		return audio.Clip{}, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return audio.Clip{}, fmt.Errorf("elevenlabs: synthesize: %w", ctx.Err())
		}
		return audio.Clip{}, fmt.Errorf("elevenlabs: synthesize: %w: %w", tts.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("elevenlabs: synthesize: unexpected status %d: %s", resp.StatusCode, errorDetail(resp.Body))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			err = fmt.Errorf("%w: %w", tts.ErrUnavailable, err)
		}
		return audio.Clip{}, err
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("elevenlabs: read audio: %w: %w", tts.ErrUnavailable, err)
	}
	rate, _ := sampleRateOf(p.outputFormat)
	clip := audio.Clip{Data: pcm, Format: audio.Format{SampleRate: rate, Channels: 1}}
	if err := clip.Validate(); err != nil {
		return audio.Clip{}, fmt.Errorf("elevenlabs: %w", err)
	}
	return clip, nil
}

// endpoint builds the synthesis URL for voiceID.
func (p *Provider) endpoint(voiceID string) string {
	q := url.Values{"output_format": {p.outputFormat}}
	return p.baseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "?" + q.Encode()
}

// ---- helpers ----

// buildRequestBody constructs the JSON body for one synthesis call.
func buildRequestBody(text, model string, voice tts.VoiceProfile) ([]byte, error) {
	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	if voice.SpeedFactor > 0 {
		vs.Speed = voice.SpeedFactor
	}
	return json.Marshal(synthesisRequest{Text: text, ModelID: model, VoiceSettings: vs})
}

// sampleRateOf parses the sample rate out of a pcm_<rate> output format.
func sampleRateOf(format string) (int, error) {
	rate, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("elevenlabs: unsupported output format %q", format)
	}
	n, err := strconv.Atoi(rate)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("elevenlabs: unsupported output format %q", format)
	}
	return n, nil
}

// errorDetail extracts the message from an ElevenLabs error body, falling
// back to the raw text.
func errorDetail(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 1024))
	var body struct {
		Detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail.Message != "" {
		return body.Detail.Message
	}
	return strings.TrimSpace(string(raw))
}
