// Package whisper provides a whisper.cpp-backed STT provider.
//
// It talks to a running whisper-server binary, which exposes a REST API at
// POST /inference. Each [stt.Request] clip is converted to 16 kHz mono,
// wrapped in a WAV container and uploaded as multipart/form-data. Menu hints
// are sent as the initial prompt, which biases the decoder towards the menu's
// spelling of items.
//
// Clips whose RMS energy stays below the silence threshold are rejected with
// [stt.ErrNoSpeech] without contacting the server.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("en"),
//	)
//	t, err := p.Transcribe(ctx, stt.Request{Clip: clip, Hints: menu.Names()})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/MrWong99/ordervox/pkg/audio"
	"github.com/MrWong99/ordervox/pkg/provider/stt"
)

const (
	// defaultRMSThreshold is the root-mean-square energy level (in 16-bit PCM
	// units) below which a clip is considered silent. The maximum possible
	// value for 16-bit audio is 32 767; 300 corresponds to near-silence.
	defaultRMSThreshold = 300.0

	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second

	// maxPromptRunes keeps the hint prompt well inside whisper's 224-token
	// prompt window.
	maxPromptRunes = 600
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// annotation matches the non-speech markers whisper emits, such as
// "[BLANK_AUDIO]" or "(music)".
var annotation = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with. This is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default language code sent to the whisper.cpp server
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithSilenceThreshold sets the RMS energy below which clips are rejected as
// silent. Zero disables the check.
func WithSilenceThreshold(rms float64) Option {
	return func(p *Provider) {
		p.silenceRMS = rms
	}
}

// WithHTTPClient replaces the default HTTP client, which has a 30 s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	silenceRMS float64
	httpClient *http.Client
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		silenceRMS: defaultRMSThreshold,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements [stt.Provider].
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", err)
	}
	if req.Clip.Empty() {
		return stt.Transcript{}, fmt.Errorf("whisper: empty clip: %w", stt.ErrNoSpeech)
	}

	clip, err := audio.ToSpeech(req.Clip)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: convert audio: %w", err)
	}
	if p.silenceRMS > 0 && clip.RMS() < p.silenceRMS {
		return stt.Transcript{}, fmt.Errorf("whisper: silent clip: %w", stt.ErrNoSpeech)
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}

	text, err := p.infer(ctx, clip, lang, hintPrompt(req.Hints))
	if err != nil {
		return stt.Transcript{}, err
	}
	text = cleanText(text)
	if text == "" {
		return stt.Transcript{}, fmt.Errorf("whisper: empty transcription: %w", stt.ErrNoSpeech)
	}
	return stt.Transcript{
		Text:     text,
		Language: lang,
		Duration: clip.Duration(),
	}, nil
}

// infer POSTs clip to the whisper.cpp /inference endpoint as
// multipart/form-data and returns the raw transcribed text.
func (p *Provider) infer(ctx context.Context, clip audio.Clip, language, prompt string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(audio.EncodeWAV(clip)); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	fields := []struct{ name, value string }{
		{"response_format", "json"},
		{"temperature", "0.0"},
		{"language", language},
		{"model", p.model},
		{"prompt", prompt},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := mw.WriteField(f.name, f.value); err != nil {
			return "", fmt.Errorf("whisper: write %s field: %w", f.name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("whisper: http request: %w", ctx.Err())
		}
		return "", fmt.Errorf("whisper: http request: %w: %w", stt.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			err = fmt.Errorf("%w: %w", stt.ErrUnavailable, err)
		}
		return "", err
	}

	var result struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("whisper: server error: %s", result.Error)
	}
	return result.Text, nil
}

// hintPrompt joins hints into a comma-separated prompt, truncated to
// maxPromptRunes at a hint boundary.
func hintPrompt(hints []string) string {
	var b strings.Builder
	n := 0
	for _, h := range hints {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		add := len([]rune(h))
		if b.Len() > 0 {
			add += 2
		}
		if n+add > maxPromptRunes {
			break
		}
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(h)
		n += add
	}
	return b.String()
}

// cleanText strips whisper's non-speech annotations and collapses
// whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(annotation.ReplaceAllString(s, " ")), " ")
}
