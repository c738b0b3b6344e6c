// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to return controlled audio to consumers and to verify that the
// correct VoiceProfile and text are passed to the TTS backend.
//
// Example:
//
//	p := &mock.Provider{
//	    Clip: audio.Clip{Data: pcm, Format: audio.SpeechFormat},
//	}
//	clip, _ := p.Synthesize(ctx, "You ordered: Fries.", voice)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/ordervox/pkg/audio"
	"github.com/MrWong99/ordervox/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
	// Voice is the VoiceProfile passed to Synthesize.
	Voice tts.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Clip is returned by every successful Synthesize call. When its format is
	// unset, a 16 kHz mono clip of two silent samples is returned instead.
	Clip audio.Clip

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns Clip, SynthesizeErr.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (audio.Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text, Voice: voice})
	if p.SynthesizeErr != nil {
		return audio.Clip{}, p.SynthesizeErr
	}
	if !p.Clip.Valid() {
		return audio.Clip{Data: make([]byte, 4), Format: audio.SpeechFormat}, nil
	}
	return p.Clip, nil
}

// Texts returns the text of every Synthesize call so far. Thread-safe.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.SynthesizeCalls))
	for i, c := range p.SynthesizeCalls {
		out[i] = c.Text
	}
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
