package resilience

import (
	"context"

	"github.com/MrWong99/ordervox/pkg/audio"
	"github.com/MrWong99/ordervox/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
// Context cancellation is never counted as a backend failure unless
// cfg.IsFailure says otherwise.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return !isContextErr(err) }
	}
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Status reports the breaker state of every backend.
func (f *TTSFallback) Status() []EntryStatus { return f.group.Status() }

// Synthesize renders text with the first healthy provider.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (audio.Clip, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (audio.Clip, error) {
		return p.Synthesize(ctx, text, voice)
	})
}
