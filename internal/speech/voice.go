package speech

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/ordervox/internal/observe"
	"github.com/MrWong99/ordervox/internal/session"
	"github.com/MrWong99/ordervox/pkg/audio"
	"github.com/MrWong99/ordervox/pkg/provider/tts"
)

// Sink receives the spoken form of one prompt.
type Sink interface {
	Play(ctx context.Context, text string, clip audio.Clip) error
}

// VoiceOption configures a [Voice].
type VoiceOption func(*Voice)

// WithOutputFormat converts synthesised audio to f before it reaches the
// sink. The zero Format keeps the provider's output.
func WithOutputFormat(f audio.Format) VoiceOption {
	return func(v *Voice) { v.format = f }
}

// WithTTSMetrics records latency and request counts to m.
func WithTTSMetrics(m *observe.Metrics) VoiceOption {
	return func(v *Voice) { v.metrics = m }
}

// WithVoiceProviderName sets the provider label used in metrics and logs.
func WithVoiceProviderName(name string) VoiceOption {
	return func(v *Voice) { v.name = name }
}

// Voice renders prompts with a TTS provider. It is safe for concurrent use.
type Voice struct {
	provider tts.Provider
	profile  tts.VoiceProfile
	name     string
	format   audio.Format
	metrics  *observe.Metrics
}

// NewVoice wraps p speaking with profile.
func NewVoice(p tts.Provider, profile tts.VoiceProfile, opts ...VoiceOption) *Voice {
	v := &Voice{provider: p, profile: profile, name: "tts"}
	if profile.Provider != "" {
		v.name = profile.Provider
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Render synthesises text and converts it to the configured output format.
func (v *Voice) Render(ctx context.Context, text string) (audio.Clip, error) {
	start := time.Now()
	clip, err := v.provider.Synthesize(ctx, text, v.profile)
	v.record(ctx, time.Since(start), err)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("speech: synthesize: %w", err)
	}
	if v.format.Valid() && clip.Format != v.format {
		clip, err = audio.Convert(clip, v.format)
		if err != nil {
			return audio.Clip{}, fmt.Errorf("speech: synthesize: %w", err)
		}
	}
	return clip, nil
}

func (v *Voice) record(ctx context.Context, d time.Duration, err error) {
	if v.metrics == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		v.metrics.RecordProviderError(ctx, v.name, "tts")
	}
	v.metrics.TTSDuration.Record(ctx, d.Seconds(), metric.WithAttributes(observe.Attr("provider", v.name)))
	v.metrics.RecordProviderRequest(ctx, v.name, "tts", status)
}

// Speaker returns a [session.Speaker] that renders each prompt and plays it
// on sink. When rendering fails the text is still delivered with an empty
// clip, so a front end can fall back to showing it.
func (v *Voice) Speaker(sink Sink) session.Speaker {
	return &voiceSpeaker{voice: v, sink: sink}
}

type voiceSpeaker struct {
	voice *Voice
	sink  Sink
}

func (s *voiceSpeaker) Speak(ctx context.Context, text string) error {
	clip, err := s.voice.Render(ctx, text)
	if err != nil {
		observe.Logger(ctx).Warn("speech synthesis failed, sending text only", "err", err)
	}
	if perr := s.sink.Play(ctx, text, clip); perr != nil {
		return fmt.Errorf("speech: play: %w", perr)
	}
	return err
}
