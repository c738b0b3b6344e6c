// Package speech adapts the speech providers to the ports of an ordering
// session.
//
// A [Transcriber] turns one captured clip into text and reports failures
// with the session's error taxonomy, so the aggregator can tell a silent
// customer from a broken backend. A [Voice] renders prompts through a TTS
// provider and hands the audio to a [Sink].
package speech

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/ordervox/internal/observe"
	"github.com/MrWong99/ordervox/internal/resilience"
	"github.com/MrWong99/ordervox/internal/session"
	"github.com/MrWong99/ordervox/pkg/audio"
	"github.com/MrWong99/ordervox/pkg/provider/stt"
)

// DefaultTranscribeTimeout bounds a single transcription call.
const DefaultTranscribeTimeout = 15 * time.Second

// TranscriberOption configures a [Transcriber].
type TranscriberOption func(*Transcriber)

// WithTranscribeTimeout bounds each call. Zero or negative disables the
// local timeout.
func WithTranscribeTimeout(d time.Duration) TranscriberOption {
	return func(t *Transcriber) { t.timeout = d }
}

// WithLanguage sets the BCP-47 language passed to the provider.
func WithLanguage(lang string) TranscriberOption {
	return func(t *Transcriber) { t.language = lang }
}

// WithHints sets the vocabulary hints passed to the provider, typically the
// menu item names.
func WithHints(hints []string) TranscriberOption {
	return func(t *Transcriber) { t.hints = slices.Clone(hints) }
}

// WithSTTMetrics records latency and request counts to m.
func WithSTTMetrics(m *observe.Metrics) TranscriberOption {
	return func(t *Transcriber) { t.metrics = m }
}

// WithProviderName sets the provider label used in metrics and logs.
func WithProviderName(name string) TranscriberOption {
	return func(t *Transcriber) { t.name = name }
}

// Transcriber turns captured audio into text. It is safe for concurrent use.
type Transcriber struct {
	provider stt.Provider
	name     string
	timeout  time.Duration
	language string
	hints    []string
	metrics  *observe.Metrics
}

// NewTranscriber wraps p.
func NewTranscriber(p stt.Provider, opts ...TranscriberOption) *Transcriber {
	t := &Transcriber{
		provider: p,
		name:     "stt",
		timeout:  DefaultTranscribeTimeout,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// WithMenu returns a copy of t that passes names as hints. Sessions call it
// with the menu snapshot they captured at start.
func (t *Transcriber) WithMenu(names []string) *Transcriber {
	c := *t
	c.hints = slices.Clone(names)
	return &c
}

// Hints returns the configured vocabulary hints.
func (t *Transcriber) Hints() []string { return slices.Clone(t.hints) }

// Transcribe returns the transcript text of clip followed by any alternative
// hypotheses.
//
// Errors wrap one of [session.ErrNoSpeech], [session.ErrTimeout],
// [session.ErrTransientIO] or [session.ErrTranscription]. Cancellation of ctx
// itself is returned as ctx.Err() so the session ends instead of retrying.
func (t *Transcriber) Transcribe(ctx context.Context, clip audio.Clip) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := clip.Validate(); err != nil {
		return nil, fmt.Errorf("speech: transcribe: %w: %w", session.ErrTranscription, err)
	}
	if clip.Empty() {
		return nil, fmt.Errorf("speech: transcribe: %w", session.ErrNoSpeech)
	}

	callCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	tr, err := t.provider.Transcribe(callCtx, stt.Request{
		Clip:     clip,
		Language: t.language,
		Hints:    t.hints,
	})
	t.record(ctx, time.Since(start), err)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		mapped := classify(err)
		observe.Logger(ctx).Debug("transcription failed", "provider", t.name, "err", err)
		return nil, fmt.Errorf("speech: transcribe: %w: %w", mapped, err)
	}

	texts := tr.Texts()
	if len(texts) == 0 {
		return nil, fmt.Errorf("speech: transcribe: %w", session.ErrNoSpeech)
	}
	return texts, nil
}

func (t *Transcriber) record(ctx context.Context, d time.Duration, err error) {
	if t.metrics == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	status := "ok"
	switch {
	case err == nil, errors.Is(err, stt.ErrNoSpeech):
	case errors.Is(err, context.Canceled):
		status = "cancelled"
	default:
		status = "error"
		t.metrics.RecordProviderError(ctx, t.name, "stt")
	}
	t.metrics.STTDuration.Record(ctx, d.Seconds(), metric.WithAttributes(observe.Attr("provider", t.name)))
	t.metrics.RecordProviderRequest(ctx, t.name, "stt", status)
}

// classify maps a provider error to the session taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, stt.ErrNoSpeech):
		return session.ErrNoSpeech
	case errors.Is(err, context.DeadlineExceeded):
		return session.ErrTimeout
	case errors.Is(err, stt.ErrUnavailable),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, resilience.ErrAllFailed):
		return session.ErrTransientIO
	default:
		return session.ErrTranscription
	}
}
