// Package session drives one customer's ordering conversation.
//
// An [Aggregator] repeats rounds of listen → recognise → confirm. Each
// round listens until at least one menu item is recognised, bounded by a
// per-round retry budget, adds the items to a running [order.Order] and asks
// the customer whether to continue. When the customer stops, the order is
// frozen, past orders are loaded from the history [order.Store], and
// co-occurrence recommendations are computed and spoken.
//
// The external collaborators are ports: a [Listener] produces transcribed
// text, a [Speaker] speaks text back, and a [Confirmer] decides whether to
// run another round. The recognition work itself is synchronous and never
// blocks; only the ports do.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/ordervox/internal/cooccur"
	"github.com/MrWong99/ordervox/internal/matcher"
	"github.com/MrWong99/ordervox/internal/observe"
	"github.com/MrWong99/ordervox/internal/order"
	"github.com/MrWong99/ordervox/internal/vocab"
)

// Listener supplies the transcription of one listening window. It may
// return several alternative or consecutive text strings.
//
// Failures should wrap [ErrNoSpeech], [ErrTimeout], [ErrTranscription] or
// [ErrTransientIO] when they are recoverable; any other error ends the
// session.
type Listener interface {
	Listen(ctx context.Context) ([]string, error)
}

// Speaker speaks text to the customer. Failures are logged by the caller and
// never end a session.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Confirmer asks whether the customer wants to order more. order holds the
// display names of everything ordered so far.
type Confirmer interface {
	Continue(ctx context.Context, order []string) (bool, error)
}

// Corrector rewrites transcribed text before it is scanned, typically to
// repair misheard menu items.
type Corrector interface {
	Correct(text string, v *vocab.Vocabulary) string
}

// Outcome describes how a session ended.
type Outcome string

const (
	// OutcomeCompleted means the customer declined to order more.
	OutcomeCompleted Outcome = "completed"

	// OutcomeRoundLimit means the session hit [Config.MaxRounds].
	OutcomeRoundLimit Outcome = "round_limit"

	// OutcomeMaxRetries means one round exhausted its retry budget.
	OutcomeMaxRetries Outcome = "max_retries"

	// OutcomeCancelled means the context was cancelled, typically because
	// the customer disconnected.
	OutcomeCancelled Outcome = "cancelled"

	// OutcomeFailed means a collaborator failed unrecoverably.
	OutcomeFailed Outcome = "failed"
)

// Result is the final state of a session. [Aggregator.Run] always returns a
// non-nil Result, also alongside an error.
type Result struct {
	SessionID string

	// Order is the frozen order in recognition order.
	Order []vocab.Phrase

	// Recommendations are ranked co-occurrence suggestions. Empty when the
	// history was unavailable or nothing scored.
	Recommendations []vocab.Phrase

	// Rounds is the number of rounds started.
	Rounds int

	// Misses counts listening attempts that recognised nothing.
	Misses int

	Outcome Outcome

	// HistoryErr records a history load or append failure. Such failures
	// degrade recommendations but do not fail the session.
	HistoryErr error
}

// Config bounds a session.
type Config struct {
	// MaxRounds caps the number of listen/confirm rounds. Default: 10.
	MaxRounds int

	// MaxRetriesPerRound is the number of additional listening attempts a
	// round gets after its first one recognised nothing. Default: 3. A
	// negative value disables retries.
	MaxRetriesPerRound int

	// TopN is the number of recommendations. Default: [cooccur.DefaultTopN].
	TopN int

	// ListenTimeout bounds each Listen call. Zero means no timeout beyond the
	// session context.
	ListenTimeout time.Duration
}

// Default session bounds.
const (
	DefaultMaxRounds          = 10
	DefaultMaxRetriesPerRound = 3
)

func (c *Config) applyDefaults() {
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.MaxRetriesPerRound < 0 {
		c.MaxRetriesPerRound = 0
	} else if c.MaxRetriesPerRound == 0 {
		c.MaxRetriesPerRound = DefaultMaxRetriesPerRound
	}
	if c.TopN <= 0 {
		c.TopN = cooccur.DefaultTopN
	}
}

// Spoken prompts.
const (
	promptGreeting   = "Please say your order."
	promptRetry      = "Sorry, I did not recognise any menu item. Please try again."
	promptTrouble    = "Sorry, I am having trouble hearing you. Please try again."
	promptGiveUp     = "Sorry, I could not understand your order."
	promptRoundLimit = "That is all I can take for one order."
	promptNothing    = "You did not order anything."
)

// Option configures an [Aggregator].
type Option func(*Aggregator)

// WithID sets the session id used in logs, traces and the history record.
func WithID(id string) Option {
	return func(a *Aggregator) { a.id = id }
}

// WithConfig sets the session bounds. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(a *Aggregator) { a.cfg = cfg }
}

// WithCorrector enables a correction stage before scanning.
func WithCorrector(c Corrector) Option {
	return func(a *Aggregator) { a.corrector = c }
}

// WithMetrics records session metrics to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithClock overrides the clock used to timestamp the history record.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// Aggregator runs one ordering session. It owns its [order.Order] and is not
// safe for concurrent use; create one per session. The automaton and store
// may be shared across aggregators.
type Aggregator struct {
	id        string
	automaton *matcher.Automaton
	vocab     *vocab.Vocabulary
	listener  Listener
	speaker   Speaker
	confirmer Confirmer
	store     order.Store
	corrector Corrector
	metrics   *observe.Metrics
	cfg       Config
	now       func() time.Time
}

// New creates an [Aggregator] recognising the phrases compiled into a.
// A nil store disables history: recommendations are always empty.
func New(a *matcher.Automaton, l Listener, s Speaker, c Confirmer, store order.Store, opts ...Option) *Aggregator {
	agg := &Aggregator{
		automaton: a,
		vocab:     a.Vocabulary(),
		listener:  l,
		speaker:   s,
		confirmer: c,
		store:     store,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(agg)
	}
	agg.cfg.applyDefaults()
	return agg
}

// ID returns the session id.
func (a *Aggregator) ID() string { return a.id }

// Run drives the session to completion.
//
// The returned error is nil when the customer finished normally or the round
// limit was reached. It wraps [ErrMaxRetriesExceeded] when a round
// recognised nothing within its budget, is the context error on
// cancellation, and otherwise wraps the unrecoverable collaborator error. In
// every case except cancellation the order is finalised: recommendations are
// computed and the order is appended to the history.
func (a *Aggregator) Run(ctx context.Context) (*Result, error) {
	if a.id != "" {
		ctx = observe.WithSessionID(ctx, a.id)
	}
	ctx, span := observe.StartSpan(ctx, "session.run",
		trace.WithAttributes(attribute.String("session.id", a.id)),
	)
	defer span.End()

	if a.metrics != nil {
		a.metrics.ActiveSessions.Add(ctx, 1)
		defer a.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)
	}

	log := observe.Logger(ctx)
	log.Info("session started", "items", a.vocab.Len())

	res := &Result{SessionID: a.id, Recommendations: []vocab.Phrase{}}
	var ord order.Order

	a.say(ctx, promptGreeting)
	outcome, runErr := a.rounds(ctx, &ord, res)
	ord.Freeze()
	res.Order = ord.Items()
	res.Outcome = outcome

	if outcome != OutcomeCancelled {
		a.finish(ctx, &ord, res)
	}

	if a.metrics != nil {
		a.metrics.RecordSession(context.WithoutCancel(ctx), string(outcome))
	}
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	log.Info("session finished",
		"outcome", string(outcome),
		"rounds", res.Rounds,
		"misses", res.Misses,
		"items", len(res.Order),
		"recommendations", len(res.Recommendations),
	)
	return res, runErr
}

// rounds runs listen/confirm rounds until the customer stops or a bound is
// hit.
func (a *Aggregator) rounds(ctx context.Context, ord *order.Order, res *Result) (Outcome, error) {
	for round := 1; round <= a.cfg.MaxRounds; round++ {
		res.Rounds = round
		if a.metrics != nil {
			a.metrics.Rounds.Add(ctx, 1)
		}

		more, err := a.round(ctx, round, ord, res)
		switch {
		case err == nil && !more:
			return OutcomeCompleted, nil
		case err == nil:
			continue
		case ctx.Err() != nil:
			return OutcomeCancelled, ctx.Err()
		case errors.Is(err, ErrMaxRetriesExceeded):
			a.say(ctx, promptGiveUp)
			return OutcomeMaxRetries, err
		default:
			return OutcomeFailed, err
		}
	}
	a.say(ctx, promptRoundLimit)
	return OutcomeRoundLimit, nil
}

// round runs one listen/confirm round and reports whether another round was
// requested.
func (a *Aggregator) round(ctx context.Context, n int, ord *order.Order, res *Result) (bool, error) {
	ctx, span := observe.StartSpan(ctx, "session.round",
		trace.WithAttributes(attribute.Int("round", n)),
	)
	defer span.End()

	items, err := a.listenForItems(ctx, res)
	if errors.Is(err, errRoundAbandoned) {
		a.say(ctx, promptTrouble)
		return true, nil
	}
	if err != nil {
		return false, err
	}

	added, err := ord.Append(items...)
	if err != nil {
		// The order is frozen only after the round loop ends.
		return false, fmt.Errorf("session: append: %w", err)
	}
	if a.metrics != nil && len(added) > 0 {
		a.metrics.ItemsRecognised.Add(ctx, int64(len(added)))
	}
	span.SetAttributes(attribute.Int("items.recognised", len(items)))
	observe.Logger(ctx).Info("items recognised",
		"round", n,
		"items", joinPhrases(items),
		"new", len(added),
	)
	a.say(ctx, "You ordered: "+strings.Join(a.vocab.DisplayAll(items), ", ")+".")

	more, err := a.confirmer.Continue(ctx, a.vocab.DisplayAll(ord.Items()))
	if err != nil {
		return false, fmt.Errorf("session: confirm: %w", err)
	}
	return more, nil
}

// listenForItems listens until at least one menu item is recognised, giving
// up after MaxRetriesPerRound further attempts. A transient failure that
// survives its immediate retry abandons the round with [errRoundAbandoned].
func (a *Aggregator) listenForItems(ctx context.Context, res *Result) ([]vocab.Phrase, error) {
	log := observe.Logger(ctx)
	attempts := 1 + a.cfg.MaxRetriesPerRound

	for attempt := 1; attempt <= attempts; attempt++ {
		texts, err := a.listenOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			reason, ok := missReason(err)
			if !ok {
				return nil, fmt.Errorf("session: listen: %w", err)
			}
			res.Misses++
			a.recordMiss(ctx, reason)
			log.Warn("listening attempt failed", "attempt", attempt, "reason", reason, "err", err)
			if reason == "transient_io" {
				return nil, fmt.Errorf("%w: %w", errRoundAbandoned, err)
			}
			if attempt < attempts {
				a.say(ctx, promptRetry)
			}
			continue
		}

		if items := a.recognise(ctx, texts); len(items) > 0 {
			return items, nil
		}
		res.Misses++
		a.recordMiss(ctx, "no_match")
		log.Info("no menu item recognised",
			"attempt", attempt,
			"texts", len(texts),
			"err", ErrRecognitionMiss,
		)
		if attempt < attempts {
			a.say(ctx, promptRetry)
		}
	}
	return nil, fmt.Errorf("%w: %d attempts in one round", ErrMaxRetriesExceeded, attempts)
}

// listenOnce calls the listener, retrying once immediately on
// [ErrTransientIO].
func (a *Aggregator) listenOnce(ctx context.Context) ([]string, error) {
	texts, err := a.listen(ctx)
	if err != nil && errors.Is(err, ErrTransientIO) && ctx.Err() == nil {
		observe.Logger(ctx).Warn("transient listener failure, retrying once", "err", err)
		texts, err = a.listen(ctx)
	}
	return texts, err
}

func (a *Aggregator) listen(ctx context.Context) ([]string, error) {
	lctx := ctx
	if a.cfg.ListenTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, a.cfg.ListenTimeout)
		defer cancel()
	}
	texts, err := a.listener.Listen(lctx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) && !Recoverable(err) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return texts, err
}

// recognise corrects and scans texts.
func (a *Aggregator) recognise(ctx context.Context, texts []string) []vocab.Phrase {
	start := time.Now()
	if a.corrector != nil {
		corrected := make([]string, len(texts))
		for i, t := range texts {
			corrected[i] = a.corrector.Correct(t, a.vocab)
		}
		texts = corrected
	}
	items := a.automaton.ScanAll(texts)
	if a.metrics != nil {
		a.metrics.ScanDuration.Record(ctx, time.Since(start).Seconds())
	}
	return items
}

// finish computes recommendations, persists the order and speaks the
// summary. History failures degrade to no recommendations.
func (a *Aggregator) finish(ctx context.Context, ord *order.Order, res *Result) {
	ctx, span := observe.StartSpan(ctx, "session.finish")
	defer span.End()
	log := observe.Logger(ctx)

	if ord.Len() == 0 {
		a.say(ctx, promptNothing)
		return
	}
	items := ord.Items()
	a.say(ctx, "Your final order is: "+strings.Join(a.vocab.DisplayAll(items), ", ")+".")

	if a.store == nil {
		return
	}

	history, err := a.store.Load(ctx)
	if err != nil {
		res.HistoryErr = err
		log.Warn("order history unavailable, skipping recommendations", "err", err)
	} else {
		m := cooccur.BuildMatrix(history, a.vocab)
		res.Recommendations = cooccur.Recommend(items, m, a.vocab, a.cfg.TopN)
		span.SetAttributes(
			attribute.Int("history.orders", len(history)),
			attribute.Int("recommendations", len(res.Recommendations)),
		)
	}

	if err := a.store.Append(ctx, order.NewRecord(a.id, ord, a.now())); err != nil {
		res.HistoryErr = errors.Join(res.HistoryErr, err)
		log.Warn("failed to append order to history", "err", err)
	}

	if len(res.Recommendations) > 0 {
		if a.metrics != nil {
			a.metrics.Recommendations.Add(ctx, int64(len(res.Recommendations)),
				metric.WithAttributes(attribute.Int("top_n", a.cfg.TopN)))
		}
		a.say(ctx, "We also recommend: "+strings.Join(a.vocab.DisplayAll(res.Recommendations), ", ")+".")
	}
}

// say speaks text, logging failures.
func (a *Aggregator) say(ctx context.Context, text string) {
	if a.speaker == nil {
		return
	}
	if err := a.speaker.Speak(ctx, text); err != nil {
		if ctx.Err() != nil {
			return
		}
		observe.Logger(ctx).Warn("speaker failed", "text", text, "err", err)
	}
}

func (a *Aggregator) recordMiss(ctx context.Context, reason string) {
	if a.metrics != nil {
		a.metrics.RecordMiss(ctx, reason)
	}
}

func joinPhrases(ps []vocab.Phrase) string {
	s := make([]string, len(ps))
	for i, p := range ps {
		s[i] = string(p)
	}
	return strings.Join(s, ", ")
}
