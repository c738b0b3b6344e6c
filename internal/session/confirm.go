package session

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/MrWong99/ordervox/internal/observe"
)

// DefaultStopWords are the answers that end a session when spoken in reply to
// "anything else?".
var DefaultStopWords = []string{"no", "stop", "nothing", "done", "that's all", "that is all"}

// VoiceConfirmer is a [Confirmer] that reads the order back through a
// [Speaker] and listens for the answer.
//
// Any answer that does not contain a stop word continues the order, and so
// does an answer that could not be heard. Stop words match whole words only:
// "I know" does not contain "no".
type VoiceConfirmer struct {
	listener  Listener
	speaker   Speaker
	stopWords [][]string
	timeout   time.Duration
}

// ConfirmOption configures a [VoiceConfirmer].
type ConfirmOption func(*VoiceConfirmer)

// WithStopWords replaces [DefaultStopWords]. Multi-word entries match as a
// consecutive word sequence.
func WithStopWords(words ...string) ConfirmOption {
	return func(c *VoiceConfirmer) { c.stopWords = tokenizeAll(words) }
}

// WithConfirmTimeout bounds the Listen call waiting for the answer.
func WithConfirmTimeout(d time.Duration) ConfirmOption {
	return func(c *VoiceConfirmer) { c.timeout = d }
}

// NewVoiceConfirmer creates a [VoiceConfirmer].
func NewVoiceConfirmer(l Listener, s Speaker, opts ...ConfirmOption) *VoiceConfirmer {
	c := &VoiceConfirmer{
		listener:  l,
		speaker:   s,
		stopWords: tokenizeAll(DefaultStopWords),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Continue implements [Confirmer].
//
// Recoverable listener errors continue the order. Any other listener error
// is returned with false.
func (c *VoiceConfirmer) Continue(ctx context.Context, order []string) (bool, error) {
	log := observe.Logger(ctx)

	prompt := "You ordered: " + strings.Join(order, ", ") + ". Do you want to order anything else?"
	if err := c.speaker.Speak(ctx, prompt); err != nil && ctx.Err() == nil {
		log.Warn("speaker failed", "text", prompt, "err", err)
	}

	lctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	texts, err := c.listener.Listen(lctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if Recoverable(err) || lctx.Err() != nil {
			log.Info("confirmation unclear, continuing", "err", err)
			return true, nil
		}
		return false, err
	}

	if c.IsStop(texts) {
		log.Debug("customer finished ordering", "answer", strings.Join(texts, " "))
		return false, nil
	}
	return true, nil
}

// IsStop reports whether any of texts contains one of the configured stop
// words as whole words.
func (c *VoiceConfirmer) IsStop(texts []string) bool {
	return containsStopWord(texts, c.stopWords)
}

func containsStopWord(texts []string, stopWords [][]string) bool {
	for _, t := range texts {
		words := tokenize(t)
		for _, sw := range stopWords {
			if containsSeq(words, sw) {
				return true
			}
		}
	}
	return false
}

// containsSeq reports whether seq occurs as a contiguous run in words.
func containsSeq(words, seq []string) bool {
	if len(seq) == 0 || len(seq) > len(words) {
		return false
	}
outer:
	for i := 0; i+len(seq) <= len(words); i++ {
		for j, w := range seq {
			if words[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}

// tokenize lowercases s and splits it into words. Apostrophes are kept
// inside words so that "that's" stays one token.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func tokenizeAll(words []string) [][]string {
	out := make([][]string, 0, len(words))
	for _, w := range words {
		if toks := tokenize(w); len(toks) > 0 {
			out = append(out, toks)
		}
	}
	return out
}
