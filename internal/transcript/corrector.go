package transcript

import (
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/MrWong99/ordervox/internal/transcript/phonetic"
	"github.com/MrWong99/ordervox/internal/vocab"
)

// Corrector applies a [PhoneticMatcher] to transcripts. It caches the
// prepared phrase data for the most recently used vocabulary, so the common
// case of many sessions on one menu generation prepares it once.
//
// Corrector is safe for concurrent use.
type Corrector struct {
	matcher PhoneticMatcher
	cache   atomic.Pointer[prepared]
}

type prepared struct {
	vocab    *vocab.Vocabulary
	display  []string
	maxWords int
	index    *phonetic.Index
}

// NewCorrector returns a [Corrector] using m. A nil m uses [phonetic.New]
// with default thresholds.
func NewCorrector(m PhoneticMatcher) *Corrector {
	if m == nil {
		m = phonetic.New()
	}
	return &Corrector{matcher: m}
}

// Correct returns text with misheard phrases of v replaced.
func (c *Corrector) Correct(text string, v *vocab.Vocabulary) string {
	return c.CorrectDetailed(text, v).Corrected
}

// CorrectDetailed is like [Corrector.Correct] but also reports each
// substitution.
//
// At each word position windows are tried from the longest phrase length
// down to one word. A window that folds to an exact phrase is kept as is;
// otherwise the first window the matcher accepts is replaced. Longer windows
// win so that multi-word phrases take precedence over partial matches.
func (c *Corrector) CorrectDetailed(text string, v *vocab.Vocabulary) Result {
	res := Result{Original: text, Corrected: text, Corrections: []Correction{}}
	tokens := strings.Fields(text)
	if len(tokens) == 0 || v == nil || v.Len() == 0 {
		return res
	}
	p := c.prepare(v)

	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		maxN := min(p.maxWords, len(tokens)-i)

		if n := exactAt(tokens[i:i+maxN], v); n > 0 {
			out = append(out, tokens[i:i+n]...)
			i += n
			continue
		}

		consumed := 0
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			phrase, conf, ok := c.match(window, p)
			if !ok {
				continue
			}
			out = append(out, strings.Fields(phrase)...)
			res.Corrections = append(res.Corrections, Correction{
				Original:   window,
				Corrected:  phrase,
				Confidence: conf,
			})
			consumed = n
			break
		}
		if consumed == 0 {
			out = append(out, tokens[i])
			consumed = 1
		}
		i += consumed
	}

	res.Corrected = strings.Join(out, " ")
	if len(res.Corrections) > 0 {
		slog.Debug("transcript: corrected menu items",
			"original", text,
			"corrected", res.Corrected,
			"corrections", len(res.Corrections),
		)
	}
	return res
}

func (c *Corrector) match(window string, p *prepared) (string, float64, bool) {
	if pm, ok := c.matcher.(*phonetic.Matcher); ok {
		return pm.MatchIndex(window, p.index)
	}
	return c.matcher.Match(window, p.display)
}

func (c *Corrector) prepare(v *vocab.Vocabulary) *prepared {
	if p := c.cache.Load(); p != nil && p.vocab == v {
		return p
	}
	display := v.DisplayAll(v.Phrases())
	p := &prepared{
		vocab:   v,
		display: display,
		index:   phonetic.NewIndex(display),
	}
	p.maxWords = max(1, p.index.MaxWords())
	c.cache.Store(p)
	return p
}

// exactAt returns the word count of the longest prefix of tokens that folds
// to a phrase of v, or 0 if none does.
func exactAt(tokens []string, v *vocab.Vocabulary) int {
	for n := len(tokens); n >= 1; n-- {
		if _, _, ok := v.Lookup(strings.Join(tokens[:n], " ")); ok {
			return n
		}
	}
	return 0
}
