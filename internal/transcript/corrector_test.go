package transcript_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/ordervox/internal/transcript"
	"github.com/MrWong99/ordervox/internal/vocab"
)

func diner() *vocab.Vocabulary {
	return vocab.MustLoad("Cheese Burger", "Fries", "Cola", "Milkshake")
}

func TestCorrector_PhoneticRepairs(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(nil)
	v := diner()

	tests := []struct {
		name      string
		text      string
		want      string
		corrected []string
	}{
		{
			name:      "misheard multi-word and single-word items",
			text:      "i want a chese burger and fryes please",
			want:      "i want a Cheese Burger and Fries please",
			corrected: []string{"chese burger", "fryes"},
		},
		{
			name:      "plural folds onto phrase",
			text:      "two cheese burgers and a cola",
			want:      "two Cheese Burger and a cola",
			corrected: []string{"cheese burgers"},
		},
		{
			name:      "split compound",
			text:      "one milk shake",
			want:      "one Milkshake",
			corrected: []string{"milk shake"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := c.CorrectDetailed(tt.text, v)
			if res.Original != tt.text {
				t.Errorf("Original = %q", res.Original)
			}
			if res.Corrected != tt.want {
				t.Errorf("Corrected = %q, want %q", res.Corrected, tt.want)
			}
			var got []string
			for _, corr := range res.Corrections {
				got = append(got, corr.Original)
				if corr.Confidence <= 0 || corr.Confidence > 1 {
					t.Errorf("correction %q confidence = %f", corr.Original, corr.Confidence)
				}
			}
			if strings.Join(got, "|") != strings.Join(tt.corrected, "|") {
				t.Errorf("corrections = %v, want %v", got, tt.corrected)
			}
		})
	}
}

func TestCorrector_ExactTextUnchanged(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(nil)
	text := "can i get fries and cola"
	res := c.CorrectDetailed(text, diner())
	if res.Corrected != text {
		t.Errorf("Corrected = %q, want unchanged", res.Corrected)
	}
	if res.Corrections == nil || len(res.Corrections) != 0 {
		t.Errorf("Corrections = %#v, want empty non-nil", res.Corrections)
	}
}

func TestCorrector_ExactLongestPhraseWins(t *testing.T) {
	t.Parallel()

	v := vocab.MustLoad("Burger", "Cheese Burger")
	res := transcript.NewCorrector(nil).CorrectDetailed("a cheese burger please", v)
	if res.Corrected != "a cheese burger please" {
		t.Errorf("Corrected = %q", res.Corrected)
	}
	if len(res.Corrections) != 0 {
		t.Errorf("Corrections = %v, want none", res.Corrections)
	}
}

func TestCorrector_DoesNotInventItems(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(nil)
	tests := []struct {
		text    string
		phrases []string
	}{
		{"hot cola", []string{"Hot Dog", "Dog Treat", "Cola"}},
		{"fish fries", []string{"Fish Burger", "Fries"}},
		{"cheese and burger", []string{"Cheese Burger", "Burger"}},
		{"coke and cola", []string{"Cola", "Coke Float"}},
	}
	for _, tt := range tests {
		res := c.CorrectDetailed(tt.text, vocab.MustLoad(tt.phrases...))
		if res.Corrected != tt.text {
			t.Errorf("Correct(%q) = %q, want unchanged", tt.text, res.Corrected)
		}
		if len(res.Corrections) != 0 {
			t.Errorf("Correct(%q) corrections = %v, want none", tt.text, res.Corrections)
		}
	}
}

func TestCorrector_EmptyInputs(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(nil)
	if got := c.Correct("", diner()); got != "" {
		t.Errorf("Correct(\"\") = %q", got)
	}
	if got := c.Correct("fryes", nil); got != "fryes" {
		t.Errorf("Correct with nil vocabulary = %q", got)
	}
}

// stubMatcher maps exact windows to replacements and records calls.
type stubMatcher struct {
	mu      sync.Mutex
	calls   []string
	mapping map[string]string
	phrases []string
}

func (s *stubMatcher) Match(word string, phrases []string) (string, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, word)
	s.phrases = phrases
	if r, ok := s.mapping[word]; ok {
		return r, 0.9, true
	}
	return word, 0, false
}

func TestCorrector_CustomMatcher(t *testing.T) {
	t.Parallel()

	stub := &stubMatcher{mapping: map[string]string{"kohla": "Cola"}}
	c := transcript.NewCorrector(stub)

	got := c.Correct("fries and kohla", diner())
	if got != "fries and Cola" {
		t.Errorf("Correct = %q, want %q", got, "fries and Cola")
	}
	for _, call := range stub.calls {
		if call == "fries" {
			t.Error("matcher consulted for an exact phrase")
		}
	}
	if len(stub.phrases) != 4 || stub.phrases[0] != "Cheese Burger" {
		t.Errorf("matcher received phrases %v, want display texts", stub.phrases)
	}
}

func TestCorrector_ConcurrentUse(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(nil)
	v1 := diner()
	v2 := vocab.MustLoad("Pizza", "Pizza Slice")

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				if got := c.Correct("fryes", v1); got != "Fries" {
					t.Errorf("v1 Correct = %q", got)
				}
				return
			}
			if got := c.Correct("pizza slice", v2); got != "pizza slice" {
				t.Errorf("v2 Correct = %q", got)
			}
		}()
	}
	wg.Wait()
}
