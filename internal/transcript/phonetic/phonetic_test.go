package phonetic_test

import (
	"testing"

	"github.com/MrWong99/ordervox/internal/transcript/phonetic"
)

var menu = []string{"Cheese Burger", "Fries", "Cola", "Milkshake"}

func TestMatcher_Match(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	tests := []struct {
		name     string
		word     string
		want     string
		minScore float64
	}{
		{name: "misspelt single word", word: "fryes", want: "Fries", minScore: 0.85},
		{name: "misspelt multi-word phrase", word: "chese burger", want: "Cheese Burger", minScore: 0.85},
		{name: "split compound", word: "milk shake", want: "Milkshake", minScore: 0.9},
		{name: "uppercase input keeps phrase casing", word: "FRYES", want: "Fries", minScore: 0.85},
		{name: "exact", word: "cola", want: "Cola", minScore: 0.99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, conf, ok := m.Match(tt.word, menu)
			if !ok {
				t.Fatalf("Match(%q) matched=false", tt.word)
			}
			if got != tt.want {
				t.Errorf("Match(%q) = %q, want %q", tt.word, got, tt.want)
			}
			if conf < tt.minScore {
				t.Errorf("Match(%q) confidence = %f, want >= %f", tt.word, conf, tt.minScore)
			}
		})
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	for _, word := range []string{"hello", "please", "with", "", "a", "to"} {
		got, conf, ok := m.Match(word, menu)
		if ok {
			t.Errorf("Match(%q) matched %q", word, got)
		}
		if got != word || conf != 0 {
			t.Errorf("Match(%q) = (%q, %f), want input unchanged and 0", word, got, conf)
		}
	}
}

func TestMatcher_PhoneticThresholdFiltering(t *testing.T) {
	t.Parallel()

	// "kola" shares a phonetic code with "cola" but scores below 0.95.
	strict := phonetic.New(phonetic.WithPhoneticThreshold(0.95))
	if _, _, ok := strict.Match("kola", menu); ok {
		t.Error("strict matcher accepted kola")
	}
	if got, _, ok := phonetic.New().Match("kola", menu); !ok || got != "Cola" {
		t.Errorf("default matcher Match(kola) = (%q, %v), want Cola", got, ok)
	}
}

func TestMatcher_MinRunes(t *testing.T) {
	t.Parallel()

	m := phonetic.New(phonetic.WithMinRunes(6))
	if _, _, ok := m.Match("fryes", menu); ok {
		t.Error("five-rune input matched with min runes 6")
	}
}

func TestMatcher_EmptyPhrases(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	got, conf, ok := m.Match("fries", nil)
	if ok || got != "fries" || conf != 0 {
		t.Errorf("Match with no phrases = (%q, %f, %v)", got, conf, ok)
	}
	if _, _, ok := m.MatchIndex("fries", nil); ok {
		t.Error("MatchIndex with nil index matched")
	}
}

func TestIndex(t *testing.T) {
	t.Parallel()

	idx := phonetic.NewIndex([]string{"Cheese Burger", "  ", "Double Cheese Burger", "Fries"})
	if idx.Len() != 3 {
		t.Errorf("Len = %d, want 3 (blank ignored)", idx.Len())
	}
	if idx.MaxWords() != 3 {
		t.Errorf("MaxWords = %d, want 3", idx.MaxWords())
	}

	m := phonetic.New()
	got, _, ok := m.MatchIndex("frys", idx)
	if !ok || got != "Fries" {
		t.Errorf("MatchIndex(frys) = (%q, %v), want Fries", got, ok)
	}
}

func TestMatcher_PartialPhraseRejected(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	tests := []struct {
		word    string
		phrases []string
	}{
		{"hot", []string{"Hot Dog", "Cola"}},
		{"fish", []string{"Fish Burger", "Fries"}},
		{"coke", []string{"Coke Float"}},
		{"cheese", []string{"Cheese Burger"}},
		{"cheese and", []string{"Cheese Burger"}},
	}
	for _, tt := range tests {
		if got, _, ok := m.Match(tt.word, tt.phrases); ok {
			t.Errorf("Match(%q, %v) = %q, want no match", tt.word, tt.phrases, got)
		}
	}
}
