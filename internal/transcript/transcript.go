// Package transcript repairs misheard menu items in transcribed speech before
// the text reaches the keyword automaton.
//
// Speech-to-text output routinely mangles dish names ("chese burger",
// "fryes"). The [Corrector] walks the transcript in word windows as long as
// the longest menu phrase and replaces windows that sound like a phrase with
// that phrase's display text. Windows that already spell a phrase exactly
// are left untouched.
package transcript

// Correction is a single window substitution.
type Correction struct {
	// Original is the window as transcribed.
	Original string

	// Corrected is the menu phrase that replaced it.
	Corrected string

	// Confidence is the similarity score of the match in [0, 1].
	Confidence float64
}

// Result is the outcome of [Corrector.CorrectDetailed].
type Result struct {
	// Original is the input text.
	Original string

	// Corrected is the text with all substitutions applied. Word separators
	// are normalised to single spaces.
	Corrected string

	// Corrections lists the substitutions in text order. Empty (non-nil) when
	// nothing was changed.
	Corrections []Correction
}

// PhoneticMatcher resolves a word window to the most similar phrase.
//
// When matched is false, corrected must equal word and confidence must be 0.
// Implementations must be safe for concurrent use.
type PhoneticMatcher interface {
	Match(word string, phrases []string) (corrected string, confidence float64, matched bool)
}
