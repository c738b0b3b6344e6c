package stt

import "time"

// Transcript is the result of one transcription.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Alternatives are further candidate transcriptions, best first. May be
	// nil for providers that only return one result.
	Alternatives []string

	// Language is the language the backend detected or used.
	Language string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the provider
	// does not report confidence.
	Confidence float64

	// Duration is the length of the transcribed audio.
	Duration time.Duration
}

// Texts returns Text followed by any Alternatives, skipping empty strings.
func (t Transcript) Texts() []string {
	out := make([]string, 0, 1+len(t.Alternatives))
	if t.Text != "" {
		out = append(out, t.Text)
	}
	for _, a := range t.Alternatives {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}
