// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service (e.g., a local
// whisper.cpp server) and turns one complete [audio.Clip] holding a single
// customer utterance into text. Menu phrases can be passed as recognition
// hints so that providers which support prompting or keyword boosting are
// biased towards the items on the menu.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/ordervox/pkg/audio"
)

// Provider errors. Implementations wrap these so that callers can classify
// failures with [errors.Is].
var (
	// ErrNoSpeech is returned when the clip contained no recognisable speech,
	// either because it was silent or because the backend returned empty text.
	ErrNoSpeech = errors.New("stt: no speech in audio")

	// ErrUnavailable is returned when the backend could not be reached or
	// answered with a server-side failure. Retrying may succeed.
	ErrUnavailable = errors.New("stt: backend unavailable")
)

// Request describes one transcription.
type Request struct {
	// Clip is the audio to transcribe. Providers convert it to the format
	// their backend expects.
	Clip audio.Clip

	// Language is the BCP-47 language tag for recognition (e.g., "en", "de").
	// An empty string uses the provider default.
	Language string

	// Hints are phrases the speaker is likely to say, typically the display
	// names of the current menu.
	Hints []string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe returns the transcription of req.Clip.
	//
	// Returns an error wrapping [ErrNoSpeech] when there was nothing to
	// transcribe and one wrapping [ErrUnavailable] for transport or server
	// failures. Other errors indicate a request the backend rejected.
	Transcribe(ctx context.Context, req Request) (Transcript, error)
}
