// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs) and turns
// one prompt into a complete [audio.Clip]. Prompts in an ordering session are
// short ("You ordered: Burger, Fries."), so synthesis is request/response
// rather than streamed.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/MrWong99/ordervox/pkg/audio"
)

// ErrUnavailable is returned when the backend could not be reached or
// answered with a server-side failure. Retrying may succeed.
var ErrUnavailable = errors.New("tts: backend unavailable")

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text with voice and returns the PCM audio.
	//
	// Returns an error if text is empty, if the voice is unknown to the
	// provider, or if synthesis fails. Transport and server failures wrap
	// [ErrUnavailable].
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (audio.Clip, error)
}
