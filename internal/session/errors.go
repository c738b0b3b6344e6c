package session

import (
	"errors"
)

// Errors reported by a [Listener]. All four are recoverable: the aggregator
// treats them as "no recognised phrases this attempt" and prompts again
// within the retry budget.
var (
	// ErrNoSpeech means the listening window contained no speech.
	ErrNoSpeech = errors.New("session: no speech detected")

	// ErrTimeout means the listener gave up waiting for speech.
	ErrTimeout = errors.New("session: listen timed out")

	// ErrTranscription means audio was captured but could not be
	// transcribed.
	ErrTranscription = errors.New("session: transcription failed")

	// ErrTransientIO marks a collaborator failure that is worth one
	// immediate retry, such as a dropped connection to the transcription
	// service. If the retry fails too, the round is abandoned and the
	// session moves on to the next one.
	ErrTransientIO = errors.New("session: transient i/o failure")
)

// ErrRecognitionMiss means transcription succeeded but no menu item was
// recognised. It is recorded for observability and never returned by
// [Aggregator.Run].
var ErrRecognitionMiss = errors.New("session: no menu item recognised")

// ErrMaxRetriesExceeded is returned by [Aggregator.Run] when one round used
// up its retry budget without recognising a menu item. The order collected
// so far is still finalised.
var ErrMaxRetriesExceeded = errors.New("session: maximum retries exceeded")

// errRoundAbandoned ends a round early without failing the session.
var errRoundAbandoned = errors.New("session: round abandoned")

// Recoverable reports whether err is one of the listener errors that count as
// a missed attempt rather than a session failure.
func Recoverable(err error) bool {
	_, ok := missReason(err)
	return ok
}

// missReason maps a recoverable listener error to its metric label.
func missReason(err error) (string, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, ErrNoSpeech):
		return "no_speech", true
	case errors.Is(err, ErrTimeout):
		return "timeout", true
	case errors.Is(err, ErrTranscription):
		return "transcription", true
	case errors.Is(err, ErrTransientIO):
		return "transient_io", true
	}
	return "", false
}
