package gateway

import (
	"fmt"

	"github.com/MrWong99/ordervox/internal/session"
	"github.com/MrWong99/ordervox/pkg/audio"
)

// Client frame types.
const (
	frameTranscript = "transcript"
	frameAudio      = "audio"
	frameError      = "error"
)

// Server frame types.
const (
	frameReady  = "ready"
	frameSay    = "say"
	frameResult = "result"
)

// clientFrame is a JSON text message sent by the front end.
//
//	{"type":"transcript","texts":["a burger and fries"]}
//	{"type":"audio","sample_rate":16000,"channels":1}  followed by one binary frame
//	{"type":"audio","encoding":"wav"}                  followed by one binary WAV file
//	{"type":"error","kind":"no_speech"}
type clientFrame struct {
	Type       string   `json:"type"`
	Texts      []string `json:"texts,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	Encoding   string   `json:"encoding,omitempty"`
	SampleRate int      `json:"sample_rate,omitempty"`
	Channels   int      `json:"channels,omitempty"`
}

// audioInfo describes the binary PCM frame that follows a say frame.
type audioInfo struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

// serverFrame is a JSON text message sent to the front end.
type serverFrame struct {
	Type      string     `json:"type"`
	SessionID string     `json:"session_id,omitempty"`
	Text      string     `json:"text,omitempty"`
	Audio     *audioInfo `json:"audio,omitempty"`

	// Result fields.
	Order           []string `json:"order,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Outcome         string   `json:"outcome,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// errorForKind maps the kind of a client error frame to the session
// taxonomy. Unknown kinds count as transcription failures.
func errorForKind(kind string) error {
	switch kind {
	case "no_speech":
		return fmt.Errorf("gateway: client: %w", session.ErrNoSpeech)
	case "timeout":
		return fmt.Errorf("gateway: client: %w", session.ErrTimeout)
	case "transient_io":
		return fmt.Errorf("gateway: client: %w", session.ErrTransientIO)
	default:
		return fmt.Errorf("gateway: client %q: %w", kind, session.ErrTranscription)
	}
}

// decodeAudio builds a clip from the binary frame announced by f. PCM
// without an explicit format is taken to be 16 kHz mono.
func decodeAudio(f clientFrame, data []byte) (audio.Clip, error) {
	if f.Encoding == "wav" || (f.Encoding == "" && audio.IsWAV(data)) {
		return audio.DecodeWAV(data)
	}
	if f.Encoding != "" && f.Encoding != "pcm" {
		return audio.Clip{}, fmt.Errorf("gateway: unsupported audio encoding %q", f.Encoding)
	}
	format := audio.SpeechFormat
	if f.SampleRate > 0 {
		format.SampleRate = f.SampleRate
	}
	if f.Channels > 0 {
		format.Channels = f.Channels
	}
	clip := audio.Clip{Data: data, Format: format}
	if err := clip.Validate(); err != nil {
		return audio.Clip{}, err
	}
	return clip, nil
}
