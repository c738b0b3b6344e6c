// Package audio holds the PCM clip type exchanged between the voice gateway
// and the speech providers, together with WAV framing and format conversion.
//
// All PCM in this package is signed 16-bit little-endian, interleaved when
// there is more than one channel.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// bytesPerSample is fixed by the s16le encoding.
const bytesPerSample = 2

// ErrMisaligned is returned when PCM data does not hold a whole number of
// frames.
var ErrMisaligned = errors.New("audio: pcm data is not frame aligned")

// Format describes the sample rate and channel count of PCM data.
type Format struct {
	SampleRate int
	Channels   int
}

// SpeechFormat is 16 kHz mono, the input format speech recognisers expect
// and the output format of the synthesis providers.
var SpeechFormat = Format{SampleRate: 16000, Channels: 1}

// String returns a human-readable form such as "48000Hz stereo".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// Valid reports whether f describes a usable stream.
func (f Format) Valid() bool { return f.SampleRate > 0 && f.Channels > 0 }

// frameSize is the byte length of one sample across all channels.
func (f Format) frameSize() int { return f.Channels * bytesPerSample }

// Clip is a complete piece of PCM audio, such as one customer utterance or
// one synthesised prompt.
type Clip struct {
	Data []byte
	Format
}

// Duration returns the playback length of c. It is zero for an invalid
// format.
func (c Clip) Duration() time.Duration {
	if !c.Valid() {
		return 0
	}
	frames := len(c.Data) / c.frameSize()
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Empty reports whether c holds no samples.
func (c Clip) Empty() bool { return len(c.Data) < bytesPerSample }

// Validate checks the format and frame alignment of c.
func (c Clip) Validate() error {
	if !c.Valid() {
		return fmt.Errorf("audio: invalid format %d Hz, %d channels", c.SampleRate, c.Channels)
	}
	if len(c.Data)%c.frameSize() != 0 {
		return fmt.Errorf("%w: %d bytes for %s", ErrMisaligned, len(c.Data), c.Format)
	}
	return nil
}

// RMS returns the root-mean-square energy of c across all channels, in PCM
// sample units (0 to 32767). It is zero for clips shorter than one sample.
func (c Clip) RMS() float64 {
	n := len(c.Data) / bytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(c.Data[i*2:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
