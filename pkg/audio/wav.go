package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// wavHeaderSize is the size of the canonical 44-byte PCM WAV header written
// by [EncodeWAV].
const wavHeaderSize = 44

// ErrNotWAV is returned by [DecodeWAV] for data that is not a 16-bit PCM
// RIFF/WAVE file.
var ErrNotWAV = errors.New("audio: not a 16-bit pcm wav file")

// EncodeWAV wraps c in a canonical RIFF/WAV container.
func EncodeWAV(c Clip) []byte {
	byteRate := c.SampleRate * c.frameSize()
	dataSize := len(c.Data)

	buf := make([]byte, wavHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(c.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(c.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(c.frameSize()))
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[wavHeaderSize:], c.Data)

	return buf
}

// IsWAV reports whether data starts with a RIFF/WAVE signature.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

// DecodeWAV parses a 16-bit PCM WAV file. Chunks other than "fmt " and
// "data" are skipped.
func DecodeWAV(data []byte) (Clip, error) {
	if !IsWAV(data) {
		return Clip{}, ErrNotWAV
	}

	var (
		c      Clip
		haveFM bool
	)
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			// Streaming encoders often leave the data size unset.
			if id == "data" {
				size = len(data) - body
			} else {
				return Clip{}, fmt.Errorf("%w: chunk %q overruns file", ErrNotWAV, id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Clip{}, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			if tag := binary.LittleEndian.Uint16(data[body:]); tag != 1 {
				return Clip{}, fmt.Errorf("%w: format tag %d", ErrNotWAV, tag)
			}
			if bits := binary.LittleEndian.Uint16(data[body+14:]); bits != 16 {
				return Clip{}, fmt.Errorf("%w: %d bits per sample", ErrNotWAV, bits)
			}
			c.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			c.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			haveFM = true
		case "data":
			if !haveFM {
				return Clip{}, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			c.Data = data[body : body+size]
			return c, c.Validate()
		}

		// Chunks are word aligned.
		off = body + size + size%2
	}
	return Clip{}, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}
