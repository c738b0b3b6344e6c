package audio_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/ordervox/pkg/audio"
)

func TestClip_Duration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		clip audio.Clip
		want time.Duration
	}{
		{"one second speech", audio.Clip{Data: make([]byte, 32000), Format: audio.SpeechFormat}, time.Second},
		{"10ms stereo 48k", audio.Clip{Data: make([]byte, 1920), Format: audio.Format{SampleRate: 48000, Channels: 2}}, 10 * time.Millisecond},
		{"invalid format", audio.Clip{Data: make([]byte, 100)}, 0},
		{"empty", audio.Clip{Format: audio.SpeechFormat}, 0},
	}
	for _, tt := range tests {
		if got := tt.clip.Duration(); got != tt.want {
			t.Errorf("%s: Duration = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestClip_RMS(t *testing.T) {
	t.Parallel()
	silent := audio.Clip{Data: make([]byte, 320), Format: audio.SpeechFormat}
	if got := silent.RMS(); got != 0 {
		t.Errorf("silent RMS = %v, want 0", got)
	}
	loud := audio.Clip{Data: samplesToBytes([]int16{3000, -3000, 3000, -3000}), Format: audio.SpeechFormat}
	if got := loud.RMS(); got != 3000 {
		t.Errorf("square wave RMS = %v, want 3000", got)
	}
	if got := (audio.Clip{}).RMS(); got != 0 {
		t.Errorf("empty RMS = %v, want 0", got)
	}
}

func TestClip_Validate(t *testing.T) {
	t.Parallel()
	ok := audio.Clip{Data: make([]byte, 8), Format: audio.Format{SampleRate: 16000, Channels: 2}}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	misaligned := audio.Clip{Data: make([]byte, 6), Format: audio.Format{SampleRate: 16000, Channels: 2}}
	if err := misaligned.Validate(); !errors.Is(err, audio.ErrMisaligned) {
		t.Errorf("Validate = %v, want ErrMisaligned", err)
	}
}

func TestFormat_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		f    audio.Format
		want string
	}{
		{audio.SpeechFormat, "16000Hz mono"},
		{audio.Format{SampleRate: 48000, Channels: 2}, "48000Hz stereo"},
		{audio.Format{SampleRate: 44100, Channels: 6}, "44100Hz 6ch"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestEncodeWAV_Header(t *testing.T) {
	t.Parallel()
	pcm := samplesToBytes([]int16{1, 2, 3, 4})
	wav := audio.EncodeWAV(audio.Clip{Data: pcm, Format: audio.SpeechFormat})

	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Error("missing RIFF/WAVE/data markers")
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Errorf("byte rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d", got)
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Error("payload mismatch")
	}
}

func TestDecodeWAV_RoundTrip(t *testing.T) {
	t.Parallel()
	in := audio.Clip{
		Data:   samplesToBytes([]int16{10, -10, 20, -20, 30, -30}),
		Format: audio.Format{SampleRate: 22050, Channels: 2},
	}
	out, err := audio.DecodeWAV(audio.EncodeWAV(in))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if out.Format != in.Format || !bytes.Equal(out.Data, in.Data) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestDecodeWAV_SkipsUnknownChunks(t *testing.T) {
	t.Parallel()
	wav := audio.EncodeWAV(audio.Clip{Data: samplesToBytes([]int16{7, 8}), Format: audio.SpeechFormat})

	// Insert an odd-sized LIST chunk between fmt and data.
	list := []byte("LIST\x03\x00\x00\x00abc\x00")
	patched := append(append(append([]byte{}, wav[:36]...), list...), wav[36:]...)

	out, err := audio.DecodeWAV(patched)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if got := bytesToSamples(out.Data); len(got) != 2 || got[0] != 7 || got[1] != 8 {
		t.Errorf("samples = %v, want [7 8]", got)
	}
}

func TestDecodeWAV_Errors(t *testing.T) {
	t.Parallel()
	valid := audio.EncodeWAV(audio.Clip{Data: samplesToBytes([]int16{1}), Format: audio.SpeechFormat})

	eightBit := bytes.Clone(valid)
	binary.LittleEndian.PutUint16(eightBit[34:36], 8)

	float := bytes.Clone(valid)
	binary.LittleEndian.PutUint16(float[20:22], 3)

	tests := map[string][]byte{
		"raw pcm":       samplesToBytes([]int16{1, 2, 3, 4, 5, 6}),
		"too short":     []byte("RIFF"),
		"8-bit":         eightBit,
		"float":         float,
		"no data chunk": valid[:36],
	}
	for name, data := range tests {
		if _, err := audio.DecodeWAV(data); !errors.Is(err, audio.ErrNotWAV) {
			t.Errorf("%s: err = %v, want ErrNotWAV", name, err)
		}
	}
}
