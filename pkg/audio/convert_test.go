package audio_test

import (
	"encoding/binary"
	"testing"

	"github.com/MrWong99/ordervox/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestMonoToStereo(t *testing.T) {
	mono := samplesToBytes([]int16{100, 200, 300})
	stereo := audio.MonoToStereo(mono)
	got := bytesToSamples(stereo)
	want := []int16{100, 100, 200, 200, 300, 300}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMono(t *testing.T) {
	// Two stereo frames: L=100,R=200 and L=-100,R=-200
	stereo := samplesToBytes([]int16{100, 200, -100, -200})
	mono := audio.StereoToMono(stereo)
	got := bytesToSamples(mono)
	want := []int16{150, -150}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMono_Clamping(t *testing.T) {
	// Two max-positive samples should clamp to 32767 (not overflow).
	stereo := samplesToBytes([]int16{32767, 32767})
	mono := audio.StereoToMono(stereo)
	got := bytesToSamples(mono)
	want := []int16{32767}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	if got[0] != want[0] {
		t.Errorf("got %d, want %d", got[0], want[0])
	}
}

func TestResampleMono16_SameRate(t *testing.T) {
	pcm := samplesToBytes([]int16{100, 200, 300})
	out := audio.ResampleMono16(pcm, 48000, 48000)
	if len(out) != len(pcm) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(pcm))
	}
}

func TestResampleMono16_Upsample(t *testing.T) {
	// 2 samples at 16kHz → 6 samples at 48kHz (3x)
	pcm := samplesToBytes([]int16{1000, 2000})
	out := audio.ResampleMono16(pcm, 16000, 48000)
	got := bytesToSamples(out)
	if len(got) != 6 {
		t.Fatalf("expected 6 samples, got %d", len(got))
	}
	// First output sample should equal first source sample.
	if got[0] != 1000 {
		t.Errorf("first sample: got %d, want 1000", got[0])
	}
	// Last output sample should be close to last source sample.
	last := got[len(got)-1]
	if last < 1800 || last > 2200 {
		t.Errorf("last sample: got %d, want close to 2000", last)
	}
}

func TestResampleMono16_Downsample(t *testing.T) {
	// 6 samples at 48kHz → 2 samples at 16kHz (1/3x)
	pcm := samplesToBytes([]int16{100, 200, 300, 400, 500, 600})
	out := audio.ResampleMono16(pcm, 48000, 16000)
	got := bytesToSamples(out)
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
}

func TestResampleStereo16(t *testing.T) {
	// 2 stereo frames at 16kHz → 6 stereo frames (12 samples) at 48kHz
	pcm := samplesToBytes([]int16{100, 200, 300, 400})
	out := audio.ResampleStereo16(pcm, 16000, 48000)
	got := bytesToSamples(out)
	if len(got) != 12 {
		t.Fatalf("expected 12 samples, got %d", len(got))
	}
}

func TestConvert_NoOp(t *testing.T) {
	t.Parallel()
	clip := audio.Clip{
		Data:   samplesToBytes([]int16{100, 200}),
		Format: audio.Format{SampleRate: 48000, Channels: 2},
	}
	result, err := audio.Convert(clip, audio.Format{SampleRate: 48000, Channels: 2})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if &result.Data[0] != &clip.Data[0] {
		t.Error("expected same slice for matching format")
	}
}

func TestConvert_MonoToStereo(t *testing.T) {
	t.Parallel()
	clip := audio.Clip{
		Data:   samplesToBytes([]int16{100, 200, 300}),
		Format: audio.Format{SampleRate: 48000, Channels: 1},
	}
	result, err := audio.Convert(clip, audio.Format{SampleRate: 48000, Channels: 2})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	got := bytesToSamples(result.Data)
	want := []int16{100, 100, 200, 200, 300, 300}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
	if result.SampleRate != 48000 || result.Channels != 2 {
		t.Errorf("unexpected format: %s", result.Format)
	}
}

func TestToSpeech_FromStereo48k(t *testing.T) {
	t.Parallel()
	// 10 ms of 48 kHz stereo: 480 frames.
	samples := make([]int16, 480*2)
	for i := range samples {
		samples[i] = 1000
	}
	result, err := audio.ToSpeech(audio.Clip{
		Data:   samplesToBytes(samples),
		Format: audio.Format{SampleRate: 48000, Channels: 2},
	})
	if err != nil {
		t.Fatalf("ToSpeech: %v", err)
	}
	if result.Format != audio.SpeechFormat {
		t.Errorf("format = %s, want %s", result.Format, audio.SpeechFormat)
	}
	got := bytesToSamples(result.Data)
	if len(got) != 160 {
		t.Fatalf("got %d samples, want 160", len(got))
	}
	for i, s := range got {
		if s != 1000 {
			t.Fatalf("sample %d = %d, want 1000", i, s)
		}
	}
}

func TestConvert_FourChannelsToSpeech(t *testing.T) {
	t.Parallel()
	clip := audio.Clip{
		Data:   samplesToBytes([]int16{100, 200, 300, 400, -100, -200, -300, -400}),
		Format: audio.Format{SampleRate: 16000, Channels: 4},
	}
	result, err := audio.ToSpeech(clip)
	if err != nil {
		t.Fatalf("ToSpeech: %v", err)
	}
	got := bytesToSamples(result.Data)
	want := []int16{250, -250}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestConvert_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		clip   audio.Clip
		target audio.Format
	}{
		{
			name:   "odd byte count",
			clip:   audio.Clip{Data: []byte{1, 2, 3}, Format: audio.Format{SampleRate: 22050, Channels: 1}},
			target: audio.Format{SampleRate: 48000, Channels: 1},
		},
		{
			name:   "odd byte count matching format",
			clip:   audio.Clip{Data: []byte{1, 2, 3}, Format: audio.Format{SampleRate: 48000, Channels: 1}},
			target: audio.Format{SampleRate: 48000, Channels: 1},
		},
		{
			name:   "invalid source format",
			clip:   audio.Clip{Data: []byte{1, 2}},
			target: audio.SpeechFormat,
		},
		{
			name:   "invalid target format",
			clip:   audio.Clip{Data: []byte{1, 2}, Format: audio.SpeechFormat},
			target: audio.Format{},
		},
		{
			name:   "unsupported channel mapping",
			clip:   audio.Clip{Data: make([]byte, 12), Format: audio.Format{SampleRate: 16000, Channels: 3}},
			target: audio.Format{SampleRate: 16000, Channels: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := audio.Convert(tt.clip, tt.target); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMonoToStereo_OddLengthInput(t *testing.T) {
	// I2: odd-length input should not produce trailing zero bytes.
	// 5 bytes = 2 complete samples + 1 trailing byte.
	pcm := []byte{0x64, 0x00, 0xC8, 0x00, 0xFF} // 100, 200, then junk byte
	stereo := audio.MonoToStereo(pcm)
	// Should only process 2 complete samples → 4 stereo samples → 8 bytes.
	if len(stereo) != 8 {
		t.Fatalf("expected 8 bytes for 2 complete mono samples, got %d", len(stereo))
	}
	got := bytesToSamples(stereo)
	want := []int16{100, 100, 200, 200}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResampleMono16_ZeroRate(t *testing.T) {
	pcm := samplesToBytes([]int16{100, 200})
	// Zero srcRate should return input unchanged.
	out := audio.ResampleMono16(pcm, 0, 48000)
	if len(out) != len(pcm) {
		t.Errorf("expected unchanged output for zero srcRate, got len %d", len(out))
	}
	// Zero dstRate should return input unchanged.
	out = audio.ResampleMono16(pcm, 48000, 0)
	if len(out) != len(pcm) {
		t.Errorf("expected unchanged output for zero dstRate, got len %d", len(out))
	}
	// Negative rates should return input unchanged.
	out = audio.ResampleMono16(pcm, -1, 48000)
	if len(out) != len(pcm) {
		t.Errorf("expected unchanged output for negative srcRate, got len %d", len(out))
	}
}

func TestResampleStereo16_ZeroRate(t *testing.T) {
	pcm := samplesToBytes([]int16{100, 200, 300, 400})
	out := audio.ResampleStereo16(pcm, 0, 48000)
	if len(out) != len(pcm) {
		t.Errorf("expected unchanged output for zero srcRate, got len %d", len(out))
	}
	out = audio.ResampleStereo16(pcm, 48000, 0)
	if len(out) != len(pcm) {
		t.Errorf("expected unchanged output for zero dstRate, got len %d", len(out))
	}
}
