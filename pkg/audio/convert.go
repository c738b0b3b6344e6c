package audio

import (
	"fmt"
	"log/slog"
)

// Convert returns c resampled and channel-mapped to target. A clip already in
// the target format is returned unchanged. Resampling runs before channel
// mapping so that stereo input bound for mono is only resampled once.
//
// Supported channel mappings are mono to stereo and any channel count down to
// mono.
func Convert(c Clip, target Format) (Clip, error) {
	if err := c.Validate(); err != nil {
		return Clip{}, err
	}
	if !target.Valid() {
		return Clip{}, fmt.Errorf("audio: invalid target format %s", target)
	}
	if c.Format == target {
		return c, nil
	}
	if target.Channels != 1 && !(c.Channels == 1 && target.Channels == 2) && c.Channels != target.Channels {
		return Clip{}, fmt.Errorf("audio: unsupported channel mapping %s to %s", c.Format, target)
	}

	slog.Debug("audio: converting clip", "from", c.Format.String(), "to", target.String(), "bytes", len(c.Data))

	pcm := c.Data
	if c.SampleRate != target.SampleRate {
		switch c.Channels {
		case 1:
			pcm = ResampleMono16(pcm, c.SampleRate, target.SampleRate)
		case 2:
			pcm = ResampleStereo16(pcm, c.SampleRate, target.SampleRate)
		default:
			// The resamplers only handle one or two channels.
			if target.Channels != 1 {
				return Clip{}, fmt.Errorf("audio: cannot resample %s", c.Format)
			}
			pcm = ResampleMono16(DownmixToMono(pcm, c.Channels), c.SampleRate, target.SampleRate)
			return Clip{Data: pcm, Format: target}, nil
		}
	}

	switch {
	case c.Channels == target.Channels:
	case c.Channels == 1 && target.Channels == 2:
		pcm = MonoToStereo(pcm)
	case c.Channels == 2:
		pcm = StereoToMono(pcm)
	default:
		pcm = DownmixToMono(pcm, c.Channels)
	}
	return Clip{Data: pcm, Format: target}, nil
}

// ToSpeech converts c to [SpeechFormat].
func ToSpeech(c Clip) (Clip, error) { return Convert(c, SpeechFormat) }

// DownmixToMono averages every frame of interleaved channels-channel PCM into
// one mono sample. Trailing partial frames are dropped.
func DownmixToMono(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frames := len(pcm) / (channels * bytesPerSample)
	out := make([]byte, frames*bytesPerSample)
	for i := range frames {
		var sum int32
		for ch := range channels {
			idx := (i*channels + ch) * bytesPerSample
			sum += int32(int16(pcm[idx]) | int16(pcm[idx+1])<<8)
		}
		avg := int16(sum / int32(channels))
		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
// Input must be little-endian int16 PCM (2 bytes per sample).
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		j := i * 2
		out[j] = lo
		out[j+1] = hi
		out[j+2] = lo
		out[j+3] = hi
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
// Uses int32 arithmetic to prevent overflow and clamps to int16 range.
func StereoToMono(pcm []byte) []byte {
	// Each stereo frame is 4 bytes (2 bytes L + 2 bytes R).
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		lSample := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		rSample := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (lSample + rSample) / 2

		// Clamp to int16 range.
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. The input must be little-endian int16 samples. If srcRate ==
// dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// ResampleStereo16 resamples 16-bit stereo PCM from srcRate to dstRate using
// linear interpolation. Each stereo frame is 4 bytes (L+R interleaved).
// If srcRate == dstRate, the input is returned unchanged.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 4 {
		return pcm
	}
	srcFrames := len(pcm) / 4
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*4)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		// Left channel
		l0 := int16(pcm[srcIdx*4]) | int16(pcm[srcIdx*4+1])<<8
		// Right channel
		r0 := int16(pcm[srcIdx*4+2]) | int16(pcm[srcIdx*4+3])<<8

		var l1, r1 int16
		if srcIdx+1 < srcFrames {
			l1 = int16(pcm[(srcIdx+1)*4]) | int16(pcm[(srcIdx+1)*4+1])<<8
			r1 = int16(pcm[(srcIdx+1)*4+2]) | int16(pcm[(srcIdx+1)*4+3])<<8
		} else {
			l1 = l0
			r1 = r0
		}

		lInterp := int16(float64(l0)*(1-frac) + float64(l1)*frac)
		rInterp := int16(float64(r0)*(1-frac) + float64(r1)*frac)

		out[i*4] = byte(lInterp)
		out[i*4+1] = byte(lInterp >> 8)
		out[i*4+2] = byte(rInterp)
		out[i*4+3] = byte(rInterp >> 8)
	}
	return out
}
