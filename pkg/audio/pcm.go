package audio

import "log/slog"

// Normalize prepares provider PCM for WAV encoding at dstRate. A trailing odd
// byte (half a sample) is dropped, and the audio is resampled when the provider
// rate differs from the playback rate.
func Normalize(pcm []byte, srcRate, dstRate int) []byte {
	if len(pcm)%2 != 0 {
		slog.Debug("audio: dropping trailing odd byte from pcm", "bytes", len(pcm))
		pcm = pcm[:len(pcm)-1]
	}
	return ResampleMono16(pcm, srcRate, dstRate)
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. If the rates match (or either is unset) the input is returned
// unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
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
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := sampleAt(pcm, idx)
		s1 := s0
		if idx+1 < srcSamples {
			s1 = sampleAt(pcm, idx+1)
		}

		v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}
