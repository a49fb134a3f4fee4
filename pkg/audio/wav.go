// Package audio provides the PCM helpers used to turn raw speech-synthesis
// output into playable segment audio.
//
// All PCM handled here is signed 16-bit little-endian. Segment audio is mono;
// the sample rate is whatever the synthesis provider reports (24 kHz for the
// hosted Gemini speech model).
package audio

import (
	"encoding/binary"
	"errors"
	"time"
)

// WAVHeaderSize is the size of the canonical RIFF/WAVE header written by
// [PCMToWAV].
const WAVHeaderSize = 44

// DefaultSampleRate is the sample rate of the hosted speech model's PCM output.
const DefaultSampleRate = 24000

const (
	wavChannels      = 1
	wavBitsPerSample = 16
	wavBlockAlign    = wavChannels * wavBitsPerSample / 8
	wavFormatPCM     = 1
)

// ErrEmptyPCM is returned by [PCMToWAV] when there is no payload to wrap.
var ErrEmptyPCM = errors.New("audio: empty pcm payload")

// ErrInvalidSampleRate is returned by [PCMToWAV] for a non-positive rate.
var ErrInvalidSampleRate = errors.New("audio: sample rate must be positive")

// PCMToWAV wraps mono 16-bit little-endian PCM in a minimal WAV container.
// The result is exactly WAVHeaderSize+len(pcm) bytes long and the payload is
// copied verbatim; no resampling or content validation is performed.
func PCMToWAV(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyPCM
	}
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}

	dataSize := uint32(len(pcm))
	buf := make([]byte, WAVHeaderSize+len(pcm))
	le := binary.LittleEndian

	copy(buf[0:4], "RIFF")
	le.PutUint32(buf[4:8], 36+dataSize)
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	le.PutUint32(buf[16:20], 16)
	le.PutUint16(buf[20:22], wavFormatPCM)
	le.PutUint16(buf[22:24], wavChannels)
	le.PutUint32(buf[24:28], uint32(sampleRate))
	le.PutUint32(buf[28:32], uint32(sampleRate*wavBlockAlign))
	le.PutUint16(buf[32:34], wavBlockAlign)
	le.PutUint16(buf[34:36], wavBitsPerSample)

	copy(buf[36:40], "data")
	le.PutUint32(buf[40:44], dataSize)

	copy(buf[WAVHeaderSize:], pcm)
	return buf, nil
}

// PCMDuration returns the playable length of mono 16-bit PCM at sampleRate.
func PCMDuration(pcmBytes, sampleRate int) time.Duration {
	if sampleRate <= 0 || pcmBytes <= 0 {
		return 0
	}
	samples := int64(pcmBytes / wavBlockAlign)
	return time.Duration(samples * int64(time.Second) / int64(sampleRate))
}
