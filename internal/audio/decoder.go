// Package audio turns synthesized speech payloads into playable sample
// buffers and provides the small DSP helpers used by speech capture.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// SpeechSampleRate is the rate of PCM returned by the speech synthesis endpoint.
	SpeechSampleRate = 24000
	// SpeechChannels is the channel count of synthesized speech (mono).
	SpeechChannels = 1

	bytesPerSample = 2
	pcmScale       = 32768.0
)

// ErrMalformedPayload is returned when an audio payload is not valid base64
var ErrMalformedPayload = errors.New("malformed audio payload")

// Buffer holds decoded floating point samples, one slice per channel.
// Samples are in [-1.0, 1.0).
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NumChannels returns the channel count
func (b *Buffer) NumChannels() int {
	return len(b.Channels)
}

// Frames returns the number of sample frames (samples per channel)
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length of the buffer
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Interleaved returns samples in frame order (L R L R ...) as most output
// devices expect
func (b *Buffer) Interleaved() []float32 {
	channels := b.NumChannels()
	frames := b.Frames()
	out := make([]float32, frames*channels)
	for ch, data := range b.Channels {
		for i, s := range data {
			out[i*channels+ch] = s
		}
	}
	return out
}

// PCM16 converts the buffer back to interleaved signed 16-bit samples,
// clamping to the representable range
func (b *Buffer) PCM16() []int16 {
	interleaved := b.Interleaved()
	out := make([]int16, len(interleaved))
	for i, s := range interleaved {
		v := math.Round(float64(s) * pcmScale)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}

// DecodeBase64ToBytes decodes a standard base64 payload into raw bytes
func DecodeBase64ToBytes(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return data, nil
}

// DecodePCMToBuffer interprets data as interleaved signed 16-bit
// little-endian samples and normalizes each by 1/32768.
//
// The frame count is len(data)/2/channels; trailing bytes that do not form a
// whole frame are dropped. Empty input yields a zero-frame buffer.
func DecodePCMToBuffer(data []byte, sampleRate, channels int) (*Buffer, error) {
	if channels < 1 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}
	if sampleRate < 1 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	frames := len(data) / bytesPerSample / channels

	buf := &Buffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channels),
	}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			offset := (i*channels + ch) * bytesPerSample
			sample := int16(binary.LittleEndian.Uint16(data[offset:]))
			buf.Channels[ch][i] = float32(float64(sample) / pcmScale)
		}
	}

	return buf, nil
}

// DecodeSpeech is DecodeBase64ToBytes followed by DecodePCMToBuffer
func DecodeSpeech(payload string, sampleRate, channels int) (*Buffer, error) {
	data, err := DecodeBase64ToBytes(payload)
	if err != nil {
		return nil, err
	}
	return DecodePCMToBuffer(data, sampleRate, channels)
}

// BytesToInt16 converts little-endian PCM16 bytes to samples, ignoring a
// trailing odd byte
func BytesToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/bytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*bytesPerSample:]))
	}
	return samples
}

// CalculateRMS calculates the root mean square (RMS) of audio samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}
