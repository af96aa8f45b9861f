package stt

import (
	"context"
	"errors"
)

// ErrMicrophoneUnavailable is returned when no capture device can be opened
var ErrMicrophoneUnavailable = errors.New("microphone unavailable")

// Recognizer runs speech recognition sessions
type Recognizer interface {
	// Recognize captures and transcribes one utterance. It calls onResult
	// with the best transcript so far each time a final segment arrives and
	// returns when the utterance ends: ctx done, trailing silence, the
	// maximum duration, or an error. A nil error means the session ended
	// normally.
	Recognize(ctx context.Context, onResult func(transcript string)) error
}

// Microphone is a PCM16 little-endian capture source
type Microphone interface {
	// Capture delivers audio chunks to sink until ctx is done or the device
	// fails. It owns the device for the duration of the call.
	Capture(ctx context.Context, sink func(chunk []byte)) error
}

// MicrophoneFactory opens the default capture device at sampleRate, mono
type MicrophoneFactory func(sampleRate int) (Microphone, error)
