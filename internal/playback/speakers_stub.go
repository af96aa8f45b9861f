//go:build !portaudio

package playback

import (
	"errors"
)

// SpeakersAvailable reports whether this build can drive the speakers
const SpeakersAvailable = false

// ErrSpeakersUnavailable is returned when the binary was built without
// PortAudio support
var ErrSpeakersUnavailable = errors.New("speaker output requires building with -tags portaudio")

// SpeakerFactory returns a DeviceFactory that always fails in this build
func SpeakerFactory() DeviceFactory {
	return func(sampleRate, channels int) (Device, error) {
		return nil, ErrSpeakersUnavailable
	}
}
