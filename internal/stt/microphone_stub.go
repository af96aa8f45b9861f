//go:build !portaudio

package stt

// MicrophoneAvailable reports whether this build can capture audio
const MicrophoneAvailable = false

// OpenMicrophone always fails in builds without PortAudio
func OpenMicrophone(sampleRate int) (Microphone, error) {
	return nil, ErrMicrophoneUnavailable
}
