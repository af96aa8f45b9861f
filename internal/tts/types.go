package tts

import (
	"context"
	"errors"
)

// ErrNoAudio is returned when synthesis succeeded but produced no audio
var ErrNoAudio = errors.New("speech synthesis returned no audio")

// Speech is one synthesized utterance
type Speech struct {
	AudioBase64 string // Standard base64 of signed 16-bit little-endian PCM
	SampleRate  int    // Sample rate in Hz (24000 for Gemini TTS)
	Channels    int    // Number of channels (1 for mono)
	MIMEType    string // As reported by the remote, e.g. audio/L16;codec=pcm;rate=24000
}

// Synthesizer turns text into speech audio
type Synthesizer interface {
	// Synthesize returns the audio for text, or ErrNoAudio when the remote
	// produced none
	Synthesize(ctx context.Context, text string) (Speech, error)
}
