//go:build portaudio

package stt

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// MicrophoneAvailable reports whether this build can capture audio
const MicrophoneAvailable = true

type portAudioMicrophone struct {
	sampleRate      int
	framesPerBuffer int
}

// OpenMicrophone returns the default input device. The stream itself is
// opened per Capture call.
func OpenMicrophone(sampleRate int) (Microphone, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	return &portAudioMicrophone{
		sampleRate:      sampleRate,
		framesPerBuffer: sampleRate / 50, // 20ms
	}, nil
}

func (m *portAudioMicrophone) Capture(ctx context.Context, sink func(chunk []byte)) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrMicrophoneUnavailable, err)
	}
	defer portaudio.Terminate()

	in := make([]int16, m.framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), len(in), in)
	if err != nil {
		return fmt.Errorf("%w: failed to open input stream: %v", ErrMicrophoneUnavailable, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("%w: failed to start input stream: %v", ErrMicrophoneUnavailable, err)
	}
	defer stream.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := stream.Read(); err != nil {
			return fmt.Errorf("failed to read input stream: %w", err)
		}

		chunk := make([]byte, len(in)*2)
		for i, v := range in {
			binary.LittleEndian.PutUint16(chunk[i*2:], uint16(v))
		}
		sink(chunk)
	}
}
