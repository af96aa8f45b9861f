//go:build portaudio

package playback

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/alwatan/noura/internal/audio"
)

// SpeakersAvailable reports whether this build can drive the speakers
const SpeakersAvailable = true

// framesPerBuffer is 40ms at 24kHz
const framesPerBuffer = 960

// PortAudioDevice plays through the default output device
type PortAudioDevice struct {
	deviceState
	sampleRate int
	channels   int

	playMu sync.Mutex // one writer on the stream at a time
	stream *portaudio.Stream
	out    []float32
}

// SpeakerFactory returns a DeviceFactory for the default speakers
func SpeakerFactory() DeviceFactory {
	return func(sampleRate, channels int) (Device, error) {
		if err := portaudio.Initialize(); err != nil {
			return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
		}
		return &PortAudioDevice{sampleRate: sampleRate, channels: channels}, nil
	}
}

// Resume opens and starts the output stream
func (d *PortAudioDevice) Resume(ctx context.Context) error {
	d.playMu.Lock()
	defer d.playMu.Unlock()

	if d.stream == nil {
		d.out = make([]float32, framesPerBuffer*d.channels)
		stream, err := portaudio.OpenDefaultStream(0, d.channels, float64(d.sampleRate), framesPerBuffer, d.out)
		if err != nil {
			return fmt.Errorf("failed to open output stream: %w", err)
		}
		if err := stream.Start(); err != nil {
			stream.Close()
			return fmt.Errorf("failed to start output stream: %w", err)
		}
		d.stream = stream
	}
	return d.resume()
}

// Play writes buf to the stream in buffer-sized blocks, stopping early when
// ctx is done
func (d *PortAudioDevice) Play(ctx context.Context, buf *audio.Buffer) error {
	if err := d.checkRunning(); err != nil {
		return err
	}

	d.playMu.Lock()
	defer d.playMu.Unlock()

	samples := buf.Interleaved()
	for pos := 0; pos < len(samples); pos += len(d.out) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(d.out, samples[pos:])
		for i := n; i < len(d.out); i++ {
			d.out[i] = 0
		}
		if err := d.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to output stream: %w", err)
		}
	}
	return nil
}

// Close stops the stream and releases PortAudio
func (d *PortAudioDevice) Close() error {
	d.playMu.Lock()
	defer d.playMu.Unlock()

	if d.State() == StateClosed {
		return nil
	}
	d.close()

	var err error
	if d.stream != nil {
		if stopErr := d.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		if closeErr := d.stream.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		d.stream = nil
	}
	if termErr := portaudio.Terminate(); termErr != nil && err == nil {
		err = termErr
	}
	return err
}
