package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alwatan/noura/internal/audio"
)

// ErrDeviceClosed is returned by a device that has been closed
var ErrDeviceClosed = errors.New("output device is closed")

// DeviceState mirrors the lifecycle of an output device
type DeviceState int

const (
	StateSuspended DeviceState = iota // Created but not yet producing sound
	StateRunning
	StateClosed
)

func (s DeviceState) String() string {
	switch s {
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Device is a single audio output. Devices start suspended and must be
// resumed before they play.
type Device interface {
	State() DeviceState
	Resume(ctx context.Context) error
	// Play blocks until buf has been rendered or ctx is done
	Play(ctx context.Context, buf *audio.Buffer) error
	Close() error
}

// DeviceFactory creates an output device for the given format
type DeviceFactory func(sampleRate, channels int) (Device, error)

// deviceState is the shared state machine embedded by the devices in this
// package
type deviceState struct {
	mu    sync.Mutex
	state DeviceState
}

func (d *deviceState) State() DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *deviceState) resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateClosed {
		return ErrDeviceClosed
	}
	d.state = StateRunning
	return nil
}

func (d *deviceState) checkRunning() error {
	switch d.State() {
	case StateClosed:
		return ErrDeviceClosed
	case StateSuspended:
		return errors.New("output device is suspended")
	}
	return nil
}

func (d *deviceState) close() {
	d.mu.Lock()
	d.state = StateClosed
	d.mu.Unlock()
}

// DiscardDevice renders nothing but takes as long as the audio would. It is
// used for headless runs and tests.
type DiscardDevice struct {
	deviceState
	SampleRate int
	Channels   int
}

// NewDiscardDevice is a DeviceFactory for DiscardDevice
func NewDiscardDevice(sampleRate, channels int) (Device, error) {
	return &DiscardDevice{SampleRate: sampleRate, Channels: channels}, nil
}

func (d *DiscardDevice) Resume(ctx context.Context) error {
	return d.resume()
}

func (d *DiscardDevice) Play(ctx context.Context, buf *audio.Buffer) error {
	if err := d.checkRunning(); err != nil {
		return err
	}
	timer := time.NewTimer(buf.Duration())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *DiscardDevice) Close() error {
	d.close()
	return nil
}

// FileDevice writes every utterance to a numbered WAV file in Dir
type FileDevice struct {
	deviceState
	Dir        string
	SampleRate int
	Channels   int
	seq        atomic.Int64
}

// FileDeviceFactory returns a DeviceFactory writing into dir
func FileDeviceFactory(dir string) DeviceFactory {
	return func(sampleRate, channels int) (Device, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
		return &FileDevice{Dir: dir, SampleRate: sampleRate, Channels: channels}, nil
	}
}

func (d *FileDevice) Resume(ctx context.Context) error {
	return d.resume()
}

func (d *FileDevice) Play(ctx context.Context, buf *audio.Buffer) error {
	if err := d.checkRunning(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	wav, err := audio.EncodeWAV(buf.PCM16(), buf.SampleRate, buf.NumChannels())
	if err != nil {
		return err
	}

	name := fmt.Sprintf("utterance-%04d.wav", d.seq.Add(1))
	if err := os.WriteFile(filepath.Join(d.Dir, name), wav, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (d *FileDevice) Close() error {
	d.close()
	return nil
}
