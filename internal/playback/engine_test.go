package playback

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alwatan/noura/internal/audio"
	"github.com/alwatan/noura/internal/tts"
)

// pcmPayload is 10ms of silence at 24kHz
var pcmPayload = base64.StdEncoding.EncodeToString(make([]byte, 480))

type fakeSynth struct {
	mu    sync.Mutex
	texts []string
	speak func(ctx context.Context, text string) (tts.Speech, error)
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) (tts.Speech, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	speak := f.speak
	f.mu.Unlock()

	if speak != nil {
		return speak(ctx, text)
	}
	return tts.Speech{AudioBase64: pcmPayload, SampleRate: 24000, Channels: 1}, nil
}

func (f *fakeSynth) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// gatedDevice blocks in Play until released or canceled
type gatedDevice struct {
	deviceState
	resumes atomic.Int32
	plays   atomic.Int32
	release chan struct{}
	started chan struct{}
	failErr error
}

func (d *gatedDevice) Resume(ctx context.Context) error {
	d.resumes.Add(1)
	return d.resume()
}

func (d *gatedDevice) Play(ctx context.Context, buf *audio.Buffer) error {
	d.plays.Add(1)
	if d.failErr != nil {
		return d.failErr
	}
	select {
	case d.started <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.release:
		return nil
	}
}

func (d *gatedDevice) Close() error {
	d.close()
	return nil
}

type deviceRecorder struct {
	mu      sync.Mutex
	created []*gatedDevice
	rates   []int
	release chan struct{}
	failErr error
}

func newDeviceRecorder() *deviceRecorder {
	return &deviceRecorder{release: make(chan struct{})}
}

func (r *deviceRecorder) factory(sampleRate, channels int) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := &gatedDevice{release: r.release, started: make(chan struct{}, 8), failErr: r.failErr}
	r.created = append(r.created, d)
	r.rates = append(r.rates, sampleRate)
	return d, nil
}

func (r *deviceRecorder) devices() []*gatedDevice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*gatedDevice(nil), r.created...)
}

func waitDone(t *testing.T, s *Session) Outcome {
	t.Helper()
	select {
	case <-s.Done():
		return s.Wait()
	case <-time.After(2 * time.Second):
		t.Fatalf("session %d did not finish", s.ID())
		return ""
	}
}

func waitStarted(t *testing.T, d *gatedDevice) {
	t.Helper()
	select {
	case <-d.started:
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not start")
	}
}

func TestEngine_PlayTextCompletes(t *testing.T) {
	synth := &fakeSynth{}
	rec := newDeviceRecorder()
	engine := NewEngine(synth, rec.factory, Options{})
	defer engine.Close()

	var mu sync.Mutex
	var changes []bool
	engine.OnStateChange(func(playing bool) {
		mu.Lock()
		changes = append(changes, playing)
		mu.Unlock()
	})

	s := engine.PlayText("أبشر")
	require.Eventually(t, func() bool { return len(rec.devices()) == 1 }, time.Second, time.Millisecond)
	devices := rec.devices()
	waitStarted(t, devices[0])
	assert.True(t, engine.IsPlaying())

	close(rec.release)
	assert.Equal(t, OutcomeCompleted, waitDone(t, s))
	assert.False(t, engine.IsPlaying())
	assert.Equal(t, []string{"أبشر"}, synth.calls())
	assert.Equal(t, []int{audio.SpeechSampleRate}, rec.rates)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, changes)
}

func TestEngine_DeviceCreatedOnceAndResumed(t *testing.T) {
	rec := newDeviceRecorder()
	close(rec.release)
	engine := NewEngine(&fakeSynth{}, rec.factory, Options{})
	defer engine.Close()

	for i := 0; i < 3; i++ {
		waitDone(t, engine.PlayText("مرحبا"))
	}

	devices := rec.devices()
	require.Len(t, devices, 1)
	assert.Equal(t, int32(1), devices[0].resumes.Load())
	assert.Equal(t, int32(3), devices[0].plays.Load())
	assert.Equal(t, StateRunning, devices[0].State())
}

func TestEngine_DeviceRecreatedAfterClose(t *testing.T) {
	rec := newDeviceRecorder()
	close(rec.release)
	engine := NewEngine(&fakeSynth{}, rec.factory, Options{})
	defer engine.Close()

	waitDone(t, engine.PlayText("one"))
	rec.devices()[0].Close()
	waitDone(t, engine.PlayText("two"))

	assert.Len(t, rec.devices(), 2)
}

func TestEngine_SilentWhenNoAudio(t *testing.T) {
	synth := &fakeSynth{speak: func(ctx context.Context, text string) (tts.Speech, error) {
		return tts.Speech{}, tts.ErrNoAudio
	}}
	rec := newDeviceRecorder()
	engine := NewEngine(synth, rec.factory, Options{})
	defer engine.Close()

	outcome := waitDone(t, engine.PlayText("أبشر"))

	assert.Equal(t, OutcomeSilent, outcome)
	assert.Empty(t, rec.devices(), "no device should be created without audio")
	assert.False(t, engine.IsPlaying())
}

func TestEngine_SilentOnSynthesisError(t *testing.T) {
	synth := &fakeSynth{speak: func(ctx context.Context, text string) (tts.Speech, error) {
		return tts.Speech{}, errors.New("remote down")
	}}
	engine := NewEngine(synth, newDeviceRecorder().factory, Options{})
	defer engine.Close()

	assert.Equal(t, OutcomeSilent, waitDone(t, engine.PlayText("أبشر")))
}

func TestEngine_DecodeFailureResetsFlag(t *testing.T) {
	synth := &fakeSynth{speak: func(ctx context.Context, text string) (tts.Speech, error) {
		return tts.Speech{AudioBase64: "%%% not base64"}, nil
	}}
	engine := NewEngine(synth, newDeviceRecorder().factory, Options{})
	defer engine.Close()

	outcome := waitDone(t, engine.PlayText("أبشر"))

	assert.Equal(t, OutcomeFailed, outcome)
	assert.False(t, engine.IsPlaying())
}

func TestEngine_DeviceFailureResetsFlag(t *testing.T) {
	rec := newDeviceRecorder()
	rec.failErr = errors.New("device rejected")
	engine := NewEngine(&fakeSynth{}, rec.factory, Options{})
	defer engine.Close()

	outcome := waitDone(t, engine.PlayText("أبشر"))

	assert.Equal(t, OutcomeFailed, outcome)
	assert.False(t, engine.IsPlaying())
}

func TestEngine_FactoryFailure(t *testing.T) {
	factory := func(sampleRate, channels int) (Device, error) {
		return nil, errors.New("no speakers")
	}
	engine := NewEngine(&fakeSynth{}, factory, Options{})
	defer engine.Close()

	assert.Equal(t, OutcomeFailed, waitDone(t, engine.PlayText("أبشر")))
	assert.False(t, engine.IsPlaying())
}

func TestEngine_CancelAndReplace(t *testing.T) {
	rec := newDeviceRecorder()
	engine := NewEngine(&fakeSynth{}, rec.factory, Options{})
	defer engine.Close()

	first := engine.PlayText("first")
	require.Eventually(t, func() bool { return len(rec.devices()) == 1 }, time.Second, time.Millisecond)
	device := rec.devices()[0]
	waitStarted(t, device)

	second := engine.PlayText("second")
	assert.Greater(t, second.ID(), first.ID())

	// The replaced session finishes without clearing the newer session's flag
	assert.Equal(t, OutcomeReplaced, waitDone(t, first))
	waitStarted(t, device)
	assert.True(t, engine.IsPlaying())

	close(rec.release)
	assert.Equal(t, OutcomeCompleted, waitDone(t, second))
	assert.False(t, engine.IsPlaying())
}

func TestEngine_StaleSessionCannotClearFlag(t *testing.T) {
	gate := make(chan struct{})
	synth := &fakeSynth{speak: func(ctx context.Context, text string) (tts.Speech, error) {
		if text == "slow" {
			<-gate
		}
		return tts.Speech{AudioBase64: pcmPayload}, nil
	}}
	rec := newDeviceRecorder()
	engine := NewEngine(synth, rec.factory, Options{})
	defer engine.Close()

	stale := engine.PlayText("slow")
	current := engine.PlayText("fast")
	require.Eventually(t, func() bool { return len(rec.devices()) == 1 }, time.Second, time.Millisecond)
	waitStarted(t, rec.devices()[0])

	close(gate)
	assert.Equal(t, OutcomeReplaced, waitDone(t, stale))
	assert.True(t, engine.IsPlaying())

	close(rec.release)
	waitDone(t, current)
	assert.False(t, engine.IsPlaying())
}

func TestEngine_Stop(t *testing.T) {
	rec := newDeviceRecorder()
	engine := NewEngine(&fakeSynth{}, rec.factory, Options{})
	defer engine.Close()

	s := engine.PlayText("أبشر")
	require.Eventually(t, func() bool { return len(rec.devices()) == 1 }, time.Second, time.Millisecond)
	waitStarted(t, rec.devices()[0])

	engine.Stop()

	assert.Equal(t, OutcomeReplaced, waitDone(t, s))
	assert.False(t, engine.IsPlaying())
}

func TestEngine_CloseReleasesDevice(t *testing.T) {
	rec := newDeviceRecorder()
	close(rec.release)
	engine := NewEngine(&fakeSynth{}, rec.factory, Options{})

	waitDone(t, engine.PlayText("أبشر"))
	require.NoError(t, engine.Close())

	assert.Equal(t, StateClosed, rec.devices()[0].State())
	assert.Equal(t, OutcomeReplaced, waitDone(t, engine.PlayText("after close")))
}

func TestEngine_EmptyTextIsSilent(t *testing.T) {
	synth := &fakeSynth{}
	engine := NewEngine(synth, newDeviceRecorder().factory, Options{})
	defer engine.Close()

	assert.Equal(t, OutcomeSilent, waitDone(t, engine.PlayText("  ")))
	assert.Empty(t, synth.calls())
}

func TestDiscardDevice(t *testing.T) {
	device, err := NewDiscardDevice(24000, 1)
	require.NoError(t, err)

	buf, err := audio.DecodePCMToBuffer(make([]byte, 480), 24000, 1)
	require.NoError(t, err)

	assert.Error(t, device.Play(context.Background(), buf), "suspended device should not play")
	require.NoError(t, device.Resume(context.Background()))
	assert.NoError(t, device.Play(context.Background(), buf))

	require.NoError(t, device.Close())
	assert.ErrorIs(t, device.Resume(context.Background()), ErrDeviceClosed)
}

func TestFileDevice(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	device, err := FileDeviceFactory(dir)(24000, 1)
	require.NoError(t, err)
	require.NoError(t, device.Resume(context.Background()))

	buf, err := audio.DecodePCMToBuffer(make([]byte, 480), 24000, 1)
	require.NoError(t, err)
	require.NoError(t, device.Play(context.Background(), buf))

	data, err := os.ReadFile(filepath.Join(dir, "utterance-0001.wav"))
	require.NoError(t, err)
	assert.Len(t, data, 44+480)
	assert.Equal(t, "RIFF", string(data[:4]))
}
