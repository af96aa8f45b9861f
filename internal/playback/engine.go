// Package playback speaks text: it asks the synthesizer for audio, decodes it
// and renders it on a single lazily created output device. A new request
// cancels and replaces the one in flight.
package playback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alwatan/noura/internal/audio"
	"github.com/alwatan/noura/internal/observability"
	"github.com/alwatan/noura/internal/tts"
)

// Outcome describes how a playback session ended
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeReplaced  Outcome = "replaced" // Canceled by a newer session, Stop or Close
	OutcomeSilent    Outcome = "silent"   // No audio was produced
	OutcomeFailed    Outcome = "failed"   // Decode or device failure
)

// Options configures an Engine
type Options struct {
	SampleRate       int           // Device and decode rate, 24000 by default
	Channels         int           // Decode channel count, 1 by default
	SynthesisTimeout time.Duration // Bound on the synthesis request, 0 for none
}

// Session is the token for one PlayText request
type Session struct {
	id      uint64
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome
}

// ID returns the session's sequence number; later sessions have larger IDs
func (s *Session) ID() uint64 {
	return s.id
}

// Done is closed once the session has finished
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session has finished and returns its outcome
func (s *Session) Wait() Outcome {
	<-s.done
	return s.outcome
}

// Engine owns the output device and the playing flag
type Engine struct {
	synth   tts.Synthesizer
	factory DeviceFactory
	opts    Options
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	deviceMu sync.Mutex // serializes device creation and resume
	device   Device

	mu       sync.Mutex
	nextID   uint64
	current  *Session
	playing  bool
	closed   bool
	onChange func(playing bool)
}

// NewEngine creates an engine. The device is not created until the first
// utterance with audio.
func NewEngine(synth tts.Synthesizer, factory DeviceFactory, opts Options) *Engine {
	if opts.SampleRate <= 0 {
		opts.SampleRate = audio.SpeechSampleRate
	}
	if opts.Channels <= 0 {
		opts.Channels = audio.SpeechChannels
	}
	if factory == nil {
		factory = NewDiscardDevice
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		synth:   synth,
		factory: factory,
		opts:    opts,
		logger:  observability.Component("playback"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// OnStateChange registers fn to be called whenever the playing flag changes.
// fn runs on the playback goroutine and must not block.
func (e *Engine) OnStateChange(fn func(playing bool)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// IsPlaying reports whether an utterance is currently being rendered
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// PlayText speaks text in the background and returns the session token.
// Any session still in flight is canceled. Failures are logged and counted,
// never returned.
func (e *Engine) PlayText(text string) *Session {
	e.mu.Lock()
	e.nextID++
	s := &Session{id: e.nextID, done: make(chan struct{})}
	s.ctx, s.cancel = context.WithCancel(e.ctx)

	if e.closed {
		e.mu.Unlock()
		s.cancel()
		s.outcome = OutcomeReplaced
		close(s.done)
		return s
	}

	previous := e.current
	e.current = s
	e.mu.Unlock()

	if previous != nil {
		previous.cancel()
	}

	go e.run(s, text)
	return s
}

// Stop cancels the current session and clears the playing flag
func (e *Engine) Stop() {
	e.mu.Lock()
	current := e.current
	e.current = nil
	e.mu.Unlock()

	if current != nil {
		current.cancel()
	}
	e.setPlaying(nil, false)
}

// Close stops playback and releases the output device. The engine plays
// nothing afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.Stop()
	e.cancel()

	e.deviceMu.Lock()
	defer e.deviceMu.Unlock()
	if e.device == nil {
		return nil
	}
	err := e.device.Close()
	e.device = nil
	return err
}

func (e *Engine) run(s *Session, text string) {
	defer close(s.done)

	s.outcome = e.play(s, text)
	observability.RecordPlayback(string(s.outcome))

	// Only the current session may clear the flag
	e.setPlaying(s, false)
}

func (e *Engine) play(s *Session, text string) Outcome {
	logger := e.logger.With().Uint64("session", s.id).Logger()

	if strings.TrimSpace(text) == "" {
		return OutcomeSilent
	}

	speech, err := e.synthesize(s.ctx, text)
	if err != nil {
		if s.ctx.Err() != nil {
			return OutcomeReplaced
		}
		if !errors.Is(err, tts.ErrNoAudio) {
			logger.Warn().Err(err).Msg("No speech for utterance")
		}
		return OutcomeSilent
	}
	if speech.AudioBase64 == "" {
		return OutcomeSilent
	}
	if s.ctx.Err() != nil {
		return OutcomeReplaced
	}

	device, err := e.ensureDevice(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return OutcomeReplaced
		}
		observability.RecordError("device_unavailable", "playback")
		logger.Error().Err(err).Msg("Output device unavailable")
		return OutcomeFailed
	}

	buf, err := audio.DecodeSpeech(speech.AudioBase64, e.opts.SampleRate, e.opts.Channels)
	if err != nil {
		observability.RecordError("decode_failed", "playback")
		logger.Error().Err(err).Msg("Failed to decode speech audio")
		return OutcomeFailed
	}
	if speech.SampleRate != 0 && speech.SampleRate != e.opts.SampleRate {
		logger.Warn().
			Int("speech_rate", speech.SampleRate).
			Int("device_rate", e.opts.SampleRate).
			Msg("Speech sample rate differs from device rate")
	}

	if !e.setPlaying(s, true) {
		return OutcomeReplaced
	}
	observability.RecordPlaybackAudio(buf.Duration())
	logger.Debug().Dur("duration", buf.Duration()).Msg("Playback started")

	if err := device.Play(s.ctx, buf); err != nil {
		if s.ctx.Err() != nil {
			return OutcomeReplaced
		}
		observability.RecordError("device_failed", "playback")
		logger.Error().Err(err).Msg("Playback failed")
		return OutcomeFailed
	}

	logger.Debug().Msg("Playback completed")
	return OutcomeCompleted
}

func (e *Engine) synthesize(ctx context.Context, text string) (tts.Speech, error) {
	if e.synth == nil {
		return tts.Speech{}, tts.ErrNoAudio
	}
	if e.opts.SynthesisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.SynthesisTimeout)
		defer cancel()
	}
	return e.synth.Synthesize(ctx, text)
}

// ensureDevice creates the device on first use, recreates it only after it
// has closed, and resumes it when suspended
func (e *Engine) ensureDevice(ctx context.Context) (Device, error) {
	e.deviceMu.Lock()
	defer e.deviceMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.device == nil || e.device.State() == StateClosed {
		device, err := e.factory(e.opts.SampleRate, e.opts.Channels)
		if err != nil {
			return nil, err
		}
		e.device = device
		e.logger.Info().
			Int("sample_rate", e.opts.SampleRate).
			Int("channels", e.opts.Channels).
			Msg("Output device created")
	}

	if e.device.State() == StateSuspended {
		if err := e.device.Resume(ctx); err != nil {
			return nil, err
		}
	}
	return e.device, nil
}

// setPlaying updates the flag when s is the current session (or s is nil,
// for Stop) and reports whether s was current
func (e *Engine) setPlaying(s *Session, playing bool) bool {
	e.mu.Lock()
	if s != nil && e.current != s {
		e.mu.Unlock()
		return false
	}
	changed := e.playing != playing
	e.playing = playing
	if s != nil && !playing {
		e.current = nil
	}
	onChange := e.onChange
	e.mu.Unlock()

	if changed {
		observability.SetPlaying(playing)
		if onChange != nil {
			onChange(playing)
		}
	}
	return true
}
