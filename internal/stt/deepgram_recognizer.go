package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/alwatan/noura/internal/audio"
	"github.com/alwatan/noura/internal/config"
	"github.com/alwatan/noura/internal/observability"
	"github.com/alwatan/noura/internal/resilience"
)

// finalizeGrace is how long to wait for trailing results after local
// silence detection ends the utterance
const finalizeGrace = 1500 * time.Millisecond

// DeepgramOptions configures a DeepgramRecognizer
type DeepgramOptions struct {
	APIKey      string
	Model       string
	Language    string // BCP-47, ar-SA by default
	SampleRate  int
	MaxDuration time.Duration
	BufferSize  int // Ring buffer capacity in bytes
	VAD         *audio.VADConfig
	Reconnect   *resilience.ReconnectConfig
	Breaker     *resilience.CircuitBreaker
	Microphone  MicrophoneFactory
}

// DeepgramOptionsFromConfig builds recognizer options from the loaded
// configuration
func DeepgramOptionsFromConfig(cfg *config.Config) DeepgramOptions {
	return DeepgramOptions{
		APIKey:      cfg.DeepgramAPIKey,
		Model:       cfg.DeepgramModel,
		Language:    cfg.SpeechLocale,
		SampleRate:  cfg.CaptureSampleRate,
		MaxDuration: time.Duration(cfg.CaptureMaxDuration) * time.Second,
		BufferSize:  cfg.AudioBufferSize,
		VAD: &audio.VADConfig{
			EnergyThreshold: cfg.VADEnergyThreshold,
			SilenceFrames:   cfg.VADSilenceFrames,
			FrameSize:       cfg.CaptureSampleRate / 50, // 20ms
		},
		Reconnect: &resilience.ReconnectConfig{
			MaxAttempts: cfg.ReconnectMaxAttempts,
			Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
			Multiplier:  2.0,
			MaxBackoff:  5 * time.Second,
		},
		Breaker: resilience.NewCircuitBreaker(
			"deepgram",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		Microphone: OpenMicrophone,
	}
}

// liveConn is the part of the Deepgram websocket client used per session
type liveConn interface {
	Connect() bool
	Write(p []byte) (int, error)
	Finish()
}

type dialFunc func(ctx context.Context, session *liveSession) (liveConn, error)

// DeepgramRecognizer implements Recognizer with Deepgram live transcription
// fed from the microphone
type DeepgramRecognizer struct {
	opts   DeepgramOptions
	dial   dialFunc
	logger zerolog.Logger
}

// NewDeepgramRecognizer creates a recognizer. It does not touch the network
// or the microphone until Recognize is called.
func NewDeepgramRecognizer(opts DeepgramOptions) (*DeepgramRecognizer, error) {
	if opts.APIKey == "" {
		return nil, errors.New("deepgram API key is required")
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Language == "" {
		opts.Language = "ar-SA"
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 65536
	}
	if opts.Microphone == nil {
		opts.Microphone = OpenMicrophone
	}

	r := &DeepgramRecognizer{
		opts:   opts,
		logger: observability.Component("deepgram"),
	}
	r.dial = r.dialDeepgram
	return r, nil
}

func (r *DeepgramRecognizer) transcriptionOptions() *interfaces.LiveTranscriptionOptions {
	return &interfaces.LiveTranscriptionOptions{
		Model:          r.opts.Model,
		Language:       r.opts.Language,
		Punctuate:      true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		VadEvents:      true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     r.opts.SampleRate,
	}
}

func (r *DeepgramRecognizer) dialDeepgram(ctx context.Context, session *liveSession) (liveConn, error) {
	client, err := listenClient.NewWSUsingCallback(ctx, r.opts.APIKey, nil, r.transcriptionOptions(), session)
	if err != nil {
		return nil, fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	return client, nil
}

// Recognize captures one utterance from the microphone and streams it to
// Deepgram
func (r *DeepgramRecognizer) Recognize(ctx context.Context, onResult func(transcript string)) error {
	if r.opts.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.MaxDuration)
		defer cancel()
	}

	mic, err := r.opts.Microphone(r.opts.SampleRate)
	if err != nil {
		return err
	}

	session := newLiveSession(onResult, r.logger)
	conn, err := r.connect(ctx, session)
	if err != nil {
		return err
	}
	defer conn.Finish()

	ring := audio.NewRingBuffer(r.opts.BufferSize)
	vad := audio.NewVADDetector(r.opts.VAD)

	micCtx, stopMic := context.WithCancel(ctx)
	defer stopMic()
	micErr := make(chan error, 1)
	go func() {
		micErr <- mic.Capture(micCtx, func(chunk []byte) {
			ring.Write(chunk)
		})
	}()

	frameBytes := vad.FrameSize() * 2
	frame := make([]byte, frameBytes)

	for {
		select {
		case <-ctx.Done():
			return r.ctxEnd(ctx)

		case err := <-micErr:
			if ctx.Err() != nil {
				return r.ctxEnd(ctx)
			}
			return err

		case <-session.Ended():
			return session.Err()

		case <-ring.Ready():
			for ring.Available() >= frameBytes {
				n := ring.Read(frame)
				if _, err := conn.Write(append([]byte(nil), frame[:n]...)); err != nil {
					return fmt.Errorf("failed to send audio to Deepgram: %w", err)
				}

				_, _, ended := vad.ProcessFrame(audio.BytesToInt16(frame[:n]))
				if ended {
					stopMic()
					return r.awaitFinal(ctx, session)
				}
			}
			if dropped := ring.Dropped(); dropped > 0 {
				r.logger.Warn().Int64("dropped_bytes", dropped).Msg("Capture buffer overflow")
			}
		}
	}
}

// ctxEnd maps the end of ctx to the session result: reaching the maximum
// duration is a normal end, caller cancellation is reported as such
func (r *DeepgramRecognizer) ctxEnd(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.logger.Debug().Dur("max_duration", r.opts.MaxDuration).Msg("Capture reached maximum duration")
		return nil
	}
	return ctx.Err()
}

// connect dials Deepgram with reconnection, guarded by the breaker
func (r *DeepgramRecognizer) connect(ctx context.Context, session *liveSession) (liveConn, error) {
	var conn liveConn
	attempt := func() error {
		return resilience.Reconnect(ctx, func() error {
			c, err := r.dial(ctx, session)
			if err != nil {
				return err
			}
			if !c.Connect() {
				return errors.New("failed to connect to Deepgram")
			}
			conn = c
			return nil
		}, r.opts.Reconnect)
	}

	var err error
	if r.opts.Breaker != nil {
		err = r.opts.Breaker.Call(attempt)
		observability.UpdateCircuitBreakerState(r.opts.Breaker.Name(), int(r.opts.Breaker.GetState()))
		if err != nil {
			observability.IncrementCircuitBreakerFailures(r.opts.Breaker.Name())
		}
	} else {
		err = attempt()
	}
	if err != nil {
		return nil, err
	}

	r.logger.Debug().
		Str("model", r.opts.Model).
		Str("language", r.opts.Language).
		Msg("Deepgram session connected")
	return conn, nil
}

// awaitFinal gives Deepgram a short window to deliver trailing finals after
// the microphone stopped
func (r *DeepgramRecognizer) awaitFinal(ctx context.Context, session *liveSession) error {
	timer := time.NewTimer(finalizeGrace)
	defer timer.Stop()

	select {
	case <-session.Ended():
		return session.Err()
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// liveSession receives Deepgram events for one utterance. It embeds the
// default handler for the events it ignores.
type liveSession struct {
	*websocketv1api.DefaultCallbackHandler
	onResult func(transcript string)
	logger   zerolog.Logger

	mu     sync.Mutex
	finals []string
	ended  chan struct{}
	once   sync.Once
	err    error
}

func newLiveSession(onResult func(string), logger zerolog.Logger) *liveSession {
	return &liveSession{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		onResult:               onResult,
		logger:                 logger,
		ended:                  make(chan struct{}),
	}
}

// Ended is closed when Deepgram reports the end of the utterance, closes
// the stream or fails
func (s *liveSession) Ended() <-chan struct{} {
	return s.ended
}

// Err returns the error that ended the session, if any
func (s *liveSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *liveSession) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.ended)
	})
}

// Message handles transcription results
func (s *liveSession) Message(msg *msginterfaces.MessageResponse) error {
	if msg == nil || len(msg.Channel.Alternatives) == 0 {
		return nil
	}
	s.handleTranscript(msg.Channel.Alternatives[0].Transcript, msg.IsFinal, msg.SpeechFinal)
	return nil
}

func (s *liveSession) handleTranscript(transcript string, isFinal, speechFinal bool) {
	transcript = strings.TrimSpace(transcript)
	if !isFinal {
		if transcript != "" {
			s.logger.Debug().Str("interim", transcript).Msg("Deepgram interim transcription")
		}
		return
	}

	s.mu.Lock()
	if transcript != "" {
		s.finals = append(s.finals, transcript)
	}
	full := strings.Join(s.finals, " ")
	heard := len(s.finals) > 0
	s.mu.Unlock()

	if transcript != "" && s.onResult != nil {
		s.onResult(full)
	}
	if speechFinal && heard {
		s.finish(nil)
	}
}

// UtteranceEnd ends the session once something was transcribed
func (s *liveSession) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	s.mu.Lock()
	heard := len(s.finals) > 0
	s.mu.Unlock()

	if heard {
		s.finish(nil)
	}
	return nil
}

// Close ends the session when the server closes the stream
func (s *liveSession) Close(cr *msginterfaces.CloseResponse) error {
	s.finish(nil)
	return nil
}

// Error ends the session with the reported error
func (s *liveSession) Error(er *msginterfaces.ErrorResponse) error {
	s.logger.Error().Interface("error", er).Msg("Deepgram error")
	s.finish(fmt.Errorf("deepgram error: %+v", er))
	return nil
}
