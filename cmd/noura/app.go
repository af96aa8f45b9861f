package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/alwatan/noura/internal/config"
	"github.com/alwatan/noura/internal/gemini"
	"github.com/alwatan/noura/internal/llm"
	"github.com/alwatan/noura/internal/observability"
	"github.com/alwatan/noura/internal/orchestrator"
	"github.com/alwatan/noura/internal/persona"
	"github.com/alwatan/noura/internal/playback"
	"github.com/alwatan/noura/internal/stt"
	"github.com/alwatan/noura/internal/tts"
)

// app is the wired client: one orchestrator, one playback engine and at most
// one speech capture controller
type app struct {
	cfg       *config.Config
	persona   *persona.Persona
	generator gemini.Generator
	speaker   *playback.Engine
	capture   *stt.Controller
	orch      *orchestrator.Orchestrator
	output    string
	metrics   *http.Server
	logger    zerolog.Logger
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	p, err := persona.Load(cfg.PersonaFile)
	if err != nil {
		return nil, err
	}

	gen, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		persona:   p,
		generator: gen,
		logger:    observability.Component("app"),
	}

	synth := tts.NewGeminiSynthesizer(gen, tts.OptionsFromConfig(cfg, p.SpeechStyle))
	factory, output := selectDevice(cfg)
	a.output = output
	a.speaker = playback.NewEngine(synth, factory, playback.Options{
		SampleRate:       cfg.PlaybackSampleRate,
		Channels:         cfg.PlaybackChannels,
		SynthesisTimeout: time.Duration(cfg.TTSTimeout) * time.Second,
	})

	chat := llm.NewGeminiClient(gen, llm.OptionsFromConfig(cfg, p.SystemInstruction))
	a.orch = orchestrator.New(chat, a.speaker, p)

	var rec stt.Recognizer
	if cfg.SpeechCaptureEnabled() {
		r, err := stt.NewDeepgramRecognizer(stt.DeepgramOptionsFromConfig(cfg))
		if err != nil {
			return nil, err
		}
		rec = r
	}
	a.capture = stt.NewController(rec, a.orch.RecordIncomingUtterance)

	a.logger.Info().
		Str("chat_model", cfg.ChatModel).
		Str("tts_model", cfg.TTSModel).
		Str("output", output).
		Bool("speech_capture", a.capture.Available()).
		Msg("Noura client ready")

	return a, nil
}

// selectDevice picks speakers when the build has them, then a WAV directory
// when one is configured, else silent playback
func selectDevice(cfg *config.Config) (playback.DeviceFactory, string) {
	switch {
	case playback.SpeakersAvailable:
		return playback.SpeakerFactory(), "speakers"
	case cfg.PlaybackOutputDir != "":
		return playback.FileDeviceFactory(cfg.PlaybackOutputDir), "wav:" + cfg.PlaybackOutputDir
	default:
		return playback.NewDiscardDevice, "silent"
	}
}

// readinessChecks reports what the client depends on. Disabled features map
// to nil checks.
func (a *app) readinessChecks() map[string]observability.HealthCheckFunc {
	checks := map[string]observability.HealthCheckFunc{
		"gemini": func(ctx context.Context) (bool, error) {
			if a.generator == nil {
				return false, errors.New("gemini client not initialized")
			}
			return true, nil
		},
		"playback": func(ctx context.Context) (bool, error) {
			if a.output == "silent" {
				return false, errors.New("no audio output: build with -tags portaudio or set PLAYBACK_OUTPUT_DIR")
			}
			return true, nil
		},
		"deepgram": nil,
	}
	if a.capture.Available() {
		checks["deepgram"] = func(ctx context.Context) (bool, error) {
			if !stt.MicrophoneAvailable {
				return false, stt.ErrMicrophoneUnavailable
			}
			return true, nil
		}
	}
	return checks
}

// startMetrics serves /metrics and /ready on cfg.MetricsAddr, if set
func (a *app) startMetrics() error {
	if a.cfg.MetricsAddr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(a.readinessChecks()))

	ln, err := net.Listen("tcp", a.cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.MetricsAddr, err)
	}

	a.metrics = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := a.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("Metrics listener failed")
		}
	}()

	a.logger.Info().Str("addr", ln.Addr().String()).Msg("Metrics enabled at /metrics and /ready")
	return nil
}

// Close stops capture and playback and cancels any chat call in flight
func (a *app) Close() {
	a.capture.Stop()
	a.capture.Wait()
	a.orch.Close()
	if err := a.speaker.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close playback device")
	}

	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("Metrics listener forced to shut down")
		}
	}
}
