// Package tts is the speech-synthesis half of the remote assistant client.
package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strconv"
	"time"

	"google.golang.org/genai"

	"github.com/alwatan/noura/internal/audio"
	"github.com/alwatan/noura/internal/config"
	"github.com/alwatan/noura/internal/gemini"
	"github.com/alwatan/noura/internal/observability"
	"github.com/alwatan/noura/internal/resilience"
)

// Options configures a GeminiSynthesizer
type Options struct {
	Model string
	Voice string // Prebuilt voice name
	// Style is prepended to every text to steer delivery
	Style   string
	Timeout time.Duration
	Retry   *resilience.RetryConfig
	Breaker *resilience.CircuitBreaker
}

// OptionsFromConfig builds synthesis options from the loaded configuration
func OptionsFromConfig(cfg *config.Config, style string) Options {
	return Options{
		Model:   cfg.TTSModel,
		Voice:   cfg.TTSVoice,
		Style:   style,
		Timeout: time.Duration(cfg.TTSTimeout) * time.Second,
		Retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		Breaker: gemini.NewBreaker(
			"gemini-tts",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
	}
}

// GeminiSynthesizer implements Synthesizer on the Gemini TTS models
type GeminiSynthesizer struct {
	gen  gemini.Generator
	opts Options
}

// NewGeminiSynthesizer creates a synthesizer over gen
func NewGeminiSynthesizer(gen gemini.Generator, opts Options) *GeminiSynthesizer {
	return &GeminiSynthesizer{gen: gen, opts: opts}
}

// Synthesize requests speech for text in the configured voice
func (s *GeminiSynthesizer) Synthesize(ctx context.Context, text string) (Speech, error) {
	logger := observability.Component("tts")
	start := time.Now()

	contents := []*genai.Content{gemini.TextContent("user", s.opts.Style+text)}

	resp, err := gemini.Generate(ctx, s.gen, s.opts.Model, contents, s.generateConfig(), gemini.CallOptions{
		Timeout: s.opts.Timeout,
		Retry:   s.opts.Retry,
		Breaker: s.opts.Breaker,
	})
	if err != nil {
		observability.RecordTTS(start, false)
		observability.RecordError("synthesis_failed", "tts")
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Speech synthesis failed")
		return Speech{}, fmt.Errorf("speech synthesis failed: %w", err)
	}

	blob := gemini.InlineAudio(resp)
	if blob == nil {
		observability.RecordTTS(start, false)
		logger.Warn().Int("text_len", len(text)).Msg("Speech synthesis returned no audio")
		return Speech{}, ErrNoAudio
	}

	observability.RecordTTS(start, true)
	logger.Debug().
		Int("bytes", len(blob.Data)).
		Str("mime", blob.MIMEType).
		Dur("elapsed", time.Since(start)).
		Msg("Speech synthesized")

	return Speech{
		// The SDK hands back raw bytes; the playback path consumes base64
		AudioBase64: base64.StdEncoding.EncodeToString(blob.Data),
		SampleRate:  sampleRateFromMIME(blob.MIMEType, audio.SpeechSampleRate),
		Channels:    audio.SpeechChannels,
		MIMEType:    blob.MIMEType,
	}, nil
}

func (s *GeminiSynthesizer) generateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: s.opts.Voice,
				},
			},
		},
	}
}

// sampleRateFromMIME reads the rate parameter of an audio/L16 MIME type
func sampleRateFromMIME(mimeType string, fallback int) int {
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return fallback
	}
	rate, err := strconv.Atoi(params["rate"])
	if err != nil || rate <= 0 {
		return fallback
	}
	return rate
}
