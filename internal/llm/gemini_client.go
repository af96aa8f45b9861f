// Package llm is the chat half of the remote assistant client.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/alwatan/noura/internal/config"
	"github.com/alwatan/noura/internal/gemini"
	"github.com/alwatan/noura/internal/observability"
	"github.com/alwatan/noura/internal/resilience"
)

// Options configures a GeminiClient
type Options struct {
	Model             string
	SystemInstruction string
	Temperature       float32
	TopP              float32
	Timeout           time.Duration
	Retry             *resilience.RetryConfig
	Breaker           *resilience.CircuitBreaker
}

// OptionsFromConfig builds chat options from the loaded configuration
func OptionsFromConfig(cfg *config.Config, systemInstruction string) Options {
	return Options{
		Model:             cfg.ChatModel,
		SystemInstruction: systemInstruction,
		Temperature:       cfg.ChatTemperature,
		TopP:              cfg.ChatTopP,
		Timeout:           time.Duration(cfg.ChatTimeout) * time.Second,
		Retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		Breaker: gemini.NewBreaker(
			"gemini-chat",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
	}
}

// GeminiClient implements Client on the Gemini generateContent API
type GeminiClient struct {
	gen  gemini.Generator
	opts Options
}

// NewGeminiClient creates a chat client over gen
func NewGeminiClient(gen gemini.Generator, opts Options) *GeminiClient {
	return &GeminiClient{gen: gen, opts: opts}
}

// Chat sends history plus message and returns the reply or the reason there
// is none
func (c *GeminiClient) Chat(ctx context.Context, history []Turn, message string) ChatResult {
	logger := observability.Component("llm")
	start := time.Now()

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, gemini.TextContent(turn.Role, turn.Text))
	}
	contents = append(contents, gemini.TextContent(RoleUser, message))

	resp, err := gemini.Generate(ctx, c.gen, c.opts.Model, contents, c.generateConfig(), gemini.CallOptions{
		Timeout: c.opts.Timeout,
		Retry:   c.opts.Retry,
		Breaker: c.opts.Breaker,
	})
	if err != nil {
		failure := classify(err)
		observability.RecordChat(start, false)
		observability.RecordError(string(failure.Reason), "llm")
		logger.Error().Err(err).
			Str("reason", string(failure.Reason)).
			Int("history", len(history)).
			Dur("elapsed", time.Since(start)).
			Msg("Chat request failed")
		return ChatResult{Failure: failure}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		observability.RecordChat(start, false)
		observability.RecordError(string(ReasonEmptyReply), "llm")
		logger.Warn().Msg("Chat model returned an empty reply")
		return ChatResult{Failure: &Failure{Reason: ReasonEmptyReply}}
	}

	observability.RecordChat(start, true)
	logger.Debug().
		Int("history", len(history)).
		Int("reply_len", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("Chat reply received")
	return ChatResult{Text: text}
}

func (c *GeminiClient) generateConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: gemini.Ptr(c.opts.Temperature),
		TopP:        gemini.Ptr(c.opts.TopP),
	}
	if c.opts.SystemInstruction != "" {
		cfg.SystemInstruction = gemini.TextContent(RoleUser, c.opts.SystemInstruction)
	}
	return cfg
}

func classify(err error) *Failure {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return &Failure{Reason: ReasonCircuitOpen, Err: err}
	case errors.Is(err, context.Canceled):
		return &Failure{Reason: ReasonCanceled, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Failure{Reason: ReasonTimeout, Err: err}
	default:
		return &Failure{Reason: ReasonRemoteError, Err: err}
	}
}
