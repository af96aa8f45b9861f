// Package gemini wires the Gemini SDK into the rest of the client: it owns the
// SDK client, the generator seam the chat and speech clients are tested
// through, and the timeout/retry/breaker envelope every remote call runs in.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/alwatan/noura/internal/observability"
	"github.com/alwatan/noura/internal/resilience"
)

// Generator is the subset of the Gemini models API used by this client.
// *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGenerator creates a Gemini API client and returns its models service
func NewGenerator(ctx context.Context, apiKey string) (Generator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client.Models, nil
}

// CallOptions bound a single remote call
type CallOptions struct {
	Timeout time.Duration
	Retry   *resilience.RetryConfig
	Breaker *resilience.CircuitBreaker
}

// NewBreaker creates a circuit breaker whose transitions are exported as
// metrics under service
func NewBreaker(service string, maxFailures int, resetTimeout time.Duration) *resilience.CircuitBreaker {
	cb := resilience.NewCircuitBreaker(service, maxFailures, resetTimeout)
	cb.OnStateChange = func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
		observability.Component("gemini").Warn().
			Str("service", name).
			Str("state", state.String()).
			Msg("Circuit breaker state changed")
	}
	observability.UpdateCircuitBreakerState(service, int(resilience.StateClosed))
	return cb
}

// Generate runs one GenerateContent request under the call options. The
// timeout covers all retry attempts. A breaker rejection is returned as
// resilience.ErrCircuitOpen.
func Generate(ctx context.Context, gen Generator, model string, contents []*genai.Content, config *genai.GenerateContentConfig, opts CallOptions) (*genai.GenerateContentResponse, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var resp *genai.GenerateContentResponse
	call := func() error {
		return resilience.Retry(ctx, func(ctx context.Context) error {
			r, err := gen.GenerateContent(ctx, model, contents, config)
			if err != nil {
				return err
			}
			resp = r
			return nil
		}, opts.Retry, IsRetryable)
	}

	var err error
	if opts.Breaker != nil {
		err = opts.Breaker.Call(call)
		if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
			observability.IncrementCircuitBreakerFailures(opts.Breaker.Name())
		}
	} else {
		err = call()
	}
	if err != nil {
		// Surface the deadline rather than the SDK's transport wording
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, err
	}
	return resp, nil
}

// IsRetryable reports whether a Gemini error is transient: network failures,
// rate limiting and 5xx responses.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if resilience.IsRetryableNetworkError(err) {
		return true
	}

	msg := err.Error()
	for _, code := range []string{"Error 429", "Error 500", "Error 502", "Error 503", "Error 504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// Ptr returns a pointer to v, for the SDK's optional numeric fields
func Ptr[T any](v T) *T {
	return &v
}

// TextContent builds a single-part text message for role
func TextContent(role, text string) *genai.Content {
	return &genai.Content{
		Role:  role,
		Parts: []*genai.Part{{Text: text}},
	}
}

// InlineAudio returns the first inline data part of the first candidate,
// or nil when the response carries none
func InlineAudio(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return nil
	}
	for _, part := range content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData
		}
	}
	return nil
}
