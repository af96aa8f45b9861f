package gemini

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/alwatan/noura/internal/resilience"
)

type scriptedGenerator struct {
	mu    sync.Mutex
	errs  []error
	resp  *genai.GenerateContentResponse
	calls int
	block bool
}

func (g *scriptedGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.mu.Lock()
	g.calls++
	var err error
	if len(g.errs) > 0 {
		err = g.errs[0]
		g.errs = g.errs[1:]
	}
	block := g.block
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return g.resp, nil
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func fastOptions() CallOptions {
	return CallOptions{
		Timeout: time.Second,
		Retry: &resilience.RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        2 * time.Millisecond,
			BackoffMultiplier: 1,
		},
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: TextContent("model", text)}},
	}
}

func TestGenerate_Success(t *testing.T) {
	gen := &scriptedGenerator{resp: textResponse("أبشر")}

	resp, err := Generate(context.Background(), gen, "m", nil, nil, fastOptions())

	require.NoError(t, err)
	assert.Equal(t, "أبشر", resp.Text())
	assert.Equal(t, 1, gen.callCount())
}

func TestGenerate_RetriesTransientErrors(t *testing.T) {
	gen := &scriptedGenerator{
		errs: []error{errors.New("Error 503, Message: overloaded")},
		resp: textResponse("ok"),
	}

	_, err := Generate(context.Background(), gen, "m", nil, nil, fastOptions())

	require.NoError(t, err)
	assert.Equal(t, 2, gen.callCount())
}

func TestGenerate_DoesNotRetryClientErrors(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{errors.New("Error 400, Message: bad request")}}

	_, err := Generate(context.Background(), gen, "m", nil, nil, fastOptions())

	require.Error(t, err)
	assert.Equal(t, 1, gen.callCount())
}

func TestGenerate_Timeout(t *testing.T) {
	gen := &scriptedGenerator{block: true}
	opts := fastOptions()
	opts.Timeout = 20 * time.Millisecond
	opts.Retry.MaxAttempts = 1

	_, err := Generate(context.Background(), gen, "m", nil, nil, opts)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerate_CircuitOpen(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{errors.New("Error 400"), errors.New("Error 400")}}
	opts := fastOptions()
	opts.Breaker = NewBreaker("test-gemini", 1, time.Minute)

	_, err := Generate(context.Background(), gen, "m", nil, nil, opts)
	require.Error(t, err)

	_, err = Generate(context.Background(), gen, "m", nil, nil, opts)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 1, gen.callCount())
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(errors.New("Error 429, Message: quota")))
	assert.True(t, IsRetryable(errors.New("connection reset by peer")))
	assert.False(t, IsRetryable(errors.New("Error 403, Message: forbidden")))
}

func TestInlineAudio(t *testing.T) {
	assert.Nil(t, InlineAudio(nil))
	assert.Nil(t, InlineAudio(textResponse("no audio")))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
			{Text: "caption"},
			{InlineData: &genai.Blob{Data: []byte{1, 2}, MIMEType: "audio/L16;rate=24000"}},
		}}}},
	}
	blob := InlineAudio(resp)
	require.NotNil(t, blob)
	assert.Equal(t, []byte{1, 2}, blob.Data)
}

func TestNewGenerator_RequiresKey(t *testing.T) {
	_, err := NewGenerator(context.Background(), "")

	assert.Error(t, err)
}
