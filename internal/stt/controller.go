// Package stt captures spoken input. A Controller runs at most one
// recognition session at a time and forwards transcripts to a sink; the
// Deepgram recognizer streams microphone audio to Deepgram's live API.
package stt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/alwatan/noura/internal/observability"
)

// Controller is the single speech capture session of the client
type Controller struct {
	rec    Recognizer
	sink   func(transcript string)
	logger zerolog.Logger

	mu        sync.Mutex
	listening bool
	session   uint64
	cancel    context.CancelFunc
	done      chan struct{}
	onChange  func(listening bool)
}

// NewController creates a controller. A nil recognizer means speech input
// is unavailable and Start does nothing.
func NewController(rec Recognizer, sink func(transcript string)) *Controller {
	return &Controller{
		rec:    rec,
		sink:   sink,
		logger: observability.Component("stt"),
	}
}

// Available reports whether a recognizer is configured
func (c *Controller) Available() bool {
	return c.rec != nil
}

// OnStateChange registers fn to be called whenever the listening flag
// changes. fn must not block.
func (c *Controller) OnStateChange(fn func(listening bool)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// IsListening reports whether a capture session is active
func (c *Controller) IsListening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// Start begins a capture session. It is a no-op while already listening or
// when speech input is unavailable.
func (c *Controller) Start() {
	if c.rec == nil {
		return
	}

	c.mu.Lock()
	if c.listening {
		c.mu.Unlock()
		return
	}
	c.listening = true
	c.session++
	id := c.session
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(true)
	}
	c.logger.Debug().Uint64("session", id).Msg("Speech capture started")

	go c.run(ctx, id, done)
}

// Stop asks the current session to end. The listening flag clears once the
// recognizer has actually finished.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the current session, if any, has ended
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (c *Controller) run(ctx context.Context, id uint64, done chan struct{}) {
	defer close(done)

	var recognized atomic.Bool
	err := c.rec.Recognize(ctx, func(transcript string) {
		if transcript == "" {
			return
		}
		recognized.Store(true)
		if c.sink != nil {
			c.sink(transcript)
		}
	})

	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		observability.RecordCapture("failed")
		observability.RecordError("capture_failed", "stt")
		c.logger.Warn().Err(err).Uint64("session", id).Msg("Speech capture ended with error")
	case recognized.Load():
		observability.RecordCapture("recognized")
	default:
		observability.RecordCapture("empty")
	}

	c.end(id)
}

func (c *Controller) end(id uint64) {
	c.mu.Lock()
	if c.session != id {
		c.mu.Unlock()
		return
	}
	c.listening = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(false)
	}
	c.logger.Debug().Uint64("session", id).Msg("Speech capture ended")
}
