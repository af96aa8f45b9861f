package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ReconnectConfig holds configuration for connection attempts
type ReconnectConfig struct {
	MaxAttempts int           // Maximum number of connection attempts
	Backoff     time.Duration // Backoff duration between attempts
	Multiplier  float64       // Backoff multiplier for exponential backoff
	MaxBackoff  time.Duration // Maximum backoff duration
}

// DefaultReconnectConfig returns a default reconnection configuration
func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		MaxAttempts: 3,
		Backoff:     500 * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  5 * time.Second,
	}
}

// ReconnectFunc is a function that attempts to (re)connect
type ReconnectFunc func() error

// Reconnect attempts to connect with exponential backoff until success,
// exhaustion or ctx cancellation
func Reconnect(ctx context.Context, fn ReconnectFunc, config *ReconnectConfig) error {
	if config == nil {
		config = DefaultReconnectConfig()
	}
	if config.MaxAttempts < 1 {
		config = &ReconnectConfig{MaxAttempts: 1, Backoff: config.Backoff, Multiplier: config.Multiplier, MaxBackoff: config.MaxBackoff}
	}

	backoff := config.Backoff
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				log.Debug().Int("attempts", attempt+1).Msg("Connection established after retries")
			}
			return nil
		}

		// Don't sleep after the last attempt
		if attempt < config.MaxAttempts-1 {
			log.Warn().
				Err(lastErr).
				Int("attempt", attempt+1).
				Int("max_attempts", config.MaxAttempts).
				Dur("backoff", backoff).
				Msg("Connection attempt failed, retrying")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if backoff > config.MaxBackoff {
					backoff = config.MaxBackoff
				}
			}
		}
	}

	return fmt.Errorf("failed to connect after %d attempts: %w", config.MaxAttempts, lastErr)
}
