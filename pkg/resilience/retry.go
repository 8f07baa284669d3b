package resilience

import (
	"context"
	"fmt"
	"time"

	"jamu-quote-bot/backend/pkg/logger"
)

// RetryConfig holds configuration for a bounded retry loop
type RetryConfig struct {
	Name     string
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig(name string) RetryConfig {
	return RetryConfig{
		Name:     name,
		Attempts: 3,
		Backoff:  2 * time.Second,
	}
}

// Retry runs fn up to config.Attempts times, doubling the backoff between
// attempts. It is meant for connectivity checks only; data-validation errors
// must never be routed through it. The context is honored between attempts.
func Retry(ctx context.Context, config RetryConfig, log *logger.Logger, fn func() error) error {
	if config.Attempts < 1 {
		config.Attempts = 1
	}

	var err error
	backoff := config.Backoff

	for attempt := 1; attempt <= config.Attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if attempt == config.Attempts {
			break
		}

		if log != nil {
			log.Warn("operation failed, retrying",
				"name", config.Name,
				"attempt", attempt,
				"backoff", backoff.String(),
				"error", err.Error(),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", config.Name, config.Attempts, err)
}
