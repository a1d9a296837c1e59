// Package retry provides bounded retry with a fixed delay between attempts.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/paper-trader/internal/logging"
)

// Config configures retry behavior
type Config struct {
	MaxAttempts int           // Maximum number of attempts (including the first)
	Delay       time.Duration // Fixed delay between attempts
}

// DefaultConfig returns the default retry configuration: 3 attempts, 1s apart.
// This matches the bounded retry applied to every market data lookup.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Delay:       time.Second,
	}
}

// Result contains information about the retry operation
type Result struct {
	Attempts      int           `json:"attempts"`
	Success       bool          `json:"success"`
	TotalDuration time.Duration `json:"totalDuration"`
	LastError     error         `json:"lastError,omitempty"`
}

// Func is a function that can be retried
type Func func(ctx context.Context, attempt int) error

// WithFixedDelay executes a function with a bounded number of attempts,
// sleeping the configured fixed delay between failures.
func WithFixedDelay(ctx context.Context, config *Config, fn Func) *Result {
	logger := logging.FromContext(ctx)
	startTime := time.Now()

	result := &Result{}

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.TotalDuration = time.Since(startTime)

			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts":      attempt,
					"totalDuration": result.TotalDuration,
				}).Info("Operation succeeded after retry")
			}

			return result
		}

		result.LastError = err

		if attempt >= config.MaxAttempts {
			logger.WithFields(map[string]interface{}{
				"attempts":      attempt,
				"totalDuration": time.Since(startTime),
				"error":         err.Error(),
			}).Warn("Operation failed after max retry attempts")
			break
		}

		if ctx.Err() != nil {
			logger.WithError(ctx.Err()).Warn("Retry cancelled due to context cancellation")
			result.LastError = ctx.Err()
			break
		}

		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": config.MaxAttempts,
			"delay":       config.Delay,
			"error":       err.Error(),
		}).Debug("Operation failed, retrying after fixed delay")

		select {
		case <-time.After(config.Delay):
			// Continue to next attempt
		case <-ctx.Done():
			logger.WithError(ctx.Err()).Warn("Retry cancelled during delay")
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return result
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}

// Do is a simpler retry function that uses the default configuration
func Do(ctx context.Context, fn Func) error {
	config := DefaultConfig()
	result := WithFixedDelay(ctx, config, fn)

	if !result.Success {
		return fmt.Errorf("operation failed after %d attempts: %w", result.Attempts, result.LastError)
	}

	return nil
}
