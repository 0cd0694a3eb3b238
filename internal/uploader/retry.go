package uploader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/bstardust/photo-ingest/internal/logger"
	"github.com/bstardust/photo-ingest/pkg/s3client"
)

// RetryConfig defines retry behavior for blob store calls
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64

	// RetryableCodes are S3 error codes worth another attempt
	RetryableCodes map[string]bool
}

// DefaultRetryConfig returns the retry policy used when none is configured
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		RetryableCodes: defaultRetryableCodes(),
	}
}

func defaultRetryableCodes() map[string]bool {
	return map[string]bool{
		"RequestTimeout":         true,
		"RequestTimeTooSkewed":   true,
		"InternalError":          true,
		"SlowDown":               true,
		"OperationAborted":       true,
		"ServiceUnavailable":     true,
		"ThrottlingException":    true,
		"RequestLimitExceeded":   true,
		"BandwidthLimitExceeded": true,
		"RequestError":           true,
		"SerializationError":     true,
	}
}

// IsRetryable reports whether err looks transient. Missing objects,
// credential problems and cancellation never are.
func (rc RetryConfig) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if s3client.IsNotFoundError(err) || s3client.IsAuthError(err) {
		return false
	}

	if code := s3client.ErrorCode(err); code != "" {
		return rc.RetryableCodes[code]
	}

	msg := err.Error()
	for code := range rc.RetryableCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}

	lowerErr := strings.ToLower(msg)
	return strings.Contains(lowerErr, "timeout") ||
		strings.Contains(lowerErr, "connection reset") ||
		strings.Contains(lowerErr, "connection refused") ||
		strings.Contains(lowerErr, "broken pipe") ||
		strings.Contains(lowerErr, "unavailable")
}

// RetryWithBackoff runs fn until it succeeds, fails with a non-retryable
// error, or runs out of retries.
func RetryWithBackoff(ctx context.Context, operation string, fn func() error, config RetryConfig) error {
	var err error
	var attempt int

	for attempt = 0; attempt <= config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("%s canceled: %w", operation, ctx.Err())
		}

		if attempt > 0 {
			logger.Debug("Retry attempt %d/%d for %s", attempt, config.MaxRetries, operation)
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				logger.Info("Completed %s after %d retries", operation, attempt)
			}
			return nil
		}

		if !config.IsRetryable(err) {
			return err
		}
		if attempt == config.MaxRetries {
			break
		}

		backoff := getBackoffDuration(attempt, config)
		logger.Debug("Backing off for %v before retrying %s: %v", backoff, operation, err)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s canceled during retry: %w", operation, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempt+1, err)
}

// getBackoffDuration is the exponential backoff for attempt with ±20% jitter
func getBackoffDuration(attempt int, config RetryConfig) time.Duration {
	factor := config.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	backoff := float64(config.InitialBackoff) * math.Pow(factor, float64(attempt))

	jitter := (rand.Float64() * 0.4) - 0.2
	backoff = backoff * (1 + jitter)

	if config.MaxBackoff > 0 && backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	return time.Duration(backoff)
}
