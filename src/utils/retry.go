package utils

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrMaxRetriesExceeded is returned once every attempt of a retried operation
// has failed.
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// RetryConfig controls exponential backoff between attempts.
type RetryConfig struct {
	// MaxRetries is the number of retry attempts after the initial one.
	MaxRetries int
	// InitialInterval is the wait before the first retry.
	InitialInterval time.Duration
	// MaxInterval caps the backoff growth.
	MaxInterval time.Duration
	// Multiplier grows the interval after each retry.
	Multiplier float64
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Minute,
		MaxInterval:     10 * time.Minute,
		Multiplier:      2.0,
	}
}

// PermanentError wraps an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent marks an error as permanent so Retry stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// RetryResult reports how a retried operation ended.
type RetryResult struct {
	Err       error
	Attempts  int
	LastError error
}

// Retry runs op with bounded exponential backoff. A PermanentError aborts the
// loop; context cancellation aborts the wait.
func Retry(ctx context.Context, cfg *RetryConfig, op func(ctx context.Context) error) *RetryResult {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	result := &RetryResult{}
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result.Attempts = attempt + 1
		if ctx.Err() != nil {
			result.Err = ctx.Err()
			result.LastError = lastErr
			return result
		}
		err := op(ctx)
		if err == nil {
			return result
		}
		lastErr = err

		var permErr *PermanentError
		if errors.As(err, &permErr) {
			result.Err = permErr.Err
			result.LastError = permErr.Err
			return result
		}
		if attempt == cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			result.LastError = lastErr
			return result
		case <-time.After(backoffInterval(cfg, attempt)):
		}
	}
	result.Err = ErrMaxRetriesExceeded
	result.LastError = lastErr
	return result
}

func backoffInterval(cfg *RetryConfig, attempt int) time.Duration {
	interval := float64(cfg.InitialInterval) * math.Pow(cfg.Multiplier, float64(attempt))
	if interval > float64(cfg.MaxInterval) {
		interval = float64(cfg.MaxInterval)
	}
	return time.Duration(interval)
}
