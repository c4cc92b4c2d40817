// Package retry runs idempotent operations with classified retries and jittered backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/tagview/tagview/internal/constants"
)

// ErrorType represents different classes of errors for retry strategy
type ErrorType int

const (
	// ErrorTypeSuccess indicates operation succeeded
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCancelled indicates the caller's context ended
	ErrorTypeCancelled
	// ErrorTypeNetwork indicates network/connection issues and per-attempt timeouts
	ErrorTypeNetwork
	// ErrorTypeRetryable indicates transient source failures (busy database, 5xx)
	ErrorTypeRetryable
	// ErrorTypeFatal indicates failures that will not improve on retry
	ErrorTypeFatal
)

// Config holds retry parameters for Execute
type Config struct {
	// MaxRetries is the maximum number of attempts (default: 4)
	MaxRetries int
	// InitialDelay is the base delay for exponential backoff (default: 100ms)
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries (default: 2s)
	MaxDelay time.Duration
	// AttemptTimeout bounds each attempt when positive
	AttemptTimeout time.Duration
	// OnRetry is an optional callback invoked before each retry attempt
	OnRetry func(attempt int, err error, errorType ErrorType)
}

// DefaultConfig returns a Config tuned for page loads
func DefaultConfig() Config {
	return Config{
		MaxRetries:     constants.DefaultLoadMaxRetries,
		InitialDelay:   constants.LoadRetryInitialDelay,
		MaxDelay:       constants.LoadRetryMaxDelay,
		AttemptTimeout: constants.DefaultLoadTimeout,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// ClassifyError determines the error type for retry strategy.
// Unknown errors are retryable: every operation run through this package is idempotent.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}
	if IsPermanent(err) {
		return ErrorTypeFatal
	}
	if errors.Is(err, context.Canceled) {
		return ErrorTypeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorTypeNetwork
	}
	return ErrorTypeRetryable
}

// CalculateBackoff returns exponential backoff duration with full jitter
//
// Formula: random(0, min(maxDelay, initialDelay * 2^attempt))
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || initialDelay <= 0 {
		return 0
	}

	// Shifts past 30 overflow quickly; the cap applies long before that.
	if attempt > 30 {
		attempt = 30
	}
	base := time.Duration(1<<uint(attempt)) * initialDelay
	if base > maxDelay || base <= 0 {
		base = maxDelay
	}
	if base <= 0 {
		return 0
	}

	return time.Duration(rand.Int63n(int64(base)))
}

// Execute runs operation until it succeeds, fails fatally, or attempts run out.
//
// Retry strategy:
//   - Network/Retryable errors: Exponential backoff with full jitter
//   - Fatal errors: Return immediately without retry
//   - Context cancellation: Return immediately, including during backoff
//
// Each attempt receives its own context, bounded by AttemptTimeout when set.
func Execute(ctx context.Context, config Config, operation func(ctx context.Context) error) error {
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}

	var lastErr error

	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := runAttempt(ctx, config.AttemptTimeout, operation)
		if err == nil {
			return nil
		}
		lastErr = err

		errType := ClassifyError(err)
		if errType == ErrorTypeCancelled && ctx.Err() != nil {
			return ctx.Err()
		}

		switch errType {
		case ErrorTypeFatal:
			return err

		case ErrorTypeCancelled, ErrorTypeNetwork, ErrorTypeRetryable:
			if attempt < config.MaxRetries-1 {
				backoff := CalculateBackoff(attempt+1, config.InitialDelay, config.MaxDelay)
				if config.OnRetry != nil {
					config.OnRetry(attempt+1, err, errType)
				}
				if err := sleep(ctx, backoff); err != nil {
					return err
				}
			}
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries, lastErr)
}

func runAttempt(ctx context.Context, timeout time.Duration, operation func(ctx context.Context) error) error {
	if timeout <= 0 {
		return operation(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return operation(attemptCtx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCancelled:
		return "cancelled"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
