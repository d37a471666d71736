package middleware

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/pipeline"
)

// RetryStrategy encapsulates the decision and delay between retries.
type RetryStrategy interface {
	// SleepDuration returns how long to wait before the next retry attempt.
	// The attempt index starts at 0, incrementing after each failure.
	SleepDuration(attempt int, err error) time.Duration
}

// NoDelayStrategy is a simple retry strategy that performs all retries
// immediately without waiting.
type NoDelayStrategy struct{}

// SleepDuration always returns zero, causing immediate retries.
func (n NoDelayStrategy) SleepDuration(_ int, _ error) time.Duration {
	return 0
}

// ExponentialBackoffStrategy implements a backoff strategy.
// Usage example:
//
//	RetryConfig{
//	    MaxRetries: 3,
//	    Strategy: ExponentialBackoffStrategy{
//	        Base:   100 * time.Millisecond,
//	        Factor: 2,
//	        Max:    5 * time.Second,
//	    },
//	}
type ExponentialBackoffStrategy struct {
	// Base is the starting delay (e.g., 100ms)
	Base time.Duration
	// Factor is multiplied each iteration (e.g., 2 => 100ms, 200ms, 400ms, ...)
	Factor float64
	// Max is the maximum delay allowed (caps the exponential growth)
	Max time.Duration
}

// SleepDuration implements an exponential backoff with a cap at Max.
func (e ExponentialBackoffStrategy) SleepDuration(attempt int, _ error) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(e.Base) * math.Pow(e.Factor, float64(attempt))
	if time.Duration(delay) > e.Max && e.Max > 0 {
		return e.Max
	}
	return time.Duration(delay)
}

// RetryConfig controls Retry.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// Strategy defaults to NoDelayStrategy.
	Strategy RetryStrategy
	// Retryable defaults to IsRetryable.
	Retryable func(error) bool
}

// IsRetryable rejects cancellations and errors caused by the message itself.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch conduit.ErrorCode(err) {
	case conduit.ErrCodeInvalidMessage, conduit.ErrCodeValidation, conduit.ErrCodeContextDataInvalid, conduit.ErrCodeUnauthorized:
		return false
	}
	return true
}

// Retry runs the rest of the pipeline again when it fails. Only the
// middleware after Retry and the handler are repeated.
type Retry[M, R any] struct {
	logger conduit.Logger
}

func NewRetry[M, R any](logger conduit.Logger) *Retry[M, R] {
	if logger == nil {
		logger = conduit.NopLogger{}
	}
	return &Retry[M, R]{logger: logger}
}

func (r *Retry[M, R]) Execute(ctx context.Context, call *pipeline.Call[M, R], cfg RetryConfig) (R, error) {
	strategy := cfg.Strategy
	if strategy == nil {
		strategy = NoDelayStrategy{}
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var res R
	var err error
	for attempt := 0; ; attempt++ {
		res, err = call.Next(ctx, call.Message)
		if err == nil || attempt >= cfg.MaxRetries || !retryable(err) {
			return res, err
		}

		delay := strategy.SleepDuration(attempt, err)
		r.logger.WithContext(ctx).Debug("attempt %d of %s failed, retrying in %s: %v",
			attempt+1, conduit.GetMessageType(call.Message), delay, err)

		if delay <= 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, err
			}
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return res, err
		case <-timer.C:
		}
	}
}
