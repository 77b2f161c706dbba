package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "tcgsync/pkg/errors"
)

// BackoffStrategy computes the delay before a retry
type BackoffStrategy interface {
	// NextDelay returns the delay after the given (1-based) failed attempt
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Multiplier is the factor by which delay increases
	Multiplier float64
	// JitterFactor spreads each delay by +/- this fraction (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorTypeBackoff picks a backoff strategy from the error type of the failure.
// Rate-limit responses from the seller portal need far longer pauses than
// dropped connections.
type ErrorTypeBackoff struct {
	Network   BackoffStrategy
	RateLimit BackoffStrategy
	Server    BackoffStrategy
	Default   BackoffStrategy
}

// NewErrorTypeBackoff derives per-type strategies from a base exponential backoff
func NewErrorTypeBackoff(base *ExponentialBackoff) *ErrorTypeBackoff {
	rateLimit := *base
	rateLimit.BaseDelay = base.BaseDelay * 10
	rateLimit.MaxDelay = base.MaxDelay * 4
	rateLimit.Multiplier = 1.5

	server := *base
	server.BaseDelay = base.BaseDelay * 3

	return &ErrorTypeBackoff{
		Network:   base,
		RateLimit: &rateLimit,
		Server:    &server,
		Default:   base,
	}
}

// For returns the strategy matching err
func (etb *ErrorTypeBackoff) For(err error) BackoffStrategy {
	switch errs.TypeOf(err) {
	case errs.ErrorTypeNetwork:
		return etb.Network
	case errs.ErrorTypeRateLimit:
		return etb.RateLimit
	case errs.ErrorTypeServerError:
		return etb.Server
	default:
		return etb.Default
	}
}

// NextDelay uses the default strategy
func (etb *ErrorTypeBackoff) NextDelay(attempt int) time.Duration {
	return etb.Default.NextDelay(attempt)
}
