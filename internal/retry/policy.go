package retry

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Policy defines retry behavior for fallible remote operations
type Policy struct {
	MaxAttempts       int           // Total attempts including the first one (1 = no retries)
	BaseDelay         time.Duration // Delay before the first retry
	MaxDelay          time.Duration // Maximum delay between retries
	BackoffMultiplier float64       // Multiplier for exponential backoff (e.g., 2.0)
	JitterFraction    float64       // Fraction of the delay added or removed at random (0.25 = +/-25%)
}

// DefaultPolicy returns the default retry policy for agent invocations
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.25,
	}
}

// NoRetryPolicy returns a policy that makes a single attempt
func NoRetryPolicy() Policy {
	return Policy{
		MaxAttempts:       1,
		BaseDelay:         time.Millisecond,
		MaxDelay:          time.Millisecond,
		BackoffMultiplier: 1.0,
	}
}

// BackoffDelay returns the un-jittered wait after the given failed attempt (1-based).
// Attempt 1 waits BaseDelay, attempt 2 waits BaseDelay*multiplier, capped at MaxDelay.
func (p Policy) BackoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return min(p.BaseDelay, p.MaxDelay)
	}

	delay := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}

	return time.Duration(delay)
}

// Delay returns the jittered wait after the given failed attempt
func (p Policy) Delay(attempt int) time.Duration {
	delay := float64(p.BackoffDelay(attempt))
	if p.JitterFraction <= 0 {
		return time.Duration(delay)
	}

	// +/- JitterFraction randomness to prevent thundering herd
	jitter := delay * p.JitterFraction * (2*rand.Float64() - 1)
	return time.Duration(delay + jitter)
}

// Validate checks if the retry policy configuration is valid
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.New("MaxAttempts must be at least 1")
	}
	if p.BaseDelay <= 0 {
		return errors.New("BaseDelay must be positive")
	}
	if p.MaxDelay <= 0 {
		return errors.New("MaxDelay must be positive")
	}
	if p.BackoffMultiplier < 1 {
		return errors.New("BackoffMultiplier must be at least 1")
	}
	if p.JitterFraction < 0 || p.JitterFraction >= 1 {
		return errors.New("JitterFraction must be in [0, 1)")
	}
	if p.BaseDelay > p.MaxDelay {
		return errors.New("BaseDelay cannot be greater than MaxDelay")
	}
	return nil
}
