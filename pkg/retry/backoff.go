package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay to wait after the given 1-based attempt
	NextDelay(attempt int) time.Duration
}

// RandFunc returns a uniform value in [0, 1)
type RandFunc func() float64

func orDefault(r RandFunc) RandFunc {
	if r == nil {
		return rand.Float64
	}
	return r
}

// ExponentialBackoff waits Base * Multiplier^attempt plus uniform jitter, capped at MaxDelay
type ExponentialBackoff struct {
	Base       time.Duration
	Multiplier float64
	Jitter     time.Duration
	MaxDelay   time.Duration
	Rand       RandFunc
}

// AuthBackoff returns the backoff used after an authorization failure:
// min(max, 2^attempt seconds + U[0, jitter)).
func AuthBackoff(max, jitter time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{
		Base:       time.Second,
		Multiplier: 2.0,
		Jitter:     jitter,
		MaxDelay:   max,
	}
}

// NextDelay calculates the next delay with exponential growth and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.Base)*math.Pow(eb.Multiplier, float64(attempt)) +
		orDefault(eb.Rand)()*float64(eb.Jitter)

	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}
	return time.Duration(delay)
}

// LinearBackoff waits Step * attempt plus uniform jitter, capped at MaxDelay
type LinearBackoff struct {
	Step     time.Duration
	Jitter   time.Duration
	MaxDelay time.Duration
	Rand     RandFunc
}

// NextDelay calculates the next delay with linear growth and jitter
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(lb.Step)*float64(attempt) + orDefault(lb.Rand)()*float64(lb.Jitter)

	if lb.MaxDelay > 0 && delay > float64(lb.MaxDelay) {
		delay = float64(lb.MaxDelay)
	}
	return time.Duration(delay)
}

// JitteredDelay is a fixed pause plus uniform jitter, used to pace successful requests
type JitteredDelay struct {
	Base   time.Duration
	Jitter time.Duration
	Rand   RandFunc
}

// Next returns Base + U[0, Jitter)
func (jd *JitteredDelay) Next() time.Duration {
	return jd.Base + time.Duration(orDefault(jd.Rand)()*float64(jd.Jitter))
}

// Sleeper pauses the caller; tests swap in a recorder
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// TimerSleeper sleeps on a real timer
var TimerSleeper Sleeper = SleeperFunc(Wait)

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
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
