package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixed(v float64) RandFunc { return func() float64 { return v } }

func TestAuthBackoff(t *testing.T) {
	backoff := AuthBackoff(120*time.Second, 5*time.Second)
	backoff.Rand = fixed(0)

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{6, 64 * time.Second},
		{7, 120 * time.Second},
		{10, 120 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestAuthBackoffJitter(t *testing.T) {
	backoff := AuthBackoff(120*time.Second, 5*time.Second)
	backoff.Rand = fixed(0.5)
	assert.Equal(t, 4*time.Second+2500*time.Millisecond, backoff.NextDelay(2))

	// jitter never pushes past the cap
	backoff.Rand = fixed(0.99)
	assert.Equal(t, 120*time.Second, backoff.NextDelay(7))
}

func TestLinearBackoff(t *testing.T) {
	backoff := &LinearBackoff{
		Step:     3 * time.Second,
		Jitter:   3 * time.Second,
		MaxDelay: 45 * time.Second,
		Rand:     fixed(0),
	}

	assert.Equal(t, 3*time.Second, backoff.NextDelay(1))
	assert.Equal(t, 18*time.Second, backoff.NextDelay(6))
	assert.Equal(t, 45*time.Second, backoff.NextDelay(20))
	assert.Equal(t, time.Duration(0), backoff.NextDelay(0))

	backoff.Rand = fixed(0.5)
	assert.Equal(t, 7500*time.Millisecond, backoff.NextDelay(2))
}

func TestLinearBackoffDefaultRandStaysInRange(t *testing.T) {
	backoff := &LinearBackoff{Step: time.Second, Jitter: time.Second, MaxDelay: time.Minute}
	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 3*time.Second)
	}
}

func TestJitteredDelay(t *testing.T) {
	pace := &JitteredDelay{Base: 350 * time.Millisecond, Jitter: 500 * time.Millisecond, Rand: fixed(0.5)}
	assert.Equal(t, 600*time.Millisecond, pace.Next())

	pace.Rand = nil
	for i := 0; i < 20; i++ {
		d := pace.Next()
		assert.GreaterOrEqual(t, d, 350*time.Millisecond)
		assert.Less(t, d, 850*time.Millisecond)
	}
}

func TestWait(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), 0))
	assert.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}
