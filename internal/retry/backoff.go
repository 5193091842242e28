package retry

import (
	"time"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// LinearBackoff waits step × attempt after each failed attempt:
// 0.5s, 1.0s, 1.5s, ... with the default step.
type LinearBackoff struct {
	// step is the increment added for every failed attempt
	step time.Duration

	// maxDelay caps a single wait (0 = uncapped)
	maxDelay time.Duration
}

// BackoffOption is a functional option for configuring LinearBackoff.
type BackoffOption func(*LinearBackoff)

// WithStep sets the per-attempt increment.
func WithStep(d time.Duration) BackoffOption {
	return func(b *LinearBackoff) {
		b.step = d
	}
}

// WithMaxDelay caps the delay between retry attempts.
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(b *LinearBackoff) {
		b.maxDelay = d
	}
}

// NewLinearBackoff creates a linear backoff with the default step.
//
// Example:
//
//	backoff := retry.NewLinearBackoff(
//	    retry.WithStep(100 * time.Millisecond),
//	    retry.WithMaxDelay(2 * time.Second),
//	)
func NewLinearBackoff(opts ...BackoffOption) *LinearBackoff {
	b := &LinearBackoff{
		step: reconnect.DefaultBackoffStep,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// NextDelay returns the wait after the given one-indexed failed attempt.
func (b *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := b.step * time.Duration(attempt)
	if b.maxDelay > 0 && delay > b.maxDelay {
		delay = b.maxDelay
	}
	return delay
}

// Step returns the per-attempt increment for tests and debugging.
func (b *LinearBackoff) Step() time.Duration {
	return b.step
}

// MaxDelay returns the delay cap for tests and debugging.
func (b *LinearBackoff) MaxDelay() time.Duration {
	return b.maxDelay
}
