package connection

import "time"

// Backoff yields capped exponential waits between reconnect attempts.
// It is not safe for concurrent use.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64 // values <= 1 mean 2

	wait time.Duration
}

// NewBackoff creates a Backoff starting at base and capped at max.
func NewBackoff(base, max time.Duration, factor float64) *Backoff {
	return &Backoff{Base: base, Max: max, Factor: factor}
}

// Next returns the wait before the next attempt and grows the following one.
func (b *Backoff) Next() time.Duration {
	if b.wait <= 0 {
		b.wait = b.Base
	}
	cur := b.wait

	factor := b.Factor
	if factor <= 1 {
		factor = 2
	}
	b.wait = time.Duration(float64(b.wait) * factor)
	if b.Max > 0 && b.wait > b.Max {
		b.wait = b.Max
	}
	if b.Max > 0 && cur > b.Max {
		cur = b.Max
	}
	return cur
}

// Reset starts the sequence over after a successful session.
func (b *Backoff) Reset() {
	b.wait = 0
}
