package connection

import "time"

// Backoff yields growing retry delays: base, base*m, base*m², ... capped at max.
type Backoff struct {
	base   time.Duration
	max    time.Duration
	factor float64
	cur    time.Duration
}

// NewBackoff creates a backoff starting at base.
func NewBackoff(base, max time.Duration, factor float64) *Backoff {
	if factor < 1 {
		factor = 1
	}
	return &Backoff{base: base, max: max, factor: factor, cur: base}
}

// Next returns the delay to wait now and advances to the following one.
func (b *Backoff) Next() time.Duration {
	d := b.cur
	next := time.Duration(float64(b.cur) * b.factor)
	if next > b.max {
		next = b.max
	}
	b.cur = next
	return d
}

// Current returns the delay Next would return.
func (b *Backoff) Current() time.Duration {
	return b.cur
}

// Reset goes back to the base delay.
func (b *Backoff) Reset() {
	b.cur = b.base
}
