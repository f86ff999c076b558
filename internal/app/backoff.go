package app

import (
	"math/rand"
	"time"
)

// backoff grows the automatic retry delay between drain passes that leave
// work behind. With max <= initial the delay stays fixed.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
	jitter  bool
}

func newBackoff(initial, max time.Duration, jitter bool) *backoff {
	if max < initial {
		max = initial
	}
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
		jitter:  jitter,
	}
}

// Next returns the delay to use now and doubles the following one, capped at max.
func (b *backoff) Next() time.Duration {
	d := b.current
	if b.jitter {
		// ±20%
		d = time.Duration(float64(d) + float64(d)*0.2*(rand.Float64()*2-1))
	}

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset restores the initial delay.
func (b *backoff) Reset() {
	b.current = b.initial
}

// Current returns the delay Next would return, before jitter.
func (b *backoff) Current() time.Duration {
	return b.current
}
