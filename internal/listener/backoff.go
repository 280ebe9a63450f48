package listener

import "time"

// backoff is the retry delay for transient chain errors: doubles on every
// failure up to a cap, resets on the first success.
type backoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(base, max time.Duration) *backoff {
	return &backoff{base: base, max: max, current: base}
}

// Next returns the delay to sleep before the next attempt and advances the
// schedule.
func (b *backoff) Next() time.Duration {
	d := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

func (b *backoff) Reset() {
	b.current = b.base
}
