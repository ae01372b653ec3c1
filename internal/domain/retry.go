package domain

import "time"

// RetryPolicy controls dead-letter backoff and exhaustion.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy recovers transient failures within minutes while
// capping the wait between late attempts at a few hours.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 8,
		BaseDelay:   time.Minute,
		MaxDelay:    4 * time.Hour,
	}
}

// Backoff returns the delay before the next retry after the given number of
// failed attempts: base * 2^(attempts-1), capped at MaxDelay.
func (p RetryPolicy) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// NextRetryAt computes the not-before time for an entry that has now failed
// the given number of attempts.
func (p RetryPolicy) NextRetryAt(attempts int, now time.Time) time.Time {
	return now.Add(p.Backoff(attempts))
}

// Exhausted reports whether an entry with this many attempts is terminal.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}
