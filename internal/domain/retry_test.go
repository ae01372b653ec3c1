package domain

import (
	"testing"
	"time"
)

func TestRetryPolicy_BackoffDoubles(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Minute, MaxDelay: time.Hour}

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{4, 8 * time.Minute},
		{5, 16 * time.Minute},
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.attempts); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestRetryPolicy_BackoffMonotonicUntilCap(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 20, BaseDelay: 30 * time.Second, MaxDelay: time.Hour}

	prev := time.Duration(0)
	capped := false
	for attempts := 1; attempts <= 20; attempts++ {
		d := p.Backoff(attempts)
		if d > p.MaxDelay {
			t.Fatalf("Backoff(%d) = %v exceeds ceiling %v", attempts, d, p.MaxDelay)
		}
		if capped {
			if d != p.MaxDelay {
				t.Fatalf("Backoff(%d) = %v, want constant %v after ceiling", attempts, d, p.MaxDelay)
			}
			continue
		}
		if d <= prev {
			t.Fatalf("Backoff(%d) = %v not strictly greater than previous %v", attempts, d, prev)
		}
		prev = d
		if d == p.MaxDelay {
			capped = true
		}
	}
	if !capped {
		t.Error("backoff never reached the ceiling")
	}
}

func TestRetryPolicy_BackoffHandlesZeroAttempts(t *testing.T) {
	p := DefaultRetryPolicy()
	if got := p.Backoff(0); got != p.BaseDelay {
		t.Errorf("Backoff(0) = %v, want base delay %v", got, p.BaseDelay)
	}
}

func TestRetryPolicy_NextRetryAtStrictlyIncreases(t *testing.T) {
	p := DefaultRetryPolicy()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Consecutive failures of the same entry: each not-before is later than
	// the previous one, up to the ceiling.
	prev := now
	for attempts := 1; attempts < p.MaxAttempts; attempts++ {
		nb := p.NextRetryAt(attempts, now)
		if !nb.After(prev) {
			t.Fatalf("NextRetryAt(attempts=%d) = %v, want after %v", attempts, nb, prev)
		}
		prev = nb
	}
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Minute, MaxDelay: time.Hour}

	if p.Exhausted(4) {
		t.Error("attempts below max should not be exhausted")
	}
	if !p.Exhausted(5) {
		t.Error("attempts at max should be exhausted")
	}
	if !p.Exhausted(6) {
		t.Error("attempts over max should be exhausted")
	}
}
