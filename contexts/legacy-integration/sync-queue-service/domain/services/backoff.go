package services

import "time"

const (
	DefaultBackoffBase = 30 * time.Second
	DefaultBackoffMax  = 30 * time.Minute
	DefaultMaxAttempts = 5
)

// BackoffPolicy schedules attempt N no earlier than Base * 2^(N-1), capped at Max.
type BackoffPolicy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

func (p BackoffPolicy) Delay(attempt int) time.Duration {
	base := p.base()
	maxDelay := p.max()
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// NextEligibleAt returns when an item that just used attempt number attempt
// may be claimed again.
func (p BackoffPolicy) NextEligibleAt(now time.Time, attempt int) time.Time {
	return now.UTC().Add(p.Delay(attempt))
}

// Exhausted reports whether attempts used so far reach the cap.
func (p BackoffPolicy) Exhausted(attempts int) bool {
	return attempts >= p.maxAttempts()
}

func (p BackoffPolicy) base() time.Duration {
	if p.Base <= 0 {
		return DefaultBackoffBase
	}
	return p.Base
}

func (p BackoffPolicy) max() time.Duration {
	if p.Max <= 0 {
		return DefaultBackoffMax
	}
	if p.Max < p.base() {
		return p.base()
	}
	return p.Max
}

func (p BackoffPolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}
