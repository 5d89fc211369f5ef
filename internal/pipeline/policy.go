package pipeline

import "time"

// RetryPolicy bounds how often and how long a step may run. Attempt n waits
// BaseDelay * Multiplier^(n-1) before the next one, capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	Timeout     time.Duration
}

var (
	// LightPolicy covers steps that only touch the database.
	LightPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2, MaxDelay: 30 * time.Second, Timeout: 30 * time.Second}
	// ExternalPolicy covers quick calls to third-party APIs.
	ExternalPolicy = RetryPolicy{MaxAttempts: 5, BaseDelay: 5 * time.Second, Multiplier: 2, MaxDelay: 5 * time.Minute, Timeout: time.Minute}
	// SlowPolicy covers enrichment and generation.
	SlowPolicy = RetryPolicy{MaxAttempts: 8, BaseDelay: 10 * time.Second, Multiplier: 2, MaxDelay: 10 * time.Minute, Timeout: 3 * time.Minute}
)

// Delay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * mult)
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Exhausted reports whether attempt used up the budget.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
