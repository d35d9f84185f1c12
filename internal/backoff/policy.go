package backoff

import "time"

// Policy computes retry delays for reconnection attempts. Both methods are
// pure and total for all non-negative attempt counts, so backoff timing can
// be unit-tested without real timers.
type Policy struct {
	Base        time.Duration // delay for the first retry
	Max         time.Duration // ceiling for the exponential growth
	MaxAttempts int           // retries stop once attempts reach this count
}

// Default returns the policy used when config leaves the fields zero.
func Default() Policy {
	return Policy{
		Base:        1 * time.Second,
		Max:         60 * time.Second,
		MaxAttempts: 5,
	}
}

// NextDelay returns the delay before retry number attempt. Growth is
// Base * 2^(attempt-1), capped at Max. Attempt counts below 1 map to Base.
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return p.Base
	}

	delay := p.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.Max || delay <= 0 { // <= 0 guards int64 overflow
			return p.Max
		}
	}
	return delay
}

// ShouldRetry reports whether another automatic attempt is allowed after
// attempt failures. ShouldRetry(MaxAttempts) is false by contract.
func (p Policy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxAttempts
}
