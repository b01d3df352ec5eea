package recovery

import (
	"math/rand"
	"time"
)

// Policy configures the exponential-backoff-with-jitter retry loop of
// spec.md §4.8, grounded on the teacher's pipeline.Process retry loop
// shape (attempt counters, time.Sleep between attempts) but generalized
// from cross-channel retry to cross-attempt error-driven retry.
type Policy struct {
	Initial    time.Duration
	Base       float64
	Max        time.Duration
	MaxRetries int
}

// DefaultPolicy is spec.md §4.8's default retry configuration.
func DefaultPolicy() Policy {
	return Policy{
		Initial:    time.Second,
		Base:       2,
		Max:        30 * time.Second,
		MaxRetries: 3,
	}
}

// maxRetriesFor caps Unknown-kind errors at a single retry before they
// become fatal, per spec.md §4.8's taxonomy table ("Unknown: Recoverable
// (one retry), then fatal").
func (p Policy) maxRetriesFor(k Kind) int {
	if k == KindUnknown {
		if p.MaxRetries < 1 {
			return p.MaxRetries
		}

		return 1
	}

	return p.MaxRetries
}

// ShouldRetry reports whether another attempt should be made given the
// classified error and how many attempts have already been made
// (1-indexed: attempt 1 is the first retry after the original call).
func (p Policy) ShouldRetry(k Kind, attempt int) bool {
	switch DispositionFor(k) {
	case DispositionFatal, DispositionSurface:
		return false
	default:
		return attempt <= p.maxRetriesFor(k)
	}
}

// Backoff computes the delay before the given attempt (1-indexed),
// exponential in base capped at Max, with +/-25% uniform jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.Initial) * pow(p.Base, attempt-1)
	if max := float64(p.Max); delay > max {
		delay = max
	}

	jitter := 1 + (rand.Float64()*0.5 - 0.25) // nolint:gosec // jitter, not security-sensitive

	return time.Duration(delay * jitter)
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}

	return result
}
