package scheduler

import "github.com/hamed0406/turnprobe/internal/domain"

// FailureTracker counts consecutive non-OK probes and decides when the
// published snapshot must be withdrawn. It is owned by the prober
// goroutine and is not safe for concurrent use.
type FailureTracker struct {
	max      int
	failures int
}

func NewFailureTracker(maxFailures int) *FailureTracker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &FailureTracker{max: maxFailures}
}

// Observe folds one outcome into the counter. The counter stays within
// [0, max]: OK resets it, anything else increments it until the threshold
// is reached, from where on every failure yields Suppress.
func (t *FailureTracker) Observe(o domain.ProbeOutcome) domain.PublishDecision {
	if o.IsOK() {
		t.failures = 0
		return domain.PublishOk
	}
	if t.failures >= t.max-1 {
		t.failures = t.max
		return domain.Suppress
	}
	t.failures++
	return domain.PublishFailed
}

// Failures is the current consecutive failure count.
func (t *FailureTracker) Failures() int { return t.failures }

// Max is the configured threshold.
func (t *FailureTracker) Max() int { return t.max }
