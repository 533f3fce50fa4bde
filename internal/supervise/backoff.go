package supervise

import (
	"math/rand"
	"sync"
	"time"
)

// RestartPolicy bounds automatic restarts of a failed unit.
type RestartPolicy struct {
	// MaxRestarts within Window before the unit is marked failed.
	// Negative means unlimited.
	MaxRestarts int
	// Window is the sliding interval restarts are counted over.
	Window time.Duration
	// Base is the first restart delay; each attempt multiplies it.
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter is the +/- fraction applied to each delay.
	Jitter float64
}

func DefaultRestartPolicy() RestartPolicy {
	return RestartPolicy{
		MaxRestarts: 3,
		Window:      5 * time.Minute,
		Base:        2 * time.Second,
		Max:         time.Minute,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// restartTracker applies one policy to one unit.
type restartTracker struct {
	policy RestartPolicy

	mu       sync.Mutex
	failures []time.Time
	last     time.Duration
}

func newRestartTracker(policy RestartPolicy) *restartTracker {
	return &restartTracker{policy: policy}
}

// recordFailure notes a failure and reports whether a restart is still
// within budget.
func (t *restartTracker) recordFailure() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.failures = append(t.failures, now)

	if t.policy.Window > 0 {
		cutoff := now.Add(-t.policy.Window)
		kept := t.failures[:0]
		for _, at := range t.failures {
			if at.After(cutoff) {
				kept = append(kept, at)
			}
		}
		t.failures = kept
	}

	if t.policy.MaxRestarts >= 0 && len(t.failures) > t.policy.MaxRestarts {
		return false
	}
	return true
}

// nextDelay returns the backoff before the next restart attempt.
func (t *restartTracker) nextDelay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	delay := t.policy.Base
	if t.last > 0 {
		delay = time.Duration(float64(t.last) * t.policy.Multiplier)
	}
	if t.policy.Max > 0 && delay > t.policy.Max {
		delay = t.policy.Max
	}
	if t.policy.Jitter > 0 {
		spread := float64(delay) * t.policy.Jitter
		delay += time.Duration((rand.Float64()*2 - 1) * spread)
		if delay < 0 {
			delay = 0
		}
	}
	t.last = delay
	return delay
}

// reset clears failure history after a successful recovery.
func (t *restartTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = nil
	t.last = 0
}

func (t *restartTracker) failureCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.failures)
}
