// Package harness drives a running web application through a browser and
// verifies rendered state. it wraps playwright with lazy element queries,
// user-simulated actions, a run synchronizer that waits for the app's running
// indicator to clear, bounded-retry expectations and a visual snapshot
// comparator with a file-based baseline store.
package harness

import (
	"context"
	"time"
)

// default polling budgets, overridable per call and via config.
const (
	DefaultRetryTimeout  = 5 * time.Second
	DefaultRetryInterval = 100 * time.Millisecond
)

// Retry defines a bounded polling budget shared by expectations and
// stabilization waits. zero values fall back to package defaults.
type Retry struct {
	Timeout  time.Duration
	Interval time.Duration
}

// normalized returns a copy with defaults applied for zero fields.
func (r Retry) normalized() Retry {
	if r.Timeout <= 0 {
		r.Timeout = DefaultRetryTimeout
	}
	if r.Interval <= 0 {
		r.Interval = DefaultRetryInterval
	}
	return r
}

// probeFunc checks the current state once. ok reports whether the predicate
// holds; actual describes what was observed, used in failure diagnostics.
// a non-nil err is treated as a transient observation (state may still be
// settling) and recorded as the actual value.
type probeFunc func() (ok bool, actual string, err error)

// await polls probe until it succeeds or the budget is exhausted.
// returns the last observed value and whether the predicate held.
// the probe is always evaluated at least once, even with a tiny budget.
func await(ctx context.Context, r Retry, probe probeFunc) (lastActual string, ok bool) {
	r = r.normalized()

	deadline := time.Now().Add(r.Timeout)
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		done, actual, err := probe()
		if err != nil {
			actual = "error: " + err.Error()
		}
		if done && err == nil {
			return actual, true
		}
		lastActual = actual

		if time.Now().After(deadline) {
			return lastActual, false
		}

		select {
		case <-ctx.Done():
			return lastActual, false
		case <-ticker.C:
		}
	}
}
