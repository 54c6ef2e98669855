package harness

import (
	"context"
	"fmt"
	"time"
)

// stabilization defaults. the app under test recomputes asynchronously after
// every input, signalled by a running indicator element; asserting before the
// indicator clears races against a half-rendered page.
const (
	DefaultStableTimeout  = 15 * time.Second
	DefaultStableInterval = 100 * time.Millisecond

	// runStartGrace is how long to wait for the running indicator to appear
	// after an action before concluding the rerun already finished.
	runStartGrace = 500 * time.Millisecond
)

// StatusTestID is the test id of the app's run-state indicator. the element
// carries data-state="running" while the app recomputes.
const StatusTestID = "appStatus"

// StableOptions tunes one stabilization wait.
type StableOptions struct {
	// MinWait is a minimum elapsed-time floor before the wait may return.
	// some widgets (heavy canvas backends, host-driven remounts) re-render on
	// a perceptible delay after the running indicator clears and expose no
	// ready signal of their own; scenarios configure the floor explicitly
	// (min_stable_ms in the scenario manifest) instead of sprinkling sleeps.
	MinWait  time.Duration
	Timeout  time.Duration
	Interval time.Duration
}

// AwaitStable blocks until the app finished reacting to the last input: the
// running indicator cleared and the optional MinWait floor elapsed. exceeding
// the timeout is a hard failure (ErrStabilizationTimeout), never a silent
// pass.
func (s *Session) AwaitStable(opts StableOptions) error {
	probe := func() (bool, string, error) {
		state, err := s.runState()
		if err != nil {
			return false, "", err
		}
		return state != "running", state, nil
	}
	return awaitStable(context.Background(), probe, opts)
}

// runState reads the current value of the running indicator. an absent
// indicator counts as idle: pages without reactive widgets never show one.
func (s *Session) runState() (string, error) {
	loc := s.page.GetByTestId(StatusTestID)
	count, err := loc.Count()
	if err != nil {
		return "", fmt.Errorf("locate run indicator: %w", err)
	}
	if count == 0 {
		return "idle", nil
	}
	state, err := loc.First().GetAttribute("data-state")
	if err != nil {
		return "", fmt.Errorf("read run indicator state: %w", err)
	}
	if state == "" {
		state = "idle"
	}
	return state, nil
}

// awaitStable implements the wait against an abstract probe so the policy is
// testable without a browser. probe reports whether the app is stable plus
// the observed state for diagnostics.
func awaitStable(ctx context.Context, probe probeFunc, opts StableOptions) error {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultStableTimeout
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultStableInterval
	}
	start := time.Now()

	// give the rerun a moment to start: right after an action the indicator
	// may not have flipped to running yet, and observing "stable" then would
	// be a false positive. if it never starts within the grace window the
	// rerun either finished already or the action was a pure client-side one.
	grace := runStartGrace
	if grace > opts.Timeout {
		grace = opts.Timeout
	}
	waitRunStart(ctx, probe, grace, opts.Interval)

	// the grace window already consumed part of the budget
	retry := Retry{Timeout: opts.Timeout - time.Since(start), Interval: opts.Interval}
	if retry.Timeout <= 0 {
		retry.Timeout = opts.Interval
	}

	lastState, ok := await(ctx, retry, probe)
	if !ok {
		return fmt.Errorf("%w: run indicator still %q after %s", ErrStabilizationTimeout, lastState, opts.Timeout)
	}

	// enforce the elapsed-time floor measured from the start of the wait
	if opts.MinWait > 0 {
		if remaining := opts.MinWait - time.Since(start); remaining > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(remaining):
			}
		}
	}
	return nil
}

// waitRunStart polls until the probe reports not-stable (the rerun started)
// or the grace window elapses.
func waitRunStart(ctx context.Context, probe probeFunc, grace, interval time.Duration) {
	deadline := time.Now().Add(grace)
	for {
		stable, _, err := probe()
		if err == nil && !stable {
			return
		}
		if time.Now().After(deadline) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
