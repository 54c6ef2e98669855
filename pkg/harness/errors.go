package harness

import (
	"errors"
	"fmt"
)

// sentinel errors for the failure taxonomy. all of them are local to a single
// scenario: callers report them as a failed test case and move on, nothing here
// is fatal to the run.
var (
	// ErrTargetNotReady indicates an element never became actionable within the wait budget.
	ErrTargetNotReady = errors.New("target not ready")

	// ErrStabilizationTimeout indicates the app never cleared its running indicator within the budget.
	ErrStabilizationTimeout = errors.New("stabilization timeout")

	// ErrAssertionTimeout indicates a predicate never became true within its retry window.
	ErrAssertionTimeout = errors.New("assertion timeout")

	// ErrSnapshotMismatch indicates pixel difference against the baseline exceeded the threshold.
	ErrSnapshotMismatch = errors.New("snapshot mismatch")
)

// AssertionError reports a failed expectation with the last observed value,
// so the failure message shows expected vs actual instead of a bare timeout.
type AssertionError struct {
	Query    string // description of the locator or page-wide check
	Expected string
	Actual   string // last observed value before the retry window closed
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion on %s timed out: expected %s, last observed %s", e.Query, e.Expected, e.Actual)
}

// Unwrap makes errors.Is(err, ErrAssertionTimeout) work.
func (e *AssertionError) Unwrap() error { return ErrAssertionTimeout }

// TargetError reports an action that failed because its target never became actionable.
type TargetError struct {
	Query  string
	Action string
	Cause  error
}

// Error implements the error interface.
func (e *TargetError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Action, e.Query, e.Cause)
}

// Unwrap makes errors.Is(err, ErrTargetNotReady) work.
func (e *TargetError) Unwrap() error { return ErrTargetNotReady }

// SnapshotError reports a visual comparison that exceeded the configured tolerance.
type SnapshotError struct {
	Name       string // scenario name, the baseline key
	DiffPixels int
	Total      int
	DiffPath   string // generated diff image, empty if it could not be written
}

// Error implements the error interface.
func (e *SnapshotError) Error() string {
	msg := fmt.Sprintf("snapshot %q differs from baseline: %d of %d pixels", e.Name, e.DiffPixels, e.Total)
	if e.DiffPath != "" {
		msg += ", diff written to " + e.DiffPath
	}
	return msg
}

// Unwrap makes errors.Is(err, ErrSnapshotMismatch) work.
func (e *SnapshotError) Unwrap() error { return ErrSnapshotMismatch }
