package harness

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

// DefaultActionTimeout bounds how long an action waits for its target to
// become attached and visible before failing with ErrTargetNotReady.
const DefaultActionTimeout = 5 * time.Second

// Point is a click offset in pixels relative to the target element's top-left.
type Point struct {
	X float64
	Y float64
}

// Modifier is a keyboard modifier held during a click.
type Modifier string

// supported click modifiers.
const (
	ModifierShift   Modifier = "Shift"
	ModifierControl Modifier = "Control"
	ModifierAlt     Modifier = "Alt"
	ModifierMeta    Modifier = "Meta"
)

// ClickOptions tunes a single click action.
type ClickOptions struct {
	Position  *Point     // click offset within the element, center if nil
	Modifiers []Modifier // keyboard modifiers, e.g. shift for multi-select
	Timeout   time.Duration
}

// Click dispatches a click on the first element matching q. it blocks until
// the browser confirms the input event was dispatched, not until the app
// finishes reacting - follow with AwaitStable before asserting. the target
// must become attached and visible within the timeout, otherwise the call
// fails with a TargetError wrapping ErrTargetNotReady.
func (s *Session) Click(q Query, opts ClickOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}

	clickOpts := playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(timeout / time.Millisecond)),
	}
	if opts.Position != nil {
		clickOpts.Position = &playwright.Position{X: opts.Position.X, Y: opts.Position.Y}
	}
	for _, m := range opts.Modifiers {
		mod := toKeyboardModifier(m)
		if mod != nil {
			clickOpts.Modifiers = append(clickOpts.Modifiers, *mod)
		}
	}

	if err := q.Resolve(s.page).Click(clickOpts); err != nil {
		return &TargetError{Query: q.String(), Action: "click", Cause: err}
	}
	return nil
}

// SetChecked drives a binary control (checkbox) into the wanted state.
// a no-op click-wise if the control is already in that state.
func (s *Session) SetChecked(q Query, checked bool) error {
	opts := playwright.LocatorSetCheckedOptions{
		Timeout: playwright.Float(float64(DefaultActionTimeout / time.Millisecond)),
	}
	if err := q.Resolve(s.page).SetChecked(checked, opts); err != nil {
		return &TargetError{Query: q.String(), Action: "set checked", Cause: err}
	}
	return nil
}

// Toggle flips a binary control regardless of its current state.
func (s *Session) Toggle(q Query) error {
	loc := q.Resolve(s.page)
	checked, err := loc.IsChecked()
	if err != nil {
		return &TargetError{Query: q.String(), Action: "toggle", Cause: err}
	}
	return s.SetChecked(q, !checked)
}

// ScrollIntoView brings the first matching element into the viewport,
// needed before snapshotting elements pushed below the fold by re-renders.
func (s *Session) ScrollIntoView(q Query) error {
	if err := q.Resolve(s.page).ScrollIntoViewIfNeeded(); err != nil {
		return &TargetError{Query: q.String(), Action: "scroll into view", Cause: err}
	}
	return nil
}

// toKeyboardModifier maps a Modifier to the playwright enum.
func toKeyboardModifier(m Modifier) *playwright.KeyboardModifier {
	switch m {
	case ModifierShift:
		return playwright.KeyboardModifierShift
	case ModifierControl:
		return playwright.KeyboardModifierControl
	case ModifierAlt:
		return playwright.KeyboardModifierAlt
	case ModifierMeta:
		return playwright.KeyboardModifierMeta
	}
	return nil
}
