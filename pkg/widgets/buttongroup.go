// Package widgets implements the demo application's widget state: pill and
// segment button groups with single/multi selection, a selectable geo chart
// and map chart fixtures. the demo server renders these and the e2e suite
// drives them through a browser.
package widgets

import (
	"fmt"
	"slices"
	"strings"
)

// SelectionMode controls how a button group reacts to clicks.
type SelectionMode string

// selection modes.
const (
	ModeSingle SelectionMode = "single"
	ModeMulti  SelectionMode = "multi"
)

// GroupKind is the visual variant of a button group.
type GroupKind string

// button group variants.
const (
	KindSegments GroupKind = "segments"
	KindPills    GroupKind = "pills"
)

// Option is one selectable entry of a button group. icon-only groups leave
// Label empty and report Value instead.
type Option struct {
	Label string `yaml:"label"`
	Icon  string `yaml:"icon,omitempty"`
	Value string `yaml:"value,omitempty"` // reported value, defaults to Label
}

// reported returns what the option contributes to the group's value display.
func (o Option) reported() string {
	if o.Value != "" {
		return o.Value
	}
	return o.Label
}

// textual reports whether the option's value is quoted in multi-select
// display. text labels are quoted, explicit values (icon-only groups report
// bare numbers) are not.
func (o Option) textual() bool {
	return o.Value == ""
}

// ButtonGroup is a pill or segment selection control. selection order is
// click order; the zero selection reports "None".
type ButtonGroup struct {
	Kind     GroupKind
	Label    string
	Mode     SelectionMode
	Options  []Option
	selected []int
}

// NewButtonGroup creates a group with no selection.
func NewButtonGroup(kind GroupKind, label string, mode SelectionMode, options []Option) *ButtonGroup {
	return &ButtonGroup{Kind: kind, Label: label, Mode: mode, Options: options}
}

// Toggle flips option i. in multi mode a new option is appended preserving
// click order and a selected one is removed, leaving the rest untouched. in
// single mode clicking the selected option clears the selection, so two
// applications always return the control to its unselected state.
func (g *ButtonGroup) Toggle(i int) error {
	if i < 0 || i >= len(g.Options) {
		return fmt.Errorf("option %d out of range (group has %d options)", i, len(g.Options))
	}

	switch g.Mode {
	case ModeMulti:
		if pos := slices.Index(g.selected, i); pos >= 0 {
			g.selected = slices.Delete(g.selected, pos, pos+1)
			return nil
		}
		g.selected = append(g.selected, i)
	case ModeSingle:
		if len(g.selected) == 1 && g.selected[0] == i {
			g.selected = nil
			return nil
		}
		g.selected = []int{i}
	default:
		return fmt.Errorf("unknown selection mode %q", g.Mode)
	}
	return nil
}

// Selected returns the selected option indices in click order.
func (g *ButtonGroup) Selected() []int {
	return slices.Clone(g.selected)
}

// IsSelected reports whether option i is currently selected.
func (g *ButtonGroup) IsSelected(i int) bool {
	return slices.Contains(g.selected, i)
}

// SetSelection replaces the selection, used when a scenario applies default
// values. indices outside the option range are rejected.
func (g *ButtonGroup) SetSelection(indices []int) error {
	for _, i := range indices {
		if i < 0 || i >= len(g.Options) {
			return fmt.Errorf("default option %d out of range", i)
		}
	}
	g.selected = slices.Clone(indices)
	return nil
}

// Clear drops the selection.
func (g *ButtonGroup) Clear() {
	g.selected = nil
}

// Value renders the reported selection the way the app displays it:
// "None" when empty, the bare value in single mode, a quoted list in click
// order in multi mode, e.g. ['Foobar', '📊 Charts'].
func (g *ButtonGroup) Value() string {
	if len(g.selected) == 0 {
		return "None"
	}

	if g.Mode == ModeSingle {
		return g.Options[g.selected[0]].reported()
	}

	parts := make([]string, 0, len(g.selected))
	for _, i := range g.selected {
		opt := g.Options[i]
		if opt.textual() {
			parts = append(parts, "'"+opt.reported()+"'")
		} else {
			parts = append(parts, opt.reported())
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// IndexByLabel finds the option with the given label, -1 if absent.
func (g *ButtonGroup) IndexByLabel(label string) int {
	for i, o := range g.Options {
		if o.Label == label {
			return i
		}
	}
	return -1
}
