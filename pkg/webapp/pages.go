package webapp

import (
	"github.com/umputun/uiprobe/pkg/widgets"
)

// page names, also the URL paths under /.
const (
	PageSegments = "segments"
	PagePills    = "pills"
	PageGeoChart = "geochart"
	PageMap      = "map"
)

// widget keys within a page, used by /api/event payloads.
const (
	widgetMulti    = "multi"
	widgetSingle   = "single"
	widgetIcons    = "icons"
	widgetDefaults = "defaults"
	widgetChart    = "chart"
	widgetUnmount  = "unmount"
)

// groupSpec declares one button group of a page: what to build and how to
// report its value.
type groupSpec struct {
	widget       string
	kind         widgets.GroupKind
	label        string
	mode         widgets.SelectionMode
	options      []widgets.Option
	outputPrefix string // e.g. "Multi selection"
	defaultIdx   []int  // applied when the page's defaults checkbox is on
}

func textOpts(labels ...string) []widgets.Option {
	opts := make([]widgets.Option, len(labels))
	for i, l := range labels {
		opts[i] = widgets.Option{Label: l}
	}
	return opts
}

// pageGroups lists the button groups of each widget page, in render order.
var pageGroups = map[string][]groupSpec{
	PageSegments: {
		{
			widget: widgetMulti, kind: widgets.KindSegments, mode: widgets.ModeMulti,
			label: "select some options", outputPrefix: "Multi selection",
			options: textOpts(
				"⭐ Hello there!",
				"Foobar",
				"Icon in the end: 🚀",
				"👍 Hello again!",
				"🧰 General widgets",
				"📊 Charts",
				"🌇 Images",
				"🎥 Video",
				"📝 Text",
				"This is a very long text 📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝📝",
			),
			defaultIdx: []int{1, 4}, // Foobar, 🧰 General widgets
		},
		{
			widget: widgetSingle, kind: widgets.KindSegments, mode: widgets.ModeSingle,
			label: "select an option", outputPrefix: "Single selection",
			options: textOpts("⭐ Hello there!", "Foobar", "Icon in the end: 🚀"),
		},
		{
			widget: widgetIcons, kind: widgets.KindSegments, mode: widgets.ModeSingle,
			label: "select an icon", outputPrefix: "Single icon selection",
			options: []widgets.Option{
				{Icon: "add", Value: "0"},
				{Icon: "zoom_in", Value: "1"},
				{Icon: "zoom_out", Value: "2"},
				{Icon: "zoom_out_map", Value: "3"},
			},
		},
	},
	PagePills: {
		{
			widget: widgetMulti, kind: widgets.KindPills, mode: widgets.ModeMulti,
			label: "select some options", outputPrefix: "Multi selection",
			options: textOpts(
				"🧰 General widgets",
				"📊 Charts",
				"🌇 Images",
				"🎥 Video",
				"📝 Text",
				"🪢 Graphs",
				"🧊 3D",
			),
			defaultIdx: []int{0, 1, 6}, // 🧰 General widgets, 📊 Charts, 🧊 3D
		},
		{
			widget: widgetIcons, kind: widgets.KindPills, mode: widgets.ModeSingle,
			label: "select an icon", outputPrefix: "Single selection",
			options: []widgets.Option{
				{Icon: "add", Value: "0"},
				{Icon: "zoom_in", Value: "1"},
				{Icon: "zoom_out", Value: "2"},
				{Icon: "zoom_out_map", Value: "3"},
			},
		},
	},
}

// newPageGroups builds fresh button groups for one page.
func newPageGroups(page string) map[string]*widgets.ButtonGroup {
	groups := make(map[string]*widgets.ButtonGroup)
	for _, spec := range pageGroups[page] {
		groups[spec.widget] = widgets.NewButtonGroup(spec.kind, spec.label, spec.mode, spec.options)
	}
	return groups
}

// ButtonView is one button of a rendered group.
type ButtonView struct {
	Index  int
	Text   string // label, or icon name for icon-only buttons
	Active bool
}

// GroupView is the render model of a button group.
type GroupView struct {
	Widget      string
	Kind        string // segments or pills, part of the button test id
	Label       string
	HasDefaults bool
	Buttons     []ButtonView
	Output      string // the markdown line under the group
}

// buildGroupViews renders the current state of a page's groups.
func buildGroupViews(page string, groups map[string]*widgets.ButtonGroup) []GroupView {
	specs := pageGroups[page]
	views := make([]GroupView, 0, len(specs))
	for _, spec := range specs {
		g := groups[spec.widget]
		v := GroupView{
			Widget:      spec.widget,
			Kind:        string(spec.kind),
			Label:       g.Label,
			HasDefaults: len(spec.defaultIdx) > 0,
			Output:      spec.outputPrefix + ": " + g.Value(),
		}
		for i, opt := range g.Options {
			text := opt.Label
			if text == "" {
				text = opt.Icon
			}
			v.Buttons = append(v.Buttons, ButtonView{Index: i, Text: text, Active: g.IsSelected(i)})
		}
		views = append(views, v)
	}
	return views
}

// defaultsSpec returns the defaults-capable group spec of a page, nil when
// the page has none.
func defaultsSpec(page string) *groupSpec {
	for i, spec := range pageGroups[page] {
		if len(spec.defaultIdx) > 0 {
			return &pageGroups[page][i]
		}
	}
	return nil
}
