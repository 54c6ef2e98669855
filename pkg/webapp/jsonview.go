package webapp

import (
	"fmt"
	"strings"

	"github.com/umputun/uiprobe/pkg/widgets"
)

// jsonview renders selection state the way the page's embedded JSON viewer
// displays it: array elements carry positional prefixes and entries run
// together without separators, so a selection of cells 0 and 2 displays as
// "indices":[0:01:2]. the harness asserts against these exact strings.

// node is a renderable JSON-viewer value: string, int, float64, list or doc.
type node any

// field is one ordered entry of a doc.
type field struct {
	key string
	val node
}

// doc is an object with stable field order.
type doc []field

// list is an array rendered with positional prefixes.
type list []node

func renderNode(b *strings.Builder, n node) {
	switch v := n.(type) {
	case doc:
		b.WriteString("{")
		for _, f := range v {
			fmt.Fprintf(b, "%q:", f.key)
			renderNode(b, f.val)
		}
		b.WriteString("}")
	case list:
		b.WriteString("[")
		for i, el := range v {
			fmt.Fprintf(b, "%d:", i)
			renderNode(b, el)
		}
		b.WriteString("]")
	case string:
		fmt.Fprintf(b, "%q", v)
	case int:
		fmt.Fprintf(b, "%d", v)
	case float64:
		fmt.Fprintf(b, "%g", v)
	default:
		fmt.Fprintf(b, "%v", v)
	}
}

// renderDoc returns the viewer text for a document.
func renderDoc(d doc) string {
	var b strings.Builder
	renderNode(&b, d)
	return b.String()
}

// selectionDoc builds the selection document of a geo chart: indices in click
// order plus the picked cells. hex goes before count so assertions on
// `"count":N}` match a single cell.
func selectionDoc(chart *widgets.GeoChart) doc {
	indices := list{}
	for _, i := range chart.Indices() {
		indices = append(indices, i)
	}
	objects := list{}
	for _, cell := range chart.Objects() {
		objects = append(objects, doc{
			{"hex", cell.Hex},
			{"count", cell.Count},
		})
	}
	return doc{{"selection", doc{
		{"indices", indices},
		{"objects", objects},
	}}}
}

// SelectionStateText renders the geo chart selection as the session-state
// pane shows it, keyed by the chart's widget name.
func SelectionStateText(chart *widgets.GeoChart) string {
	return renderDoc(doc{{"geo_chart", selectionDoc(chart)}})
}

// SelectionEventText renders the geo chart selection as the event-data pane
// shows it.
func SelectionEventText(chart *widgets.GeoChart) string {
	return renderDoc(selectionDoc(chart))
}
