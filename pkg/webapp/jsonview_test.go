package webapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/uiprobe/pkg/widgets"
)

func TestRenderDoc(t *testing.T) {
	tbl := []struct {
		name string
		in   doc
		want string
	}{
		{"empty object", doc{}, "{}"},
		{"scalar fields", doc{{"a", 1}, {"b", "x"}}, `{"a":1"b":"x"}`},
		{"empty list", doc{{"items", list{}}}, `{"items":[]}`},
		{"positional prefixes", doc{{"items", list{10, 20, 30}}}, `{"items":[0:101:202:30]}`},
		{"nested", doc{{"o", doc{{"k", list{"v"}}}}}, `{"o":{"k":[0:"v"]}}`},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderDoc(tt.in))
		})
	}
}

func TestSelectionTextFormats(t *testing.T) {
	chart := widgets.NewGeoChart([]widgets.GeoLayer{{
		ID: "MyHexLayer",
		Cells: []widgets.HexCell{
			{Hex: "88283082b9fffff", Count: 10, X: 344, Y: 201, Radius: 36},
			{Hex: "88283082d7fffff", Count: 50, X: 240, Y: 310, Radius: 36},
			{Hex: "88283082a9fffff", Count: 100, X: 417, Y: 229, Radius: 36},
		},
	}})

	// single pick of the first cell
	chart.Pick(344, 201, false)
	text := SelectionEventText(chart)
	assert.Equal(t, `{"selection":{"indices":[0:0]"objects":[0:{"hex":"88283082b9fffff""count":10}]}}`, text)
	assert.Contains(t, text, `"indices":[0:0]`)
	assert.Contains(t, text, `"count":10}`)

	// additive pick of the third cell: positional prefix per element
	chart.Pick(417, 229, true)
	text = SelectionEventText(chart)
	assert.Contains(t, text, `"indices":[0:01:2]`)
	assert.Contains(t, text, `"count":100}`)

	// deselect everything
	chart.Pick(0, 0, false)
	text = SelectionEventText(chart)
	assert.Contains(t, text, `"indices":[]`)
	assert.Contains(t, text, `"objects":[]`)
}

func TestSelectionStateTextWrapsWidgetKey(t *testing.T) {
	chart := widgets.NewGeoChart([]widgets.GeoLayer{{
		ID:    "L",
		Cells: []widgets.HexCell{{Hex: "abc", Count: 7, X: 10, Y: 10, Radius: 5}},
	}})
	require.NoError(t, chart.Select([]int{0}))

	text := SelectionStateText(chart)
	assert.Contains(t, text, `{"geo_chart":{"selection":`)
	assert.Contains(t, text, `"indices":[0:0]`)
}
