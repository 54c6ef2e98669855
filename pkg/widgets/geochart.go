package widgets

import (
	"fmt"
	"math"
	"slices"
)

// geo chart canvas dimensions in CSS pixels. the click handling layer maps
// page coordinates directly onto this plane, so cell positions in fixtures
// are plain canvas pixels.
const (
	GeoCanvasWidth  = 800
	GeoCanvasHeight = 450
)

// HexCell is one pickable cell of a geo layer: a hex id, a data payload and
// its position on the canvas.
type HexCell struct {
	Hex    string  `yaml:"hex" json:"hex"`
	Count  int     `yaml:"count" json:"count"`
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Radius float64 `yaml:"radius" json:"radius"`
}

// GeoLayer is a named collection of pickable cells.
type GeoLayer struct {
	ID    string    `yaml:"id" json:"id"`
	Cells []HexCell `yaml:"cells" json:"cells"`
}

// GeoChart holds a chart's layers and its current selection. the selection
// lives server-side, so it survives the widget unmounting and remounting in
// the page.
type GeoChart struct {
	Layers   []GeoLayer
	selected []int // cell indices into the first layer, click order
}

// NewGeoChart creates a chart with no selection.
func NewGeoChart(layers []GeoLayer) *GeoChart {
	return &GeoChart{Layers: layers}
}

// HitTest maps a click position to the index of the nearest cell whose
// radius contains the point, -1 when the click landed on empty space.
func (c *GeoChart) HitTest(x, y float64) int {
	if len(c.Layers) == 0 {
		return -1
	}
	best, bestDist := -1, math.MaxFloat64
	for i, cell := range c.Layers[0].Cells {
		dist := math.Hypot(cell.X-x, cell.Y-y)
		if dist <= cell.Radius && dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// Pick applies a click at canvas coordinates. a hit replaces the selection,
// or toggles membership when additive (shift held). a miss deselects
// everything: both the objects and the indices lists reset to empty.
func (c *GeoChart) Pick(x, y float64, additive bool) {
	i := c.HitTest(x, y)
	if i < 0 {
		c.selected = nil
		return
	}
	if !additive {
		c.selected = []int{i}
		return
	}
	if pos := slices.Index(c.selected, i); pos >= 0 {
		c.selected = slices.Delete(c.selected, pos, pos+1)
		return
	}
	c.selected = append(c.selected, i)
}

// Select sets the selection directly, rejecting out-of-range indices.
func (c *GeoChart) Select(indices []int) error {
	if len(c.Layers) == 0 && len(indices) > 0 {
		return fmt.Errorf("chart has no layers")
	}
	for _, i := range indices {
		if i < 0 || i >= len(c.Layers[0].Cells) {
			return fmt.Errorf("cell %d out of range", i)
		}
	}
	c.selected = slices.Clone(indices)
	return nil
}

// Deselect clears the selection.
func (c *GeoChart) Deselect() {
	c.selected = nil
}

// Indices returns the selected cell indices in click order.
func (c *GeoChart) Indices() []int {
	return slices.Clone(c.selected)
}

// Objects returns the selected cells in click order.
func (c *GeoChart) Objects() []HexCell {
	if len(c.Layers) == 0 {
		return nil
	}
	out := make([]HexCell, 0, len(c.selected))
	for _, i := range c.selected {
		out = append(out, c.Layers[0].Cells[i])
	}
	return out
}
