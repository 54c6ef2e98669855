package widgets

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults
var defaultsFS embed.FS

// MapFixture describes one deterministic map chart: the client draws seeded
// pseudo-random tiles, so identical seeds render identical pixels and visual
// baselines stay stable.
type MapFixture struct {
	Name string `yaml:"name"`
	Seed int64  `yaml:"seed"`
	Rows int    `yaml:"rows"` // dataset size driving the row-cap caption
}

// Fixtures is the demo data behind the geo chart and map pages. loaded from
// the embedded defaults, optionally overridden by a file in the watched
// fixtures directory.
type Fixtures struct {
	GeoLayers []GeoLayer   `yaml:"geo_layers"`
	Maps      []MapFixture `yaml:"maps"`
	RowCap    int          `yaml:"row_cap"` // rows above this produce a caption
}

// DefaultFixtures loads the embedded fixture data.
func DefaultFixtures() (*Fixtures, error) {
	data, err := defaultsFS.ReadFile("defaults/fixtures.yml")
	if err != nil {
		return nil, fmt.Errorf("read embedded fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// LoadFixturesFile loads fixtures from path, used by the fixture watcher.
func LoadFixturesFile(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator's --fixtures flag
	if err != nil {
		return nil, fmt.Errorf("read fixtures %s: %w", path, err)
	}
	return ParseFixtures(data)
}

// ParseFixtures parses and validates fixture YAML.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate rejects fixture data the pages cannot render.
func (f *Fixtures) Validate() error {
	if len(f.GeoLayers) == 0 {
		return fmt.Errorf("fixtures need at least one geo layer")
	}
	for _, layer := range f.GeoLayers {
		if layer.ID == "" {
			return fmt.Errorf("geo layer without id")
		}
		for i, cell := range layer.Cells {
			if cell.Radius <= 0 {
				return fmt.Errorf("layer %s cell %d: radius must be positive", layer.ID, i)
			}
			if cell.X < 0 || cell.X > GeoCanvasWidth || cell.Y < 0 || cell.Y > GeoCanvasHeight {
				return fmt.Errorf("layer %s cell %d: position %.0f,%.0f outside %dx%d canvas",
					layer.ID, i, cell.X, cell.Y, GeoCanvasWidth, GeoCanvasHeight)
			}
		}
	}
	for i, m := range f.Maps {
		if m.Name == "" {
			return fmt.Errorf("map fixture %d without name", i)
		}
	}
	return nil
}

// CaptionFor returns the row-cap warning for a map fixture, empty when the
// dataset fits.
func (f *Fixtures) CaptionFor(m MapFixture) string {
	if f.RowCap > 0 && m.Rows > f.RowCap {
		return fmt.Sprintf("⚠️ Showing only %s rows. Call collect() on the dataframe to show more.", humanRowCap(f.RowCap))
	}
	return ""
}

// humanRowCap renders the cap the way the UI shows it (10000 -> "10k").
func humanRowCap(n int) string {
	if n%1000 == 0 {
		return fmt.Sprintf("%dk", n/1000)
	}
	return fmt.Sprintf("%d", n)
}
