package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario holds per-scenario overrides from the manifest. zero values mean
// "use the harness defaults".
type Scenario struct {
	Name           string   `yaml:"name"`
	PixelThreshold float64  `yaml:"pixel_threshold,omitempty"`
	MaxDiffRatio   float64  `yaml:"max_diff_ratio,omitempty"`
	MinStableMs    int      `yaml:"min_stable_ms,omitempty"` // floor for run stabilization waits
	SkipEngines    []string `yaml:"skip_engines,omitempty"`  // browser engines to skip snapshots on
}

// Manifest is the scenario manifest loaded from YAML.
type Manifest struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadManifest reads and validates a scenario manifest. a missing file is
// not an error, scenarios simply run with defaults.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path points into the test suite
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return ParseManifest(data)
}

// ParseManifest parses and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	seen := make(map[string]bool, len(m.Scenarios))
	for i, sc := range m.Scenarios {
		if sc.Name == "" {
			return nil, fmt.Errorf("scenario %d: name required", i)
		}
		if seen[sc.Name] {
			return nil, fmt.Errorf("scenario %q: duplicate name", sc.Name)
		}
		seen[sc.Name] = true
		if sc.PixelThreshold < 0 || sc.PixelThreshold > 1 {
			return nil, fmt.Errorf("scenario %q: pixel_threshold must be in [0, 1], got %g", sc.Name, sc.PixelThreshold)
		}
		if sc.MaxDiffRatio < 0 || sc.MaxDiffRatio > 1 {
			return nil, fmt.Errorf("scenario %q: max_diff_ratio must be in [0, 1], got %g", sc.Name, sc.MaxDiffRatio)
		}
		if sc.MinStableMs < 0 {
			return nil, fmt.Errorf("scenario %q: min_stable_ms must be non-negative, got %d", sc.Name, sc.MinStableMs)
		}
	}
	return &m, nil
}

// Thresholds returns the scenario's snapshot tolerances, falling back to the
// configured values for fields the manifest leaves unset.
func (s Scenario) Thresholds(v Values) (pixelThreshold, maxDiffRatio float64) {
	pixelThreshold, maxDiffRatio = s.PixelThreshold, s.MaxDiffRatio
	if pixelThreshold == 0 {
		pixelThreshold = v.PixelThreshold
	}
	if maxDiffRatio == 0 {
		maxDiffRatio = v.MaxDiffRatio
	}
	return pixelThreshold, maxDiffRatio
}

// Get returns the named scenario's overrides, a zero Scenario when absent.
func (m *Manifest) Get(name string) (Scenario, bool) {
	for _, sc := range m.Scenarios {
		if sc.Name == name {
			return sc, true
		}
	}
	return Scenario{Name: name}, false
}
