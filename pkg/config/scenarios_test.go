package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`
scenarios:
  - name: geochart-visuals
    pixel_threshold: 1.0
    skip_engines: [firefox]
  - name: geochart-unmount
    min_stable_ms: 3000
`))
	require.NoError(t, err)
	require.Len(t, m.Scenarios, 2)

	sc, ok := m.Get("geochart-visuals")
	assert.True(t, ok)
	assert.InDelta(t, 1.0, sc.PixelThreshold, 0.0001)
	assert.Equal(t, []string{"firefox"}, sc.SkipEngines)

	sc, ok = m.Get("geochart-unmount")
	assert.True(t, ok)
	assert.Equal(t, 3000, sc.MinStableMs)
}

func TestManifestGetUnknownScenario(t *testing.T) {
	m := &Manifest{}
	sc, ok := m.Get("nope")
	assert.False(t, ok)
	assert.Equal(t, "nope", sc.Name)
	assert.Zero(t, sc.PixelThreshold, "unknown scenarios run with defaults")
}

func TestScenarioThresholds(t *testing.T) {
	vals := Values{PixelThreshold: 0.1, MaxDiffRatio: 0.05}

	pt, mdr := Scenario{Name: "plain"}.Thresholds(vals)
	assert.InDelta(t, 0.1, pt, 0.0001, "unset threshold falls back to config")
	assert.InDelta(t, 0.05, mdr, 0.0001)

	pt, mdr = Scenario{Name: "tuned", PixelThreshold: 0.3, MaxDiffRatio: 0.02}.Thresholds(vals)
	assert.InDelta(t, 0.3, pt, 0.0001, "manifest override wins")
	assert.InDelta(t, 0.02, mdr, 0.0001)
}

func TestParseManifestValidation(t *testing.T) {
	tbl := []struct {
		name string
		yml  string
		err  string
	}{
		{"missing name", "scenarios: [{pixel_threshold: 0.5}]", "name required"},
		{"duplicate name", "scenarios: [{name: a}, {name: a}]", "duplicate name"},
		{"threshold range", "scenarios: [{name: a, pixel_threshold: 2}]", "pixel_threshold"},
		{"ratio range", "scenarios: [{name: a, max_diff_ratio: -1}]", "max_diff_ratio"},
		{"negative floor", "scenarios: [{name: a, min_stable_ms: -5}]", "min_stable_ms"},
		{"bad yaml", "scenarios: [", "parse manifest"},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.yml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	m, err := LoadManifest(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Empty(t, m.Scenarios)
}

func TestLoadManifestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yml")
	require.NoError(t, os.WriteFile(path, []byte("scenarios: [{name: one}]"), 0o600))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Scenarios, 1)
	assert.Equal(t, "one", m.Scenarios[0].Name)
}
