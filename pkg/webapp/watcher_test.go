package webapp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/uiprobe/pkg/widgets"
)

const watcherFixture = `
geo_layers:
  - id: First
    cells:
      - {hex: "a", count: 1, x: 10, y: 10, radius: 5}
row_cap: 100
`

const watcherFixtureUpdated = `
geo_layers:
  - id: Second
    cells:
      - {hex: "b", count: 2, x: 20, y: 20, radius: 5}
row_cap: 200
`

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "fixtures.yml")
	require.NoError(t, os.WriteFile(file, []byte(watcherFixture), 0o600))

	fixtures, err := widgets.LoadFixturesFile(file)
	require.NoError(t, err)
	m := NewManager(fixtures, ManagerConfig{}, nil)
	t.Cleanup(m.Close)

	w, err := NewWatcher(file, m, NewPublisher())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// give the watcher a moment to attach before modifying the file
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(file, []byte(watcherFixtureUpdated), 0o600))

	require.Eventually(t, func() bool {
		return m.Fixtures().GeoLayers[0].ID == "Second"
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, 200, m.Fixtures().RowCap)
}

func TestWatcherKeepsOldFixturesOnBadFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "fixtures.yml")
	require.NoError(t, os.WriteFile(file, []byte(watcherFixture), 0o600))

	fixtures, err := widgets.LoadFixturesFile(file)
	require.NoError(t, err)
	m := NewManager(fixtures, ManagerConfig{}, nil)
	t.Cleanup(m.Close)

	w, err := NewWatcher(file, m, NewPublisher())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(file, []byte("geo_layers: ["), 0o600))

	// invalid data never replaces the active fixtures
	time.Sleep(2 * watchDebounce)
	assert.Equal(t, "First", m.Fixtures().GeoLayers[0].ID)
}

func TestWatcherRejectsMissingDir(t *testing.T) {
	m := NewManager(&widgets.Fixtures{GeoLayers: []widgets.GeoLayer{{ID: "x"}}}, ManagerConfig{}, nil)
	t.Cleanup(m.Close)

	_, err := NewWatcher("/nonexistent-dir/fixtures.yml", m, NewPublisher())
	require.Error(t, err)
}
