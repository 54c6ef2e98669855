package webapp

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/uiprobe/pkg/widgets"
)

// statusRecorder collects publish callbacks for assertions.
type statusRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *statusRecorder) publish(sessionID, state string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, sessionID+":"+state)
}

func (r *statusRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

func newTestManager(t *testing.T, rec *statusRecorder) *Manager {
	fixtures, err := widgets.DefaultFixtures()
	require.NoError(t, err)

	var publish func(string, string, int)
	if rec != nil {
		publish = rec.publish
	}
	m := NewManager(fixtures, ManagerConfig{}, publish)
	t.Cleanup(m.Close)
	return m
}

func groupOutput(s *Session, page, prefix string) string {
	for _, v := range s.GroupViews(page) {
		if strings.HasPrefix(v.Output, prefix) {
			return v.Output
		}
	}
	return ""
}

func TestManagerSessionsIsolated(t *testing.T) {
	m := newTestManager(t, nil)

	s1 := m.Create()
	s2 := m.Create()
	require.NotEqual(t, s1.ID, s2.ID)

	require.NoError(t, m.Enqueue(s1, UIEvent{Page: PageSegments, Widget: widgetMulti, Action: ActionToggle, Index: 1}))

	require.Eventually(t, func() bool {
		return groupOutput(s1, PageSegments, "Multi selection") == "Multi selection: ['Foobar']"
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "Multi selection: None", groupOutput(s2, PageSegments, "Multi selection"),
		"second session must not see the first session's clicks")
}

func TestManagerGetOrCreate(t *testing.T) {
	m := newTestManager(t, nil)

	s := m.Create()
	assert.Same(t, s, m.GetOrCreate(s.ID))
	assert.NotSame(t, s, m.GetOrCreate("unknown-id"))
	assert.NotSame(t, s, m.GetOrCreate(""))
}

func TestEventsApplyInProgramOrder(t *testing.T) {
	m := newTestManager(t, nil)
	s := m.Create()

	// select 2, select 0, unselect 2: final selection is exactly [0]
	for _, idx := range []int{2, 0, 2} {
		require.NoError(t, m.Enqueue(s, UIEvent{Page: PagePills, Widget: widgetMulti, Action: ActionToggle, Index: idx}))
	}

	require.Eventually(t, func() bool { return s.Seq() == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "Multi selection: ['🧰 General widgets']", groupOutput(s, PagePills, "Multi selection"))
}

func TestStatusPublishedPerRun(t *testing.T) {
	rec := &statusRecorder{}
	m := newTestManager(t, rec)
	s := m.Create()

	require.NoError(t, m.Enqueue(s, UIEvent{Page: PageSegments, Widget: widgetSingle, Action: ActionToggle, Index: 1}))

	require.Eventually(t, func() bool { return len(rec.all()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{s.ID + ":running", s.ID + ":done"}, rec.all())
}

func TestDefaultsCheckbox(t *testing.T) {
	m := newTestManager(t, nil)
	s := m.Create()

	require.NoError(t, m.Enqueue(s, UIEvent{Page: PagePills, Widget: widgetDefaults, Action: ActionCheck, Checked: true}))
	require.Eventually(t, func() bool {
		return groupOutput(s, PagePills, "Multi selection") == "Multi selection: ['🧰 General widgets', '📊 Charts', '🧊 3D']"
	}, time.Second, 10*time.Millisecond)
	assert.True(t, s.DefaultsOn(PagePills))

	require.NoError(t, m.Enqueue(s, UIEvent{Page: PagePills, Widget: widgetDefaults, Action: ActionCheck, Checked: false}))
	require.Eventually(t, func() bool {
		return groupOutput(s, PagePills, "Multi selection") == "Multi selection: None"
	}, time.Second, 10*time.Millisecond)
	assert.False(t, s.DefaultsOn(PagePills))
}

func TestPickUpdatesChartView(t *testing.T) {
	m := newTestManager(t, nil)
	s := m.Create()

	assert.False(t, s.ChartView().Touched, "panes hidden before the first pick")

	require.NoError(t, m.Enqueue(s, UIEvent{Page: PageGeoChart, Widget: widgetChart, Action: ActionPick, X: 344, Y: 201}))
	require.Eventually(t, func() bool { return s.ChartView().Touched }, time.Second, 10*time.Millisecond)

	v := s.ChartView()
	assert.Equal(t, []int{0}, v.Selected)
	assert.Contains(t, v.EventText, `"indices":[0:0]`)
	assert.Contains(t, v.StateText, `"indices":[0:0]`)

	// a miss resets the selection but keeps the panes visible
	require.NoError(t, m.Enqueue(s, UIEvent{Page: PageGeoChart, Widget: widgetChart, Action: ActionPick, X: 0, Y: 0}))
	require.Eventually(t, func() bool { return len(s.ChartView().Selected) == 0 }, time.Second, 10*time.Millisecond)
	assert.True(t, s.ChartView().Touched)
	assert.Contains(t, s.ChartView().EventText, `"objects":[]`)
}

func TestUnmountAddsExtraElements(t *testing.T) {
	fixtures, err := widgets.DefaultFixtures()
	require.NoError(t, err)
	m := NewManager(fixtures, ManagerConfig{StepDelay: 5 * time.Millisecond}, nil)
	t.Cleanup(m.Close)
	s := m.Create()

	require.NoError(t, m.Enqueue(s, UIEvent{Page: PageGeoChart, Widget: widgetUnmount, Action: ActionUnmount}))
	require.NoError(t, m.Enqueue(s, UIEvent{Page: PageGeoChart, Widget: widgetChart, Action: ActionPick, X: 417, Y: 229}))

	require.Eventually(t, func() bool { return s.Seq() == 2 && s.ChartView().Touched }, time.Second, 10*time.Millisecond)
	v := s.ChartView()
	assert.Equal(t, 3, v.ExtraLines)
	assert.Len(t, v.Extras(), 3)
	assert.Equal(t, []int{2}, v.Selected, "selection applied after the slow rerun finished")
}

func TestSetFixturesRebuildsCharts(t *testing.T) {
	m := newTestManager(t, nil)
	s := m.Create()

	require.NoError(t, m.Enqueue(s, UIEvent{Page: PageGeoChart, Widget: widgetChart, Action: ActionPick, X: 344, Y: 201}))
	require.Eventually(t, func() bool { return s.ChartView().Touched }, time.Second, 10*time.Millisecond)

	replacement, err := widgets.ParseFixtures([]byte(`
geo_layers:
  - id: Other
    cells:
      - {hex: "zzz", count: 1, x: 50, y: 50, radius: 10}
row_cap: 10
`))
	require.NoError(t, err)
	m.SetFixtures(replacement)

	v := s.ChartView()
	assert.False(t, v.Touched, "fixture reload resets chart state")
	require.Len(t, v.Cells, 1)
	assert.Equal(t, "zzz", v.Cells[0].Hex)
	assert.Same(t, replacement, m.Fixtures())
}

func TestChartViewJSONHelpers(t *testing.T) {
	v := ChartView{}
	assert.Equal(t, "[]", v.CellsJSON())
	assert.Equal(t, "[]", v.SelectedJSON())

	v = ChartView{
		Cells:    []widgets.HexCell{{Hex: "a", Count: 1, X: 2, Y: 3, Radius: 4}},
		Selected: []int{0},
	}
	assert.Contains(t, v.CellsJSON(), `"hex":"a"`)
	assert.Equal(t, "[0]", v.SelectedJSON())
}
