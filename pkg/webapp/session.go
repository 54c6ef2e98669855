package webapp

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/umputun/uiprobe/pkg/widgets"
)

// UIEvent is one widget interaction posted by the page script. events of a
// session apply strictly in the order they were posted.
type UIEvent struct {
	Page     string  `json:"page"`
	Widget   string  `json:"widget"`
	Action   string  `json:"action"` // toggle, check, pick or unmount
	Index    int     `json:"index"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Additive bool    `json:"additive"`
	Checked  bool    `json:"checked"`
}

// event actions accepted by /api/event.
const (
	ActionToggle  = "toggle"
	ActionCheck   = "check"
	ActionPick    = "pick"
	ActionUnmount = "unmount"
)

// Session holds the widget state of one browser session. state lives
// server-side, so selections survive page re-renders and widget remounts.
type Session struct {
	ID string

	mu           sync.Mutex
	groups       map[string]map[string]*widgets.ButtonGroup // page -> widget key -> group
	defaultsOn   map[string]bool                            // page -> defaults checkbox
	chart        *widgets.GeoChart
	chartTouched bool // selection panes render only after the first pick
	extra        int  // "Another element" lines added by the unmount button
	seq          int

	queue chan UIEvent
	done  chan struct{}
}

// Manager is the registry of browser sessions. it owns the fixtures the
// widget pages render and the per-session event runners.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	fixtures *widgets.Fixtures

	computeDelay time.Duration // simulated compute time per event
	stepDelay    time.Duration // per step of the unmount rerun
	publish      func(sessionID string, state string, seq int)
}

// ManagerConfig tunes the manager's simulated run timings.
type ManagerConfig struct {
	ComputeDelay time.Duration
	StepDelay    time.Duration
}

// NewManager creates a session registry. publish is called with every run
// status transition and must be safe for concurrent use.
func NewManager(fixtures *widgets.Fixtures, cfg ManagerConfig, publish func(sessionID, state string, seq int)) *Manager {
	if publish == nil {
		publish = func(string, string, int) {}
	}
	return &Manager{
		sessions:     make(map[string]*Session),
		fixtures:     fixtures,
		computeDelay: cfg.ComputeDelay,
		stepDelay:    cfg.StepDelay,
		publish:      publish,
	}
}

// Get returns the session with the given ID, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Create registers a new session and starts its event runner.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Session{
		ID:         uuid.New().String(),
		groups:     make(map[string]map[string]*widgets.ButtonGroup),
		defaultsOn: make(map[string]bool),
		chart:      widgets.NewGeoChart(m.fixtures.GeoLayers),
		queue:      make(chan UIEvent, 64),
		done:       make(chan struct{}),
	}
	m.sessions[s.ID] = s
	go s.run(m)
	return s
}

// GetOrCreate returns the session for id, creating a fresh one when the id
// is unknown or empty.
func (m *Manager) GetOrCreate(id string) *Session {
	if id != "" {
		if s := m.Get(id); s != nil {
			return s
		}
	}
	return m.Create()
}

// Fixtures returns the current fixture data.
func (m *Manager) Fixtures() *widgets.Fixtures {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fixtures
}

// SetFixtures swaps the fixture data and rebuilds session charts from it.
// called by the watcher on fixture file changes.
func (m *Manager) SetFixtures(f *widgets.Fixtures) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fixtures = f
	for _, s := range m.sessions {
		s.mu.Lock()
		s.chart = widgets.NewGeoChart(f.GeoLayers)
		s.chartTouched = false
		s.mu.Unlock()
	}
}

// Close stops all session runners and clears the registry.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		close(s.queue)
		<-s.done
	}
	m.sessions = make(map[string]*Session)
}

// Enqueue schedules an event on the session's queue. returns an error when
// the queue is full instead of blocking the HTTP handler.
func (m *Manager) Enqueue(s *Session, ev UIEvent) error {
	select {
	case s.queue <- ev:
		return nil
	default:
		return fmt.Errorf("session %s event queue full", s.ID)
	}
}

// run processes queued events one at a time: announce the run, simulate
// compute time, apply the change, announce completion. strict queue order
// gives the program-order dispatch the pages rely on.
func (s *Session) run(m *Manager) {
	defer close(s.done)

	for ev := range s.queue {
		s.mu.Lock()
		s.seq++
		seq := s.seq
		s.mu.Unlock()

		m.publish(s.ID, "running", seq)
		time.Sleep(m.computeDelay)
		s.apply(ev, m.stepDelay)
		m.publish(s.ID, "done", seq)
	}
}

// apply mutates session state for one event. unknown pages or widgets are
// ignored, the page script only posts known ones.
func (s *Session) apply(ev UIEvent, stepDelay time.Duration) {
	switch ev.Action {
	case ActionToggle:
		s.mu.Lock()
		if g := s.pageGroupsLocked(ev.Page)[ev.Widget]; g != nil {
			_ = g.Toggle(ev.Index) // out-of-range indices can't come from rendered buttons
		}
		s.mu.Unlock()

	case ActionCheck:
		s.mu.Lock()
		s.defaultsOn[ev.Page] = ev.Checked
		spec := defaultsSpec(ev.Page)
		if g := s.pageGroupsLocked(ev.Page)[widgetMulti]; g != nil && spec != nil {
			if ev.Checked {
				_ = g.SetSelection(spec.defaultIdx)
			} else {
				g.Clear()
			}
		}
		s.mu.Unlock()

	case ActionPick:
		s.mu.Lock()
		s.chart.Pick(ev.X, ev.Y, ev.Additive)
		s.chartTouched = true
		s.mu.Unlock()

	case ActionUnmount:
		// the slow multi-step rerun that forces the chart to unmount and
		// remount. each step adds an element below the button.
		for range 3 {
			time.Sleep(stepDelay)
			s.mu.Lock()
			s.extra++
			s.mu.Unlock()
		}
	}
}

// pageGroupsLocked returns the page's button groups, building them on first
// access. caller holds s.mu.
func (s *Session) pageGroupsLocked(page string) map[string]*widgets.ButtonGroup {
	groups, ok := s.groups[page]
	if !ok {
		groups = newPageGroups(page)
		s.groups[page] = groups
	}
	return groups
}

// GroupViews renders the current button-group state of a page.
func (s *Session) GroupViews(page string) []GroupView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return buildGroupViews(page, s.pageGroupsLocked(page))
}

// DefaultsOn reports the page's defaults checkbox state.
func (s *Session) DefaultsOn(page string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultsOn[page]
}

// ChartView is the render model of the geo chart page.
type ChartView struct {
	Cells      []widgets.HexCell
	Selected   []int
	Touched    bool   // panes render only after the first pick
	StateText  string // session-state pane content
	EventText  string // event-data pane content
	ExtraLines int    // "Another element" count
}

// ChartView renders the current geo chart state.
func (s *Session) ChartView() ChartView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := ChartView{
		Selected:   s.chart.Indices(),
		Touched:    s.chartTouched,
		ExtraLines: s.extra,
	}
	if len(s.chart.Layers) > 0 {
		v.Cells = s.chart.Layers[0].Cells
	}
	if s.chartTouched {
		v.StateText = SelectionStateText(s.chart)
		v.EventText = SelectionEventText(s.chart)
	}
	return v
}

// Extras sizes the "Another element" repetition for templates.
func (v ChartView) Extras() []int { return make([]int, v.ExtraLines) }

// CellsJSON returns the cells as JSON for the canvas drawing script.
func (v ChartView) CellsJSON() string {
	if len(v.Cells) == 0 {
		return "[]"
	}
	data, err := json.Marshal(v.Cells)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// SelectedJSON returns the selected indices as JSON for the drawing script.
func (v ChartView) SelectedJSON() string {
	if len(v.Selected) == 0 {
		return "[]"
	}
	data, err := json.Marshal(v.Selected)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// Seq returns the number of runs the session has completed or started.
func (s *Session) Seq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
