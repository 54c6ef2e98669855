package webapp

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/umputun/uiprobe/pkg/widgets"
)

//go:embed templates static
var content embed.FS

// ServerConfig holds configuration for the demo app server.
type ServerConfig struct {
	Port         int           // port to listen on
	ComputeDelay time.Duration // simulated compute time per widget event
	StepDelay    time.Duration // per step of the unmount rerun
	FixturesFile string        // optional fixtures override, empty for embedded defaults
	Watch        bool          // reload fixtures on file change
}

// Server serves the widget pages the harness drives.
type Server struct {
	cfg       ServerConfig
	manager   *Manager
	publisher *Publisher
	templates map[string]*template.Template
	srv       *http.Server
}

// pages rendered from their own template file.
var pageTemplates = []string{"index", PageSegments, PagePills, PageGeoChart, PageMap}

// NewServer creates the app server: fixtures loaded, templates parsed,
// session manager wired to the SSE publisher.
func NewServer(cfg ServerConfig) (*Server, error) {
	fixtures, err := loadFixtures(cfg.FixturesFile)
	if err != nil {
		return nil, err
	}

	templates := make(map[string]*template.Template, len(pageTemplates))
	for _, page := range pageTemplates {
		tmpl, err := template.ParseFS(content, "templates/layout.html", "templates/groups.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", page, err)
		}
		templates[page] = tmpl
	}

	publisher := NewPublisher()
	manager := NewManager(fixtures, ManagerConfig{ComputeDelay: cfg.ComputeDelay, StepDelay: cfg.StepDelay},
		publisher.Status)

	return &Server{cfg: cfg, manager: manager, publisher: publisher, templates: templates}, nil
}

func loadFixtures(path string) (*widgets.Fixtures, error) {
	if path == "" {
		return widgets.DefaultFixtures()
	}
	return widgets.LoadFixturesFile(path)
}

// Manager returns the server's session registry.
func (s *Server) Manager() *Manager { return s.manager }

// Start begins listening for HTTP requests. blocks until the context is
// canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Watch && s.cfg.FixturesFile != "" {
		watcher, err := NewWatcher(s.cfg.FixturesFile, s.manager, s.publisher)
		if err != nil {
			return fmt.Errorf("fixtures watcher: %w", err)
		}
		go watcher.Run(ctx)
	}

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.publisher.Shutdown(shutdownCtx)
		_ = s.srv.Shutdown(shutdownCtx)
		s.manager.Close()
	}()

	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("http server: %w", err)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

// routes builds the handler mux. exposed to tests via httptest.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handlePage("index"))
	mux.HandleFunc("/segments", s.handlePage(PageSegments))
	mux.HandleFunc("/pills", s.handlePage(PagePills))
	mux.HandleFunc("/geochart", s.handlePage(PageGeoChart))
	mux.HandleFunc("/map", s.handlePage(PageMap))
	mux.HandleFunc("/api/event", s.handleEvent)
	mux.Handle("/events", s.publisher.Handler())
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})

	staticFS, err := fs.Sub(content, "static")
	if err != nil { // embed guarantees the directory exists
		panic(fmt.Sprintf("static filesystem: %v", err))
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	return mux
}

// pageData is the template model shared by all pages.
type pageData struct {
	Title      string
	Page       string
	Dark       bool
	Groups     []GroupView
	DefaultsOn bool
	Chart      *ChartView
	Maps       []mapView
}

// mapView is one map chart of the map page.
type mapView struct {
	Name    string
	Seed    int64
	Caption string
}

// handlePage renders a page, or just its widget area when ?partial=1 is set.
// the page script swaps the widget area in place after every run.
func (s *Server) handlePage(page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if page == "index" && r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		sess := s.ensureSession(w, r)
		data := pageData{
			Title: strings.ToUpper(page[:1]) + page[1:],
			Page:  page,
			Dark:  strings.Contains(r.URL.Query().Get("embed_options"), "dark_theme"),
		}

		switch page {
		case PageSegments, PagePills:
			data.Groups = sess.GroupViews(page)
			data.DefaultsOn = sess.DefaultsOn(page)
		case PageGeoChart:
			v := sess.ChartView()
			data.Chart = &v
		case PageMap:
			fixtures := s.manager.Fixtures()
			for _, m := range fixtures.Maps {
				data.Maps = append(data.Maps, mapView{Name: m.Name, Seed: m.Seed, Caption: fixtures.CaptionFor(m)})
			}
		}

		name := "layout"
		if r.URL.Query().Get("partial") == "1" {
			name = "widgets"
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.templates[page].ExecuteTemplate(w, name, data); err != nil {
			log.Printf("[WARN] render %s: %v", page, err)
		}
	}
}

// handleEvent accepts one widget interaction and schedules it on the
// session's queue. returns 202 immediately, completion is announced over SSE.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		http.Error(w, "no session", http.StatusBadRequest)
		return
	}
	sess := s.manager.Get(cookie.Value)
	if sess == nil {
		http.Error(w, "unknown session", http.StatusBadRequest)
		return
	}

	var ev UIEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "bad event payload", http.StatusBadRequest)
		return
	}

	if err := s.manager.Enqueue(sess, ev); err != nil {
		log.Printf("[WARN] drop event for session %s: %v", sess.ID, err)
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ensureSession resolves the browser session from the cookie. a fresh session
// gets its id set as the cookie, an existing one is reused as-is.
func (s *Server) ensureSession(w http.ResponseWriter, r *http.Request) *Session {
	var id string
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		id = cookie.Value
	}

	sess := s.manager.GetOrCreate(id)
	if sess.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: false, // the page script posts events with it
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}
