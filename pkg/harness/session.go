package harness

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// Session is one browser tab bound to one running application instance.
// it owns an isolated browser context (separate cookies and storage), so
// parallel sessions never share state. a session belongs to exactly one test:
// create it at test start, Close it at test end.
type Session struct {
	ctx     playwright.BrowserContext
	page    playwright.Page
	baseURL string
	engine  string
	params  url.Values // persistent query params appended to every navigation
}

// SessionOptions configures a new session.
type SessionOptions struct {
	// Theme switches the app's embed theme via query params, e.g. "dark_theme".
	// empty means the app default.
	Theme string
	// Params are extra query params carried on every navigation.
	Params url.Values
	// Viewport overrides the default browser viewport.
	Viewport *playwright.Size
}

// NewSession creates an isolated browser context and page against baseURL.
func NewSession(browser playwright.Browser, baseURL string, opts SessionOptions) (*Session, error) {
	ctxOpts := playwright.BrowserNewContextOptions{}
	if opts.Viewport != nil {
		ctxOpts.Viewport = opts.Viewport
	}

	ctx, err := browser.NewContext(ctxOpts)
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := ctx.NewPage()
	if err != nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	params := url.Values{}
	for k, vs := range opts.Params {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	if opts.Theme != "" {
		params.Set("embed_options", opts.Theme)
	}

	return &Session{
		ctx:     ctx,
		page:    page,
		baseURL: strings.TrimRight(baseURL, "/"),
		engine:  browser.BrowserType().Name(),
		params:  params,
	}, nil
}

// Close tears down the page and its browser context. safe to call in defer
// regardless of test outcome.
func (s *Session) Close() error {
	if err := s.page.Close(); err != nil {
		_ = s.ctx.Close()
		return fmt.Errorf("close page: %w", err)
	}
	if err := s.ctx.Close(); err != nil {
		return fmt.Errorf("close context: %w", err)
	}
	return nil
}

// Open navigates to path (relative to the base URL) with the session's
// persistent query params plus any extra ones. blocks until the browser
// confirms the navigation was accepted.
func (s *Session) Open(path string, extra url.Values) error {
	target := s.URL(path, extra)
	if _, err := s.page.Goto(target); err != nil {
		return fmt.Errorf("navigate to %s: %w", target, err)
	}
	return nil
}

// URL builds the full URL for a path including persistent and extra params.
func (s *Session) URL(path string, extra url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	merged := url.Values{}
	for k, vs := range s.params {
		for _, v := range vs {
			merged.Add(k, v)
		}
	}
	for k, vs := range extra {
		for _, v := range vs {
			merged.Set(k, v)
		}
	}

	target := s.baseURL + path
	if len(merged) > 0 {
		target += "?" + merged.Encode()
	}
	return target
}

// Page exposes the underlying playwright page for checks the harness does not
// cover. prefer the typed helpers where they exist.
func (s *Session) Page() playwright.Page {
	return s.page
}

// Engine returns the browser engine name ("chromium", "firefox", "webkit"),
// used by the snapshot comparator's skip list.
func (s *Session) Engine() string {
	return s.engine
}

// Locate resolves a query against the session's page.
func (s *Session) Locate(q Query) playwright.Locator {
	return q.Resolve(s.page)
}
