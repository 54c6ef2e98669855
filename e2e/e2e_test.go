//go:build e2e

// Package e2e drives the demo widget app through a real browser and verifies
// interaction behavior and visual baselines.
package e2e

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"

	"github.com/umputun/uiprobe/pkg/config"
	"github.com/umputun/uiprobe/pkg/gitinfo"
	"github.com/umputun/uiprobe/pkg/harness"
	"github.com/umputun/uiprobe/pkg/report"
)

const (
	testPort   = 18091
	baseURL    = "http://127.0.0.1:18091"
	binaryPath = "/tmp/uiprobe-e2e"

	// short app delays keep the suite fast while still exercising the
	// running-indicator synchronization
	computeDelayMs = 50
	stepDelayMs    = 200

	serverStartTimeout = 30 * time.Second
)

var (
	pw        *playwright.Playwright
	browser   playwright.Browser
	serverCmd *exec.Cmd

	manifest *config.Manifest
	store    *harness.SnapshotStore
	recorder *report.Recorder
	provInfo gitinfo.Info

	// configured budgets, loaded in TestMain
	vals       config.Values
	suiteRetry harness.Retry
)

func TestMain(m *testing.M) {
	code := 1
	defer func() {
		os.Exit(code)
	}()

	if err := buildBinary(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to build binary: %v\n", err)
		return
	}
	defer os.Remove(binaryPath)

	testDataDir, err := resolveTestDataDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve testdata dir: %v\n", err)
		return
	}

	manifest, err = config.LoadManifest(filepath.Join(testDataDir, "scenarios.yml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load scenario manifest: %v\n", err)
		return
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return
	}
	vals = cfg.Values
	suiteRetry = harness.Retry{Timeout: vals.RetryTimeout(), Interval: vals.RetryInterval()}

	snapshotDir := os.Getenv("E2E_SNAPSHOT_DIR")
	if snapshotDir == "" {
		// the configured path is relative to the project root
		snapshotDir = vals.SnapshotDir
		if !filepath.IsAbs(snapshotDir) {
			snapshotDir = filepath.Join(filepath.Dir(testDataDir), "..", snapshotDir)
		}
	}
	store, err = harness.NewSnapshotStore(snapshotDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create snapshot store: %v\n", err)
		return
	}

	recorder = report.NewRecorder()
	provInfo = gitinfo.Resolve(".")

	if err := startServer(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		return
	}
	defer stopServer()

	if err := waitForServer(serverStartTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "server not ready: %v\n", err)
		return
	}

	if err := setupPlaywright(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup playwright: %v\n", err)
		return
	}
	defer teardownPlaywright()

	code = m.Run()

	// keep the run log for `uiprobe --report` when requested
	if path := os.Getenv("E2E_RUN_LOG"); path != "" {
		if err := recorder.WriteFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "write run log: %v\n", err)
		}
	}
}

func buildBinary() error {
	// get the project root (parent of e2e directory)
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get cwd: %w", err)
	}
	projectRoot := filepath.Dir(cwd)

	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/uiprobe")
	cmd.Dir = projectRoot
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	return nil
}

func resolveTestDataDir() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("locate test file")
	}
	return filepath.Join(filepath.Dir(filename), "testdata"), nil
}

func startServer() error {
	serverCmd = exec.Command(binaryPath,
		"--serve",
		"--port", fmt.Sprintf("%d", testPort),
		"--compute-delay", fmt.Sprintf("%d", computeDelayMs),
		"--step-delay", fmt.Sprintf("%d", stepDelayMs),
	)
	serverCmd.Stdout = os.Stdout
	serverCmd.Stderr = os.Stderr

	if err := serverCmd.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

func stopServer() {
	if serverCmd != nil && serverCmd.Process != nil {
		_ = serverCmd.Process.Kill()
		_ = serverCmd.Wait()
	}
}

func waitForServer(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := &http.Client{Timeout: time.Second}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for server after %v", timeout)
		case <-ticker.C:
			resp, err := client.Get(baseURL + "/ping")
			if err != nil {
				continue
			}
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK && string(body) == "pong" {
				return nil
			}
		}
	}
}

func setupPlaywright() error {
	if err := playwright.Install(); err != nil {
		return fmt.Errorf("install playwright: %w", err)
	}

	var err error
	pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("run playwright: %w", err)
	}

	// headless per config, E2E_HEADLESS env overrides
	headless := vals.Headless
	if env := os.Getenv("E2E_HEADLESS"); env != "" {
		headless = env != "false"
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	}
	if !headless {
		opts.SlowMo = playwright.Float(50)
	}

	browser, err = pw.Chromium.Launch(opts)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	return nil
}

func teardownPlaywright() {
	if browser != nil {
		_ = browser.Close()
	}
	if pw != nil {
		_ = pw.Stop()
	}
}

// newSession creates an isolated harness session and opens the given page.
// each test gets its own browser context (separate cookies, storage).
func newSession(t *testing.T, path string, opts harness.SessionOptions) *harness.Session {
	t.Helper()

	sess, err := harness.NewSession(browser, baseURL, opts)
	require.NoError(t, err, "create session")
	t.Cleanup(func() { _ = sess.Close() })

	require.NoError(t, sess.Open(path, nil), "open %s", path)
	return sess
}

// scenarioRun ties one test to its manifest overrides and run-log record.
type scenarioRun struct {
	t         *testing.T
	sc        config.Scenario
	status    report.Status
	diffPath  string
	snapshots int
}

// startScenario looks up manifest overrides for name and registers the
// outcome record on test cleanup.
func startScenario(t *testing.T, name string) *scenarioRun {
	t.Helper()

	sc, _ := manifest.Get(name)
	run := &scenarioRun{t: t, sc: sc, status: report.StatusPassed}
	start := time.Now()

	t.Cleanup(func() {
		status := run.status
		if t.Failed() {
			status = report.StatusFailed
		}
		recorder.Add(report.Record{
			Scenario:  name,
			Status:    status,
			Engine:    browser.BrowserType().Name(),
			Elapsed:   time.Since(start),
			DiffPath:  run.diffPath,
			Snapshots: run.snapshots,
		})
	})
	return run
}

// stable waits until the app finished reacting to the last input, honoring
// the scenario's min_stable_ms floor.
func (r *scenarioRun) stable(sess *harness.Session) {
	r.t.Helper()
	err := sess.AwaitStable(harness.StableOptions{
		MinWait: time.Duration(r.sc.MinStableMs) * time.Millisecond,
		Timeout: vals.StableTimeout(),
	})
	require.NoError(r.t, err, "await stable")
}

// snapshot compares the element against its stored baseline with the
// scenario's thresholds. a mismatch fails the test but lets it continue, so
// one run collects all diffs.
func (r *scenarioRun) snapshot(sess *harness.Session, q harness.Query, name string) {
	r.t.Helper()
	r.snapshots++

	require.NoError(r.t, sess.ScrollIntoView(q), "scroll %s into view", name)

	pixelThreshold, maxDiffRatio := r.sc.Thresholds(vals)
	comp := harness.NewComparator(store, sess.Engine(), harness.BaselineMeta{Revision: provInfo.Revision})
	res, err := comp.Compare(sess.Locate(q), name, harness.SnapshotOptions{
		PixelThreshold: pixelThreshold,
		MaxDiffRatio:   maxDiffRatio,
		SkipEngines:    r.sc.SkipEngines,
	})

	var snapErr *harness.SnapshotError
	if errors.As(err, &snapErr) {
		r.diffPath = snapErr.DiffPath
		r.t.Errorf("snapshot %s: %v", name, err)
		return
	}
	require.NoError(r.t, err, "snapshot %s", name)

	if res.Status == harness.StatusBaselineRecorded && r.status == report.StatusPassed {
		r.status = report.StatusBaselineRecorded
	}
	if res.Status == harness.StatusSkipped && r.status == report.StatusPassed {
		r.status = report.StatusSkipped
	}
}

// expectText asserts the first match of q settles on exactly the given text.
func expectText(t *testing.T, sess *harness.Session, q harness.Query, want string) {
	t.Helper()
	require.NoError(t, sess.ExpectText(q, want, suiteRetry))
}

// expectCount asserts the number of matches of q settles on want.
func expectCount(t *testing.T, sess *harness.Session, q harness.Query, want int) {
	t.Helper()
	require.NoError(t, sess.ExpectCount(q, want, suiteRetry))
}

// TestSmoke verifies the server is up and the index page lists the widget pages.
func TestSmoke(t *testing.T) {
	sess := newSession(t, "/", harness.SessionOptions{})
	require.NoError(t, sess.ExpectVisible(harness.TestID("app"), suiteRetry))
}
