package harness

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"gopkg.in/yaml.v3"
)

// snapshot comparison defaults. scenarios with known platform rendering
// jitter widen these via the scenario manifest.
const (
	DefaultPixelThreshold = 0.1 // per-pixel color distance tolerance, 0..1
	DefaultMaxDiffRatio   = 0.0 // fraction of pixels allowed to differ

	// baselineLockTimeout bounds waiting for a concurrent run recording the
	// same baseline key.
	baselineLockTimeout = 10 * time.Second
)

// Capturer captures the current rendered pixels of an element.
// playwright.Locator satisfies it.
type Capturer interface {
	Screenshot(options ...playwright.LocatorScreenshotOptions) ([]byte, error)
}

// Region is a crop applied to the captured image, in pixels relative to the
// captured element's top-left. used to compare only part of a composite
// widget, e.g. the canvas portion of a chart.
type Region struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SnapshotOptions tunes one comparison.
type SnapshotOptions struct {
	// PixelThreshold is the per-pixel color distance above which a pixel
	// counts as different. zero means the package default.
	PixelThreshold float64
	// MaxDiffRatio is the fraction of differing pixels tolerated before the
	// comparison fails. negative means the package default (strict).
	MaxDiffRatio float64
	// Clip restricts the comparison to a sub-region of the capture.
	Clip *Region
	// SkipEngines lists browser engines with unfixable rendering
	// nondeterminism; the comparison reports StatusSkipped on them.
	SkipEngines []string
}

// SnapshotStatus classifies a comparison outcome that is not a failure.
type SnapshotStatus string

// comparison outcomes.
const (
	StatusMatched SnapshotStatus = "matched"
	// StatusBaselineRecorded marks a first run: the baseline was created and
	// the run must be flagged, not silently passed, so an accidental baseline
	// cannot mask a regression.
	StatusBaselineRecorded SnapshotStatus = "baseline-recorded"
	StatusSkipped          SnapshotStatus = "skipped"
)

// SnapshotResult describes a completed comparison.
type SnapshotResult struct {
	Status     SnapshotStatus
	Name       string
	DiffPixels int
	Total      int
}

// BaselineMeta is the provenance sidecar written next to a newly recorded
// baseline image.
type BaselineMeta struct {
	RecordedAt time.Time `yaml:"recorded_at"`
	Engine     string    `yaml:"engine"`
	Revision   string    `yaml:"revision,omitempty"`
	Width      int       `yaml:"width"`
	Height     int       `yaml:"height"`
}

// SnapshotStore holds baseline images, one per scenario name, plus generated
// diff images for failed comparisons. the store is read-mostly and shared
// across parallel runs; new-baseline writes are guarded by per-key lock files.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore creates the store rooted at dir, creating it if needed.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &SnapshotStore{dir: dir}, nil
}

// BaselinePath returns the baseline image path for a scenario name.
func (st *SnapshotStore) BaselinePath(name string) string {
	return filepath.Join(st.dir, sanitizeKey(name)+".png")
}

// DiffPath returns the generated diff image path for a scenario name.
func (st *SnapshotStore) DiffPath(name string) string {
	return filepath.Join(st.dir, sanitizeKey(name)+".diff.png")
}

// MetaPath returns the provenance sidecar path for a scenario name.
func (st *SnapshotStore) MetaPath(name string) string {
	return filepath.Join(st.dir, sanitizeKey(name)+".yml")
}

// lock acquires the per-key write lock via an O_EXCL lock file. returns an
// unlock func. waiting is bounded: a stale lock from a crashed run should not
// wedge the suite forever.
func (st *SnapshotStore) lock(name string) (func(), error) {
	lockPath := filepath.Join(st.dir, sanitizeKey(name)+".lock")
	deadline := time.Now().Add(baselineLockTimeout)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) //nolint:gosec // path derived from sanitized key
		if err == nil {
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock %s: %w", lockPath, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("baseline %q locked by another run for over %s", name, baselineLockTimeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// sanitizeKey makes a scenario name safe as a filename component.
func sanitizeKey(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_")
	return r.Replace(name)
}

// Comparator captures element pixels and diffs them against stored baselines.
type Comparator struct {
	store  *SnapshotStore
	engine string       // browser engine of the session being compared
	meta   BaselineMeta // template for provenance sidecars (revision etc.)
}

// NewComparator creates a comparator for the given store and browser engine.
// meta seeds the provenance sidecar written when a baseline is recorded.
func NewComparator(store *SnapshotStore, engine string, meta BaselineMeta) *Comparator {
	meta.Engine = engine
	return &Comparator{store: store, engine: engine, meta: meta}
}

// Compare captures cap and diffs it against the baseline stored under name.
//
// first-run policy: a missing baseline is recorded and reported as
// StatusBaselineRecorded, not as a pass. on mismatch the error is a
// SnapshotError (wrapping ErrSnapshotMismatch) and a diff image is written
// next to the baseline. baselines are never mutated by a passing run.
func (c *Comparator) Compare(cap Capturer, name string, opts SnapshotOptions) (SnapshotResult, error) {
	if slices.Contains(opts.SkipEngines, c.engine) {
		return SnapshotResult{Status: StatusSkipped, Name: name}, nil
	}

	data, err := cap.Screenshot(playwright.LocatorScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
	if err != nil {
		return SnapshotResult{}, fmt.Errorf("capture %q: %w", name, err)
	}

	actual, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return SnapshotResult{}, fmt.Errorf("decode capture %q: %w", name, err)
	}
	if opts.Clip != nil {
		actual, err = cropImage(actual, *opts.Clip)
		if err != nil {
			return SnapshotResult{}, fmt.Errorf("crop capture %q: %w", name, err)
		}
	}

	return c.CompareImage(actual, name, opts)
}

// CompareImage diffs an already captured image against the stored baseline.
// split out from Compare so comparisons are testable without a browser.
func (c *Comparator) CompareImage(actual image.Image, name string, opts SnapshotOptions) (SnapshotResult, error) {
	baselinePath := c.store.BaselinePath(name)
	baseline, err := readPNG(baselinePath)
	switch {
	case os.IsNotExist(err):
		if recErr := c.recordBaseline(actual, name); recErr != nil {
			return SnapshotResult{}, recErr
		}
		return SnapshotResult{Status: StatusBaselineRecorded, Name: name}, nil
	case err != nil:
		return SnapshotResult{}, fmt.Errorf("read baseline %q: %w", name, err)
	}

	threshold := opts.PixelThreshold
	if threshold <= 0 {
		threshold = DefaultPixelThreshold
	}
	maxRatio := opts.MaxDiffRatio
	if maxRatio < 0 {
		maxRatio = DefaultMaxDiffRatio
	}

	bb, ab := baseline.Bounds(), actual.Bounds()
	if bb.Dx() != ab.Dx() || bb.Dy() != ab.Dy() {
		// dimension change is always a mismatch; keep the capture for triage
		diffPath := c.store.DiffPath(name)
		_ = writePNG(diffPath, actual)
		total := bb.Dx() * bb.Dy()
		return SnapshotResult{}, &SnapshotError{Name: name, DiffPixels: total, Total: total, DiffPath: diffPath}
	}

	diffPixels, diffImg := diffImages(baseline, actual, threshold)
	total := bb.Dx() * bb.Dy()
	if total > 0 && float64(diffPixels)/float64(total) > maxRatio {
		diffPath := c.store.DiffPath(name)
		if werr := writePNG(diffPath, diffImg); werr != nil {
			diffPath = ""
		}
		return SnapshotResult{}, &SnapshotError{Name: name, DiffPixels: diffPixels, Total: total, DiffPath: diffPath}
	}

	return SnapshotResult{Status: StatusMatched, Name: name, DiffPixels: diffPixels, Total: total}, nil
}

// recordBaseline writes a new baseline image plus its provenance sidecar
// under the per-key lock. if a concurrent run recorded the baseline first,
// that one wins and this write is dropped.
func (c *Comparator) recordBaseline(img image.Image, name string) error {
	unlock, err := c.store.lock(name)
	if err != nil {
		return err
	}
	defer unlock()

	baselinePath := c.store.BaselinePath(name)
	if _, statErr := os.Stat(baselinePath); statErr == nil {
		return nil // lost the race, keep the existing baseline
	}

	if err := writePNG(baselinePath, img); err != nil {
		return fmt.Errorf("record baseline %q: %w", name, err)
	}

	meta := c.meta
	meta.RecordedAt = time.Now().UTC()
	meta.Width = img.Bounds().Dx()
	meta.Height = img.Bounds().Dy()
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal baseline meta %q: %w", name, err)
	}
	if err := os.WriteFile(c.store.MetaPath(name), data, 0o600); err != nil {
		return fmt.Errorf("write baseline meta %q: %w", name, err)
	}
	return nil
}

// diffImages counts pixels whose normalized color distance exceeds threshold
// and renders a diff image: unchanged pixels dimmed to gray, changed ones red.
func diffImages(baseline, actual image.Image, threshold float64) (int, image.Image) {
	bounds := baseline.Bounds()
	diff := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	count := 0

	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			bp := baseline.At(bounds.Min.X+x, bounds.Min.Y+y)
			ap := actual.At(actual.Bounds().Min.X+x, actual.Bounds().Min.Y+y)
			if pixelDistance(bp, ap) > threshold {
				count++
				diff.Set(x, y, color.RGBA{R: 255, A: 255})
				continue
			}
			gray := color.GrayModel.Convert(bp).(color.Gray)
			// dim the unchanged background so differences stand out
			diff.Set(x, y, color.RGBA{R: gray.Y / 2, G: gray.Y / 2, B: gray.Y / 2, A: 255})
		}
	}
	return count, diff
}

// pixelDistance returns the largest per-channel difference normalized to 0..1.
func pixelDistance(a, b color.Color) float64 {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	maxDelta := channelDelta(ar, br)
	if d := channelDelta(ag, bg); d > maxDelta {
		maxDelta = d
	}
	if d := channelDelta(ab, bb); d > maxDelta {
		maxDelta = d
	}
	if d := channelDelta(aa, ba); d > maxDelta {
		maxDelta = d
	}
	return float64(maxDelta) / 0xffff
}

func channelDelta(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

// cropImage extracts the region from img. the region must lie within bounds.
func cropImage(img image.Image, r Region) (image.Image, error) {
	bounds := img.Bounds()
	rect := image.Rect(bounds.Min.X+r.X, bounds.Min.Y+r.Y, bounds.Min.X+r.X+r.Width, bounds.Min.Y+r.Y+r.Height)
	if !rect.In(bounds) {
		return nil, fmt.Errorf("clip %dx%d+%d+%d outside capture %dx%d", r.Width, r.Height, r.X, r.Y, bounds.Dx(), bounds.Dy())
	}

	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect), nil
	}

	out := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			out.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return out, nil
}

func readPNG(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // store paths are derived from sanitized keys
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
