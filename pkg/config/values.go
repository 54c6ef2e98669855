package config

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// Values holds scalar configuration values.
// Fields ending in *Set track whether that field was explicitly set in
// config. This distinguishes explicit zero values from "not set", so a local
// config can override the global one with zeros.
type Values struct {
	// harness section
	RetryTimeoutMs     int
	RetryTimeoutMsSet  bool
	RetryIntervalMs    int
	RetryIntervalMsSet bool
	StableTimeoutMs    int
	StableTimeoutMsSet bool
	PixelThreshold     float64
	PixelThresholdSet  bool
	MaxDiffRatio       float64
	MaxDiffRatioSet    bool
	SnapshotDir        string
	Headless           bool
	HeadlessSet        bool

	// server section
	ServerPort        int
	ServerPortSet     bool
	ComputeDelayMs    int
	ComputeDelayMsSet bool
	StepDelayMs       int
	StepDelayMsSet    bool
	FixturesFile      string

	// notify section
	NotifyDestinations []string // go-pkgz/notify destination URLs
}

// duration accessors for the millisecond settings.

// RetryTimeout returns the assertion retry timeout.
func (v *Values) RetryTimeout() time.Duration {
	return time.Duration(v.RetryTimeoutMs) * time.Millisecond
}

// RetryInterval returns the assertion poll interval.
func (v *Values) RetryInterval() time.Duration {
	return time.Duration(v.RetryIntervalMs) * time.Millisecond
}

// StableTimeout returns the run stabilization timeout.
func (v *Values) StableTimeout() time.Duration {
	return time.Duration(v.StableTimeoutMs) * time.Millisecond
}

// ComputeDelay returns the app server's simulated compute time per event.
func (v *Values) ComputeDelay() time.Duration {
	return time.Duration(v.ComputeDelayMs) * time.Millisecond
}

// StepDelay returns the app server's per-step delay of the unmount rerun.
func (v *Values) StepDelay() time.Duration { return time.Duration(v.StepDelayMs) * time.Millisecond }

// valuesLoader loads Values with embedded filesystem fallback.
type valuesLoader struct {
	embedFS embed.FS
}

// newValuesLoader creates a new valuesLoader with the given embedded filesystem.
func newValuesLoader(embedFS embed.FS) *valuesLoader {
	return &valuesLoader{embedFS: embedFS}
}

// Load loads values from config files with fallback chain: local → global → embedded.
// localConfigPath and globalConfigPath are full paths to config files (not directories).
func (vl *valuesLoader) Load(localConfigPath, globalConfigPath string) (Values, error) {
	// start with embedded defaults
	embedded, err := vl.parseValuesFromEmbedded()
	if err != nil {
		return Values{}, fmt.Errorf("parse embedded defaults: %w", err)
	}

	// parse global config if exists
	global, err := vl.parseValuesFromFile(globalConfigPath)
	if err != nil {
		return Values{}, fmt.Errorf("parse global config: %w", err)
	}

	// parse local config if exists
	local, err := vl.parseValuesFromFile(localConfigPath)
	if err != nil {
		return Values{}, fmt.Errorf("parse local config: %w", err)
	}

	// merge: embedded → global → local (local wins)
	result := embedded
	result.mergeFrom(&global)
	result.mergeFrom(&local)

	return result, nil
}

// parseValuesFromFile reads a config file and parses it into Values.
// returns empty Values (not error) if file doesn't exist or contains only
// comments/whitespace, enabling fallback to embedded defaults for files that
// are commented templates.
func (vl *valuesLoader) parseValuesFromFile(path string) (Values, error) {
	if path == "" {
		return Values{}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return Values{}, nil
		}
		return Values{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if strings.TrimSpace(stripComments(string(data))) == "" {
		return Values{}, nil
	}

	return vl.parseValuesFromBytes(data)
}

// parseValuesFromEmbedded parses values from the embedded defaults/config file.
func (vl *valuesLoader) parseValuesFromEmbedded() (Values, error) {
	data, err := vl.embedFS.ReadFile("defaults/config")
	if err != nil {
		return Values{}, fmt.Errorf("read embedded defaults: %w", err)
	}
	return vl.parseValuesFromBytes(data)
}

// parseValuesFromBytes parses configuration from a byte slice into Values.
func (vl *valuesLoader) parseValuesFromBytes(data []byte) (Values, error) {
	// ignoreInlineComment: true prevents # from being treated as inline comment marker
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return Values{}, fmt.Errorf("parse config: %w", err)
	}

	var values Values

	harness := cfg.Section("harness")
	if err := readMs(harness, "retry_timeout_ms", &values.RetryTimeoutMs, &values.RetryTimeoutMsSet); err != nil {
		return Values{}, err
	}
	if err := readMs(harness, "retry_interval_ms", &values.RetryIntervalMs, &values.RetryIntervalMsSet); err != nil {
		return Values{}, err
	}
	if err := readMs(harness, "stable_timeout_ms", &values.StableTimeoutMs, &values.StableTimeoutMsSet); err != nil {
		return Values{}, err
	}
	if err := readRatio(harness, "pixel_threshold", &values.PixelThreshold, &values.PixelThresholdSet); err != nil {
		return Values{}, err
	}
	if err := readRatio(harness, "max_diff_ratio", &values.MaxDiffRatio, &values.MaxDiffRatioSet); err != nil {
		return Values{}, err
	}
	if key, err := harness.GetKey("snapshot_dir"); err == nil {
		values.SnapshotDir = key.String()
	}
	if key, err := harness.GetKey("headless"); err == nil {
		val, boolErr := key.Bool()
		if boolErr != nil {
			return Values{}, fmt.Errorf("invalid headless: %w", boolErr)
		}
		values.Headless = val
		values.HeadlessSet = true
	}

	server := cfg.Section("server")
	if key, err := server.GetKey("port"); err == nil {
		val, intErr := key.Int()
		if intErr != nil {
			return Values{}, fmt.Errorf("invalid port: %w", intErr)
		}
		if val < 0 || val > 65535 {
			return Values{}, fmt.Errorf("invalid port: must be 0..65535, got %d", val)
		}
		values.ServerPort = val
		values.ServerPortSet = true
	}
	if err := readMs(server, "compute_delay_ms", &values.ComputeDelayMs, &values.ComputeDelayMsSet); err != nil {
		return Values{}, err
	}
	if err := readMs(server, "step_delay_ms", &values.StepDelayMs, &values.StepDelayMsSet); err != nil {
		return Values{}, err
	}
	if key, err := server.GetKey("fixtures_file"); err == nil {
		values.FixturesFile = key.String()
	}

	// notification destinations (comma-separated URLs)
	if key, err := cfg.Section("notify").GetKey("destinations"); err == nil {
		val := strings.TrimSpace(key.String())
		if val != "" {
			for p := range strings.SplitSeq(val, ",") {
				if t := strings.TrimSpace(p); t != "" {
					values.NotifyDestinations = append(values.NotifyDestinations, t)
				}
			}
		}
	}

	return values, nil
}

// readMs reads a non-negative millisecond value.
func readMs(section *ini.Section, name string, dst *int, set *bool) error {
	key, err := section.GetKey(name)
	if err != nil {
		return nil // not set
	}
	val, err := key.Int()
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if val < 0 {
		return fmt.Errorf("invalid %s: must be non-negative, got %d", name, val)
	}
	*dst = val
	*set = true
	return nil
}

// readRatio reads a float in [0, 1].
func readRatio(section *ini.Section, name string, dst *float64, set *bool) error {
	key, err := section.GetKey(name)
	if err != nil {
		return nil // not set
	}
	val, err := key.Float64()
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if val < 0 || val > 1 {
		return fmt.Errorf("invalid %s: must be in [0, 1], got %g", name, val)
	}
	*dst = val
	*set = true
	return nil
}

// mergeFrom merges explicitly set values from src into dst.
func (dst *Values) mergeFrom(src *Values) {
	if src.RetryTimeoutMsSet {
		dst.RetryTimeoutMs, dst.RetryTimeoutMsSet = src.RetryTimeoutMs, true
	}
	if src.RetryIntervalMsSet {
		dst.RetryIntervalMs, dst.RetryIntervalMsSet = src.RetryIntervalMs, true
	}
	if src.StableTimeoutMsSet {
		dst.StableTimeoutMs, dst.StableTimeoutMsSet = src.StableTimeoutMs, true
	}
	if src.PixelThresholdSet {
		dst.PixelThreshold, dst.PixelThresholdSet = src.PixelThreshold, true
	}
	if src.MaxDiffRatioSet {
		dst.MaxDiffRatio, dst.MaxDiffRatioSet = src.MaxDiffRatio, true
	}
	if src.SnapshotDir != "" {
		dst.SnapshotDir = src.SnapshotDir
	}
	if src.HeadlessSet {
		dst.Headless, dst.HeadlessSet = src.Headless, true
	}
	if src.ServerPortSet {
		dst.ServerPort, dst.ServerPortSet = src.ServerPort, true
	}
	if src.ComputeDelayMsSet {
		dst.ComputeDelayMs, dst.ComputeDelayMsSet = src.ComputeDelayMs, true
	}
	if src.StepDelayMsSet {
		dst.StepDelayMs, dst.StepDelayMsSet = src.StepDelayMs, true
	}
	if src.FixturesFile != "" {
		dst.FixturesFile = src.FixturesFile
	}
	if len(src.NotifyDestinations) > 0 {
		dst.NotifyDestinations = src.NotifyDestinations
	}
}

// stripComments removes lines starting with # (comment lines) from content.
func stripComments(content string) string {
	var sb strings.Builder
	for line := range strings.Lines(content) {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		sb.WriteString(line)
	}
	return sb.String()
}
