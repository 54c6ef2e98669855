package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// status line colors.
var (
	passedColor   = color.New(color.FgGreen)
	failedColor   = color.New(color.FgRed)
	baselineColor = color.New(color.FgYellow)
	skippedColor  = color.New(color.FgWhite)
)

var statusColors = map[Status]*color.Color{
	StatusPassed:           passedColor,
	StatusFailed:           failedColor,
	StatusBaselineRecorded: baselineColor,
	StatusSkipped:          skippedColor,
}

// Markdown renders the run log as a markdown summary.
func Markdown(log *RunLog) string {
	var b strings.Builder

	counts := log.Counts()
	b.WriteString("# verification run\n\n")
	fmt.Fprintf(&b, "started %s, took %s\n\n",
		humanize.Time(log.StartedAt), log.FinishedAt.Sub(log.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(&b, "**%d passed**, %d failed, %d baselines recorded, %d skipped\n\n",
		counts[StatusPassed], counts[StatusFailed], counts[StatusBaselineRecorded], counts[StatusSkipped])

	b.WriteString("| scenario | status | elapsed | details |\n")
	b.WriteString("|----------|--------|---------|---------|\n")
	for _, r := range log.Records {
		details := r.Error
		if r.DiffPath != "" {
			details = strings.TrimSpace(details + " diff: " + r.DiffPath)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			r.Scenario, r.Status, r.Elapsed.Round(time.Millisecond), details)
	}
	return b.String()
}

// Print writes the summary to w: rendered with glamour when w is a terminal
// and colors are enabled, plain markdown otherwise. status lines follow with
// per-status colors.
func Print(w io.Writer, log *RunLog, noColor bool) error {
	md := Markdown(log)

	rendered := md
	if !noColor && isTerminal(w) {
		out, err := renderMarkdown(md)
		if err != nil {
			return err
		}
		rendered = out
	}
	if _, err := io.WriteString(w, rendered); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	for _, r := range log.Records {
		c := statusColors[r.Status]
		if c == nil {
			c = skippedColor
		}
		if _, err := c.Fprintf(w, "%-18s %s\n", r.Status, r.Scenario); err != nil {
			return fmt.Errorf("write status line: %w", err)
		}
	}
	return nil
}

// renderMarkdown renders markdown for terminal display with auto-detected
// style and word wrap.
func renderMarkdown(content string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	result, err := renderer.Render(content)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return result, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
