// Package main provides uiprobe - demo widget app server and run-report
// tooling for the browser verification harness.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/uiprobe/pkg/config"
	"github.com/umputun/uiprobe/pkg/notify"
	"github.com/umputun/uiprobe/pkg/report"
	"github.com/umputun/uiprobe/pkg/webapp"
)

// opts holds all command-line options.
type opts struct {
	Serve          bool   `short:"s" long:"serve" description:"start the demo widget app server"`
	Port           int    `short:"p" long:"port" description:"app server port (overrides config)"`
	ComputeDelayMs int    `long:"compute-delay" default:"-1" description:"simulated compute time per widget event, ms (overrides config)"`
	StepDelayMs    int    `long:"step-delay" default:"-1" description:"per-step delay of the unmount rerun, ms (overrides config)"`
	Fixtures       string `short:"f" long:"fixtures" description:"widget fixtures YAML file (default embedded)"`
	Watch          bool   `short:"w" long:"watch" description:"reload fixtures on file change"`

	Tail bool   `short:"t" long:"tail" description:"stream run events from a running app server"`
	URL  string `long:"url" default:"http://localhost:8080" description:"app server base url for --tail"`

	Report string `short:"r" long:"report" description:"print summary of a run log file"`
	Notify bool   `long:"notify" description:"send configured notifications for the reported run log"`

	NoColor bool `long:"no-color" description:"disable color output"`
	Debug   bool `long:"dbg" description:"enable debug logging"`
	Version bool `short:"v" long:"version" description:"print version and exit"`
}

var revision = "unknown"

func main() {
	fmt.Printf("uiprobe %s\n", revision)

	var o opts
	parser := flags.NewParser(&o, flags.Default)
	parser.Usage = "[OPTIONS]"

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if o.Version {
		os.Exit(0)
	}

	// setup context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, o); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts) error {
	cfg, err := config.Load("") // empty string uses default location
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	color.NoColor = o.NoColor
	if o.Debug {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}

	switch {
	case o.Report != "":
		return runReport(ctx, o, cfg)
	case o.Tail:
		return runTail(ctx, o)
	case o.Serve:
		return runServe(ctx, o, cfg)
	default:
		return errors.New("nothing to do, use --serve, --tail or --report")
	}
}

// runServe starts the demo app server, config values overridable by flags.
func runServe(ctx context.Context, o opts, cfg *config.Config) error {
	srvCfg := serverConfig(o, cfg.Values)

	fixtures := "embedded defaults"
	if srvCfg.FixturesFile != "" {
		fixtures = srvCfg.FixturesFile
	}
	color.New(color.FgCyan).Printf("app server: http://localhost:%d (fixtures: %s)\n", srvCfg.Port, fixtures)

	srv, err := webapp.NewServer(srvCfg)
	if err != nil {
		return fmt.Errorf("create app server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("app server: %w", err)
	}
	return nil
}

// serverConfig merges config values with explicit flag overrides.
func serverConfig(o opts, v config.Values) webapp.ServerConfig {
	res := webapp.ServerConfig{
		Port:         v.ServerPort,
		ComputeDelay: v.ComputeDelay(),
		StepDelay:    v.StepDelay(),
		FixturesFile: v.FixturesFile,
		Watch:        o.Watch,
	}
	if o.Port != 0 {
		res.Port = o.Port
	}
	if o.ComputeDelayMs >= 0 {
		res.ComputeDelay = time.Duration(o.ComputeDelayMs) * time.Millisecond
	}
	if o.StepDelayMs >= 0 {
		res.StepDelay = time.Duration(o.StepDelayMs) * time.Millisecond
	}
	if o.Fixtures != "" {
		res.FixturesFile = o.Fixtures
	}
	return res
}

// runTail streams SSE events from a running app server to stdout.
func runTail(ctx context.Context, o opts) error {
	evColor := color.New(color.FgYellow)
	err := webapp.StreamEvents(ctx, strings.TrimRight(o.URL, "/"), func(eventType, data string) {
		evColor.Printf("%s ", eventType)
		fmt.Println(data)
	})
	if err != nil {
		return fmt.Errorf("tail %s: %w", o.URL, err)
	}
	return nil
}

// runReport prints a run log summary and optionally sends notifications.
func runReport(ctx context.Context, o opts, cfg *config.Config) error {
	runLog, err := report.LoadRunLog(o.Report)
	if err != nil {
		return fmt.Errorf("load run log: %w", err)
	}
	if err := report.Print(os.Stdout, runLog, o.NoColor); err != nil {
		return fmt.Errorf("print report: %w", err)
	}

	if o.Notify {
		if err := sendNotifications(ctx, cfg.Values.NotifyDestinations, runLog); err != nil {
			// notification failures are warnings, the report itself succeeded
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}
	return nil
}

// sendNotifications delivers the run outcome to the configured destinations.
// no destinations configured is not an error, it just does nothing.
func sendNotifications(ctx context.Context, destinations []string, runLog *report.RunLog) error {
	svc, err := notify.New(notify.Params{
		Destinations: destinations,
		OnFailure:    true,
		OnBaseline:   true,
	}, stdLogger{})
	if err != nil {
		return fmt.Errorf("notifications: %w", err)
	}
	svc.Send(ctx, resultFromLog(runLog))
	return nil
}

// resultFromLog converts a run log into the notification payload.
func resultFromLog(runLog *report.RunLog) notify.Result {
	counts := runLog.Counts()
	res := notify.Result{
		Status:    "passed",
		Suite:     "e2e",
		Scenarios: len(runLog.Records),
		Failed:    counts[report.StatusFailed],
		Baselines: counts[report.StatusBaselineRecorded],
		Duration:  runLog.FinishedAt.Sub(runLog.StartedAt).Round(time.Second).String(),
	}
	switch {
	case runLog.Failed():
		res.Status = "failure"
	case res.Baselines > 0:
		res.Status = "baseline"
	}
	for _, rec := range runLog.Records {
		if res.Engine == "" {
			res.Engine = rec.Engine
		}
		if rec.DiffPath != "" {
			res.DiffPaths = append(res.DiffPaths, rec.DiffPath)
		}
	}
	return res
}

// stdLogger adapts the standard logger to the notify logger interface.
type stdLogger struct{}

func (stdLogger) Print(format string, args ...any) { log.Printf(format, args...) }
