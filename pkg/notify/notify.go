// Package notify sends best-effort notifications about visual regressions
// found by a verification run.
package notify

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"os"
	"strings"
	"time"

	ntfy "github.com/go-pkgz/notify"
)

// Params holds configuration for creating a notification Service.
type Params struct {
	// Destinations are channel URLs:
	//   slack://token@channel
	//   telegram://token@chat_id
	//   https://host/hook (plain webhook)
	//   script:///path/to/script (receives the result as JSON on stdin)
	Destinations []string
	OnFailure    bool // notify on failed runs
	OnBaseline   bool // notify when new baselines were recorded
	TimeoutMs    int
}

// Service orchestrates sending notifications through configured channels.
type Service struct {
	channels   []channel
	custom     *customChannel
	onFailure  bool
	onBaseline bool
	timeoutMs  int
	hostname   string // resolved once at creation via os.Hostname()
	log        logger
}

// channel pairs a notifier with its destination URI.
type channel struct {
	notifier   ntfy.Notifier
	dest       string
	htmlEscape bool // true for channels that use HTML parse mode (e.g., telegram)
}

// logger interface for dependency injection.
type logger interface {
	Print(format string, args ...any)
}

// Result holds run outcome data for notifications.
type Result struct {
	Status    string   `json:"status"` // "failure" or "baseline"
	Suite     string   `json:"suite"`
	Engine    string   `json:"engine,omitempty"`
	Scenarios int      `json:"scenarios"`
	Failed    int      `json:"failed"`
	Baselines int      `json:"baselines"`
	Duration  string   `json:"duration"`
	DiffPaths []string `json:"diff_paths,omitempty"`
}

// New creates a notification Service from the given Params.
// returns nil, nil if no destinations are configured, enabling callers to
// skip nil checks via nil-safe Send.
func New(p Params, log logger) (*Service, error) {
	if len(p.Destinations) == 0 {
		return nil, nil //nolint:nilnil // nil,nil signals "not configured" — callers use nil-safe Send
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	svc := &Service{
		onFailure:  p.OnFailure,
		onBaseline: p.OnBaseline,
		timeoutMs:  p.TimeoutMs,
		hostname:   hostname,
		log:        log,
	}
	if svc.timeoutMs <= 0 {
		svc.timeoutMs = 10000
	}

	for _, dest := range p.Destinations {
		ch, custom, chErr := makeChannel(strings.TrimSpace(dest))
		if chErr != nil {
			// channel init may make live API calls (telegram verifies the bot
			// token); skip the channel instead of blocking startup —
			// notifications are best-effort.
			log.Print("[WARN] notification channel disabled: %v", chErr)
			continue
		}
		if custom != nil {
			svc.custom = custom
			continue
		}
		svc.channels = append(svc.channels, ch)
	}

	if len(svc.channels) == 0 && svc.custom == nil {
		log.Print("[WARN] all notification channels were disabled due to initialization errors")
	}

	return svc, nil
}

// Send sends a notification for the given result. nil-safe on receiver.
// errors are logged but never returned (best-effort).
func (s *Service) Send(ctx context.Context, r Result) {
	if s == nil {
		return
	}

	if r.Status == "failure" && !s.onFailure {
		return
	}
	if r.Status == "baseline" && !s.onBaseline {
		return
	}

	msg := s.formatMessage(r)

	timeout := time.Duration(s.timeoutMs) * time.Millisecond
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, ch := range s.channels {
		text := msg
		if ch.htmlEscape {
			text = html.EscapeString(msg)
		}
		if err := ch.notifier.Send(sendCtx, ch.dest, text); err != nil {
			s.log.Print("[WARN] notification failed for %s: %v", ch.notifier, err)
		}
	}

	if s.custom != nil {
		if err := s.custom.send(sendCtx, r); err != nil {
			s.log.Print("[WARN] custom notification failed: %v", err)
		}
	}
}

// formatMessage creates a plain text notification message from the result.
func (s *Service) formatMessage(r Result) string {
	var b strings.Builder

	switch r.Status {
	case "failure":
		fmt.Fprintf(&b, "uiprobe found visual regressions on %s\n", s.hostname)
	case "baseline":
		fmt.Fprintf(&b, "uiprobe recorded new baselines on %s\n", s.hostname)
	default:
		fmt.Fprintf(&b, "uiprobe run finished on %s\n", s.hostname)
	}

	b.WriteString("\n")

	if r.Suite != "" {
		fmt.Fprintf(&b, "suite:     %s\n", r.Suite)
	}
	if r.Engine != "" {
		fmt.Fprintf(&b, "engine:    %s\n", r.Engine)
	}
	fmt.Fprintf(&b, "scenarios: %d (%d failed, %d baselines)\n", r.Scenarios, r.Failed, r.Baselines)
	if r.Duration != "" {
		fmt.Fprintf(&b, "duration:  %s\n", r.Duration)
	}
	for _, p := range r.DiffPaths {
		fmt.Fprintf(&b, "diff:      %s\n", p)
	}

	return b.String()
}

// telegramMaker creates a telegram notifier. overridden in tests to avoid
// live API calls.
var telegramMaker = func(token string) (ntfy.Notifier, error) {
	tg, err := ntfy.NewTelegram(ntfy.TelegramParams{Token: token})
	if err != nil {
		return nil, err
	}
	return tg, nil
}

// makeChannel builds a channel from a destination URL. script destinations
// return a custom channel instead.
func makeChannel(dest string) (channel, *customChannel, error) {
	u, err := url.Parse(dest)
	if err != nil {
		return channel{}, nil, fmt.Errorf("parse destination %q: %w", dest, err)
	}

	switch u.Scheme {
	case "slack":
		token := u.User.Username()
		if token == "" || u.Host == "" {
			return channel{}, nil, fmt.Errorf("slack destination needs slack://token@channel, got %q", dest)
		}
		return channel{notifier: ntfy.NewSlack(token), dest: "slack:" + u.Host}, nil, nil

	case "telegram":
		token := u.User.Username()
		if token == "" || u.Host == "" {
			return channel{}, nil, fmt.Errorf("telegram destination needs telegram://token@chat_id, got %q", dest)
		}
		tg, tgErr := telegramMaker(token)
		if tgErr != nil {
			// redact the token from the error to avoid leaking it in logs
			return channel{}, nil, fmt.Errorf("create telegram notifier: %s",
				strings.ReplaceAll(tgErr.Error(), token, "[REDACTED]"))
		}
		dest := fmt.Sprintf("telegram:%s?parseMode=HTML", u.Host)
		return channel{notifier: tg, dest: dest, htmlEscape: true}, nil, nil

	case "http", "https":
		return channel{notifier: ntfy.NewWebhook(ntfy.WebhookParams{}), dest: dest}, nil, nil

	case "script":
		if u.Path == "" {
			return channel{}, nil, fmt.Errorf("script destination needs script:///path, got %q", dest)
		}
		return channel{}, newCustomChannel(u.Path), nil

	default:
		return channel{}, nil, fmt.Errorf("unknown notification destination scheme: %q", u.Scheme)
	}
}
