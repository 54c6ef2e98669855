// Package webapp is the demo application the harness drives: widget pages
// rendered server-side, interactions posted to an event endpoint and run
// status streamed back over SSE.
package webapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tmaxmax/go-sse"
)

// sessionCookie carries the browser session id.
const sessionCookie = "uiprobe_session"

// SSE event types streamed to pages.
const (
	EventTypeStatus = "status" // run started / finished
	EventTypeReload = "reload" // fixtures changed, page should reload
)

// StatusPayload is the data of a status event.
type StatusPayload struct {
	State     string    `json:"state"` // running or done
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// ReloadPayload is the data of a reload event.
type ReloadPayload struct {
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher streams page events over SSE. status events go to the session's
// own topic so parallel sessions never see each other's runs; reload events
// go to everyone.
type Publisher struct {
	srv *sse.Server
}

// NewPublisher creates the SSE endpoint. each connection subscribes to the
// shared topic plus its own session topic taken from the session cookie.
func NewPublisher() *Publisher {
	srv := &sse.Server{
		OnSession: func(s *sse.Session) (sse.Subscription, bool) {
			topics := []string{sse.DefaultTopic}
			if c, err := s.Req.Cookie(sessionCookie); err == nil && c.Value != "" {
				topics = append(topics, c.Value)
			}
			return sse.Subscription{
				Client:      s,
				LastEventID: s.LastEventID,
				Topics:      topics,
			}, true
		},
	}
	return &Publisher{srv: srv}
}

// Handler returns the SSE http handler.
func (p *Publisher) Handler() http.Handler {
	return p.srv
}

// Status publishes a run status transition to the session's topic.
func (p *Publisher) Status(sessionID, state string, seq int) {
	data, err := json.Marshal(StatusPayload{State: state, Seq: seq, Timestamp: time.Now()})
	if err != nil {
		return // payload is plain values, can't fail
	}
	msg := &sse.Message{Type: sse.Type(EventTypeStatus)}
	msg.AppendData(string(data))
	_ = p.srv.Publish(msg, sessionID)
}

// Reload tells every connected page to reload itself.
func (p *Publisher) Reload(reason string) {
	data, err := json.Marshal(ReloadPayload{Reason: reason, Timestamp: time.Now()})
	if err != nil {
		return
	}
	msg := &sse.Message{Type: sse.Type(EventTypeReload)}
	msg.AppendData(string(data))
	_ = p.srv.Publish(msg, sse.DefaultTopic)
}

// Shutdown closes all SSE connections.
func (p *Publisher) Shutdown(ctx context.Context) error {
	if err := p.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown sse server: %w", err)
	}
	return nil
}
