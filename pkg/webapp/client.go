package webapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tmaxmax/go-sse"
)

// StreamEvents subscribes to a running app's SSE endpoint and calls fn for
// every event until the context is canceled. used by the tail command and by
// tests that need to observe run transitions.
func StreamEvents(ctx context.Context, baseURL string, fn func(eventType, data string)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/events", http.NoBody)
	if err != nil {
		return fmt.Errorf("build events request: %w", err)
	}

	conn := sse.NewConnection(req)
	unsubscribe := conn.SubscribeToAll(func(e sse.Event) {
		fn(e.Type, e.Data)
	})
	defer unsubscribe()

	if err := conn.Connect(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return fmt.Errorf("events stream: %w", err)
	}
	return nil
}
