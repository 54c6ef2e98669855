package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// customChannel runs a user script for notifications. the full run result
// goes to the script's stdin as JSON; the outcome is also passed as the first
// argument and as UIPROBE_* environment variables so simple handlers can
// dispatch without parsing JSON.
type customChannel struct {
	scriptPath string
}

// newCustomChannel creates a new custom notification channel with the given script path.
func newCustomChannel(scriptPath string) *customChannel {
	return &customChannel{scriptPath: scriptPath}
}

// send invokes the script as `script <status>` with the result JSON on stdin
// and UIPROBE_STATUS, UIPROBE_SUITE, UIPROBE_FAILED, UIPROBE_BASELINES set.
func (c *customChannel) send(ctx context.Context, r Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.scriptPath, r.Status) //nolint:gosec // path comes from user config, not user input
	cmd.Stdin = bytes.NewReader(data)
	cmd.Env = append(os.Environ(),
		"UIPROBE_STATUS="+r.Status,
		"UIPROBE_SUITE="+r.Suite,
		fmt.Sprintf("UIPROBE_FAILED=%d", r.Failed),
		fmt.Sprintf("UIPROBE_BASELINES=%d", r.Baselines),
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err = cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("script %s: %w, stderr: %s", c.scriptPath, err, stderr.String())
		}
		return fmt.Errorf("script %s: %w", c.scriptPath, err)
	}
	return nil
}
