package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultTimeout bounds a single plugin invocation.
const DefaultTimeout = 2 * time.Second

// Executor runs plugin executables with a timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates a new Executor. A non-positive timeout uses DefaultTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		timeout: timeout,
	}
}

// Execute runs plugin with req on stdin and parses its stdout as a Response.
// The manifest's config is attached when req carries none.
func (e *Executor) Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, plugin.Executable)
	cmd.Dir = plugin.Path

	if len(req.Config) == 0 && len(plugin.Manifest.Config) > 0 {
		withConfig := *req
		withConfig.Config = plugin.Manifest.Config
		req = &withConfig
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("plugin %s timed out after %v", plugin.Manifest.Name, e.timeout)
	}

	if err != nil {
		if stderrStr := stderr.String(); stderrStr != "" {
			return nil, fmt.Errorf("plugin %s failed: %w, stderr: %s", plugin.Manifest.Name, err, stderrStr)
		}
		return nil, fmt.Errorf("plugin %s failed: %w", plugin.Manifest.Name, err)
	}

	var response Response
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse plugin response: %w, stdout: %s", err, stdout.String())
	}

	return &response, nil
}
