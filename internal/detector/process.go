package detector

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// ProcessSource runs an external hand tracker and reads JSON-lines frames
// from its stdout. The tracker owns the camera; this side only sees landmarks.
type ProcessSource struct {
	config  Config
	name    string
	args    []string
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stream  *StreamSource
	mu      sync.Mutex
	started bool
}

// NewProcessSource creates a source for the given tracker command.
// The process is started lazily on the first call to Next.
func NewProcessSource(config Config, name string, args ...string) (*ProcessSource, error) {
	if name == "" {
		return nil, fmt.Errorf("tracker command is empty")
	}

	return &ProcessSource{
		config: config,
		name:   name,
		args:   args,
	}, nil
}

// Next returns the next frame emitted by the tracker.
func (p *ProcessSource) Next(ctx context.Context) (Frame, error) {
	p.mu.Lock()
	if err := p.ensureStarted(ctx); err != nil {
		p.mu.Unlock()
		return Frame{}, err
	}
	stream := p.stream
	p.mu.Unlock()

	return stream.Next(ctx)
}

// Close shuts down the tracker process.
func (p *ProcessSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdown()
}

func (p *ProcessSource) ensureStarted(ctx context.Context) error {
	if p.started {
		return nil
	}

	p.cmd = exec.CommandContext(ctx, p.name, p.args...)
	p.cmd.Dir = filepath.Dir(p.name)

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Tracker diagnostics go straight to our stderr
	p.cmd.Stderr = os.Stderr

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start tracker: %w", err)
	}

	p.stdout = stdout
	p.stream = NewStreamSource(stdout, p.config)
	p.started = true

	return nil
}

func (p *ProcessSource) shutdown() error {
	if !p.started {
		return nil
	}

	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}

	err := p.cmd.Wait()
	p.started = false
	p.cmd = nil
	p.stdout = nil
	p.stream = nil

	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			// Killed on purpose
			return nil
		}
		return err
	}
	return nil
}
