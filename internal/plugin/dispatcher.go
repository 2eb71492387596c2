package plugin

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Runner executes a single plugin request. *Executor implements it.
type Runner interface {
	Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error)
}

// DispatcherConfig holds configuration options for the Dispatcher.
type DispatcherConfig struct {
	// Cooldown is the minimum time between two dispatches of the same sign (default: 1s).
	Cooldown time.Duration

	// QueueSize bounds pending requests; extra requests are dropped (default: 32).
	QueueSize int

	Clock  clock.Clock
	Logger *zap.SugaredLogger
}

// DefaultDispatcherConfig returns a DispatcherConfig with sensible default values.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Cooldown:  time.Second,
		QueueSize: 32,
	}
}

// Dispatcher fans events out to subscribed plugins on a background worker so
// the frame loop never waits on a child process.
type Dispatcher struct {
	manager *Manager
	runner  Runner
	config  DispatcherConfig
	logger  *zap.SugaredLogger

	queue    chan *Request
	lastSent map[string]time.Time
	closed   bool
	mu       sync.Mutex
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Call Start to begin delivering.
func NewDispatcher(manager *Manager, runner Runner, config DispatcherConfig) *Dispatcher {
	if config.QueueSize <= 0 {
		config.QueueSize = 32
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	return &Dispatcher{
		manager:  manager,
		runner:   runner,
		config:   config,
		logger:   config.Logger,
		queue:    make(chan *Request, config.QueueSize),
		lastSent: make(map[string]time.Time),
	}
}

// Start runs the delivery worker until Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for req := range d.queue {
			d.deliver(ctx, req)
		}
	}()
}

// Detection queues a detection event. Repeats of the same sign within the
// cooldown are dropped; it reports whether the event was queued.
func (d *Dispatcher) Detection(sign string, confidence float64, timestamp int64) bool {
	d.mu.Lock()
	now := d.config.Clock.Now()
	if last, ok := d.lastSent[sign]; ok && now.Sub(last) < d.config.Cooldown {
		d.mu.Unlock()
		d.logger.Debugw("detection rate limited", "sign", sign)
		return false
	}
	d.lastSent[sign] = now
	d.mu.Unlock()

	return d.enqueue(&Request{
		Event:      EventDetection,
		Sign:       sign,
		Confidence: confidence,
		Timestamp:  timestamp,
	})
}

// Training queues a training state update. session is the JSON snapshot.
func (d *Dispatcher) Training(session json.RawMessage, timestamp int64) bool {
	return d.enqueue(&Request{
		Event:     EventTraining,
		Timestamp: timestamp,
		Training:  session,
	})
}

func (d *Dispatcher) enqueue(req *Request) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}

	select {
	case d.queue <- req:
		return true
	default:
		d.logger.Warnw("plugin queue full, dropping event", "event", req.Event, "sign", req.Sign)
		return false
	}
}

func (d *Dispatcher) deliver(ctx context.Context, req *Request) {
	for _, p := range d.manager.Subscribers(req.Event) {
		resp, err := d.runner.Execute(ctx, p, req)
		if err != nil {
			d.logger.Warnw("plugin execution failed", "plugin", p.Manifest.Name, "event", req.Event, "error", err)
			continue
		}
		if !resp.Success {
			d.logger.Warnw("plugin reported failure", "plugin", p.Manifest.Name, "event", req.Event, "error", resp.Error)
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}
