package gesture

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the phase of a training session.
type State int

const (
	StateIdle State = iota
	StateCountdown
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCountdown:
		return "countdown"
	case StateCapturing:
		return "capturing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateIdle, StateCountdown, StateCapturing} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown training state %q", text)
}

// Session outcomes recorded when a session returns to idle.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
)

// Result describes a session that has returned to idle.
type Result struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Captured   int       `json:"captured"`
	Outcome    string    `json:"outcome"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Session is a point-in-time view of the training controller. ID, Label and
// StartedAt are only set while a session is armed; an idle controller has no
// label.
type Session struct {
	ID        string    `json:"id,omitempty"`
	State     State     `json:"state"`
	Label     string    `json:"label,omitempty"`
	Remaining int       `json:"remaining"`
	Captured  int       `json:"captured"`
	StartedAt time.Time `json:"started_at,omitzero"`

	// Last is the most recently finished session, if any.
	Last *Result `json:"last,omitempty"`
}

// Active reports whether the session is counting down or capturing.
func (s Session) Active() bool {
	return s.State != StateIdle
}

// ExampleSink receives the vectors captured during a session.
type ExampleSink interface {
	AddExample(v FeatureVector, label string)
}

// TrainerConfig holds configuration options for the training controller.
type TrainerConfig struct {
	// CountdownTicks is the number of countdown steps before capture (default: 3).
	CountdownTicks int

	// TickInterval is the time between countdown steps (default: 1s).
	TickInterval time.Duration

	// CaptureDuration is how long frames are captured (default: 3s).
	CaptureDuration time.Duration

	// Clock drives the countdown and capture timers. Defaults to the wall clock.
	Clock clock.Clock

	Logger *zap.SugaredLogger
}

// DefaultTrainerConfig returns a TrainerConfig with sensible default values.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		CountdownTicks:  3,
		TickInterval:    time.Second,
		CaptureDuration: 3 * time.Second,
	}
}

// Trainer runs the hands-free training workflow: a visible countdown, then a
// capture window during which every vector is stored under the armed label.
type Trainer struct {
	config TrainerConfig
	sink   ExampleSink
	clock  clock.Clock
	logger *zap.SugaredLogger

	mu        sync.Mutex
	session   Session
	gen       uint64
	timer     *clock.Timer
	listeners []func(Session)
	pending   []Session

	// notifyMu serializes listener delivery so snapshots arrive in order.
	notifyMu sync.Mutex
}

// NewTrainer creates an idle Trainer that forwards captured vectors to sink.
func NewTrainer(config TrainerConfig, sink ExampleSink) *Trainer {
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}
	if config.CountdownTicks < 0 {
		config.CountdownTicks = 0
	}

	return &Trainer{
		config: config,
		sink:   sink,
		clock:  config.Clock,
		logger: config.Logger,
	}
}

// OnStateChange registers fn to receive a snapshot on every state transition.
// Listeners run after the trainer is unlocked, one snapshot at a time and in
// transition order. They may read the trainer but must not start or cancel
// sessions.
func (t *Trainer) OnStateChange(fn func(Session)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Snapshot returns the current session.
func (t *Trainer) Snapshot() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// deliver hands queued snapshots to the listeners. It runs after every
// transition, once the trainer lock has been released.
func (t *Trainer) deliver() {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	for {
		t.mu.Lock()
		if len(t.pending) == 0 {
			t.mu.Unlock()
			return
		}
		s := t.pending[0]
		t.pending = t.pending[1:]
		listeners := t.listeners
		t.mu.Unlock()

		for _, fn := range listeners {
			fn(s)
		}
	}
}

// Start arms a session for label. It only has an effect from idle; otherwise
// it returns false and leaves the running session alone.
func (t *Trainer) Start(label string) bool {
	defer t.deliver()
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.State != StateIdle || label == "" {
		return false
	}

	t.gen++
	t.session = Session{
		ID:        uuid.NewString(),
		State:     StateCountdown,
		Label:     label,
		Remaining: t.config.CountdownTicks,
		StartedAt: t.clock.Now(),
		Last:      t.session.Last,
	}
	t.logger.Infow("training session started", "session", t.session.ID, "label", label)

	if t.session.Remaining == 0 {
		t.beginCaptureLocked()
		return true
	}

	gen := t.gen
	t.timer = t.clock.AfterFunc(t.config.TickInterval, func() { t.tick(gen) })
	t.notifyLocked()
	return true
}

// Cancel abandons a countdown or capture and returns to idle. Examples
// captured so far are kept.
func (t *Trainer) Cancel() bool {
	defer t.deliver()
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.State == StateIdle {
		return false
	}
	t.finishLocked(OutcomeCancelled)
	return true
}

// Capture forwards v to the sink when a capture window is open and returns
// the label it was stored under.
func (t *Trainer) Capture(v FeatureVector) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.State != StateCapturing {
		return "", false
	}
	t.sink.AddExample(v, t.session.Label)
	t.session.Captured++
	return t.session.Label, true
}

func (t *Trainer) tick(gen uint64) {
	defer t.deliver()
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.session.State != StateCountdown {
		return
	}

	t.session.Remaining--
	if t.session.Remaining > 0 {
		t.timer = t.clock.AfterFunc(t.config.TickInterval, func() { t.tick(gen) })
		t.notifyLocked()
		return
	}
	t.beginCaptureLocked()
}

func (t *Trainer) beginCaptureLocked() {
	gen := t.gen
	t.session.State = StateCapturing
	t.session.Remaining = 0
	t.timer = t.clock.AfterFunc(t.config.CaptureDuration, func() { t.complete(gen) })
	t.logger.Debugw("capture window open", "session", t.session.ID, "duration", t.config.CaptureDuration)
	t.notifyLocked()
}

func (t *Trainer) complete(gen uint64) {
	defer t.deliver()
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.session.State != StateCapturing {
		return
	}
	t.finishLocked(OutcomeCompleted)
}

func (t *Trainer) finishLocked(outcome string) {
	// Invalidate any timer that already fired but has not taken the lock yet
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}

	last := &Result{
		ID:         t.session.ID,
		Label:      t.session.Label,
		Captured:   t.session.Captured,
		Outcome:    outcome,
		StartedAt:  t.session.StartedAt,
		FinishedAt: t.clock.Now(),
	}
	t.session = Session{State: StateIdle, Last: last}

	t.logger.Infow("training session ended",
		"session", last.ID,
		"label", last.Label,
		"captured", last.Captured,
		"outcome", outcome,
	)
	t.notifyLocked()
}

// notifyLocked queues the current snapshot for deliver.
func (t *Trainer) notifyLocked() {
	if len(t.listeners) > 0 {
		t.pending = append(t.pending, t.session)
	}
}
