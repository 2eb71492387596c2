// Package app wires the sign recognition engine together: feature extraction,
// the online classifier, the training controller, persistence and plugins.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/bep/debounce"
	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// ErrUnknownLabel is returned when a label outside the configured set is used.
var ErrUnknownLabel = errors.New("unknown label")

// ErrNoStore is returned by persistence operations when no store is configured.
var ErrNoStore = errors.New("no store configured")

// DefaultLabels is the closed label set used when none is configured.
var DefaultLabels = []string{"Hello", "Yes", "No", "Thank you", "Please"}

// Config holds configuration options for the application.
type Config struct {
	Store     *store.Store
	PluginDir string

	// Labels is the closed set of signs that can be trained.
	Labels []string

	// ModelName is the store slot the live model is saved under.
	ModelName string

	// AutosaveDelay debounces saving after a training session ends.
	// Zero disables autosave.
	AutosaveDelay time.Duration

	Classifier gesture.ClassifierConfig
	Trainer    gesture.TrainerConfig
	Detector   detector.Config
	Dispatcher plugin.DispatcherConfig

	// PluginTimeout bounds a single plugin invocation.
	PluginTimeout time.Duration

	Clock  clock.Clock
	Logger *zap.SugaredLogger
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Labels:        append([]string(nil), DefaultLabels...),
		ModelName:     store.DefaultModelName,
		AutosaveDelay: 2 * time.Second,
		Classifier:    gesture.DefaultClassifierConfig(),
		Trainer:       gesture.DefaultTrainerConfig(),
		Detector:      detector.DefaultConfig(),
		Dispatcher:    plugin.DefaultDispatcherConfig(),
		PluginTimeout: plugin.DefaultTimeout,
	}
}

// App is the recognition engine. Each App owns its classifier and trainer;
// nothing is shared between instances.
type App struct {
	config     Config
	logger     *zap.SugaredLogger
	clock      clock.Clock
	classifier *gesture.Classifier
	trainer    *gesture.Trainer
	pluginMgr  *plugin.Manager
	dispatcher *plugin.Dispatcher
	autosave   func(func())

	labels map[string]bool

	mu            sync.RWMutex
	mode          Mode
	enabled       bool
	lastDetection *Detection
	captured      map[string]int
	subscribers   map[int]func(Detection)
	trainingSubs  map[int]func(gesture.Session)
	nextSubID     int
	started       bool
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if len(config.Labels) == 0 {
		config.Labels = append([]string(nil), DefaultLabels...)
	}
	if config.ModelName == "" {
		config.ModelName = store.DefaultModelName
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	config.Trainer.Clock = config.Clock
	config.Trainer.Logger = config.Logger.Named("trainer")
	config.Dispatcher.Clock = config.Clock
	config.Dispatcher.Logger = config.Logger.Named("plugins")

	a := &App{
		config:       config,
		logger:       config.Logger,
		clock:        config.Clock,
		classifier:   gesture.NewClassifier(config.Classifier),
		labels:       make(map[string]bool, len(config.Labels)),
		mode:         ModePredict,
		enabled:      true,
		captured:     make(map[string]int),
		subscribers:  make(map[int]func(Detection)),
		trainingSubs: make(map[int]func(gesture.Session)),
	}
	for _, l := range config.Labels {
		a.labels[l] = true
	}

	a.trainer = gesture.NewTrainer(config.Trainer, a.classifier)
	a.trainer.OnStateChange(a.onTrainingChange)

	a.pluginMgr = plugin.NewManager(config.PluginDir, config.Logger.Named("plugins"))
	a.dispatcher = plugin.NewDispatcher(a.pluginMgr, plugin.NewExecutor(config.PluginTimeout), config.Dispatcher)

	if config.Store != nil && config.AutosaveDelay > 0 {
		a.autosave = debounce.New(config.AutosaveDelay)
	}

	return a
}

// Start begins plugin delivery. Frames are fed through ProcessFrame or Run.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return
	}
	a.started = true
	a.dispatcher.Start(ctx)
	a.logger.Infow("recognition engine started", "labels", a.config.Labels)
}

// Close cancels any training session, drains plugin delivery and saves the model.
func (a *App) Close() error {
	a.trainer.Cancel()
	a.dispatcher.Close()

	// Drop a pending autosave; the model is saved below
	if a.autosave != nil {
		a.autosave(func() {})
	}

	if a.config.Store == nil {
		return nil
	}
	return a.SaveModel()
}

// SetEnabled enables or disables sign processing.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether sign processing is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Labels returns the configured label set in order.
func (a *App) Labels() []string {
	return append([]string(nil), a.config.Labels...)
}

// LabelStats describes one label's training data.
type LabelStats struct {
	Label    string `json:"label"`
	Examples int    `json:"examples"`
	Captured int    `json:"captured"`
}

// LabelStats returns example counts for every configured label. Captured
// counts the examples added since the engine started.
func (a *App) LabelStats() []LabelStats {
	counts := a.classifier.ExampleCounts()

	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := make([]LabelStats, 0, len(a.config.Labels))
	for _, l := range a.config.Labels {
		stats = append(stats, LabelStats{Label: l, Examples: counts[l], Captured: a.captured[l]})
	}
	return stats
}

// StartTraining arms a training session for label. It reports false without
// error when a session is already running.
func (a *App) StartTraining(label string) (bool, error) {
	if !a.labels[label] {
		return false, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return a.trainer.Start(label), nil
}

// CancelTraining stops a running session. Examples already captured are kept.
func (a *App) CancelTraining() bool {
	return a.trainer.Cancel()
}

// TrainingSession returns the current training session snapshot.
func (a *App) TrainingSession() gesture.Session {
	return a.trainer.Snapshot()
}

// SubscribeTraining registers fn for training state changes. Updates arrive in
// order; fn must not start or cancel training itself.
func (a *App) SubscribeTraining(fn func(gesture.Session)) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSubID
	a.nextSubID++
	a.trainingSubs[id] = fn

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.trainingSubs, id)
	}
}

func (a *App) onTrainingChange(s gesture.Session) {
	// Only a finished session brings the trainer back to idle
	finished := !s.Active() && s.Last != nil
	if finished {
		a.recordSession(s.Last)
	}

	a.mu.Lock()
	if s.Active() {
		a.mode = ModeTrain
	} else {
		a.mode = ModePredict
	}
	subs := make([]func(gesture.Session), 0, len(a.trainingSubs))
	for _, fn := range a.trainingSubs {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}

	if data, err := json.Marshal(s); err == nil {
		a.dispatcher.Training(data, a.clock.Now().UnixMilli())
	}

	if finished && s.Last.Captured > 0 && a.autosave != nil {
		a.autosave(func() {
			if err := a.SaveModel(); err != nil {
				a.logger.Errorw("autosave failed", "error", err)
			}
		})
	}
}

func (a *App) recordSession(s *gesture.Result) {
	if a.config.Store == nil {
		return
	}

	err := a.config.Store.Sessions().Create(&store.TrainingSession{
		ID:         s.ID,
		Label:      s.Label,
		Captured:   s.Captured,
		Outcome:    store.SessionOutcome(s.Outcome),
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	})
	if err != nil {
		a.logger.Warnw("failed to record training session", "session", s.ID, "error", err)
	}
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	if a.config.PluginDir == "" {
		return nil
	}
	if err := a.pluginMgr.Discover(); err != nil {
		return fmt.Errorf("discover plugins: %w", err)
	}
	a.logger.Infow("plugins discovered", "count", len(a.pluginMgr.List()))
	return nil
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Classifier returns the engine's classifier.
func (a *App) Classifier() *gesture.Classifier {
	return a.classifier
}
