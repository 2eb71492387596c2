// Package tray provides a system tray interface for the mudra sign recognition engine.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/gesture"
)

// Tray represents the system tray application.
type Tray struct {
	labels []string

	onToggle   func(enabled bool)
	onTrain    func(label string)
	onCancel   func()
	onSettings func()
	onQuit     func()
	enabled    bool
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuStatus   *systray.MenuItem
	menuLastSign *systray.MenuItem
	menuCancel   *systray.MenuItem
}

// New creates a new Tray offering a training entry for each label. The
// enabled state is true by default.
func New(labels []string) *Tray {
	return &Tray{
		labels:  append([]string(nil), labels...),
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnTrain sets the callback for a "Train" menu entry.
func (t *Tray) OnTrain(fn func(label string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTrain = fn
}

// OnCancel sets the callback for the cancel training entry.
func (t *Tray) OnCancel(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCancel = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops a running tray.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra Sign Recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle sign recognition")
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem(statusTitle(gesture.Session{}), "Recognition mode")
	t.menuStatus.Disable()
	t.menuLastSign = systray.AddMenuItem(lastSignTitle(""), "Last detected sign")
	t.menuLastSign.Disable()
	systray.AddSeparator()

	menuTrain := systray.AddMenuItem("Train", "Record examples for a sign")
	for _, label := range t.labels {
		item := menuTrain.AddSubMenuItem(label, "Train "+label)
		go t.watchTrain(item, label)
	}
	t.menuCancel = systray.AddMenuItem("Cancel Training", "Stop the current training session")
	t.menuCancel.Disable()
	t.mu.Unlock()

	systray.AddSeparator()
	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuCancel.ClickedCh:
				t.handleCancel()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) watchTrain(item *systray.MenuItem, label string) {
	for range item.ClickedCh {
		t.handleTrain(label)
	}
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleTrain(label string) {
	t.mu.RLock()
	callback := t.onTrain
	t.mu.RUnlock()

	if callback != nil {
		callback(label)
	}
}

func (t *Tray) handleCancel() {
	t.mu.RLock()
	callback := t.onCancel
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLastSign updates the last sign display in the menu.
func (t *Tray) SetLastSign(label string, confidence float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastSign != nil {
		if label == "" {
			t.menuLastSign.SetTitle(lastSignTitle(""))
		} else {
			t.menuLastSign.SetTitle(lastSignTitle(fmt.Sprintf("%s (%.0f%%)", label, confidence*100)))
		}
	}
}

// SetTraining reflects a training session in the menu.
func (t *Tray) SetTraining(s gesture.Session) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus != nil {
		t.menuStatus.SetTitle(statusTitle(s))
	}
	if t.menuCancel != nil {
		if s.Active() {
			t.menuCancel.Enable()
		} else {
			t.menuCancel.Disable()
		}
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func lastSignTitle(sign string) string {
	if sign == "" {
		return "Last: none"
	}
	return "Last: " + sign
}

func statusTitle(s gesture.Session) string {
	switch s.State {
	case gesture.StateCountdown:
		return fmt.Sprintf("Get ready: %s in %d", s.Label, s.Remaining)
	case gesture.StateCapturing:
		return fmt.Sprintf("Recording %s (%d)", s.Label, s.Captured)
	default:
		return "Recognizing"
	}
}
