package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

// writeManifest creates dir/<m.Name>/plugin.json.
func writeManifest(t *testing.T, dir string, m Manifest) string {
	t.Helper()

	pluginDir := filepath.Join(dir, m.Name)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return pluginDir
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()

	pluginDir := writeManifest(t, tmpDir, Manifest{
		Name:        "captions",
		Version:     "1.0.0",
		Description: "Shows recognised signs as captions",
		Executable:  "captions",
		Events:      []string{EventDetection, EventTraining},
		Config:      json.RawMessage(`{"position":"bottom"}`),
	})

	manager := NewManager(tmpDir, zaptest.NewLogger(t).Sugar())
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	plugin := plugins[0]
	if plugin.Manifest.Name != "captions" {
		t.Errorf("expected plugin name 'captions', got %q", plugin.Manifest.Name)
	}
	if plugin.Manifest.Description != "Shows recognised signs as captions" {
		t.Errorf("unexpected description %q", plugin.Manifest.Description)
	}
	if len(plugin.Manifest.Events) != 2 {
		t.Errorf("expected 2 events, got %d", len(plugin.Manifest.Events))
	}
	if plugin.Path != pluginDir {
		t.Errorf("expected path %q, got %q", pluginDir, plugin.Path)
	}
	if plugin.Executable != filepath.Join(pluginDir, "captions") {
		t.Errorf("unexpected executable path %q", plugin.Executable)
	}
	if string(plugin.Manifest.Config) != `{"position":"bottom"}` {
		t.Errorf("unexpected config %s", plugin.Manifest.Config)
	}
}

func TestManager_Discover_MultiplePluginsSorted(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{"plugin-b", "plugin-a", "plugin-c"} {
		writeManifest(t, tmpDir, Manifest{Name: name, Version: "1.0.0", Executable: name})
	}

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 3 {
		t.Fatalf("expected 3 plugins, got %d", len(plugins))
	}
	for i, want := range []string{"plugin-a", "plugin-b", "plugin-c"} {
		if plugins[i].Manifest.Name != want {
			t.Errorf("position %d: expected %s, got %s", i, want, plugins[i].Manifest.Name)
		}
	}
}

func TestManager_Subscribers(t *testing.T) {
	tmpDir := t.TempDir()

	writeManifest(t, tmpDir, Manifest{Name: "captions", Executable: "captions", Events: []string{EventDetection}})
	writeManifest(t, tmpDir, Manifest{Name: "avatar", Executable: "avatar", Events: []string{EventDetection, EventTraining}})
	writeManifest(t, tmpDir, Manifest{Name: "quiet", Executable: "quiet"})

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	detection := manager.Subscribers(EventDetection)
	if len(detection) != 2 || detection[0].Manifest.Name != "avatar" || detection[1].Manifest.Name != "captions" {
		t.Errorf("unexpected detection subscribers: %v", detection)
	}

	training := manager.Subscribers(EventTraining)
	if len(training) != 1 || training[0].Manifest.Name != "avatar" {
		t.Errorf("unexpected training subscribers: %v", training)
	}

	if subs := manager.Subscribers("unknown"); len(subs) != 0 {
		t.Errorf("expected no subscribers, got %d", len(subs))
	}
}

func TestManager_Discover_EmptyDir(t *testing.T) {
	manager := NewManager(t.TempDir(), nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on empty dir: %v", err)
	}

	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}

func TestManager_Get(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, Manifest{Name: "avatar", Version: "2.0.0", Executable: "avatar-bin"})

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugin, err := manager.Get("avatar")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if plugin.Manifest.Version != "2.0.0" {
		t.Errorf("expected version '2.0.0', got %q", plugin.Manifest.Version)
	}

	if _, err := manager.Get("nonexistent-plugin"); err != ErrPluginNotFound {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManager_PluginDir(t *testing.T) {
	pluginDir := "/path/to/plugins"
	manager := NewManager(pluginDir, nil)

	if manager.PluginDir() != pluginDir {
		t.Errorf("expected plugin dir %q, got %q", pluginDir, manager.PluginDir())
	}
}

func TestManager_Discover_SkipsBadManifests(t *testing.T) {
	tmpDir := t.TempDir()

	badDir := filepath.Join(tmpDir, "bad-plugin")
	if err := os.MkdirAll(badDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(badDir, "plugin.json"), []byte("not valid json"), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	writeManifest(t, tmpDir, Manifest{Name: "no-exec"})
	writeManifest(t, tmpDir, Manifest{Name: "good", Executable: "good"})

	if err := os.WriteFile(filepath.Join(tmpDir, "stray.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	manager := NewManager(tmpDir, zaptest.NewLogger(t).Sugar())
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed unexpectedly: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 || plugins[0].Manifest.Name != "good" {
		t.Fatalf("expected only the valid plugin, got %v", plugins)
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager("/path/that/does/not/exist", nil)

	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on non-existent dir: %v", err)
	}
	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}
