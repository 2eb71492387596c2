// Package plugin forwards sign detections and training updates to external
// collaborator executables, such as a captioning overlay or an avatar driver.
package plugin

import "encoding/json"

// Event names a plugin can subscribe to in its manifest.
const (
	EventDetection = "detection"
	EventTraining  = "training"
)

// Manifest describes a plugin's metadata and subscriptions.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Events       []string        `json:"events"`
	Config       json.RawMessage `json:"config,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Subscribes reports whether the manifest lists event.
func (m Manifest) Subscribes(event string) bool {
	for _, e := range m.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Request is the JSON document written to a plugin's stdin.
type Request struct {
	Event      string          `json:"event"`
	Sign       string          `json:"sign,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Timestamp  int64           `json:"timestamp"`
	Training   json.RawMessage `json:"training,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
