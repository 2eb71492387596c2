// Package main provides an avatar plugin.
// It translates recognised signs into animation cues and writes the current
// cue to a state file that the 3D avatar renderer polls.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Request represents the input from the plugin dispatcher.
type Request struct {
	Event      string          `json:"event"`
	Sign       string          `json:"sign"`
	Confidence float64         `json:"confidence"`
	Timestamp  int64           `json:"timestamp"`
	Training   json.RawMessage `json:"training"`
	Config     json.RawMessage `json:"config"`
}

// Response represents the output to the plugin dispatcher.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config maps signs to animations.
type Config struct {
	StatePath  string            `json:"state_path"`
	Animations map[string]string `json:"animations"`
}

// Cue is what the renderer reads.
type Cue struct {
	Animation  string  `json:"animation"`
	Sign       string  `json:"sign,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// eventHandler defines a function type for handling a dispatched event.
type eventHandler func(req Request, cfg Config) (*Cue, error)

// eventHandlers maps event names to their handler functions.
var eventHandlers = map[string]eventHandler{
	"detection": detectionCue,
	"training":  trainingCue,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	handler, ok := eventHandlers[req.Event]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown event: %s", req.Event))
		return
	}

	cfg := Config{StatePath: "avatar.json"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to parse config: %v", err))
			return
		}
	}

	cue, err := handler(req, cfg)
	if err != nil {
		writeErrorResponse(fmt.Sprintf("event %s failed: %v", req.Event, err))
		return
	}

	if err := writeCue(cfg.StatePath, cue); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to write cue: %v", err))
		return
	}
	writeSuccessResponse(cue)
}

func detectionCue(req Request, cfg Config) (*Cue, error) {
	if req.Sign == "" {
		return nil, fmt.Errorf("sign is required")
	}

	animation, ok := cfg.Animations[req.Sign]
	if !ok {
		animation = "idle"
	}
	return &Cue{
		Animation:  animation,
		Sign:       req.Sign,
		Confidence: req.Confidence,
		Timestamp:  req.Timestamp,
	}, nil
}

func trainingCue(req Request, _ Config) (*Cue, error) {
	var update struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(req.Training, &update); err != nil {
		return nil, fmt.Errorf("failed to parse training update: %w", err)
	}

	animation := "idle"
	switch update.State {
	case "countdown":
		animation = "attentive"
	case "capturing":
		animation = "watching"
	}
	return &Cue{Animation: animation, Timestamp: req.Timestamp}, nil
}

// writeCue replaces the state file so the renderer never reads half a cue.
func writeCue(path string, cue *Cue) error {
	data, err := json.Marshal(cue)
	if err != nil {
		return err
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse(cue *Cue) {
	resp := Response{
		Success: true,
	}
	if data, err := json.Marshal(cue); err == nil {
		resp.Data = data
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
