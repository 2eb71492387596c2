// Package main provides a captions plugin.
// It keeps a rolling caption file of recognised signs that an overlay or
// meeting client can display next to the video.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
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

// Config controls where captions are written.
type Config struct {
	Path     string `json:"path"`
	MaxLines int    `json:"max_lines"`
}

// trainingUpdate is the subset of a training snapshot the captions show.
type trainingUpdate struct {
	State     string `json:"state"`
	Label     string `json:"label"`
	Remaining int    `json:"remaining"`
}

// eventHandler defines a function type for handling a dispatched event.
type eventHandler func(req Request, cfg Config) (string, error)

// eventHandlers maps event names to their handler functions.
var eventHandlers = map[string]eventHandler{
	"detection": captionDetection,
	"training":  captionTraining,
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

	cfg := Config{Path: "captions.txt", MaxLines: 5}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to parse config: %v", err))
			return
		}
	}

	line, err := handler(req, cfg)
	if err != nil {
		writeErrorResponse(fmt.Sprintf("event %s failed: %v", req.Event, err))
		return
	}
	if line == "" {
		writeSuccessResponse("")
		return
	}

	if err := appendCaption(cfg, line); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to write caption: %v", err))
		return
	}
	writeSuccessResponse(line)
}

func captionDetection(req Request, _ Config) (string, error) {
	if req.Sign == "" {
		return "", fmt.Errorf("sign is required")
	}
	return fmt.Sprintf("%s (%.0f%%)", req.Sign, req.Confidence*100), nil
}

func captionTraining(req Request, _ Config) (string, error) {
	var u trainingUpdate
	if err := json.Unmarshal(req.Training, &u); err != nil {
		return "", fmt.Errorf("failed to parse training update: %w", err)
	}

	switch u.State {
	case "countdown":
		return fmt.Sprintf("Get ready to sign %q: %d", u.Label, u.Remaining), nil
	case "capturing":
		return fmt.Sprintf("Recording %q...", u.Label), nil
	default:
		// Returning to idle clears nothing; the next detection replaces it
		return "", nil
	}
}

// appendCaption adds line to the caption file, keeping only the newest lines.
func appendCaption(cfg Config, line string) error {
	var lines []string
	if data, err := os.ReadFile(cfg.Path); err == nil {
		for _, l := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			if l != "" {
				lines = append(lines, l)
			}
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	lines = append(lines, line)
	if cfg.MaxLines > 0 && len(lines) > cfg.MaxLines {
		lines = lines[len(lines)-cfg.MaxLines:]
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(cfg.Path, []byte(strings.Join(lines, "\n")+"\n"), 0644)
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
func writeSuccessResponse(caption string) {
	resp := Response{
		Success: true,
	}
	if caption != "" {
		data, _ := json.Marshal(map[string]string{"caption": caption})
		resp.Data = data
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
