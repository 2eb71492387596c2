package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/gesture"
)

// TrainingHandler handles HTTP requests for the training session.
type TrainingHandler struct {
	app *app.App
}

// NewTrainingHandler creates a new TrainingHandler for the given engine.
func NewTrainingHandler(a *app.App) *TrainingHandler {
	return &TrainingHandler{app: a}
}

// ServeHTTP implements the http.Handler interface.
// Expected path: /api/training
func (h *TrainingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, toSessionResponse(h.app.TrainingSession()))
	case http.MethodPost:
		h.start(w, r)
	case http.MethodDelete:
		h.cancel(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type startTrainingRequest struct {
	Label string `json:"label"`
}

type resultResponse struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Captured   int    `json:"captured"`
	Outcome    string `json:"outcome"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

type sessionResponse struct {
	ID        string          `json:"id,omitempty"`
	State     gesture.State   `json:"state"`
	Label     string          `json:"label,omitempty"`
	Remaining int             `json:"remaining"`
	Captured  int             `json:"captured"`
	StartedAt string          `json:"started_at,omitempty"`
	Last      *resultResponse `json:"last,omitempty"`
}

// startTrainingResponse reports whether a POST armed a new session. A start
// while one is running is ignored and returns the running session.
type startTrainingResponse struct {
	Started bool `json:"started"`
	sessionResponse
}

func toSessionResponse(s gesture.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID,
		State:     s.State,
		Label:     s.Label,
		Remaining: s.Remaining,
		Captured:  s.Captured,
		StartedAt: formatTime(s.StartedAt),
	}
	if l := s.Last; l != nil {
		resp.Last = &resultResponse{
			ID:         l.ID,
			Label:      l.Label,
			Captured:   l.Captured,
			Outcome:    l.Outcome,
			StartedAt:  formatTime(l.StartedAt),
			FinishedAt: formatTime(l.FinishedAt),
		}
	}
	return resp
}

// start handles POST /api/training and arms a session for the requested label.
// It answers 202 when a session was armed and 200 when one was already running.
func (h *TrainingHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startTrainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Label == "" {
		writeError(w, http.StatusBadRequest, "Label is required")
		return
	}

	started, err := h.app.StartTraining(req.Label)
	if err != nil {
		if errors.Is(err, app.ErrUnknownLabel) {
			writeError(w, http.StatusBadRequest, "Unknown label")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to start training")
		return
	}
	status := http.StatusAccepted
	if !started {
		status = http.StatusOK
	}
	writeJSON(w, status, startTrainingResponse{
		Started:         started,
		sessionResponse: toSessionResponse(h.app.TrainingSession()),
	})
}

// cancel handles DELETE /api/training.
func (h *TrainingHandler) cancel(w http.ResponseWriter, r *http.Request) {
	if !h.app.CancelTraining() {
		writeError(w, http.StatusConflict, "No training session in progress")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(h.app.TrainingSession()))
}
