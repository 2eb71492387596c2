package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/mudra/internal/app"
)

// LabelsHandler serves GET /api/labels.
type LabelsHandler struct {
	app *app.App
}

// NewLabelsHandler creates a new LabelsHandler for the given engine.
func NewLabelsHandler(a *app.App) *LabelsHandler {
	return &LabelsHandler{app: a}
}

type listLabelsResponse struct {
	Labels []app.LabelStats `json:"labels"`
}

func (h *LabelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, listLabelsResponse{Labels: h.app.LabelStats()})
}

// ModeHandler serves the pipeline mode at /api/mode. PUT toggles processing.
type ModeHandler struct {
	app *app.App
}

// NewModeHandler creates a new ModeHandler for the given engine.
func NewModeHandler(a *app.App) *ModeHandler {
	return &ModeHandler{app: a}
}

type modeResponse struct {
	Mode          app.Mode        `json:"mode"`
	Enabled       bool            `json:"enabled"`
	Training      sessionResponse `json:"training"`
	LastDetection *app.Detection  `json:"last_detection,omitempty"`
}

type updateModeRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *ModeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.status())
	case http.MethodPut:
		var req updateModeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "Enabled is required")
			return
		}
		h.app.SetEnabled(*req.Enabled)
		writeJSON(w, http.StatusOK, h.status())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ModeHandler) status() modeResponse {
	resp := modeResponse{
		Mode:     h.app.Mode(),
		Enabled:  h.app.IsEnabled(),
		Training: toSessionResponse(h.app.TrainingSession()),
	}
	if d, ok := h.app.LastDetection(); ok {
		resp.LastDetection = &d
	}
	return resp
}
