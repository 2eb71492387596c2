package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/gesture"
)

// maxModelSize bounds an uploaded model blob.
const maxModelSize = 64 << 20

// ModelHandler handles HTTP requests for the classifier model.
type ModelHandler struct {
	app     *app.App
	maxSize int64
}

// NewModelHandler creates a new ModelHandler for the given engine.
func NewModelHandler(a *app.App) *ModelHandler {
	return &ModelHandler{app: a, maxSize: maxModelSize}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
// Expected paths: /api/model or /api/model/save
func (h *ModelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/model")
	path = strings.TrimPrefix(path, "/")

	switch path {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.get(w, r)
		case http.MethodPut:
			h.replace(w, r)
		case http.MethodDelete:
			h.clear(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "save":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.save(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type modelSummaryResponse struct {
	Examples int            `json:"examples"`
	Labels   map[string]int `json:"labels"`
}

func (h *ModelHandler) summary() modelSummaryResponse {
	c := h.app.Classifier()
	return modelSummaryResponse{
		Examples: c.TotalExamples(),
		Labels:   c.ExampleCounts(),
	}
}

// get handles GET /api/model and returns the serialized dataset as is.
func (h *ModelHandler) get(w http.ResponseWriter, r *http.Request) {
	blob, err := h.app.ModelBlob()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to serialize model")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, blob)
}

// replace handles PUT /api/model and swaps in the uploaded dataset.
func (h *ModelHandler) replace(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Model too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	if err := h.app.ReplaceModel(string(body)); err != nil {
		if errors.Is(err, gesture.ErrMalformedModel) {
			writeError(w, http.StatusBadRequest, "Malformed model")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to replace model")
		return
	}

	writeJSON(w, http.StatusOK, h.summary())
}

// clear handles DELETE /api/model.
func (h *ModelHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.app.ClearModel(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear model")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// save handles POST /api/model/save.
func (h *ModelHandler) save(w http.ResponseWriter, r *http.Request) {
	if err := h.app.SaveModel(); err != nil {
		if errors.Is(err, app.ErrNoStore) {
			writeError(w, http.StatusServiceUnavailable, "No store configured")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save model")
		return
	}
	writeJSON(w, http.StatusOK, h.summary())
}
