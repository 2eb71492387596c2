package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/mudra/internal/store"
)

// defaultSessionLimit caps GET /api/sessions when no limit is given.
const defaultSessionLimit = 50

// SessionsHandler serves the training history at /api/sessions.
type SessionsHandler struct {
	store *store.Store
}

// NewSessionsHandler creates a new SessionsHandler with the given store.
func NewSessionsHandler(s *store.Store) *SessionsHandler {
	return &SessionsHandler{store: s}
}

type historyEntryResponse struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Captured   int    `json:"captured"`
	Outcome    string `json:"outcome"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

type listSessionsResponse struct {
	Sessions []historyEntryResponse `json:"sessions"`
	Captured map[string]int         `json:"captured"`
}

// ServeHTTP handles GET /api/sessions?limit=N, newest first.
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	captured, err := h.store.Sessions().CapturedByLabel()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to summarize sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]historyEntryResponse, 0, len(sessions)),
		Captured: captured,
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, historyEntryResponse{
			ID:         s.ID,
			Label:      s.Label,
			Captured:   s.Captured,
			Outcome:    string(s.Outcome),
			StartedAt:  formatTime(s.StartedAt),
			FinishedAt: formatTime(s.FinishedAt),
		})
	}

	writeJSON(w, http.StatusOK, response)
}
