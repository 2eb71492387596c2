package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/store"
)

func TestSessionsHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionsHandler(s)

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, label := range []string{"Hello", "Yes", "Hello"} {
		err := s.Sessions().Create(&store.TrainingSession{
			Label:      label,
			Captured:   10,
			Outcome:    store.OutcomeCompleted,
			StartedAt:  start.Add(time.Duration(i) * time.Minute),
			FinishedAt: start.Add(time.Duration(i)*time.Minute + 6*time.Second),
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	rec := serve(handler, http.MethodGet, "/api/sessions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp listSessionsResponse
	decode(t, rec, &resp)
	if len(resp.Sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(resp.Sessions))
	}
	if resp.Sessions[0].Label != "Hello" || resp.Sessions[0].StartedAt != "2024-03-01T12:02:00Z" {
		t.Errorf("expected the newest session first, got %+v", resp.Sessions[0])
	}
	if resp.Captured["Hello"] != 20 || resp.Captured["Yes"] != 10 {
		t.Errorf("unexpected captured totals %v", resp.Captured)
	}

	t.Run("limit", func(t *testing.T) {
		rec := serve(handler, http.MethodGet, "/api/sessions?limit=1", "")
		var resp listSessionsResponse
		decode(t, rec, &resp)
		if len(resp.Sessions) != 1 {
			t.Errorf("expected 1 session, got %d", len(resp.Sessions))
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		for _, q := range []string{"abc", "0", "-3"} {
			rec := serve(handler, http.MethodGet, "/api/sessions?limit="+q, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("limit %q: expected status %d, got %d", q, http.StatusBadRequest, rec.Code)
			}
		}
	})
}

func TestSessionsHandler_MethodNotAllowed(t *testing.T) {
	rec := serve(NewSessionsHandler(newTestStore(t)), http.MethodPost, "/api/sessions", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
