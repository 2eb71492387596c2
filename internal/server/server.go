// Package server provides the HTTP server for the mudra sign recognition engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 5 * time.Second

// Config holds the server configuration.
type Config struct {
	StaticDir string
	App       *app.App
	Store     *store.Store

	// Detector filters frames pushed over /api/frames.
	Detector detector.Config

	Logger *zap.SugaredLogger
}

// Server represents the HTTP server for the mudra engine.
type Server struct {
	config Config
	logger *zap.SugaredLogger
	mux    *http.ServeMux
	events *EventsHandler
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	s := &Server{
		config: config,
		logger: config.Logger,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Engine endpoints need an App
	if s.config.App != nil {
		a := s.config.App

		s.mux.Handle("/api/training", api.NewTrainingHandler(a))
		s.mux.Handle("/api/labels", api.NewLabelsHandler(a))
		s.mux.Handle("/api/mode", api.NewModeHandler(a))

		modelHandler := api.NewModelHandler(a)
		s.mux.Handle("/api/model", modelHandler)
		s.mux.Handle("/api/model/", modelHandler)

		s.events = NewEventsHandler(a, s.logger.Named("events"))
		s.mux.Handle("/api/events", s.events)
		s.mux.Handle("/api/frames", NewFramesHandler(a, s.config.Detector, s.logger.Named("frames")))
	}

	// Training history lives in the store
	if s.config.Store != nil {
		s.mux.Handle("/api/sessions", api.NewSessionsHandler(s.config.Store))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if a := s.config.App; a != nil {
		response["mode"] = a.Mode()
		response["examples"] = a.Classifier().TotalExamples()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Close disconnects event subscribers.
func (s *Server) Close() {
	if s.events != nil {
		s.events.Close()
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
