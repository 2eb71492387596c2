package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/tray"
)

// ServeAction runs the engine, its frame source and the HTTP API until
// interrupted.
func ServeAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	pluginDir := c.String(flagPlugins)
	if pluginDir == "" {
		pluginDir = filepath.Join(c.String(flagDataDir), "plugins")
	}

	cfg := app.DefaultConfig()
	cfg.Store = st
	cfg.PluginDir = pluginDir
	cfg.Labels = c.StringSlice(flagLabels)
	cfg.Detector.MinConfidence = c.Float64(flagMinConfidence)
	cfg.Logger = logger

	a := app.New(cfg)
	if err := a.LoadModel(); err != nil {
		// A corrupt model is not fatal; the engine starts empty
		logger.Warnw("could not restore model, starting empty", "error", err)
	}
	if err := a.DiscoverPlugins(); err != nil {
		logger.Warnw("plugin discovery failed", "dir", pluginDir, "error", err)
	}
	a.Start(ctx)
	defer func() {
		if err := a.Close(); err != nil {
			logger.Errorw("failed to save model on shutdown", "error", err)
		}
	}()

	webDir := c.String(flagWeb)
	if webDir == "" {
		webDir = findWebDir(c.String(flagDataDir))
	}
	if webDir != "" {
		logger.Infow("serving static files", "dir", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		App:       a,
		Store:     st,
		Detector:  cfg.Detector,
		Logger:    logger.Named("http"),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.Run(ctx, c.String(flagAddr))
	}()

	source, err := newSource(c.String(flagTracker), cfg.Detector)
	if err != nil {
		return err
	}
	if source != nil {
		go func() {
			err := a.Run(ctx, source)
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			if err != nil {
				errCh <- fmt.Errorf("frame source: %w", err)
			}
		}()
	}

	if c.Bool(flagTray) {
		t, detach := newTray(a, cancel, c.String(flagAddr))
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// systray owns this goroutine until it quits
		t.Run()
		detach()
		cancel()
	}

	select {
	case err := <-errCh:
		cancel()
		return err
	case <-ctx.Done():
		return <-errCh
	}
}

// newSource builds the frame source named by the tracker flag. An empty
// command means frames only arrive over the WebSocket endpoint.
func newSource(command string, config detector.Config) (detector.Source, error) {
	switch command = strings.TrimSpace(command); command {
	case "":
		return nil, nil
	case "-":
		return detector.NewStreamSource(os.Stdin, config), nil
	}

	fields := strings.Fields(command)
	return detector.NewProcessSource(config, fields[0], fields[1:]...)
}

// newTray builds a tray wired to a. detach removes its engine subscriptions.
func newTray(a *app.App, quit func(), addr string) (t *tray.Tray, detach func()) {
	t = tray.New(a.Labels())

	t.OnToggle(a.SetEnabled)
	t.OnTrain(func(label string) {
		if _, err := a.StartTraining(label); err != nil {
			logger.Warnw("could not start training", "label", label, "error", err)
		}
	})
	t.OnCancel(func() { a.CancelTraining() })
	t.OnSettings(func() {
		logger.Infow("settings are served over HTTP", "url", "http://localhost"+addr)
	})
	t.OnQuit(quit)

	unsubscribe := a.Subscribe(func(d app.Detection) {
		t.SetLastSign(d.Label, d.Confidence)
	})
	unsubscribeTraining := a.SubscribeTraining(t.SetTraining)

	return t, func() {
		unsubscribe()
		unsubscribeTraining()
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <data-dir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
