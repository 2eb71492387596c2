package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
)

func defaultLabels() []string {
	return append([]string(nil), app.DefaultLabels...)
}

// openStore opens the database under the data directory, creating it if needed.
func openStore(c *cli.Context) (*store.Store, error) {
	dataDir := c.String(flagDataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(filepath.Join(dataDir, "mudra.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// withEngine runs fn against an engine restored from the store. The engine is
// not started: no plugins are delivered and no frames are read.
func withEngine(c *cli.Context, fn func(a *app.App) error) error {
	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	cfg := app.DefaultConfig()
	cfg.Store = st
	cfg.AutosaveDelay = 0
	cfg.Logger = logger

	a := app.New(cfg)
	if err := a.LoadModel(); err != nil {
		return err
	}
	return fn(a)
}

func requireArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one argument: %s", c.Command.ArgsUsage)
	}
	return c.Args().First(), nil
}

// ExportAction writes the saved model to a file.
func ExportAction(c *cli.Context) error {
	path, err := requireArg(c)
	if err != nil {
		return err
	}

	return withEngine(c, func(a *app.App) error {
		if err := a.ExportModel(path); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "exported %d examples to %s\n", a.Classifier().TotalExamples(), path)
		return nil
	})
}

// ImportAction replaces the saved model with a file's contents.
func ImportAction(c *cli.Context) error {
	path, err := requireArg(c)
	if err != nil {
		return err
	}

	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	cfg := app.DefaultConfig()
	cfg.Store = st
	cfg.AutosaveDelay = 0
	cfg.Logger = logger

	a := app.New(cfg)
	if err := a.ImportModel(path); err != nil {
		if errors.Is(err, gesture.ErrMalformedModel) {
			return fmt.Errorf("%s is not a model file: %w", path, err)
		}
		return err
	}
	fmt.Fprintf(c.App.Writer, "imported %d examples from %s\n", a.Classifier().TotalExamples(), path)
	return nil
}

// LabelsAction prints every label with its example count.
func LabelsAction(c *cli.Context) error {
	return withEngine(c, func(a *app.App) error {
		w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LABEL\tEXAMPLES")
		for _, s := range a.LabelStats() {
			fmt.Fprintf(w, "%s\t%d\n", s.Label, s.Examples)
		}
		// Labels present in the model but outside the configured set
		counts := a.Classifier().ExampleCounts()
		for _, l := range a.Classifier().Labels() {
			if !slices.Contains(a.Labels(), l) {
				fmt.Fprintf(w, "%s (unknown)\t%d\n", l, counts[l])
			}
		}
		return w.Flush()
	})
}

// SessionsAction prints recent training sessions, newest first.
func SessionsAction(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.Sessions().List(c.Int(flagLimit))
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FINISHED\tLABEL\tCAPTURED\tOUTCOME")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.FinishedAt.Local().Format(time.DateTime), s.Label, s.Captured, s.Outcome)
	}
	return w.Flush()
}

// ClearAction deletes the saved model.
func ClearAction(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Models().Delete(store.DefaultModelName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintln(c.App.Writer, "no saved model")
			return nil
		}
		return fmt.Errorf("delete model: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "model deleted")
	return nil
}
